package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/lysyi3m/feed2social/app/publish"
)

// RunResult describes one pass over every destination.
type RunResult struct {
	RunID       string
	Items       int
	Summaries   map[string]Summary
	RateLimited []string
}

// Runner fetches the feed once and syncs it to each destination in turn.
type Runner struct {
	source   FeedSource
	factory  TaskFactory
	recorder Recorder
}

func NewRunner(source FeedSource, factory TaskFactory, recorder Recorder) *Runner {
	if recorder == nil {
		recorder = nopRecorder{}
	}

	return &Runner{
		source:   source,
		factory:  factory,
		recorder: recorder,
	}
}

// Run returns an error for anything but rate limits, which are reported in
// RunResult.RateLimited so the caller can ask to be retried later.
func (r *Runner) Run(ctx context.Context) (*RunResult, error) {
	result := &RunResult{
		RunID:     uuid.NewString(),
		Summaries: make(map[string]Summary),
	}
	logger := slog.With("run_id", result.RunID)

	configs := r.factory.Destinations()
	if len(configs) == 0 {
		logger.Warn("No enabled destinations")
		return result, nil
	}

	items, err := r.source.Fetch(ctx)
	if err != nil {
		return result, err
	}
	result.Items = len(items)
	logger.Info("Feed fetched", "items", len(items), "destinations", len(configs))

	var errs []error
	for _, config := range configs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		task, err := r.factory.NewSyncTask(ctx, config)
		if err != nil {
			logger.Error("Failed to prepare destination", "destination", config.Name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", config.Name, err))
			continue
		}
		task.RunID = result.RunID

		task.Start()
		summary, err := task.Process(ctx, items)
		duration := task.GetDuration()
		result.Summaries[config.Name] = summary
		r.recorder.RunFinished(config.Name, duration)

		logger.Info("Destination synced", append(logAttrs(task),
			"seen", summary.Seen,
			"skipped", summary.Skipped,
			"published", summary.Published,
			"committed", summary.Committed,
			"failed", summary.Failed,
			"duration", duration.String())...)

		switch {
		case err == nil:
		case errors.Is(err, publish.ErrRateLimited):
			result.RateLimited = append(result.RateLimited, config.Name)
		case errors.Is(err, publish.ErrCommitFailed):
			return result, errors.Join(append(errs, fmt.Errorf("%s: %w", config.Name, err))...)
		default:
			errs = append(errs, fmt.Errorf("%s: %w", config.Name, err))
		}
	}

	return result, errors.Join(errs...)
}
