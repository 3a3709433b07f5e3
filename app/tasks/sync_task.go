package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/feed2social/app/database"
	"github.com/lysyi3m/feed2social/app/feed"
	"github.com/lysyi3m/feed2social/app/publish"
)

const (
	OutcomeSeen      = "seen"
	OutcomeSkipped   = "skipped"
	OutcomeSynced    = "synced"
	OutcomePublished = "published"
	OutcomeFailed    = "failed"
)

// Summary counts what a SyncTask did with one batch of feed items.
type Summary struct {
	Total       int
	Seen        int
	Skipped     int
	Published   int
	Committed   int
	Failed      int
	RateLimited bool
}

type SyncTask struct {
	Task
	RunID        string
	ledger       database.Ledger
	sanitizer    *feed.Sanitizer
	publisher    Publisher
	recorder     Recorder
	betweenItems time.Duration
	sleep        func(ctx context.Context, d time.Duration) error
	now          func() time.Time
}

// NewSyncTask builds a task for one destination. A nil publisher makes it a sync-only task:
// eligible items are committed to the ledger without being posted.
func NewSyncTask(destination string, ledger database.Ledger, sanitizer *feed.Sanitizer, publisher Publisher, recorder Recorder, betweenItems time.Duration) *SyncTask {
	taskType := TaskTypeSync
	if publisher == nil {
		taskType = TaskTypeSyncOnly
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}

	return &SyncTask{
		Task:         NewTask(taskType, destination),
		ledger:       ledger,
		sanitizer:    sanitizer,
		publisher:    publisher,
		recorder:     recorder,
		betweenItems: betweenItems,
		sleep:        sleepContext,
		now:          time.Now,
	}
}

// Process walks items oldest first. It stops early on cancellation, a rate limit or a
// ledger failure; anything else that goes wrong with one item leaves it unseen for the next run.
func (t *SyncTask) Process(ctx context.Context, items []feed.Item) (Summary, error) {
	var summary Summary
	logger := slog.With(append([]any{"run_id", t.RunID}, logAttrs(t)...)...)
	attempted := 0

	for i := len(items) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		item := items[i]
		summary.Total++
		itemLogger := logger.With("item_id", item.GUID)

		if item.GUID == "" {
			summary.Skipped++
			itemLogger.Warn("Item has no id, skipping", "decision", OutcomeSkipped, "link", item.Link)
			t.recorder.ItemProcessed(t.Destination, OutcomeSkipped)
			continue
		}

		seen, err := t.ledger.Seen(ctx, item.GUID)
		if err != nil {
			return summary, fmt.Errorf("failed to check ledger: %w", err)
		}
		if seen {
			summary.Seen++
			itemLogger.Debug("Item already in ledger", "decision", OutcomeSeen)
			t.recorder.ItemProcessed(t.Destination, OutcomeSeen)
			continue
		}

		post, reason := t.sanitizer.Run(item)
		if post == nil {
			summary.Skipped++
			itemLogger.Info("Item skipped", "decision", OutcomeSkipped, "reason", reason)
			t.recorder.ItemProcessed(t.Destination, OutcomeSkipped)
			continue
		}

		if t.publisher == nil {
			if err := t.ledger.Commit(ctx, item.GUID, t.now()); err != nil {
				return summary, fmt.Errorf("%w: %w", publish.ErrCommitFailed, err)
			}
			summary.Committed++
			itemLogger.Info("Item synced without publishing", "decision", OutcomeSynced)
			t.recorder.ItemProcessed(t.Destination, OutcomeSynced)
			continue
		}

		if attempted > 0 && t.betweenItems > 0 {
			if err := t.sleep(ctx, t.betweenItems); err != nil {
				return summary, err
			}
		}
		attempted++

		req := publish.Request{ItemID: item.GUID, Link: item.Link, Post: *post}
		commit := func(ctx context.Context) error {
			return t.ledger.Commit(ctx, item.GUID, t.now())
		}

		attempt, err := t.publisher.Run(context.WithoutCancel(ctx), req, commit)
		if attempt != nil && attempt.Published() {
			summary.Published++
			summary.Committed++
			if attempt.ReplyErr != nil {
				t.recorder.ReplyFailed(t.Destination)
			}
		}

		switch {
		case err == nil:
			itemLogger.Info("Item published", "decision", OutcomePublished, "post_id", attempt.PostID, "state", string(attempt.State))
			t.recorder.ItemProcessed(t.Destination, OutcomePublished)
		case errors.Is(err, publish.ErrCommitFailed):
			itemLogger.Error("Item published but not recorded", "post_id", attempt.PostID, "error", err)
			// the commit never happened, so the counters above overstate it
			summary.Committed--
			return summary, err
		case errors.Is(err, publish.ErrRateLimited):
			summary.RateLimited = true
			if attempt != nil && attempt.Published() {
				t.recorder.ItemProcessed(t.Destination, OutcomePublished)
			}
			itemLogger.Warn("Rate limited, stopping batch", "error", err)
			t.recorder.RateLimited(t.Destination)
			return summary, err
		default:
			summary.Failed++
			itemLogger.Warn("Item failed, will retry next run", "decision", OutcomeFailed, "error", err)
			t.recorder.ItemProcessed(t.Destination, OutcomeFailed)
		}
	}

	return summary, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
