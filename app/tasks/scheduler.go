package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

type TaskSchedulerInterface interface {
	Start() error
	Stop() error
	RunNow() error
	LastResult() (*RunResult, time.Time)
}

// Scheduler repeats runner passes on a fixed interval. Passes never overlap:
// a tick that arrives while a pass is running is rescheduled.
type Scheduler struct {
	scheduler gocron.Scheduler
	runner    *Runner
	interval  time.Duration
	job       gocron.Job
	ctx       context.Context
	cancel    context.CancelFunc

	mu         sync.Mutex
	lastResult *RunResult
	lastRunAt  time.Time
}

func NewScheduler(runner *Runner, interval time.Duration) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		scheduler: s,
		runner:    runner,
		interval:  interval,
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

func (s *Scheduler) Start() error {
	job, err := s.scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(s.run),
		gocron.WithName("sync"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("failed to create sync job: %w", err)
	}
	s.job = job

	slog.Info("Starting scheduler", "interval", s.interval.String())
	s.scheduler.Start()
	return nil
}

// Stop cancels the pass in flight between items and waits for it to return.
func (s *Scheduler) Stop() error {
	slog.Info("Stopping scheduler")
	s.cancel()
	return s.scheduler.Shutdown()
}

func (s *Scheduler) RunNow() error {
	if s.job == nil {
		return fmt.Errorf("scheduler not started")
	}
	return s.job.RunNow()
}

func (s *Scheduler) LastResult() (*RunResult, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastResult, s.lastRunAt
}

func (s *Scheduler) run() {
	startedAt := time.Now()
	result, err := s.runner.Run(s.ctx)

	s.mu.Lock()
	s.lastResult = result
	s.lastRunAt = startedAt
	s.mu.Unlock()

	if err != nil {
		slog.Error("Scheduled run failed", "run_id", result.RunID, "error", err)
		return
	}
	if len(result.RateLimited) > 0 {
		slog.Warn("Scheduled run rate limited", "run_id", result.RunID, "destinations", result.RateLimited)
	}
}
