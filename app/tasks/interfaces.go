package tasks

import (
	"context"
	"time"

	"github.com/lysyi3m/feed2social/app/feed"
	"github.com/lysyi3m/feed2social/app/publish"
)

// FeedSource yields feed items newest first, as feeds list them.
type FeedSource interface {
	Fetch(ctx context.Context) ([]feed.Item, error)
}

type Publisher interface {
	Destination() string
	Run(ctx context.Context, req publish.Request, commit publish.CommitFunc) (*publish.Attempt, error)
}

// Recorder receives per-item outcomes. Implemented by the metrics package.
type Recorder interface {
	ItemProcessed(destination, outcome string)
	RateLimited(destination string)
	ReplyFailed(destination string)
	RunFinished(destination string, duration time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ItemProcessed(string, string) {}
func (nopRecorder) RateLimited(string) {}
func (nopRecorder) ReplyFailed(string) {}
func (nopRecorder) RunFinished(string, time.Duration) {}
