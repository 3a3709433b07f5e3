package database

import (
	"context"
	"time"
)

// Ledger is the dedup ledger of one destination.
type Ledger interface {
	Seen(ctx context.Context, entryID string) (bool, error)
	Commit(ctx context.Context, entryID string, at time.Time) error
}

type LedgerReader interface {
	Count(ctx context.Context) (int, error)
	Stats(ctx context.Context) ([]DestinationStats, error)
	List(ctx context.Context, destination string, limit int) ([]LedgerEntry, error)
}
