package database

import (
	"time"
)

// LedgerEntry records that an item was durably published to one destination.
type LedgerEntry struct {
	ID          int64
	Destination string
	EntryID     string
	CreatedAt   time.Time
}

type DestinationStats struct {
	Destination string
	Entries     int
	LastEntryAt *time.Time
}
