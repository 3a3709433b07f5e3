package api

import (
	"net/http"

	"github.com/lysyi3m/feed2social/app/database"
	"github.com/lysyi3m/feed2social/app/feed"
	"github.com/lysyi3m/feed2social/app/tasks"
)

type Handler struct {
	configCache *feed.DestinationConfigCache
	ledger      database.LedgerReader
	scheduler   tasks.TaskSchedulerInterface
	metrics     http.Handler
}

type destinationInfo struct {
	Name        string     `json:"name"`
	Type        string     `json:"type"`
	Enabled     bool       `json:"enabled"`
	MaxLength   int        `json:"max_length"`
	SkipMarker  string     `json:"skip_marker"`
	Reply       bool       `json:"reply"`
	Entries     int        `json:"entries"`
	LastEntryAt *string    `json:"last_entry_at,omitempty"`
	LastRun     *runStatus `json:"last_run,omitempty"`
}

type runStatus struct {
	RunID       string `json:"run_id"`
	StartedAt   string `json:"started_at"`
	Seen        int    `json:"seen"`
	Skipped     int    `json:"skipped"`
	Published   int    `json:"published"`
	Committed   int    `json:"committed"`
	Failed      int    `json:"failed"`
	RateLimited bool   `json:"rate_limited"`
}

type ledgerEntry struct {
	EntryID   string `json:"entry_id"`
	CreatedAt string `json:"created_at"`
}
