package cfg

import "time"

type Mode string

const (
	ModeRun          Mode = "run"
	ModeSyncOnly     Mode = "sync-only"
	ModeServe        Mode = "serve"
	ModeLedger       Mode = "ledger"
	ModeRefreshToken Mode = "refresh-token"
)

type Cfg struct {
	// Sync configuration
	FeedURL         string
	DestinationsDir string
	DBPath          string
	Mode            Mode
	Destinations    []string
	FeedTimeout     time.Duration
	LockFile        string

	// Serve mode
	Port          string
	ServeInterval time.Duration
	APIAccessKey  string

	// Ledger mode
	Limit int

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	LogFormat string
	Version   string
}
