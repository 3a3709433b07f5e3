package cfg

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	EnvFile string `long:"env-file" env:"ENV_FILE" default:".env" description:"Env file read before flags and environment (optional)"`

	// Sync configuration
	FeedURL         string   `long:"feed-url" env:"FEED_URL" description:"URL of the RSS/Atom feed to sync"`
	DestinationsDir string   `long:"destinations-dir" env:"DESTINATIONS_DIR" default:"./destinations" description:"Directory containing destination configuration files"`
	DBPath          string   `long:"db-path" env:"DB_PATH" default:"./data/ledger.sqlite3" description:"Path of the SQLite ledger database"`
	Mode            string   `long:"mode" env:"MODE" default:"run" choice:"run" choice:"sync-only" choice:"serve" choice:"ledger" choice:"refresh-token" description:"Operating mode"`
	Destinations    []string `long:"destination" env:"DESTINATIONS" env-delim:"," description:"Limit the run to this destination (repeatable)"`
	FeedTimeout     int      `long:"feed-timeout" env:"FEED_TIMEOUT" default:"30" description:"Feed fetch timeout in seconds"`
	LockFile        string   `long:"lock-file" env:"LOCK_FILE" description:"Hold an exclusive lock on this file while running (optional)"`

	// Serve mode
	Port          string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	ServeInterval int    `long:"serve-interval" env:"SERVE_INTERVAL" default:"300" description:"Interval between runs in serve mode, in seconds"`
	APIAccessKey  string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Ledger mode
	Limit int `long:"limit" env:"LIMIT" default:"20" description:"Number of ledger entries to print per destination"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"feed2social/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
	LogFormat string `long:"log-format" env:"LOG_FORMAT" default:"auto" choice:"auto" choice:"text" choice:"json" description:"Log output format"`
}

// Load reads the optional env file, then flags and environment. It returns nil, nil when help was shown.
func Load(args []string) (*Cfg, error) {
	if err := loadEnvFile(envFilePath(args)); err != nil {
		return nil, err
	}

	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		FeedURL:         raw.FeedURL,
		DestinationsDir: raw.DestinationsDir,
		DBPath:          raw.DBPath,
		Mode:            Mode(raw.Mode),
		Destinations:    raw.Destinations,
		FeedTimeout:     time.Duration(raw.FeedTimeout) * time.Second,
		LockFile:        raw.LockFile,
		Port:            raw.Port,
		ServeInterval:   time.Duration(raw.ServeInterval) * time.Second,
		APIAccessKey:    raw.APIAccessKey,
		Limit:           raw.Limit,
		UserAgent:       raw.UserAgent,
		Timezone:        raw.Timezone,
		Debug:           raw.Debug,
		LogFormat:       raw.LogFormat,
		Version:         GetVersion(),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		slog.Warn("Invalid timezone, using system default", "timezone", cfg.Timezone, "error", err)
	}

	return cfg, nil
}

// envFilePath picks the env file before flags are parsed: --env-file, then ENV_FILE, then .env.
func envFilePath(args []string) string {
	for i, arg := range args {
		if arg == "--" {
			break
		}
		if value, ok := strings.CutPrefix(arg, "--env-file="); ok {
			return value
		}
		if arg == "--env-file" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return cmp.Or(os.Getenv("ENV_FILE"), ".env")
}

// NeedsFeed reports whether the mode fetches the feed.
func (c *Cfg) NeedsFeed() bool {
	switch c.Mode {
	case ModeRun, ModeSyncOnly, ModeServe:
		return true
	}
	return false
}

func (c *Cfg) validate() error {
	if c.NeedsFeed() && c.FeedURL == "" {
		return fmt.Errorf("feed URL is required in %s mode (--feed-url or FEED_URL)", c.Mode)
	}
	if c.FeedTimeout <= 0 {
		return fmt.Errorf("feed timeout must be positive")
	}
	if c.Mode == ModeServe && c.ServeInterval <= 0 {
		return fmt.Errorf("serve interval must be positive")
	}
	if c.Mode == ModeRefreshToken && len(c.Destinations) == 0 {
		return fmt.Errorf("refresh-token mode needs --destination")
	}
	return nil
}

func loadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		loc, err := time.LoadLocation(timezone)
		if err != nil {
			return err
		}
		time.Local = loc
	}
	return nil
}
