package tasks

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/lysyi3m/feed2social/app/database"
	"github.com/lysyi3m/feed2social/app/destinations"
	"github.com/lysyi3m/feed2social/app/feed"
	"github.com/lysyi3m/feed2social/app/publish"
)

// TaskFactory yields the destinations of a run and builds one SyncTask for each.
type TaskFactory interface {
	Destinations() []*feed.DestinationConfig
	NewSyncTask(ctx context.Context, config *feed.DestinationConfig) (*SyncTask, error)
}

var _ TaskFactory = (*DestinationTaskFactory)(nil)

// DestinationTaskFactory builds tasks from the destination config directory.
// Adapters are built per task, so every run starts with fresh sessions.
type DestinationTaskFactory struct {
	configCache *feed.DestinationConfigCache
	ledgers     *database.LedgerRepository
	httpClient  *http.Client
	downloader  publish.ImageDownloader
	recorder    Recorder
	userAgent   string
	syncOnly    bool
	only        []string
}

type FactoryOptions struct {
	HTTPClient *http.Client
	Recorder   Recorder
	UserAgent  string
	SyncOnly   bool
	// Only limits the run to the named destinations. Empty means every enabled one.
	Only []string
}

func NewDestinationTaskFactory(configCache *feed.DestinationConfigCache, ledgers *database.LedgerRepository, opts FactoryOptions) *DestinationTaskFactory {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &DestinationTaskFactory{
		configCache: configCache,
		ledgers:     ledgers,
		httpClient:  httpClient,
		downloader:  publish.NewDownloader(httpClient, opts.UserAgent),
		recorder:    opts.Recorder,
		userAgent:   opts.UserAgent,
		syncOnly:    opts.SyncOnly,
		only:        opts.Only,
	}
}

func (f *DestinationTaskFactory) Destinations() []*feed.DestinationConfig {
	configs := f.configCache.GetEnabledConfigs()
	if len(f.only) == 0 {
		return configs
	}

	var selected []*feed.DestinationConfig
	for _, config := range configs {
		if slices.Contains(f.only, config.Name) {
			selected = append(selected, config)
		}
	}
	return selected
}

func (f *DestinationTaskFactory) NewSyncTask(ctx context.Context, config *feed.DestinationConfig) (*SyncTask, error) {
	sanitizer := feed.NewSanitizer(config.Sanitize)
	ledger := f.ledgers.ForDestination(config.Name)
	betweenItems := time.Duration(config.Pacing.BetweenItems) * time.Second

	if f.syncOnly {
		return NewSyncTask(config.Name, ledger, sanitizer, nil, f.recorder, betweenItems), nil
	}

	adapter, err := destinations.Build(ctx, config, f.httpClient, f.userAgent)
	if err != nil {
		return nil, fmt.Errorf("failed to build adapter: %w", err)
	}

	protocol := publish.NewProtocol(adapter, f.downloader, publish.Options{
		PollInterval:     time.Duration(config.Poll.Interval) * time.Second,
		PollAttempts:     config.Poll.MaxAttempts,
		AfterMediaDelay:  time.Duration(config.Pacing.AfterMedia) * time.Second,
		BeforeReplyDelay: time.Duration(config.Pacing.BeforeReply) * time.Second,
		Reply:            config.Reply.IsEnabled(),
		ReplyPrefix:      config.Reply.Prefix,
	})

	return NewSyncTask(config.Name, ledger, sanitizer, protocol, f.recorder, betweenItems), nil
}
