package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/lysyi3m/feed2social/app/api"
	"github.com/lysyi3m/feed2social/app/cfg"
	"github.com/lysyi3m/feed2social/app/database"
	"github.com/lysyi3m/feed2social/app/feed"
	"github.com/lysyi3m/feed2social/app/logging"
	"github.com/lysyi3m/feed2social/app/metrics"
	"github.com/lysyi3m/feed2social/app/tasks"
)

const (
	exitOK          = 0
	exitError       = 1
	exitRateLimited = 75 // EX_TEMPFAIL
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	appCfg, err := cfg.Load(args)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		return exitError
	}
	if appCfg == nil {
		return exitOK
	}

	if err := logging.Setup(logging.Options{Debug: appCfg.Debug, Format: appCfg.LogFormat}); err != nil {
		slog.Error("Failed to configure logging", "error", err)
		return exitError
	}

	slog.Info("Starting feed2social", "version", appCfg.Version, "mode", string(appCfg.Mode))

	if appCfg.LockFile != "" {
		lock := flock.New(appCfg.LockFile)
		locked, err := lock.TryLock()
		if err != nil {
			slog.Error("Failed to acquire lock", "lock_file", appCfg.LockFile, "error", err)
			return exitError
		}
		if !locked {
			slog.Warn("Another run holds the lock, try again later", "lock_file", appCfg.LockFile)
			return exitRateLimited
		}
		defer func() {
			if err := lock.Unlock(); err != nil {
				slog.Warn("Failed to release lock", "lock_file", appCfg.LockFile, "error", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to open ledger database", "path", appCfg.DBPath, "error", err)
		return exitError
	}
	defer db.Close()

	version, _, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return exitError
	}
	slog.Debug("Ledger ready", "path", db.Path(), "schema_version", version)

	ledgers := database.NewLedgerRepository(db)

	if appCfg.Mode == cfg.ModeLedger {
		if err := printLedger(ctx, os.Stdout, ledgers, appCfg.Destinations, appCfg.Limit); err != nil {
			slog.Error("Failed to print ledger", "error", err)
			return exitError
		}
		return exitOK
	}

	configCache := feed.NewDestinationConfigCache(appCfg.DestinationsDir)
	if err := configCache.Run(); err != nil {
		slog.Error("Failed to load destination configurations", "dir", appCfg.DestinationsDir, "error", err)
		return exitError
	}
	slog.Info("Destination configurations loaded", "count", configCache.GetConfigCount())

	httpClient := &http.Client{}

	if appCfg.Mode == cfg.ModeRefreshToken {
		return refreshTokens(ctx, appCfg, configCache, httpClient)
	}

	registry := prom.NewRegistry()
	recorder := metrics.NewRecorder(registry)

	source := feed.NewSource(appCfg.FeedURL, httpClient, feed.NewParser(), appCfg.UserAgent, appCfg.FeedTimeout)
	factory := tasks.NewDestinationTaskFactory(configCache, ledgers, tasks.FactoryOptions{
		HTTPClient: httpClient,
		Recorder:   recorder,
		UserAgent:  appCfg.UserAgent,
		SyncOnly:   appCfg.Mode == cfg.ModeSyncOnly,
		Only:       appCfg.Destinations,
	})
	runner := tasks.NewRunner(source, factory, recorder)

	if appCfg.Mode == cfg.ModeServe {
		return serve(ctx, appCfg, runner, configCache, ledgers, metrics.Handler(registry))
	}

	result, err := runner.Run(ctx)
	if err != nil {
		slog.Error("Run failed", "run_id", result.RunID, "error", err)
		return exitError
	}
	if len(result.RateLimited) > 0 {
		slog.Warn("Run stopped by rate limits, retry later", "run_id", result.RunID, "destinations", result.RateLimited)
		return exitRateLimited
	}

	slog.Info("Run completed", "run_id", result.RunID, "items", result.Items, "destinations", len(result.Summaries))
	return exitOK
}

func refreshTokens(ctx context.Context, appCfg *cfg.Cfg, configCache *feed.DestinationConfigCache, httpClient *http.Client) int {
	code := exitOK
	for _, name := range appCfg.Destinations {
		task := tasks.NewRefreshTokenTask(name, configCache, httpClient, appCfg.UserAgent)
		if err := task.Execute(ctx); err != nil {
			slog.Error("Failed to refresh access token", "destination", name, "error", err)
			code = exitError
		}
	}
	return code
}

func serve(ctx context.Context, appCfg *cfg.Cfg, runner *tasks.Runner, configCache *feed.DestinationConfigCache,
	ledgers database.LedgerReader, metricsHandler http.Handler) int {
	scheduler, err := tasks.NewScheduler(runner, appCfg.ServeInterval)
	if err != nil {
		slog.Error("Failed to create scheduler", "error", err)
		return exitError
	}
	if err := scheduler.Start(); err != nil {
		slog.Error("Failed to start scheduler", "error", err)
		return exitError
	}
	defer func() {
		if err := scheduler.Stop(); err != nil {
			slog.Warn("Scheduler shutdown error", "error", err)
		}
		slog.Info("Background scheduler stopped")
	}()

	handler := api.NewHandler(configCache, ledgers, scheduler, metricsHandler)
	server := api.NewServer(handler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port, "interval", appCfg.ServeInterval.String())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	code := exitOK
	select {
	case <-ctx.Done():
		slog.Info("Received shutdown signal")
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
		code = exitError
	}

	slog.Info("Shutting down server gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	return code
}
