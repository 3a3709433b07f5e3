package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/lysyi3m/feed2social/app/destinations"
	"github.com/lysyi3m/feed2social/app/feed"
)

// RefreshTokenTask renews a Threads long-lived access token and writes it back to the destination file.
type RefreshTokenTask struct {
	Task
	configCache *feed.DestinationConfigCache
	httpClient  *http.Client
	userAgent   string
	ExpiresIn   time.Duration
}

func NewRefreshTokenTask(destination string, configCache *feed.DestinationConfigCache, httpClient *http.Client, userAgent string) *RefreshTokenTask {
	return &RefreshTokenTask{
		Task:        NewTask(TaskTypeRefresh, destination),
		configCache: configCache,
		httpClient:  httpClient,
		userAgent:   userAgent,
	}
}

func (t *RefreshTokenTask) Execute(ctx context.Context) error {
	config, err := t.configCache.GetConfig(t.Destination)
	if err != nil {
		return err
	}
	if config.Type != feed.DestinationTypeThreads {
		return fmt.Errorf("destination %s is %s, only threads tokens can be refreshed", t.Destination, config.Type)
	}

	accessToken := config.Credential("access_token")
	if accessToken == "" {
		return fmt.Errorf("destination %s has no access_token", t.Destination)
	}

	client := &http.Client{Transport: t.httpClient.Transport, Timeout: config.GetTimeout()}
	threads := destinations.NewThreads(config.Name, config.BaseURL, config.Credential("user_id"), accessToken, client, t.userAgent)

	token, expiresIn, err := threads.RefreshToken(ctx)
	if err != nil {
		return err
	}

	if err := t.configCache.UpdateCredential(t.Destination, "access_token", token); err != nil {
		return fmt.Errorf("failed to store refreshed token: %w", err)
	}
	t.ExpiresIn = expiresIn

	slog.Info("Access token refreshed", append(logAttrs(t), "expires_in", expiresIn.String())...)

	return nil
}
