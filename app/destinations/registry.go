package destinations

import (
	"context"
	"fmt"
	"net/http"

	"github.com/lysyi3m/feed2social/app/feed"
	"github.com/lysyi3m/feed2social/app/publish"
)

// Build creates the adapter for one destination config. Session-based
// destinations log in here, so a returned adapter is ready to post.
func Build(ctx context.Context, config *feed.DestinationConfig, httpClient *http.Client, userAgent string) (publish.Adapter, error) {
	if err := checkCredentials(config); err != nil {
		return nil, err
	}

	client := &http.Client{
		Transport: httpClient.Transport,
		Timeout:   config.GetTimeout(),
	}

	switch config.Type {
	case feed.DestinationTypeThreads:
		return NewThreads(config.Name, config.BaseURL,
			config.Credential("user_id"), config.Credential("access_token"),
			client, userAgent), nil

	case feed.DestinationTypeTwitter:
		return NewTwitter(config.Name, config.BaseURL, config.UploadURL, TwitterCredentials{
			ConsumerKey:       config.Credential("consumer_key"),
			ConsumerSecret:    config.Credential("consumer_secret"),
			AccessToken:       config.Credential("access_token"),
			AccessTokenSecret: config.Credential("access_token_secret"),
		}, client, userAgent), nil

	case feed.DestinationTypeBluesky:
		bluesky := NewBluesky(config.Name, config.BaseURL,
			config.Credential("handle"), config.Credential("app_password"),
			client, userAgent)
		if err := bluesky.Login(ctx); err != nil {
			return nil, fmt.Errorf("failed to log in to %s: %w", config.Name, err)
		}
		return bluesky, nil

	case feed.DestinationTypePlurk:
		return NewPlurk(config.Name, config.BaseURL, PlurkCredentials{
			AppKey:            config.Credential("app_key"),
			AppSecret:         config.Credential("app_secret"),
			AccessToken:       config.Credential("access_token"),
			AccessTokenSecret: config.Credential("access_token_secret"),
		}, client, userAgent), nil
	}

	return nil, fmt.Errorf("unknown destination type '%s'", config.Type)
}

func checkCredentials(config *feed.DestinationConfig) error {
	required, ok := feed.RequiredCredentials(config.Type)
	if !ok {
		return fmt.Errorf("unknown destination type '%s'", config.Type)
	}

	for _, key := range required {
		if config.Credential(key) == "" {
			return fmt.Errorf("%s: credential '%s' is required", config.Name, key)
		}
	}

	return nil
}
