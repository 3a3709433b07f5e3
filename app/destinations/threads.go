package destinations

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lysyi3m/feed2social/app/publish"
)

const threadsBaseURL = "https://graph.threads.net"

var (
	_ publish.Adapter      = (*Threads)(nil)
	_ publish.StatusPoller = (*Threads)(nil)
)

// Threads publishes through the Threads Graph API: create a container,
// wait for image processing, then publish the container.
type Threads struct {
	name        string
	baseURL     string
	userID      string
	accessToken string
	client      apiClient
}

func NewThreads(name, baseURL, userID, accessToken string, httpClient *http.Client, userAgent string) *Threads {
	if baseURL == "" {
		baseURL = threadsBaseURL
	}

	return &Threads{
		name:        name,
		baseURL:     strings.TrimRight(baseURL, "/"),
		userID:      userID,
		accessToken: accessToken,
		client:      apiClient{destination: name, httpClient: httpClient, userAgent: userAgent},
	}
}

func (t *Threads) Name() string {
	return t.name
}

type threadsIDResponse struct {
	ID string `json:"id"`
}

func (t *Threads) Create(ctx context.Context, draft publish.Draft) (publish.Container, error) {
	form := url.Values{}
	form.Set("text", draft.Text)
	form.Set("access_token", t.accessToken)

	needsProcessing := false
	switch {
	case draft.ReplyTo != nil:
		form.Set("media_type", "TEXT")
		form.Set("reply_to_id", draft.ReplyTo.ID)
	case draft.ImageURL != "":
		form.Set("media_type", "IMAGE")
		form.Set("image_url", draft.ImageURL)
		needsProcessing = true
	default:
		form.Set("media_type", "TEXT")
	}

	var resp threadsIDResponse
	if err := t.client.postForm(ctx, t.endpoint(t.userID, "threads"), form, &resp); err != nil {
		return publish.Container{}, err
	}
	if resp.ID == "" {
		return publish.Container{}, fmt.Errorf("%w: container response without id", publish.ErrPublishFailed)
	}

	return publish.Container{ID: resp.ID, Draft: draft, NeedsProcessing: needsProcessing}, nil
}

func (t *Threads) PollStatus(ctx context.Context, containerID string) (publish.Status, error) {
	query := url.Values{}
	query.Set("fields", "status,error_message")
	query.Set("access_token", t.accessToken)

	var resp struct {
		Status       string `json:"status"`
		ErrorMessage string `json:"error_message"`
	}
	if err := t.client.get(ctx, t.endpoint(containerID), query, &resp); err != nil {
		return "", err
	}

	switch strings.ToUpper(resp.Status) {
	case "FINISHED", "PUBLISHED":
		return publish.StatusFinished, nil
	case "ERROR", "EXPIRED":
		return publish.StatusError, nil
	default:
		return publish.StatusInProgress, nil
	}
}

func (t *Threads) Publish(ctx context.Context, container publish.Container) (publish.Post, error) {
	form := url.Values{}
	form.Set("creation_id", container.ID)
	form.Set("access_token", t.accessToken)

	var resp threadsIDResponse
	if err := t.client.postForm(ctx, t.endpoint(t.userID, "threads_publish"), form, &resp); err != nil {
		return publish.Post{}, err
	}
	if resp.ID == "" {
		return publish.Post{}, fmt.Errorf("%w: publish response without id", publish.ErrPublishFailed)
	}

	return publish.Post{ID: resp.ID}, nil
}

// RefreshToken exchanges the current long-lived token for a new one.
func (t *Threads) RefreshToken(ctx context.Context) (string, time.Duration, error) {
	query := url.Values{}
	query.Set("grant_type", "th_refresh_token")
	query.Set("access_token", t.accessToken)

	var resp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := t.client.get(ctx, t.baseURL+"/refresh_access_token", query, &resp); err != nil {
		return "", 0, fmt.Errorf("failed to refresh access token: %w", err)
	}
	if resp.AccessToken == "" {
		return "", 0, fmt.Errorf("refresh response without access token")
	}

	t.accessToken = resp.AccessToken

	return resp.AccessToken, time.Duration(resp.ExpiresIn) * time.Second, nil
}

func (t *Threads) endpoint(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, part := range parts {
		escaped[i] = url.PathEscape(part)
	}
	return t.baseURL + "/v1.0/" + strings.Join(escaped, "/")
}
