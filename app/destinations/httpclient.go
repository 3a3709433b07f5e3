package destinations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/lysyi3m/feed2social/app/publish"
)

const maxResponseBytes = 1 << 20

// apiClient is the transport shared by all adapters. It maps 429 to
// publish.RateLimitError and any other unexpected status to publish.HTTPError.
type apiClient struct {
	destination string
	httpClient  *http.Client
	userAgent   string
}

func (c *apiClient) postForm(ctx context.Context, endpoint string, form url.Values, result any, accepted ...int) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return c.do(req, result, accepted...)
}

func (c *apiClient) postJSON(ctx context.Context, endpoint string, body any, header http.Header, result any, accepted ...int) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	for key, values := range header {
		req.Header[key] = values
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, result, accepted...)
}

func (c *apiClient) postMultipart(ctx context.Context, endpoint, field, filename string, data []byte, result any, accepted ...int) error {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("failed to write form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return c.do(req, result, accepted...)
}

func (c *apiClient) get(ctx context.Context, endpoint string, query url.Values, result any) error {
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	return c.do(req, result)
}

func (c *apiClient) do(req *http.Request, result any, accepted ...int) error {
	if len(accepted) == 0 {
		accepted = []int{http.StatusOK}
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return publish.NewRateLimitError(c.destination, resp.Header)
	}

	if !slices.Contains(accepted, resp.StatusCode) {
		return &publish.HTTPError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	if result == nil {
		return nil
	}

	if err := json.Unmarshal(data, result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
