package publish

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lysyi3m/feed2social/app/feed"
)

const (
	defaultDownloadTimeout = 30 * time.Second
	defaultMaxImageBytes   = 10 << 20
)

// Downloader fetches image bytes for destinations that upload media.
type Downloader struct {
	httpClient *http.Client
	userAgent  string
	timeout    time.Duration
	maxBytes   int64
}

func NewDownloader(httpClient *http.Client, userAgent string) *Downloader {
	return &Downloader{
		httpClient: httpClient,
		userAgent:  userAgent,
		timeout:    defaultDownloadTimeout,
		maxBytes:   defaultMaxImageBytes,
	}
}

func (d *Downloader) Download(ctx context.Context, url string) (*feed.Image, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, d.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image body: %w", err)
	}
	if int64(len(data)) > d.maxBytes {
		return nil, fmt.Errorf("image larger than %d bytes", d.maxBytes)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image body")
	}

	mimeType := strings.TrimSpace(strings.Split(resp.Header.Get("Content-Type"), ";")[0])
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, fmt.Errorf("unexpected content type %q", mimeType)
	}

	return &feed.Image{URL: url, MIMEType: mimeType, Data: data}, nil
}
