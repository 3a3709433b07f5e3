package publish

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

var (
	ErrPublishFailed = errors.New("publish failed")
	ErrRateLimited   = errors.New("rate limited")
	ErrCommitFailed  = errors.New("ledger commit failed after publish")
)

type RateLimitError struct {
	Destination string
	Limit       string
	Remaining   string
	Reset       time.Time
}

func (e *RateLimitError) Error() string {
	if e.Reset.IsZero() {
		return fmt.Sprintf("%s: rate limited", e.Destination)
	}
	return fmt.Sprintf("%s: rate limited until %s", e.Destination, e.Reset.Format(time.RFC3339))
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// NewRateLimitError reads x-rate-limit-* (or ratelimit-*) headers from a 429 response.
func NewRateLimitError(destination string, header http.Header) *RateLimitError {
	e := &RateLimitError{
		Destination: destination,
		Limit:       firstHeader(header, "x-rate-limit-limit", "ratelimit-limit"),
		Remaining:   firstHeader(header, "x-rate-limit-remaining", "ratelimit-remaining"),
	}

	if reset := firstHeader(header, "x-rate-limit-reset", "ratelimit-reset"); reset != "" {
		if unix, err := strconv.ParseInt(reset, 10, 64); err == nil {
			e.Reset = time.Unix(unix, 0)
		}
	}

	return e
}

type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("HTTP error: %d %s", e.StatusCode, body)
}

func firstHeader(header http.Header, keys ...string) string {
	for _, key := range keys {
		if v := header.Get(key); v != "" {
			return v
		}
	}
	return ""
}
