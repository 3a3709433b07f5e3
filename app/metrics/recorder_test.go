package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCounts(t *testing.T) {
	reg := prom.NewRegistry()
	r := NewRecorder(reg)

	r.ItemProcessed("threads", "published")
	r.ItemProcessed("threads", "published")
	r.ItemProcessed("threads", "skipped")
	r.RateLimited("bluesky")
	r.ReplyFailed("threads")
	r.RunFinished("threads", 2*time.Second)

	if got := testutil.ToFloat64(r.items.WithLabelValues("threads", "published")); got != 2 {
		t.Errorf("Expected 2 published items, got %v", got)
	}
	if got := testutil.ToFloat64(r.items.WithLabelValues("threads", "skipped")); got != 1 {
		t.Errorf("Expected 1 skipped item, got %v", got)
	}
	if got := testutil.ToFloat64(r.rateLimits.WithLabelValues("bluesky")); got != 1 {
		t.Errorf("Expected 1 rate limit, got %v", got)
	}
	if got := testutil.ToFloat64(r.replyErrors.WithLabelValues("threads")); got != 1 {
		t.Errorf("Expected 1 reply failure, got %v", got)
	}
	if got := testutil.ToFloat64(r.lastRun.WithLabelValues("threads")); got <= 0 {
		t.Errorf("Expected last run timestamp to be set, got %v", got)
	}
}

func TestHandlerServesMetrics(t *testing.T) {
	reg := prom.NewRegistry()
	r := NewRecorder(reg)
	r.ItemProcessed("plurk", "failed")

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if rec.Code != 200 {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(string(body), `feed2social_items_total{destination="plurk",outcome="failed"} 1`) {
		t.Errorf("Expected items counter in output, got:\n%s", body)
	}
}
