package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promcollect "github.com/prometheus/client_golang/prometheus/collectors"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder exports sync outcomes as Prometheus metrics.
type Recorder struct {
	items       *prom.CounterVec
	rateLimits  *prom.CounterVec
	replyErrors *prom.CounterVec
	runDuration *prom.HistogramVec
	lastRun     *prom.GaugeVec
}

// NewRecorder registers the sync metrics and the Go runtime collectors on reg.
func NewRecorder(reg *prom.Registry) *Recorder {
	r := &Recorder{
		items: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "feed2social",
			Name:      "items_total",
			Help:      "Feed items handled per destination by outcome",
		}, []string{"destination", "outcome"}),
		rateLimits: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "feed2social",
			Name:      "rate_limited_total",
			Help:      "Batches stopped by a destination rate limit",
		}, []string{"destination"}),
		replyErrors: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "feed2social",
			Name:      "reply_failures_total",
			Help:      "Source-link replies that could not be posted",
		}, []string{"destination"}),
		runDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "feed2social",
			Name:      "run_duration_seconds",
			Help:      "Duration of one destination sync",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"destination"}),
		lastRun: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: "feed2social",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last destination sync finished",
		}, []string{"destination"}),
	}

	reg.MustRegister(r.items, r.rateLimits, r.replyErrors, r.runDuration, r.lastRun)
	reg.MustRegister(promcollect.NewGoCollector(), promcollect.NewProcessCollector(promcollect.ProcessCollectorOpts{}))

	return r
}

func (r *Recorder) ItemProcessed(destination, outcome string) {
	r.items.WithLabelValues(destination, outcome).Inc()
}

func (r *Recorder) RateLimited(destination string) {
	r.rateLimits.WithLabelValues(destination).Inc()
}

func (r *Recorder) ReplyFailed(destination string) {
	r.replyErrors.WithLabelValues(destination).Inc()
}

func (r *Recorder) RunFinished(destination string, duration time.Duration) {
	r.runDuration.WithLabelValues(destination).Observe(duration.Seconds())
	r.lastRun.WithLabelValues(destination).SetToCurrentTime()
}

// Handler serves the metrics registered on reg.
func Handler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
