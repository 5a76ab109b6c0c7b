package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the sync jobs. All methods are
// nil-receiver safe so tests can run without a registry.
type Metrics struct {
	RunsTotal    *prometheus.CounterVec
	PagesTotal   *prometheus.CounterVec
	RowsTotal    *prometheus.CounterVec
	FeedFailures *prometheus.CounterVec
	RunDuration  *prometheus.HistogramVec
}

// New creates and registers all sync metrics.
func New() *Metrics {
	return &Metrics{
		RunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "profil_sync_runs_total",
			Help: "Total number of sync job runs by outcome",
		}, []string{"source", "status"}),
		PagesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "profil_sync_pages_total",
			Help: "Total number of change-feed pages processed",
		}, []string{"source"}),
		RowsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "profil_sync_rows_total",
			Help: "Total number of rows changed by reconciliation, by operation",
		}, []string{"source", "op"}),
		FeedFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "profil_sync_feed_failures_total",
			Help: "Total number of change-feed fetch failures",
		}, []string{"source"}),
		RunDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "profil_sync_run_duration_seconds",
			Help:    "Duration of sync job runs",
			Buckets: prometheus.DefBuckets,
		}, []string{"source"}),
	}
}

// ObserveRun records one finished run with its outcome and duration.
func (m *Metrics) ObserveRun(source, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(source, status).Inc()
	m.RunDuration.WithLabelValues(source).Observe(d.Seconds())
}

// IncPages counts one processed page.
func (m *Metrics) IncPages(source string) {
	if m == nil {
		return
	}
	m.PagesTotal.WithLabelValues(source).Inc()
}

// AddRows counts reconciled rows for one operation kind.
func (m *Metrics) AddRows(source, op string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.RowsTotal.WithLabelValues(source, op).Add(float64(n))
}

// IncFeedFailures counts one fetch failure.
func (m *Metrics) IncFeedFailures(source string) {
	if m == nil {
		return
	}
	m.FeedFailures.WithLabelValues(source).Inc()
}
