package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fiootv_http_requests_total",
			Help: "Total number of HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fiootv_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Sync metrics
	SyncCategoriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fiootv_sync_categories_total",
			Help: "Categories processed by the channel sync, by outcome",
		},
		[]string{"status"},
	)

	SyncPagesFetched = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fiootv_sync_pages_fetched_total",
			Help: "Upstream channel pages fetched",
		},
	)

	SyncRowsUpserted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fiootv_sync_rows_upserted_total",
			Help: "Channel rows written by the sync",
		},
	)

	SyncDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fiootv_sync_duration_seconds",
			Help:    "Duration of complete sync runs",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
	)

	// Notification metrics
	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fiootv_notifications_total",
			Help: "Notification deliveries by kind and outcome",
		},
		[]string{"kind", "status"},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(SyncCategoriesTotal)
	prometheus.MustRegister(SyncPagesFetched)
	prometheus.MustRegister(SyncRowsUpserted)
	prometheus.MustRegister(SyncDuration)
	prometheus.MustRegister(NotificationsTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures an operation for a histogram.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the time elapsed since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration records the elapsed time in h.
func (t *Timer) ObserveDuration(h prometheus.Observer) {
	h.Observe(t.Duration().Seconds())
}

// Outcome maps an error to the "status" label value.
func Outcome(err error) string {
	if err != nil {
		return "failed"
	}
	return "success"
}
