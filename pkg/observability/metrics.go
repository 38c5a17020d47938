package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus instruments for the API server and the push
// pipeline.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Push pipeline metrics
	PushRunsTotal  *prometheus.CounterVec
	PushSitesTotal *prometheus.CounterVec
	PushDuration   prometheus.Histogram

	// Outbound dependencies
	SlackPostsTotal     *prometheus.CounterVec
	SheetsRequestsTotal *prometheus.CounterVec

	// Database connection pool
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates and registers all instruments on the given registry. A
// nil registry gets a fresh one.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sheetpulse_http_requests_total",
				Help: "Total HTTP requests by method, path and status",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sheetpulse_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		PushRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sheetpulse_push_runs_total",
				Help: "Batch push runs by outcome",
			},
			[]string{"status"},
		),
		PushSitesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sheetpulse_push_sites_total",
				Help: "Per-site push attempts by outcome",
			},
			[]string{"status"},
		),
		PushDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sheetpulse_push_run_duration_seconds",
				Help:    "Duration of a full push run",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
			},
		),
		SlackPostsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sheetpulse_slack_posts_total",
				Help: "Slack webhook deliveries by outcome",
			},
			[]string{"status"},
		),
		SheetsRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sheetpulse_sheets_requests_total",
				Help: "Google Sheets API calls by outcome",
			},
			[]string{"status"},
		),
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "sheetpulse_db_connections_active",
				Help: "Open database connections in use",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "sheetpulse_db_connections_idle",
				Help: "Idle database connections",
			},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.PushRunsTotal,
		m.PushSitesTotal,
		m.PushDuration,
		m.SlackPostsTotal,
		m.SheetsRequestsTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
	)

	return m
}

// Handler exposes the registry in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// UpdateDBStats refreshes the connection pool gauges.
func (m *Metrics) UpdateDBStats(db *sql.DB) {
	stats := db.Stats()
	m.DBConnectionsActive.Set(float64(stats.InUse))
	m.DBConnectionsIdle.Set(float64(stats.Idle))
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
		})
	}
}

// statusRecorder captures the response status code.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}
