package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the proxy backend.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Upstream fetch metrics
	UpstreamRequests *prometheus.CounterVec
	UpstreamDuration *prometheus.HistogramVec
	UpstreamErrors   prometheus.Counter

	// Rewrite metrics
	RewrittenBytes *prometheus.HistogramVec
	RewriteErrors  prometheus.Counter

	// WebSocket relay metrics
	RelaysActive prometheus.Gauge
	RelaysTotal  prometheus.Counter

	// Reader metrics
	ReaderExtracts prometheus.Counter
	ReaderBlocked  prometheus.Counter

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time
}

// NewMetrics creates a new metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{
		startTime: time.Now(),

		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "porthole_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "porthole_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		ResponseSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "porthole_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),

		UpstreamRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "porthole_upstream_requests_total",
				Help: "Total number of upstream origin fetches",
			},
			[]string{"method", "status"},
		),
		UpstreamDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "porthole_upstream_duration_seconds",
				Help:    "Upstream fetch duration in seconds",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"method"},
		),
		UpstreamErrors: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "porthole_upstream_errors_total",
				Help: "Total number of failed upstream fetches",
			},
		),

		RewrittenBytes: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "porthole_rewritten_bytes",
				Help:    "Size of documents passed through the rewriter",
				Buckets: []float64{1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"kind"},
		),
		RewriteErrors: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "porthole_rewrite_errors_total",
				Help: "Total number of rewrite failures",
			},
		),

		RelaysActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "porthole_ws_relays_active",
				Help: "Number of active WebSocket relays",
			},
		),
		RelaysTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "porthole_ws_relays_total",
				Help: "Total number of WebSocket relays opened",
			},
		),

		ReaderExtracts: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "porthole_reader_extracts_total",
				Help: "Total number of reader extractions",
			},
		),
		ReaderBlocked: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "porthole_reader_blocked_total",
				Help: "Total number of reader fetches blocked by the address guard",
			},
		),

		Uptime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "porthole_uptime_seconds",
				Help: "Service uptime in seconds",
			},
		),
	}
}

// RecordHTTPRequest records a completed inbound request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	if respSize > 0 {
		m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))
	}
}

// RecordUpstream records a completed upstream fetch.
func (m *Metrics) RecordUpstream(method, status string, duration time.Duration) {
	m.UpstreamRequests.WithLabelValues(method, status).Inc()
	m.UpstreamDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// UpdateUptime refreshes the uptime gauge.
func (m *Metrics) UpdateUptime() {
	m.Uptime.Set(time.Since(m.startTime).Seconds())
}
