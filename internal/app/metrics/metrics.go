package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "country_service"

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	refreshRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "runs_total",
			Help:      "Total number of refresh runs by result.",
		},
		[]string{"result"},
	)

	refreshDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "duration_seconds",
			Help:      "Duration of refresh runs.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		},
	)

	countriesProcessed = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "countries_processed",
			Help:      "Number of countries processed by the last successful refresh.",
		},
	)

	summaryRenders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "summary",
			Name:      "renders_total",
			Help:      "Total number of summary image renders by result.",
		},
		[]string{"result"},
	)

	summaryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "summary",
			Name:      "render_duration_seconds",
			Help:      "Duration of summary image renders.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		refreshRuns,
		refreshDuration,
		countriesProcessed,
		summaryRenders,
		summaryDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// IncInFlight and DecInFlight track requests currently being served.
func IncInFlight() { httpInFlight.Inc() }

func DecInFlight() { httpInFlight.Dec() }

// RecordHTTPRequest records one completed request. path should be a route
// template so label cardinality stays bounded.
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	method = strings.ToUpper(method)
	httpRequests.WithLabelValues(method, path, status).Inc()
	httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordRefresh records a refresh run. result is one of success,
// upstream_error, conflict or error.
func RecordRefresh(result string, processed int, duration time.Duration) {
	if duration <= 0 {
		duration = time.Millisecond
	}
	refreshRuns.WithLabelValues(result).Inc()
	refreshDuration.Observe(duration.Seconds())
	if result == "success" {
		countriesProcessed.Set(float64(processed))
	}
}

// RecordSummaryRender records a summary render attempt.
func RecordSummaryRender(success bool, duration time.Duration) {
	if duration <= 0 {
		duration = time.Millisecond
	}
	result := "failure"
	if success {
		result = "success"
	}
	summaryRenders.WithLabelValues(result).Inc()
	summaryDuration.Observe(duration.Seconds())
}
