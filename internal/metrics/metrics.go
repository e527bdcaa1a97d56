package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "customers_api"

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

	migrationsApplied = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "migration",
			Name:      "applied_total",
			Help:      "Total number of schema migration scripts applied by this process.",
		},
	)

	migrationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "migration",
			Name:      "script_duration_seconds",
			Help:      "Execution time of schema migration scripts.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)

	schemaVersion = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "migration",
			Name:      "schema_version",
			Help:      "Highest successfully applied schema version.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		migrationsApplied,
		migrationDuration,
		schemaVersion,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Middleware records HTTP metrics for each request using route template as path label.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Path() == "/metrics" {
				return next(c)
			}

			start := time.Now()
			httpInFlight.Inc()
			defer httpInFlight.Dec()

			// error is handled here so that status code of the written response is known
			if err := next(c); err != nil {
				c.Error(err)
			}
			status := c.Response().Status

			path := c.Path()
			if path == "" {
				path = "unmatched"
			}

			httpRequests.WithLabelValues(c.Request().Method, path, strconv.Itoa(status)).Inc()
			httpDuration.WithLabelValues(c.Request().Method, path).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}

// ObserveMigration records single applied migration script.
func ObserveMigration(duration time.Duration) {
	migrationsApplied.Inc()
	migrationDuration.Observe(duration.Seconds())
}

// SetSchemaVersion records highest successfully applied schema version.
func SetSchemaVersion(version uint) {
	schemaVersion.Set(float64(version))
}
