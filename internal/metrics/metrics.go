// Package metrics provides Prometheus instrumentation for LoginGuard.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "loginguard",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "loginguard",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// LoginsScored counts scoring operations by resulting risk level.
	LoginsScored = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "loginguard",
			Name:      "logins_scored_total",
			Help:      "Total login attempts scored, by risk level.",
		},
		[]string{"risk_level"},
	)

	// BlockDecisions counts blocking-policy outcomes.
	BlockDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "loginguard",
			Name:      "block_decisions_total",
			Help:      "Total blocking policy decisions, by outcome (blocked/allowed).",
		},
		[]string{"outcome"},
	)

	// AlertsCreated counts security alerts raised, by severity.
	AlertsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "loginguard",
			Name:      "alerts_created_total",
			Help:      "Total security alerts created, by severity.",
		},
		[]string{"severity"},
	)

	// StoreErrors counts external-store failures that were degraded fail-open.
	StoreErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "loginguard",
			Name:      "store_errors_total",
			Help:      "Total store call failures, by operation.",
		},
		[]string{"op"},
	)

	// ScoreDuration observes end-to-end scoring latency.
	ScoreDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "loginguard",
			Name:      "score_duration_seconds",
			Help:      "Duration of a full scoring call, including store reads.",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	// AuditEventsDropped counts audit events dropped by the async writer.
	AuditEventsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "loginguard",
			Name:      "audit_events_dropped_total",
			Help:      "Audit events dropped because the writer queue was full.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		LoginsScored,
		BlockDecisions,
		AlertsCreated,
		StoreErrors,
		ScoreDuration,
		AuditEventsDropped,
	)
}

// Middleware returns a Gin middleware that records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		// Use the route pattern, not the raw URL, to keep cardinality bounded.
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			path,
			strconv.Itoa(c.Writer.Status()),
		).Inc()

		HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			path,
		).Observe(time.Since(start).Seconds())
	}
}

// Handler returns the Prometheus scrape handler wrapped for Gin.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
