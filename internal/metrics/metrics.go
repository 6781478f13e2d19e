// Package metrics provides Prometheus instrumentation for the hotspot console.
package metrics

import (
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hotspot",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hotspot",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// BackendRequestsTotal counts calls through the API gateway client
	// by endpoint group and outcome (ok, api_error, network_error, request_error).
	BackendRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hotspot",
			Name:      "backend_requests_total",
			Help:      "Total billing-backend requests by endpoint group and outcome.",
		},
		[]string{"endpoint", "outcome"},
	)

	// CoARequestsTotal counts session-control commands by operation and result.
	CoARequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hotspot",
			Name:      "coa_requests_total",
			Help:      "Total RADIUS change-of-authorization commands by operation and result.",
		},
		[]string{"operation", "result"},
	)

	// PaymentsInitiatedTotal counts payment initiations by gateway rail.
	PaymentsInitiatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hotspot",
			Name:      "payments_initiated_total",
			Help:      "Total payment initiations by gateway.",
		},
		[]string{"gateway"},
	)

	// PaymentsFinishedTotal counts payments reaching a terminal status.
	PaymentsFinishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hotspot",
			Name:      "payments_finished_total",
			Help:      "Total payments reaching a terminal status (completed, failed, timeout).",
		},
		[]string{"status"},
	)

	// PlanFallbacksTotal counts plan-catalogue requests served from the bundled demo set.
	PlanFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "hotspot",
			Name:      "plan_fallbacks_total",
			Help:      "Total plan lookups degraded to the bundled demo catalogue.",
		},
	)

	// CheckoutTransitionsTotal counts purchase-flow step transitions.
	CheckoutTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hotspot",
			Name:      "checkout_transitions_total",
			Help:      "Total purchase-flow transitions by from-step and to-step.",
		},
		[]string{"from", "to"},
	)

	// ActiveCheckouts tracks in-progress checkout flows held by the portal.
	ActiveCheckouts = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "hotspot", Name: "active_checkouts",
		Help: "Number of in-progress checkout flows.",
	})

	// GoroutineCount tracks the current number of goroutines.
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "hotspot", Name: "goroutines",
		Help: "Current number of goroutines.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		BackendRequestsTotal,
		CoARequestsTotal,
		PaymentsInitiatedTotal,
		PaymentsFinishedTotal,
		PlanFallbacksTotal,
		CheckoutTransitionsTotal,
		ActiveCheckouts,
		GoroutineCount,
	)
}

// StartRuntimeCollector periodically samples the goroutine count into its
// gauge. Call in a goroutine; exits when stop is closed.
func StartRuntimeCollector(stop <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			GoroutineCount.Set(float64(runtime.NumGoroutine()))
		}
	}
}

// Middleware returns a gin middleware that records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(), // Uses route pattern, not actual path (avoids cardinality explosion)
		))

		c.Next()

		timer.ObserveDuration()
		HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			statusBucket(c.Writer.Status()),
		).Inc()
	}
}

// Handler returns the Prometheus metrics HTTP handler for /metrics endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// statusBucket groups HTTP status codes into buckets (2xx, 3xx, 4xx, 5xx).
func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
