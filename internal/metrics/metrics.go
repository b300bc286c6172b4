// Package metrics provides Prometheus instrumentation for the Companion platform.
package metrics

import (
	"context"
	"database/sql"
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
			Namespace: "companion",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "companion",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// BookingTransitionsTotal counts state-machine transitions by target status.
	BookingTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "companion",
			Name:      "booking_transitions_total",
			Help:      "Total booking state transitions by resulting status.",
		},
		[]string{"status"},
	)

	// BookingTransitionConflicts counts lost conditional-write races.
	BookingTransitionConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "companion",
			Name:      "booking_transition_conflicts_total",
			Help:      "Transitions rejected because the booking status changed concurrently.",
		},
	)

	// SweepTransitionsTotal counts bookings moved by the background sweeps.
	SweepTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "companion",
			Name:      "sweep_transitions_total",
			Help:      "Bookings transitioned by background sweeps, by sweep kind.",
		},
		[]string{"kind"},
	)

	// GatewayRequestDuration observes payment-gateway call latency by operation.
	GatewayRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "companion",
			Name:      "gateway_request_duration_seconds",
			Help:      "Payment gateway request duration in seconds by operation.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// GatewayErrorsTotal counts failed gateway calls by operation.
	GatewayErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "companion",
			Name:      "gateway_errors_total",
			Help:      "Failed payment gateway calls by operation.",
		},
		[]string{"operation"},
	)

	// DisputesResolvedTotal counts admin dispute resolutions by outcome.
	DisputesResolvedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "companion",
			Name:      "disputes_resolved_total",
			Help:      "Admin dispute resolutions by outcome.",
		},
		[]string{"resolution"},
	)

	// ActiveWebSocketClients tracks connected WebSocket clients.
	ActiveWebSocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "companion",
			Name:      "active_websocket_clients",
			Help:      "Number of currently connected WebSocket clients.",
		},
	)

	// DBOpenConnections tracks open database connections.
	DBOpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "companion", Name: "db_open_connections",
		Help: "Number of open database connections.",
	})
	// DBIdleConnections tracks idle database connections.
	DBIdleConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "companion", Name: "db_idle_connections",
		Help: "Number of idle database connections.",
	})
	// DBInUseConnections tracks in-use database connections.
	DBInUseConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "companion", Name: "db_in_use_connections",
		Help: "Number of in-use database connections.",
	})
	// GoroutineCount tracks the current number of goroutines.
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "companion", Name: "goroutines",
		Help: "Current number of goroutines.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		BookingTransitionsTotal,
		BookingTransitionConflicts,
		SweepTransitionsTotal,
		GatewayRequestDuration,
		GatewayErrorsTotal,
		DisputesResolvedTotal,
		ActiveWebSocketClients,
		DBOpenConnections,
		DBIdleConnections,
		DBInUseConnections,
		GoroutineCount,
	)
}

// Middleware returns a gin middleware that records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		// Use the route pattern, not the raw path, to bound cardinality.
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		status := c.Writer.Status()
		HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, httpStatusLabel(status)).Inc()
		HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler returns the Prometheus metrics endpoint handler.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// CollectDBStats starts a loop publishing database pool stats until ctx is done.
func CollectDBStats(ctx context.Context, db *sql.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := db.Stats()
			DBOpenConnections.Set(float64(stats.OpenConnections))
			DBIdleConnections.Set(float64(stats.Idle))
			DBInUseConnections.Set(float64(stats.InUse))
			GoroutineCount.Set(float64(runtime.NumGoroutine()))
		}
	}
}

func httpStatusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
