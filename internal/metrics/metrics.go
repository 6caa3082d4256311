// Package metrics provides Prometheus instrumentation for the TrackRate platform.
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
			Namespace: "trackrate",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "trackrate",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// HTTPInFlight tracks requests currently being served.
	HTTPInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "trackrate",
		Name:      "http_requests_in_flight",
		Help:      "Number of HTTP requests currently being served.",
	})

	// TasksPlayedTotal counts completed review tasks by kind (regular/special).
	TasksPlayedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trackrate",
			Name:      "tasks_played_total",
			Help:      "Total review tasks marked played, by task kind.",
		},
		[]string{"kind"},
	)

	// TasksAssignedTotal counts fresh task assignments by selection source.
	TasksAssignedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trackrate",
			Name:      "tasks_assigned_total",
			Help:      "Total fresh task assignments by product selection source (band/fallback).",
		},
		[]string{"source"},
	)

	// SpecialTasksInjectedTotal counts admin special-task injections by result.
	SpecialTasksInjectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trackrate",
			Name:      "special_tasks_injected_total",
			Help:      "Total special-task injections by result.",
		},
		[]string{"result"},
	)

	// ReferralBonusesTotal counts referral bonus propagations by result.
	ReferralBonusesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trackrate",
			Name:      "referral_bonuses_total",
			Help:      "Total referral bonus propagations by result.",
		},
		[]string{"result"},
	)

	// DailyResetsTotal counts reset-scheduler passes.
	DailyResetsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "trackrate",
		Name:      "daily_resets_total",
		Help:      "Total daily reset passes executed.",
	})

	// DailyResetUsersTotal counts users touched by reset passes, by mode.
	DailyResetUsersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trackrate",
			Name:      "daily_reset_users_total",
			Help:      "Total users reset, by mode (full/preserved).",
		},
		[]string{"mode"},
	)

	// ActiveWebSocketClients tracks connected WebSocket clients.
	ActiveWebSocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "trackrate",
			Name:      "active_websocket_clients",
			Help:      "Number of currently connected WebSocket clients.",
		},
	)

	// PayoutsTotal counts on-chain withdrawal payouts by result.
	PayoutsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trackrate",
			Name:      "payouts_total",
			Help:      "Total withdrawal payout submissions by result.",
		},
		[]string{"result"},
	)

	// DBOpenConnections tracks open database connections.
	DBOpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "trackrate", Name: "db_open_connections",
		Help: "Number of open database connections.",
	})
	// DBIdleConnections tracks idle database connections.
	DBIdleConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "trackrate", Name: "db_idle_connections",
		Help: "Number of idle database connections.",
	})
	// DBInUseConnections tracks in-use database connections.
	DBInUseConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "trackrate", Name: "db_in_use_connections",
		Help: "Number of in-use database connections.",
	})
	// DBWaitCount tracks the total number of connections waited for.
	DBWaitCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "trackrate", Name: "db_wait_count_total",
		Help: "Total number of connections waited for.",
	})
	// DBWaitDuration tracks total time waited for connections.
	DBWaitDuration = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "trackrate", Name: "db_wait_duration_seconds_total",
		Help: "Total time waited for connections in seconds.",
	})
	// GoroutineCount tracks the current number of goroutines.
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "trackrate", Name: "goroutines",
		Help: "Current number of goroutines.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		HTTPInFlight,
		TasksPlayedTotal,
		TasksAssignedTotal,
		SpecialTasksInjectedTotal,
		ReferralBonusesTotal,
		DailyResetsTotal,
		DailyResetUsersTotal,
		ActiveWebSocketClients,
		PayoutsTotal,
		DBOpenConnections,
		DBIdleConnections,
		DBInUseConnections,
		DBWaitCount,
		DBWaitDuration,
		GoroutineCount,
	)
}

// StartDBStatsCollector periodically samples sql.DBStats and runtime goroutine
// count into Prometheus gauges. Call in a goroutine; exits when ctx is done.
func StartDBStatsCollector(ctx context.Context, db *sql.DB, interval time.Duration) {
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
			DBWaitCount.Set(float64(stats.WaitCount))
			DBWaitDuration.Set(stats.WaitDuration.Seconds())
			GoroutineCount.Set(float64(runtime.NumGoroutine()))
		}
	}
}

// Middleware returns a gin middleware that records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		HTTPInFlight.Inc()
		timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(), // Uses route pattern, not actual path (avoids cardinality explosion)
		))

		c.Next()

		timer.ObserveDuration()
		HTTPInFlight.Dec()
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
