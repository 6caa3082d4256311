package notify

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// NotificationsTotal counts recorded notifications by kind.
	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trackrate",
			Name:      "notifications_total",
			Help:      "Total notifications recorded by kind.",
		},
		[]string{"kind"},
	)

	// AdminLogsTotal counts admin audit log entries.
	AdminLogsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "trackrate",
			Name:      "admin_logs_total",
			Help:      "Total admin audit log entries recorded.",
		},
	)
)

func init() {
	prometheus.MustRegister(NotificationsTotal, AdminLogsTotal)
}
