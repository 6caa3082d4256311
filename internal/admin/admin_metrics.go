package admin

import (
	"github.com/prometheus/client_golang/prometheus"
)

// AdminActionsTotal counts admin account operations by action name.
var AdminActionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "trackrate",
		Name:      "admin_actions_total",
		Help:      "Total admin account operations performed, by action.",
	},
	[]string{"action"},
)

func init() {
	prometheus.MustRegister(AdminActionsTotal)
}
