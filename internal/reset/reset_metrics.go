package reset

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// DailyResetsTotal counts completed daily reset passes.
	DailyResetsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "trackrate",
			Name:      "daily_resets_total",
			Help:      "Total daily reset passes performed.",
		},
	)

	// ResetUsersTotal counts users touched by reset passes.
	ResetUsersTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "trackrate",
			Name:      "daily_reset_users_total",
			Help:      "Total users whose daily counters were reset.",
		},
	)

	// ResetPreservedTotal counts parked workers that kept their rank
	// across a reset.
	ResetPreservedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "trackrate",
			Name:      "daily_reset_preserved_total",
			Help:      "Total workers exempted from the submission reset.",
		},
	)
)

func init() {
	prometheus.MustRegister(DailyResetsTotal, ResetUsersTotal, ResetPreservedTotal)
}
