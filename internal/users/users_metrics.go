package users

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// SignupsTotal counts successful registrations.
	SignupsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "trackrate",
			Name:      "signups_total",
			Help:      "Total successful user registrations.",
		},
	)

	// ReferralMilestonesTotal counts referral accumulators crossing the
	// payout threshold.
	ReferralMilestonesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "trackrate",
			Name:      "referral_milestones_total",
			Help:      "Total referral bonus milestones reached.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		SignupsTotal,
		ReferralMilestonesTotal,
	)
}
