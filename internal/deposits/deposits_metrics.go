package deposits

import "github.com/prometheus/client_golang/prometheus"

var (
	// SubmittedTotal counts deposit submissions by method.
	SubmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trackrate",
			Name:      "deposits_submitted_total",
			Help:      "Total deposit requests submitted, by method.",
		},
		[]string{"method"},
	)

	// ReviewsTotal counts admin review decisions by resulting status.
	ReviewsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trackrate",
			Name:      "deposit_reviews_total",
			Help:      "Total deposit reviews, by resulting status.",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(
		SubmittedTotal,
		ReviewsTotal,
	)
}
