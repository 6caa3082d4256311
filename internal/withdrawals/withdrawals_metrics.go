package withdrawals

import "github.com/prometheus/client_golang/prometheus"

var (
	RequestedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "trackrate",
			Name:      "withdrawals_requested_total",
			Help:      "Withdrawal requests accepted.",
		},
	)

	ReviewsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trackrate",
			Name:      "withdrawal_reviews_total",
			Help:      "Withdrawal reviews by final status.",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestedTotal,
		ReviewsTotal,
	)
}
