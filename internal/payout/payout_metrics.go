package payout

import "github.com/prometheus/client_golang/prometheus"

var SendsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "trackrate",
		Name:      "payout_sends_total",
		Help:      "On-chain payout attempts by outcome.",
	},
	[]string{"status"},
)

func init() {
	prometheus.MustRegister(SendsTotal)
}
