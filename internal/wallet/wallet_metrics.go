package wallet

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// WalletOpsTotal counts wallet operations by type.
	WalletOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trackrate",
			Name:      "wallet_operations_total",
			Help:      "Total wallet operations by type.",
		},
		[]string{"type"},
	)

	// WalletOpDuration observes operation latency by type.
	WalletOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "trackrate",
			Name:      "wallet_operation_duration_seconds",
			Help:      "Wallet operation duration in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		},
		[]string{"type"},
	)

	// WalletHoldsActive tracks how many wallets currently have funds on hold.
	WalletHoldsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "trackrate",
			Name:      "wallet_holds_active",
			Help:      "Number of wallets with a positive on-hold amount.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		WalletOpsTotal,
		WalletOpDuration,
		WalletHoldsActive,
	)
}

// observeOp increments the operation counter and returns a function to observe duration.
func observeOp(opType string) func() {
	WalletOpsTotal.WithLabelValues(opType).Inc()
	start := time.Now()
	return func() {
		WalletOpDuration.WithLabelValues(opType).Observe(time.Since(start).Seconds())
	}
}
