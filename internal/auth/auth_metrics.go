package auth

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// LoginsTotal counts successful logins by surface.
	LoginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trackrate",
			Name:      "logins_total",
			Help:      "Total successful logins by surface.",
		},
		[]string{"surface"},
	)
)

func init() {
	prometheus.MustRegister(LoginsTotal)
}
