package tasks

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// TasksAssignedTotal counts fresh regular assignments.
	TasksAssignedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "trackrate",
			Name:      "tasks_assigned_total",
			Help:      "Total fresh task assignments created by the engine.",
		},
	)

	// TasksPlayedTotal counts completed reviews by task kind.
	TasksPlayedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trackrate",
			Name:      "tasks_played_total",
			Help:      "Total tasks marked played, by kind.",
		},
		[]string{"kind"},
	)

	// TasksParkedTotal counts specials parked for insufficient balance at
	// play time.
	TasksParkedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "trackrate",
			Name:      "tasks_parked_total",
			Help:      "Total special tasks parked awaiting funds.",
		},
	)

	// SpecialsInjectedTotal counts admin-created special tasks.
	SpecialsInjectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "trackrate",
			Name:      "special_tasks_injected_total",
			Help:      "Total special tasks injected by administrators.",
		},
	)

	// SpecialsActivatedTotal counts specials reserved at presentation.
	SpecialsActivatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "trackrate",
			Name:      "special_tasks_activated_total",
			Help:      "Total special tasks that reserved funds on presentation.",
		},
	)

	// SetsCompletedTotal counts completed daily sets across all workers.
	SetsCompletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "trackrate",
			Name:      "sets_completed_total",
			Help:      "Total daily review sets completed.",
		},
	)

	// EligibilityRejectionsTotal counts play-gate rejections by reason.
	EligibilityRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trackrate",
			Name:      "eligibility_rejections_total",
			Help:      "Total play-gate rejections by reason.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(
		TasksAssignedTotal,
		TasksPlayedTotal,
		TasksParkedTotal,
		SpecialsInjectedTotal,
		SpecialsActivatedTotal,
		SetsCompletedTotal,
		EligibilityRejectionsTotal,
	)
}
