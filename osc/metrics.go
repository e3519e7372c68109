package osc

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	guardOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "osc_guard_outcomes_total",
		Help: "Guard evaluations by guard and outcome kind",
	}, []string{"guard", "kind"})

	statusChanges = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "osc_task_status_changes_total",
		Help: "Task status writes by target status",
	}, []string{"status"})
)
