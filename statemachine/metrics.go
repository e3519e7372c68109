package statemachine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Tick outcomes.
const (
	outcomeTransition  = "transition"
	outcomeActionError = "action_error"
	outcomeFatal       = "fatal"
	outcomePersistFail = "persist_error"
)

var (
	// ticksTotal counts ticks by machine, resolved state and outcome.
	ticksTotal = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "osc_fsm_ticks_total",
		Help: "Total number of engine ticks by machine, state and outcome",
	}, []string{"machine", "state", "outcome"})

	// transitionsTotal counts validated transitions.
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "osc_fsm_transitions_total",
		Help: "Total number of validated state transitions by machine, from_state and to_state",
	}, []string{"machine", "from_state", "to_state"})

	// actionDuration tracks how long each state's action takes.
	actionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{ //nolint:gochecknoglobals
		Name:    "osc_fsm_action_duration_seconds",
		Help:    "Duration of action execution by machine, state and outcome",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"machine", "state", "outcome"})
)

func sanitizeState(state string) string {
	if state == "" {
		return "unknown"
	}

	return state
}

func sanitizeMachine(name string) string {
	if name == "" {
		return "default"
	}

	return name
}
