// Package osc drives an online schema change task through its lifecycle:
// create ghost tables, start a remote data migration job, monitor it, swap
// the tables and clean up. Every tick is a single step of a state machine
// whose current state is persisted inside the task's parameters.
package osc

import "slices"

// State is a label of the migration state machine.
type State string

const (
	// StateYieldContext is the initial state; a fresh task waits here until started.
	StateYieldContext      State = "YIELD_CONTEXT"
	StateCreateGhostTables State = "CREATE_GHOST_TABLES"
	StateCreateDataTask    State = "CREATE_DATA_TASK"
	StateMonitorDataTask   State = "MONITOR_DATA_TASK"
	StateModifyDataTask    State = "MODIFY_DATA_TASK"
	StateSwapTable         State = "SWAP_TABLE"
	// StateCleanResource releases remote resources. It is reachable from
	// every state and is the only state allowed to run once a task has been
	// judged expired, canceled or orphaned.
	StateCleanResource State = "CLEAN_RESOURCE"
	// StateComplete is terminal and has no action.
	StateComplete State = "COMPLETE"
)

// transitions is the allowed-next table, self loops included.
var transitions = map[State][]State{ //nolint:gochecknoglobals
	StateYieldContext:      {StateCreateGhostTables, StateComplete},
	StateCreateGhostTables: {StateCreateGhostTables, StateCreateDataTask, StateComplete},
	StateCreateDataTask:    {StateCreateDataTask, StateMonitorDataTask, StateComplete},
	StateMonitorDataTask:   {StateMonitorDataTask, StateModifyDataTask, StateSwapTable, StateComplete},
	StateModifyDataTask:    {StateModifyDataTask, StateMonitorDataTask, StateComplete},
	StateSwapTable:         {StateSwapTable, StateCleanResource, StateComplete},
	StateCleanResource:     {StateCleanResource, StateYieldContext, StateComplete},
}

// registrationOrder is the order states are registered and drawn in.
var registrationOrder = []State{ //nolint:gochecknoglobals
	StateYieldContext,
	StateCreateGhostTables,
	StateCreateDataTask,
	StateMonitorDataTask,
	StateModifyDataTask,
	StateSwapTable,
	StateCleanResource,
}

// AllStates returns every state, terminal last.
func AllStates() []State {
	return append(slices.Clone(registrationOrder), StateComplete)
}

// AllowedNext returns the states s may move to.
func AllowedNext(s State) []State {
	return slices.Clone(transitions[s])
}

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	return s == StateComplete || slices.Contains(registrationOrder, s)
}

func (s State) String() string {
	return string(s)
}
