package osc

import (
	"context"
	"fmt"

	"github.com/amp-labs/osc/statemachine"
)

// Action is a migration step bound to one state.
type Action = statemachine.Action[*ActionContext]

// Transfer maps an action result to the next state.
type Transfer = statemachine.StateTransfer[*ActionContext]

// Actions holds one action per non-terminal state. Transfers optionally
// override the default result-to-state mapping per state.
type Actions struct {
	YieldContext      Action
	CreateGhostTables Action
	CreateDataTask    Action
	MonitorDataTask   Action
	ModifyDataTask    Action
	SwapTable         Action
	CleanResource     Action

	Transfers map[State]Transfer
}

func (a Actions) forState(s State) Action {
	switch s {
	case StateYieldContext:
		return a.YieldContext
	case StateCreateGhostTables:
		return a.CreateGhostTables
	case StateCreateDataTask:
		return a.CreateDataTask
	case StateMonitorDataTask:
		return a.MonitorDataTask
	case StateModifyDataTask:
		return a.ModifyDataTask
	case StateSwapTable:
		return a.SwapTable
	case StateCleanResource:
		return a.CleanResource
	default:
		return nil
	}
}

func (a Actions) transferFor(s State) Transfer {
	if t, ok := a.Transfers[s]; ok && t != nil {
		return t
	}

	if s == StateMonitorDataTask {
		return MonitorTransfer
	}

	return statemachine.DefaultTransfer[*ActionContext]
}

// NewRegistry registers every action against the migration transition table.
func NewRegistry(actions Actions) (*statemachine.Registry[*ActionContext], error) {
	registry := statemachine.NewRegistry[*ActionContext]()

	for _, state := range registrationOrder {
		action := actions.forState(state)
		if action == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingAction, state)
		}

		allowed := make([]string, 0, len(transitions[state]))
		for _, next := range transitions[state] {
			allowed = append(allowed, string(next))
		}

		if err := registry.Register(string(state), action, actions.transferFor(state), allowed...); err != nil {
			return nil, err
		}
	}

	return registry, nil
}

// YieldContextAction is the default action of StateYieldContext. Start
// normally moves a task past this state, so the action only runs for tasks
// that were armed without being started.
type YieldContextAction struct{}

func (YieldContextAction) Name() string { return "yield-context" }

func (YieldContextAction) Execute(context.Context, *ActionContext) (statemachine.Result, error) {
	return statemachine.Result{NextState: string(StateCreateGhostTables)}, nil
}

// MonitorTransfer sends a monitoring task to StateModifyDataTask while the
// job's rate limit differs from the one the data task was configured with.
// Any other proposal is taken as is.
func MonitorTransfer(current string, result statemachine.Result, actx *ActionContext) string {
	if result.NextState != current {
		return result.NextState
	}

	if actx.Job.RateLimit != actx.Params.RateLimit {
		return string(StateModifyDataTask)
	}

	return result.NextState
}
