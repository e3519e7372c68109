// Package statemachine is a small action-driven finite state machine.
//
// Each registered state owns exactly one Action, a StateTransfer that turns
// the action's Result into the next state label, and the set of states it is
// allowed to move to. The Engine performs one step per Tick: it never loops,
// never sleeps, and never lets an action's failure escape to the caller.
// Persisting the outcome is delegated to Hooks so the same engine can drive
// any record layout.
package statemachine

import "context"

// Result is what an action reports after running once.
type Result struct {
	// NextState is the label the action proposes to move to. Returning the
	// current state means "still in progress, run me again next tick".
	NextState string
	// ExtraInfo is free-form diagnostic text persisted alongside the state.
	ExtraInfo string
}

// Action is a unit of work bound to one state.
type Action[C any] interface {
	Execute(ctx context.Context, c C) (Result, error)
}

// ActionFunc adapts a plain function to the Action interface.
type ActionFunc[C any] func(ctx context.Context, c C) (Result, error)

// Execute calls f.
func (f ActionFunc[C]) Execute(ctx context.Context, c C) (Result, error) {
	return f(ctx, c)
}

// Named is optionally implemented by actions that want a stable name in
// logs, metrics and diagrams.
type Named interface {
	Name() string
}

// StateTransfer maps an action result to the next state label. It must be pure.
type StateTransfer[C any] func(current string, result Result, c C) string

// DefaultTransfer takes the action's proposal verbatim.
func DefaultTransfer[C any](_ string, result Result, _ C) string {
	return result.NextState
}

// Hooks are the strategy points an engine instance is built with.
type Hooks[C any] interface {
	// ResolveState extracts the current state label from the context.
	ResolveState(c C) string
	// OnActionComplete persists a validated transition and runs its side effects.
	OnActionComplete(ctx context.Context, from, to, extraInfo string, c C) error
	// HandleError receives every error or panic raised by an action.
	HandleError(ctx context.Context, c C, state string, err error)
}
