package osc

import "errors"

var (
	// ErrInvalidContext is returned when a tick cannot build a valid action
	// context from the persisted schedule and task.
	ErrInvalidContext = errors.New("failed to create valid action context")
	// ErrMissingAction means a registered state has no action.
	ErrMissingAction = errors.New("no action configured for state")
	// ErrNotAbnormal is returned by Resume for tasks that are not ABNORMAL.
	ErrNotAbnormal = errors.New("task is not abnormal")
	// ErrNoConnectionResolver is returned by ActionContext.Connection when
	// the machine was built without a resolver.
	ErrNoConnectionResolver = errors.New("no connection resolver configured")
	// ErrTaskTerminated is returned when a change is requested for a schedule
	// whose tasks have all reached a terminal status.
	ErrTaskTerminated = errors.New("task already terminated")
	// ErrNotManualSwap is returned by SwapTable for jobs that swap automatically.
	ErrNotManualSwap = errors.New("swap table type is not MANUAL")
	// ErrSwapNotReady is returned by SwapTable before the data copy is in sync.
	ErrSwapNotReady = errors.New("manual swap table is not enabled yet")
	// ErrSwapStarted is returned by SwapTable when the swap was already requested.
	ErrSwapStarted = errors.New("swap table has started")
	// ErrMissingDependency is returned by New when a required collaborator is nil.
	ErrMissingDependency = errors.New("missing dependency")
)
