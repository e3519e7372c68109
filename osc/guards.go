package osc

import (
	"context"
	"fmt"
	"time"

	"github.com/amp-labs/osc/store"
)

// DefaultTaskTTL is how long a task may run before it is failed and cleaned up.
const DefaultTaskTTL = 432000 * time.Second

// GuardKind tags a GuardOutcome.
type GuardKind int

const (
	// Continue lets the tick dispatch the current state's action.
	Continue GuardKind = iota
	// ForceTransition persists State and Status instead of running the action.
	ForceTransition
	// Skip ends the tick without any change.
	Skip
)

func (k GuardKind) String() string {
	switch k {
	case Continue:
		return "continue"
	case ForceTransition:
		return "force_transition"
	case Skip:
		return "skip"
	default:
		return fmt.Sprintf("GuardKind(%d)", int(k))
	}
}

// GuardOutcome is the verdict of a Guard.
type GuardOutcome struct {
	Kind   GuardKind
	State  State
	Status store.TaskStatus
	// Reason is logged and, for forced transitions, stored as the task's extraInfo.
	Reason string
}

func proceed() GuardOutcome {
	return GuardOutcome{Kind: Continue}
}

func forceCleanup(status store.TaskStatus, reason string) GuardOutcome {
	return GuardOutcome{Kind: ForceTransition, State: StateCleanResource, Status: status, Reason: reason}
}

// Guard is a pre-dispatch check. Guards never run in StateCleanResource.
type Guard interface {
	Name() string
	Check(ctx context.Context, actx *ActionContext) (GuardOutcome, error)
}

// ExpiredGuard fails tasks that have been alive for longer than TTL.
type ExpiredGuard struct {
	TTL time.Duration
}

func (ExpiredGuard) Name() string { return "expired" }

func (g ExpiredGuard) Check(_ context.Context, actx *ActionContext) (GuardOutcome, error) {
	ttl := g.TTL
	if ttl <= 0 {
		ttl = DefaultTaskTTL
	}

	elapsed := int64(actx.Now.Sub(actx.Task.CreatedAt) / time.Second)
	if elapsed > int64(ttl/time.Second) {
		return forceCleanup(store.StatusFailed,
			fmt.Sprintf("task expired after %ds, limit %ds", elapsed, int64(ttl/time.Second))), nil
	}

	return proceed(), nil
}

// CanceledGuard routes tasks canceled by a user to cleanup.
type CanceledGuard struct{}

func (CanceledGuard) Name() string { return "canceled" }

func (CanceledGuard) Check(_ context.Context, actx *ActionContext) (GuardOutcome, error) {
	if actx.Task.Status == store.StatusCanceled {
		return forceCleanup(store.StatusCanceled, "task canceled"), nil
	}

	return proceed(), nil
}

// UpstreamGuard cancels tasks whose upstream workflow is gone. Jobs without
// a flow instance pass.
type UpstreamGuard struct {
	Lookup UpstreamLookup
}

func (UpstreamGuard) Name() string { return "upstream" }

func (g UpstreamGuard) Check(ctx context.Context, actx *ActionContext) (GuardOutcome, error) {
	if g.Lookup == nil || actx.Job.FlowInstanceID == 0 {
		return proceed(), nil
	}

	status, err := g.Lookup.FlowStatus(ctx, actx.Job.FlowInstanceID)
	if err != nil {
		return GuardOutcome{}, fmt.Errorf("looking up flow instance %d: %w", actx.Job.FlowInstanceID, err)
	}

	if status.Aborted() {
		return forceCleanup(store.StatusCanceled,
			fmt.Sprintf("flow instance %d is %s", actx.Job.FlowInstanceID, status)), nil
	}

	return proceed(), nil
}

// AbnormalGuard halts tasks that crashed until an operator resumes them.
type AbnormalGuard struct{}

func (AbnormalGuard) Name() string { return "abnormal" }

func (AbnormalGuard) Check(_ context.Context, actx *ActionContext) (GuardOutcome, error) {
	if actx.Task.Status == store.StatusAbnormal {
		return GuardOutcome{Kind: Skip, Reason: "task is abnormal"}, nil
	}

	return proceed(), nil
}

// DefaultGuards returns the guards in the order they must be evaluated.
func DefaultGuards(ttl time.Duration, upstream UpstreamLookup) []Guard {
	return []Guard{
		ExpiredGuard{TTL: ttl},
		CanceledGuard{},
		UpstreamGuard{Lookup: upstream},
		AbnormalGuard{},
	}
}

// evaluate returns the first outcome that is not Continue.
func evaluate(ctx context.Context, guards []Guard, actx *ActionContext) (GuardOutcome, string, error) {
	for _, g := range guards {
		outcome, err := g.Check(ctx, actx)
		if err != nil {
			return GuardOutcome{}, g.Name(), err
		}

		guardOutcomes.WithLabelValues(g.Name(), outcome.Kind.String()).Inc()

		if outcome.Kind != Continue {
			return outcome, g.Name(), nil
		}
	}

	return proceed(), "", nil
}
