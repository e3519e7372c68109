package statemachine

import (
	"context"
	"fmt"
	"time"
)

// Option configures an Engine.
type Option func(*options)

type options struct {
	name   string
	logger Logger
}

// WithName sets the machine label used in metrics and spans.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithLogger replaces DefaultLogger.
func WithLogger(l Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Engine runs one step of the state machine per Tick. It holds no per-run
// state; callers must not tick the same record concurrently.
type Engine[C any] struct {
	registry *Registry[C]
	hooks    Hooks[C]
	name     string
	logger   Logger
}

// NewEngine builds an engine over a finished registry.
func NewEngine[C any](registry *Registry[C], hooks Hooks[C], opts ...Option) (*Engine[C], error) {
	if registry == nil {
		return nil, ErrNilRegistry
	}

	if hooks == nil {
		return nil, ErrNilHooks
	}

	o := options{logger: DefaultLogger{}}
	for _, opt := range opts {
		opt(&o)
	}

	return &Engine[C]{
		registry: registry,
		hooks:    hooks,
		name:     o.name,
		logger:   o.logger,
	}, nil
}

// Registry returns the transition table the engine dispatches on.
func (e *Engine[C]) Registry() *Registry[C] {
	return e.registry
}

// Tick resolves the current state, runs its action, validates the proposed
// transition and hands it to OnActionComplete.
//
// An action error or panic is routed to HandleError and Tick returns nil.
// An unregistered state (*StateError wrapping ErrStateNotFound) or a proposal
// outside the allowed set (*TransitionError wrapping ErrTransitionNotAllowed)
// is returned and nothing is persisted. Errors from OnActionComplete are
// returned wrapped in a *TransitionError.
func (e *Engine[C]) Tick(ctx context.Context, c C) (err error) {
	state := e.hooks.ResolveState(c)

	ctx, span := startTickSpan(ctx, e.name, state)
	defer func() { endSpan(span, err) }()

	event, ok := e.registry.Lookup(state)
	if !ok {
		e.logger.StateNotFound(ctx, state)
		e.countTick(state, outcomeFatal)

		return WrapStateError(state, ErrStateNotFound)
	}

	start := time.Now()
	result, actionErr := e.execute(ctx, event, c)
	elapsed := time.Since(start)

	if actionErr != nil {
		actionDuration.WithLabelValues(sanitizeMachine(e.name), state, outcomeActionError).
			Observe(elapsed.Seconds())
		e.logger.ActionFailed(ctx, state, elapsed, actionErr)
		e.countTick(state, outcomeActionError)
		e.hooks.HandleError(ctx, c, state, actionErr)

		return nil
	}

	actionDuration.WithLabelValues(sanitizeMachine(e.name), state, outcomeTransition).
		Observe(elapsed.Seconds())

	next := event.Transfer(state, result, c)
	if !event.Allows(next) {
		e.logger.TransitionRejected(ctx, state, next)
		e.countTick(state, outcomeFatal)

		return WrapTransitionError(state, next, ErrTransitionNotAllowed)
	}

	e.logger.ActionCompleted(ctx, state, next, elapsed)

	if err := e.hooks.OnActionComplete(ctx, state, next, result.ExtraInfo, c); err != nil {
		e.countTick(state, outcomePersistFail)

		return WrapTransitionError(state, next, err)
	}

	transitionsTotal.WithLabelValues(sanitizeMachine(e.name), state, sanitizeState(next)).Inc()
	e.countTick(state, outcomeTransition)

	return nil
}

// execute runs the action, turning a panic into an ErrActionPanic error.
func (e *Engine[C]) execute(ctx context.Context, event *Event[C], c C) (result Result, err error) {
	ctx, span := startActionSpan(ctx, event.State, event.ActionName())

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrActionPanic, r)
		}

		endSpan(span, err)
	}()

	return event.Action.Execute(ctx, c)
}

func (e *Engine[C]) countTick(state, outcome string) {
	ticksTotal.WithLabelValues(sanitizeMachine(e.name), sanitizeState(state), outcome).Inc()
}
