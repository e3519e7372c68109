package statemachine

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
)

// Event is one row of the transition table.
type Event[C any] struct {
	State    string
	Action   Action[C]
	Transfer StateTransfer[C]
	allowed  map[string]struct{}
}

// Allows reports whether next is in the allowed set of this state.
func (e *Event[C]) Allows(next string) bool {
	_, ok := e.allowed[next]

	return ok
}

// AllowedStates returns the allowed next states, sorted.
func (e *Event[C]) AllowedStates() []string {
	return slices.Sorted(maps.Keys(e.allowed))
}

// ActionName returns the action's Name() if it has one, else its Go type.
func (e *Event[C]) ActionName() string {
	return ActionName(e.Action)
}

// ActionName returns a's Name() if it has one, else its Go type.
func ActionName(a any) string {
	if n, ok := a.(Named); ok {
		return n.Name()
	}

	t := reflect.TypeOf(a)
	if t == nil {
		return "<nil>"
	}

	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	return t.Name()
}

// Registry is the per-state transition table. It is built once at startup
// and then only read, so it is safe to share between engines and goroutines
// once registration has finished.
type Registry[C any] struct {
	events map[string]*Event[C]
	order  []string
}

// NewRegistry creates an empty registry.
func NewRegistry[C any]() *Registry[C] {
	return &Registry[C]{events: make(map[string]*Event[C])}
}

// Register binds action and transfer to state with the given allowed next
// states. A nil transfer means DefaultTransfer. Registering the same state
// twice is a configuration error.
func (r *Registry[C]) Register(
	state string,
	action Action[C],
	transfer StateTransfer[C],
	allowedNext ...string,
) error {
	if state == "" {
		return ErrStateNameRequired
	}

	if action == nil {
		return WrapStateError(state, ErrNilAction)
	}

	if _, exists := r.events[state]; exists {
		return WrapStateError(state, ErrDuplicateState)
	}

	if transfer == nil {
		transfer = DefaultTransfer[C]
	}

	allowed := make(map[string]struct{}, len(allowedNext))
	for _, next := range allowedNext {
		allowed[next] = struct{}{}
	}

	r.events[state] = &Event[C]{
		State:    state,
		Action:   action,
		Transfer: transfer,
		allowed:  allowed,
	}
	r.order = append(r.order, state)

	return nil
}

// MustRegister is Register for static tables; it panics on error.
func (r *Registry[C]) MustRegister(
	state string,
	action Action[C],
	transfer StateTransfer[C],
	allowedNext ...string,
) {
	if err := r.Register(state, action, transfer, allowedNext...); err != nil {
		panic(fmt.Sprintf("statemachine: %v", err))
	}
}

// Lookup returns the event registered for state.
func (r *Registry[C]) Lookup(state string) (*Event[C], bool) {
	e, ok := r.events[state]

	return e, ok
}

// States returns the registered states in registration order.
func (r *Registry[C]) States() []string {
	return slices.Clone(r.order)
}

// Len returns the number of registered states.
func (r *Registry[C]) Len() int {
	return len(r.order)
}
