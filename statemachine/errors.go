package statemachine

import (
	"errors"
	"fmt"
)

// Configuration errors. These indicate a mismatch between actions and the
// registered transition table and are never retried.
var (
	ErrStateNotFound        = errors.New("state not registered")
	ErrTransitionNotAllowed = errors.New("transition not allowed")
	ErrDuplicateState       = errors.New("state registered twice")
	ErrStateNameRequired    = errors.New("state name is required")
	ErrNilAction            = errors.New("action is required")
	ErrNilRegistry          = errors.New("registry is required")
	ErrNilHooks             = errors.New("hooks are required")

	// ErrActionPanic wraps a value recovered from a panicking action.
	ErrActionPanic = errors.New("action panicked")
)

// StateError wraps an error with state context.
type StateError struct {
	State string
	Err   error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("state %s: %v", e.State, e.Err)
}

func (e *StateError) Unwrap() error {
	return e.Err
}

// TransitionError wraps an error with transition context.
type TransitionError struct {
	From string
	To   string
	Err  error
}

func (e *TransitionError) Error() string {
	if e.To == "" {
		return fmt.Sprintf("transition from %s: %v", e.From, e.Err)
	}

	return fmt.Sprintf("transition %s -> %s: %v", e.From, e.To, e.Err)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

// WrapStateError wraps an error with state context.
func WrapStateError(state string, err error) error {
	if err == nil {
		return nil
	}

	return &StateError{State: state, Err: err}
}

// WrapTransitionError wraps an error with transition context.
func WrapTransitionError(from, to string, err error) error {
	if err == nil {
		return nil
	}

	return &TransitionError{From: from, To: to, Err: err}
}
