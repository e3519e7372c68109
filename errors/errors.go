// Package errors holds error sentinels shared across packages and a small
// accumulator for reporting several independent failures at once.
package errors

import "errors"

var (
	// ErrValidation is wrapped around every error produced by validate.Validate.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned by stores when a record does not exist.
	ErrNotFound = errors.New("not found")
)

// Collection accumulates errors from a batch of independent operations.
// It is not safe for concurrent use.
type Collection struct {
	errors []error
}

// Add appends err. Nil errors are ignored.
func (c *Collection) Add(err error) {
	if err != nil {
		c.errors = append(c.errors, err)
	}
}

// HasError reports whether at least one error was added.
func (c *Collection) HasError() bool {
	return len(c.errors) > 0
}

// Len returns the number of collected errors.
func (c *Collection) Len() int {
	return len(c.errors)
}

// GetError returns nil, the single error, or an errors.Join of all of them.
func (c *Collection) GetError() error {
	switch len(c.errors) {
	case 0:
		return nil
	case 1:
		return c.errors[0]
	default:
		return errors.Join(c.errors...)
	}
}
