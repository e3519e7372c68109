// Package lazy provides values that are computed on first use.
package lazy

import (
	"context"
	"sync"
	"sync/atomic"
)

// OfCtxErr is a lazy value whose initializer takes a context and can fail.
// A successful result is memoized; errors and panics are not, so the next
// Get runs the initializer again.
type OfCtxErr[T any] struct {
	create func(ctx context.Context) (T, error)
	value  T
	done   atomic.Bool
	calls  atomic.Int64
	m      sync.Mutex
}

// NewCtxErr creates a lazy value backed by f.
func NewCtxErr[T any](f func(ctx context.Context) (T, error)) *OfCtxErr[T] {
	return &OfCtxErr[T]{create: f}
}

// Get returns the memoized value, or runs the initializer under a lock.
// Concurrent callers wait for the in-flight initialization.
func (t *OfCtxErr[T]) Get(ctx context.Context) (T, error) { //nolint:ireturn
	if t.done.Load() {
		return t.value, nil
	}

	t.m.Lock()
	defer t.m.Unlock()

	if t.done.Load() {
		return t.value, nil
	}

	var zero T

	if t.create == nil {
		return zero, nil
	}

	t.calls.Add(1)

	value, err := t.create(ctx)
	if err != nil {
		return zero, err
	}

	t.value = value
	t.create = nil
	t.done.Store(true)

	return value, nil
}

// Initialized reports whether a value has been memoized.
func (t *OfCtxErr[T]) Initialized() bool {
	return t.done.Load()
}

// Calls returns how many times the initializer has been invoked.
func (t *OfCtxErr[T]) Calls() int64 {
	return t.calls.Load()
}
