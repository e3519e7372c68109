package trigger

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// MemoryFacility records triggers without any timer. Fire runs a trigger's
// handler synchronously, which is how tests and the one-shot CLI drive ticks.
type MemoryFacility struct {
	mu       sync.Mutex
	payloads map[string]Payload
	handler  Handler

	// DeleteErr, when set, is returned by Delete for existing keys.
	DeleteErr error
}

func NewMemoryFacility(handler Handler) *MemoryFacility {
	return &MemoryFacility{payloads: make(map[string]Payload), handler: handler}
}

func (m *MemoryFacility) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.payloads[key]

	return ok, nil
}

func (m *MemoryFacility) Create(_ context.Context, key string, p Payload) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.payloads[key]; ok {
		return fmt.Errorf("%w: %s", ErrExists, key)
	}

	m.payloads[key] = p

	return nil
}

func (m *MemoryFacility) UpdatePayload(_ context.Context, key string, p Payload) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.payloads[key]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	m.payloads[key] = p

	return nil
}

func (m *MemoryFacility) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.payloads[key]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	if m.DeleteErr != nil {
		return m.DeleteErr
	}

	delete(m.payloads, key)

	return nil
}

// Payload returns the payload stored under key.
func (m *MemoryFacility) Payload(key string) (Payload, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.payloads[key]

	return p, ok
}

// Keys returns the armed keys in sorted order.
func (m *MemoryFacility) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(m.payloads))
	for k := range m.payloads {
		keys = append(keys, k)
	}

	slices.Sort(keys)

	return keys
}

// Fire runs the handler for key in the calling goroutine.
func (m *MemoryFacility) Fire(ctx context.Context, key string) error {
	p, ok := m.Payload(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	if m.handler == nil {
		return nil
	}

	return m.handler(p.Context(ctx), p)
}
