// Package bgworker runs keyed background jobs on a bounded pond pool.
// A job whose key is still running is skipped instead of queued, which is
// what the trigger facility needs to keep ticks for one task from overlapping.
package bgworker

import (
	"log/slog"
	"sync"

	"github.com/alitto/pond/v2"
	"go.uber.org/atomic"
)

const DefaultWorkerCount = 10

// Pool is a bounded worker pool with per-key exclusivity.
type Pool struct {
	pool    pond.Pool
	mu      sync.Mutex
	running map[string]struct{}
	skipped atomic.Int64
	started atomic.Int64
}

// New creates a pool with the given concurrency. Non-positive values fall
// back to DefaultWorkerCount.
func New(workers int) *Pool {
	if workers <= 0 {
		workers = DefaultWorkerCount
	}

	slog.Debug("Initializing background worker pool", "count", workers)

	return &Pool{
		pool:    pond.NewPool(workers),
		running: make(map[string]struct{}),
	}
}

// TryGo runs f in the pool unless another job with the same key has not
// finished yet. It reports whether f was accepted.
func (p *Pool) TryGo(key string, f func()) (bool, error) {
	p.mu.Lock()
	if _, busy := p.running[key]; busy {
		p.mu.Unlock()
		p.skipped.Inc()

		return false, nil
	}

	p.running[key] = struct{}{}
	p.mu.Unlock()

	err := p.pool.Go(func() {
		defer p.release(key)

		f()
	})
	if err != nil {
		p.release(key)

		return false, err
	}

	p.started.Inc()

	return true, nil
}

// Submit runs f without key exclusivity and returns a waitable task.
func (p *Pool) Submit(f func()) pond.Task { //nolint:ireturn
	return p.pool.Submit(f)
}

// Running reports whether a job for key is in flight.
func (p *Pool) Running(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, busy := p.running[key]

	return busy
}

// Skipped returns how many TryGo calls were rejected because the key was busy.
func (p *Pool) Skipped() int64 {
	return p.skipped.Load()
}

// Started returns how many keyed jobs were accepted.
func (p *Pool) Started() int64 {
	return p.started.Load()
}

// StopAndWait stops accepting work and waits for in-flight jobs.
func (p *Pool) StopAndWait() {
	slog.Debug("Stopping background worker pool")
	p.pool.StopAndWait()
	slog.Debug("Background worker pool stopped")
}

func (p *Pool) release(key string) {
	p.mu.Lock()
	delete(p.running, key)
	p.mu.Unlock()
}
