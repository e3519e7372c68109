package trigger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/atomic"

	"github.com/amp-labs/osc/bgworker"
	"github.com/amp-labs/osc/logger"
)

// DefaultSpec fires every trigger every ten seconds.
const DefaultSpec = "@every 10s"

type cronEntry struct {
	id      cron.EntryID
	payload Payload
}

// CronFacility fires triggers on a cron schedule and runs the handler on a
// bounded worker pool. A firing is dropped while the previous firing for the
// same key is still running, so ticks for one schedule never overlap.
type CronFacility struct {
	mu      sync.RWMutex
	cron    *cron.Cron
	spec    string
	entries map[string]*cronEntry
	pool    *bgworker.Pool
	handler Handler
	running atomic.Bool
	stopped atomic.Bool
	baseCtx context.Context //nolint:containedctx
}

// NewCronFacility checks spec and returns a facility that has not started.
func NewCronFacility(spec string, pool *bgworker.Pool, handler Handler) (*CronFacility, error) {
	if spec == "" {
		spec = DefaultSpec
	}

	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid trigger spec %q: %w", spec, err)
	}

	return &CronFacility{
		cron:    cron.New(),
		spec:    spec,
		entries: make(map[string]*cronEntry),
		pool:    pool,
		handler: handler,
		baseCtx: context.Background(),
	}, nil
}

// Start begins firing. Handlers run with a context derived from ctx.
// Starting a running facility is a no-op; a stopped one cannot restart.
func (c *CronFacility) Start(ctx context.Context) error {
	if c.stopped.Load() {
		return ErrStopped
	}

	if !c.running.CompareAndSwap(false, true) {
		return nil
	}

	c.mu.Lock()
	c.baseCtx = ctx
	c.mu.Unlock()

	c.cron.Start()

	logger.Get(ctx).Info("Cron trigger facility started", "spec", c.spec)

	return nil
}

// Stop stops firing, drains the worker pool and waits for running handlers,
// or for ctx to end. It is final: a later Start returns ErrStopped.
func (c *CronFacility) Stop(ctx context.Context) error {
	if !c.running.CompareAndSwap(true, false) {
		return nil
	}

	c.stopped.Store(true)

	select {
	case <-c.cron.Stop().Done():
	case <-ctx.Done():
		return ctx.Err()
	}

	done := make(chan struct{})

	go func() {
		c.pool.StopAndWait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *CronFacility) Exists(_ context.Context, key string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.entries[key]

	return ok, nil
}

func (c *CronFacility) Create(_ context.Context, key string, p Payload) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		return fmt.Errorf("%w: %s", ErrExists, key)
	}

	id, err := c.cron.AddFunc(c.spec, func() { c.fire(key) })
	if err != nil {
		return fmt.Errorf("adding cron entry for %s: %w", key, err)
	}

	c.entries[key] = &cronEntry{id: id, payload: p}

	return nil
}

func (c *CronFacility) UpdatePayload(_ context.Context, key string, p Payload) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	entry.payload = p

	return nil
}

func (c *CronFacility) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	c.cron.Remove(entry.id)
	delete(c.entries, key)

	return nil
}

// Keys returns the keys of all armed triggers.
func (c *CronFacility) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}

	return keys
}

// Fire runs key's handler now, through the pool, as if the schedule had
// fired. It reports whether the firing was accepted.
func (c *CronFacility) Fire(key string) bool {
	return c.fire(key)
}

func (c *CronFacility) fire(key string) bool {
	c.mu.RLock()
	entry, ok := c.entries[key]

	var payload Payload
	if ok {
		payload = entry.payload
	}

	base := c.baseCtx
	c.mu.RUnlock()

	if !ok {
		return false
	}

	accepted, err := c.pool.TryGo(key, func() {
		c.run(base, key, payload)
	})

	switch {
	case err != nil:
		firings.WithLabelValues("rejected").Inc()
		logger.Get(base).Error("Failed to schedule trigger firing", "key", key, "error", err)
	case !accepted:
		firings.WithLabelValues("skipped").Inc()
		logger.Get(base).Debug("Previous firing still running, skipping", "key", key)
	}

	return accepted
}

func (c *CronFacility) run(base context.Context, key string, payload Payload) {
	ctx := logger.With(payload.Context(base), "trigger", key, "correlation_id", payload.CorrelationID)

	ctx, span := otel.Tracer("github.com/amp-labs/osc/trigger").Start(ctx, "trigger.fire",
		trace.WithAttributes(
			attribute.String("osc.trigger.key", key),
			attribute.Int64("osc.schedule.id", payload.ScheduleID),
			attribute.Int64("osc.task.id", payload.TaskID),
		))
	defer span.End()

	start := time.Now()
	err := c.handler(ctx, payload)
	tickDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		firings.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Get(ctx).Error("Tick failed", "error", err)

		return
	}

	firings.WithLabelValues("ok").Inc()
}
