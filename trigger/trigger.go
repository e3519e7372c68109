// Package trigger arms the periodic ticks that drive migration tasks. A
// Scheduler translates submit and cancel requests into operations on a
// Facility, which owns the actual timers.
package trigger

import (
	"context"
	"errors"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

var (
	// ErrNotFound is returned by a Facility for an unknown key.
	ErrNotFound = errors.New("trigger not found")
	// ErrExists is returned by Facility.Create for a key already in use.
	ErrExists = errors.New("trigger already exists")
	// ErrStopped is returned by CronFacility.Start once the facility has
	// been stopped. Its worker pool is drained and cannot run firings again.
	ErrStopped = errors.New("trigger facility stopped")
)

const keyPrefix = "osc-schedule-"

// Key names the trigger of a schedule. There is at most one per schedule.
func Key(scheduleID int64) string {
	return keyPrefix + strconv.FormatInt(scheduleID, 10)
}

// Payload is handed to the Handler on every firing.
type Payload struct {
	ScheduleID    int64             `json:"scheduleId"`
	TaskID        int64             `json:"taskId"`
	CorrelationID string            `json:"correlationId"`
	Carrier       map[string]string `json:"carrier,omitempty"`
}

// Context returns ctx with the trace context captured at submit time.
func (p Payload) Context(ctx context.Context) context.Context {
	if len(p.Carrier) == 0 {
		return ctx
	}

	return otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(p.Carrier))
}

// Handler runs one tick for a payload.
type Handler func(ctx context.Context, p Payload) error

// Facility stores periodic triggers by key.
type Facility interface {
	Exists(ctx context.Context, key string) (bool, error)
	// Create registers a trigger and enables it.
	Create(ctx context.Context, key string, p Payload) error
	UpdatePayload(ctx context.Context, key string, p Payload) error
	Delete(ctx context.Context, key string) error
}
