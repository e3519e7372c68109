package statemachine

import (
	"context"
	"log/slog"
	"time"

	"github.com/amp-labs/osc/logger"
)

// Logger receives engine lifecycle events.
type Logger interface {
	ActionCompleted(ctx context.Context, state, next string, duration time.Duration)
	ActionFailed(ctx context.Context, state string, duration time.Duration, err error)
	TransitionRejected(ctx context.Context, from, to string)
	StateNotFound(ctx context.Context, state string)
}

// DefaultLogger writes engine events through logger.Get, so any fields
// attached to the context with logger.With are included.
type DefaultLogger struct{}

func (DefaultLogger) ActionCompleted(ctx context.Context, state, next string, duration time.Duration) {
	logger.Get(ctx).InfoContext(ctx, "Action completed",
		"state", state,
		"next_state", next,
		"duration_ms", duration.Milliseconds())
}

func (DefaultLogger) ActionFailed(ctx context.Context, state string, duration time.Duration, err error) {
	logger.Get(ctx).ErrorContext(ctx, "Action failed",
		"state", state,
		"duration_ms", duration.Milliseconds(),
		"error", err)
}

func (DefaultLogger) TransitionRejected(ctx context.Context, from, to string) {
	logger.Get(ctx).ErrorContext(ctx, "Action proposed a state outside the allowed set",
		"state", from,
		"next_state", to)
}

func (DefaultLogger) StateNotFound(ctx context.Context, state string) {
	logger.Get(ctx).ErrorContext(ctx, "No action registered for state", "state", state)
}

// NopLogger discards engine events.
type NopLogger struct{}

func (NopLogger) ActionCompleted(context.Context, string, string, time.Duration) {}
func (NopLogger) ActionFailed(context.Context, string, time.Duration, error)     {}
func (NopLogger) TransitionRejected(context.Context, string, string)             {}
func (NopLogger) StateNotFound(context.Context, string)                          {}

// SlogLogger writes engine events to a fixed *slog.Logger.
type SlogLogger struct {
	log *slog.Logger
}

// NewSlogLogger wraps l.
func NewSlogLogger(l *slog.Logger) *SlogLogger {
	return &SlogLogger{log: l}
}

func (s *SlogLogger) ActionCompleted(ctx context.Context, state, next string, duration time.Duration) {
	s.log.InfoContext(ctx, "Action completed", "state", state, "next_state", next, "duration", duration)
}

func (s *SlogLogger) ActionFailed(ctx context.Context, state string, duration time.Duration, err error) {
	s.log.ErrorContext(ctx, "Action failed", "state", state, "duration", duration, "error", err)
}

func (s *SlogLogger) TransitionRejected(ctx context.Context, from, to string) {
	s.log.ErrorContext(ctx, "Action proposed a state outside the allowed set", "state", from, "next_state", to)
}

func (s *SlogLogger) StateNotFound(ctx context.Context, state string) {
	s.log.ErrorContext(ctx, "No action registered for state", "state", state)
}
