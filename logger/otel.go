package logger

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	otellog "go.opentelemetry.io/otel/log"
)

const defaultScope = "github.com/amp-labs/osc"

// teeHandler sends every record at or above minLevel to each handler that
// accepts it.
type teeHandler struct {
	minLevel slog.Leveler
	handlers []slog.Handler
}

func newOtelTee(base slog.Handler, minLevel slog.Leveler, scope string, provider otellog.LoggerProvider) *teeHandler {
	if scope == "" {
		scope = defaultScope
	}

	return &teeHandler{
		minLevel: minLevel,
		handlers: []slog.Handler{
			base,
			otelslog.NewHandler(scope, otelslog.WithLoggerProvider(provider)),
		},
	}
}

func (t *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if level < t.minLevel.Level() {
		return false
	}

	for _, h := range t.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}

	return false
}

func (t *teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error

	for _, h := range t.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}

		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (t *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return t.derive(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (t *teeHandler) WithGroup(name string) slog.Handler {
	return t.derive(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (t *teeHandler) derive(f func(slog.Handler) slog.Handler) *teeHandler {
	handlers := make([]slog.Handler, len(t.handlers))
	for i, h := range t.handlers {
		handlers[i] = f(h)
	}

	return &teeHandler{minLevel: t.minLevel, handlers: handlers}
}
