package statemachine

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/amp-labs/osc/statemachine"

// startTickSpan opens the span covering one engine tick. The caller ends it.
//
//nolint:spancheck
func startTickSpan(ctx context.Context, machine, state string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "statemachine.tick",
		trace.WithAttributes(
			attribute.String("machine", sanitizeMachine(machine)),
			attribute.String("state", sanitizeState(state)),
		))
}

// startActionSpan opens a child span around Action.Execute. The caller ends it.
//
//nolint:spancheck
func startActionSpan(ctx context.Context, state, action string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "action."+action,
		trace.WithAttributes(
			attribute.String("state", state),
			attribute.String("action", action),
		))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End()
}
