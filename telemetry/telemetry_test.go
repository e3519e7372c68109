package telemetry

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type memoryLogExporter struct {
	mu     sync.Mutex
	bodies []string
}

func (e *memoryLogExporter) Export(_ context.Context, records []sdklog.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, r := range records {
		e.bodies = append(e.bodies, r.Body().AsString())
	}

	return nil
}

func (e *memoryLogExporter) Shutdown(context.Context) error   { return nil }
func (e *memoryLogExporter) ForceFlush(context.Context) error { return nil }

func (e *memoryLogExporter) Bodies() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	return append([]string(nil), e.bodies...)
}

func TestInitializeDisabled(t *testing.T) {
	require.NoError(t, Initialize(t.Context(), &Config{Enabled: false, Endpoint: "http://collector:4318"}))
	require.NoError(t, Initialize(t.Context(), &Config{Enabled: true}))
	assert.Nil(t, LoggerProvider())
	require.NoError(t, Shutdown(t.Context()), "nothing to shut down")
}

func TestInitializeWithExporter(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()

	err := InitializeWithExporter(t.Context(), &Config{
		ServiceName:    "oscctl",
		ServiceVersion: "test",
		Environment:    "ci",
	}, exporter)
	require.NoError(t, err)

	_, span := otel.Tracer("telemetry-test").Start(context.Background(), "osc.tick")
	span.End()

	require.NoError(t, ForceFlush(t.Context()))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "osc.tick", spans[0].Name)
	assert.Contains(t, otel.GetTextMapPropagator().Fields(), "traceparent")

	require.NoError(t, Shutdown(t.Context()))
	require.NoError(t, Shutdown(t.Context()), "a second shutdown is a no-op")
	require.NoError(t, ForceFlush(t.Context()))
}

func TestInitializeLogsWithExporter(t *testing.T) {
	exporter := &memoryLogExporter{}

	err := InitializeLogsWithExporter(t.Context(), &Config{
		ServiceName:    "oscctl",
		ServiceVersion: "test",
		Environment:    "ci",
	}, exporter)
	require.NoError(t, err)

	provider := LoggerProvider()
	require.NotNil(t, provider)

	var record otellog.Record
	record.SetBody(otellog.StringValue("task 7 reached COMPLETE"))
	record.SetSeverity(otellog.SeverityInfo)
	provider.Logger("telemetry-test").Emit(t.Context(), record)

	require.NoError(t, ForceFlush(t.Context()))
	assert.Equal(t, []string{"task 7 reached COMPLETE"}, exporter.Bodies())

	require.NoError(t, Shutdown(t.Context()))
	assert.Nil(t, LoggerProvider())
}
