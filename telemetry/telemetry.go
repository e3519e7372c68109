// Package telemetry installs the global OpenTelemetry tracer and logger
// providers and the propagator used for tick and trigger spans.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

const defaultTimeout = 5 * time.Second

var (
	mu             sync.Mutex                //nolint:gochecknoglobals
	tracerProvider *sdktrace.TracerProvider //nolint:gochecknoglobals
	loggerProvider *sdklog.LoggerProvider   //nolint:gochecknoglobals
)

// Config holds the OpenTelemetry configuration.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Endpoint       string
	Enabled        bool
	Timeout        time.Duration
}

// Initialize exports spans and log records over OTLP/HTTP to config.Endpoint. It does
// nothing when tracing is disabled or no endpoint is configured.
func Initialize(ctx context.Context, config *Config) error {
	if !config.Enabled {
		slog.Info("OpenTelemetry tracing is disabled")

		return nil
	}

	if config.Endpoint == "" {
		slog.Warn("OpenTelemetry endpoint not configured, tracing will be disabled")

		return nil
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(config.Endpoint),
		otlptracehttp.WithTimeout(timeout),
	)
	if err != nil {
		return fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	if err := InitializeWithExporter(ctx, config, exporter); err != nil {
		return err
	}

	logExporter, err := otlploghttp.New(ctx,
		otlploghttp.WithEndpointURL(config.Endpoint),
		otlploghttp.WithTimeout(timeout),
	)
	if err != nil {
		return fmt.Errorf("failed to create OTLP log exporter: %w", err)
	}

	if err := InitializeLogsWithExporter(ctx, config, logExporter); err != nil {
		return err
	}

	slog.Info("OpenTelemetry tracing initialized",
		"service", config.ServiceName,
		"version", config.ServiceVersion,
		"environment", config.Environment,
		"endpoint", config.Endpoint,
	)

	return nil
}

func newResource(ctx context.Context, config *Config) (*resource.Resource, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(config.ServiceName),
			semconv.ServiceVersionKey.String(config.ServiceVersion),
			semconv.DeploymentEnvironmentKey.String(config.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	return res, nil
}

// InitializeWithExporter installs a batching tracer provider around exporter.
func InitializeWithExporter(ctx context.Context, config *Config, exporter sdktrace.SpanExporter) error {
	res, err := newResource(ctx, config)
	if err != nil {
		return err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	mu.Lock()
	tracerProvider = provider
	mu.Unlock()

	otel.SetTracerProvider(provider)

	// Trigger payloads carry the trace context across firings.
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return nil
}

// InitializeLogsWithExporter installs a batching logger provider around
// exporter. Hand LoggerProvider to the logger package to bridge slog into it.
func InitializeLogsWithExporter(ctx context.Context, config *Config, exporter sdklog.Exporter) error {
	res, err := newResource(ctx, config)
	if err != nil {
		return err
	}

	provider := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
		sdklog.WithResource(res),
	)

	mu.Lock()
	loggerProvider = provider
	mu.Unlock()

	global.SetLoggerProvider(provider)

	return nil
}

// LoggerProvider returns the installed logger provider, or nil when log
// export is not running.
func LoggerProvider() otellog.LoggerProvider {
	mu.Lock()
	defer mu.Unlock()

	if loggerProvider == nil {
		return nil
	}

	return loggerProvider
}

// ForceFlush exports all ended spans and emitted log records that have not
// been exported yet.
func ForceFlush(ctx context.Context) error {
	mu.Lock()
	traces, logs := tracerProvider, loggerProvider
	mu.Unlock()

	var errs []error

	if traces != nil {
		errs = append(errs, traces.ForceFlush(ctx))
	}

	if logs != nil {
		errs = append(errs, logs.ForceFlush(ctx))
	}

	return errors.Join(errs...)
}

// Shutdown flushes and stops the installed providers.
func Shutdown(ctx context.Context) error {
	mu.Lock()
	traces, logs := tracerProvider, loggerProvider
	tracerProvider, loggerProvider = nil, nil
	mu.Unlock()

	var errs []error

	if traces != nil {
		slog.Info("Shutting down OpenTelemetry tracer provider")

		errs = append(errs, traces.Shutdown(ctx))
	}

	if logs != nil {
		errs = append(errs, logs.Shutdown(ctx))
	}

	return errors.Join(errs...)
}
