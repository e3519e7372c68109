// Package logger configures slog for the process and carries structured
// fields (schedule id, task id, state, ...) through context.Context.
package logger

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	otellog "go.opentelemetry.io/otel/log"

	"github.com/amp-labs/osc/shutdown"
)

// Default subsystem name, set by ConfigureLoggingWithOptions.
var subsystem atomic.Value //nolint:gochecknoglobals

// configMutex serializes ConfigureLoggingWithOptions, which mutates slog and log defaults.
var configMutex sync.Mutex //nolint:gochecknoglobals

type contextKey string

// Fatal logs an error message, runs shutdown hooks and exits.
func Fatal(msg string, args ...any) {
	slog.Error(msg, args...)

	shutdown.Shutdown()

	time.Sleep(time.Second)

	os.Exit(1)
}

// Options is used to configure logging.
type Options struct {
	Subsystem      string
	JSON           bool
	MinLevel       slog.Level
	LegacyLevel    slog.Level
	Output         io.Writer
	// LoggerProvider, when set, also receives every record through the
	// OpenTelemetry slog bridge.
	LoggerProvider otellog.LoggerProvider
}

// ConfigureLoggingWithOptions installs a text or JSON slog handler as the
// process default and redirects the legacy log package into it.
func ConfigureLoggingWithOptions(opts Options) *slog.Logger {
	configMutex.Lock()
	defer configMutex.Unlock()

	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	handlerOpts := &slog.HandlerOptions{Level: opts.MinLevel}

	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(opts.Output, handlerOpts)
	} else {
		handler = slog.NewTextHandler(opts.Output, handlerOpts)
	}

	if opts.LoggerProvider != nil {
		handler = newOtelTee(handler, opts.MinLevel, opts.Subsystem, opts.LoggerProvider)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	// Third party packages still on the log package end up in the same handler.
	def := log.Default()
	*def = *slog.NewLogLogger(handler, opts.LegacyLevel)

	subsystem.Store(opts.Subsystem)

	return logger
}

// ParseLevel maps a config string (debug, info, warn, error) to a slog level.
func ParseLevel(level string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	return lvl, nil
}

// WithMuted suppresses all output from loggers obtained via Get(ctx).
func WithMuted(ctx context.Context, muted bool) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	return context.WithValue(ctx, contextKey("mute"), muted)
}

func isMuted(ctx context.Context) bool {
	muted, ok := ctx.Value(contextKey("mute")).(bool)

	return ok && muted
}

// WithSubsystem overrides the subsystem field for loggers obtained from ctx.
func WithSubsystem(ctx context.Context, subsystem string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	return context.WithValue(ctx, contextKey("subsystem"), subsystem)
}

// GetSubsystem returns the subsystem from ctx, or the configured default.
func GetSubsystem(ctx context.Context) string { //nolint:contextcheck
	if ctx == nil {
		ctx = context.Background()
	}

	if val, ok := ctx.Value(contextKey("subsystem")).(string); ok {
		return val
	}

	if val, ok := subsystem.Load().(string); ok {
		return val
	}

	return ""
}

// hostname is the pod name under k8s and the machine name elsewhere.
var hostname = sync.OnceValue(func() string { //nolint:gochecknoglobals
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}

	return h
})

// GetPodName returns the pod name (or hostname if not running in k8s).
func GetPodName() string {
	return hostname()
}

type nullHandler struct{}

func (n *nullHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (n *nullHandler) Handle(context.Context, slog.Record) error { return nil }
func (n *nullHandler) WithAttrs([]slog.Attr) slog.Handler        { return n }
func (n *nullHandler) WithGroup(string) slog.Handler             { return n }

var nullLogger = slog.New(&nullHandler{}) //nolint:gochecknoglobals

// Get returns the default logger decorated with the subsystem, the pod name
// and every value attached to ctx with With.
//
//nolint:contextcheck
func Get(ctx ...context.Context) *slog.Logger {
	realCtx := context.Background()

	for _, c := range ctx {
		if c != nil {
			realCtx = c //nolint:fatcontext

			break
		}
	}

	if isMuted(realCtx) {
		return nullLogger
	}

	logger := slog.Default().With(
		"subsystem", GetSubsystem(realCtx),
		"pod", hostname())

	if vals := getValues(realCtx); vals != nil {
		logger = logger.With(vals...)
	}

	return logger
}

// With returns a context whose loggers carry the given key/value pairs.
func With(ctx context.Context, values ...any) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	if len(values) == 0 {
		return ctx
	}

	existing := getValues(ctx)
	vals := make([]any, 0, len(existing)+len(values))
	vals = append(vals, existing...)
	vals = append(vals, values...)

	return context.WithValue(ctx, contextKey("loggerValues"), vals)
}

func getValues(ctx context.Context) []any {
	if vals, ok := ctx.Value(contextKey("loggerValues")).([]any); ok {
		return vals
	}

	return nil
}
