// Package shutdown turns SIGINT/SIGTERM into context cancellation and runs
// registered hooks (stop the cron facility, drain the worker pool, flush
// traces, close the store) before the root context is canceled.
package shutdown

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

var (
	mut     sync.Mutex     //nolint:gochecknoglobals
	hooks   []func()       //nolint:gochecknoglobals
	channel chan os.Signal //nolint:gochecknoglobals
)

// BeforeShutdown registers h to run before the root context is canceled.
// Hooks run in registration order.
func BeforeShutdown(h func()) {
	mut.Lock()
	defer mut.Unlock()

	hooks = append(hooks, h)
}

// Shutdown triggers the shutdown sequence programmatically.
func Shutdown() {
	mut.Lock()
	ch := channel
	mut.Unlock()

	if ch != nil {
		select {
		case ch <- os.Interrupt:
		default:
		}
	}
}

// SetupHandler installs the signal handler and returns a context canceled
// once the hooks have run.
func SetupHandler(parent context.Context) context.Context {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)

	mut.Lock()
	channel = ch
	mut.Unlock()

	ctx, cancel := context.WithCancel(parent)

	go func() {
		sig := <-ch

		slog.Warn("Received " + sig.String() + ", shutting down...")
		signal.Stop(ch)

		mut.Lock()
		channel = nil
		mut.Unlock()

		runHooks()
		cancel()
	}()

	return ctx
}

func runHooks() {
	mut.Lock()
	pending := hooks
	hooks = nil
	mut.Unlock()

	for _, h := range pending {
		h()
	}
}
