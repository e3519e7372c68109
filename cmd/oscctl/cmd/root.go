// Package cmd holds the oscctl command tree.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	otellog "go.opentelemetry.io/otel/log"

	"github.com/amp-labs/osc/build"
	"github.com/amp-labs/osc/config"
	"github.com/amp-labs/osc/logger"
	"github.com/amp-labs/osc/osc/simulate"
	"github.com/amp-labs/osc/service"
)

type app struct {
	loader  *config.Loader
	cfgFile string
	version string

	cfg *config.Config
	svc *service.Service

	stdin io.ReadCloser
}

// NewRootCmd builds the oscctl command tree. Every call returns an
// independent tree with its own configuration.
func NewRootCmd(version string) *cobra.Command {
	a := &app{loader: config.NewLoader(), version: build.Read(version).String(), stdin: os.Stdin}

	root := &cobra.Command{
		Use:   "oscctl",
		Short: "Drive online schema change migrations",
		Long: `oscctl submits and drives online schema change tasks. Each task walks a
fixed state machine (ghost table, data copy, swap, cleanup) one tick at a
time. "oscctl serve" runs the trigger loop that ticks active tasks.`,
		Version:           a.version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.init,
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.close()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default: ./osc.yaml or ~/.config/osc/osc.yaml)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.Bool("log-json", false, "log as JSON")
	flags.String("store-driver", "memory", "task store (memory, sqlite)")
	flags.String("store-dsn", "osc.db", "sqlite database path")

	v := a.loader.Viper()
	_ = v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = v.BindPFlag("log.json", flags.Lookup("log-json"))
	_ = v.BindPFlag("store.driver", flags.Lookup("store-driver"))
	_ = v.BindPFlag("store.dsn", flags.Lookup("store-dsn"))

	root.AddCommand(
		newServeCmd(a),
		newSubmitCmd(a),
		newStartCmd(a),
		newCancelCmd(a),
		newResumeCmd(a),
		newSwapCmd(a),
		newTickCmd(a),
		newStatusCmd(a),
		newRateLimitCmd(a),
		newGraphCmd(a),
	)

	return root
}

func (a *app) init(cmd *cobra.Command, _ []string) error {
	if a.cfgFile != "" {
		a.loader.WithConfigFile(a.cfgFile)
	}

	cfg, err := a.loader.Load()
	if err != nil {
		return err
	}

	a.cfg = cfg

	return a.configureLogging(cmd.ErrOrStderr(), nil)
}

// configureLogging installs the process logger from the loaded config. A
// non-nil provider also receives every record over OTLP.
func (a *app) configureLogging(out io.Writer, provider otellog.LoggerProvider) error {
	level, err := logger.ParseLevel(a.cfg.Log.Level)
	if err != nil {
		return err
	}

	logger.ConfigureLoggingWithOptions(logger.Options{
		Subsystem:      "oscctl",
		JSON:           a.cfg.Log.JSON,
		MinLevel:       level,
		LegacyLevel:    slog.LevelInfo,
		Output:         out,
		LoggerProvider: provider,
	})

	return nil
}

// service opens the configured store and assembles the service once per
// command invocation.
func (a *app) service(ctx context.Context) (*service.Service, error) {
	if a.svc != nil {
		return a.svc, nil
	}

	st, err := service.OpenStore(ctx, a.cfg.Store)
	if err != nil {
		return nil, err
	}

	svc, err := service.New(a.cfg, st, service.Dependencies{
		Actions: simulate.Actions(simulate.Options{Polls: a.cfg.Simulate.Polls}),
	})
	if err != nil {
		_ = st.Close()

		return nil, err
	}

	a.svc = svc

	return svc, nil
}

func (a *app) close() error {
	if a.svc == nil {
		return nil
	}

	svc := a.svc
	a.svc = nil

	return svc.Close()
}

func parseID(name, arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive integer", name, arg)
	}

	return id, nil
}

func parseTaskArgs(args []string) (scheduleID, taskID int64, err error) {
	if scheduleID, err = parseID("schedule id", args[0]); err != nil {
		return 0, 0, err
	}

	if taskID, err = parseID("task id", args[1]); err != nil {
		return 0, 0, err
	}

	return scheduleID, taskID, nil
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
