package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/amp-labs/osc/cli"
	"github.com/amp-labs/osc/service"
	"github.com/amp-labs/osc/shutdown"
	"github.com/amp-labs/osc/telemetry"
)

func newServeCmd(a *app) *cobra.Command {
	var reconcile time.Duration

	c := &cobra.Command{
		Use:   "serve",
		Short: "Run the trigger loop until interrupted",
		Long: `Serve starts the cron trigger facility, re-arms triggers for every active
task and keeps reconciling with the store, so tasks started by other oscctl
invocations against the same sqlite store are picked up.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := shutdown.SetupHandler(cmd.Context())

			if err := telemetry.Initialize(ctx, a.cfg.Telemetry()); err != nil {
				return err
			}

			if provider := telemetry.LoggerProvider(); provider != nil {
				if err := a.configureLogging(cmd.ErrOrStderr(), provider); err != nil {
					return err
				}
			}

			shutdown.BeforeShutdown(func() {
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()

				if err := telemetry.Shutdown(flushCtx); err != nil {
					slog.Error("Failed to flush telemetry", "error", err)
				}
			})

			svc, err := a.service(ctx)
			if err != nil {
				return err
			}

			svc.SetReconcileInterval(reconcile)

			fmt.Fprint(cmd.OutOrStdout(), cli.Box(cli.DefaultWidth,
				" oscctl "+a.version,
				" store:   "+a.cfg.Store.Driver,
				" trigger: "+a.cfg.Trigger.Spec,
			))

			return svc.Run(ctx)
		},
	}

	c.Flags().DurationVar(&reconcile, "reconcile-interval", service.DefaultReconcileInterval,
		"how often to re-arm triggers for active tasks")

	return c
}
