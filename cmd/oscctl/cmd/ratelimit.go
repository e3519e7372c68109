package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/amp-labs/osc/osc"
)

func newRateLimitCmd(a *app) *cobra.Command {
	var limit osc.RateLimitConfig

	c := &cobra.Command{
		Use:   "rate-limit SCHEDULE_ID",
		Short: "Change the data copy rate limit of a running schedule",
		Long: `Rate-limit rewrites the schedule's rate limit. A task that is monitoring its
data copy applies the new limit on its next tick.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scheduleID, err := parseID("schedule id", args[0])
			if err != nil {
				return err
			}

			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}

			if err := svc.Machine.UpdateRateLimit(cmd.Context(), scheduleID, limit); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "schedule %d rows=%d bytes=%d\n",
				scheduleID, limit.RowLimit, limit.DataSizeLimit)

			return nil
		},
	}

	c.Flags().IntVar(&limit.RowLimit, "rows", 0, "rows per second, 0 for unlimited")
	c.Flags().IntVar(&limit.DataSizeLimit, "bytes", 0, "bytes per second, 0 for unlimited")

	return c
}
