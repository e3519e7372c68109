package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/amp-labs/osc/osc"
	"github.com/amp-labs/osc/service"
)

type submitOptions struct {
	datasourceID   int64
	organizationID int64
	creator        string
	start          bool
	req            service.SubmitRequest
	cleanStrategy  string
	swapType       string
}

func newSubmitCmd(a *app) *cobra.Command {
	opts := &submitOptions{}

	c := &cobra.Command{
		Use:   "submit",
		Short: "Create a migration schedule and its first task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			if a.cfg.Store.Driver == "memory" {
				slog.Warn("The memory store is not persisted, the task is lost when oscctl exits")
			}

			svc, err := a.service(ctx)
			if err != nil {
				return err
			}

			req := opts.req
			req.DatasourceID = opts.datasourceID
			req.OrganizationID = opts.organizationID
			req.Creator = opts.creator
			req.Job.OriginTableCleanStrategy = osc.CleanStrategy(opts.cleanStrategy)
			req.Job.SwapTableType = osc.SwapTableType(opts.swapType)
			req.Task.RateLimit = req.Job.RateLimit

			schedule, task, err := svc.Submit(ctx, req)
			if err != nil {
				return err
			}

			if opts.start {
				if err := svc.Machine.Start(ctx, schedule.ID, task.ID); err != nil {
					return err
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "schedule %d task %d\n", schedule.ID, task.ID)

			return nil
		},
	}

	f := c.Flags()
	f.Int64Var(&opts.datasourceID, "datasource", 0, "datasource id the tables live in")
	f.Int64Var(&opts.organizationID, "organization", 0, "owning organization id")
	f.StringVar(&opts.creator, "creator", "", "user submitting the migration")
	f.BoolVar(&opts.start, "start", false, "start the task right away")

	f.StringVar(&opts.req.Task.DatabaseName, "database", "", "database name")
	f.StringVar(&opts.req.Task.OriginTableName, "table", "", "table to migrate")
	f.StringVar(&opts.req.Task.NewTableName, "new-table", "", "ghost table name")
	f.StringVar(&opts.req.Task.NewTableCreateDDL, "new-table-ddl", "", "CREATE TABLE statement for the ghost table")

	f.StringVar(&opts.req.Job.SQLContent, "sql", "", "schema change statement")
	f.Int64Var(&opts.req.Job.FlowInstanceID, "flow-instance", 0, "upstream flow instance id (0 for none)")
	f.Int64Var(&opts.req.Job.FlowTaskID, "flow-task", 0, "upstream flow task id")
	f.IntVar(&opts.req.Job.SwapTableNameRetryTimes, "swap-retries", 0, "swap retry budget")
	f.StringVar(&opts.cleanStrategy, "clean-strategy", string(osc.CleanRenameAndReserve),
		"what to do with the original table (ORIGIN_TABLE_RENAME_AND_RESERVED, ORIGIN_TABLE_DROP)")
	f.StringVar(&opts.swapType, "swap", string(osc.SwapAuto), "swap mode (AUTO, MANUAL)")
	f.IntVar(&opts.req.Job.RateLimit.RowLimit, "row-limit", 0, "rows per second, 0 for unlimited")
	f.IntVar(&opts.req.Job.RateLimit.DataSizeLimit, "data-size-limit", 0, "bytes per second, 0 for unlimited")

	_ = c.MarkFlagRequired("database")
	_ = c.MarkFlagRequired("table")
	_ = c.MarkFlagRequired("new-table")

	return c
}
