package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/amp-labs/osc/cli"
	"github.com/amp-labs/osc/osc"
	"github.com/amp-labs/osc/service"
)

type taskOp func(svc *service.Service, cmd *cobra.Command, scheduleID, taskID int64) error

func taskCmd(a *app, use, short string, op taskOp) *cobra.Command {
	return &cobra.Command{
		Use:   use + " SCHEDULE_ID TASK_ID",
		Short: short,
		Args:  cobra.ExactArgs(2), //nolint:mnd
		RunE: func(cmd *cobra.Command, args []string) error {
			scheduleID, taskID, err := parseTaskArgs(args)
			if err != nil {
				return err
			}

			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}

			return op(svc, cmd, scheduleID, taskID)
		},
	}
}

func newStartCmd(a *app) *cobra.Command {
	return taskCmd(a, "start", "Start a submitted task",
		func(svc *service.Service, cmd *cobra.Command, scheduleID, taskID int64) error {
			return svc.Machine.Start(cmd.Context(), scheduleID, taskID)
		})
}

func newResumeCmd(a *app) *cobra.Command {
	return taskCmd(a, "resume", "Resume an ABNORMAL task",
		func(svc *service.Service, cmd *cobra.Command, scheduleID, taskID int64) error {
			return svc.Machine.Resume(cmd.Context(), scheduleID, taskID)
		})
}

// newTickCmd runs a single tick in-process, which is how a task is driven
// without a running "oscctl serve".
func newTickCmd(a *app) *cobra.Command {
	return taskCmd(a, "tick", "Run one state machine tick for a task",
		func(svc *service.Service, cmd *cobra.Command, scheduleID, taskID int64) error {
			if err := svc.Machine.Schedule(cmd.Context(), scheduleID, taskID); err != nil {
				return err
			}

			task, err := svc.Store.GetTask(cmd.Context(), taskID)
			if err != nil {
				return err
			}

			params, err := osc.ParseTaskParameters(task.Parameters)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", task.Status, params.State)

			return nil
		})
}

func newSwapCmd(a *app) *cobra.Command {
	c := taskCmd(a, "swap", "Release a MANUAL swap once the data copy is in sync",
		func(svc *service.Service, cmd *cobra.Command, scheduleID, taskID int64) error {
			if err := svc.Machine.SwapTable(cmd.Context(), scheduleID, taskID); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "swap requested for task %d\n", taskID)

			return nil
		})

	c.Long = `Swap releases a job submitted with --swap MANUAL. The monitor holds such a
job once its data copy is in sync; after swap it renames the tables on its
next tick. A swap can be requested once.`

	return c
}

func newCancelCmd(a *app) *cobra.Command {
	var yes bool

	c := taskCmd(a, "cancel", "Cancel a task and clean up its resources",
		func(svc *service.Service, cmd *cobra.Command, scheduleID, taskID int64) error {
			ok, err := cli.Confirm(fmt.Sprintf("Cancel task %d of schedule %d", taskID, scheduleID),
				yes, a.stdin, nopCloser{cmd.OutOrStdout()})
			if err != nil {
				return err
			}

			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "aborted")

				return nil
			}

			return svc.Machine.Cancel(cmd.Context(), scheduleID, taskID)
		})

	c.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")

	return c
}
