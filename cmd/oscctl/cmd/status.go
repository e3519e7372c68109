package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/amp-labs/osc/cli"
	"github.com/amp-labs/osc/osc"
	"github.com/amp-labs/osc/store"
)

type taskView struct {
	ID        int64            `json:"id"`
	Status    store.TaskStatus `json:"status"`
	State     osc.State        `json:"state"`
	ExtraInfo string           `json:"extraInfo,omitempty"`
	Progress  float64          `json:"progress"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

type statusView struct {
	ScheduleID int64               `json:"scheduleId"`
	Status     store.TaskStatus    `json:"status"`
	Progress   float64             `json:"progress"`
	RateLimit  osc.RateLimitConfig `json:"rateLimitConfig"`
	Tasks      []taskView          `json:"tasks"`
}

func newStatusCmd(a *app) *cobra.Command {
	var asJSON bool

	c := &cobra.Command{
		Use:   "status SCHEDULE_ID",
		Short: "Show a schedule's tasks and aggregate progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			scheduleID, err := parseID("schedule id", args[0])
			if err != nil {
				return err
			}

			svc, err := a.service(ctx)
			if err != nil {
				return err
			}

			schedule, err := svc.Store.GetSchedule(ctx, scheduleID)
			if err != nil {
				return err
			}

			job, err := osc.ParseJobParameters(schedule.JobParameters)
			if err != nil {
				return err
			}

			tasks, err := svc.Store.ListTasks(ctx, scheduleID)
			if err != nil {
				return err
			}

			progress := osc.ComputeProgress(tasks)
			view := statusView{
				ScheduleID: scheduleID,
				Status:     progress.Status,
				Progress:   progress.Percentage,
				RateLimit:  job.RateLimit,
				Tasks:      make([]taskView, 0, len(tasks)),
			}

			for _, t := range tasks {
				tv := taskView{ID: t.ID, Status: t.Status, Progress: t.ProgressPercentage, UpdatedAt: t.UpdatedAt}

				if params, err := osc.ParseTaskParameters(t.Parameters); err == nil {
					tv.State = params.State
					tv.ExtraInfo = params.ExtraInfo
				}

				view.Tasks = append(view.Tasks, tv)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")

				return enc.Encode(view)
			}

			return printStatus(cmd.OutOrStdout(), view)
		},
	}

	c.Flags().BoolVar(&asJSON, "json", false, "print JSON")

	return c
}

func printStatus(out io.Writer, view statusView) error {
	fmt.Fprint(out, cli.Box(cli.DefaultWidth,
		fmt.Sprintf(" schedule %d", view.ScheduleID),
		fmt.Sprintf(" status   %s (%.1f%%)", view.Status, view.Progress),
		fmt.Sprintf(" limit    rows=%d bytes=%d", view.RateLimit.RowLimit, view.RateLimit.DataSizeLimit),
	))

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0) //nolint:mnd
	fmt.Fprintln(w, "TASK\tSTATUS\tSTATE\tPROGRESS\tINFO\tUPDATED")

	for _, t := range view.Tasks {
		fmt.Fprintf(w, "%d\t%s\t%s\t%.1f\t%s\t%s\n",
			t.ID, t.Status, t.State, t.Progress, t.ExtraInfo, t.UpdatedAt.Format(time.RFC3339))
	}

	return w.Flush()
}
