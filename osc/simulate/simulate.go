// Package simulate provides dry-run actions for every migration state. They
// walk the happy path without touching a database, which makes the full
// workflow runnable from the command line and in integration tests.
package simulate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/amp-labs/osc/logger"
	"github.com/amp-labs/osc/osc"
	"github.com/amp-labs/osc/statemachine"
)

// DefaultPolls is how many monitor ticks a simulated data task takes.
const DefaultPolls = 3

// Options tune the simulation.
type Options struct {
	// Polls is the number of MONITOR_DATA_TASK ticks before the copy is
	// reported complete.
	Polls int
}

// Actions returns one dry-run action per state. The monitor counts its ticks
// in the task parameters, so any process can drive the task.
func Actions(opts Options) osc.Actions {
	if opts.Polls <= 0 {
		opts.Polls = DefaultPolls
	}

	return osc.Actions{
		YieldContext:      osc.YieldContextAction{},
		CreateGhostTables: step("create-ghost-tables", createGhostTables),
		CreateDataTask:    step("create-data-task", createDataTask),
		MonitorDataTask:   monitorDataTask{polls: opts.Polls},
		ModifyDataTask:    step("modify-data-task", modifyDataTask),
		SwapTable:         step("swap-table", swapTable),
		CleanResource:     step("clean-resource", cleanResource),
	}
}

type namedStep struct {
	name string
	run  func(ctx context.Context, actx *osc.ActionContext) (statemachine.Result, error)
}

func step(name string, run func(context.Context, *osc.ActionContext) (statemachine.Result, error)) osc.Action {
	return namedStep{name: name, run: run}
}

func (s namedStep) Name() string { return s.name }

func (s namedStep) Execute(ctx context.Context, actx *osc.ActionContext) (statemachine.Result, error) {
	return s.run(ctx, actx)
}

func next(s osc.State) statemachine.Result {
	return statemachine.Result{NextState: string(s)}
}

func createGhostTables(ctx context.Context, actx *osc.ActionContext) (statemachine.Result, error) {
	conn, err := actx.Connection(ctx)

	switch {
	case errors.Is(err, osc.ErrNoConnectionResolver):
		logger.Get(ctx).Debug("No connection resolver, skipping connection check")
	case err != nil:
		return statemachine.Result{}, err
	}

	p := actx.Params
	if p.NewTableCreateDDL == "" {
		p.NewTableCreateDDL = fmt.Sprintf("CREATE TABLE `%s`.`%s` LIKE `%s`.`%s`",
			p.DatabaseName, p.NewTableName, p.DatabaseName, p.OriginTableName)
	}

	logger.Get(ctx).Info("Would create ghost table",
		"datasource_id", actx.Schedule.DatasourceID,
		"database", conn.Database,
		"ddl", p.NewTableCreateDDL)

	return next(osc.StateCreateDataTask), nil
}

func createDataTask(ctx context.Context, actx *osc.ActionContext) (statemachine.Result, error) {
	if actx.Params.DataTaskID == "" {
		actx.Params.DataTaskID = uuid.NewString()
	}

	actx.Params.RateLimit = actx.Job.RateLimit

	logger.Get(ctx).Info("Would start data migration",
		"data_task_id", actx.Params.DataTaskID,
		"row_limit", actx.Params.RateLimit.RowLimit,
		"data_size_limit", actx.Params.RateLimit.DataSizeLimit)

	return next(osc.StateMonitorDataTask), nil
}

// pollsKey is the task parameter member counting monitor ticks. It lives in
// the task record so ticks from separate processes add up.
const pollsKey = "simulatedPolls"

type monitorDataTask struct {
	polls int
}

func (monitorDataTask) Name() string { return "monitor-data-task" }

func (m monitorDataTask) Execute(ctx context.Context, actx *osc.ActionContext) (statemachine.Result, error) {
	p := actx.Params
	polls := min(simulatedPolls(p)+1, m.polls)
	setSimulatedPolls(p, polls)

	logger.Get(ctx).Info("Data migration in progress",
		"data_task_id", p.DataTaskID,
		"poll", polls,
		"of", m.polls)

	if polls < m.polls {
		return stay(fmt.Sprintf("copy %d/%d", polls, m.polls)), nil
	}

	if actx.Job.SwapTableType == osc.SwapManual && !p.ManualSwapTableStarted {
		if !p.ManualSwapTableEnabled {
			p.ManualSwapTableEnabled = true

			logger.Get(ctx).Info("Data in sync, waiting for manual swap", "data_task_id", p.DataTaskID)
		}

		return stay("waiting for manual swap"), nil
	}

	delete(p.Extra, pollsKey)

	return next(osc.StateSwapTable), nil
}

func stay(info string) statemachine.Result {
	return statemachine.Result{NextState: string(osc.StateMonitorDataTask), ExtraInfo: info}
}

func simulatedPolls(p *osc.TaskParameters) int {
	raw, ok := p.Extra[pollsKey]
	if !ok {
		return 0
	}

	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0
	}

	return n
}

func setSimulatedPolls(p *osc.TaskParameters, n int) {
	if p.Extra == nil {
		p.Extra = make(map[string]json.RawMessage, 1)
	}

	p.Extra[pollsKey] = json.RawMessage(strconv.Itoa(n))
}

func modifyDataTask(ctx context.Context, actx *osc.ActionContext) (statemachine.Result, error) {
	logger.Get(ctx).Info("Would update data migration rate limit",
		"data_task_id", actx.Params.DataTaskID,
		"from", actx.Params.RateLimit,
		"to", actx.Job.RateLimit)

	actx.Params.RateLimit = actx.Job.RateLimit

	return next(osc.StateMonitorDataTask), nil
}

func swapTable(ctx context.Context, actx *osc.ActionContext) (statemachine.Result, error) {
	p := actx.Params
	if p.RenamedTableName == "" {
		p.RenamedTableName = "_" + p.OriginTableName + "_osc_old_"
	}

	logger.Get(ctx).Info("Would swap tables",
		"origin", p.OriginTableName,
		"ghost", p.NewTableName,
		"renamed", p.RenamedTableName)

	return next(osc.StateCleanResource), nil
}

func cleanResource(ctx context.Context, actx *osc.ActionContext) (statemachine.Result, error) {
	logger.Get(ctx).Info("Would release data migration resources",
		"data_task_id", actx.Params.DataTaskID,
		"strategy", actx.Job.OriginTableCleanStrategy)

	return next(osc.StateComplete), nil
}
