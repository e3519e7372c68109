package osc

import (
	"context"
	"fmt"
	"time"

	"github.com/amp-labs/osc/lazy"
	"github.com/amp-labs/osc/store"
	"github.com/amp-labs/osc/validate"
)

// ConnectionConfig describes how actions reach the database being migrated.
type ConnectionConfig struct {
	DatasourceID int64
	Database     string
	DSN          string
	Properties   map[string]string
}

// ConnectionResolver looks up connection details for a datasource.
type ConnectionResolver interface {
	Resolve(ctx context.Context, datasourceID int64, database string) (ConnectionConfig, error)
}

// ConnectionResolverFunc adapts a function to ConnectionResolver.
type ConnectionResolverFunc func(ctx context.Context, datasourceID int64, database string) (ConnectionConfig, error)

func (f ConnectionResolverFunc) Resolve(
	ctx context.Context, datasourceID int64, database string,
) (ConnectionConfig, error) {
	return f(ctx, datasourceID, database)
}

// ActionContext is everything an action sees during one tick. It is built
// fresh from the store for every tick and discarded afterwards.
//
// Actions may mutate Params. Whatever Params holds when the action returns
// is what gets persisted along with the new state.
type ActionContext struct {
	Schedule *store.Schedule
	Task     *store.ScheduleTask
	Job      *JobParameters
	Params   *TaskParameters
	// Now is the time the tick started.
	Now time.Time

	connection *lazy.OfCtxErr[ConnectionConfig]
}

func newActionContext(
	schedule *store.Schedule, task *store.ScheduleTask, resolver ConnectionResolver, now time.Time,
) (*ActionContext, error) {
	job, err := ParseJobParameters(schedule.JobParameters)
	if err != nil {
		return nil, err
	}

	params, err := ParseTaskParameters(task.Parameters)
	if err != nil {
		return nil, err
	}

	actx := &ActionContext{
		Schedule: schedule,
		Task:     task,
		Job:      job,
		Params:   params,
		Now:      now,
	}

	actx.connection = lazy.NewCtxErr(func(ctx context.Context) (ConnectionConfig, error) {
		if resolver == nil {
			return ConnectionConfig{}, ErrNoConnectionResolver
		}

		return resolver.Resolve(ctx, schedule.DatasourceID, params.DatabaseName)
	})

	return actx, nil
}

// Validate checks that both parameter documents are usable.
func (a *ActionContext) Validate(ctx context.Context) error {
	if a.Schedule == nil || a.Task == nil || a.Job == nil || a.Params == nil {
		return fmt.Errorf("%w: incomplete action context", ErrInvalidContext)
	}

	if err := validate.Validate(ctx, a.Job); err != nil {
		return err
	}

	return validate.Validate(ctx, a.Params)
}

// Connection resolves the connection config on first use and memoizes it
// for the rest of the tick. Failed lookups are retried on the next call.
func (a *ActionContext) Connection(ctx context.Context) (ConnectionConfig, error) {
	cfg, err := a.connection.Get(ctx)
	if err != nil {
		return ConnectionConfig{}, fmt.Errorf("resolving connection for datasource %d: %w",
			a.Schedule.DatasourceID, err)
	}

	return cfg, nil
}

// State is the state persisted in the task parameters.
func (a *ActionContext) State() State {
	return a.Params.State
}
