// Package service assembles a runnable migration service: a store, the cron
// trigger facility, the workflow machine and the recovery loop that re-arms
// triggers for unfinished tasks.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/amp-labs/osc/bgworker"
	"github.com/amp-labs/osc/config"
	"github.com/amp-labs/osc/errors"
	"github.com/amp-labs/osc/logger"
	"github.com/amp-labs/osc/osc"
	"github.com/amp-labs/osc/store"
	"github.com/amp-labs/osc/trigger"
	"github.com/amp-labs/osc/validate"
)

// DefaultReconcileInterval is how often Run looks for tasks without a trigger.
const DefaultReconcileInterval = 30 * time.Second

// Store is everything the service needs from persistence.
type Store interface {
	osc.TaskStore
	CreateSchedule(ctx context.Context, s *store.Schedule) error
	CreateTask(ctx context.Context, t *store.ScheduleTask) error
	ListTasksByStatus(ctx context.Context, statuses ...store.TaskStatus) ([]*store.ScheduleTask, error)
	Close() error
}

// OpenStore opens the store selected by cfg.Driver.
func OpenStore(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "", "memory":
		return store.NewMemory(), nil
	case "sqlite":
		return store.OpenSQLite(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// Dependencies are the optional collaborators of the machine.
type Dependencies struct {
	Actions  osc.Actions
	Upstream osc.UpstreamLookup
	Resolver osc.ConnectionResolver
	// Updater receives upstream progress reports. Defaults to logging them.
	Updater osc.FlowTaskUpdater
}

// Service owns the long-lived components of the process.
type Service struct {
	Store     Store
	Machine   *osc.Machine
	Scheduler *trigger.Scheduler
	Facility  *trigger.CronFacility

	reconcileInterval time.Duration
	upstreamChecks    bool
}

// New builds a Service on top of an open store.
func New(cfg *config.Config, st Store, deps Dependencies) (*Service, error) {
	svc := &Service{Store: st, reconcileInterval: DefaultReconcileInterval, upstreamChecks: deps.Upstream != nil}

	if !svc.upstreamChecks {
		logger.Get().Warn("No upstream flow lookup configured, failed or canceled flows will not stop their tasks")
	}

	facility, err := trigger.NewCronFacility(cfg.Trigger.Spec, bgworker.New(cfg.Trigger.Workers), svc.handle)
	if err != nil {
		return nil, err
	}

	svc.Facility = facility
	svc.Scheduler = trigger.NewScheduler(facility)

	updater := deps.Updater
	if updater == nil {
		updater = osc.LogFlowTaskUpdater{}
	}

	svc.Machine, err = osc.New(osc.Config{
		Store:        st,
		Trigger:      svc.Scheduler,
		Actions:      deps.Actions,
		Upstream:     deps.Upstream,
		Resolver:     deps.Resolver,
		Synchronizer: osc.NewStoreFlowSynchronizer(st, updater),
		TaskTTL:      cfg.TaskTTL(),
	})
	if err != nil {
		return nil, err
	}

	return svc, nil
}

// UpstreamChecks reports whether jobs linked to a flow instance are checked
// against the upstream flow status on every tick.
func (s *Service) UpstreamChecks() bool {
	return s.upstreamChecks
}

func (s *Service) handle(ctx context.Context, p trigger.Payload) error {
	return s.Machine.Schedule(ctx, p.ScheduleID, p.TaskID)
}

// SubmitRequest describes a new migration job.
type SubmitRequest struct {
	DatasourceID   int64
	Creator        string
	OrganizationID int64
	Job            osc.JobParameters
	Task           osc.TaskParameters
}

// Submit persists a schedule and its first task in PREPARING. Nothing runs
// until Start is called.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*store.Schedule, *store.ScheduleTask, error) {
	req.Task.State = osc.StateYieldContext

	if err := validate.Validate(ctx, &req.Job); err != nil {
		return nil, nil, err
	}

	if err := validate.Validate(ctx, &req.Task); err != nil {
		return nil, nil, err
	}

	job, err := req.Job.Encode()
	if err != nil {
		return nil, nil, err
	}

	params, err := req.Task.Encode()
	if err != nil {
		return nil, nil, err
	}

	schedule := &store.Schedule{
		DatasourceID:   req.DatasourceID,
		JobParameters:  job,
		Creator:        req.Creator,
		OrganizationID: req.OrganizationID,
	}
	if err := s.Store.CreateSchedule(ctx, schedule); err != nil {
		return nil, nil, err
	}

	task := &store.ScheduleTask{ScheduleID: schedule.ID, Parameters: params, Status: store.StatusPreparing}
	if err := s.Store.CreateTask(ctx, task); err != nil {
		return nil, nil, err
	}

	if req.Job.FlowInstanceID != 0 && !s.upstreamChecks {
		logger.Get(ctx).Warn("Job is linked to a flow instance but upstream checks are off",
			"flow_instance_id", req.Job.FlowInstanceID)
	}

	logger.Get(ctx).Info("Migration submitted",
		"schedule_id", schedule.ID,
		"task_id", task.ID,
		"table", req.Task.DatabaseName+"."+req.Task.OriginTableName)

	return schedule, task, nil
}

// Recover arms a trigger for every task that still has work to do: running
// tasks, and finished tasks whose cleanup has not reached COMPLETE yet.
// ABNORMAL tasks are left alone until resumed. It returns the number of
// triggers submitted and every per-task failure.
func (s *Service) Recover(ctx context.Context) (int, error) {
	tasks, err := s.Store.ListTasksByStatus(ctx,
		store.StatusRunning, store.StatusDone, store.StatusFailed, store.StatusCanceled)
	if err != nil {
		return 0, err
	}

	var (
		errs      errors.Collection
		submitted int
	)

	for _, task := range tasks {
		params, err := osc.ParseTaskParameters(task.Parameters)
		if err != nil {
			errs.Add(fmt.Errorf("task %d: %w", task.ID, err))

			continue
		}

		if params.State == osc.StateComplete {
			continue
		}

		if err := s.Scheduler.Submit(ctx, task.ScheduleID, task.ID, ""); err != nil {
			errs.Add(fmt.Errorf("task %d: %w", task.ID, err))

			continue
		}

		submitted++
	}

	if submitted > 0 || errs.HasError() {
		logger.Get(ctx).Info("Recovered tasks", "submitted", submitted, "failed", errs.Len())
	}

	return submitted, errs.GetError()
}

// Run starts the trigger facility and reconciles triggers with the store
// until ctx is canceled, then stops the facility.
func (s *Service) Run(ctx context.Context) error {
	if err := s.Facility.Start(ctx); err != nil {
		return err
	}

	if _, err := s.Recover(ctx); err != nil {
		logger.Get(ctx).Error("Recovery finished with errors", "error", err)
	}

	ticker := time.NewTicker(s.reconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
			defer cancel()

			return s.Facility.Stop(stopCtx)
		case <-ticker.C:
			if _, err := s.Recover(ctx); err != nil {
				logger.Get(ctx).Error("Reconcile finished with errors", "error", err)
			}
		}
	}
}

// SetReconcileInterval changes how often Run reconciles. Non-positive values
// are ignored.
func (s *Service) SetReconcileInterval(d time.Duration) {
	if d > 0 {
		s.reconcileInterval = d
	}
}

// Close releases the store.
func (s *Service) Close() error {
	return s.Store.Close()
}
