package osc

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/amp-labs/osc/logger"
	"github.com/amp-labs/osc/statemachine"
	"github.com/amp-labs/osc/statemachine/validator"
	"github.com/amp-labs/osc/store"
)

// CancelExtraInfo is stored as extraInfo when a user cancels a task.
const CancelExtraInfo = "CANCEL"

// TaskStore is the persistence the machine needs.
type TaskStore interface {
	GetSchedule(ctx context.Context, id int64) (*store.Schedule, error)
	GetTask(ctx context.Context, id int64) (*store.ScheduleTask, error)
	ListTasks(ctx context.Context, scheduleID int64) ([]*store.ScheduleTask, error)
	UpdateTask(ctx context.Context, t *store.ScheduleTask) error
	UpdateTaskStatus(ctx context.Context, id int64, status store.TaskStatus) error
	UpdateTaskParameters(ctx context.Context, id int64, params string) error
	UpdateJobParameters(ctx context.Context, scheduleID int64, params string) error
}

// Trigger arms and disarms the periodic tick of a schedule.
type Trigger interface {
	// Submit creates the trigger or updates its payload. It is idempotent.
	Submit(ctx context.Context, scheduleID, taskID int64, correlationID string) error
	// Cancel removes the trigger. Failures are logged by the implementation.
	Cancel(ctx context.Context, scheduleID int64)
}

// Config wires a Machine.
type Config struct {
	Store   TaskStore
	Trigger Trigger
	Actions Actions

	// Upstream is consulted by the default UpstreamGuard. Optional.
	Upstream UpstreamLookup
	// Synchronizer reports progress to the upstream workflow. Optional.
	Synchronizer FlowSynchronizer
	// Resolver backs ActionContext.Connection. Optional.
	Resolver ConnectionResolver

	// Guards overrides DefaultGuards(TaskTTL, Upstream).
	Guards  []Guard
	TaskTTL time.Duration

	Logger statemachine.Logger
	Now    func() time.Time
}

// Machine is the migration workflow: guards in front of a statemachine.Engine
// whose hooks keep the task record's status in line with its state.
type Machine struct {
	store        TaskStore
	trigger      Trigger
	synchronizer FlowSynchronizer
	resolver     ConnectionResolver
	guards       []Guard
	engine       *statemachine.Engine[*ActionContext]
	now          func() time.Time
}

// New validates the transition graph built from cfg.Actions and returns a
// ready Machine.
func New(cfg Config) (*Machine, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("%w: store", ErrMissingDependency)
	}

	if cfg.Trigger == nil {
		return nil, fmt.Errorf("%w: trigger", ErrMissingDependency)
	}

	registry, err := NewRegistry(cfg.Actions)
	if err != nil {
		return nil, err
	}

	graph := validator.Validate(registry, validator.Options{
		Initial:  string(StateYieldContext),
		Terminal: string(StateComplete),
		Sink:     string(StateCleanResource),
	})
	if err := graph.Err(); err != nil {
		return nil, err
	}

	m := &Machine{
		store:        cfg.Store,
		trigger:      cfg.Trigger,
		synchronizer: cfg.Synchronizer,
		resolver:     cfg.Resolver,
		guards:       cfg.Guards,
		now:          cfg.Now,
	}

	if m.guards == nil {
		m.guards = DefaultGuards(cfg.TaskTTL, cfg.Upstream)
	}

	if m.now == nil {
		m.now = time.Now
	}

	m.engine, err = statemachine.NewEngine[*ActionContext](registry, hooks{m: m},
		statemachine.WithName("osc"), statemachine.WithLogger(cfg.Logger))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// Registry returns the transition table the machine dispatches on.
func (m *Machine) Registry() *statemachine.Registry[*ActionContext] {
	return m.engine.Registry()
}

// Schedule runs one tick for a task. It is what the trigger calls.
func (m *Machine) Schedule(ctx context.Context, scheduleID, taskID int64) error {
	ctx = logger.With(ctx, "schedule_id", scheduleID, "task_id", taskID)

	actx, err := m.load(ctx, scheduleID, taskID)
	if err != nil {
		return err
	}

	if err := actx.Validate(ctx); err != nil {
		return fmt.Errorf("%w: schedule task %d: %w", ErrInvalidContext, taskID, err)
	}

	if actx.State() == StateComplete {
		logger.Get(ctx).Info("Task already complete, disarming trigger")
		m.trigger.Cancel(ctx, scheduleID)

		return nil
	}

	if actx.State() != StateCleanResource {
		done, err := m.guard(ctx, actx)
		if err != nil || done {
			return err
		}
	}

	if err := m.engine.Tick(ctx, actx); err != nil {
		return err
	}

	return m.syncFlowInstance(ctx, actx)
}

// guard reports whether a guard ended the tick.
func (m *Machine) guard(ctx context.Context, actx *ActionContext) (bool, error) {
	outcome, name, err := evaluate(ctx, m.guards, actx)
	if err != nil {
		return true, fmt.Errorf("guard %s: %w", name, err)
	}

	switch outcome.Kind {
	case Continue:
		return false, nil
	case Skip:
		logger.Get(ctx).Info("Tick skipped", "guard", name, "reason", outcome.Reason)

		return true, nil
	case ForceTransition:
		logger.Get(ctx).Warn("Guard forced a transition",
			"guard", name,
			"state", actx.State(),
			"next_state", outcome.State,
			"status", outcome.Status,
			"reason", outcome.Reason)

		err := m.transferTaskStates(ctx, actx.Task, actx.Params, outcome.State, outcome.Reason, outcome.Status)
		if err != nil {
			return true, err
		}

		return true, m.trigger.Submit(ctx, actx.Schedule.ID, actx.Task.ID, correlationID(actx.Job))
	default:
		return true, fmt.Errorf("guard %s returned %s", name, outcome.Kind)
	}
}

// Start moves a fresh task out of StateYieldContext and arms its trigger.
func (m *Machine) Start(ctx context.Context, scheduleID, taskID int64) error {
	ctx = logger.With(ctx, "schedule_id", scheduleID, "task_id", taskID)

	actx, err := m.load(ctx, scheduleID, taskID)
	if err != nil {
		return err
	}

	if actx.State() == StateYieldContext {
		err = m.transferTaskStates(ctx, actx.Task, actx.Params, StateCreateGhostTables, "", store.StatusRunning)
	} else {
		err = m.setStatus(ctx, taskID, store.StatusRunning)
	}

	if err != nil {
		return err
	}

	logger.Get(ctx).Info("Task started")

	return m.trigger.Submit(ctx, scheduleID, taskID, correlationID(actx.Job))
}

// Cancel marks a task canceled and leaves it in StateCleanResource, so the
// next tick releases whatever it holds. It does not check the current status.
func (m *Machine) Cancel(ctx context.Context, scheduleID, taskID int64) error {
	ctx = logger.With(ctx, "schedule_id", scheduleID, "task_id", taskID)

	actx, err := m.load(ctx, scheduleID, taskID)
	if err != nil {
		return err
	}

	err = m.transferTaskStates(ctx, actx.Task, actx.Params, StateCleanResource, CancelExtraInfo, store.StatusCanceled)
	if err != nil {
		return err
	}

	logger.Get(ctx).Info("Task canceled")

	return m.trigger.Submit(ctx, scheduleID, taskID, correlationID(actx.Job))
}

// Resume puts an ABNORMAL task back to RUNNING and re-arms its trigger. The
// next tick re-runs the state the task failed in.
func (m *Machine) Resume(ctx context.Context, scheduleID, taskID int64) error {
	ctx = logger.With(ctx, "schedule_id", scheduleID, "task_id", taskID)

	actx, err := m.load(ctx, scheduleID, taskID)
	if err != nil {
		return err
	}

	if actx.Task.Status != store.StatusAbnormal {
		return fmt.Errorf("%w: task %d is %s", ErrNotAbnormal, taskID, actx.Task.Status)
	}

	if err := m.setStatus(ctx, taskID, store.StatusRunning); err != nil {
		return err
	}

	logger.Get(ctx).Info("Task resumed", "state", actx.State())

	return m.trigger.Submit(ctx, scheduleID, taskID, correlationID(actx.Job))
}

// SwapTable releases a MANUAL job waiting in StateMonitorDataTask. The
// monitor sees ManualSwapTableStarted on its next tick and moves on to
// StateSwapTable. It can be requested once, after the monitor has enabled it.
func (m *Machine) SwapTable(ctx context.Context, scheduleID, taskID int64) error {
	ctx = logger.With(ctx, "schedule_id", scheduleID, "task_id", taskID)

	actx, err := m.load(ctx, scheduleID, taskID)
	if err != nil {
		return err
	}

	switch {
	case actx.Job.SwapTableType != SwapManual:
		return fmt.Errorf("%w: schedule %d uses %q", ErrNotManualSwap, scheduleID, actx.Job.SwapTableType)
	case actx.Task.Status.IsTerminal():
		return fmt.Errorf("%w: task %d is %s", ErrTaskTerminated, taskID, actx.Task.Status)
	case actx.Params.ManualSwapTableStarted:
		return fmt.Errorf("%w: task %d", ErrSwapStarted, taskID)
	case !actx.Params.ManualSwapTableEnabled:
		return fmt.Errorf("%w: task %d is in %s", ErrSwapNotReady, taskID, actx.State())
	}

	actx.Params.ManualSwapTableEnabled = false
	actx.Params.ManualSwapTableStarted = true

	if err := m.saveState(ctx, taskID, actx.Params, actx.State(), actx.Params.ExtraInfo); err != nil {
		return err
	}

	logger.Get(ctx).Info("Manual swap table requested")

	return nil
}

// UpdateRateLimit changes the job's rate limit. A monitoring task picks the
// change up on its next tick through MonitorTransfer.
func (m *Machine) UpdateRateLimit(ctx context.Context, scheduleID int64, limit RateLimitConfig) error {
	if err := limit.Validate(); err != nil {
		return err
	}

	tasks, err := m.store.ListTasks(ctx, scheduleID)
	if err != nil {
		return err
	}

	if allTerminal(tasks) {
		return fmt.Errorf("%w: schedule %d", ErrTaskTerminated, scheduleID)
	}

	schedule, err := m.store.GetSchedule(ctx, scheduleID)
	if err != nil {
		return err
	}

	job, err := ParseJobParameters(schedule.JobParameters)
	if err != nil {
		return err
	}

	job.RateLimit = limit

	encoded, err := job.Encode()
	if err != nil {
		return err
	}

	if err := m.store.UpdateJobParameters(ctx, scheduleID, encoded); err != nil {
		return err
	}

	logger.Get(ctx).Info("Rate limit updated",
		"schedule_id", scheduleID,
		"row_limit", limit.RowLimit,
		"data_size_limit", limit.DataSizeLimit)

	return nil
}

func allTerminal(tasks []*store.ScheduleTask) bool {
	for _, t := range tasks {
		if !t.Status.IsTerminal() {
			return false
		}
	}

	return len(tasks) > 0
}

func (m *Machine) load(ctx context.Context, scheduleID, taskID int64) (*ActionContext, error) {
	schedule, err := m.store.GetSchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}

	task, err := m.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if task.ScheduleID != scheduleID {
		return nil, fmt.Errorf("%w: task %d belongs to schedule %d, not %d",
			ErrInvalidContext, taskID, task.ScheduleID, scheduleID)
	}

	actx, err := newActionContext(schedule, task, m.resolver, m.now())
	if err != nil {
		return nil, fmt.Errorf("%w: schedule task %d: %w", ErrInvalidContext, taskID, err)
	}

	return actx, nil
}

// transferTaskStates writes state, extraInfo and status in a single full
// record update. A canceled task always lands in StateCleanResource and a
// terminal status pins progress at 100.
func (m *Machine) transferTaskStates(
	ctx context.Context,
	task *store.ScheduleTask,
	params *TaskParameters,
	state State,
	extraInfo string,
	status store.TaskStatus,
) error {
	if status == store.StatusCanceled {
		state = StateCleanResource
	}

	next := params.Clone()
	next.State = state
	next.ExtraInfo = extraInfo

	encoded, err := next.Encode()
	if err != nil {
		return err
	}

	updated := task.Clone()
	updated.Parameters = encoded
	updated.Status = status

	if status.IsTerminal() {
		updated.ProgressPercentage = 100
	}

	if err := m.store.UpdateTask(ctx, updated); err != nil {
		return fmt.Errorf("updating schedule task %d: %w", task.ID, err)
	}

	statusChanges.WithLabelValues(string(status)).Inc()

	return nil
}

func (m *Machine) setStatus(ctx context.Context, taskID int64, status store.TaskStatus) error {
	if err := m.store.UpdateTaskStatus(ctx, taskID, status); err != nil {
		return fmt.Errorf("setting schedule task %d to %s: %w", taskID, status, err)
	}

	statusChanges.WithLabelValues(string(status)).Inc()

	return nil
}

func (m *Machine) syncFlowInstance(ctx context.Context, actx *ActionContext) error {
	if m.synchronizer == nil || actx.Job.FlowInstanceID == 0 {
		return nil
	}

	err := m.synchronizer.Sync(ctx, actx.Job.FlowInstanceID, actx.Job.FlowTaskID, actx.Schedule.ID)
	if err != nil {
		m.trigger.Cancel(ctx, actx.Schedule.ID)

		return fmt.Errorf("syncing flow instance %d: %w", actx.Job.FlowInstanceID, err)
	}

	return nil
}

// correlationID ties trigger firings to the upstream flow task. An empty id
// lets the trigger generate one.
func correlationID(job *JobParameters) string {
	if job.FlowTaskID == 0 {
		return ""
	}

	return "flow-task-" + strconv.FormatInt(job.FlowTaskID, 10)
}

// hooks adapts Machine to statemachine.Hooks without exporting the methods
// on Machine itself.
type hooks struct {
	m *Machine
}

func (h hooks) ResolveState(actx *ActionContext) string {
	return string(actx.State())
}

// OnActionComplete persists the new state. The task is re-read first so a
// status written during the action, such as a cancel, is not overwritten.
func (h hooks) OnActionComplete(ctx context.Context, from, to, extraInfo string, actx *ActionContext) error {
	m := h.m

	task, err := m.store.GetTask(ctx, actx.Task.ID)
	if err != nil {
		return err
	}

	next := State(to)

	switch {
	case task.Status == store.StatusPreparing:
		err = m.transferTaskStates(ctx, task, actx.Params, next, extraInfo, store.StatusRunning)
	case State(from) == StateSwapTable && next == StateCleanResource && task.Status == store.StatusRunning:
		err = m.transferTaskStates(ctx, task, actx.Params, next, extraInfo, store.StatusDone)
	default:
		err = m.saveState(ctx, task.ID, actx.Params, next, extraInfo)
	}

	if err != nil {
		return err
	}

	if next == StateComplete {
		logger.Get(ctx).Info("Task complete, disarming trigger", "status", task.Status)
		m.trigger.Cancel(ctx, actx.Schedule.ID)
	}

	return nil
}

// HandleError marks a running task ABNORMAL. A task that already has a
// terminal status keeps it: cleanup after DONE must not fail the job, so the
// error is only recorded as extra info and the next tick retries.
func (h hooks) HandleError(ctx context.Context, actx *ActionContext, state string, err error) {
	m := h.m

	task, gerr := m.store.GetTask(ctx, actx.Task.ID)
	if gerr != nil {
		logger.Get(ctx).Error("Failed to reload task after action error", "state", state, "error", err, "reload_error", gerr)

		return
	}

	if task.Status.IsTerminal() {
		logger.Get(ctx).Warn("Action failed on a finished task, keeping status",
			"state", state, "status", task.Status, "error", err)

		params, perr := ParseTaskParameters(task.Parameters)
		if perr == nil {
			perr = m.saveState(ctx, task.ID, params, params.State, actionFailedInfo(state, err))
		}

		if perr != nil {
			logger.Get(ctx).Error("Failed to record action error", "error", perr)
		}

		return
	}

	logger.Get(ctx).Error("Action failed, marking task abnormal", "state", state, "error", err)

	if serr := m.setStatus(ctx, task.ID, store.StatusAbnormal); serr != nil {
		logger.Get(ctx).Error("Failed to mark task abnormal", "error", serr)
	}
}

func actionFailedInfo(state string, err error) string {
	return state + " failed: " + err.Error()
}

// saveState updates only the parameters, leaving the status untouched.
func (m *Machine) saveState(ctx context.Context, taskID int64, params *TaskParameters, state State, extraInfo string) error {
	next := params.Clone()
	next.State = state
	next.ExtraInfo = extraInfo

	encoded, err := next.Encode()
	if err != nil {
		return err
	}

	if err := m.store.UpdateTaskParameters(ctx, taskID, encoded); err != nil {
		return fmt.Errorf("saving state of schedule task %d: %w", taskID, err)
	}

	return nil
}
