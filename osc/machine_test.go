package osc

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amp-labs/osc/statemachine"
	"github.com/amp-labs/osc/store"
)

var errDataTaskAPI = errors.New("data task api returned 503")

type submission struct {
	ScheduleID    int64
	TaskID        int64
	CorrelationID string
}

type fakeTrigger struct {
	mu        sync.Mutex
	submitted []submission
	canceled  []int64
}

func (f *fakeTrigger) Submit(_ context.Context, scheduleID, taskID int64, correlationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.submitted = append(f.submitted, submission{scheduleID, taskID, correlationID})

	return nil
}

func (f *fakeTrigger) Cancel(_ context.Context, scheduleID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.canceled = append(f.canceled, scheduleID)
}

// countingAction proposes next and counts how often it ran.
type countingAction struct {
	mu    sync.Mutex
	next  State
	err   error
	calls int
}

func (a *countingAction) Execute(context.Context, *ActionContext) (statemachine.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.calls++

	if a.err != nil {
		return statemachine.Result{}, a.err
	}

	return statemachine.Result{NextState: string(a.next)}, nil
}

func (a *countingAction) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.calls
}

type happyPath struct {
	yield, ghost, create, monitor, modify, swap, clean *countingAction
}

func newHappyPath() *happyPath {
	return &happyPath{
		yield:   &countingAction{next: StateCreateGhostTables},
		ghost:   &countingAction{next: StateCreateDataTask},
		create:  &countingAction{next: StateMonitorDataTask},
		monitor: &countingAction{next: StateSwapTable},
		modify:  &countingAction{next: StateMonitorDataTask},
		swap:    &countingAction{next: StateCleanResource},
		clean:   &countingAction{next: StateComplete},
	}
}

func (p *happyPath) actions() Actions {
	return Actions{
		YieldContext:      p.yield,
		CreateGhostTables: p.ghost,
		CreateDataTask:    p.create,
		MonitorDataTask:   p.monitor,
		ModifyDataTask:    p.modify,
		SwapTable:         p.swap,
		CleanResource:     p.clean,
	}
}

type harness struct {
	t        *testing.T
	store    *store.Memory
	trigger  *fakeTrigger
	upstream *StaticUpstream
	machine  *Machine
	now      time.Time
	schedule int64
	task     int64
}

func newHarness(t *testing.T, actions Actions, configure ...func(*Config)) *harness {
	t.Helper()

	h := &harness{
		t:        t,
		store:    store.NewMemory(),
		trigger:  &fakeTrigger{},
		upstream: NewStaticUpstream(),
		now:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	cfg := Config{
		Store:    h.store,
		Trigger:  h.trigger,
		Actions:  actions,
		Upstream: h.upstream,
		Logger:   statemachine.NewSlogLogger(slogt.New(t)),
		Now:      func() time.Time { return h.now },
	}

	for _, c := range configure {
		c(&cfg)
	}

	m, err := New(cfg)
	require.NoError(t, err)

	h.machine = m

	return h
}

func validParams(state State) *TaskParameters {
	return &TaskParameters{
		State:           state,
		DatabaseName:    "shop",
		OriginTableName: "orders",
		NewTableName:    "_orders_osc_new_",
	}
}

// seed creates a schedule with job and one task with params and status.
func (h *harness) seed(job string, params *TaskParameters, status store.TaskStatus) {
	h.t.Helper()

	ctx := h.t.Context()

	sch := &store.Schedule{DatasourceID: 7, JobParameters: job, Creator: "dba"}
	require.NoError(h.t, h.store.CreateSchedule(ctx, sch))

	encoded, err := params.Encode()
	require.NoError(h.t, err)

	task := &store.ScheduleTask{
		ScheduleID: sch.ID,
		Parameters: encoded,
		Status:     status,
		CreatedAt:  h.now.Add(-time.Hour),
	}
	require.NoError(h.t, h.store.CreateTask(ctx, task))

	h.schedule = sch.ID
	h.task = task.ID
}

func (h *harness) tick() error {
	return h.machine.Schedule(h.t.Context(), h.schedule, h.task)
}

func (h *harness) load() (*store.ScheduleTask, *TaskParameters) {
	h.t.Helper()

	task, err := h.store.GetTask(h.t.Context(), h.task)
	require.NoError(h.t, err)

	params, err := ParseTaskParameters(task.Parameters)
	require.NoError(h.t, err)

	return task, params
}

func TestNewRequiresEveryAction(t *testing.T) {
	t.Parallel()

	actions := newHappyPath().actions()
	actions.SwapTable = nil

	_, err := New(Config{Store: store.NewMemory(), Trigger: &fakeTrigger{}, Actions: actions})
	require.ErrorIs(t, err, ErrMissingAction)

	_, err = New(Config{Trigger: &fakeTrigger{}, Actions: newHappyPath().actions()})
	require.ErrorIs(t, err, ErrMissingDependency)
}

func TestStartFreshTask(t *testing.T) {
	t.Parallel()

	h := newHarness(t, newHappyPath().actions())
	h.seed(`{"flowInstanceId":11,"flowTaskID":12}`, validParams(StateYieldContext), store.StatusPreparing)

	require.NoError(t, h.machine.Start(t.Context(), h.schedule, h.task))

	task, params := h.load()
	assert.Equal(t, StateCreateGhostTables, params.State)
	assert.Equal(t, store.StatusRunning, task.Status)
	assert.Empty(t, params.ExtraInfo)
	assert.Equal(t, []submission{{h.schedule, h.task, "flow-task-12"}}, h.trigger.submitted)
}

func TestStartIsIdempotent(t *testing.T) {
	t.Parallel()

	h := newHarness(t, newHappyPath().actions())
	h.seed(`{}`, validParams(StateMonitorDataTask), store.StatusRunning)

	require.NoError(t, h.machine.Start(t.Context(), h.schedule, h.task))
	require.NoError(t, h.machine.Start(t.Context(), h.schedule, h.task))

	task, params := h.load()
	assert.Equal(t, StateMonitorDataTask, params.State)
	assert.Equal(t, store.StatusRunning, task.Status)
	assert.Len(t, h.trigger.submitted, 2)
	assert.Empty(t, h.trigger.submitted[0].CorrelationID, "jobs without a flow task let the trigger pick an id")
}

func TestCancelIsIdempotent(t *testing.T) {
	t.Parallel()

	path := newHappyPath()
	h := newHarness(t, path.actions())
	h.seed(`{}`, validParams(StateMonitorDataTask), store.StatusRunning)

	require.NoError(t, h.machine.Cancel(t.Context(), h.schedule, h.task))
	first, firstParams := h.load()

	require.NoError(t, h.machine.Cancel(t.Context(), h.schedule, h.task))
	second, secondParams := h.load()

	for _, p := range []*TaskParameters{firstParams, secondParams} {
		assert.Equal(t, StateCleanResource, p.State)
		assert.Equal(t, CancelExtraInfo, p.ExtraInfo)
	}

	assert.Equal(t, store.StatusCanceled, first.Status)
	assert.Equal(t, store.StatusCanceled, second.Status)
	assert.InDelta(t, 100, second.ProgressPercentage, 0)
	assert.Len(t, h.trigger.submitted, 2)
	assert.Zero(t, path.monitor.Calls())
}

func TestCancelThenCleanupCompletes(t *testing.T) {
	t.Parallel()

	path := newHappyPath()
	h := newHarness(t, path.actions())
	h.seed(`{}`, validParams(StateCreateDataTask), store.StatusRunning)

	require.NoError(t, h.machine.Cancel(t.Context(), h.schedule, h.task))
	require.NoError(t, h.tick())

	task, params := h.load()
	assert.Equal(t, StateComplete, params.State)
	assert.Equal(t, store.StatusCanceled, task.Status)
	assert.Equal(t, 1, path.clean.Calls())
	assert.Zero(t, path.create.Calls())
	assert.Equal(t, []int64{h.schedule}, h.trigger.canceled)
}

func TestTickPersistsOnlyAllowedStates(t *testing.T) {
	t.Parallel()

	for _, from := range registrationOrder {
		for _, to := range AllStates() {
			allowed := false

			for _, next := range transitions[from] {
				if next == to {
					allowed = true
				}
			}

			path := newHappyPath()
			actions := path.actions()
			action := &countingAction{next: to}

			switch from {
			case StateYieldContext:
				actions.YieldContext = action
			case StateCreateGhostTables:
				actions.CreateGhostTables = action
			case StateCreateDataTask:
				actions.CreateDataTask = action
			case StateMonitorDataTask:
				actions.MonitorDataTask = action
			case StateModifyDataTask:
				actions.ModifyDataTask = action
			case StateSwapTable:
				actions.SwapTable = action
			case StateCleanResource:
				actions.CleanResource = action
			case StateComplete:
			}

			h := newHarness(t, actions)
			h.seed(`{}`, validParams(from), store.StatusRunning)

			err := h.tick()
			_, params := h.load()

			if allowed {
				require.NoError(t, err, "%s -> %s", from, to)
				assert.Equal(t, to, params.State, "%s -> %s", from, to)
			} else {
				require.ErrorIs(t, err, statemachine.ErrTransitionNotAllowed, "%s -> %s", from, to)
				assert.Equal(t, from, params.State, "%s -> %s must not be persisted", from, to)
			}
		}
	}
}

func TestFirstTransitionMarksRunning(t *testing.T) {
	t.Parallel()

	h := newHarness(t, newHappyPath().actions())
	h.seed(`{}`, validParams(StateYieldContext), store.StatusPreparing)

	require.NoError(t, h.tick())

	task, params := h.load()
	assert.Equal(t, StateCreateGhostTables, params.State)
	assert.Equal(t, store.StatusRunning, task.Status)
}

func TestSwapSuccessMarksDoneBeforeCleanup(t *testing.T) {
	t.Parallel()

	path := newHappyPath()
	h := newHarness(t, path.actions())
	h.seed(`{}`, validParams(StateSwapTable), store.StatusRunning)

	require.NoError(t, h.tick())

	task, params := h.load()
	assert.Equal(t, StateCleanResource, params.State)
	assert.Equal(t, store.StatusDone, task.Status)
	assert.InDelta(t, 100, task.ProgressPercentage, 0)
	assert.Zero(t, path.clean.Calls(), "cleanup runs on the next tick")

	path.clean.err = errDataTaskAPI
	require.NoError(t, h.tick())

	task, params = h.load()
	assert.Equal(t, store.StatusDone, task.Status, "a failing cleanup does not fail the job")
	assert.Equal(t, StateCleanResource, params.State)
	assert.Contains(t, params.ExtraInfo, errDataTaskAPI.Error())
	assert.Empty(t, h.trigger.canceled)

	path.clean.err = nil
	require.NoError(t, h.tick())

	task, params = h.load()
	assert.Equal(t, store.StatusDone, task.Status)
	assert.Equal(t, StateComplete, params.State)
	assert.Equal(t, 2, path.clean.Calls())

	progress, err := h.machine.Progress(t.Context(), h.schedule)
	require.NoError(t, err)
	assert.Equal(t, store.StatusDone, progress.Status)
	assert.InDelta(t, 100, progress.Percentage, 0.001)
}

func TestCleanupFailureKeepsTerminalStatus(t *testing.T) {
	t.Parallel()

	for _, status := range []store.TaskStatus{store.StatusDone, store.StatusFailed, store.StatusCanceled} {
		path := newHappyPath()
		path.clean.err = errDataTaskAPI

		h := newHarness(t, path.actions())
		h.seed(`{}`, validParams(StateCleanResource), status)

		require.NoError(t, h.tick())

		task, params := h.load()
		assert.Equal(t, status, task.Status)
		assert.Equal(t, StateCleanResource, params.State, "status %s", status)
		assert.Equal(t, "CLEAN_RESOURCE failed: "+errDataTaskAPI.Error(), params.ExtraInfo)
	}
}

func TestExpiryDominates(t *testing.T) {
	t.Parallel()

	path := newHappyPath()
	h := newHarness(t, path.actions(), func(c *Config) { c.TaskTTL = 30 * time.Minute })
	h.seed(`{}`, validParams(StateMonitorDataTask), store.StatusCanceled)

	require.NoError(t, h.tick())

	task, params := h.load()
	assert.Equal(t, StateCleanResource, params.State)
	assert.Equal(t, store.StatusFailed, task.Status, "expiry is checked before cancellation")
	assert.Contains(t, params.ExtraInfo, "expired")
	assert.InDelta(t, 100, task.ProgressPercentage, 0)
	assert.Zero(t, path.monitor.Calls())
	assert.Len(t, h.trigger.submitted, 1)
}

func TestExpiryUsesStrictlyGreater(t *testing.T) {
	t.Parallel()

	path := newHappyPath()
	h := newHarness(t, path.actions(), func(c *Config) { c.TaskTTL = time.Hour })
	h.seed(`{}`, validParams(StateMonitorDataTask), store.StatusRunning)

	require.NoError(t, h.tick())

	task, params := h.load()
	assert.Equal(t, store.StatusRunning, task.Status)
	assert.Equal(t, StateSwapTable, params.State)
	assert.Equal(t, 1, path.monitor.Calls())
}

func TestCleanResourceIsGuardExempt(t *testing.T) {
	t.Parallel()

	for _, status := range []store.TaskStatus{store.StatusAbnormal, store.StatusCanceled, store.StatusFailed} {
		path := newHappyPath()
		h := newHarness(t, path.actions(), func(c *Config) { c.TaskTTL = time.Second })
		h.upstream.Set(5, FlowFailed)
		h.seed(`{"flowInstanceId":5}`, validParams(StateCleanResource), status)

		require.NoError(t, h.tick())

		_, params := h.load()
		assert.Equal(t, 1, path.clean.Calls(), "status %s", status)
		assert.Equal(t, StateComplete, params.State, "status %s", status)
	}
}

func TestUpstreamFailureCancels(t *testing.T) {
	t.Parallel()

	for _, status := range []FlowStatus{FlowFailed, FlowCancelled, FlowNotFound} {
		path := newHappyPath()
		h := newHarness(t, path.actions())

		if status != FlowNotFound {
			h.upstream.Set(21, status)
		}

		h.seed(`{"flowInstanceId":21}`, validParams(StateMonitorDataTask), store.StatusRunning)

		require.NoError(t, h.tick())

		task, params := h.load()
		assert.Equal(t, StateCleanResource, params.State, "flow %s", status)
		assert.Equal(t, store.StatusCanceled, task.Status, "flow %s", status)
		assert.Zero(t, path.monitor.Calls(), "flow %s", status)
	}
}

func TestUpstreamRunningContinues(t *testing.T) {
	t.Parallel()

	path := newHappyPath()
	h := newHarness(t, path.actions())
	h.upstream.Set(21, FlowRunning)
	h.seed(`{"flowInstanceId":21}`, validParams(StateMonitorDataTask), store.StatusRunning)

	require.NoError(t, h.tick())

	assert.Equal(t, 1, path.monitor.Calls())
}

func TestActionErrorHaltsUntilResumed(t *testing.T) {
	t.Parallel()

	path := newHappyPath()
	path.create.err = errDataTaskAPI

	h := newHarness(t, path.actions())
	h.seed(`{}`, validParams(StateCreateDataTask), store.StatusRunning)

	require.NoError(t, h.tick(), "action errors never escape Schedule")

	task, params := h.load()
	assert.Equal(t, store.StatusAbnormal, task.Status)
	assert.Equal(t, StateCreateDataTask, params.State)

	require.NoError(t, h.tick())
	assert.Equal(t, 1, path.create.Calls(), "abnormal tasks are skipped")
	assert.Empty(t, h.trigger.canceled)

	path.create.err = nil

	require.NoError(t, h.machine.Resume(t.Context(), h.schedule, h.task))
	require.NoError(t, h.tick())

	task, params = h.load()
	assert.Equal(t, store.StatusRunning, task.Status)
	assert.Equal(t, StateMonitorDataTask, params.State)
	assert.Equal(t, 2, path.create.Calls())
}

func TestActionPanicIsContained(t *testing.T) {
	t.Parallel()

	actions := newHappyPath().actions()
	actions.CreateGhostTables = statemachine.ActionFunc[*ActionContext](
		func(context.Context, *ActionContext) (statemachine.Result, error) {
			panic("ghost table ddl generator crashed")
		})

	h := newHarness(t, actions)
	h.seed(`{}`, validParams(StateCreateGhostTables), store.StatusRunning)

	require.NoError(t, h.tick())

	task, params := h.load()
	assert.Equal(t, store.StatusAbnormal, task.Status)
	assert.Equal(t, StateCreateGhostTables, params.State)
}

func TestResumeRejectsHealthyTask(t *testing.T) {
	t.Parallel()

	h := newHarness(t, newHappyPath().actions())
	h.seed(`{}`, validParams(StateMonitorDataTask), store.StatusRunning)

	require.ErrorIs(t, h.machine.Resume(t.Context(), h.schedule, h.task), ErrNotAbnormal)
	assert.Empty(t, h.trigger.submitted)
}

func TestCompleteCancelsTriggerOnce(t *testing.T) {
	t.Parallel()

	path := newHappyPath()
	h := newHarness(t, path.actions())
	h.seed(`{}`, validParams(StateCleanResource), store.StatusDone)

	require.NoError(t, h.tick())

	_, params := h.load()
	assert.Equal(t, StateComplete, params.State)
	assert.Equal(t, []int64{h.schedule}, h.trigger.canceled)
}

func TestFullRun(t *testing.T) {
	t.Parallel()

	path := newHappyPath()
	h := newHarness(t, path.actions())
	h.seed(`{}`, validParams(StateYieldContext), store.StatusPreparing)

	require.NoError(t, h.machine.Start(t.Context(), h.schedule, h.task))

	for range 5 {
		require.NoError(t, h.tick())
	}

	task, params := h.load()
	assert.Equal(t, StateComplete, params.State)
	assert.Equal(t, store.StatusDone, task.Status)
	assert.Zero(t, path.yield.Calls(), "start skips the yield tick")
	assert.Equal(t, 1, path.swap.Calls())
	assert.Equal(t, []int64{h.schedule}, h.trigger.canceled)
}

func TestInvalidParametersFailLoudly(t *testing.T) {
	t.Parallel()

	path := newHappyPath()
	h := newHarness(t, path.actions())

	params := validParams(StateMonitorDataTask)
	params.OriginTableName = ""
	h.seed(`{}`, params, store.StatusRunning)

	err := h.tick()
	require.ErrorIs(t, err, ErrInvalidContext)
	assert.Contains(t, err.Error(), "originTableName")
	assert.Zero(t, path.monitor.Calls())

	task, _ := h.load()
	assert.Equal(t, store.StatusRunning, task.Status)
}

func TestCorruptParametersFailLoudly(t *testing.T) {
	t.Parallel()

	h := newHarness(t, newHappyPath().actions())
	h.seed(`{}`, validParams(StateMonitorDataTask), store.StatusRunning)
	require.NoError(t, h.store.UpdateTaskParameters(t.Context(), h.task, `{"state":`))

	require.ErrorIs(t, h.tick(), ErrInvalidContext)
}

func TestUnknownStateFailsValidation(t *testing.T) {
	t.Parallel()

	h := newHarness(t, newHappyPath().actions())
	h.seed(`{}`, validParams(StateMonitorDataTask), store.StatusRunning)
	require.NoError(t, h.store.UpdateTaskParameters(t.Context(), h.task,
		`{"state":"REBUILD_INDEX","databaseName":"shop","originTableName":"orders","newTableName":"n"}`))

	require.ErrorIs(t, h.tick(), ErrInvalidContext)
}

func TestSyncFailureCancelsTrigger(t *testing.T) {
	t.Parallel()

	path := newHappyPath()
	syncer := &fakeSynchronizer{err: errDataTaskAPI}
	h := newHarness(t, path.actions(), func(c *Config) { c.Synchronizer = syncer })
	h.upstream.Set(3, FlowRunning)
	h.seed(`{"flowInstanceId":3,"flowTaskID":4}`, validParams(StateCreateGhostTables), store.StatusRunning)

	err := h.tick()
	require.ErrorIs(t, err, errDataTaskAPI)
	assert.Equal(t, []int64{h.schedule}, h.trigger.canceled)
	assert.Equal(t, []int64{3, 4, h.schedule}, syncer.calls[0])
}

func TestSyncSkippedWithoutFlowInstance(t *testing.T) {
	t.Parallel()

	syncer := &fakeSynchronizer{err: errDataTaskAPI}
	h := newHarness(t, newHappyPath().actions(), func(c *Config) { c.Synchronizer = syncer })
	h.seed(`{}`, validParams(StateCreateGhostTables), store.StatusRunning)

	require.NoError(t, h.tick())
	assert.Empty(t, syncer.calls)
}

func TestRateLimitChangeRoutesToModify(t *testing.T) {
	t.Parallel()

	path := newHappyPath()
	path.monitor.next = StateMonitorDataTask

	actions := path.actions()
	actions.ModifyDataTask = statemachine.ActionFunc[*ActionContext](
		func(_ context.Context, actx *ActionContext) (statemachine.Result, error) {
			actx.Params.RateLimit = actx.Job.RateLimit

			return statemachine.Result{NextState: string(StateMonitorDataTask)}, nil
		})

	h := newHarness(t, actions)
	h.seed(`{"rateLimitConfig":{"rowLimit":100,"dataSizeLimit":1}}`, validParams(StateMonitorDataTask), store.StatusRunning)

	require.NoError(t, h.machine.UpdateRateLimit(t.Context(), h.schedule, RateLimitConfig{RowLimit: 500, DataSizeLimit: 4}))

	require.NoError(t, h.tick())
	_, params := h.load()
	assert.Equal(t, StateModifyDataTask, params.State)

	require.NoError(t, h.tick())
	_, params = h.load()
	assert.Equal(t, StateMonitorDataTask, params.State)
	assert.Equal(t, RateLimitConfig{RowLimit: 500, DataSizeLimit: 4}, params.RateLimit)

	require.NoError(t, h.tick())
	_, params = h.load()
	assert.Equal(t, StateMonitorDataTask, params.State, "no change once the data task has the new limit")
}

func TestUpdateRateLimitRejectsFinishedSchedule(t *testing.T) {
	t.Parallel()

	h := newHarness(t, newHappyPath().actions())
	h.seed(`{}`, validParams(StateComplete), store.StatusDone)

	err := h.machine.UpdateRateLimit(t.Context(), h.schedule, RateLimitConfig{RowLimit: 1})
	require.ErrorIs(t, err, ErrTaskTerminated)

	err = h.machine.UpdateRateLimit(t.Context(), h.schedule, RateLimitConfig{RowLimit: -1})
	require.Error(t, err)
}

func TestOpaqueFieldsSurviveTicks(t *testing.T) {
	t.Parallel()

	h := newHarness(t, newHappyPath().actions())
	h.seed(`{}`, validParams(StateCreateGhostTables), store.StatusRunning)
	require.NoError(t, h.store.UpdateTaskParameters(t.Context(), h.task,
		`{"state":"CREATE_GHOST_TABLES","databaseName":"shop","originTableName":"orders",`+
			`"newTableName":"_orders_osc_new_","lockUsers":["app"],"sqlsForOmsStart":null}`))

	require.NoError(t, h.tick())

	task, params := h.load()
	assert.Equal(t, StateCreateDataTask, params.State)
	assert.Contains(t, task.Parameters, `"lockUsers":["app"]`)
	assert.Contains(t, task.Parameters, `"sqlsForOmsStart":null`)
}

func TestCompleteStateTickDisarms(t *testing.T) {
	t.Parallel()

	h := newHarness(t, newHappyPath().actions())
	h.seed(`{}`, validParams(StateComplete), store.StatusDone)

	require.NoError(t, h.tick())
	assert.Equal(t, []int64{h.schedule}, h.trigger.canceled)
}

func TestScheduleRejectsForeignTask(t *testing.T) {
	t.Parallel()

	h := newHarness(t, newHappyPath().actions())
	h.seed(`{}`, validParams(StateMonitorDataTask), store.StatusRunning)

	other := &store.Schedule{JobParameters: `{}`}
	require.NoError(t, h.store.CreateSchedule(t.Context(), other))

	require.ErrorIs(t, h.machine.Schedule(t.Context(), other.ID, h.task), ErrInvalidContext)
}

type fakeSynchronizer struct {
	err   error
	calls [][]int64
}

func (f *fakeSynchronizer) Sync(_ context.Context, flowInstanceID, flowTaskID, scheduleID int64) error {
	f.calls = append(f.calls, []int64{flowInstanceID, flowTaskID, scheduleID})

	return f.err
}

func TestSwapTableReleasesManualJob(t *testing.T) {
	t.Parallel()

	h := newHarness(t, newHappyPath().actions())

	params := validParams(StateMonitorDataTask)
	h.seed(`{"swapTableType":"MANUAL"}`, params, store.StatusRunning)

	require.ErrorIs(t, h.machine.SwapTable(t.Context(), h.schedule, h.task), ErrSwapNotReady)

	params.ManualSwapTableEnabled = true
	params.ExtraInfo = "waiting for manual swap"
	encoded, err := params.Encode()
	require.NoError(t, err)
	require.NoError(t, h.store.UpdateTaskParameters(t.Context(), h.task, encoded))

	require.NoError(t, h.machine.SwapTable(t.Context(), h.schedule, h.task))

	task, got := h.load()
	assert.True(t, got.ManualSwapTableStarted)
	assert.False(t, got.ManualSwapTableEnabled)
	assert.Equal(t, StateMonitorDataTask, got.State)
	assert.Equal(t, "waiting for manual swap", got.ExtraInfo)
	assert.Equal(t, store.StatusRunning, task.Status)

	require.ErrorIs(t, h.machine.SwapTable(t.Context(), h.schedule, h.task), ErrSwapStarted)
}

func TestSwapTableRejects(t *testing.T) {
	t.Parallel()

	ready := validParams(StateMonitorDataTask)
	ready.ManualSwapTableEnabled = true

	tests := []struct {
		name   string
		job    string
		status store.TaskStatus
		want   error
	}{
		{"automatic job", `{"swapTableType":"AUTO"}`, store.StatusRunning, ErrNotManualSwap},
		{"default job", `{}`, store.StatusRunning, ErrNotManualSwap},
		{"finished task", `{"swapTableType":"MANUAL"}`, store.StatusCanceled, ErrTaskTerminated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t, newHappyPath().actions())
			h.seed(tt.job, ready, tt.status)

			require.ErrorIs(t, h.machine.SwapTable(t.Context(), h.schedule, h.task), tt.want)

			_, got := h.load()
			assert.False(t, got.ManualSwapTableStarted)
		})
	}
}
