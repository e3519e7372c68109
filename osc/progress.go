package osc

import (
	"context"
	"fmt"
	"sync"

	"github.com/amp-labs/osc/logger"
	"github.com/amp-labs/osc/store"
)

// Progress aggregates every task of a schedule.
type Progress struct {
	Status store.TaskStatus
	// Percentage is in [0, 100].
	Percentage float64
	Tasks      int
}

// ComputeProgress folds task statuses into one. CANCELED wins over
// ABNORMAL, which wins over everything else. Once every task has finished
// the result is DONE, or FAILED if any of them failed.
func ComputeProgress(tasks []*store.ScheduleTask) Progress {
	p := Progress{Status: store.StatusRunning, Tasks: len(tasks)}
	if len(tasks) == 0 {
		return p
	}

	var canceled, abnormal, failed, finished int

	var sum float64

	for _, t := range tasks {
		switch t.Status {
		case store.StatusCanceled:
			canceled++
		case store.StatusAbnormal:
			abnormal++
		case store.StatusFailed:
			failed++
			finished++
		case store.StatusDone:
			finished++
		case store.StatusPreparing, store.StatusRunning:
		}

		switch t.Status {
		case store.StatusPreparing:
		case store.StatusRunning, store.StatusAbnormal:
			sum += t.ProgressPercentage / 100
		default:
			sum++
		}
	}

	p.Percentage = sum / float64(len(tasks)) * 100

	switch {
	case canceled > 0:
		p.Status = store.StatusCanceled
	case abnormal > 0:
		p.Status = store.StatusAbnormal
	case finished == len(tasks) && failed == 0:
		p.Status = store.StatusDone
	case failed > 0:
		p.Status = store.StatusFailed
	}

	return p
}

// Progress returns the aggregate progress of a schedule.
func (m *Machine) Progress(ctx context.Context, scheduleID int64) (Progress, error) {
	tasks, err := m.store.ListTasks(ctx, scheduleID)
	if err != nil {
		return Progress{}, err
	}

	return ComputeProgress(tasks), nil
}

// FlowSynchronizer pushes a schedule's progress to its upstream workflow.
type FlowSynchronizer interface {
	Sync(ctx context.Context, flowInstanceID, flowTaskID, scheduleID int64) error
}

// FlowTaskUpdater receives progress reports for an upstream flow task.
type FlowTaskUpdater interface {
	UpdateFlowTask(ctx context.Context, flowInstanceID, flowTaskID int64, progress Progress) error
}

// TaskLister is the part of TaskStore StoreFlowSynchronizer reads.
type TaskLister interface {
	ListTasks(ctx context.Context, scheduleID int64) ([]*store.ScheduleTask, error)
}

// StoreFlowSynchronizer computes progress from the store and forwards it to
// an updater whenever the percentage grows or the status changes.
type StoreFlowSynchronizer struct {
	tasks   TaskLister
	updater FlowTaskUpdater

	mu   sync.Mutex
	last map[int64]Progress
}

func NewStoreFlowSynchronizer(tasks TaskLister, updater FlowTaskUpdater) *StoreFlowSynchronizer {
	return &StoreFlowSynchronizer{
		tasks:   tasks,
		updater: updater,
		last:    make(map[int64]Progress),
	}
}

func (s *StoreFlowSynchronizer) Sync(ctx context.Context, flowInstanceID, flowTaskID, scheduleID int64) error {
	tasks, err := s.tasks.ListTasks(ctx, scheduleID)
	if err != nil {
		return fmt.Errorf("listing tasks of schedule %d: %w", scheduleID, err)
	}

	current := ComputeProgress(tasks)

	s.mu.Lock()
	previous, seen := s.last[scheduleID]
	s.mu.Unlock()

	if seen && current.Percentage <= previous.Percentage && current.Status == previous.Status {
		return nil
	}

	if err := s.updater.UpdateFlowTask(ctx, flowInstanceID, flowTaskID, current); err != nil {
		return err
	}

	s.mu.Lock()
	s.last[scheduleID] = current
	s.mu.Unlock()

	return nil
}

// LogFlowTaskUpdater writes progress reports to the log.
type LogFlowTaskUpdater struct{}

func (LogFlowTaskUpdater) UpdateFlowTask(ctx context.Context, flowInstanceID, flowTaskID int64, p Progress) error {
	logger.Get(ctx).Info("Flow task progress",
		"flow_instance_id", flowInstanceID,
		"flow_task_id", flowTaskID,
		"status", p.Status,
		"progress", p.Percentage)

	return nil
}
