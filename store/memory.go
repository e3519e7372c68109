package store

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// Memory keeps schedules and tasks in maps. Records are copied in and out so
// callers never share memory with the store.
type Memory struct {
	mu        sync.RWMutex
	schedules map[int64]Schedule
	tasks     map[int64]ScheduleTask
	nextID    int64
	now       func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		schedules: make(map[int64]Schedule),
		tasks:     make(map[int64]ScheduleTask),
		now:       time.Now,
	}
}

func (m *Memory) CreateSchedule(_ context.Context, s *Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	s.ID = m.nextID

	if s.CreatedAt.IsZero() {
		s.CreatedAt = m.now()
	}

	m.schedules[s.ID] = *s

	return nil
}

func (m *Memory) GetSchedule(_ context.Context, id int64) (*Schedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.schedules[id]
	if !ok {
		return nil, fmt.Errorf("schedule %d: %w", id, ErrNotFound)
	}

	return &s, nil
}

func (m *Memory) CreateTask(_ context.Context, t *ScheduleTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.schedules[t.ScheduleID]; !ok {
		return fmt.Errorf("schedule %d: %w", t.ScheduleID, ErrNotFound)
	}

	m.nextID++
	t.ID = m.nextID

	if t.CreatedAt.IsZero() {
		t.CreatedAt = m.now()
	}

	if t.Status == "" {
		t.Status = StatusPreparing
	}

	t.UpdatedAt = t.CreatedAt
	m.tasks[t.ID] = *t

	return nil
}

func (m *Memory) GetTask(_ context.Context, id int64) (*ScheduleTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tasks[id]
	if !ok {
		return nil, fmt.Errorf("schedule task %d: %w", id, ErrNotFound)
	}

	return &t, nil
}

func (m *Memory) ListTasks(_ context.Context, scheduleID int64) ([]*ScheduleTask, error) {
	return m.filter(func(t ScheduleTask) bool { return t.ScheduleID == scheduleID }), nil
}

func (m *Memory) ListTasksByStatus(_ context.Context, statuses ...TaskStatus) ([]*ScheduleTask, error) {
	return m.filter(func(t ScheduleTask) bool { return slices.Contains(statuses, t.Status) }), nil
}

func (m *Memory) UpdateTask(_ context.Context, t *ScheduleTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.tasks[t.ID]
	if !ok {
		return fmt.Errorf("schedule task %d: %w", t.ID, ErrNotFound)
	}

	t.CreatedAt = existing.CreatedAt
	t.UpdatedAt = m.now()
	m.tasks[t.ID] = *t

	return nil
}

func (m *Memory) UpdateTaskStatus(_ context.Context, id int64, status TaskStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok {
		return fmt.Errorf("schedule task %d: %w", id, ErrNotFound)
	}

	t.Status = status
	t.UpdatedAt = m.now()
	m.tasks[id] = t

	return nil
}

// UpdateTaskParameters replaces only the parameters of a task.
func (m *Memory) UpdateTaskParameters(_ context.Context, id int64, params string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok {
		return fmt.Errorf("schedule task %d: %w", id, ErrNotFound)
	}

	t.Parameters = params
	t.UpdatedAt = m.now()
	m.tasks[id] = t

	return nil
}

func (m *Memory) UpdateJobParameters(_ context.Context, scheduleID int64, params string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.schedules[scheduleID]
	if !ok {
		return fmt.Errorf("schedule %d: %w", scheduleID, ErrNotFound)
	}

	s.JobParameters = params
	m.schedules[scheduleID] = s

	return nil
}

func (m *Memory) Close() error {
	return nil
}

func (m *Memory) filter(keep func(ScheduleTask) bool) []*ScheduleTask {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*ScheduleTask

	for _, t := range m.tasks {
		if keep(t) {
			c := t
			out = append(out, &c)
		}
	}

	slices.SortFunc(out, func(a, b *ScheduleTask) int {
		return cmp.Compare(a.ID, b.ID)
	})

	return out
}
