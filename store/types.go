// Package store persists migration schedules and their task attempts.
//
// Both implementations replace a task record as a whole on UpdateTask: the
// workflow engine reads a task at the start of a tick and writes it back at
// the end, and relies on the trigger facility to never overlap ticks for the
// same task.
package store

import (
	"time"

	"github.com/amp-labs/osc/errors"
)

// ErrNotFound is returned when a schedule or task id does not exist.
var ErrNotFound = errors.ErrNotFound

// TaskStatus is the externally visible status of a task attempt.
type TaskStatus string

const (
	StatusPreparing TaskStatus = "PREPARING"
	StatusRunning   TaskStatus = "RUNNING"
	StatusDone      TaskStatus = "DONE"
	StatusFailed    TaskStatus = "FAILED"
	StatusCanceled  TaskStatus = "CANCELED"
	// StatusAbnormal means the task crashed and waits for an operator.
	StatusAbnormal TaskStatus = "ABNORMAL"
)

// IsTerminal reports whether no further ticks may change the task.
func (s TaskStatus) IsTerminal() bool {
	return s == StatusDone || s == StatusFailed || s == StatusCanceled
}

// Valid reports whether s is one of the known statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusPreparing, StatusRunning, StatusDone, StatusFailed, StatusCanceled, StatusAbnormal:
		return true
	default:
		return false
	}
}

// Schedule is the durable definition of one migration job.
type Schedule struct {
	ID             int64
	DatasourceID   int64
	JobParameters  string
	Creator        string
	OrganizationID int64
	CreatedAt      time.Time
}

// ScheduleTask is one execution attempt of a Schedule. The current state
// machine state lives inside Parameters.
type ScheduleTask struct {
	ID                 int64
	ScheduleID         int64
	Parameters         string
	Status             TaskStatus
	ProgressPercentage float64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Clone returns a copy that can be mutated without affecting t.
func (t *ScheduleTask) Clone() *ScheduleTask {
	c := *t

	return &c
}
