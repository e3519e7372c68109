package osc

import (
	"context"
	"sync"
)

// FlowStatus is the status of the upstream approval workflow a job belongs to.
type FlowStatus string

const (
	FlowRunning   FlowStatus = "RUNNING"
	FlowDone      FlowStatus = "DONE"
	FlowFailed    FlowStatus = "FAILED"
	FlowCancelled FlowStatus = "CANCELLED"
	// FlowNotFound means the upstream workflow no longer exists.
	FlowNotFound FlowStatus = "NOT_FOUND"
)

// Aborted reports whether the workflow can no longer drive the task.
func (s FlowStatus) Aborted() bool {
	return s == FlowFailed || s == FlowCancelled || s == FlowNotFound
}

// UpstreamLookup reports the status of an upstream workflow instance.
type UpstreamLookup interface {
	FlowStatus(ctx context.Context, flowInstanceID int64) (FlowStatus, error)
}

// StaticUpstream is an UpstreamLookup backed by a map. Unknown ids report
// FlowNotFound.
type StaticUpstream struct {
	mu       sync.RWMutex
	statuses map[int64]FlowStatus
}

func NewStaticUpstream() *StaticUpstream {
	return &StaticUpstream{statuses: make(map[int64]FlowStatus)}
}

func (s *StaticUpstream) Set(flowInstanceID int64, status FlowStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.statuses[flowInstanceID] = status
}

func (s *StaticUpstream) FlowStatus(_ context.Context, flowInstanceID int64) (FlowStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status, ok := s.statuses[flowInstanceID]
	if !ok {
		return FlowNotFound, nil
	}

	return status, nil
}
