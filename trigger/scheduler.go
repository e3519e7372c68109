package trigger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/amp-labs/osc/logger"
)

// Scheduler is the adapter the workflow uses to arm and disarm ticks.
type Scheduler struct {
	facility Facility
}

func NewScheduler(facility Facility) *Scheduler {
	return &Scheduler{facility: facility}
}

// Submit creates the schedule's trigger, or points the existing one at
// taskID. An empty correlationID gets a generated one.
func (s *Scheduler) Submit(ctx context.Context, scheduleID, taskID int64, correlationID string) error {
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	payload := Payload{
		ScheduleID:    scheduleID,
		TaskID:        taskID,
		CorrelationID: correlationID,
		Carrier:       carrier,
	}

	key := Key(scheduleID)

	exists, err := s.facility.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("checking trigger %s: %w", key, err)
	}

	op := "create"

	if exists {
		op = "update"
		err = s.facility.UpdatePayload(ctx, key, payload)
	} else {
		err = s.facility.Create(ctx, key, payload)
	}

	if err != nil {
		operations.WithLabelValues(op, "error").Inc()

		return fmt.Errorf("submitting trigger %s: %w", key, err)
	}

	operations.WithLabelValues(op, "ok").Inc()

	logger.Get(ctx).Debug("Trigger submitted",
		"key", key,
		"task_id", taskID,
		"correlation_id", correlationID,
		"op", op)

	return nil
}

// Cancel deletes the schedule's trigger. A missing trigger is fine and
// other failures are only logged.
func (s *Scheduler) Cancel(ctx context.Context, scheduleID int64) {
	key := Key(scheduleID)

	err := s.facility.Delete(ctx, key)

	switch {
	case err == nil:
		operations.WithLabelValues("delete", "ok").Inc()
		logger.Get(ctx).Debug("Trigger deleted", "key", key)
	case errors.Is(err, ErrNotFound):
		operations.WithLabelValues("delete", "missing").Inc()
	default:
		operations.WithLabelValues("delete", "error").Inc()
		logger.Get(ctx).Warn("Failed to delete trigger", "key", key, "error", err)
	}
}
