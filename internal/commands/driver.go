package commands

import (
	"context"
	"time"

	"github.com/surpluscoord/control-plane/internal/apierr"
	"github.com/surpluscoord/control-plane/internal/domain"
	"github.com/surpluscoord/control-plane/internal/eventbus"
)

// ListDriverTasksFilter narrows ListDriverTasks.
type ListDriverTasksFilter struct {
	Status domain.Status
	Limit  int
}

// ListDriverTasks returns the tasks assigned to driverID, optionally
// narrowed to one status. The driver themself or an operator/admin may
// call it; it never lists tasks across drivers.
func (s *Service) ListDriverTasks(ctx context.Context, actor Actor, driverID string, filter ListDriverTasksFilter) ([]*domain.DeliveryTask, error) {
	if err := Authorize(actor, driverID, domain.RoleOperator); err != nil {
		return nil, err
	}
	limit := defaultListLimit(filter.Limit)
	tasks, err := s.Stores.Tasks.QueryByOwner(ctx, driverID, limit)
	if err != nil {
		return nil, apierr.InternalError(err.Error()).WithRequestID(actor.RequestID)
	}
	if filter.Status == "" {
		return tasks, nil
	}
	filtered := make([]*domain.DeliveryTask, 0, len(tasks))
	for _, t := range tasks {
		if t.Status == filter.Status {
			filtered = append(filtered, t)
		}
	}
	return filtered, nil
}

// taskTimestampsFor records the actual pickup/delivery timestamp that
// accompanies a status transition, when applicable.
func taskTimestampsFor(status domain.Status, at time.Time, task *domain.DeliveryTask) {
	switch status {
	case domain.StatusPickedUp:
		task.ActualPickupAt = &at
	case domain.StatusDelivered:
		task.ActualDeliverAt = &at
	}
}

// UpdateTaskStatus drives a delivery task through the shared lifecycle
// table: scheduled -> picked_up -> delivered, or a failure/cancellation
// off that path. Only the assigned driver or an operator/admin may call
// this.
func (s *Service) UpdateTaskStatus(ctx context.Context, actor Actor, id string, expectedVersion int, newStatus domain.Status, justification string) (*domain.DeliveryTask, error) {
	existing, err := s.Stores.Tasks.GetOrFail(ctx, id)
	if err != nil {
		return nil, notFoundOrInternal(actor, "task", err)
	}
	if err := Authorize(actor, existing.DriverID, domain.RoleOperator); err != nil {
		return nil, err
	}
	isOwner := actor.UserID == existing.DriverID
	if err := s.Transitions.Transition(existing.Status, newStatus, primaryRole(actor), isOwner, statemachineCtx(justification)); err != nil {
		return nil, transitionError(actor, err)
	}

	before := *existing
	now := time.Now()
	updated, err := s.Stores.Tasks.UpdateFields(ctx, id, expectedVersion, func(t *domain.DeliveryTask) {
		t.Status = newStatus
		taskTimestampsFor(newStatus, now, t)
	})
	if err != nil {
		return nil, conflictOrInternal(actor, err)
	}

	s.AuditLog.WriteEvent(ctx, auditInputJustified(actor, "DeliveryTask", id, "status_change", &before, updated, justification))
	s.publish(eventbus.EventTypeTaskStatusChanged, id, map[string]any{"status": string(newStatus)})
	return updated, nil
}

// UpdateTaskLocation records the driver's current position against an
// in-flight task. This is a high-frequency, non-transitioning write, so it
// skips the state machine and audit log and only checks ownership.
func (s *Service) UpdateTaskLocation(ctx context.Context, actor Actor, id string, coordinates domain.Coordinates) (*domain.DeliveryTask, error) {
	existing, err := s.Stores.Tasks.GetOrFail(ctx, id)
	if err != nil {
		return nil, notFoundOrInternal(actor, "task", err)
	}
	if err := Authorize(actor, existing.DriverID, domain.RoleOperator); err != nil {
		return nil, err
	}

	updated, err := s.Stores.Tasks.UpdateFields(ctx, id, existing.Version, func(t *domain.DeliveryTask) {
		t.CurrentLocation = &coordinates
	})
	if err != nil {
		return nil, conflictOrInternal(actor, err)
	}
	return updated, nil
}
