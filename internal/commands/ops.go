package commands

import (
	"context"
	"time"

	"github.com/surpluscoord/control-plane/internal/apierr"
	"github.com/surpluscoord/control-plane/internal/audit"
	"github.com/surpluscoord/control-plane/internal/domain"
)

// stuckTaskThreshold is how long a task may sit in scheduled or picked_up
// without progressing before OpsStuckTasks surfaces it.
const stuckTaskThreshold = 4 * time.Hour

// DashboardStats is the payload for OpsDashboard.
type DashboardStats struct {
	Listings  *audit.AggregatedStats `json:"listings"`
	Demands   *audit.AggregatedStats `json:"demands"`
	Matches   *audit.AggregatedStats `json:"matches"`
	Tasks     *audit.AggregatedStats `json:"tasks"`
	TopActors []audit.TopActor       `json:"topActors"`
}

func requireOpsRole(actor Actor) error {
	if !actor.HasAnyRole(domain.RoleOperator, domain.RoleAdmin) {
		return apierr.AuthorizationError("only operator or admin may access operations endpoints").WithRequestID(actor.RequestID)
	}
	return nil
}

// OpsDashboard reports aggregated activity stats across every entity type
// for the window [from, to), plus the most active actors on delivery tasks.
func (s *Service) OpsDashboard(ctx context.Context, actor Actor, from, to time.Time) (*DashboardStats, error) {
	if err := requireOpsRole(actor); err != nil {
		return nil, err
	}
	listings, err := s.AuditLog.GetAggregatedStats(ctx, "SurplusListing", from, to)
	if err != nil {
		return nil, apierr.InternalError(err.Error()).WithRequestID(actor.RequestID)
	}
	demands, err := s.AuditLog.GetAggregatedStats(ctx, "DemandPost", from, to)
	if err != nil {
		return nil, apierr.InternalError(err.Error()).WithRequestID(actor.RequestID)
	}
	matches, err := s.AuditLog.GetAggregatedStats(ctx, "MatchRecommendation", from, to)
	if err != nil {
		return nil, apierr.InternalError(err.Error()).WithRequestID(actor.RequestID)
	}
	tasks, err := s.AuditLog.GetAggregatedStats(ctx, "DeliveryTask", from, to)
	if err != nil {
		return nil, apierr.InternalError(err.Error()).WithRequestID(actor.RequestID)
	}
	topActors, err := s.AuditLog.GetTopActors(ctx, "DeliveryTask", from, to, 10)
	if err != nil {
		return nil, apierr.InternalError(err.Error()).WithRequestID(actor.RequestID)
	}
	return &DashboardStats{Listings: listings, Demands: demands, Matches: matches, Tasks: tasks, TopActors: topActors}, nil
}

// OpsStuckTasks returns delivery tasks that have sat in scheduled or
// picked_up for longer than stuckTaskThreshold without progressing.
func (s *Service) OpsStuckTasks(ctx context.Context, actor Actor) ([]*domain.DeliveryTask, error) {
	if err := requireOpsRole(actor); err != nil {
		return nil, err
	}
	cutoff := time.Now().Add(-stuckTaskThreshold)
	stuck := make([]*domain.DeliveryTask, 0)
	for _, status := range []domain.Status{domain.StatusScheduled, domain.StatusPickedUp} {
		tasks, err := s.Stores.Tasks.QueryByStatus(ctx, status, 0)
		if err != nil {
			return nil, apierr.InternalError(err.Error()).WithRequestID(actor.RequestID)
		}
		for _, t := range tasks {
			if t.UpdatedAt.Before(cutoff) {
				stuck = append(stuck, t)
			}
		}
	}
	return stuck, nil
}

// OverrideTask forces a delivery task directly to newStatus, bypassing the
// lifecycle table's role gate (but never its terminal-state immutability),
// for an operator or admin resolving a stuck or misreported task. Always
// requires a justification, recorded against the audit event.
func (s *Service) OverrideTask(ctx context.Context, actor Actor, id string, expectedVersion int, newStatus domain.Status, justification string) (*domain.DeliveryTask, error) {
	if err := requireOpsRole(actor); err != nil {
		return nil, err
	}
	if justification == "" {
		return nil, apierr.ValidationError("an override requires a justification").WithRequestID(actor.RequestID)
	}
	existing, err := s.Stores.Tasks.GetOrFail(ctx, id)
	if err != nil {
		return nil, notFoundOrInternal(actor, "task", err)
	}
	if domain.IsTerminal(existing.Status) {
		return nil, apierr.InvalidStateTransitionError("task is already in a terminal state").WithRequestID(actor.RequestID)
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

	s.AuditLog.WriteEvent(ctx, auditInputJustified(actor, "DeliveryTask", id, "operator_override", &before, updated, justification))
	return updated, nil
}

// AuditExportFilter narrows AuditExport.
type AuditExportFilter struct {
	EntityType string
	EntityID   string
	From       time.Time
	To         time.Time
	Limit      int
}

// AuditExport returns raw audit events for one entity in a time range, for
// compliance reporting and postmortems. An entity id is required; export by
// entity type alone is refused with a validation error.
func (s *Service) AuditExport(ctx context.Context, actor Actor, filter AuditExportFilter) ([]*domain.AuditEvent, error) {
	if err := requireOpsRole(actor); err != nil {
		return nil, err
	}
	limit := defaultListLimit(filter.Limit)
	if filter.EntityID != "" {
		events, err := s.AuditLog.GetEntityHistory(ctx, filter.EntityID, filter.From, filter.To, limit)
		if err != nil {
			return nil, apierr.InternalError(err.Error()).WithRequestID(actor.RequestID)
		}
		return events, nil
	}
	return nil, apierr.ValidationError("entityId is required to export audit history").WithRequestID(actor.RequestID)
}
