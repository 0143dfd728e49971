package commands

import (
	"context"

	"github.com/google/uuid"

	"github.com/surpluscoord/control-plane/internal/apierr"
	"github.com/surpluscoord/control-plane/internal/domain"
	"github.com/surpluscoord/control-plane/internal/eventbus"
	"github.com/surpluscoord/control-plane/internal/geohash"
)

// CreateDemandInput is the validated payload for CreateDemand.
type CreateDemandInput struct {
	Categories       []domain.Category   `json:"categories" validate:"required,min=1"`
	QuantityNeeded   float64             `json:"quantityNeeded" validate:"gt=0"`
	Capacity         float64             `json:"capacity" validate:"gt=0"`
	Address          string              `json:"address" validate:"required"`
	Coordinates      *domain.Coordinates `json:"coordinates"`
	AcceptanceWindow domain.TimeWindow   `json:"acceptanceWindow"`
	PriorityLevel    int                 `json:"priorityLevel" validate:"gte=0,lte=10"`
}

// CreateDemand persists a new demand post owned by the acting recipient and
// triggers the orchestrator's demand.created pipeline once it is saved.
func (s *Service) CreateDemand(ctx context.Context, actor Actor, input CreateDemandInput) (*domain.DemandPost, error) {
	if err := validateStruct(actor, input); err != nil {
		return nil, err
	}
	if !actor.HasAnyRole(domain.RoleRecipient, domain.RoleOperator, domain.RoleAdmin) {
		return nil, apierr.AuthorizationError("only a recipient, operator or admin may post a demand").WithRequestID(actor.RequestID)
	}

	demand := &domain.DemandPost{
		Base:             domain.Base{ID: uuid.NewString()},
		RecipientID:      actor.UserID,
		Categories:       input.Categories,
		QuantityNeeded:   input.QuantityNeeded,
		Capacity:         input.Capacity,
		Address:          input.Address,
		Coordinates:      input.Coordinates,
		AcceptanceWindow: input.AcceptanceWindow,
		PriorityLevel:    input.PriorityLevel,
		Status:           domain.StatusPosted,
	}
	if demand.Coordinates != nil {
		demand.Geohash = geohash.Encode(demand.Coordinates.Lat, demand.Coordinates.Lon, 6)
	}

	if err := s.Stores.Demands.Put(ctx, demand); err != nil {
		return nil, apierr.InternalError("failed to persist demand").WithRequestID(actor.RequestID)
	}

	s.AuditLog.WriteEvent(ctx, auditInput(actor, "DemandPost", demand.ID, "create", nil, demand))
	s.publish(eventbus.EventTypeDemandCreated, demand.ID, map[string]any{"recipientId": demand.RecipientID})

	if s.Orchestrator != nil {
		if err := s.Orchestrator.HandleDemandCreated(ctx, demand.ID); err != nil {
			s.Logger.Warn("orchestrator run failed for new demand", "demand_id", demand.ID, "error", err)
		}
	}

	return s.Stores.Demands.GetOrFail(ctx, demand.ID)
}

// GetDemand loads one demand post by id.
func (s *Service) GetDemand(ctx context.Context, actor Actor, id string) (*domain.DemandPost, error) {
	demand, err := s.Stores.Demands.GetOrFail(ctx, id)
	if err != nil {
		return nil, notFoundOrInternal(actor, "demand", err)
	}
	return demand, nil
}

// ListDemandsFilter narrows ListDemands.
type ListDemandsFilter struct {
	Status domain.Status
	UserID string
	Limit  int
}

// ListDemands returns demand posts filtered by status and/or owning recipient.
func (s *Service) ListDemands(ctx context.Context, actor Actor, filter ListDemandsFilter) ([]*domain.DemandPost, error) {
	limit := defaultListLimit(filter.Limit)
	if filter.UserID != "" {
		return s.Stores.Demands.QueryByOwner(ctx, filter.UserID, limit)
	}
	if filter.Status != "" {
		return s.Stores.Demands.QueryByStatus(ctx, filter.Status, limit)
	}
	return s.Stores.Demands.QueryByStatus(ctx, domain.StatusPosted, limit)
}

// UpdateDemand applies a partial update to a demand post.
func (s *Service) UpdateDemand(ctx context.Context, actor Actor, id string, expectedVersion int, updates map[string]any) (*domain.DemandPost, error) {
	existing, err := s.Stores.Demands.GetOrFail(ctx, id)
	if err != nil {
		return nil, notFoundOrInternal(actor, "demand", err)
	}
	if err := Authorize(actor, existing.RecipientID, domain.RoleOperator); err != nil {
		return nil, err
	}

	before := *existing
	updated, err := s.Stores.Demands.UpdateFields(ctx, id, expectedVersion, func(e *domain.DemandPost) {
		_ = ApplyUpdate(e, updates)
		if e.Coordinates != nil {
			e.Geohash = geohash.Encode(e.Coordinates.Lat, e.Coordinates.Lon, 6)
		}
	})
	if err != nil {
		return nil, conflictOrInternal(actor, err)
	}

	s.AuditLog.WriteEvent(ctx, auditInput(actor, "DemandPost", id, "update", &before, updated))
	s.publish(eventbus.EventTypeDemandUpdated, id, map[string]any{"recipientId": updated.RecipientID})
	return updated, nil
}

// CloseDemand transitions a demand post to closed.
func (s *Service) CloseDemand(ctx context.Context, actor Actor, id string, expectedVersion int, justification string) (*domain.DemandPost, error) {
	existing, err := s.Stores.Demands.GetOrFail(ctx, id)
	if err != nil {
		return nil, notFoundOrInternal(actor, "demand", err)
	}
	if err := Authorize(actor, existing.RecipientID, domain.RoleOperator); err != nil {
		return nil, err
	}
	isOwner := actor.UserID == existing.RecipientID
	if err := s.Transitions.Transition(existing.Status, domain.StatusClosed, primaryRole(actor), isOwner, statemachineCtx(justification)); err != nil {
		return nil, transitionError(actor, err)
	}

	before := *existing
	updated, err := s.Stores.Demands.UpdateFields(ctx, id, expectedVersion, func(e *domain.DemandPost) {
		e.Status = domain.StatusClosed
	})
	if err != nil {
		return nil, conflictOrInternal(actor, err)
	}

	s.AuditLog.WriteEvent(ctx, auditInputJustified(actor, "DemandPost", id, "close", &before, updated, justification))
	s.publish(eventbus.EventTypeDemandUpdated, id, map[string]any{"status": string(domain.StatusClosed)})
	return updated, nil
}
