package commands

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/surpluscoord/control-plane/internal/apierr"
	"github.com/surpluscoord/control-plane/internal/domain"
	"github.com/surpluscoord/control-plane/internal/eventbus"
	"github.com/surpluscoord/control-plane/internal/geohash"
	"github.com/surpluscoord/control-plane/internal/store"
)

// CreateListingInput is the validated payload for CreateListing.
type CreateListingInput struct {
	Title          string               `json:"title" validate:"required"`
	Description    string               `json:"description"`
	Category       domain.Category      `json:"category" validate:"required"`
	Quantity       float64              `json:"quantity" validate:"gt=0"`
	Unit           string               `json:"unit" validate:"required"`
	Address        string               `json:"address" validate:"required"`
	Coordinates    *domain.Coordinates  `json:"coordinates"`
	PickupWindow   domain.TimeWindow    `json:"pickupWindow"`
	ExpirationDate *time.Time           `json:"expirationDate"`
	Handling       domain.HandlingFlags `json:"handling"`
	QualityNotes   string               `json:"qualityNotes"`
}

// CreateListing persists a new listing owned by the acting supplier and
// triggers the orchestrator's listing.created pipeline once it is saved.
func (s *Service) CreateListing(ctx context.Context, actor Actor, input CreateListingInput) (*domain.SurplusListing, error) {
	if err := validateStruct(actor, input); err != nil {
		return nil, err
	}
	if !actor.HasAnyRole(domain.RoleSupplier, domain.RoleOperator, domain.RoleAdmin) {
		return nil, apierr.AuthorizationError("only a supplier, operator or admin may post a listing").WithRequestID(actor.RequestID)
	}

	listing := &domain.SurplusListing{
		Base:           domain.Base{ID: uuid.NewString()},
		SupplierID:     actor.UserID,
		Title:          input.Title,
		Description:    input.Description,
		Category:       input.Category,
		Quantity:       input.Quantity,
		Unit:           input.Unit,
		Address:        input.Address,
		Coordinates:    input.Coordinates,
		PickupWindow:   input.PickupWindow,
		ExpirationDate: input.ExpirationDate,
		Handling:       input.Handling,
		QualityNotes:   input.QualityNotes,
		Status:         domain.StatusPosted,
	}
	if listing.Coordinates != nil {
		listing.Geohash = geohash.Encode(listing.Coordinates.Lat, listing.Coordinates.Lon, 6)
	}

	if err := s.Stores.Listings.Put(ctx, listing); err != nil {
		return nil, apierr.InternalError("failed to persist listing").WithRequestID(actor.RequestID)
	}

	s.AuditLog.WriteEvent(ctx, auditInput(actor, "SurplusListing", listing.ID, "create", nil, listing))
	s.publish(eventbus.EventTypeListingCreated, listing.ID, map[string]any{"supplierId": listing.SupplierID})

	if s.Orchestrator != nil {
		if err := s.Orchestrator.HandleListingCreated(ctx, listing.ID); err != nil {
			s.Logger.Warn("orchestrator run failed for new listing", "listing_id", listing.ID, "error", err)
		}
	}

	return s.Stores.Listings.GetOrFail(ctx, listing.ID)
}

// GetListing loads one listing by id.
func (s *Service) GetListing(ctx context.Context, actor Actor, id string) (*domain.SurplusListing, error) {
	listing, err := s.Stores.Listings.GetOrFail(ctx, id)
	if err != nil {
		return nil, notFoundOrInternal(actor, "listing", err)
	}
	return listing, nil
}

// ListListingsFilter narrows ListListings.
type ListListingsFilter struct {
	Status domain.Status
	UserID string
	Limit  int
}

// ListListings returns listings filtered by status and/or owning supplier.
func (s *Service) ListListings(ctx context.Context, actor Actor, filter ListListingsFilter) ([]*domain.SurplusListing, error) {
	limit := defaultListLimit(filter.Limit)
	if filter.UserID != "" {
		return s.Stores.Listings.QueryByOwner(ctx, filter.UserID, limit)
	}
	if filter.Status != "" {
		return s.Stores.Listings.QueryByStatus(ctx, filter.Status, limit)
	}
	return s.Stores.Listings.QueryByStatus(ctx, domain.StatusPosted, limit)
}

// UpdateListing applies a partial update and, if a material field changed
// (category, quantity, coordinates), re-runs the orchestrator.
func (s *Service) UpdateListing(ctx context.Context, actor Actor, id string, expectedVersion int, updates map[string]any) (*domain.SurplusListing, error) {
	existing, err := s.Stores.Listings.GetOrFail(ctx, id)
	if err != nil {
		return nil, notFoundOrInternal(actor, "listing", err)
	}
	if err := Authorize(actor, existing.SupplierID, domain.RoleOperator); err != nil {
		return nil, err
	}

	before := *existing
	material := updatesTouchMaterialListingFields(updates)

	updated, err := s.Stores.Listings.UpdateFields(ctx, id, expectedVersion, func(e *domain.SurplusListing) {
		_ = ApplyUpdate(e, updates)
		if e.Coordinates != nil {
			e.Geohash = geohash.Encode(e.Coordinates.Lat, e.Coordinates.Lon, 6)
		}
	})
	if err != nil {
		return nil, conflictOrInternal(actor, err)
	}

	s.AuditLog.WriteEvent(ctx, auditInput(actor, "SurplusListing", id, "update", &before, updated))
	s.publish(eventbus.EventTypeListingUpdated, id, map[string]any{"supplierId": updated.SupplierID})

	if material && s.Orchestrator != nil {
		if err := s.Orchestrator.HandleListingUpdated(ctx, id); err != nil {
			s.Logger.Warn("orchestrator run failed for updated listing", "listing_id", id, "error", err)
		}
	}

	return updated, nil
}

// CancelListing transitions a listing to canceled.
func (s *Service) CancelListing(ctx context.Context, actor Actor, id string, expectedVersion int, justification string) (*domain.SurplusListing, error) {
	existing, err := s.Stores.Listings.GetOrFail(ctx, id)
	if err != nil {
		return nil, notFoundOrInternal(actor, "listing", err)
	}
	if err := Authorize(actor, existing.SupplierID, domain.RoleOperator); err != nil {
		return nil, err
	}
	isOwner := actor.UserID == existing.SupplierID
	if err := s.Transitions.Transition(existing.Status, domain.StatusCanceled, primaryRole(actor), isOwner, statemachineCtx(justification)); err != nil {
		return nil, transitionError(actor, err)
	}

	before := *existing
	updated, err := s.Stores.Listings.UpdateFields(ctx, id, expectedVersion, func(e *domain.SurplusListing) {
		e.Status = domain.StatusCanceled
	})
	if err != nil {
		return nil, conflictOrInternal(actor, err)
	}

	s.AuditLog.WriteEvent(ctx, auditInputJustified(actor, "SurplusListing", id, "cancel", &before, updated, justification))
	s.publish(eventbus.EventTypeListingUpdated, id, map[string]any{"status": string(domain.StatusCanceled)})
	return updated, nil
}

func updatesTouchMaterialListingFields(updates map[string]any) bool {
	for _, field := range []string{"category", "quantity", "coordinates", "address"} {
		if _, ok := updates[field]; ok {
			return true
		}
	}
	return false
}

func notFoundOrInternal(actor Actor, resource string, err error) error {
	if err == store.ErrNotFound {
		return apierr.NotFoundError(resource).WithRequestID(actor.RequestID)
	}
	return apierr.InternalError(err.Error()).WithRequestID(actor.RequestID)
}

func conflictOrInternal(actor Actor, err error) error {
	if err == store.ErrConflict {
		return apierr.ConflictError("entity was modified concurrently, reload and retry").WithRequestID(actor.RequestID)
	}
	return apierr.InternalError(err.Error()).WithRequestID(actor.RequestID)
}
