package commands

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/surpluscoord/control-plane/internal/apierr"
	"github.com/surpluscoord/control-plane/internal/domain"
	"github.com/surpluscoord/control-plane/internal/eventbus"
)

// GetMatch loads one match recommendation by id.
func (s *Service) GetMatch(ctx context.Context, actor Actor, id string) (*domain.MatchRecommendation, error) {
	match, err := s.Stores.Matches.GetOrFail(ctx, id)
	if err != nil {
		return nil, notFoundOrInternal(actor, "match", err)
	}
	return match, nil
}

// ListMatchesFilter narrows ListMatches.
type ListMatchesFilter struct {
	Status    domain.Status
	ListingID string
	DemandID  string
	Limit     int
}

// ListMatches returns matches filtered by status, listing or demand.
func (s *Service) ListMatches(ctx context.Context, actor Actor, filter ListMatchesFilter) ([]*domain.MatchRecommendation, error) {
	limit := defaultListLimit(filter.Limit)
	var all []*domain.MatchRecommendation
	var err error
	if filter.Status != "" {
		all, err = s.Stores.Matches.QueryByStatus(ctx, filter.Status, 0)
	} else {
		all, err = s.Stores.Matches.QueryByStatus(ctx, domain.StatusMatched, 0)
	}
	if err != nil {
		return nil, apierr.InternalError(err.Error()).WithRequestID(actor.RequestID)
	}
	filtered := make([]*domain.MatchRecommendation, 0, len(all))
	for _, m := range all {
		if filter.ListingID != "" && m.ListingID != filter.ListingID {
			continue
		}
		if filter.DemandID != "" && m.DemandID != filter.DemandID {
			continue
		}
		filtered = append(filtered, m)
		if len(filtered) >= limit {
			break
		}
	}
	return filtered, nil
}

// RecommendMatches runs the orchestrator's listing pipeline on demand for a
// specific listing, for an operator to manually force re-matching (the
// POST /matches/recommendations endpoint).
func (s *Service) RecommendMatches(ctx context.Context, actor Actor, listingID string) error {
	if !actor.HasAnyRole(domain.RoleOperator, domain.RoleAdmin) {
		return apierr.AuthorizationError("only an operator or admin may force re-matching").WithRequestID(actor.RequestID)
	}
	if s.Orchestrator == nil {
		return apierr.ServiceUnavailableError("orchestrator").WithRequestID(actor.RequestID)
	}
	if err := s.Orchestrator.HandleListingUpdated(ctx, listingID); err != nil {
		return apierr.InternalError(err.Error()).WithRequestID(actor.RequestID)
	}
	return nil
}

// AcceptMatch records a party's acceptance of a match without changing its
// status or version: acceptance is written as an audit action and a
// match.accepted event, since the lifecycle's "accepted" step folds into
// scheduling (ScheduleMatch) for this system's status machine. A match
// blocked by compliance is refused. Actors: the listing's supplier or the
// demand's recipient, or operator/admin.
func (s *Service) AcceptMatch(ctx context.Context, actor Actor, id string, expectedVersion int) (*domain.MatchRecommendation, error) {
	match, err := s.Stores.Matches.GetOrFail(ctx, id)
	if err != nil {
		return nil, notFoundOrInternal(actor, "match", err)
	}
	if err := s.authorizeMatchParty(ctx, actor, match); err != nil {
		return nil, err
	}
	if match.ComplianceStatus == domain.ComplianceStatusBlocked {
		return nil, apierr.ComplianceViolationError("match is blocked by compliance and cannot be accepted without an override").WithRequestID(actor.RequestID)
	}

	before := *match
	s.AuditLog.WriteEvent(ctx, auditInput(actor, "MatchRecommendation", id, "accept", &before, match))
	s.publish(eventbus.EventTypeMatchAccepted, id, map[string]any{"listingId": match.ListingID, "demandId": match.DemandID})
	return match, nil
}

// RejectMatch transitions the underlying listing and demand back to posted
// and records the rejection against the match.
func (s *Service) RejectMatch(ctx context.Context, actor Actor, id string, expectedVersion int, justification string) (*domain.MatchRecommendation, error) {
	match, err := s.Stores.Matches.GetOrFail(ctx, id)
	if err != nil {
		return nil, notFoundOrInternal(actor, "match", err)
	}
	if err := s.authorizeMatchParty(ctx, actor, match); err != nil {
		return nil, err
	}

	before := *match
	updated, err := s.Stores.Matches.UpdateFields(ctx, id, expectedVersion, func(m *domain.MatchRecommendation) {
		m.Status = domain.StatusCanceled
	})
	if err != nil {
		return nil, conflictOrInternal(actor, err)
	}
	if err := s.reopenPair(ctx, match.ListingID, match.DemandID); err != nil {
		s.Logger.Warn("failed to reopen listing/demand after match rejection", "match_id", id, "error", err)
	}

	s.AuditLog.WriteEvent(ctx, auditInputJustified(actor, "MatchRecommendation", id, "reject", &before, updated, justification))
	s.publish(eventbus.EventTypeMatchRejected, id, map[string]any{"listingId": match.ListingID, "demandId": match.DemandID})
	return updated, nil
}

// ScheduleMatchInput is the payload for ScheduleMatch.
type ScheduleMatchInput struct {
	DriverID           string    `json:"driverId" validate:"required"`
	IdempotencyKey     string    `json:"idempotencyKey" validate:"required"`
	ScheduledPickupAt  time.Time `json:"scheduledPickupAt"`
	ScheduledDeliverAt time.Time `json:"scheduledDeliverAt"`
}

// ScheduleMatch creates a DeliveryTask for an accepted, compliant match.
// Idempotent on (matchId, idempotencyKey): a repeat call with the same key
// returns the existing task unchanged rather than creating a duplicate
// (SPEC_FULL.md §4.8).
func (s *Service) ScheduleMatch(ctx context.Context, actor Actor, matchID string, input ScheduleMatchInput) (*domain.DeliveryTask, error) {
	if err := validateStruct(actor, input); err != nil {
		return nil, err
	}
	match, err := s.Stores.Matches.GetOrFail(ctx, matchID)
	if err != nil {
		return nil, notFoundOrInternal(actor, "match", err)
	}
	if !actor.HasAnyRole(domain.RoleOperator, domain.RoleAdmin) {
		if authErr := s.authorizeMatchParty(ctx, actor, match); authErr != nil {
			return nil, authErr
		}
	}
	if match.ComplianceStatus == domain.ComplianceStatusBlocked {
		return nil, apierr.ComplianceViolationError("match is blocked by compliance and cannot be scheduled without an override").WithRequestID(actor.RequestID)
	}

	if existing, ok, err := s.findTaskByIdempotencyKey(ctx, matchID, input.IdempotencyKey); err != nil {
		return nil, apierr.InternalError(err.Error()).WithRequestID(actor.RequestID)
	} else if ok {
		return existing, nil
	}

	task := &domain.DeliveryTask{
		Base:               domain.Base{ID: uuid.NewString()},
		MatchID:            matchID,
		ListingID:          match.ListingID,
		DemandID:           match.DemandID,
		DriverID:           input.DriverID,
		IdempotencyKey:     input.IdempotencyKey,
		Status:             domain.StatusScheduled,
		ScheduledPickupAt:  input.ScheduledPickupAt,
		ScheduledDeliverAt: input.ScheduledDeliverAt,
	}
	if err := s.Stores.Tasks.Put(ctx, task); err != nil {
		return nil, apierr.InternalError("failed to persist delivery task").WithRequestID(actor.RequestID)
	}

	matchBefore := *match
	updatedMatch, err := s.Stores.Matches.UpdateFields(ctx, matchID, match.Version, func(m *domain.MatchRecommendation) {
		m.Status = domain.StatusScheduled
	})
	if err != nil {
		s.Logger.Warn("failed to mark match scheduled after task creation", "match_id", matchID, "error", err)
	} else {
		s.AuditLog.WriteEvent(ctx, auditInput(actor, "MatchRecommendation", matchID, "schedule", &matchBefore, updatedMatch))
	}

	s.AuditLog.WriteEvent(ctx, auditInput(actor, "DeliveryTask", task.ID, "create", nil, task))
	s.publish(eventbus.EventTypeTaskScheduled, task.ID, map[string]any{"matchId": matchID, "driverId": task.DriverID})

	return s.Stores.Tasks.GetOrFail(ctx, task.ID)
}

// taskStatuses enumerates every status a DeliveryTask can carry, since the
// store only indexes tasks by status (its owner index is the driver, who
// may differ between a scheduling attempt and its retry).
var taskStatuses = []domain.Status{
	domain.StatusScheduled,
	domain.StatusPickedUp,
	domain.StatusDelivered,
	domain.StatusCanceled,
	domain.StatusFailed,
}

func (s *Service) findTaskByIdempotencyKey(ctx context.Context, matchID, idempotencyKey string) (*domain.DeliveryTask, bool, error) {
	for _, status := range taskStatuses {
		tasks, err := s.Stores.Tasks.QueryByStatus(ctx, status, 0)
		if err != nil {
			return nil, false, err
		}
		for _, t := range tasks {
			if t.MatchID == matchID && t.IdempotencyKey == idempotencyKey {
				return t, true, nil
			}
		}
	}
	return nil, false, nil
}

// authorizeMatchParty permits the listing's supplier, the demand's
// recipient, or an operator/admin to act on a match.
func (s *Service) authorizeMatchParty(ctx context.Context, actor Actor, match *domain.MatchRecommendation) error {
	if actor.IsAdmin() || actor.HasRole(domain.RoleOperator) {
		return nil
	}
	listing, err := s.Stores.Listings.Get(ctx, match.ListingID)
	if err == nil && listing != nil && listing.ID != "" && listing.SupplierID == actor.UserID {
		return nil
	}
	demand, err := s.Stores.Demands.Get(ctx, match.DemandID)
	if err == nil && demand != nil && demand.ID != "" && demand.RecipientID == actor.UserID {
		return nil
	}
	return apierr.AuthorizationError("you are not a party to this match").WithRequestID(actor.RequestID)
}

// reopenPair returns a rejected match's listing and demand to posted so
// they re-enter the matching candidate pool.
func (s *Service) reopenPair(ctx context.Context, listingID, demandID string) error {
	listing, err := s.Stores.Listings.GetOrFail(ctx, listingID)
	if err == nil {
		if _, err := s.Stores.Listings.UpdateFields(ctx, listingID, listing.Version, func(l *domain.SurplusListing) {
			l.Status = domain.StatusPosted
		}); err != nil {
			return err
		}
	}
	demand, err := s.Stores.Demands.GetOrFail(ctx, demandID)
	if err == nil {
		if _, err := s.Stores.Demands.UpdateFields(ctx, demandID, demand.Version, func(d *domain.DemandPost) {
			d.Status = domain.StatusPosted
		}); err != nil {
			return err
		}
	}
	return nil
}
