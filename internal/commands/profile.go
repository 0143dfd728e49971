package commands

import (
	"context"

	"github.com/surpluscoord/control-plane/internal/domain"
	"github.com/surpluscoord/control-plane/internal/geohash"
)

// GetProfile loads the actor's own profile, or any profile for an operator/admin.
func (s *Service) GetProfile(ctx context.Context, actor Actor, userID string) (*domain.UserProfile, error) {
	if err := Authorize(actor, userID, domain.RoleOperator); err != nil {
		return nil, err
	}
	profile, err := s.Stores.Users.GetOrFail(ctx, userID)
	if err != nil {
		return nil, notFoundOrInternal(actor, "profile", err)
	}
	return profile, nil
}

// UpdateProfile applies a partial update to a profile, owner or operator/admin only.
func (s *Service) UpdateProfile(ctx context.Context, actor Actor, userID string, expectedVersion int, updates map[string]any) (*domain.UserProfile, error) {
	existing, err := s.Stores.Users.GetOrFail(ctx, userID)
	if err != nil {
		return nil, notFoundOrInternal(actor, "profile", err)
	}
	if err := Authorize(actor, existing.ID, domain.RoleOperator); err != nil {
		return nil, err
	}

	before := *existing
	updated, err := s.Stores.Users.UpdateFields(ctx, userID, expectedVersion, func(e *domain.UserProfile) {
		_ = ApplyUpdate(e, updates)
		if e.Coordinates != nil {
			e.Geohash = geohash.Encode(e.Coordinates.Lat, e.Coordinates.Lon, 6)
		}
	})
	if err != nil {
		return nil, conflictOrInternal(actor, err)
	}

	s.AuditLog.WriteEvent(ctx, auditInput(actor, "UserProfile", userID, "update", &before, updated))
	return updated, nil
}
