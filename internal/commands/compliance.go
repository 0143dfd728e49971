package commands

import (
	"context"

	"github.com/surpluscoord/control-plane/internal/apierr"
	"github.com/surpluscoord/control-plane/internal/compliance"
	"github.com/surpluscoord/control-plane/internal/domain"
	"github.com/surpluscoord/control-plane/internal/eventbus"
)

// ComplianceQueue lists matches awaiting a compliance decision: matched,
// pending, not yet overridden either way. Restricted to compliance,
// operator and admin roles.
func (s *Service) ComplianceQueue(ctx context.Context, actor Actor, limit int) ([]*domain.MatchRecommendation, error) {
	if !actor.HasAnyRole(domain.RoleCompliance, domain.RoleOperator, domain.RoleAdmin) {
		return nil, apierr.AuthorizationError("only compliance, operator or admin may view the compliance queue").WithRequestID(actor.RequestID)
	}
	matches, err := s.Stores.Matches.QueryByStatus(ctx, domain.StatusMatched, defaultListLimit(limit))
	if err != nil {
		return nil, apierr.InternalError(err.Error()).WithRequestID(actor.RequestID)
	}
	queue := make([]*domain.MatchRecommendation, 0, len(matches))
	for _, m := range matches {
		if m.ComplianceStatus == domain.ComplianceStatusPending {
			queue = append(queue, m)
		}
	}
	return queue, nil
}

// ApproveMatch overrides a blocked or pending match's failed compliance
// checks, recording the approver and justification against each
// previously-failing check (SPEC_FULL.md §4.5).
func (s *Service) ApproveMatch(ctx context.Context, actor Actor, id string, expectedVersion int, justification string) (*domain.MatchRecommendation, error) {
	if !actor.HasAnyRole(domain.RoleCompliance, domain.RoleOperator, domain.RoleAdmin) {
		return nil, apierr.AuthorizationError("only compliance, operator or admin may approve a match").WithRequestID(actor.RequestID)
	}
	if justification == "" {
		return nil, apierr.ValidationError("an approval requires a justification").WithRequestID(actor.RequestID)
	}
	existing, err := s.Stores.Matches.GetOrFail(ctx, id)
	if err != nil {
		return nil, notFoundOrInternal(actor, "match", err)
	}

	eval := compliance.Evaluation{
		Version: existing.ComplianceVersion,
		Passed:  existing.ComplianceStatus == domain.ComplianceStatusPassed,
		Checks:  existing.ComplianceChecks,
	}
	overridden := compliance.ApproveOverride(eval, actor.UserID, justification)

	before := *existing
	updated, err := s.Stores.Matches.UpdateFields(ctx, id, expectedVersion, func(m *domain.MatchRecommendation) {
		m.ComplianceStatus = domain.ComplianceStatusPassed
		m.ComplianceChecks = overridden.Checks
	})
	if err != nil {
		return nil, conflictOrInternal(actor, err)
	}

	s.AuditLog.WriteEvent(ctx, auditInputJustified(actor, "MatchRecommendation", id, "compliance_approve", &before, updated, justification))
	s.publish(eventbus.EventTypeMatchAccepted, id, map[string]any{"complianceStatus": string(domain.ComplianceStatusPassed)})
	return updated, nil
}

// BlockMatch marks a match as blocked by compliance, preventing it from
// being accepted or scheduled until a later approval override.
func (s *Service) BlockMatch(ctx context.Context, actor Actor, id string, expectedVersion int, justification string) (*domain.MatchRecommendation, error) {
	if !actor.HasAnyRole(domain.RoleCompliance, domain.RoleOperator, domain.RoleAdmin) {
		return nil, apierr.AuthorizationError("only compliance, operator or admin may block a match").WithRequestID(actor.RequestID)
	}
	if justification == "" {
		return nil, apierr.ValidationError("blocking a match requires a justification").WithRequestID(actor.RequestID)
	}
	existing, err := s.Stores.Matches.GetOrFail(ctx, id)
	if err != nil {
		return nil, notFoundOrInternal(actor, "match", err)
	}

	before := *existing
	updated, err := s.Stores.Matches.UpdateFields(ctx, id, expectedVersion, func(m *domain.MatchRecommendation) {
		m.ComplianceStatus = domain.ComplianceStatusBlocked
	})
	if err != nil {
		return nil, conflictOrInternal(actor, err)
	}

	s.AuditLog.WriteEvent(ctx, auditInputJustified(actor, "MatchRecommendation", id, "compliance_block", &before, updated, justification))
	s.publish(eventbus.EventTypeComplianceBlocked, id, map[string]any{"listingId": updated.ListingID, "demandId": updated.DemandID})
	return updated, nil
}
