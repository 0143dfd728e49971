package orchestrator

import (
	"context"
	"time"

	"github.com/surpluscoord/control-plane/internal/compliance"
	"github.com/surpluscoord/control-plane/internal/domain"
	"github.com/surpluscoord/control-plane/internal/matching"
)

// routeTimeout bounds a single LocationProvider.Route call (SPEC_FULL.md §5:
// route default 10 s).
const routeTimeout = 10 * time.Second

// persistMatchesStage computes a route and a compliance evaluation for
// every scored pair, then persists a RoutePlan and a MatchRecommendation
// for each (SPEC_FULL.md §4.7 step 4). A pair whose route lookup fails is
// skipped entirely rather than persisted half-built.
func (o *Orchestrator) persistMatchesStage(ctx context.Context, state *RunState) error {
	state.CreatedMatches = make([]*domain.MatchRecommendation, 0, len(state.Scored))

	for _, candidate := range state.Scored {
		routePlan, err := o.computeRoute(ctx, candidate)
		if err != nil {
			o.logger.Warn("route computation failed, skipping candidate match", "listing_id", candidate.Listing.ID, "demand_id", candidate.Demand.ID, "error", err)
			continue
		}
		if err := o.stores.Routes.Put(ctx, routePlan); err != nil {
			o.logger.Warn("failed to persist route plan, skipping candidate match", "error", err)
			continue
		}

		evaluation := o.complianceEngine.Evaluate(candidate.Listing, candidate.Demand, candidate.DistanceMiles)

		match := o.buildMatch(candidate, routePlan, evaluation)
		if err := o.stores.Matches.Put(ctx, match); err != nil {
			o.logger.Warn("failed to persist match recommendation", "error", err)
			continue
		}

		o.writeAudit(ctx, "MatchRecommendation", match.ID, "system", domain.RoleSystem, "match_proposed", nil, *match, "")
		state.CreatedMatches = append(state.CreatedMatches, match)
	}
	return nil
}

func (o *Orchestrator) computeRoute(ctx context.Context, candidate matching.Candidate) (*domain.RoutePlan, error) {
	callCtx, cancel := context.WithTimeout(ctx, routeTimeout)
	defer cancel()

	from := *candidate.Listing.Coordinates
	to := *candidate.Demand.Coordinates
	result, err := o.locationProvider.Route(callCtx, from, to)
	if err != nil {
		return nil, err
	}

	return &domain.RoutePlan{
		Base:            domain.Base{ID: newID()},
		FromCoordinates: from,
		ToCoordinates:   to,
		DistanceMiles:   result.DistanceMiles,
		DurationMinutes: result.DurationMinutes,
		Polyline:        result.Polyline,
		Provider:        "location_provider",
		ProviderStatus:  result.Status,
	}, nil
}

func (o *Orchestrator) buildMatch(candidate matching.Candidate, routePlan *domain.RoutePlan, evaluation compliance.Evaluation) *domain.MatchRecommendation {
	complianceStatus := domain.ComplianceStatusPassed
	if !evaluation.Passed {
		complianceStatus = domain.ComplianceStatusBlocked
	}

	return &domain.MatchRecommendation{
		Base:              domain.Base{ID: newID()},
		ListingID:         candidate.Listing.ID,
		DemandID:          candidate.Demand.ID,
		Score:             candidate.Score,
		ScoreBreakdown:    candidate.Breakdown,
		DistanceMiles:     candidate.DistanceMiles,
		Status:            domain.StatusMatched,
		ComplianceStatus:  complianceStatus,
		ComplianceChecks:  evaluation.Checks,
		ComplianceVersion: evaluation.Version,
		RoutePlanID:       routePlan.ID,
	}
}
