package orchestrator

import (
	"context"

	"github.com/surpluscoord/control-plane/internal/domain"
)

// matchingStage runs the matching engine (C10) over the trigger entity and
// its gathered candidates, assembling the two full slices the engine's
// pairwise evaluation expects (SPEC_FULL.md §4.7 step 3).
func (o *Orchestrator) matchingStage(ctx context.Context, state *RunState) error {
	var listings []*domain.SurplusListing
	var demands []*domain.DemandPost

	switch state.Trigger {
	case TriggerListingCreated, TriggerListingUpdated:
		listings = []*domain.SurplusListing{state.Listing}
		demands = state.CandidateDemands
	case TriggerDemandCreated:
		listings = state.CandidateListings
		demands = []*domain.DemandPost{state.Demand}
	}

	state.Scored = o.matchEngine.Match(listings, demands, o.profileLookup(ctx))
	return nil
}
