package orchestrator

import (
	"context"
	"fmt"

	"github.com/surpluscoord/control-plane/internal/domain"
	"github.com/surpluscoord/control-plane/internal/geohash"
)

// candidateQueryLimit bounds how many entities a single geohash-prefix
// query returns; the radius filter in the matching engine re-checks every
// candidate's exact distance, so over-fetching here is safe, under-fetching
// is the risk this limit guards against.
const candidateQueryLimit = 500

// candidateSelectionStage expands the trigger entity's coordinates into the
// geohash prefixes covering candidateRadiusMiles (SPEC_FULL.md §4.4's
// center-cell-plus-8-neighbors rule), fetches counterpart entities from the
// geo-index for each prefix, deduplicates by id, and filters to matchable
// statuses (SPEC_FULL.md §4.7 step 2).
func (o *Orchestrator) candidateSelectionStage(ctx context.Context, state *RunState) error {
	switch state.Trigger {
	case TriggerListingCreated, TriggerListingUpdated:
		return o.selectCandidateDemands(ctx, state)
	case TriggerDemandCreated:
		return o.selectCandidateListings(ctx, state)
	default:
		return fmt.Errorf("orchestrator: unknown trigger %q", state.Trigger)
	}
}

func (o *Orchestrator) selectCandidateDemands(ctx context.Context, state *RunState) error {
	if state.Listing.Coordinates == nil {
		state.CandidateDemands = nil
		return nil
	}
	center := geohash.LatLon{Lat: state.Listing.Coordinates.Lat, Lon: state.Listing.Coordinates.Lon}
	prefixes := geohash.PrefixesForRadius(center, o.candidateRadiusMiles)

	var gathered []*domain.DemandPost
	for _, prefix := range prefixes {
		demands, err := o.stores.Demands.QueryByGeohashPrefix(ctx, prefix, candidateQueryLimit)
		if err != nil {
			return fmt.Errorf("query demands by geohash prefix %q: %w", prefix, err)
		}
		gathered = append(gathered, demands...)
	}

	deduped := dedupeDemands(gathered)
	filtered := make([]*domain.DemandPost, 0, len(deduped))
	for _, d := range deduped {
		if matchableStatus(d.Status) {
			filtered = append(filtered, d)
		}
	}
	state.CandidateDemands = filtered
	return nil
}

func (o *Orchestrator) selectCandidateListings(ctx context.Context, state *RunState) error {
	if state.Demand.Coordinates == nil {
		state.CandidateListings = nil
		return nil
	}
	center := geohash.LatLon{Lat: state.Demand.Coordinates.Lat, Lon: state.Demand.Coordinates.Lon}
	prefixes := geohash.PrefixesForRadius(center, o.candidateRadiusMiles)

	var gathered []*domain.SurplusListing
	for _, prefix := range prefixes {
		listings, err := o.stores.Listings.QueryByGeohashPrefix(ctx, prefix, candidateQueryLimit)
		if err != nil {
			return fmt.Errorf("query listings by geohash prefix %q: %w", prefix, err)
		}
		gathered = append(gathered, listings...)
	}

	deduped := dedupeListings(gathered)
	filtered := make([]*domain.SurplusListing, 0, len(deduped))
	for _, l := range deduped {
		if matchableStatus(l.Status) {
			filtered = append(filtered, l)
		}
	}
	state.CandidateListings = filtered
	return nil
}
