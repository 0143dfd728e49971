package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/surpluscoord/control-plane/internal/audit"
	"github.com/surpluscoord/control-plane/internal/compliance"
	"github.com/surpluscoord/control-plane/internal/domain"
	"github.com/surpluscoord/control-plane/internal/eventbus"
	"github.com/surpluscoord/control-plane/internal/matching"
	"github.com/surpluscoord/control-plane/internal/providers"
	"github.com/surpluscoord/control-plane/internal/store/storeset"
)

// Trigger names which lifecycle event started a run.
type Trigger string

const (
	TriggerListingCreated Trigger = "listing.created"
	TriggerListingUpdated Trigger = "listing.updated"
	TriggerDemandCreated  Trigger = "demand.created"
)

// candidateStatuses mirrors matching's matchable-status filter; only
// entities still eligible to be paired are worth fetching as candidates.
var candidateStatuses = []domain.Status{domain.StatusPosted, domain.StatusMatched}

// RunState is the mutable state threaded through one pipeline run.
type RunState struct {
	Trigger Trigger

	Listing *domain.SurplusListing
	Demand  *domain.DemandPost

	CandidateListings []*domain.SurplusListing
	CandidateDemands  []*domain.DemandPost

	Scored []matching.Candidate

	CreatedMatches []*domain.MatchRecommendation
}

// Orchestrator wires the matching, compliance, routing, notification and
// audit collaborators into the staged pipeline of SPEC_FULL.md §4.7.
//
// Grounded on the teacher's AlertProcessor: a small struct of collaborator
// interfaces plus a Config, constructed once at startup and invoked per
// trigger event, generalized from the teacher's single enrichment-mode
// switch into an explicit multi-stage Pipeline.
type Orchestrator struct {
	stores               *storeset.Set
	bus                  *eventbus.Bus
	auditLog             *audit.Log
	matchEngine          *matching.Engine
	complianceEngine     *compliance.Engine
	locationProvider     providers.LocationProvider
	enrichmentProvider   providers.EnrichmentProvider
	notificationProvider providers.NotificationProvider
	candidateRadiusMiles float64
	logger               *slog.Logger
	pipelines            map[Trigger]*Pipeline
}

// Config bundles the collaborators and tunables an Orchestrator needs.
type Config struct {
	Stores               *storeset.Set
	Bus                  *eventbus.Bus
	AuditLog             *audit.Log
	MatchEngine          *matching.Engine
	ComplianceEngine     *compliance.Engine
	LocationProvider     providers.LocationProvider
	EnrichmentProvider   providers.EnrichmentProvider
	NotificationProvider providers.NotificationProvider
	CandidateRadiusMiles float64
	Logger               *slog.Logger
}

// New builds an Orchestrator and assembles its three trigger pipelines.
func New(cfg Config) *Orchestrator {
	if cfg.CandidateRadiusMiles <= 0 {
		cfg.CandidateRadiusMiles = 50
	}
	o := &Orchestrator{
		stores:               cfg.Stores,
		bus:                  cfg.Bus,
		auditLog:             cfg.AuditLog,
		matchEngine:          cfg.MatchEngine,
		complianceEngine:     cfg.ComplianceEngine,
		locationProvider:     cfg.LocationProvider,
		enrichmentProvider:   cfg.EnrichmentProvider,
		notificationProvider: cfg.NotificationProvider,
		candidateRadiusMiles: cfg.CandidateRadiusMiles,
		logger:               cfg.Logger.With("component", "orchestrator"),
	}

	listingPipeline := NewPipeline(o.logger)
	listingPipeline.AddStage("enrichment", o.enrichmentStage, false)
	listingPipeline.AddStage("candidate_selection", o.candidateSelectionStage, true)
	listingPipeline.AddStage("matching", o.matchingStage, true)
	listingPipeline.AddStage("compliance_route_persist", o.persistMatchesStage, true)
	listingPipeline.AddStage("notify", o.notifyStage, false)

	demandPipeline := NewPipeline(o.logger)
	demandPipeline.AddStage("candidate_selection", o.candidateSelectionStage, true)
	demandPipeline.AddStage("matching", o.matchingStage, true)
	demandPipeline.AddStage("compliance_route_persist", o.persistMatchesStage, true)
	demandPipeline.AddStage("notify", o.notifyStage, false)

	o.pipelines = map[Trigger]*Pipeline{
		TriggerListingCreated: listingPipeline,
		TriggerListingUpdated: listingPipeline,
		TriggerDemandCreated:  demandPipeline,
	}
	return o
}

// HandleListingCreated runs the full pipeline for a newly posted listing.
func (o *Orchestrator) HandleListingCreated(ctx context.Context, listingID string) error {
	return o.runForListing(ctx, TriggerListingCreated, listingID)
}

// HandleListingUpdated runs the full pipeline again after a material field
// change to an existing listing (e.g. quantity, category, coordinates).
func (o *Orchestrator) HandleListingUpdated(ctx context.Context, listingID string) error {
	return o.runForListing(ctx, TriggerListingUpdated, listingID)
}

// HandleDemandCreated runs the full pipeline for a newly posted demand.
func (o *Orchestrator) HandleDemandCreated(ctx context.Context, demandID string) error {
	demand, err := o.stores.Demands.GetOrFail(ctx, demandID)
	if err != nil {
		return fmt.Errorf("orchestrator: load demand %s: %w", demandID, err)
	}
	state := &RunState{Trigger: TriggerDemandCreated, Demand: demand}
	return o.pipelines[TriggerDemandCreated].Run(ctx, state)
}

func (o *Orchestrator) runForListing(ctx context.Context, trigger Trigger, listingID string) error {
	listing, err := o.stores.Listings.GetOrFail(ctx, listingID)
	if err != nil {
		return fmt.Errorf("orchestrator: load listing %s: %w", listingID, err)
	}
	state := &RunState{Trigger: trigger, Listing: listing}
	return o.pipelines[trigger].Run(ctx, state)
}

// profileLookup resolves user ids to loaded UserProfile records for the
// matching engine's reliability sub-score. Lookups missing from the store
// simply return nil, which the engine treats as "not loaded".
func (o *Orchestrator) profileLookup(ctx context.Context) matching.ProfileLookup {
	return func(userID string) *domain.UserProfile {
		profile, err := o.stores.Users.Get(ctx, userID)
		if err != nil || profile == nil || profile.ID == "" {
			return nil
		}
		return profile
	}
}

func dedupeListings(listings []*domain.SurplusListing) []*domain.SurplusListing {
	seen := make(map[string]struct{}, len(listings))
	out := make([]*domain.SurplusListing, 0, len(listings))
	for _, l := range listings {
		if _, ok := seen[l.ID]; ok {
			continue
		}
		seen[l.ID] = struct{}{}
		out = append(out, l)
	}
	return out
}

func dedupeDemands(demands []*domain.DemandPost) []*domain.DemandPost {
	seen := make(map[string]struct{}, len(demands))
	out := make([]*domain.DemandPost, 0, len(demands))
	for _, d := range demands {
		if _, ok := seen[d.ID]; ok {
			continue
		}
		seen[d.ID] = struct{}{}
		out = append(out, d)
	}
	return out
}

func matchableStatus(s domain.Status) bool {
	for _, c := range candidateStatuses {
		if c == s {
			return true
		}
	}
	return false
}

func newID() string { return uuid.NewString() }
