package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/surpluscoord/control-plane/internal/audit"
	"github.com/surpluscoord/control-plane/internal/domain"
)

// enrichmentTimeout bounds a single EnrichmentProvider.Enrich call
// (SPEC_FULL.md §5: LLM enrichment default 30 s).
const enrichmentTimeout = 30 * time.Second

// enrichmentStage runs only for listing triggers. It never fails the
// pipeline (it is registered as a non-propagating stage): on a provider
// error or timeout the listing's enrichmentStatus is persisted as degraded
// and the run continues with the listing as loaded; nothing from the failed
// call is used (SPEC_FULL.md §4.7 step 1).
func (o *Orchestrator) enrichmentStage(ctx context.Context, state *RunState) error {
	if state.Listing == nil {
		return nil
	}

	callCtx, cancel := context.WithTimeout(ctx, enrichmentTimeout)
	defer cancel()

	before := *state.Listing
	result, err := o.enrichmentProvider.Enrich(callCtx, state.Listing)
	if err != nil {
		state.Listing.EnrichmentStatus = domain.EnrichmentStatusDegraded
		if updated, uerr := o.stores.Listings.UpdateFields(ctx, state.Listing.ID, state.Listing.Version, func(l *domain.SurplusListing) {
			l.EnrichmentStatus = domain.EnrichmentStatusDegraded
		}); uerr == nil {
			state.Listing = updated
		}
		o.writeAudit(ctx, "SurplusListing", state.Listing.ID, "system", domain.RoleSystem, "enrichment_failed", before, *state.Listing, "")
		return fmt.Errorf("enrich listing %s: %w", state.Listing.ID, err)
	}

	state.Listing.EnrichmentStatus = result.Status
	riskScore := confidenceToRiskScore(result.Confidence, len(result.RiskFlags))
	state.Listing.AIRiskScore = &riskScore
	state.Listing.AIFlags = result.RiskFlags
	state.Listing.Handling.HandlingRequirements = mergeHandlingRequirements(state.Listing.Handling.HandlingRequirements, result.RiskFlags)

	updated, err := o.stores.Listings.UpdateFields(ctx, state.Listing.ID, state.Listing.Version, func(l *domain.SurplusListing) {
		l.EnrichmentStatus = state.Listing.EnrichmentStatus
		l.AIRiskScore = state.Listing.AIRiskScore
		l.AIFlags = state.Listing.AIFlags
		l.Handling = state.Listing.Handling
	})
	if err != nil {
		return fmt.Errorf("persist enrichment for listing %s: %w", state.Listing.ID, err)
	}
	state.Listing = updated

	o.writeAudit(ctx, "SurplusListing", state.Listing.ID, "system", domain.RoleSystem, "enriched", before, *state.Listing, "")
	return nil
}

// confidenceToRiskScore derives a coarse risk score from the provider's
// confidence and the number of risk flags raised; a listing with no flags
// scores 0 regardless of confidence.
func confidenceToRiskScore(confidence float64, flagCount int) float64 {
	if flagCount == 0 {
		return 0
	}
	score := confidence * float64(flagCount) / 3
	if score > 1 {
		score = 1
	}
	return score
}

// mergeHandlingRequirements appends any enrichment risk flag naming a
// spoilage concern as a refrigeration handling requirement, deduplicated
// against what the listing already declares. Other risk flags (damage,
// recall, tamper) describe the listing's content, not its transport
// handling, and are left out of this list.
func mergeHandlingRequirements(existing []string, riskFlags []string) []string {
	has := func(list []string, want string) bool {
		for _, v := range list {
			if v == want {
				return true
			}
		}
		return false
	}

	out := append([]string(nil), existing...)
	for _, flag := range riskFlags {
		if flag == "spoilage_mentioned" && !has(out, "refrigerated_transport") {
			out = append(out, "refrigerated_transport")
		}
	}
	return out
}

func (o *Orchestrator) writeAudit(ctx context.Context, entityType, entityID, actor string, role domain.Role, action string, before, after any, justification string) {
	o.auditLog.WriteEvent(ctx, audit.WriteInput{
		EntityType:    entityType,
		EntityID:      entityID,
		Actor:         actor,
		ActorRole:     role,
		Action:        action,
		Before:        before,
		After:         after,
		Justification: justification,
	})
}
