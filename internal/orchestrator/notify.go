package orchestrator

import (
	"context"

	"github.com/surpluscoord/control-plane/internal/domain"
	"github.com/surpluscoord/control-plane/internal/eventbus"
	"github.com/surpluscoord/control-plane/internal/providers"
)

// notifyStage emits a domain event for each newly created match and
// notifies the supplier and recipient, translating a blocked compliance
// outcome into compliance.blocked rather than match.proposed (SPEC_FULL.md
// §4.7 step 5). Notification failures are logged, never propagated: a
// missing or unreachable notification channel must not undo the match that
// was already persisted.
func (o *Orchestrator) notifyStage(ctx context.Context, state *RunState) error {
	for _, match := range state.CreatedMatches {
		eventType := eventbus.EventTypeMatchProposed
		if match.ComplianceStatus == domain.ComplianceStatusBlocked {
			eventType = eventbus.EventTypeComplianceBlocked
		}

		event := eventbus.New(eventType, match.ID, map[string]any{
			"listingId": match.ListingID,
			"demandId":  match.DemandID,
			"score":     match.Score,
		}, eventbus.SourceOrchestrator)
		if err := o.bus.Publish(event); err != nil {
			o.logger.Warn("failed to publish match event", "match_id", match.ID, "error", err)
		}

		listing, err := o.stores.Listings.Get(ctx, match.ListingID)
		if err == nil && listing != nil && listing.ID != "" {
			o.sendNotification(ctx, listing.SupplierID, match)
		}
		demand, err := o.stores.Demands.Get(ctx, match.DemandID)
		if err == nil && demand != nil && demand.ID != "" {
			o.sendNotification(ctx, demand.RecipientID, match)
		}
	}
	return nil
}

func (o *Orchestrator) sendNotification(ctx context.Context, userID string, match *domain.MatchRecommendation) {
	notifType := providers.NotificationMatchProposed
	title := "New match proposed"
	message := "A surplus listing has been matched to a demand and is pending compliance review."
	if match.ComplianceStatus == domain.ComplianceStatusBlocked {
		notifType = providers.NotificationComplianceHold
		title = "Match held for compliance review"
		message = "A proposed match failed one or more compliance checks and requires operator attention."
	}

	ref := providers.EntityRef{EntityType: "MatchRecommendation", EntityID: match.ID}
	if err := o.notificationProvider.Send(ctx, userID, notifType, title, message, ref); err != nil {
		o.logger.Warn("failed to send notification", "user_id", userID, "match_id", match.ID, "error", err)
	}
}
