// Package providers defines the collaborator interfaces the coordination
// engine depends on for geocoding/routing, free-text enrichment and
// notification delivery (SPEC_FULL.md §4.4-4.6, components C4-C6), plus
// degraded-fallback implementations that let the rest of the system keep
// operating when the real collaborator is unavailable.
//
// Grounded on the teacher's internal/core/interfaces.go collaborator
// interfaces (LLMClient, TargetDiscovery, AlertPublisher: the same
// "interface wraps an external dependency, caller never talks to the SDK
// directly" shape) and the degraded-path discipline of
// internal/infrastructure/llm/client.go's circuit breaker, adapted here
// into an explicit ProviderStatus on every result rather than a breaker
// that blocks calls outright — callers always get a usable answer.
package providers

import (
	"context"
	"time"

	"github.com/surpluscoord/control-plane/internal/domain"
)

// GeocodeResult is LocationProvider.Geocode's return shape.
type GeocodeResult struct {
	Coordinates     domain.Coordinates
	FormattedAddress string
	Confidence      float64
	Provider        string
	Status          domain.ProviderStatus
}

// RouteResult is LocationProvider.Route's return shape.
type RouteResult struct {
	DistanceMiles  float64
	DurationMinutes float64
	Polyline       string
	Status         domain.ProviderStatus
}

// LocationProvider geocodes addresses and computes routes between two
// points (component C4). Implementations must always return a usable
// result — on upstream failure, return a great-circle-distance fallback
// with Status == domain.ProviderStatusDegraded rather than an error.
type LocationProvider interface {
	Geocode(ctx context.Context, address string) (GeocodeResult, error)
	Route(ctx context.Context, from, to domain.Coordinates) (RouteResult, error)
}

// EnrichmentResult is EnrichmentProvider.Enrich's return shape.
type EnrichmentResult struct {
	NormalizedCategory domain.Category
	RiskFlags          []string
	QualitySummary     string
	Confidence         float64
	Status             domain.EnrichmentStatus
}

// EnrichmentProvider classifies and risk-scores a listing's free text
// (component C5). Like LocationProvider, it always returns a usable result:
// on failure, Status == domain.EnrichmentStatusDegraded and the result
// carries a heuristic fallback rather than a zero value.
type EnrichmentProvider interface {
	Enrich(ctx context.Context, listing *domain.SurplusListing) (EnrichmentResult, error)
}

// NotificationType names the kind of notification being sent, independent
// of delivery channel.
type NotificationType string

const (
	NotificationMatchProposed  NotificationType = "match_proposed"
	NotificationMatchAccepted  NotificationType = "match_accepted"
	NotificationTaskScheduled  NotificationType = "task_scheduled"
	NotificationStatusChanged  NotificationType = "status_changed"
	NotificationComplianceHold NotificationType = "compliance_hold"
)

// EntityRef identifies the entity a notification is about.
type EntityRef struct {
	EntityType string
	EntityID   string
}

// NotificationProvider delivers a notification to one user, honoring that
// user's NotificationPreference for the given type and channel (component
// C6). Implementations must be safe to call even when the user has no
// preference on file (fall back to the default channel).
type NotificationProvider interface {
	Send(ctx context.Context, userID string, notifType NotificationType, title, message string, ref EntityRef) error
}

// DefaultTimeout is a 30 s bound for a single provider call. Nothing in
// this module applies it: the orchestrator bounds Route and Enrich with its
// own routeTimeout (10 s) and enrichmentTimeout (30 s), and does not call
// Geocode.
const DefaultTimeout = 30 * time.Second
