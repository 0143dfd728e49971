package orchestrator_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surpluscoord/control-plane/internal/audit"
	"github.com/surpluscoord/control-plane/internal/compliance"
	"github.com/surpluscoord/control-plane/internal/domain"
	"github.com/surpluscoord/control-plane/internal/eventbus"
	"github.com/surpluscoord/control-plane/internal/matching"
	"github.com/surpluscoord/control-plane/internal/orchestrator"
	"github.com/surpluscoord/control-plane/internal/providers"
	"github.com/surpluscoord/control-plane/internal/store/storeset"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type stubLocationProvider struct {
	failRoute bool
}

func (s *stubLocationProvider) Geocode(ctx context.Context, address string) (providers.GeocodeResult, error) {
	return providers.GeocodeResult{}, nil
}

func (s *stubLocationProvider) Route(ctx context.Context, from, to domain.Coordinates) (providers.RouteResult, error) {
	if s.failRoute {
		return providers.RouteResult{}, assert.AnError
	}
	return providers.RouteResult{DistanceMiles: 5, DurationMinutes: 12, Status: domain.ProviderStatusOK}, nil
}

type stubEnrichmentProvider struct{}

func (s *stubEnrichmentProvider) Enrich(ctx context.Context, listing *domain.SurplusListing) (providers.EnrichmentResult, error) {
	return providers.EnrichmentResult{
		NormalizedCategory: listing.Category,
		RiskFlags:          []string{},
		Confidence:         0.9,
		Status:             domain.EnrichmentStatusCompleted,
	}, nil
}

type stubNotificationProvider struct {
	sent int
}

func (s *stubNotificationProvider) Send(ctx context.Context, userID string, notifType providers.NotificationType, title, message string, ref providers.EntityRef) error {
	s.sent++
	return nil
}

func newTestOrchestrator(t *testing.T, loc providers.LocationProvider) (*orchestrator.Orchestrator, *storeset.Set, *stubNotificationProvider) {
	t.Helper()
	logger := testLogger()
	stores := storeset.NewMemory(logger)
	bus := eventbus.New(logger)
	auditLog := audit.New(stores.Events, logger)
	notifier := &stubNotificationProvider{}

	o := orchestrator.New(orchestrator.Config{
		Stores:               stores,
		Bus:                  bus,
		AuditLog:             auditLog,
		MatchEngine:          matching.New(matching.DefaultConfig()),
		ComplianceEngine:     compliance.New(compliance.DefaultThresholds()),
		LocationProvider:     loc,
		EnrichmentProvider:   &stubEnrichmentProvider{},
		NotificationProvider: notifier,
		CandidateRadiusMiles: 50,
		Logger:               logger,
	})
	return o, stores, notifier
}

func seedListing(ctx context.Context, t *testing.T, stores *storeset.Set) *domain.SurplusListing {
	t.Helper()
	now := time.Now().UTC()
	listing := &domain.SurplusListing{
		SupplierID:   "supplier-1",
		Title:        "Canned beans",
		Category:     domain.CategoryNonPerishableFood,
		Quantity:     50,
		Unit:         "lb",
		Address:      "123 Market St, San Francisco, CA",
		Coordinates:  &domain.Coordinates{Lat: 37.7749, Lon: -122.4194},
		Geohash:      "9q8yy",
		PickupWindow: domain.TimeWindow{Start: now.Add(time.Hour), End: now.Add(4 * time.Hour)},
		Status:       domain.StatusPosted,
	}
	require.NoError(t, stores.Listings.Put(ctx, listing))
	return listing
}

func seedDemand(ctx context.Context, t *testing.T, stores *storeset.Set) *domain.DemandPost {
	t.Helper()
	now := time.Now().UTC()
	demand := &domain.DemandPost{
		RecipientID:      "recipient-1",
		Categories:       []domain.Category{domain.CategoryNonPerishableFood},
		QuantityNeeded:   40,
		Capacity:         100,
		Address:          "456 Grand Ave, Oakland, CA",
		Coordinates:      &domain.Coordinates{Lat: 37.8044, Lon: -122.2712},
		Geohash:          "9q9p1",
		AcceptanceWindow: domain.TimeWindow{Start: now.Add(-time.Hour), End: now.Add(4 * time.Hour)},
		Status:           domain.StatusPosted,
	}
	require.NoError(t, stores.Demands.Put(ctx, demand))
	return demand
}

func TestHandleListingCreatedProducesMatchAndNotifications(t *testing.T) {
	ctx := context.Background()
	o, stores, notifier := newTestOrchestrator(t, &stubLocationProvider{})

	demand := seedDemand(ctx, t, stores)
	listing := seedListing(ctx, t, stores)

	require.NoError(t, o.HandleListingCreated(ctx, listing.ID))

	matches, err := stores.Matches.QueryByStatus(ctx, domain.StatusMatched, 0)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, listing.ID, matches[0].ListingID)
	assert.Equal(t, demand.ID, matches[0].DemandID)
	assert.Equal(t, domain.ComplianceStatusPassed, matches[0].ComplianceStatus)
	assert.NotEmpty(t, matches[0].RoutePlanID)

	assert.Equal(t, 2, notifier.sent)
}

func TestHandleListingCreatedEnrichesBeforeMatching(t *testing.T) {
	ctx := context.Background()
	o, stores, _ := newTestOrchestrator(t, &stubLocationProvider{})
	seedDemand(ctx, t, stores)
	listing := seedListing(ctx, t, stores)

	require.NoError(t, o.HandleListingCreated(ctx, listing.ID))

	updated, err := stores.Listings.GetOrFail(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EnrichmentStatusCompleted, updated.EnrichmentStatus)
	require.NotNil(t, updated.AIRiskScore)
}

func TestHandleListingCreatedSkipsMatchWhenRouteFails(t *testing.T) {
	ctx := context.Background()
	o, stores, notifier := newTestOrchestrator(t, &stubLocationProvider{failRoute: true})
	seedDemand(ctx, t, stores)
	listing := seedListing(ctx, t, stores)

	require.NoError(t, o.HandleListingCreated(ctx, listing.ID))

	count, err := stores.Matches.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Zero(t, notifier.sent)
}

func TestHandleDemandCreatedFindsExistingListing(t *testing.T) {
	ctx := context.Background()
	o, stores, _ := newTestOrchestrator(t, &stubLocationProvider{})
	listing := seedListing(ctx, t, stores)
	demand := seedDemand(ctx, t, stores)

	require.NoError(t, o.HandleDemandCreated(ctx, demand.ID))

	matches, err := stores.Matches.QueryByStatus(ctx, domain.StatusMatched, 0)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, listing.ID, matches[0].ListingID)
}

func TestHandleListingCreatedBlocksOnComplianceFailure(t *testing.T) {
	ctx := context.Background()
	o, stores, _ := newTestOrchestrator(t, &stubLocationProvider{})
	seedDemand(ctx, t, stores)
	listing := seedListing(ctx, t, stores)
	listing.QualityNotes = "some items look moldy"
	require.NoError(t, stores.Listings.Put(ctx, listing))

	require.NoError(t, o.HandleListingCreated(ctx, listing.ID))

	matches, err := stores.Matches.QueryByStatus(ctx, domain.StatusMatched, 0)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, domain.ComplianceStatusBlocked, matches[0].ComplianceStatus)
}
