package providers_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surpluscoord/control-plane/internal/domain"
	"github.com/surpluscoord/control-plane/internal/eventbus"
	"github.com/surpluscoord/control-plane/internal/providers"
	"github.com/surpluscoord/control-plane/internal/store/memstore"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHaversineLocationProviderGeocodeFallsBackWithoutGeocoder(t *testing.T) {
	p := providers.NewHaversineLocationProvider(nil, testLogger())
	result, err := p.Geocode(context.Background(), "123 Main St")
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderStatusDegraded, result.Status)
	assert.NotZero(t, result.Coordinates.Lat)
}

func TestHaversineLocationProviderGeocodeIsDeterministic(t *testing.T) {
	p := providers.NewHaversineLocationProvider(nil, testLogger())
	a, _ := p.Geocode(context.Background(), "500 Market St")
	b, _ := p.Geocode(context.Background(), "500 Market St")
	assert.Equal(t, a.Coordinates, b.Coordinates)
}

type failingGeocoder struct{}

func (failingGeocoder) Geocode(ctx context.Context, address string) (domain.Coordinates, string, float64, error) {
	return domain.Coordinates{}, "", 0, errors.New("upstream unavailable")
}

func TestHaversineLocationProviderFallsBackOnGeocoderError(t *testing.T) {
	p := providers.NewHaversineLocationProvider(failingGeocoder{}, testLogger())
	result, err := p.Geocode(context.Background(), "123 Main St")
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderStatusDegraded, result.Status)
}

func TestHaversineLocationProviderRoute(t *testing.T) {
	p := providers.NewHaversineLocationProvider(nil, testLogger())
	sf := domain.Coordinates{Lat: 37.7749, Lon: -122.4194}
	oak := domain.Coordinates{Lat: 37.8044, Lon: -122.2712}

	result, err := p.Route(context.Background(), sf, oak)
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderStatusDegraded, result.Status)
	assert.InDelta(t, 8.4, result.DistanceMiles, 1.0)
	assert.Greater(t, result.DurationMinutes, 0.0)
}

func TestHeuristicEnrichmentProviderFlagsKeywords(t *testing.T) {
	p := providers.NewHeuristicEnrichmentProvider(nil, testLogger())
	listing := &domain.SurplusListing{
		Title:        "Canned goods",
		Description:  "Some items are dented",
		QualityNotes: "one case expired last week",
		Category:     domain.CategoryNonPerishableFood,
	}

	result, err := p.Enrich(context.Background(), listing)
	require.NoError(t, err)
	assert.Equal(t, domain.EnrichmentStatusDegraded, result.Status)
	assert.Contains(t, result.RiskFlags, "damage_mentioned")
	assert.Contains(t, result.RiskFlags, "expiration_mentioned")
}

type stubClassifier struct {
	result providers.EnrichmentResult
	err    error
}

func (s stubClassifier) Classify(ctx context.Context, title, description, qualityNotes string) (providers.EnrichmentResult, error) {
	return s.result, s.err
}

func TestHeuristicEnrichmentProviderUsesClassifierWhenAvailable(t *testing.T) {
	classifier := stubClassifier{result: providers.EnrichmentResult{NormalizedCategory: domain.CategoryMedicalSupplies, Confidence: 0.9}}
	p := providers.NewHeuristicEnrichmentProvider(classifier, testLogger())

	result, err := p.Enrich(context.Background(), &domain.SurplusListing{Category: domain.CategoryPerishableFood})
	require.NoError(t, err)
	assert.Equal(t, domain.EnrichmentStatusCompleted, result.Status)
	assert.Equal(t, domain.CategoryMedicalSupplies, result.NormalizedCategory)
}

func TestStoreNotificationProviderSkipsDisabledPreference(t *testing.T) {
	users := memstore.New(testLogger(), func() *domain.UserProfile { return &domain.UserProfile{} })
	notifications := memstore.New(testLogger(), func() *domain.Notification { return &domain.Notification{} })
	bus := eventbus.New(testLogger())
	ctx := context.Background()

	user := &domain.UserProfile{
		Base:  domain.Base{ID: uuid.NewString()},
		Email: "a@example.com",
		Name:  "A",
		Roles: []domain.Role{domain.RoleRecipient},
		NotificationPreferences: []domain.NotificationPreference{
			{Type: string(providers.NotificationMatchProposed), Enabled: false},
		},
	}
	require.NoError(t, users.Put(ctx, user))

	provider := providers.NewStoreNotificationProvider(users, notifications, bus, testLogger())
	err := provider.Send(ctx, user.ID, providers.NotificationMatchProposed, "title", "message", providers.EntityRef{})
	require.NoError(t, err)

	count, err := notifications.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestStoreNotificationProviderPersistsWhenEnabled(t *testing.T) {
	users := memstore.New(testLogger(), func() *domain.UserProfile { return &domain.UserProfile{} })
	notifications := memstore.New(testLogger(), func() *domain.Notification { return &domain.Notification{} })
	bus := eventbus.New(testLogger())
	ctx := context.Background()

	user := &domain.UserProfile{
		Base:  domain.Base{ID: uuid.NewString()},
		Email: "b@example.com",
		Name:  "B",
		Roles: []domain.Role{domain.RoleSupplier},
	}
	require.NoError(t, users.Put(ctx, user))

	provider := providers.NewStoreNotificationProvider(users, notifications, bus, testLogger())
	err := provider.Send(ctx, user.ID, providers.NotificationTaskScheduled, "Scheduled", "Your task is scheduled", providers.EntityRef{EntityType: "DeliveryTask", EntityID: "task-1"})
	require.NoError(t, err)

	count, err := notifications.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
