package matching_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surpluscoord/control-plane/internal/domain"
	"github.com/surpluscoord/control-plane/internal/matching"
)

func sf() *domain.Coordinates    { return &domain.Coordinates{Lat: 37.7749, Lon: -122.4194} }
func oakland() *domain.Coordinates { return &domain.Coordinates{Lat: 37.8044, Lon: -122.2712} }
func nyc() *domain.Coordinates   { return &domain.Coordinates{Lat: 40.7128, Lon: -74.0060} }

func baseListing() *domain.SurplusListing {
	now := time.Now().UTC()
	return &domain.SurplusListing{
		Base:         domain.Base{ID: "listing-1"},
		SupplierID:   "supplier-1",
		Category:     domain.CategoryNonPerishableFood,
		Quantity:     70,
		Coordinates:  sf(),
		Status:       domain.StatusPosted,
		PickupWindow: domain.TimeWindow{Start: now, End: now.Add(2 * time.Hour)},
	}
}

func baseDemand() *domain.DemandPost {
	now := time.Now().UTC()
	return &domain.DemandPost{
		Base:             domain.Base{ID: "demand-1"},
		RecipientID:      "recipient-1",
		Categories:       []domain.Category{domain.CategoryNonPerishableFood},
		Capacity:         100,
		Coordinates:      oakland(),
		Status:           domain.StatusPosted,
		AcceptanceWindow: domain.TimeWindow{Start: now, End: now.Add(2 * time.Hour)},
	}
}

func TestMatchFiltersByRadius(t *testing.T) {
	engine := matching.New(matching.DefaultConfig())
	demand := baseDemand()
	demand.Coordinates = nyc()

	candidates := engine.Match([]*domain.SurplusListing{baseListing()}, []*domain.DemandPost{demand}, nil)
	assert.Empty(t, candidates)
}

func TestMatchFiltersByStatus(t *testing.T) {
	engine := matching.New(matching.DefaultConfig())
	listing := baseListing()
	listing.Status = domain.StatusDelivered

	candidates := engine.Match([]*domain.SurplusListing{listing}, []*domain.DemandPost{baseDemand()}, nil)
	assert.Empty(t, candidates)
}

func TestMatchFiltersWithoutCoordinates(t *testing.T) {
	engine := matching.New(matching.DefaultConfig())
	listing := baseListing()
	listing.Coordinates = nil

	candidates := engine.Match([]*domain.SurplusListing{listing}, []*domain.DemandPost{baseDemand()}, nil)
	assert.Empty(t, candidates)
}

func TestMatchScoresWithinRange(t *testing.T) {
	engine := matching.New(matching.DefaultConfig())
	candidates := engine.Match([]*domain.SurplusListing{baseListing()}, []*domain.DemandPost{baseDemand()}, nil)
	require.Len(t, candidates, 1)
	assert.GreaterOrEqual(t, candidates[0].Score, 0.0)
	assert.LessOrEqual(t, candidates[0].Score, 100.0)
	assert.Equal(t, 1.0, candidates[0].Breakdown.Category)
}

func TestMatchCategoryFamilyScoresPartial(t *testing.T) {
	engine := matching.New(matching.DefaultConfig())
	listing := baseListing()
	listing.Category = domain.CategoryBeverages
	demand := baseDemand()
	demand.Categories = []domain.Category{domain.CategoryPerishableFood}

	candidates := engine.Match([]*domain.SurplusListing{listing}, []*domain.DemandPost{demand}, nil)
	require.Len(t, candidates, 1)
	assert.Equal(t, 0.7, candidates[0].Breakdown.Category)
}

func TestMatchCapacityScoreZeroWhenOverCapacity(t *testing.T) {
	engine := matching.New(matching.DefaultConfig())
	listing := baseListing()
	listing.Quantity = 1000

	candidates := engine.Match([]*domain.SurplusListing{listing}, []*domain.DemandPost{baseDemand()}, nil)
	require.Len(t, candidates, 1)
	assert.Equal(t, 0.0, candidates[0].Breakdown.Capacity)
}

func TestMatchReliabilityDefaultsToHalfWithoutLookup(t *testing.T) {
	engine := matching.New(matching.DefaultConfig())
	candidates := engine.Match([]*domain.SurplusListing{baseListing()}, []*domain.DemandPost{baseDemand()}, nil)
	require.Len(t, candidates, 1)
	assert.Equal(t, 0.5, candidates[0].Breakdown.Reliability)
}

func TestMatchReliabilityUsesLookupWhenAvailable(t *testing.T) {
	engine := matching.New(matching.DefaultConfig())
	profiles := map[string]*domain.UserProfile{
		"supplier-1":  {ReliabilityScore: 80},
		"recipient-1": {ReliabilityScore: 60},
	}
	lookup := func(id string) *domain.UserProfile { return profiles[id] }

	candidates := engine.Match([]*domain.SurplusListing{baseListing()}, []*domain.DemandPost{baseDemand()}, lookup)
	require.Len(t, candidates, 1)
	assert.InDelta(t, 0.7, candidates[0].Breakdown.Reliability, 0.001)
}

func TestMatchRanksTopNDescendingWithDeterministicTieBreak(t *testing.T) {
	cfg := matching.DefaultConfig()
	cfg.TopN = 1
	engine := matching.New(cfg)

	good := baseListing()
	good.Base.ID = "listing-good"

	mediocre := baseListing()
	mediocre.Base.ID = "listing-mediocre"
	mediocre.Category = domain.CategoryPetSupplies

	candidates := engine.Match([]*domain.SurplusListing{mediocre, good}, []*domain.DemandPost{baseDemand()}, nil)
	require.Len(t, candidates, 1)
	assert.Equal(t, "listing-good", candidates[0].Listing.ID)
}
