// Package matching scores and ranks listing/demand pairs (SPEC_FULL.md
// §4.5, component C10): a filter stage, a five-dimension weighted score,
// and a deterministic top-N rank.
//
// Grounded on the teacher's internal/business/routing package (the same
// filter-then-score-then-rank pipeline it runs over alert routes and
// receivers), generalized from alert-to-receiver routing weights to
// listing-to-demand compatibility weights.
package matching

import (
	"sort"

	"github.com/surpluscoord/control-plane/internal/domain"
	"github.com/surpluscoord/control-plane/internal/geohash"
)

// Weights are the per-dimension multipliers applied to the five sub-scores;
// they must sum to 1.
type Weights struct {
	Distance    float64
	Time        float64
	Category    float64
	Capacity    float64
	Reliability float64
}

// DefaultWeights returns SPEC_FULL.md §4.5's named defaults.
func DefaultWeights() Weights {
	return Weights{Distance: 0.30, Time: 0.25, Category: 0.20, Capacity: 0.15, Reliability: 0.10}
}

// Config bounds the engine's filter and scoring behavior.
type Config struct {
	MaxRadiusMiles float64
	Weights        Weights
	TopN           int
}

// DefaultConfig returns the spec's named defaults: 50 mi radius, top 5.
func DefaultConfig() Config {
	return Config{MaxRadiusMiles: 50, Weights: DefaultWeights(), TopN: 5}
}

// matchableStatuses are the only statuses eligible to be matched.
var matchableStatuses = map[domain.Status]bool{
	domain.StatusPosted:  true,
	domain.StatusMatched: true,
}

// Candidate is one scored listing/demand pairing, ready to become a
// MatchRecommendation once compliance (C9) has run.
type Candidate struct {
	Listing       *domain.SurplusListing
	Demand        *domain.DemandPost
	DistanceMiles float64
	Score         float64
	Breakdown     domain.ScoreBreakdown
}

// Engine runs the filter/score/rank pipeline.
type Engine struct {
	config Config
}

func New(config Config) *Engine {
	return &Engine{config: config}
}

// ProfileLookup resolves a user id to a loaded profile, or nil if not
// available; used only for the reliability sub-score.
type ProfileLookup func(userID string) *domain.UserProfile

// Match runs the full pipeline over every listing/demand combination and
// returns the top-N candidates, descending by score, ties broken by
// ascending distance then ascending listing id.
func (e *Engine) Match(listings []*domain.SurplusListing, demands []*domain.DemandPost, lookup ProfileLookup) []Candidate {
	candidates := make([]Candidate, 0)

	for _, listing := range listings {
		for _, demand := range demands {
			cand, ok := e.evaluate(listing, demand, lookup)
			if ok {
				candidates = append(candidates, cand)
			}
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		if candidates[i].DistanceMiles != candidates[j].DistanceMiles {
			return candidates[i].DistanceMiles < candidates[j].DistanceMiles
		}
		return candidates[i].Listing.ID < candidates[j].Listing.ID
	})

	topN := e.config.TopN
	if topN > 0 && len(candidates) > topN {
		candidates = candidates[:topN]
	}
	return candidates
}

func (e *Engine) evaluate(listing *domain.SurplusListing, demand *domain.DemandPost, lookup ProfileLookup) (Candidate, bool) {
	if !matchableStatuses[listing.Status] || !matchableStatuses[demand.Status] {
		return Candidate{}, false
	}
	if listing.Coordinates == nil || demand.Coordinates == nil {
		return Candidate{}, false
	}

	distance := geohash.HaversineDistance(
		geohash.LatLon{Lat: listing.Coordinates.Lat, Lon: listing.Coordinates.Lon},
		geohash.LatLon{Lat: demand.Coordinates.Lat, Lon: demand.Coordinates.Lon},
	)
	if distance > e.config.MaxRadiusMiles {
		return Candidate{}, false
	}

	breakdown := domain.ScoreBreakdown{
		Distance:    e.scoreDistance(distance),
		Time:        e.scoreTime(listing, demand),
		Category:    e.scoreCategory(listing, demand),
		Capacity:    e.scoreCapacity(listing, demand),
		Reliability: e.scoreReliability(listing, demand, lookup),
	}

	w := e.config.Weights
	raw := w.Distance*breakdown.Distance +
		w.Time*breakdown.Time +
		w.Category*breakdown.Category +
		w.Capacity*breakdown.Capacity +
		w.Reliability*breakdown.Reliability

	score := roundTo(raw*100, 2)

	return Candidate{
		Listing:       listing,
		Demand:        demand,
		DistanceMiles: distance,
		Score:         score,
		Breakdown:     breakdown,
	}, true
}

func (e *Engine) scoreDistance(distanceMiles float64) float64 {
	if e.config.MaxRadiusMiles <= 0 {
		return 0
	}
	capped := distanceMiles
	if capped > e.config.MaxRadiusMiles {
		capped = e.config.MaxRadiusMiles
	}
	return 1 - capped/e.config.MaxRadiusMiles
}

func (e *Engine) scoreTime(listing *domain.SurplusListing, demand *domain.DemandPost) float64 {
	overlap := listing.PickupWindow.Overlap(demand.AcceptanceWindow)
	if overlap <= 0 {
		return 0
	}
	pickupDuration := listing.PickupWindow.Duration()
	if pickupDuration <= 0 {
		return 0
	}
	ratio := overlap.Seconds() / pickupDuration.Seconds()
	return clip01(ratio)
}

func (e *Engine) scoreCategory(listing *domain.SurplusListing, demand *domain.DemandPost) float64 {
	for _, c := range demand.Categories {
		if c == listing.Category {
			return 1.0
		}
	}
	for _, c := range demand.Categories {
		if domain.SameFamily(c, listing.Category) {
			return 0.7
		}
	}
	return 0
}

func (e *Engine) scoreCapacity(listing *domain.SurplusListing, demand *domain.DemandPost) float64 {
	if demand.Capacity <= 0 || listing.Quantity > demand.Capacity {
		return 0
	}
	utilization := listing.Quantity / demand.Capacity
	if utilization >= 0.7 {
		return 1.0
	}
	return utilization / 0.7
}

func (e *Engine) scoreReliability(listing *domain.SurplusListing, demand *domain.DemandPost, lookup ProfileLookup) float64 {
	if lookup == nil {
		return 0.5
	}
	supplier := lookup(listing.SupplierID)
	recipient := lookup(demand.RecipientID)

	sum, count := 0.0, 0
	if supplier != nil {
		sum += supplier.ReliabilityScore / 100
		count++
	}
	if recipient != nil {
		sum += recipient.ReliabilityScore / 100
		count++
	}
	if count == 0 {
		return 0.5
	}
	return sum / float64(count)
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func roundTo(v float64, decimals int) float64 {
	factor := 1.0
	for i := 0; i < decimals; i++ {
		factor *= 10
	}
	return float64(int64(v*factor+0.5)) / factor
}
