package providers

import (
	"context"
	"hash/fnv"
	"log/slog"

	"github.com/surpluscoord/control-plane/internal/domain"
	"github.com/surpluscoord/control-plane/internal/geohash"
)

// Geocoder is the narrow external dependency a real LocationProvider wraps
// (a maps/geocoding API client). Left unimplemented here since no such SDK
// appears anywhere in the corpus; HaversineLocationProvider works with or
// without one.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (domain.Coordinates, string, float64, error)
}

// HaversineLocationProvider is the degraded-capable LocationProvider: it
// delegates to an optional Geocoder for real geocoding and always computes
// routes via geohash.HaversineDistance plus an assumed average road speed,
// since no routing SDK appears in the corpus either (SPEC_FULL.md §6: "a
// haversine + assumed-speed fallback is acceptable when degraded=true" —
// taken here as the only implementation, always marked degraded, since the
// pack gives no real routing engine to not be degraded relative to).
type HaversineLocationProvider struct {
	geocoder      Geocoder
	assumedSpeedMPH float64
	logger        *slog.Logger
}

// NewHaversineLocationProvider builds a LocationProvider. geocoder may be
// nil, in which case Geocode always falls back to a deterministic
// pseudo-coordinate derived from the address string.
func NewHaversineLocationProvider(geocoder Geocoder, logger *slog.Logger) *HaversineLocationProvider {
	return &HaversineLocationProvider{
		geocoder:        geocoder,
		assumedSpeedMPH: 35,
		logger:          logger.With("component", "location_provider"),
	}
}

func (p *HaversineLocationProvider) Geocode(ctx context.Context, address string) (GeocodeResult, error) {
	if p.geocoder != nil {
		coords, formatted, confidence, err := p.geocoder.Geocode(ctx, address)
		if err == nil {
			return GeocodeResult{
				Coordinates:      coords,
				FormattedAddress: formatted,
				Confidence:       confidence,
				Provider:         "geocoder",
				Status:           domain.ProviderStatusOK,
			}, nil
		}
		p.logger.Warn("geocoder call failed, using degraded fallback", "error", err)
	}

	coords := fallbackCoordinates(address)
	return GeocodeResult{
		Coordinates:      coords,
		FormattedAddress: address,
		Confidence:       0,
		Provider:         "fallback",
		Status:           domain.ProviderStatusDegraded,
	}, nil
}

func (p *HaversineLocationProvider) Route(ctx context.Context, from, to domain.Coordinates) (RouteResult, error) {
	miles := geohash.HaversineDistance(
		geohash.LatLon{Lat: from.Lat, Lon: from.Lon},
		geohash.LatLon{Lat: to.Lat, Lon: to.Lon},
	)
	minutes := (miles / p.assumedSpeedMPH) * 60

	return RouteResult{
		DistanceMiles:   miles,
		DurationMinutes: minutes,
		Status:          domain.ProviderStatusDegraded,
	}, nil
}

// fallbackCoordinates deterministically maps an address string to a
// coordinate within the contiguous United States bounding box, so the
// system can still compute distances and build a geohash index entry when
// no geocoder is configured or the geocoder call failed.
func fallbackCoordinates(address string) domain.Coordinates {
	h := fnv.New64a()
	_, _ = h.Write([]byte(address))
	sum := h.Sum64()

	const (
		minLat, maxLat = 25.0, 49.0
		minLon, maxLon = -124.0, -67.0
	)
	latFraction := float64(sum%100000) / 100000
	lonFraction := float64((sum/100000)%100000) / 100000

	return domain.Coordinates{
		Lat: minLat + latFraction*(maxLat-minLat),
		Lon: minLon + lonFraction*(maxLon-minLon),
	}
}

