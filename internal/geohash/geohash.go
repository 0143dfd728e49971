// Package geohash implements base-32 geohash encoding, neighbor expansion,
// and haversine great-circle distance (SPEC_FULL.md §4.4, component C7).
//
// No third-party geohash library appears anywhere in the example corpus, so
// this package is implemented directly against the standard geohash
// algorithm rather than grounded on a specific teacher file; see
// DESIGN.md's C7 entry for the justification.
package geohash

import (
	"math"
	"strings"
)

const base32Alphabet = "0123456789bcdefghjkmnpqrstuvwxyz"

// earthRadiusMiles is the mean Earth radius used by HaversineDistance,
// matching SPEC_FULL.md §4.4 exactly.
const earthRadiusMiles = 3958.8

var base32Index = func() map[byte]int {
	m := make(map[byte]int, len(base32Alphabet))
	for i := 0; i < len(base32Alphabet); i++ {
		m[base32Alphabet[i]] = i
	}
	return m
}()

// LatLon is a decimal-degrees coordinate pair.
type LatLon struct {
	Lat float64
	Lon float64
}

// bounds is a lat/lon bounding box.
type bounds struct {
	minLat, maxLat float64
	minLon, maxLon float64
}

func (b bounds) center() LatLon {
	return LatLon{Lat: (b.minLat + b.maxLat) / 2, Lon: (b.minLon + b.maxLon) / 2}
}

// Encode returns the base-32 geohash of (lat, lon) at the given precision
// (number of characters). Precision 6 yields a cell roughly 1.2km across.
func Encode(lat, lon float64, precision int) string {
	if precision <= 0 {
		precision = 6
	}

	latRange := [2]float64{-90, 90}
	lonRange := [2]float64{-180, 180}

	var buf strings.Builder
	bit, ch := 0, 0
	evenBit := true

	for buf.Len() < precision {
		if evenBit {
			mid := (lonRange[0] + lonRange[1]) / 2
			if lon >= mid {
				ch |= 1 << uint(4-bit)
				lonRange[0] = mid
			} else {
				lonRange[1] = mid
			}
		} else {
			mid := (latRange[0] + latRange[1]) / 2
			if lat >= mid {
				ch |= 1 << uint(4-bit)
				latRange[0] = mid
			} else {
				latRange[1] = mid
			}
		}
		evenBit = !evenBit

		if bit < 4 {
			bit++
		} else {
			buf.WriteByte(base32Alphabet[ch])
			bit = 0
			ch = 0
		}
	}

	return buf.String()
}

// Decode returns the center of the hash's cell, which approximates the
// original encoded coordinate. For all precisions 1..12, Decode(Encode(c, p)) yields
// a cell containing c (SPEC_FULL.md §8's round-trip law).
func Decode(hash string) LatLon {
	return decodeBounds(hash).center()
}

func decodeBounds(hash string) bounds {
	latRange := [2]float64{-90, 90}
	lonRange := [2]float64{-180, 180}
	evenBit := true

	for i := 0; i < len(hash); i++ {
		idx, ok := base32Index[hash[i]]
		if !ok {
			continue
		}
		for n := 4; n >= 0; n-- {
			bitVal := (idx >> uint(n)) & 1
			if evenBit {
				mid := (lonRange[0] + lonRange[1]) / 2
				if bitVal == 1 {
					lonRange[0] = mid
				} else {
					lonRange[1] = mid
				}
			} else {
				mid := (latRange[0] + latRange[1]) / 2
				if bitVal == 1 {
					latRange[0] = mid
				} else {
					latRange[1] = mid
				}
			}
			evenBit = !evenBit
		}
	}

	return bounds{
		minLat: latRange[0], maxLat: latRange[1],
		minLon: lonRange[0], maxLon: lonRange[1],
	}
}

// Neighbors returns the 8 geohash cells adjacent to hash, in the order
// N, NE, E, SE, S, SW, W, NW.
func Neighbors(hash string) []string {
	precision := len(hash)
	b := decodeBounds(hash)
	latStep := b.maxLat - b.minLat
	lonStep := b.maxLon - b.minLon
	c := b.center()

	offsets := [8][2]float64{
		{1, 0}, {1, 1}, {0, 1}, {-1, 1},
		{-1, 0}, {-1, -1}, {0, -1}, {1, -1},
	}

	neighbors := make([]string, 0, 8)
	for _, off := range offsets {
		lat := clampLat(c.Lat + off[0]*latStep)
		lon := wrapLon(c.Lon + off[1]*lonStep)
		neighbors = append(neighbors, Encode(lat, lon, precision))
	}
	return neighbors
}

func clampLat(lat float64) float64 {
	if lat > 90 {
		return 90
	}
	if lat < -90 {
		return -90
	}
	return lat
}

func wrapLon(lon float64) float64 {
	for lon > 180 {
		lon -= 360
	}
	for lon < -180 {
		lon += 360
	}
	return lon
}

// PrefixesForRadius returns the geohash prefix covering center plus its 8
// neighbors, at a precision chosen by radiusMiles (SPEC_FULL.md §4.4):
// precision 4 above ~12.4mi (20km), precision 5 above ~6.2mi (10km),
// otherwise precision 6.
func PrefixesForRadius(center LatLon, radiusMiles float64) []string {
	const kmToMiles = 0.621371
	precision := 6
	switch {
	case radiusMiles > 20*kmToMiles:
		precision = 4
	case radiusMiles > 10*kmToMiles:
		precision = 5
	}

	centerHash := Encode(center.Lat, center.Lon, precision)
	prefixes := make([]string, 0, 9)
	prefixes = append(prefixes, centerHash)
	prefixes = append(prefixes, Neighbors(centerHash)...)
	return prefixes
}

// HaversineDistance returns the great-circle distance between a and b in
// miles, using Earth radius 3958.8mi.
func HaversineDistance(a, b LatLon) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusMiles * c
}
