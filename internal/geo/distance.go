// SPDX-FileCopyrightText: The BareTag Tracker Authors
//
// SPDX-License-Identifier: MIT

package geo

import (
	"math"
)

const (
	EarthRadius       = 6371000.0 // meters
	MovementThreshold = 2.0       // meters
)

// Distance returns the great-circle distance between a and b in meters using the haversine
// formula.
func Distance(a, b GeoPoint) float64 {
	dLat := toRad(b.Lat - a.Lat)
	dLon := toRad(b.Lon - a.Lon)
	lat1 := toRad(a.Lat)
	lat2 := toRad(b.Lat)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)

	// Rounding can push h just outside [0,1] for identical or antipodal points.
	h = math.Min(1, math.Max(0, h))

	return 2 * EarthRadius * math.Asin(math.Sqrt(h))
}

// HasMovedSignificantly reports whether next lies further than threshold meters away from prev.
// A threshold <= 0 falls back to MovementThreshold.
func HasMovedSignificantly(prev, next GeoPoint, threshold float64) bool {
	if threshold <= 0 {
		threshold = MovementThreshold
	}
	return Distance(prev, next) > threshold
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
