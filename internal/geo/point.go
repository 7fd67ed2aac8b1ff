// SPDX-FileCopyrightText: The BareTag Tracker Authors
//
// SPDX-License-Identifier: MIT

// Package geo converts GPS coordinates into the local planar frame spanned by the anchors and
// measures great-circle distances between them.
package geo

import (
	"fmt"
	"math"
)

// GeoPoint represents a GPS coordinate in degrees.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// PlanePoint represents a coordinate in the local plane. The unit depends on the plane size the
// caller projects onto.
type PlanePoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Valid checks if the coordinate is within the WGS84 degree ranges.
func (p GeoPoint) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lon, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

func (p GeoPoint) String() string {
	return fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lon)
}

func (p PlanePoint) String() string {
	return fmt.Sprintf("%.2f,%.2f", p.X, p.Y)
}

// Truncate cuts x to the given number of decimal places.
func Truncate(x float64, precision int) float64 {
	p := math.Pow(10, float64(precision))
	return math.Trunc(x*p) / p
}
