// SPDX-FileCopyrightText: The BareTag Tracker Authors
//
// SPDX-License-Identifier: MIT

// Package geofence evaluates tracked entities against an operator-drawn boundary polygon and
// derives entry and exit events from successive evaluations.
package geofence

import (
	"errors"
	"fmt"

	"github.com/baretag/baretag-tracker/internal/geo"
)

// MinVertices is the smallest number of vertices that form a polygon.
const MinVertices = 3

// ErrInvalidPolygon is returned when a boundary has fewer than MinVertices vertices.
var ErrInvalidPolygon = errors.New("boundary polygon needs at least 3 vertices")

// Polygon is an ordered list of GPS vertices forming a simple polygon. The closing edge from
// the last back to the first vertex is implicit.
type Polygon []geo.GeoPoint

// NewPolygon copies vertices into a Polygon after checking the vertex count.
func NewPolygon(vertices []geo.GeoPoint) (Polygon, error) {
	if len(vertices) < MinVertices {
		return nil, fmt.Errorf("got %d vertices: %w", len(vertices), ErrInvalidPolygon)
	}
	poly := make(Polygon, len(vertices))
	copy(poly, vertices)
	return poly, nil
}

// Equal reports whether both polygons have the same vertices in the same order.
func (p Polygon) Equal(other Polygon) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// Contains reports whether point lies inside poly using the even-odd rule. Coordinates are
// treated as a flat lon/lat plane, which holds for the small areas a boundary covers.
func Contains(poly Polygon, point geo.GeoPoint) (bool, error) {
	if len(poly) < MinVertices {
		return false, fmt.Errorf("got %d vertices: %w", len(poly), ErrInvalidPolygon)
	}
	return rayCast(len(poly), func(i int) (float64, float64) {
		return poly[i].Lon, poly[i].Lat
	}, point.Lon, point.Lat), nil
}

// ContainsPlane is Contains for boundaries drawn in plane coordinates.
func ContainsPlane(vertices []geo.PlanePoint, point geo.PlanePoint) (bool, error) {
	if len(vertices) < MinVertices {
		return false, fmt.Errorf("got %d vertices: %w", len(vertices), ErrInvalidPolygon)
	}
	return rayCast(len(vertices), func(i int) (float64, float64) {
		return vertices[i].X, vertices[i].Y
	}, point.X, point.Y), nil
}

// rayCast casts a horizontal ray from (x, y) and counts the polygon edges it crosses.
func rayCast(n int, vertex func(int) (float64, float64), x, y float64) bool {
	inside := false
	j := n - 1
	for i := 0; i < n; i++ {
		xi, yi := vertex(i)
		xj, yj := vertex(j)
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			inside = !inside
		}
		j = i
	}
	return inside
}
