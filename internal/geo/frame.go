// SPDX-FileCopyrightText: The BareTag Tracker Authors
//
// SPDX-License-Identifier: MIT

package geo

const (
	// DefaultPadding is the padding in degrees added to every side of an anchor-derived frame.
	// 0.0001° is roughly 11m in latitude.
	DefaultPadding = 0.0001
)

// DefaultFrame is used when no anchors are available and the caller did not configure a
// different fallback.
var DefaultFrame = ReferenceFrame{MinLat: 0, MaxLat: 1, MinLon: 0, MaxLon: 1}

// ReferenceFrame is the GPS bounding box the local plane is anchored to.
type ReferenceFrame struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// Width returns the longitude span of the frame in degrees.
func (f ReferenceFrame) Width() float64 {
	return f.MaxLon - f.MinLon
}

// Height returns the latitude span of the frame in degrees.
func (f ReferenceFrame) Height() float64 {
	return f.MaxLat - f.MinLat
}

// Center returns the midpoint of the frame.
func (f ReferenceFrame) Center() GeoPoint {
	return GeoPoint{
		Lat: f.MinLat + f.Height()/2,
		Lon: f.MinLon + f.Width()/2,
	}
}

// IsDegenerate reports whether the frame has no usable area.
func (f ReferenceFrame) IsDegenerate() bool {
	return !(f.Width() > 0) || !(f.Height() > 0)
}

// Contains reports whether p lies within the frame, borders included.
func (f ReferenceFrame) Contains(p GeoPoint) bool {
	return p.Lat >= f.MinLat && p.Lat <= f.MaxLat && p.Lon >= f.MinLon && p.Lon <= f.MaxLon
}

// BuildFrame computes the bounding box of anchors and expands it by padding degrees on every
// side. An empty anchor set yields fallback unchanged.
func BuildFrame(anchors []GeoPoint, padding float64, fallback ReferenceFrame) ReferenceFrame {
	if len(anchors) == 0 {
		return fallback
	}
	if padding < 0 {
		padding = 0
	}

	frame := ReferenceFrame{
		MinLat: anchors[0].Lat,
		MaxLat: anchors[0].Lat,
		MinLon: anchors[0].Lon,
		MaxLon: anchors[0].Lon,
	}
	for _, a := range anchors[1:] {
		frame.MinLat = min(frame.MinLat, a.Lat)
		frame.MaxLat = max(frame.MaxLat, a.Lat)
		frame.MinLon = min(frame.MinLon, a.Lon)
		frame.MaxLon = max(frame.MaxLon, a.Lon)
	}

	frame.MinLat -= padding
	frame.MaxLat += padding
	frame.MinLon -= padding
	frame.MaxLon += padding
	return frame
}

// FrameBuilder holds the configured form of BuildFrame. It keeps no state between calls; callers
// rebuild the frame whenever their anchor set changes.
type FrameBuilder struct {
	Padding  float64
	Fallback ReferenceFrame
	// AllowEmpty permits the degraded fallback frame for an empty anchor set. When false, Build
	// returns ErrEmptyAnchorSet instead.
	AllowEmpty bool
}

// NewFrameBuilder returns a FrameBuilder using DefaultPadding and DefaultFrame.
func NewFrameBuilder() FrameBuilder {
	return FrameBuilder{
		Padding:    DefaultPadding,
		Fallback:   DefaultFrame,
		AllowEmpty: true,
	}
}

// Build computes the reference frame for anchors.
func (b FrameBuilder) Build(anchors []GeoPoint) (ReferenceFrame, error) {
	if len(anchors) == 0 && !b.AllowEmpty {
		return ReferenceFrame{}, ErrEmptyAnchorSet
	}
	return BuildFrame(anchors, b.Padding, b.Fallback), nil
}
