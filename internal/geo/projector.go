// SPDX-FileCopyrightText: The BareTag Tracker Authors
//
// SPDX-License-Identifier: MIT

package geo

import (
	"fmt"
)

const (
	DefaultPlaneWidth  = 100.0
	DefaultPlaneHeight = 100.0
)

// Project maps p into a width x height plane spanned by frame. The plane Y axis grows with
// latitude (north-up); flipping it for screen coordinates is left to the caller.
//
// With clamp set, points outside the frame are pinned to its border. Without it they map to
// negative values or values beyond width/height.
func Project(p GeoPoint, frame ReferenceFrame, width, height float64, clamp bool) (PlanePoint, error) {
	if frame.IsDegenerate() {
		return PlanePoint{}, fmt.Errorf("failed to project %s: %w", p, ErrDegenerateFrame)
	}

	normX := (p.Lon - frame.MinLon) / frame.Width()
	normY := (p.Lat - frame.MinLat) / frame.Height()
	if clamp {
		normX = clamp01(normX)
		normY = clamp01(normY)
	}

	return PlanePoint{X: normX * width, Y: normY * height}, nil
}

// Projector is the configured form of Project used by the tracking pipeline.
type Projector struct {
	Width  float64
	Height float64
	Clamp  bool
	// FlipY mirrors the Y axis so that Y grows downwards, as screen coordinates do.
	FlipY bool
}

// NewProjector returns a Projector for a 100x100 plane with clamping enabled and north-up
// orientation.
func NewProjector() Projector {
	return Projector{
		Width:  DefaultPlaneWidth,
		Height: DefaultPlaneHeight,
		Clamp:  true,
	}
}

// Project maps p into the configured plane.
func (pr Projector) Project(p GeoPoint, frame ReferenceFrame) (PlanePoint, error) {
	pt, err := Project(p, frame, pr.Width, pr.Height, pr.Clamp)
	if err != nil {
		return pt, err
	}
	if pr.FlipY {
		pt.Y = pr.Height - pt.Y
	}
	return pt, nil
}

func clamp01(v float64) float64 {
	return min(1, max(0, v))
}
