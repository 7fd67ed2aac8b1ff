// SPDX-FileCopyrightText: The BareTag Tracker Authors
//
// SPDX-License-Identifier: MIT

package geo

import (
	"errors"
	"math"
	"testing"
)

const floatTolerance = 1e-9

func TestBuildFrame(t *testing.T) {
	t.Run("empty anchor set returns the fallback frame", func(t *testing.T) {
		frame := BuildFrame(nil, DefaultPadding, DefaultFrame)
		if frame != DefaultFrame {
			t.Errorf("expected default frame %+v, got %+v", DefaultFrame, frame)
		}

		custom := ReferenceFrame{MinLat: 42, MaxLat: 43, MinLon: -73, MaxLon: -72}
		frame = BuildFrame([]GeoPoint{}, DefaultPadding, custom)
		if frame != custom {
			t.Errorf("expected custom frame %+v, got %+v", custom, frame)
		}
	})
	t.Run("single anchor yields a padded square centred on it", func(t *testing.T) {
		padding := 0.0001
		frame := BuildFrame([]GeoPoint{anchorSW}, padding, DefaultFrame)

		if math.Abs(frame.Width()-2*padding) > floatTolerance {
			t.Errorf("expected width %f, got %f", 2*padding, frame.Width())
		}
		if math.Abs(frame.Height()-2*padding) > floatTolerance {
			t.Errorf("expected height %f, got %f", 2*padding, frame.Height())
		}
		center := frame.Center()
		if math.Abs(center.Lat-anchorSW.Lat) > floatTolerance || math.Abs(center.Lon-anchorSW.Lon) > floatTolerance {
			t.Errorf("expected frame to be centred on %s, got %s", anchorSW, center)
		}
		if frame.IsDegenerate() {
			t.Error("expected padded single anchor frame to be non-degenerate")
		}
	})
	t.Run("single anchor without padding is degenerate", func(t *testing.T) {
		frame := BuildFrame([]GeoPoint{anchorSW}, 0, DefaultFrame)
		if !frame.IsDegenerate() {
			t.Error("expected unpadded single anchor frame to be degenerate")
		}
	})
	t.Run("bounding box covers all anchors plus padding", func(t *testing.T) {
		anchors := []GeoPoint{anchorNE, tagMid, anchorSW}
		frame := BuildFrame(anchors, DefaultPadding, DefaultFrame)
		want := ReferenceFrame{
			MinLat: anchorSW.Lat - DefaultPadding,
			MaxLat: anchorNE.Lat + DefaultPadding,
			MinLon: anchorSW.Lon - DefaultPadding,
			MaxLon: anchorNE.Lon + DefaultPadding,
		}
		if math.Abs(frame.MinLat-want.MinLat) > floatTolerance ||
			math.Abs(frame.MaxLat-want.MaxLat) > floatTolerance ||
			math.Abs(frame.MinLon-want.MinLon) > floatTolerance ||
			math.Abs(frame.MaxLon-want.MaxLon) > floatTolerance {
			t.Errorf("expected frame %+v, got %+v", want, frame)
		}
		for _, a := range anchors {
			if !frame.Contains(a) {
				t.Errorf("expected frame to contain anchor %s", a)
			}
		}
	})
	t.Run("negative padding is treated as zero", func(t *testing.T) {
		frame := BuildFrame([]GeoPoint{anchorSW, anchorNE}, -1, DefaultFrame)
		if frame.MinLat != anchorSW.Lat || frame.MaxLon != anchorNE.Lon {
			t.Errorf("expected unpadded frame, got %+v", frame)
		}
	})
}

func TestFrameBuilder_Build(t *testing.T) {
	t.Run("default builder falls back on empty anchors", func(t *testing.T) {
		builder := NewFrameBuilder()
		frame, err := builder.Build(nil)
		if err != nil {
			t.Fatalf("failed to build frame: %s", err)
		}
		if frame != DefaultFrame {
			t.Errorf("expected default frame, got %+v", frame)
		}
	})
	t.Run("builder rejects empty anchors when fallback is disabled", func(t *testing.T) {
		builder := NewFrameBuilder()
		builder.AllowEmpty = false
		_, err := builder.Build(nil)
		if err == nil {
			t.Fatal("expected build to fail")
		}
		if !errors.Is(err, ErrEmptyAnchorSet) {
			t.Errorf("expected error to be %s, got %s", ErrEmptyAnchorSet, err)
		}
	})
	t.Run("builder uses configured padding", func(t *testing.T) {
		builder := FrameBuilder{Padding: 0.001, Fallback: DefaultFrame, AllowEmpty: true}
		frame, err := builder.Build([]GeoPoint{anchorSW})
		if err != nil {
			t.Fatalf("failed to build frame: %s", err)
		}
		if math.Abs(frame.Width()-0.002) > floatTolerance {
			t.Errorf("expected width 0.002, got %f", frame.Width())
		}
	})
}
