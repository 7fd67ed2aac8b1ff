// SPDX-FileCopyrightText: The BareTag Tracker Authors
//
// SPDX-License-Identifier: MIT

// Package model defines the JSON records exchanged with the anchor and tag backends and
// validates them on the way in.
package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/baretag/baretag-tracker/internal/geo"
	"github.com/baretag/baretag-tracker/internal/geofence"
	"github.com/baretag/baretag-tracker/internal/vartype"
)

// ErrInvalidRecord is returned for records that fail validation while decoding.
var ErrInvalidRecord = errors.New("invalid record")

// ID identifies an anchor or tag. Backends send either JSON strings or numbers; both normalize
// to the decimal string form.
type ID string

// UnmarshalJSON accepts a JSON string or number.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", ErrInvalidRecord)
	}
	if i, err := n.Int64(); err == nil {
		*id = ID(strconv.FormatInt(i, 10))
		return nil
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string {
	return string(id)
}

// requireCoordinates dereferences the latitude and longitude of a record. Records decode them
// into pointers first so that absent values can be told apart from zero.
func requireCoordinates(lat, lon *float64) (float64, float64, error) {
	if lat == nil || lon == nil {
		return 0, 0, fmt.Errorf("latitude and longitude are required: %w", ErrInvalidRecord)
	}
	return *lat, *lon, nil
}

// Anchor is a fixed reference beacon with a known GPS position.
type Anchor struct {
	ID        ID                 `json:"id"`
	Name      string             `json:"name"`
	Latitude  float64            `json:"latitude"`
	Longitude float64            `json:"longitude"`
	Altitude  vartype.VarFloat64 `json:"altitude"`
	PositionX vartype.VarFloat64 `json:"positionX"`
	PositionY vartype.VarFloat64 `json:"positionY"`
}

// UnmarshalJSON decodes an anchor, accepting anchor_id and anchor_name in place of id and name.
// Latitude and longitude are required.
func (a *Anchor) UnmarshalJSON(data []byte) error {
	type plain Anchor
	var raw struct {
		plain
		Latitude   *float64 `json:"latitude"`
		Longitude  *float64 `json:"longitude"`
		AnchorID   *ID      `json:"anchor_id"`
		AnchorName *string  `json:"anchor_name"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*a = Anchor(raw.plain)
	if raw.AnchorID != nil {
		a.ID = *raw.AnchorID
	}
	if raw.AnchorName != nil {
		a.Name = *raw.AnchorName
	}
	var err error
	a.Latitude, a.Longitude, err = requireCoordinates(raw.Latitude, raw.Longitude)
	return err
}

// GeoPoint returns the anchor's GPS position.
func (a Anchor) GeoPoint() geo.GeoPoint {
	return geo.GeoPoint{Lat: a.Latitude, Lon: a.Longitude}
}

// Validate checks the id and coordinates of the anchor.
func (a Anchor) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("anchor without id: %w", ErrInvalidRecord)
	}
	if !a.GeoPoint().Valid() {
		return fmt.Errorf("anchor %q has invalid coordinates %s: %w", a.ID, a.GeoPoint(), ErrInvalidRecord)
	}
	return nil
}

// Tag is a tracked device as reported by the tag backend.
type Tag struct {
	ID        ID                 `json:"id"`
	Name      string             `json:"name"`
	Latitude  float64            `json:"latitude"`
	Longitude float64            `json:"longitude"`
	Altitude  vartype.VarFloat64 `json:"altitude"`
	Status    vartype.VarBool    `json:"status"`
	Timestamp vartype.VarTime    `json:"timestamp"`
	X         vartype.VarFloat64 `json:"x"`
	Y         vartype.VarFloat64 `json:"y"`
}

// UnmarshalJSON decodes a tag. The registration keys tag_name, x_offset and y_offset are
// accepted in place of name, x and y. Latitude and longitude are required.
func (t *Tag) UnmarshalJSON(data []byte) error {
	type plain Tag
	var raw struct {
		plain
		Latitude  *float64            `json:"latitude"`
		Longitude *float64            `json:"longitude"`
		TagName   *string             `json:"tag_name"`
		XOffset   *vartype.VarFloat64 `json:"x_offset"`
		YOffset   *vartype.VarFloat64 `json:"y_offset"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = Tag(raw.plain)
	if raw.TagName != nil {
		t.Name = *raw.TagName
	}
	if raw.XOffset != nil {
		t.X = *raw.XOffset
	}
	if raw.YOffset != nil {
		t.Y = *raw.YOffset
	}
	var err error
	t.Latitude, t.Longitude, err = requireCoordinates(raw.Latitude, raw.Longitude)
	return err
}

// GeoPoint returns the tag's GPS position.
func (t Tag) GeoPoint() geo.GeoPoint {
	return geo.GeoPoint{Lat: t.Latitude, Lon: t.Longitude}
}

// Entity converts the tag into its geofence representation.
func (t Tag) Entity() geofence.Entity {
	return geofence.Entity{
		ID:       t.ID.String(),
		Name:     t.Name,
		Position: t.GeoPoint(),
		Altitude: t.Altitude,
		Status:   t.Status,
	}
}

// Validate checks the id and coordinates of the tag.
func (t Tag) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("tag without id: %w", ErrInvalidRecord)
	}
	if !t.GeoPoint().Valid() {
		return fmt.Errorf("tag %q has invalid coordinates %s: %w", t.ID, t.GeoPoint(), ErrInvalidRecord)
	}
	return nil
}

// UserLocation is the position of the operator's own device.
type UserLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// UnmarshalJSON decodes a user location. Latitude and longitude are required.
func (u *UserLocation) UnmarshalJSON(data []byte) error {
	var raw struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var err error
	u.Latitude, u.Longitude, err = requireCoordinates(raw.Latitude, raw.Longitude)
	return err
}

// GeoPoint returns the user's GPS position.
func (u UserLocation) GeoPoint() geo.GeoPoint {
	return geo.GeoPoint{Lat: u.Latitude, Lon: u.Longitude}
}

// Validate checks the coordinates of the user location.
func (u UserLocation) Validate() error {
	if !u.GeoPoint().Valid() {
		return fmt.Errorf("user location has invalid coordinates %s: %w", u.GeoPoint(), ErrInvalidRecord)
	}
	return nil
}

// Boundary is the operator-drawn perimeter.
type Boundary struct {
	Points []geo.GeoPoint `json:"points"`
}

// Polygon converts the boundary into a geofence polygon.
func (b Boundary) Polygon() (geofence.Polygon, error) {
	return geofence.NewPolygon(b.Points)
}

// Validate checks the vertex count and every vertex of the boundary.
func (b Boundary) Validate() error {
	if len(b.Points) < geofence.MinVertices {
		return fmt.Errorf("boundary has %d points, need at least %d: %w", len(b.Points),
			geofence.MinVertices, ErrInvalidRecord)
	}
	for i, p := range b.Points {
		if !p.Valid() {
			return fmt.Errorf("boundary point %d has invalid coordinates %s: %w", i, p, ErrInvalidRecord)
		}
	}
	return nil
}
