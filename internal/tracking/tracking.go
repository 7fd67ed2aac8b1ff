// SPDX-FileCopyrightText: The BareTag Tracker Authors
//
// SPDX-License-Identifier: MIT

// Package tracking turns a snapshot of anchors, tags, user location and boundary into a
// projected view with boundary events and color assignments.
package tracking

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/baretag/baretag-tracker/internal/geo"
	"github.com/baretag/baretag-tracker/internal/geofence"
	"github.com/baretag/baretag-tracker/internal/model"
	"github.com/baretag/baretag-tracker/internal/palette"
	"github.com/baretag/baretag-tracker/internal/vartype"
)

// Snapshot is the latest known state of every input. Nil User or Boundary means the value is
// not known yet.
type Snapshot struct {
	Anchors  []model.Anchor
	Tags     []model.Tag
	User     *model.UserLocation
	Boundary *model.Boundary
}

// AnchorMarker is an anchor placed on the plane.
type AnchorMarker struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Position geo.GeoPoint   `json:"position"`
	Plane    geo.PlanePoint `json:"plane"`
}

// TagMarker is a tag placed on the plane together with its boundary state and color.
type TagMarker struct {
	ID       string             `json:"id"`
	Name     string             `json:"name"`
	Color    palette.Color      `json:"color"`
	Position geo.GeoPoint       `json:"position"`
	Plane    geo.PlanePoint     `json:"plane"`
	State    geofence.State     `json:"state"`
	Altitude vartype.VarFloat64 `json:"altitude"`
	// Distance to the user in meters. Unset while the user location is unknown.
	Distance vartype.VarFloat64 `json:"distance"`
	// NearestAnchor is the id of the closest anchor, empty without anchors.
	NearestAnchor string `json:"nearest_anchor"`
}

// UserMarker is the operator's own position placed on the plane.
type UserMarker struct {
	Position geo.GeoPoint   `json:"position"`
	Plane    geo.PlanePoint `json:"plane"`
}

// Proximity names an anchor and its distance in meters.
type Proximity struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Distance float64 `json:"distance"`
}

// View is the result of processing one Snapshot.
type View struct {
	Frame geo.ReferenceFrame `json:"frame"`
	// NoAnchors is set when the frame is the configured fallback because no anchors are known.
	NoAnchors bool             `json:"no_anchors"`
	Anchors   []AnchorMarker   `json:"anchors"`
	Tags      []TagMarker      `json:"tags"`
	User      *UserMarker      `json:"user,omitempty"`
	Boundary  []geo.PlanePoint `json:"boundary,omitempty"`
	Events    []geofence.Event `json:"events"`
	// Nearest is the anchor closest to the user.
	Nearest   *Proximity `json:"nearest,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Inside returns the number of tags inside the boundary.
func (v View) Inside() int {
	return v.countState(geofence.StateInside)
}

// Outside returns the number of tags outside the boundary.
func (v View) Outside() int {
	return v.countState(geofence.StateOutside)
}

// Crossings returns the Entered and Exited events of the view.
func (v View) Crossings() []geofence.Event {
	return geofence.Crossings(v.Events)
}

func (v View) countState(state geofence.State) int {
	n := 0
	for _, tag := range v.Tags {
		if tag.State == state {
			n++
		}
	}
	return n
}

// Engine runs the tracking pipeline. It is safe for concurrent use; calls to Process are
// serialised.
type Engine struct {
	frames    geo.FrameBuilder
	projector geo.Projector
	tracker   *geofence.Tracker
	colors    *palette.Registry

	mu       sync.Mutex
	boundary geofence.Polygon
}

// New returns an Engine composed of the given parts. A nil tracker or registry is replaced by
// a fresh one.
func New(frames geo.FrameBuilder, projector geo.Projector, tracker *geofence.Tracker,
	colors *palette.Registry,
) *Engine {
	if tracker == nil {
		tracker = geofence.NewTracker()
	}
	if colors == nil {
		colors = palette.NewRegistry()
	}
	return &Engine{
		frames:    frames,
		projector: projector,
		tracker:   tracker,
		colors:    colors,
	}
}

// Process builds the reference frame from the anchors, projects every position onto the plane,
// evaluates the tags against the boundary and assigns their colors.
//
// A changed boundary resets the recorded tag states, so the first evaluation against it only
// establishes them. Frame and projection errors wrap geo.ErrEmptyAnchorSet and
// geo.ErrDegenerateFrame and leave the geofence state untouched.
func (e *Engine) Process(snap Snapshot) (View, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	points := make([]geo.GeoPoint, 0, len(snap.Anchors))
	for _, anchor := range snap.Anchors {
		points = append(points, anchor.GeoPoint())
	}
	frame, err := e.frames.Build(points)
	if err != nil {
		return View{}, fmt.Errorf("failed to build reference frame: %w", err)
	}

	view := View{
		Frame:     frame,
		NoAnchors: len(snap.Anchors) == 0,
		UpdatedAt: time.Now(),
	}

	view.Anchors = make([]AnchorMarker, 0, len(snap.Anchors))
	for _, anchor := range snap.Anchors {
		plane, err := e.projector.Project(anchor.GeoPoint(), frame)
		if err != nil {
			return View{}, fmt.Errorf("failed to project anchor %q: %w", anchor.ID, err)
		}
		view.Anchors = append(view.Anchors, AnchorMarker{
			ID:       anchor.ID.String(),
			Name:     anchor.Name,
			Position: anchor.GeoPoint(),
			Plane:    plane,
		})
	}

	tags := uniqueTags(snap.Tags)
	view.Tags = make([]TagMarker, 0, len(tags))
	for _, tag := range tags {
		plane, err := e.projector.Project(tag.GeoPoint(), frame)
		if err != nil {
			return View{}, fmt.Errorf("failed to project tag %q: %w", tag.ID, err)
		}
		view.Tags = append(view.Tags, TagMarker{
			ID:       tag.ID.String(),
			Name:     tag.Name,
			Position: tag.GeoPoint(),
			Plane:    plane,
			Altitude: tag.Altitude,
		})
	}

	if snap.User != nil {
		plane, err := e.projector.Project(snap.User.GeoPoint(), frame)
		if err != nil {
			return View{}, fmt.Errorf("failed to project user location: %w", err)
		}
		view.User = &UserMarker{Position: snap.User.GeoPoint(), Plane: plane}
	}

	poly, err := e.updateBoundary(snap.Boundary)
	if err != nil {
		return View{}, err
	}
	if poly != nil {
		view.Boundary = make([]geo.PlanePoint, 0, len(*poly))
		for _, vertex := range *poly {
			plane, err := e.projector.Project(vertex, frame)
			if err != nil {
				return View{}, fmt.Errorf("failed to project boundary: %w", err)
			}
			view.Boundary = append(view.Boundary, plane)
		}

		entities := make([]geofence.Entity, 0, len(tags))
		for _, tag := range tags {
			entities = append(entities, tag.Entity())
		}
		view.Events, err = e.tracker.Evaluate(entities, poly)
		if err != nil {
			return View{}, fmt.Errorf("failed to evaluate boundary: %w", err)
		}
	}

	for i := range view.Tags {
		marker := &view.Tags[i]
		marker.Color = e.colors.ColorFor(marker.ID)
		if poly != nil {
			marker.State = e.tracker.State(marker.ID)
		}
		if view.User != nil {
			marker.Distance.Set(geo.Distance(view.User.Position, marker.Position))
		}
		if nearest, ok := nearestAnchor(view.Anchors, marker.Position); ok {
			marker.NearestAnchor = nearest.ID
		}
	}
	if view.User != nil {
		if nearest, ok := nearestAnchor(view.Anchors, view.User.Position); ok {
			view.Nearest = &nearest
		}
	}

	return view, nil
}

// Tracker returns the geofence tracker used by the engine.
func (e *Engine) Tracker() *geofence.Tracker {
	return e.tracker
}

// Colors returns the color registry used by the engine.
func (e *Engine) Colors() *palette.Registry {
	return e.colors
}

// updateBoundary converts the boundary into a polygon and resets the tracker whenever it
// differs from the previously processed one. A nil boundary yields a nil polygon.
func (e *Engine) updateBoundary(boundary *model.Boundary) (*geofence.Polygon, error) {
	if boundary == nil {
		if e.boundary != nil {
			e.tracker.Reset()
			e.boundary = nil
		}
		return nil, nil
	}

	poly, err := boundary.Polygon()
	if err != nil {
		return nil, fmt.Errorf("failed to convert boundary: %w", err)
	}
	if !poly.Equal(e.boundary) {
		e.tracker.Reset()
		e.boundary = poly
	}
	return &poly, nil
}

// uniqueTags drops repeated tag ids. The last occurrence wins but keeps the position of the
// first one.
func uniqueTags(tags []model.Tag) []model.Tag {
	unique := make([]model.Tag, 0, len(tags))
	index := make(map[model.ID]int, len(tags))
	for _, tag := range tags {
		if i, ok := index[tag.ID]; ok {
			unique[i] = tag
			continue
		}
		index[tag.ID] = len(unique)
		unique = append(unique, tag)
	}
	return unique
}

func nearestAnchor(anchors []AnchorMarker, p geo.GeoPoint) (Proximity, bool) {
	nearest := Proximity{Distance: math.Inf(1)}
	for _, anchor := range anchors {
		if d := geo.Distance(anchor.Position, p); d < nearest.Distance {
			nearest = Proximity{ID: anchor.ID, Name: anchor.Name, Distance: d}
		}
	}
	return nearest, len(anchors) > 0
}
