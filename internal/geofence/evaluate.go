// SPDX-FileCopyrightText: The BareTag Tracker Authors
//
// SPDX-License-Identifier: MIT

package geofence

import (
	"time"

	"github.com/google/uuid"

	"github.com/baretag/baretag-tracker/internal/geo"
	"github.com/baretag/baretag-tracker/internal/vartype"
)

// State is the last known position of an entity relative to the boundary.
type State int

const (
	StateUnknown State = iota
	StateInside
	StateOutside
)

func (s State) String() string {
	switch s {
	case StateInside:
		return "inside"
	case StateOutside:
		return "outside"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// EventKind describes what an evaluation observed for a single entity.
type EventKind string

const (
	Entered   EventKind = "entered"
	Exited    EventKind = "exited"
	Unchanged EventKind = "unchanged"
)

// Entity is a snapshot of a tracked tag handed in for a single evaluation.
type Entity struct {
	ID       string
	Name     string
	Position geo.GeoPoint
	Altitude vartype.VarFloat64
	// Status is the in-bounds flag a tag may report on its own. It is informational only; the
	// boundary test always decides the state.
	Status vartype.VarBool
}

// Event is the outcome of evaluating one entity against the boundary.
type Event struct {
	ID         string       `json:"id"`
	EntityID   string       `json:"entity_id"`
	EntityName string       `json:"entity_name"`
	Kind       EventKind    `json:"kind"`
	Previous   State        `json:"previous"`
	Current    State        `json:"current"`
	Position   geo.GeoPoint `json:"position"`
	At         time.Time    `json:"at"`
}

// IsCrossing reports whether the event marks a boundary crossing.
func (e Event) IsCrossing() bool {
	return e.Kind == Entered || e.Kind == Exited
}

// Evaluate tests every entity against poly and compares the result with the state recorded in
// prior. It does not modify prior; callers apply Event.Current themselves. A nil poly means no
// boundary is configured and yields no events.
//
// Each entity produces exactly one event. The first evaluation of an entity (StateUnknown)
// only establishes its state and is reported as Unchanged. Entities with invalid coordinates
// are skipped. If an id occurs more than once, its last occurrence wins.
func Evaluate(entities []Entity, poly *Polygon, prior map[string]State) ([]Event, error) {
	if poly == nil {
		return nil, nil
	}
	if len(*poly) < MinVertices {
		return nil, ErrInvalidPolygon
	}

	now := time.Now()
	events := make([]Event, 0, len(entities))
	index := make(map[string]int, len(entities))
	for _, entity := range entities {
		if !entity.Position.Valid() {
			continue
		}
		event, err := evaluateEntity(entity, *poly, prior[entity.ID], now)
		if err != nil {
			return nil, err
		}
		if i, ok := index[entity.ID]; ok {
			events[i] = event
			continue
		}
		index[entity.ID] = len(events)
		events = append(events, event)
	}
	return events, nil
}

// Crossings filters events down to Entered and Exited events.
func Crossings(events []Event) []Event {
	var crossings []Event
	for _, e := range events {
		if e.IsCrossing() {
			crossings = append(crossings, e)
		}
	}
	return crossings
}

func evaluateEntity(entity Entity, poly Polygon, previous State, at time.Time) (Event, error) {
	inside, err := Contains(poly, entity.Position)
	if err != nil {
		return Event{}, err
	}
	current := StateOutside
	if inside {
		current = StateInside
	}

	return Event{
		ID:         uuid.NewString(),
		EntityID:   entity.ID,
		EntityName: entity.Name,
		Kind:       transition(previous, current),
		Previous:   previous,
		Current:    current,
		Position:   entity.Position,
		At:         at,
	}, nil
}

func transition(previous, current State) EventKind {
	switch {
	case previous == StateInside && current == StateOutside:
		return Exited
	case previous == StateOutside && current == StateInside:
		return Entered
	default:
		return Unchanged
	}
}
