// SPDX-FileCopyrightText: The BareTag Tracker Authors
//
// SPDX-License-Identifier: MIT

package geofence

import (
	"sync"
	"time"
)

// Tracker remembers the boundary state of every entity across evaluations. Evaluations for the
// same entity id are serialized; different ids may be evaluated concurrently from several feed
// goroutines.
type Tracker struct {
	mu     sync.Mutex
	states map[string]State
	locks  map[string]*sync.Mutex
}

// NewTracker returns an empty Tracker in which every entity starts in StateUnknown.
func NewTracker() *Tracker {
	return &Tracker{
		states: make(map[string]State),
		locks:  make(map[string]*sync.Mutex),
	}
}

// Evaluate tests entities against poly, records their new state and returns one event per
// entity. A nil poly yields no events and leaves all states untouched.
func (t *Tracker) Evaluate(entities []Entity, poly *Polygon) ([]Event, error) {
	if poly == nil {
		return nil, nil
	}
	if len(*poly) < MinVertices {
		return nil, ErrInvalidPolygon
	}

	now := time.Now()
	events := make([]Event, 0, len(entities))
	for _, entity := range lastOccurrences(entities) {
		if !entity.Position.Valid() {
			continue
		}
		event, err := t.evaluateLocked(entity, *poly, now)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}

// State returns the recorded state of the entity with the given id.
func (t *Tracker) State(id string) State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.states[id]
}

// States returns a copy of all recorded states.
func (t *Tracker) States() map[string]State {
	t.mu.Lock()
	defer t.mu.Unlock()
	states := make(map[string]State, len(t.states))
	for id, s := range t.states {
		states[id] = s
	}
	return states
}

// Reset returns every entity to StateUnknown. It is used when the boundary itself changes,
// since states recorded against the old boundary cannot be compared with the new one.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.states = make(map[string]State)
	t.locks = make(map[string]*sync.Mutex)
}

// Forget drops the recorded state of the entity with the given id, so its next evaluation is a
// first sighting again.
func (t *Tracker) Forget(id string) {
	t.mu.Lock()
	l, ok := t.locks[id]
	t.mu.Unlock()
	if ok {
		l.Lock()
		defer l.Unlock()
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.states, id)
	delete(t.locks, id)
}

func (t *Tracker) evaluateLocked(entity Entity, poly Polygon, at time.Time) (Event, error) {
	l := t.lockFor(entity.ID)
	l.Lock()
	defer l.Unlock()

	t.mu.Lock()
	previous := t.states[entity.ID]
	t.mu.Unlock()

	event, err := evaluateEntity(entity, poly, previous, at)
	if err != nil {
		return event, err
	}

	t.mu.Lock()
	t.states[entity.ID] = event.Current
	t.mu.Unlock()
	return event, nil
}

func (t *Tracker) lockFor(id string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.locks[id]
	if !ok {
		l = new(sync.Mutex)
		t.locks[id] = l
	}
	return l
}

// lastOccurrences removes duplicate ids, keeping the position of the first and the data of the
// last occurrence.
func lastOccurrences(entities []Entity) []Entity {
	index := make(map[string]int, len(entities))
	unique := make([]Entity, 0, len(entities))
	for _, e := range entities {
		if i, ok := index[e.ID]; ok {
			unique[i] = e
			continue
		}
		index[e.ID] = len(unique)
		unique = append(unique, e)
	}
	return unique
}
