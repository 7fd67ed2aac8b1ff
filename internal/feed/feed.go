// SPDX-FileCopyrightText: The BareTag Tracker Authors
//
// SPDX-License-Identifier: MIT

// Package feed collects anchor, tag, user and boundary snapshots from the configured sources
// and fans them out to subscribers.
package feed

import (
	"context"
	"sync"
	"time"

	"github.com/baretag/baretag-tracker/internal/geo"
	"github.com/baretag/baretag-tracker/internal/logger"
	"github.com/baretag/baretag-tracker/internal/model"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// Kind names the type of snapshot an Update carries.
type Kind string

const (
	KindAnchors  Kind = "anchors"
	KindTags     Kind = "tags"
	KindUser     Kind = "user"
	KindBoundary Kind = "boundary"
)

// Kinds lists every snapshot kind.
var Kinds = []Kind{KindAnchors, KindTags, KindUser, KindBoundary}

// Provider defines an interface for snapshot sources.
// It supports retrieving streamed updates until the context is done.
type Provider interface {
	Name() string
	LookupStream(ctx context.Context) <-chan Update
}

// Update is a complete snapshot of one kind as reported by a source. Only the field matching
// Kind is set.
type Update struct {
	Kind     Kind
	Source   string
	At       time.Time
	TTL      time.Duration
	Anchors  []model.Anchor
	Tags     []model.Tag
	User     *model.UserLocation
	Boundary *model.Boundary
}

// IsExpired checks if the Update has exceeded its time-to-live (TTL) based on the current time and the timestamp.
func (u Update) IsExpired() bool {
	return u.TTL > 0 && time.Since(u.At) > u.TTL
}

// Fingerprint hashes the payload of the update.
func (u Update) Fingerprint() uint64 {
	switch u.Kind {
	case KindAnchors:
		return model.Fingerprint(u.Anchors)
	case KindTags:
		return model.Fingerprint(u.Tags)
	case KindUser:
		return model.Fingerprint(u.User)
	case KindBoundary:
		return model.Fingerprint(u.Boundary)
	default:
		return 0
	}
}

// Bus coordinates the publishing and subscribing of snapshots between providers and consumers.
type Bus struct {
	mu          sync.RWMutex
	logger      *logger.Logger
	latest      map[Kind]Update
	subscribers map[Kind]map[chan Update]struct{}
	globalSubs  map[chan Update]struct{}

	// MovementThreshold is the distance in meters a user location has to move before it is
	// broadcast again.
	MovementThreshold float64
}

// New initializes and returns a new Bus.
func New(logger *logger.Logger) *Bus {
	return &Bus{
		logger:            logger,
		latest:            make(map[Kind]Update),
		subscribers:       make(map[Kind]map[chan Update]struct{}),
		globalSubs:        make(map[chan Update]struct{}),
		MovementThreshold: geo.MovementThreshold,
	}
}

func (b *Bus) NewOrchestrator(providers []Provider) *Orchestrator {
	return &Orchestrator{
		Bus:       b,
		Providers: providers,
	}
}

// Subscribe adds a subscriber for updates of the given kind and buffer size, returning an update
// channel and an unsubscribe function. The latest unexpired update is delivered right away.
func (b *Bus) Subscribe(kind Kind, size int) (<-chan Update, func()) {
	ch := make(chan Update, size)
	b.mu.Lock()
	if _, ok := b.subscribers[kind]; !ok {
		b.subscribers[kind] = make(map[chan Update]struct{})
	}
	b.subscribers[kind][ch] = struct{}{}
	if latest, ok := b.latest[kind]; ok && !latest.IsExpired() {
		trySend(ch, latest)
	}
	b.mu.Unlock()

	unsub := func() {
		b.mu.Lock()
		if subs, ok := b.subscribers[kind]; ok {
			delete(subs, ch)
			if len(subs) == 0 {
				delete(b.subscribers, kind)
			}
		}
		b.mu.Unlock()
		close(ch)
	}
	return ch, unsub
}

// SubscribeAll adds a subscriber for updates of every kind.
func (b *Bus) SubscribeAll(size int) (<-chan Update, func()) {
	ch := make(chan Update, size)
	b.mu.Lock()
	b.globalSubs[ch] = struct{}{}
	for _, kind := range Kinds {
		if latest, ok := b.latest[kind]; ok && !latest.IsExpired() {
			trySend(ch, latest)
		}
	}
	b.mu.Unlock()

	unsub := func() {
		b.mu.Lock()
		delete(b.globalSubs, ch)
		b.mu.Unlock()
		close(ch)
	}
	return ch, unsub
}

// Publish stores u as the latest update of its kind and broadcasts it. Repeated payloads from the
// same source within the TTL and user locations that barely moved only refresh the timestamp of
// the stored update. It reports whether the update was broadcast.
func (b *Bus) Publish(u Update) bool {
	if u.Kind == "" {
		return false
	}
	if u.At.IsZero() {
		u.At = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	prev, have := b.latest[u.Kind]
	if have && !prev.IsExpired() && b.isRepeat(prev, u) {
		if prev.Source == u.Source {
			prev.At = u.At
			b.latest[u.Kind] = prev
		}
		return false
	}

	b.latest[u.Kind] = u
	b.broadcast(u)
	return true
}

// Latest returns the latest unexpired update of the given kind.
func (b *Bus) Latest(kind Kind) (Update, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	u, ok := b.latest[kind]
	return u, ok && !u.IsExpired()
}

func (b *Bus) isRepeat(prev, next Update) bool {
	if next.Kind == KindUser && prev.User != nil && next.User != nil {
		return !geo.HasMovedSignificantly(prev.User.GeoPoint(), next.User.GeoPoint(), b.MovementThreshold)
	}
	return prev.Source == next.Source && prev.Fingerprint() == next.Fingerprint()
}

func (b *Bus) broadcast(u Update) {
	if subs, ok := b.subscribers[u.Kind]; ok {
		for ch := range subs {
			trySend(ch, u)
		}
	}
	for ch := range b.globalSubs {
		trySend(ch, u)
	}
}

func trySend(ch chan Update, u Update) {
	select {
	case ch <- u:
	default:
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func nextBackoff(d time.Duration) time.Duration {
	if d *= 2; d > maxBackoff {
		return maxBackoff
	}
	return d
}
