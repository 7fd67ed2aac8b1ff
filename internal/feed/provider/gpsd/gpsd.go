// SPDX-FileCopyrightText: The BareTag Tracker Authors
//
// SPDX-License-Identifier: MIT

// Package gpsd reports the location of the operator's own device from a local gpsd daemon.
package gpsd

import (
	"context"
	"log/slog"
	"time"

	"github.com/stratoberry/go-gpsd"

	"github.com/baretag/baretag-tracker/internal/feed"
	"github.com/baretag/baretag-tracker/internal/logger"
	"github.com/baretag/baretag-tracker/internal/model"
)

const (
	name = "gpsd"

	// DefaultAddr is the address gpsd listens on by default.
	DefaultAddr = "localhost:2947"
)

// session is the part of a gpsd session the provider depends on.
type session interface {
	AddFilter(class string, f gpsd.Filter)
	Watch() chan bool
}

// Provider streams the user location from gpsd TPV reports.
type Provider struct {
	name   string
	addr   string
	period time.Duration
	ttl    time.Duration
	logger *logger.Logger
	dialFn func(addr string) (session, error)
}

// New returns a Provider connecting to gpsd at addr. An empty addr uses DefaultAddr.
func New(addr string, log *logger.Logger) *Provider {
	if addr == "" {
		addr = DefaultAddr
	}
	return &Provider{
		name:   name,
		addr:   addr,
		period: time.Second * 30,
		ttl:    time.Minute * 2,
		logger: log,
		dialFn: dial,
	}
}

func dial(addr string) (session, error) {
	s, err := gpsd.Dial(addr)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Name returns the name of the Provider instance.
func (p *Provider) Name() string {
	return p.name
}

// LookupStream connects to gpsd and emits a user location for every TPV report with at least a
// 2D fix. Lost connections are re-established after the provider period.
func (p *Provider) LookupStream(ctx context.Context) <-chan feed.Update {
	out := make(chan feed.Update)

	go func() {
		defer close(out)

		for {
			// Exit if the caller is done
			select {
			case <-ctx.Done():
				return
			default:
			}

			sess, err := p.dialFn(p.addr)
			if err != nil {
				p.logger.Debug("failed to connect to gpsd", logger.Err(err), slog.String("addr", p.addr))
				if !p.wait(ctx) {
					return
				}
				continue
			}

			// Install TPV filter: this gets called for every TPV report
			sess.AddFilter("TPV", func(r interface{}) {
				tpv, ok := r.(*gpsd.TPVReport)
				if !ok {
					return
				}
				update, ok := p.createUpdate(tpv)
				if !ok {
					return
				}
				select {
				case <-ctx.Done():
				case out <- update:
				}
			})

			// Watch() returns a channel that closes when the watch ends (e.g. connection lost).
			done := sess.Watch()
			select {
			case <-ctx.Done():
				// go-gpsd has no way to close the session; the connection ends with the process.
				return
			case <-done:
			}

			if !p.wait(ctx) {
				return
			}
		}
	}()

	return out
}

// createUpdate turns a TPV report into a user location update. Reports without at least a 2D
// fix or with invalid coordinates are dropped.
func (p *Provider) createUpdate(tpv *gpsd.TPVReport) (feed.Update, bool) {
	if tpv == nil || tpv.Mode < gpsd.Mode2D {
		return feed.Update{}, false
	}
	user := model.UserLocation{
		Latitude:  tpv.Lat,
		Longitude: tpv.Lon,
	}
	if user.Validate() != nil {
		return feed.Update{}, false
	}
	return feed.Update{
		Kind:   feed.KindUser,
		Source: p.name,
		At:     time.Now(),
		TTL:    p.ttl,
		User:   &user,
	}, true
}

func (p *Provider) wait(ctx context.Context) bool {
	t := time.NewTimer(p.period)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
