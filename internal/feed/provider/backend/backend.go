// SPDX-FileCopyrightText: The BareTag Tracker Authors
//
// SPDX-License-Identifier: MIT

// Package backend pulls anchor, tag, user and boundary snapshots from the BareTag HTTP backend.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/baretag/baretag-tracker/internal/feed"
	"github.com/baretag/baretag-tracker/internal/http"
	"github.com/baretag/baretag-tracker/internal/job"
	"github.com/baretag/baretag-tracker/internal/logger"
)

const (
	name = "backend"
)

var ErrMissingClient = errors.New("backend provider requires an HTTP client")

// endpoints maps every snapshot kind to its backend path.
var endpoints = map[feed.Kind]string{
	feed.KindAnchors:  "/get_anchors",
	feed.KindTags:     "/get_tags",
	feed.KindUser:     "/get_user",
	feed.KindBoundary: "/get_boundary",
}

// Provider polls one backend endpoint and emits its snapshots via a stream.
type Provider struct {
	name     string
	kind     feed.Kind
	endpoint string
	period   time.Duration
	ttl      time.Duration
	http     *http.Client
	logger   *logger.Logger
	locateFn func(context.Context) ([]byte, error)
}

// New initializes a Provider for the given kind against the backend at baseURL.
func New(kind feed.Kind, baseURL string, period time.Duration, client *http.Client, log *logger.Logger) (*Provider, error) {
	if client == nil {
		return nil, ErrMissingClient
	}
	path, ok := endpoints[kind]
	if !ok {
		return nil, fmt.Errorf("no backend endpoint for %q: %w", kind, feed.ErrUnknownKind)
	}
	endpoint, err := url.JoinPath(baseURL, path)
	if err != nil {
		return nil, fmt.Errorf("failed to build backend URL: %w", err)
	}

	provider := &Provider{
		name:     name + ":" + string(kind),
		kind:     kind,
		endpoint: endpoint,
		period:   period,
		ttl:      period * 12,
		http:     client,
		logger:   log,
	}
	provider.locateFn = provider.fetch
	return provider, nil
}

// Name returns the name of the Provider instance.
func (p *Provider) Name() string {
	return p.name
}

// LookupStream polls the backend until the context ends. Every successful poll is emitted; the
// bus drops payloads that did not change.
func (p *Provider) LookupStream(ctx context.Context) <-chan feed.Update {
	out := make(chan feed.Update)

	poll := job.New(p.period, func(ctx context.Context) {
		data, err := p.locateFn(ctx)
		if err != nil {
			if ctx.Err() == nil {
				p.logger.Warn("failed to poll backend", logger.Err(err),
					slog.String("endpoint", p.endpoint))
			}
			return
		}
		update, err := feed.Decode(p.kind, p.name, p.ttl, data)
		if err != nil {
			p.logger.Warn("backend sent invalid snapshot", logger.Err(err),
				slog.String("endpoint", p.endpoint))
			return
		}
		select {
		case <-ctx.Done():
		case out <- update:
		}
	}, job.WithImmediateRun())

	go func() {
		defer close(out)
		poll.Start(ctx)
	}()
	return out
}

// fetch retrieves the raw JSON payload from the backend endpoint.
func (p *Provider) fetch(ctx context.Context) ([]byte, error) {
	data, err := p.http.Fetch(ctx, p.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", p.endpoint, err)
	}
	return data, nil
}
