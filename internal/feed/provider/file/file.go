// SPDX-FileCopyrightText: The BareTag Tracker Authors
//
// SPDX-License-Identifier: MIT

// Package file polls a local JSON file for anchor, tag, user or boundary snapshots.
package file

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/baretag/baretag-tracker/internal/feed"
	"github.com/baretag/baretag-tracker/internal/job"
	"github.com/baretag/baretag-tracker/internal/logger"
)

const (
	name = "file"
)

// Provider reads a JSON snapshot from a file and emits updates via a stream.
// It periodically reads the file, validates its data, and emits an update on every successful
// read. Updates are subject to a time-to-live (TTL) duration, so a file that stops being
// readable eventually stops counting as a source. The bus collapses unchanged content into a
// timestamp refresh.
type Provider struct {
	name     string
	kind     feed.Kind
	path     string
	period   time.Duration
	ttl      time.Duration
	logger   *logger.Logger
	locateFn func() ([]byte, error)
}

// New initializes a Provider for the given kind and file path, polling every period.
func New(kind feed.Kind, path string, period time.Duration, log *logger.Logger) *Provider {
	provider := &Provider{
		name:   name + ":" + string(kind),
		kind:   kind,
		path:   path,
		period: period,
		ttl:    period * 12,
		logger: log,
	}
	provider.locateFn = provider.readFile
	return provider
}

// Name returns the name of the Provider instance.
func (p *Provider) Name() string {
	return p.name
}

// LookupStream continuously streams snapshots from the file, emitting one update per successful
// read, until the context ends.
func (p *Provider) LookupStream(ctx context.Context) <-chan feed.Update {
	out := make(chan feed.Update)

	poll := job.New(p.period, func(ctx context.Context) {
		data, err := p.locateFn()
		if err != nil {
			p.logger.Debug("failed to read snapshot file", logger.Err(err), p.logAttrs())
			return
		}
		update, err := feed.Decode(p.kind, p.name, p.ttl, data)
		if err != nil {
			p.logger.Warn("ignoring invalid snapshot file", logger.Err(err), p.logAttrs())
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

func (p *Provider) logAttrs() slog.Attr {
	return slog.Group("source", slog.String("kind", string(p.kind)), slog.String("path", p.path))
}

// readFile reads the raw snapshot from the configured path.
func (p *Provider) readFile() ([]byte, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot file %q: %w", p.path, err)
	}
	return data, nil
}
