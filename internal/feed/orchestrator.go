// SPDX-FileCopyrightText: The BareTag Tracker Authors
//
// SPDX-License-Identifier: MIT

package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/baretag/baretag-tracker/internal/logger"
)

// Orchestrator coordinates the polling and publication of snapshots from multiple
// providers through a Bus.
type Orchestrator struct {
	Bus       *Bus
	Providers []Provider
}

// Track runs every provider of the Orchestrator in its own goroutine until ctx is done.
func (o *Orchestrator) Track(ctx context.Context) {
	var wg sync.WaitGroup
	for _, p := range o.Providers {
		wg.Add(1)
		go func(p Provider) {
			defer wg.Done()
			o.trackProvider(ctx, p)
		}(p)
	}
	<-ctx.Done()
	wg.Wait()
}

// trackProvider continuously consumes a Provider, publishing its updates to the Bus and
// restarting it with backoff whenever its stream ends.
func (o *Orchestrator) trackProvider(ctx context.Context, p Provider) {
	backoff := initialBackoff
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		lookupChan := o.safeLookup(ctx, p)
		if lookupChan == nil {
			if !sleepOrDone(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff)
			continue
		}

	consume:
		for {
			select {
			case <-ctx.Done():
				return
			case u, ok := <-lookupChan:
				if !ok {
					if !sleepOrDone(ctx, backoff) {
						return
					}
					backoff = nextBackoff(backoff)
					break consume
				}
				if u.Source == "" {
					u.Source = p.Name()
				}
				o.Bus.Publish(u)
				backoff = initialBackoff
			}
		}
	}
}

// safeLookup safely invokes the LookupStream method on a Provider and recovers from potential panics.
// Returns a read-only channel of Update or nil if the operation fails.
func (o *Orchestrator) safeLookup(ctx context.Context, provider Provider) (ch <-chan Update) {
	defer func() {
		if r := recover(); r != nil && o.Bus.logger != nil {
			o.Bus.logger.Error("provider panicked", logger.Err(fmt.Errorf("%v", r)),
				slog.String("provider", provider.Name()))
		}
	}()
	return provider.LookupStream(ctx)
}
