// SPDX-FileCopyrightText: The BareTag Tracker Authors
//
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

type signalSource interface {
	Notify(c chan<- os.Signal, sig ...os.Signal)
	Stop(c chan<- os.Signal)
}

// stdLibSignalSource is the production implementation.
type stdLibSignalSource struct{}

func (stdLibSignalSource) Notify(c chan<- os.Signal, sig ...os.Signal) {
	signal.Notify(c, sig...)
}

func (stdLibSignalSource) Stop(c chan<- os.Signal) {
	signal.Stop(c)
}

// HandleSignals toggles the alternative display on SIGUSR1 and logs the current tracking state
// on SIGUSR2.
func (s *Service) HandleSignals(ctx context.Context, sigChan chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigChan:
			switch sig {
			case syscall.SIGUSR1:
				s.displayAltLock.Lock()
				s.displayAltText = !s.displayAltText
				s.displayAltLock.Unlock()
				s.printOutput(ctx)
			case syscall.SIGUSR2:
				s.logState()
			}
		}
	}
}

func (s *Service) logState() {
	view := s.currentView()
	if view == nil {
		s.logger.Info("no tracking state available yet")
		return
	}
	s.logger.Info("current tracking state", slog.Int("anchors", len(view.Anchors)),
		slog.Int("tags", len(view.Tags)), slog.Int("inside", view.Inside()),
		slog.Int("outside", view.Outside()), slog.Bool("no_anchors", view.NoAnchors),
		slog.Int("clients", s.hub.ClientCount()),
		slog.Int("known_states", len(s.engine.Tracker().States())),
		slog.Int("assigned_colors", len(s.engine.Colors().Assigned())))
}
