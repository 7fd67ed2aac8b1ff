// SPDX-FileCopyrightText: The BareTag Tracker Authors
//
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	stdhttp "net/http"
	"time"

	"github.com/baretag/baretag-tracker/internal/feed"
	"github.com/baretag/baretag-tracker/internal/hub"
	"github.com/baretag/baretag-tracker/internal/logger"
	"github.com/baretag/baretag-tracker/internal/model"
)

const (
	readHeaderTimeout = time.Second * 10
	shutdownTimeout   = time.Second * 5
)

type healthResponse struct {
	Status  string `json:"status"`
	Clients int    `json:"clients"`
}

// snapshotResponse is the latest update of one kind as served by the API.
type snapshotResponse struct {
	Kind     feed.Kind           `json:"kind"`
	Source   string              `json:"source"`
	At       time.Time           `json:"at"`
	Anchors  []model.Anchor      `json:"anchors,omitempty"`
	Tags     []model.Tag         `json:"tags,omitempty"`
	User     *model.UserLocation `json:"user,omitempty"`
	Boundary *model.Boundary     `json:"boundary,omitempty"`
}

// serve starts the HTTP server when a listen address is configured. The returned function shuts
// the server down gracefully.
func (s *Service) serve(ctx context.Context) (func(), error) {
	if s.config.Server.Listen == "" {
		return func() {}, nil
	}

	listener, err := net.Listen("tcp", s.config.Server.Listen)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", s.config.Server.Listen, err)
	}
	server := &stdhttp.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			s.logger.Error("HTTP server failed", logger.Err(err))
		}
	}()
	s.logger.Info("HTTP server listening", slog.String("address", listener.Addr().String()))

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("failed to shut down HTTP server", logger.Err(err))
		}
	}, nil
}

func (s *Service) routes() stdhttp.Handler {
	mux := stdhttp.NewServeMux()
	mux.Handle("GET /ws", hub.NewHandler(s.hub, s.logger))
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/view", s.handleView)
	mux.HandleFunc("GET /api/snapshots/{kind}", s.handleSnapshot)
	return mux
}

func (s *Service) handleHealth(w stdhttp.ResponseWriter, _ *stdhttp.Request) {
	s.writeJSON(w, stdhttp.StatusOK, healthResponse{Status: "ok", Clients: s.hub.ClientCount()})
}

// handleView serves the latest processed view.
func (s *Service) handleView(w stdhttp.ResponseWriter, _ *stdhttp.Request) {
	view := s.currentView()
	if view == nil {
		stdhttp.Error(w, "no view processed yet", stdhttp.StatusServiceUnavailable)
		return
	}
	s.writeJSON(w, stdhttp.StatusOK, view)
}

// handleSnapshot serves the latest unexpired update of the requested kind.
func (s *Service) handleSnapshot(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	kind, err := feed.ParseKind(r.PathValue("kind"))
	if err != nil {
		stdhttp.Error(w, err.Error(), stdhttp.StatusNotFound)
		return
	}
	u, ok := s.bus.Latest(kind)
	if !ok {
		stdhttp.Error(w, fmt.Sprintf("no %s snapshot available", kind), stdhttp.StatusNotFound)
		return
	}
	s.writeJSON(w, stdhttp.StatusOK, snapshotResponse{
		Kind:     u.Kind,
		Source:   u.Source,
		At:       u.At,
		Anchors:  u.Anchors,
		Tags:     u.Tags,
		User:     u.User,
		Boundary: u.Boundary,
	})
}

func (s *Service) writeJSON(w stdhttp.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode HTTP response", logger.Err(err))
	}
}
