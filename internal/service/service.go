// SPDX-FileCopyrightText: The BareTag Tracker Authors
//
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/vorlif/spreak"

	"github.com/baretag/baretag-tracker/internal/config"
	"github.com/baretag/baretag-tracker/internal/feed"
	"github.com/baretag/baretag-tracker/internal/feed/provider/backend"
	"github.com/baretag/baretag-tracker/internal/feed/provider/file"
	"github.com/baretag/baretag-tracker/internal/feed/provider/gpsd"
	"github.com/baretag/baretag-tracker/internal/geo"
	"github.com/baretag/baretag-tracker/internal/http"
	"github.com/baretag/baretag-tracker/internal/hub"
	"github.com/baretag/baretag-tracker/internal/logger"
	"github.com/baretag/baretag-tracker/internal/metrics"
	"github.com/baretag/baretag-tracker/internal/presenter"
	"github.com/baretag/baretag-tracker/internal/publisher"
	"github.com/baretag/baretag-tracker/internal/tracking"
)

const (
	OutputClass = "baretag"

	subscriberBuffer = 32
)

var (
	ErrMissingLogger = errors.New("logger is required")
	ErrNoProviders   = errors.New("no snapshot providers enabled")
)

type outputData struct {
	Text    string   `json:"text"`
	Alt     string   `json:"alt"`
	Tooltip string   `json:"tooltip"`
	Classes []string `json:"class"`
}

type Service struct {
	SignalSrc signalSource

	bus       *feed.Bus
	config    *config.Config
	engine    *tracking.Engine
	hub       *hub.Hub
	logger    *logger.Logger
	metrics   *metrics.Collector
	output    io.Writer
	presenter *presenter.Presenter
	publisher publisher.Publisher
	scheduler gocron.Scheduler
	t         *spreak.Localizer

	snapshotLock sync.RWMutex
	snapshot     tracking.Snapshot

	viewLock sync.RWMutex
	view     *tracking.View

	outputLock sync.Mutex

	displayAltLock sync.RWMutex
	displayAltText bool
}

func New(conf *config.Config, log *logger.Logger, t *spreak.Localizer) (*Service, error) {
	if log == nil {
		return nil, ErrMissingLogger
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	pres, err := presenter.New(conf, t)
	if err != nil {
		return nil, fmt.Errorf("failed to create presenter: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector, err := metrics.New(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics collector: %w", err)
	}

	frames := geo.FrameBuilder{
		Padding: conf.Frame.Padding,
		Fallback: geo.ReferenceFrame{
			MinLat: conf.Frame.DefaultMinLat,
			MaxLat: conf.Frame.DefaultMaxLat,
			MinLon: conf.Frame.DefaultMinLon,
			MaxLon: conf.Frame.DefaultMaxLon,
		},
		AllowEmpty: !conf.Frame.RequireAnchors,
	}
	projector := geo.Projector{
		Width:  conf.Plane.Width,
		Height: conf.Plane.Height,
		Clamp:  !conf.Plane.DisableClamp,
		FlipY:  conf.Plane.FlipY,
	}

	service := &Service{
		SignalSrc: stdLibSignalSource{},
		bus:       feed.New(log),
		config:    conf,
		engine:    tracking.New(frames, projector, nil, nil),
		hub:       hub.New(log),
		logger:    log,
		metrics:   collector,
		output:    os.Stdout,
		presenter: pres,
		publisher: publisher.Nop{},
		scheduler: scheduler,
		t:         t,
	}
	return service, nil
}

// Run starts the snapshot providers, the output job and, if configured, the HTTP server. It
// blocks until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	pub, err := publisher.New(s.config, s.logger)
	if err != nil {
		return fmt.Errorf("failed to create publisher: %w", err)
	}
	s.publisher = pub
	defer func() {
		if err := pub.Close(); err != nil {
			s.logger.Error("failed to close publisher", logger.Err(err))
		}
	}()

	providers, err := s.createProviders()
	if err != nil {
		return fmt.Errorf("failed to create providers: %w", err)
	}
	orchestrator := s.bus.NewOrchestrator(providers)

	shutdownServer, err := s.serve(ctx)
	if err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	// Start scheduled jobs
	if err = s.createScheduledJob(ctx, s.config.Intervals.Output, s.printOutput,
		"tracking_output_job"); err != nil {
		return err
	}
	s.scheduler.Start()

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	s.SignalSrc.Notify(sigChan, syscall.SIGUSR1, syscall.SIGUSR2)
	go func() {
		defer s.SignalSrc.Stop(sigChan)
		s.HandleSignals(ctx, sigChan)
	}()

	// Subscribe to snapshot updates from the bus
	sub, unsub := s.bus.SubscribeAll(subscriberBuffer)
	go s.processUpdates(ctx, sub)
	go orchestrator.Track(ctx)

	// Wait for the context to cancel
	<-ctx.Done()
	unsub()
	shutdownServer()
	s.hub.Close()
	return s.scheduler.Shutdown()
}

// createProviders returns a provider for every configured snapshot source.
func (s *Service) createProviders() ([]feed.Provider, error) {
	var providers []feed.Provider

	if !s.config.Sources.DisableFiles {
		files := map[feed.Kind]string{
			feed.KindAnchors: s.config.Sources.AnchorsFile,
			feed.KindTags:    s.config.Sources.TagsFile,
			feed.KindUser:    s.config.Sources.UserFile,
		}
		if !s.config.Boundary.Disable {
			files[feed.KindBoundary] = s.config.Boundary.File
		}
		for _, kind := range feed.Kinds {
			if path := files[kind]; path != "" {
				providers = append(providers, file.New(kind, path, s.interval(kind), s.logger))
			}
		}
	}

	if s.config.HasBackend() {
		client := http.New(s.logger)
		for _, kind := range feed.Kinds {
			if kind == feed.KindBoundary && s.config.Boundary.Disable {
				continue
			}
			provider, err := backend.New(kind, s.config.Sources.BackendURL, s.interval(kind), client, s.logger)
			if err != nil {
				return nil, err
			}
			providers = append(providers, provider)
		}
	}

	if !s.config.Sources.DisableGPSD {
		providers = append(providers, gpsd.New(s.config.Sources.GPSDAddr, s.logger))
	}

	if len(providers) == 0 {
		return nil, ErrNoProviders
	}
	return providers, nil
}

// interval returns the polling interval for kind. Boundaries change as rarely as anchors do
// and share their interval.
func (s *Service) interval(kind feed.Kind) time.Duration {
	switch kind {
	case feed.KindTags:
		return s.config.Intervals.Tags
	case feed.KindUser:
		return s.config.Intervals.User
	default:
		return s.config.Intervals.Anchors
	}
}

func (s *Service) createScheduledJob(ctx context.Context, interval time.Duration, task func(context.Context),
	jobName string,
) error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(task),
		gocron.WithContext(ctx),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName(jobName),
	)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", jobName, err)
	}
	return nil
}

// processUpdates applies every update received from the bus to the snapshot and reprocesses it.
func (s *Service) processUpdates(ctx context.Context, sub <-chan feed.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-sub:
			if !ok {
				return
			}
			s.logger.Debug("received snapshot update", slog.String("kind", string(u.Kind)),
				slog.String("source", u.Source))
			s.metrics.ObserveUpdate(string(u.Kind), u.Source)
			s.applyUpdate(u)
			s.process(ctx)
		}
	}
}

// applyUpdate replaces the part of the snapshot carried by u.
func (s *Service) applyUpdate(u feed.Update) {
	s.snapshotLock.Lock()
	defer s.snapshotLock.Unlock()
	switch u.Kind {
	case feed.KindAnchors:
		s.snapshot.Anchors = u.Anchors
	case feed.KindTags:
		s.snapshot.Tags = u.Tags
	case feed.KindUser:
		s.snapshot.User = u.User
	case feed.KindBoundary:
		s.snapshot.Boundary = u.Boundary
	}
}

// process runs the tracking pipeline on the current snapshot, publishes the resulting boundary
// crossings and pushes the view to the connected clients and the status line.
func (s *Service) process(ctx context.Context) {
	s.snapshotLock.RLock()
	snap := s.snapshot
	s.snapshotLock.RUnlock()

	start := time.Now()
	view, err := s.engine.Process(snap)
	if errors.Is(err, geo.ErrEmptyAnchorSet) {
		s.logger.Debug("waiting for anchors before processing snapshot")
		return
	}
	if err != nil {
		s.metrics.ObserveProjectionError()
		s.logger.Error("failed to process snapshot", logger.Err(err))
		return
	}
	s.metrics.ObserveView(view, time.Since(start))

	s.viewLock.Lock()
	s.view = &view
	s.viewLock.Unlock()

	for _, event := range view.Crossings() {
		s.logger.Info("boundary crossed", slog.String("id", event.EntityID),
			slog.String("name", event.EntityName), slog.String("event", string(event.Kind)))
		if err = s.publisher.PublishEvent(ctx, event); err != nil {
			s.logger.Error("failed to publish boundary event", logger.Err(err),
				slog.String("id", event.EntityID))
		}
	}
	if err = s.hub.Broadcast(view); err != nil {
		s.logger.Error("failed to broadcast view", logger.Err(err))
	}
	s.printOutput(ctx)
}

// currentView returns the latest processed view or nil before the first one.
func (s *Service) currentView() *tracking.View {
	s.viewLock.RLock()
	defer s.viewLock.RUnlock()
	return s.view
}

// printOutput renders the latest view and writes it as a status line to the output.
func (s *Service) printOutput(context.Context) {
	view := s.currentView()
	if view == nil {
		return
	}

	rendered, err := s.presenter.Render(s.presenter.BuildContext(*view))
	if err != nil {
		s.logger.Error("failed to render tracking template", logger.Err(err))
		return
	}

	s.displayAltLock.RLock()
	altMode := s.displayAltText
	s.displayAltLock.RUnlock()

	class := presenter.Class(*view)
	output := outputData{
		Text:    rendered["text"],
		Alt:     class,
		Tooltip: rendered["tooltip"],
		Classes: []string{OutputClass, class},
	}
	if altMode {
		output.Text = rendered["alt_text"]
		output.Tooltip = rendered["alt_tooltip"]
	}

	s.outputLock.Lock()
	defer s.outputLock.Unlock()
	if err = json.NewEncoder(s.output).Encode(output); err != nil {
		s.logger.Error("failed to encode tracking output", logger.Err(err))
	}
}
