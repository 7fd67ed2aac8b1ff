// SPDX-FileCopyrightText: The BareTag Tracker Authors
//
// SPDX-License-Identifier: MIT

// Package metrics exposes the tracker's Prometheus collectors.
package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/baretag/baretag-tracker/internal/geofence"
	"github.com/baretag/baretag-tracker/internal/tracking"
)

// Collector bundles the tracker metrics. All methods are safe to call on a nil Collector, which
// records nothing.
type Collector struct {
	gatherer prometheus.Gatherer

	Evaluations      prometheus.Counter
	BoundaryEvents   *prometheus.CounterVec
	FeedUpdates      *prometheus.CounterVec
	TagsOutside      prometheus.Gauge
	TagsTracked      prometheus.Gauge
	ProjectionErrors prometheus.Counter
	ProcessDuration  prometheus.Histogram
}

// New registers the tracker metrics against reg, defaulting to the global Prometheus registry
// when nil. Collectors that are already registered are reused.
func New(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	evaluations, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "baretag_evaluations_total",
		Help: "Total number of processed snapshots.",
	}), "baretag_evaluations_total")
	if err != nil {
		return nil, err
	}
	events, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "baretag_boundary_events_total",
		Help: "Total number of boundary crossings, labeled by kind.",
	}, []string{"kind"}), "baretag_boundary_events_total")
	if err != nil {
		return nil, err
	}
	updates, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "baretag_feed_updates_total",
		Help: "Total number of accepted feed updates, labeled by kind and source.",
	}, []string{"kind", "source"}), "baretag_feed_updates_total")
	if err != nil {
		return nil, err
	}
	outside, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "baretag_tags_outside",
		Help: "Current number of tags outside the boundary.",
	}), "baretag_tags_outside")
	if err != nil {
		return nil, err
	}
	tracked, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "baretag_tags_tracked",
		Help: "Current number of tags in the latest snapshot.",
	}), "baretag_tags_tracked")
	if err != nil {
		return nil, err
	}
	projection, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "baretag_projection_errors_total",
		Help: "Total number of snapshots that could not be projected.",
	}), "baretag_projection_errors_total")
	if err != nil {
		return nil, err
	}
	duration, err := register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "baretag_process_duration_seconds",
		Help:    "Time spent processing a snapshot in seconds.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
	}), "baretag_process_duration_seconds")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:         gatherer,
		Evaluations:      evaluations,
		BoundaryEvents:   events,
		FeedUpdates:      updates,
		TagsOutside:      outside,
		TagsTracked:      tracked,
		ProjectionErrors: projection,
		ProcessDuration:  duration,
	}, nil
}

// ObserveView records a successfully processed view.
func (c *Collector) ObserveView(view tracking.View, took time.Duration) {
	if c == nil {
		return
	}
	c.Evaluations.Inc()
	c.ProcessDuration.Observe(took.Seconds())
	c.TagsOutside.Set(float64(view.Outside()))
	c.TagsTracked.Set(float64(len(view.Tags)))
	for _, event := range geofence.Crossings(view.Events) {
		c.BoundaryEvents.WithLabelValues(string(event.Kind)).Inc()
	}
}

// ObserveUpdate records a feed update accepted by the bus.
func (c *Collector) ObserveUpdate(kind, source string) {
	if c == nil {
		return
	}
	c.FeedUpdates.WithLabelValues(kind, source).Inc()
}

// ObserveProjectionError records a snapshot that failed to process.
func (c *Collector) ObserveProjectionError() {
	if c == nil {
		return
	}
	c.ProjectionErrors.Inc()
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func register[T prometheus.Collector](reg prometheus.Registerer, collector T, name string) (T, error) {
	if err := reg.Register(collector); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			return collector, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return collector, fmt.Errorf("failed to register collector %s: %w", name, err)
	}
	return collector, nil
}
