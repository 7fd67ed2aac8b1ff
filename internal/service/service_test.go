// SPDX-FileCopyrightText: The BareTag Tracker Authors
//
// SPDX-License-Identifier: MIT

package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	stdhttp "net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"syscall"
	"testing"
	"testing/synctest"
	tt "text/template"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/baretag/baretag-tracker/internal/config"
	"github.com/baretag/baretag-tracker/internal/feed"
	"github.com/baretag/baretag-tracker/internal/geofence"
	"github.com/baretag/baretag-tracker/internal/i18n"
	"github.com/baretag/baretag-tracker/internal/logger"
	"github.com/baretag/baretag-tracker/internal/model"
	"github.com/baretag/baretag-tracker/internal/presenter"
)

func TestNew(t *testing.T) {
	t.Run("new service succeeds", func(t *testing.T) {
		_, err := testService(t, false)
		if err != nil {
			t.Fatalf("failed to create service: %s", err)
		}
	})
	t.Run("invalid template configuration should fail", func(t *testing.T) {
		t.Setenv("BARETAG_TEMPLATES_TEXT", "{{")
		_, err := testService(t, false)
		if err == nil {
			t.Fatal("expected service creation to fail")
		}
		wantErr := "failed to create presenter: failed to parse text template"
		if !strings.Contains(err.Error(), wantErr) {
			t.Errorf("expected error to contain %q, got %q", wantErr, err)
		}
	})
	t.Run("nil logger fails the service initialization", func(t *testing.T) {
		_, err := testService(t, true)
		if !errors.Is(err, ErrMissingLogger) {
			t.Fatalf("expected ErrMissingLogger, got %v", err)
		}
	})
}

func TestService_Run(t *testing.T) {
	t.Run("start the service and gracefully shut it down", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			ctx, cancel := context.WithCancel(t.Context())
			defer cancel()

			afterFuncCalled := false
			context.AfterFunc(ctx, func() {
				afterFuncCalled = true
			})

			serv, err := testServiceConf(t, fileSources)
			if err != nil {
				t.Fatalf("failed to create service: %s", err)
			}
			buf := &syncBuffer{buf: bytes.NewBuffer(nil)}
			serv.output = buf

			errChan := make(chan error, 1)
			go func() {
				errChan <- serv.Run(ctx)
			}()

			synctest.Wait()
			if !strings.Contains(buf.String(), `"class":["baretag",`) {
				t.Errorf("expected status line output after the first snapshot, got %q", buf.String())
			}

			cancel()
			synctest.Wait()
			if !afterFuncCalled {
				t.Fatalf("before context is canceled: AfterFunc not called")
			}
			if err = <-errChan; err != nil {
				t.Errorf("failed to run service: %s", err)
			}
		})
	})
	t.Run("starting service fails due to invalid publisher", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			serv, err := testServiceConf(t, fileSources)
			if err != nil {
				t.Fatalf("failed to create service: %s", err)
			}
			serv.config.Publisher.Type = "invalid"
			err = serv.Run(t.Context())
			if err == nil {
				t.Fatal("expected service to fail")
			}
			wantErr := `failed to create publisher: unsupported publisher type: invalid`
			if !strings.Contains(err.Error(), wantErr) {
				t.Errorf("expected error to contain %q, got %q", wantErr, err)
			}
		})
	})
	t.Run("starting service fails without providers", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			serv, err := testService(t, false)
			if err != nil {
				t.Fatalf("failed to create service: %s", err)
			}
			serv.config.Sources.DisableGPSD = true
			serv.config.Sources.DisableFiles = true
			serv.config.Sources.DisableBackend = true
			err = serv.Run(t.Context())
			if !errors.Is(err, ErrNoProviders) {
				t.Fatalf("expected ErrNoProviders, got %v", err)
			}
		})
	})
	t.Run("starting service fails on invalid listen address", func(t *testing.T) {
		serv, err := testServiceConf(t, fileSources)
		if err != nil {
			t.Fatalf("failed to create service: %s", err)
		}
		serv.config.Server.Listen = "256.256.256.256:-1"
		err = serv.Run(t.Context())
		if err == nil {
			t.Fatal("expected service to fail")
		}
		wantErr := "failed to start HTTP server: failed to listen on"
		if !strings.Contains(err.Error(), wantErr) {
			t.Errorf("expected error to contain %q, got %q", wantErr, err)
		}
	})
}

func TestService_createProviders(t *testing.T) {
	tests := []struct {
		name  string
		conf  func(*config.Config)
		names []string
	}{
		{
			name:  "gpsd only",
			conf:  func(*config.Config) {},
			names: []string{"gpsd"},
		},
		{
			name: "files",
			conf: func(c *config.Config) {
				c.Sources.DisableGPSD = true
				c.Sources.AnchorsFile = "anchors.json"
				c.Sources.TagsFile = "tags.json"
				c.Boundary.File = "boundary.json"
			},
			names: []string{"file:anchors", "file:tags", "file:boundary"},
		},
		{
			name: "disabled boundary file",
			conf: func(c *config.Config) {
				c.Sources.DisableGPSD = true
				c.Sources.TagsFile = "tags.json"
				c.Boundary.File = "boundary.json"
				c.Boundary.Disable = true
			},
			names: []string{"file:tags"},
		},
		{
			name: "backend",
			conf: func(c *config.Config) {
				c.Sources.DisableGPSD = true
				c.Sources.BackendURL = "http://localhost:8080"
			},
			names: []string{"backend:anchors", "backend:tags", "backend:user", "backend:boundary"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			serv, err := testService(t, false)
			if err != nil {
				t.Fatalf("failed to create service: %s", err)
			}
			tc.conf(serv.config)
			providers, err := serv.createProviders()
			if err != nil {
				t.Fatalf("failed to create providers: %s", err)
			}
			var names []string
			for _, p := range providers {
				names = append(names, p.Name())
			}
			if strings.Join(names, ",") != strings.Join(tc.names, ",") {
				t.Errorf("expected providers %v, got %v", tc.names, names)
			}
		})
	}
}

func TestService_process(t *testing.T) {
	t.Run("processing a snapshot prints the status line", func(t *testing.T) {
		serv, err := testService(t, false)
		if err != nil {
			t.Fatalf("failed to create service: %s", err)
		}
		buf := bytes.NewBuffer(nil)
		serv.output = buf
		applyTestdata(t, serv)

		serv.process(t.Context())

		var output outputData
		if err = json.Unmarshal(buf.Bytes(), &output); err != nil {
			t.Fatalf("failed to unmarshal JSON: %s", err)
		}
		if output.Text != "🏷 1/2" {
			t.Errorf("expected Text to be %q, got %q", "🏷 1/2", output.Text)
		}
		if !strings.HasPrefix(output.Tooltip, "Tags: 2  Anchors: 2\n") {
			t.Errorf("expected tooltip to list tags and anchors, got %q", output.Tooltip)
		}
		if len(output.Classes) != 2 || output.Classes[0] != OutputClass || output.Classes[1] != presenter.ClassOutside {
			t.Errorf("expected classes %q and %q, got %v", OutputClass, presenter.ClassOutside, output.Classes)
		}
		if output.Alt != presenter.ClassOutside {
			t.Errorf("expected alt to be %q, got %q", presenter.ClassOutside, output.Alt)
		}
		if got := testutil.ToFloat64(serv.metrics.Evaluations); got != 1 {
			t.Errorf("expected 1 evaluation, got %f", got)
		}
	})
	t.Run("boundary crossings are published", func(t *testing.T) {
		serv, err := testService(t, false)
		if err != nil {
			t.Fatalf("failed to create service: %s", err)
		}
		serv.output = io.Discard
		pub := &recordingPublisher{}
		serv.publisher = pub
		applyTestdata(t, serv)
		serv.process(t.Context())
		if len(pub.Events()) != 0 {
			t.Fatalf("expected first evaluation to publish nothing, got %d events", len(pub.Events()))
		}

		tags := decodeTags(t, `[
			{"id": "tag-1", "name": "Bella", "latitude": 42.3945, "longitude": -72.5292},
			{"id": 7, "name": "Rex", "latitude": 42.3940, "longitude": -72.5280}
		]`)
		serv.applyUpdate(feed.Update{Kind: feed.KindTags, Tags: tags})
		serv.process(t.Context())

		events := pub.Events()
		if len(events) != 1 {
			t.Fatalf("expected 1 published event, got %d", len(events))
		}
		if events[0].EntityID != "tag-1" || events[0].Kind != geofence.Exited {
			t.Errorf("expected tag-1 to have exited, got %s %s", events[0].EntityID, events[0].Kind)
		}
		if got := testutil.ToFloat64(serv.metrics.BoundaryEvents.WithLabelValues("exited")); got != 1 {
			t.Errorf("expected 1 exited event metric, got %f", got)
		}
	})
	t.Run("failing publisher is logged", func(t *testing.T) {
		serv, err := testService(t, false)
		if err != nil {
			t.Fatalf("failed to create service: %s", err)
		}
		logBuf := bytes.NewBuffer(nil)
		serv.logger = logger.NewLogger(slog.LevelError, logBuf)
		serv.output = io.Discard
		serv.publisher = &recordingPublisher{shouldFail: true}
		applyTestdata(t, serv)
		serv.process(t.Context())
		serv.applyUpdate(feed.Update{Kind: feed.KindTags, Tags: decodeTags(t,
			`{"id": "tag-1", "latitude": 42.3945, "longitude": -72.5292}`)})
		serv.process(t.Context())

		wantLog := `msg="failed to publish boundary event"`
		if !strings.Contains(logBuf.String(), wantLog) {
			t.Errorf("expected log to contain %q, got %q", wantLog, logBuf.String())
		}
	})
	t.Run("processing waits for anchors when they are required", func(t *testing.T) {
		serv, err := testServiceConf(t, func(c *config.Config) {
			c.Frame.RequireAnchors = true
		})
		if err != nil {
			t.Fatalf("failed to create service: %s", err)
		}
		buf := bytes.NewBuffer(nil)
		serv.output = buf
		serv.applyUpdate(feed.Update{Kind: feed.KindTags, Tags: decodeTags(t,
			`{"id": "tag-1", "latitude": 42.3935, "longitude": -72.5292}`)})
		serv.process(t.Context())
		if buf.Len() != 0 {
			t.Errorf("expected no output without anchors, got %q", buf.String())
		}
		if got := testutil.ToFloat64(serv.metrics.ProjectionErrors); got != 0 {
			t.Errorf("expected no projection errors, got %f", got)
		}
	})
	t.Run("degenerate frames count as projection errors", func(t *testing.T) {
		serv, err := testServiceConf(t, func(c *config.Config) {
			c.Frame.Padding = 0
		})
		if err != nil {
			t.Fatalf("failed to create service: %s", err)
		}
		logBuf := bytes.NewBuffer(nil)
		serv.logger = logger.NewLogger(slog.LevelError, logBuf)
		serv.output = io.Discard
		anchors, err := model.DecodeAnchors([]byte(`[{"id": 1, "latitude": 42.3933, "longitude": -72.5297}]`))
		if err != nil {
			t.Fatalf("failed to decode anchors: %s", err)
		}
		serv.applyUpdate(feed.Update{Kind: feed.KindAnchors, Anchors: anchors})
		serv.process(t.Context())
		if got := testutil.ToFloat64(serv.metrics.ProjectionErrors); got != 1 {
			t.Errorf("expected 1 projection error, got %f", got)
		}
		if serv.currentView() != nil {
			t.Error("expected no view to be stored")
		}
		wantLog := `msg="failed to process snapshot"`
		if !strings.Contains(logBuf.String(), wantLog) {
			t.Errorf("expected log to contain %q, got %q", wantLog, logBuf.String())
		}
	})
}

func TestService_processUpdates(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		defer cancel()

		serv, err := testService(t, false)
		if err != nil {
			t.Fatalf("failed to create service: %s", err)
		}
		serv.output = io.Discard
		sub, unsub := serv.bus.SubscribeAll(subscriberBuffer)
		defer unsub()
		go serv.processUpdates(ctx, sub)

		serv.bus.Publish(feed.Update{Kind: feed.KindTags, Source: "test", Tags: decodeTags(t,
			`{"id": "tag-1", "latitude": 42.3935, "longitude": -72.5292}`)})
		synctest.Wait()

		view := serv.currentView()
		if view == nil {
			t.Fatal("expected a view to be processed")
		}
		if len(view.Tags) != 1 || view.Tags[0].ID != "tag-1" {
			t.Errorf("expected tag-1 in the view, got %+v", view.Tags)
		}
		if !view.NoAnchors {
			t.Error("expected fallback frame without anchors")
		}
		if got := testutil.ToFloat64(serv.metrics.FeedUpdates.WithLabelValues("tags", "test")); got != 1 {
			t.Errorf("expected 1 feed update, got %f", got)
		}
		cancel()
	})
}

func TestService_printOutput(t *testing.T) {
	t.Run("print output to a buffer", func(t *testing.T) {
		t.Setenv("BARETAG_TEMPLATES_TEXT", "text")
		t.Setenv("BARETAG_TEMPLATES_TOOLTIP", "tooltip")

		serv, err := testService(t, false)
		if err != nil {
			t.Fatalf("failed to create service: %s", err)
		}
		buf := bytes.NewBuffer(nil)
		serv.output = buf
		applyTestdata(t, serv)
		serv.process(t.Context())

		var output outputData
		if err = json.Unmarshal(buf.Bytes(), &output); err != nil {
			t.Fatalf("failed to unmarshal JSON: %s", err)
		}
		if output.Text != "text" {
			t.Errorf("expected Text to be %q, got %q", "text", output.Text)
		}
		if output.Tooltip != "tooltip" {
			t.Errorf("expected Tooltip to be %q, got %q", "tooltip", output.Tooltip)
		}
	})
	t.Run("print alt_text to a buffer", func(t *testing.T) {
		t.Setenv("BARETAG_TEMPLATES_ALT_TEXT", "alt_text")
		t.Setenv("BARETAG_TEMPLATES_ALT_TOOLTIP", "alt_tooltip")

		serv, err := testService(t, false)
		if err != nil {
			t.Fatalf("failed to create service: %s", err)
		}
		serv.output = io.Discard
		applyTestdata(t, serv)
		serv.process(t.Context())

		buf := bytes.NewBuffer(nil)
		serv.output = buf
		serv.displayAltText = true
		serv.printOutput(t.Context())

		var output outputData
		if err = json.Unmarshal(buf.Bytes(), &output); err != nil {
			t.Fatalf("failed to unmarshal JSON: %s", err)
		}
		if output.Text != "alt_text" {
			t.Errorf("expected Text to be %q, got %q", "alt_text", output.Text)
		}
		if output.Tooltip != "alt_tooltip" {
			t.Errorf("expected Tooltip to be %q, got %q", "alt_tooltip", output.Tooltip)
		}
	})
	t.Run("print output returns when no view is available", func(t *testing.T) {
		serv, err := testService(t, false)
		if err != nil {
			t.Fatalf("failed to create service: %s", err)
		}
		buf := bytes.NewBuffer(nil)
		serv.output = buf
		serv.printOutput(t.Context())
		if buf.Len() != 0 {
			t.Errorf("expected output buffer to be empty, got %q", buf.String())
		}
	})
	t.Run("failing writer is logged", func(t *testing.T) {
		serv, err := testService(t, false)
		if err != nil {
			t.Fatalf("failed to create service: %s", err)
		}
		logBuf := bytes.NewBuffer(nil)
		serv.logger = logger.NewLogger(slog.LevelError, logBuf)
		serv.output = &failWriter{}
		applyTestdata(t, serv)
		serv.process(t.Context())
		wantLog := `msg="failed to encode tracking output"`
		if !strings.Contains(logBuf.String(), wantLog) {
			t.Errorf("expected log to contain %q, got %q", wantLog, logBuf.String())
		}
	})
	t.Run("printing output fails on template rendering", func(t *testing.T) {
		tests := []struct {
			name  string
			tplFn func(pres *presenter.Presenter, tpl *tt.Template)
		}{
			{"text", func(pres *presenter.Presenter, tpl *tt.Template) { pres.TextTemplate = tpl }},
			{"alt_text", func(pres *presenter.Presenter, tpl *tt.Template) { pres.AltTextTemplate = tpl }},
			{"tooltip", func(pres *presenter.Presenter, tpl *tt.Template) { pres.TooltipTemplate = tpl }},
			{"alt_tooltip", func(pres *presenter.Presenter, tpl *tt.Template) { pres.AltTooltipTemplate = tpl }},
		}
		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				serv, err := testService(t, false)
				if err != nil {
					t.Fatalf("failed to create service: %s", err)
				}
				tpl, err := tt.New(tc.name).Parse("{{.AbsolutelyInvalid}}")
				if err != nil {
					t.Fatalf("failed to parse template: %s", err)
				}
				tc.tplFn(serv.presenter, tpl)

				logBuf := bytes.NewBuffer(nil)
				serv.logger = logger.NewLogger(slog.LevelError, logBuf)
				buf := bytes.NewBuffer(nil)
				serv.output = buf
				applyTestdata(t, serv)
				serv.process(t.Context())

				wantErr1 := `msg="failed to render tracking template" error="failed to render ` + tc.name
				wantErr2 := `can't evaluate field AbsolutelyInvalid in type presenter.TemplateContext`
				if !strings.Contains(logBuf.String(), wantErr1) || !strings.Contains(logBuf.String(), wantErr2) {
					t.Errorf("expected error to contain %q and %q, got %q", wantErr1, wantErr2, logBuf.String())
				}
				if buf.Len() != 0 {
					t.Errorf("expected output buffer to be empty, got %q", buf.String())
				}
			})
		}
	})
}

func TestService_routes(t *testing.T) {
	serv, err := testService(t, false)
	if err != nil {
		t.Fatalf("failed to create service: %s", err)
	}
	serv.output = io.Discard
	server := httptest.NewServer(serv.routes())
	t.Cleanup(server.Close)

	get := func(t *testing.T, path string) (int, string) {
		t.Helper()
		req, err := stdhttp.NewRequestWithContext(t.Context(), stdhttp.MethodGet, server.URL+path, nil)
		if err != nil {
			t.Fatalf("failed to create request: %s", err)
		}
		resp, err := server.Client().Do(req)
		if err != nil {
			t.Fatalf("failed to perform request: %s", err)
		}
		defer func() { _ = resp.Body.Close() }()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Fatalf("failed to read response body: %s", err)
		}
		return resp.StatusCode, string(body)
	}

	t.Run("health check", func(t *testing.T) {
		status, body := get(t, "/healthz")
		if status != stdhttp.StatusOK {
			t.Fatalf("expected status 200, got %d", status)
		}
		var health healthResponse
		if err := json.Unmarshal([]byte(body), &health); err != nil {
			t.Fatalf("failed to decode health response: %s", err)
		}
		if health.Status != "ok" {
			t.Errorf("expected status ok, got %q", health.Status)
		}
	})
	t.Run("view is unavailable before the first snapshot", func(t *testing.T) {
		if status, _ := get(t, "/api/view"); status != stdhttp.StatusServiceUnavailable {
			t.Errorf("expected status 503, got %d", status)
		}
	})
	t.Run("view is served after processing", func(t *testing.T) {
		applyTestdata(t, serv)
		serv.process(t.Context())
		status, body := get(t, "/api/view")
		if status != stdhttp.StatusOK {
			t.Fatalf("expected status 200, got %d", status)
		}
		var view struct {
			Tags []struct {
				ID    string `json:"id"`
				State string `json:"state"`
			} `json:"tags"`
		}
		if err := json.Unmarshal([]byte(body), &view); err != nil {
			t.Fatalf("failed to decode view: %s", err)
		}
		if len(view.Tags) != 2 || view.Tags[0].ID != "tag-1" || view.Tags[0].State != "inside" {
			t.Errorf("unexpected view tags: %+v", view.Tags)
		}
	})
	t.Run("snapshots", func(t *testing.T) {
		if status, _ := get(t, "/api/snapshots/vehicles"); status != stdhttp.StatusNotFound {
			t.Errorf("expected unknown kind to return 404, got %d", status)
		}
		if status, _ := get(t, "/api/snapshots/user"); status != stdhttp.StatusNotFound {
			t.Errorf("expected missing snapshot to return 404, got %d", status)
		}
		serv.bus.Publish(feed.Update{Kind: feed.KindTags, Source: "test", Tags: decodeTags(t,
			`{"id": "tag-1", "latitude": 42.3935, "longitude": -72.5292}`)})
		status, body := get(t, "/api/snapshots/tags")
		if status != stdhttp.StatusOK {
			t.Fatalf("expected status 200, got %d", status)
		}
		var snap snapshotResponse
		if err := json.Unmarshal([]byte(body), &snap); err != nil {
			t.Fatalf("failed to decode snapshot: %s", err)
		}
		if snap.Kind != feed.KindTags || snap.Source != "test" || len(snap.Tags) != 1 {
			t.Errorf("unexpected snapshot: %+v", snap)
		}
	})
	t.Run("metrics", func(t *testing.T) {
		status, body := get(t, "/metrics")
		if status != stdhttp.StatusOK {
			t.Fatalf("expected status 200, got %d", status)
		}
		if !strings.Contains(body, "baretag_evaluations_total") {
			t.Error("expected metrics to contain baretag_evaluations_total")
		}
	})
}

func TestService_HandleSignals(t *testing.T) {
	t.Run("USR1 signal is handled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		serv, err := testService(t, false)
		if err != nil {
			t.Fatalf("failed to create service: %s", err)
		}
		serv.output = io.Discard
		sigChan := make(chan os.Signal, 1)
		serv.SignalSrc.Notify(sigChan, syscall.SIGUSR1, syscall.SIGUSR2)
		go func() {
			defer serv.SignalSrc.Stop(sigChan)
			serv.HandleSignals(ctx, sigChan)
		}()

		sigChan <- syscall.SIGUSR1
		time.Sleep(time.Millisecond * 100)
		serv.displayAltLock.RLock()
		defer serv.displayAltLock.RUnlock()
		if !serv.displayAltText {
			t.Errorf("expected alt mode to be enabled, got %t", serv.displayAltText)
		}
		cancel()
	})
	t.Run("USR2 signal is handled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		serv, err := testService(t, false)
		if err != nil {
			t.Fatalf("failed to create service: %s", err)
		}
		serv.output = io.Discard
		applyTestdata(t, serv)
		serv.process(t.Context())

		buf := &syncBuffer{buf: bytes.NewBuffer(nil)}
		serv.logger = logger.NewLogger(slog.LevelInfo, buf)
		sigChan := make(chan os.Signal, 1)
		serv.SignalSrc.Notify(sigChan, syscall.SIGUSR1, syscall.SIGUSR2)
		go func() {
			defer serv.SignalSrc.Stop(sigChan)
			serv.HandleSignals(ctx, sigChan)
		}()

		sigChan <- syscall.SIGUSR2
		time.Sleep(time.Millisecond * 100)
		wantLog := `msg="current tracking state" anchors=2 tags=2 inside=1 outside=1 no_anchors=false ` +
			`clients=0 known_states=2 assigned_colors=2`
		if !strings.Contains(buf.String(), wantLog) {
			t.Errorf("expected log to contain %q, got %q", wantLog, buf.String())
		}
		cancel()
		time.Sleep(time.Millisecond * 100)
	})
}

func testService(t *testing.T, nilLogger bool) (*Service, error) {
	t.Helper()
	conf, err := config.New()
	if err != nil {
		return nil, err
	}
	conf.Locale = "en"

	var log *logger.Logger
	if !nilLogger {
		log = logger.NewLogger(conf.LogLevel, io.Discard)
	}

	lang, err := i18n.New(conf.Locale)
	if err != nil {
		return nil, err
	}
	serv, err := New(conf, log, lang)
	if err != nil {
		return nil, err
	}
	serv.SignalSrc = nopSignalSource{}

	return serv, nil
}

// testServiceConf creates a service from a default config adjusted by confFn.
func testServiceConf(t *testing.T, confFn func(*config.Config)) (*Service, error) {
	t.Helper()
	conf, err := config.New()
	if err != nil {
		return nil, err
	}
	conf.Locale = "en"
	confFn(conf)
	lang, err := i18n.New(conf.Locale)
	if err != nil {
		return nil, err
	}
	serv, err := New(conf, logger.NewLogger(conf.LogLevel, io.Discard), lang)
	if err != nil {
		return nil, err
	}
	serv.SignalSrc = nopSignalSource{}
	return serv, nil
}

func fileSources(c *config.Config) {
	c.Sources.DisableGPSD = true
	c.Sources.AnchorsFile = "../../testdata/anchors.json"
	c.Sources.TagsFile = "../../testdata/tags.json"
	c.Sources.UserFile = "../../testdata/user.json"
	c.Boundary.File = "../../testdata/boundary.json"
}

// applyTestdata loads anchors, tags, user and boundary from the testdata directory into the
// service snapshot. Bella is inside the boundary, Rex is outside.
func applyTestdata(t *testing.T, serv *Service) {
	t.Helper()
	for _, kind := range feed.Kinds {
		data, err := os.ReadFile(fmt.Sprintf("../../testdata/%s.json", kind))
		if err != nil {
			t.Fatalf("failed to read %s testdata: %s", kind, err)
		}
		update, err := feed.Decode(kind, "testdata", 0, data)
		if err != nil {
			t.Fatalf("failed to decode %s testdata: %s", kind, err)
		}
		serv.applyUpdate(update)
	}
}

func decodeTags(t *testing.T, data string) []model.Tag {
	t.Helper()
	tags, err := model.DecodeTags([]byte(data))
	if err != nil {
		t.Fatalf("failed to decode tags: %s", err)
	}
	return tags
}

type (
	failWriter         struct{}
	nopSignalSource    struct{}
	recordingPublisher struct {
		mu         sync.Mutex
		events     []geofence.Event
		shouldFail bool
	}
	syncBuffer struct {
		mu  sync.Mutex
		buf *bytes.Buffer
	}
)

func (f failWriter) Write([]byte) (int, error) { return 0, fmt.Errorf("failed to write") }

func (nopSignalSource) Notify(chan<- os.Signal, ...os.Signal) {}
func (nopSignalSource) Stop(chan<- os.Signal)                 {}

func (p *recordingPublisher) PublishEvent(_ context.Context, event geofence.Event) error {
	if p.shouldFail {
		return errors.New("intentionally failing")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) Events() []geofence.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}
