// SPDX-FileCopyrightText: The BareTag Tracker Authors
//
// SPDX-License-Identifier: MIT

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/kkyr/fig"
)

const (
	configEnv = "BARETAG"

	PublisherNone = ""
	PublisherAMQP = "amqp"
	PublisherMQTT = "mqtt"

	DefaultTextTpl    = `{{if .NoAnchors}}📡 {{loc "noAnchors"}}{{else}}🏷 {{.Inside}}/{{len .Tags}}{{end}}`
	DefaultAltTextTpl = `{{if .Nearest}}📍 {{.Nearest.Name}} {{meters .Nearest.Distance}}{{else}}📍 -{{end}}`
	DefaultTooltipTpl = `{{loc "tags"}}: {{len .Tags}}  {{loc "anchors"}}: {{.Anchors}}` +
		`{{range .Tags}}` + "\n" + `{{pad .Name 12}} {{loc .State}}{{if .HasDistance}} {{meters .Distance}}{{end}}{{end}}` +
		"\n" + `{{loc "updated"}} {{since .UpdatedAt}}`
	DefaultAltTooltipTpl = `{{loc "frame"}}: {{floatFormat .Frame.MinLat 5}},{{floatFormat .Frame.MinLon 5}} - ` +
		`{{floatFormat .Frame.MaxLat 5}},{{floatFormat .Frame.MaxLon 5}}` +
		`{{range .Events}}` + "\n" + `{{timeFormat .At "15:04:05"}} {{.EntityName}} {{loc .Kind}}{{end}}`
)

var (
	ErrNoSources           = errors.New("no snapshot sources enabled")
	ErrUnknownPublisher    = errors.New("unsupported publisher type")
	ErrMissingPublisherURL = errors.New("publisher requires a url")
	ErrInvalidFrame        = errors.New("default frame must span a positive area")
)

// Config represents the application's configuration structure.
type Config struct {
	Locale   string     `fig:"locale"`
	LogLevel slog.Level `fig:"loglevel" default:"0"`

	Frame struct {
		// Padding in degrees added to every side of the anchor bounding box
		Padding        float64 `fig:"padding" default:"0.0001"`
		// RequireAnchors disables the fallback frame used while no anchors are known
		RequireAnchors bool    `fig:"require_anchors"`
		DefaultMinLat  float64 `fig:"default_min_lat"`
		DefaultMaxLat  float64 `fig:"default_max_lat" default:"1"`
		DefaultMinLon  float64 `fig:"default_min_lon"`
		DefaultMaxLon  float64 `fig:"default_max_lon" default:"1"`
	} `fig:"frame"`

	Plane struct {
		Width  float64 `fig:"width" default:"100"`
		Height float64 `fig:"height" default:"100"`

		// DisableClamp lets positions outside the frame project beyond the plane
		DisableClamp bool `fig:"disable_clamp"`
		FlipY        bool `fig:"flip_y"`
	} `fig:"plane"`

	Boundary struct {
		File    string `fig:"file"`
		Disable bool   `fig:"disable"`
	} `fig:"boundary"`

	Intervals struct {
		Anchors time.Duration `fig:"anchors" default:"5s"`
		Tags    time.Duration `fig:"tags" default:"5s"`
		User    time.Duration `fig:"user" default:"5s"`
		Output  time.Duration `fig:"output" default:"5s"`
	} `fig:"intervals"`

	Sources struct {
		AnchorsFile    string `fig:"anchors_file"`
		TagsFile       string `fig:"tags_file"`
		UserFile       string `fig:"user_file"`
		BackendURL     string `fig:"backend_url"`
		DisableBackend bool   `fig:"disable_backend"`
		DisableFiles   bool   `fig:"disable_files"`
		DisableGPSD    bool   `fig:"disable_gpsd"`
		GPSDAddr       string `fig:"gpsd_addr" default:"localhost:2947"`
	} `fig:"sources"`

	Templates struct {
		Text       string `fig:"text"`
		AltText    string `fig:"alt_text"`
		Tooltip    string `fig:"tooltip"`
		AltTooltip string `fig:"alt_tooltip"`
	} `fig:"templates"`

	Server struct {
		// Listen address of the websocket and metrics server. Empty disables it.
		Listen string `fig:"listen"`
	} `fig:"server"`

	Publisher struct {
		// Allowed values: "", amqp, mqtt
		Type     string `fig:"type"`
		URL      string `fig:"url"`
		Topic    string `fig:"topic" default:"baretag/events"`
		ClientID string `fig:"client_id" default:"baretag-tracker"`
	} `fig:"publisher"`
}

func NewFromFile(path, file string) (*Config, error) {
	conf := new(Config)
	if err := fig.Load(conf, fig.Dirs(path), fig.File(file), fig.UseEnv(configEnv)); err != nil {
		return conf, fmt.Errorf("failed to load config: %w", err)
	}

	return conf, conf.Validate()
}

func New() (*Config, error) {
	conf := new(Config)
	if err := fig.Load(conf, fig.AllowNoFile(), fig.UseEnv(configEnv)); err != nil {
		return conf, fmt.Errorf("failed to load config: %w", err)
	}

	return conf, conf.Validate()
}

// Validate checks the configuration for consistency and fills in the defaults that depend on
// the environment.
func (c *Config) Validate() error {
	if c.Locale == "" {
		c.Locale = getLocale()
	}
	if c.Frame.Padding < 0 {
		return fmt.Errorf("invalid frame padding: %f", c.Frame.Padding)
	}
	if c.Frame.DefaultMinLat >= c.Frame.DefaultMaxLat || c.Frame.DefaultMinLon >= c.Frame.DefaultMaxLon {
		return fmt.Errorf("min %f,%f max %f,%f: %w", c.Frame.DefaultMinLat, c.Frame.DefaultMinLon,
			c.Frame.DefaultMaxLat, c.Frame.DefaultMaxLon, ErrInvalidFrame)
	}
	if c.Plane.Width <= 0 || c.Plane.Height <= 0 {
		return fmt.Errorf("invalid plane size: %fx%f", c.Plane.Width, c.Plane.Height)
	}
	intervals := map[string]time.Duration{
		"anchors": c.Intervals.Anchors,
		"tags":    c.Intervals.Tags,
		"user":    c.Intervals.User,
		"output":  c.Intervals.Output,
	}
	for name, interval := range intervals {
		if interval <= 0 {
			return fmt.Errorf("invalid %s interval: %s", name, interval)
		}
	}

	switch strings.ToLower(c.Publisher.Type) {
	case PublisherNone:
	case PublisherAMQP, PublisherMQTT:
		if c.Publisher.URL == "" {
			return fmt.Errorf("%s: %w", c.Publisher.Type, ErrMissingPublisherURL)
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnknownPublisher, c.Publisher.Type)
	}
	c.Publisher.Type = strings.ToLower(c.Publisher.Type)

	if !c.HasFileSources() && !c.HasBackend() && c.Sources.DisableGPSD {
		return ErrNoSources
	}

	if c.Templates.Text == "" {
		c.Templates.Text = DefaultTextTpl
	}
	if c.Templates.AltText == "" {
		c.Templates.AltText = DefaultAltTextTpl
	}
	if c.Templates.Tooltip == "" {
		c.Templates.Tooltip = DefaultTooltipTpl
	}
	if c.Templates.AltTooltip == "" {
		c.Templates.AltTooltip = DefaultAltTooltipTpl
	}

	return nil
}

// HasFileSources reports whether at least one snapshot file is configured and files are enabled.
func (c *Config) HasFileSources() bool {
	if c.Sources.DisableFiles {
		return false
	}
	return c.Sources.AnchorsFile != "" || c.Sources.TagsFile != "" || c.Sources.UserFile != "" ||
		(c.Boundary.File != "" && !c.Boundary.Disable)
}

// HasBackend reports whether the HTTP backend is configured and enabled.
func (c *Config) HasBackend() bool {
	return c.Sources.BackendURL != "" && !c.Sources.DisableBackend
}

func getLocale() string {
	locale := os.Getenv("LC_MESSAGES")
	if idx := strings.Index(locale, "."); idx != -1 {
		lang := locale[:idx]
		return strings.ReplaceAll(lang, "_", "-")
	}
	return locale
}
