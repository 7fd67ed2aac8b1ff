// SPDX-FileCopyrightText: The BareTag Tracker Authors
//
// SPDX-License-Identifier: MIT

package presenter

import (
	"bytes"
	"fmt"
	"text/template"
	"time"

	"github.com/vorlif/humanize"
	"github.com/vorlif/humanize/locale/de"
	"github.com/vorlif/spreak"

	"github.com/baretag/baretag-tracker/internal/config"
	"github.com/baretag/baretag-tracker/internal/geo"
	"github.com/baretag/baretag-tracker/internal/geofence"
	"github.com/baretag/baretag-tracker/internal/tracking"
)

const (
	ClassOK        = "ok"
	ClassOutside   = "outside"
	ClassNoAnchors = "no-anchors"
)

// TagView is a tag marker flattened for templates.
type TagView struct {
	ID            string
	Name          string
	State         string
	StateIcon     string
	Color         string
	ColorName     string
	X             float64
	Y             float64
	Distance      float64
	HasDistance   bool
	NearestAnchor string
}

// EventView is a boundary crossing flattened for templates.
type EventView struct {
	At         time.Time
	EntityID   string
	EntityName string
	Kind       string
	Icon       string
}

type TemplateContext struct {
	Frame     geo.ReferenceFrame
	NoAnchors bool
	Anchors   int
	Inside    int
	Outside   int
	Tags      []TagView
	Events    []EventView
	HasUser   bool
	User      geo.GeoPoint
	Nearest   *tracking.Proximity
	UpdatedAt time.Time
}

type Presenter struct {
	TextTemplate       *template.Template
	AltTextTemplate    *template.Template
	TooltipTemplate    *template.Template
	AltTooltipTemplate *template.Template

	localizer *spreak.Localizer
	humanizer *humanize.Humanizer
}

// New parses the configured templates and renders each once against an empty context, so that
// references to unknown fields fail at startup instead of on the first update.
func New(conf *config.Config, localizer *spreak.Localizer) (*Presenter, error) {
	collection, err := humanize.New(humanize.WithLocale(de.New()))
	if err != nil {
		return nil, fmt.Errorf("failed to create humanizer: %w", err)
	}
	pres := &Presenter{
		localizer: localizer,
		humanizer: collection.CreateHumanizer(localizer.Language()),
	}

	templates := []struct {
		name   string
		source string
		target **template.Template
	}{
		{"text", conf.Templates.Text, &pres.TextTemplate},
		{"alt_text", conf.Templates.AltText, &pres.AltTextTemplate},
		{"tooltip", conf.Templates.Tooltip, &pres.TooltipTemplate},
		{"alt_tooltip", conf.Templates.AltTooltip, &pres.AltTooltipTemplate},
	}
	for _, tpl := range templates {
		parsed, err := template.New(tpl.name).Funcs(pres.templateFuncMap()).Parse(tpl.source)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", tpl.name, err)
		}
		*tpl.target = parsed
	}

	if _, err = pres.Render(pres.BuildContext(tracking.View{})); err != nil {
		return nil, err
	}
	return pres, nil
}

// BuildContext flattens a tracking view into the data handed to the templates. Only boundary
// crossings are kept from the view's events.
func (p *Presenter) BuildContext(view tracking.View) TemplateContext {
	ctx := TemplateContext{
		Frame:     view.Frame,
		NoAnchors: view.NoAnchors,
		Anchors:   len(view.Anchors),
		Inside:    view.Inside(),
		Outside:   view.Outside(),
		Tags:      make([]TagView, 0, len(view.Tags)),
		Nearest:   view.Nearest,
		UpdatedAt: view.UpdatedAt,
	}
	if view.User != nil {
		ctx.HasUser = true
		ctx.User = view.User.Position
	}
	for _, tag := range view.Tags {
		ctx.Tags = append(ctx.Tags, TagView{
			ID:            tag.ID,
			Name:          tag.Name,
			State:         tag.State.String(),
			StateIcon:     stateIcons[tag.State],
			Color:         tag.Color.Hex,
			ColorName:     tag.Color.Name,
			X:             tag.Plane.X,
			Y:             tag.Plane.Y,
			Distance:      tag.Distance.Value(),
			HasDistance:   tag.Distance.IsSet(),
			NearestAnchor: tag.NearestAnchor,
		})
	}
	for _, event := range geofence.Crossings(view.Events) {
		ctx.Events = append(ctx.Events, EventView{
			At:         event.At,
			EntityID:   event.EntityID,
			EntityName: event.EntityName,
			Kind:       string(event.Kind),
			Icon:       eventIcons[event.Kind],
		})
	}
	return ctx
}

// Render executes all four templates against ctx. The result is keyed by template name.
func (p *Presenter) Render(ctx TemplateContext) (map[string]string, error) {
	templates := map[string]*template.Template{
		"text":        p.TextTemplate,
		"alt_text":    p.AltTextTemplate,
		"tooltip":     p.TooltipTemplate,
		"alt_tooltip": p.AltTooltipTemplate,
	}
	output := make(map[string]string, len(templates))
	buf := bytes.NewBuffer(nil)
	for name, tpl := range templates {
		buf.Reset()
		if err := tpl.Execute(buf, ctx); err != nil {
			return nil, fmt.Errorf("failed to render %s template: %w", name, err)
		}
		output[name] = buf.String()
	}
	return output, nil
}

// Class returns the CSS class for the status line: no-anchors while the fallback frame is in use,
// outside while any tag is outside the boundary and ok otherwise.
func Class(view tracking.View) string {
	switch {
	case view.NoAnchors:
		return ClassNoAnchors
	case view.Outside() > 0:
		return ClassOutside
	default:
		return ClassOK
	}
}
