// SPDX-FileCopyrightText: The BareTag Tracker Authors
//
// SPDX-License-Identifier: MIT

package presenter

import (
	"fmt"
	"math"
	"strings"
	"text/template"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/vorlif/humanize"

	"github.com/baretag/baretag-tracker/internal/geo"
)

func (p *Presenter) templateFuncMap() template.FuncMap {
	return template.FuncMap{
		"timeFormat":    p.timeFormat,
		"localizedTime": p.localizedTime,
		"since":         p.since,
		"floatFormat":   p.floatFormat,
		"meters":        p.meters,
		"pad":           pad,
		"emoji":         EmojiWithSpace,
		"loc":           p.loc,
		"lc":            strings.ToLower,
		"uc":            strings.ToUpper,
	}
}

func (p *Presenter) loc(val string) string {
	if raw, ok := i18nVars[strings.ToLower(val)]; ok {
		return p.localizer.Get(raw)
	}
	return val
}

func (p *Presenter) localizedTime(val time.Time) string {
	return p.humanizer.FormatTime(val, humanize.TimeFormat)
}

// since renders the distance between val and now, e.g. "5 seconds ago".
func (p *Presenter) since(val time.Time) string {
	return p.humanizer.NaturalTime(val)
}

func (p *Presenter) timeFormat(val time.Time, fmt string) string {
	return val.Format(fmt)
}

func (p *Presenter) floatFormat(val float64, precision int) string {
	return fmt.Sprintf("%.*f", precision, geo.Truncate(val, precision))
}

// meters formats a distance in meters, switching to kilometers from 1000m on.
func (p *Presenter) meters(val float64) string {
	if math.Abs(val) >= 1000 {
		return p.floatFormat(val/1000, 2) + " km"
	}
	return fmt.Sprintf("%.0f m", val)
}

// pad fills s with spaces up to the given display width. Wider strings are truncated.
func pad(s string, width int) string {
	if runewidth.StringWidth(s) > width {
		return runewidth.Truncate(s, width, "…")
	}
	return runewidth.FillRight(s, width)
}

// EmojiWithSpace appends a space to emoji, plus one more if the terminal renders it as a single
// cell.
func EmojiWithSpace(emoji string) string {
	if runewidth.StringWidth(emoji) < 2 {
		return emoji + "  "
	}
	return emoji + " "
}
