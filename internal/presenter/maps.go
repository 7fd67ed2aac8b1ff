// SPDX-FileCopyrightText: The BareTag Tracker Authors
//
// SPDX-License-Identifier: MIT

package presenter

import (
	"github.com/vorlif/spreak/localize"

	"github.com/baretag/baretag-tracker/internal/geofence"
)

var i18nVars = map[string]localize.MsgID{
	"noanchors": "No anchors configured",
	"tags":      "Tags",
	"anchors":   "Anchors",
	"frame":     "Frame",
	"updated":   "Updated",
	"nearest":   "Nearest anchor",
	"distance":  "Distance",
	"you":       "You",
	"boundary":  "Boundary",
	"inside":    "inside",
	"outside":   "outside",
	"unknown":   "unknown",
	"entered":   "entered",
	"exited":    "exited",
	"unchanged": "unchanged",
}

var stateIcons = map[geofence.State]string{
	geofence.StateUnknown: "⚪",
	geofence.StateInside:  "🟢",
	geofence.StateOutside: "🔴",
}

var eventIcons = map[geofence.EventKind]string{
	geofence.Entered:   "↘",
	geofence.Exited:    "↗",
	geofence.Unchanged: "·",
}
