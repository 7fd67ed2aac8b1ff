// SPDX-FileCopyrightText: The BareTag Tracker Authors
//
// SPDX-License-Identifier: MIT

// Package palette assigns every tracked tag a stable marker color.
package palette

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Color is a named marker color.
type Color struct {
	Name string `json:"name"`
	Hex  string `json:"hex"`
}

func (c Color) String() string {
	return c.Name
}

// DefaultPalette is used when a Registry is created without colors.
var DefaultPalette = []Color{
	{Name: "red", Hex: "#e53935"},
	{Name: "blue", Hex: "#1e88e5"},
	{Name: "green", Hex: "#43a047"},
	{Name: "orange", Hex: "#fb8c00"},
	{Name: "purple", Hex: "#8e24aa"},
	{Name: "pink", Hex: "#d81b60"},
	{Name: "yellow", Hex: "#fdd835"},
	{Name: "teal", Hex: "#00897b"},
}

// Registry hands out colors per id. The first color handed out for an id sticks to it for the
// lifetime of the registry, even if the palette would hash differently later on.
type Registry struct {
	mu       sync.Mutex
	palette  []Color
	assigned map[string]Color
}

// NewRegistry returns a Registry drawing from the given colors, or from DefaultPalette if none
// are given.
func NewRegistry(colors ...Color) *Registry {
	if len(colors) == 0 {
		colors = DefaultPalette
	}
	palette := make([]Color, len(colors))
	copy(palette, colors)
	return &Registry{
		palette:  palette,
		assigned: make(map[string]Color),
	}
}

// ColorFor returns the color assigned to id, assigning one on first use.
func (r *Registry) ColorFor(id string) Color {
	r.mu.Lock()
	defer r.mu.Unlock()

	if color, ok := r.assigned[id]; ok {
		return color
	}
	color := r.palette[xxhash.Sum64String(id)%uint64(len(r.palette))]
	r.assigned[id] = color
	return color
}

// Assigned returns a copy of all assignments made so far.
func (r *Registry) Assigned() map[string]Color {
	r.mu.Lock()
	defer r.mu.Unlock()

	assigned := make(map[string]Color, len(r.assigned))
	for id, color := range r.assigned {
		assigned[id] = color
	}
	return assigned
}
