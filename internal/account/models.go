// Package account serves the signed-in user's profile and saved search
// history, both owned by the CO₂ backend.
package account

import (
	"strings"
	"time"

	"github.com/transportco2/transportco2/internal/provider/co2api"
)

// Entry kinds.
const (
	KindSearch     = "search"
	KindSimulation = "simulation"
)

// simulationPrefix marks history entries recorded by a simulation.
const simulationPrefix = "simulation"

// UpdateInput is the request body for PUT /v1/me. Empty fields are left
// unchanged.
type UpdateInput struct {
	Name     string `json:"name,omitempty" validate:"omitempty,max=100"`
	Password string `json:"password,omitempty" validate:"omitempty,min=6,max=128"`
}

// SaveInput is the request body for POST /v1/history.
type SaveInput struct {
	Origin      string   `json:"origin" validate:"required,max=200"`
	Destination string   `json:"destination" validate:"required,max=200"`
	DistanceKm  *float64 `json:"distanceKm,omitempty" validate:"omitempty,gte=0"`
	Constraint  string   `json:"constraint,omitempty" validate:"max=100"`
}

// Mode is one transport option recorded with a history entry.
type Mode struct {
	Mode       string   `json:"mode"`
	Label      string   `json:"label,omitempty"`
	CO2        float64  `json:"co2"`
	DistanceKm *float64 `json:"distanceKm,omitempty"`
}

// Entry is one item of the user's history.
type Entry struct {
	ID          int64      `json:"id"`
	Kind        string     `json:"kind"`
	Origin      string     `json:"origin"`
	Destination string     `json:"destination"`
	Constraint  string     `json:"constraint,omitempty"`
	Date        *time.Time `json:"date,omitempty"`
	Modes       []Mode     `json:"modes"`
}

// History splits the user's history into searches and simulations, each in
// backend order.
type History struct {
	Searches    []Entry `json:"searches"`
	Simulations []Entry `json:"simulations"`
}

// kindOf classifies a history entry by its constraint.
func kindOf(constraint string) string {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(constraint)), simulationPrefix) {
		return KindSimulation
	}
	return KindSearch
}

func entryFromBackend(h co2api.HistoryEntry) Entry {
	e := Entry{
		ID:          h.ID,
		Kind:        kindOf(h.Constraint),
		Origin:      h.Origin,
		Destination: h.Destination,
		Constraint:  h.Constraint,
		Modes:       make([]Mode, 0, len(h.Modes)),
	}
	if !h.Date.IsZero() {
		d := h.Date.UTC()
		e.Date = &d
	}
	for _, m := range h.Modes {
		e.Modes = append(e.Modes, Mode{Mode: m.Mode, Label: m.Label, CO2: m.CO2, DistanceKm: m.DistanceKm})
	}
	return e
}

func groupHistory(entries []co2api.HistoryEntry) *History {
	h := &History{Searches: []Entry{}, Simulations: []Entry{}}
	for _, raw := range entries {
		e := entryFromBackend(raw)
		if e.Kind == KindSimulation {
			h.Simulations = append(h.Simulations, e)
		} else {
			h.Searches = append(h.Searches, e)
		}
	}
	return h
}
