// Package session holds the per-user application state of the BFF (backend
// token, user, theme preference and the simulation trip list) behind a
// swappable Store.
package session

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors.
var (
	// ErrNotFound indicates the session does not exist or has expired.
	ErrNotFound = errors.New("session not found")
	// ErrAlreadyExists indicates an ID collision on Create.
	ErrAlreadyExists = errors.New("session already exists")
	// ErrConflict indicates a mutation kept losing to concurrent writers.
	ErrConflict = errors.New("session modified concurrently")
)

// IDPrefix prefixes every session ID.
const IDPrefix = "ses_"

// Frequency is how often a simulated trip is made.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// Divisor converts a per-trip emission to a per-day emission.
func (f Frequency) Divisor() float64 {
	switch f {
	case FrequencyWeekly:
		return 7
	case FrequencyMonthly:
		return 30
	default:
		return 1
	}
}

// IsValid reports whether f is a known frequency.
func (f Frequency) IsValid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	}
	return false
}

// User is the authenticated user as cached in the session.
type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Trip is one entry of the simulation trip list.
type Trip struct {
	ID          string    `json:"id"`
	Origin      string    `json:"origin"`
	Destination string    `json:"destination"`
	Mode        string    `json:"mode"`
	Label       string    `json:"label,omitempty"`
	CO2         float64   `json:"co2"`
	DistanceKm  *float64  `json:"distanceKm,omitempty"`
	Frequency   Frequency `json:"frequency"`
	AddedAt     time.Time `json:"addedAt"`
}

// Session is the explicit state object for one signed-in client.
type Session struct {
	ID            string    `json:"id"`
	UpstreamToken string    `json:"upstreamToken"`
	User          User      `json:"user"`
	Theme         string    `json:"theme,omitempty"`
	Trips         []Trip    `json:"trips"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

// New creates a session for user valid for ttl.
func New(upstreamToken string, user User, ttl time.Duration) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:            NewID(),
		UpstreamToken: upstreamToken,
		User:          user,
		Trips:         []Trip{},
		CreatedAt:     now,
		UpdatedAt:     now,
		ExpiresAt:     now.Add(ttl),
	}
}

// NewID returns a fresh session ID.
func NewID() string {
	return IDPrefix + uuid.New().String()[:22]
}

// IsExpired reports whether the session has expired at t.
func (s *Session) IsExpired(t time.Time) bool {
	return !s.ExpiresAt.IsZero() && !t.Before(s.ExpiresAt)
}

// Clone returns a deep copy of s.
func (s *Session) Clone() *Session {
	c := *s
	c.Trips = make([]Trip, len(s.Trips))
	for i, t := range s.Trips {
		if t.DistanceKm != nil {
			d := *t.DistanceKm
			t.DistanceKm = &d
		}
		c.Trips[i] = t
	}
	return &c
}
