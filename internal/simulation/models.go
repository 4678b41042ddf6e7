// Package simulation manages the per-session trip list, projects cumulative
// emissions over time and submits simulations to the backend.
package simulation

import (
	"errors"
	"math"

	"github.com/transportco2/transportco2/internal/session"
)

// Predefined simulation errors.
var (
	ErrTripNotFound = errors.New("trip not found")
	ErrTooManyTrips = errors.New("trip list is full")
)

const (
	// DefaultDays is the projection length when none is requested.
	DefaultDays = 30

	// MaxDays bounds the projection length.
	MaxDays = 365

	// MaxTrips bounds the trip list of one session.
	MaxTrips = 50

	// PollutingThreshold flags trips above this many grams per trip.
	PollutingThreshold = 80000.0

	// TripIDPrefix prefixes every trip ID.
	TripIDPrefix = "trp_"
)

// TripInput is the request body for POST /v1/me/trips.
type TripInput struct {
	Origin      string            `json:"origin" validate:"required,max=200"`
	Destination string            `json:"destination" validate:"required,max=200"`
	Mode        string            `json:"mode" validate:"required,max=100"`
	Label       string            `json:"label,omitempty" validate:"max=100"`
	CO2         float64           `json:"co2" validate:"gte=0"`
	DistanceKm  *float64          `json:"distanceKm,omitempty" validate:"omitempty,gte=0"`
	Frequency   session.Frequency `json:"frequency,omitempty" validate:"omitempty,oneof=daily weekly monthly"`
}

// SubmitInput is the request body for POST /v1/simulations.
type SubmitInput struct {
	Origin       string            `json:"origin" validate:"required,max=200"`
	Destination  string            `json:"destination" validate:"required,max=200"`
	Mode         string            `json:"mode" validate:"required,max=100"`
	CO2          float64           `json:"co2" validate:"gte=0"`
	Frequency    session.Frequency `json:"frequency,omitempty" validate:"omitempty,oneof=daily weekly monthly"`
	DurationDays int               `json:"durationDays" validate:"required,min=1,max=3650"`
}

// Series is the cumulative emission curve of one trip.
type Series struct {
	TripID       string            `json:"tripId"`
	Label        string            `json:"label"`
	Origin       string            `json:"origin"`
	Destination  string            `json:"destination"`
	Frequency    session.Frequency `json:"frequency"`
	PerDay       float64           `json:"perDay"`
	Values       []float64         `json:"values"`
	ZeroEmission bool              `json:"zeroEmission"`
	Polluting    bool              `json:"polluting"`
}

// Summary projects every trip over Days days. Values[i] is the cumulative
// emission in grams at the end of day i+1.
type Summary struct {
	Days      int       `json:"days"`
	Trips     []Series  `json:"trips"`
	Total     []float64 `json:"total"`
	Benchmark []float64 `json:"benchmark"`
}

// Multiplier converts a per-trip emission to a per-day emission.
func Multiplier(f session.Frequency) float64 {
	return 1 / f.Divisor()
}

// TotalEmission is the emission of a trip repeated at frequency f over days.
func TotalEmission(co2 float64, f session.Frequency, days int) float64 {
	return round2(co2 * float64(days) * Multiplier(f))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
