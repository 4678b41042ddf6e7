// Package admin proxies the backend's transport catalogue and account
// management to administrators, validating input before it leaves the BFF.
package admin

import (
	"time"

	"github.com/transportco2/transportco2/internal/auth"
	"github.com/transportco2/transportco2/internal/provider/co2api"
)

// Transport sort keys.
const (
	SortNone        = ""
	SortName        = "name"
	SortConsumption = "consumption"
)

// Transport is a catalogue entry.
type Transport struct {
	ID                 int64    `json:"id"`
	Name               string   `json:"name"`
	AverageConsumption float64  `json:"averageConsumption"`
	Capacity           *int     `json:"capacity,omitempty"`
	TransportType      string   `json:"transportType,omitempty"`
	EnergySource       string   `json:"energySource,omitempty"`
	PublicFarePerKm    *float64 `json:"publicFarePerKm,omitempty"`
}

// TransportInput is the request body for creating or replacing a transport.
type TransportInput struct {
	Name               string   `json:"name" validate:"required,max=100"`
	AverageConsumption *float64 `json:"averageConsumption" validate:"required,gte=0"`
	Capacity           *int     `json:"capacity,omitempty" validate:"omitempty,gte=0"`
	TransportType      string   `json:"transportType,omitempty" validate:"max=100"`
	EnergySource       string   `json:"energySource,omitempty" validate:"max=100"`
	PublicFarePerKm    *float64 `json:"publicFarePerKm,omitempty" validate:"omitempty,gte=0"`
}

// User is an account as shown to administrators.
type User struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	Role       auth.Role  `json:"role"`
	SignupDate *time.Time `json:"signupDate,omitempty"`
}

// CreateUserInput is the request body for POST /v1/admin/users.
type CreateUserInput struct {
	Name     string    `json:"name" validate:"required,max=100"`
	Email    string    `json:"email" validate:"required,email,max=254"`
	Password string    `json:"password" validate:"required,min=6,max=128"`
	Role     auth.Role `json:"role" validate:"required,oneof=visitor normal admin"`
}

// UpdateUserInput is the request body for PUT /v1/admin/users/{id}. Empty
// fields are left unchanged.
type UpdateUserInput struct {
	Name  string    `json:"name,omitempty" validate:"omitempty,max=100"`
	Email string    `json:"email,omitempty" validate:"omitempty,email,max=254"`
	Role  auth.Role `json:"role,omitempty" validate:"omitempty,oneof=visitor normal admin"`
}

func transportFromBackend(t co2api.Transport) Transport {
	out := Transport{
		ID:                 t.ID,
		Name:               t.Name,
		AverageConsumption: t.AverageConsumption,
		Capacity:           t.Capacity,
		PublicFarePerKm:    t.PublicFarePerKm,
	}
	if t.TransportType != nil {
		out.TransportType = t.TransportType.Name
	}
	if t.EnergySource != nil {
		out.EnergySource = t.EnergySource.Name
	}
	return out
}

func (in TransportInput) backend() co2api.Transport {
	t := co2api.Transport{
		Name:               in.Name,
		AverageConsumption: *in.AverageConsumption,
		Capacity:           in.Capacity,
		PublicFarePerKm:    in.PublicFarePerKm,
	}
	if in.TransportType != "" {
		t.TransportType = &co2api.Ref{Name: in.TransportType}
	}
	if in.EnergySource != "" {
		t.EnergySource = &co2api.Ref{Name: in.EnergySource}
	}
	return t
}

func userFromBackend(u co2api.User) User {
	out := User{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
		Role:  auth.RoleFromBackend(u.Role),
	}
	if u.DateInscription != nil && !u.DateInscription.IsZero() {
		d := u.DateInscription.UTC()
		out.SignupDate = &d
	}
	return out
}
