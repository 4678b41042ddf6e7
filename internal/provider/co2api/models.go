package co2api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Sentinel errors for backend calls. Every *Error wraps exactly one of them.
var (
	// ErrUnavailable indicates the backend is down, timing out or the circuit is open.
	ErrUnavailable = errors.New("co2 backend unavailable")
	// ErrUnauthorized indicates missing, expired or rejected credentials.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden indicates the credentials lack the required role.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("not found")
	// ErrBadRequest indicates the backend rejected the payload.
	ErrBadRequest = errors.New("bad request")
	// ErrConflict indicates a uniqueness violation (e.g. email already used).
	ErrConflict = errors.New("conflict")
	// ErrRateLimited indicates the backend throttled the call.
	ErrRateLimited = errors.New("rate limited")
)

// Error describes a failed backend call.
type Error struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("co2api %s: status %d: %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("co2api %s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether repeating the call later may succeed.
func (e *Error) IsRetryable() bool {
	return errors.Is(e.Err, ErrUnavailable) || errors.Is(e.Err, ErrRateLimited)
}

// Backend role names.
const (
	RoleVisitor = "Visiteur"
	RoleNormal  = "Normal"
	RoleAdmin   = "Admin"
)

// User is a backend user account.
type User struct {
	ID              int64  `json:"id"`
	Name            string `json:"nom"`
	Email           string `json:"email"`
	Role            string `json:"role"`
	DateInscription *Time  `json:"dateInscription,omitempty"`
}

// LoginResult is the backend response to a successful login.
type LoginResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"motDePasse"`
}

// SignupRequest creates a new account.
type SignupRequest struct {
	Name     string `json:"nom"`
	Email    string `json:"email"`
	Password string `json:"motDePasse"`
}

// ProfileUpdate changes the caller's own account. Empty fields are left
// unchanged by the backend.
type ProfileUpdate struct {
	Name     string `json:"name,omitempty"`
	Password string `json:"password,omitempty"`
}

// AdminUserInput creates or updates an account through the admin API.
type AdminUserInput struct {
	Name     string `json:"nom,omitempty"`
	Email    string `json:"email,omitempty"`
	Password string `json:"motDePasse,omitempty"`
	Role     string `json:"role,omitempty"`
	// Roles is the field name the backend's update endpoint reads.
	Roles string `json:"roles,omitempty"`
}

// Ref is a named reference entity (transport type, energy source).
type Ref struct {
	ID   int64  `json:"id,omitempty"`
	Name string `json:"nom,omitempty"`
}

// Transport is an entry of the backend's transport catalogue.
type Transport struct {
	ID                 int64    `json:"id,omitempty"`
	Name               string   `json:"nom"`
	AverageConsumption float64  `json:"consommationMoyenne"`
	Capacity           *int     `json:"capacite,omitempty"`
	TransportType      *Ref     `json:"typeTransport,omitempty"`
	EnergySource       *Ref     `json:"sourceEnergie,omitempty"`
	PublicFarePerKm    *float64 `json:"tarifPublicParKm,omitempty"`
}

// Simulation is a carbon simulation stored by the backend.
type Simulation struct {
	ID            int64   `json:"id,omitempty"`
	UserID        int64   `json:"utilisateurId,omitempty"`
	Origin        string  `json:"origine"`
	Destination   string  `json:"destination"`
	Mode          string  `json:"modeTransport"`
	Frequency     string  `json:"frequency"`
	DurationDays  int     `json:"duration"`
	TotalEmission float64 `json:"totalEmission"`
	Date          *Time   `json:"dateSimulation,omitempty"`
}

// SavedSearch is a search the user chose to keep.
type SavedSearch struct {
	ID          int64    `json:"id,omitempty"`
	Origin      string   `json:"origine"`
	Destination string   `json:"destination"`
	DistanceKm  *float64 `json:"distance,omitempty"`
	Constraint  string   `json:"contrainte,omitempty"`
}

// HistoryEntry is one item of the user's trip history.
type HistoryEntry struct {
	ID          int64         `json:"id"`
	Origin      string        `json:"origine"`
	Destination string        `json:"destination"`
	Date        Time          `json:"date"`
	Modes       []HistoryMode `json:"modes"`
	Constraint  string        `json:"contrainte,omitempty"`
}

// HistoryMode is a transport option recorded with a history entry.
type HistoryMode struct {
	Mode       string   `json:"mode"`
	CO2        float64  `json:"co2"`
	DistanceKm *float64 `json:"distanceKm,omitempty"`
	Label      string   `json:"label,omitempty"`
}

type backendError struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Time decodes the date formats the backend emits: epoch milliseconds,
// RFC 3339, a zone-less local date-time (read as UTC), or a
// [year, month, day, hour, minute, second] array.
type Time struct {
	time.Time
}

var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Time) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	if data[0] == '[' {
		var parts []int
		if err := json.Unmarshal(data, &parts); err != nil {
			return fmt.Errorf("invalid timestamp %s: %w", data, err)
		}
		if len(parts) < 3 {
			return fmt.Errorf("invalid timestamp %s", data)
		}
		for len(parts) < 6 {
			parts = append(parts, 0)
		}
		t.Time = time.Date(parts[0], time.Month(parts[1]), parts[2], parts[3], parts[4], parts[5], 0, time.UTC)
		return nil
	}

	if data[0] != '"' {
		ms, err := strconv.ParseInt(string(data), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid timestamp %s: %w", data, err)
		}
		t.Time = time.UnixMilli(ms).UTC()
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
		t.Time = parsed
		return nil
	}
	for _, layout := range localLayouts {
		if parsed, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("invalid timestamp %q", s)
}

// MarshalJSON implements json.Marshaler.
func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339))
}
