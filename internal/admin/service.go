package admin

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/transportco2/transportco2/internal/auth"
	"github.com/transportco2/transportco2/internal/provider/co2api"
	"github.com/transportco2/transportco2/internal/session"
	"github.com/transportco2/transportco2/internal/validation"
)

// ErrTransportNotFound is returned when a catalogue entry does not exist.
var ErrTransportNotFound = errors.New("transport not found")

// Backend is the part of the CO₂ backend client the service needs.
type Backend interface {
	ListTransports(ctx context.Context, token string) ([]co2api.Transport, error)
	CreateTransport(ctx context.Context, token string, t co2api.Transport) (*co2api.Transport, error)
	UpdateTransport(ctx context.Context, token string, id int64, t co2api.Transport) (*co2api.Transport, error)
	DeleteTransport(ctx context.Context, token string, id int64) error
	ListUsers(ctx context.Context, token string) ([]co2api.User, error)
	CreateUser(ctx context.Context, token string, in co2api.AdminUserInput) (*co2api.User, error)
	UpdateUser(ctx context.Context, token string, id int64, in co2api.AdminUserInput) (*co2api.User, error)
	DeleteUser(ctx context.Context, token string, id int64) error
}

// Sessions resolves the caller's session.
type Sessions interface {
	Session(ctx context.Context, sessionID string) (*session.Session, error)
}

// Config holds the service's collaborators.
type Config struct {
	Backend  Backend
	Sessions Sessions
	Logger   zerolog.Logger
}

// Service runs admin operations with the calling administrator's backend token.
type Service struct {
	backend  Backend
	sessions Sessions
	logger   zerolog.Logger
}

// NewService creates a new admin service.
func NewService(cfg Config) *Service {
	return &Service{
		backend:  cfg.Backend,
		sessions: cfg.Sessions,
		logger:   cfg.Logger.With().Str("component", "admin").Logger(),
	}
}

// ListTransports returns the catalogue, optionally sorted by name or
// average consumption. Ties keep backend order.
func (s *Service) ListTransports(ctx context.Context, sessionID, sortBy string) ([]Transport, error) {
	sortBy = strings.ToLower(strings.TrimSpace(sortBy))
	if sortBy == "co2" {
		sortBy = SortConsumption
	}
	if sortBy != SortNone && sortBy != SortName && sortBy != SortConsumption {
		return nil, validation.NewError("sort", "must be one of: name consumption", "ONEOF")
	}

	token, err := s.token(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	raw, err := s.backend.ListTransports(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("listing transports: %w", err)
	}

	out := make([]Transport, 0, len(raw))
	for _, t := range raw {
		out = append(out, transportFromBackend(t))
	}

	switch sortBy {
	case SortName:
		sort.SliceStable(out, func(i, j int) bool {
			return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
		})
	case SortConsumption:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].AverageConsumption < out[j].AverageConsumption
		})
	}
	return out, nil
}

// GetTransport returns one catalogue entry.
func (s *Service) GetTransport(ctx context.Context, sessionID string, id int64) (*Transport, error) {
	all, err := s.ListTransports(ctx, sessionID, SortNone)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].ID == id {
			return &all[i], nil
		}
	}
	return nil, ErrTransportNotFound
}

// CreateTransport adds a catalogue entry.
func (s *Service) CreateTransport(ctx context.Context, sessionID string, in TransportInput) (*Transport, error) {
	in = in.normalized()
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	token, err := s.token(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	created, err := s.backend.CreateTransport(ctx, token, in.backend())
	if err != nil {
		return nil, fmt.Errorf("creating transport: %w", err)
	}

	s.logger.Info().Int64("transport_id", created.ID).Str("name", created.Name).Msg("transport created")
	t := transportFromBackend(*created)
	return &t, nil
}

// UpdateTransport replaces a catalogue entry.
func (s *Service) UpdateTransport(ctx context.Context, sessionID string, id int64, in TransportInput) (*Transport, error) {
	in = in.normalized()
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	token, err := s.token(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	updated, err := s.backend.UpdateTransport(ctx, token, id, in.backend())
	if err != nil {
		if errors.Is(err, co2api.ErrNotFound) {
			return nil, ErrTransportNotFound
		}
		return nil, fmt.Errorf("updating transport %d: %w", id, err)
	}

	s.logger.Info().Int64("transport_id", id).Msg("transport updated")
	t := transportFromBackend(*updated)
	return &t, nil
}

// DeleteTransport removes a catalogue entry.
func (s *Service) DeleteTransport(ctx context.Context, sessionID string, id int64) error {
	token, err := s.token(ctx, sessionID)
	if err != nil {
		return err
	}

	if err := s.backend.DeleteTransport(ctx, token, id); err != nil {
		if errors.Is(err, co2api.ErrNotFound) {
			return ErrTransportNotFound
		}
		return fmt.Errorf("deleting transport %d: %w", id, err)
	}

	s.logger.Info().Int64("transport_id", id).Msg("transport deleted")
	return nil
}

// ListUsers returns every account.
func (s *Service) ListUsers(ctx context.Context, sessionID string) ([]User, error) {
	token, err := s.token(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	raw, err := s.backend.ListUsers(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}

	out := make([]User, 0, len(raw))
	for _, u := range raw {
		out = append(out, userFromBackend(u))
	}
	return out, nil
}

// CreateUser creates an account with an explicit role.
func (s *Service) CreateUser(ctx context.Context, sessionID string, in CreateUserInput) (*User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Role = normalizeRole(in.Role)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	token, err := s.token(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	created, err := s.backend.CreateUser(ctx, token, co2api.AdminUserInput{
		Name:     in.Name,
		Email:    in.Email,
		Password: in.Password,
		Role:     in.Role.Backend(),
	})
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	s.logger.Info().Int64("user_id", created.ID).Str("role", string(in.Role)).Msg("user created")
	u := userFromBackend(*created)
	return &u, nil
}

// UpdateUser changes an account's name, email or role.
func (s *Service) UpdateUser(ctx context.Context, sessionID string, id int64, in UpdateUserInput) (*User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Role = normalizeRole(in.Role)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if in.Name == "" && in.Email == "" && in.Role == "" {
		return nil, validation.NewError("name", "at least one of name, email or role is required", "REQUIRED")
	}

	token, err := s.token(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	req := co2api.AdminUserInput{Name: in.Name, Email: in.Email}
	if in.Role != "" {
		req.Role = in.Role.Backend()
	}

	updated, err := s.backend.UpdateUser(ctx, token, id, req)
	if err != nil {
		return nil, fmt.Errorf("updating user %d: %w", id, err)
	}

	s.logger.Info().Int64("user_id", id).Str("role", string(in.Role)).Msg("user updated")
	u := userFromBackend(*updated)
	return &u, nil
}

// DeleteUser removes an account. Administrators cannot delete themselves.
func (s *Service) DeleteUser(ctx context.Context, sessionID string, id int64) error {
	sess, err := s.sessions.Session(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.User.ID == id {
		return validation.NewError("id", "cannot delete your own account", "SELF")
	}

	if err := s.backend.DeleteUser(ctx, sess.UpstreamToken, id); err != nil {
		return fmt.Errorf("deleting user %d: %w", id, err)
	}

	s.logger.Info().Int64("user_id", id).Msg("user deleted")
	return nil
}

func (s *Service) token(ctx context.Context, sessionID string) (string, error) {
	sess, err := s.sessions.Session(ctx, sessionID)
	if err != nil {
		return "", err
	}
	return sess.UpstreamToken, nil
}

func (in TransportInput) normalized() TransportInput {
	in.Name = strings.TrimSpace(in.Name)
	in.TransportType = strings.TrimSpace(in.TransportType)
	in.EnergySource = strings.TrimSpace(in.EnergySource)
	return in
}

func normalizeRole(r auth.Role) auth.Role {
	return auth.Role(strings.ToLower(strings.TrimSpace(string(r))))
}
