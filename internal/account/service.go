package account

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/transportco2/transportco2/internal/auth"
	"github.com/transportco2/transportco2/internal/provider/co2api"
	"github.com/transportco2/transportco2/internal/session"
	"github.com/transportco2/transportco2/internal/validation"
)

// Backend is the part of the CO₂ backend client the service needs.
type Backend interface {
	CurrentUser(ctx context.Context, token string) (*co2api.User, error)
	UpdateCurrentUser(ctx context.Context, token string, update co2api.ProfileUpdate) (*co2api.User, error)
	SaveSearch(ctx context.Context, token string, search co2api.SavedSearch) (*co2api.SavedSearch, error)
	AddToHistory(ctx context.Context, token string, tripID int64) error
	ListHistory(ctx context.Context, token string) ([]co2api.HistoryEntry, error)
	DeleteHistory(ctx context.Context, token string, id int64) error
}

// Sessions resolves sessions and refreshes their cached user.
type Sessions interface {
	Session(ctx context.Context, sessionID string) (*session.Session, error)
	SyncUser(ctx context.Context, sessionID string, u co2api.User) (*auth.UserView, error)
}

// Config holds the service's collaborators.
type Config struct {
	Backend  Backend
	Sessions Sessions
	Logger   zerolog.Logger
}

// Service serves profile and history operations for a session's user.
type Service struct {
	backend  Backend
	sessions Sessions
	logger   zerolog.Logger
}

// NewService creates a new account service.
func NewService(cfg Config) *Service {
	return &Service{
		backend:  cfg.Backend,
		sessions: cfg.Sessions,
		logger:   cfg.Logger.With().Str("component", "account").Logger(),
	}
}

// Me fetches the user from the backend and refreshes the session's copy.
func (s *Service) Me(ctx context.Context, sessionID string) (*auth.UserView, error) {
	sess, err := s.sessions.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	u, err := s.backend.CurrentUser(ctx, sess.UpstreamToken)
	if err != nil {
		return nil, fmt.Errorf("fetching current user: %w", err)
	}
	return s.sessions.SyncUser(ctx, sessionID, *u)
}

// UpdateMe changes the user's name or password.
func (s *Service) UpdateMe(ctx context.Context, sessionID string, in UpdateInput) (*auth.UserView, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if in.Name == "" && in.Password == "" {
		return nil, validation.NewError("name", "name or password is required", "REQUIRED")
	}

	sess, err := s.sessions.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	u, err := s.backend.UpdateCurrentUser(ctx, sess.UpstreamToken, co2api.ProfileUpdate{
		Name:     in.Name,
		Password: in.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("updating current user: %w", err)
	}

	s.logger.Info().
		Int64("user_id", sess.User.ID).
		Bool("name_changed", in.Name != "").
		Bool("password_changed", in.Password != "").
		Msg("profile updated")

	// Some backend versions answer with an empty body.
	if u == nil || u.ID == 0 {
		return s.Me(ctx, sessionID)
	}
	return s.sessions.SyncUser(ctx, sessionID, *u)
}

// History lists the user's saved searches and simulations.
func (s *Service) History(ctx context.Context, sessionID string) (*History, error) {
	sess, err := s.sessions.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	entries, err := s.backend.ListHistory(ctx, sess.UpstreamToken)
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}
	return groupHistory(entries), nil
}

// SaveSearch stores a search and links it into the user's history.
func (s *Service) SaveSearch(ctx context.Context, sessionID string, in SaveInput) (*Entry, error) {
	in.Origin = strings.TrimSpace(in.Origin)
	in.Destination = strings.TrimSpace(in.Destination)
	in.Constraint = strings.TrimSpace(in.Constraint)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	sess, err := s.sessions.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	saved, err := s.backend.SaveSearch(ctx, sess.UpstreamToken, co2api.SavedSearch{
		Origin:      in.Origin,
		Destination: in.Destination,
		DistanceKm:  in.DistanceKm,
		Constraint:  in.Constraint,
	})
	if err != nil {
		return nil, fmt.Errorf("saving search: %w", err)
	}
	if err := s.backend.AddToHistory(ctx, sess.UpstreamToken, saved.ID); err != nil {
		return nil, fmt.Errorf("adding trip %d to history: %w", saved.ID, err)
	}

	s.logger.Debug().
		Int64("user_id", sess.User.ID).
		Int64("trip_id", saved.ID).
		Msg("search saved to history")

	return &Entry{
		ID:          saved.ID,
		Kind:        kindOf(saved.Constraint),
		Origin:      saved.Origin,
		Destination: saved.Destination,
		Constraint:  saved.Constraint,
		Modes:       []Mode{},
	}, nil
}

// DeleteHistory removes one history entry.
func (s *Service) DeleteHistory(ctx context.Context, sessionID string, id int64) error {
	if id <= 0 {
		return validation.NewError("id", "must be a positive integer", "INVALID")
	}

	sess, err := s.sessions.Session(ctx, sessionID)
	if err != nil {
		return err
	}

	if err := s.backend.DeleteHistory(ctx, sess.UpstreamToken, id); err != nil {
		return fmt.Errorf("deleting history entry %d: %w", id, err)
	}
	return nil
}
