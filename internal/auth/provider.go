package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/transportco2/transportco2/internal/events"
	"github.com/transportco2/transportco2/internal/metrics"
	"github.com/transportco2/transportco2/internal/provider/co2api"
	"github.com/transportco2/transportco2/internal/session"
	"github.com/transportco2/transportco2/internal/validation"
)

// Predefined provider errors.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountExists      = errors.New("an account with this email already exists")
	ErrSessionNotFound    = errors.New("session not found or expired")
)

// DefaultSessionTTL is how long a session lives without an explicit TTL.
const DefaultSessionTTL = 7 * 24 * time.Hour

// Backend is the part of the CO₂ backend client the provider needs.
type Backend interface {
	Login(ctx context.Context, email, password string) (*co2api.LoginResult, error)
	Signup(ctx context.Context, req co2api.SignupRequest) error
}

// ProviderConfig holds configuration for the auth provider.
type ProviderConfig struct {
	Backend    Backend
	Store      session.Store
	JWT        *JWTService
	SessionTTL time.Duration
	Publisher  events.Publisher
	Metrics    *metrics.Metrics
	Logger     zerolog.Logger
}

// Provider handles login, signup, logout and per-session preferences.
type Provider struct {
	backend    Backend
	store      session.Store
	jwt        *JWTService
	sessionTTL time.Duration
	publisher  events.Publisher
	metrics    *metrics.Metrics
	logger     zerolog.Logger
}

// NewProvider creates a new auth provider.
func NewProvider(cfg ProviderConfig) *Provider {
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Provider{
		backend:    cfg.Backend,
		store:      cfg.Store,
		jwt:        cfg.JWT,
		sessionTTL: ttl,
		publisher:  cfg.Publisher,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger.With().Str("component", "auth").Logger(),
	}
}

// Login verifies credentials with the backend, opens a session holding the
// backend token and returns a BFF access token for it.
func (p *Provider) Login(ctx context.Context, req LoginRequest) (*TokenResponse, error) {
	req.Email = strings.TrimSpace(req.Email)
	if err := validation.Struct(req); err != nil {
		p.metrics.Login(metrics.OutcomeInvalid)
		return nil, err
	}

	result, err := p.backend.Login(ctx, req.Email, req.Password)
	if err != nil {
		if isCredentialError(err) {
			p.metrics.Login(metrics.OutcomeInvalid)
			return nil, ErrInvalidCredentials
		}
		p.metrics.Login(metrics.OutcomeFailed)
		return nil, fmt.Errorf("backend login: %w", err)
	}

	sess := session.New(result.Token, sessionUser(result.User), p.sessionTTL)
	if err := p.store.Create(ctx, sess); err != nil {
		p.metrics.Login(metrics.OutcomeFailed)
		return nil, fmt.Errorf("creating session: %w", err)
	}
	p.metrics.Login(metrics.OutcomeOK)

	p.logger.Info().
		Str("session_id", sess.ID).
		Int64("user_id", sess.User.ID).
		Str("role", sess.User.Role).
		Msg("user logged in")

	events.Emit(ctx, p.publisher, p.logger, events.TypeUserLoggedIn, events.UserLoggedIn{
		UserID: sess.User.ID,
		Role:   sess.User.Role,
	})

	return p.issue(sess)
}

// Signup creates an account. The caller logs in afterwards.
func (p *Provider) Signup(ctx context.Context, req SignupRequest) error {
	req.Email = strings.TrimSpace(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if err := validation.Struct(req); err != nil {
		return err
	}

	err := p.backend.Signup(ctx, co2api.SignupRequest{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, co2api.ErrConflict) {
			return ErrAccountExists
		}
		return fmt.Errorf("backend signup: %w", err)
	}
	return nil
}

// Refresh issues a new access token for a live session.
func (p *Provider) Refresh(ctx context.Context, sessionID string) (*TokenResponse, error) {
	sess, err := p.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return p.issue(sess)
}

// Authenticate validates an access token.
func (p *Provider) Authenticate(token string) (*JWTClaims, error) {
	return p.jwt.ValidateAccessToken(token)
}

// Session loads a live session.
func (p *Provider) Session(ctx context.Context, sessionID string) (*session.Session, error) {
	sess, err := p.store.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("loading session: %w", err)
	}
	return sess, nil
}

// CurrentUser returns the user cached in the session.
func (p *Provider) CurrentUser(ctx context.Context, sessionID string) (*UserView, error) {
	sess, err := p.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return ViewOf(sess), nil
}

// SyncUser replaces the session's cached user with the backend's copy.
func (p *Provider) SyncUser(ctx context.Context, sessionID string, u co2api.User) (*UserView, error) {
	sess, err := p.mutate(ctx, sessionID, func(s *session.Session) error {
		s.User = sessionUser(u)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ViewOf(sess), nil
}

// Logout ends the session. Ending a missing session is not an error.
func (p *Provider) Logout(ctx context.Context, sessionID string) error {
	if err := p.store.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	p.logger.Info().Str("session_id", sessionID).Msg("user logged out")
	return nil
}

// SetTheme stores the opaque theme preference in the session.
func (p *Provider) SetTheme(ctx context.Context, sessionID, theme string) (*UserView, error) {
	req := ThemeRequest{Theme: strings.TrimSpace(theme)}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	sess, err := p.mutate(ctx, sessionID, func(s *session.Session) error {
		s.Theme = req.Theme
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ViewOf(sess), nil
}

func (p *Provider) mutate(ctx context.Context, sessionID string, fn func(s *session.Session) error) (*session.Session, error) {
	sess, err := session.Mutate(ctx, p.store, sessionID, fn)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("updating session: %w", err)
	}
	return sess, nil
}

func (p *Provider) issue(sess *session.Session) (*TokenResponse, error) {
	token, expiresAt, err := p.jwt.GenerateAccessToken(sess)
	if err != nil {
		return nil, fmt.Errorf("generating access token: %w", err)
	}
	return &TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(time.Until(expiresAt).Seconds()),
		User:        ViewOf(sess),
	}, nil
}

func sessionUser(u co2api.User) session.User {
	return session.User{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
		Role:  string(RoleFromBackend(u.Role)),
	}
}

// isCredentialError reports whether the backend rejected the credentials
// rather than failing.
func isCredentialError(err error) bool {
	return errors.Is(err, co2api.ErrUnauthorized) ||
		errors.Is(err, co2api.ErrForbidden) ||
		errors.Is(err, co2api.ErrNotFound) ||
		errors.Is(err, co2api.ErrBadRequest)
}
