// Package auth authenticates users against the CO₂ backend and keeps the
// resulting backend token in a server-side session behind a BFF access token.
package auth

import (
	"github.com/transportco2/transportco2/internal/session"
)

// LoginRequest represents the request body for POST /v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=128"`
}

// SignupRequest represents the request body for POST /v1/auth/signup.
type SignupRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=6,max=128"`
}

// ThemeRequest represents the request body for PUT /v1/me/theme.
type ThemeRequest struct {
	Theme string `json:"theme" validate:"required,max=32"`
}

// UserView is the user as exposed by the BFF.
type UserView struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
	Theme string `json:"theme,omitempty"`
}

// TokenResponse represents the response after successful authentication.
type TokenResponse struct {
	// AccessToken is the JWT access token for API authentication.
	AccessToken string `json:"accessToken"`

	// TokenType is always "Bearer".
	TokenType string `json:"tokenType"`

	// ExpiresIn is the number of seconds until the access token expires.
	ExpiresIn int64 `json:"expiresIn"`

	// User contains the authenticated user's information.
	User *UserView `json:"user"`
}

// ViewOf builds the public view of the session's user.
func ViewOf(s *session.Session) *UserView {
	return &UserView{
		ID:    s.User.ID,
		Name:  s.User.Name,
		Email: s.User.Email,
		Role:  Role(s.User.Role),
		Theme: s.Theme,
	}
}
