package handler

import (
	"net/http"

	"github.com/transportco2/transportco2/internal/api/response"
	"github.com/transportco2/transportco2/internal/auth"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	provider *auth.Provider
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(provider *auth.Provider) *AuthHandler {
	return &AuthHandler{provider: provider}
}

// Signup handles POST /v1/auth/signup - create a backend account.
// The caller signs in separately afterwards.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req auth.SignupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.provider.Signup(r.Context(), req); err != nil {
		writeError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusCreated, map[string]string{"email": req.Email})
}

// Login handles POST /v1/auth/login - open a session and issue an access token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	tokenResp, err := h.provider.Login(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, tokenResp)
}

// Refresh handles POST /v1/auth/refresh - issue a new access token for the
// caller's session.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}

	tokenResp, err := h.provider.Refresh(r.Context(), sid)
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, tokenResp)
}

// Logout handles POST /v1/auth/logout - end the caller's session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}

	if err := h.provider.Logout(r.Context(), sid); err != nil {
		writeError(w, r, err)
		return
	}

	response.NoContent(w, r)
}
