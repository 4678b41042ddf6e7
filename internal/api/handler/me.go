package handler

import (
	"net/http"

	"github.com/transportco2/transportco2/internal/account"
	"github.com/transportco2/transportco2/internal/api/response"
	"github.com/transportco2/transportco2/internal/auth"
)

// MeHandler handles the signed-in user's account endpoints.
type MeHandler struct {
	accounts *account.Service
	provider *auth.Provider
}

// NewMeHandler creates a new MeHandler.
func NewMeHandler(accounts *account.Service, provider *auth.Provider) *MeHandler {
	return &MeHandler{accounts: accounts, provider: provider}
}

// GetMe handles GET /v1/me - current user, refreshed from the backend.
func (h *MeHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}

	me, err := h.accounts.Me(r.Context(), sid)
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, me)
}

// UpdateMe handles PUT /v1/me - change name or password.
func (h *MeHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}

	var input account.UpdateInput
	if !decodeJSON(w, r, &input) {
		return
	}

	me, err := h.accounts.UpdateMe(r.Context(), sid, input)
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, me)
}

// SetTheme handles PUT /v1/me/theme - store the display theme preference.
func (h *MeHandler) SetTheme(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}

	var req auth.ThemeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	me, err := h.provider.SetTheme(r.Context(), sid, req.Theme)
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, me)
}
