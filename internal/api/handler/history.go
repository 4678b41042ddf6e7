package handler

import (
	"net/http"

	"github.com/transportco2/transportco2/internal/account"
	"github.com/transportco2/transportco2/internal/api/response"
)

// HistoryHandler handles the user's saved searches.
type HistoryHandler struct {
	accounts *account.Service
}

// NewHistoryHandler creates a new HistoryHandler.
func NewHistoryHandler(accounts *account.Service) *HistoryHandler {
	return &HistoryHandler{accounts: accounts}
}

// List handles GET /v1/history - searches and simulations, split by kind.
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}

	history, err := h.accounts.History(r.Context(), sid)
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, history)
}

// Save handles POST /v1/history - save a search.
func (h *HistoryHandler) Save(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}

	var input account.SaveInput
	if !decodeJSON(w, r, &input) {
		return
	}

	entry, err := h.accounts.SaveSearch(r.Context(), sid, input)
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusCreated, entry)
}

// Delete handles DELETE /v1/history/{id} - remove one entry.
func (h *HistoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}

	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}

	if err := h.accounts.DeleteHistory(r.Context(), sid, id); err != nil {
		writeError(w, r, err)
		return
	}

	response.NoContent(w, r)
}
