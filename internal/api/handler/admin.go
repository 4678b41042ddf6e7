package handler

import (
	"net/http"
	"strconv"

	"github.com/transportco2/transportco2/internal/admin"
	"github.com/transportco2/transportco2/internal/api/models"
	"github.com/transportco2/transportco2/internal/api/response"
)

// AdminHandler handles the admin-only catalogue and account endpoints.
type AdminHandler struct {
	admin *admin.Service
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(svc *admin.Service) *AdminHandler {
	return &AdminHandler{admin: svc}
}

// ListTransports handles GET /v1/admin/transports - list the catalogue,
// optionally sorted by name or consumption.
func (h *AdminHandler) ListTransports(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}

	transports, err := h.admin.ListTransports(r.Context(), sid, r.URL.Query().Get("sort"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.NewList(transports))
}

// GetTransport handles GET /v1/admin/transports/{id}.
func (h *AdminHandler) GetTransport(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}
	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}

	transport, err := h.admin.GetTransport(r.Context(), sid, id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, transport)
}

// CreateTransport handles POST /v1/admin/transports.
func (h *AdminHandler) CreateTransport(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}

	var input admin.TransportInput
	if !decodeJSON(w, r, &input) {
		return
	}

	transport, err := h.admin.CreateTransport(r.Context(), sid, input)
	if err != nil {
		writeError(w, r, err)
		return
	}

	location := ""
	if transport.ID > 0 {
		location = "/v1/admin/transports/" + strconv.FormatInt(transport.ID, 10)
	}
	response.Created(w, r, location, transport)
}

// UpdateTransport handles PUT /v1/admin/transports/{id}.
func (h *AdminHandler) UpdateTransport(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}
	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}

	var input admin.TransportInput
	if !decodeJSON(w, r, &input) {
		return
	}

	transport, err := h.admin.UpdateTransport(r.Context(), sid, id, input)
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, transport)
}

// DeleteTransport handles DELETE /v1/admin/transports/{id}.
func (h *AdminHandler) DeleteTransport(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}
	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}

	if err := h.admin.DeleteTransport(r.Context(), sid, id); err != nil {
		writeError(w, r, err)
		return
	}

	response.NoContent(w, r)
}

// ListUsers handles GET /v1/admin/users.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}

	users, err := h.admin.ListUsers(r.Context(), sid)
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.NewList(users))
}

// CreateUser handles POST /v1/admin/users.
func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}

	var input admin.CreateUserInput
	if !decodeJSON(w, r, &input) {
		return
	}

	user, err := h.admin.CreateUser(r.Context(), sid, input)
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusCreated, user)
}

// UpdateUser handles PUT /v1/admin/users/{id}.
func (h *AdminHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}
	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}

	var input admin.UpdateUserInput
	if !decodeJSON(w, r, &input) {
		return
	}

	user, err := h.admin.UpdateUser(r.Context(), sid, id, input)
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, user)
}

// DeleteUser handles DELETE /v1/admin/users/{id}. Admins cannot delete
// their own account.
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}
	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}

	if err := h.admin.DeleteUser(r.Context(), sid, id); err != nil {
		writeError(w, r, err)
		return
	}

	response.NoContent(w, r)
}
