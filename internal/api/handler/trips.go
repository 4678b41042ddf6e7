package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/transportco2/transportco2/internal/api/models"
	"github.com/transportco2/transportco2/internal/api/response"
	"github.com/transportco2/transportco2/internal/simulation"
)

// TripsHandler handles the session's simulation trip list and submitted
// simulations.
type TripsHandler struct {
	simulations *simulation.Service
}

// NewTripsHandler creates a new TripsHandler.
func NewTripsHandler(simulations *simulation.Service) *TripsHandler {
	return &TripsHandler{simulations: simulations}
}

// ListTrips handles GET /v1/me/trips - list the trips in insertion order.
func (h *TripsHandler) ListTrips(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}

	trips, err := h.simulations.ListTrips(r.Context(), sid)
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.NewList(trips))
}

// AddTrip handles POST /v1/me/trips - append a trip.
func (h *TripsHandler) AddTrip(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}

	var input simulation.TripInput
	if !decodeJSON(w, r, &input) {
		return
	}

	trip, err := h.simulations.AddTrip(r.Context(), sid, input)
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.Created(w, r, "/v1/me/trips/"+trip.ID, trip)
}

// RemoveTrip handles DELETE /v1/me/trips/{tripId} - remove one trip.
func (h *TripsHandler) RemoveTrip(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}

	if err := h.simulations.RemoveTrip(r.Context(), sid, chi.URLParam(r, "tripId")); err != nil {
		writeError(w, r, err)
		return
	}

	response.NoContent(w, r)
}

// ClearTrips handles DELETE /v1/me/trips - empty the list.
func (h *TripsHandler) ClearTrips(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}

	if err := h.simulations.ClearTrips(r.Context(), sid); err != nil {
		writeError(w, r, err)
		return
	}

	response.NoContent(w, r)
}

// Summary handles GET /v1/me/trips/summary - cumulative emission series.
func (h *TripsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}

	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			response.BadRequest(w, r, "validation error", []models.FieldError{{
				Field:   "days",
				Message: "must be an integer",
				Code:    "INVALID",
			}})
			return
		}
		days = n
	}

	summary, err := h.simulations.Summary(r.Context(), sid, days)
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, summary)
}

// Submit handles POST /v1/simulations - store a simulation with the backend.
func (h *TripsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}

	var input simulation.SubmitInput
	if !decodeJSON(w, r, &input) {
		return
	}

	sim, err := h.simulations.Submit(r.Context(), sid, input)
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusCreated, sim)
}

// History handles GET /v1/simulations - the user's past simulations.
func (h *TripsHandler) History(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}

	sims, err := h.simulations.History(r.Context(), sid)
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.NewList(sims))
}
