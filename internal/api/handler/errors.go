package handler

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/transportco2/transportco2/internal/admin"
	"github.com/transportco2/transportco2/internal/api/response"
	"github.com/transportco2/transportco2/internal/auth"
	"github.com/transportco2/transportco2/internal/comparison"
	"github.com/transportco2/transportco2/internal/provider/co2api"
	"github.com/transportco2/transportco2/internal/session"
	"github.com/transportco2/transportco2/internal/simulation"
	"github.com/transportco2/transportco2/internal/validation"
)

// writeError maps a service error to a problem response. Anything not
// recognised is logged and answered with a 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if verr, ok := validation.AsError(err); ok {
		response.ValidationFailed(w, r, verr)
		return
	}

	var backendErr *co2api.Error
	switch {
	case errors.Is(err, comparison.ErrInvalidQuery):
		response.BadRequest(w, r, err.Error(), nil)
	case errors.Is(err, auth.ErrInvalidCredentials):
		response.Unauthorized(w, r, "invalid email or password")
	case errors.Is(err, auth.ErrSessionNotFound), errors.Is(err, session.ErrNotFound):
		response.Unauthorized(w, r, "session not found or expired")
	case errors.Is(err, session.ErrConflict):
		response.Conflict(w, r, "session was modified concurrently, retry the request")
	case errors.Is(err, auth.ErrAccountExists):
		response.Conflict(w, r, err.Error())
	case errors.Is(err, simulation.ErrTripNotFound):
		response.NotFound(w, r, "trip not found")
	case errors.Is(err, simulation.ErrTooManyTrips):
		response.Conflict(w, r, "trip list is full, remove a trip first")
	case errors.Is(err, admin.ErrTransportNotFound):
		response.NotFound(w, r, "transport not found")
	case co2api.IsUnavailable(err):
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("co2 backend unavailable")
		response.ServiceUnavailable(w, r, "the CO₂ backend is unavailable, try again later")
	case errors.Is(err, co2api.ErrUnauthorized):
		// The backend no longer accepts the session's token.
		response.Unauthorized(w, r, "session is no longer valid, sign in again")
	case errors.Is(err, co2api.ErrForbidden):
		response.Forbidden(w, r, "not allowed")
	case errors.Is(err, co2api.ErrNotFound):
		response.NotFound(w, r, "resource not found")
	case errors.Is(err, co2api.ErrConflict):
		response.Conflict(w, r, backendDetail(err, "conflicting resource"))
	case errors.Is(err, co2api.ErrRateLimited):
		response.TooManyRequests(w, r, "the CO₂ backend is rate limiting requests", nil)
	case errors.Is(err, co2api.ErrBadRequest):
		response.BadRequest(w, r, backendDetail(err, "rejected by the CO₂ backend"), nil)
	case errors.As(err, &backendErr):
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("unusable co2 backend response")
		response.BadGateway(w, r, "unexpected answer from the CO₂ backend")
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("request failed")
		response.InternalError(w, r, "internal server error")
	}
}

// backendDetail returns the backend's own message when it sent one.
func backendDetail(err error, fallback string) string {
	var be *co2api.Error
	if errors.As(err, &be) && be.Message != "" {
		return be.Message
	}
	return fallback
}
