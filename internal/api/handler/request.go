package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/transportco2/transportco2/internal/api/middleware"
	"github.com/transportco2/transportco2/internal/api/models"
	"github.com/transportco2/transportco2/internal/api/response"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// decodeJSON reads the request body into v, writing a 400 and returning
// false when the body is missing or malformed.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			response.BadRequest(w, r, "request body is required", nil)
		case errors.As(err, &maxErr):
			response.BadRequest(w, r, "request body is too large", nil)
		default:
			response.BadRequest(w, r, "invalid JSON body", nil)
		}
		return false
	}
	return true
}

// sessionID returns the caller's session, writing a 401 when the request
// did not pass through the auth middleware.
func sessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	sid := middleware.GetSessionID(r.Context())
	if sid == "" {
		response.Unauthorized(w, r, "user not authenticated")
		return "", false
	}
	return sid, true
}

// int64Param parses a positive integer path parameter.
func int64Param(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(w, r, "invalid path parameter", []models.FieldError{{
			Field:   name,
			Message: "must be a positive integer",
			Code:    "INVALID",
		}})
		return 0, false
	}
	return id, true
}
