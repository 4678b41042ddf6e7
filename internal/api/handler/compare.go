package handler

import (
	"net/http"

	"github.com/transportco2/transportco2/internal/api/models"
	"github.com/transportco2/transportco2/internal/api/response"
	"github.com/transportco2/transportco2/internal/comparison"
	"github.com/transportco2/transportco2/internal/ranking"
)

// CompareHandler serves transport comparisons.
type CompareHandler struct {
	comparisons *comparison.Service
}

// NewCompareHandler creates a new CompareHandler.
func NewCompareHandler(comparisons *comparison.Service) *CompareHandler {
	return &CompareHandler{comparisons: comparisons}
}

// Compare handles GET /v1/compare - rank the transport options between two places.
// A backend outage yields an empty, degraded result rather than an error.
func (h *CompareHandler) Compare(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	sortKey, ok := ranking.ParseSortKey(q.Get("sort"))
	if !ok {
		response.BadRequest(w, r, "validation error", []models.FieldError{{
			Field:   "sort",
			Message: "must be one of co2, name, distance, duration",
			Code:    "ONEOF",
		}})
		return
	}

	result, err := h.comparisons.Search(r.Context(), comparison.Query{
		Origin:      q.Get("origin"),
		Destination: q.Get("destination"),
		Sort:        sortKey,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, result)
}
