package response_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel/trace"

	"github.com/transportco2/transportco2/internal/api/middleware"
	"github.com/transportco2/transportco2/internal/api/models"
	"github.com/transportco2/transportco2/internal/api/response"
	"github.com/transportco2/transportco2/internal/validation"
)

// requestWithContext runs a request through the RequestID middleware so its
// context carries a request ID.
func requestWithContext(t *testing.T, method, path string) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()
	req := httptest.NewRequest(method, path, http.NoBody)

	var processedReq *http.Request
	handler := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		processedReq = r
	}))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	return processedReq, httptest.NewRecorder()
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) models.Problem {
	t.Helper()
	var problem models.Problem
	if err := json.NewDecoder(rec.Body).Decode(&problem); err != nil {
		t.Fatalf("failed to decode Problem response: %v", err)
	}
	return problem
}

func TestJSON_IncludesRequestID(t *testing.T) {
	req, rec := requestWithContext(t, http.MethodGet, "/v1/compare")

	response.JSON(rec, req, http.StatusOK, map[string]string{"message": "hello"})

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("expected X-Request-Id header to be set")
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %q", ct)
	}
}

func TestJSON_WithoutRequestID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/compare", http.NoBody)
	rec := httptest.NewRecorder()

	response.JSON(rec, req, http.StatusOK, map[string]string{"message": "hello"})

	if id := rec.Header().Get("X-Request-Id"); id != "" {
		t.Errorf("expected no X-Request-Id header when not in context, got %q", id)
	}
}

func TestJSON_NilData(t *testing.T) {
	req, rec := requestWithContext(t, http.MethodGet, "/v1/compare")

	response.JSON(rec, req, http.StatusOK, nil)

	if rec.Body.Len() != 0 {
		t.Errorf("expected empty body for nil data, got %q", rec.Body.String())
	}
}

func TestCreated_IncludesRequestIDAndLocation(t *testing.T) {
	req, rec := requestWithContext(t, http.MethodPost, "/v1/me/trips")

	response.Created(rec, req, "/v1/me/trips/trp_123", map[string]string{"id": "trp_123"})

	if rec.Code != http.StatusCreated {
		t.Errorf("expected status 201, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("expected X-Request-Id header to be set")
	}
	if loc := rec.Header().Get("Location"); loc != "/v1/me/trips/trp_123" {
		t.Errorf("expected Location /v1/me/trips/trp_123, got %q", loc)
	}
}

func TestNoContent_IncludesRequestID(t *testing.T) {
	req, rec := requestWithContext(t, http.MethodDelete, "/v1/me/trips/trp_1")

	response.NoContent(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected status 204, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("expected X-Request-Id header to be set")
	}
	if rec.Body.Len() != 0 {
		t.Errorf("expected empty body for 204, got %q", rec.Body.String())
	}
}

func TestTooManyRequests_IncludesRateLimitHeaders(t *testing.T) {
	req, rec := requestWithContext(t, http.MethodGet, "/v1/compare")

	response.TooManyRequests(rec, req, "rate limit exceeded", &response.RateLimitInfo{
		Limit:      100,
		Remaining:  0,
		ResetAt:    1704067200,
		RetryAfter: 60,
	})

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected status 429, got %d", rec.Code)
	}
	for header, want := range map[string]string{
		"X-RateLimit-Limit":     "100",
		"X-RateLimit-Remaining": "0",
		"X-RateLimit-Reset":     "1704067200",
		"Retry-After":           "60",
	} {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("expected %s %q, got %q", header, want, got)
		}
	}
}

func TestTooManyRequests_WithoutRateLimitInfo(t *testing.T) {
	req, rec := requestWithContext(t, http.MethodGet, "/v1/compare")

	response.TooManyRequests(rec, req, "rate limit exceeded", nil)

	if h := rec.Header().Get("X-RateLimit-Limit"); h != "" {
		t.Errorf("expected no X-RateLimit-Limit header, got %q", h)
	}
	if h := rec.Header().Get("Retry-After"); h != "" {
		t.Errorf("expected no Retry-After header, got %q", h)
	}
}

func TestBadRequest_IncludesRequestIDAndInstance(t *testing.T) {
	req, rec := requestWithContext(t, http.MethodPost, "/v1/me/trips")

	response.BadRequest(rec, req, "validation failed", []models.FieldError{{Field: "mode", Message: "mode is required"}})

	problem := decodeProblem(t, rec)
	if problem.RequestID == "" {
		t.Error("expected requestId to be set in Problem response")
	}
	if problem.Instance != "/v1/me/trips" {
		t.Errorf("expected instance /v1/me/trips, got %q", problem.Instance)
	}
	if problem.TraceID != "" {
		t.Errorf("expected no traceId without a span, got %q", problem.TraceID)
	}
}

func TestError_IncludesTraceID(t *testing.T) {
	req, rec := requestWithContext(t, http.MethodGet, "/v1/me")

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	req = req.WithContext(trace.ContextWithSpanContext(req.Context(), sc))

	response.Unauthorized(rec, req, "invalid token")

	problem := decodeProblem(t, rec)
	if problem.TraceID != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("expected traceId from span context, got %q", problem.TraceID)
	}
}

func TestValidationFailed_ListsFields(t *testing.T) {
	req, rec := requestWithContext(t, http.MethodPost, "/v1/auth/signup")

	response.ValidationFailed(rec, req, &validation.Error{Fields: []validation.FieldError{
		{Field: "email", Message: "must be a valid email address", Code: "EMAIL"},
		{Field: "password", Message: "must be at least 6 characters", Code: "MIN"},
	}})

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}
	problem := decodeProblem(t, rec)
	if len(problem.Errors) != 2 {
		t.Fatalf("expected 2 field errors, got %d", len(problem.Errors))
	}
	if problem.Errors[1].Code != "MIN" {
		t.Errorf("expected code MIN, got %q", problem.Errors[1].Code)
	}
}

func TestProblemHelpers_Status(t *testing.T) {
	tests := []struct {
		name  string
		write func(http.ResponseWriter, *http.Request)
		want  int
	}{
		{"unauthorized", func(w http.ResponseWriter, r *http.Request) { response.Unauthorized(w, r, "x") }, http.StatusUnauthorized},
		{"forbidden", func(w http.ResponseWriter, r *http.Request) { response.Forbidden(w, r, "x") }, http.StatusForbidden},
		{"not found", func(w http.ResponseWriter, r *http.Request) { response.NotFound(w, r, "x") }, http.StatusNotFound},
		{"conflict", func(w http.ResponseWriter, r *http.Request) { response.Conflict(w, r, "x") }, http.StatusConflict},
		{"internal", func(w http.ResponseWriter, r *http.Request) { response.InternalError(w, r, "x") }, http.StatusInternalServerError},
		{"bad gateway", func(w http.ResponseWriter, r *http.Request) { response.BadGateway(w, r, "x") }, http.StatusBadGateway},
		{"unavailable", func(w http.ResponseWriter, r *http.Request) { response.ServiceUnavailable(w, r, "x") }, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := requestWithContext(t, http.MethodGet, "/v1/test")
			tt.write(rec, req)

			if rec.Code != tt.want {
				t.Errorf("expected status %d, got %d", tt.want, rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
				t.Errorf("expected problem content type, got %q", ct)
			}
			if problem := decodeProblem(t, rec); problem.Status != tt.want {
				t.Errorf("expected problem status %d, got %d", tt.want, problem.Status)
			}
		})
	}
}

func TestGetRequestID_EmptyContext(t *testing.T) {
	if id := middleware.GetRequestID(context.Background()); id != "" {
		t.Errorf("expected empty request ID for background context, got %q", id)
	}
}
