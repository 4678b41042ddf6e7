package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transportco2/transportco2/internal/api/models"
	"github.com/transportco2/transportco2/internal/provider/resilience"
)

func readiness(t *testing.T, h *OpsHandler) (int, models.Readiness) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ReadinessCheck(rec, httptest.NewRequest(http.MethodGet, "/v1/ready", http.NoBody))

	var ready models.Readiness
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ready))
	return rec.Code, ready
}

func TestOpsHandler_HealthCheck(t *testing.T) {
	h := NewOpsHandler("1.2.3", "2024-01-01T00:00:00Z", nil)

	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/v1/health", http.NoBody))

	assert.Equal(t, http.StatusOK, rec.Code)
	var health models.Health
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, models.HealthStatusOK, health.Status)
	assert.Equal(t, "1.2.3", health.Details["version"])
}

func TestOpsHandler_Ready(t *testing.T) {
	registry := resilience.NewRegistry()
	resilience.NewClient(resilience.ClientConfig{Name: "co2api", Registry: registry})

	h := NewOpsHandler("test", "", registry, DependencyCheck{
		Name:  "sessions",
		Check: func(context.Context) error { return nil },
	})

	code, ready := readiness(t, h)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, models.HealthStatusOK, ready.Status)
	require.Len(t, ready.Dependencies, 2)
	assert.Equal(t, "sessions", ready.Dependencies[0].Name)
	assert.Equal(t, "co2api", ready.Dependencies[1].Name)
}

func TestOpsHandler_FailingDependency(t *testing.T) {
	h := NewOpsHandler("test", "", nil, DependencyCheck{
		Name:  "postgres",
		Check: func(context.Context) error { return errors.New("connection refused") },
	})

	code, ready := readiness(t, h)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, models.HealthStatusFail, ready.Status)
	require.Len(t, ready.Dependencies, 1)
	assert.Equal(t, "connection refused", ready.Dependencies[0].Message)
}

func TestOpsHandler_CheckIsBounded(t *testing.T) {
	h := NewOpsHandler("test", "", nil, DependencyCheck{
		Name: "slow",
		Check: func(ctx context.Context) error {
			deadline, ok := ctx.Deadline()
			require.True(t, ok)
			assert.WithinDuration(t, time.Now().Add(readinessTimeout), deadline, time.Second)
			return nil
		},
	})

	code, _ := readiness(t, h)
	assert.Equal(t, http.StatusOK, code)
}

func TestOpsHandler_OpenBreakerDegrades(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	registry := resilience.NewRegistry()
	cfg := resilience.DefaultClientConfig("co2api")
	cfg.MaxRetries = 0
	cfg.Breaker.MinRequests = 1
	cfg.Breaker.OpenFor = time.Minute
	cfg.Registry = registry
	client := resilience.NewClient(cfg)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, http.NoBody)
	require.NoError(t, err)
	if resp, _ := client.Do(req); resp != nil {
		resp.Body.Close()
	}

	h := NewOpsHandler("test", "", registry)

	code, ready := readiness(t, h)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, models.HealthStatusDegraded, ready.Status)
	require.Len(t, ready.Dependencies, 1)
	assert.Equal(t, models.HealthStatusFail, ready.Dependencies[0].Status)
	assert.Equal(t, "open", ready.Dependencies[0].BreakerState)
}
