package resilience_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transportco2/transportco2/internal/provider/resilience"
)

func TestRegistry_RegistersClient(t *testing.T) {
	registry := resilience.NewRegistry()
	cfg := resilience.DefaultClientConfig("co2api")
	cfg.Registry = registry

	resilience.NewClient(cfg)

	health := registry.Health("co2api")
	require.NotNil(t, health)
	assert.Equal(t, resilience.StatusHealthy, health.Status)
	assert.Equal(t, "closed", health.BreakerState)
	assert.Nil(t, health.LastSuccessAt)
	assert.Nil(t, registry.Health("unknown"))
}

func TestRegistry_RecordsOutcomes(t *testing.T) {
	registry := resilience.NewRegistry()
	cfg := resilience.DefaultClientConfig("co2api")
	cfg.Registry = registry
	resilience.NewClient(cfg)

	registry.RecordSuccess("co2api")
	registry.RecordFailure("co2api", errors.New("connection refused"))

	health := registry.Health("co2api")
	require.NotNil(t, health)
	require.NotNil(t, health.LastSuccessAt)
	require.NotNil(t, health.LastFailureAt)
	assert.WithinDuration(t, time.Now(), *health.LastFailureAt, time.Second)
	assert.Equal(t, "connection refused", health.LastError)
}

func TestRegistry_ClientReportsCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	registry := resilience.NewRegistry()
	cfg := fastConfig("co2api", 0)
	cfg.Registry = registry
	client := resilience.NewClient(cfg)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, http.NoBody)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	health := registry.Health("co2api")
	require.NotNil(t, health)
	assert.NotNil(t, health.LastSuccessAt)
	assert.Nil(t, health.LastFailureAt)
}

func TestRegistry_Overall(t *testing.T) {
	registry := resilience.NewRegistry()
	assert.Equal(t, resilience.StatusHealthy, registry.Overall())

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := fastConfig("flaky", 0)
	cfg.Breaker.MinRequests = 1
	cfg.Breaker.OpenFor = time.Minute
	cfg.Registry = registry
	client := resilience.NewClient(cfg)

	healthy := fastConfig("steady", 0)
	healthy.Registry = registry
	resilience.NewClient(healthy)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, http.NoBody)
	require.NoError(t, err)
	resp, _ := client.Do(req)
	if resp != nil {
		resp.Body.Close()
	}

	assert.Equal(t, resilience.StatusUnhealthy, registry.Overall())

	all := registry.All()
	require.Len(t, all, 2)
	assert.Equal(t, "flaky", all[0].Name)
	assert.Equal(t, "steady", all[1].Name)
}
