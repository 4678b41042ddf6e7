// Package handler provides HTTP handlers for the transportco2 API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/transportco2/transportco2/internal/api/models"
	"github.com/transportco2/transportco2/internal/api/response"
	"github.com/transportco2/transportco2/internal/provider/resilience"
)

// readinessTimeout bounds each dependency check.
const readinessTimeout = 2 * time.Second

// DependencyCheck probes one dependency for readiness, such as the session
// store's database.
type DependencyCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	upstreams *resilience.Registry
	checks    []DependencyCheck
	now       func() time.Time
}

// NewOpsHandler creates a new OpsHandler. upstreams may be nil.
func NewOpsHandler(version, buildTime string, upstreams *resilience.Registry, checks ...DependencyCheck) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		upstreams: upstreams,
		checks:    checks,
		now:       time.Now,
	}
}

// HealthCheck handles GET /v1/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.now()),
		Details: map[string]any{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ready - readiness check. A failed local
// dependency answers 503; an open upstream breaker only degrades the
// status, since comparisons still answer with an empty result.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	ready := models.Readiness{
		Status:       models.HealthStatusOK,
		Time:         models.Timestamp(h.now()),
		Dependencies: []models.DependencyStatus{},
	}

	for _, c := range h.checks {
		dep := models.DependencyStatus{Name: c.Name, Status: models.HealthStatusOK}

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		err := c.Check(ctx)
		cancel()
		if err != nil {
			dep.Status = models.HealthStatusFail
			dep.Message = err.Error()
			ready.Status = models.HealthStatusFail
		}
		ready.Dependencies = append(ready.Dependencies, dep)
	}

	if h.upstreams != nil {
		for _, u := range h.upstreams.All() {
			dep := models.DependencyStatus{
				Name:          u.Name,
				Status:        healthStatus(u.Status),
				BreakerState:  u.BreakerState,
				LastSuccessAt: timestampPtr(u.LastSuccessAt),
				LastFailureAt: timestampPtr(u.LastFailureAt),
				Message:       u.LastError,
			}
			if dep.Status != models.HealthStatusOK && ready.Status == models.HealthStatusOK {
				ready.Status = models.HealthStatusDegraded
			}
			ready.Dependencies = append(ready.Dependencies, dep)
		}
	}

	status := http.StatusOK
	if ready.Status == models.HealthStatusFail {
		status = http.StatusServiceUnavailable
	}
	response.JSON(w, r, status, ready)
}

func healthStatus(s resilience.Status) models.HealthStatus {
	switch s {
	case resilience.StatusHealthy:
		return models.HealthStatusOK
	case resilience.StatusDegraded:
		return models.HealthStatusDegraded
	default:
		return models.HealthStatusFail
	}
}

func timestampPtr(t *time.Time) *models.Timestamp {
	if t == nil {
		return nil
	}
	ts := models.Timestamp(*t)
	return &ts
}
