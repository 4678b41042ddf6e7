package models

// Health is the liveness response.
type Health struct {
	Status  HealthStatus   `json:"status"`
	Time    Timestamp      `json:"time"`
	Details map[string]any `json:"details,omitempty"`
}

// Readiness reports whether the service can serve traffic and why not.
type Readiness struct {
	Status       HealthStatus       `json:"status"`
	Time         Timestamp          `json:"time"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// DependencyStatus is the state of one dependency (session store, CO₂ backend).
type DependencyStatus struct {
	Name          string       `json:"name"`
	Status        HealthStatus `json:"status"`
	BreakerState  string       `json:"breakerState,omitempty"`
	LastSuccessAt *Timestamp   `json:"lastSuccessAt,omitempty"`
	LastFailureAt *Timestamp   `json:"lastFailureAt,omitempty"`
	Message       string       `json:"message,omitempty"`
}
