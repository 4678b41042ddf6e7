// Package worker runs the transportco2 background jobs: probing the CO₂
// backend with popular city pairs and purging expired sessions.
package worker

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/transportco2/transportco2/internal/validation"
)

// ProbeTarget is a city pair searched by the probe job.
type ProbeTarget struct {
	// Name identifies the target in logs, metrics and events. Defaults to
	// "origin-destination".
	Name string `yaml:"name" validate:"max=100"`

	Origin      string `yaml:"origin" validate:"required,max=200"`
	Destination string `yaml:"destination" validate:"required,max=200"`

	// Priority determines probe order (lower = probed first).
	Priority int `yaml:"priority" validate:"min=0"`
}

// ProbeConfig holds configuration for the probe job.
type ProbeConfig struct {
	// Targets are the city pairs to probe. If empty, uses DefaultProbeTargets.
	Targets []ProbeTarget

	// Concurrency is the number of probes in flight.
	// Default: 3
	Concurrency int

	// Timeout bounds each probe.
	// Default: 30 seconds
	Timeout time.Duration
}

// DefaultProbeConfig returns the default probe configuration.
func DefaultProbeConfig() ProbeConfig {
	return ProbeConfig{
		Targets:     DefaultProbeTargets(),
		Concurrency: 3,
		Timeout:     30 * time.Second,
	}
}

// DefaultProbeTargets returns the city pairs most searched on the platform.
func DefaultProbeTargets() []ProbeTarget {
	return []ProbeTarget{
		{Name: "paris-lyon", Origin: "Paris", Destination: "Lyon", Priority: 1},
		{Name: "lyon-marseille", Origin: "Lyon", Destination: "Marseille", Priority: 1},
		{Name: "paris-lille", Origin: "Paris", Destination: "Lille", Priority: 1},
		{Name: "lyon-villeurbanne", Origin: "Lyon", Destination: "Villeurbanne", Priority: 2},
		{Name: "bordeaux-toulouse", Origin: "Bordeaux", Destination: "Toulouse", Priority: 2},
		{Name: "nantes-rennes", Origin: "Nantes", Destination: "Rennes", Priority: 3},
		{Name: "nice-marseille", Origin: "Nice", Destination: "Marseille", Priority: 3},
	}
}

type targetsFile struct {
	Targets []ProbeTarget `yaml:"targets"`
}

// LoadTargets reads probe targets from a YAML file of the form
//
//	targets:
//	  - origin: Paris
//	    destination: Lyon
//	    priority: 1
func LoadTargets(path string) ([]ProbeTarget, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading targets: %w", err)
	}
	return ParseTargets(raw)
}

// ParseTargets decodes and validates a targets document.
func ParseTargets(raw []byte) ([]ProbeTarget, error) {
	var doc targetsFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing targets: %w", err)
	}
	if len(doc.Targets) == 0 {
		return nil, fmt.Errorf("parsing targets: no targets defined")
	}

	seen := make(map[string]bool, len(doc.Targets))
	for i := range doc.Targets {
		t := &doc.Targets[i]
		if err := validation.Struct(t); err != nil {
			return nil, fmt.Errorf("target %d: %w", i, err)
		}
		if t.Name == "" {
			t.Name = t.Origin + "-" + t.Destination
		}
		if seen[t.Name] {
			return nil, fmt.Errorf("target %d: duplicate name %q", i, t.Name)
		}
		seen[t.Name] = true
	}
	return doc.Targets, nil
}

// Ordered returns the targets sorted by priority, keeping file order within
// a priority.
func (c ProbeConfig) Ordered() []ProbeTarget {
	out := make([]ProbeTarget, len(c.Targets))
	copy(out, c.Targets)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}
