// Package resilience wraps outbound HTTP calls to the CO₂ backend with a
// circuit breaker, per-request timeouts and bounded retries.
package resilience

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// BreakerConfig configures the circuit breaker guarding one upstream.
type BreakerConfig struct {
	// Name identifies the breaker in logs and health reports.
	Name string

	// HalfOpenRequests is how many probes are let through while half-open.
	HalfOpenRequests uint32

	// Window clears the failure counts periodically while closed. Zero keeps
	// counts until the state changes.
	Window time.Duration

	// OpenFor is how long the breaker stays open before probing again.
	OpenFor time.Duration

	// MinRequests and FailureRatio decide when the breaker trips.
	MinRequests  uint32
	FailureRatio float64

	// Logger receives state transitions. A disabled logger is used when nil.
	Logger *zerolog.Logger
}

// DefaultBreakerConfig trips after five requests with half of them failing and
// stays open for thirty seconds.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		HalfOpenRequests: 1,
		OpenFor:          30 * time.Second,
		MinRequests:      5,
		FailureRatio:     0.5,
	}
}

// tripFunc builds the ReadyToTrip callback for cfg.
func (cfg BreakerConfig) tripFunc() func(gobreaker.Counts) bool {
	minRequests := cfg.MinRequests
	if minRequests == 0 {
		minRequests = 5
	}
	ratio := cfg.FailureRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 0.5
	}
	return func(counts gobreaker.Counts) bool {
		if counts.Requests < minRequests {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) >= ratio
	}
}

// NewBreaker creates a typed circuit breaker from cfg.
func NewBreaker[T any](cfg BreakerConfig) *gobreaker.CircuitBreaker[T] {
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenRequests,
		Interval:    cfg.Window,
		Timeout:     cfg.OpenFor,
		ReadyToTrip: cfg.tripFunc(),
		OnStateChange: func(name string, from, to gobreaker.State) {
			event := logger.Info()
			if to == gobreaker.StateOpen {
				event = logger.Warn()
			}
			event.
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	})
}
