// Package events publishes domain events (searches, simulations, logins) to
// a message broker for downstream consumers such as analytics.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/transportco2/transportco2/internal/config"
)

// Event types.
const (
	TypeSearchPerformed     = "search.performed"
	TypeSimulationSubmitted = "simulation.submitted"
	TypeUserLoggedIn        = "user.logged_in"
	TypeProbeCompleted      = "probe.completed"
)

// SubjectPrefix prefixes NATS subjects and AMQP routing keys.
const SubjectPrefix = "transportco2."

// Event is the envelope every published message uses.
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurredAt"`
	Data       json.RawMessage `json:"data"`
}

// New wraps data in an envelope with a fresh ID.
func New(eventType string, data any) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, fmt.Errorf("encoding %s event: %w", eventType, err)
	}
	return Event{
		ID:         "evt_" + uuid.New().String()[:22],
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	}, nil
}

// Subject returns the routing subject for the event, e.g.
// "transportco2.search.performed".
func (e Event) Subject() string {
	return SubjectPrefix + strings.ToLower(e.Type)
}

// Decode unmarshals the event payload into v.
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Data, v)
}

// Publisher sends events to a broker.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// SearchPerformed is the payload of TypeSearchPerformed.
type SearchPerformed struct {
	Origin      string   `json:"origin"`
	Destination string   `json:"destination"`
	OptionCount int      `json:"optionCount"`
	BestMode    string   `json:"bestMode,omitempty"`
	BestCO2     *float64 `json:"bestCo2,omitempty"`
	MaxEmission *float64 `json:"maxEmission,omitempty"`
	Degraded    bool     `json:"degraded"`
}

// SimulationSubmitted is the payload of TypeSimulationSubmitted.
type SimulationSubmitted struct {
	UserID        int64   `json:"userId"`
	Origin        string  `json:"origin"`
	Destination   string  `json:"destination"`
	Mode          string  `json:"mode"`
	Frequency     string  `json:"frequency"`
	DurationDays  int     `json:"durationDays"`
	TotalEmission float64 `json:"totalEmission"`
}

// UserLoggedIn is the payload of TypeUserLoggedIn.
type UserLoggedIn struct {
	UserID int64  `json:"userId"`
	Role   string `json:"role"`
}

// ProbeCompleted is the payload of TypeProbeCompleted.
type ProbeCompleted struct {
	Target      string  `json:"target"`
	OptionCount int     `json:"optionCount"`
	Success     bool    `json:"success"`
	DurationMs  int64   `json:"durationMs"`
	Error       string  `json:"error,omitempty"`
	BestCO2     float64 `json:"bestCo2,omitempty"`
}

// Emit builds and publishes an event, logging failures instead of returning
// them. Events are best effort; the request that caused one never fails
// because of it.
func Emit(ctx context.Context, p Publisher, logger zerolog.Logger, eventType string, data any) {
	if p == nil {
		return
	}
	e, err := New(eventType, data)
	if err != nil {
		logger.Error().Err(err).Str("event_type", eventType).Msg("failed to encode event")
		return
	}
	if err := p.Publish(ctx, e); err != nil {
		logger.Warn().Err(err).Str("event_type", eventType).Str("event_id", e.ID).Msg("failed to publish event")
	}
}

// Noop discards every event.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	err    error
}

// NewRecorder creates a Recorder. A non-nil err is returned from every Publish.
func NewRecorder(err error) *Recorder {
	return &Recorder{err: err}
}

func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, e)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Counted wraps a Publisher and reports each attempt to observe.
type Counted struct {
	Publisher
	observe func(eventType string, err error)
}

// WithObserver wraps p so every publish is reported to observe.
func WithObserver(p Publisher, observe func(eventType string, err error)) *Counted {
	return &Counted{Publisher: p, observe: observe}
}

func (c *Counted) Publish(ctx context.Context, e Event) error {
	err := c.Publisher.Publish(ctx, e)
	if c.observe != nil {
		c.observe(e.Type, err)
	}
	return err
}

// Open builds the publisher selected by cfg.
func Open(cfg config.EventsConfig, logger zerolog.Logger) (Publisher, error) {
	switch cfg.Driver {
	case "", "none":
		return Noop{}, nil
	case "nats":
		return NewNATSPublisher(NATSConfig{URL: cfg.NATSURL, Stream: cfg.Stream}, logger)
	case "amqp":
		return NewAMQPPublisher(AMQPConfig{URL: cfg.AMQPURL, Exchange: cfg.Exchange}, logger)
	default:
		return nil, fmt.Errorf("unknown events driver %q", cfg.Driver)
	}
}
