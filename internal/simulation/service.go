package simulation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/transportco2/transportco2/internal/events"
	"github.com/transportco2/transportco2/internal/metrics"
	"github.com/transportco2/transportco2/internal/provider/co2api"
	"github.com/transportco2/transportco2/internal/session"
	"github.com/transportco2/transportco2/internal/validation"
)

// Backend is the part of the CO₂ backend client the service needs.
type Backend interface {
	SubmitSimulation(ctx context.Context, token string, sim co2api.Simulation) error
	ListSimulations(ctx context.Context, token string, userID int64) ([]co2api.Simulation, error)
}

// Config holds the service's collaborators.
type Config struct {
	Store     session.Store
	Backend   Backend
	Publisher events.Publisher
	Metrics   *metrics.Metrics
	Logger    zerolog.Logger
}

// Service manages trip lists and simulations.
type Service struct {
	store     session.Store
	backend   Backend
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	now       func() time.Time
}

// NewService creates a new simulation service.
func NewService(cfg Config) *Service {
	pub := cfg.Publisher
	if pub == nil {
		pub = events.Noop{}
	}
	return &Service{
		store:     cfg.Store,
		backend:   cfg.Backend,
		publisher: pub,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger.With().Str("component", "simulation").Logger(),
		now:       time.Now,
	}
}

// AddTrip appends a trip to the session's list.
func (s *Service) AddTrip(ctx context.Context, sessionID string, in TripInput) (*session.Trip, error) {
	in.Origin = strings.TrimSpace(in.Origin)
	in.Destination = strings.TrimSpace(in.Destination)
	in.Mode = strings.TrimSpace(in.Mode)
	if in.Frequency == "" {
		in.Frequency = session.FrequencyDaily
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	trip := session.Trip{
		ID:          newTripID(),
		Origin:      in.Origin,
		Destination: in.Destination,
		Mode:        in.Mode,
		Label:       strings.TrimSpace(in.Label),
		CO2:         in.CO2,
		DistanceKm:  in.DistanceKm,
		Frequency:   in.Frequency,
		AddedAt:     s.now().UTC(),
	}

	_, err := session.Mutate(ctx, s.store, sessionID, func(sess *session.Session) error {
		if len(sess.Trips) >= MaxTrips {
			return ErrTooManyTrips
		}
		sess.Trips = append(sess.Trips, trip)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.TripChanged("add")
	return &trip, nil
}

// RemoveTrip deletes one trip from the session's list.
func (s *Service) RemoveTrip(ctx context.Context, sessionID, tripID string) error {
	_, err := session.Mutate(ctx, s.store, sessionID, func(sess *session.Session) error {
		for i, t := range sess.Trips {
			if t.ID == tripID {
				sess.Trips = append(sess.Trips[:i], sess.Trips[i+1:]...)
				return nil
			}
		}
		return ErrTripNotFound
	})
	if err != nil {
		return err
	}

	s.metrics.TripChanged("remove")
	return nil
}

// ListTrips returns the session's trips in insertion order.
func (s *Service) ListTrips(ctx context.Context, sessionID string) ([]session.Trip, error) {
	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Trips, nil
}

// ClearTrips empties the session's list.
func (s *Service) ClearTrips(ctx context.Context, sessionID string) error {
	_, err := session.Mutate(ctx, s.store, sessionID, func(sess *session.Session) error {
		sess.Trips = []session.Trip{}
		return nil
	})
	if err != nil {
		return err
	}

	s.metrics.TripChanged("clear")
	return nil
}

// Summary projects the session's trips over days days.
func (s *Service) Summary(ctx context.Context, sessionID string, days int) (*Summary, error) {
	trips, err := s.ListTrips(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return Summarize(trips, days)
}

// Submit stores a simulation with the backend under the session's user.
func (s *Service) Submit(ctx context.Context, sessionID string, in SubmitInput) (*co2api.Simulation, error) {
	in.Origin = strings.TrimSpace(in.Origin)
	in.Destination = strings.TrimSpace(in.Destination)
	in.Mode = strings.TrimSpace(in.Mode)
	if in.Frequency == "" {
		in.Frequency = session.FrequencyDaily
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	sim := co2api.Simulation{
		UserID:        sess.User.ID,
		Origin:        in.Origin,
		Destination:   in.Destination,
		Mode:          in.Mode,
		Frequency:     string(in.Frequency),
		DurationDays:  in.DurationDays,
		TotalEmission: TotalEmission(in.CO2, in.Frequency, in.DurationDays),
	}

	if err := s.backend.SubmitSimulation(ctx, sess.UpstreamToken, sim); err != nil {
		s.metrics.SimulationSubmitted(metrics.OutcomeFailed)
		return nil, fmt.Errorf("submitting simulation: %w", err)
	}
	s.metrics.SimulationSubmitted(metrics.OutcomeOK)

	s.logger.Info().
		Int64("user_id", sess.User.ID).
		Str("mode", sim.Mode).
		Str("frequency", sim.Frequency).
		Int("duration_days", sim.DurationDays).
		Float64("total_emission", sim.TotalEmission).
		Msg("simulation submitted")

	events.Emit(ctx, s.publisher, s.logger, events.TypeSimulationSubmitted, events.SimulationSubmitted{
		UserID:        sess.User.ID,
		Origin:        sim.Origin,
		Destination:   sim.Destination,
		Mode:          sim.Mode,
		Frequency:     sim.Frequency,
		DurationDays:  sim.DurationDays,
		TotalEmission: sim.TotalEmission,
	})

	return &sim, nil
}

// History returns the simulations the backend stored for the session's user.
func (s *Service) History(ctx context.Context, sessionID string) ([]co2api.Simulation, error) {
	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	sims, err := s.backend.ListSimulations(ctx, sess.UpstreamToken, sess.User.ID)
	if err != nil {
		return nil, fmt.Errorf("listing simulations: %w", err)
	}
	return sims, nil
}

func newTripID() string {
	return TripIDPrefix + uuid.New().String()[:22]
}
