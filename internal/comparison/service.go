// Package comparison answers "which way of getting from A to B emits the
// least CO₂": it fetches candidate options from the backend, ranks them and
// degrades to an empty result when the backend cannot answer.
package comparison

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/transportco2/transportco2/internal/events"
	"github.com/transportco2/transportco2/internal/metrics"
	"github.com/transportco2/transportco2/internal/ranking"
)

// ErrInvalidQuery indicates a missing origin or destination.
var ErrInvalidQuery = errors.New("origin and destination are required")

// maxPlaceLength bounds origin and destination.
const maxPlaceLength = 200

// Fetcher returns the raw candidate options between two places.
type Fetcher interface {
	SearchTransports(ctx context.Context, origin, destination string) ([]ranking.RawOption, error)
}

// Query is a comparison request.
type Query struct {
	Origin      string
	Destination string
	Sort        ranking.SortKey
}

// Comparison is a ranked answer to a Query.
type Comparison struct {
	Origin      string          `json:"origin"`
	Destination string          `json:"destination"`
	Sort        ranking.SortKey `json:"sort"`
	ranking.Result

	// Degraded is set when the backend failed and the result is empty for
	// that reason rather than because no option exists.
	Degraded bool `json:"degraded"`
}

// Config holds the service's collaborators.
type Config struct {
	Fetcher   Fetcher
	Publisher events.Publisher
	Metrics   *metrics.Metrics
	Logger    zerolog.Logger
}

// Service ranks transport options.
type Service struct {
	fetcher   Fetcher
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

// NewService creates a new comparison service.
func NewService(cfg Config) *Service {
	pub := cfg.Publisher
	if pub == nil {
		pub = events.Noop{}
	}
	return &Service{
		fetcher:   cfg.Fetcher,
		publisher: pub,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger.With().Str("component", "comparison").Logger(),
	}
}

// Compare ranks the options between origin and destination. The only error
// is ErrInvalidQuery; backend failures yield the empty result.
func (s *Service) Compare(ctx context.Context, origin, destination string) (ranking.Result, error) {
	c, err := s.Search(ctx, Query{Origin: origin, Destination: destination})
	if err != nil {
		return ranking.EmptyResult(), err
	}
	return c.Result, nil
}

// Search is Compare with a presentation order and the degraded flag.
func (s *Service) Search(ctx context.Context, q Query) (*Comparison, error) {
	origin := strings.TrimSpace(q.Origin)
	destination := strings.TrimSpace(q.Destination)
	if origin == "" || destination == "" || len(origin) > maxPlaceLength || len(destination) > maxPlaceLength {
		s.metrics.SearchCompleted(metrics.OutcomeInvalid, 0)
		return nil, ErrInvalidQuery
	}

	sortKey := q.Sort
	if sortKey == "" {
		sortKey = ranking.DefaultSortKey
	}

	out := &Comparison{
		Origin:      origin,
		Destination: destination,
		Sort:        sortKey,
	}

	raw, err := s.fetcher.SearchTransports(ctx, origin, destination)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("origin", origin).
			Str("destination", destination).
			Msg("transport search failed, returning empty result")
		s.metrics.SearchCompleted(metrics.OutcomeFetchFailed, 0)

		out.Result = ranking.EmptyResult()
		out.Degraded = true
		s.emit(ctx, out)
		return out, nil
	}

	result := ranking.Rank(raw)
	result.Options = ranking.SortOptions(result.Options, sortKey)
	out.Result = result

	outcome := metrics.OutcomeOK
	if result.Empty {
		outcome = metrics.OutcomeEmpty
	}
	s.metrics.SearchCompleted(outcome, len(result.Options))

	s.logger.Debug().
		Str("origin", origin).
		Str("destination", destination).
		Int("raw_count", len(raw)).
		Int("ranked_count", len(result.Options)).
		Msg("comparison ranked")

	s.emit(ctx, out)
	return out, nil
}

func (s *Service) emit(ctx context.Context, c *Comparison) {
	payload := events.SearchPerformed{
		Origin:      c.Origin,
		Destination: c.Destination,
		OptionCount: len(c.Options),
		MaxEmission: c.MaxEmission,
		Degraded:    c.Degraded,
	}
	if best, ok := c.EcoFriendly(); ok {
		co2 := best.CO2
		payload.BestMode = best.DisplayName()
		payload.BestCO2 = &co2
	}
	events.Emit(ctx, s.publisher, s.logger, events.TypeSearchPerformed, payload)
}
