package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/transportco2/transportco2/internal/metrics"
)

// ExpiredDeleter removes expired sessions. Implemented by every session.Store.
type ExpiredDeleter interface {
	DeleteExpired(ctx context.Context) (int, error)
}

// SessionPurger removes expired sessions from stores that do not expire
// them on their own.
type SessionPurger struct {
	store   ExpiredDeleter
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewSessionPurger creates a purger for store.
func NewSessionPurger(store ExpiredDeleter, m *metrics.Metrics, logger zerolog.Logger) *SessionPurger {
	return &SessionPurger{store: store, metrics: m, logger: logger}
}

// Purge runs one purge pass.
func (p *SessionPurger) Purge(ctx context.Context) (int, error) {
	removed, err := p.store.DeleteExpired(ctx)
	if err != nil {
		p.logger.Error().Err(err).Msg("session purge failed")
		return 0, err
	}
	p.metrics.SessionsPurged(removed)
	if removed > 0 {
		p.logger.Info().Int("removed", removed).Msg("expired sessions purged")
	}
	return removed, nil
}

// Every runs fn immediately and then on every tick until ctx is done.
func Every(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	fn(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}
