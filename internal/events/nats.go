package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// NATSConfig configures the JetStream publisher.
type NATSConfig struct {
	URL    string
	Stream string
	MaxAge time.Duration
}

// NATSPublisher publishes events to a JetStream stream.
type NATSPublisher struct {
	conn   *nats.Conn
	js     nats.JetStreamContext
	logger zerolog.Logger
}

// NewNATSPublisher connects to NATS and makes sure the stream exists.
func NewNATSPublisher(cfg NATSConfig, logger zerolog.Logger) (*NATSPublisher, error) {
	logger = logger.With().Str("component", "events").Str("driver", "nats").Logger()

	conn, err := nats.Connect(cfg.URL,
		nats.Name("transportco2"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info().Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	stream := streamConfig(cfg)
	if _, err := js.AddStream(&stream); err != nil {
		// Stream may already exist, try update
		if _, err := js.UpdateStream(&stream); err != nil {
			conn.Close()
			return nil, fmt.Errorf("ensure stream %s: %w", stream.Name, err)
		}
	}

	logger.Info().Str("stream", stream.Name).Msg("nats publisher ready")
	return &NATSPublisher{conn: conn, js: js, logger: logger}, nil
}

func streamConfig(cfg NATSConfig) nats.StreamConfig {
	name := cfg.Stream
	if name == "" {
		name = "TRANSPORTCO2"
	}
	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = 7 * 24 * time.Hour
	}
	return nats.StreamConfig{
		Name:      name,
		Subjects:  []string{SubjectPrefix + ">"},
		Retention: nats.LimitsPolicy,
		MaxAge:    maxAge,
		Storage:   nats.FileStorage,
	}
}

// Publish sends the event and waits for the JetStream ack. The event ID is
// used as the message ID so retried publishes are deduplicated.
func (p *NATSPublisher) Publish(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	if _, err := p.js.Publish(e.Subject(), data, nats.Context(ctx), nats.MsgId(e.ID)); err != nil {
		return fmt.Errorf("publishing %s: %w", e.Type, err)
	}
	return nil
}

// Close drains and closes the connection.
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}
