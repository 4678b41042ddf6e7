package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

var (
	errNotConfirmed  = errors.New("broker did not confirm the publish")
	errAlreadyClosed = errors.New("already closed: not connected to the server")
)

// AMQPConfig configures the RabbitMQ publisher.
type AMQPConfig struct {
	URL      string
	Exchange string
}

// AMQPPublisher publishes events to a durable topic exchange with publisher
// confirms. A dropped connection is re-dialled on the next publish.
type AMQPPublisher struct {
	cfg    AMQPConfig
	logger zerolog.Logger

	m          sync.Mutex
	connection *amqp.Connection
	channel    *amqp.Channel
	closed     bool
}

// NewAMQPPublisher connects to the broker and declares the exchange.
func NewAMQPPublisher(cfg AMQPConfig, logger zerolog.Logger) (*AMQPPublisher, error) {
	p := &AMQPPublisher{
		cfg:    cfg,
		logger: logger.With().Str("component", "events").Str("driver", "amqp").Logger(),
	}

	p.m.Lock()
	defer p.m.Unlock()
	if err := p.connect(); err != nil {
		return nil, err
	}

	p.logger.Info().Str("exchange", cfg.Exchange).Msg("amqp publisher ready")
	return p, nil
}

// connect dials, opens a confirm-mode channel and declares the exchange.
// Callers hold p.m.
func (p *AMQPPublisher) connect() error {
	conn, err := amqp.Dial(p.cfg.URL)
	if err != nil {
		return fmt.Errorf("amqp dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("amqp channel: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		_ = conn.Close()
		return fmt.Errorf("amqp confirm mode: %w", err)
	}

	err = ch.ExchangeDeclare(
		p.cfg.Exchange, // name
		"topic",        // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("declare exchange %s: %w", p.cfg.Exchange, err)
	}

	p.connection = conn
	p.channel = ch
	return nil
}

// Publish sends the event and waits for the broker's confirmation.
func (p *AMQPPublisher) Publish(ctx context.Context, e Event) error {
	msg, err := publishing(e)
	if err != nil {
		return err
	}

	p.m.Lock()
	if p.closed {
		p.m.Unlock()
		return errAlreadyClosed
	}
	if p.channel == nil || p.channel.IsClosed() {
		p.logger.Warn().Msg("amqp channel closed, reconnecting")
		if err := p.connect(); err != nil {
			p.m.Unlock()
			return err
		}
	}
	ch := p.channel
	p.m.Unlock()

	confirm, err := ch.PublishWithDeferredConfirmWithContext(
		ctx,
		p.cfg.Exchange, // exchange
		routingKey(e),  // routing key
		false,          // mandatory
		false,          // immediate
		msg,
	)
	if err != nil {
		return fmt.Errorf("publishing %s: %w", e.Type, err)
	}

	ok, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("waiting for confirm: %w", err)
	}
	if !ok {
		return errNotConfirmed
	}

	p.logger.Debug().Str("event_id", e.ID).Uint64("delivery_tag", confirm.DeliveryTag).Msg("publish confirmed")
	return nil
}

// Close cleanly shuts down the channel and connection.
func (p *AMQPPublisher) Close() error {
	p.m.Lock()
	defer p.m.Unlock()

	if p.closed {
		return errAlreadyClosed
	}
	p.closed = true

	if p.channel != nil {
		if err := p.channel.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			return err
		}
	}
	if p.connection != nil {
		if err := p.connection.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			return err
		}
	}
	return nil
}

func routingKey(e Event) string {
	return e.Subject()
}

func publishing(e Event) (amqp.Publishing, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("encoding event: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    e.ID,
		Timestamp:    e.OccurredAt,
		Type:         e.Type,
		AppId:        "transportco2",
		Body:         body,
	}, nil
}
