package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// Job types accepted on the subscription.
const (
	JobProbe         = "backend_probe"
	JobHealthCheck   = "health_check"
	JobPurgeSessions = "purge_sessions"
)

// errUnknownJob marks messages that can never succeed.
var errUnknownJob = errors.New("unknown job type")

// JobMessage is the payload of a job message.
type JobMessage struct {
	JobType string `json:"job_type"`
	// Targets restricts a probe to the named targets. Empty probes all.
	Targets []string `json:"targets,omitempty"`
}

// Jobs runs the worker's jobs by type. Purger may be nil when the session
// store expires entries on its own.
type Jobs struct {
	Probe  *ProbeJob
	Purger *SessionPurger
	Logger zerolog.Logger
}

// Handle runs one job message and reports whether it should be acknowledged.
// Malformed and unknown messages are acknowledged so they are not redelivered.
func (j *Jobs) Handle(ctx context.Context, data []byte) (ack bool, err error) {
	var msg JobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return true, fmt.Errorf("parsing job message: %w", err)
	}

	switch msg.JobType {
	case JobProbe:
		result := j.Probe.RunTargets(ctx, msg.Targets)
		if !result.Healthy() {
			return false, fmt.Errorf("too many probe failures: %d/%d", result.Failed, result.TotalTargets)
		}
	case JobHealthCheck:
		result := j.Probe.RunTargets(ctx, []string{j.Probe.config.Ordered()[0].Name})
		if result.Failed > 0 {
			return false, fmt.Errorf("health check failed: %s", result.Errors[0].Error)
		}
	case JobPurgeSessions:
		if j.Purger == nil {
			return true, nil
		}
		if _, err := j.Purger.Purge(ctx); err != nil {
			return false, err
		}
	default:
		return true, fmt.Errorf("%w %q", errUnknownJob, msg.JobType)
	}
	return true, nil
}

// PubSubHandler receives job messages from a Pub/Sub subscription.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	jobs             *Jobs
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Jobs             *Jobs
	Logger           zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)
	subscriber.ReceiveSettings.MaxOutstandingMessages = 10
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		jobs:             cfg.Jobs,
		logger:           cfg.Logger,
	}, nil
}

// Start processes messages until ctx is done.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	startTime := time.Now()

	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	logger.Debug().Msg("received pubsub message")

	ack, err := h.jobs.Handle(ctx, msg.Data)
	switch {
	case err != nil && ack:
		logger.Warn().Err(err).Msg("dropping job message")
	case err != nil:
		logger.Error().Err(err).Msg("job failed")
	default:
		logger.Info().Dur("duration", time.Since(startTime)).Msg("job completed")
	}

	if ack {
		msg.Ack()
	} else {
		msg.Nack()
	}
}
