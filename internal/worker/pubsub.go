package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/ecopulse/ecopulse/internal/analytics"
	"github.com/ecopulse/ecopulse/internal/sensor"
)

// Ingester accepts encoded sensor readings.
type Ingester interface {
	SubmitJSON(ctx context.Context, data []byte) (*analytics.Ingestion, error)
}

// Decision is what to do with a delivered message.
type Decision int

const (
	// Ack removes the message from the subscription.
	Ack Decision = iota
	// Nack asks Pub/Sub to redeliver the message.
	Nack
)

// IngestionSubscriberConfig holds configuration for the Pub/Sub subscriber.
type IngestionSubscriberConfig struct {
	Client           *pubsub.Client
	SubscriptionName string

	// MaxOutstanding bounds unacknowledged messages held at once (default: 100).
	MaxOutstanding int

	// ProcessTimeout bounds the handling of one message (default: 30 seconds).
	ProcessTimeout time.Duration

	Ingester Ingester
	Logger   zerolog.Logger
}

// IngestionSubscriber feeds readings from a Pub/Sub subscription into the
// ingestion pipeline.
type IngestionSubscriber struct {
	subscriber       *pubsub.Subscriber
	subscriptionName string
	processTimeout   time.Duration
	ingester         Ingester
	logger           zerolog.Logger
}

// NewIngestionSubscriber creates an IngestionSubscriber. Client may be nil
// when only Handle is used.
func NewIngestionSubscriber(cfg IngestionSubscriberConfig) *IngestionSubscriber {
	if cfg.MaxOutstanding == 0 {
		cfg.MaxOutstanding = 100
	}
	if cfg.ProcessTimeout == 0 {
		cfg.ProcessTimeout = 30 * time.Second
	}

	s := &IngestionSubscriber{
		subscriptionName: cfg.SubscriptionName,
		processTimeout:   cfg.ProcessTimeout,
		ingester:         cfg.Ingester,
		logger:           cfg.Logger.With().Str("component", "ingestion-subscriber").Logger(),
	}
	if cfg.Client != nil {
		s.subscriber = cfg.Client.Subscriber(cfg.SubscriptionName)
		s.subscriber.ReceiveSettings.MaxOutstandingMessages = cfg.MaxOutstanding
		s.subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute
	}
	return s
}

// Serve receives messages until ctx ends.
func (s *IngestionSubscriber) Serve(ctx context.Context) error {
	if s.subscriber == nil {
		return errors.New("ingestion subscriber has no pubsub client")
	}

	s.logger.Info().
		Str("subscription", s.subscriptionName).
		Msg("starting pubsub ingestion")

	err := s.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		logger := s.logger.With().
			Str("message_id", msg.ID).
			Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
			Logger()

		if s.Handle(logger.WithContext(ctx), msg.Data) == Ack {
			msg.Ack()
			return
		}
		msg.Nack()
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("receiving from %s: %w", s.subscriptionName, err)
	}
	return ctx.Err()
}

// String names the service in supervisor logs.
func (s *IngestionSubscriber) String() string {
	return "ingestion-subscriber"
}

// Handle ingests one message payload. Invalid readings are acked so they
// are not redelivered; any other failure is nacked.
func (s *IngestionSubscriber) Handle(ctx context.Context, data []byte) Decision {
	logger := zerolog.Ctx(ctx)
	if logger.GetLevel() == zerolog.Disabled {
		logger = &s.logger
	}

	ctx, cancel := context.WithTimeout(ctx, s.processTimeout)
	defer cancel()

	result, err := s.ingester.SubmitJSON(ctx, data)
	if err != nil {
		if errors.Is(err, sensor.ErrInvalidReading) {
			logger.Warn().Err(err).Msg("dropping invalid reading")
			return Ack
		}
		logger.Error().Err(err).Msg("reading ingestion failed")
		return Nack
	}

	logger.Debug().
		Str("sensor_id", result.SensorID).
		Bool("duplicate", result.Duplicate).
		Msg("reading ingested")
	return Ack
}

// PubSubPublisher publishes readings to a topic, ordered per sensor.
type PubSubPublisher struct {
	publisher *pubsub.Publisher
}

// NewPubSubPublisher creates a PubSubPublisher for topic.
func NewPubSubPublisher(client *pubsub.Client, topic string) *PubSubPublisher {
	publisher := client.Publisher(topic)
	publisher.EnableMessageOrdering = true
	return &PubSubPublisher{publisher: publisher}
}

// Publish sends data and waits for the server to acknowledge it.
func (p *PubSubPublisher) Publish(ctx context.Context, sensorID string, data []byte) error {
	result := p.publisher.Publish(ctx, &pubsub.Message{
		Data:        data,
		OrderingKey: sensorID,
		Attributes:  map[string]string{"sensorId": sensorID},
	})
	if _, err := result.Get(ctx); err != nil {
		p.publisher.ResumePublish(sensorID)
		return fmt.Errorf("publishing reading for %s: %w", sensorID, err)
	}
	return nil
}

// Stop flushes pending messages.
func (p *PubSubPublisher) Stop() {
	p.publisher.Stop()
}
