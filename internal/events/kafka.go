package events

import (
	"context"
	"time"

	"fitbook/pkg/config"
	"fitbook/pkg/kafka"
	kafka_config "fitbook/pkg/kafka/config"
	kafka_middleware "fitbook/pkg/kafka/middleware"
	"fitbook/pkg/logger"
	"fitbook/pkg/middleware"
)

const publishTimeout = 5 * time.Second

// MessagePublisher is satisfied by *kafka.Producer.
type MessagePublisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
	Close() error
}

type kafkaPublisher struct {
	producer MessagePublisher
	source   string
	log      *logger.Logger
}

// NewPublisher returns a Kafka-backed publisher when events are enabled and a
// no-op otherwise.
func NewPublisher(cfg *config.Config, source string) (Publisher, error) {
	if !cfg.EventsEnabled {
		cfg.Log.Info("Event publishing disabled")
		return NewNoopPublisher(), nil
	}

	kcfg, err := kafka_config.Load()
	if err != nil {
		return nil, err
	}
	kcfg.LogConfiguration(cfg.Log)

	producer, err := kafka.NewProducer(kcfg, cfg.EventsTopic, cfg.EventsDLQ, cfg.Log)
	if err != nil {
		return nil, err
	}
	if kcfg.EnableMiddleware {
		producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
	}

	return NewKafkaPublisher(producer, source, cfg.Log), nil
}

func NewKafkaPublisher(producer MessagePublisher, source string, log *logger.Logger) Publisher {
	return &kafkaPublisher{
		producer: producer,
		source:   source,
		log:      log,
	}
}

// Publish is keyed by session id so every event for one session lands on the
// same partition in commit order. The write is detached from the request
// context so a client disconnect does not drop an already committed change.
func (p *kafkaPublisher) Publish(ctx context.Context, event Event) {
	msg, err := kafka.NewMessage().
		WithKey(event.SessionID).
		WithEventType(event.Type).
		WithSource(p.source).
		WithSchemaVersion(SchemaVersion).
		WithCorrelationID(middleware.RequestIDFromContext(ctx)).
		WithTimestamp(event.OccurredAt).
		WithValue(event).
		Build()
	if err != nil {
		p.log.Error("Failed to build event message", "event_type", event.Type, "session_id", event.SessionID, "error", err)
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := p.producer.Publish(pubCtx, msg); err != nil {
		p.log.Warn("Failed to publish event",
			"event_type", event.Type,
			"event_id", msg.GetEventID(),
			"session_id", event.SessionID,
			"error", err,
		)
	}
}

func (p *kafkaPublisher) Close() error {
	return p.producer.Close()
}
