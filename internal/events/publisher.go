// Package events connects the booking service to the message bus.
package events

import (
	"context"

	"go.uber.org/zap"

	"github.com/thairide/service-booking/internal/platform/kafka"
)

// EventSource is the CloudEvents source of everything this service publishes.
const EventSource = "service-booking"

// KafkaPublisher wraps domain payloads in CloudEvents and writes them to Kafka.
type KafkaPublisher struct {
	producer *kafka.Producer
}

// NewKafkaPublisher creates a new KafkaPublisher.
func NewKafkaPublisher(producer *kafka.Producer) *KafkaPublisher {
	return &KafkaPublisher{producer: producer}
}

// Publish sends data as eventType on topic, keyed by subject.
func (p *KafkaPublisher) Publish(ctx context.Context, topic, eventType, subject string, data interface{}) error {
	ce, err := kafka.NewCloudEvent(EventSource, eventType, data)
	if err != nil {
		return err
	}
	ce.Subject = subject
	return p.producer.PublishEvent(ctx, topic, ce)
}

// LogPublisher only logs events. It is used when no brokers are configured.
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher creates a new LogPublisher.
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Publish logs the event type and subject.
func (p *LogPublisher) Publish(_ context.Context, topic, eventType, subject string, _ interface{}) error {
	p.logger.Debug("event not published, no broker configured",
		zap.String("topic", topic),
		zap.String("event_type", eventType),
		zap.String("subject", subject),
	)
	return nil
}
