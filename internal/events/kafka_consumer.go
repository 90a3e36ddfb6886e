package events

import (
	"context"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/thairide/service-booking/internal/application"
	"github.com/thairide/service-booking/internal/contracts"
	"github.com/thairide/service-booking/internal/platform/domain"
	"github.com/thairide/service-booking/internal/platform/kafka"
)

// PaymentSettler marks a booking's payment as settled. Repeated calls must be harmless.
type PaymentSettler interface {
	MarkPaid(ctx context.Context, bookingID uuid.UUID, paymentID string) (*application.BookingDTO, error)
}

type eventHandler func(ctx context.Context, ce kafka.CloudEvent) error

// PaymentEventConsumer settles booking payments from the payment service's events.
//
// Returning nil commits the offset. Only infrastructure failures return an error, so the
// message is redelivered; malformed events and domain rejections are logged and skipped.
type PaymentEventConsumer struct {
	consumer *kafka.Consumer
	settler  PaymentSettler
	routes   map[string]eventHandler
	logger   *zap.Logger
}

// NewPaymentEventConsumer joins groupID on the payment events topic.
func NewPaymentEventConsumer(brokers []string, groupID string, settler PaymentSettler, logger *zap.Logger) *PaymentEventConsumer {
	return newPaymentEventConsumer(
		kafka.NewConsumer(brokers, groupID, contracts.TopicPaymentEvents, logger),
		settler,
		logger,
	)
}

func newPaymentEventConsumer(consumer *kafka.Consumer, settler PaymentSettler, logger *zap.Logger) *PaymentEventConsumer {
	c := &PaymentEventConsumer{
		consumer: consumer,
		settler:  settler,
		logger:   logger.With(zap.String("topic", contracts.TopicPaymentEvents)),
	}
	c.routes = map[string]eventHandler{
		contracts.PaymentCaptured: c.onPaymentCaptured,
	}
	return c
}

// Start consumes until ctx is cancelled.
func (c *PaymentEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handleMessage)
}

// Close closes the underlying Kafka consumer.
func (c *PaymentEventConsumer) Close() error {
	return c.consumer.Close()
}

func (c *PaymentEventConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	ce, err := kafka.ParseCloudEvent(msg.Value)
	if err != nil {
		c.logger.Error("dropping unparseable message",
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)
		return nil
	}
	return c.dispatch(ctx, ce)
}

func (c *PaymentEventConsumer) dispatch(ctx context.Context, ce kafka.CloudEvent) error {
	handle, ok := c.routes[ce.Type]
	if !ok {
		c.logger.Debug("no handler for event type", zap.String("type", ce.Type))
		return nil
	}
	return handle(ctx, ce)
}

func (c *PaymentEventConsumer) onPaymentCaptured(ctx context.Context, ce kafka.CloudEvent) error {
	var evt contracts.PaymentCapturedEvent
	if err := ce.ParseData(&evt); err != nil {
		c.logger.Error("dropping payment.captured with bad payload",
			zap.String("event_id", ce.ID),
			zap.Error(err),
		)
		return nil
	}
	log := c.logger.With(
		zap.String("booking_id", evt.BookingID.String()),
		zap.String("payment_id", evt.PaymentID),
	)

	_, err := c.settler.MarkPaid(ctx, evt.BookingID, evt.PaymentID)
	switch {
	case err == nil:
		log.Info("booking payment settled", zap.Int64("amount_satang", evt.AmountSatang))
		return nil
	case isDomainError(err):
		// redelivery cannot change the outcome
		log.Warn("payment.captured rejected", zap.Error(err))
		return nil
	default:
		log.Error("failed to settle booking payment", zap.Error(err))
		return err
	}
}

func isDomainError(err error) bool {
	_, ok := domain.KindOf(err)
	return ok
}
