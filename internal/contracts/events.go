// Package contracts holds the event payloads exchanged with other services over Kafka.
package contracts

import (
	"time"

	"github.com/google/uuid"
)

// Topics.
const (
	TopicBookingEvents = "booking.events"
	TopicPaymentEvents = "payment.events"
)

// Booking event types.
const (
	BookingCreated       = "booking.created"
	BookingStatusChanged = "booking.status_changed"
	BookingCancelled     = "booking.cancelled"
	BookingNoShow        = "booking.no_show"
	BookingRated         = "booking.rated"
	BookingPaid          = "booking.paid"
	DisputeOpened        = "dispute.opened"
	DisputeResolved      = "dispute.resolved"
)

// Payment event types consumed by this service.
const (
	PaymentCaptured = "payment.captured"
)

// BookingCreatedEvent is published when a customer requests a ride.
type BookingCreatedEvent struct {
	BookingID     uuid.UUID `json:"booking_id"`
	BookingNumber string    `json:"booking_number"`
	CustomerID    uuid.UUID `json:"customer_id"`
	VehicleType   string    `json:"vehicle_type"`
	FareSatang    int64     `json:"fare_satang"`
	Currency      string    `json:"currency"`
	ScheduledAt   time.Time `json:"scheduled_at"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// BookingStatusChangedEvent is published for every committed transition.
type BookingStatusChangedEvent struct {
	BookingID     uuid.UUID  `json:"booking_id"`
	BookingNumber string     `json:"booking_number"`
	CustomerID    uuid.UUID  `json:"customer_id"`
	DriverID      *uuid.UUID `json:"driver_id,omitempty"`
	From          string     `json:"from"`
	To            string     `json:"to"`
	Actor         string     `json:"actor"`
	Seq           int        `json:"seq"`
	Note          string     `json:"note,omitempty"`
	OccurredAt    time.Time  `json:"occurred_at"`
}

// BookingCancelledEvent carries the fee outcome of a cancellation or no-show.
type BookingCancelledEvent struct {
	BookingID           uuid.UUID  `json:"booking_id"`
	BookingNumber       string     `json:"booking_number"`
	CustomerID          uuid.UUID  `json:"customer_id"`
	DriverID            *uuid.UUID `json:"driver_id,omitempty"`
	CancelledBy         string     `json:"cancelled_by"`
	NoShow              bool       `json:"no_show"`
	Reason              string     `json:"reason,omitempty"`
	FeeSatang           int64      `json:"fee_satang"`
	DriverShareSatang   int64      `json:"driver_share_satang"`
	PlatformShareSatang int64      `json:"platform_share_satang"`
	FeeReason           string     `json:"fee_reason"`
	PolicyVersion       int64      `json:"policy_version"`
	OccurredAt          time.Time  `json:"occurred_at"`
}

// BookingRatedEvent is published once per booking when the customer scores the driver.
type BookingRatedEvent struct {
	BookingID      uuid.UUID `json:"booking_id"`
	DriverID       uuid.UUID `json:"driver_id"`
	Score          int       `json:"score"`
	TipSatang      int64     `json:"tip_satang"`
	NewRating      float64   `json:"new_rating"`
	NewRatingCount int       `json:"new_rating_count"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// BookingPaidEvent is published when a captured payment settles a booking.
type BookingPaidEvent struct {
	BookingID  uuid.UUID `json:"booking_id"`
	PaymentID  string    `json:"payment_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// DisputeEvent is published when a dispute is opened or closed.
type DisputeEvent struct {
	DisputeID  uuid.UUID `json:"dispute_id"`
	BookingID  uuid.UUID `json:"booking_id"`
	Status     string    `json:"status"`
	Reason     string    `json:"reason"`
	Resolution string    `json:"resolution,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// PaymentCapturedEvent is consumed from the payment service.
type PaymentCapturedEvent struct {
	PaymentID    string    `json:"payment_id"`
	BookingID    uuid.UUID `json:"booking_id"`
	AmountSatang int64     `json:"amount_satang"`
	Currency     string    `json:"currency"`
	OccurredAt   time.Time `json:"occurred_at"`
}
