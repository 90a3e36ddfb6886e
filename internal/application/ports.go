package application

import (
	"context"
	"time"

	"github.com/google/uuid"

	bookingDomain "github.com/thairide/service-booking/internal/domain/booking"
	"github.com/thairide/service-booking/internal/domain/dispute"
	"github.com/thairide/service-booking/internal/domain/driver"
)

// Clock supplies the current wall-clock time. Tests substitute a fixed clock.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real time in UTC.
type SystemClock struct{}

// Now returns time.Now in UTC.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Repositories groups the aggregate stores a unit of work hands to its callback.
type Repositories struct {
	Bookings bookingDomain.BookingRepository
	Drivers  driver.Repository
	Disputes dispute.Repository
}

// UnitOfWork runs fn atomically: every write made through repos commits together or not at all.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}

// EventPublisher delivers domain events to other services. Failures never fail the caller's request.
type EventPublisher interface {
	Publish(ctx context.Context, topic, eventType, subject string, data interface{}) error
}

// DeadlineStore tracks assignment acceptance deadlines.
type DeadlineStore interface {
	// Schedule sets (or replaces) the deadline for a booking.
	Schedule(ctx context.Context, bookingID uuid.UUID, deadline time.Time) error
	// Cancel removes a booking's deadline. Missing entries are ignored.
	Cancel(ctx context.Context, bookingID uuid.UUID) error
	// Due removes and returns up to limit bookings whose deadline is at or before now.
	// An entry is handed to exactly one caller.
	Due(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
}
