package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ListFilter narrows booking list queries. Zero values mean "any".
type ListFilter struct {
	Status BookingStatus
	Page   int
	Limit  int
}

// BookingRepository defines the persistence contract for booking aggregates.
type BookingRepository interface {
	// FindByID retrieves a booking and its full history.
	FindByID(ctx context.Context, id uuid.UUID) (*Booking, error)

	// FindByNumber retrieves a booking by its human-readable booking number.
	FindByNumber(ctx context.Context, number string) (*Booking, error)

	// FindByCustomerID retrieves bookings belonging to a customer with pagination.
	FindByCustomerID(ctx context.Context, customerID uuid.UUID, f ListFilter) ([]*Booking, int64, error)

	// FindByDriverID retrieves bookings assigned to a driver with pagination.
	FindByDriverID(ctx context.Context, driverID uuid.UUID, f ListFilter) ([]*Booking, int64, error)

	// ListAll retrieves all bookings with pagination (admin).
	ListAll(ctx context.Context, f ListFilter) ([]*Booking, int64, error)

	// CountByStatus returns booking counts grouped by status (admin).
	CountByStatus(ctx context.Context) (map[string]int64, error)

	// LockCustomer serializes the customer's cap checks until the surrounding unit of work ends.
	// Call it before counting anything a cap is enforced on.
	LockCustomer(ctx context.Context, customerID uuid.UUID) error

	// CountActiveByCustomer counts a customer's bookings that are not yet terminal.
	CountActiveByCustomer(ctx context.Context, customerID uuid.UUID) (int64, error)

	// CountCancellationsByCustomerSince counts cancellations the customer requested at or after since.
	CountCancellationsByCustomerSince(ctx context.Context, customerID uuid.UUID, since time.Time) (int64, error)

	// FindAssignedBefore returns bookings still in driver_assigned whose assignment happened before cutoff.
	FindAssignedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*Booking, error)

	// Save persists a new booking and its initial history.
	Save(ctx context.Context, booking *Booking) error

	// Update persists changes with optimistic locking and appends uncommitted history.
	// It returns a conflict error when the stored version no longer matches.
	Update(ctx context.Context, booking *Booking) error
}
