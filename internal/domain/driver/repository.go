package driver

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the persistence contract for drivers.
// Claim and Release are the only writes to a driver's status made on behalf of bookings.
type Repository interface {
	// FindByID retrieves a driver by its unique identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*Driver, error)

	// FindByUserID retrieves the driver profile owned by a user account.
	FindByUserID(ctx context.Context, userID uuid.UUID) (*Driver, error)

	// List retrieves drivers, optionally filtered by status, with pagination.
	List(ctx context.Context, status Status, page, limit int) ([]*Driver, int64, error)

	// Save persists a newly registered driver.
	Save(ctx context.Context, d *Driver) error

	// SetAvailability moves a driver between available and offline.
	// It never touches a busy driver and returns a driver_busy policy error instead.
	SetAvailability(ctx context.Context, id uuid.UUID, status Status) error

	// Claim atomically marks an available driver busy for bookingID.
	// It fails with a driver-unavailable error and mutates nothing when the driver is not available.
	Claim(ctx context.Context, driverID, bookingID uuid.UUID, at time.Time) error

	// Release marks the driver available and clears the claim. It is unconditional and idempotent.
	Release(ctx context.Context, driverID uuid.UUID) error

	// Credit atomically adds to the driver's trip, earnings and tip counters.
	Credit(ctx context.Context, driverID uuid.UUID, c Credit) error

	// UpdateRating stores a new smoothed rating if the rating count is still prevCount.
	// It returns a conflict error when another rating landed first.
	UpdateRating(ctx context.Context, driverID uuid.UUID, prevCount int, rating float64, count int) error
}
