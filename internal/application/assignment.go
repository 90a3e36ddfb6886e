package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	bookingDomain "github.com/thairide/service-booking/internal/domain/booking"
	"github.com/thairide/service-booking/internal/domain/driver"
	"github.com/thairide/service-booking/internal/domain/policy"
)

// AssignmentCoordinator guarantees a driver serves at most one active booking.
// Claims and releases run inside the caller's unit of work so they commit or roll back with the booking.
type AssignmentCoordinator struct {
	deadlines DeadlineStore
	logger    *zap.Logger
}

// NewAssignmentCoordinator creates a new AssignmentCoordinator.
func NewAssignmentCoordinator(deadlines DeadlineStore, logger *zap.Logger) *AssignmentCoordinator {
	return &AssignmentCoordinator{deadlines: deadlines, logger: logger}
}

// Claim marks an available driver busy for bookingID and returns the snapshot to embed in the booking.
func (c *AssignmentCoordinator) Claim(ctx context.Context, drivers driver.Repository, driverID, bookingID uuid.UUID, at time.Time) (bookingDomain.DriverSnapshot, error) {
	d, err := drivers.FindByID(ctx, driverID)
	if err != nil {
		return bookingDomain.DriverSnapshot{}, err
	}
	if err := drivers.Claim(ctx, driverID, bookingID, at); err != nil {
		return bookingDomain.DriverSnapshot{}, err
	}
	snap := d.Snapshot()
	return bookingDomain.DriverSnapshot{
		DriverID:     snap.DriverID,
		Name:         snap.Name,
		Phone:        snap.Phone,
		VehiclePlate: snap.VehiclePlate,
		VehicleModel: snap.VehicleModel,
	}, nil
}

// Release frees the driver. Releasing an already available driver is a no-op.
func (c *AssignmentCoordinator) Release(ctx context.Context, drivers driver.Repository, driverID uuid.UUID) error {
	if err := drivers.Release(ctx, driverID); err != nil {
		return fmt.Errorf("failed to release driver %s: %w", driverID, err)
	}
	return nil
}

// AcceptanceDeadline is the instant after which an unaccepted assignment may be reverted.
func AcceptanceDeadline(assignedAt time.Time, cfg policy.Config) time.Time {
	return assignedAt.Add(cfg.AssignmentAcceptanceWindow)
}

// ScheduleTimeout records the acceptance deadline. The monitor's database sweep still catches
// assignments whose deadline could not be stored, so failures are logged only.
func (c *AssignmentCoordinator) ScheduleTimeout(ctx context.Context, bookingID uuid.UUID, deadline time.Time) {
	if c.deadlines == nil {
		return
	}
	if err := c.deadlines.Schedule(ctx, bookingID, deadline); err != nil {
		c.logger.Error("failed to schedule assignment deadline",
			zap.String("booking_id", bookingID.String()),
			zap.Time("deadline", deadline),
			zap.Error(err),
		)
	}
}

// ClearTimeout drops a booking's acceptance deadline once it leaves driver_assigned.
func (c *AssignmentCoordinator) ClearTimeout(ctx context.Context, bookingID uuid.UUID) {
	if c.deadlines == nil {
		return
	}
	if err := c.deadlines.Cancel(ctx, bookingID); err != nil {
		c.logger.Warn("failed to clear assignment deadline",
			zap.String("booking_id", bookingID.String()),
			zap.Error(err),
		)
	}
}
