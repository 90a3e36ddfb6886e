package dispute

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the persistence contract for disputes.
type Repository interface {
	// FindByID retrieves a dispute by its unique identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*Dispute, error)

	// FindByBookingID retrieves the dispute raised against a booking.
	FindByBookingID(ctx context.Context, bookingID uuid.UUID) (*Dispute, error)

	// List retrieves disputes, optionally filtered by status, with pagination.
	List(ctx context.Context, status Status, page, limit int) ([]*Dispute, int64, error)

	// Save persists a new dispute.
	Save(ctx context.Context, d *Dispute) error

	// Update persists changes with optimistic locking.
	Update(ctx context.Context, d *Dispute) error
}
