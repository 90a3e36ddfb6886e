package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	bookingDomain "github.com/thairide/service-booking/internal/domain/booking"
	"github.com/thairide/service-booking/internal/platform/domain"
)

// BookingRepository is the in-memory implementation of booking.BookingRepository.
type BookingRepository struct {
	store *Store
}

// FindByID retrieves a booking by its unique identifier.
func (r *BookingRepository) FindByID(_ context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	st, ok := r.store.bookings[id]
	if !ok {
		return nil, domain.NewNotFoundError("Booking", id.String())
	}
	return bookingDomain.ReconstructBooking(st), nil
}

// FindByNumber retrieves a booking by its booking number.
func (r *BookingRepository) FindByNumber(_ context.Context, number string) (*bookingDomain.Booking, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, st := range r.store.bookings {
		if st.BookingNumber == number {
			return bookingDomain.ReconstructBooking(st), nil
		}
	}
	return nil, domain.NewNotFoundError("Booking", number)
}

// FindByCustomerID retrieves bookings for a customer with pagination.
func (r *BookingRepository) FindByCustomerID(_ context.Context, customerID uuid.UUID, f bookingDomain.ListFilter) ([]*bookingDomain.Booking, int64, error) {
	return r.list(f, func(st bookingDomain.State) bool { return st.CustomerID == customerID })
}

// FindByDriverID retrieves bookings assigned to a driver with pagination.
func (r *BookingRepository) FindByDriverID(_ context.Context, driverID uuid.UUID, f bookingDomain.ListFilter) ([]*bookingDomain.Booking, int64, error) {
	return r.list(f, func(st bookingDomain.State) bool {
		return st.Driver != nil && st.Driver.DriverID == driverID
	})
}

// ListAll retrieves all bookings with pagination.
func (r *BookingRepository) ListAll(_ context.Context, f bookingDomain.ListFilter) ([]*bookingDomain.Booking, int64, error) {
	return r.list(f, func(bookingDomain.State) bool { return true })
}

// CountByStatus returns booking counts grouped by status.
func (r *BookingRepository) CountByStatus(_ context.Context) (map[string]int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	counts := make(map[string]int64)
	for _, st := range r.store.bookings {
		counts[string(st.Status)]++
	}
	return counts, nil
}

// LockCustomer is a no-op: Store.Do already runs one unit of work at a time.
func (r *BookingRepository) LockCustomer(context.Context, uuid.UUID) error { return nil }

// CountActiveByCustomer counts a customer's non-terminal bookings.
func (r *BookingRepository) CountActiveByCustomer(_ context.Context, customerID uuid.UUID) (int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var n int64
	for _, st := range r.store.bookings {
		if st.CustomerID == customerID && st.Status.IsActive() {
			n++
		}
	}
	return n, nil
}

// CountCancellationsByCustomerSince counts cancellations the customer requested at or after since.
func (r *BookingRepository) CountCancellationsByCustomerSince(_ context.Context, customerID uuid.UUID, since time.Time) (int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var n int64
	for _, st := range r.store.bookings {
		c := st.Cancellation
		if st.CustomerID != customerID || c == nil || c.By != bookingDomain.ActorCustomer {
			continue
		}
		if !c.At.Before(since) {
			n++
		}
	}
	return n, nil
}

// FindAssignedBefore returns driver_assigned bookings whose assignment is older than cutoff.
func (r *BookingRepository) FindAssignedBefore(_ context.Context, cutoff time.Time, limit int) ([]*bookingDomain.Booking, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []*bookingDomain.Booking
	for _, st := range r.store.bookings {
		if st.Status != bookingDomain.StatusDriverAssigned || st.DriverAssignedAt == nil {
			continue
		}
		if !st.DriverAssignedAt.After(cutoff) {
			out = append(out, bookingDomain.ReconstructBooking(st))
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// Save persists a new booking.
func (r *BookingRepository) Save(_ context.Context, bk *bookingDomain.Booking) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, exists := r.store.bookings[bk.ID()]; exists {
		return domain.NewConflictError("booking already exists")
	}
	r.store.bookings[bk.ID()] = bk.State()
	bk.MarkCommitted()
	return nil
}

// Update persists changes if the stored version is the one the booking was loaded at.
func (r *BookingRepository) Update(_ context.Context, bk *bookingDomain.Booking) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	current, ok := r.store.bookings[bk.ID()]
	if !ok {
		return domain.NewNotFoundError("Booking", bk.ID().String())
	}
	if current.Version != bk.Version()-1 {
		return domain.NewConflictError("booking was modified by another transaction")
	}
	next := bk.State()
	if len(next.History) < len(current.History) {
		return domain.NewConflictError("booking history cannot shrink")
	}
	r.store.bookings[bk.ID()] = next
	bk.MarkCommitted()
	return nil
}

func (r *BookingRepository) list(f bookingDomain.ListFilter, match func(bookingDomain.State) bool) ([]*bookingDomain.Booking, int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var states []bookingDomain.State
	for _, st := range r.store.bookings {
		if f.Status != "" && st.Status != f.Status {
			continue
		}
		if match(st) {
			states = append(states, st)
		}
	}
	sortBookingsNewestFirst(states)

	start, end := paginate(len(states), f.Page, f.Limit)
	out := make([]*bookingDomain.Booking, 0, end-start)
	for _, st := range states[start:end] {
		out = append(out, bookingDomain.ReconstructBooking(st))
	}
	return out, int64(len(states)), nil
}
