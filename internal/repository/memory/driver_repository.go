package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/thairide/service-booking/internal/domain/driver"
	"github.com/thairide/service-booking/internal/platform/domain"
)

// DriverRepository is the in-memory implementation of driver.Repository.
type DriverRepository struct {
	store *Store
}

// FindByID retrieves a driver by its unique identifier.
func (r *DriverRepository) FindByID(_ context.Context, id uuid.UUID) (*driver.Driver, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	st, ok := r.store.drivers[id]
	if !ok {
		return nil, domain.NewNotFoundError("Driver", id.String())
	}
	return driver.Reconstruct(st), nil
}

// FindByUserID retrieves the driver profile owned by a user.
func (r *DriverRepository) FindByUserID(_ context.Context, userID uuid.UUID) (*driver.Driver, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, st := range r.store.drivers {
		if st.UserID == userID {
			return driver.Reconstruct(st), nil
		}
	}
	return nil, domain.NewNotFoundError("Driver", "for user "+userID.String())
}

// List retrieves drivers, optionally filtered by status.
func (r *DriverRepository) List(_ context.Context, status driver.Status, page, limit int) ([]*driver.Driver, int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var states []driver.State
	for _, st := range r.store.drivers {
		if status == "" || st.Status == status {
			states = append(states, st)
		}
	}
	sort.Slice(states, func(i, j int) bool { return states[i].CreatedAt.Before(states[j].CreatedAt) })

	start, end := paginate(len(states), page, limit)
	out := make([]*driver.Driver, 0, end-start)
	for _, st := range states[start:end] {
		out = append(out, driver.Reconstruct(st))
	}
	return out, int64(len(states)), nil
}

// Save persists a new driver.
func (r *DriverRepository) Save(_ context.Context, d *driver.Driver) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, exists := r.store.drivers[d.ID()]; exists {
		return domain.NewConflictError("driver already exists")
	}
	r.store.drivers[d.ID()] = d.State()
	return nil
}

// SetAvailability moves a non-busy driver between available and offline.
func (r *DriverRepository) SetAvailability(_ context.Context, id uuid.UUID, status driver.Status) error {
	if status != driver.StatusAvailable && status != driver.StatusOffline {
		return domain.NewValidationError("availability must be available or offline")
	}
	return r.modify(id, func(st *driver.State) error {
		if st.Status == driver.StatusBusy {
			return domain.NewPolicyViolationError(driver.CodeDriverBusy, "driver is serving a booking")
		}
		st.Status = status
		return nil
	})
}

// Claim marks an available driver busy for bookingID.
func (r *DriverRepository) Claim(_ context.Context, driverID, bookingID uuid.UUID, at time.Time) error {
	return r.modify(driverID, func(st *driver.State) error {
		if st.Status != driver.StatusAvailable {
			return domain.NewDriverUnavailableError(driverID.String())
		}
		bid := bookingID
		t := at.UTC()
		st.Status = driver.StatusBusy
		st.ClaimedBookingID = &bid
		st.ClaimedAt = &t
		return nil
	})
}

// Release marks the driver available and clears the claim.
func (r *DriverRepository) Release(_ context.Context, driverID uuid.UUID) error {
	return r.modify(driverID, func(st *driver.State) error {
		st.Status = driver.StatusAvailable
		st.ClaimedBookingID = nil
		st.ClaimedAt = nil
		return nil
	})
}

// Credit adds to the driver's counters.
func (r *DriverRepository) Credit(_ context.Context, driverID uuid.UUID, c driver.Credit) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.IsZero() {
		return nil
	}
	return r.modify(driverID, func(st *driver.State) error {
		st.TotalTrips += c.Trips
		st.TotalEarningsSatang += c.EarningsSatang
		st.TotalTipsSatang += c.TipsSatang
		return nil
	})
}

// UpdateRating stores the new rating if nobody else rated the driver since prevCount was read.
func (r *DriverRepository) UpdateRating(_ context.Context, driverID uuid.UUID, prevCount int, rating float64, count int) error {
	return r.modify(driverID, func(st *driver.State) error {
		if st.RatingCount != prevCount {
			return domain.NewConflictError("driver rating was updated concurrently")
		}
		st.Rating = rating
		st.RatingCount = count
		return nil
	})
}

func (r *DriverRepository) modify(id uuid.UUID, fn func(st *driver.State) error) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	st, ok := r.store.drivers[id]
	if !ok {
		return domain.NewNotFoundError("Driver", id.String())
	}
	if err := fn(&st); err != nil {
		return err
	}
	st.Version++
	st.UpdatedAt = time.Now().UTC()
	r.store.drivers[id] = st
	return nil
}
