// Package memory is an in-process implementation of the repository contracts.
// Units of work are serialized and roll back by restoring a snapshot taken at the start.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/thairide/service-booking/internal/application"
	bookingDomain "github.com/thairide/service-booking/internal/domain/booking"
	"github.com/thairide/service-booking/internal/domain/driver"
)

// Store holds every aggregate in maps guarded by a RWMutex.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	bookings map[uuid.UUID]bookingDomain.State
	drivers  map[uuid.UUID]driver.State
	disputes map[uuid.UUID]disputeRecord
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		bookings: make(map[uuid.UUID]bookingDomain.State),
		drivers:  make(map[uuid.UUID]driver.State),
		disputes: make(map[uuid.UUID]disputeRecord),
	}
}

// Repositories returns repositories reading and writing the store directly.
func (s *Store) Repositories() application.Repositories {
	return application.Repositories{
		Bookings: &BookingRepository{store: s},
		Drivers:  &DriverRepository{store: s},
		Disputes: &DisputeRepository{store: s},
	}
}

// Do runs fn with exclusive write access. If fn fails every write it made is undone.
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, repos application.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(ctx, s.Repositories()); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type snapshot struct {
	bookings map[uuid.UUID]bookingDomain.State
	drivers  map[uuid.UUID]driver.State
	disputes map[uuid.UUID]disputeRecord
}

// snapshot copies the maps. Stored values are replaced on write, never mutated in place,
// so a shallow copy is enough.
func (s *Store) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := snapshot{
		bookings: make(map[uuid.UUID]bookingDomain.State, len(s.bookings)),
		drivers:  make(map[uuid.UUID]driver.State, len(s.drivers)),
		disputes: make(map[uuid.UUID]disputeRecord, len(s.disputes)),
	}
	for k, v := range s.bookings {
		snap.bookings[k] = v
	}
	for k, v := range s.drivers {
		snap.drivers[k] = v
	}
	for k, v := range s.disputes {
		snap.disputes[k] = v
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookings = snap.bookings
	s.drivers = snap.drivers
	s.disputes = snap.disputes
}

// paginate normalizes page/limit and returns the slice bounds for n items.
func paginate(n, page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	start := (page - 1) * limit
	if start > n {
		start = n
	}
	end := start + limit
	if end > n {
		end = n
	}
	return start, end
}

func sortBookingsNewestFirst(states []bookingDomain.State) {
	sort.Slice(states, func(i, j int) bool {
		if states[i].CreatedAt.Equal(states[j].CreatedAt) {
			return states[i].ID.String() < states[j].ID.String()
		}
		return states[i].CreatedAt.After(states[j].CreatedAt)
	})
}
