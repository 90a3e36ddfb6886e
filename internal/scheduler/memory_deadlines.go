package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryDeadlineStore is an in-process DeadlineStore for single-instance runs and tests.
type MemoryDeadlineStore struct {
	mu        sync.Mutex
	deadlines map[uuid.UUID]time.Time
}

// NewMemoryDeadlineStore creates an empty MemoryDeadlineStore.
func NewMemoryDeadlineStore() *MemoryDeadlineStore {
	return &MemoryDeadlineStore{deadlines: make(map[uuid.UUID]time.Time)}
}

// Schedule sets or replaces the deadline for a booking.
func (s *MemoryDeadlineStore) Schedule(_ context.Context, bookingID uuid.UUID, deadline time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deadlines[bookingID] = deadline
	return nil
}

// Cancel removes a booking's deadline.
func (s *MemoryDeadlineStore) Cancel(_ context.Context, bookingID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.deadlines, bookingID)
	return nil
}

// Due removes and returns the earliest overdue bookings.
func (s *MemoryDeadlineStore) Due(_ context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []uuid.UUID
	for id, d := range s.deadlines {
		if !d.After(now) {
			due = append(due, id)
		}
	}
	sort.Slice(due, func(i, j int) bool { return s.deadlines[due[i]].Before(s.deadlines[due[j]]) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	for _, id := range due {
		delete(s.deadlines, id)
	}
	return due, nil
}

// Len reports how many deadlines are pending.
func (s *MemoryDeadlineStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.deadlines)
}
