package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/thairide/service-booking/internal/domain/dispute"
	"github.com/thairide/service-booking/internal/platform/domain"
)

type disputeRecord struct {
	id          uuid.UUID
	bookingID   uuid.UUID
	raisedBy    string
	raisedByID  uuid.UUID
	reason      string
	description string
	status      dispute.Status
	resolution  string
	reviewerID  *uuid.UUID
	resolvedAt  *time.Time
	version     int64
	createdAt   time.Time
	updatedAt   time.Time
}

func toDisputeRecord(d *dispute.Dispute) disputeRecord {
	rec := disputeRecord{
		id:          d.ID(),
		bookingID:   d.BookingID(),
		raisedBy:    d.RaisedBy(),
		raisedByID:  d.RaisedByID(),
		reason:      d.Reason(),
		description: d.Description(),
		status:      d.Status(),
		resolution:  d.Resolution(),
		version:     d.Version(),
		createdAt:   d.CreatedAt(),
		updatedAt:   d.UpdatedAt(),
	}
	if d.ReviewerID() != nil {
		id := *d.ReviewerID()
		rec.reviewerID = &id
	}
	if d.ResolvedAt() != nil {
		t := *d.ResolvedAt()
		rec.resolvedAt = &t
	}
	return rec
}

func (rec disputeRecord) toDomain() *dispute.Dispute {
	return dispute.Reconstruct(
		rec.id, rec.bookingID,
		rec.raisedBy, rec.raisedByID,
		rec.reason, rec.description,
		rec.status,
		rec.resolution,
		rec.reviewerID,
		rec.resolvedAt,
		rec.version,
		rec.createdAt, rec.updatedAt,
	)
}

// DisputeRepository is the in-memory implementation of dispute.Repository.
type DisputeRepository struct {
	store *Store
}

// FindByID retrieves a dispute by its unique identifier.
func (r *DisputeRepository) FindByID(_ context.Context, id uuid.UUID) (*dispute.Dispute, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	rec, ok := r.store.disputes[id]
	if !ok {
		return nil, domain.NewNotFoundError("Dispute", id.String())
	}
	return rec.toDomain(), nil
}

// FindByBookingID retrieves the dispute raised against a booking.
func (r *DisputeRepository) FindByBookingID(_ context.Context, bookingID uuid.UUID) (*dispute.Dispute, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, rec := range r.store.disputes {
		if rec.bookingID == bookingID {
			return rec.toDomain(), nil
		}
	}
	return nil, domain.NewNotFoundError("Dispute", "for booking "+bookingID.String())
}

// List retrieves disputes, optionally filtered by status, oldest first.
func (r *DisputeRepository) List(_ context.Context, status dispute.Status, page, limit int) ([]*dispute.Dispute, int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var recs []disputeRecord
	for _, rec := range r.store.disputes {
		if status == "" || rec.status == status {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].createdAt.Before(recs[j].createdAt) })

	start, end := paginate(len(recs), page, limit)
	out := make([]*dispute.Dispute, 0, end-start)
	for _, rec := range recs[start:end] {
		out = append(out, rec.toDomain())
	}
	return out, int64(len(recs)), nil
}

// Save persists a new dispute. A booking holds at most one.
func (r *DisputeRepository) Save(_ context.Context, d *dispute.Dispute) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, rec := range r.store.disputes {
		if rec.bookingID == d.BookingID() {
			return domain.NewConflictError("a dispute already exists for this booking")
		}
	}
	r.store.disputes[d.ID()] = toDisputeRecord(d)
	return nil
}

// Update persists changes with optimistic locking.
func (r *DisputeRepository) Update(_ context.Context, d *dispute.Dispute) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	current, ok := r.store.disputes[d.ID()]
	if !ok {
		return domain.NewNotFoundError("Dispute", d.ID().String())
	}
	if current.version != d.Version()-1 {
		return domain.NewConflictError("dispute was modified by another transaction")
	}
	r.store.disputes[d.ID()] = toDisputeRecord(d)
	return nil
}
