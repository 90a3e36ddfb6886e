package dispute

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/thairide/service-booking/internal/platform/domain"
)

// Status is the review state of a dispute.
type Status string

const (
	StatusOpen        Status = "open"
	StatusUnderReview Status = "under_review"
	StatusResolved    Status = "resolved"
	StatusRejected    Status = "rejected"
)

var validTransitions = map[Status][]Status{
	StatusOpen:        {StatusUnderReview, StatusResolved, StatusRejected},
	StatusUnderReview: {StatusResolved, StatusRejected},
	StatusResolved:    {},
	StatusRejected:    {},
}

// IsValid reports whether s is a known dispute status.
func (s Status) IsValid() bool {
	_, ok := validTransitions[s]
	return ok
}

// CanTransitionTo reports whether the dispute may move from s to target.
func (s Status) CanTransitionTo(target Status) bool {
	for _, t := range validTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// IsClosed reports whether no further review is possible.
func (s Status) IsClosed() bool {
	return s == StatusResolved || s == StatusRejected
}

// ParseStatus converts a string to a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.IsValid() {
		return "", domain.NewValidationError("invalid dispute status: " + s)
	}
	return st, nil
}

// Dispute is a customer's contest of a completed booking.
type Dispute struct {
	id          uuid.UUID
	bookingID   uuid.UUID
	raisedBy    string
	raisedByID  uuid.UUID
	reason      string
	description string
	status      Status
	resolution  string
	reviewerID  *uuid.UUID
	resolvedAt  *time.Time
	version     int64
	createdAt   time.Time
	updatedAt   time.Time
}

// NewDispute opens a dispute against a booking.
func NewDispute(bookingID uuid.UUID, raisedBy string, raisedByID uuid.UUID, reason, description string, at time.Time) (*Dispute, error) {
	if bookingID == uuid.Nil {
		return nil, domain.NewValidationError("booking ID is required")
	}
	if strings.TrimSpace(reason) == "" {
		return nil, domain.NewValidationError("dispute reason is required")
	}
	now := at.UTC()
	return &Dispute{
		id:          uuid.New(),
		bookingID:   bookingID,
		raisedBy:    raisedBy,
		raisedByID:  raisedByID,
		reason:      reason,
		description: description,
		status:      StatusOpen,
		version:     1,
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

// Reconstruct rebuilds a Dispute from persistence data (no validation).
func Reconstruct(
	id, bookingID uuid.UUID,
	raisedBy string, raisedByID uuid.UUID,
	reason, description string,
	status Status,
	resolution string,
	reviewerID *uuid.UUID,
	resolvedAt *time.Time,
	version int64,
	createdAt, updatedAt time.Time,
) *Dispute {
	return &Dispute{
		id:          id,
		bookingID:   bookingID,
		raisedBy:    raisedBy,
		raisedByID:  raisedByID,
		reason:      reason,
		description: description,
		status:      status,
		resolution:  resolution,
		reviewerID:  reviewerID,
		resolvedAt:  resolvedAt,
		version:     version,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
	}
}

// --- Getters ---

// ID returns the dispute's unique identifier.
func (d *Dispute) ID() uuid.UUID { return d.id }

// BookingID returns the disputed booking.
func (d *Dispute) BookingID() uuid.UUID { return d.bookingID }

// RaisedBy returns the kind of actor that opened the dispute.
func (d *Dispute) RaisedBy() string { return d.raisedBy }

// RaisedByID returns the user that opened the dispute.
func (d *Dispute) RaisedByID() uuid.UUID { return d.raisedByID }

// Reason returns the short reason given.
func (d *Dispute) Reason() string { return d.reason }

// Description returns the free-text description.
func (d *Dispute) Description() string { return d.description }

// Status returns the review state.
func (d *Dispute) Status() Status { return d.status }

// Resolution returns the admin's closing note.
func (d *Dispute) Resolution() string { return d.resolution }

// ReviewerID returns the admin handling the dispute, if any.
func (d *Dispute) ReviewerID() *uuid.UUID { return d.reviewerID }

// ResolvedAt returns when the dispute was closed.
func (d *Dispute) ResolvedAt() *time.Time { return d.resolvedAt }

// Version returns the entity version for optimistic locking.
func (d *Dispute) Version() int64 { return d.version }

// CreatedAt returns when the dispute was opened.
func (d *Dispute) CreatedAt() time.Time { return d.createdAt }

// UpdatedAt returns the last-updated timestamp.
func (d *Dispute) UpdatedAt() time.Time { return d.updatedAt }

// --- Behavior ---

// StartReview assigns an admin and moves the dispute under review.
func (d *Dispute) StartReview(reviewerID uuid.UUID, at time.Time) error {
	if err := d.transitionTo(StatusUnderReview); err != nil {
		return err
	}
	id := reviewerID
	d.reviewerID = &id
	d.updatedAt = at.UTC()
	return nil
}

// Resolve closes the dispute in the customer's favour.
func (d *Dispute) Resolve(reviewerID uuid.UUID, resolution string, at time.Time) error {
	return d.close(StatusResolved, reviewerID, resolution, at)
}

// Reject closes the dispute without action.
func (d *Dispute) Reject(reviewerID uuid.UUID, resolution string, at time.Time) error {
	return d.close(StatusRejected, reviewerID, resolution, at)
}

// IncrementVersion bumps the version for optimistic locking.
func (d *Dispute) IncrementVersion() {
	d.version++
}

func (d *Dispute) close(target Status, reviewerID uuid.UUID, resolution string, at time.Time) error {
	if strings.TrimSpace(resolution) == "" {
		return domain.NewValidationError("a resolution note is required")
	}
	if err := d.transitionTo(target); err != nil {
		return err
	}
	id := reviewerID
	t := at.UTC()
	d.reviewerID = &id
	d.resolution = resolution
	d.resolvedAt = &t
	d.updatedAt = t
	return nil
}

func (d *Dispute) transitionTo(target Status) error {
	if !d.status.CanTransitionTo(target) {
		return domain.NewInvalidStateError(string(d.status), string(target))
	}
	d.status = target
	return nil
}
