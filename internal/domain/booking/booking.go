package booking

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/thairide/service-booking/internal/domain/policy"
	"github.com/thairide/service-booking/internal/platform/domain"
)

const bookingNumberChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Length limits on free text, counted in characters.
const (
	MaxNotesLength  = 1000
	MaxReasonLength = 500
)

// Policy violation codes raised by the aggregate itself.
const (
	CodeAlreadyRated     = "already_rated"
	CodeNotCompleted     = "booking_not_completed"
	CodeDisputeExists    = "dispute_exists"
	CodeArrivalRecorded  = "arrival_already_recorded"
	CodeNothingToSettle  = "nothing_to_settle"
	CodeWrongStatusForOp = "wrong_status"
)

// ValidateReason bounds a client-supplied cancel or reject reason.
func ValidateReason(reason string) error {
	if utf8.RuneCountInString(reason) > MaxReasonLength {
		return domain.NewValidationError(fmt.Sprintf("reason must be at most %d characters", MaxReasonLength))
	}
	return nil
}

// Booking is the aggregate root for one ride request and its full lifecycle record.
type Booking struct {
	id            uuid.UUID
	bookingNumber string
	customerID    uuid.UUID
	pickup        Location
	dropoff       Location
	scheduledAt   time.Time
	vehicleType   VehicleType
	passengers    int
	fareSatang    int64
	currency      string
	notes         string

	status        BookingStatus
	driver        *DriverSnapshot
	history       []StatusEntry
	committed     int
	paymentStatus PaymentStatus

	driverAssignedAt *time.Time
	driverEnRouteAt  *time.Time
	driverArrivedAt  *time.Time
	tripStartedAt    *time.Time
	completedAt      *time.Time
	cancelledAt      *time.Time
	paidAt           *time.Time

	cancellation *Cancellation
	rating       *CustomerRating
	disputeID    *uuid.UUID

	version   int64
	createdAt time.Time
	updatedAt time.Time
}

// NewBookingParams holds the customer-supplied fields of a new booking.
type NewBookingParams struct {
	CustomerID  uuid.UUID
	Pickup      Location
	Dropoff     Location
	ScheduledAt time.Time
	VehicleType VehicleType
	Passengers  int
	FareSatang  int64
	Notes       string
}

// generateBookingNumber creates a booking number in the format "TR-XXXXXX".
func generateBookingNumber() (string, error) {
	result := make([]byte, 6)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(bookingNumberChars))))
		if err != nil {
			return "", fmt.Errorf("failed to generate booking number: %w", err)
		}
		result[i] = bookingNumberChars[n.Int64()]
	}
	return "TR-" + string(result), nil
}

// NewBooking creates a new Booking in pending. Creation is recorded as the first history entry.
func NewBooking(p NewBookingParams, at time.Time) (*Booking, error) {
	if p.CustomerID == uuid.Nil {
		return nil, domain.NewValidationError("customer ID is required")
	}
	if !p.Pickup.IsValid() {
		return nil, domain.NewValidationError("pickup location is invalid")
	}
	if !p.Dropoff.IsValid() {
		return nil, domain.NewValidationError("dropoff location is invalid")
	}
	if p.ScheduledAt.IsZero() {
		return nil, domain.NewValidationError("scheduled pickup time is required")
	}
	if !p.VehicleType.IsValid() {
		return nil, domain.NewValidationError(fmt.Sprintf("invalid vehicle type: %s", p.VehicleType))
	}
	if p.FareSatang <= 0 {
		return nil, domain.NewValidationError("fare must be positive")
	}
	if utf8.RuneCountInString(p.Notes) > MaxNotesLength {
		return nil, domain.NewValidationError(fmt.Sprintf("notes must be at most %d characters", MaxNotesLength))
	}
	if p.Passengers <= 0 {
		p.Passengers = 1
	}

	bookingNumber, err := generateBookingNumber()
	if err != nil {
		return nil, err
	}

	now := normalize(at)
	b := &Booking{
		id:            uuid.New(),
		bookingNumber: bookingNumber,
		customerID:    p.CustomerID,
		pickup:        p.Pickup,
		dropoff:       p.Dropoff,
		scheduledAt:   p.ScheduledAt.UTC(),
		vehicleType:   p.VehicleType,
		passengers:    p.Passengers,
		fareSatang:    p.FareSatang,
		currency:      domain.CurrencyTHB,
		notes:         p.Notes,
		paymentStatus: PaymentPending,
		version:       1,
		createdAt:     now,
		updatedAt:     now,
	}
	customerID := p.CustomerID
	b.appendEntry(StatusPending, ActorCustomer, &customerID, "booking created", now)
	b.status = StatusPending
	return b, nil
}

// State is the persisted form of a Booking, used to rebuild it without validation.
type State struct {
	ID               uuid.UUID
	BookingNumber    string
	CustomerID       uuid.UUID
	Pickup           Location
	Dropoff          Location
	ScheduledAt      time.Time
	VehicleType      VehicleType
	Passengers       int
	FareSatang       int64
	Currency         string
	Notes            string
	Status           BookingStatus
	Driver           *DriverSnapshot
	History          []StatusEntry
	PaymentStatus    PaymentStatus
	DriverAssignedAt *time.Time
	DriverEnRouteAt  *time.Time
	DriverArrivedAt  *time.Time
	TripStartedAt    *time.Time
	CompletedAt      *time.Time
	CancelledAt      *time.Time
	PaidAt           *time.Time
	Cancellation     *Cancellation
	Rating           *CustomerRating
	DisputeID        *uuid.UUID
	Version          int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ReconstructBooking rebuilds a Booking from persistence data (no validation).
func ReconstructBooking(s State) *Booking {
	history := make([]StatusEntry, len(s.History))
	copy(history, s.History)
	return &Booking{
		id:               s.ID,
		bookingNumber:    s.BookingNumber,
		customerID:       s.CustomerID,
		pickup:           s.Pickup,
		dropoff:          s.Dropoff,
		scheduledAt:      s.ScheduledAt,
		vehicleType:      s.VehicleType,
		passengers:       s.Passengers,
		fareSatang:       s.FareSatang,
		currency:         s.Currency,
		notes:            s.Notes,
		status:           s.Status,
		driver:           s.Driver,
		history:          history,
		committed:        len(history),
		paymentStatus:    s.PaymentStatus,
		driverAssignedAt: s.DriverAssignedAt,
		driverEnRouteAt:  s.DriverEnRouteAt,
		driverArrivedAt:  s.DriverArrivedAt,
		tripStartedAt:    s.TripStartedAt,
		completedAt:      s.CompletedAt,
		cancelledAt:      s.CancelledAt,
		paidAt:           s.PaidAt,
		cancellation:     s.Cancellation,
		rating:           s.Rating,
		disputeID:        s.DisputeID,
		version:          s.Version,
		createdAt:        s.CreatedAt,
		updatedAt:        s.UpdatedAt,
	}
}

// State returns a deep copy of the booking's persisted form.
func (b *Booking) State() State {
	history := make([]StatusEntry, len(b.history))
	copy(history, b.history)
	var drv *DriverSnapshot
	if b.driver != nil {
		d := *b.driver
		drv = &d
	}
	var canc *Cancellation
	if b.cancellation != nil {
		c := *b.cancellation
		canc = &c
	}
	var rt *CustomerRating
	if b.rating != nil {
		r := *b.rating
		rt = &r
	}
	return State{
		ID:               b.id,
		BookingNumber:    b.bookingNumber,
		CustomerID:       b.customerID,
		Pickup:           b.pickup,
		Dropoff:          b.dropoff,
		ScheduledAt:      b.scheduledAt,
		VehicleType:      b.vehicleType,
		Passengers:       b.passengers,
		FareSatang:       b.fareSatang,
		Currency:         b.currency,
		Notes:            b.notes,
		Status:           b.status,
		Driver:           drv,
		History:          history,
		PaymentStatus:    b.paymentStatus,
		DriverAssignedAt: copyTime(b.driverAssignedAt),
		DriverEnRouteAt:  copyTime(b.driverEnRouteAt),
		DriverArrivedAt:  copyTime(b.driverArrivedAt),
		TripStartedAt:    copyTime(b.tripStartedAt),
		CompletedAt:      copyTime(b.completedAt),
		CancelledAt:      copyTime(b.cancelledAt),
		PaidAt:           copyTime(b.paidAt),
		Cancellation:     canc,
		Rating:           rt,
		DisputeID:        copyUUID(b.disputeID),
		Version:          b.version,
		CreatedAt:        b.createdAt,
		UpdatedAt:        b.updatedAt,
	}
}

// --- Getters ---

// ID returns the booking's unique identifier.
func (b *Booking) ID() uuid.UUID { return b.id }

// BookingNumber returns the human-readable booking number.
func (b *Booking) BookingNumber() string { return b.bookingNumber }

// CustomerID returns the customer's user ID.
func (b *Booking) CustomerID() uuid.UUID { return b.customerID }

// Pickup returns the pickup location.
func (b *Booking) Pickup() Location { return b.pickup }

// Dropoff returns the dropoff location.
func (b *Booking) Dropoff() Location { return b.dropoff }

// ScheduledAt returns the scheduled pickup time.
func (b *Booking) ScheduledAt() time.Time { return b.scheduledAt }

// VehicleType returns the requested vehicle class.
func (b *Booking) VehicleType() VehicleType { return b.vehicleType }

// Passengers returns the passenger count.
func (b *Booking) Passengers() int { return b.passengers }

// FareSatang returns the trip fare in satang.
func (b *Booking) FareSatang() int64 { return b.fareSatang }

// Currency returns the currency code.
func (b *Booking) Currency() string { return b.currency }

// Notes returns any additional notes for the booking.
func (b *Booking) Notes() string { return b.notes }

// Status returns the current booking status.
func (b *Booking) Status() BookingStatus { return b.status }

// Driver returns the driver snapshot taken at assignment, or nil if none.
func (b *Booking) Driver() *DriverSnapshot { return b.driver }

// History returns a copy of the audit trail.
func (b *Booking) History() []StatusEntry {
	out := make([]StatusEntry, len(b.history))
	copy(out, b.history)
	return out
}

// PaymentStatus returns what the customer currently owes.
func (b *Booking) PaymentStatus() PaymentStatus { return b.paymentStatus }

// DriverAssignedAt returns when the current driver was assigned.
func (b *Booking) DriverAssignedAt() *time.Time { return b.driverAssignedAt }

// DriverEnRouteAt returns when the driver accepted and set off.
func (b *Booking) DriverEnRouteAt() *time.Time { return b.driverEnRouteAt }

// DriverArrivedAt returns when the driver reported arrival at pickup.
func (b *Booking) DriverArrivedAt() *time.Time { return b.driverArrivedAt }

// TripStartedAt returns when the trip began.
func (b *Booking) TripStartedAt() *time.Time { return b.tripStartedAt }

// CompletedAt returns when the trip was completed.
func (b *Booking) CompletedAt() *time.Time { return b.completedAt }

// CancelledAt returns when the booking was cancelled.
func (b *Booking) CancelledAt() *time.Time { return b.cancelledAt }

// PaidAt returns when payment was captured.
func (b *Booking) PaidAt() *time.Time { return b.paidAt }

// Cancellation returns the cancellation record, or nil.
func (b *Booking) Cancellation() *Cancellation { return b.cancellation }

// Rating returns the customer's rating of the driver, or nil.
func (b *Booking) Rating() *CustomerRating { return b.rating }

// DisputeID returns the dispute raised against this booking, or nil.
func (b *Booking) DisputeID() *uuid.UUID { return b.disputeID }

// Version returns the entity version for optimistic locking.
func (b *Booking) Version() int64 { return b.version }

// CreatedAt returns the creation timestamp.
func (b *Booking) CreatedAt() time.Time { return b.createdAt }

// UpdatedAt returns the last-updated timestamp.
func (b *Booking) UpdatedAt() time.Time { return b.updatedAt }

// FeeSnapshot returns the view of this booking the fee engine evaluates.
func (b *Booking) FeeSnapshot() policy.BookingSnapshot {
	return policy.BookingSnapshot{
		HasDriver:        b.driver != nil,
		DriverAssignedAt: copyTime(b.driverAssignedAt),
		DriverEnRouteAt:  copyTime(b.driverEnRouteAt),
		DriverArrivedAt:  copyTime(b.driverArrivedAt),
		CompletedAt:      copyTime(b.completedAt),
	}
}

// --- Behavior ---

// Confirm transitions the booking from pending to confirmed.
func (b *Booking) Confirm(actor Actor, actorID *uuid.UUID, at time.Time) error {
	return b.transition(StatusConfirmed, actor, actorID, "booking confirmed", at)
}

// AssignDriver records the claimed driver and transitions confirmed -> driver_assigned.
func (b *Booking) AssignDriver(d DriverSnapshot, actor Actor, actorID *uuid.UUID, at time.Time) error {
	if d.DriverID == uuid.Nil {
		return domain.NewValidationError("driver ID is required")
	}
	note := fmt.Sprintf("driver %s assigned", d.DriverID)
	if err := b.transition(StatusDriverAssigned, actor, actorID, note, at); err != nil {
		return err
	}
	snap := d
	b.driver = &snap
	t := b.updatedAt
	b.driverAssignedAt = &t
	return nil
}

// RevertAssignment sends driver_assigned back to confirmed and returns the driver that was released.
func (b *Booking) RevertAssignment(actor Actor, actorID *uuid.UUID, reason string, at time.Time) (uuid.UUID, error) {
	if b.status != StatusDriverAssigned || b.driver == nil {
		return uuid.Nil, domain.NewInvalidStateError(string(b.status), string(StatusConfirmed))
	}
	released := b.driver.DriverID
	note := fmt.Sprintf("driver %s released", released)
	if reason != "" {
		note += ": " + reason
	}
	if err := b.transition(StatusConfirmed, actor, actorID, note, at); err != nil {
		return uuid.Nil, err
	}
	b.driver = nil
	b.driverAssignedAt = nil
	return released, nil
}

// MarkEnRoute records the driver's acceptance: driver_assigned -> driver_en_route.
func (b *Booking) MarkEnRoute(actor Actor, actorID *uuid.UUID, at time.Time) error {
	if err := b.transition(StatusDriverEnRoute, actor, actorID, "driver accepted and en route", at); err != nil {
		return err
	}
	t := b.updatedAt
	b.driverEnRouteAt = &t
	return nil
}

// MarkArrived records the driver's arrival at pickup. It is not a transition.
func (b *Booking) MarkArrived(at time.Time) error {
	if b.status != StatusDriverEnRoute {
		return domain.NewPolicyViolationError(CodeWrongStatusForOp,
			fmt.Sprintf("arrival can only be recorded while %s, booking is %s", StatusDriverEnRoute, b.status))
	}
	if b.driverArrivedAt != nil {
		return domain.NewPolicyViolationError(CodeArrivalRecorded, "driver arrival already recorded")
	}
	t := normalize(at)
	if b.driverEnRouteAt != nil && t.Before(*b.driverEnRouteAt) {
		return domain.NewValidationError("arrival cannot precede driver setting off")
	}
	b.driverArrivedAt = &t
	b.updatedAt = maxTime(b.updatedAt, t)
	return nil
}

// StartTrip transitions driver_en_route -> in_progress.
func (b *Booking) StartTrip(actor Actor, actorID *uuid.UUID, at time.Time) error {
	if err := b.transition(StatusInProgress, actor, actorID, "trip started", at); err != nil {
		return err
	}
	t := b.updatedAt
	b.tripStartedAt = &t
	return nil
}

// Complete transitions in_progress -> completed; the fare becomes due.
func (b *Booking) Complete(actor Actor, actorID *uuid.UUID, at time.Time) error {
	if err := b.transition(StatusCompleted, actor, actorID, "trip completed", at); err != nil {
		return err
	}
	t := b.updatedAt
	b.completedAt = &t
	b.paymentStatus = PaymentDue
	return nil
}

// Cancel transitions to cancelled and records the fee decision. The driver snapshot is kept for audit.
func (b *Booking) Cancel(actor Actor, actorID *uuid.UUID, reason string, fee policy.FeeDecision, policyVersion int64, at time.Time) error {
	note := "booking cancelled (" + string(fee.Reason) + ")"
	if reason != "" {
		note += ": " + reason
	}
	if err := b.transition(StatusCancelled, actor, actorID, note, at); err != nil {
		return err
	}
	b.settleCancellation(Cancellation{
		By:                  actor,
		ByID:                copyUUID(actorID),
		Reason:              reason,
		FeeSatang:           fee.FeeSatang,
		DriverShareSatang:   fee.DriverShareSatang,
		PlatformShareSatang: fee.PlatformShareSatang,
		FeeReason:           string(fee.Reason),
		PolicyVersion:       policyVersion,
	})
	return nil
}

// CloseAsNoShow settles a reported customer no-show and closes the booking.
// It uses the dedicated no-show edge, which plain transition requests cannot reach.
func (b *Booking) CloseAsNoShow(actor Actor, actorID *uuid.UUID, waited time.Duration, fee policy.FeeDecision, policyVersion int64, at time.Time) error {
	target, ok := noShowTransitions[b.status]
	if !ok {
		return domain.NewInvalidStateError(string(b.status), string(StatusCancelled))
	}
	note := fmt.Sprintf("customer no-show after %s (%s)", waited.Truncate(time.Second), fee.Reason)
	b.appendEntry(target, actor, actorID, note, at)
	b.status = target
	b.settleCancellation(Cancellation{
		By:                  actor,
		ByID:                copyUUID(actorID),
		Reason:              "customer no-show",
		NoShow:              true,
		WaitedSeconds:       int64(waited / time.Second),
		FeeSatang:           fee.FeeSatang,
		DriverShareSatang:   fee.DriverShareSatang,
		PlatformShareSatang: fee.PlatformShareSatang,
		FeeReason:           string(fee.Reason),
		PolicyVersion:       policyVersion,
	})
	return nil
}

// Rate records the customer's score. A booking can be rated once.
func (b *Booking) Rate(score int, tipSatang int64, comment string, at time.Time) error {
	if b.status != StatusCompleted {
		return domain.NewPolicyViolationError(CodeNotCompleted, "only completed bookings can be rated")
	}
	if b.rating != nil {
		return domain.NewPolicyViolationError(CodeAlreadyRated, "booking has already been rated")
	}
	if tipSatang < 0 {
		return domain.NewValidationError("tip must not be negative")
	}
	t := normalize(at)
	b.rating = &CustomerRating{Score: score, TipSatang: tipSatang, Comment: comment, At: t}
	b.updatedAt = maxTime(b.updatedAt, t)
	return nil
}

// AttachDispute links the single dispute this booking may carry.
func (b *Booking) AttachDispute(disputeID uuid.UUID, at time.Time) error {
	if b.status != StatusCompleted {
		return domain.NewPolicyViolationError(CodeNotCompleted, "disputes can only be raised on completed bookings")
	}
	if b.disputeID != nil {
		return domain.NewPolicyViolationError(CodeDisputeExists, "a dispute has already been raised for this booking")
	}
	id := disputeID
	b.disputeID = &id
	b.updatedAt = maxTime(b.updatedAt, normalize(at))
	return nil
}

// MarkPaid records payment capture for whatever the booking owes. Repeated captures are no-ops.
func (b *Booking) MarkPaid(at time.Time) (bool, error) {
	switch b.paymentStatus {
	case PaymentPaid:
		return false, nil
	case PaymentDue, PaymentFeeDue:
		t := normalize(at)
		b.paymentStatus = PaymentPaid
		b.paidAt = &t
		b.updatedAt = maxTime(b.updatedAt, t)
		return true, nil
	default:
		return false, domain.NewPolicyViolationError(CodeNothingToSettle,
			fmt.Sprintf("booking has nothing to pay (payment status %s)", b.paymentStatus))
	}
}

// IncrementVersion bumps the version for optimistic locking.
func (b *Booking) IncrementVersion() {
	b.version++
}

// UncommittedHistory returns the entries appended since the booking was loaded or last committed.
func (b *Booking) UncommittedHistory() []StatusEntry {
	out := make([]StatusEntry, len(b.history)-b.committed)
	copy(out, b.history[b.committed:])
	return out
}

// MarkCommitted records that every history entry has been persisted.
func (b *Booking) MarkCommitted() {
	b.committed = len(b.history)
}

// --- internals ---

func (b *Booking) transition(to BookingStatus, actor Actor, actorID *uuid.UUID, note string, at time.Time) error {
	if !b.status.CanTransitionTo(to) {
		return domain.NewInvalidStateError(string(b.status), string(to))
	}
	if !actor.IsValid() {
		return domain.NewValidationError(fmt.Sprintf("invalid actor: %s", actor))
	}
	b.appendEntry(to, actor, actorID, note, at)
	b.status = to
	return nil
}

// appendEntry adds an audit entry whose timestamp is strictly after the previous one.
func (b *Booking) appendEntry(status BookingStatus, actor Actor, actorID *uuid.UUID, note string, at time.Time) {
	t := normalize(at)
	if n := len(b.history); n > 0 && !t.After(b.history[n-1].At) {
		t = b.history[n-1].At.Add(time.Microsecond)
	}
	b.history = append(b.history, StatusEntry{
		Seq:     len(b.history) + 1,
		Status:  status,
		At:      t,
		Note:    note,
		Actor:   actor,
		ActorID: copyUUID(actorID),
	})
	b.updatedAt = t
}

func (b *Booking) settleCancellation(c Cancellation) {
	t := b.updatedAt
	c.At = t
	b.cancellation = &c
	b.cancelledAt = &t
	if c.FeeSatang > 0 {
		b.paymentStatus = PaymentFeeDue
	} else {
		b.paymentStatus = PaymentWaived
	}
}

// normalize drops precision Postgres cannot store so values survive a round trip unchanged.
func normalize(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func maxTime(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func copyUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
