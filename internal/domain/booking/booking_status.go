package booking

import "github.com/thairide/service-booking/internal/platform/domain"

// BookingStatus represents the current state of a booking in its lifecycle.
type BookingStatus string

const (
	StatusPending        BookingStatus = "pending"
	StatusConfirmed      BookingStatus = "confirmed"
	StatusDriverAssigned BookingStatus = "driver_assigned"
	StatusDriverEnRoute  BookingStatus = "driver_en_route"
	StatusInProgress     BookingStatus = "in_progress"
	StatusCompleted      BookingStatus = "completed"
	StatusCancelled      BookingStatus = "cancelled"
)

// validTransitions defines the state machine for booking status transitions.
// driver_assigned -> confirmed is the only backward edge (assignment rejected or timed out).
var validTransitions = map[BookingStatus][]BookingStatus{
	StatusPending:        {StatusConfirmed, StatusCancelled},
	StatusConfirmed:      {StatusDriverAssigned, StatusCancelled},
	StatusDriverAssigned: {StatusDriverEnRoute, StatusConfirmed, StatusCancelled},
	StatusDriverEnRoute:  {StatusInProgress},
	StatusInProgress:     {StatusCompleted},
	StatusCompleted:      {},
	StatusCancelled:      {},
}

// noShowTransitions are reachable only by settling a reported no-show, never by a plain request.
var noShowTransitions = map[BookingStatus]BookingStatus{
	StatusDriverEnRoute: StatusCancelled,
}

// AllStatuses lists every status in lifecycle order.
func AllStatuses() []BookingStatus {
	return []BookingStatus{
		StatusPending, StatusConfirmed, StatusDriverAssigned, StatusDriverEnRoute,
		StatusInProgress, StatusCompleted, StatusCancelled,
	}
}

// IsValid returns true if the status is a recognized booking status.
func (s BookingStatus) IsValid() bool {
	_, exists := validTransitions[s]
	return exists
}

// CanTransitionTo returns true if a transition from this status to the target is allowed.
func (s BookingStatus) CanTransitionTo(target BookingStatus) bool {
	allowed, exists := validTransitions[s]
	if !exists {
		return false
	}
	for _, t := range allowed {
		if t == target {
			return true
		}
	}
	return false
}

// Successors returns a copy of the allowed-successor set.
func (s BookingStatus) Successors() []BookingStatus {
	allowed := validTransitions[s]
	out := make([]BookingStatus, len(allowed))
	copy(out, allowed)
	return out
}

// IsTerminal returns true if no further transitions are possible from this status.
func (s BookingStatus) IsTerminal() bool {
	allowed, exists := validTransitions[s]
	if !exists {
		return true
	}
	return len(allowed) == 0
}

// IsActive reports whether a booking in this status still holds (or may soon hold) resources.
func (s BookingStatus) IsActive() bool {
	return s.IsValid() && !s.IsTerminal()
}

// HoldsDriver reports whether a booking in this status keeps its driver busy.
func (s BookingStatus) HoldsDriver() bool {
	switch s {
	case StatusDriverAssigned, StatusDriverEnRoute, StatusInProgress:
		return true
	default:
		return false
	}
}

// CanBeCancelled returns true if the booking can be cancelled from this status.
func (s BookingStatus) CanBeCancelled() bool {
	return s.CanTransitionTo(StatusCancelled)
}

// String returns the string representation of the status.
func (s BookingStatus) String() string {
	return string(s)
}

// ParseBookingStatus converts a string to a BookingStatus, returning an error if invalid.
func ParseBookingStatus(s string) (BookingStatus, error) {
	status := BookingStatus(s)
	if !status.IsValid() {
		return "", domain.NewValidationError("invalid booking status: " + s)
	}
	return status, nil
}

// ActiveStatuses lists the non-terminal statuses.
func ActiveStatuses() []BookingStatus {
	var out []BookingStatus
	for _, s := range AllStatuses() {
		if s.IsActive() {
			out = append(out, s)
		}
	}
	return out
}
