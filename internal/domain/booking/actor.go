package booking

import "github.com/thairide/service-booking/internal/platform/domain"

// Actor is the kind of party requesting a transition.
type Actor string

const (
	ActorCustomer Actor = "customer"
	ActorDriver   Actor = "driver"
	ActorAdmin    Actor = "admin"
	ActorSystem   Actor = "system"
)

// IsValid reports whether a is a known actor.
func (a Actor) IsValid() bool {
	switch a {
	case ActorCustomer, ActorDriver, ActorAdmin, ActorSystem:
		return true
	}
	return false
}

// ParseActor converts a string to an Actor.
func ParseActor(s string) (Actor, error) {
	a := Actor(s)
	if !a.IsValid() {
		return "", domain.NewValidationError("invalid actor: " + s)
	}
	return a, nil
}

// PaymentStatus tracks what the customer owes for the booking.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentDue     PaymentStatus = "due"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFeeDue  PaymentStatus = "fee_due"
	PaymentWaived  PaymentStatus = "waived"
)
