package application

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	bookingDomain "github.com/thairide/service-booking/internal/domain/booking"
	"github.com/thairide/service-booking/internal/domain/driver"
	"github.com/thairide/service-booking/internal/platform/domain"
)

// Caller identifies who is asking for an operation.
type Caller struct {
	Actor  bookingDomain.Actor
	UserID uuid.UUID
}

// SystemCaller is the identity used by background jobs.
var SystemCaller = Caller{Actor: bookingDomain.ActorSystem}

func (c Caller) userIDPtr() *uuid.UUID {
	if c.UserID == uuid.Nil {
		return nil
	}
	id := c.UserID
	return &id
}

type edge struct {
	from bookingDomain.BookingStatus
	to   bookingDomain.BookingStatus
}

// transitionActors lists which actors may request each edge of the transition table.
var transitionActors = map[edge][]bookingDomain.Actor{
	{bookingDomain.StatusPending, bookingDomain.StatusConfirmed}:            {bookingDomain.ActorAdmin, bookingDomain.ActorSystem},
	{bookingDomain.StatusPending, bookingDomain.StatusCancelled}:            {bookingDomain.ActorCustomer, bookingDomain.ActorAdmin, bookingDomain.ActorSystem},
	{bookingDomain.StatusConfirmed, bookingDomain.StatusDriverAssigned}:     {bookingDomain.ActorAdmin, bookingDomain.ActorSystem},
	{bookingDomain.StatusConfirmed, bookingDomain.StatusCancelled}:          {bookingDomain.ActorCustomer, bookingDomain.ActorAdmin, bookingDomain.ActorSystem},
	{bookingDomain.StatusDriverAssigned, bookingDomain.StatusDriverEnRoute}: {bookingDomain.ActorDriver, bookingDomain.ActorAdmin},
	{bookingDomain.StatusDriverAssigned, bookingDomain.StatusConfirmed}:     {bookingDomain.ActorDriver, bookingDomain.ActorAdmin, bookingDomain.ActorSystem},
	{bookingDomain.StatusDriverAssigned, bookingDomain.StatusCancelled}:     {bookingDomain.ActorCustomer, bookingDomain.ActorAdmin, bookingDomain.ActorSystem},
	{bookingDomain.StatusDriverEnRoute, bookingDomain.StatusInProgress}:     {bookingDomain.ActorDriver, bookingDomain.ActorAdmin},
	{bookingDomain.StatusInProgress, bookingDomain.StatusCompleted}:         {bookingDomain.ActorDriver, bookingDomain.ActorAdmin},
}

func actorMayTransition(from, to bookingDomain.BookingStatus, actor bookingDomain.Actor) bool {
	for _, a := range transitionActors[edge{from, to}] {
		if a == actor {
			return true
		}
	}
	return false
}

// authorizeBooking checks that the caller is a party to the booking.
// Customers must own it; drivers must be the assigned driver. Admin and system act on any booking.
func authorizeBooking(ctx context.Context, drivers driver.Repository, bk *bookingDomain.Booking, caller Caller) error {
	switch caller.Actor {
	case bookingDomain.ActorAdmin, bookingDomain.ActorSystem:
		return nil
	case bookingDomain.ActorCustomer:
		if bk.CustomerID() != caller.UserID {
			return domain.NewForbiddenError("booking does not belong to this customer")
		}
		return nil
	case bookingDomain.ActorDriver:
		if bk.Driver() == nil {
			return domain.NewForbiddenError("booking has no assigned driver")
		}
		d, err := drivers.FindByUserID(ctx, caller.UserID)
		if err != nil {
			if domain.IsKind(err, domain.KindNotFound) {
				return domain.NewForbiddenError("caller has no driver profile")
			}
			return err
		}
		if d.ID() != bk.Driver().DriverID {
			return domain.NewForbiddenError("booking is assigned to another driver")
		}
		return nil
	default:
		return domain.NewValidationError(fmt.Sprintf("invalid actor: %s", caller.Actor))
	}
}
