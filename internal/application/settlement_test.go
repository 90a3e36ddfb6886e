package application_test

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thairide/service-booking/internal/application"
	"github.com/thairide/service-booking/internal/contracts"
	"github.com/thairide/service-booking/internal/domain/booking"
	"github.com/thairide/service-booking/internal/domain/policy"
	"github.com/thairide/service-booking/internal/platform/domain"
)

func TestReportNoShow_WaitsForThreshold(t *testing.T) {
	h := newHarness(t)
	c := customer()
	id, driverID, driverCaller := h.assignedBooking(t, c)
	_, err := h.bookings.AcceptAssignment(h.ctx, id, driverCaller)
	require.NoError(t, err)

	h.clock.Advance(5 * time.Minute)
	_, err = h.bookings.MarkDriverArrived(h.ctx, id, driverCaller, nil)
	require.NoError(t, err)

	h.clock.Advance(7 * time.Minute)
	_, err = h.bookings.ReportNoShow(h.ctx, id, driverCaller, nil)
	require.Error(t, err)
	assert.Equal(t, application.CodeNoShowNotEligible, domain.CodeOf(err))
	de, ok := err.(*domain.DomainError)
	require.True(t, ok)
	assert.Equal(t, int64(180), de.Details["remaining_wait_seconds"])
	assert.Equal(t, "driver_en_route", h.booking(t, id).Status)

	h.clock.Advance(3 * time.Minute)
	res, err := h.bookings.ReportNoShow(h.ctx, id, driverCaller, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(600), res.WaitedSeconds)
	assert.Equal(t, policy.ReasonNoShowFee, res.Fee.Reason)
	assert.Equal(t, int64(5000), res.Fee.FeeSatang)
	assert.Equal(t, "cancelled", res.Booking.Status)
	assert.Equal(t, "fee_due", res.Booking.PaymentStatus)
	require.NotNil(t, res.Booking.Cancellation)
	assert.True(t, res.Booking.Cancellation.NoShow)

	d := h.driver(t, driverID)
	assert.Equal(t, "available", d.Status)
	assert.Equal(t, int64(2500), d.TotalEarningsSatang)

	noShows := h.events.ofType(contracts.BookingNoShow)
	require.Len(t, noShows, 1)
	assert.True(t, noShows[0].Data.(contracts.BookingCancelledEvent).NoShow)
}

func TestReportNoShow_UsesReportedWaitWithoutArrival(t *testing.T) {
	h := newHarness(t)
	id, _, driverCaller := h.assignedBooking(t, customer())
	_, err := h.bookings.AcceptAssignment(h.ctx, id, driverCaller)
	require.NoError(t, err)

	_, err = h.bookings.ReportNoShow(h.ctx, id, driverCaller, nil)
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	waited := 10 * time.Minute
	res, err := h.bookings.ReportNoShow(h.ctx, id, driverCaller, &waited)
	require.NoError(t, err)
	assert.Equal(t, int64(600), res.WaitedSeconds)
}

func TestReportNoShow_Rules(t *testing.T) {
	h := newHarness(t)
	c := customer()
	id, _, driverCaller := h.assignedBooking(t, c)
	waited := time.Hour

	_, err := h.bookings.ReportNoShow(h.ctx, id, driverCaller, &waited)
	assert.True(t, domain.IsKind(err, domain.KindInvalidTransition), "driver has not set off")

	_, err = h.bookings.ReportNoShow(h.ctx, id, c, &waited)
	assert.True(t, domain.IsKind(err, domain.KindForbidden))

	_, err = h.bookings.AcceptAssignment(h.ctx, id, driverCaller)
	require.NoError(t, err)
	_, otherDriver := h.onlineDriver(t)
	_, err = h.bookings.ReportNoShow(h.ctx, id, otherDriver, &waited)
	assert.True(t, domain.IsKind(err, domain.KindForbidden))
}

func TestMarkDriverArrived_Rules(t *testing.T) {
	h := newHarness(t)
	id, _, driverCaller := h.assignedBooking(t, customer())

	_, err := h.bookings.MarkDriverArrived(h.ctx, id, driverCaller, nil)
	assert.Equal(t, booking.CodeWrongStatusForOp, domain.CodeOf(err))

	_, err = h.bookings.AcceptAssignment(h.ctx, id, driverCaller)
	require.NoError(t, err)
	future := h.clock.Now().Add(time.Minute)
	_, err = h.bookings.MarkDriverArrived(h.ctx, id, driverCaller, &future)
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	h.clock.Advance(2 * time.Minute)
	bk, err := h.bookings.MarkDriverArrived(h.ctx, id, driverCaller, nil)
	require.NoError(t, err)
	require.NotNil(t, bk.DriverArrivedAt)
	assert.Len(t, bk.StatusHistory, 4)
}

func TestSubmitRating_SmoothsAndCreditsTip(t *testing.T) {
	h := newHarness(t)
	c := customer()
	id, driverID := h.completedBooking(t, c)
	fare := h.booking(t, id).FareSatang

	res, err := h.bookings.SubmitRating(h.ctx, id, c, application.RatingRequest{Score: 5, TipSatang: 2000, Comment: "smooth ride"})
	require.NoError(t, err)
	assert.Equal(t, 4.2, res.NewRating)
	assert.Equal(t, 1, res.NewRatingCount)
	assert.Equal(t, driverID, res.DriverID)

	d := h.driver(t, driverID)
	assert.Equal(t, 4.2, d.Rating)
	assert.Equal(t, 1, d.RatingCount)
	assert.Equal(t, int64(2000), d.TotalTipsSatang)
	assert.Equal(t, fare+2000, d.TotalEarningsSatang)

	_, err = h.bookings.SubmitRating(h.ctx, id, c, application.RatingRequest{Score: 1})
	assert.Equal(t, booking.CodeAlreadyRated, domain.CodeOf(err))
	assert.Equal(t, 1, h.driver(t, driverID).RatingCount)
	assert.Len(t, h.events.ofType(contracts.BookingRated), 1)
}

func TestSubmitRating_Rules(t *testing.T) {
	h := newHarness(t)
	c := customer()
	id, _, _ := h.assignedBooking(t, c)

	_, err := h.bookings.SubmitRating(h.ctx, id, c, application.RatingRequest{Score: 5})
	assert.Equal(t, booking.CodeNotCompleted, domain.CodeOf(err))

	_, err = h.bookings.SubmitRating(h.ctx, id, c, application.RatingRequest{Score: 6})
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	_, err = h.bookings.SubmitRating(h.ctx, id, admin(), application.RatingRequest{Score: 5})
	assert.True(t, domain.IsKind(err, domain.KindForbidden))
}

func TestSubmitRating_ConcurrentRatingsOfOneDriver(t *testing.T) {
	h := newHarness(t)
	driverID, driverCaller := h.onlineDriver(t)

	type trip struct {
		id     uuid.UUID
		caller application.Caller
	}
	var trips []trip
	for i := 0; i < 2; i++ {
		c := customer()
		id := h.confirmedBooking(t, c)
		_, err := h.bookings.AssignDriver(h.ctx, id, driverID, admin())
		require.NoError(t, err)
		_, err = h.bookings.AcceptAssignment(h.ctx, id, driverCaller)
		require.NoError(t, err)
		_, err = h.bookings.StartTrip(h.ctx, id, driverCaller)
		require.NoError(t, err)
		_, err = h.bookings.CompleteTrip(h.ctx, id, driverCaller)
		require.NoError(t, err)
		trips = append(trips, trip{id: id, caller: c})
	}

	var wg sync.WaitGroup
	errs := make([]error, len(trips))
	for i, tr := range trips {
		wg.Add(1)
		go func(i int, tr trip) {
			defer wg.Done()
			_, errs[i] = h.bookings.SubmitRating(h.ctx, tr.id, tr.caller, application.RatingRequest{Score: 5})
		}(i, tr)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	d := h.driver(t, driverID)
	assert.Equal(t, 2, d.RatingCount)
	assert.Equal(t, int64(2), d.TotalTrips)
}
