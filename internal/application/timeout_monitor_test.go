package application_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thairide/service-booking/internal/domain/policy"
	"github.com/thairide/service-booking/internal/platform/domain"
)

func TestSweep_ExpiresOverdueAssignment(t *testing.T) {
	h := newHarness(t)
	id, driverID, _ := h.assignedBooking(t, customer())
	assert.Equal(t, 1, h.deadlines.Len())

	h.clock.Advance(4 * time.Minute)
	assert.Zero(t, h.monitor.Sweep(h.ctx))
	assert.Equal(t, "driver_assigned", h.booking(t, id).Status)

	h.clock.Advance(time.Minute + time.Second)
	assert.Equal(t, 1, h.monitor.Sweep(h.ctx))

	bk := h.booking(t, id)
	assert.Equal(t, "confirmed", bk.Status)
	assert.Nil(t, bk.Driver)
	last := bk.StatusHistory[len(bk.StatusHistory)-1]
	assert.Contains(t, last.Note, string(policy.ReasonAssignmentExpiry))
	assert.Equal(t, "available", h.driver(t, driverID).Status)
	assert.Zero(t, h.deadlines.Len())

	assert.Zero(t, h.monitor.Sweep(h.ctx))
}

func TestSweep_FindsAssignmentsMissingFromDeadlineStore(t *testing.T) {
	h := newHarness(t)
	id, _, _ := h.assignedBooking(t, customer())
	require.NoError(t, h.deadlines.Cancel(h.ctx, id))

	h.clock.Advance(6 * time.Minute)
	assert.Equal(t, 1, h.monitor.Sweep(h.ctx))
	assert.Equal(t, "confirmed", h.booking(t, id).Status)
}

func TestSweep_AcceptedAssignmentIsLeftAlone(t *testing.T) {
	h := newHarness(t)
	id, driverID, driverCaller := h.assignedBooking(t, customer())
	_, err := h.bookings.AcceptAssignment(h.ctx, id, driverCaller)
	require.NoError(t, err)
	assert.Zero(t, h.deadlines.Len())

	h.clock.Advance(10 * time.Minute)
	assert.Zero(t, h.monitor.Sweep(h.ctx))
	assert.Equal(t, "driver_en_route", h.booking(t, id).Status)
	assert.Equal(t, "busy", h.driver(t, driverID).Status)
}

func TestExpireAssignment_BeforeWindowElapses(t *testing.T) {
	h := newHarness(t)
	id, _, _ := h.assignedBooking(t, customer())

	h.clock.Advance(time.Minute)
	_, err := h.bookings.ExpireAssignment(h.ctx, id)
	assert.Equal(t, "assignment_window_open", domain.CodeOf(err))
	assert.Equal(t, "driver_assigned", h.booking(t, id).Status)
}

// A driver accepting as the window closes races the monitor; exactly one of them wins.
func TestExpireAssignment_RacesAccept(t *testing.T) {
	h := newHarness(t)
	id, driverID, driverCaller := h.assignedBooking(t, customer())
	h.clock.Advance(5*time.Minute + time.Second)

	var (
		wg                   sync.WaitGroup
		acceptErr, expireErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, acceptErr = h.bookings.AcceptAssignment(h.ctx, id, driverCaller)
	}()
	go func() {
		defer wg.Done()
		_, expireErr = h.bookings.ExpireAssignment(h.ctx, id)
	}()
	wg.Wait()

	bk := h.booking(t, id)
	d := h.driver(t, driverID)
	switch {
	case acceptErr == nil:
		require.Error(t, expireErr)
		assert.Equal(t, domain.CodeStaleState, domain.CodeOf(expireErr))
		assert.Equal(t, "driver_en_route", bk.Status)
		assert.Equal(t, "busy", d.Status)
	case expireErr == nil:
		assert.Equal(t, domain.CodeStaleState, domain.CodeOf(acceptErr))
		assert.Equal(t, "confirmed", bk.Status)
		assert.Equal(t, "available", d.Status)
	default:
		t.Fatalf("both lost: accept=%v expire=%v", acceptErr, expireErr)
	}
}
