package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thairide/service-booking/internal/application"
	bookingDomain "github.com/thairide/service-booking/internal/domain/booking"
	"github.com/thairide/service-booking/internal/domain/driver"
	"github.com/thairide/service-booking/internal/domain/policy"
	"github.com/thairide/service-booking/internal/platform/domain"
)

var now = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func newBooking(t *testing.T, customerID uuid.UUID) *bookingDomain.Booking {
	t.Helper()
	b, err := bookingDomain.NewBooking(bookingDomain.NewBookingParams{
		CustomerID:  customerID,
		Pickup:      bookingDomain.Location{Address: "A", Latitude: 13.7, Longitude: 100.5},
		Dropoff:     bookingDomain.Location{Address: "B", Latitude: 13.8, Longitude: 100.5},
		ScheduledAt: now,
		VehicleType: bookingDomain.VehicleSedan,
		FareSatang:  10000,
	}, now)
	require.NoError(t, err)
	return b
}

func newAvailableDriver(t *testing.T, repos application.Repositories) *driver.Driver {
	t.Helper()
	d, err := driver.NewDriver(uuid.New(), "Somchai", "", "1กข-1234", "", "sedan", 4.0)
	require.NoError(t, err)
	require.NoError(t, repos.Drivers.Save(context.Background(), d))
	require.NoError(t, repos.Drivers.SetAvailability(context.Background(), d.ID(), driver.StatusAvailable))
	return d
}

func TestStore_DoRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	repos := s.Repositories()
	d := newAvailableDriver(t, repos)
	b := newBooking(t, uuid.New())

	boom := errors.New("boom")
	err := s.Do(ctx, func(ctx context.Context, tx application.Repositories) error {
		require.NoError(t, tx.Bookings.Save(ctx, b))
		require.NoError(t, tx.Drivers.Claim(ctx, d.ID(), b.ID(), now))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = repos.Bookings.FindByID(ctx, b.ID())
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
	got, err := repos.Drivers.FindByID(ctx, d.ID())
	require.NoError(t, err)
	assert.Equal(t, driver.StatusAvailable, got.Status())
}

func TestStore_DoHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := NewStore().Do(ctx, func(context.Context, application.Repositories) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestBookingRepository_OptimisticLocking(t *testing.T) {
	ctx := context.Background()
	repos := NewStore().Repositories()
	b := newBooking(t, uuid.New())
	require.NoError(t, repos.Bookings.Save(ctx, b))
	assert.Empty(t, b.UncommittedHistory())

	first, err := repos.Bookings.FindByID(ctx, b.ID())
	require.NoError(t, err)
	second, err := repos.Bookings.FindByID(ctx, b.ID())
	require.NoError(t, err)

	require.NoError(t, first.Confirm(bookingDomain.ActorAdmin, nil, now.Add(time.Minute)))
	first.IncrementVersion()
	require.NoError(t, repos.Bookings.Update(ctx, first))

	require.NoError(t, second.Cancel(bookingDomain.ActorCustomer, nil, "", policy.FeeDecision{Reason: policy.ReasonNoDriver}, 1, now.Add(time.Minute)))
	second.IncrementVersion()
	err = repos.Bookings.Update(ctx, second)
	assert.Equal(t, domain.CodeStaleState, domain.CodeOf(err))

	stored, err := repos.Bookings.FindByID(ctx, b.ID())
	require.NoError(t, err)
	assert.Equal(t, bookingDomain.StatusConfirmed, stored.Status())
	assert.Len(t, stored.History(), 2)

	byNumber, err := repos.Bookings.FindByNumber(ctx, b.BookingNumber())
	require.NoError(t, err)
	assert.Equal(t, b.ID(), byNumber.ID())
}

func TestBookingRepository_Queries(t *testing.T) {
	ctx := context.Background()
	repos := NewStore().Repositories()
	customerID := uuid.New()

	cancelled := newBooking(t, customerID)
	require.NoError(t, cancelled.Cancel(bookingDomain.ActorCustomer, &customerID, "", policy.FeeDecision{Reason: policy.ReasonNoDriver}, 1, now))
	require.NoError(t, repos.Bookings.Save(ctx, cancelled))

	byAdmin := newBooking(t, customerID)
	require.NoError(t, byAdmin.Cancel(bookingDomain.ActorAdmin, nil, "", policy.FeeDecision{Reason: policy.ReasonNoDriver}, 1, now))
	require.NoError(t, repos.Bookings.Save(ctx, byAdmin))

	active := newBooking(t, customerID)
	require.NoError(t, active.Confirm(bookingDomain.ActorAdmin, nil, now))
	require.NoError(t, active.AssignDriver(bookingDomain.DriverSnapshot{DriverID: uuid.New()}, bookingDomain.ActorAdmin, nil, now))
	require.NoError(t, repos.Bookings.Save(ctx, active))

	n, err := repos.Bookings.CountActiveByCustomer(ctx, customerID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repos.Bookings.CountCancellationsByCustomerSince(ctx, customerID, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "admin cancellations are not counted")

	n, err = repos.Bookings.CountCancellationsByCustomerSince(ctx, customerID, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)

	overdue, err := repos.Bookings.FindAssignedBefore(ctx, now.Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, active.ID(), overdue[0].ID())

	overdue, err = repos.Bookings.FindAssignedBefore(ctx, now.Add(-time.Minute), 10)
	require.NoError(t, err)
	assert.Empty(t, overdue)

	page, total, err := repos.Bookings.FindByCustomerID(ctx, customerID, bookingDomain.ListFilter{Status: bookingDomain.StatusCancelled, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, page, 1)

	counts, err := repos.Bookings.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"cancelled": 2, "driver_assigned": 1}, counts)
}

func TestDriverRepository_ClaimAndRelease(t *testing.T) {
	ctx := context.Background()
	repos := NewStore().Repositories()
	d := newAvailableDriver(t, repos)
	bookingID := uuid.New()

	require.NoError(t, repos.Drivers.Claim(ctx, d.ID(), bookingID, now))
	err := repos.Drivers.Claim(ctx, d.ID(), uuid.New(), now)
	assert.True(t, domain.IsKind(err, domain.KindDriverUnavailable))

	err = repos.Drivers.SetAvailability(ctx, d.ID(), driver.StatusOffline)
	assert.Equal(t, driver.CodeDriverBusy, domain.CodeOf(err))

	got, err := repos.Drivers.FindByID(ctx, d.ID())
	require.NoError(t, err)
	assert.Equal(t, driver.StatusBusy, got.Status())
	assert.Equal(t, bookingID, *got.ClaimedBookingID())

	require.NoError(t, repos.Drivers.Release(ctx, d.ID()))
	got, err = repos.Drivers.FindByID(ctx, d.ID())
	require.NoError(t, err)
	assert.Equal(t, driver.StatusAvailable, got.Status())
	assert.Nil(t, got.ClaimedBookingID())

	err = repos.Drivers.Claim(ctx, uuid.New(), bookingID, now)
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
}

func TestDriverRepository_CreditAndRating(t *testing.T) {
	ctx := context.Background()
	repos := NewStore().Repositories()
	d := newAvailableDriver(t, repos)

	require.NoError(t, repos.Drivers.Credit(ctx, d.ID(), driver.Credit{Trips: 1, EarningsSatang: 15000}))
	require.NoError(t, repos.Drivers.Credit(ctx, d.ID(), driver.Credit{EarningsSatang: 2000, TipsSatang: 2000}))
	err := repos.Drivers.Credit(ctx, d.ID(), driver.Credit{EarningsSatang: -1})
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	require.NoError(t, repos.Drivers.UpdateRating(ctx, d.ID(), 0, 4.2, 1))
	err = repos.Drivers.UpdateRating(ctx, d.ID(), 0, 4.5, 1)
	assert.True(t, domain.IsKind(err, domain.KindConflict))

	got, err := repos.Drivers.FindByID(ctx, d.ID())
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.TotalTrips())
	assert.Equal(t, int64(17000), got.TotalEarningsSatang())
	assert.Equal(t, int64(2000), got.TotalTipsSatang())
	assert.Equal(t, 4.2, got.Rating())
	assert.Equal(t, 1, got.RatingCount())
}

func TestPolicyRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewPolicyRepository()

	_, err := repo.Current(ctx)
	assert.True(t, domain.IsKind(err, domain.KindNotFound))

	first, err := repo.Publish(ctx, policy.Defaults())
	require.NoError(t, err)
	second, err := repo.Publish(ctx, policy.Defaults())
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.Version)
	assert.Equal(t, int64(2), second.Version)

	history, err := repo.History(ctx, 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, int64(2), history[0].Version)
}
