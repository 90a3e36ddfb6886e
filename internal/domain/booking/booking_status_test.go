package booking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thairide/service-booking/internal/platform/domain"
)

func TestCanTransitionTo(t *testing.T) {
	allowed := map[BookingStatus][]BookingStatus{
		StatusPending:        {StatusConfirmed, StatusCancelled},
		StatusConfirmed:      {StatusDriverAssigned, StatusCancelled},
		StatusDriverAssigned: {StatusDriverEnRoute, StatusConfirmed, StatusCancelled},
		StatusDriverEnRoute:  {StatusInProgress},
		StatusInProgress:     {StatusCompleted},
	}

	for _, from := range AllStatuses() {
		for _, to := range AllStatuses() {
			want := false
			for _, s := range allowed[from] {
				if s == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
	assert.False(t, StatusInProgress.IsTerminal())
	assert.True(t, BookingStatus("bogus").IsTerminal())

	assert.Empty(t, StatusCompleted.Successors())
	assert.ElementsMatch(t,
		[]BookingStatus{StatusPending, StatusConfirmed, StatusDriverAssigned, StatusDriverEnRoute, StatusInProgress},
		ActiveStatuses())
}

func TestSuccessors_ReturnsCopy(t *testing.T) {
	s := StatusPending.Successors()
	s[0] = StatusCompleted
	assert.Equal(t, StatusConfirmed, StatusPending.Successors()[0])
}

func TestHoldsDriver(t *testing.T) {
	for _, s := range AllStatuses() {
		want := s == StatusDriverAssigned || s == StatusDriverEnRoute || s == StatusInProgress
		assert.Equal(t, want, s.HoldsDriver(), s.String())
	}
}

func TestEnRouteCannotBeCancelledByRequest(t *testing.T) {
	assert.False(t, StatusDriverEnRoute.CanBeCancelled())
	assert.Equal(t, StatusCancelled, noShowTransitions[StatusDriverEnRoute])
}

func TestParseBookingStatus(t *testing.T) {
	s, err := ParseBookingStatus("driver_en_route")
	require.NoError(t, err)
	assert.Equal(t, StatusDriverEnRoute, s)

	_, err = ParseBookingStatus("arrived")
	assert.True(t, domain.IsKind(err, domain.KindValidation))
}

func TestParseActorAndVehicleType_RejectAsValidation(t *testing.T) {
	_, err := ParseActor("dispatcher")
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	_, err = ParseVehicleType("tuk_tuk")
	assert.True(t, domain.IsKind(err, domain.KindValidation))
}
