package dispute

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thairide/service-booking/internal/platform/domain"
)

var opened = time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC)

func newTestDispute(t *testing.T) *Dispute {
	t.Helper()
	d, err := NewDispute(uuid.New(), "customer", uuid.New(), "overcharged", "route was longer than needed", opened)
	require.NoError(t, err)
	return d
}

func TestNewDispute(t *testing.T) {
	d := newTestDispute(t)
	assert.Equal(t, StatusOpen, d.Status())
	assert.Equal(t, int64(1), d.Version())
	assert.Nil(t, d.ReviewerID())

	_, err := NewDispute(uuid.Nil, "customer", uuid.New(), "x", "", opened)
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	_, err = NewDispute(uuid.New(), "customer", uuid.New(), "  ", "", opened)
	assert.True(t, domain.IsKind(err, domain.KindValidation))
}

func TestDispute_ReviewThenResolve(t *testing.T) {
	d := newTestDispute(t)
	admin := uuid.New()

	require.NoError(t, d.StartReview(admin, opened.Add(time.Hour)))
	assert.Equal(t, StatusUnderReview, d.Status())
	assert.Equal(t, admin, *d.ReviewerID())

	require.NoError(t, d.Resolve(admin, "refunded THB 40", opened.Add(2*time.Hour)))
	assert.Equal(t, StatusResolved, d.Status())
	assert.True(t, d.Status().IsClosed())
	require.NotNil(t, d.ResolvedAt())
	assert.Equal(t, opened.Add(2*time.Hour), *d.ResolvedAt())
}

func TestDispute_RejectDirectly(t *testing.T) {
	d := newTestDispute(t)
	require.NoError(t, d.Reject(uuid.New(), "fare matches route", opened.Add(time.Hour)))
	assert.Equal(t, StatusRejected, d.Status())
}

func TestDispute_ClosedIsFinal(t *testing.T) {
	d := newTestDispute(t)
	require.NoError(t, d.Resolve(uuid.New(), "ok", opened.Add(time.Hour)))

	err := d.Reject(uuid.New(), "changed mind", opened.Add(2*time.Hour))
	assert.True(t, domain.IsKind(err, domain.KindInvalidTransition))
	err = d.StartReview(uuid.New(), opened.Add(2*time.Hour))
	assert.True(t, domain.IsKind(err, domain.KindInvalidTransition))
	assert.Equal(t, StatusResolved, d.Status())
}

func TestDispute_CloseNeedsResolution(t *testing.T) {
	d := newTestDispute(t)
	err := d.Resolve(uuid.New(), "", opened.Add(time.Hour))
	assert.True(t, domain.IsKind(err, domain.KindValidation))
	assert.Equal(t, StatusOpen, d.Status())
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("under_review")
	require.NoError(t, err)
	assert.Equal(t, StatusUnderReview, s)

	_, err = ParseStatus("pending")
	assert.True(t, domain.IsKind(err, domain.KindValidation))
}
