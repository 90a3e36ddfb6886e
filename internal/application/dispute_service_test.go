package application_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thairide/service-booking/internal/application"
	"github.com/thairide/service-booking/internal/contracts"
	"github.com/thairide/service-booking/internal/domain/booking"
	"github.com/thairide/service-booking/internal/domain/dispute"
	"github.com/thairide/service-booking/internal/domain/policy"
	"github.com/thairide/service-booking/internal/platform/domain"
)

var overcharged = application.SubmitDisputeRequest{Reason: "overcharged", Description: "took the long way"}

// The window end is inclusive.
func TestSubmitDispute_Window(t *testing.T) {
	h := newHarness(t)

	onTime := customer()
	inWindow, _ := h.completedBooking(t, onTime)
	late := customer()
	outOfWindow, _ := h.completedBooking(t, late)
	completedAt := *h.booking(t, inWindow).CompletedAt

	h.clock.Set(completedAt.Add(48 * time.Hour))
	d, err := h.disputes.SubmitDispute(h.ctx, inWindow, onTime, overcharged)
	require.NoError(t, err)
	assert.Equal(t, "open", d.Status)
	assert.Equal(t, d.ID, *h.booking(t, inWindow).DisputeID)

	lateCompletedAt := *h.booking(t, outOfWindow).CompletedAt
	h.clock.Set(lateCompletedAt.Add(48*time.Hour + time.Second))
	_, err = h.disputes.SubmitDispute(h.ctx, outOfWindow, late, overcharged)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindPolicyViolation))
	assert.Equal(t, string(policy.ReasonDisputeWindowExpired), domain.CodeOf(err))
	assert.Nil(t, h.booking(t, outOfWindow).DisputeID)

	assert.Len(t, h.events.ofType(contracts.DisputeOpened), 1)
}

func TestSubmitDispute_Rules(t *testing.T) {
	h := newHarness(t)
	c := customer()
	pending := h.createBooking(t, c)

	_, err := h.disputes.SubmitDispute(h.ctx, pending, c, overcharged)
	assert.Equal(t, booking.CodeNotCompleted, domain.CodeOf(err))

	id, _ := h.completedBooking(t, c)
	_, err = h.disputes.SubmitDispute(h.ctx, id, customer(), overcharged)
	assert.True(t, domain.IsKind(err, domain.KindForbidden))

	_, err = h.disputes.SubmitDispute(h.ctx, id, application.Caller{Actor: booking.ActorDriver}, overcharged)
	assert.True(t, domain.IsKind(err, domain.KindForbidden))

	_, err = h.disputes.SubmitDispute(h.ctx, id, c, overcharged)
	require.NoError(t, err)
	_, err = h.disputes.SubmitDispute(h.ctx, id, c, overcharged)
	assert.Equal(t, booking.CodeDisputeExists, domain.CodeOf(err))
}

func TestSubmitDispute_DisabledByPolicy(t *testing.T) {
	h := newHarness(t)
	c := customer()
	id, _ := h.completedBooking(t, c)

	cfg := policy.Defaults()
	cfg.DisputesEnabled = false
	_, err := h.policy.Publish(h.ctx, cfg)
	require.NoError(t, err)

	_, err = h.disputes.SubmitDispute(h.ctx, id, c, overcharged)
	assert.Equal(t, string(policy.ReasonDisputesDisabled), domain.CodeOf(err))
}

func TestDisputeReview(t *testing.T) {
	h := newHarness(t)
	c := customer()
	id, _ := h.completedBooking(t, c)
	opened, err := h.disputes.SubmitDispute(h.ctx, id, c, overcharged)
	require.NoError(t, err)
	reviewer := admin()

	reviewing, err := h.disputes.StartReview(h.ctx, opened.ID, reviewer.UserID)
	require.NoError(t, err)
	assert.Equal(t, "under_review", reviewing.Status)

	_, err = h.disputes.Resolve(h.ctx, opened.ID, reviewer.UserID, application.ResolveDisputeRequest{})
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	resolved, err := h.disputes.Resolve(h.ctx, opened.ID, reviewer.UserID, application.ResolveDisputeRequest{Resolution: "refunded THB 40"})
	require.NoError(t, err)
	assert.Equal(t, "resolved", resolved.Status)
	require.NotNil(t, resolved.ResolvedAt)

	_, err = h.disputes.Reject(h.ctx, opened.ID, reviewer.UserID, application.ResolveDisputeRequest{Resolution: "no"})
	assert.True(t, domain.IsKind(err, domain.KindInvalidTransition))

	got, err := h.disputes.GetDispute(h.ctx, opened.ID, c)
	require.NoError(t, err)
	assert.Equal(t, "refunded THB 40", got.Resolution)

	_, err = h.disputes.GetDispute(h.ctx, opened.ID, customer())
	assert.True(t, domain.IsKind(err, domain.KindForbidden))

	list, total, err := h.disputes.ListDisputes(h.ctx, dispute.StatusResolved, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, list, 1)
	assert.Len(t, h.events.ofType(contracts.DisputeResolved), 1)
}
