package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var assignedAt = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func assigned() BookingSnapshot {
	at := assignedAt
	return BookingSnapshot{HasDriver: true, DriverAssignedAt: &at}
}

func TestCancellationFee_NoDriver(t *testing.T) {
	got := CancellationFee(BookingSnapshot{}, Defaults(), assignedAt.Add(time.Hour))
	assert.Equal(t, FeeDecision{Reason: ReasonNoDriver}, got)
}

func TestCancellationFee_WithinFreeWindow(t *testing.T) {
	got := CancellationFee(assigned(), Defaults(), assignedAt.Add(150*time.Second))
	assert.Equal(t, int64(0), got.FeeSatang)
	assert.Equal(t, ReasonFree, got.Reason)

	// The window end is inclusive.
	got = CancellationFee(assigned(), Defaults(), assignedAt.Add(3*time.Minute))
	assert.Equal(t, ReasonFree, got.Reason)
}

func TestCancellationFee_LateFee(t *testing.T) {
	b := assigned()
	enRoute := assignedAt.Add(time.Minute)
	b.DriverEnRouteAt = &enRoute

	got := CancellationFee(b, Defaults(), assignedAt.Add(200*time.Second))
	assert.Equal(t, FeeDecision{
		FeeSatang:           5000,
		DriverShareSatang:   2500,
		PlatformShareSatang: 2500,
		Reason:              ReasonLateFee,
	}, got)
}

func TestCancellationFee_DriverLateWaiver(t *testing.T) {
	cfg := Defaults()

	t.Run("driver never set off", func(t *testing.T) {
		got := CancellationFee(assigned(), cfg, assignedAt.Add(16*time.Minute))
		assert.Equal(t, ReasonDriverLateWaiver, got.Reason)
		assert.Zero(t, got.FeeSatang)
	})

	t.Run("driver set off late", func(t *testing.T) {
		b := assigned()
		enRoute := assignedAt.Add(20 * time.Minute)
		b.DriverEnRouteAt = &enRoute
		got := CancellationFee(b, cfg, assignedAt.Add(30*time.Minute))
		assert.Equal(t, ReasonDriverLateWaiver, got.Reason)
	})

	t.Run("driver set off in time", func(t *testing.T) {
		b := assigned()
		enRoute := assignedAt.Add(2 * time.Minute)
		b.DriverEnRouteAt = &enRoute
		got := CancellationFee(b, cfg, assignedAt.Add(45*time.Minute))
		assert.Equal(t, ReasonLateFee, got.Reason)
	})

	t.Run("waiver disabled", func(t *testing.T) {
		c := cfg
		c.DriverLateWaiverEnabled = false
		got := CancellationFee(assigned(), c, assignedAt.Add(16*time.Minute))
		assert.Equal(t, ReasonLateFee, got.Reason)
	})
}

func TestCancellationFee_FeeDisabled(t *testing.T) {
	cfg := Defaults()
	cfg.LateCancellationFeeEnabled = false
	got := CancellationFee(assigned(), cfg, assignedAt.Add(4*time.Minute))
	assert.Equal(t, FeeDecision{Reason: ReasonFeeDisabled}, got)
}

func TestSplit_RoundingFavoursPlatform(t *testing.T) {
	cfg := Defaults()
	cfg.DriverSharePercent = 33
	got := split(1001, cfg, ReasonLateFee)
	assert.Equal(t, int64(330), got.DriverShareSatang)
	assert.Equal(t, int64(671), got.PlatformShareSatang)
	assert.Equal(t, got.FeeSatang, got.DriverShareSatang+got.PlatformShareSatang)
}

func TestNoShow(t *testing.T) {
	cfg := Defaults()

	tests := []struct {
		name      string
		waited    time.Duration
		eligible  bool
		remaining time.Duration
		fee       int64
		reason    ReasonCode
	}{
		{"too early", 7 * time.Minute, false, 3 * time.Minute, 0, ReasonNoShowNotEligible},
		{"exactly at threshold", 10 * time.Minute, true, 0, 5000, ReasonNoShowFee},
		{"well past threshold", time.Hour, true, 0, 5000, ReasonNoShowFee},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NoShow(cfg, tt.waited)
			assert.Equal(t, tt.eligible, got.Eligible)
			assert.Equal(t, tt.remaining, got.RemainingWait)
			assert.Equal(t, tt.fee, got.FeeSatang)
			assert.Equal(t, tt.reason, got.Reason)
		})
	}

	cfg.NoShowFeeEnabled = false
	got := NoShow(cfg, 11*time.Minute)
	assert.True(t, got.Eligible)
	assert.Equal(t, ReasonFeeDisabled, got.Reason)
	assert.Zero(t, got.FeeSatang)
}

func TestDisputeWindow(t *testing.T) {
	cfg := Defaults()
	completed := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)

	ok, reason := DisputeWindow(cfg, completed, completed.Add(48*time.Hour))
	assert.True(t, ok)
	assert.Equal(t, ReasonWithinDisputeWindow, reason)

	ok, reason = DisputeWindow(cfg, completed, completed.Add(48*time.Hour+time.Second))
	assert.False(t, ok)
	assert.Equal(t, ReasonDisputeWindowExpired, reason)

	cfg.DisputesEnabled = false
	ok, reason = DisputeWindow(cfg, completed, completed)
	assert.False(t, ok)
	assert.Equal(t, ReasonDisputesDisabled, reason)
}
