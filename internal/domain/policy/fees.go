package policy

import (
	"time"
)

// ReasonCode explains a fee or eligibility decision to the presentation layer.
type ReasonCode string

const (
	ReasonNoDriver         ReasonCode = "no_driver"
	ReasonFree             ReasonCode = "free"
	ReasonDriverLateWaiver ReasonCode = "driver_late_waiver"
	ReasonLateFee          ReasonCode = "late_fee"
	ReasonFeeDisabled      ReasonCode = "fee_disabled"
	ReasonAssignmentExpiry ReasonCode = "assignment_timeout"

	ReasonNoShowFee         ReasonCode = "no_show_fee"
	ReasonNoShowNotEligible ReasonCode = "no_show_not_eligible"

	ReasonWithinDisputeWindow  ReasonCode = "within_dispute_window"
	ReasonDisputeWindowExpired ReasonCode = "dispute_window_expired"
	ReasonDisputesDisabled     ReasonCode = "disputes_disabled"
)

// BookingSnapshot is the read-only view of a booking the fee engine needs.
type BookingSnapshot struct {
	HasDriver        bool
	DriverAssignedAt *time.Time
	DriverEnRouteAt  *time.Time
	DriverArrivedAt  *time.Time
	CompletedAt      *time.Time
}

// FeeDecision is the outcome of a cancellation or no-show evaluation.
type FeeDecision struct {
	FeeSatang           int64      `json:"fee_satang"`
	DriverShareSatang   int64      `json:"driver_share_satang"`
	PlatformShareSatang int64      `json:"platform_share_satang"`
	Reason              ReasonCode `json:"reason"`
}

// NoShowDecision is the outcome of a no-show evaluation.
type NoShowDecision struct {
	Eligible      bool          `json:"eligible"`
	RemainingWait time.Duration `json:"remaining_wait"`
	FeeDecision
}

// CancellationFee decides what a cancellation at now costs.
func CancellationFee(b BookingSnapshot, cfg Config, now time.Time) FeeDecision {
	if !b.HasDriver || b.DriverAssignedAt == nil {
		return FeeDecision{Reason: ReasonNoDriver}
	}

	elapsed := now.Sub(*b.DriverAssignedAt)
	if elapsed <= cfg.FreeCancellationWindow {
		return FeeDecision{Reason: ReasonFree}
	}
	if cfg.DriverLateWaiverEnabled && DriverLate(b, cfg, now) {
		return FeeDecision{Reason: ReasonDriverLateWaiver}
	}
	if cfg.LateCancellationFeeEnabled && cfg.LateCancellationFeeSatang > 0 {
		return split(cfg.LateCancellationFeeSatang, cfg, ReasonLateFee)
	}
	return FeeDecision{Reason: ReasonFeeDisabled}
}

// DriverLate reports whether the driver took longer than the late threshold to get moving.
// A driver who set off in time is never late, however long the customer waited afterwards.
func DriverLate(b BookingSnapshot, cfg Config, now time.Time) bool {
	if b.DriverAssignedAt == nil {
		return false
	}
	moved := b.DriverEnRouteAt
	if moved == nil {
		moved = b.DriverArrivedAt
	}
	if moved != nil {
		return moved.Sub(*b.DriverAssignedAt) > cfg.DriverLateThreshold
	}
	return now.Sub(*b.DriverAssignedAt) > cfg.DriverLateThreshold
}

// NoShow decides whether a driver who waited for waited may report the customer absent.
// The threshold is inclusive.
func NoShow(cfg Config, waited time.Duration) NoShowDecision {
	if waited < cfg.NoShowWaitTime {
		return NoShowDecision{
			Eligible:      false,
			RemainingWait: cfg.NoShowWaitTime - waited,
			FeeDecision:   FeeDecision{Reason: ReasonNoShowNotEligible},
		}
	}
	if !cfg.NoShowFeeEnabled || cfg.NoShowFeeSatang <= 0 {
		return NoShowDecision{Eligible: true, FeeDecision: FeeDecision{Reason: ReasonFeeDisabled}}
	}
	return NoShowDecision{Eligible: true, FeeDecision: split(cfg.NoShowFeeSatang, cfg, ReasonNoShowFee)}
}

// DisputeWindow reports whether a dispute raised at now against a trip completed at completedAt
// is still allowed. The window end is inclusive.
func DisputeWindow(cfg Config, completedAt, now time.Time) (bool, ReasonCode) {
	if !cfg.DisputesEnabled {
		return false, ReasonDisputesDisabled
	}
	if now.After(completedAt.Add(cfg.DisputeWindow)) {
		return false, ReasonDisputeWindowExpired
	}
	return true, ReasonWithinDisputeWindow
}

// split divides fee between driver and platform. Rounding favours the platform.
func split(fee int64, cfg Config, reason ReasonCode) FeeDecision {
	driver := fee * int64(cfg.DriverSharePercent) / 100
	return FeeDecision{
		FeeSatang:           fee,
		DriverShareSatang:   driver,
		PlatformShareSatang: fee - driver,
		Reason:              reason,
	}
}
