package policy

import (
	"context"
	"fmt"
	"time"

	"github.com/thairide/service-booking/internal/platform/domain"
)

// Config is one immutable, versioned snapshot of every tunable booking threshold.
// A transition loads exactly one Config and evaluates all rules against it.
type Config struct {
	Version int64 `json:"version"`

	FreeCancellationWindow     time.Duration `json:"free_cancellation_window"`
	LateCancellationFeeSatang  int64         `json:"late_cancellation_fee_satang"`
	LateCancellationFeeEnabled bool          `json:"late_cancellation_fee_enabled"`

	NoShowWaitTime   time.Duration `json:"no_show_wait_time"`
	NoShowFeeSatang  int64         `json:"no_show_fee_satang"`
	NoShowFeeEnabled bool          `json:"no_show_fee_enabled"`

	DriverLateThreshold     time.Duration `json:"driver_late_threshold"`
	DriverLateWaiverEnabled bool          `json:"driver_late_waiver_enabled"`

	// DriverSharePercent of any non-zero fee is credited to the driver; the rest stays with the platform.
	DriverSharePercent int `json:"driver_share_percent"`

	MaxActiveBookingsPerCustomer int  `json:"max_active_bookings_per_customer"`
	ActiveBookingLimitEnabled    bool `json:"active_booking_limit_enabled"`

	MaxCancellationsPerDay   int  `json:"max_cancellations_per_day"`
	CancellationLimitEnabled bool `json:"cancellation_limit_enabled"`

	DisputeWindow   time.Duration `json:"dispute_window"`
	DisputesEnabled bool          `json:"disputes_enabled"`

	AssignmentAcceptanceWindow time.Duration `json:"assignment_acceptance_window"`

	RatingPriorMean  float64 `json:"rating_prior_mean"`
	RatingMinReviews int     `json:"rating_min_reviews"`

	// Timezone anchors the per-day cancellation cap.
	Timezone string `json:"timezone"`

	CreatedAt time.Time `json:"created_at"`
}

// Defaults returns the baseline policy used to seed version 1.
func Defaults() Config {
	return Config{
		Version:                      1,
		FreeCancellationWindow:       3 * time.Minute,
		LateCancellationFeeSatang:    5000,
		LateCancellationFeeEnabled:   true,
		NoShowWaitTime:               10 * time.Minute,
		NoShowFeeSatang:              5000,
		NoShowFeeEnabled:             true,
		DriverLateThreshold:          15 * time.Minute,
		DriverLateWaiverEnabled:      true,
		DriverSharePercent:           50,
		MaxActiveBookingsPerCustomer: 3,
		ActiveBookingLimitEnabled:    true,
		MaxCancellationsPerDay:       3,
		CancellationLimitEnabled:     true,
		DisputeWindow:                48 * time.Hour,
		DisputesEnabled:              true,
		AssignmentAcceptanceWindow:   5 * time.Minute,
		RatingPriorMean:              4.0,
		RatingMinReviews:             5,
		Timezone:                     "Asia/Bangkok",
	}
}

// Validate rejects configurations that would make the fee engine misbehave.
func (c Config) Validate() error {
	switch {
	case c.FreeCancellationWindow < 0, c.NoShowWaitTime < 0, c.DriverLateThreshold < 0,
		c.DisputeWindow < 0, c.AssignmentAcceptanceWindow < 0:
		return domain.NewValidationError("policy durations must not be negative")
	case c.LateCancellationFeeSatang < 0 || c.NoShowFeeSatang < 0:
		return domain.NewValidationError("policy fees must not be negative")
	case c.DriverSharePercent < 0 || c.DriverSharePercent > 100:
		return domain.NewValidationError("driver share percent must be within 0..100")
	case c.MaxActiveBookingsPerCustomer < 0 || c.MaxCancellationsPerDay < 0:
		return domain.NewValidationError("policy limits must not be negative")
	case c.RatingPriorMean < 1 || c.RatingPriorMean > 5:
		return domain.NewValidationError("rating prior mean must be within 1..5")
	case c.RatingMinReviews < 0:
		return domain.NewValidationError("rating min reviews must not be negative")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return domain.NewValidationError(fmt.Sprintf("unknown timezone %q", c.Timezone))
	}
	return nil
}

// StartOfDay returns midnight of now's calendar day in the policy timezone.
func (c Config) StartOfDay(now time.Time) time.Time {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		loc = time.UTC
	}
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// Provider supplies the current policy snapshot.
type Provider interface {
	Current(ctx context.Context) (Config, error)
}

// Repository stores policy versions. Versions are append-only.
type Repository interface {
	Provider

	// Publish stores cfg as the next version and returns it with Version and CreatedAt set.
	Publish(ctx context.Context, cfg Config) (Config, error)

	// History lists stored versions, newest first.
	History(ctx context.Context, limit int) ([]Config, error)
}
