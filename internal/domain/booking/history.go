package booking

import (
	"time"

	"github.com/google/uuid"
)

// StatusEntry is one immutable audit record of a transition.
// Seq starts at 1 and increases by one per transition; (booking id, seq) is unique.
type StatusEntry struct {
	Seq     int           `json:"seq"`
	Status  BookingStatus `json:"status"`
	At      time.Time     `json:"at"`
	Note    string        `json:"note,omitempty"`
	Actor   Actor         `json:"actor"`
	ActorID *uuid.UUID    `json:"actor_id,omitempty"`
}

// Cancellation records how a booking ended early and what it cost.
type Cancellation struct {
	By                  Actor      `json:"by"`
	ByID                *uuid.UUID `json:"by_id,omitempty"`
	Reason              string     `json:"reason,omitempty"`
	NoShow              bool       `json:"no_show"`
	WaitedSeconds       int64      `json:"waited_seconds,omitempty"`
	FeeSatang           int64      `json:"fee_satang"`
	DriverShareSatang   int64      `json:"driver_share_satang"`
	PlatformShareSatang int64      `json:"platform_share_satang"`
	FeeReason           string     `json:"fee_reason"`
	PolicyVersion       int64      `json:"policy_version"`
	At                  time.Time  `json:"at"`
}

// CustomerRating is the customer's one-time score for the driver.
type CustomerRating struct {
	Score     int       `json:"score"`
	TipSatang int64     `json:"tip_satang"`
	Comment   string    `json:"comment,omitempty"`
	At        time.Time `json:"at"`
}
