package application

import (
	"time"

	"github.com/google/uuid"

	bookingDomain "github.com/thairide/service-booking/internal/domain/booking"
	"github.com/thairide/service-booking/internal/domain/dispute"
	"github.com/thairide/service-booking/internal/domain/driver"
	"github.com/thairide/service-booking/internal/domain/policy"
)

// CreateBookingRequest holds the data needed to create a new booking.
type CreateBookingRequest struct {
	Pickup      bookingDomain.Location `json:"pickup" binding:"required"`
	Dropoff     bookingDomain.Location `json:"dropoff" binding:"required"`
	ScheduledAt *time.Time             `json:"scheduled_at"`
	VehicleType string                 `json:"vehicle_type" binding:"required"`
	Passengers  int                    `json:"passengers"`
	// FareSatang is optional; the standard fare is quoted when it is zero.
	FareSatang int64  `json:"fare_satang"`
	Notes      string `json:"notes" binding:"max=1000"`
}

// BookingDTO is the response representation of a booking.
type BookingDTO struct {
	ID               uuid.UUID                     `json:"id"`
	BookingNumber    string                        `json:"booking_number"`
	CustomerID       uuid.UUID                     `json:"customer_id"`
	Pickup           bookingDomain.Location        `json:"pickup"`
	Dropoff          bookingDomain.Location        `json:"dropoff"`
	ScheduledAt      time.Time                     `json:"scheduled_at"`
	VehicleType      string                        `json:"vehicle_type"`
	Passengers       int                           `json:"passengers"`
	FareSatang       int64                         `json:"fare_satang"`
	Currency         string                        `json:"currency"`
	Status           string                        `json:"status"`
	Driver           *bookingDomain.DriverSnapshot `json:"driver,omitempty"`
	StatusHistory    []bookingDomain.StatusEntry   `json:"status_history"`
	PaymentStatus    string                        `json:"payment_status"`
	DriverAssignedAt *time.Time                    `json:"driver_assigned_at,omitempty"`
	DriverEnRouteAt  *time.Time                    `json:"driver_en_route_at,omitempty"`
	DriverArrivedAt  *time.Time                    `json:"driver_arrived_at,omitempty"`
	TripStartedAt    *time.Time                    `json:"trip_started_at,omitempty"`
	CompletedAt      *time.Time                    `json:"completed_at,omitempty"`
	CancelledAt      *time.Time                    `json:"cancelled_at,omitempty"`
	PaidAt           *time.Time                    `json:"paid_at,omitempty"`
	Cancellation     *bookingDomain.Cancellation   `json:"cancellation,omitempty"`
	Rating           *bookingDomain.CustomerRating `json:"rating,omitempty"`
	DisputeID        *uuid.UUID                    `json:"dispute_id,omitempty"`
	Notes            string                        `json:"notes,omitempty"`
	Version          int64                         `json:"version"`
	CreatedAt        time.Time                     `json:"created_at"`
	UpdatedAt        time.Time                     `json:"updated_at"`
}

// TransitionResult is returned by every state-changing booking operation.
type TransitionResult struct {
	Booking BookingDTO          `json:"booking"`
	From    string              `json:"from"`
	To      string              `json:"to"`
	Fee     *policy.FeeDecision `json:"fee,omitempty"`
}

// NoShowResult is returned when a no-show report closes the booking.
type NoShowResult struct {
	Booking       BookingDTO         `json:"booking"`
	WaitedSeconds int64              `json:"waited_seconds"`
	Fee           policy.FeeDecision `json:"fee"`
}

// RatingResult reports the driver's rating after a score is applied.
type RatingResult struct {
	Booking        BookingDTO `json:"booking"`
	DriverID       uuid.UUID  `json:"driver_id"`
	NewRating      float64    `json:"new_rating"`
	NewRatingCount int        `json:"new_rating_count"`
}

// BookingStatsDTO holds booking statistics for the admin dashboard.
type BookingStatsDTO struct {
	TotalBookings int64            `json:"total_bookings"`
	ByStatus      map[string]int64 `json:"by_status"`
}

// DriverDTO is the response representation of a driver.
type DriverDTO struct {
	ID                  uuid.UUID  `json:"id"`
	UserID              uuid.UUID  `json:"user_id"`
	Name                string     `json:"name"`
	Phone               string     `json:"phone"`
	VehiclePlate        string     `json:"vehicle_plate"`
	VehicleModel        string     `json:"vehicle_model"`
	VehicleType         string     `json:"vehicle_type"`
	Status              string     `json:"status"`
	ClaimedBookingID    *uuid.UUID `json:"claimed_booking_id,omitempty"`
	Rating              float64    `json:"rating"`
	RatingCount         int        `json:"rating_count"`
	TotalTrips          int64      `json:"total_trips"`
	TotalEarningsSatang int64      `json:"total_earnings_satang"`
	TotalTipsSatang     int64      `json:"total_tips_satang"`
	CreatedAt           time.Time  `json:"created_at"`
}

// DisputeDTO is the response representation of a dispute.
type DisputeDTO struct {
	ID          uuid.UUID  `json:"id"`
	BookingID   uuid.UUID  `json:"booking_id"`
	RaisedBy    string     `json:"raised_by"`
	RaisedByID  uuid.UUID  `json:"raised_by_id"`
	Reason      string     `json:"reason"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status"`
	Resolution  string     `json:"resolution,omitempty"`
	ReviewerID  *uuid.UUID `json:"reviewer_id,omitempty"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// --- Helpers ---

func toBookingDTO(bk *bookingDomain.Booking) BookingDTO {
	s := bk.State()
	return BookingDTO{
		ID:               s.ID,
		BookingNumber:    s.BookingNumber,
		CustomerID:       s.CustomerID,
		Pickup:           s.Pickup,
		Dropoff:          s.Dropoff,
		ScheduledAt:      s.ScheduledAt,
		VehicleType:      string(s.VehicleType),
		Passengers:       s.Passengers,
		FareSatang:       s.FareSatang,
		Currency:         s.Currency,
		Status:           string(s.Status),
		Driver:           s.Driver,
		StatusHistory:    s.History,
		PaymentStatus:    string(s.PaymentStatus),
		DriverAssignedAt: s.DriverAssignedAt,
		DriverEnRouteAt:  s.DriverEnRouteAt,
		DriverArrivedAt:  s.DriverArrivedAt,
		TripStartedAt:    s.TripStartedAt,
		CompletedAt:      s.CompletedAt,
		CancelledAt:      s.CancelledAt,
		PaidAt:           s.PaidAt,
		Cancellation:     s.Cancellation,
		Rating:           s.Rating,
		DisputeID:        s.DisputeID,
		Notes:            s.Notes,
		Version:          s.Version,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}
}

func toBookingDTOs(bookings []*bookingDomain.Booking) []BookingDTO {
	dtos := make([]BookingDTO, len(bookings))
	for i, bk := range bookings {
		dtos[i] = toBookingDTO(bk)
	}
	return dtos
}

func toDriverDTO(d *driver.Driver) DriverDTO {
	return DriverDTO{
		ID:                  d.ID(),
		UserID:              d.UserID(),
		Name:                d.Name(),
		Phone:               d.Phone(),
		VehiclePlate:        d.VehiclePlate(),
		VehicleModel:        d.VehicleModel(),
		VehicleType:         d.VehicleType(),
		Status:              string(d.Status()),
		ClaimedBookingID:    d.ClaimedBookingID(),
		Rating:              d.Rating(),
		RatingCount:         d.RatingCount(),
		TotalTrips:          d.TotalTrips(),
		TotalEarningsSatang: d.TotalEarningsSatang(),
		TotalTipsSatang:     d.TotalTipsSatang(),
		CreatedAt:           d.CreatedAt(),
	}
}

func toDisputeDTO(d *dispute.Dispute) DisputeDTO {
	return DisputeDTO{
		ID:          d.ID(),
		BookingID:   d.BookingID(),
		RaisedBy:    d.RaisedBy(),
		RaisedByID:  d.RaisedByID(),
		Reason:      d.Reason(),
		Description: d.Description(),
		Status:      string(d.Status()),
		Resolution:  d.Resolution(),
		ReviewerID:  d.ReviewerID(),
		ResolvedAt:  d.ResolvedAt(),
		CreatedAt:   d.CreatedAt(),
	}
}
