package repository

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// BookingModel is the GORM model for the bookings table.
// The status history lives in booking_status_history, never in this row.
type BookingModel struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey"`
	BookingNumber    string          `gorm:"uniqueIndex;not null;size:20"`
	CustomerID       uuid.UUID       `gorm:"type:uuid;index;not null"`
	DriverID         *uuid.UUID      `gorm:"type:uuid;index"`
	DriverSnapshot   json.RawMessage `gorm:"type:jsonb"`
	Status           string          `gorm:"not null;size:30;index"`
	Pickup           json.RawMessage `gorm:"type:jsonb;not null"`
	Dropoff          json.RawMessage `gorm:"type:jsonb;not null"`
	ScheduledAt      time.Time       `gorm:"not null"`
	VehicleType      string          `gorm:"not null;size:20"`
	Passengers       int             `gorm:"not null;default:1"`
	FareSatang       int64           `gorm:"not null"`
	Currency         string          `gorm:"not null;size:3;default:'THB'"`
	Notes            string          `gorm:"type:text"`
	PaymentStatus    string          `gorm:"not null;size:20"`
	DriverAssignedAt *time.Time      `gorm:"index"`
	DriverEnRouteAt  *time.Time      `gorm:""`
	DriverArrivedAt  *time.Time      `gorm:""`
	TripStartedAt    *time.Time      `gorm:""`
	CompletedAt      *time.Time      `gorm:""`
	CancelledAt      *time.Time      `gorm:""`
	CancelledBy      *string         `gorm:"size:20"`
	PaidAt           *time.Time      `gorm:""`
	Cancellation     json.RawMessage `gorm:"type:jsonb"`
	Rating           json.RawMessage `gorm:"type:jsonb"`
	DisputeID        *uuid.UUID      `gorm:"type:uuid"`
	Version          int64           `gorm:"not null;default:1"`
	CreatedAt        time.Time       `gorm:"not null"`
	UpdatedAt        time.Time       `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (BookingModel) TableName() string {
	return "bookings"
}

// StatusHistoryModel is one append-only audit row keyed by (booking_id, seq).
type StatusHistoryModel struct {
	BookingID uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Seq       int        `gorm:"primaryKey;autoIncrement:false"`
	Status    string     `gorm:"not null;size:30"`
	At        time.Time  `gorm:"not null"`
	Note      string     `gorm:"type:text"`
	Actor     string     `gorm:"not null;size:20"`
	ActorID   *uuid.UUID `gorm:"type:uuid"`
}

// TableName returns the table name for the GORM model.
func (StatusHistoryModel) TableName() string {
	return "booking_status_history"
}

// DriverModel is the GORM model for the drivers table.
type DriverModel struct {
	ID                  uuid.UUID  `gorm:"type:uuid;primaryKey"`
	UserID              uuid.UUID  `gorm:"type:uuid;uniqueIndex;not null"`
	Name                string     `gorm:"not null;size:100"`
	Phone               string     `gorm:"size:30"`
	VehiclePlate        string     `gorm:"not null;size:20"`
	VehicleModel        string     `gorm:"size:100"`
	VehicleType         string     `gorm:"not null;size:20"`
	Status              string     `gorm:"not null;size:20;index"`
	ClaimedBookingID    *uuid.UUID `gorm:"type:uuid"`
	ClaimedAt           *time.Time `gorm:""`
	Rating              float64    `gorm:"not null"`
	RatingCount         int        `gorm:"not null;default:0"`
	TotalTrips          int64      `gorm:"not null;default:0"`
	TotalEarningsSatang int64      `gorm:"not null;default:0"`
	TotalTipsSatang     int64      `gorm:"not null;default:0"`
	Version             int64      `gorm:"not null;default:1"`
	CreatedAt           time.Time  `gorm:"not null"`
	UpdatedAt           time.Time  `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (DriverModel) TableName() string {
	return "drivers"
}

// DisputeModel is the GORM model for the disputes table.
type DisputeModel struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey"`
	BookingID   uuid.UUID  `gorm:"type:uuid;uniqueIndex;not null"`
	RaisedBy    string     `gorm:"not null;size:20"`
	RaisedByID  uuid.UUID  `gorm:"type:uuid;not null"`
	Reason      string     `gorm:"not null;size:200"`
	Description string     `gorm:"size:2000"`
	Status      string     `gorm:"not null;size:20;index"`
	Resolution  string     `gorm:"size:2000"`
	ReviewerID  *uuid.UUID `gorm:"type:uuid"`
	ResolvedAt  *time.Time `gorm:""`
	Version     int64      `gorm:"not null;default:1"`
	CreatedAt   time.Time  `gorm:"not null"`
	UpdatedAt   time.Time  `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (DisputeModel) TableName() string {
	return "disputes"
}

// PolicyModel is one immutable policy version.
type PolicyModel struct {
	Version   int64           `gorm:"primaryKey;autoIncrement:false"`
	Config    json.RawMessage `gorm:"type:jsonb;not null"`
	CreatedAt time.Time       `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (PolicyModel) TableName() string {
	return "policy_versions"
}

// AllModels lists every model for development auto-migration.
func AllModels() []interface{} {
	return []interface{}{
		&BookingModel{},
		&StatusHistoryModel{},
		&DriverModel{},
		&DisputeModel{},
		&PolicyModel{},
	}
}
