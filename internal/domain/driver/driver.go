package driver

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/thairide/service-booking/internal/platform/domain"
)

// CodeDriverBusy is returned when a busy driver tries to leave the assignment pool.
const CodeDriverBusy = "driver_busy"

// Status is a driver's availability for new assignments.
type Status string

const (
	StatusAvailable Status = "available"
	StatusBusy      Status = "busy"
	StatusOffline   Status = "offline"
)

// IsValid reports whether s is a known driver status.
func (s Status) IsValid() bool {
	switch s {
	case StatusAvailable, StatusBusy, StatusOffline:
		return true
	}
	return false
}

// Driver is the aggregate root for a service provider.
// Its status and counters are mutated as a side effect of booking transitions.
type Driver struct {
	id                  uuid.UUID
	userID              uuid.UUID
	name                string
	phone               string
	vehiclePlate        string
	vehicleModel        string
	vehicleType         string
	status              Status
	claimedBookingID    *uuid.UUID
	claimedAt           *time.Time
	rating              float64
	ratingCount         int
	totalTrips          int64
	totalEarningsSatang int64
	totalTipsSatang     int64
	version             int64
	createdAt           time.Time
	updatedAt           time.Time
}

// NewDriver registers an offline driver with the supplied prior rating.
func NewDriver(userID uuid.UUID, name, phone, vehiclePlate, vehicleModel, vehicleType string, priorRating float64) (*Driver, error) {
	if userID == uuid.Nil {
		return nil, domain.NewValidationError("user ID is required")
	}
	if strings.TrimSpace(name) == "" {
		return nil, domain.NewValidationError("driver name is required")
	}
	if strings.TrimSpace(vehiclePlate) == "" {
		return nil, domain.NewValidationError("vehicle plate is required")
	}
	if vehicleType == "" {
		return nil, domain.NewValidationError("vehicle type is required")
	}

	now := time.Now().UTC()
	return &Driver{
		id:           uuid.New(),
		userID:       userID,
		name:         name,
		phone:        phone,
		vehiclePlate: vehiclePlate,
		vehicleModel: vehicleModel,
		vehicleType:  vehicleType,
		status:       StatusOffline,
		rating:       priorRating,
		version:      1,
		createdAt:    now,
		updatedAt:    now,
	}, nil
}

// State is the persisted form of a Driver.
type State struct {
	ID                  uuid.UUID
	UserID              uuid.UUID
	Name                string
	Phone               string
	VehiclePlate        string
	VehicleModel        string
	VehicleType         string
	Status              Status
	ClaimedBookingID    *uuid.UUID
	ClaimedAt           *time.Time
	Rating              float64
	RatingCount         int
	TotalTrips          int64
	TotalEarningsSatang int64
	TotalTipsSatang     int64
	Version             int64
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Reconstruct rebuilds a Driver from persistence data (no validation).
func Reconstruct(s State) *Driver {
	return &Driver{
		id:                  s.ID,
		userID:              s.UserID,
		name:                s.Name,
		phone:               s.Phone,
		vehiclePlate:        s.VehiclePlate,
		vehicleModel:        s.VehicleModel,
		vehicleType:         s.VehicleType,
		status:              s.Status,
		claimedBookingID:    s.ClaimedBookingID,
		claimedAt:           s.ClaimedAt,
		rating:              s.Rating,
		ratingCount:         s.RatingCount,
		totalTrips:          s.TotalTrips,
		totalEarningsSatang: s.TotalEarningsSatang,
		totalTipsSatang:     s.TotalTipsSatang,
		version:             s.Version,
		createdAt:           s.CreatedAt,
		updatedAt:           s.UpdatedAt,
	}
}

// State returns the driver's persisted form.
func (d *Driver) State() State {
	s := State{
		ID:                  d.id,
		UserID:              d.userID,
		Name:                d.name,
		Phone:               d.phone,
		VehiclePlate:        d.vehiclePlate,
		VehicleModel:        d.vehicleModel,
		VehicleType:         d.vehicleType,
		Status:              d.status,
		Rating:              d.rating,
		RatingCount:         d.ratingCount,
		TotalTrips:          d.totalTrips,
		TotalEarningsSatang: d.totalEarningsSatang,
		TotalTipsSatang:     d.totalTipsSatang,
		Version:             d.version,
		CreatedAt:           d.createdAt,
		UpdatedAt:           d.updatedAt,
	}
	if d.claimedBookingID != nil {
		id := *d.claimedBookingID
		s.ClaimedBookingID = &id
	}
	if d.claimedAt != nil {
		t := *d.claimedAt
		s.ClaimedAt = &t
	}
	return s
}

// --- Getters ---

func (d *Driver) ID() uuid.UUID                { return d.id }
func (d *Driver) UserID() uuid.UUID            { return d.userID }
func (d *Driver) Name() string                 { return d.name }
func (d *Driver) Phone() string                { return d.phone }
func (d *Driver) VehiclePlate() string         { return d.vehiclePlate }
func (d *Driver) VehicleModel() string         { return d.vehicleModel }
func (d *Driver) VehicleType() string          { return d.vehicleType }
func (d *Driver) Status() Status               { return d.status }
func (d *Driver) ClaimedBookingID() *uuid.UUID { return d.claimedBookingID }
func (d *Driver) ClaimedAt() *time.Time        { return d.claimedAt }
func (d *Driver) Rating() float64              { return d.rating }
func (d *Driver) RatingCount() int             { return d.ratingCount }
func (d *Driver) TotalTrips() int64            { return d.totalTrips }
func (d *Driver) TotalEarningsSatang() int64   { return d.totalEarningsSatang }
func (d *Driver) TotalTipsSatang() int64       { return d.totalTipsSatang }
func (d *Driver) Version() int64               { return d.version }
func (d *Driver) CreatedAt() time.Time         { return d.createdAt }
func (d *Driver) UpdatedAt() time.Time         { return d.updatedAt }

// GoOnline makes an offline driver available. Busy or available drivers are left untouched.
func (d *Driver) GoOnline() error {
	switch d.status {
	case StatusOffline:
		d.status = StatusAvailable
		d.updatedAt = time.Now().UTC()
		return nil
	case StatusAvailable, StatusBusy:
		return nil
	default:
		return fmt.Errorf("unknown driver status: %s", d.status)
	}
}

// GoOffline takes an available driver off the assignment pool. A busy driver must finish first.
func (d *Driver) GoOffline() error {
	if d.status == StatusBusy {
		return domain.NewPolicyViolationError(CodeDriverBusy, "driver is serving a booking and cannot go offline")
	}
	d.status = StatusOffline
	d.updatedAt = time.Now().UTC()
	return nil
}

// Snapshot returns the identity fields copied into a booking at assignment.
func (d *Driver) Snapshot() Snapshot {
	return Snapshot{
		DriverID:     d.id,
		Name:         d.name,
		Phone:        d.phone,
		VehiclePlate: d.vehiclePlate,
		VehicleModel: d.vehicleModel,
	}
}

// Snapshot mirrors the identity and vehicle fields a booking keeps of its driver.
type Snapshot struct {
	DriverID     uuid.UUID
	Name         string
	Phone        string
	VehiclePlate string
	VehicleModel string
}

// Credit is an increment applied to a driver's monotonically growing counters.
type Credit struct {
	Trips          int64
	EarningsSatang int64
	TipsSatang     int64
}

// IsZero reports whether the credit changes nothing.
func (c Credit) IsZero() bool {
	return c.Trips == 0 && c.EarningsSatang == 0 && c.TipsSatang == 0
}

// Validate rejects negative increments so counters never decrease.
func (c Credit) Validate() error {
	if c.Trips < 0 || c.EarningsSatang < 0 || c.TipsSatang < 0 {
		return domain.NewValidationError("driver credits must not be negative")
	}
	return nil
}
