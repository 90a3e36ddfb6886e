package booking

import "github.com/google/uuid"

// Location is a value object describing a pickup or dropoff point.
type Location struct {
	Address   string  `json:"address"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// IsValid reports whether the location carries an address and in-range coordinates.
func (l Location) IsValid() bool {
	if l.Address == "" {
		return false
	}
	return l.Latitude >= -90 && l.Latitude <= 90 && l.Longitude >= -180 && l.Longitude <= 180
}

// DriverSnapshot is the driver's identity and vehicle as they were at assignment time.
// It is copied into the booking so the trip record survives later profile edits.
type DriverSnapshot struct {
	DriverID     uuid.UUID `json:"driver_id"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone"`
	VehiclePlate string    `json:"vehicle_plate"`
	VehicleModel string    `json:"vehicle_model"`
}
