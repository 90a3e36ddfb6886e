package booking

import (
	"fmt"
	"math"

	"github.com/thairide/service-booking/internal/platform/domain"
)

// VehicleType is the class of vehicle a customer requests.
type VehicleType string

const (
	VehicleMotorbike VehicleType = "motorbike"
	VehicleSedan     VehicleType = "sedan"
	VehicleSUV       VehicleType = "suv"
	VehicleVan       VehicleType = "van"
)

// IsValid reports whether v is a known vehicle type.
func (v VehicleType) IsValid() bool {
	switch v {
	case VehicleMotorbike, VehicleSedan, VehicleSUV, VehicleVan:
		return true
	}
	return false
}

// ParseVehicleType converts a string to a VehicleType.
func ParseVehicleType(s string) (VehicleType, error) {
	v := VehicleType(s)
	if !v.IsValid() {
		return "", domain.NewValidationError("invalid vehicle type: " + s)
	}
	return v, nil
}

// PricingStrategy defines the interface for quoting a trip fare.
type PricingStrategy interface {
	// Calculate returns the fare in satang for the given parameters.
	Calculate(params PricingParams) (int64, error)
}

// PricingParams holds the inputs for fare calculation.
type PricingParams struct {
	Pickup      Location
	Dropoff     Location
	VehicleType VehicleType
	Passengers  int
}

// StandardPricingStrategy implements the default metered fare.
type StandardPricingStrategy struct{}

// NewStandardPricingStrategy creates a new StandardPricingStrategy.
func NewStandardPricingStrategy() *StandardPricingStrategy {
	return &StandardPricingStrategy{}
}

// Calculate computes the fare in satang.
//
// Pricing formula:
//   - Flag fall: varies by vehicle type
//   - Distance: per-km rate by vehicle type over the great-circle distance
//   - Extra passengers beyond the first four: THB 20.00 each
//
// The result is rounded up to a whole baht.
func (s *StandardPricingStrategy) Calculate(params PricingParams) (int64, error) {
	if !params.Pickup.IsValid() || !params.Dropoff.IsValid() {
		return 0, fmt.Errorf("pickup and dropoff must be valid locations")
	}
	rate, ok := vehicleRates[params.VehicleType]
	if !ok {
		return 0, fmt.Errorf("unknown vehicle type for pricing: %s", params.VehicleType)
	}
	if params.Passengers > rate.maxPassengers {
		return 0, fmt.Errorf("%s seats at most %d passengers", params.VehicleType, rate.maxPassengers)
	}

	km := DistanceKm(params.Pickup, params.Dropoff)
	total := rate.flagFall + int64(math.Ceil(km*float64(rate.perKm)))
	if extra := params.Passengers - 4; extra > 0 {
		total += int64(extra) * 2000
	}

	// Round up to whole baht.
	if rem := total % 100; rem != 0 {
		total += 100 - rem
	}
	return total, nil
}

type vehicleRate struct {
	flagFall      int64
	perKm         int64
	maxPassengers int
}

var vehicleRates = map[VehicleType]vehicleRate{
	VehicleMotorbike: {flagFall: 2500, perKm: 800, maxPassengers: 1},
	VehicleSedan:     {flagFall: 3500, perKm: 1200, maxPassengers: 4},
	VehicleSUV:       {flagFall: 5000, perKm: 1600, maxPassengers: 6},
	VehicleVan:       {flagFall: 8000, perKm: 2000, maxPassengers: 10},
}

const earthRadiusKm = 6371.0

// DistanceKm returns the great-circle distance between two locations.
func DistanceKm(a, b Location) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLng := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}
