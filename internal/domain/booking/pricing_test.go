package booking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistanceKm(t *testing.T) {
	siam := Location{Address: "Siam", Latitude: 13.7462, Longitude: 100.5347}
	chatuchak := Location{Address: "Chatuchak", Latitude: 13.7999, Longitude: 100.5500}

	assert.InDelta(t, 6.2, DistanceKm(siam, chatuchak), 0.2)
	assert.Zero(t, DistanceKm(siam, siam))
}

func TestStandardPricing(t *testing.T) {
	p := NewStandardPricingStrategy()
	here := Location{Address: "A", Latitude: 13.75, Longitude: 100.5}

	fare, err := p.Calculate(PricingParams{Pickup: here, Dropoff: here, VehicleType: VehicleSedan, Passengers: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(3500), fare, "zero distance costs the flag fall")

	far := Location{Address: "B", Latitude: 13.85, Longitude: 100.5}
	fare, err = p.Calculate(PricingParams{Pickup: here, Dropoff: far, VehicleType: VehicleVan, Passengers: 6})
	require.NoError(t, err)
	assert.Zero(t, fare%100, "fares are whole baht")
	assert.Greater(t, fare, int64(8000+2*2000))
}

func TestStandardPricing_Rejects(t *testing.T) {
	p := NewStandardPricingStrategy()
	here := Location{Address: "A", Latitude: 13.75, Longitude: 100.5}

	_, err := p.Calculate(PricingParams{Pickup: here, Dropoff: Location{}, VehicleType: VehicleSedan})
	assert.Error(t, err)

	_, err = p.Calculate(PricingParams{Pickup: here, Dropoff: here, VehicleType: VehicleMotorbike, Passengers: 2})
	assert.Error(t, err)

	_, err = p.Calculate(PricingParams{Pickup: here, Dropoff: here, VehicleType: "boat"})
	assert.Error(t, err)
}
