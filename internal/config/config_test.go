package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thairide/service-booking/internal/domain/policy"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Port)
	assert.Equal(t, StorePostgres, cfg.StoreDriver)
	assert.Equal(t, 15*time.Second, cfg.Monitor.Interval)
	assert.Equal(t, 100, cfg.Monitor.Batch)

	want := policy.Defaults()
	assert.Equal(t, want.FreeCancellationWindow, cfg.Policy.FreeCancellationWindow)
	assert.Equal(t, want.NoShowFeeSatang, cfg.Policy.NoShowFeeSatang)
	assert.Equal(t, want.DisputeWindow, cfg.Policy.DisputeWindow)
	assert.Equal(t, want.Timezone, cfg.Policy.Timezone)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("BOOKING_STORE_DRIVER", "memory")
	t.Setenv("BOOKING_SERVICE_PORT", "9090")
	t.Setenv("BOOKING_POLICY_FREE_CANCELLATION_WINDOW", "5m")
	t.Setenv("BOOKING_POLICY_NO_SHOW_FEE_ENABLED", "false")
	t.Setenv("BOOKING_POLICY_DRIVER_SHARE_PERCENT", "70")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreMemory, cfg.StoreDriver)
	assert.Equal(t, ":9090", cfg.Port)
	assert.Equal(t, 5*time.Minute, cfg.Policy.FreeCancellationWindow)
	assert.False(t, cfg.Policy.NoShowFeeEnabled)
	assert.Equal(t, 70, cfg.Policy.DriverSharePercent)
}

func TestLoad_RejectsInvalidSeed(t *testing.T) {
	t.Setenv("BOOKING_POLICY_DRIVER_SHARE_PERCENT", "150")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_RejectsUnknownStore(t *testing.T) {
	t.Setenv("BOOKING_STORE_DRIVER", "sqlite")

	_, err := Load()
	assert.Error(t, err)
}
