package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/thairide/service-booking/internal/domain/policy"
	platformconfig "github.com/thairide/service-booking/internal/platform/config"
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// MonitorConfig tunes the assignment timeout sweep.
type MonitorConfig struct {
	Interval time.Duration
	Batch    int
}

// ServiceConfig holds all configuration for the booking service.
type ServiceConfig struct {
	Port         string
	AppEnv       string
	StoreDriver  string
	DBConfig     platformconfig.DatabaseConfig
	KafkaConfig  platformconfig.KafkaConfig
	KafkaEnabled bool
	RedisConfig  platformconfig.RedisConfig
	RedisEnabled bool
	JWTConfig    platformconfig.JWTConfig
	NewRelic     platformconfig.NewRelicConfig
	// Policy seeds version 1 when no policy has been published yet.
	Policy  policy.Config
	Monitor MonitorConfig
}

// Load reads configuration from BOOKING_* environment variables.
func Load() (*ServiceConfig, error) {
	v, err := platformconfig.Load("BOOKING")
	if err != nil {
		return nil, err
	}
	setDefaults(v)

	cfg := &ServiceConfig{
		Port:         platformconfig.GetServicePort(v, "SERVICE_PORT"),
		AppEnv:       platformconfig.GetAppEnv(v),
		StoreDriver:  v.GetString("store_driver"),
		DBConfig:     platformconfig.LoadDatabaseConfig(v, "DB_NAME"),
		KafkaConfig:  platformconfig.LoadKafkaConfig(v),
		KafkaEnabled: v.GetBool("kafka.enabled"),
		RedisConfig:  platformconfig.LoadRedisConfig(v),
		RedisEnabled: v.GetBool("redis.enabled"),
		JWTConfig:    platformconfig.LoadJWTConfig(v),
		NewRelic:     platformconfig.LoadNewRelicConfig(v, "service-booking"),
		Policy:       loadPolicySeed(v),
		Monitor: MonitorConfig{
			Interval: v.GetDuration("monitor.interval"),
			Batch:    v.GetInt("monitor.batch"),
		},
	}

	if cfg.StoreDriver != StoreMemory && cfg.StoreDriver != StorePostgres {
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
	if err := cfg.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid policy seed: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := policy.Defaults()

	v.SetDefault("store_driver", StorePostgres)
	v.SetDefault("kafka.enabled", true)
	v.SetDefault("redis.enabled", true)
	v.SetDefault("monitor.interval", "15s")
	v.SetDefault("monitor.batch", 100)

	v.SetDefault("policy.free_cancellation_window", d.FreeCancellationWindow)
	v.SetDefault("policy.late_cancellation_fee_satang", d.LateCancellationFeeSatang)
	v.SetDefault("policy.late_cancellation_fee_enabled", d.LateCancellationFeeEnabled)
	v.SetDefault("policy.no_show_wait_time", d.NoShowWaitTime)
	v.SetDefault("policy.no_show_fee_satang", d.NoShowFeeSatang)
	v.SetDefault("policy.no_show_fee_enabled", d.NoShowFeeEnabled)
	v.SetDefault("policy.driver_late_threshold", d.DriverLateThreshold)
	v.SetDefault("policy.driver_late_waiver_enabled", d.DriverLateWaiverEnabled)
	v.SetDefault("policy.driver_share_percent", d.DriverSharePercent)
	v.SetDefault("policy.max_active_bookings", d.MaxActiveBookingsPerCustomer)
	v.SetDefault("policy.active_booking_limit_enabled", d.ActiveBookingLimitEnabled)
	v.SetDefault("policy.max_cancellations_per_day", d.MaxCancellationsPerDay)
	v.SetDefault("policy.cancellation_limit_enabled", d.CancellationLimitEnabled)
	v.SetDefault("policy.dispute_window", d.DisputeWindow)
	v.SetDefault("policy.disputes_enabled", d.DisputesEnabled)
	v.SetDefault("policy.assignment_acceptance_window", d.AssignmentAcceptanceWindow)
	v.SetDefault("policy.rating_prior_mean", d.RatingPriorMean)
	v.SetDefault("policy.rating_min_reviews", d.RatingMinReviews)
	v.SetDefault("policy.timezone", d.Timezone)
}

func loadPolicySeed(v *viper.Viper) policy.Config {
	return policy.Config{
		Version:                      1,
		FreeCancellationWindow:       v.GetDuration("policy.free_cancellation_window"),
		LateCancellationFeeSatang:    v.GetInt64("policy.late_cancellation_fee_satang"),
		LateCancellationFeeEnabled:   v.GetBool("policy.late_cancellation_fee_enabled"),
		NoShowWaitTime:               v.GetDuration("policy.no_show_wait_time"),
		NoShowFeeSatang:              v.GetInt64("policy.no_show_fee_satang"),
		NoShowFeeEnabled:             v.GetBool("policy.no_show_fee_enabled"),
		DriverLateThreshold:          v.GetDuration("policy.driver_late_threshold"),
		DriverLateWaiverEnabled:      v.GetBool("policy.driver_late_waiver_enabled"),
		DriverSharePercent:           v.GetInt("policy.driver_share_percent"),
		MaxActiveBookingsPerCustomer: v.GetInt("policy.max_active_bookings"),
		ActiveBookingLimitEnabled:    v.GetBool("policy.active_booking_limit_enabled"),
		MaxCancellationsPerDay:       v.GetInt("policy.max_cancellations_per_day"),
		CancellationLimitEnabled:     v.GetBool("policy.cancellation_limit_enabled"),
		DisputeWindow:                v.GetDuration("policy.dispute_window"),
		DisputesEnabled:              v.GetBool("policy.disputes_enabled"),
		AssignmentAcceptanceWindow:   v.GetDuration("policy.assignment_acceptance_window"),
		RatingPriorMean:              v.GetFloat64("policy.rating_prior_mean"),
		RatingMinReviews:             v.GetInt("policy.rating_min_reviews"),
		Timezone:                     v.GetString("policy.timezone"),
	}
}
