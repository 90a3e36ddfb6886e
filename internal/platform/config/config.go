package config

import (
	"strings"

	"github.com/spf13/viper"
)

// DatabaseConfig holds Postgres connection settings.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// KafkaConfig holds broker settings.
type KafkaConfig struct {
	Brokers     []string
	GroupPrefix string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds token verification settings.
type JWTConfig struct {
	Secret string
}

// NewRelicConfig holds APM settings.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// Load returns a viper instance reading PREFIX_* environment variables.
// Nested keys use dots, which map to underscores in the environment (db.host -> PREFIX_DB_HOST).
func Load(prefix string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(prefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("app_env", "development")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", "5432")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "postgres")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("kafka.group_prefix", "")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "change-me")
	v.SetDefault("newrelic.enabled", false)

	return v, nil
}

// GetAppEnv returns the deployment environment name.
func GetAppEnv(v *viper.Viper) string {
	return v.GetString("app_env")
}

// GetServicePort returns the listen address for the given key, defaulting to :8080.
func GetServicePort(v *viper.Viper, key string) string {
	port := v.GetString(strings.ToLower(key))
	if port == "" {
		port = "8080"
	}
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}
	return port
}

// LoadDatabaseConfig reads the db.* keys; dbNameKey selects the database name key.
func LoadDatabaseConfig(v *viper.Viper, dbNameKey string) DatabaseConfig {
	name := v.GetString(strings.ToLower(dbNameKey))
	if name == "" {
		name = "bookings"
	}
	return DatabaseConfig{
		Host:     v.GetString("db.host"),
		Port:     v.GetString("db.port"),
		User:     v.GetString("db.user"),
		Password: v.GetString("db.password"),
		DBName:   name,
		SSLMode:  v.GetString("db.sslmode"),
	}
}

// LoadKafkaConfig reads the kafka.* keys. Brokers are comma separated.
func LoadKafkaConfig(v *viper.Viper) KafkaConfig {
	var brokers []string
	for _, b := range strings.Split(v.GetString("kafka.brokers"), ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return KafkaConfig{
		Brokers:     brokers,
		GroupPrefix: v.GetString("kafka.group_prefix"),
	}
}

// LoadRedisConfig reads the redis.* keys.
func LoadRedisConfig(v *viper.Viper) RedisConfig {
	return RedisConfig{
		Addr:     v.GetString("redis.addr"),
		Password: v.GetString("redis.password"),
		DB:       v.GetInt("redis.db"),
	}
}

// LoadJWTConfig reads the jwt.* keys.
func LoadJWTConfig(v *viper.Viper) JWTConfig {
	return JWTConfig{Secret: v.GetString("jwt.secret")}
}

// LoadNewRelicConfig reads the newrelic.* keys.
func LoadNewRelicConfig(v *viper.Viper, appName string) NewRelicConfig {
	name := v.GetString("newrelic.app_name")
	if name == "" {
		name = appName
	}
	return NewRelicConfig{
		AppName:    name,
		LicenseKey: v.GetString("newrelic.license_key"),
		Enabled:    v.GetBool("newrelic.enabled"),
	}
}
