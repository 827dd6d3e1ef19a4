package config

import (
	"os"
	"strconv"
	"time"
)

// Config captures process-level configuration for the onboarding gateway.
// Values come from the environment so main stays lean.
type Config struct {
	Addr        string
	Environment string
	LogLevel    string

	Backend  BackendConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig

	// DefaultCountryCode prefixes national phone numbers during
	// canonicalization. The portal currently serves Mexico.
	DefaultCountryCode string
}

// BackendConfig points at the managed backend (identity API + SQL RPC surface).
type BackendConfig struct {
	URL        string
	AnonKey    string
	ServiceKey string
	// JWTSecret lets self-hosted deployments mint service tokens instead of
	// configuring a static service key. ServiceKey wins when both are set.
	JWTSecret string
	Timeout   time.Duration
}

// DatabaseConfig holds the optional direct-SQL connection used by the
// delivery-agent registration fallback path.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds the optional availability-precheck cache connection.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig holds the optional reconciliation-event publisher connection.
type KafkaConfig struct {
	Brokers string
	Topic   string
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	return Config{
		Addr:               envOr("MESA_ADDR", ":8080"),
		Environment:        envOr("MESA_ENV", "development"),
		LogLevel:           envOr("MESA_LOG_LEVEL", "info"),
		DefaultCountryCode: envOr("MESA_DEFAULT_COUNTRY_CODE", "52"),
		Backend: BackendConfig{
			URL:        os.Getenv("BACKEND_URL"),
			AnonKey:    os.Getenv("BACKEND_ANON_KEY"),
			ServiceKey: os.Getenv("BACKEND_SERVICE_KEY"),
			JWTSecret:  os.Getenv("BACKEND_JWT_SECRET"),
			Timeout:    durationOr("BACKEND_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    intOr("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    intOr("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: durationOr("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     intOr("REDIS_POOL_SIZE", 10),
			MinIdleConns: intOr("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  durationOr("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  durationOr("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: durationOr("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: os.Getenv("KAFKA_BROKERS"),
			Topic:   envOr("KAFKA_PROVISIONING_TOPIC", "onboarding.provisioning"),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
