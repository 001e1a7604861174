package config

import (
	"os"
	"strconv"
	"time"
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// ObjectStoreConfig holds S3-compatible object storage settings (MinIO).
type ObjectStoreConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// RateLimitConfig holds the per-client request rate limit settings.
type RateLimitConfig struct {
	Requests int           // allowed requests per window
	Window   time.Duration // window size
}

// EventsConfig holds ingestion settings for the event service.
type EventsConfig struct {
	// InlinePayloadMax is the largest payload (bytes) stored inline in the
	// database row. Larger payloads are offloaded to object storage and the
	// row keeps only the object key.
	InlinePayloadMax int
	// BusBuffer is the per-subscriber channel capacity on the in-process bus.
	BusBuffer int
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	Port        string
	LogLevel    string
	RateLimit   RateLimitConfig
	Events      EventsConfig
	Database    DatabaseConfig
	ObjectStore ObjectStoreConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		Port:     getEnv("PORT", "8080"), // default only for non-sensitive value
		LogLevel: getEnv("LOG_LEVEL", "info"),
		RateLimit: RateLimitConfig{
			Requests: getEnvInt("RATE_LIMIT_REQUESTS", 60),
			Window:   getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		Events: EventsConfig{
			InlinePayloadMax: getEnvInt("EVENTS_INLINE_PAYLOAD_MAX", 32<<10),
			BusBuffer:        getEnvInt("EVENTS_BUS_BUFFER", 64),
		},
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint:  getEnv("OBJECTSTORE_ENDPOINT", ""),
			AccessKey: getEnv("OBJECTSTORE_ACCESS_KEY", ""),
			SecretKey: getEnv("OBJECTSTORE_SECRET_KEY", ""),
			Bucket:    getEnv("OBJECTSTORE_BUCKET", ""),
			UseSSL:    getEnvBool("OBJECTSTORE_USE_SSL", false),
		},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}
