package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	Environment string
	HTTPAddr    string

	Logger LoggerConfig

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Gateway GatewayConfig

	Renewal RenewalConfig

	Metrics MetricsConfig
}

type LoggerConfig struct {
	Level string
}

// GatewayConfig tunes the simulated payment gateway.
type GatewayConfig struct {
	SuccessRate float64
	Latency     time.Duration
	Timeout     time.Duration
}

// RenewalConfig tunes the renewal driver.
type RenewalConfig struct {
	Enabled   bool
	Interval  time.Duration
	BatchSize int
}

type MetricsConfig struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_NAME", "fanvault"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),

		Logger: LoggerConfig{
			Level: getenv("LOG_LEVEL", "info"),
		},

		DBType:            getenv("DB_TYPE", "postgres"),
		DBHost:            getenv("DB_HOST", "localhost"),
		DBPort:            getenv("DB_PORT", "5432"),
		DBName:            getenv("DB_NAME", "fanvault"),
		DBUser:            getenv("DB_USER", "fanvault"),
		DBPassword:        getenv("DB_PASSWORD", ""),
		DBSSLMode:         getenv("DB_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DB_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:     getenvInt("DB_MAX_OPEN_CONN", 50),
		DBConnMaxLifetime: getenvInt("DB_CONN_MAX_LIFETIME", 3600),
		DBConnMaxIdleTime: getenvInt("DB_CONN_MAX_IDLE_TIME", 600),

		Gateway: GatewayConfig{
			SuccessRate: getenvFloat("GATEWAY_SUCCESS_RATE", 0.9),
			Latency:     getenvDuration("GATEWAY_LATENCY", 2*time.Second),
			Timeout:     getenvDuration("GATEWAY_TIMEOUT", 10*time.Second),
		},

		Renewal: RenewalConfig{
			Enabled:   getenvBool("RENEWAL_ENABLED", true),
			Interval:  getenvDuration("RENEWAL_INTERVAL", time.Minute),
			BatchSize: getenvInt("RENEWAL_BATCH_SIZE", 100),
		},

		Metrics: MetricsConfig{
			Enabled:          getenvBool("METRICS_ENABLED", false),
			ExporterEndpoint: getenv("OTEL_EXPORTER_ENDPOINT", "localhost:4317"),
			ExporterProtocol: getenv("OTEL_EXPORTER_PROTOCOL", "grpc"),
		},
	}
}

func getenv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
