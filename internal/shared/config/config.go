package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Auth       AuthConfig
	Assessment AssessmentConfig
	Notify     NotifyConfig
	HIS        HISConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// RedisConfig holds the latest-sample cache settings. The cache is
// optional; an empty Addr disables it.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// TTLSeconds bounds how long cached latest vitals/labs stay valid.
	TTLSeconds int
}

type AuthConfig struct {
	// JWTSecret signs and verifies clinician bearer tokens.
	JWTSecret string
	Issuer    string
}

// AssessmentConfig holds scheduler and evaluation defaults. Threshold
// configuration itself lives in the record store and is updated at runtime.
type AssessmentConfig struct {
	// DefaultIntervalHours seeds the schedule when none exists yet.
	DefaultIntervalHours int
	// HighRiskThreshold is the stats cutoff for high-risk patients;
	// independent from the alert thresholds.
	HighRiskThreshold int
	// SuppressDuplicateAlerts controls whether a new alert of the same
	// kind is suppressed while an unacknowledged one exists for the patient.
	SuppressDuplicateAlerts bool
}

// NotifyConfig holds notification dispatcher settings. Delivery providers
// are injectable; these control the worker pool.
type NotifyConfig struct {
	Workers    int
	BufferSize int
}

// HISConfig configures the optional hospital-information-system admission
// feed (SQL Server).
type HISConfig struct {
	Enabled             bool
	Host                string
	Port                int
	User                string
	Password            string
	Database            string
	SSLMode             string
	PollIntervalSeconds int
}

func Load() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Port: getEnvInt("SERVER_PORT", 8080),
			Env:  getEnv("ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "sepguard"),
			Password: getEnv("DB_PASSWORD", "sepguard"),
			Database: getEnv("DB_NAME", "sepguard"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:       getEnv("REDIS_ADDR", ""),
			Password:   getEnv("REDIS_PASSWORD", ""),
			DB:         getEnvInt("REDIS_DB", 0),
			TTLSeconds: getEnvInt("REDIS_TTL_SECONDS", 300),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", "dev-secret-change-in-prod"),
			Issuer:    getEnv("JWT_ISSUER", "sepguard"),
		},
		Assessment: AssessmentConfig{
			DefaultIntervalHours:    getEnvInt("ASSESSMENT_INTERVAL_HOURS", 2),
			HighRiskThreshold:       getEnvInt("HIGH_RISK_THRESHOLD", 70),
			SuppressDuplicateAlerts: getEnvBool("SUPPRESS_DUPLICATE_ALERTS", true),
		},
		Notify: NotifyConfig{
			Workers:    getEnvInt("NOTIFY_WORKERS", 2),
			BufferSize: getEnvInt("NOTIFY_BUFFER_SIZE", 256),
		},
		HIS: HISConfig{
			Enabled:             getEnvBool("HIS_ENABLED", false),
			Host:                getEnv("HIS_HOST", "localhost"),
			Port:                getEnvInt("HIS_PORT", 1433),
			User:                getEnv("HIS_USER", ""),
			Password:            getEnv("HIS_PASSWORD", ""),
			Database:            getEnv("HIS_DATABASE", "hospital"),
			SSLMode:             getEnv("HIS_SSLMODE", "disable"),
			PollIntervalSeconds: getEnvInt("HIS_POLL_INTERVAL_SECONDS", 60),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
