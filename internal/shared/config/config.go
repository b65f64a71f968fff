package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	LegacyEHR LegacyEHRConfig
	KurrentDB KurrentDBConfig
	Auth      AuthConfig
	AI        AIConfig
	CDS       CDSConfig
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

// LegacyEHRConfig holds connection settings for the legacy practice
// management system (SQL Server) used as an alternate clinical store.
type LegacyEHRConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

func (l LegacyEHRConfig) DSN() string {
	return fmt.Sprintf(
		"server=%s;port=%d;database=%s;user id=%s;password=%s",
		l.Host, l.Port, l.Database, l.User, l.Password,
	)
}

// KurrentDBConfig holds configuration for KurrentDB (EventStoreDB),
// used for the pipeline audit stream.
type KurrentDBConfig struct {
	Host     string
	Port     int
	Insecure bool
	Username string
	Password string
}

type AuthConfig struct {
	JWTSecret string
}

// AIConfig holds configuration for the text-generation service.
type AIConfig struct {
	URL     string
	Model   string
	Enabled bool
	// Timeout bounds every generation call; on expiry the caller falls
	// back to its deterministic path.
	Timeout time.Duration
	// RequestsPerSecond caps the call rate to the generation service.
	RequestsPerSecond int
}

// CDSConfig holds tunables for the decision-support pipeline.
type CDSConfig struct {
	// FetchTimeout bounds each structured-data sub-fetch.
	FetchTimeout time.Duration
	// DefaultSpecialty is used when a request omits the specialty.
	DefaultSpecialty string
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
			User:     getEnv("DB_USER", "emr"),
			Password: getEnv("DB_PASSWORD", "emr"),
			Database: getEnv("DB_NAME", "emr"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		LegacyEHR: LegacyEHRConfig{
			Enabled:  getEnvBool("LEGACY_EHR_ENABLED", false),
			Host:     getEnv("LEGACY_EHR_HOST", "localhost"),
			Port:     getEnvInt("LEGACY_EHR_PORT", 1433),
			User:     getEnv("LEGACY_EHR_USER", "sa"),
			Password: getEnv("LEGACY_EHR_PASSWORD", ""),
			Database: getEnv("LEGACY_EHR_DB", "clinic"),
		},
		KurrentDB: KurrentDBConfig{
			Host:     getEnv("KURRENTDB_HOST", "localhost"),
			Port:     getEnvInt("KURRENTDB_PORT", 2113),
			Insecure: getEnvBool("KURRENTDB_INSECURE", true),
			Username: getEnv("KURRENTDB_USERNAME", ""),
			Password: getEnv("KURRENTDB_PASSWORD", ""),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", "dev-secret-change-in-prod"),
		},
		AI: AIConfig{
			URL:               getEnv("AI_SERVICE_URL", "http://localhost:5000"),
			Model:             getEnv("AI_MODEL", "gpt-4o-mini"),
			Enabled:           getEnvBool("AI_ENABLED", true),
			Timeout:           getEnvDuration("AI_TIMEOUT", 30*time.Second),
			RequestsPerSecond: getEnvInt("AI_REQUESTS_PER_SECOND", 5),
		},
		CDS: CDSConfig{
			FetchTimeout:     getEnvDuration("CDS_FETCH_TIMEOUT", 5*time.Second),
			DefaultSpecialty: getEnv("CDS_DEFAULT_SPECIALTY", "primary-care"),
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return d
		}
	}
	return defaultValue
}
