package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the root application configuration, loaded once at startup.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	APIKey   APIKeyConfig
	OAuth    OAuthConfig
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port        int
	CORSOrigins string
	BodyLimit   int
}

// DatabaseConfig configures the Postgres connection pool.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN builds the lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// RedisConfig configures the Redis client.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Address returns the host:port pair for the Redis client.
func (r RedisConfig) Address() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// JWTConfig configures session token issuance.
type JWTConfig struct {
	// Issuer is the iss claim on every signed token.
	Issuer string

	// Duration is the fixed lifetime of a freshly issued session token.
	Duration time.Duration

	// PrivateKeyFile is a path to a PEM-encoded RSA private key.
	PrivateKeyFile string

	// PrivateKeyPEM is the key material itself; takes precedence over the file.
	PrivateKeyPEM string
}

// APIKeyConfig configures long-lived api key issuance.
type APIKeyConfig struct {
	// DurationDays is the day count added to the issue date to get the expiry.
	DurationDays int

	// MaxLength bounds the secret accepted on revoke/check calls.
	MaxLength int
}

// Load reads the full configuration from the environment.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        getEnvInt("PORT", 8080),
			CORSOrigins: getEnv("CORS_ORIGINS", "*"),
			BodyLimit:   getEnvInt("BODY_LIMIT", 1024*1024),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			Name:            getEnv("DB_NAME", "ego"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Issuer:         getEnv("JWT_ISSUER", "ego"),
			Duration:       getEnvDuration("JWT_DURATION", 24*time.Hour),
			PrivateKeyFile: getEnv("JWT_PRIVATE_KEY_FILE", ""),
			PrivateKeyPEM:  getEnv("JWT_PRIVATE_KEY", ""),
		},
		APIKey: APIKeyConfig{
			DurationDays: getEnvInt("API_KEY_DURATION_DAYS", 365),
			MaxLength:    getEnvInt("API_KEY_MAX_LENGTH", 2048),
		},
		OAuth: loadOAuthConfig(),
	}
}

// ----------------------------------------------------------------------------
// Env helpers
// ----------------------------------------------------------------------------

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvStringSlice(key string, fallback []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return fallback
}
