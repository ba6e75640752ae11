// Package config provides application configuration loaded from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	App      AppConfig
	Sales    SalesConfig
	Log      LogConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string
	ReadTimeout  int // seconds
	WriteTimeout int // seconds
	IdleTimeout  int // seconds
}

// DatabaseConfig holds connection settings. Driver is "postgres" or "sqlite".
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	// DSNOverride is DATABASE_DSN, used as is for postgres when set.
	DSNOverride string
	SQLitePath  string
	Debug       bool
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Dev bool
	// Migrations runs the embedded SQL migrations instead of AutoMigrate.
	Migrations    bool
	SessionSecret string
	AdminEmail    string
	AdminPassword string
	// Timezone scopes the calendar year of ticket numbers.
	Timezone string
}

// SalesConfig tunes the commit unit of sales and stock movements.
type SalesConfig struct {
	MaxAttempts  int
	RetryBackoff time.Duration
	LockTimeout  time.Duration
	Serializable bool
}

// LogConfig holds structured logging settings.
type LogConfig struct {
	Level       string
	Service     string
	Environment string
	Version     string
}

// DSN returns the PostgreSQL connection string in key=value format.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// URL returns the PostgreSQL connection string in URL format.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// Location returns the configured time zone, falling back to the local one.
func (a AppConfig) Location() *time.Location {
	if a.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Load reads configuration from environment variables.
// It uses sensible defaults for local development.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  getEnvInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvInt("SERVER_WRITE_TIMEOUT", 15),
			IdleTimeout:  getEnvInt("SERVER_IDLE_TIMEOUT", 60),
		},
		Database: DatabaseConfig{
			Driver:      getEnv("DB_DRIVER", "postgres"),
			Host:        getEnv("DB_HOST", "localhost"),
			Port:        getEnvInt("DB_PORT", 5432),
			User:        getEnv("DB_USER", "pos"),
			Password:    getEnv("DB_PASSWORD", "pos123"),
			DBName:      getEnv("DB_NAME", "pos"),
			SSLMode:     getEnv("DB_SSLMODE", "disable"),
			DSNOverride: os.Getenv("DATABASE_DSN"),
			SQLitePath:  getEnv("SQLITE_PATH", "pos.db"),
			Debug:       getEnvBool("DB_DEBUG", false),
		},
		App: AppConfig{
			Dev:           getEnvBool("DEV", true),
			Migrations:    getEnvBool("MIGRATIONS", false),
			SessionSecret: getEnv("SESSION_SECRET", "dev-secret-change-me"),
			AdminEmail:    os.Getenv("ADMIN_EMAIL"),
			AdminPassword: os.Getenv("ADMIN_PASSWORD"),
			Timezone:      getEnv("TZ_TICKETS", "Europe/Paris"),
		},
		Sales: SalesConfig{
			MaxAttempts:  getEnvInt("SALES_MAX_ATTEMPTS", 5),
			RetryBackoff: getEnvDuration("SALES_RETRY_BACKOFF", 20*time.Millisecond),
			LockTimeout:  getEnvDuration("SALES_LOCK_TIMEOUT", 5*time.Second),
			Serializable: getEnvBool("SALES_SERIALIZABLE", true),
		},
		Log: LogConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Service:     getEnv("SERVICE_NAME", "go-pos"),
			Environment: getEnv("ENVIRONMENT", "development"),
			Version:     getEnv("VERSION", "dev"),
		},
	}
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the integer value of an environment variable or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvBool returns the boolean value of an environment variable or a default.
// Accepts "1", "true", "yes" as true; everything else is false.
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "1" || value == "true" || value == "yes"
}

// getEnvDuration parses values like "250ms" or "5s".
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
