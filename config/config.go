/*
config.go - Runtime configuration

PURPOSE:
  Reads server settings from the environment. A .env file in the working
  directory is loaded first when present; real environment variables win.

VARIABLES:
  PORT               HTTP port (default 8080)
  DB_PATH            SQLite path, ":memory:" allowed (default activities.db)
  LOG_LEVEL          debug | info | warn | error (default info)
  LOG_FORMAT         json | console (default json)
  AUTH_SECRET        HS256 secret for bearer tokens; empty disables auth
  AUTH_ISSUER        expected "iss" claim; empty accepts any issuer
  CORS_ORIGINS       comma separated allowed origins
  RECORD_CACHE_TTL   record cache lifetime, 0 keeps until invalidated
  HOLIDAY_WINDOW     skip Dec 28 - Jan 4 when expanding weekly rules (default true)

SEE ALSO:
  - cmd/server/main.go: flags override PORT and DB_PATH
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the server settings.
type Config struct {
	Port           int
	DBPath         string
	LogLevel       string
	LogFormat      string
	AuthSecret     string
	AuthIssuer     string
	CORSOrigins    []string
	RecordCacheTTL time.Duration
	HolidayWindow  bool
}

// LoadEnvFile loads .env when present. A missing file is not an error.
func LoadEnvFile(paths ...string) error {
	err := godotenv.Load(paths...)
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Load reads the configuration from the environment.
// Malformed values are reported by Validate, not here.
func Load() (*Config, error) {
	var problems []error

	port, err := getEnvInt("PORT", 8080)
	problems = append(problems, err)
	ttl, err := getEnvDuration("RECORD_CACHE_TTL", 0)
	problems = append(problems, err)
	window, err := getEnvBool("HOLIDAY_WINDOW", true)
	problems = append(problems, err)

	cfg := &Config{
		Port:           port,
		DBPath:         getEnv("DB_PATH", "activities.db"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		AuthSecret:     os.Getenv("AUTH_SECRET"),
		AuthIssuer:     os.Getenv("AUTH_ISSUER"),
		CORSOrigins:    splitList(getEnv("CORS_ORIGINS", "http://localhost:5173,http://localhost:8080")),
		RecordCacheTTL: ttl,
		HolidayWindow:  window,
	}
	if err := errors.Join(problems...); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	var problems []error

	if c.Port < 1 || c.Port > 65535 {
		problems = append(problems, fmt.Errorf("invalid port %d: must be between 1 and 65535", c.Port))
	}
	if c.DBPath == "" {
		problems = append(problems, errors.New("database path cannot be empty"))
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Errorf("invalid log level %q", c.LogLevel))
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		problems = append(problems, fmt.Errorf("invalid log format %q: must be json or console", c.LogFormat))
	}
	if c.RecordCacheTTL < 0 {
		problems = append(problems, fmt.Errorf("invalid record cache ttl %v", c.RecordCacheTTL))
	}

	return errors.Join(problems...)
}

// AuthEnabled reports whether bearer tokens are required.
func (c *Config) AuthEnabled() bool { return c.AuthSecret != "" }

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue, fmt.Errorf("%s: %q is not a number", key, value)
	}
	return i, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue, fmt.Errorf("%s: %q is not a duration", key, value)
	}
	return d, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue, fmt.Errorf("%s: %q is not a boolean", key, value)
	}
	return b, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
