// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// APIConfig holds configuration for the data API service.
// All fields are populated from environment variables.
type APIConfig struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"4000"`

	// Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Shared secret used to verify service tokens issued by the BFF
	ServiceTokenSecret string `env:"SERVICE_TOKEN_SECRET,required"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// WebConfig holds configuration for the BFF service.
type WebConfig struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"3000"`

	// Base URL of the data API
	APIURL string `env:"API_URL" envDefault:"http://localhost:4000"`

	// Database (PostgreSQL) for user accounts
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Cache (Redis) for sessions, OAuth state and rate limits
	RedisURL string `env:"REDIS_URL,required"`

	// Shared secret used to sign service tokens presented to the data API
	ServiceTokenSecret string `env:"SERVICE_TOKEN_SECRET,required"`

	// Session settings
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	SessionCookie string        `env:"SESSION_COOKIE" envDefault:"booklog_session"`
	SecureCookies bool          `env:"SECURE_COOKIES" envDefault:"false"`

	// Google OAuth
	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	OAuthCallbackURL   string `env:"OAUTH_CALLBACK_URL" envDefault:"http://localhost:3000/auth/google/callback"`

	// Account linking policy: "auto" binds a federated login to an
	// existing local account with the same email, "deny" refuses it.
	LinkPolicy string `env:"LINK_POLICY" envDefault:"auto"`

	// Downstream call budget for the data API
	APITimeout time.Duration `env:"API_TIMEOUT" envDefault:"5s"`

	// Login rate limiting
	LoginRateLimitEnabled bool `env:"LOGIN_RATE_LIMIT_ENABLED" envDefault:"true"`
	LoginRatePerMinute    int  `env:"LOGIN_RATE_PER_MINUTE" envDefault:"10"`
	LoginRateBurst        int  `env:"LOGIN_RATE_BURST" envDefault:"5"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// IsDevelopment returns true if running in development mode.
func (c *APIConfig) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsDevelopment returns true if running in development mode.
func (c *WebConfig) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// LoadAPI parses environment variables for the data API service.
// Returns an error if required variables are missing.
func LoadAPI() (*APIConfig, error) {
	cfg := &APIConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// LoadWeb parses environment variables for the BFF service.
// Returns an error if required variables are missing.
func LoadWeb() (*WebConfig, error) {
	cfg := &WebConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}
