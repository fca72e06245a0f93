// Copyright (c) 2026 Helios. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values. In development an
optional .env file is loaded first with 'joho/godotenv'.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis, Auth) via constructors.
  - Zero Hidden State: No global variables are used to store config.
*/
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/taibuivan/helios/internal/platform/constants"
	"github.com/taibuivan/helios/internal/platform/phone"
)

// # Configuration Schema

// Config holds all runtime configuration for the Helios auth server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Relational Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// AutoMigrate applies the embedded schema migrations at startup.
	AutoMigrate bool `env:"AUTO_MIGRATE" envDefault:"true"`

	// Key-Value Cache (Redis). Empty selects the no-op cache.
	RedisURL string `env:"REDIS_URL"`

	// Cryptographic keys for identity signing
	JWTPrivKeyPath string `env:"JWT_PRIVATE_KEY_PATH,required"`
	JWTPubKeyPath  string `env:"JWT_PUBLIC_KEY_PATH,required"`
	JWTIssuer      string `env:"JWT_ISSUER"`
	JWTAudience    string `env:"JWT_AUDIENCE"`

	// Authentication policy
	Auth AuthConfig `envPrefix:"AUTH_"`

	// Event streaming (Kafka). Empty brokers fall back to log-only sinks.
	KafkaBrokers         []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaComplianceTopic string   `env:"KAFKA_COMPLIANCE_TOPIC" envDefault:"auth.compliance"`
	KafkaMailTopic       string   `env:"KAFKA_MAIL_TOPIC"       envDefault:"auth.password_reset"`
	KafkaUsername        string   `env:"KAFKA_USERNAME"`
	KafkaPassword        string   `env:"KAFKA_PASSWORD"`
	KafkaTLS             bool     `env:"KAFKA_TLS" envDefault:"false"`

	// Events wait in this buffer while a single goroutine delivers them.
	EventBufferSize     int           `env:"EVENT_BUFFER_SIZE"     envDefault:"1024"`
	EventPublishTimeout time.Duration `env:"EVENT_PUBLISH_TIMEOUT" envDefault:"5s"`

	// PhoneDefaultRegion is the ISO 3166 region assumed for numbers entered
	// without a country code.
	PhoneDefaultRegion string `env:"PHONE_DEFAULT_REGION" envDefault:"US"`

	// Per-IP rate limiting
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS"   envDefault:"20"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"40"`

	// SessionSweepInterval controls how often expired sessions are purged.
	SessionSweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"1h"`

	// Cross-Origin Resource Sharing
	AllowedOriginSuffix string `env:"ALLOWED_ORIGIN_SUFFIX" envDefault:"helios.energy"`
}

// AuthConfig groups the authentication policy knobs.
type AuthConfig struct {
	MaxLoginAttempts    int           `env:"MAX_LOGIN_ATTEMPTS"    envDefault:"5"`
	AccountLockDuration time.Duration `env:"ACCOUNT_LOCK_DURATION" envDefault:"15m"`
	AccessTokenTTL      time.Duration `env:"ACCESS_TOKEN_TTL"      envDefault:"15m"`
	RefreshTokenTTL     time.Duration `env:"REFRESH_TOKEN_TTL"     envDefault:"720h"`
	ResetTokenTTL       time.Duration `env:"RESET_TOKEN_TTL"       envDefault:"1h"`
	LoginOTPRequired    bool          `env:"LOGIN_OTP_REQUIRED"    envDefault:"true"`

	// RequirePhoneVerification is nil when unset so the environment can decide.
	RequirePhoneVerification *bool `env:"REQUIRE_PHONE_VERIFICATION"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {

	// A missing .env file is normal outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: failed to load .env file: %w", err)
	}

	cfg := &Config{}

	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults fills values shared with other packages through constants.
func (c *Config) applyDefaults() {
	if c.JWTIssuer == "" {
		c.JWTIssuer = constants.AuthIssuer
	}
	if c.JWTAudience == "" {
		c.JWTAudience = constants.AuthAudience
	}
}

func (c *Config) validate() error {
	if c.Auth.MaxLoginAttempts < 1 {
		return fmt.Errorf("config: AUTH_MAX_LOGIN_ATTEMPTS must be positive, got %d", c.Auth.MaxLoginAttempts)
	}
	if c.Auth.AccountLockDuration <= 0 {
		return errors.New("config: AUTH_ACCOUNT_LOCK_DURATION must be positive")
	}
	if c.Auth.AccessTokenTTL <= 0 || c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		return errors.New("config: AUTH_REFRESH_TOKEN_TTL must exceed a positive AUTH_ACCESS_TOKEN_TTL")
	}
	if c.EventBufferSize < 1 || c.EventPublishTimeout <= 0 {
		return errors.New("config: EVENT_BUFFER_SIZE and EVENT_PUBLISH_TIMEOUT must be positive")
	}
	if !phone.IsSupportedRegion(c.PhoneDefaultRegion) {
		return fmt.Errorf("config: PHONE_DEFAULT_REGION %q is not a known region", c.PhoneDefaultRegion)
	}
	return nil
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// RequirePhoneVerification reports whether registration must be refused for
// unverified phone numbers. Unless overridden, only production enforces it.
func (c *Config) RequirePhoneVerification() bool {
	if c.Auth.RequirePhoneVerification != nil {
		return *c.Auth.RequirePhoneVerification
	}
	return c.IsProduction()
}

// KafkaEnabled reports whether event sinks should publish to Kafka.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}
