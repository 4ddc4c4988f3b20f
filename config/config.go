// Package config loads the healthd configuration file.
//
// The file is YAML and optional. String values may reference the
// environment as ${VAR} and secrets as secretref:<provider>:<ref>:
//
//	service: cleaning-management-api
//	listen: :8080
//	probeTimeout: 5s
//	database:
//	  driver: postgres
//	  dsn: postgres://health:${PGPASSWORD}@db:5432/app
//	supabase:
//	  url: ${SUPABASE_URL}
//	  anonKey: secretref:file:/run/secrets/anon_key
//	redis:
//	  addr: redis:6379
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/jonwraymond/healthops/health"
	"github.com/jonwraymond/healthops/observe"
	"github.com/jonwraymond/healthops/supabase"
)

// Database drivers.
const (
	// DriverRPC reads the version through the Supabase RPC endpoint.
	DriverRPC = "rpc"
	// DriverPostgres reads the version over a direct pgx connection.
	DriverPostgres = "postgres"
)

// Defaults.
const (
	DefaultListen       = ":8080"
	DefaultTimeout      = 10 * time.Second
	DefaultProbeTimeout = 5 * time.Second
)

// Config is the healthd configuration.
type Config struct {
	Service      string         `yaml:"service"`
	Version      string         `yaml:"version"`
	Listen       string         `yaml:"listen"`
	Timeout      time.Duration  `yaml:"timeout"`
	ProbeTimeout time.Duration  `yaml:"probeTimeout"`
	Parallel     *bool          `yaml:"parallel"`
	RequiredEnv  []string       `yaml:"requiredEnv"`
	Database     DatabaseConfig `yaml:"database"`
	Supabase     SupabaseConfig `yaml:"supabase"`
	Redis        RedisConfig    `yaml:"redis"`
	Observe      observe.Config `yaml:"observe"`
}

// DatabaseConfig selects how the database probe reaches the store.
type DatabaseConfig struct {
	// Driver is "rpc" (default) or "postgres".
	Driver string `yaml:"driver"`

	// DSN is the pgx connection string. Required for the postgres driver.
	DSN string `yaml:"dsn"`

	// Query is the version query for the postgres driver.
	Query string `yaml:"query"`

	// Function is the RPC name for the rpc driver.
	Function string `yaml:"function"`
}

// SupabaseConfig locates the Supabase project.
type SupabaseConfig struct {
	URL         string `yaml:"url"`
	AnonKey     string `yaml:"anonKey"`
	AccessToken string `yaml:"accessToken"`
	JWTSecret   string `yaml:"jwtSecret"`
}

// RedisConfig enables the cache probe when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Enabled reports whether a Redis address is configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.Addr) != ""
}

// Default returns the configuration used when no file is given.
func Default() Config {
	parallel := true
	return Config{
		Service:      health.DefaultService,
		Version:      health.DefaultVersion,
		Listen:       DefaultListen,
		Timeout:      DefaultTimeout,
		ProbeTimeout: DefaultProbeTimeout,
		Parallel:     &parallel,
		RequiredEnv:  append([]string(nil), health.DefaultRequiredEnv...),
		Database: DatabaseConfig{
			Driver:   DriverRPC,
			Function: supabase.DefaultVersionFunction,
		},
		Supabase: SupabaseConfig{
			URL:         "${" + supabase.EnvURL + "}",
			AnonKey:     "${" + supabase.EnvAnonKey + "}",
			AccessToken: "${" + supabase.EnvAccessToken + "}",
			JWTSecret:   "${" + supabase.EnvJWTSecret + "}",
		},
		Observe: observe.Config{
			Logging: observe.LoggingConfig{Enabled: true, Level: "info"},
		},
	}
}

// applyDefaults fills zero fields of c from Default.
func (c *Config) applyDefaults() {
	d := Default()
	if c.Service == "" {
		c.Service = d.Service
	}
	if c.Version == "" {
		c.Version = d.Version
	}
	if c.Listen == "" {
		c.Listen = d.Listen
	}
	if c.Timeout == 0 {
		c.Timeout = d.Timeout
	}
	if c.ProbeTimeout == 0 {
		c.ProbeTimeout = d.ProbeTimeout
	}
	if c.Parallel == nil {
		c.Parallel = d.Parallel
	}
	if c.RequiredEnv == nil {
		c.RequiredEnv = d.RequiredEnv
	}
	if c.Database.Driver == "" {
		c.Database.Driver = d.Database.Driver
	}
	if c.Database.Function == "" {
		c.Database.Function = d.Database.Function
	}
	if c.Supabase.URL == "" {
		c.Supabase.URL = d.Supabase.URL
	}
	if c.Supabase.AnonKey == "" {
		c.Supabase.AnonKey = d.Supabase.AnonKey
	}
	if c.Supabase.AccessToken == "" {
		c.Supabase.AccessToken = d.Supabase.AccessToken
	}
	if c.Supabase.JWTSecret == "" {
		c.Supabase.JWTSecret = d.Supabase.JWTSecret
	}
	if c.Observe.Logging.Level == "" {
		c.Observe.Logging.Level = d.Observe.Logging.Level
	}
	c.Observe.ServiceName = c.Service
	c.Observe.Version = c.Version
}

// IsParallel reports whether probes run concurrently.
func (c Config) IsParallel() bool {
	return c.Parallel == nil || *c.Parallel
}

// Validate checks the configuration. Every error wraps ErrInvalidConfig.
func (c Config) Validate() error {
	if c.Timeout < 0 {
		return fmt.Errorf("%w: timeout must not be negative", ErrInvalidConfig)
	}
	if c.ProbeTimeout < 0 {
		return fmt.Errorf("%w: probeTimeout must not be negative", ErrInvalidConfig)
	}
	switch c.Database.Driver {
	case DriverRPC, "":
	case DriverPostgres:
		if strings.TrimSpace(c.Database.DSN) == "" {
			return fmt.Errorf("%w: database.dsn is required for the postgres driver", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown database driver %q", ErrInvalidConfig, c.Database.Driver)
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("%w: redis.db must not be negative", ErrInvalidConfig)
	}
	for _, key := range c.RequiredEnv {
		if strings.TrimSpace(key) == "" {
			return fmt.Errorf("%w: requiredEnv contains an empty name", ErrInvalidConfig)
		}
	}
	if c.Observe.ServiceName != "" {
		if err := c.Observe.Validate(); err != nil {
			return fmt.Errorf("%w: observe: %w", ErrInvalidConfig, err)
		}
	}
	return nil
}
