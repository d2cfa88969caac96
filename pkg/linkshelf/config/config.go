// Package config loads server configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Prefix is prepended to every environment variable (LINKSHELF_PORT, ...).
// Unprefixed names are accepted as a fallback.
const Prefix = "LINKSHELF"

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Log      LogConfig
	Resolver ResolverConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	BaseURL         string        `envconfig:"BASE_URL" default:"http://localhost:8080"`
	ReadTimeout     time.Duration `envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"WRITE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// Validate validates the server configuration.
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port cannot be empty")
	}
	if c.ReadTimeout <= 0 || c.WriteTimeout <= 0 || c.ShutdownTimeout <= 0 {
		return errors.New("server timeouts must be positive")
	}
	return nil
}

// DatabaseConfig selects the gorm driver and its DSN.
type DatabaseConfig struct {
	Driver string `envconfig:"DB_DRIVER" default:"sqlite"`
	DSN    string `envconfig:"DB_PATH" default:"linkshelf.db"`
}

// Validate validates the database configuration.
func (c *DatabaseConfig) Validate() error {
	switch c.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("invalid database driver: %s (must be one of: sqlite, postgres)", c.Driver)
	}
	if c.DSN == "" {
		return errors.New("database DSN cannot be empty")
	}
	return nil
}

// AuthConfig holds token and bootstrap admin settings.
type AuthConfig struct {
	JWTSecret     string        `envconfig:"JWT_SECRET" default:"linkshelf-dev-secret-change-in-production"`
	TokenTTL      time.Duration `envconfig:"TOKEN_TTL" default:"24h"`
	AdminEmail    string        `envconfig:"ADMIN_EMAIL" default:"admin@linkshelf.local"`
	AdminPassword string        `envconfig:"ADMIN_PASSWORD" default:"changeme"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if len(c.JWTSecret) < 16 {
		return errors.New("JWT secret must be at least 16 characters")
	}
	if c.TokenTTL <= 0 {
		return errors.New("token TTL must be positive")
	}
	if c.AdminEmail == "" || c.AdminPassword == "" {
		return errors.New("admin email and password are required")
	}
	return nil
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"pretty"` // pretty, json, text
}

// Validate validates the log configuration.
func (c *LogConfig) Validate() error {
	switch c.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.Level)
	}
	switch c.Format {
	case "pretty", "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s (must be one of: pretty, json, text)", c.Format)
	}
	return nil
}

// ResolverConfig tunes the URL metadata resolver.
type ResolverConfig struct {
	Timeout     time.Duration `envconfig:"RESOLVE_TIMEOUT" default:"10s"`
	Concurrency int           `envconfig:"RESOLVE_CONCURRENCY" default:"4"`
	UserAgent   string        `envconfig:"RESOLVE_USER_AGENT" default:"linkshelf/1.0 (+https://github.com/mikepea/linkshelf)"`

	// AllowPrivate lets the resolver fetch loopback and private network
	// addresses.
	AllowPrivate bool `envconfig:"RESOLVE_ALLOW_PRIVATE" default:"false"`
}

// Validate validates the resolver configuration.
func (c *ResolverConfig) Validate() error {
	if c.Timeout <= 0 {
		return errors.New("resolve timeout must be positive")
	}
	if c.Concurrency < 1 {
		return errors.New("resolve concurrency must be at least 1")
	}
	return nil
}

type section interface {
	Validate() error
}

// Load reads an optional .env file, then the environment, and validates the
// result.
func Load() (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfg := &Config{}
	sections := []struct {
		name string
		spec section
	}{
		{"Server", &cfg.Server},
		{"Database", &cfg.Database},
		{"Auth", &cfg.Auth},
		{"Log", &cfg.Log},
		{"Resolver", &cfg.Resolver},
	}

	for _, s := range sections {
		if err := envconfig.Process(Prefix, s.spec); err != nil {
			return nil, fmt.Errorf("failed to load %s config: %w", s.name, err)
		}
		if err := s.spec.Validate(); err != nil {
			return nil, fmt.Errorf("invalid %s config: %w", s.name, err)
		}
	}

	return cfg, nil
}
