// Package config loads the browser configuration from the environment.
// A .env file in the working directory is read first when present.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/Sternrassler/artwork-browser/internal/view"
	"github.com/Sternrassler/artwork-browser/pkg/logging"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the complete browser configuration.
type Config struct {
	Catalog CatalogConfig `envPrefix:"ARTIC_"`
	HTTP    HTTPConfig    `envPrefix:"HTTP_"`
	Redis   RedisConfig   `envPrefix:"REDIS_"`
	Log     LogConfig     `envPrefix:"LOG_"`
}

// CatalogConfig configures the catalog client and the table.
type CatalogConfig struct {
	BaseURL   string        `env:"BASE_URL" envDefault:"https://api.artic.edu/api/v1"`
	UserAgent string        `env:"USER_AGENT" envDefault:"artwork-browser/0.1.0"`
	Timeout   time.Duration `env:"HTTP_TIMEOUT" envDefault:"30s"`

	// DefaultRows is the initial page size and the value used for blank row input.
	DefaultRows int `env:"DEFAULT_ROWS" envDefault:"10"`

	// GuardStale drops fetch results overtaken by a newer fetch.
	GuardStale bool `env:"GUARD_STALE" envDefault:"true"`

	// SelectionPolicy is "per_page" or "retain".
	SelectionPolicy string `env:"SELECTION_POLICY" envDefault:"per_page"`
}

// HTTPConfig configures the web server.
type HTTPConfig struct {
	Addr            string        `env:"ADDR" envDefault:":8080"`
	WaitForFetch    time.Duration `env:"WAIT_FOR_FETCH" envDefault:"5s"`
	SessionTTL      time.Duration `env:"SESSION_TTL" envDefault:"30m"`
	MaxSessions     int           `env:"MAX_SESSIONS" envDefault:"1000"`
	SecureCookie    bool          `env:"SECURE_COOKIE" envDefault:"false"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// RedisConfig configures the optional Redis connection. An empty Addr disables it.
type RedisConfig struct {
	Addr     string `env:"ADDR"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

// Enabled reports whether Redis is configured.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Pretty bool   `env:"PRETTY" envDefault:"false"`
}

// Load reads .env (if present) and the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return Config{}, fmt.Errorf("load .env file: %w", err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Parse reads the configuration from environ instead of the process environment.
func Parse(environ map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error

	if u, err := url.Parse(c.Catalog.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("ARTIC_BASE_URL must be an absolute http(s) url, got %q", c.Catalog.BaseURL))
	}
	if c.Catalog.UserAgent == "" {
		errs = append(errs, errors.New("ARTIC_USER_AGENT must not be empty"))
	}
	if c.Catalog.Timeout < 0 {
		errs = append(errs, fmt.Errorf("ARTIC_HTTP_TIMEOUT must be >= 0, got %s", c.Catalog.Timeout))
	}
	if c.Catalog.DefaultRows < 1 {
		errs = append(errs, fmt.Errorf("ARTIC_DEFAULT_ROWS must be positive, got %d", c.Catalog.DefaultRows))
	}
	if _, err := view.ParseSelectionPolicy(c.Catalog.SelectionPolicy); err != nil {
		errs = append(errs, fmt.Errorf("ARTIC_SELECTION_POLICY: %w", err))
	}
	if c.HTTP.WaitForFetch < 0 {
		errs = append(errs, fmt.Errorf("HTTP_WAIT_FOR_FETCH must be >= 0, got %s", c.HTTP.WaitForFetch))
	}
	if c.HTTP.SessionTTL < 0 {
		errs = append(errs, fmt.Errorf("HTTP_SESSION_TTL must be >= 0, got %s", c.HTTP.SessionTTL))
	}
	if c.HTTP.MaxSessions < 0 {
		errs = append(errs, fmt.Errorf("HTTP_MAX_SESSIONS must be >= 0, got %d", c.HTTP.MaxSessions))
	}
	if c.Redis.DB < 0 {
		errs = append(errs, fmt.Errorf("REDIS_DB must be >= 0, got %d", c.Redis.DB))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}

	return errors.Join(errs...)
}

// Selection returns the parsed selection policy.
func (c CatalogConfig) Selection() view.SelectionPolicy {
	policy, err := view.ParseSelectionPolicy(c.SelectionPolicy)
	if err != nil {
		return view.SelectionPerPage
	}
	return policy
}
