package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/sawpanic/contentrun/internal/cache"
	"github.com/sawpanic/contentrun/internal/infrastructure/db"
	"github.com/sawpanic/contentrun/internal/platform"
	"github.com/sawpanic/contentrun/internal/scheduler"
	"github.com/sawpanic/contentrun/internal/supply"
)

// Environment overrides
const (
	EnvHTTPPort    = "CONTENTRUN_HTTP_PORT"
	EnvPostgresDSN = "PG_DSN"
	EnvRedisAddr   = "REDIS_ADDR"
	EnvSupplierURL = "SUPPLIER_URL"
)

// Supplier modes
const (
	SupplierTemplate = "template"
	SupplierHTTP     = "http"
)

// Config is the complete application configuration
type Config struct {
	LogLevel      string           `yaml:"log_level"`
	PlatformsFile string           `yaml:"platforms_file"` // empty = built-in table
	Server        ServerConfig     `yaml:"server"`
	Database      db.Config        `yaml:"database"`
	Cache         cache.Config     `yaml:"cache"`
	Supplier      SupplierConfig   `yaml:"supplier"`
	Scheduler     scheduler.Config `yaml:"scheduler"`

	// dir is the directory of the loaded file; relative paths resolve here
	dir string
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes"`
}

// SupplierConfig selects where schedule drafts come from
type SupplierConfig struct {
	Mode               string            `yaml:"mode"` // template | http
	Topics             []string          `yaml:"topics"`
	FallbackToTemplate bool              `yaml:"fallback_to_template"`
	HTTP               supply.HTTPConfig `yaml:"http"`
}

// Default returns the configuration used when no file is given
func Default() Config {
	return Config{
		LogLevel: "info",
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   30 * time.Second,
			RequestTimeout: 25 * time.Second,
			MaxBodyBytes:   1 << 20,
		},
		Database:  db.DefaultConfig(),
		Cache:     cache.DefaultConfig(),
		Supplier:  SupplierConfig{Mode: SupplierTemplate, HTTP: supply.DefaultHTTPConfig()},
		Scheduler: scheduler.DefaultConfig(),
	}
}

// Load reads path (optional) over the defaults, applies environment
// overrides and validates the result
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := decode(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		cfg.dir = filepath.Dir(path)
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv overrides fields from the environment. lookup is os.LookupEnv
// outside tests.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvHTTPPort); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s must be an integer, got %q", EnvHTTPPort, v)
		}
		c.Server.Port = port
	}
	if v, ok := lookup(EnvPostgresDSN); ok && v != "" {
		c.Database.DSN = v
		c.Database.Enabled = true
	}
	if v, ok := lookup(EnvRedisAddr); ok && v != "" {
		c.Cache.RedisAddr = v
	}
	if v, ok := lookup(EnvSupplierURL); ok && v != "" {
		c.Supplier.HTTP.BaseURL = v
		c.Supplier.Mode = SupplierHTTP
	}
	return nil
}

// Validate ensures the configuration is valid and consistent
func (c *Config) Validate() error {
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		return fmt.Errorf("log_level %q is not a valid level", c.LogLevel)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("server request_timeout must be positive, got %s", c.Server.RequestTimeout)
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server max_body_bytes must be positive, got %d", c.Server.MaxBodyBytes)
	}
	if c.Database.Enabled && c.Database.DSN == "" {
		return fmt.Errorf("database dsn is required when enabled")
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache ttl cannot be negative, got %s", c.Cache.TTL)
	}
	if c.Cache.MaxEntries < 0 {
		return fmt.Errorf("cache max_entries cannot be negative, got %d", c.Cache.MaxEntries)
	}
	if err := c.Supplier.Validate(); err != nil {
		return fmt.Errorf("supplier: %w", err)
	}
	if c.Scheduler.MaxHorizonDays < 1 {
		return fmt.Errorf("scheduler max_horizon_days must be positive, got %d", c.Scheduler.MaxHorizonDays)
	}
	if c.Scheduler.DefaultHorizonDays < 1 || c.Scheduler.DefaultHorizonDays > c.Scheduler.MaxHorizonDays {
		return fmt.Errorf("scheduler default_horizon_days must be between 1 and %d, got %d",
			c.Scheduler.MaxHorizonDays, c.Scheduler.DefaultHorizonDays)
	}
	return nil
}

// Validate ensures supplier configuration is valid
func (s *SupplierConfig) Validate() error {
	switch s.Mode {
	case SupplierTemplate:
		return nil
	case SupplierHTTP:
		if s.HTTP.BaseURL == "" {
			return fmt.Errorf("http mode requires http.base_url")
		}
		if s.HTTP.RPS < 0 {
			return fmt.Errorf("http.rps cannot be negative, got %f", s.HTTP.RPS)
		}
		return nil
	default:
		return fmt.Errorf("unknown mode %q (want %s or %s)", s.Mode, SupplierTemplate, SupplierHTTP)
	}
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Level returns the parsed log level
func (c *Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

// PlatformsPath resolves PlatformsFile against the config file directory
func (c *Config) PlatformsPath() string {
	if c.PlatformsFile == "" || filepath.IsAbs(c.PlatformsFile) || c.dir == "" {
		return c.PlatformsFile
	}
	return filepath.Join(c.dir, c.PlatformsFile)
}

// LoadPlatforms builds the platform registry: the catalog file when one is
// configured, the built-in reference table otherwise
func (c *Config) LoadPlatforms() (*platform.Registry, error) {
	path := c.PlatformsPath()
	if path == "" {
		return platform.Default(), nil
	}
	return platform.LoadFile(path)
}
