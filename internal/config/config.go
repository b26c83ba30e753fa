// Package config provides configuration management for the burst service and
// command line tools.
package config

import (
	"fmt"
	"maps"
	"net"
	"slices"
	"strconv"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config is the service and CLI configuration. Every field is read from an
// environment variable named by its section prefix and key.
type Config struct {
	Server   ServerConfig   `envPrefix:"SERVER_"`
	Backend  BackendConfig  `envPrefix:"BACKEND_"`
	ASF      ASFConfig      `envPrefix:"ASF_"`
	CMR      CMRConfig      `envPrefix:"CMR_"`
	Datapool DatapoolConfig `envPrefix:"DATAPOOL_"`
	EDL      EDLConfig      `envPrefix:"EDL_"`
	Fetch    FetchConfig    `envPrefix:"FETCH_"`
	Cache    CacheConfig    `envPrefix:"CACHE_"`
	Burst    BurstConfig    `envPrefix:"BURST_"`
	STAC     STACConfig     `envPrefix:"STAC_"`
	Logging  LoggingConfig  `envPrefix:"LOG_"`
}

type ServerConfig struct {
	Host            string        `env:"HOST" envDefault:"0.0.0.0"`
	Port            int           `env:"PORT" envDefault:"8080"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"120s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// BackendConfig contains product locator selection.
type BackendConfig struct {
	// Type specifies how granule names become container URLs: "datapool",
	// "asf" or "cmr"
	Type string `env:"TYPE" envDefault:"datapool"`
}

type ASFConfig struct {
	BaseURL string        `env:"BASE_URL" envDefault:"https://api.daac.asf.alaska.edu"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"30s"`
}

type CMRConfig struct {
	BaseURL  string        `env:"BASE_URL" envDefault:"https://cmr.earthdata.nasa.gov/search"`
	Provider string        `env:"PROVIDER" envDefault:"ASF"`
	Timeout  time.Duration `env:"TIMEOUT" envDefault:"30s"`
}

// DatapoolConfig contains the ASF datapool location.
type DatapoolConfig struct {
	BaseURL string `env:"BASE_URL" envDefault:"https://datapool.asf.alaska.edu"`
}

// EDLConfig contains Earthdata Login configuration.
type EDLConfig struct {
	Host string `env:"HOST" envDefault:"urs.earthdata.nasa.gov"`
	// Netrc is the credentials file; empty means $HOME/.netrc
	Netrc string `env:"NETRC" envDefault:""`
}

// FetchConfig contains ranged request configuration.
type FetchConfig struct {
	Timeout     time.Duration `env:"TIMEOUT" envDefault:"120s"`
	MaxAttempts int           `env:"MAX_ATTEMPTS" envDefault:"5"`
	BaseDelay   time.Duration `env:"BASE_DELAY" envDefault:"500ms"`
	MaxDelay    time.Duration `env:"MAX_DELAY" envDefault:"30s"`
	MaxElapsed  time.Duration `env:"MAX_ELAPSED" envDefault:"0s"` // zero disables the budget
	Concurrency int           `env:"CONCURRENCY" envDefault:"4"`
}

// CacheConfig contains the metadata document cache configuration.
type CacheConfig struct {
	Enabled    bool          `env:"ENABLED" envDefault:"true"`
	LifeWindow time.Duration `env:"LIFE_WINDOW" envDefault:"30m"`
	MaxSizeMB  int           `env:"MAX_SIZE_MB" envDefault:"512"`
}

// BurstConfig contains burst construction and reconciliation settings.
type BurstConfig struct {
	EdgeLineMargin int     `env:"EDGE_LINE_MARGIN" envDefault:"0"`
	FloatTolerance float64 `env:"FLOAT_TOLERANCE" envDefault:"1e-9"`
	MinIoU         float64 `env:"MIN_IOU" envDefault:"0.5"`
}

// STACConfig contains STAC metadata configuration.
type STACConfig struct {
	Version     string `env:"VERSION" envDefault:"1.0.0"`
	BaseURL     string `env:"BASE_URL" envDefault:"http://localhost:8080"` // Public-facing URL
	Title       string `env:"TITLE" envDefault:"Sentinel-1 SLC Bursts"`
	Description string `env:"DESCRIPTION" envDefault:"Burst level access to Sentinel-1 IW SLC products"`
}

type LoggingConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{RequiredIfNoDef: true}); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate returns the first problem found, checking one section at a time.
func (c *Config) Validate() error {
	for _, check := range []func() error{
		c.Server.validate,
		c.validateBackend,
		c.Fetch.validate,
		c.Cache.validate,
		c.Burst.validate,
		c.STAC.validate,
		c.Logging.validate,
	} {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

func (s *ServerConfig) validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", s.Port)
	}
	return positive(map[string]time.Duration{
		"server read timeout":     s.ReadTimeout,
		"server write timeout":    s.WriteTimeout,
		"server shutdown timeout": s.ShutdownTimeout,
	})
}

func (c *Config) validateBackend() error {
	switch c.Backend.Type {
	case "datapool":
		return required("datapool base URL", c.Datapool.BaseURL)
	case "asf":
		if err := required("ASF base URL", c.ASF.BaseURL); err != nil {
			return err
		}
		return positive(map[string]time.Duration{"ASF timeout": c.ASF.Timeout})
	case "cmr":
		if err := required("CMR base URL", c.CMR.BaseURL); err != nil {
			return err
		}
		return positive(map[string]time.Duration{"CMR timeout": c.CMR.Timeout})
	}
	return fmt.Errorf("backend type must be datapool, asf or cmr, got %q", c.Backend.Type)
}

func (f *FetchConfig) validate() error {
	switch {
	case f.Timeout <= 0:
		return fmt.Errorf("fetch timeout must be positive, got %s", f.Timeout)
	case f.MaxAttempts < 1:
		return fmt.Errorf("fetch max attempts must be at least 1, got %d", f.MaxAttempts)
	case f.BaseDelay < 0 || f.MaxDelay < f.BaseDelay:
		return fmt.Errorf("fetch delays must satisfy 0 <= base (%s) <= max (%s)", f.BaseDelay, f.MaxDelay)
	case f.MaxElapsed < 0:
		return fmt.Errorf("fetch max elapsed must not be negative, got %s", f.MaxElapsed)
	case f.Concurrency < 1:
		return fmt.Errorf("fetch concurrency must be at least 1, got %d", f.Concurrency)
	}
	return nil
}

func (c *CacheConfig) validate() error {
	if c.MaxSizeMB < 0 {
		return fmt.Errorf("cache max size must not be negative, got %d", c.MaxSizeMB)
	}
	if !c.Enabled {
		return nil
	}
	return positive(map[string]time.Duration{"cache life window": c.LifeWindow})
}

func (b *BurstConfig) validate() error {
	switch {
	case b.EdgeLineMargin < 0:
		return fmt.Errorf("edge line margin must not be negative, got %d", b.EdgeLineMargin)
	case b.FloatTolerance < 0:
		return fmt.Errorf("float tolerance must not be negative, got %g", b.FloatTolerance)
	case b.MinIoU < 0 || b.MinIoU > 1:
		return fmt.Errorf("minimum footprint IoU must be between 0 and 1, got %g", b.MinIoU)
	}
	return nil
}

func (s *STACConfig) validate() error {
	if err := required("STAC base URL", s.BaseURL); err != nil {
		return err
	}
	return required("STAC version", s.Version)
}

func (l *LoggingConfig) validate() error {
	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q, must be one of: debug, info, warn, error", l.Level)
	}
	if l.Format != "json" && l.Format != "text" {
		return fmt.Errorf("invalid log format %q, must be one of: json, text", l.Format)
	}
	return nil
}

func required(name, value string) error {
	if value == "" {
		return fmt.Errorf("%s is required", name)
	}
	return nil
}

// positive checks durations in name order so the reported error is stable.
func positive(durations map[string]time.Duration) error {
	for _, name := range slices.Sorted(maps.Keys(durations)) {
		if d := durations[name]; d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	return nil
}

// Address returns the listen address.
func (s *ServerConfig) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}
