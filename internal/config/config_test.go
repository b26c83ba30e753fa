package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	// Test defaults
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("expected default host 0.0.0.0, got %s", cfg.Server.Host)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}

	if cfg.Backend.Type != "datapool" {
		t.Errorf("expected default backend datapool, got %s", cfg.Backend.Type)
	}

	if cfg.Datapool.BaseURL != "https://datapool.asf.alaska.edu" {
		t.Errorf("expected default datapool URL, got %s", cfg.Datapool.BaseURL)
	}

	if cfg.EDL.Host != "urs.earthdata.nasa.gov" {
		t.Errorf("expected default EDL host, got %s", cfg.EDL.Host)
	}

	if cfg.EDL.Netrc != "" {
		t.Errorf("expected empty netrc path, got %s", cfg.EDL.Netrc)
	}

	if cfg.Fetch.MaxAttempts != 5 || cfg.Fetch.BaseDelay != 500*time.Millisecond {
		t.Errorf("expected default retry policy, got %d attempts from %s", cfg.Fetch.MaxAttempts, cfg.Fetch.BaseDelay)
	}

	if !cfg.Cache.Enabled || cfg.Cache.MaxSizeMB != 512 {
		t.Errorf("expected enabled 512 MB cache, got %v %d", cfg.Cache.Enabled, cfg.Cache.MaxSizeMB)
	}

	if cfg.Burst.EdgeLineMargin != 0 {
		t.Errorf("expected no edge line margin, got %d", cfg.Burst.EdgeLineMargin)
	}

	if cfg.Burst.MinIoU != 0.5 {
		t.Errorf("expected minimum IoU 0.5, got %g", cfg.Burst.MinIoU)
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("expected default log level info, got %s", cfg.Logging.Level)
	}
}

func TestLoadWithCustomValues(t *testing.T) {
	// Set custom environment variables
	os.Setenv("SERVER_PORT", "9090")
	os.Setenv("BACKEND_TYPE", "cmr")
	os.Setenv("CMR_PROVIDER", "ASFDEV")
	os.Setenv("EDL_NETRC", "/etc/s1bursts/netrc")
	os.Setenv("FETCH_MAX_ATTEMPTS", "3")
	os.Setenv("FETCH_CONCURRENCY", "16")
	os.Setenv("CACHE_ENABLED", "false")
	os.Setenv("BURST_EDGE_LINE_MARGIN", "2")
	os.Setenv("LOG_LEVEL", "debug")
	os.Setenv("LOG_FORMAT", "text")

	defer func() {
		os.Unsetenv("SERVER_PORT")
		os.Unsetenv("BACKEND_TYPE")
		os.Unsetenv("CMR_PROVIDER")
		os.Unsetenv("EDL_NETRC")
		os.Unsetenv("FETCH_MAX_ATTEMPTS")
		os.Unsetenv("FETCH_CONCURRENCY")
		os.Unsetenv("CACHE_ENABLED")
		os.Unsetenv("BURST_EDGE_LINE_MARGIN")
		os.Unsetenv("LOG_LEVEL")
		os.Unsetenv("LOG_FORMAT")
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}

	if cfg.Backend.Type != "cmr" || cfg.CMR.Provider != "ASFDEV" {
		t.Errorf("expected cmr backend with provider ASFDEV, got %s %s", cfg.Backend.Type, cfg.CMR.Provider)
	}

	if cfg.EDL.Netrc != "/etc/s1bursts/netrc" {
		t.Errorf("expected netrc path, got %s", cfg.EDL.Netrc)
	}

	if cfg.Fetch.MaxAttempts != 3 || cfg.Fetch.Concurrency != 16 {
		t.Errorf("expected 3 attempts and concurrency 16, got %d and %d", cfg.Fetch.MaxAttempts, cfg.Fetch.Concurrency)
	}

	if cfg.Cache.Enabled {
		t.Errorf("expected cache disabled")
	}

	if cfg.Burst.EdgeLineMargin != 2 {
		t.Errorf("expected edge line margin 2, got %d", cfg.Burst.EdgeLineMargin)
	}

	if cfg.Logging.Format != "text" {
		t.Errorf("expected log format text, got %s", cfg.Logging.Format)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	os.Setenv("FETCH_MAX_ATTEMPTS", "many")
	defer os.Unsetenv("FETCH_MAX_ATTEMPTS")

	if _, err := Load(); err == nil {
		t.Errorf("expected an error for a non-numeric attempt count")
	}
}

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Backend:  BackendConfig{Type: "datapool"},
		ASF:      ASFConfig{BaseURL: "https://api.daac.asf.alaska.edu", Timeout: 30 * time.Second},
		CMR:      CMRConfig{BaseURL: "https://cmr.earthdata.nasa.gov/search", Provider: "ASF", Timeout: 30 * time.Second},
		Datapool: DatapoolConfig{BaseURL: "https://datapool.asf.alaska.edu"},
		EDL:      EDLConfig{Host: "urs.earthdata.nasa.gov"},
		Fetch: FetchConfig{
			Timeout:     time.Minute,
			MaxAttempts: 5,
			BaseDelay:   500 * time.Millisecond,
			MaxDelay:    30 * time.Second,
			Concurrency: 4,
		},
		Cache: CacheConfig{Enabled: true, LifeWindow: 30 * time.Minute, MaxSizeMB: 512},
		Burst: BurstConfig{FloatTolerance: 1e-9, MinIoU: 0.5},
		STAC:  STACConfig{Version: "1.0.0", BaseURL: "https://stac.example.com"},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		wantError bool
	}{
		{name: "valid config", mutate: func(c *Config) {}},
		{name: "valid config with ASF backend", mutate: func(c *Config) { c.Backend.Type = "asf" }},
		{name: "valid config with CMR backend", mutate: func(c *Config) { c.Backend.Type = "cmr" }},
		{name: "invalid port", mutate: func(c *Config) { c.Server.Port = 0 }, wantError: true},
		{name: "invalid backend type", mutate: func(c *Config) { c.Backend.Type = "invalid" }, wantError: true},
		{name: "missing datapool URL", mutate: func(c *Config) { c.Datapool.BaseURL = "" }, wantError: true},
		{name: "CMR backend without URL", mutate: func(c *Config) {
			c.Backend.Type = "cmr"
			c.CMR.BaseURL = ""
		}, wantError: true},
		{name: "zero attempts", mutate: func(c *Config) { c.Fetch.MaxAttempts = 0 }, wantError: true},
		{name: "max delay below base delay", mutate: func(c *Config) { c.Fetch.MaxDelay = time.Millisecond }, wantError: true},
		{name: "zero concurrency", mutate: func(c *Config) { c.Fetch.Concurrency = 0 }, wantError: true},
		{name: "disabled cache ignores life window", mutate: func(c *Config) {
			c.Cache.Enabled = false
			c.Cache.LifeWindow = 0
		}},
		{name: "negative edge margin", mutate: func(c *Config) { c.Burst.EdgeLineMargin = -1 }, wantError: true},
		{name: "negative float tolerance", mutate: func(c *Config) { c.Burst.FloatTolerance = -1 }, wantError: true},
		{name: "zero write timeout", mutate: func(c *Config) { c.Server.WriteTimeout = 0 }, wantError: true},
		{name: "negative retry budget", mutate: func(c *Config) { c.Fetch.MaxElapsed = -time.Second }, wantError: true},
		{name: "IoU above one", mutate: func(c *Config) { c.Burst.MinIoU = 1.5 }, wantError: true},
		{name: "missing STAC base URL", mutate: func(c *Config) { c.STAC.BaseURL = "" }, wantError: true},
		{name: "invalid log level", mutate: func(c *Config) { c.Logging.Level = "invalid" }, wantError: true},
		{name: "invalid log format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantError {
				t.Errorf("Validate() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}

func TestServerConfigAddress(t *testing.T) {
	tests := []struct {
		host string
		port int
		want string
	}{
		{"localhost", 3000, "localhost:3000"},
		{"0.0.0.0", 8080, "0.0.0.0:8080"},
		{"::1", 8080, "[::1]:8080"},
	}
	for _, tt := range tests {
		cfg := ServerConfig{Host: tt.host, Port: tt.port}
		if got := cfg.Address(); got != tt.want {
			t.Errorf("Address() = %s, expected %s", got, tt.want)
		}
	}
}
