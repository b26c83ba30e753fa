// Package server provides a public API for embedding the burst service, and
// assembles the pipeline the s1burst command runs.
package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/robert-malhotra/s1bursts/internal/api"
	"github.com/robert-malhotra/s1bursts/internal/asf"
	"github.com/robert-malhotra/s1bursts/internal/backend"
	"github.com/robert-malhotra/s1bursts/internal/burst"
	"github.com/robert-malhotra/s1bursts/internal/cache"
	"github.com/robert-malhotra/s1bursts/internal/cmr"
	"github.com/robert-malhotra/s1bursts/internal/config"
	"github.com/robert-malhotra/s1bursts/internal/fetch"
	"github.com/robert-malhotra/s1bursts/internal/metrics"
	"github.com/robert-malhotra/s1bursts/internal/resolver"
)

// BackendType specifies how granule names are located.
type BackendType string

const (
	// BackendDatapool builds datapool URLs without a network round trip.
	BackendDatapool BackendType = "datapool"
	// BackendASF uses the ASF Search API.
	BackendASF BackendType = "asf"
	// BackendCMR uses NASA's Common Metadata Repository.
	BackendCMR BackendType = "cmr"
)

// Options configures an embedded burst server.
type Options struct {
	// BaseURL is the public-facing URL for self-referential links (required).
	// Example: "https://api.example.com/bursts" or "http://localhost:8080"
	BaseURL string

	// Backend specifies how granules are located.
	// Default: BackendDatapool
	Backend BackendType

	// DatapoolURL is the root of the ASF datapool.
	// Default: "https://datapool.asf.alaska.edu"
	DatapoolURL string

	// ASFBaseURL is the ASF Search API base URL.
	// Default: "https://api.daac.asf.alaska.edu"
	ASFBaseURL string

	// CMRBaseURL is the NASA CMR API base URL.
	// Default: "https://cmr.earthdata.nasa.gov/search"
	CMRBaseURL string

	// CMRProvider is the CMR provider ID.
	// Default: "ASF"
	CMRProvider string

	// Timeout is the locator request timeout.
	// Default: 30s
	Timeout time.Duration

	// FetchTimeout bounds each ranged request.
	// Default: 120s
	FetchTimeout time.Duration

	// Netrc is the Earthdata Login credentials file.
	// Default: "" ($HOME/.netrc when present)
	Netrc string

	// Concurrency bounds the bursts fetched at once.
	// Default: 4
	Concurrency int

	// CacheSizeMB caps the metadata document cache. Negative disables it.
	// Default: 512
	CacheSizeMB int

	// Logger is the slog logger to use.
	// Default: slog.Default()
	Logger *slog.Logger
}

// config applies defaults and maps the options onto a service config.
func (o Options) config() *config.Config {
	if o.Backend == "" {
		o.Backend = BackendDatapool
	}
	if o.DatapoolURL == "" {
		o.DatapoolURL = "https://datapool.asf.alaska.edu"
	}
	if o.ASFBaseURL == "" {
		o.ASFBaseURL = "https://api.daac.asf.alaska.edu"
	}
	if o.CMRBaseURL == "" {
		o.CMRBaseURL = "https://cmr.earthdata.nasa.gov/search"
	}
	if o.CMRProvider == "" {
		o.CMRProvider = "ASF"
	}
	if o.Timeout == 0 {
		o.Timeout = 30 * time.Second
	}
	if o.FetchTimeout == 0 {
		o.FetchTimeout = 120 * time.Second
	}
	if o.Concurrency == 0 {
		o.Concurrency = 4
	}
	if o.CacheSizeMB == 0 {
		o.CacheSizeMB = 512
	}

	return &config.Config{
		Server: config.ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Backend:  config.BackendConfig{Type: string(o.Backend)},
		ASF:      config.ASFConfig{BaseURL: o.ASFBaseURL, Timeout: o.Timeout},
		CMR:      config.CMRConfig{BaseURL: o.CMRBaseURL, Provider: o.CMRProvider, Timeout: o.Timeout},
		Datapool: config.DatapoolConfig{BaseURL: o.DatapoolURL},
		EDL:      config.EDLConfig{Host: fetch.DefaultEDLHost, Netrc: o.Netrc},
		Fetch: config.FetchConfig{
			Timeout:     o.FetchTimeout,
			MaxAttempts: fetch.DefaultRetryPolicy.MaxAttempts,
			BaseDelay:   fetch.DefaultRetryPolicy.BaseDelay,
			MaxDelay:    fetch.DefaultRetryPolicy.MaxDelay,
			Concurrency: o.Concurrency,
		},
		Cache: config.CacheConfig{
			Enabled:    o.CacheSizeMB > 0,
			LifeWindow: 30 * time.Minute,
			MaxSizeMB:  max(o.CacheSizeMB, 0),
		},
		Burst: config.BurstConfig{FloatTolerance: 1e-9, MinIoU: 0.5},
		STAC: config.STACConfig{
			Version: "1.0.0",
			BaseURL: o.BaseURL,
		},
		Logging: config.LoggingConfig{Level: "info", Format: "json"},
	}
}

// Pipeline holds the wired components shared by the server and the command
// line tools.
type Pipeline struct {
	Config   *config.Config
	Locator  backend.Locator
	Fetch    *fetch.Client
	Resolver *resolver.Resolver
	Metrics  *metrics.Metrics
	Registry *prometheus.Registry

	cache *cache.MemoryStore
}

// NewPipeline wires a locator, fetch client, document cache and resolver from
// cfg. ctx bounds the lifetime of the document cache.
func NewPipeline(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	locator, err := NewLocator(cfg, logger)
	if err != nil {
		return nil, err
	}

	client := fetch.NewClient(cfg.Fetch.Timeout).
		WithLogger(logger).
		WithObserver(m).
		WithRetry(fetch.ExponentialBackoff{
			MaxAttempts: cfg.Fetch.MaxAttempts,
			BaseDelay:   cfg.Fetch.BaseDelay,
			MaxDelay:    cfg.Fetch.MaxDelay,
			MaxElapsed:  cfg.Fetch.MaxElapsed,
		})

	netrc, err := fetch.LoadNetrc(cfg.EDL.Netrc)
	switch {
	case err == nil:
		client = client.WithCredentials(netrc, cfg.EDL.Host)
	case cfg.EDL.Netrc == "" && errors.Is(err, fs.ErrNotExist):
		logger.Debug("no netrc found, fetching without credentials")
	default:
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}

	res := resolver.New(client).
		WithLogger(logger).
		WithObserver(m).
		WithConcurrency(cfg.Fetch.Concurrency).
		WithBuilder(burst.AnnotationBuilder{Options: burst.Options{EdgeLineMargin: cfg.Burst.EdgeLineMargin}})

	p := &Pipeline{
		Config:   cfg,
		Locator:  locator,
		Fetch:    client,
		Resolver: res,
		Metrics:  m,
		Registry: reg,
	}

	if cfg.Cache.Enabled {
		store, err := cache.NewMemoryStore(ctx, cache.Config{
			LifeWindow: cfg.Cache.LifeWindow,
			MaxSizeMB:  cfg.Cache.MaxSizeMB,
		})
		if err != nil {
			return nil, err
		}
		store.WithLogger(logger)
		metrics.RegisterCache(reg, store)
		res.WithCache(store)
		p.cache = store
	}

	return p, nil
}

// NewLocator returns the locator selected by cfg.Backend.Type.
func NewLocator(cfg *config.Config, logger *slog.Logger) (backend.Locator, error) {
	switch BackendType(cfg.Backend.Type) {
	case BackendDatapool:
		logger.Info("using datapool locator", "base_url", cfg.Datapool.BaseURL)
		return backend.NewDatapoolLocator(cfg.Datapool.BaseURL), nil
	case BackendASF:
		asfClient := asf.NewClient(cfg.ASF.BaseURL, cfg.ASF.Timeout).WithLogger(logger)
		logger.Info("using ASF locator", "base_url", cfg.ASF.BaseURL)
		return backend.NewASFLocator(asfClient).WithLogger(logger), nil
	case BackendCMR:
		cmrClient := cmr.NewClient(cfg.CMR.BaseURL, cfg.CMR.Provider, cfg.CMR.Timeout).WithLogger(logger)
		logger.Info("using CMR locator", "base_url", cfg.CMR.BaseURL, "provider", cfg.CMR.Provider)
		return cmr.NewLocator(cmrClient).WithLogger(logger), nil
	default:
		return nil, fmt.Errorf("unknown backend type %q", cfg.Backend.Type)
	}
}

// Close releases the document cache.
func (p *Pipeline) Close() error {
	if p.cache != nil {
		return p.cache.Close()
	}
	return nil
}

// Server is a burst server that can be embedded in another application.
type Server struct {
	router   chi.Router
	pipeline *Pipeline
}

// New creates a new burst server with the given options.
func New(ctx context.Context, opts Options) (*Server, error) {
	cfg := opts.config()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	return NewFromConfig(ctx, cfg, opts.Logger)
}

// NewFromConfig creates a burst server from a loaded configuration.
func NewFromConfig(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	p, err := NewPipeline(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	handlers := api.NewHandlers(cfg, p.Locator, p.Resolver, logger)
	router := api.NewRouter(handlers, logger, api.RouterOptions{
		Observer: p.Metrics,
		Metrics:  promhttp.HandlerFor(p.Registry, promhttp.HandlerOpts{}),
	})

	return &Server{router: router, pipeline: p}, nil
}

// Router returns the chi.Router for mounting in another application.
func (s *Server) Router() chi.Router {
	return s.router
}

// Close releases the document cache.
func (s *Server) Close() error {
	return s.pipeline.Close()
}
