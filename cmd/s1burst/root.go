package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/robert-malhotra/s1bursts/internal/config"
	"github.com/robert-malhotra/s1bursts/internal/resolver"
	"github.com/robert-malhotra/s1bursts/pkg/server"
)

// app carries the configuration shared by every command.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	backend     string
	netrc       string
	logLevel    string
	logFormat   string
	concurrency int
	noCache     bool
}

func newRootCommand() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "s1burst",
		Short: "Burst level access to Sentinel-1 IW SLC products",
		Long: `s1burst reads the manifest and annotations of a Sentinel-1 SLC product,
computes the valid window and byte range of every burst, and fetches only
the bytes of the bursts asked for.

Products are given as granule names, datapool URLs or local zip files.

Examples:
  s1burst bursts S1B_IW_SLC__1SDV_20210131T151555_20210131T151621_025400_03067B_415D
  s1burst bursts --format stac --catalog ./catalog --pol VV ./product.zip
  s1burst fetch --pol VV --out ./bursts <granule> t174_372322_iw1
  s1burst reconcile --swath 1 ./product.zip
  s1burst serve`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.backend, "backend", "", "product locator: datapool, asf or cmr (default from BACKEND_TYPE)")
	flags.StringVar(&a.netrc, "netrc", "", "Earthdata Login netrc file (default from EDL_NETRC or $HOME/.netrc)")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error")
	flags.StringVar(&a.logFormat, "log-format", "", "log format: json or text")
	flags.IntVar(&a.concurrency, "concurrency", 0, "products and bursts processed at once")
	flags.BoolVar(&a.noCache, "no-cache", false, "disable the metadata document cache")

	cmd.AddCommand(
		newServeCommand(a),
		newBurstsCommand(a),
		newFetchCommand(a),
		newReconcileCommand(a),
	)
	return cmd
}

// init loads the configuration, applies flag overrides and builds the logger.
func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("backend") {
		cfg.Backend.Type = a.backend
	}
	if flags.Changed("netrc") {
		cfg.EDL.Netrc = a.netrc
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = a.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format = a.logFormat
	}
	if flags.Changed("concurrency") {
		cfg.Fetch.Concurrency = a.concurrency
	}
	if a.noCache {
		cfg.Cache.Enabled = false
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Commands that print results keep stdout for them.
	logOut := cmd.ErrOrStderr()
	if cmd.Name() == "serve" {
		logOut = cmd.OutOrStdout()
	}

	a.cfg = cfg
	a.logger = setupLogger(cfg.Logging.Level, cfg.Logging.Format, logOut)
	return nil
}

// pipeline wires the locator, fetch client and resolver from the config.
func (a *app) pipeline(ctx context.Context) (*server.Pipeline, error) {
	return server.NewPipeline(ctx, a.cfg, a.logger)
}

// locate turns a command line argument into a container location. URLs and
// existing files are used as is; anything else is a granule name.
func locate(ctx context.Context, p *server.Pipeline, arg string) (string, error) {
	if strings.HasPrefix(arg, "https://") || strings.HasPrefix(arg, "http://") {
		return arg, nil
	}
	if _, err := os.Stat(arg); err == nil {
		return arg, nil
	}

	granule, err := p.Locator.Locate(ctx, arg)
	if err != nil {
		return "", err
	}
	return granule.URL, nil
}

func locateAll(ctx context.Context, p *server.Pipeline, args []string) ([]string, error) {
	locations := make([]string, 0, len(args))
	for _, arg := range args {
		loc, err := locate(ctx, p, arg)
		if err != nil {
			return nil, err
		}
		locations = append(locations, loc)
	}
	return locations, nil
}

// filterFlags binds the polarization and swath selection flags.
type filterFlags struct {
	polarizations []string
	swaths        []int
}

func (f *filterFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&f.polarizations, "pol", nil, "polarizations to include, e.g. VV,VH (default all)")
	cmd.Flags().IntSliceVar(&f.swaths, "swath", nil, "swath numbers to include, e.g. 1,2 (default all)")
}

func (f *filterFlags) filter() (resolver.Filter, error) {
	out := resolver.Filter{Swaths: f.swaths}
	for _, pol := range f.polarizations {
		pol = strings.ToUpper(strings.TrimSpace(pol))
		switch pol {
		case "VV", "VH", "HH", "HV":
			out.Polarizations = append(out.Polarizations, pol)
		default:
			return out, fmt.Errorf("invalid polarization %q", pol)
		}
	}
	for _, n := range f.swaths {
		if n < 1 || n > 3 {
			return out, fmt.Errorf("invalid swath %d, must be 1, 2 or 3", n)
		}
	}
	return out, nil
}

func setupLogger(level, format string, w io.Writer) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}
