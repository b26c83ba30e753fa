package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/robert-malhotra/s1bursts/internal/api"
	"github.com/robert-malhotra/s1bursts/internal/burst"
	"github.com/robert-malhotra/s1bursts/internal/cmr"
	"github.com/robert-malhotra/s1bursts/internal/resolver"
	"github.com/robert-malhotra/s1bursts/internal/stac"
)

type burstsOptions struct {
	filterFlags
	format  string
	catalog string
	output  string
}

func newBurstsCommand(a *app) *cobra.Command {
	opts := &burstsOptions{}

	cmd := &cobra.Command{
		Use:   "bursts <product>...",
		Short: "Resolve the bursts of one or more products",
		Long: `Resolve the geometry and byte range of every burst of the given products
and print them as burst records, a STAC item collection or CMR UMM-G
granules. Products are read through ranged requests; nothing but the
manifest and annotations is downloaded.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.bursts(cmd, args, opts)
		},
	}

	opts.bind(cmd)
	cmd.Flags().StringVarP(&opts.format, "format", "f", "json", "output format: json, stac or umm")
	cmd.Flags().StringVar(&opts.catalog, "catalog", "", "also write a static STAC catalog to this directory")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default stdout)")
	return cmd
}

func (a *app) bursts(cmd *cobra.Command, args []string, opts *burstsOptions) error {
	switch opts.format {
	case api.FormatJSON, api.FormatSTAC, api.FormatUMM:
	default:
		return fmt.Errorf("invalid format %q, must be one of: json, stac, umm", opts.format)
	}
	filter, err := opts.filter()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	p, err := a.pipeline(ctx)
	if err != nil {
		return err
	}
	defer p.Close()

	locations, err := locateAll(ctx, p, args)
	if err != nil {
		return err
	}

	results, resolveErr := p.Resolver.ResolveAll(ctx, locations, filter)
	if resolveErr != nil && countBursts(results) == 0 {
		return resolveErr
	}
	for _, res := range results {
		if res != nil && res.Err != nil {
			a.logger.Warn("some bursts did not resolve",
				slog.String("location", res.Location),
				slog.String("error", res.Err.Error()),
			)
		}
	}

	var items []*stac.Item
	if opts.format == api.FormatSTAC || opts.catalog != "" {
		items, err = stac.Items(collectBursts(results), a.cfg.STAC.Version)
		if err != nil {
			return err
		}
	}

	if opts.catalog != "" {
		catalog, err := stac.NewBurstCatalog(items, a.cfg.STAC.Version)
		if err != nil {
			return err
		}
		if err := catalog.Write(opts.catalog); err != nil {
			return err
		}
		a.logger.Info("wrote catalog",
			slog.String("dir", opts.catalog),
			slog.Int("stacks", len(catalog.Stacks)),
			slog.Int("items", len(items)),
		)
	}

	var out any
	switch opts.format {
	case api.FormatSTAC:
		out = stac.NewItemCollection(items)
	case api.FormatUMM:
		granules := make([]*cmr.Granule, 0)
		produced := time.Now().UTC()
		for _, res := range results {
			if res == nil {
				continue
			}
			for _, b := range res.Bursts {
				g, err := cmr.BurstToGranule(b, res.Location, produced)
				if err != nil {
					return err
				}
				granules = append(granules, g)
			}
		}
		out = granules
	default:
		records := make([]api.BurstRecord, 0)
		for _, b := range collectBursts(results) {
			records = append(records, api.NewBurstRecord(b))
		}
		out = records
	}

	w := cmd.OutOrStdout()
	if opts.output != "" {
		f, err := os.Create(opts.output)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", opts.output, err)
		}
		defer f.Close()
		w = f
	}
	if err := writeJSON(w, out); err != nil {
		return err
	}
	return errors.Join(append(resultErrors(results), resolveErr)...)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func collectBursts(results []*resolver.Result) []*burst.Metadata {
	var out []*burst.Metadata
	for _, res := range results {
		if res != nil {
			out = append(out, res.Bursts...)
		}
	}
	return out
}

func countBursts(results []*resolver.Result) int {
	n := 0
	for _, res := range results {
		if res != nil {
			n += len(res.Bursts)
		}
	}
	return n
}

// resultErrors returns the per-burst failures of every product.
func resultErrors(results []*resolver.Result) []error {
	var errs []error
	for _, res := range results {
		if res != nil && res.Err != nil {
			errs = append(errs, res.Err)
		}
	}
	return errs
}
