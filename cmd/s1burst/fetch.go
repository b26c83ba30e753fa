package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/robert-malhotra/s1bursts/internal/burst"
	"github.com/robert-malhotra/s1bursts/internal/envi"
	"github.com/robert-malhotra/s1bursts/internal/fetch"
	"github.com/robert-malhotra/s1bursts/pkg/server"
)

type fetchOptions struct {
	filterFlags
	out string
}

func newFetchCommand(a *app) *cobra.Command {
	opts := &fetchOptions{}

	cmd := &cobra.Command{
		Use:   "fetch <product> [burst-id]...",
		Short: "Fetch burst data as ENVI files",
		Long: `Fetch the samples of bursts of a product and write each as an ENVI pair,
<out>/<burst-id>_<pol>.slc and .hdr. Only the byte range of each burst is
requested. Without burst ids every burst matching --pol and --swath is
fetched.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.fetch(cmd, args[0], args[1:], opts)
		},
	}

	opts.bind(cmd)
	cmd.Flags().StringVar(&opts.out, "out", ".", "output directory")
	return cmd
}

func (a *app) fetch(cmd *cobra.Command, product string, ids []string, opts *fetchOptions) error {
	filter, err := opts.filter()
	if err != nil {
		return err
	}
	// Burst ids carry their swath.
	for _, id := range ids {
		n, err := swathOfID(id)
		if err != nil {
			return err
		}
		if len(opts.swaths) == 0 && !slices.Contains(filter.Swaths, n) {
			filter.Swaths = append(filter.Swaths, n)
		}
	}

	ctx := cmd.Context()
	p, err := a.pipeline(ctx)
	if err != nil {
		return err
	}
	defer p.Close()

	location, err := locate(ctx, p, product)
	if err != nil {
		return err
	}
	res, err := p.Resolver.Resolve(ctx, location, filter)
	if err != nil {
		return err
	}

	selected := selectBursts(res.Bursts, ids)
	if len(selected) == 0 {
		if res.Err != nil {
			return res.Err
		}
		return fmt.Errorf("%w: no burst of %s matches", burst.ErrBurstNotFound, product)
	}

	if err := os.MkdirAll(opts.out, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", opts.out, err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Fetch.Concurrency)
	for _, b := range selected {
		base := filepath.Join(opts.out, b.ID+"_"+strings.ToLower(b.Polarization))
		g.Go(func() error {
			if err := writeBurst(ctx, p, b, base); err != nil {
				return err
			}
			a.logger.Info("wrote burst",
				slog.String("burst", b.ID),
				slog.String("polarization", b.Polarization),
				slog.String("path", base),
			)
			return nil
		})
	}
	return g.Wait()
}

// writeBurst fetches remote bursts without keeping their samples; local
// ones are read from the container.
func writeBurst(ctx context.Context, p *server.Pipeline, b *burst.Metadata, base string) error {
	if b.URLPath != "" {
		return p.Fetch.WriteBurst(ctx, b, base)
	}
	data, err := p.Resolver.Read(ctx, b)
	if err != nil {
		return err
	}
	return envi.Write(base, data, fetch.Header(b))
}

// selectBursts keeps the bursts named by ids, or all of them without ids.
func selectBursts(bursts []*burst.Metadata, ids []string) []*burst.Metadata {
	if len(ids) == 0 {
		return bursts
	}
	var out []*burst.Metadata
	for _, b := range bursts {
		for _, id := range ids {
			if strings.EqualFold(b.ID, id) {
				out = append(out, b)
				break
			}
		}
	}
	return out
}

// swathOfID returns the swath number of a burst id such as t174_372322_iw1.
func swathOfID(id string) (int, error) {
	i := strings.LastIndex(strings.ToLower(id), "_iw")
	if i < 0 || i+4 != len(id) || id[i+3] < '1' || id[i+3] > '3' {
		return 0, fmt.Errorf("invalid burst id %q", id)
	}
	return int(id[i+3] - '0'), nil
}
