// Package resolver drives the pipeline for whole products: it opens the SAFE
// container, parses its metadata, builds every burst and attaches the byte
// range of each one.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/robert-malhotra/s1bursts/internal/burst"
	"github.com/robert-malhotra/s1bursts/internal/cache"
	"github.com/robert-malhotra/s1bursts/internal/fetch"
	"github.com/robert-malhotra/s1bursts/internal/layout"
	"github.com/robert-malhotra/s1bursts/internal/safe"
)

// Observer receives per-product outcomes. internal/metrics implements it.
type Observer interface {
	ObserveBursts(resolved, failed int)
	ObserveProduct(err error)
}

// Filter restricts which swaths are built. Empty fields match everything.
type Filter struct {
	Polarizations []string
	Swaths        []int
}

func (f Filter) match(sw *safe.Swath) bool {
	if len(f.Polarizations) > 0 && !containsFold(f.Polarizations, sw.Polarization) {
		return false
	}
	if len(f.Swaths) > 0 {
		for _, n := range f.Swaths {
			if n == sw.Index {
				return true
			}
		}
		return false
	}
	return true
}

// Result is the outcome of resolving one product.
type Result struct {
	Location string
	Product  *safe.Product
	// Bursts holds every burst whose geometry and byte range resolved.
	Bursts []*burst.Metadata
	// Err joins the per-burst failures. Bursts that failed are absent.
	Err error
}

// Find returns the burst with the given id and polarization.
func (r *Result) Find(id, pol string) (*burst.Metadata, bool) {
	for _, b := range r.Bursts {
		if b.ID == id && strings.EqualFold(b.Polarization, pol) {
			return b, true
		}
	}
	return nil, false
}

// Resolver resolves products.
type Resolver struct {
	client      *fetch.Client
	cache       cache.Store
	builder     burst.Builder
	layout      *layout.Resolver
	observer    Observer
	concurrency int
	logger      *slog.Logger
}

// New creates a resolver that reads remote containers through client.
func New(client *fetch.Client) *Resolver {
	return &Resolver{
		client:      client,
		cache:       cache.Nop{},
		builder:     burst.AnnotationBuilder{},
		layout:      layout.NewResolver(),
		concurrency: 4,
		logger:      slog.Default(),
	}
}

// WithLogger sets a custom logger for the resolver
func (r *Resolver) WithLogger(logger *slog.Logger) *Resolver {
	r.logger = logger
	r.layout.WithLogger(logger)
	return r
}

// WithCache caches manifest and annotation documents in store.
func (r *Resolver) WithCache(store cache.Store) *Resolver {
	r.cache = store
	return r
}

// WithBuilder replaces the annotation builder.
func (r *Resolver) WithBuilder(b burst.Builder) *Resolver {
	r.builder = b
	return r
}

// WithConcurrency bounds the products and bursts processed at once.
func (r *Resolver) WithConcurrency(n int) *Resolver {
	if n > 0 {
		r.concurrency = n
	}
	return r
}

// WithObserver reports outcomes to o.
func (r *Resolver) WithObserver(o Observer) *Resolver {
	r.observer = o
	return r
}

// Resolve resolves every burst of the product at location, a local path or
// an http(s) URL of a zipped SAFE. Per-burst failures are joined in
// Result.Err; the returned error is set only when the product itself could
// not be read.
func (r *Resolver) Resolve(ctx context.Context, location string, filter Filter) (*Result, error) {
	res, err := r.resolve(ctx, location, filter)
	if r.observer != nil {
		r.observer.ObserveProduct(err)
	}
	return res, err
}

func (r *Resolver) resolve(ctx context.Context, location string, filter Filter) (*Result, error) {
	ra, size, closer, err := r.open(ctx, location)
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	archive, err := layout.OpenArchive(ra, size)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", location, err)
	}

	p, err := r.parse(location, archive)
	if err != nil {
		return nil, err
	}

	res := &Result{Location: location, Product: p}
	layouts := make(map[string]*layout.Layout)
	var (
		errs   []error
		failed int
	)
	for _, sw := range p.Swaths() {
		if !filter.match(sw) {
			continue
		}

		bursts, err := burst.BuildAll(r.builder, sw)
		if err != nil {
			errs = append(errs, err)
			failed += countErrors(err)
		}
		if len(bursts) == 0 {
			continue
		}

		l, ok := layouts[sw.Files.Measurement]
		if !ok {
			l, err = archive.Layout(sw.Files.Measurement)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s %s: %w", sw.Name, sw.Polarization, err))
				failed += len(bursts)
				continue
			}
			layouts[sw.Files.Measurement] = l
		}

		for _, b := range bursts {
			b.MeasurementOffset = l.DataOffset
			rng, err := r.layout.Resolve(b, l)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s %s: %w", b.ID, b.Polarization, err))
				failed++
				continue
			}
			if err := b.AttachRange(rng); err != nil {
				errs = append(errs, err)
				failed++
				continue
			}
			res.Bursts = append(res.Bursts, b)
		}
	}
	res.Err = errors.Join(errs...)

	if r.observer != nil {
		r.observer.ObserveBursts(len(res.Bursts), failed)
	}

	r.logger.DebugContext(ctx, "resolved product",
		slog.String("product", p.Name),
		slog.Int("bursts", len(res.Bursts)),
		slog.Int("failures", failed),
	)
	return res, nil
}

// ResolveAll resolves many products with bounded concurrency. Results keep the
// order of locations; a product that could not be read leaves a nil result
// and contributes to the joined error.
func (r *Resolver) ResolveAll(ctx context.Context, locations []string, filter Filter) ([]*Result, error) {
	results := make([]*Result, len(locations))
	errs := make([]error, len(locations))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, loc := range locations {
		g.Go(func() error {
			res, err := r.Resolve(ctx, loc, filter)
			if err != nil {
				r.logger.ErrorContext(ctx, "failed to resolve product",
					slog.String("location", loc),
					slog.String("error", err.Error()),
				)
				errs[i] = err
				return nil
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, errors.Join(errs...)
}

// FetchAll reads and attaches the data of every burst with bounded
// concurrency. Bursts that already carry data are skipped.
func (r *Resolver) FetchAll(ctx context.Context, bursts []*burst.Metadata) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for _, b := range bursts {
		if b.Data() != nil {
			continue
		}
		g.Go(func() error {
			_, err := r.Read(ctx, b)
			return err
		})
	}
	return g.Wait()
}

// Read reads and attaches the data of one burst, from its remote URL or its
// local container.
func (r *Resolver) Read(ctx context.Context, b *burst.Metadata) (*burst.Array, error) {
	if b.URLPath != "" {
		return r.client.ReadBurst(ctx, b)
	}

	rng, ok := b.Range()
	if !ok {
		return nil, fmt.Errorf("burst %s has no resolved byte range", b.ID)
	}
	container, ok := localContainer(b.TiffPath)
	if !ok {
		return nil, fmt.Errorf("burst %s has no readable location", b.ID)
	}

	f, err := os.Open(container)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", container, err)
	}
	defer f.Close()

	raw, err := fetch.ReadRange(f, rng)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", b.ID, err)
	}
	a, err := fetch.Decode(raw, rng.Format, rng.Lines, rng.Samples)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", b.ID, err)
	}
	if err := b.AttachData(a); err != nil {
		return nil, err
	}
	return a, nil
}

// open returns a reader over the container at location.
func (r *Resolver) open(ctx context.Context, location string) (io.ReaderAt, int64, io.Closer, error) {
	if isRemote(location) {
		f, err := r.client.Open(ctx, location)
		if err != nil {
			return nil, 0, nil, err
		}
		return f, f.Size(), nopCloser{}, nil
	}

	f, err := os.Open(location)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("failed to open %s: %w", location, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, nil, fmt.Errorf("failed to stat %s: %w", location, err)
	}
	return f, info.Size(), f, nil
}

// parse reads the manifest and the product annotations, through the cache.
func (r *Resolver) parse(location string, archive *layout.Archive) (*safe.Product, error) {
	manifest, err := r.document(location, archive, safe.ManifestName)
	if err != nil {
		return nil, err
	}
	p, err := safe.ParseManifest(location, manifest)
	if err != nil {
		return nil, err
	}

	annotations := make(map[string][]byte)
	for _, name := range p.AnnotationPaths() {
		doc, err := r.document(location, archive, name)
		if err != nil {
			return nil, err
		}
		annotations[name] = doc
	}
	return safe.Parse(location, manifest, annotations)
}

func (r *Resolver) document(location string, archive *layout.Archive, name string) ([]byte, error) {
	if doc, err := r.cache.Get(location, name); err == nil {
		return doc, nil
	}
	doc, err := archive.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s from %s: %w", name, location, err)
	}
	// A failed cache write only costs a re-read.
	_ = r.cache.Set(location, name, doc)
	return doc, nil
}

func isRemote(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

// localContainer returns the zip behind a /vsizip/ TiffPath. Byte ranges are
// container offsets, so other paths cannot be read with them.
func localContainer(tiffPath string) (string, bool) {
	rest, ok := strings.CutPrefix(tiffPath, "/vsizip/")
	if !ok {
		return "", false
	}
	i := strings.Index(rest, ".zip/")
	if i < 0 {
		return "", false
	}
	return rest[:i+len(".zip")], true
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// countErrors counts failures, expanding the joined errors of BuildAll.
func countErrors(err error) int {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return len(joined.Unwrap())
	}
	return 1
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
