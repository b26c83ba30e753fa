package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/robert-malhotra/s1bursts/internal/asf"
)

// ASFLocator implements Locator for the ASF Search API.
type ASFLocator struct {
	client *asf.Client
	logger *slog.Logger
}

// NewASFLocator creates a new ASF locator.
func NewASFLocator(client *asf.Client) *ASFLocator {
	return &ASFLocator{
		client: client,
		logger: slog.Default(),
	}
}

// WithLogger sets a custom logger for the locator
func (l *ASFLocator) WithLogger(logger *slog.Logger) *ASFLocator {
	l.logger = logger
	return l
}

// Name returns the locator name.
func (l *ASFLocator) Name() string {
	return "asf"
}

// Locate implements Locator.
func (l *ASFLocator) Locate(ctx context.Context, name string) (*Granule, error) {
	name = strings.TrimSuffix(strings.TrimSuffix(name, ".zip"), ".SAFE")
	if _, err := PlatformOf(name); err != nil {
		return nil, fmt.Errorf("%w: %q", err, name)
	}

	f, err := l.client.Product(ctx, name)
	if err != nil {
		if errors.Is(err, asf.ErrGranuleNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrGranuleNotFound, name)
		}
		return nil, fmt.Errorf("ASF lookup failed: %w", err)
	}

	return granuleFromFeature(f)
}

// Search implements Locator.
func (l *ASFLocator) Search(ctx context.Context, params *SearchParams) ([]*Granule, error) {
	q, err := toASFQuery(params)
	if err != nil {
		return nil, fmt.Errorf("failed to convert search params: %w", err)
	}

	products, err := l.client.Products(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("ASF search failed: %w", err)
	}

	granules := make([]*Granule, 0, len(products))
	for i := range products {
		g, err := granuleFromFeature(&products[i])
		if err != nil {
			l.logger.WarnContext(ctx, "skipping ASF product",
				slog.String("file_id", products[i].Properties.FileID),
				slog.String("error", err.Error()),
			)
			continue
		}
		granules = append(granules, g)
	}
	return granules, nil
}

// toASFQuery converts locator SearchParams to an ASF query.
func toASFQuery(params *SearchParams) (asf.Query, error) {
	q := asf.Query{
		Start:           params.Start,
		End:             params.End,
		Platforms:       params.Platform,
		Polarizations:   params.Polarization,
		FlightDirection: params.FlightDirection,
		RelativeOrbits:  params.RelativeOrbit,
		MaxResults:      params.Limit,
	}
	if len(params.BBox) > 0 {
		wkt, err := bboxToWKT(params.BBox)
		if err != nil {
			return q, fmt.Errorf("invalid bbox: %w", err)
		}
		q.IntersectsWith = wkt
	}
	return q, nil
}

// bboxToWKT renders [west, south, east, north] as a WKT polygon.
func bboxToWKT(bbox []float64) (string, error) {
	if len(bbox) != 4 {
		return "", fmt.Errorf("bbox must have 4 values, got %d", len(bbox))
	}
	w, s, e, n := bbox[0], bbox[1], bbox[2], bbox[3]
	if s > n {
		return "", fmt.Errorf("south %g is north of north %g", s, n)
	}
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return fmt.Sprintf("POLYGON((%s %s,%s %s,%s %s,%s %s,%s %s))",
		f(w), f(s), f(e), f(s), f(e), f(n), f(w), f(n), f(w), f(s)), nil
}

func granuleFromFeature(f *asf.Feature) (*Granule, error) {
	props := f.Properties
	if props.URL == "" {
		return nil, fmt.Errorf("feature %s has no download URL", props.FileID)
	}

	platform, err := PlatformOf(props.SceneName)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", err, props.SceneName)
	}

	g := &Granule{
		Name:            props.SceneName,
		URL:             props.URL,
		Platform:        platform,
		FlightDirection: props.FlightDirection,
		Size:            f.Size(),
	}
	if props.PathNumber != nil {
		g.RelativeOrbit = *props.PathNumber
	}
	if props.AbsoluteOrbit != nil {
		g.AbsoluteOrbit = *props.AbsoluteOrbit
	}
	if g.Start, g.Stop, err = f.Times(); err != nil {
		return nil, fmt.Errorf("invalid acquisition time: %w", err)
	}
	return g, nil
}
