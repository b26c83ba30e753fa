package cmr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/robert-malhotra/s1bursts/internal/backend"
	"github.com/robert-malhotra/s1bursts/internal/burst"
)

// SLCShortNames are the CMR collections of Sentinel-1 SLC products.
var SLCShortNames = []string{"SENTINEL-1A_SLC", "SENTINEL-1B_SLC"}

// Locator implements backend.Locator for NASA's CMR API.
type Locator struct {
	client *Client
	logger *slog.Logger
}

var _ backend.Locator = (*Locator)(nil)

// NewLocator creates a new CMR locator.
func NewLocator(client *Client) *Locator {
	return &Locator{
		client: client,
		logger: slog.Default(),
	}
}

// WithLogger sets a custom logger for the locator.
func (l *Locator) WithLogger(logger *slog.Logger) *Locator {
	l.logger = logger
	return l
}

// Name returns the locator name.
func (l *Locator) Name() string {
	return "cmr"
}

// Locate implements backend.Locator. SLC granule URs are the scene name with
// a "-SLC" suffix.
func (l *Locator) Locate(ctx context.Context, name string) (*backend.Granule, error) {
	name = strings.TrimSuffix(strings.TrimSuffix(name, ".zip"), ".SAFE")
	platform, err := backend.PlatformOf(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", err, name)
	}

	g, err := l.client.Granule(ctx, "SENTINEL-1"+platform[2:]+"_SLC", name+"-SLC")
	if errors.Is(err, ErrGranuleNotFound) {
		return nil, fmt.Errorf("%w: %s", backend.ErrGranuleNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("CMR lookup failed: %w", err)
	}
	return granuleFromUMM(g)
}

// Search implements backend.Locator.
func (l *Locator) Search(ctx context.Context, params *backend.SearchParams) ([]*backend.Granule, error) {
	page, err := l.client.Granules(ctx, toCMRQuery(params))
	if err != nil {
		return nil, fmt.Errorf("CMR search failed: %w", err)
	}

	granules := make([]*backend.Granule, 0, len(page.Granules))
	for i := range page.Granules {
		g, err := granuleFromUMM(&page.Granules[i])
		if err != nil {
			l.logger.WarnContext(ctx, "failed to translate CMR granule",
				slog.String("granule_ur", page.Granules[i].GranuleUR),
				slog.String("error", err.Error()),
			)
			continue
		}
		granules = append(granules, g)
	}
	return granules, nil
}

// Bursts returns published burst granules with the given burst ids, ready
// for remote reads.
func (l *Locator) Bursts(ctx context.Context, ids []string, start, end *time.Time) ([]*burst.Metadata, error) {
	q := Query{
		ShortNames:   []string{BurstShortName},
		Temporal:     temporal(start, end),
		AnyAttribute: true,
	}
	for _, id := range ids {
		q.Attributes = append(q.Attributes, StringAttr(AttrOperaID, id))
	}

	granules, err := l.client.All(ctx, q, 0)
	if err != nil {
		return nil, fmt.Errorf("CMR burst search failed: %w", err)
	}

	var errs []error
	bursts := make([]*burst.Metadata, 0, len(granules))
	for i := range granules {
		b, err := GranuleToBurst(&granules[i])
		if err != nil {
			errs = append(errs, err)
			continue
		}
		bursts = append(bursts, b)
	}

	l.logger.DebugContext(ctx, "CMR burst search completed",
		slog.Int("granules", len(granules)),
		slog.Int("bursts", len(bursts)),
	)
	return bursts, errors.Join(errs...)
}

// toCMRQuery maps locator search parameters onto the SLC collections.
func toCMRQuery(params *backend.SearchParams) *Query {
	q := &Query{
		Attributes: []AttributeFilter{StringAttr(AttrBeamMode, "IW")},
		Temporal:   temporal(params.Start, params.End),
		PageSize:   params.Limit,
	}

	for _, p := range params.Platform {
		if p = strings.ToUpper(p); len(p) == 3 {
			q.ShortNames = append(q.ShortNames, "SENTINEL-1"+p[2:]+"_SLC")
		}
	}
	if len(q.ShortNames) == 0 {
		q.ShortNames = append(q.ShortNames, SLCShortNames...)
	}

	if len(params.BBox) >= 4 {
		q.BoundingBox = fmt.Sprintf("%f,%f,%f,%f",
			params.BBox[0], params.BBox[1], params.BBox[2], params.BBox[3])
	}
	for _, pol := range params.Polarization {
		q.Attributes = append(q.Attributes, StringAttr(AttrPolarization, pol))
	}
	if params.FlightDirection != "" {
		q.Attributes = append(q.Attributes, StringAttr(AttrFlightDirection, strings.ToUpper(params.FlightDirection)))
	}
	for _, orbit := range params.RelativeOrbit {
		q.Attributes = append(q.Attributes, IntAttr(AttrPathNumber, orbit))
	}
	return q
}

func temporal(start, end *time.Time) string {
	if start == nil && end == nil {
		return ""
	}
	t := ""
	if start != nil {
		t = start.UTC().Format("2006-01-02T15:04:05Z")
	}
	t += ","
	if end != nil {
		t += end.UTC().Format("2006-01-02T15:04:05Z")
	}
	return t
}

func granuleFromUMM(u *Granule) (*backend.Granule, error) {
	name := strings.TrimSuffix(u.GranuleUR, "-SLC")
	platform, err := backend.PlatformOf(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", err, u.GranuleUR)
	}

	url := ""
	for _, r := range u.RelatedUrls {
		if r.Type == "GET DATA" && strings.HasSuffix(r.URL, ".zip") {
			url = r.URL
			break
		}
	}
	if url == "" {
		return nil, fmt.Errorf("granule %s has no zip download URL", u.GranuleUR)
	}

	g := &backend.Granule{
		Name:     name,
		URL:      url,
		Platform: platform,
	}
	if g.Start, err = u.Start(); err != nil {
		return nil, err
	}
	if g.Stop, err = u.End(); err != nil {
		return nil, err
	}
	if v := u.Attribute(AttrFlightDirection); len(v) > 0 {
		g.FlightDirection = v[0]
	}
	if v := u.Attribute(AttrPathNumber); len(v) > 0 {
		g.RelativeOrbit, _ = strconv.Atoi(v[0])
	}
	for _, d := range u.OrbitCalculatedSpatialDomains {
		if d.OrbitNumber != nil {
			g.AbsoluteOrbit = *d.OrbitNumber
			break
		}
	}
	if u.DataGranule != nil {
		for _, a := range u.DataGranule.ArchiveAndDistributionInformation {
			if a.SizeInBytes > 0 {
				g.Size = a.SizeInBytes
				break
			}
		}
	}
	return g, nil
}
