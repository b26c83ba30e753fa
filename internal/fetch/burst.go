package fetch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robert-malhotra/s1bursts/internal/burst"
	"github.com/robert-malhotra/s1bursts/internal/envi"
)

// Load fetches and decodes the raster of a burst without attaching it.
func (c *Client) Load(ctx context.Context, b *burst.Metadata) (*burst.Array, error) {
	r, ok := b.Range()
	if !ok {
		return nil, fmt.Errorf("burst %s has no resolved byte range", b.ID)
	}
	if b.URLPath == "" {
		return nil, fmt.Errorf("burst %s has no remote location", b.ID)
	}

	raw, err := c.FetchRange(ctx, b.URLPath, r)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", b.ID, err)
	}

	a, err := Decode(raw, r.Format, r.Lines, r.Samples)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", b.ID, err)
	}

	c.logger.DebugContext(ctx, "fetched burst",
		slog.String("burst", b.ID),
		slog.String("polarization", b.Polarization),
		slog.Int64("bytes", int64(len(raw))),
	)
	return a, nil
}

// ReadBurst fetches the raster of a burst, attaches it and returns it.
func (c *Client) ReadBurst(ctx context.Context, b *burst.Metadata) (*burst.Array, error) {
	a, err := c.Load(ctx, b)
	if err != nil {
		return nil, err
	}
	if err := b.AttachData(a); err != nil {
		return nil, err
	}
	return a, nil
}

// WriteBurst fetches the raster of a burst and writes it as an ENVI pair at
// base. The burst is left without data.
func (c *Client) WriteBurst(ctx context.Context, b *burst.Metadata, base string) error {
	a, err := c.Load(ctx, b)
	if err != nil {
		return err
	}
	return envi.Write(base, a, Header(b))
}

// Header describes a burst in an ENVI header.
func Header(b *burst.Metadata) envi.Header {
	return envi.Header{
		Description: fmt.Sprintf("%s %s %s", b.SafeName, b.ID, b.Polarization),
		Extra: [][2]string{
			{"sensor type", "Sentinel-1"},
			{"wavelength", fmt.Sprintf("%.9g", b.Wavelength)},
		},
	}
}
