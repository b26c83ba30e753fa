package layout

import (
	"archive/zip"
	"fmt"
	"log/slog"

	"github.com/robert-malhotra/s1bursts/internal/burst"
)

// Resolver maps burst rasters to container byte ranges.
type Resolver struct {
	logger *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver() *Resolver {
	return &Resolver{logger: slog.Default()}
}

// WithLogger sets a custom logger for the resolver.
func (r *Resolver) WithLogger(logger *slog.Logger) *Resolver {
	r.logger = logger
	return r
}

// Resolve returns the byte range of every row of a burst, [i*L, (i+1)*L) in
// the swath raster. Rows in adjacent strips are coalesced into one segment.
// The first row must start where the annotation says it does.
func (r *Resolver) Resolve(b *burst.Metadata, l *Layout) (burst.ByteRange, error) {
	if err := r.check(b, l); err != nil {
		return burst.ByteRange{}, err
	}

	first := b.Index * b.Shape.Lines
	rng, err := r.rows(b, l, first, b.Shape.Lines, 0, b.Shape.Samples)
	if err != nil {
		return burst.ByteRange{}, err
	}

	want := int64(b.Shape.Lines) * int64(b.Shape.Samples) * int64(b.Format.BytesPerPixel())
	if rng.Length != want {
		return burst.ByteRange{}, fmt.Errorf("%w: burst %s resolved to %d bytes, want %d",
			ErrRangeResolution, b.ID, rng.Length, want)
	}

	if b.AnnotationByteOffset > 0 {
		if got := rng.Offset - l.DataOffset; got != b.AnnotationByteOffset {
			return burst.ByteRange{}, fmt.Errorf("%w: burst %s starts at TIFF offset %d, annotation says %d",
				ErrRangeResolution, b.ID, got, b.AnnotationByteOffset)
		}
	}

	r.logger.Debug("resolved burst range",
		slog.String("burst_id", b.ID),
		slog.Int64("offset", rng.Offset),
		slog.Int64("length", rng.Length),
		slog.Int("segments", len(rng.Segments)),
	)
	return rng, nil
}

// ValidWindow returns the byte segments of a burst's valid window only, one
// run per valid line unless consecutive runs touch.
func (r *Resolver) ValidWindow(b *burst.Metadata, l *Layout) (burst.ByteRange, error) {
	if err := r.check(b, l); err != nil {
		return burst.ByteRange{}, err
	}

	w := b.Valid
	first := b.Index*b.Shape.Lines + w.FirstLine
	rng, err := r.rows(b, l, first, w.Lines(), w.FirstSample, w.Samples())
	if err != nil {
		return burst.ByteRange{}, err
	}

	want := int64(w.Lines()) * int64(w.Samples()) * int64(b.Format.BytesPerPixel())
	if rng.Length != want {
		return burst.ByteRange{}, fmt.Errorf("%w: valid window of %s resolved to %d bytes, want %d",
			ErrRangeResolution, b.ID, rng.Length, want)
	}
	return rng, nil
}

// ResolveFromAnnotation derives the full-burst range from the annotated TIFF
// offset alone, for records that carry no TIFF directory. dataOffset is the
// container offset of the measurement TIFF. Bursts are assumed to be stored
// contiguously.
func ResolveFromAnnotation(b *burst.Metadata, dataOffset int64) (burst.ByteRange, error) {
	bpp := int64(b.Format.BytesPerPixel())
	if bpp == 0 {
		return burst.ByteRange{}, fmt.Errorf("%w: burst %s has no pixel format", ErrRangeResolution, b.ID)
	}
	length := int64(b.Shape.Lines) * int64(b.Shape.Samples) * bpp
	if b.AnnotationByteLength > 0 && b.AnnotationByteLength < length {
		return burst.ByteRange{}, fmt.Errorf("%w: burst %s spacing of %d bytes cannot hold %d bytes",
			ErrRangeResolution, b.ID, b.AnnotationByteLength, length)
	}

	offset := dataOffset + b.AnnotationByteOffset
	return burst.ByteRange{
		Offset:   offset,
		Length:   length,
		Segments: []burst.Segment{{Offset: offset, Length: length}},
		Format:   b.Format,
		Lines:    b.Shape.Lines,
		Samples:  b.Shape.Samples,
	}, nil
}

// check rejects layouts whose bytes cannot be addressed directly.
func (r *Resolver) check(b *burst.Metadata, l *Layout) error {
	t := l.TIFF
	switch {
	case l.Method != zip.Store:
		return fmt.Errorf("%w: %s is compressed in the archive", ErrRangeResolution, l.Entry)
	case t.Compression != 1:
		return fmt.Errorf("%w: %s uses TIFF compression %d", ErrRangeResolution, l.Entry, t.Compression)
	case t.Tiled:
		return fmt.Errorf("%w: %s is tiled", ErrRangeResolution, l.Entry)
	case t.PlanarConfig != 1:
		return fmt.Errorf("%w: %s is not pixel interleaved", ErrRangeResolution, l.Entry)
	case t.Width != b.Shape.Samples:
		return fmt.Errorf("%w: %s is %d samples wide, burst has %d", ErrRangeResolution, l.Entry, t.Width, b.Shape.Samples)
	case t.Height < (b.Index+1)*b.Shape.Lines:
		return fmt.Errorf("%w: %s has %d rows, burst %d needs %d", ErrRangeResolution, l.Entry, t.Height, b.Index, (b.Index+1)*b.Shape.Lines)
	}

	format, err := t.Format()
	if err != nil {
		return fmt.Errorf("%s: %w", l.Entry, err)
	}
	if format != b.Format {
		return fmt.Errorf("%w: %s holds %s pixels, annotation declares %s", ErrRangeResolution, l.Entry, format, b.Format)
	}
	return nil
}

// rows returns the segments of cols samples starting at col0 in rows
// [first, first+n) of the raster.
func (r *Resolver) rows(b *burst.Metadata, l *Layout, first, n, col0, cols int) (burst.ByteRange, error) {
	t := l.TIFF
	bpp := int64(b.Format.BytesPerPixel())
	rowBytes := int64(t.Width) * bpp

	var segs []burst.Segment
	var total int64
	for row := first; row < first+n; row++ {
		strip := row / t.RowsPerStrip
		rowsInStrip := min(t.RowsPerStrip, t.Height-strip*t.RowsPerStrip)
		if got, want := t.StripByteCounts[strip], int64(rowsInStrip)*rowBytes; got != want {
			return burst.ByteRange{}, fmt.Errorf("%w: strip %d of %s holds %d bytes, want %d",
				ErrRangeResolution, strip, l.Entry, got, want)
		}

		seg := burst.Segment{
			Offset: l.DataOffset + t.StripOffsets[strip] + int64(row%t.RowsPerStrip)*rowBytes + int64(col0)*bpp,
			Length: int64(cols) * bpp,
		}
		if k := len(segs) - 1; k >= 0 && segs[k].End() == seg.Offset {
			segs[k].Length += seg.Length
		} else {
			segs = append(segs, seg)
		}
		total += seg.Length
	}
	if len(segs) == 0 {
		return burst.ByteRange{}, fmt.Errorf("%w: burst %s has no rows", ErrRangeResolution, b.ID)
	}

	return burst.ByteRange{
		Offset:   segs[0].Offset,
		Length:   total,
		Segments: segs,
		Format:   b.Format,
		Lines:    n,
		Samples:  cols,
	}, nil
}
