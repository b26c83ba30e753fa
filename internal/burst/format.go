package burst

import (
	"fmt"
	"strings"
)

// PixelFormat is the sample encoding of a measurement raster.
type PixelFormat int

const (
	// CInt16 is a pair of signed 16 bit integers per pixel.
	CInt16 PixelFormat = iota + 1
	// CFloat32 is a pair of 32 bit floats per pixel.
	CFloat32
)

// BytesPerPixel returns the encoded size of one complex pixel.
func (f PixelFormat) BytesPerPixel() int {
	switch f {
	case CInt16:
		return 4
	case CFloat32:
		return 8
	default:
		return 0
	}
}

func (f PixelFormat) String() string {
	switch f {
	case CInt16:
		return "CInt16"
	case CFloat32:
		return "CFloat32"
	default:
		return fmt.Sprintf("PixelFormat(%d)", int(f))
	}
}

// ParsePixelFormat maps an annotation outputPixels value or a format name to
// a PixelFormat.
func ParsePixelFormat(s string) (PixelFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "16 bit signed integer", "cint16":
		return CInt16, nil
	case "32 bit float", "cfloat32":
		return CFloat32, nil
	default:
		return 0, fmt.Errorf("unsupported pixel format %q", s)
	}
}

// Segment is a contiguous run of bytes in the container.
type Segment struct {
	Offset int64 `json:"offset"`
	Length int64 `json:"length"`
}

// End returns the offset one past the last byte of the segment.
func (s Segment) End() int64 {
	return s.Offset + s.Length
}

// ByteRange locates the raster bytes of a burst inside its container.
// Offsets are absolute within the container, so a single ranged request over
// [Offset, End()) covers every segment.
type ByteRange struct {
	Offset   int64       `json:"offset"`
	Length   int64       `json:"length"` // raster bytes, the sum of segment lengths
	Segments []Segment   `json:"segments"`
	Format   PixelFormat `json:"-"`
	Lines    int         `json:"lines"`
	Samples  int         `json:"samples"`
}

// End returns the offset one past the last byte of the last segment.
func (r ByteRange) End() int64 {
	if len(r.Segments) == 0 {
		return r.Offset + r.Length
	}
	return r.Segments[len(r.Segments)-1].End()
}

// Span returns the number of container bytes between Offset and End,
// including any bytes between segments.
func (r ByteRange) Span() int64 {
	return r.End() - r.Offset
}

// Contiguous reports whether the range is a single run of bytes.
func (r ByteRange) Contiguous() bool {
	return len(r.Segments) <= 1
}

// Array is a decoded complex raster in row-major order.
type Array struct {
	Lines   int
	Samples int
	Data    []complex64
}

// NewArray allocates a zeroed lines x samples array.
func NewArray(lines, samples int) *Array {
	return &Array{Lines: lines, Samples: samples, Data: make([]complex64, lines*samples)}
}

// At returns the pixel at a line and sample.
func (a *Array) At(line, sample int) complex64 {
	return a.Data[line*a.Samples+sample]
}
