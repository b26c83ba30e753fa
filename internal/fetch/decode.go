package fetch

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/robert-malhotra/s1bursts/internal/burst"
)

// Decode converts little-endian raster bytes into a complex array.
func Decode(raw []byte, format burst.PixelFormat, lines, samples int) (*burst.Array, error) {
	bpp := format.BytesPerPixel()
	if bpp == 0 {
		return nil, fmt.Errorf("cannot decode %s samples", format)
	}
	if want := lines * samples * bpp; len(raw) != want {
		return nil, fmt.Errorf("raster holds %d bytes, want %d for %dx%d %s", len(raw), want, lines, samples, format)
	}

	a := burst.NewArray(lines, samples)
	for i := range a.Data {
		px := raw[i*bpp : (i+1)*bpp]
		switch format {
		case burst.CInt16:
			re := int16(binary.LittleEndian.Uint16(px[0:]))
			im := int16(binary.LittleEndian.Uint16(px[2:]))
			a.Data[i] = complex(float32(re), float32(im))
		case burst.CFloat32:
			re := math.Float32frombits(binary.LittleEndian.Uint32(px[0:]))
			im := math.Float32frombits(binary.LittleEndian.Uint32(px[4:]))
			a.Data[i] = complex(re, im)
		}
	}
	return a, nil
}

// ReadRange reads the segments of r from a local container.
func ReadRange(f io.ReaderAt, r burst.ByteRange) ([]byte, error) {
	span := make([]byte, r.Span())
	if _, err := f.ReadAt(span, r.Offset); err != nil {
		return nil, fmt.Errorf("failed to read bytes %d-%d: %w", r.Offset, r.End()-1, err)
	}
	return Extract(span, r.Offset, r)
}
