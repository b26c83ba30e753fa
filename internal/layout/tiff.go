package layout

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/robert-malhotra/s1bursts/internal/burst"
)

// TIFF tags read from the first image file directory.
const (
	tagImageWidth      = 256
	tagImageLength     = 257
	tagBitsPerSample   = 258
	tagCompression     = 259
	tagStripOffsets    = 273
	tagSamplesPerPixel = 277
	tagRowsPerStrip    = 278
	tagStripByteCounts = 279
	tagPlanarConfig    = 284
	tagTileWidth       = 322
	tagTileLength      = 323
	tagTileOffsets     = 324
	tagTileByteCounts  = 325
	tagSampleFormat    = 339
)

// TIFF field types.
const (
	typeByte  = 1
	typeShort = 3
	typeLong  = 4
	typeLong8 = 16
)

// Sample formats.
const (
	sampleFormatComplexInt   = 5
	sampleFormatComplexFloat = 6
)

// TIFF is the layout of the first image of a TIFF file.
type TIFF struct {
	ByteOrder       binary.ByteOrder
	Width           int
	Height          int
	BitsPerSample   int
	SamplesPerPixel int
	SampleFormat    int
	Compression     int
	PlanarConfig    int
	RowsPerStrip    int
	Tiled           bool
	StripOffsets    []int64 // relative to the start of the file
	StripByteCounts []int64
}

// ParseTIFF reads the first image file directory of a TIFF. size bounds every
// offset the directory refers to.
func ParseTIFF(r io.ReaderAt, size int64) (*TIFF, error) {
	var header [8]byte
	if _, err := r.ReadAt(header[:], 0); err != nil {
		return nil, fmt.Errorf("failed to read TIFF header: %w", err)
	}

	t := &TIFF{SamplesPerPixel: 1, Compression: 1, PlanarConfig: 1, SampleFormat: 1}
	switch string(header[:2]) {
	case "II":
		t.ByteOrder = binary.LittleEndian
	case "MM":
		t.ByteOrder = binary.BigEndian
	default:
		return nil, fmt.Errorf("%w: not a TIFF file", ErrRangeResolution)
	}
	switch magic := t.ByteOrder.Uint16(header[2:]); magic {
	case 42:
	case 43:
		return nil, fmt.Errorf("%w: BigTIFF is not supported", ErrRangeResolution)
	default:
		return nil, fmt.Errorf("%w: bad TIFF magic %d", ErrRangeResolution, magic)
	}

	ifd := int64(t.ByteOrder.Uint32(header[4:]))
	if ifd < 8 || ifd+2 > size {
		return nil, fmt.Errorf("%w: IFD offset %d outside file of %d bytes", ErrRangeResolution, ifd, size)
	}

	var countBuf [2]byte
	if _, err := r.ReadAt(countBuf[:], ifd); err != nil {
		return nil, fmt.Errorf("failed to read IFD: %w", err)
	}
	n := int64(t.ByteOrder.Uint16(countBuf[:]))
	if ifd+2+n*12 > size {
		return nil, fmt.Errorf("%w: IFD of %d entries overruns file", ErrRangeResolution, n)
	}
	entries := make([]byte, n*12)
	if _, err := r.ReadAt(entries, ifd+2); err != nil {
		return nil, fmt.Errorf("failed to read IFD entries: %w", err)
	}

	var tileOffsets []int64
	for i := int64(0); i < n; i++ {
		e := entries[i*12 : i*12+12]
		tag := t.ByteOrder.Uint16(e[0:])
		values, err := t.values(r, size, e)
		if err != nil {
			return nil, fmt.Errorf("tag %d: %w", tag, err)
		}
		if len(values) == 0 {
			continue
		}
		switch tag {
		case tagImageWidth:
			t.Width = int(values[0])
		case tagImageLength:
			t.Height = int(values[0])
		case tagBitsPerSample:
			t.BitsPerSample = int(values[0])
		case tagCompression:
			t.Compression = int(values[0])
		case tagStripOffsets:
			t.StripOffsets = values
		case tagSamplesPerPixel:
			t.SamplesPerPixel = int(values[0])
		case tagRowsPerStrip:
			t.RowsPerStrip = int(values[0])
		case tagStripByteCounts:
			t.StripByteCounts = values
		case tagPlanarConfig:
			t.PlanarConfig = int(values[0])
		case tagTileWidth, tagTileLength, tagTileByteCounts:
			t.Tiled = true
		case tagTileOffsets:
			t.Tiled = true
			tileOffsets = values
		case tagSampleFormat:
			t.SampleFormat = int(values[0])
		}
	}

	if t.Width <= 0 || t.Height <= 0 {
		return nil, fmt.Errorf("%w: TIFF has no image dimensions", ErrRangeResolution)
	}
	if t.Tiled {
		t.StripOffsets = tileOffsets
		return t, nil
	}
	if t.RowsPerStrip <= 0 || t.RowsPerStrip > t.Height {
		t.RowsPerStrip = t.Height
	}
	strips := (t.Height + t.RowsPerStrip - 1) / t.RowsPerStrip
	if len(t.StripOffsets) != strips || len(t.StripByteCounts) != strips {
		return nil, fmt.Errorf("%w: expected %d strips, found %d offsets and %d byte counts",
			ErrRangeResolution, strips, len(t.StripOffsets), len(t.StripByteCounts))
	}
	for i, off := range t.StripOffsets {
		if off+t.StripByteCounts[i] > size {
			return nil, fmt.Errorf("%w: strip %d ends past the file", ErrRangeResolution, i)
		}
	}
	return t, nil
}

// values decodes the integer values of one 12 byte directory entry.
func (t *TIFF) values(r io.ReaderAt, size int64, e []byte) ([]int64, error) {
	typ := t.ByteOrder.Uint16(e[2:])
	count := int64(t.ByteOrder.Uint32(e[4:]))

	var width int64
	switch typ {
	case typeByte:
		width = 1
	case typeShort:
		width = 2
	case typeLong:
		width = 4
	case typeLong8:
		width = 8
	default:
		return nil, nil
	}

	raw := e[8:12]
	if count*width > 4 {
		off := int64(t.ByteOrder.Uint32(e[8:]))
		if off+count*width > size {
			return nil, fmt.Errorf("%w: value array outside file", ErrRangeResolution)
		}
		raw = make([]byte, count*width)
		if _, err := r.ReadAt(raw, off); err != nil {
			return nil, fmt.Errorf("failed to read value array: %w", err)
		}
	}

	out := make([]int64, count)
	for i := range out {
		b := raw[int64(i)*width:]
		switch width {
		case 1:
			out[i] = int64(b[0])
		case 2:
			out[i] = int64(t.ByteOrder.Uint16(b))
		case 4:
			out[i] = int64(t.ByteOrder.Uint32(b))
		case 8:
			out[i] = int64(t.ByteOrder.Uint64(b))
		}
	}
	return out, nil
}

// Format returns the complex pixel format of the image.
func (t *TIFF) Format() (burst.PixelFormat, error) {
	if t.SamplesPerPixel != 1 {
		return 0, fmt.Errorf("%w: %d samples per pixel", ErrRangeResolution, t.SamplesPerPixel)
	}
	switch {
	case t.SampleFormat == sampleFormatComplexInt && t.BitsPerSample == 32:
		return burst.CInt16, nil
	case t.SampleFormat == sampleFormatComplexFloat && t.BitsPerSample == 64:
		return burst.CFloat32, nil
	default:
		return 0, fmt.Errorf("%w: sample format %d with %d bits is not a complex raster",
			ErrRangeResolution, t.SampleFormat, t.BitsPerSample)
	}
}
