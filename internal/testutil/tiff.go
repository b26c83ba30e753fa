package testutil

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

const tiffHeaderSize = 8

type ifdEntry struct {
	tag, typ uint16
	values   []uint32
}

// Measurement renders a measurement TIFF. Every swath and polarization shares
// the same raster: pixel (row, sample) holds SampleValue(row, sample).
func (s Scene) Measurement() []byte {
	height := s.Height()
	bpp := s.BytesPerPixel()
	rps := s.rowsPerStrip()
	rowBytes := s.Samples * bpp

	var buf bytes.Buffer
	buf.Write([]byte{'I', 'I', 42, 0, 0, 0, 0, 0})

	var offsets, counts []uint32
	for row := 0; row < height; row += rps {
		rows := min(rps, height-row)
		if row > 0 && s.TIFF.StripGap > 0 {
			buf.Write(make([]byte, s.TIFF.StripGap))
		}
		offsets = append(offsets, uint32(buf.Len()))
		counts = append(counts, uint32(rows*rowBytes))
		for r := row; r < row+rows; r++ {
			for c := 0; c < s.Samples; c++ {
				v := SampleValue(r, c)
				if s.TIFF.Float32 {
					binary.Write(&buf, binary.LittleEndian, math.Float32bits(real(v)))
					binary.Write(&buf, binary.LittleEndian, math.Float32bits(imag(v)))
				} else {
					binary.Write(&buf, binary.LittleEndian, int16(real(v)))
					binary.Write(&buf, binary.LittleEndian, int16(imag(v)))
				}
			}
		}
	}

	compression := s.TIFF.Compression
	if compression == 0 {
		compression = 1
	}
	sampleFormat, bits := uint32(5), uint32(32)
	if s.TIFF.Float32 {
		sampleFormat, bits = 6, 64
	}

	entries := []ifdEntry{
		{256, 4, []uint32{uint32(s.Samples)}},
		{257, 4, []uint32{uint32(height)}},
		{258, 3, []uint32{bits}},
		{259, 3, []uint32{uint32(compression)}},
		{262, 3, []uint32{1}},
	}
	if s.TIFF.Tiled {
		entries = append(entries,
			ifdEntry{322, 3, []uint32{16}},
			ifdEntry{323, 3, []uint32{16}},
			ifdEntry{324, 4, offsets},
			ifdEntry{325, 4, counts},
		)
	} else {
		entries = append(entries,
			ifdEntry{273, 4, offsets},
			ifdEntry{277, 3, []uint32{1}},
			ifdEntry{278, 4, []uint32{uint32(rps)}},
			ifdEntry{279, 4, counts},
		)
	}
	entries = append(entries, ifdEntry{284, 3, []uint32{1}}, ifdEntry{339, 3, []uint32{sampleFormat}})
	sortEntries(entries)

	if buf.Len()%2 == 1 {
		buf.WriteByte(0)
	}
	ifdOffset := uint32(buf.Len())
	extra := ifdOffset + 2 + uint32(len(entries))*12 + 4

	var overflow bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint16(len(entries)))
	for _, e := range entries {
		binary.Write(&buf, binary.LittleEndian, e.tag)
		binary.Write(&buf, binary.LittleEndian, e.typ)
		binary.Write(&buf, binary.LittleEndian, uint32(len(e.values)))
		size := 2
		if e.typ == 4 {
			size = 4
		}
		if len(e.values)*size <= 4 {
			var inline [4]byte
			for i, v := range e.values {
				if size == 2 {
					binary.LittleEndian.PutUint16(inline[i*2:], uint16(v))
				} else {
					binary.LittleEndian.PutUint32(inline[:], v)
				}
			}
			buf.Write(inline[:])
			continue
		}
		binary.Write(&buf, binary.LittleEndian, extra+uint32(overflow.Len()))
		for _, v := range e.values {
			if size == 2 {
				binary.Write(&overflow, binary.LittleEndian, uint16(v))
			} else {
				binary.Write(&overflow, binary.LittleEndian, v)
			}
		}
	}
	binary.Write(&buf, binary.LittleEndian, uint32(0))
	buf.Write(overflow.Bytes())

	out := buf.Bytes()
	binary.LittleEndian.PutUint32(out[4:], ifdOffset)
	return out
}

func sortEntries(entries []ifdEntry) {
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j].tag < entries[j-1].tag; j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
}

// Zip renders the zipped SAFE container. XML entries are deflated and
// measurements are stored behind an extra field, so the data offset of a
// measurement must be read from its local header.
func (s Scene) Zip() ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	root := s.Name + ".SAFE/"

	write := func(name string, method uint16, extra []byte, data []byte) error {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: root + name, Method: method, Extra: extra})
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", name, err)
		}
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
		return nil
	}

	if err := write("manifest.safe", zip.Deflate, nil, s.Manifest()); err != nil {
		return nil, err
	}

	measurement := s.Measurement()
	padding := append([]byte{0x66, 0x66, 12, 0}, make([]byte, 12)...)
	method := zip.Store
	if s.TIFF.Deflated {
		method = zip.Deflate
	}
	for _, pol := range s.Polarizations {
		for n := 1; n <= s.Swaths; n++ {
			stem := s.Stem(n, pol)
			if err := write(s.AnnotationPath(n, pol), zip.Deflate, nil, s.Annotation(n, pol)); err != nil {
				return nil, err
			}
			if err := write("annotation/calibration/calibration-"+stem+".xml", zip.Deflate, nil, s.CalibrationDoc("calibration", n, pol)); err != nil {
				return nil, err
			}
			if !s.OmitNoise {
				if err := write("annotation/calibration/noise-"+stem+".xml", zip.Deflate, nil, s.CalibrationDoc("noise", n, pol)); err != nil {
					return nil, err
				}
			}
			if err := write(s.MeasurementPath(n, pol), method, padding, measurement); err != nil {
				return nil, err
			}
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close zip: %w", err)
	}
	return buf.Bytes(), nil
}
