// Package envi writes complex rasters as ENVI binary/header pairs.
package envi

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/robert-malhotra/s1bursts/internal/burst"
)

// DataTypeComplex64 is the ENVI data type code of single precision complex
// samples.
const DataTypeComplex64 = 6

// Header carries the free text fields of an ENVI header.
type Header struct {
	Description string
	// Extra holds further "key = value" lines, written in order.
	Extra [][2]string
}

// Paths returns the binary and header paths of a base path.
func Paths(base string) (data, header string) {
	return base + ".slc", base + ".hdr"
}

// Write stores a as little-endian complex64 samples in base+".slc" and its
// description in base+".hdr".
func Write(base string, a *burst.Array, h Header) error {
	if a == nil || len(a.Data) != a.Lines*a.Samples {
		return fmt.Errorf("write %s: array is empty or inconsistent", base)
	}
	dataPath, headerPath := Paths(base)

	if err := writeData(dataPath, a); err != nil {
		return err
	}
	if err := os.WriteFile(headerPath, []byte(FormatHeader(a, h)), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", headerPath, err)
	}
	return nil
}

func writeData(name string, a *burst.Array) error {
	f, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	if err := Encode(f, a); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", name, err)
	}
	return nil
}

// Encode writes the samples of a to w as little-endian complex64, the layout
// of an ENVI data type 6 binary.
func Encode(w io.Writer, a *burst.Array) error {
	bw := bufio.NewWriterSize(w, 1<<20)
	var px [8]byte
	for _, v := range a.Data {
		binary.LittleEndian.PutUint32(px[0:], math.Float32bits(real(v)))
		binary.LittleEndian.PutUint32(px[4:], math.Float32bits(imag(v)))
		if _, err := bw.Write(px[:]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// FormatHeader renders the ENVI header for a.
func FormatHeader(a *burst.Array, h Header) string {
	var b strings.Builder
	b.WriteString("ENVI\n")
	if h.Description != "" {
		fmt.Fprintf(&b, "description = {%s}\n", h.Description)
	}
	fmt.Fprintf(&b, "samples = %d\n", a.Samples)
	fmt.Fprintf(&b, "lines = %d\n", a.Lines)
	b.WriteString("bands = 1\n")
	b.WriteString("header offset = 0\n")
	b.WriteString("file type = ENVI Standard\n")
	fmt.Fprintf(&b, "data type = %d\n", DataTypeComplex64)
	b.WriteString("interleave = bsq\n")
	b.WriteString("byte order = 0\n")
	for _, kv := range h.Extra {
		fmt.Fprintf(&b, "%s = %s\n", kv[0], kv[1])
	}
	return b.String()
}
