package layout

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/robert-malhotra/s1bursts/internal/safe"
)

// Archive is a zipped SAFE product read through an io.ReaderAt, so only the
// central directory, the metadata entries and the measurement headers are
// ever read.
type Archive struct {
	r    io.ReaderAt
	size int64
	zr   *zip.Reader
	name string
}

// Layout places a measurement entry inside the container.
type Layout struct {
	Entry      string
	DataOffset int64 // container offset of the first byte of the TIFF
	Size       int64 // stored size of the entry
	Method     uint16
	TIFF       *TIFF
}

// OpenArchive reads the central directory of a zipped SAFE product.
func OpenArchive(r io.ReaderAt, size int64) (*Archive, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("failed to read zip directory: %w", err)
	}

	a := &Archive{r: r, size: size, zr: zr}
	for _, f := range zr.File {
		if dir, _, ok := strings.Cut(f.Name, "/"); ok && strings.HasSuffix(dir, ".SAFE") {
			a.name = strings.TrimSuffix(dir, ".SAFE")
			break
		}
	}
	if a.name == "" {
		return nil, fmt.Errorf("%w: no .SAFE directory in archive", safe.ErrMalformedMetadata)
	}
	return a, nil
}

// SafeName returns the product name of the SAFE directory in the archive.
func (a *Archive) SafeName() string {
	return a.name
}

// Find returns the entry for a SAFE-relative path.
func (a *Archive) Find(rel string) (*zip.File, error) {
	name := a.name + ".SAFE/" + strings.TrimPrefix(rel, "./")
	for _, f := range a.zr.File {
		if f.Name == name {
			return f, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", name, fs.ErrNotExist)
}

// ReadFile returns the contents of a SAFE-relative entry.
func (a *Archive) ReadFile(rel string) ([]byte, error) {
	f, err := a.Find(rel)
	if err != nil {
		return nil, err
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", f.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.Name, err)
	}
	return data, nil
}

// Layout locates a stored measurement entry and parses its TIFF directory.
func (a *Archive) Layout(rel string) (*Layout, error) {
	f, err := a.Find(rel)
	if err != nil {
		return nil, err
	}
	if f.Method != zip.Store {
		return nil, fmt.Errorf("%w: %s is compressed with zip method %d", ErrRangeResolution, f.Name, f.Method)
	}

	off, err := f.DataOffset()
	if err != nil {
		return nil, fmt.Errorf("failed to read local header of %s: %w", f.Name, err)
	}
	size := int64(f.CompressedSize64)
	if off+size > a.size {
		return nil, fmt.Errorf("%w: %s ends past the archive", ErrRangeResolution, f.Name)
	}

	t, err := ParseTIFF(io.NewSectionReader(a.r, off, size), size)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Name, err)
	}
	return &Layout{Entry: f.Name, DataOffset: off, Size: size, Method: f.Method, TIFF: t}, nil
}
