package safe

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedMetadata is returned when a required manifest or annotation
	// element is missing or cannot be parsed.
	ErrMalformedMetadata = errors.New("malformed metadata")

	// ErrUnsupportedPolarization is returned when a product has no annotation
	// for the requested polarization.
	ErrUnsupportedPolarization = errors.New("unsupported polarization")

	// ErrSwathNotFound is returned when a product has no annotation for the
	// requested swath.
	ErrSwathNotFound = errors.New("swath not found")
)

// MalformedMetadataError describes the element that failed to parse.
type MalformedMetadataError struct {
	Path    string // document the element was read from
	Element string
	Err     error
}

func (e *MalformedMetadataError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s: element %q missing", ErrMalformedMetadata, e.Path, e.Element)
	}
	return fmt.Sprintf("%s: %s: element %q: %v", ErrMalformedMetadata, e.Path, e.Element, e.Err)
}

func (e *MalformedMetadataError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrMalformedMetadata}
	}
	return []error{ErrMalformedMetadata, e.Err}
}

func malformed(path, element string, err error) error {
	return &MalformedMetadataError{Path: path, Element: element, Err: err}
}
