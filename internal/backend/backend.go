// Package backend provides an abstraction layer for locating SLC products:
// turning a granule name into the URL of its zipped SAFE container, and
// finding products by area, time and orbit.
package backend

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Locator defines the interface for product locators.
// The datapool, ASF and CMR locators implement this interface.
type Locator interface {
	// Locate returns the product with the given granule (scene) name.
	Locate(ctx context.Context, name string) (*Granule, error)

	// Search returns the SLC products matching params.
	Search(ctx context.Context, params *SearchParams) ([]*Granule, error)

	// Name returns the locator name (e.g., "datapool", "asf", "cmr").
	Name() string
}

var (
	// ErrGranuleNotFound is returned when no SLC product has the name.
	ErrGranuleNotFound = errors.New("granule not found")

	// ErrSearchUnsupported is returned by locators that cannot search.
	ErrSearchUnsupported = errors.New("locator does not support search")

	// ErrInvalidGranuleName is returned for names that are not Sentinel-1
	// SLC scene names.
	ErrInvalidGranuleName = errors.New("invalid granule name")
)

// Granule is a located SLC product.
type Granule struct {
	Name            string    `json:"name"`
	URL             string    `json:"url"`
	Platform        string    `json:"platform"` // S1A, S1B, ...
	Start           time.Time `json:"start,omitzero"`
	Stop            time.Time `json:"stop,omitzero"`
	FlightDirection string    `json:"flight_direction,omitempty"`
	RelativeOrbit   int       `json:"relative_orbit,omitempty"`
	AbsoluteOrbit   int       `json:"absolute_orbit,omitempty"`
	Size            int64     `json:"size,omitempty"`
}

// SearchParams contains parameters for product searches.
type SearchParams struct {
	// Spatial filter
	BBox []float64 // [west, south, east, north]

	// Temporal filters
	Start *time.Time
	End   *time.Time

	// SAR-specific filters
	Polarization    []string
	FlightDirection string
	RelativeOrbit   []int
	Platform        []string // S1A, S1B, ...

	Limit int
}

// PlatformOf returns the platform prefix of a scene name, e.g. "S1B".
func PlatformOf(name string) (string, error) {
	if len(name) < 3 || !strings.HasPrefix(name, "S1") {
		return "", ErrInvalidGranuleName
	}
	return strings.ToUpper(name[:3]), nil
}
