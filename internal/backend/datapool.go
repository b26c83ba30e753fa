package backend

import (
	"context"
	"fmt"
	"strings"
)

// DatapoolLocator builds container URLs from the datapool layout,
// <base>/SLC/S<A|B>/<name>.zip, without a network round trip.
type DatapoolLocator struct {
	baseURL string
}

// NewDatapoolLocator creates a locator rooted at baseURL.
func NewDatapoolLocator(baseURL string) *DatapoolLocator {
	return &DatapoolLocator{baseURL: strings.TrimSuffix(baseURL, "/")}
}

// Name returns the locator name.
func (l *DatapoolLocator) Name() string {
	return "datapool"
}

// Locate implements Locator.
func (l *DatapoolLocator) Locate(ctx context.Context, name string) (*Granule, error) {
	name = strings.TrimSuffix(strings.TrimSuffix(name, ".zip"), ".SAFE")
	platform, err := PlatformOf(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", err, name)
	}
	if !strings.Contains(name, "_SLC_") {
		return nil, fmt.Errorf("%w: %q is not an SLC product", ErrInvalidGranuleName, name)
	}
	return &Granule{
		Name:     name,
		URL:      fmt.Sprintf("%s/SLC/S%s/%s.zip", l.baseURL, platform[2:], name),
		Platform: platform,
	}, nil
}

// Search implements Locator. The datapool has no search interface.
func (l *DatapoolLocator) Search(ctx context.Context, params *SearchParams) ([]*Granule, error) {
	return nil, ErrSearchUnsupported
}
