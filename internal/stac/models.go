// Package stac renders bursts as STAC items grouped into per-stack
// collections, wrapping planetlabs/go-stac for the core types.
package stac

import (
	gostac "github.com/planetlabs/go-stac"
)

type (
	Item           = gostac.Item
	Collection     = gostac.Collection
	Catalog        = gostac.Catalog
	Asset          = gostac.Asset
	Link           = gostac.Link
	Extent         = gostac.Extent
	SpatialExtent  = gostac.SpatialExtent
	TemporalExtent = gostac.TemporalExtent
)

// DefaultVersion is the STAC version written when none is configured.
const DefaultVersion = "1.0.0"

const (
	MediaTypeGeoTIFF = "image/tiff; application=geotiff"
	MediaTypeJSON    = "application/json"
	MediaTypeGeoJSON = "application/geo+json"
)

// ItemCollection is the GeoJSON FeatureCollection returned for a product's
// bursts.
type ItemCollection struct {
	Type           string  `json:"type"`
	Features       []*Item `json:"features"`
	Links          []*Link `json:"links"`
	NumberReturned int     `json:"numberReturned"`
}

func NewItemCollection(items []*Item) *ItemCollection {
	if items == nil {
		items = []*Item{}
	}
	return &ItemCollection{
		Type:           "FeatureCollection",
		Features:       items,
		Links:          []*Link{},
		NumberReturned: len(items),
	}
}

func (ic *ItemCollection) AddLink(rel, href, mediaType string) {
	ic.Links = append(ic.Links, &Link{Rel: rel, Href: href, Type: mediaType})
}

// NewItem returns an item with empty, non-nil properties, assets and links so
// that it serializes without nulls.
func NewItem(id, collection, version string) *Item {
	return &Item{
		Version:    version,
		Id:         id,
		Collection: collection,
		Properties: map[string]any{},
		Assets:     map[string]*Asset{},
		Links:      []*Link{},
	}
}

func NewCollection(id, title, description, version string) *Collection {
	return &Collection{
		Version:     version,
		Id:          id,
		Title:       title,
		Description: description,
		Links:       []*Link{},
		Assets:      map[string]*Asset{},
		Summaries:   map[string]any{},
	}
}

func NewCatalog(id, title, description, version string) *Catalog {
	return &Catalog{
		Version:     version,
		Id:          id,
		Title:       title,
		Description: description,
		Links:       []*Link{},
	}
}
