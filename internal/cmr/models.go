package cmr

import (
	"fmt"
	"time"
)

// Results is the body of a granules.umm_json search.
type Results struct {
	Hits  int      `json:"hits"`
	Took  int      `json:"took"`
	Items []Result `json:"items"`
}

// Result pairs a granule record with its catalog metadata.
type Result struct {
	Meta Meta    `json:"meta"`
	UMM  Granule `json:"umm"`
}

// Meta is the catalog bookkeeping CMR attaches to every record.
type Meta struct {
	ConceptID  string `json:"concept-id"`
	RevisionID int    `json:"revision-id"`
	NativeID   string `json:"native-id"`
	ProviderID string `json:"provider-id"`
}

// Granule is a UMM-G record, restricted to the fields used for SLC scenes
// and burst granules.
type Granule struct {
	GranuleUR                     string                         `json:"GranuleUR"`
	ProviderDates                 []ProviderDate                 `json:"ProviderDates,omitempty"`
	CollectionReference           CollectionReference            `json:"CollectionReference"`
	RelatedUrls                   []RelatedURL                   `json:"RelatedUrls,omitempty"`
	DataGranule                   *DataGranule                   `json:"DataGranule,omitempty"`
	TemporalExtent                *TemporalExtent                `json:"TemporalExtent,omitempty"`
	SpatialExtent                 *SpatialExtent                 `json:"SpatialExtent,omitempty"`
	OrbitCalculatedSpatialDomains []OrbitCalculatedSpatialDomain `json:"OrbitCalculatedSpatialDomains,omitempty"`
	Platforms                     []Platform                     `json:"Platforms,omitempty"`
	AdditionalAttributes          []AdditionalAttribute          `json:"AdditionalAttributes,omitempty"`
	MetadataSpecification         *MetadataSpecification         `json:"MetadataSpecification,omitempty"`
}

type ProviderDate struct {
	Date string `json:"Date"`
	Type string `json:"Type"` // Insert, Update, ...
}

type CollectionReference struct {
	ShortName string `json:"ShortName"`
	Version   string `json:"Version"`
}

type RelatedURL struct {
	URL         string `json:"URL"`
	Type        string `json:"Type"` // GET DATA, VIEW RELATED INFORMATION, ...
	Subtype     string `json:"Subtype,omitempty"`
	Description string `json:"Description,omitempty"`
	MimeType    string `json:"MimeType,omitempty"`
}

type DataGranule struct {
	DayNightFlag                      string            `json:"DayNightFlag,omitempty"`
	ProductionDateTime                string            `json:"ProductionDateTime,omitempty"`
	Identifiers                       []Identifier      `json:"Identifiers,omitempty"`
	ArchiveAndDistributionInformation []ArchiveDistInfo `json:"ArchiveAndDistributionInformation,omitempty"`
}

type Identifier struct {
	Identifier     string `json:"Identifier"`
	IdentifierType string `json:"IdentifierType"`
}

// ArchiveDistInfo describes one distributed file. Burst granules report
// their size in SizeInBytes; older SLC records only carry Size and SizeUnit.
type ArchiveDistInfo struct {
	Name        string   `json:"Name"`
	SizeInBytes int64    `json:"SizeInBytes,omitempty"`
	Size        *float64 `json:"Size,omitempty"`
	SizeUnit    string   `json:"SizeUnit,omitempty"`
	Format      string   `json:"Format,omitempty"`
}

type TemporalExtent struct {
	RangeDateTime  *RangeDateTime `json:"RangeDateTime,omitempty"`
	SingleDateTime string         `json:"SingleDateTime,omitempty"`
}

type RangeDateTime struct {
	BeginningDateTime string `json:"BeginningDateTime"`
	EndingDateTime    string `json:"EndingDateTime"`
}

type SpatialExtent struct {
	HorizontalSpatialDomain *HorizontalSpatialDomain `json:"HorizontalSpatialDomain,omitempty"`
}

type HorizontalSpatialDomain struct {
	Geometry *Geometry `json:"Geometry,omitempty"`
}

type Geometry struct {
	GPolygons          []GPolygon          `json:"GPolygons,omitempty"`
	BoundingRectangles []BoundingRectangle `json:"BoundingRectangles,omitempty"`
}

type GPolygon struct {
	Boundary Boundary `json:"Boundary"`
}

type Boundary struct {
	Points []Point `json:"Points"`
}

type Point struct {
	Longitude float64 `json:"Longitude"`
	Latitude  float64 `json:"Latitude"`
}

type BoundingRectangle struct {
	WestBoundingCoordinate  float64 `json:"WestBoundingCoordinate"`
	NorthBoundingCoordinate float64 `json:"NorthBoundingCoordinate"`
	EastBoundingCoordinate  float64 `json:"EastBoundingCoordinate"`
	SouthBoundingCoordinate float64 `json:"SouthBoundingCoordinate"`
}

type OrbitCalculatedSpatialDomain struct {
	OrbitNumber *int `json:"OrbitNumber,omitempty"`
}

type Platform struct {
	ShortName   string       `json:"ShortName"`
	Instruments []Instrument `json:"Instruments,omitempty"`
}

type Instrument struct {
	ShortName string `json:"ShortName"`
}

// AdditionalAttribute carries the SAR and burst fields UMM-G has no slot
// for. Values are always strings.
type AdditionalAttribute struct {
	Name   string   `json:"Name"`
	Values []string `json:"Values"`
}

type MetadataSpecification struct {
	URL     string `json:"URL"`
	Name    string `json:"Name"`
	Version string `json:"Version"`
}

// Attribute returns the values of the named additional attribute, or nil.
func (g *Granule) Attribute(name string) []string {
	for _, attr := range g.AdditionalAttributes {
		if attr.Name == name {
			return attr.Values
		}
	}
	return nil
}

// Start returns the beginning of the temporal extent. A granule without one
// yields the zero time.
func (g *Granule) Start() (time.Time, error) {
	return g.extent(func(r *RangeDateTime) string { return r.BeginningDateTime })
}

// End returns the end of the temporal extent.
func (g *Granule) End() (time.Time, error) {
	return g.extent(func(r *RangeDateTime) string { return r.EndingDateTime })
}

func (g *Granule) extent(pick func(*RangeDateTime) string) (time.Time, error) {
	te := g.TemporalExtent
	switch {
	case te == nil:
		return time.Time{}, nil
	case te.RangeDateTime != nil && pick(te.RangeDateTime) != "":
		return parseTime(pick(te.RangeDateTime))
	case te.SingleDateTime != "":
		return parseTime(te.SingleDateTime)
	}
	return time.Time{}, nil
}

// DataURL returns the first GET DATA link.
func (g *Granule) DataURL() string {
	for _, u := range g.RelatedUrls {
		if u.Type == "GET DATA" {
			return u.URL
		}
	}
	return ""
}

// Boundary returns the first polygon ring, or the closed ring of the first
// bounding rectangle.
func (g *Granule) Boundary() []Point {
	if g.SpatialExtent == nil || g.SpatialExtent.HorizontalSpatialDomain == nil {
		return nil
	}
	geom := g.SpatialExtent.HorizontalSpatialDomain.Geometry
	if geom == nil {
		return nil
	}

	if len(geom.GPolygons) > 0 {
		return geom.GPolygons[0].Boundary.Points
	}
	if len(geom.BoundingRectangles) > 0 {
		r := geom.BoundingRectangles[0]
		return []Point{
			{r.WestBoundingCoordinate, r.SouthBoundingCoordinate},
			{r.EastBoundingCoordinate, r.SouthBoundingCoordinate},
			{r.EastBoundingCoordinate, r.NorthBoundingCoordinate},
			{r.WestBoundingCoordinate, r.NorthBoundingCoordinate},
			{r.WestBoundingCoordinate, r.SouthBoundingCoordinate},
		}
	}
	return nil
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid CMR time %q: %w", s, err)
	}
	return t, nil
}
