package asf

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Query selects Sentinel-1 products. Every query is pinned to the SENTINEL-1
// dataset, IW beam mode and the SLC processing level.
type Query struct {
	// Scenes lists scene names. ASF rejects maxResults next to a scene list,
	// so MaxResults is ignored when Scenes is set.
	Scenes []string

	IntersectsWith string // WKT geometry
	Start          *time.Time
	End            *time.Time

	Platforms       []string // S1A, S1B, ... or ASF names such as Sentinel-1A
	Polarizations   []string // VV, VV+VH, HH, ...
	FlightDirection string   // ASCENDING or DESCENDING
	RelativeOrbits  []int

	MaxResults int
}

// Values encodes the query as ASF search parameters.
func (q Query) Values() url.Values {
	v := url.Values{}
	v.Set("dataset", "SENTINEL-1")
	v.Set("beamMode", "IW")
	v.Set("processingLevel", "SLC")
	v.Set("output", "geojson")

	if len(q.Scenes) > 0 {
		v.Set("granule_list", strings.Join(q.Scenes, ","))
	} else if q.MaxResults > 0 {
		v.Set("maxResults", strconv.Itoa(q.MaxResults))
	}

	if q.IntersectsWith != "" {
		v.Set("intersectsWith", q.IntersectsWith)
	}
	if q.Start != nil {
		v.Set("start", formatTime(*q.Start))
	}
	if q.End != nil {
		v.Set("end", formatTime(*q.End))
	}

	for _, p := range q.Platforms {
		v.Add("platform", PlatformName(p))
	}
	for _, pol := range q.Polarizations {
		v.Add("polarization", pol)
	}
	if q.FlightDirection != "" {
		v.Set("flightDirection", strings.ToUpper(q.FlightDirection))
	}
	for _, orbit := range q.RelativeOrbits {
		v.Add("relativeOrbit", strconv.Itoa(orbit))
	}
	return v
}

// PlatformName maps a scene prefix such as "S1A" to ASF's "Sentinel-1A".
// Other values pass through.
func PlatformName(p string) string {
	if up := strings.ToUpper(p); len(up) == 3 && strings.HasPrefix(up, "S1") {
		return "Sentinel-1" + up[2:]
	}
	return p
}

// formatTime renders t the way ASF expects: YYYY-MM-DDTHH:MM:SSZ.
func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}
