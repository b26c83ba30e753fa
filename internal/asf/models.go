package asf

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// FeatureCollection is ASF's GeoJSON search response.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Feature is one product file of a scene. ASF lists every file of a scene
// (SLC, GRD, RAW, metadata) as its own feature.
type Feature struct {
	Type       string          `json:"type"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties Properties      `json:"properties"`
}

// Properties holds the fields needed to locate a product container.
type Properties struct {
	SceneName       string `json:"sceneName"`
	FileID          string `json:"fileID"`
	Platform        string `json:"platform"`
	BeamModeType    string `json:"beamModeType"`
	Polarization    string `json:"polarization"`
	ProcessingLevel string `json:"processingLevel"`

	FlightDirection string `json:"flightDirection"`
	AbsoluteOrbit   *int   `json:"absoluteOrbit"`
	PathNumber      *int   `json:"pathNumber"`

	StartTime string `json:"startTime"`
	StopTime  string `json:"stopTime"`

	URL      string          `json:"url"`
	FileName string          `json:"fileName"`
	Bytes    json.RawMessage `json:"bytes"` // number or string
}

// IsSLC reports whether the feature is an SLC product file.
func (f *Feature) IsSLC() bool {
	return strings.EqualFold(f.Properties.ProcessingLevel, "SLC") ||
		strings.HasSuffix(f.Properties.FileID, "-SLC")
}

// Times returns the acquisition start and stop. Missing values are zero.
func (f *Feature) Times() (start, stop time.Time, err error) {
	if start, err = parseTime(f.Properties.StartTime); err != nil {
		return start, stop, err
	}
	stop, err = parseTime(f.Properties.StopTime)
	return start, stop, err
}

// Size returns the container size in bytes, or zero when unknown.
func (f *Feature) Size() int64 {
	raw := f.Properties.Bytes
	if len(raw) == 0 {
		return 0
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		n, _ = strconv.ParseInt(s, 10, 64)
	}
	return n
}

// parseTime accepts ASF times with or without a zone suffix.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if !strings.HasSuffix(s, "Z") && !strings.Contains(s, "+") {
		s += "Z"
	}
	return time.Parse(time.RFC3339Nano, s)
}
