package stac

import (
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/robert-malhotra/s1bursts/internal/burst"
	"github.com/robert-malhotra/s1bursts/internal/layout"
	"github.com/robert-malhotra/s1bursts/pkg/geojson"
)

// ErrNotBurstItem is returned when an item lacks burst properties.
var ErrNotBurstItem = errors.New("not a burst item")

// International designators of the Sentinel-1 platforms.
var internationalDesignators = map[string]string{
	"S1A": "2014-016A",
	"S1B": "2016-025A",
	"S1C": "2024-235A",
}

const datetimeLayout = "2006-01-02T15:04:05.000000Z"

// AssetFields locate the raster of one polarization inside its product.
// go-stac assets carry no extra fields, so they are kept in the item
// properties under "burst:assets", keyed by asset key.
type AssetFields struct {
	Lines                int    `json:"lines"`
	Samples              int    `json:"samples"`
	PixelFormat          string `json:"pixel_format"`
	ByteOffset           int64  `json:"byte_offset,omitempty"`
	ByteLength           int64  `json:"byte_length,omitempty"`
	InteriorPath         string `json:"interior_path"`
	AnnotationByteOffset int64  `json:"annotation_byte_offset"`
	AnnotationByteLength int64  `json:"annotation_byte_length"`
	MeasurementOffset    int64  `json:"measurement_offset,omitempty"`
}

// ItemID returns the id of the item holding every polarization of an
// acquisition of b.
func ItemID(b *burst.Metadata) string {
	return burst.AbsoluteID(b.SensingStart, "", b.RelativeID, b.Swath)
}

// BurstToItem renders one burst as a STAC item with a single asset keyed by
// its polarization. Byte offsets are included when the burst has a resolved,
// contiguous range.
func BurstToItem(b *burst.Metadata, version string) (*Item, error) {
	if b.StackID == "" {
		return nil, fmt.Errorf("burst %s has no stack id", b.ID)
	}
	if version == "" {
		version = DefaultVersion
	}

	geom, err := b.Footprint.Geometry()
	if err != nil {
		return nil, fmt.Errorf("failed to build footprint of %s: %w", b.ID, err)
	}

	item := NewItem(ItemID(b), b.StackID, version)
	item.Geometry = geom
	bbox := b.Footprint.BBox()
	item.Bbox = bbox[:]

	start := b.SensingStart.UTC().Format(datetimeLayout)
	p := item.Properties
	p["datetime"] = start
	p["start_datetime"] = start
	p["end_datetime"] = b.SensingStop.UTC().Format(datetimeLayout)
	p["platform"] = platformName(b.Platform)
	p["constellation"] = "sentinel-1"
	p["instruments"] = []string{"c-sar"}

	// Burst properties
	p["stack_id"] = b.StackID
	p["opera_id"] = b.ID
	p["relative_burst_id"] = b.RelativeID
	p["swath"] = b.Swath
	p["burst_index"] = b.Index
	p["center"] = []float64{b.Footprint.Center.Lon(), b.Footprint.Center.Lat()}
	p["first_valid_sample"] = b.Valid.FirstSample
	p["last_valid_sample"] = b.Valid.LastSample
	p["first_valid_line"] = b.Valid.FirstLine
	p["last_valid_line"] = b.Valid.LastLine
	p["wavelength"] = b.Wavelength
	p["azimuth_steer_rate"] = b.AzimuthSteerRate
	p["azimuth_time_interval"] = b.AzimuthTimeInterval
	p["slant_range_time"] = b.SlantRangeTime
	p["starting_range"] = b.StartingRange
	p["iw2_mid_range"] = b.IW2MidRange
	p["range_sampling_rate"] = b.RangeSamplingRate
	p["range_pixel_spacing"] = b.RangePixelSpacing
	p["range_bandwidth"] = b.RangeBandwidth
	p["range_window_type"] = b.RangeWindowType
	p["range_window_coefficient"] = b.RangeWindowCoefficient
	p["rank"] = b.Rank
	p["prf_raw_data"] = b.PRF
	p["range_chirp_rate"] = b.RangeChirpRate
	p["radar_center_frequency"] = b.RadarFrequency
	p["azimuth_frame_rate"] = b.AzimuthFMRate
	p["doppler"] = b.Doppler

	// Satellite extension
	p["sat:orbit_state"] = strings.ToLower(b.OrbitDirection)
	p["sat:relative_orbit"] = b.RelativeOrbit
	p["sat:absolute_orbit"] = b.AbsoluteOrbit
	if id, ok := internationalDesignators[strings.ToUpper(b.Platform)]; ok {
		p["sat:platform_international_designator"] = id
	}

	// SAR extension
	p["sar:instrument_mode"] = b.Mode
	p["sar:frequency_band"] = "C"
	p["sar:polarizations"] = []string{strings.ToUpper(b.Polarization)}
	p["sar:product_type"] = "SLC-BURST"
	p["sar:center_frequency"] = b.RadarFrequency / 1e9
	p["sar:looks_range"] = 1
	p["sar:looks_azimuth"] = 1
	p["sar:observation_direction"] = "right"

	fields := AssetFields{
		Lines:                b.Shape.Lines,
		Samples:              b.Shape.Samples,
		PixelFormat:          b.Format.String(),
		InteriorPath:         path.Join(b.SafeName+".SAFE", b.MeasurementPath),
		AnnotationByteOffset: b.AnnotationByteOffset,
		AnnotationByteLength: b.AnnotationByteLength,
		MeasurementOffset:    b.MeasurementOffset,
	}
	if r, ok := b.Range(); ok && r.Contiguous() {
		fields.ByteOffset = r.Offset
		fields.ByteLength = r.Length
	}

	key := strings.ToUpper(b.Polarization)
	href := b.URLPath
	if href == "" {
		href = b.TiffPath
	}
	item.Assets[key] = &Asset{
		Href:  href,
		Title: fmt.Sprintf("%s %s", b.ID, key),
		Type:  MediaTypeGeoTIFF,
		Roles: []string{"data"},
	}
	p["burst:assets"] = map[string]AssetFields{key: fields}

	return item, nil
}

// Items renders bursts as items, merging the polarizations of an
// acquisition into one item. Items keep the order of their first burst.
func Items(bursts []*burst.Metadata, version string) ([]*Item, error) {
	var items []*Item
	byID := make(map[string]*Item)
	for _, b := range bursts {
		item, err := BurstToItem(b, version)
		if err != nil {
			return nil, err
		}
		existing, ok := byID[item.Id]
		if !ok {
			byID[item.Id] = item
			items = append(items, item)
			continue
		}
		if err := mergeItem(existing, item); err != nil {
			return nil, err
		}
	}
	return items, nil
}

func mergeItem(dst, src *Item) error {
	dstAssets, err := assetFields(dst)
	if err != nil {
		return err
	}
	srcAssets, err := assetFields(src)
	if err != nil {
		return err
	}
	for key, asset := range src.Assets {
		if _, dup := dst.Assets[key]; dup {
			return fmt.Errorf("item %s already has a %s asset", dst.Id, key)
		}
		dst.Assets[key] = asset
		dstAssets[key] = srcAssets[key]
	}

	pols := make([]string, 0, len(dst.Assets))
	for key := range dst.Assets {
		pols = append(pols, key)
	}
	sort.Strings(pols)
	dst.Properties["sar:polarizations"] = pols
	dst.Properties["burst:assets"] = dstAssets
	return nil
}

// Stack is a per-stack collection and its items.
type Stack struct {
	Collection *Collection
	Items      []*Item
}

// Stacks groups items by stack id. The spatial extent of a stack is the
// bounding box of its first item and the temporal extent spans its items.
// Stacks are ordered by id.
func Stacks(items []*Item, version string) ([]*Stack, error) {
	if version == "" {
		version = DefaultVersion
	}

	groups := make(map[string][]*Item)
	for _, item := range items {
		id, _ := item.Properties["stack_id"].(string)
		if id == "" {
			return nil, fmt.Errorf("%w: item %s has no stack_id", ErrNotBurstItem, item.Id)
		}
		groups[id] = append(groups[id], item)
	}

	ids := make([]string, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	stacks := make([]*Stack, 0, len(ids))
	for _, id := range ids {
		members := groups[id]
		var first, last time.Time
		for i, item := range members {
			t, err := itemTime(item, "datetime")
			if err != nil {
				return nil, err
			}
			if i == 0 || t.Before(first) {
				first = t
			}
			if i == 0 || t.After(last) {
				last = t
			}
		}

		coll := NewCollection(id, "Burst stack "+id, "Sentinel-1 Burst Stack "+id, version)
		coll.License = "proprietary"
		coll.Extent = &Extent{
			Spatial:  &SpatialExtent{Bbox: [][]float64{members[0].Bbox}},
			Temporal: &TemporalExtent{Interval: [][]any{{first.Format(datetimeLayout), last.Format(datetimeLayout)}}},
		}
		if state, ok := members[0].Properties["sat:orbit_state"].(string); ok {
			coll.Summaries["sat:orbit_state"] = []string{state}
		}
		for _, item := range members {
			item.Collection = id
		}
		stacks = append(stacks, &Stack{Collection: coll, Items: members})
	}
	return stacks, nil
}

// ItemToBurst reads the asset of one polarization back into burst metadata
// for a remote read: URLPath is the asset href, TiffPath is empty and the
// byte range is attached when the item carries one.
func ItemToBurst(item *Item, pol string) (*burst.Metadata, error) {
	key := strings.ToUpper(pol)
	asset, ok := item.Assets[key]
	if !ok {
		return nil, fmt.Errorf("%w: item %s has no %s asset", ErrNotBurstItem, item.Id, key)
	}
	assets, err := assetFields(item)
	if err != nil {
		return nil, err
	}
	fields, ok := assets[key]
	if !ok {
		return nil, fmt.Errorf("%w: item %s has no burst fields for %s", ErrNotBurstItem, item.Id, key)
	}

	r := propertyReader{item: item}
	b := &burst.Metadata{
		Index:      r.integer("burst_index"),
		ID:         r.text("opera_id"),
		RelativeID: r.integer("relative_burst_id"),
		StackID:    r.text("stack_id"),

		Platform:       platformCode(r.text("platform")),
		Mode:           r.text("sar:instrument_mode"),
		AbsoluteOrbit:  r.integer("sat:absolute_orbit"),
		RelativeOrbit:  r.integer("sat:relative_orbit"),
		Swath:          r.text("swath"),
		Polarization:   key,
		OrbitDirection: orbitDirection(r.text("sat:orbit_state")),

		RadarFrequency:         r.number("radar_center_frequency"),
		Wavelength:             r.number("wavelength"),
		AzimuthSteerRate:       r.number("azimuth_steer_rate"),
		AzimuthTimeInterval:    r.number("azimuth_time_interval"),
		SlantRangeTime:         r.number("slant_range_time"),
		StartingRange:          r.number("starting_range"),
		IW2MidRange:            r.number("iw2_mid_range"),
		RangeSamplingRate:      r.number("range_sampling_rate"),
		RangePixelSpacing:      r.number("range_pixel_spacing"),
		RangeBandwidth:         r.number("range_bandwidth"),
		RangeWindowType:        r.text("range_window_type"),
		RangeWindowCoefficient: r.number("range_window_coefficient"),
		Rank:                   r.integer("rank"),
		PRF:                    r.number("prf_raw_data"),
		RangeChirpRate:         r.number("range_chirp_rate"),

		Shape: burst.Shape{Lines: fields.Lines, Samples: fields.Samples},
		Valid: burst.Window{
			FirstLine:   r.integer("first_valid_line"),
			LastLine:    r.integer("last_valid_line"),
			FirstSample: r.integer("first_valid_sample"),
			LastSample:  r.integer("last_valid_sample"),
		},

		AnnotationByteOffset: fields.AnnotationByteOffset,
		AnnotationByteLength: fields.AnnotationByteLength,
		MeasurementOffset:    fields.MeasurementOffset,
		URLPath:              asset.Href,
	}
	r.decode("azimuth_frame_rate", &b.AzimuthFMRate)
	r.decode("doppler", &b.Doppler)

	if b.Format, err = burst.ParsePixelFormat(fields.PixelFormat); err != nil {
		r.fail("pixel_format", err)
	}
	if b.SensingStart, err = itemTime(item, "start_datetime"); err != nil {
		r.fail("start_datetime", err)
	}
	if b.SensingStop, err = itemTime(item, "end_datetime"); err != nil {
		r.fail("end_datetime", err)
	}
	if b.Swath != "" {
		if _, err := fmt.Sscanf(strings.TrimLeft(b.Swath, "ABCDEFGHIJKLMNOPQRSTUVWXYZ"), "%d", &b.SwathIndex); err != nil {
			r.fail("swath", err)
		}
	}
	safeDir, measurement, _ := strings.Cut(fields.InteriorPath, "/")
	b.SafeName = strings.TrimSuffix(safeDir, ".SAFE")
	b.MeasurementPath = measurement
	b.AbsoluteID = burst.AbsoluteID(b.SensingStart, key, b.RelativeID, b.Swath)

	b.Footprint, err = itemFootprint(item)
	if err != nil {
		r.fail("geometry", err)
	}
	var center []float64
	r.decode("center", &center)
	if len(center) == 2 {
		b.Footprint.Center = geojson.Point{center[0], center[1]}
	}

	if r.err != nil {
		return nil, fmt.Errorf("item %s: %w", item.Id, r.err)
	}

	var rng burst.ByteRange
	switch {
	case fields.ByteLength > 0:
		rng = burst.ByteRange{
			Offset:   fields.ByteOffset,
			Length:   fields.ByteLength,
			Segments: []burst.Segment{{Offset: fields.ByteOffset, Length: fields.ByteLength}},
			Format:   b.Format,
			Lines:    b.Shape.Lines,
			Samples:  b.Shape.Samples,
		}
	case fields.MeasurementOffset > 0:
		if rng, err = layout.ResolveFromAnnotation(b, fields.MeasurementOffset); err != nil {
			return nil, fmt.Errorf("item %s: %w", item.Id, err)
		}
	default:
		return b, nil
	}
	if err := b.AttachRange(rng); err != nil {
		return nil, err
	}
	return b, nil
}

func itemFootprint(item *Item) (burst.Footprint, error) {
	raw, err := json.Marshal(item.Geometry)
	if err != nil {
		return burst.Footprint{}, err
	}
	var g geojson.Geometry
	if err := json.Unmarshal(raw, &g); err != nil {
		return burst.Footprint{}, err
	}
	rings, err := g.Polygon()
	if err != nil {
		return burst.Footprint{}, err
	}
	if len(rings) == 0 {
		return burst.Footprint{}, fmt.Errorf("polygon has no rings")
	}
	return burst.NewFootprint(rings[0])
}

func itemTime(item *Item, key string) (time.Time, error) {
	s, _ := item.Properties[key].(string)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: item %s has no %s", ErrNotBurstItem, item.Id, key)
	}
	return time.Parse(time.RFC3339Nano, s)
}

// assetFields returns the burst asset fields of an item, decoding them when
// the item was read from JSON.
func assetFields(item *Item) (map[string]AssetFields, error) {
	switch v := item.Properties["burst:assets"].(type) {
	case map[string]AssetFields:
		return v, nil
	case nil:
		return nil, fmt.Errorf("%w: item %s has no burst:assets", ErrNotBurstItem, item.Id)
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		out := make(map[string]AssetFields)
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("%w: burst:assets of %s: %v", ErrNotBurstItem, item.Id, err)
		}
		return out, nil
	}
}

// propertyReader decodes item properties, keeping the first error. Values
// may be Go values or the result of decoding JSON.
type propertyReader struct {
	item *Item
	err  error
}

func (r *propertyReader) fail(key string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("%w: property %s: %v", ErrNotBurstItem, key, err)
	}
}

func (r *propertyReader) decode(key string, dst any) {
	v, ok := r.item.Properties[key]
	if !ok {
		r.fail(key, errors.New("missing"))
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		r.fail(key, err)
		return
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		r.fail(key, err)
	}
}

func (r *propertyReader) text(key string) string {
	var s string
	r.decode(key, &s)
	return s
}

func (r *propertyReader) integer(key string) int {
	var n int
	r.decode(key, &n)
	return n
}

func (r *propertyReader) number(key string) float64 {
	var f float64
	r.decode(key, &f)
	return f
}

// orbitDirection maps the sat:orbit_state "ascending" to "Ascending".
func orbitDirection(state string) string {
	if state == "" {
		return ""
	}
	return strings.ToUpper(state[:1]) + strings.ToLower(state[1:])
}

// platformName maps "S1A" to the STAC platform "sentinel-1a".
func platformName(code string) string {
	code = strings.ToLower(code)
	if len(code) == 3 && strings.HasPrefix(code, "s1") {
		return "sentinel-1" + code[2:]
	}
	return code
}

// platformCode maps "sentinel-1a" to "S1A".
func platformCode(name string) string {
	if rest, ok := strings.CutPrefix(strings.ToLower(name), "sentinel-1"); ok {
		return "S1" + strings.ToUpper(rest)
	}
	return strings.ToUpper(name)
}
