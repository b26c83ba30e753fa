package cmr

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robert-malhotra/s1bursts/internal/burst"
	"github.com/robert-malhotra/s1bursts/internal/layout"
	"github.com/robert-malhotra/s1bursts/pkg/geojson"
)

const (
	// BurstShortName is the collection short name of burst granules.
	BurstShortName = "S1_SLC_BURSTS"

	// BurstCollectionVersion is the collection version of burst granules.
	BurstCollectionVersion = "1"

	ummgVersion = "1.6.4"
)

// Additional attribute names of burst granules.
const (
	AttrFlightDirection        = "ASCENDING_DESCENDING"
	AttrPathNumber             = "PATH_NUMBER"
	AttrProcessingType         = "PROCESSING_TYPE"
	AttrGroupID                = "GROUP_ID"
	AttrPolarization           = "POLARIZATION"
	AttrRelativeBurstID        = "RELATIVE_BURST_ID"
	AttrSwath                  = "SWATH"
	AttrOperaID                = "OPERA_ID"
	AttrStackID                = "STACK_ID"
	AttrBurstIndex             = "BURST_INDEX"
	AttrBeamMode               = "BEAM_MODE"
	AttrCenterLon              = "CENTER_LON"
	AttrCenterLat              = "CENTER_LAT"
	AttrLines                  = "LINES"
	AttrSamples                = "SAMPLES"
	AttrFirstValidLine         = "FIRST_VALID_LINE"
	AttrLastValidLine          = "LAST_VALID_LINE"
	AttrFirstValidSample       = "FIRST_VALID_SAMPLE"
	AttrLastValidSample        = "LAST_VALID_SAMPLE"
	AttrPixelFormat            = "PIXEL_FORMAT"
	AttrSafeName               = "SAFE_NAME"
	AttrSafeURL                = "SAFE_URL"
	AttrMeasurementPath        = "MEASUREMENT_PATH"
	AttrAnnotationByteOffset   = "ANNOTATION_BYTE_OFFSET"
	AttrAnnotationByteLength   = "ANNOTATION_BYTE_LENGTH"
	AttrByteOffset             = "BYTE_OFFSET"
	AttrByteLength             = "BYTE_LENGTH"
	AttrByteSegments           = "BYTE_SEGMENTS"
	AttrMeasurementOffset      = "MEASUREMENT_OFFSET"
	AttrRadarFrequency         = "RADAR_CENTER_FREQUENCY"
	AttrWavelength             = "WAVELENGTH"
	AttrAzimuthSteerRate       = "AZIMUTH_STEER_RATE"
	AttrAzimuthTimeInterval    = "AZIMUTH_TIME_INTERVAL"
	AttrSlantRangeTime         = "SLANT_RANGE_TIME"
	AttrStartingRange          = "STARTING_RANGE"
	AttrIW2MidRange            = "IW2_MID_RANGE"
	AttrRangeSamplingRate      = "RANGE_SAMPLING_RATE"
	AttrRangePixelSpacing      = "RANGE_PIXEL_SPACING"
	AttrRangeBandwidth         = "RANGE_BANDWIDTH"
	AttrRangeWindowType        = "RANGE_WINDOW_TYPE"
	AttrRangeWindowCoefficient = "RANGE_WINDOW_COEFFICIENT"
	AttrRank                   = "RANK"
	AttrPRF                    = "PRF_RAW_DATA"
	AttrRangeChirpRate         = "RANGE_CHIRP_RATE"
	AttrDoppler                = "DOPPLER"
	AttrAzimuthFMRate          = "AZIMUTH_FRAME_RATE"
)

// ErrNotBurstGranule is returned when a granule lacks burst attributes.
var ErrNotBurstGranule = errors.New("not a burst granule")

const ummTimeLayout = "2006-01-02T15:04:05.000000Z"

// BurstToGranule renders burst metadata as a UMM-G burst granule. safeURL is
// the download URL of the zipped product; it defaults to the burst's URLPath.
// Byte offsets are included when the burst has a resolved range.
func BurstToGranule(b *burst.Metadata, safeURL string, produced time.Time) (*Granule, error) {
	if b.AbsoluteID == "" {
		return nil, fmt.Errorf("burst %s has no absolute id", b.ID)
	}
	if safeURL == "" {
		safeURL = b.URLPath
	}

	polynomials := make(map[string]string, 2)
	for name, p := range map[string]burst.Polynomial{AttrDoppler: b.Doppler, AttrAzimuthFMRate: b.AzimuthFMRate} {
		raw, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", name, err)
		}
		polynomials[name] = string(raw)
	}

	attrs := attributeList{}
	attrs.add(AttrFlightDirection, b.OrbitDirection)
	attrs.add(AttrPathNumber, strconv.Itoa(b.RelativeOrbit))
	attrs.add(AttrProcessingType, BurstShortName)
	attrs.add(AttrGroupID, b.AbsoluteID)
	attrs.add(AttrPolarization, strings.ToUpper(b.Polarization))
	attrs.add(AttrRelativeBurstID, strconv.Itoa(b.RelativeID))
	attrs.add(AttrSwath, b.Swath)
	attrs.add(AttrOperaID, b.ID)
	attrs.add(AttrStackID, b.StackID)
	attrs.add(AttrBurstIndex, strconv.Itoa(b.Index))
	attrs.add(AttrBeamMode, b.Mode)
	attrs.float(AttrCenterLon, b.Footprint.Center.Lon())
	attrs.float(AttrCenterLat, b.Footprint.Center.Lat())

	attrs.add(AttrLines, strconv.Itoa(b.Shape.Lines))
	attrs.add(AttrSamples, strconv.Itoa(b.Shape.Samples))
	attrs.add(AttrFirstValidLine, strconv.Itoa(b.Valid.FirstLine))
	attrs.add(AttrLastValidLine, strconv.Itoa(b.Valid.LastLine))
	attrs.add(AttrFirstValidSample, strconv.Itoa(b.Valid.FirstSample))
	attrs.add(AttrLastValidSample, strconv.Itoa(b.Valid.LastSample))
	attrs.add(AttrPixelFormat, b.Format.String())

	attrs.add(AttrSafeName, b.SafeName)
	attrs.add(AttrSafeURL, safeURL)
	attrs.add(AttrMeasurementPath, b.MeasurementPath)
	attrs.add(AttrAnnotationByteOffset, strconv.FormatInt(b.AnnotationByteOffset, 10))
	attrs.add(AttrAnnotationByteLength, strconv.FormatInt(b.AnnotationByteLength, 10))
	if b.MeasurementOffset > 0 {
		attrs.add(AttrMeasurementOffset, strconv.FormatInt(b.MeasurementOffset, 10))
	}
	if r, ok := b.Range(); ok {
		attrs.add(AttrByteOffset, strconv.FormatInt(r.Offset, 10))
		attrs.add(AttrByteLength, strconv.FormatInt(r.Length, 10))
		if !r.Contiguous() {
			raw, err := json.Marshal(r.Segments)
			if err != nil {
				return nil, fmt.Errorf("failed to encode byte segments: %w", err)
			}
			attrs.add(AttrByteSegments, string(raw))
		}
	}

	attrs.float(AttrRadarFrequency, b.RadarFrequency)
	attrs.float(AttrWavelength, b.Wavelength)
	attrs.float(AttrAzimuthSteerRate, b.AzimuthSteerRate)
	attrs.float(AttrAzimuthTimeInterval, b.AzimuthTimeInterval)
	attrs.float(AttrSlantRangeTime, b.SlantRangeTime)
	attrs.float(AttrStartingRange, b.StartingRange)
	attrs.float(AttrIW2MidRange, b.IW2MidRange)
	attrs.float(AttrRangeSamplingRate, b.RangeSamplingRate)
	attrs.float(AttrRangePixelSpacing, b.RangePixelSpacing)
	attrs.float(AttrRangeBandwidth, b.RangeBandwidth)
	attrs.add(AttrRangeWindowType, b.RangeWindowType)
	attrs.float(AttrRangeWindowCoefficient, b.RangeWindowCoefficient)
	attrs.add(AttrRank, strconv.Itoa(b.Rank))
	attrs.float(AttrPRF, b.PRF)
	attrs.float(AttrRangeChirpRate, b.RangeChirpRate)
	attrs.add(AttrDoppler, polynomials[AttrDoppler])
	attrs.add(AttrAzimuthFMRate, polynomials[AttrAzimuthFMRate])

	points := make([]Point, len(b.Footprint.Ring))
	for i, p := range b.Footprint.Ring {
		points[i] = Point{Longitude: p.Lon(), Latitude: p.Lat()}
	}

	orbit := b.AbsoluteOrbit
	now := produced.UTC().Format(time.RFC3339)
	g := &Granule{
		GranuleUR: b.AbsoluteID,
		ProviderDates: []ProviderDate{
			{Date: now, Type: "Insert"},
			{Date: now, Type: "Update"},
		},
		CollectionReference: CollectionReference{
			ShortName: BurstShortName,
			Version:   BurstCollectionVersion,
		},
		TemporalExtent: &TemporalExtent{
			RangeDateTime: &RangeDateTime{
				BeginningDateTime: b.SensingStart.UTC().Format(ummTimeLayout),
				EndingDateTime:    b.SensingStop.UTC().Format(ummTimeLayout),
			},
		},
		SpatialExtent: &SpatialExtent{
			HorizontalSpatialDomain: &HorizontalSpatialDomain{
				Geometry: &Geometry{
					GPolygons: []GPolygon{{Boundary: Boundary{Points: points}}},
				},
			},
		},
		OrbitCalculatedSpatialDomains: []OrbitCalculatedSpatialDomain{{OrbitNumber: &orbit}},
		DataGranule: &DataGranule{
			DayNightFlag:       "Unspecified",
			ProductionDateTime: now,
			Identifiers: []Identifier{
				{Identifier: b.AbsoluteID, IdentifierType: "ProducerGranuleId"},
			},
		},
		Platforms: []Platform{
			{
				ShortName:   platformName(b.Platform),
				Instruments: []Instrument{{ShortName: "C-SAR"}},
			},
		},
		AdditionalAttributes: attrs,
		MetadataSpecification: &MetadataSpecification{
			URL:     "https://cdn.earthdata.nasa.gov/umm/granule/v" + ummgVersion,
			Name:    "UMM-G",
			Version: ummgVersion,
		},
	}
	if safeURL != "" {
		g.RelatedUrls = []RelatedURL{{URL: safeURL, Type: "GET DATA"}}
	}
	return g, nil
}

// GranuleToBurst reads a burst granule back into burst metadata for a remote
// read: URLPath is the product URL, TiffPath is empty and the byte range is
// attached when the granule carries one.
func GranuleToBurst(g *Granule) (*burst.Metadata, error) {
	if g.Attribute(AttrOperaID) == nil {
		return nil, fmt.Errorf("%w: %s has no %s attribute", ErrNotBurstGranule, g.GranuleUR, AttrOperaID)
	}

	r := attributeReader{g: g}
	b := &burst.Metadata{
		Index:      r.integer(AttrBurstIndex),
		ID:         r.text(AttrOperaID),
		AbsoluteID: g.GranuleUR,
		RelativeID: r.integer(AttrRelativeBurstID),
		StackID:    r.text(AttrStackID),

		Mode:           r.text(AttrBeamMode),
		RelativeOrbit:  r.integer(AttrPathNumber),
		Swath:          r.text(AttrSwath),
		Polarization:   r.text(AttrPolarization),
		OrbitDirection: r.text(AttrFlightDirection),

		RadarFrequency:         r.number(AttrRadarFrequency),
		Wavelength:             r.number(AttrWavelength),
		AzimuthSteerRate:       r.number(AttrAzimuthSteerRate),
		AzimuthTimeInterval:    r.number(AttrAzimuthTimeInterval),
		SlantRangeTime:         r.number(AttrSlantRangeTime),
		StartingRange:          r.number(AttrStartingRange),
		IW2MidRange:            r.number(AttrIW2MidRange),
		RangeSamplingRate:      r.number(AttrRangeSamplingRate),
		RangePixelSpacing:      r.number(AttrRangePixelSpacing),
		RangeBandwidth:         r.number(AttrRangeBandwidth),
		RangeWindowType:        r.text(AttrRangeWindowType),
		RangeWindowCoefficient: r.number(AttrRangeWindowCoefficient),
		Rank:                   r.integer(AttrRank),
		PRF:                    r.number(AttrPRF),
		RangeChirpRate:         r.number(AttrRangeChirpRate),

		Shape: burst.Shape{Lines: r.integer(AttrLines), Samples: r.integer(AttrSamples)},
		Valid: burst.Window{
			FirstLine:   r.integer(AttrFirstValidLine),
			LastLine:    r.integer(AttrLastValidLine),
			FirstSample: r.integer(AttrFirstValidSample),
			LastSample:  r.integer(AttrLastValidSample),
		},

		SafeName:             r.text(AttrSafeName),
		MeasurementPath:      r.text(AttrMeasurementPath),
		AnnotationByteOffset: r.integer64(AttrAnnotationByteOffset),
		AnnotationByteLength: r.integer64(AttrAnnotationByteLength),
		URLPath:              r.text(AttrSafeURL),
	}
	b.Doppler = r.polynomial(AttrDoppler)
	b.AzimuthFMRate = r.polynomial(AttrAzimuthFMRate)

	if b.Swath != "" {
		var err error
		if b.SwathIndex, err = strconv.Atoi(strings.TrimLeft(b.Swath, "ABCDEFGHIJKLMNOPQRSTUVWXYZ")); err != nil {
			r.fail(AttrSwath, err)
		}
	}
	if len(g.Platforms) > 0 {
		b.Platform = platformCode(g.Platforms[0].ShortName)
	}
	for _, d := range g.OrbitCalculatedSpatialDomains {
		if d.OrbitNumber != nil {
			b.AbsoluteOrbit = *d.OrbitNumber
			break
		}
	}
	if b.URLPath == "" {
		b.URLPath = g.DataURL()
	}

	var err error
	if b.Format, err = burst.ParsePixelFormat(r.text(AttrPixelFormat)); err != nil {
		r.fail(AttrPixelFormat, err)
	}
	if b.SensingStart, err = g.Start(); err != nil {
		r.fail("BeginningDateTime", err)
	}
	if b.SensingStop, err = g.End(); err != nil {
		r.fail("EndingDateTime", err)
	}

	boundary := g.Boundary()
	ring := make(geojson.Ring, len(boundary))
	for i, p := range boundary {
		ring[i] = geojson.Point{p.Longitude, p.Latitude}
	}
	if b.Footprint, err = burst.NewFootprint(ring); err != nil {
		r.fail("GPolygons", err)
	}
	if lon, lat := r.optionalNumber(AttrCenterLon), r.optionalNumber(AttrCenterLat); lon != nil && lat != nil {
		b.Footprint.Center = geojson.Point{*lon, *lat}
	}

	if g.Attribute(AttrMeasurementOffset) != nil {
		b.MeasurementOffset = r.integer64(AttrMeasurementOffset)
	}

	if r.err != nil {
		return nil, fmt.Errorf("granule %s: %w", g.GranuleUR, r.err)
	}

	// Records without a byte range fall back to the annotated burst offset.
	if g.Attribute(AttrByteOffset) == nil && b.MeasurementOffset > 0 {
		rng, err := layout.ResolveFromAnnotation(b, b.MeasurementOffset)
		if err != nil {
			return nil, fmt.Errorf("granule %s: %w", g.GranuleUR, err)
		}
		if err := b.AttachRange(rng); err != nil {
			return nil, err
		}
	}
	if g.Attribute(AttrByteOffset) != nil {
		rng := burst.ByteRange{
			Offset:  r.integer64(AttrByteOffset),
			Length:  r.integer64(AttrByteLength),
			Format:  b.Format,
			Lines:   b.Shape.Lines,
			Samples: b.Shape.Samples,
		}
		if raw := r.text(AttrByteSegments); raw != "" {
			if err := json.Unmarshal([]byte(raw), &rng.Segments); err != nil {
				r.fail(AttrByteSegments, err)
			}
		} else {
			rng.Segments = []burst.Segment{{Offset: rng.Offset, Length: rng.Length}}
		}
		if r.err != nil {
			return nil, fmt.Errorf("granule %s: %w", g.GranuleUR, r.err)
		}
		if err := b.AttachRange(rng); err != nil {
			return nil, err
		}
	}
	return b, nil
}

type attributeList []AdditionalAttribute

func (l *attributeList) add(name, value string) {
	*l = append(*l, AdditionalAttribute{Name: name, Values: []string{value}})
}

func (l *attributeList) float(name string, v float64) {
	l.add(name, strconv.FormatFloat(v, 'g', -1, 64))
}

// attributeReader parses additional attributes, keeping the first error.
type attributeReader struct {
	g   *Granule
	err error
}

func (r *attributeReader) fail(name string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("%w: attribute %s: %v", ErrNotBurstGranule, name, err)
	}
}

func (r *attributeReader) text(name string) string {
	v := r.g.Attribute(name)
	if len(v) == 0 {
		return ""
	}
	return v[0]
}

func (r *attributeReader) required(name string) (string, bool) {
	v := r.g.Attribute(name)
	if len(v) == 0 {
		r.fail(name, errors.New("missing"))
		return "", false
	}
	return v[0], true
}

func (r *attributeReader) integer(name string) int {
	return int(r.integer64(name))
}

func (r *attributeReader) integer64(name string) int64 {
	s, ok := r.required(name)
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		r.fail(name, err)
	}
	return n
}

func (r *attributeReader) number(name string) float64 {
	s, ok := r.required(name)
	if !ok {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		r.fail(name, err)
	}
	return f
}

func (r *attributeReader) optionalNumber(name string) *float64 {
	s := r.text(name)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		r.fail(name, err)
		return nil
	}
	return &f
}

func (r *attributeReader) polynomial(name string) burst.Polynomial {
	var p burst.Polynomial
	s, ok := r.required(name)
	if !ok {
		return p
	}
	if err := json.Unmarshal([]byte(s), &p); err != nil {
		r.fail(name, err)
	}
	return p
}

// platformName maps "S1A" to the CMR platform "Sentinel-1A".
func platformName(code string) string {
	if len(code) == 3 && strings.HasPrefix(code, "S1") {
		return "Sentinel-1" + code[2:]
	}
	return code
}

// platformCode maps "Sentinel-1A" to "S1A".
func platformCode(name string) string {
	if rest, ok := strings.CutPrefix(name, "Sentinel-1"); ok {
		return "S1" + rest
	}
	return name
}
