// Package burst models Sentinel-1 TOPS bursts: identifiers, raster windows,
// footprints and the byte ranges that hold their samples.
package burst

import (
	"fmt"
	"math"
	"path"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/robert-malhotra/s1bursts/internal/safe"
	"github.com/robert-malhotra/s1bursts/pkg/geojson"
)

// Metadata describes one burst of a swath. Geometry fields are fixed when the
// burst is built; the byte range and the decoded array may each be attached
// once afterwards.
type Metadata struct {
	Index      int    `json:"burst_index"`
	ID         string `json:"burst_id"`
	AbsoluteID string `json:"absolute_id"`
	RelativeID int    `json:"relative_burst_id"`
	StackID    string `json:"stack_id"`

	Platform       string `json:"platform"`
	Mode           string `json:"mode"`
	AbsoluteOrbit  int    `json:"absolute_orbit"`
	RelativeOrbit  int    `json:"relative_orbit"`
	Swath          string `json:"swath"`
	SwathIndex     int    `json:"swath_index"`
	Polarization   string `json:"polarization"`
	OrbitDirection string `json:"orbit_direction"`

	SensingStart time.Time `json:"sensing_start"`
	SensingStop  time.Time `json:"sensing_stop"`

	RadarFrequency         float64 `json:"radar_center_frequency"`
	Wavelength             float64 `json:"wavelength"`
	AzimuthSteerRate       float64 `json:"azimuth_steer_rate"` // rad/s
	AzimuthTimeInterval    float64 `json:"azimuth_time_interval"`
	SlantRangeTime         float64 `json:"slant_range_time"`
	StartingRange          float64 `json:"starting_range"`
	IW2MidRange            float64 `json:"iw2_mid_range"`
	RangeSamplingRate      float64 `json:"range_sampling_rate"`
	RangePixelSpacing      float64 `json:"range_pixel_spacing"`
	RangeBandwidth         float64 `json:"range_bandwidth"`
	RangeWindowType        string  `json:"range_window_type"`
	RangeWindowCoefficient float64 `json:"range_window_coefficient"`
	Rank                   int     `json:"rank"`
	PRF                    float64 `json:"prf_raw_data"`
	RangeChirpRate         float64 `json:"range_chirp_rate"`

	Shape     Shape       `json:"shape"`
	Valid     Window      `json:"valid_window"`
	Format    PixelFormat `json:"-"`
	Footprint Footprint   `json:"footprint"`

	AzimuthFMRate Polynomial `json:"azimuth_fm_rate"`
	Doppler       Polynomial `json:"doppler"`

	// Orbit is a key for the orbit state owned by the sensor model.
	Orbit string `json:"orbit,omitempty"`

	SafeName             string `json:"safe_name"`
	MeasurementPath      string `json:"measurement_path"` // relative to the SAFE directory
	AnnotationByteOffset int64  `json:"annotation_byte_offset"`
	AnnotationByteLength int64  `json:"annotation_byte_length"`
	// MeasurementOffset is the container offset of the measurement TIFF
	// data, zero when the container was not read.
	MeasurementOffset int64  `json:"measurement_offset,omitempty"`
	TiffPath          string `json:"tiff_path,omitempty"`
	URLPath           string `json:"url_path,omitempty"`

	rng  *ByteRange
	data *Array
}

// Footprint is the ground outline of a burst.
type Footprint struct {
	Center geojson.Point `json:"center"`
	Ring   geojson.Ring  `json:"ring"`
}

// NewFootprint closes ring and derives its center.
func NewFootprint(ring geojson.Ring) (Footprint, error) {
	closed := ring.Closed()
	if len(closed) < 4 {
		return Footprint{}, fmt.Errorf("%w: footprint needs at least 4 positions, got %d", ErrGeometryResolution, len(closed))
	}
	return Footprint{Center: closed.Centroid(), Ring: closed}, nil
}

// BBox returns the bounding box of the footprint ring.
func (f Footprint) BBox() geojson.BBox {
	return f.Ring.BBox()
}

// Geometry returns the footprint as a GeoJSON polygon.
func (f Footprint) Geometry() (*geojson.Geometry, error) {
	return geojson.NewPolygon(f.Ring)
}

// Geometry is what a Builder derives from its own model of the sensor.
type Geometry struct {
	// FirstLineDelta is the time from the ascending node to the first line
	// of the burst, in seconds.
	FirstLineDelta decimal.Decimal
	Footprint      Footprint
	Orbit          string
}

// Options tune burst construction.
type Options struct {
	// EdgeLineMargin drops extra lines from the leading edge of the first
	// burst and the trailing edge of the last burst of a swath.
	EdgeLineMargin int
}

// Builder produces the metadata of burst index of a parsed swath.
type Builder interface {
	Build(sw *safe.Swath, index int) (*Metadata, error)
}

// New assembles burst metadata from the swath annotation and the geometry a
// builder derived for it.
func New(sw *safe.Swath, index int, opts Options, g Geometry) (*Metadata, error) {
	window, err := SwathWindow(sw, index, opts)
	if err != nil {
		return nil, err
	}
	p := sw.Product
	rec := sw.Bursts[index]
	shape := Shape{Lines: sw.LinesPerBurst, Samples: sw.SamplesPerBurst}

	track, err := Track(p)
	if err != nil {
		return nil, err
	}

	format := CInt16
	if sw.OutputPixels != "" {
		if format, err = ParsePixelFormat(sw.OutputPixels); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrGeometryResolution, err)
		}
	}

	mid := rec.AzimuthTime.Add(safe.Seconds(0.5 * float64(shape.Lines-1) * sw.AzimuthTimeInterval))
	fmRate, ok := NearestPolynomial(sw.AzimuthFMRates, mid)
	if !ok {
		return nil, fmt.Errorf("%w: no azimuth FM rate polynomial", ErrGeometryResolution)
	}
	doppler, ok := NearestPolynomial(sw.DopplerCentroids, mid)
	if !ok {
		return nil, fmt.Errorf("%w: no Doppler centroid polynomial", ErrGeometryResolution)
	}

	mode := p.Mode
	if mode == "" {
		mode = strings.TrimRight(sw.Name, "0123456789")
	}
	ident, err := Identify(mode, track, sw.Index, sw.Polarization, rec.AzimuthTime,
		MidBurstDelta(g.FirstLineDelta, shape.Lines, sw.AzimuthTimeInterval))
	if err != nil {
		return nil, fmt.Errorf("burst %d: %w", index, err)
	}

	if len(g.Footprint.Ring) < 4 {
		return nil, fmt.Errorf("%w: burst %d has no footprint", ErrGeometryResolution, index)
	}

	m := &Metadata{
		Index:      index,
		ID:         ident.ID,
		AbsoluteID: ident.AbsoluteID,
		RelativeID: ident.RelativeID,
		StackID:    ident.StackID,

		Platform:       p.Platform,
		Mode:           mode,
		AbsoluteOrbit:  p.AbsoluteOrbit,
		RelativeOrbit:  track,
		Swath:          sw.Name,
		SwathIndex:     sw.Index,
		Polarization:   sw.Polarization,
		OrbitDirection: p.OrbitDirection,

		SensingStart: rec.AzimuthTime,
		SensingStop:  rec.AzimuthTime.Add(safe.Seconds(float64(shape.Lines-1) * sw.AzimuthTimeInterval)),

		RadarFrequency:         sw.RadarFrequency,
		Wavelength:             sw.Wavelength(),
		AzimuthSteerRate:       sw.AzimuthSteeringRate * math.Pi / 180,
		AzimuthTimeInterval:    sw.AzimuthTimeInterval,
		SlantRangeTime:         sw.SlantRangeTime,
		StartingRange:          sw.StartingRange(),
		IW2MidRange:            p.IW2MidRange,
		RangeSamplingRate:      sw.RangeSamplingRate,
		RangePixelSpacing:      sw.RangeSpacing(),
		RangeBandwidth:         sw.ProcessingBandwidth,
		RangeWindowType:        strings.ToLower(sw.WindowType),
		RangeWindowCoefficient: sw.WindowCoefficient,
		Rank:                   sw.Rank,
		PRF:                    sw.PRF,
		RangeChirpRate:         sw.TxPulseRampRate,

		Shape:     shape,
		Valid:     window,
		Format:    format,
		Footprint: g.Footprint,

		AzimuthFMRate: fmRate,
		Doppler:       doppler,
		Orbit:         g.Orbit,

		SafeName:             p.Name,
		MeasurementPath:      sw.Files.Measurement,
		AnnotationByteOffset: rec.ByteOffset,
		AnnotationByteLength: annotatedLength(sw, shape, format),
	}
	m.TiffPath, m.URLPath = locate(p, sw.Files.Measurement)
	return m, nil
}

// Track returns the relative orbit of a product, derived from the absolute
// orbit where the platform phase is known and checked against the manifest.
func Track(p *safe.Product) (int, error) {
	track, ok := RelativeOrbit(p.Platform, p.AbsoluteOrbit)
	if !ok {
		track = p.RelativeOrbit
	} else if p.RelativeOrbit != 0 && p.RelativeOrbit != track {
		return 0, fmt.Errorf("%w: orbit %d of %s is track %d, manifest says %d",
			ErrGeometryResolution, p.AbsoluteOrbit, p.Platform, track, p.RelativeOrbit)
	}
	if track == 0 {
		return 0, fmt.Errorf("%w: no relative orbit for %s", ErrGeometryResolution, p.Name)
	}
	return track, nil
}

// annotatedLength is the distance between consecutive annotated burst
// offsets, or the raw burst size for single burst swaths.
func annotatedLength(sw *safe.Swath, shape Shape, format PixelFormat) int64 {
	if len(sw.Bursts) > 1 {
		return sw.Bursts[1].ByteOffset - sw.Bursts[0].ByteOffset
	}
	return int64(shape.Lines) * int64(shape.Samples) * int64(format.BytesPerPixel())
}

// locate returns the local virtual path or the remote URL of a measurement.
func locate(p *safe.Product, measurement string) (tiffPath, urlPath string) {
	loc := p.Location
	switch {
	case strings.HasPrefix(loc, "http://"), strings.HasPrefix(loc, "https://"):
		return "", loc
	case strings.HasSuffix(loc, ".zip"):
		return "/vsizip/" + path.Join(loc, p.EntryName(measurement)), ""
	case loc == "":
		return "", ""
	default:
		return path.Join(loc, measurement), ""
	}
}

// Range returns the attached byte range.
func (m *Metadata) Range() (ByteRange, bool) {
	if m.rng == nil {
		return ByteRange{}, false
	}
	return *m.rng, true
}

// AttachRange records the resolved byte range. It succeeds once.
func (m *Metadata) AttachRange(r ByteRange) error {
	if m.rng != nil {
		return fmt.Errorf("%w: byte range of %s", ErrAlreadyAttached, m.ID)
	}
	m.rng = &r
	return nil
}

// Data returns the attached array, or nil before the burst was fetched.
func (m *Metadata) Data() *Array {
	return m.data
}

// AttachData records the fetched array. It succeeds once.
func (m *Metadata) AttachData(a *Array) error {
	if a == nil {
		return fmt.Errorf("attach data to %s: nil array", m.ID)
	}
	if m.data != nil {
		return fmt.Errorf("%w: data of %s", ErrAlreadyAttached, m.ID)
	}
	m.data = a
	return nil
}

// Clone returns a copy of the geometry fields without the attached byte range
// or array.
func (m *Metadata) Clone() *Metadata {
	c := *m
	c.rng = nil
	c.data = nil
	c.Footprint.Ring = append(geojson.Ring(nil), m.Footprint.Ring...)
	c.AzimuthFMRate.Coefficients = append([]float64(nil), m.AzimuthFMRate.Coefficients...)
	c.Doppler.Coefficients = append([]float64(nil), m.Doppler.Coefficients...)
	return &c
}
