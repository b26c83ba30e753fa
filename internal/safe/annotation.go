package safe

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// SpeedOfLight in vacuum, m/s.
const SpeedOfLight = 299792458.0

type annotationDoc struct {
	Header struct {
		MissionID           string `xml:"missionId"`
		Polarisation        string `xml:"polarisation"`
		Mode                string `xml:"mode"`
		Swath               string `xml:"swath"`
		AbsoluteOrbitNumber string `xml:"absoluteOrbitNumber"`
	} `xml:"adsHeader"`

	General struct {
		ProductInformation struct {
			Pass                string `xml:"pass"`
			RangeSamplingRate   string `xml:"rangeSamplingRate"`
			RadarFrequency      string `xml:"radarFrequency"`
			AzimuthSteeringRate string `xml:"azimuthSteeringRate"`
		} `xml:"productInformation"`
		Downlinks []struct {
			PRF             string `xml:"prf"`
			Rank            string `xml:"downlinkValues>rank"`
			TxPulseRampRate string `xml:"downlinkValues>txPulseRampRate"`
		} `xml:"downlinkInformationList>downlinkInformation"`
		Orbits []struct {
			Time     string `xml:"time"`
			Position vector `xml:"position"`
			Velocity vector `xml:"velocity"`
		} `xml:"orbitList>orbit"`
		FMRates []struct {
			AzimuthTime string `xml:"azimuthTime"`
			T0          string `xml:"t0"`
			Polynomial  string `xml:"azimuthFmRatePolynomial"`
			C0          string `xml:"c0"`
			C1          string `xml:"c1"`
			C2          string `xml:"c2"`
		} `xml:"azimuthFmRateList>azimuthFmRate"`
	} `xml:"generalAnnotation"`

	Image struct {
		Information struct {
			ProductFirstLineUtcTime string `xml:"productFirstLineUtcTime"`
			AscendingNodeTime       string `xml:"ascendingNodeTime"`
			SlantRangeTime          string `xml:"slantRangeTime"`
			PixelValue              string `xml:"pixelValue"`
			OutputPixels            string `xml:"outputPixels"`
			RangePixelSpacing       string `xml:"rangePixelSpacing"`
			AzimuthTimeInterval     string `xml:"azimuthTimeInterval"`
			NumberOfSamples         string `xml:"numberOfSamples"`
			NumberOfLines           string `xml:"numberOfLines"`
		} `xml:"imageInformation"`
		SwathProcParams []struct {
			Swath               string `xml:"swath"`
			ProcessingBandwidth string `xml:"rangeProcessing>processingBandwidth"`
			WindowType          string `xml:"rangeProcessing>windowType"`
			WindowCoefficient   string `xml:"rangeProcessing>windowCoefficient"`
		} `xml:"processingInformation>swathProcParamsList>swathProcParams"`
	} `xml:"imageAnnotation"`

	DCEstimates []struct {
		AzimuthTime string `xml:"azimuthTime"`
		T0          string `xml:"t0"`
		Polynomial  string `xml:"dataDcPolynomial"`
	} `xml:"dopplerCentroid>dcEstimateList>dcEstimate"`

	Timing struct {
		LinesPerBurst   string `xml:"linesPerBurst"`
		SamplesPerBurst string `xml:"samplesPerBurst"`
		BurstList       *struct {
			Count  string `xml:"count,attr"`
			Bursts []struct {
				AzimuthTime      string `xml:"azimuthTime"`
				AzimuthAnxTime   string `xml:"azimuthAnxTime"`
				SensingTime      string `xml:"sensingTime"`
				ByteOffset       string `xml:"byteOffset"`
				FirstValidSample string `xml:"firstValidSample"`
				LastValidSample  string `xml:"lastValidSample"`
			} `xml:"burst"`
		} `xml:"burstList"`
	} `xml:"swathTiming"`

	Grid []struct {
		AzimuthTime    string `xml:"azimuthTime"`
		SlantRangeTime string `xml:"slantRangeTime"`
		Line           string `xml:"line"`
		Pixel          string `xml:"pixel"`
		Latitude       string `xml:"latitude"`
		Longitude      string `xml:"longitude"`
		Height         string `xml:"height"`
	} `xml:"geolocationGrid>geolocationGridPointList>geolocationGridPoint"`
}

type vector struct {
	X string `xml:"x"`
	Y string `xml:"y"`
	Z string `xml:"z"`
}

// Swath is one swath and polarization of a product, decoded from its
// annotation. It is immutable.
type Swath struct {
	Product      *Product
	Files        FileSet
	Polarization string // upper case, e.g. VV
	Name         string // e.g. IW1
	Index        int    // 1-based swath number
	Mode         string

	LinesPerBurst   int
	SamplesPerBurst int
	NumberOfLines   int
	NumberOfSamples int

	RadarFrequency float64 // Hz
	// AzimuthSteeringRate is the annotated steering rate in degrees per second.
	AzimuthSteeringRate float64
	AzimuthTimeInterval float64 // s
	SlantRangeTime      float64 // two-way, s
	RangeSamplingRate   float64 // Hz
	RangePixelSpacing   float64 // m, as annotated
	ProcessingBandwidth float64 // Hz
	WindowType          string
	WindowCoefficient   float64
	Rank                int
	PRF                 float64
	TxPulseRampRate     float64
	PixelValue          string
	OutputPixels        string

	FirstLineTime     time.Time
	AscendingNodeTime time.Time

	Bursts           []BurstRecord
	Grid             []GridPoint
	Orbit            []StateVector
	AzimuthFMRates   []TimedPolynomial
	DopplerCentroids []TimedPolynomial
}

// BurstRecord is one entry of the annotation burst list.
type BurstRecord struct {
	AzimuthTime time.Time
	// AzimuthAnxTime is the burst start measured from the ascending node, in
	// seconds, kept as annotated text so it can be used in exact arithmetic.
	AzimuthAnxTime   string
	SensingTime      time.Time
	ByteOffset       int64 // offset of the first burst line inside the measurement TIFF
	FirstValidSample []int
	LastValidSample  []int
}

// GridPoint is a geolocation grid tie point.
type GridPoint struct {
	AzimuthTime    time.Time
	SlantRangeTime float64
	Line           int
	Pixel          int
	Latitude       float64
	Longitude      float64
	Height         float64
}

// StateVector is an orbit state vector in Earth-fixed coordinates.
type StateVector struct {
	Time     time.Time
	Position [3]float64
	Velocity [3]float64
}

// TimedPolynomial is a range polynomial valid around an azimuth time.
type TimedPolynomial struct {
	AzimuthTime  time.Time
	T0           float64 // two-way slant range time origin, s
	Coefficients []float64
}

// BurstCount returns the number of bursts in the swath.
func (s *Swath) BurstCount() int {
	return len(s.Bursts)
}

// StartingRange returns the slant range of the first sample, in meters.
func (s *Swath) StartingRange() float64 {
	return s.SlantRangeTime * SpeedOfLight / 2
}

// RangeSpacing returns the slant range pixel spacing implied by the sampling rate.
func (s *Swath) RangeSpacing() float64 {
	return SpeedOfLight / (2 * s.RangeSamplingRate)
}

// Wavelength returns the radar wavelength in meters.
func (s *Swath) Wavelength() float64 {
	return SpeedOfLight / s.RadarFrequency
}

// MidRange returns the slant range to the middle of a burst line.
func (s *Swath) MidRange() float64 {
	return s.StartingRange() + 0.5*float64(s.SamplesPerBurst)*s.RangeSpacing()
}

// ParseAnnotation decodes a product annotation document. p must already hold
// the parsed manifest; path is the SAFE-relative annotation path.
func ParseAnnotation(p *Product, path string, doc []byte) (*Swath, error) {
	set, ok := p.fileSet(path)
	if !ok || set.Annotation == "" {
		return nil, malformed(path, "dataObject", fmt.Errorf("annotation not listed in manifest"))
	}
	if set.Noise == "" {
		return nil, malformed(path, "noise", fmt.Errorf("no noise vectors listed for %s", set.Stem))
	}
	if set.Measurement == "" {
		return nil, malformed(path, "measurement", fmt.Errorf("no measurement listed for %s", set.Stem))
	}

	var a annotationDoc
	if err := xml.NewDecoder(bytes.NewReader(doc)).Decode(&a); err != nil {
		return nil, malformed(path, "product", err)
	}

	f := &fields{path: path}
	s := &Swath{
		Product:      p,
		Files:        *set,
		Polarization: strings.ToUpper(f.text("polarisation", a.Header.Polarisation)),
		Name:         strings.ToUpper(f.text("swath", a.Header.Swath)),
		Mode:         strings.ToUpper(strings.TrimSpace(a.Header.Mode)),
	}
	if orbit := f.integer("absoluteOrbitNumber", a.Header.AbsoluteOrbitNumber); f.err == nil && orbit != p.AbsoluteOrbit {
		f.fail("absoluteOrbitNumber", fmt.Errorf("annotation orbit %d does not match manifest orbit %d", orbit, p.AbsoluteOrbit))
	}
	if n, err := strconv.Atoi(strings.TrimLeft(s.Name, "IWESMV")); err == nil {
		s.Index = n
	} else {
		f.fail("swath", fmt.Errorf("unrecognised swath %q", s.Name))
	}

	info := a.General.ProductInformation
	s.RadarFrequency = f.float("radarFrequency", info.RadarFrequency)
	s.RangeSamplingRate = f.float("rangeSamplingRate", info.RangeSamplingRate)
	s.AzimuthSteeringRate = f.float("azimuthSteeringRate", info.AzimuthSteeringRate)

	if len(a.General.Downlinks) == 0 {
		f.fail("downlinkInformation", nil)
	} else {
		dl := a.General.Downlinks[0]
		s.PRF = f.float("prf", dl.PRF)
		s.Rank = f.integer("rank", dl.Rank)
		s.TxPulseRampRate = f.float("txPulseRampRate", dl.TxPulseRampRate)
	}

	img := a.Image.Information
	s.FirstLineTime = f.timestamp("productFirstLineUtcTime", img.ProductFirstLineUtcTime)
	s.AscendingNodeTime = f.timestamp("ascendingNodeTime", img.AscendingNodeTime)
	s.SlantRangeTime = f.float("slantRangeTime", img.SlantRangeTime)
	s.RangePixelSpacing = f.float("rangePixelSpacing", img.RangePixelSpacing)
	s.AzimuthTimeInterval = f.float("azimuthTimeInterval", img.AzimuthTimeInterval)
	s.NumberOfSamples = f.integer("numberOfSamples", img.NumberOfSamples)
	s.NumberOfLines = f.integer("numberOfLines", img.NumberOfLines)
	s.PixelValue = strings.TrimSpace(img.PixelValue)
	s.OutputPixels = strings.TrimSpace(img.OutputPixels)

	procFound := false
	for _, proc := range a.Image.SwathProcParams {
		if !strings.EqualFold(strings.TrimSpace(proc.Swath), s.Name) {
			continue
		}
		s.ProcessingBandwidth = f.float("processingBandwidth", proc.ProcessingBandwidth)
		s.WindowType = f.text("windowType", proc.WindowType)
		s.WindowCoefficient = f.float("windowCoefficient", proc.WindowCoefficient)
		procFound = true
		break
	}
	if !procFound {
		f.fail("swathProcParams", fmt.Errorf("no range processing parameters for %s", s.Name))
	}

	for _, o := range a.General.Orbits {
		s.Orbit = append(s.Orbit, StateVector{
			Time:     f.timestamp("orbit/time", o.Time),
			Position: [3]float64{f.float("position/x", o.Position.X), f.float("position/y", o.Position.Y), f.float("position/z", o.Position.Z)},
			Velocity: [3]float64{f.float("velocity/x", o.Velocity.X), f.float("velocity/y", o.Velocity.Y), f.float("velocity/z", o.Velocity.Z)},
		})
	}

	for _, fm := range a.General.FMRates {
		coeffs := fm.Polynomial
		if strings.TrimSpace(coeffs) == "" {
			coeffs = strings.Join([]string{fm.C0, fm.C1, fm.C2}, " ")
		}
		s.AzimuthFMRates = append(s.AzimuthFMRates, TimedPolynomial{
			AzimuthTime:  f.timestamp("azimuthFmRate/azimuthTime", fm.AzimuthTime),
			T0:           f.float("azimuthFmRate/t0", fm.T0),
			Coefficients: f.floats("azimuthFmRatePolynomial", coeffs),
		})
	}
	if len(s.AzimuthFMRates) == 0 {
		f.fail("azimuthFmRateList", nil)
	}

	for _, dc := range a.DCEstimates {
		s.DopplerCentroids = append(s.DopplerCentroids, TimedPolynomial{
			AzimuthTime:  f.timestamp("dcEstimate/azimuthTime", dc.AzimuthTime),
			T0:           f.float("dcEstimate/t0", dc.T0),
			Coefficients: f.floats("dataDcPolynomial", dc.Polynomial),
		})
	}
	if len(s.DopplerCentroids) == 0 {
		f.fail("dcEstimateList", nil)
	}

	s.LinesPerBurst = f.integer("linesPerBurst", a.Timing.LinesPerBurst)
	s.SamplesPerBurst = f.integer("samplesPerBurst", a.Timing.SamplesPerBurst)

	if a.Timing.BurstList == nil || len(a.Timing.BurstList.Bursts) == 0 {
		f.fail("burstList", nil)
	} else {
		list := a.Timing.BurstList
		if list.Count != "" {
			if n, err := strconv.Atoi(strings.TrimSpace(list.Count)); err != nil || n != len(list.Bursts) {
				f.fail("burstList", fmt.Errorf("count attribute %q does not match %d bursts", list.Count, len(list.Bursts)))
			}
		}
		for _, b := range list.Bursts {
			rec := BurstRecord{
				AzimuthTime:      f.timestamp("burst/azimuthTime", b.AzimuthTime),
				AzimuthAnxTime:   f.text("azimuthAnxTime", b.AzimuthAnxTime),
				ByteOffset:       f.offset("byteOffset", b.ByteOffset),
				FirstValidSample: f.integers("firstValidSample", b.FirstValidSample),
				LastValidSample:  f.integers("lastValidSample", b.LastValidSample),
			}
			if _, err := strconv.ParseFloat(rec.AzimuthAnxTime, 64); rec.AzimuthAnxTime != "" && err != nil {
				f.fail("azimuthAnxTime", err)
			}
			if b.SensingTime != "" {
				rec.SensingTime = f.timestamp("burst/sensingTime", b.SensingTime)
			}
			if f.err == nil && (len(rec.FirstValidSample) != s.LinesPerBurst || len(rec.LastValidSample) != s.LinesPerBurst) {
				f.fail("firstValidSample", fmt.Errorf("expected %d values per burst, got %d and %d",
					s.LinesPerBurst, len(rec.FirstValidSample), len(rec.LastValidSample)))
			}
			s.Bursts = append(s.Bursts, rec)
		}
	}

	for _, g := range a.Grid {
		s.Grid = append(s.Grid, GridPoint{
			AzimuthTime:    f.timestamp("geolocationGridPoint/azimuthTime", g.AzimuthTime),
			SlantRangeTime: f.float("geolocationGridPoint/slantRangeTime", g.SlantRangeTime),
			Line:           f.integer("line", g.Line),
			Pixel:          f.integer("pixel", g.Pixel),
			Latitude:       f.float("latitude", g.Latitude),
			Longitude:      f.float("longitude", g.Longitude),
			Height:         f.float("height", g.Height),
		})
	}
	if len(s.Grid) == 0 {
		f.fail("geolocationGrid", nil)
	}

	if f.err != nil {
		return nil, f.err
	}
	if s.Polarization != set.Polarization || s.Name != set.Swath {
		return nil, malformed(path, "adsHeader", fmt.Errorf("header %s/%s does not match file name %s", s.Name, s.Polarization, set.Stem))
	}
	if s.RangeSamplingRate <= 0 || s.RadarFrequency <= 0 || s.AzimuthTimeInterval <= 0 || math.IsNaN(s.SlantRangeTime) {
		return nil, malformed(path, "imageInformation", fmt.Errorf("non-positive sampling parameters"))
	}
	return s, nil
}
