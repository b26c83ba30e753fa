// Package testutil builds synthetic Sentinel-1 SAFE products for tests:
// manifests, product annotations, measurement TIFFs and the zipped container.
//
// Geolocation in a scene is affine in azimuth time and range sample, so grid
// interpolation reproduces it exactly and expected footprints can be computed
// in closed form.
package testutil

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Scene describes a synthetic product.
type Scene struct {
	Name          string
	Platform      string // S1A or S1B
	AbsoluteOrbit int
	RelativeOrbit int
	DataTakeID    string
	Pass          string
	Polarizations []string
	Swaths        int

	Lines   int // lines per burst
	Samples int // samples per burst
	Bursts  int

	Start               time.Time // azimuth time of burst 0 in every swath
	FirstBurstANX       float64   // azimuthAnxTime of burst 0, s
	BurstInterval       float64   // s
	AzimuthTimeInterval float64   // s
	SlantRangeTime      float64   // s
	RangeSamplingRate   float64   // Hz
	RadarFrequency      float64   // Hz

	LeadingInvalidLines  int
	TrailingInvalidLines int
	FirstValidSample     [2]int // at the first and the last valid line
	LastValidSample      [2]int

	// OrbitBursts limits orbit state vectors to the span of the first n
	// bursts. Zero covers the whole product.
	OrbitBursts int
	// OmitNoise drops the noise vector files from the manifest.
	OmitNoise bool

	TIFF TIFFOptions
}

// TIFFOptions controls the measurement raster layout.
type TIFFOptions struct {
	RowsPerStrip int
	StripGap     int    // padding bytes between strips
	Compression  uint16 // zero means none
	Tiled        bool
	Float32      bool // CFloat32 pixels instead of CInt16
	Deflated     bool // measurement zip entries are deflated instead of stored
}

// Scenario returns the S1B product of 2021-01-31, orbit 25400, with full
// size IW bursts. Burst 0 of IW1 VV is t174_372322_iw1.
func Scenario() Scene {
	return Scene{
		Name:          "S1B_IW_SLC__1SDV_20210131T151555_20210131T151621_025400_03067B_415D",
		Platform:      "S1B",
		AbsoluteOrbit: 25400,
		RelativeOrbit: 174,
		DataTakeID:    "03067b",
		Pass:          "ASCENDING",
		Polarizations: []string{"VV", "VH"},
		Swaths:        3,

		Lines:   1502,
		Samples: 21209,
		Bursts:  9,

		Start:               time.Date(2021, 1, 31, 15, 15, 57, 86587000, time.UTC),
		FirstBurstANX:       2014.24,
		BurstInterval:       2.758277,
		AzimuthTimeInterval: 2.055556299109999e-03,
		SlantRangeTime:      5.331065023829134e-03,
		RangeSamplingRate:   6.434523812571428e+07,
		RadarFrequency:      5.405000454334350e+09,

		LeadingInvalidLines:  20,
		TrailingInvalidLines: 19,
		FirstValidSample:     [2]int{460, 455},
		LastValidSample:      [2]int{20802, 20810},

		TIFF: TIFFOptions{RowsPerStrip: 1},
	}
}

// Small returns a scene with the scenario's timing but tiny bursts, small
// enough to materialise measurement TIFFs and the zipped container.
func Small() Scene {
	s := Scenario()
	s.Lines = 10
	s.Samples = 8
	s.Bursts = 3
	s.LeadingInvalidLines = 2
	s.TrailingInvalidLines = 1
	s.FirstValidSample = [2]int{1, 2}
	s.LastValidSample = [2]int{7, 6}
	s.TIFF = TIFFOptions{RowsPerStrip: 1}
	return s
}

// Stem returns the annotation file stem for a swath and polarization.
func (s Scene) Stem(swath int, pol string) string {
	image := swath
	for i, p := range s.Polarizations {
		if strings.EqualFold(p, pol) {
			image = swath + s.Swaths*(len(s.Polarizations)-1-i)
		}
	}
	start := s.Start.Add(-time.Second).Format("20060102t150405")
	stop := s.Start.Add(s.span() + time.Second).Format("20060102t150405")
	return fmt.Sprintf("%s-iw%d-slc-%s-%s-%s-%06d-%s-%03d",
		strings.ToLower(s.Platform), swath, strings.ToLower(pol), start, stop, s.AbsoluteOrbit, s.DataTakeID, image)
}

// AnnotationPath returns the SAFE-relative annotation path.
func (s Scene) AnnotationPath(swath int, pol string) string {
	return "annotation/" + s.Stem(swath, pol) + ".xml"
}

// MeasurementPath returns the SAFE-relative measurement path.
func (s Scene) MeasurementPath(swath int, pol string) string {
	return "measurement/" + s.Stem(swath, pol) + ".tiff"
}

// URL returns a datapool style URL for the scene.
func (s Scene) URL(base string) string {
	return fmt.Sprintf("%s/SLC/S%s/%s.zip", strings.TrimSuffix(base, "/"), s.Platform[2:], s.Name)
}

// AscendingNodeTime returns the ascending node crossing preceding burst 0.
func (s Scene) AscendingNodeTime() time.Time {
	return s.Start.Add(-seconds(s.FirstBurstANX))
}

// BurstTime returns the azimuth time of the first line of burst k.
func (s Scene) BurstTime(k int) time.Time {
	return s.Start.Add(seconds(float64(k) * s.BurstInterval))
}

// BurstANX returns the annotated azimuthAnxTime text of burst k.
func (s Scene) BurstANX(k int) string {
	return fmt.Sprintf("%.6f", s.FirstBurstANX+float64(k)*s.BurstInterval)
}

// BytesPerPixel returns the measurement pixel size.
func (s Scene) BytesPerPixel() int {
	if s.TIFF.Float32 {
		return 8
	}
	return 4
}

// Height returns the number of raster rows in a measurement.
func (s Scene) Height() int {
	return s.Lines * s.Bursts
}

// RowOffset returns the TIFF offset of a raster row.
func (s Scene) RowOffset(row int) int64 {
	rps := s.rowsPerStrip()
	rowBytes := int64(s.Samples * s.BytesPerPixel())
	stripStride := int64(rps)*rowBytes + int64(s.TIFF.StripGap)
	return tiffHeaderSize + int64(row/rps)*stripStride + int64(row%rps)*rowBytes
}

func (s Scene) rowsPerStrip() int {
	if s.TIFF.RowsPerStrip <= 0 {
		return 1
	}
	return s.TIFF.RowsPerStrip
}

// Location returns the geographic position of a raster point given as seconds
// after burst 0 and a fractional sample index in swath n.
func (s Scene) Location(swath int, t, sample float64) (lon, lat float64) {
	across := sample / float64(s.Samples)
	lon = -91.9 + 0.75*float64(swath-1) - 0.012*t + 0.9*across
	lat = -1.2 + 0.061*t + 0.15*across
	return lon, lat
}

// SampleValue returns the complex value stored at a raster position.
func SampleValue(row, sample int) complex64 {
	return complex(float32(row%1000), float32(sample%1000))
}

// gridPixels returns the grid columns of a swath.
func (s Scene) gridPixels() []int {
	cols := []int{0, s.Samples / 4, s.Samples / 2, 3 * s.Samples / 4, s.Samples - 1}
	out := make([]int, 0, len(cols))
	for i, c := range cols {
		if i == 0 || c != out[len(out)-1] {
			out = append(out, c)
		}
	}
	return out
}

// gridRowTime returns seconds after burst 0 for grid row k (line k*Lines).
func (s Scene) gridRowTime(k int) float64 {
	if k < s.Bursts {
		return float64(k) * s.BurstInterval
	}
	return float64(s.Bursts-1)*s.BurstInterval + float64(s.Lines)*s.AzimuthTimeInterval
}

func (s Scene) span() time.Duration {
	return seconds(s.gridRowTime(s.Bursts))
}

func seconds(v float64) time.Duration {
	return time.Duration(math.Round(v*1e6)) * time.Microsecond
}

const timeLayout = "2006-01-02T15:04:05.000000"

func ts(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
