package safe_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/s1bursts/internal/safe"
	"github.com/robert-malhotra/s1bursts/internal/testutil"
)

func parseScene(t *testing.T, s testutil.Scene) *safe.Product {
	t.Helper()
	p, err := safe.Parse(s.URL("https://datapool.asf.alaska.edu"), s.Manifest(), s.Annotations())
	require.NoError(t, err)
	return p
}

func TestParse_Scenario(t *testing.T) {
	s := testutil.Scenario()
	p := parseScene(t, s)

	assert.Equal(t, s.Name, p.Name)
	assert.Equal(t, "S1B", p.Platform)
	assert.Equal(t, "IW", p.Mode)
	assert.Equal(t, "SLC", p.ProductType)
	assert.Equal(t, 25400, p.AbsoluteOrbit)
	assert.Equal(t, 174, p.RelativeOrbit)
	assert.Equal(t, "Ascending", p.OrbitDirection)
	assert.Equal(t, []string{"VV", "VH"}, p.Polarizations)
	assert.Equal(t, []string{"IW1", "IW2", "IW3"}, p.SwathNames)
	assert.True(t, p.StartTime.Equal(s.Start))
	assert.True(t, p.AscendingNodeTime.Equal(s.AscendingNodeTime()))
	assert.InDelta(t, 2014240.0, p.StartTimeANX, 1e-6)
	assert.Equal(t, []string{"VH", "VV"}, p.AnnotatedPolarizations())
	assert.Len(t, p.Swaths(), 6)
	assert.Len(t, p.AnnotationPaths(), 6)

	sw, err := p.Swath("vv", 1)
	require.NoError(t, err)
	assert.Same(t, p, sw.Product)
	assert.Equal(t, "IW1", sw.Name)
	assert.Equal(t, "VV", sw.Polarization)
	assert.Equal(t, 1502, sw.LinesPerBurst)
	assert.Equal(t, 21209, sw.SamplesPerBurst)
	assert.Equal(t, 9, sw.BurstCount())
	assert.Equal(t, 9, sw.Rank)
	assert.Equal(t, "Hamming", sw.WindowType)
	assert.InDelta(t, 0.75, sw.WindowCoefficient, 1e-12)
	assert.InDelta(t, s.AzimuthTimeInterval, sw.AzimuthTimeInterval, 1e-18)
	assert.Equal(t, s.MeasurementPath(1, "VV"), sw.Files.Measurement)
	assert.Equal(t, "annotation/calibration/noise-"+s.Stem(1, "VV")+".xml", sw.Files.Noise)
	assert.Equal(t, "annotation/calibration/calibration-"+s.Stem(1, "VV")+".xml", sw.Files.Calibration)
	assert.Len(t, sw.AzimuthFMRates, 10)
	assert.Len(t, sw.DopplerCentroids, 10)
	assert.NotEmpty(t, sw.Orbit)

	for k, b := range sw.Bursts {
		assert.True(t, b.AzimuthTime.Equal(s.BurstTime(k)), "burst %d azimuth time", k)
		assert.Equal(t, s.BurstANX(k), b.AzimuthAnxTime)
		assert.Equal(t, s.RowOffset(k*s.Lines), b.ByteOffset)
		assert.Len(t, b.FirstValidSample, s.Lines)
	}
	assert.Equal(t, -1, sw.Bursts[0].FirstValidSample[19])
	assert.Equal(t, 460, sw.Bursts[0].FirstValidSample[20])
}

func TestParse_IW2MidRange(t *testing.T) {
	s := testutil.Scenario()
	p := parseScene(t, s)

	iw2, err := p.Swath("VV", 2)
	require.NoError(t, err)

	srt := s.SlantRangeTime + 6.0e-4
	want := srt*safe.SpeedOfLight/2 + 0.5*float64(s.Samples)*safe.SpeedOfLight/(2*s.RangeSamplingRate)
	assert.InDelta(t, want, p.IW2MidRange, 1e-6)
	assert.InDelta(t, want, iw2.MidRange(), 1e-6)
	assert.InDelta(t, safe.SpeedOfLight/s.RadarFrequency, iw2.Wavelength(), 1e-15)
}

func TestProduct_Swath_Errors(t *testing.T) {
	p := parseScene(t, testutil.Small())

	_, err := p.Swath("HH", 1)
	assert.ErrorIs(t, err, safe.ErrUnsupportedPolarization)

	_, err = p.Swath("VV", 4)
	assert.ErrorIs(t, err, safe.ErrSwathNotFound)
	assert.NotErrorIs(t, err, safe.ErrUnsupportedPolarization)
}

func TestParse_MissingNoise(t *testing.T) {
	s := testutil.Small()
	s.OmitNoise = true

	_, err := safe.Parse(s.URL("https://datapool.asf.alaska.edu"), s.Manifest(), s.Annotations())
	require.ErrorIs(t, err, safe.ErrMalformedMetadata)

	var merr *safe.MalformedMetadataError
	require.True(t, errors.As(err, &merr))
	assert.Equal(t, "noise", merr.Element)
}

func TestParse_MalformedAnnotation(t *testing.T) {
	s := testutil.Small()
	path := s.AnnotationPath(1, "VV")

	tests := []struct {
		name    string
		edit    func(string) string
		element string
	}{
		{
			name:    "missing lines per burst",
			edit:    func(doc string) string { return strings.Replace(doc, "<linesPerBurst>10</linesPerBurst>", "", 1) },
			element: "linesPerBurst",
		},
		{
			name: "missing burst list",
			edit: func(doc string) string {
				start := strings.Index(doc, "<burstList")
				end := strings.Index(doc, "</burstList>") + len("</burstList>")
				return doc[:start] + doc[end:]
			},
			element: "burstList",
		},
		{
			name: "sub-microsecond time",
			edit: func(doc string) string {
				return strings.Replace(doc, "<azimuthTime>2021-01-31T15:15:57.086587<", "<azimuthTime>2021-01-31T15:15:57.0865871<", 1)
			},
			element: "azimuthFmRate/azimuthTime",
		},
		{
			name: "orbit mismatch",
			edit: func(doc string) string {
				return strings.Replace(doc, "<absoluteOrbitNumber>25400<", "<absoluteOrbitNumber>25401<", 1)
			},
			element: "absoluteOrbitNumber",
		},
		{
			name:    "truncated",
			edit:    func(doc string) string { return doc[:len(doc)/2] },
			element: "product",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs := s.Annotations()
			docs[path] = []byte(tt.edit(string(docs[path])))

			_, err := safe.Parse("local/"+s.Name+".SAFE", s.Manifest(), docs)
			require.ErrorIs(t, err, safe.ErrMalformedMetadata)

			var merr *safe.MalformedMetadataError
			require.True(t, errors.As(err, &merr))
			assert.Equal(t, tt.element, merr.Element)
			assert.Equal(t, path, merr.Path)
		})
	}
}

func TestParse_HeaderMismatch(t *testing.T) {
	s := testutil.Small()
	docs := map[string][]byte{s.AnnotationPath(1, "VV"): s.Annotation(2, "VV")}

	_, err := safe.Parse(s.Name+".zip", s.Manifest(), docs)
	require.ErrorIs(t, err, safe.ErrMalformedMetadata)
	assert.Contains(t, err.Error(), "adsHeader")
}

func TestParse_UnlistedAnnotation(t *testing.T) {
	s := testutil.Small()
	docs := map[string][]byte{"annotation/s1b-iw9-slc-vv-x.xml": s.Annotation(1, "VV")}

	_, err := safe.Parse(s.Name+".zip", s.Manifest(), docs)
	require.ErrorIs(t, err, safe.ErrMalformedMetadata)
}

func TestParseManifest_MissingOrbit(t *testing.T) {
	s := testutil.Small()
	manifest := strings.ReplaceAll(string(s.Manifest()), "orbitNumber type=", "orbitNumberX type=")
	manifest = strings.ReplaceAll(manifest, "</safe:orbitNumber>", "</safe:orbitNumberX>")

	_, err := safe.ParseManifest(s.Name+".zip", []byte(manifest))
	require.ErrorIs(t, err, safe.ErrMalformedMetadata)

	var merr *safe.MalformedMetadataError
	require.True(t, errors.As(err, &merr))
	assert.Equal(t, "orbitNumber", merr.Element)
}

func TestSafeName(t *testing.T) {
	tests := map[string]string{
		"https://datapool.asf.alaska.edu/SLC/SB/S1B_IW_SLC__1SDV_X.zip": "S1B_IW_SLC__1SDV_X",
		"/data/S1B_IW_SLC__1SDV_X.SAFE/":                                "S1B_IW_SLC__1SDV_X",
		"S1B_IW_SLC__1SDV_X.zip?token=abc":                              "S1B_IW_SLC__1SDV_X",
		`C:\data\S1A_IW_SLC__1SDV_Y.zip`:                                "S1A_IW_SLC__1SDV_Y",
	}
	for in, want := range tests {
		assert.Equal(t, want, safe.SafeName(in), in)
	}
}
