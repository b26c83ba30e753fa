package sensor_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/s1bursts/internal/burst"
	"github.com/robert-malhotra/s1bursts/internal/safe"
	"github.com/robert-malhotra/s1bursts/internal/sensor"
	"github.com/robert-malhotra/s1bursts/internal/testutil"
	"github.com/robert-malhotra/s1bursts/pkg/geojson"
)

func TestBuilder_IDsMatchAnnotationPath(t *testing.T) {
	s := testutil.Scenario()
	p := s.Product(t)

	for _, sw := range p.Swaths() {
		for i := 0; i < sw.BurstCount(); i++ {
			fromAnnotation, err := burst.AnnotationBuilder{}.Build(sw, i)
			require.NoError(t, err)
			fromSensor, err := sensor.Builder{}.Build(sw, i)
			require.NoError(t, err)

			assert.Equal(t, fromAnnotation.ID, fromSensor.ID, "%s %s burst %d", sw.Name, sw.Polarization, i)
			assert.Equal(t, fromAnnotation.AbsoluteID, fromSensor.AbsoluteID)
			assert.Equal(t, fromAnnotation.Valid, fromSensor.Valid)
			assert.NotEmpty(t, fromSensor.Orbit)
		}
	}
}

func TestBuilder_Scenario(t *testing.T) {
	s := testutil.Scenario()
	m, err := sensor.Builder{}.Build(s.Swath(t, "VV", 1), 0)
	require.NoError(t, err)

	assert.Equal(t, "t174_372322_iw1", m.ID)
	assert.Equal(t, burst.Shape{Lines: 1502, Samples: 21209}, m.Shape)
	assert.Equal(t, burst.Window{FirstLine: 20, LastLine: 1482, FirstSample: 460, LastSample: 20802}, m.Valid)
}

func TestBuilder_FootprintCorners(t *testing.T) {
	s := testutil.Small()
	sw := s.Swath(t, "VV", 1)

	m, err := sensor.Builder{}.Build(sw, 1)
	require.NoError(t, err)
	require.Len(t, m.Footprint.Ring, 5)

	offset := s.BurstInterval
	corners := [][2]int{{2, 2}, {2, 6}, {8, 6}, {8, 2}}
	for k, c := range corners {
		lon, lat := s.Location(1, offset+float64(c[0])*sw.AzimuthTimeInterval, float64(c[1]))
		assert.InDelta(t, lon, m.Footprint.Ring[k].Lon(), 1e-7, "corner %d", k)
		assert.InDelta(t, lat, m.Footprint.Ring[k].Lat(), 1e-7, "corner %d", k)
	}
	assert.Equal(t, m.Footprint.Ring[0], m.Footprint.Ring[4])
}

func TestBuilder_TruncatedOrbit(t *testing.T) {
	s := testutil.Scenario()
	s.OrbitBursts = 6
	sw := s.Swath(t, "VV", 1)

	// State vectors end ten seconds after the first burst starts, which
	// spans the first three bursts.
	bursts, err := burst.BuildAll(sensor.Builder{}, sw)
	require.Error(t, err)
	assert.ErrorIs(t, err, burst.ErrGeometryResolution)
	require.Len(t, bursts, 3)
	for i, m := range bursts {
		assert.Equal(t, i, m.Index)
	}

	all, err := burst.BuildAll(burst.AnnotationBuilder{}, sw)
	require.NoError(t, err)
	assert.Len(t, all, s.Bursts)
}

type failingModel struct{ sensor.Model }

func (failingModel) Geolocate(time.Time, float64) (geojson.Point, error) {
	return geojson.Point{}, errors.New("projection diverged")
}

func TestBuilder_ModelErrors(t *testing.T) {
	s := testutil.Small()
	sw := s.Swath(t, "VV", 1)

	b := sensor.Builder{NewModel: func(sw *safe.Swath) (sensor.Model, error) {
		m, err := sensor.NewGridModel(sw)
		require.NoError(t, err)
		return failingModel{m}, nil
	}}
	_, err := b.Build(sw, 0)
	assert.ErrorContains(t, err, "projection diverged")

	b = sensor.Builder{NewModel: func(*safe.Swath) (sensor.Model, error) {
		return nil, burst.ErrGeometryResolution
	}}
	_, err = b.Build(sw, 0)
	assert.ErrorIs(t, err, burst.ErrGeometryResolution)

	_, err = sensor.Builder{}.Build(sw, 7)
	assert.ErrorIs(t, err, burst.ErrBurstNotFound)
}

func TestGridModel(t *testing.T) {
	s := testutil.Small()
	sw := s.Swath(t, "VV", 2)

	m, err := sensor.NewGridModel(sw)
	require.NoError(t, err)

	node, err := m.AscendingNode(s.Start)
	require.NoError(t, err)
	assert.True(t, node.Equal(s.AscendingNodeTime()))

	_, err = m.AscendingNode(s.AscendingNodeTime().Add(-time.Second))
	assert.ErrorIs(t, err, burst.ErrGeometryResolution)

	at := s.Start.Add(1500 * time.Millisecond)
	pt, err := m.Geolocate(at, sw.SlantRangeTime+3/sw.RangeSamplingRate)
	require.NoError(t, err)
	lon, lat := s.Location(2, 1.5, 3)
	assert.InDelta(t, lon, pt.Lon(), 1e-9)
	assert.InDelta(t, lat, pt.Lat(), 1e-9)

	_, err = m.Geolocate(s.Start.Add(-time.Hour), sw.SlantRangeTime)
	assert.ErrorIs(t, err, burst.ErrGeometryResolution)

	_, err = m.Orbit(s.Start, s.Start.Add(time.Hour))
	assert.ErrorIs(t, err, burst.ErrGeometryResolution)
}

func TestNewGridModel_NotRectangular(t *testing.T) {
	s := testutil.Small()
	sw := *s.Swath(t, "VV", 1)
	sw.Grid = sw.Grid[:len(sw.Grid)-1]

	_, err := sensor.NewGridModel(&sw)
	assert.ErrorIs(t, err, burst.ErrGeometryResolution)
}
