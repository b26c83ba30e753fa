// Package sensor builds bursts through a sensor model: burst timing is taken
// relative to the orbit's ascending node and footprints are projected from the
// corners of the valid raster window.
package sensor

import (
	"fmt"
	"sort"
	"time"

	"github.com/robert-malhotra/s1bursts/internal/burst"
	"github.com/robert-malhotra/s1bursts/internal/safe"
	"github.com/robert-malhotra/s1bursts/pkg/geojson"
)

// Model geolocates radar coordinates. Implementations own their orbit state
// and hand out opaque keys for it.
type Model interface {
	// AscendingNode returns the ascending node crossing that precedes t.
	AscendingNode(t time.Time) (time.Time, error)
	// Geolocate projects an azimuth time and two-way slant range time to the
	// ground.
	Geolocate(azimuth time.Time, slantRangeTime float64) (geojson.Point, error)
	// Orbit returns a key for the orbit state covering [start, stop].
	Orbit(start, stop time.Time) (string, error)
}

// GridModel is a Model backed by a swath's geolocation grid and orbit list.
// Positions are bilinear in azimuth time and slant range time between grid
// tie points.
type GridModel struct {
	name  string
	node  time.Time
	epoch time.Time

	rows   []float64 // seconds after epoch
	ranges []float64 // two-way slant range time, s
	lon    [][]float64
	lat    [][]float64

	orbitStart time.Time
	orbitStop  time.Time
}

// NewGridModel builds a GridModel for a swath. The grid must be rectangular:
// every line carries the same pixels.
func NewGridModel(sw *safe.Swath) (*GridModel, error) {
	byLine := make(map[int][]safe.GridPoint)
	for _, g := range sw.Grid {
		byLine[g.Line] = append(byLine[g.Line], g)
	}
	if len(byLine) < 2 {
		return nil, fmt.Errorf("%w: %s %s geolocation grid has %d rows", burst.ErrGeometryResolution, sw.Name, sw.Polarization, len(byLine))
	}

	lines := make([]int, 0, len(byLine))
	for line := range byLine {
		lines = append(lines, line)
	}
	sort.Ints(lines)

	m := &GridModel{
		name:  fmt.Sprintf("%s_%s_%s", sw.Product.Name, sw.Name, sw.Polarization),
		node:  sw.AscendingNodeTime,
		epoch: byLine[lines[0]][0].AzimuthTime,
	}
	if m.node.IsZero() {
		m.node = sw.Product.AscendingNodeTime
	}

	for i, line := range lines {
		row := byLine[line]
		sort.Slice(row, func(a, b int) bool { return row[a].Pixel < row[b].Pixel })
		if i == 0 {
			if len(row) < 2 {
				return nil, fmt.Errorf("%w: geolocation grid row %d has %d points", burst.ErrGeometryResolution, line, len(row))
			}
			for _, g := range row {
				m.ranges = append(m.ranges, g.SlantRangeTime)
			}
		} else if len(row) != len(m.ranges) {
			return nil, fmt.Errorf("%w: geolocation grid row %d has %d points, want %d", burst.ErrGeometryResolution, line, len(row), len(m.ranges))
		}

		t := row[0].AzimuthTime.Sub(m.epoch).Seconds()
		if i > 0 && t <= m.rows[i-1] {
			return nil, fmt.Errorf("%w: geolocation grid rows are not increasing in time at line %d", burst.ErrGeometryResolution, line)
		}
		m.rows = append(m.rows, t)

		lon := make([]float64, len(row))
		lat := make([]float64, len(row))
		for j, g := range row {
			lon[j], lat[j] = g.Longitude, g.Latitude
		}
		m.lon = append(m.lon, lon)
		m.lat = append(m.lat, lat)
	}

	if len(sw.Orbit) > 0 {
		m.orbitStart, m.orbitStop = sw.Orbit[0].Time, sw.Orbit[0].Time
		for _, sv := range sw.Orbit[1:] {
			if sv.Time.Before(m.orbitStart) {
				m.orbitStart = sv.Time
			}
			if sv.Time.After(m.orbitStop) {
				m.orbitStop = sv.Time
			}
		}
	}
	return m, nil
}

// AscendingNode implements Model.
func (m *GridModel) AscendingNode(t time.Time) (time.Time, error) {
	if m.node.IsZero() {
		return time.Time{}, fmt.Errorf("%w: no ascending node time for %s", burst.ErrGeometryResolution, m.name)
	}
	if t.Before(m.node) {
		return time.Time{}, fmt.Errorf("%w: %s precedes the ascending node %s",
			burst.ErrGeometryResolution, safe.FormatTime(t), safe.FormatTime(m.node))
	}
	return m.node, nil
}

// Geolocate implements Model.
func (m *GridModel) Geolocate(azimuth time.Time, slantRangeTime float64) (geojson.Point, error) {
	if !m.covers(azimuth, azimuth) {
		return geojson.Point{}, fmt.Errorf("%w: no orbit state at %s", burst.ErrGeometryResolution, safe.FormatTime(azimuth))
	}

	t := azimuth.Sub(m.epoch).Seconds()
	i, u := bracket(m.rows, t)
	j, v := bracket(m.ranges, slantRangeTime)

	interp := func(grid [][]float64) float64 {
		return (1-u)*(1-v)*grid[i][j] + (1-u)*v*grid[i][j+1] + u*(1-v)*grid[i+1][j] + u*v*grid[i+1][j+1]
	}
	return geojson.Point{interp(m.lon), interp(m.lat)}, nil
}

// Orbit implements Model.
func (m *GridModel) Orbit(start, stop time.Time) (string, error) {
	if !m.covers(start, stop) {
		return "", fmt.Errorf("%w: orbit state vectors do not span %s to %s",
			burst.ErrGeometryResolution, safe.FormatTime(start), safe.FormatTime(stop))
	}
	return fmt.Sprintf("%s/orbit/%s/%s", m.name, safe.FormatTime(m.orbitStart), safe.FormatTime(m.orbitStop)), nil
}

func (m *GridModel) covers(start, stop time.Time) bool {
	if m.orbitStart.IsZero() {
		return false
	}
	return !start.Before(m.orbitStart) && !stop.After(m.orbitStop)
}

// bracket returns the segment of xs holding x and the fractional position of
// x within it. Values outside xs extrapolate from the end segments.
func bracket(xs []float64, x float64) (int, float64) {
	i := sort.SearchFloat64s(xs, x) - 1
	i = max(0, min(i, len(xs)-2))
	return i, (x - xs[i]) / (xs[i+1] - xs[i])
}
