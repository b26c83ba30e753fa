package burst

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/robert-malhotra/s1bursts/internal/safe"
	"github.com/robert-malhotra/s1bursts/pkg/geojson"
)

// AnnotationBuilder builds bursts from annotation metadata alone. The
// ascending node delta is the annotated azimuthAnxTime and the footprint
// comes from the geolocation grid rows that bound the burst.
type AnnotationBuilder struct {
	Options Options
}

// Build implements Builder.
func (b AnnotationBuilder) Build(sw *safe.Swath, index int) (*Metadata, error) {
	if index < 0 || index >= sw.BurstCount() {
		return nil, fmt.Errorf("%w: index %d of %d in %s %s", ErrBurstNotFound, index, sw.BurstCount(), sw.Name, sw.Polarization)
	}

	delta, err := decimal.NewFromString(sw.Bursts[index].AzimuthAnxTime)
	if err != nil {
		return nil, fmt.Errorf("%w: burst %d azimuthAnxTime: %v", ErrGeometryResolution, index, err)
	}

	fp, err := GridFootprint(sw, index)
	if err != nil {
		return nil, err
	}

	return New(sw, index, b.Options, Geometry{FirstLineDelta: delta, Footprint: fp})
}

// GridFootprint outlines a burst with the geolocation grid rows at its first
// line and at the first line of the following burst.
func GridFootprint(sw *safe.Swath, index int) (Footprint, error) {
	top := gridRow(sw.Grid, index*sw.LinesPerBurst)
	bottom := gridRow(sw.Grid, (index+1)*sw.LinesPerBurst)
	if len(top) < 2 || len(bottom) < 2 {
		return Footprint{}, fmt.Errorf("%w: burst %d: geolocation grid has no rows at lines %d and %d",
			ErrGeometryResolution, index, index*sw.LinesPerBurst, (index+1)*sw.LinesPerBurst)
	}

	ring := make(geojson.Ring, 0, len(top)+len(bottom)+1)
	for _, g := range top {
		ring = append(ring, geojson.Point{g.Longitude, g.Latitude})
	}
	for i := len(bottom) - 1; i >= 0; i-- {
		ring = append(ring, geojson.Point{bottom[i].Longitude, bottom[i].Latitude})
	}
	return NewFootprint(ring)
}

func gridRow(grid []safe.GridPoint, line int) []safe.GridPoint {
	var row []safe.GridPoint
	for _, g := range grid {
		if g.Line == line {
			row = append(row, g)
		}
	}
	sort.Slice(row, func(i, j int) bool { return row[i].Pixel < row[j].Pixel })
	return row
}

// BuildAll builds every burst of a swath. Bursts that fail are left out and
// their errors are joined into the returned error.
func BuildAll(b Builder, sw *safe.Swath) ([]*Metadata, error) {
	var bursts []*Metadata
	var errs []error
	for i := 0; i < sw.BurstCount(); i++ {
		m, err := b.Build(sw, i)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		bursts = append(bursts, m)
	}
	return bursts, errors.Join(errs...)
}
