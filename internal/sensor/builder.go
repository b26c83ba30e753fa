package sensor

import (
	"fmt"
	"time"

	"github.com/robert-malhotra/s1bursts/internal/burst"
	"github.com/robert-malhotra/s1bursts/internal/safe"
	"github.com/robert-malhotra/s1bursts/pkg/geojson"
)

// Builder builds bursts through a sensor model. It implements burst.Builder.
type Builder struct {
	Options burst.Options
	// NewModel returns the model of a swath. Nil uses NewGridModel.
	NewModel func(sw *safe.Swath) (Model, error)
}

// Build implements burst.Builder.
func (b Builder) Build(sw *safe.Swath, index int) (*burst.Metadata, error) {
	window, err := burst.SwathWindow(sw, index, b.Options)
	if err != nil {
		return nil, err
	}

	model, err := b.model(sw)
	if err != nil {
		return nil, err
	}

	start := sw.Bursts[index].AzimuthTime
	stop := start.Add(safe.Seconds(float64(sw.LinesPerBurst-1) * sw.AzimuthTimeInterval))
	orbit, err := model.Orbit(start, stop)
	if err != nil {
		return nil, fmt.Errorf("burst %d: %w", index, err)
	}

	node, err := model.AscendingNode(start)
	if err != nil {
		return nil, fmt.Errorf("burst %d: %w", index, err)
	}

	corners := [][2]int{
		{window.FirstLine, window.FirstSample},
		{window.FirstLine, window.LastSample},
		{window.LastLine, window.LastSample},
		{window.LastLine, window.FirstSample},
	}
	ring := make(geojson.Ring, 0, len(corners)+1)
	for _, c := range corners {
		az := start.Add(lineOffset(c[0], sw.AzimuthTimeInterval))
		srt := sw.SlantRangeTime + float64(c[1])/sw.RangeSamplingRate
		pt, err := model.Geolocate(az, srt)
		if err != nil {
			return nil, fmt.Errorf("burst %d: %w", index, err)
		}
		ring = append(ring, pt)
	}
	fp, err := burst.NewFootprint(ring)
	if err != nil {
		return nil, fmt.Errorf("burst %d: %w", index, err)
	}

	return burst.New(sw, index, b.Options, burst.Geometry{
		FirstLineDelta: burst.DeltaFromTimes(start, node),
		Footprint:      fp,
		Orbit:          orbit,
	})
}

func (b Builder) model(sw *safe.Swath) (Model, error) {
	if b.NewModel != nil {
		return b.NewModel(sw)
	}
	m, err := NewGridModel(sw)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func lineOffset(line int, azimuthTimeInterval float64) time.Duration {
	return safe.Seconds(float64(line) * azimuthTimeInterval)
}
