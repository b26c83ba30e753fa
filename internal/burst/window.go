package burst

import (
	"fmt"

	"github.com/robert-malhotra/s1bursts/internal/safe"
)

// Shape is the size of the burst raster.
type Shape struct {
	Lines   int `json:"lines"`
	Samples int `json:"samples"`
}

// Window is the valid region of a burst raster. The bounds are the line and
// sample indices read from the annotation, so LastLine and LastSample are
// themselves valid pixels. Lines and Samples are the differences of the
// bounds, the extent used for window byte lengths.
type Window struct {
	FirstLine   int `json:"first_valid_line"`
	LastLine    int `json:"last_valid_line"`
	FirstSample int `json:"first_valid_sample"`
	LastSample  int `json:"last_valid_sample"`
}

// Lines returns the number of valid lines.
func (w Window) Lines() int { return w.LastLine - w.FirstLine }

// Samples returns the number of valid samples per line.
func (w Window) Samples() int { return w.LastSample - w.FirstSample }

// Within reports whether the window lies strictly inside a raster of the
// given shape.
func (w Window) Within(s Shape) bool {
	return w.FirstLine > 0 && w.FirstLine < w.LastLine && w.LastLine <= s.Lines &&
		w.FirstSample > 0 && w.FirstSample < w.LastSample && w.LastSample <= s.Samples
}

// ValidWindow derives the valid window from the per-line first and last valid
// sample arrays of a burst. A line is valid when its first valid sample is not
// negative; the sample bounds are the tighter of those at the first and last
// valid line.
func ValidWindow(firstValid, lastValid []int) (Window, error) {
	if len(firstValid) == 0 || len(firstValid) != len(lastValid) {
		return Window{}, fmt.Errorf("%w: valid sample arrays of length %d and %d", ErrGeometryResolution, len(firstValid), len(lastValid))
	}

	first, count := -1, 0
	for i, v := range firstValid {
		if v < 0 {
			continue
		}
		if first < 0 {
			first = i
		}
		count++
	}
	if first < 0 {
		return Window{}, fmt.Errorf("%w: burst has no valid lines", ErrGeometryResolution)
	}
	last := first + count - 1

	return Window{
		FirstLine:   first,
		LastLine:    last,
		FirstSample: max(firstValid[first], firstValid[last]),
		LastSample:  min(lastValid[first], lastValid[last]),
	}, nil
}

// SwathWindow returns the valid window of burst index of a swath with the
// edge line margin applied to the first and last burst.
func SwathWindow(sw *safe.Swath, index int, opts Options) (Window, error) {
	if index < 0 || index >= sw.BurstCount() {
		return Window{}, fmt.Errorf("%w: index %d of %d in %s %s", ErrBurstNotFound, index, sw.BurstCount(), sw.Name, sw.Polarization)
	}
	rec := sw.Bursts[index]
	w, err := ValidWindow(rec.FirstValidSample, rec.LastValidSample)
	if err != nil {
		return Window{}, fmt.Errorf("burst %d: %w", index, err)
	}
	if index == 0 {
		w.FirstLine += opts.EdgeLineMargin
	}
	if index == sw.BurstCount()-1 {
		w.LastLine -= opts.EdgeLineMargin
	}

	shape := Shape{Lines: sw.LinesPerBurst, Samples: sw.SamplesPerBurst}
	if !w.Within(shape) {
		return Window{}, fmt.Errorf("%w: burst %d window %+v outside raster %dx%d", ErrGeometryResolution, index, w, shape.Lines, shape.Samples)
	}
	return w, nil
}
