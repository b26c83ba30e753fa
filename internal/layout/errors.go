// Package layout locates burst samples inside a zipped SAFE container: the
// ZIP local header that precedes each measurement, the TIFF strips of the
// measurement raster, and the byte segments that hold a burst's rows.
package layout

import "errors"

// ErrRangeResolution is returned when a computed byte range would not match
// the raster layout it was derived from, for example when the measurement is
// compressed, tiled or sized differently from its annotation.
var ErrRangeResolution = errors.New("range resolution failed")
