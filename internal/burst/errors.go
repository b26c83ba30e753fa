package burst

import "errors"

var (
	// ErrGeometryResolution is returned when a burst's timing, window or
	// footprint cannot be derived. It is fatal to that burst only.
	ErrGeometryResolution = errors.New("geometry resolution failed")

	// ErrBurstNotFound is returned for a burst index outside the swath.
	ErrBurstNotFound = errors.New("burst not found")

	// ErrAlreadyAttached is returned when a byte range or array is attached
	// to a burst a second time.
	ErrAlreadyAttached = errors.New("already attached")
)
