package stac

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Validate reports every problem with the request at once.
func (req *SearchRequest) Validate() error {
	if req == nil {
		return errors.New("search request cannot be nil")
	}

	var errs []error
	if len(req.BBox) > 0 {
		if err := validateBBox(req.BBox); err != nil {
			errs = append(errs, fmt.Errorf("invalid bbox: %w", err))
		}
	}
	if req.DateTime != "" {
		if _, _, err := ParseDatetime(req.DateTime); err != nil {
			errs = append(errs, fmt.Errorf("invalid datetime: %w", err))
		}
	}
	if req.Limit < 0 || req.Limit > MaxLimit {
		errs = append(errs, fmt.Errorf("limit must be between 0 and %d, got %d", MaxLimit, req.Limit))
	}
	if d := req.FlightDirection; d != "" && d != "ASCENDING" && d != "DESCENDING" {
		errs = append(errs, fmt.Errorf("flight_direction must be ASCENDING or DESCENDING, got %q", d))
	}
	for _, pol := range req.Polarizations {
		switch pol {
		case "VV", "VH", "HH", "HV":
		default:
			errs = append(errs, fmt.Errorf("unsupported polarization %q", pol))
		}
	}
	return errors.Join(errs...)
}

// validateBBox checks a west,south,east,north box. Boxes crossing the
// antimeridian are not supported by the locators and are rejected.
func validateBBox(bbox []float64) error {
	if len(bbox) != 4 {
		return fmt.Errorf("bbox must have 4 coordinates, got %d", len(bbox))
	}
	west, south, east, north := bbox[0], bbox[1], bbox[2], bbox[3]

	for _, lon := range []float64{west, east} {
		if lon < -180 || lon > 180 {
			return fmt.Errorf("longitude %g outside [-180, 180]", lon)
		}
	}
	for _, lat := range []float64{south, north} {
		if lat < -90 || lat > 90 {
			return fmt.Errorf("latitude %g outside [-90, 90]", lat)
		}
	}
	if west > east {
		return fmt.Errorf("west %g is east of %g", west, east)
	}
	if south > north {
		return fmt.Errorf("south %g is north of %g", south, north)
	}
	return nil
}

// ParseDatetime parses an RFC 3339 instant or a start/end interval where
// either side may be ".." or empty. An instant is returned as a zero length
// interval; an open side is nil.
func ParseDatetime(dt string) (start, end *time.Time, err error) {
	dt = strings.TrimSpace(dt)
	if dt == "" {
		return nil, nil, errors.New("datetime cannot be empty")
	}

	lo, hi, isInterval := strings.Cut(dt, "/")
	if !isInterval {
		if dt == ".." {
			return nil, nil, nil
		}
		t, err := time.Parse(time.RFC3339, dt)
		if err != nil {
			return nil, nil, fmt.Errorf("expected RFC 3339: %w", err)
		}
		return &t, &t, nil
	}
	if strings.Contains(hi, "/") {
		return nil, nil, fmt.Errorf("expected start/end, got %q", dt)
	}

	if start, err = openEnded(lo); err != nil {
		return nil, nil, fmt.Errorf("invalid start: %w", err)
	}
	if end, err = openEnded(hi); err != nil {
		return nil, nil, fmt.Errorf("invalid end: %w", err)
	}
	if start != nil && end != nil && start.After(*end) {
		return nil, nil, fmt.Errorf("start %s is after end %s", start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return start, end, nil
}

func openEnded(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == ".." {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
