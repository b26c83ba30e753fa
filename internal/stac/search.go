package stac

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/robert-malhotra/s1bursts/internal/backend"
)

// DefaultLimit is the number of products returned when no limit is given.
const DefaultLimit = 10

// MaxLimit is the largest accepted limit.
const MaxLimit = 250

// SearchRequest represents a product search request.
type SearchRequest struct {
	BBox            []float64 `json:"bbox,omitempty"`
	DateTime        string    `json:"datetime,omitempty"`
	Polarizations   []string  `json:"polarizations,omitempty"`
	FlightDirection string    `json:"flight_direction,omitempty"`
	RelativeOrbits  []int     `json:"relative_orbits,omitempty"`
	Platforms       []string  `json:"platforms,omitempty"`
	Limit           int       `json:"limit,omitempty"`
}

// ParseSearchRequest parses a product search request from GET query parameters
func ParseSearchRequest(r *http.Request) (*SearchRequest, error) {
	query := r.URL.Query()
	req := &SearchRequest{}

	// Parse bbox parameter
	if bboxStr := query.Get("bbox"); bboxStr != "" {
		bboxParts := strings.Split(bboxStr, ",")
		if len(bboxParts) != 4 {
			return nil, fmt.Errorf("bbox must have 4 coordinates, got %d", len(bboxParts))
		}

		bbox := make([]float64, len(bboxParts))
		for i, part := range bboxParts {
			val, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
			if err != nil {
				return nil, fmt.Errorf("invalid bbox coordinate at position %d: %w", i, err)
			}
			bbox[i] = val
		}
		req.BBox = bbox
	}

	// Parse datetime parameter
	if datetime := query.Get("datetime"); datetime != "" {
		req.DateTime = datetime
	}

	req.Polarizations = splitList(query.Get("polarization"), strings.ToUpper)
	req.Platforms = splitList(query.Get("platform"), strings.ToUpper)
	req.FlightDirection = strings.ToUpper(strings.TrimSpace(query.Get("flight_direction")))

	// Parse relative_orbit parameter (comma-separated list)
	for _, s := range splitList(query.Get("relative_orbit"), nil) {
		orbit, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("invalid relative_orbit parameter: %w", err)
		}
		req.RelativeOrbits = append(req.RelativeOrbits, orbit)
	}

	// Parse limit parameter
	if limitStr := query.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return nil, fmt.Errorf("invalid limit parameter: %w", err)
		}
		req.Limit = limit
	}

	return req, nil
}

func splitList(s string, normalize func(string) string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if normalize != nil {
			p = normalize(p)
		}
		out = append(out, p)
	}
	return out
}

// ToSearchParams validates the request and converts it to locator params.
func (req *SearchRequest) ToSearchParams() (*backend.SearchParams, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	params := &backend.SearchParams{
		BBox:            req.BBox,
		Polarization:    req.Polarizations,
		FlightDirection: req.FlightDirection,
		RelativeOrbit:   req.RelativeOrbits,
		Platform:        req.Platforms,
		Limit:           req.Limit,
	}
	if params.Limit == 0 {
		params.Limit = DefaultLimit
	}

	if req.DateTime != "" {
		// Validate has already parsed it once.
		params.Start, params.End, _ = ParseDatetime(req.DateTime)
	}
	return params, nil
}
