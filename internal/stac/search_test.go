package stac

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSearchRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/products?bbox=-92,-2,-90,0&datetime=2021-01-31T00:00:00Z/2021-02-01T00:00:00Z&polarization=vv,%20vh&platform=s1b&flight_direction=ascending&relative_orbit=174,175&limit=5", nil)

	req, err := ParseSearchRequest(r)
	require.NoError(t, err)

	assert.Equal(t, []float64{-92, -2, -90, 0}, req.BBox)
	assert.Equal(t, []string{"VV", "VH"}, req.Polarizations)
	assert.Equal(t, []string{"S1B"}, req.Platforms)
	assert.Equal(t, "ASCENDING", req.FlightDirection)
	assert.Equal(t, []int{174, 175}, req.RelativeOrbits)
	assert.Equal(t, 5, req.Limit)

	params, err := req.ToSearchParams()
	require.NoError(t, err)
	require.NotNil(t, params.Start)
	require.NotNil(t, params.End)
	assert.Equal(t, time.Date(2021, 1, 31, 0, 0, 0, 0, time.UTC), *params.Start)
	assert.Equal(t, time.Date(2021, 2, 1, 0, 0, 0, 0, time.UTC), *params.End)
	assert.Equal(t, 5, params.Limit)
}

func TestParseSearchRequest_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"short bbox", "bbox=1,2,3"},
		{"bad bbox value", "bbox=1,2,x,4"},
		{"bad orbit", "relative_orbit=abc"},
		{"bad limit", "limit=ten"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSearchRequest(httptest.NewRequest("GET", "/products?"+tt.query, nil))
			assert.Error(t, err)
		})
	}
}

func TestToSearchParams_Defaults(t *testing.T) {
	params, err := (&SearchRequest{}).ToSearchParams()
	require.NoError(t, err)
	assert.Equal(t, DefaultLimit, params.Limit)
	assert.Nil(t, params.Start)
	assert.Nil(t, params.End)
}

func TestToSearchParams_SingleInstant(t *testing.T) {
	params, err := (&SearchRequest{DateTime: "2021-01-31T15:15:57Z"}).ToSearchParams()
	require.NoError(t, err)
	require.NotNil(t, params.Start)
	assert.Equal(t, params.Start, params.End)
}

func TestSearchRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     *SearchRequest
		wantErr bool
	}{
		{"empty", &SearchRequest{}, false},
		{"nil", nil, true},
		{"inverted bbox", &SearchRequest{BBox: []float64{10, 0, 0, 10}}, true},
		{"latitude out of range", &SearchRequest{BBox: []float64{0, -95, 10, 10}}, true},
		{"limit too large", &SearchRequest{Limit: MaxLimit + 1}, true},
		{"negative limit", &SearchRequest{Limit: -1}, true},
		{"bad direction", &SearchRequest{FlightDirection: "NORTH"}, true},
		{"bad polarization", &SearchRequest{Polarizations: []string{"XX"}}, true},
		{"inverted interval", &SearchRequest{DateTime: "2021-02-01T00:00:00Z/2021-01-01T00:00:00Z"}, true},
		{"open interval", &SearchRequest{DateTime: "2021-01-01T00:00:00Z/.."}, false},
		{"not a date", &SearchRequest{DateTime: "yesterday"}, true},
		{"too many slashes", &SearchRequest{DateTime: "2021-01-01T00:00:00Z/../.."}, true},
		{"fully open", &SearchRequest{DateTime: "../.."}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSearchRequest_Validate_ReportsAll(t *testing.T) {
	err := (&SearchRequest{Limit: -1, FlightDirection: "NORTH", Polarizations: []string{"XX"}}).Validate()
	require.Error(t, err)
	for _, want := range []string{"limit", "flight_direction", `"XX"`} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestParseDatetime(t *testing.T) {
	day := time.Date(2021, 1, 31, 0, 0, 0, 0, time.UTC)

	start, end, err := ParseDatetime("../2021-01-31T00:00:00Z")
	require.NoError(t, err)
	assert.Nil(t, start)
	assert.Equal(t, day, *end)

	start, end, err = ParseDatetime("2021-01-31T00:00:00Z/")
	require.NoError(t, err)
	assert.Equal(t, day, *start)
	assert.Nil(t, end)

	start, end, err = ParseDatetime("..")
	require.NoError(t, err)
	assert.Nil(t, start)
	assert.Nil(t, end)
}
