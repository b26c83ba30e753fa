package cmr_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/s1bursts/internal/backend"
	"github.com/robert-malhotra/s1bursts/internal/cmr"
	"github.com/robert-malhotra/s1bursts/internal/testutil"
)

func cmrServer(t *testing.T, check func(r *http.Request), granules ...cmr.Granule) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		resp := cmr.Results{Hits: len(granules)}
		for _, g := range granules {
			resp.Items = append(resp.Items, cmr.Result{UMM: g})
		}
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func slcGranule(s testutil.Scene) cmr.Granule {
	orbit := s.AbsoluteOrbit
	return cmr.Granule{
		GranuleUR:           s.Name + "-SLC",
		CollectionReference: cmr.CollectionReference{ShortName: "SENTINEL-1B_SLC", Version: "1"},
		RelatedUrls: []cmr.RelatedURL{
			{URL: s.URL(testutil.DatapoolURL) + ".md5", Type: "GET DATA"},
			{URL: s.URL(testutil.DatapoolURL), Type: "GET DATA"},
		},
		TemporalExtent: &cmr.TemporalExtent{
			RangeDateTime: &cmr.RangeDateTime{
				BeginningDateTime: "2021-01-31T15:15:55.000Z",
				EndingDateTime:    "2021-01-31T15:16:21.000Z",
			},
		},
		OrbitCalculatedSpatialDomains: []cmr.OrbitCalculatedSpatialDomain{{OrbitNumber: &orbit}},
		DataGranule: &cmr.DataGranule{
			ArchiveAndDistributionInformation: []cmr.ArchiveDistInfo{{Name: s.Name + ".zip", SizeInBytes: 4540000000}},
		},
		AdditionalAttributes: []cmr.AdditionalAttribute{
			{Name: cmr.AttrFlightDirection, Values: []string{"ASCENDING"}},
			{Name: cmr.AttrPathNumber, Values: []string{"174"}},
		},
	}
}

func TestLocator_Locate(t *testing.T) {
	s := testutil.Scenario()
	srv := cmrServer(t, func(r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, s.Name+"-SLC", q.Get("granule_ur"))
		assert.Equal(t, "SENTINEL-1B_SLC", q.Get("short_name"))
		assert.Equal(t, "ASF", q.Get("provider"))
	}, slcGranule(s))

	l := cmr.NewLocator(cmr.NewClient(srv.URL, "", 5*time.Second))
	var _ backend.Locator = l

	g, err := l.Locate(context.Background(), s.Name+".zip")
	require.NoError(t, err)
	assert.Equal(t, &backend.Granule{
		Name:            s.Name,
		URL:             s.URL(testutil.DatapoolURL),
		Platform:        "S1B",
		Start:           time.Date(2021, 1, 31, 15, 15, 55, 0, time.UTC),
		Stop:            time.Date(2021, 1, 31, 15, 16, 21, 0, time.UTC),
		FlightDirection: "ASCENDING",
		RelativeOrbit:   174,
		AbsoluteOrbit:   25400,
		Size:            4540000000,
	}, g)
}

func TestLocator_NotFound(t *testing.T) {
	srv := cmrServer(t, nil)
	l := cmr.NewLocator(cmr.NewClient(srv.URL, "", 5*time.Second))

	_, err := l.Locate(context.Background(), testutil.Scenario().Name)
	assert.ErrorIs(t, err, backend.ErrGranuleNotFound)

	_, err = l.Locate(context.Background(), "not-a-scene")
	assert.ErrorIs(t, err, backend.ErrInvalidGranuleName)
}

func TestLocator_Search(t *testing.T) {
	s := testutil.Scenario()
	start := time.Date(2021, 1, 31, 0, 0, 0, 0, time.UTC)
	broken := slcGranule(s)
	broken.RelatedUrls = nil

	srv := cmrServer(t, func(r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, []string{"SENTINEL-1A_SLC", "SENTINEL-1B_SLC"}, q["short_name"])
		assert.Equal(t, "-92.000000,-2.000000,-90.000000,0.000000", q.Get("bounding_box"))
		assert.Equal(t, "2021-01-31T00:00:00Z,", q.Get("temporal"))
		assert.Contains(t, q["attribute[]"], "string,BEAM_MODE,IW")
		assert.Contains(t, q["attribute[]"], "int,PATH_NUMBER,174")
		assert.Equal(t, "5", q.Get("page_size"))
	}, slcGranule(s), broken)

	l := cmr.NewLocator(cmr.NewClient(srv.URL, "", 5*time.Second))
	granules, err := l.Search(context.Background(), &backend.SearchParams{
		BBox:          []float64{-92, -2, -90, 0},
		Start:         &start,
		RelativeOrbit: []int{174},
		Limit:         5,
	})
	require.NoError(t, err)
	require.Len(t, granules, 1)
	assert.Equal(t, s.Name, granules[0].Name)
}

func TestLocator_Bursts(t *testing.T) {
	b := scenarioBurst(t, 0)
	g, err := cmr.BurstToGranule(b, "", produced)
	require.NoError(t, err)

	srv := cmrServer(t, func(r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "S1_SLC_BURSTS", q.Get("short_name"))
		assert.Equal(t, []string{"string,OPERA_ID,t174_372322_iw1"}, q["attribute[]"])
	}, *g)

	l := cmr.NewLocator(cmr.NewClient(srv.URL, "", 5*time.Second))
	bursts, err := l.Bursts(context.Background(), []string{"t174_372322_iw1"}, nil, nil)
	require.NoError(t, err)
	require.Len(t, bursts, 1)
	assert.Equal(t, "t174_372322_iw1", bursts[0].ID)
	assert.Equal(t, b.URLPath, bursts[0].URLPath)
}
