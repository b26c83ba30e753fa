package backend

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/robert-malhotra/s1bursts/internal/asf"
)

const scene = "S1B_IW_SLC__1SDV_20210131T151555_20210131T151621_025400_03067B_415D"

// asfServer serves a fixed search response and records the last query.
func asfServer(t *testing.T, body string, query *url.Values) *ASFLocator {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if query != nil {
			*query = r.URL.Query()
		}
		w.Header().Set("Content-Type", "application/geo+json")
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return NewASFLocator(asf.NewClient(server.URL, 5*time.Second))
}

const sceneResponse = `{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{"sceneName":"` + scene + `","fileID":"` + scene + `-METADATA_SLC","processingLevel":"METADATA_SLC","url":"https://example.com/meta.iso.xml"}},
 {"type":"Feature","properties":{"sceneName":"` + scene + `","fileID":"` + scene + `-SLC","processingLevel":"SLC",
  "flightDirection":"ASCENDING","absoluteOrbit":25400,"pathNumber":174,
  "startTime":"2021-01-31T15:15:55.000000","stopTime":"2021-01-31T15:16:21.000000",
  "url":"https://datapool.asf.alaska.edu/SLC/SB/` + scene + `.zip","bytes":"4529217381"}}
]}`

func TestASFLocator_Locate(t *testing.T) {
	var query url.Values
	loc := asfServer(t, sceneResponse, &query)

	g, err := loc.Locate(context.Background(), scene+".zip")
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}

	if query.Get("granule_list") != scene {
		t.Errorf("Expected granule_list %s, got %s", scene, query.Get("granule_list"))
	}
	if g.URL != "https://datapool.asf.alaska.edu/SLC/SB/"+scene+".zip" {
		t.Errorf("Unexpected URL %s", g.URL)
	}
	if g.Platform != "S1B" || g.RelativeOrbit != 174 || g.AbsoluteOrbit != 25400 {
		t.Errorf("Unexpected granule %+v", g)
	}
	if g.Size != 4529217381 {
		t.Errorf("Expected size 4529217381, got %d", g.Size)
	}
	if want := time.Date(2021, 1, 31, 15, 15, 55, 0, time.UTC); !g.Start.Equal(want) {
		t.Errorf("Expected start %s, got %s", want, g.Start)
	}
}

func TestASFLocator_Locate_Errors(t *testing.T) {
	loc := asfServer(t, `{"type":"FeatureCollection","features":[]}`, nil)

	if _, err := loc.Locate(context.Background(), scene); !errors.Is(err, ErrGranuleNotFound) {
		t.Errorf("Expected ErrGranuleNotFound, got %v", err)
	}
	if _, err := loc.Locate(context.Background(), "LC08_L1TP"); !errors.Is(err, ErrInvalidGranuleName) {
		t.Errorf("Expected ErrInvalidGranuleName, got %v", err)
	}
}

func TestASFLocator_Search(t *testing.T) {
	var query url.Values
	loc := asfServer(t, sceneResponse, &query)

	start := time.Date(2021, 1, 31, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	granules, err := loc.Search(context.Background(), &SearchParams{
		BBox:            []float64{-92, -2, -90.5, 0},
		Start:           &start,
		End:             &end,
		Polarization:    []string{"VV+VH"},
		FlightDirection: "ASCENDING",
		RelativeOrbit:   []int{174},
		Platform:        []string{"S1B"},
		Limit:           25,
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(granules) != 1 || granules[0].Name != scene {
		t.Fatalf("Expected the SLC product only, got %+v", granules)
	}

	want := map[string]string{
		"intersectsWith":  "POLYGON((-92 -2,-90.5 -2,-90.5 0,-92 0,-92 -2))",
		"start":           "2021-01-31T00:00:00Z",
		"end":             "2021-02-01T00:00:00Z",
		"platform":        "Sentinel-1B",
		"polarization":    "VV+VH",
		"flightDirection": "ASCENDING",
		"relativeOrbit":   "174",
		"maxResults":      "25",
		"processingLevel": "SLC",
	}
	for k, v := range want {
		if got := query.Get(k); got != v {
			t.Errorf("Expected %s=%s, got %q", k, v, got)
		}
	}
}

func TestToASFQuery_InvalidBBox(t *testing.T) {
	tests := []struct {
		name string
		bbox []float64
	}{
		{"too few values", []float64{1, 2, 3}},
		{"inverted latitudes", []float64{-92, 1, -90, -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := toASFQuery(&SearchParams{BBox: tt.bbox}); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}
