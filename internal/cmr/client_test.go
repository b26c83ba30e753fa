package cmr

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"strconv"
	"testing"
	"time"
)

func TestQuery_Values(t *testing.T) {
	tests := []struct {
		name  string
		query Query
		want  url.Values
	}{
		{
			name:  "defaults",
			query: Query{},
			want: url.Values{
				"page_size": {"250"},
				"sort_key":  {"-start_date"},
			},
		},
		{
			name: "scene lookup",
			query: Query{
				ShortNames: []string{"SENTINEL-1B_SLC"},
				GranuleURs: []string{"S1B_SCENE-SLC"},
				PageSize:   1,
			},
			want: url.Values{
				"short_name": {"SENTINEL-1B_SLC"},
				"granule_ur": {"S1B_SCENE-SLC"},
				"page_size":  {"1"},
				"sort_key":   {"-start_date"},
			},
		},
		{
			name: "area and attributes",
			query: Query{
				BoundingBox: "-180,-90,180,90",
				Temporal:    "2020-01-01T00:00:00Z,",
				Attributes:  []AttributeFilter{StringAttr(AttrBeamMode, "IW"), IntAttr(AttrPathNumber, 174)},
				PageSize:    5000,
				SortKey:     "start_date",
			},
			want: url.Values{
				"bounding_box": {"-180,-90,180,90"},
				"temporal":     {"2020-01-01T00:00:00Z,"},
				"attribute[]":  {"string,BEAM_MODE,IW", "int,PATH_NUMBER,174"},
				"page_size":    {"2000"},
				"sort_key":     {"start_date"},
			},
		},
		{
			name: "any of several burst ids",
			query: Query{
				ShortNames:   []string{BurstShortName},
				Attributes:   []AttributeFilter{StringAttr(AttrOperaID, "t174_372322_iw1"), StringAttr(AttrOperaID, "t174_372323_iw1")},
				AnyAttribute: true,
			},
			want: url.Values{
				"short_name":             {"S1_SLC_BURSTS"},
				"attribute[]":            {"string,OPERA_ID,t174_372322_iw1", "string,OPERA_ID,t174_372323_iw1"},
				"options[attribute][or]": {"true"},
				"page_size":              {"250"},
				"sort_key":               {"-start_date"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.query.Values(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Values() = %v, want %v", got, tt.want)
			}
		})
	}
}

// pagedServer serves urs in pages of size, chaining pages through the
// search-after header.
func pagedServer(t *testing.T, size int, urs ...string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/granules.umm_json" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("provider"); got != "ASF" {
			t.Errorf("expected provider ASF, got %s", got)
		}

		offset := 0
		if after := r.Header.Get(searchAfterHeader); after != "" {
			offset, _ = strconv.Atoi(after)
		}
		end := min(offset+size, len(urs))

		results := Results{Hits: len(urs)}
		for _, ur := range urs[offset:end] {
			results.Items = append(results.Items, Result{
				Meta: Meta{ConceptID: "G-" + ur, ProviderID: "ASF"},
				UMM:  Granule{GranuleUR: ur},
			})
		}
		if end < len(urs) {
			w.Header().Set(searchAfterHeader, strconv.Itoa(end))
		}
		w.Header().Set("Content-Type", "application/vnd.nasa.cmr.umm_results+json")
		json.NewEncoder(w).Encode(results)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestClient_Granules(t *testing.T) {
	server := pagedServer(t, 2, "a", "b", "c")
	client := NewClient(server.URL+"/", "", 30*time.Second)

	page, err := client.Granules(context.Background(), &Query{PageSize: 2})
	if err != nil {
		t.Fatalf("Granules() error = %v", err)
	}
	if page.Hits != 3 || len(page.Granules) != 2 {
		t.Errorf("Granules() hits = %d, returned = %d, want 3 and 2", page.Hits, len(page.Granules))
	}
	if page.SearchAfter != "2" {
		t.Errorf("Granules() SearchAfter = %q, want 2", page.SearchAfter)
	}

	next, err := client.Granules(context.Background(), &Query{PageSize: 2, SearchAfter: page.SearchAfter})
	if err != nil {
		t.Fatalf("Granules() error = %v", err)
	}
	if len(next.Granules) != 1 || next.Granules[0].GranuleUR != "c" || next.SearchAfter != "" {
		t.Errorf("unexpected last page: %+v", next)
	}
}

func TestClient_All(t *testing.T) {
	server := pagedServer(t, 2, "a", "b", "c", "d", "e")
	client := NewClient(server.URL, "ASF", 30*time.Second)

	all, err := client.All(context.Background(), Query{PageSize: 2}, 0)
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	if len(all) != 5 || all[4].GranuleUR != "e" {
		t.Errorf("All() returned %d granules, want 5", len(all))
	}

	limited, err := client.All(context.Background(), Query{PageSize: 2}, 3)
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	if len(limited) != 3 || limited[2].GranuleUR != "c" {
		t.Errorf("All() with limit returned %d granules, want 3", len(limited))
	}
}

func TestClient_Granule(t *testing.T) {
	server := pagedServer(t, 1, "S1B_SCENE-SLC")
	client := NewClient(server.URL, "ASF", 30*time.Second)

	g, err := client.Granule(context.Background(), "SENTINEL-1B_SLC", "S1B_SCENE-SLC")
	if err != nil {
		t.Fatalf("Granule() error = %v", err)
	}
	if g.GranuleUR != "S1B_SCENE-SLC" {
		t.Errorf("Granule() GranuleUR = %s", g.GranuleUR)
	}

	empty := pagedServer(t, 1)
	_, err = NewClient(empty.URL, "ASF", 30*time.Second).Granule(context.Background(), "SENTINEL-1B_SLC", "NONEXISTENT")
	if !errors.Is(err, ErrGranuleNotFound) {
		t.Errorf("Granule() error = %v, want ErrGranuleNotFound", err)
	}
}

func TestClient_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad attribute", http.StatusBadRequest)
	}))
	defer server.Close()

	_, err := NewClient(server.URL, "ASF", 30*time.Second).Granules(context.Background(), &Query{})
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StatusError, got %v", err)
	}
	if se.StatusCode != http.StatusBadRequest {
		t.Errorf("StatusCode = %d, want 400", se.StatusCode)
	}
}

func TestGranule_End(t *testing.T) {
	g := &Granule{TemporalExtent: &TemporalExtent{
		RangeDateTime: &RangeDateTime{
			BeginningDateTime: "2021-01-31T15:15:55Z",
			EndingDateTime:    "2021-01-31T15:16:21.5Z",
		},
	}}
	end, err := g.End()
	if err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if want := time.Date(2021, 1, 31, 15, 16, 21, 5e8, time.UTC); !end.Equal(want) {
		t.Errorf("End() = %v, want %v", end, want)
	}

	g.TemporalExtent.RangeDateTime.EndingDateTime = "yesterday"
	if _, err := g.End(); err == nil {
		t.Error("End() accepted an invalid time")
	}
}
