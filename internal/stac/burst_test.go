package stac_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/s1bursts/internal/burst"
	"github.com/robert-malhotra/s1bursts/internal/reconcile"
	"github.com/robert-malhotra/s1bursts/internal/stac"
	"github.com/robert-malhotra/s1bursts/internal/testutil"
)

func scenarioBurst(t *testing.T, pol string, swath, index int) *burst.Metadata {
	t.Helper()
	sw := testutil.Scenario().Swath(t, pol, swath)
	b, err := burst.AnnotationBuilder{}.Build(sw, index)
	require.NoError(t, err)
	return b
}

func TestBurstToItem(t *testing.T) {
	b := scenarioBurst(t, "VV", 1, 0)

	item, err := stac.BurstToItem(b, "")
	require.NoError(t, err)

	assert.Equal(t, "S1_SLC_20210131T151557_372322_IW1", item.Id)
	assert.Equal(t, b.StackID, item.Collection)
	assert.Equal(t, stac.DefaultVersion, item.Version)
	bbox := b.Footprint.BBox()
	assert.Equal(t, bbox[:], item.Bbox)

	p := item.Properties
	assert.Equal(t, "2021-01-31T15:15:57.086587Z", p["datetime"])
	assert.Equal(t, "sentinel-1b", p["platform"])
	assert.Equal(t, "t174_372322_iw1", p["opera_id"])
	assert.Equal(t, "ascending", p["sat:orbit_state"])
	assert.Equal(t, 174, p["sat:relative_orbit"])
	assert.Equal(t, "2016-025A", p["sat:platform_international_designator"])
	assert.Equal(t, []string{"VV"}, p["sar:polarizations"])
	assert.Equal(t, "SLC-BURST", p["sar:product_type"])
	assert.InDelta(t, 5.405, p["sar:center_frequency"], 1e-6)

	asset := item.Assets["VV"]
	require.NotNil(t, asset)
	assert.Equal(t, b.URLPath, asset.Href)
	assert.Equal(t, stac.MediaTypeGeoTIFF, asset.Type)
	assert.Equal(t, []string{"data"}, asset.Roles)

	fields := p["burst:assets"].(map[string]stac.AssetFields)["VV"]
	assert.Equal(t, 1502, fields.Lines)
	assert.Equal(t, 21209, fields.Samples)
	assert.Equal(t, "CInt16", fields.PixelFormat)
	assert.Zero(t, fields.ByteLength)
	assert.Equal(t, b.SafeName+".SAFE/"+b.MeasurementPath, fields.InteriorPath)
}

func TestBurstToItem_RequiresStackID(t *testing.T) {
	_, err := stac.BurstToItem(&burst.Metadata{ID: "t174_372322_iw1"}, "")
	assert.Error(t, err)
}

func TestItems_MergesPolarizations(t *testing.T) {
	vv := scenarioBurst(t, "VV", 1, 0)
	vh := scenarioBurst(t, "VH", 1, 0)
	next := scenarioBurst(t, "VV", 1, 1)

	items, err := stac.Items([]*burst.Metadata{vv, next, vh}, "")
	require.NoError(t, err)
	require.Len(t, items, 2)

	merged := items[0]
	assert.Equal(t, stac.ItemID(vv), merged.Id)
	assert.Len(t, merged.Assets, 2)
	assert.Equal(t, []string{"VH", "VV"}, merged.Properties["sar:polarizations"])
	assert.Len(t, merged.Properties["burst:assets"], 2)
	assert.Equal(t, stac.ItemID(next), items[1].Id)
}

func TestItems_DuplicateAsset(t *testing.T) {
	vv := scenarioBurst(t, "VV", 1, 0)
	_, err := stac.Items([]*burst.Metadata{vv, vv.Clone()}, "")
	assert.Error(t, err)
}

func TestStacks(t *testing.T) {
	var bursts []*burst.Metadata
	for _, swath := range []int{1, 2} {
		for i := 0; i < 2; i++ {
			bursts = append(bursts, scenarioBurst(t, "VV", swath, i))
		}
	}
	items, err := stac.Items(bursts, "")
	require.NoError(t, err)

	stacks, err := stac.Stacks(items, "")
	require.NoError(t, err)
	require.Len(t, stacks, 4)

	for i := 1; i < len(stacks); i++ {
		assert.Less(t, stacks[i-1].Collection.Id, stacks[i].Collection.Id)
	}
	for _, s := range stacks {
		require.Len(t, s.Items, 1)
		coll := s.Collection
		assert.Equal(t, "Sentinel-1 Burst Stack "+coll.Id, coll.Description)
		assert.Equal(t, []string{"ascending"}, coll.Summaries["sat:orbit_state"])
		assert.Equal(t, [][]float64{s.Items[0].Bbox}, coll.Extent.Spatial.Bbox)
		start := s.Items[0].Properties["datetime"]
		assert.Equal(t, [][]any{{start, start}}, coll.Extent.Temporal.Interval)
	}
}

func TestStacks_MissingStackID(t *testing.T) {
	item := stac.NewItem("x", "", "")
	_, err := stac.Stacks([]*stac.Item{item}, "")
	assert.ErrorIs(t, err, stac.ErrNotBurstItem)
}

func TestItemToBurst_RoundTrip(t *testing.T) {
	s := testutil.Scenario()
	sw := s.Swath(t, "VH", 3)
	r := reconcile.New()

	for i := 0; i < s.Bursts; i++ {
		b, err := burst.AnnotationBuilder{}.Build(sw, i)
		require.NoError(t, err)
		rng := burst.ByteRange{
			Offset:   b.AnnotationByteOffset + 4096,
			Length:   b.AnnotationByteLength,
			Segments: []burst.Segment{{Offset: b.AnnotationByteOffset + 4096, Length: b.AnnotationByteLength}},
			Format:   b.Format,
			Lines:    b.Shape.Lines,
			Samples:  b.Shape.Samples,
		}
		require.NoError(t, b.AttachRange(rng))
		b.URLPath = s.URL("https://datapool.asf.alaska.edu")

		item, err := stac.BurstToItem(b, "")
		require.NoError(t, err)

		// Through JSON, as the item would be published
		raw, err := json.Marshal(item)
		require.NoError(t, err)
		var decoded stac.Item
		require.NoError(t, json.Unmarshal(raw, &decoded))

		back, err := stac.ItemToBurst(&decoded, "vh")
		require.NoError(t, err)

		assert.NoError(t, r.Compare(b, back), "burst %d", i)
		assert.Empty(t, back.TiffPath)
		assert.Equal(t, b.URLPath, back.URLPath)
		assert.Equal(t, b.Footprint.Center, back.Footprint.Center)

		got, ok := back.Range()
		require.True(t, ok)
		assert.Equal(t, rng, got)
	}
}

func TestItemToBurst_Errors(t *testing.T) {
	b := scenarioBurst(t, "VV", 1, 0)

	t.Run("missing asset", func(t *testing.T) {
		item, err := stac.BurstToItem(b, "")
		require.NoError(t, err)
		_, err = stac.ItemToBurst(item, "HH")
		assert.ErrorIs(t, err, stac.ErrNotBurstItem)
	})

	t.Run("missing property", func(t *testing.T) {
		item, err := stac.BurstToItem(b, "")
		require.NoError(t, err)
		delete(item.Properties, "wavelength")
		_, err = stac.ItemToBurst(item, "VV")
		assert.ErrorIs(t, err, stac.ErrNotBurstItem)
	})

	t.Run("missing burst assets", func(t *testing.T) {
		item, err := stac.BurstToItem(b, "")
		require.NoError(t, err)
		delete(item.Properties, "burst:assets")
		_, err = stac.ItemToBurst(item, "VV")
		assert.ErrorIs(t, err, stac.ErrNotBurstItem)
	})

	t.Run("malformed swath", func(t *testing.T) {
		item, err := stac.BurstToItem(b, "")
		require.NoError(t, err)
		item.Properties["swath"] = "IW?"
		_, err = stac.ItemToBurst(item, "VV")
		assert.ErrorIs(t, err, stac.ErrNotBurstItem)
		assert.ErrorContains(t, err, "swath")
	})
}

func TestItemToBurst_RangeFromAnnotation(t *testing.T) {
	b := scenarioBurst(t, "VV", 2, 3)
	b.MeasurementOffset = 4096

	item, err := stac.BurstToItem(b, "")
	require.NoError(t, err)
	raw, err := json.Marshal(item)
	require.NoError(t, err)
	var decoded stac.Item
	require.NoError(t, json.Unmarshal(raw, &decoded))

	back, err := stac.ItemToBurst(&decoded, "VV")
	require.NoError(t, err)
	assert.Equal(t, int64(4096), back.MeasurementOffset)

	rng, ok := back.Range()
	require.True(t, ok)
	assert.Equal(t, 4096+b.AnnotationByteOffset, rng.Offset)
	assert.Equal(t, int64(b.Shape.Lines)*int64(b.Shape.Samples)*4, rng.Length)

	// Without either offset the item carries no range.
	b.MeasurementOffset = 0
	item, err = stac.BurstToItem(b, "")
	require.NoError(t, err)
	back, err = stac.ItemToBurst(item, "VV")
	require.NoError(t, err)
	_, ok = back.Range()
	assert.False(t, ok)
}

func TestBurstCatalog_Write(t *testing.T) {
	bursts := []*burst.Metadata{
		scenarioBurst(t, "VV", 1, 0),
		scenarioBurst(t, "VH", 1, 0),
		scenarioBurst(t, "VV", 2, 0),
	}
	items, err := stac.Items(bursts, "")
	require.NoError(t, err)
	cat, err := stac.NewBurstCatalog(items, "")
	require.NoError(t, err)
	require.Len(t, cat.Stacks, 2)

	dir := t.TempDir()
	require.NoError(t, cat.Write(dir))

	var root struct {
		ID    string `json:"id"`
		Links []struct {
			Rel  string `json:"rel"`
			Href string `json:"href"`
		} `json:"links"`
	}
	raw, err := os.ReadFile(filepath.Join(dir, "catalog.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &root))
	assert.Equal(t, stac.CatalogID, root.ID)

	var children int
	for _, l := range root.Links {
		assert.NotEqual(t, "self", l.Rel)
		if l.Rel == "child" {
			children++
			assert.FileExists(t, filepath.Join(dir, l.Href))
		}
	}
	assert.Equal(t, 2, children)

	for _, s := range cat.Stacks {
		for _, item := range s.Items {
			assert.FileExists(t, filepath.Join(dir, s.Collection.Id, item.Id, item.Id+".json"))
		}
	}
}
