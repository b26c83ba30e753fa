package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/s1bursts/internal/reconcile"
	"github.com/robert-malhotra/s1bursts/internal/testutil"
)

// product writes the zipped synthetic product to a temporary directory.
func product(t *testing.T) string {
	t.Helper()
	s := testutil.Small()
	data, err := s.Zip()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), s.Name+".zip")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// run executes the command line and returns what it printed.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	netrc := filepath.Join(t.TempDir(), "netrc")
	require.NoError(t, os.WriteFile(netrc, []byte("machine example.com login user password secret\n"), 0o600))

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append(args, "--netrc", netrc, "--log-level", "error"))
	err := cmd.Execute()
	return out.String(), err
}

func TestBursts_JSON(t *testing.T) {
	out, err := run(t, "bursts", product(t))
	require.NoError(t, err)

	var records []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &records))
	assert.Len(t, records, 18)
	for _, rec := range records {
		assert.NotNil(t, rec["byte_range"], "burst %v", rec["burst_id"])
	}
}

func TestBursts_STACCatalog(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "catalog")
	out, err := run(t, "bursts", "--format", "stac", "--pol", "vv", "--catalog", dir, product(t))
	require.NoError(t, err)

	var fc struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	assert.Len(t, fc.Features, 9)
	assert.FileExists(t, filepath.Join(dir, "catalog.json"))
}

func TestBursts_UMM(t *testing.T) {
	out, err := run(t, "bursts", "--format", "umm", "--swath", "2", product(t))
	require.NoError(t, err)

	var granules []json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(out), &granules))
	assert.Len(t, granules, 6)
}

func TestBursts_OutputFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bursts.json")
	out, err := run(t, "bursts", "--pol", "VH", "--output", path, product(t))
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var records []json.RawMessage
	require.NoError(t, json.Unmarshal(data, &records))
	assert.Len(t, records, 9)
}

func TestBursts_BadArguments(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no product", []string{"bursts"}},
		{"format", []string{"bursts", "--format", "xml", "x.zip"}},
		{"polarization", []string{"bursts", "--pol", "XX", "x.zip"}},
		{"swath", []string{"bursts", "--swath", "4", "x.zip"}},
		{"granule name", []string{"bursts", "not-a-granule"}},
		{"backend", []string{"bursts", "--backend", "s3", "x.zip"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestFetch_Local(t *testing.T) {
	s := testutil.Small()
	dir := t.TempDir()
	_, err := run(t, "fetch", "--pol", "VV", "--out", dir, product(t), "t174_372322_iw1")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "t174_372322_iw1_vv.slc"))
	require.NoError(t, err)
	assert.Len(t, data, s.Lines*s.Samples*8)

	header, err := os.ReadFile(filepath.Join(dir, "t174_372322_iw1_vv.hdr"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(header), "ENVI"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestFetch_UnknownBurst(t *testing.T) {
	_, err := run(t, "fetch", "--out", t.TempDir(), product(t), "t001_000001_iw1")
	assert.Error(t, err)

	_, err = run(t, "fetch", "--out", t.TempDir(), product(t), "t174_372322")
	assert.ErrorContains(t, err, "invalid burst id")
}

func TestReconcile(t *testing.T) {
	out, err := run(t, "reconcile", "--min-iou", "0", "--pol", "VV", product(t))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 9)
	for _, line := range lines {
		assert.True(t, strings.HasSuffix(line, ": ok"), line)
	}
}

func TestReconcile_Mismatch(t *testing.T) {
	// No footprint overlap passes an IoU above one.
	_, err := run(t, "reconcile", "--swath", "1", "--pol", "VV", "--min-iou", "1.5", product(t))
	assert.ErrorIs(t, err, reconcile.ErrReconciliationMismatch)
}

func TestSwathOfID(t *testing.T) {
	tests := []struct {
		id      string
		want    int
		wantErr bool
	}{
		{"t174_372322_iw1", 1, false},
		{"T174_372322_IW3", 3, false},
		{"t174_372322_iw4", 0, true},
		{"t174_372322", 0, true},
		{"t174_372322_iw12", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got, err := swathOfID(tt.id)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
