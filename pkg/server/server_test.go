package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/s1bursts/internal/testutil"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// emptyNetrc writes a credentials file with no matching machine.
func emptyNetrc(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "netrc")
	require.NoError(t, os.WriteFile(path, []byte("machine example.com login user password secret\n"), 0o600))
	return path
}

func datapool(t *testing.T) *httptest.Server {
	t.Helper()
	data, err := testutil.Small().Zip()
	require.NoError(t, err)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/SLC/SB/"+testutil.Small().Name+".zip" {
			http.NotFound(w, r)
			return
		}
		http.ServeContent(w, r, "product.zip", time.Time{}, bytes.NewReader(data))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOptions_Defaults(t *testing.T) {
	cfg := Options{BaseURL: "http://localhost:8080"}.config()

	assert.Equal(t, "datapool", cfg.Backend.Type)
	assert.Equal(t, "https://datapool.asf.alaska.edu", cfg.Datapool.BaseURL)
	assert.Equal(t, "ASF", cfg.CMR.Provider)
	assert.Equal(t, 4, cfg.Fetch.Concurrency)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 512, cfg.Cache.MaxSizeMB)
	require.NoError(t, cfg.Validate())
}

func TestOptions_CacheDisabled(t *testing.T) {
	cfg := Options{BaseURL: "http://localhost:8080", CacheSizeMB: -1}.config()

	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, 0, cfg.Cache.MaxSizeMB)
}

func TestNew_RequiresBaseURL(t *testing.T) {
	_, err := New(context.Background(), Options{Logger: quietLogger()})
	assert.Error(t, err)
}

func TestNew_UnknownBackend(t *testing.T) {
	_, err := New(context.Background(), Options{
		BaseURL: "http://localhost:8080",
		Backend: "s3",
		Logger:  quietLogger(),
	})
	assert.Error(t, err)
}

func TestNewLocator(t *testing.T) {
	for _, backend := range []BackendType{BackendDatapool, BackendASF, BackendCMR} {
		t.Run(string(backend), func(t *testing.T) {
			cfg := Options{BaseURL: "http://localhost:8080", Backend: backend}.config()
			loc, err := NewLocator(cfg, quietLogger())
			require.NoError(t, err)
			assert.Equal(t, string(backend), loc.Name())
		})
	}
}

func TestNewPipeline_MissingNetrc(t *testing.T) {
	cfg := Options{BaseURL: "http://localhost:8080"}.config()
	cfg.EDL.Netrc = filepath.Join(t.TempDir(), "absent")

	_, err := NewPipeline(context.Background(), cfg, quietLogger())
	assert.Error(t, err)
}

func TestServer_EndToEnd(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := datapool(t)
	srv, err := New(ctx, Options{
		BaseURL:     "http://localhost:8080",
		DatapoolURL: pool.URL,
		Netrc:       emptyNetrc(t),
		Logger:      quietLogger(),
	})
	require.NoError(t, err)
	defer srv.Close()

	api := httptest.NewServer(srv.Router())
	defer api.Close()

	resp, err := http.Get(api.URL + "/health")
	require.NoError(t, err)
	var health map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	resp.Body.Close()
	assert.Equal(t, "datapool", health["backend"])

	// Twice, so the second listing is served from the document cache.
	for range 2 {
		resp, err = http.Get(api.URL + "/products/" + testutil.Small().Name + "/bursts")
		require.NoError(t, err)
		var out struct {
			Bursts []json.RawMessage `json:"bursts"`
			Errors []string          `json:"errors"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Len(t, out.Bursts, 18)
		assert.Empty(t, out.Errors)
	}

	resp, err = http.Get(api.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "s1bursts_api_requests_total")
	assert.Contains(t, string(body), "s1bursts_fetch_requests_total")
}
