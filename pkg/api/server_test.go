package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/vjranagit/lkext/pkg/search"
	"github.com/vjranagit/lkext/pkg/storage"
	"github.com/vjranagit/lkext/pkg/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreAnyFunction("go.opencensus.io/stats/view.(*worker).start"),
		goleak.IgnoreAnyFunction("github.com/golang/glog.(*fileSink).flushDaemon"),
		goleak.IgnoreAnyFunction("github.com/golang/glog.(*loggingT).flushDaemon"),
	)
}

const (
	spocName = "tess2018206045859-s0001-0000000025155310-0120-s_lc.fits"
	qlpName  = "hlsp_qlp_tess_ffi_s0002-0000000025155310_tess_v01_llc.fits"
)

type fixture struct {
	root    string
	handler http.Handler
}

func newFixture(t *testing.T, withCache bool) *fixture {
	t.Helper()
	root := t.TempDir()
	for _, name := range []string{spocName, qlpName} {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), nil, 0644))
	}

	var dirs *storage.DirectoryCache
	var opts []search.Option
	if withCache {
		cfg := storage.DefaultConfig()
		cfg.Path = t.TempDir()
		dc, err := storage.OpenDirectoryCache(cfg)
		require.NoError(t, err)
		t.Cleanup(func() { dc.Close() })
		dirs = dc
		opts = append(opts, search.WithDirectoryCache(dc))
	}
	resolver := search.NewResolver([]string{root}, opts...)
	return &fixture{root: root, handler: NewServer(":0", resolver, dirs, nil).Handler()}
}

func (f *fixture) do(t *testing.T, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestHealth(t *testing.T) {
	f := newFixture(t, false)
	rec := f.do(t, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestSearchEndpoint(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(t, http.MethodGet, "/api/v1/search?ticid=25155310&author=SPOC,QLP")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Count int      `json:"count"`
		Paths []string `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	assert.Equal(t, []string{filepath.Join(f.root, qlpName), filepath.Join(f.root, spocName)}, body.Paths)

	rec = f.do(t, http.MethodGet, "/api/v1/search?ticid=25155310&sector=2")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{filepath.Join(f.root, qlpName)}, body.Paths)

	rec = f.do(t, http.MethodGet, "/api/v1/search?ticid=1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count":0,"paths":[]}`, rec.Body.String())
}

func TestSearchEndpointRejectsBadInput(t *testing.T) {
	f := newFixture(t, false)

	for _, target := range []string{
		"/api/v1/search",
		"/api/v1/search?ticid=abc",
		"/api/v1/search?ticid=1&sector=x",
		"/api/v1/search?ticid=1&author=nobody",
		"/api/v1/search?ticid=1&exptime=medium",
	} {
		rec := f.do(t, http.MethodGet, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestDirectoryEndpointsNeedCache(t *testing.T) {
	f := newFixture(t, false)
	rec := f.do(t, http.MethodGet, "/api/v1/reports")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestScanEntriesAndDiff(t *testing.T) {
	f := newFixture(t, true)
	root := url.QueryEscape(f.root)

	rec := f.do(t, http.MethodGet, "/api/v1/entries/25155310?root="+root)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/scan")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var scan struct {
		Objects int `json:"objects"`
		Files   int `json:"files"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &scan))
	assert.Equal(t, 1, scan.Objects)
	assert.Equal(t, 2, scan.Files)

	rec = f.do(t, http.MethodGet, "/api/v1/entries/25155310?root="+root+"&author=QLP")
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []types.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, 1800, entries[0].ExpTime)

	rec = f.do(t, http.MethodGet, "/api/v1/entries/abc?root="+root)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	newName := "tess2018234235059-s0002-0000000025155310-0121-s_lc.fits"
	require.NoError(t, os.WriteFile(filepath.Join(f.root, newName), nil, 0644))
	rec = f.do(t, http.MethodPost, "/api/v1/scan?root="+root)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/diff?root="+root)
	require.Equal(t, http.StatusOK, rec.Code)
	var updates types.Updates
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updates))
	assert.Equal(t, []string{filepath.Join(f.root, newName)}, updates[25155310])

	rec = f.do(t, http.MethodGet, "/api/v1/reports")
	require.Equal(t, http.StatusOK, rec.Code)
	var reports []types.UpdateReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reports))
	assert.Len(t, reports, 1)

	rec = f.do(t, http.MethodGet, "/api/v1/diff")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCacheStatsEndpoint(t *testing.T) {
	f := newFixture(t, false)
	f.do(t, http.MethodGet, "/api/v1/search?ticid=25155310")
	f.do(t, http.MethodGet, "/api/v1/search?ticid=25155310")

	rec := f.do(t, http.MethodGet, "/api/v1/cache/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Search  storage.CacheStats `json:"search"`
		HitRate float64            `json:"hit_rate"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, uint64(1), body.Search.Hits)
	assert.Equal(t, uint64(1), body.Search.Misses)
	assert.InDelta(t, 50.0, body.HitRate, 1e-9)
}
