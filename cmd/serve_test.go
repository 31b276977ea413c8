package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dcatlas/dcharvest/internal/config"
	"github.com/dcatlas/dcharvest/internal/model"
	"github.com/dcatlas/dcharvest/internal/store"
)

func setTestConfig(t *testing.T) {
	t.Helper()
	orig := cfg
	cfg = &config.Config{}
	cfg.Source.IndexPath = "/usa/"
	cfg.Source.RateLimitMarker = "Page View Limit Reached"
	cfg.Crawl.FrontierDir = "frontier"
	t.Cleanup(func() { cfg = orig })
}

func newServeTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "serve.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

const servePageBody = `<html><body><script id="__NEXT_DATA__" type="application/json">` +
	`{"props":{"pageProps":{"mapdata":{"dcs":[{"properties":{"name":"DFW1","address":"100 Main St"},"geometry":{"coordinates":[-96.5,32.4]}}]}}}}` +
	`</script></body></html>`

func TestRouter_Health(t *testing.T) {
	setTestConfig(t)
	srv := httptest.NewServer(newRouter(newServeTestStore(t)))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_Status(t *testing.T) {
	setTestConfig(t)
	st := newServeTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertPage(ctx, &model.PageFetch{
		Path: "texas", URL: "https://example.com/usa/texas/", Body: servePageBody,
		Status: model.StatusSuccess, HTTPCode: 200, FetchedAt: time.Now().UTC(),
	}))
	require.NoError(t, st.RecordRun(ctx, &model.CrawlRun{
		ID: "run-1", Level: model.LevelState, Fetched: 1,
		StartedAt: time.Now().UTC(), FinishedAt: time.Now().UTC(),
	}))

	srv := httptest.NewServer(newRouter(st))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/status")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Pages map[string]int   `json:"pages"`
		Runs  []model.CrawlRun `json:"runs"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 1, body.Pages["success"])
	require.Len(t, body.Runs, 1)
	assert.Equal(t, "run-1", body.Runs[0].ID)
}

func TestRouter_Facilities(t *testing.T) {
	setTestConfig(t)
	st := newServeTestStore(t)

	require.NoError(t, st.UpsertPage(context.Background(), &model.PageFetch{
		Path: "texas/dallas", URL: "https://example.com/usa/texas/dallas/", Body: servePageBody,
		Status: model.StatusSuccess, HTTPCode: 200, FetchedAt: time.Now().UTC(),
	}))

	srv := httptest.NewServer(newRouter(st))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/facilities")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Count      int                      `json:"count"`
		Facilities []model.EnrichedFacility `json:"facilities"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "DFW1", body.Facilities[0].Name)
	assert.Equal(t, "-96.5", body.Facilities[0].Longitude)
}

func TestFrontierPaths(t *testing.T) {
	setTestConfig(t)

	assert.Equal(t, "usa", indexSlug())
	assert.Equal(t, filepath.Join("frontier", "state_links.txt"), stateFrontierPath())
	assert.Equal(t, filepath.Join("frontier", "texas", "city_links.txt"), cityFrontierPath("texas"))
}
