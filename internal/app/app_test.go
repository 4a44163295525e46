package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"midgard-history/internal/api"
	"midgard-history/internal/config"
	"midgard-history/internal/storage"
)

// fakeMidgard serves one interval per history endpoint.
func fakeMidgard(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	reply := func(body string) http.HandlerFunc {
		return func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, body)
		}
	}
	mux.HandleFunc("/v2/history/depths/BTC.BTC", reply(`{"intervals":[
		{"assetDepth":"12345","runeDepth":"6789","endTime":"1700000000000"}
	],"meta":{}}`))
	mux.HandleFunc("/v2/history/swaps", reply(`{"intervals":[
		{"startTime":"1699913600000","endTime":"1700000000000","totalCount":"3","totalVolume":"500"}
	],"meta":{}}`))
	mux.HandleFunc("/v2/history/earnings", reply(`{"intervals":[
		{"startTime":"1699913600000","endTime":"1700000000000","earnings":"10",
		 "pools":[{"pool":"BTC.BTC","earnings":"10"}]}
	],"meta":{}}`))
	mux.HandleFunc("/v2/history/runepool", reply(`{"intervals":[
		{"startTime":"1699913600000","endTime":"1700000000000","count":"2","units":"20"}
	],"meta":{}}`))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, midgardURL string) *config.Config {
	t.Helper()
	return &config.Config{
		Database: config.DatabaseConfig{Driver: config.DriverMemory},
		Midgard: config.MidgardConfig{
			BaseURL:           midgardURL,
			Pools:             []string{"BTC.BTC"},
			Interval:          "day",
			Count:             10,
			Timeout:           5 * time.Second,
			RequestsPerSecond: 0,
			MaxRetries:        0,
		},
		Ingest: config.IngestConfig{Interval: time.Hour},
	}
}

func TestBuild_MemoryEndToEnd(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	a, err := Build(ctx, testConfig(t, fakeMidgard(t).URL), logger)
	require.NoError(t, err)
	defer a.Close()
	assert.Nil(t, a.Pool)
	assert.Nil(t, a.Cache)

	report := a.Service.RunCycle(ctx)
	require.NoError(t, report.Err())
	assert.Equal(t, 4, report.Inserted())

	again := a.Service.RunCycle(ctx)
	require.NoError(t, again.Err())
	assert.Equal(t, 0, again.Inserted(), "a second cycle over the same data inserts nothing")

	depths, err := a.Service.GetDepths(ctx, storage.QuerySpec{})
	require.NoError(t, err)
	require.Len(t, depths, 1)
	assert.Equal(t, int64(12345), depths[0].AssetDepth)
	assert.Equal(t, int64(6789), depths[0].RuneDepth)
	assert.Equal(t, time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC), depths[0].EndTime)

	router := api.NewRouter(api.Options{Service: a.Service, Logger: logger})
	req := httptest.NewRequest(http.MethodGet, "/api/pool-activity/BTC.BTC", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, float64(500), rows[0]["swap_volume"])
	assert.Equal(t, float64(3), rows[0]["swap_count"])
}
