package overpass

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metrograph/demandgen/internal/model"
	"github.com/metrograph/demandgen/internal/resilience"
)

var testBounds = model.Bounds{MinLon: 13.0, MinLat: 52.0, MaxLon: 13.5, MaxLat: 52.5}

func testClient(url string) *Client {
	return NewClient(ClientConfig{Endpoint: url, RatePerSec: 1000, Burst: 1000})
}

func TestQueryTemplates(t *testing.T) {
	b := model.Bounds{MinLon: 13.0, MinLat: 52.0, MaxLon: 13.5, MaxLat: 52.5}

	buildings := DatasetBuildings.Query(b)
	assert.Contains(t, buildings, `way["building"]`)
	// Overpass bbox order is south,west,north,east.
	assert.Contains(t, buildings, "52.0000000,13.0000000,52.5000000,13.5000000")

	roads := DatasetRoads.Query(b)
	assert.Contains(t, roads, `"highway"`)

	places := DatasetPlaces.Query(b)
	assert.Contains(t, places, "neighbourhood")
	assert.Contains(t, places, `"aeroway"="terminal"`)
}

func TestFetchTileOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Contains(t, r.Form.Get("data"), "[out:json]")
		_, _ = w.Write([]byte(`{"elements":[{"type":"node","id":5,"lat":52.1,"lon":13.1,"tags":{"place":"suburb"}}]}`))
	}))
	defer srv.Close()

	feats, err := testClient(srv.URL).FetchTile(context.Background(), DatasetPlaces, testBounds)
	require.NoError(t, err)
	require.Len(t, feats, 1)
	assert.Equal(t, int64(5), feats[0].ID)
}

func TestFetchTileRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).FetchTile(context.Background(), DatasetBuildings, testBounds)
	require.Error(t, err)
	assert.True(t, resilience.IsRateLimit(err))
	assert.True(t, resilience.IsTransient(err))
}

func TestFetchTileServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGatewayTimeout)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).FetchTile(context.Background(), DatasetBuildings, testBounds)
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
	assert.False(t, resilience.IsRateLimit(err))
}

func TestFetchTileBadRequestNotTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).FetchTile(context.Background(), DatasetBuildings, testBounds)
	require.Error(t, err)
	assert.False(t, resilience.IsTransient(err))
	assert.False(t, IsDecodeError(err))
}

func TestFetchTileMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"elements":[{"type":"node"`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).FetchTile(context.Background(), DatasetBuildings, testBounds)
	require.Error(t, err)
	assert.True(t, IsDecodeError(err))
	assert.False(t, resilience.IsTransient(err))
}

func TestFetchTileSendsUserAgent(t *testing.T) {
	var ua string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(`{"elements":[]}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).FetchTile(context.Background(), DatasetRoads, testBounds)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ua, "demandgen/"))
}
