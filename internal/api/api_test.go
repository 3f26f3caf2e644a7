package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cyrcle/cyrcle-geo/internal/spotstore"
	"github.com/cyrcle/cyrcle-geo/pkg/models"
	"github.com/cyrcle/cyrcle-geo/pkg/nearest"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) (*gin.Engine, *spotstore.Memory) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := spotstore.OpenMemory("")
	require.NoError(t, err)
	require.NoError(t, store.SpotIndex.Insert(
		&models.Spot{ID: "a", Caption: "Flon", Location: models.Location{Center: models.Point{Lon: 6.630, Lat: 46.520}}},
		&models.Spot{ID: "b", Caption: "Gare", Location: models.Location{Center: models.Point{Lon: 6.629, Lat: 46.517}}},
		&models.Spot{ID: "c", Caption: "Ouchy", Location: models.Location{Center: models.Point{Lon: 6.627, Lat: 46.507}}},
	))

	searcher, err := nearest.NewSearcher(nearest.DefaultOptions(), nil)
	require.NoError(t, err)
	h := NewHandler(store, searcher, nil)
	return NewEngine(h), store
}

func do(t *testing.T, engine *gin.Engine, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	engine, _ := newTestEngine(t)
	w := do(t, engine, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestNearest(t *testing.T) {
	engine, _ := newTestEngine(t)

	w := do(t, engine, http.MethodGet, "/spots/nearest?lon=6.629&lat=46.518&k=2", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Spots []struct {
			ID             string  `json:"id"`
			DistanceMeters float64 `json:"distance_m"`
		} `json:"spots"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Spots, 2)
	assert.Equal(t, "b", resp.Spots[0].ID)
	assert.Equal(t, "a", resp.Spots[1].ID)
	assert.LessOrEqual(t, resp.Spots[0].DistanceMeters, resp.Spots[1].DistanceMeters)
}

func TestNearestDefaultK(t *testing.T) {
	engine, _ := newTestEngine(t)

	w := do(t, engine, http.MethodGet, "/spots/nearest?lon=6.629&lat=46.518", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Spots []json.RawMessage `json:"spots"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Spots, 3)
}

func TestNearestBadRequests(t *testing.T) {
	engine, _ := newTestEngine(t)

	tests := []struct {
		name   string
		target string
	}{
		{"missing lat", "/spots/nearest?lon=6.6"},
		{"bad lon", "/spots/nearest?lon=east&lat=46.5"},
		{"bad k", "/spots/nearest?lon=6.6&lat=46.5&k=many"},
		{"negative k", "/spots/nearest?lon=6.6&lat=46.5&k=-1"},
		{"out of range", "/spots/nearest?lon=6.6&lat=91"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, engine, http.MethodGet, tt.target, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), "error")
		})
	}
}

func TestSpotLifecycle(t *testing.T) {
	engine, store := newTestEngine(t)

	w := do(t, engine, http.MethodPost, "/spots",
		[]byte(`{"id":"d","caption":"Riponne","capacity":12,"lon":6.633,"lat":46.523}`))
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, int64(4), store.SpotIndex.Count())

	w = do(t, engine, http.MethodGet, "/spots/d", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var spot models.Spot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &spot))
	assert.Equal(t, "Riponne", spot.Caption)
	assert.Equal(t, 12, spot.Capacity)

	w = do(t, engine, http.MethodDelete, "/spots/d", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, engine, http.MethodDelete, "/spots/d", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, engine, http.MethodGet, "/spots/d", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateSpotGeneratesID(t *testing.T) {
	engine, _ := newTestEngine(t)

	w := do(t, engine, http.MethodPost, "/spots", []byte(`{"lon":0,"lat":0}`))
	require.Equal(t, http.StatusCreated, w.Code)

	var spot models.Spot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &spot))
	assert.NotEmpty(t, spot.ID)
	assert.Equal(t, models.Point{}, spot.Location.Center)
}

func TestCreateSpotRejected(t *testing.T) {
	engine, _ := newTestEngine(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"lon":`},
		{"missing lat", `{"lon":6.6}`},
		{"out of range", `{"lon":200,"lat":46.5}`},
		{"negative capacity", `{"lon":6.6,"lat":46.5,"capacity":-3}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, engine, http.MethodPost, "/spots", []byte(tt.body))
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestTiles(t *testing.T) {
	engine, _ := newTestEngine(t)

	var resp struct {
		Tiles []struct {
			ID string `json:"id"`
		} `json:"tiles"`
	}

	w := do(t, engine, http.MethodGet, "/tiles?min_lon=6.05&min_lat=46.05&max_lon=6.15&max_lat=46.15", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	ids := make([]string, len(resp.Tiles))
	for i, tl := range resp.Tiles {
		ids[i] = tl.ID
	}
	assert.Equal(t, []string{"6.00:46.00", "6.10:46.00", "6.00:46.10", "6.10:46.10"}, ids)

	w = do(t, engine, http.MethodGet, "/tiles/circle?lon=6.05&lat=46.05&radius=0", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Tiles, 1)
	assert.Equal(t, "6.00:46.00", resp.Tiles[0].ID)
}

func TestTilesAtLimit(t *testing.T) {
	engine, _ := newTestEngine(t)

	w := do(t, engine, http.MethodGet, "/tiles?min_lon=0&min_lat=0&max_lon=10&max_lat=10", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Tiles []json.RawMessage `json:"tiles"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Tiles, maxTiles)
}

func TestTilesBadRequests(t *testing.T) {
	engine, _ := newTestEngine(t)

	tests := []struct {
		name   string
		target string
	}{
		{"degenerate", "/tiles?min_lon=6.1&min_lat=46.1&max_lon=6.0&max_lat=46.2"},
		{"missing corner", "/tiles?min_lon=6.0&min_lat=46.0"},
		{"invalid point", "/tiles?min_lon=6.0&min_lat=46.0&max_lon=6.1&max_lat=95"},
		{"negative radius", "/tiles/circle?lon=6.0&lat=46.0&radius=-5"},
		{"missing radius", "/tiles/circle?lon=6.0&lat=46.0"},
		{"whole world", "/tiles?min_lon=-180&min_lat=-90&max_lon=180&max_lat=90"},
		{"just over the limit", "/tiles?min_lon=0&min_lat=0&max_lon=10&max_lat=10.1"},
		{"huge circle", "/tiles/circle?lon=6.0&lat=46.0&radius=2000000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, engine, http.MethodGet, tt.target, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor(spotstore.ErrNotFound))
	assert.Equal(t, http.StatusBadRequest, statusFor(nearest.ErrInvalidK))
	assert.Equal(t, http.StatusInternalServerError, statusFor(assert.AnError))
}
