package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/cyrcle/cyrcle-geo/internal/spotstore"
	"github.com/cyrcle/cyrcle-geo/pkg/models"
	"github.com/cyrcle/cyrcle-geo/pkg/nearest"
	"github.com/cyrcle/cyrcle-geo/pkg/rtree"
	"github.com/cyrcle/cyrcle-geo/pkg/sqlstore"
	"github.com/cyrcle/cyrcle-geo/pkg/tile"
	"github.com/gin-gonic/gin"
)

const (
	defaultK = 10
	// maxTiles bounds the tiles returned by one request, about 10x10 degrees
	maxTiles = 10_000
)

// RankedSpot is a search result with its distance to the reference point
type RankedSpot struct {
	*models.Spot
	DistanceMeters float64 `json:"distance_m"`
}

// CreateSpotRequest is the body of POST /spots
type CreateSpotRequest struct {
	ID       string   `json:"id"`
	Caption  string   `json:"caption"`
	Capacity int      `json:"capacity" binding:"gte=0"`
	Lon      *float64 `json:"lon" binding:"required"`
	Lat      *float64 `json:"lat" binding:"required"`
}

// Nearest handles GET /spots/nearest?lon=&lat=&k=
func (h *Handler) Nearest(c *gin.Context) {
	ref, err := pointParam(c, "lon", "lat")
	if err != nil {
		h.fail(c, err)
		return
	}
	k := defaultK
	if raw := c.Query("k"); raw != "" {
		if k, err = strconv.Atoi(raw); err != nil {
			h.fail(c, badRequest("k: %v", err))
			return
		}
	}

	spots, err := h.searcher.FindKClosest(c.Request.Context(), ref, k, h.store)
	if err != nil {
		h.fail(c, err)
		return
	}

	ranked := make([]RankedSpot, len(spots))
	for i, s := range spots {
		ranked[i] = RankedSpot{Spot: s, DistanceMeters: models.Distance(ref, s.Location.Center)}
	}
	c.JSON(http.StatusOK, gin.H{"spots": ranked})
}

// GetSpot handles GET /spots/:id
func (h *Handler) GetSpot(c *gin.Context) {
	spot, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, spot)
}

// CreateSpot handles POST /spots
func (h *Handler) CreateSpot(c *gin.Context) {
	var req CreateSpotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, badRequest("%v", err))
		return
	}

	spot := models.NewSpot(req.Caption, models.Point{Lon: *req.Lon, Lat: *req.Lat})
	if req.ID != "" {
		spot.ID = req.ID
	}
	spot.Capacity = req.Capacity

	if err := h.store.Insert(c.Request.Context(), spot); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, spot)
}

// DeleteSpot handles DELETE /spots/:id
func (h *Handler) DeleteSpot(c *gin.Context) {
	if err := h.store.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// TilesForRectangle handles GET /tiles?min_lon=&min_lat=&max_lon=&max_lat=
func (h *Handler) TilesForRectangle(c *gin.Context) {
	bl, err := pointParam(c, "min_lon", "min_lat")
	if err != nil {
		h.fail(c, err)
		return
	}
	tr, err := pointParam(c, "max_lon", "max_lat")
	if err != nil {
		h.fail(c, err)
		return
	}

	if err := checkTileCount(tile.CountCoveringRectangle(bl, tr)); err != nil {
		h.fail(c, err)
		return
	}
	tiles, err := tile.TilesCoveringRectangle(bl, tr)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tilesResponse(tiles))
}

// TilesForCircle handles GET /tiles/circle?lon=&lat=&radius=
func (h *Handler) TilesForCircle(c *gin.Context) {
	center, err := pointParam(c, "lon", "lat")
	if err != nil {
		h.fail(c, err)
		return
	}
	radius, err := floatParam(c, "radius")
	if err != nil {
		h.fail(c, err)
		return
	}

	if err := checkTileCount(tile.CountCoveringCircle(center, radius)); err != nil {
		h.fail(c, err)
		return
	}
	tiles, err := tile.TilesCoveringCircle(center, radius)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tilesResponse(tiles))
}

func checkTileCount(n int64, err error) error {
	if err != nil {
		return err
	}
	if n > maxTiles {
		return badRequest("area covers %d tiles, at most %d allowed", n, maxTiles)
	}
	return nil
}

type tileJSON struct {
	ID string `json:"id"`
	tile.Tile
}

func tilesResponse(tiles []tile.Tile) gin.H {
	out := make([]tileJSON, len(tiles))
	for i, t := range tiles {
		out[i] = tileJSON{ID: t.ID(), Tile: t}
	}
	return gin.H{"tiles": out}
}

// errBadRequest marks malformed request parameters
var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func floatParam(c *gin.Context, name string) (float64, error) {
	raw, ok := c.GetQuery(name)
	if !ok {
		return 0, badRequest("missing parameter %s", name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, badRequest("%s: %v", name, err)
	}
	return v, nil
}

func pointParam(c *gin.Context, lonName, latName string) (models.Point, error) {
	lon, err := floatParam(c, lonName)
	if err != nil {
		return models.Point{}, err
	}
	lat, err := floatParam(c, latName)
	if err != nil {
		return models.Point{}, err
	}
	return models.Point{Lon: lon, Lat: lat}, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, spotstore.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errBadRequest),
		errors.Is(err, nearest.ErrInvalidK),
		errors.Is(err, nearest.ErrInvalidReference),
		errors.Is(err, tile.ErrInvalidPoint),
		errors.Is(err, tile.ErrDegenerateRectangle),
		errors.Is(err, tile.ErrInvalidRadius),
		errors.Is(err, rtree.ErrInvalidSpot),
		errors.Is(err, rtree.ErrInvalidBox),
		errors.Is(err, sqlstore.ErrInvalidSpot):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "path", c.FullPath(), "error", err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
