// Package tile partitions geographic space into a fixed grid of square tiles
// used to address regions of the map for offline caching.
//
// Grid indices are computed in exact decimal arithmetic so that a coordinate
// lying on a grid line (for example 7.0 with a 0.1 grid) always lands on the
// same index, and tile corners are rounded to Decimals digits so that 7.01 is
// never represented as 7.0099999999999998.
package tile

import (
	"errors"
	"fmt"
	"math"

	"github.com/cyrcle/cyrcle-geo/pkg/models"
	"github.com/paulmach/orb/geo"
	"github.com/shopspring/decimal"
)

const (
	// Size is the edge length of a tile in degrees
	Size = 0.1
	// Decimals is the number of fractional digits tile corners are rounded to
	Decimals = 2
)

var (
	ErrInvalidPoint        = errors.New("invalid point")
	ErrDegenerateRectangle = errors.New("degenerate rectangle")
	ErrInvalidRadius       = errors.New("invalid radius")
)

var sizeDec = decimal.NewFromFloat(Size)

// Tile is a grid cell identified by its rounded corners
type Tile struct {
	BottomLeft models.Point `json:"bottom_left"`
	TopRight   models.Point `json:"top_right"`
}

// ID returns the canonical key of the tile, derived from its bottom-left corner
func (t Tile) ID() string {
	return fmt.Sprintf("%.*f:%.*f", Decimals, t.BottomLeft.Lon, Decimals, t.BottomLeft.Lat)
}

// Bounds returns the area covered by the tile
func (t Tile) Bounds() models.BoundingBox {
	return models.BoundingBox{BottomLeft: t.BottomLeft, TopRight: t.TopRight}
}

func (t Tile) String() string {
	return fmt.Sprintf("tile[%.*f,%.*f -> %.*f,%.*f]",
		Decimals, t.BottomLeft.Lon, Decimals, t.BottomLeft.Lat,
		Decimals, t.TopRight.Lon, Decimals, t.TopRight.Lat)
}

// RoundCoordinate truncates value to the given number of fractional digits,
// toward zero. The value is first converted to its shortest decimal
// representation, so binary representation noise never leaks into the result.
func RoundCoordinate(value float64, decimals int) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return value
	}
	return decimal.NewFromFloat(value).Truncate(int32(decimals)).InexactFloat64()
}

// TileContaining returns the tile whose cell contains p
func TileContaining(p models.Point) (Tile, error) {
	if !p.Valid() {
		return Tile{}, fmt.Errorf("%w: %+v", ErrInvalidPoint, p)
	}
	ix := floorIndex(p.Lon)
	iy := floorIndex(p.Lat)
	return fromIndex(ix, iy), nil
}

// TilesCoveringRectangle returns every tile whose cell intersects the
// rectangle [bottomLeft, topRight], ordered by latitude row then longitude.
// topRight must be strictly greater than bottomLeft on both axes.
func TilesCoveringRectangle(bottomLeft, topRight models.Point) ([]Tile, error) {
	startX, startY, endX, endY, err := rectangleRange(bottomLeft, topRight)
	if err != nil {
		return nil, err
	}

	tiles := make([]Tile, 0, (endX-startX)*(endY-startY))
	for iy := startY; iy < endY; iy++ {
		for ix := startX; ix < endX; ix++ {
			tiles = append(tiles, fromIndex(ix, iy))
		}
	}
	return tiles, nil
}

// CountCoveringRectangle returns len(TilesCoveringRectangle(bottomLeft, topRight))
// without building the tiles
func CountCoveringRectangle(bottomLeft, topRight models.Point) (int64, error) {
	startX, startY, endX, endY, err := rectangleRange(bottomLeft, topRight)
	if err != nil {
		return 0, err
	}
	return (endX - startX) * (endY - startY), nil
}

func rectangleRange(bottomLeft, topRight models.Point) (startX, startY, endX, endY int64, err error) {
	if !bottomLeft.Valid() || !topRight.Valid() {
		return 0, 0, 0, 0, fmt.Errorf("%w: %+v, %+v", ErrInvalidPoint, bottomLeft, topRight)
	}
	if topRight.Lon <= bottomLeft.Lon || topRight.Lat <= bottomLeft.Lat {
		return 0, 0, 0, 0, fmt.Errorf("%w: %+v is not above and right of %+v",
			ErrDegenerateRectangle, topRight, bottomLeft)
	}

	startX, startY = floorIndex(bottomLeft.Lon), floorIndex(bottomLeft.Lat)
	endX, endY = ceilIndex(topRight.Lon), ceilIndex(topRight.Lat)
	return startX, startY, endX, endY, nil
}

// TilesCoveringCircle returns the tiles covering the square that encloses the
// circle of radiusMeters around center. Tiles near the corners of the square
// are included even if the circle itself does not reach them.
func TilesCoveringCircle(center models.Point, radiusMeters float64) ([]Tile, error) {
	bottomLeft, topRight, err := circleSquare(center, radiusMeters)
	if err != nil {
		return nil, err
	}
	if radiusMeters == 0 {
		t, err := TileContaining(center)
		if err != nil {
			return nil, err
		}
		return []Tile{t}, nil
	}
	return TilesCoveringRectangle(bottomLeft, topRight)
}

// CountCoveringCircle returns len(TilesCoveringCircle(center, radiusMeters))
// without building the tiles
func CountCoveringCircle(center models.Point, radiusMeters float64) (int64, error) {
	bottomLeft, topRight, err := circleSquare(center, radiusMeters)
	if err != nil {
		return 0, err
	}
	if radiusMeters == 0 {
		return 1, nil
	}
	return CountCoveringRectangle(bottomLeft, topRight)
}

// circleSquare projects the square enclosing the circle. A zero radius
// returns center for both corners.
func circleSquare(center models.Point, radiusMeters float64) (models.Point, models.Point, error) {
	if !center.Valid() {
		return models.Point{}, models.Point{}, fmt.Errorf("%w: %+v", ErrInvalidPoint, center)
	}
	if math.IsNaN(radiusMeters) || math.IsInf(radiusMeters, 0) || radiusMeters < 0 {
		return models.Point{}, models.Point{}, fmt.Errorf("%w: %v", ErrInvalidRadius, radiusMeters)
	}
	if radiusMeters == 0 {
		return center, center, nil
	}

	c := center.Orb()
	north := models.FromOrb(geo.PointAtBearingAndDistance(c, 0, radiusMeters))
	east := models.FromOrb(geo.PointAtBearingAndDistance(c, 90, radiusMeters))
	south := models.FromOrb(geo.PointAtBearingAndDistance(c, 180, radiusMeters))
	west := models.FromOrb(geo.PointAtBearingAndDistance(c, 270, radiusMeters))

	bottomLeft := models.Point{Lon: west.Lon, Lat: south.Lat}
	topRight := models.Point{Lon: east.Lon, Lat: north.Lat}
	if north.Lat <= center.Lat || south.Lat >= center.Lat ||
		!bottomLeft.Valid() || !topRight.Valid() {
		return models.Point{}, models.Point{}, fmt.Errorf("%w: circle of %.0fm around %+v crosses the antimeridian or a pole",
			ErrDegenerateRectangle, radiusMeters, center)
	}
	return bottomLeft, topRight, nil
}

func floorIndex(v float64) int64 {
	return decimal.NewFromFloat(v).Div(sizeDec).Floor().IntPart()
}

func ceilIndex(v float64) int64 {
	return decimal.NewFromFloat(v).Div(sizeDec).Ceil().IntPart()
}

func corner(i int64) float64 {
	return RoundCoordinate(decimal.NewFromInt(i).Mul(sizeDec).InexactFloat64(), Decimals)
}

func fromIndex(ix, iy int64) Tile {
	return Tile{
		BottomLeft: models.Point{Lon: corner(ix), Lat: corner(iy)},
		TopRight:   models.Point{Lon: corner(ix + 1), Lat: corner(iy + 1)},
	}
}
