package models

import (
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointValid(t *testing.T) {
	tests := []struct {
		name  string
		point Point
		valid bool
	}{
		{"origin", Point{}, true},
		{"corner", Point{Lon: 180, Lat: -90}, true},
		{"lausanne", Point{Lon: 6.6323, Lat: 46.5197}, true},
		{"lon out of range", Point{Lon: 180.01, Lat: 0}, false},
		{"lat out of range", Point{Lon: 0, Lat: -90.5}, false},
		{"nan", Point{Lon: math.NaN(), Lat: 0}, false},
		{"inf", Point{Lon: 0, Lat: math.Inf(1)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.point.Valid())
		})
	}
}

func TestOrbRoundTrip(t *testing.T) {
	p := Point{Lon: 6.6323, Lat: 46.5197}
	o := p.Orb()
	assert.Equal(t, 6.6323, o.Lon())
	assert.Equal(t, 46.5197, o.Lat())
	assert.Equal(t, p, FromOrb(o))
}

func TestNewSpot(t *testing.T) {
	a := NewSpot("Flon", Point{Lon: 6.63, Lat: 46.52})
	b := NewSpot("Flon", Point{Lon: 6.63, Lat: 46.52})

	_, err := uuid.Parse(a.ID)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, "Flon", a.Caption)
	assert.Equal(t, Point{Lon: 6.63, Lat: 46.52}, a.Location.Center)
}

func TestBoundingBox(t *testing.T) {
	box := BoundingBox{
		BottomLeft: Point{Lon: 6.0, Lat: 46.0},
		TopRight:   Point{Lon: 7.0, Lat: 47.0},
	}
	require.True(t, box.Valid())

	assert.True(t, box.Contains(Point{Lon: 6.5, Lat: 46.5}))
	assert.True(t, box.Contains(Point{Lon: 6.0, Lat: 46.0}), "bottom-left corner is inside")
	assert.True(t, box.Contains(Point{Lon: 7.0, Lat: 47.0}), "top-right corner is inside")
	assert.True(t, box.Contains(Point{Lon: 7.0, Lat: 46.2}), "right edge is inside")
	assert.False(t, box.Contains(Point{Lon: 7.0001, Lat: 46.5}))
	assert.False(t, box.Contains(Point{Lon: 6.5, Lat: 45.9999}))

	inverted := BoundingBox{BottomLeft: box.TopRight, TopRight: box.BottomLeft}
	assert.False(t, inverted.Valid())

	point := BoundingBox{BottomLeft: box.BottomLeft, TopRight: box.BottomLeft}
	assert.True(t, point.Valid())
	assert.True(t, point.Contains(box.BottomLeft))
}

func TestBoxAround(t *testing.T) {
	box := BoxAround(Point{Lon: 6.5, Lat: 46.5}, 0.25)
	assert.Equal(t, Point{Lon: 6.25, Lat: 46.25}, box.BottomLeft)
	assert.Equal(t, Point{Lon: 6.75, Lat: 46.75}, box.TopRight)

	t.Run("clipped at the edges", func(t *testing.T) {
		box := BoxAround(Point{Lon: 179.9, Lat: -89.9}, 0.5)
		assert.True(t, box.Valid())
		assert.Equal(t, 180.0, box.TopRight.Lon)
		assert.Equal(t, -90.0, box.BottomLeft.Lat)
		assert.InDelta(t, 179.4, box.BottomLeft.Lon, 1e-9)
		assert.InDelta(t, -89.4, box.TopRight.Lat, 1e-9)
	})
}

func TestDistance(t *testing.T) {
	london := Point{Lon: -0.1278, Lat: 51.5074}
	paris := Point{Lon: 2.3522, Lat: 48.8566}
	newYork := Point{Lon: -74.0060, Lat: 40.7128}

	assert.Equal(t, 0.0, Distance(london, london))
	assert.InDelta(t, 344_000, Distance(london, paris), 2_000)
	assert.InDelta(t, 5_575_000, Distance(newYork, london), 15_000)
	assert.InDelta(t, Distance(london, paris), Distance(paris, london), 1e-6)

	// One hundredth of a degree of latitude is about 1.1km anywhere
	assert.InDelta(t, 1_113, Distance(Point{Lon: 6, Lat: 46}, Point{Lon: 6, Lat: 46.01}), 5)
}
