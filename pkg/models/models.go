package models

import (
	"math"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// Point represents a geographic coordinate
type Point struct {
	Lon float64 `json:"lon" yaml:"lon"`
	Lat float64 `json:"lat" yaml:"lat"`
}

// Valid reports whether both coordinates are finite and inside the WGS84 ranges
func (p Point) Valid() bool {
	if math.IsNaN(p.Lon) || math.IsNaN(p.Lat) || math.IsInf(p.Lon, 0) || math.IsInf(p.Lat, 0) {
		return false
	}
	return p.Lon >= -180 && p.Lon <= 180 && p.Lat >= -90 && p.Lat <= 90
}

// Orb converts the point to an orb.Point (lon, lat order)
func (p Point) Orb() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// FromOrb converts an orb.Point back to a Point
func FromOrb(p orb.Point) Point {
	return Point{Lon: p.Lon(), Lat: p.Lat()}
}

// Location holds the geometry of a parking spot
type Location struct {
	Center Point `json:"center"`
}

// Spot represents a bicycle parking spot
type Spot struct {
	ID       string   `json:"id"`
	Caption  string   `json:"caption,omitempty"`
	Capacity int      `json:"capacity,omitempty"`
	Location Location `json:"location"`
}

// NewSpot creates a spot with a random identifier
func NewSpot(caption string, center Point) *Spot {
	return &Spot{
		ID:       uuid.NewString(),
		Caption:  caption,
		Location: Location{Center: center},
	}
}

// BoundingBox represents a rectangular area defined by two corners.
// All edges are inclusive.
type BoundingBox struct {
	BottomLeft Point `json:"bottom_left"`
	TopRight   Point `json:"top_right"`
}

// BoxAround returns the square [center-radius, center+radius] in degrees,
// clipped to the valid coordinate range. It does not wrap around the
// antimeridian.
func BoxAround(center Point, radius float64) BoundingBox {
	return BoundingBox{
		BottomLeft: Point{Lon: max(center.Lon-radius, -180), Lat: max(center.Lat-radius, -90)},
		TopRight:   Point{Lon: min(center.Lon+radius, 180), Lat: min(center.Lat+radius, 90)},
	}
}

// Valid reports whether both corners are valid and not inverted
func (b BoundingBox) Valid() bool {
	return b.BottomLeft.Valid() && b.TopRight.Valid() &&
		b.TopRight.Lon >= b.BottomLeft.Lon && b.TopRight.Lat >= b.BottomLeft.Lat
}

// Contains reports whether p lies inside the box, edges included
func (b BoundingBox) Contains(p Point) bool {
	return p.Lon >= b.BottomLeft.Lon && p.Lon <= b.TopRight.Lon &&
		p.Lat >= b.BottomLeft.Lat && p.Lat <= b.TopRight.Lat
}

// Distance returns the great-circle distance between two points in meters
func Distance(a, b Point) float64 {
	return geo.DistanceHaversine(a.Orb(), b.Orb())
}
