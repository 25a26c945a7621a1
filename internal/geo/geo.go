// Package geo holds the coordinate types shared by the explorer and the place backend.
package geo

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidCoordinates indicates a latitude or longitude outside WGS84 bounds.
var ErrInvalidCoordinates = errors.New("invalid coordinates")

// Hanoi is the default focal point of a freshly mounted map screen.
var Hanoi = Point{Lat: 21.0285, Lng: 105.8542}

// Point is a WGS84 coordinate in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate checks that the point lies within WGS84 bounds.
func (p Point) Validate() error {
	if p.Lat < -90 || p.Lat > 90 || math.IsNaN(p.Lat) {
		return fmt.Errorf("%w: latitude %f out of range [-90, 90]", ErrInvalidCoordinates, p.Lat)
	}
	if p.Lng < -180 || p.Lng > 180 || math.IsNaN(p.Lng) {
		return fmt.Errorf("%w: longitude %f out of range [-180, 180]", ErrInvalidCoordinates, p.Lng)
	}
	return nil
}

// Within reports whether q lies within tolerance degrees of p on both axes.
func (p Point) Within(q Point, tolerance float64) bool {
	return math.Abs(p.Lat-q.Lat) < tolerance && math.Abs(p.Lng-q.Lng) < tolerance
}

// String formats the point as "lat,lng" with 4 decimals.
func (p Point) String() string {
	return fmt.Sprintf("%.4f,%.4f", p.Lat, p.Lng)
}

// Location is the result of a place-name lookup.
type Location struct {
	Name string `json:"name"`
	Point
}

// PointOfInterest is a named place discovered near a focal point.
type PointOfInterest struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Point
}
