// Package routing provides the driving route overlay between two points.
package routing

import (
	"context"

	"github.com/vietnamexplorer/explorer/internal/geo"
)

// Provider defines the interface for routing providers.
type Provider interface {
	// Route returns the best driving route from origin to destination.
	Route(ctx context.Context, origin, destination geo.Point) (*Route, error)
	// Name returns the provider identifier for logging and metrics.
	Name() string
}

// Route is a single decoded route.
type Route struct {
	Polyline        string      `json:"polyline"` // Encoded polyline (precision 5)
	Geometry        []geo.Point `json:"geometry"`
	DistanceMeters  float64     `json:"distanceMeters"`
	DurationSeconds float64     `json:"durationSeconds"`
}
