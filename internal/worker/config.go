// Package worker runs the explorer's background jobs: asynchronous profile
// provisioning and upstream probes.
package worker

import (
	"time"

	"github.com/vietnamexplorer/explorer/internal/geo"
)

// ProbeTarget is a city whose upstreams are probed.
type ProbeTarget struct {
	// Name is geocoded as-is, so it should be the name people type.
	Name string

	// Points are probed for weather. Typically the city centre and a few
	// districts tourists search around.
	Points []geo.Point

	// Priority determines probe order (lower = higher priority).
	Priority int
}

// ProbeConfig holds configuration for the upstream probe job.
type ProbeConfig struct {
	// Targets are the cities to probe.
	// If empty, uses DefaultProbeTargets.
	Targets []ProbeTarget

	// Concurrency is the number of concurrent probes.
	// Default: 3
	Concurrency int

	// Timeout bounds each probe.
	// Default: 15 seconds
	Timeout time.Duration

	// ProbeWeather enables weather probes at every point.
	// Default: true
	ProbeWeather bool

	// ProbeGeocode enables one geocode probe per target name.
	// Default: true
	ProbeGeocode bool
}

// DefaultProbeConfig returns the default probe configuration.
func DefaultProbeConfig() ProbeConfig {
	return ProbeConfig{
		Targets:      DefaultProbeTargets(),
		Concurrency:  3,
		Timeout:      15 * time.Second,
		ProbeWeather: true,
		ProbeGeocode: true,
	}
}

// DefaultProbeTargets returns the major Vietnamese cities.
func DefaultProbeTargets() []ProbeTarget {
	return []ProbeTarget{
		{
			Name:     "Hà Nội",
			Priority: 1,
			Points: []geo.Point{
				{Lat: 21.0285, Lng: 105.8542}, // Hoàn Kiếm
				{Lat: 21.0368, Lng: 105.8342}, // Ba Đình
				{Lat: 21.0590, Lng: 105.8265}, // Tây Hồ
			},
		},
		{
			Name:     "Thành phố Hồ Chí Minh",
			Priority: 1,
			Points: []geo.Point{
				{Lat: 10.7769, Lng: 106.7009}, // Quận 1
				{Lat: 10.7626, Lng: 106.6822}, // Quận 5
				{Lat: 10.8015, Lng: 106.7147}, // Bình Thạnh
			},
		},
		{
			Name:     "Đà Nẵng",
			Priority: 1,
			Points: []geo.Point{
				{Lat: 16.0544, Lng: 108.2022}, // Hải Châu
				{Lat: 16.0614, Lng: 108.2437}, // Mỹ Khê
			},
		},
		{
			Name:     "Huế",
			Priority: 2,
			Points: []geo.Point{
				{Lat: 16.4637, Lng: 107.5909}, // Kinh thành
			},
		},
		{
			Name:     "Hội An",
			Priority: 2,
			Points: []geo.Point{
				{Lat: 15.8801, Lng: 108.3380}, // Phố cổ
			},
		},
		{
			Name:     "Hải Phòng",
			Priority: 2,
			Points: []geo.Point{
				{Lat: 20.8449, Lng: 106.6881},
			},
		},
		{
			Name:     "Cần Thơ",
			Priority: 2,
			Points: []geo.Point{
				{Lat: 10.0452, Lng: 105.7469},
			},
		},
		{
			Name:     "Nha Trang",
			Priority: 3,
			Points: []geo.Point{
				{Lat: 12.2388, Lng: 109.1967},
			},
		},
		{
			Name:     "Đà Lạt",
			Priority: 3,
			Points: []geo.Point{
				{Lat: 11.9404, Lng: 108.4583},
			},
		},
		{
			Name:     "Hạ Long",
			Priority: 3,
			Points: []geo.Point{
				{Lat: 20.9599, Lng: 107.0425},
			},
		},
	}
}

// AllPoints returns all points from all targets, in target order.
func (c ProbeConfig) AllPoints() []geo.Point {
	var points []geo.Point
	for _, target := range c.Targets {
		points = append(points, target.Points...)
	}
	return points
}

// TotalPoints returns the total number of points to probe.
func (c ProbeConfig) TotalPoints() int {
	total := 0
	for _, target := range c.Targets {
		total += len(target.Points)
	}
	return total
}
