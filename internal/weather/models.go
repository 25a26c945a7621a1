package weather

import (
	"context"
	"errors"

	"github.com/vietnamexplorer/explorer/internal/geo"
)

// ErrProviderUnavailable is returned when no weather provider is configured.
var ErrProviderUnavailable = errors.New("weather provider unavailable")

const iconBaseURL = "https://openweathermap.org/img/wn/"

// Snapshot is the current weather at a point. It lives only as long as the view
// that requested it.
type Snapshot struct {
	// Condition is the provider's short condition group, e.g. "Clouds".
	Condition    string  `json:"main"`
	Description  string  `json:"description"`
	TemperatureC float64 `json:"temperature"`
	HumidityPct  float64 `json:"humidity"`
	WindSpeedMs  float64 `json:"windSpeed"`
	IconCode     string  `json:"icon_code"`
}

// IconURL returns the large (2x) icon used in popups and the weather panel.
func (s Snapshot) IconURL() string {
	if s.IconCode == "" {
		return ""
	}
	return iconBaseURL + s.IconCode + "@2x.png"
}

// LabelIconURL returns the small icon shown next to a marker label.
func (s Snapshot) LabelIconURL() string {
	if s.IconCode == "" {
		return ""
	}
	return iconBaseURL + s.IconCode + ".png"
}

// WindCategory buckets wind speed for display.
type WindCategory string

const (
	WindCalm     WindCategory = "CALM"     // < 1 m/s
	WindLight    WindCategory = "LIGHT"    // 1-3 m/s
	WindModerate WindCategory = "MODERATE" // 3-8 m/s
	WindStrong   WindCategory = "STRONG"   // > 8 m/s
)

// WindCategory returns the wind bucket for the snapshot.
func (s Snapshot) WindCategory() WindCategory {
	switch {
	case s.WindSpeedMs < 1:
		return WindCalm
	case s.WindSpeedMs < 3:
		return WindLight
	case s.WindSpeedMs < 8:
		return WindModerate
	default:
		return WindStrong
	}
}

// Provider fetches current conditions for a coordinate.
type Provider interface {
	Name() string
	CurrentWeather(ctx context.Context, p geo.Point) (*Snapshot, error)
}
