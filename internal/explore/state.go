package explore

import (
	"github.com/vietnamexplorer/explorer/internal/assistant"
	"github.com/vietnamexplorer/explorer/internal/geo"
	"github.com/vietnamexplorer/explorer/internal/mapview"
	"github.com/vietnamexplorer/explorer/internal/user"
	"github.com/vietnamexplorer/explorer/internal/weather"
)

// ViewState is the search state of one map screen.
//
// WeatherByIndex keys are always indices into POIs. A nil value means the
// fetch for that index finished without a result; a missing key means it has
// not finished yet.
type ViewState struct {
	FocalPoint     geo.Point                 `json:"focalPoint"`
	POIs           []geo.PointOfInterest     `json:"pois"`
	WeatherByIndex map[int]*weather.Snapshot `json:"weatherByIndex"`
	FocalWeather   *weather.Snapshot         `json:"focalWeather"`
	Loading        bool                      `json:"loading"`
	ErrorMessage   string                    `json:"errorMessage"`

	// Generation increases every time POIs is replaced.
	Generation uint64 `json:"generation"`
	// SearchSeq increases every time a primary search starts.
	SearchSeq uint64 `json:"searchSeq"`
}

func (v ViewState) clone() ViewState {
	c := v
	c.POIs = append([]geo.PointOfInterest{}, v.POIs...)
	c.WeatherByIndex = make(map[int]*weather.Snapshot, len(v.WeatherByIndex))
	for i, w := range v.WeatherByIndex {
		if w != nil {
			snap := *w
			w = &snap
		}
		c.WeatherByIndex[i] = w
	}
	if v.FocalWeather != nil {
		w := *v.FocalWeather
		c.FocalWeather = &w
	}
	return c
}

// Snapshot is a consistent copy of everything a screen renders.
type Snapshot struct {
	ScreenID string `json:"screenId"`
	// Version increases on every state change; clients drop events older than
	// the snapshot they hold.
	Version        uint64              `json:"version"`
	State          ViewState           `json:"state"`
	Chat           []assistant.Message `json:"chat"`
	ChatLoading    bool                `json:"chatLoading"`
	DeviceLocation *geo.Point          `json:"deviceLocation"`
	Map            mapview.View        `json:"map"`
	Profile        *user.Profile       `json:"profile"`
}
