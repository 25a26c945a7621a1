// Package mapview keeps the render model of the map screen: camera, markers
// with weather labels and open detail popups.
//
// A Model is not safe for concurrent use; the owning screen serializes access.
package mapview

import (
	"errors"
	"fmt"

	"github.com/vietnamexplorer/explorer/internal/geo"
	"github.com/vietnamexplorer/explorer/internal/weather"
)

// ErrNoSuchMarker is returned when a popup is requested for an index that has no marker.
var ErrNoSuchMarker = errors.New("no marker at index")

const (
	// DefaultZoom is the zoom level used for every recenter.
	DefaultZoom = 13

	// FlyToDurationSeconds is the duration of the recenter animation.
	FlyToDurationSeconds = 1.5

	TileURL         = "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png"
	TileAttribution = `&copy; <a href="https://www.openstreetmap.org/copyright">OpenStreetMap</a> contributors`
)

// Camera is the current map viewport.
type Camera struct {
	Center geo.Point `json:"center"`
	Zoom   int       `json:"zoom"`
}

// FlyTo is the most recent recenter animation. Seq increases on every recenter.
type FlyTo struct {
	Seq             uint64    `json:"seq"`
	Center          geo.Point `json:"center"`
	Zoom            int       `json:"zoom"`
	DurationSeconds float64   `json:"durationSeconds"`
}

// TileLayer describes the base map.
type TileLayer struct {
	URL         string `json:"url"`
	Attribution string `json:"attribution"`
}

// Label is the permanent text shown under a marker.
type Label struct {
	Text    string `json:"text"`
	IconURL string `json:"iconUrl,omitempty"`
}

// Marker is one POI on the map.
type Marker struct {
	Index    int       `json:"index"`
	Position geo.Point `json:"position"`
	Label    Label     `json:"label"`
}

// Popup is an open detail panel for a marker.
type Popup struct {
	Index       int               `json:"index"`
	Name        string            `json:"name"`
	Type        string            `json:"type"`
	Description string            `json:"description"`
	Coordinates string            `json:"coordinates"`
	Weather     *weather.Snapshot `json:"weather,omitempty"`
	IconURL     string            `json:"iconUrl,omitempty"`
}

// View is an immutable render of the model.
type View struct {
	Camera    Camera    `json:"camera"`
	FlyTo     *FlyTo    `json:"flyTo,omitempty"`
	TileLayer TileLayer `json:"tileLayer"`
	Markers   []Marker  `json:"markers"`
	Popups    []Popup   `json:"popups"`
}

// Model is the map render model.
type Model struct {
	camera  Camera
	flyTo   *FlyTo
	seq     uint64
	pois    []geo.PointOfInterest
	weather map[int]*weather.Snapshot
	// popups holds the POIs whose popups are open, in opening order.
	popups []geo.PointOfInterest
}

// New creates a model centered on center.
func New(center geo.Point) *Model {
	return &Model{
		camera:  Camera{Center: center, Zoom: DefaultZoom},
		weather: make(map[int]*weather.Snapshot),
	}
}

// Recenter flies the camera to p and closes every popup.
func (m *Model) Recenter(p geo.Point) {
	m.seq++
	m.camera = Camera{Center: p, Zoom: DefaultZoom}
	m.flyTo = &FlyTo{Seq: m.seq, Center: p, Zoom: DefaultZoom, DurationSeconds: FlyToDurationSeconds}
	m.popups = nil
}

// SetPOIs replaces the markers. Weather labels are cleared; open popups are kept.
func (m *Model) SetPOIs(pois []geo.PointOfInterest) {
	m.pois = append([]geo.PointOfInterest(nil), pois...)
	m.weather = make(map[int]*weather.Snapshot)
}

// SetWeather sets or clears (nil) the weather label of the marker at index.
func (m *Model) SetWeather(index int, s *weather.Snapshot) {
	if index < 0 || index >= len(m.pois) {
		return
	}
	if s == nil {
		delete(m.weather, index)
		return
	}
	m.weather[index] = s
}

// OpenPopup opens the popup of the marker at index. Opening an open popup is a no-op.
func (m *Model) OpenPopup(index int) error {
	if index < 0 || index >= len(m.pois) {
		return fmt.Errorf("%w: %d", ErrNoSuchMarker, index)
	}
	poi := m.pois[index]
	for _, open := range m.popups {
		if open == poi {
			return nil
		}
	}
	m.popups = append(m.popups, poi)
	return nil
}

// ClosePopup closes the popup of the marker at index, if open.
func (m *Model) ClosePopup(index int) {
	if index < 0 || index >= len(m.pois) {
		return
	}
	poi := m.pois[index]
	for i, open := range m.popups {
		if open == poi {
			m.popups = append(m.popups[:i], m.popups[i+1:]...)
			return
		}
	}
}

// Render returns a copy of the current view. Popups whose POI is no longer
// listed are omitted.
func (m *Model) Render() View {
	v := View{
		Camera:    m.camera,
		TileLayer: TileLayer{URL: TileURL, Attribution: TileAttribution},
		Markers:   make([]Marker, 0, len(m.pois)),
		Popups:    make([]Popup, 0, len(m.popups)),
	}
	if m.flyTo != nil {
		f := *m.flyTo
		v.FlyTo = &f
	}

	for i, poi := range m.pois {
		label := Label{Text: poi.Name}
		if s := m.weather[i]; s != nil {
			label.IconURL = s.LabelIconURL()
		}
		v.Markers = append(v.Markers, Marker{Index: i, Position: poi.Point, Label: label})
	}

	for _, open := range m.popups {
		i := m.indexOf(open)
		if i < 0 {
			continue
		}
		p := Popup{
			Index:       i,
			Name:        open.Name,
			Type:        open.Type,
			Description: open.Description,
			Coordinates: fmt.Sprintf("%.4f, %.4f", open.Lat, open.Lng),
		}
		if s := m.weather[i]; s != nil {
			snap := *s
			p.Weather = &snap
			p.IconURL = s.IconURL()
		}
		v.Popups = append(v.Popups, p)
	}

	return v
}

func (m *Model) indexOf(poi geo.PointOfInterest) int {
	for i, p := range m.pois {
		if p == poi {
			return i
		}
	}
	return -1
}
