package mapview

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietnamexplorer/explorer/internal/geo"
	"github.com/vietnamexplorer/explorer/internal/weather"
)

var (
	lake   = geo.PointOfInterest{Name: "Hoan Kiem Lake", Type: "Park", Description: "A park in the area", Point: geo.Point{Lat: 21.02880, Lng: 105.85250}}
	temple = geo.PointOfInterest{Name: "Ngoc Son Temple", Type: "Temple", Description: "Đinh Tiên Hoàng", Point: geo.Point{Lat: 21.03070, Lng: 105.85240}}
	museum = geo.PointOfInterest{Name: "Vietnam National Museum of History", Type: "Museum", Description: "1 Tràng Tiền", Point: geo.Point{Lat: 21.02440, Lng: 105.85990}}
)

func TestNew_Defaults(t *testing.T) {
	v := New(geo.Hanoi).Render()

	assert.Equal(t, Camera{Center: geo.Hanoi, Zoom: 13}, v.Camera)
	assert.Nil(t, v.FlyTo)
	assert.Equal(t, TileURL, v.TileLayer.URL)
	assert.Empty(t, v.Markers)
}

func TestRecenter_FliesAndClosesPopups(t *testing.T) {
	m := New(geo.Hanoi)
	m.SetPOIs([]geo.PointOfInterest{lake, temple})
	require.NoError(t, m.OpenPopup(0))
	require.NoError(t, m.OpenPopup(1))
	assert.Len(t, m.Render().Popups, 2)

	saigon := geo.Point{Lat: 10.7769, Lng: 106.7009}
	m.Recenter(saigon)
	m.Recenter(saigon)

	v := m.Render()
	assert.Empty(t, v.Popups)
	require.NotNil(t, v.FlyTo)
	assert.Equal(t, uint64(2), v.FlyTo.Seq)
	assert.Equal(t, saigon, v.FlyTo.Center)
	assert.Equal(t, 1.5, v.FlyTo.DurationSeconds)
	assert.Equal(t, saigon, v.Camera.Center)
}

func TestPopups_SurvivePOIReplacementAndFollowIdentity(t *testing.T) {
	m := New(geo.Hanoi)
	m.SetPOIs([]geo.PointOfInterest{lake, temple})
	require.NoError(t, m.OpenPopup(1))

	// temple moves to index 0; its popup follows it.
	m.SetPOIs([]geo.PointOfInterest{temple, museum})
	v := m.Render()
	require.Len(t, v.Popups, 1)
	assert.Equal(t, 0, v.Popups[0].Index)
	assert.Equal(t, "Ngoc Son Temple", v.Popups[0].Name)
	assert.Equal(t, "21.0307, 105.8524", v.Popups[0].Coordinates)

	// temple disappears; its popup is no longer rendered.
	m.SetPOIs([]geo.PointOfInterest{museum})
	assert.Empty(t, m.Render().Popups)
}

func TestWeather_LabelsAndPopups(t *testing.T) {
	m := New(geo.Hanoi)
	m.SetPOIs([]geo.PointOfInterest{lake, temple})
	require.NoError(t, m.OpenPopup(0))

	m.SetWeather(0, &weather.Snapshot{Condition: "Rain", IconCode: "10d", TemperatureC: 27})
	m.SetWeather(5, &weather.Snapshot{IconCode: "01d"})

	v := m.Render()
	assert.Equal(t, "https://openweathermap.org/img/wn/10d.png", v.Markers[0].Label.IconURL)
	assert.Empty(t, v.Markers[1].Label.IconURL)
	require.NotNil(t, v.Popups[0].Weather)
	assert.Equal(t, 27.0, v.Popups[0].Weather.TemperatureC)
	assert.Equal(t, "https://openweathermap.org/img/wn/10d@2x.png", v.Popups[0].IconURL)

	m.SetPOIs([]geo.PointOfInterest{lake, temple})
	assert.Empty(t, m.Render().Markers[0].Label.IconURL)
	assert.Len(t, m.Render().Popups, 1, "replacing weather never closes popups")
}

func TestOpenPopup_Errors(t *testing.T) {
	m := New(geo.Hanoi)
	m.SetPOIs([]geo.PointOfInterest{lake})

	assert.True(t, errors.Is(m.OpenPopup(3), ErrNoSuchMarker))
	require.NoError(t, m.OpenPopup(0))
	require.NoError(t, m.OpenPopup(0))
	assert.Len(t, m.Render().Popups, 1)

	m.ClosePopup(0)
	assert.Empty(t, m.Render().Popups)
}
