package explore

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietnamexplorer/explorer/internal/assistant"
	"github.com/vietnamexplorer/explorer/internal/events"
	"github.com/vietnamexplorer/explorer/internal/failure"
	"github.com/vietnamexplorer/explorer/internal/geo"
	"github.com/vietnamexplorer/explorer/internal/mapview"
	"github.com/vietnamexplorer/explorer/internal/user"
)

var (
	hoanKiem    = geo.PointOfInterest{Name: "Hoan Kiem Lake", Type: "Park", Description: "Dinh Tien Hoang", Point: geo.Point{Lat: 21.0288, Lng: 105.8525}}
	templeOfLit = geo.PointOfInterest{Name: "Temple of Literature", Type: "Temple", Description: "58 Quoc Tu Giam", Point: geo.Point{Lat: 21.0276, Lng: 105.8355}}
	dongXuan    = geo.PointOfInterest{Name: "Dong Xuan Market", Type: "Shop", Description: "A Shop in the area", Point: geo.Point{Lat: 21.0381, Lng: 105.8497}}

	saigon   = geo.Point{Lat: 10.7769, Lng: 106.7009}
	benThanh = geo.PointOfInterest{Name: "Ben Thanh Market", Type: "Shop", Description: "Le Loi", Point: geo.Point{Lat: 10.7725, Lng: 106.6980}}
)

type harness struct {
	locations *fakeLocations
	pois      *fakePOIs
	weather   *fakeWeather
	assistant *fakeAssistant
	bus       *events.MemoryBus
	metrics   *fakeRecorder
	service   *Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		locations: &fakeLocations{
			results: map[string]*geo.Location{
				"Hanoi":  {Name: "Hanoi", Point: geo.Hanoi},
				"Saigon": {Name: "Saigon", Point: saigon},
			},
			errs: map[string]error{
				"Zzzqq123": failure.NotFound("placeapi", "Không tìm thấy kết quả"),
			},
		},
		pois: &fakePOIs{byCenter: map[geo.Point][]geo.PointOfInterest{
			geo.Hanoi: {hoanKiem, templeOfLit, dongXuan},
			saigon:    {benThanh},
		}},
		weather: &fakeWeather{temps: map[geo.Point]float64{
			geo.Hanoi:        24,
			hoanKiem.Point:    25,
			templeOfLit.Point: 26,
			dongXuan.Point:    27,
			saigon:            32,
			benThanh.Point:    33,
		}},
		assistant: &fakeAssistant{},
		bus:       events.NewMemoryBus(),
		metrics:   &fakeRecorder{},
	}
	h.service = NewService(Config{
		Locations: h.locations,
		POIs:      h.pois,
		Assistant: h.assistant,
		Weather:   h.weather,
		Events:    h.bus,
		Metrics:   h.metrics,
		Logger:    zerolog.Nop(),
	})
	t.Cleanup(h.service.Close)
	return h
}

func (h *harness) mount(t *testing.T) *Screen {
	t.Helper()
	s, err := h.service.Mount(context.Background(), "user-1")
	require.NoError(t, err)
	return s
}

func TestMount_InitialState(t *testing.T) {
	h := newHarness(t)
	snap := h.mount(t).Snapshot()

	assert.Equal(t, geo.Hanoi, snap.State.FocalPoint)
	assert.Empty(t, snap.State.POIs)
	assert.False(t, snap.State.Loading)
	require.Len(t, snap.Chat, 1)
	assert.Equal(t, assistant.RoleAssistant, snap.Chat[0].Role)
	assert.Equal(t, MessageGreeting, snap.Chat[0].Content)
	assert.Equal(t, mapview.DefaultZoom, snap.Map.Camera.Zoom)
	assert.Nil(t, snap.Map.FlyTo)
	assert.Nil(t, snap.Profile)
}

func TestSubmitSearch_Hanoi(t *testing.T) {
	h := newHarness(t)
	s := h.mount(t)

	require.NoError(t, s.SubmitSearch(context.Background(), "Hanoi"))
	s.Wait()

	snap := s.Snapshot()
	assert.Equal(t, geo.Hanoi, snap.State.FocalPoint)
	assert.Equal(t, []geo.PointOfInterest{hoanKiem, templeOfLit, dongXuan}, snap.State.POIs)
	assert.False(t, snap.State.Loading)
	assert.Empty(t, snap.State.ErrorMessage)
	require.NotNil(t, snap.State.FocalWeather)
	assert.Equal(t, 24.0, snap.State.FocalWeather.TemperatureC)

	require.Len(t, snap.State.WeatherByIndex, 3)
	assert.Equal(t, 25.0, snap.State.WeatherByIndex[0].TemperatureC)
	assert.Equal(t, 26.0, snap.State.WeatherByIndex[1].TemperatureC)
	assert.Equal(t, 27.0, snap.State.WeatherByIndex[2].TemperatureC)

	assert.Equal(t, []int{DefaultSearchRadiusMeters}, h.pois.radii)

	require.NotNil(t, snap.Map.FlyTo)
	assert.Equal(t, geo.Hanoi, snap.Map.FlyTo.Center)
	require.Len(t, snap.Map.Markers, 3)
	assert.Equal(t, "https://openweathermap.org/img/wn/04d.png", snap.Map.Markers[0].Label.IconURL)
}

func TestSubmitSearch_EmptyInput(t *testing.T) {
	h := newHarness(t)
	s := h.mount(t)

	require.NoError(t, s.SubmitSearch(context.Background(), "   "))

	snap := s.Snapshot()
	assert.Equal(t, MessageEmptySearch, snap.State.ErrorMessage)
	assert.False(t, snap.State.Loading)
	assert.Zero(t, h.locations.callCount())
	assert.Zero(t, snap.State.SearchSeq)
}

func TestSubmitSearch_PlaceNotFound(t *testing.T) {
	h := newHarness(t)
	s := h.mount(t)

	require.NoError(t, s.SubmitSearch(context.Background(), "Hanoi"))
	s.Wait()
	require.NoError(t, s.SubmitSearch(context.Background(), "Zzzqq123"))
	s.Wait()

	snap := s.Snapshot()
	assert.Equal(t, `Place not found: "Zzzqq123" could not be found in Vietnam. Please try another location.`, snap.State.ErrorMessage)
	assert.False(t, snap.State.Loading)
	assert.Empty(t, snap.State.POIs)
	assert.Empty(t, snap.State.WeatherByIndex)
	assert.Nil(t, snap.State.FocalWeather)
	// The focal point stays where the previous search left it.
	assert.Equal(t, geo.Hanoi, snap.State.FocalPoint)
}

func TestSubmitSearch_CallerGoneLeavesNoError(t *testing.T) {
	h := newHarness(t)
	h.locations.gates = map[string]chan struct{}{"Hanoi": make(chan struct{})}
	s := h.mount(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, s.SubmitSearch(ctx, "Hanoi"))
	s.Wait()

	snap := s.Snapshot()
	assert.Empty(t, snap.State.ErrorMessage)
	assert.False(t, snap.State.Loading)
	assert.Empty(t, snap.State.POIs)

	searches, _, _, _ := h.metrics.snapshot()
	assert.Equal(t, []string{"canceled:geocode"}, searches)

	// The next search runs normally.
	h.locations.gates = nil
	require.NoError(t, s.SubmitSearch(context.Background(), "Hanoi"))
	s.Wait()
	assert.Len(t, s.Snapshot().State.POIs, 3)
}

func TestSubmitSearch_FailureClassification(t *testing.T) {
	tests := []struct {
		name    string
		geoErr  error
		poiErr  error
		wantMsg string
	}{
		{"geocode network", failure.FromTransport("placeapi", errors.New("connection refused")), nil, MessageNetwork},
		{"geocode timeout", failure.FromTransport("placeapi", context.DeadlineExceeded), nil, MessageTimeout},
		{"geocode server", failure.FromStatus("placeapi", 500, ""), nil, MessageGeneric},
		{"poi not found", nil, failure.NotFound("placeapi", "No points of interest found in this area"), MessageNoPOIs},
		{"poi unavailable", nil, failure.FromStatus("placeapi", 503, ""), MessageNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			if tt.geoErr != nil {
				h.locations.errs["Hanoi"] = tt.geoErr
			}
			h.pois.err = tt.poiErr
			s := h.mount(t)

			require.NoError(t, s.SubmitSearch(context.Background(), "Hanoi"))
			s.Wait()

			snap := s.Snapshot()
			assert.Equal(t, tt.wantMsg, snap.State.ErrorMessage)
			assert.False(t, snap.State.Loading)
			assert.Empty(t, snap.State.POIs)
		})
	}
}

func TestSubmitSearch_WeatherFailureKeepsPOIs(t *testing.T) {
	h := newHarness(t)
	h.weather.errs = map[geo.Point]error{geo.Hanoi: failure.FromStatus("openweathermap", 503, "")}
	s := h.mount(t)

	require.NoError(t, s.SubmitSearch(context.Background(), "Hanoi"))
	s.Wait()

	snap := s.Snapshot()
	assert.Equal(t, MessageNetwork, snap.State.ErrorMessage)
	assert.Len(t, snap.State.POIs, 3)
	assert.Nil(t, snap.State.FocalWeather)
	assert.Len(t, snap.State.WeatherByIndex, 3)
}

func TestRefreshAnnotations_FailureIsAbsent(t *testing.T) {
	h := newHarness(t)
	h.weather.errs = map[geo.Point]error{templeOfLit.Point: errors.New("boom")}
	s := h.mount(t)

	require.NoError(t, s.SubmitSearch(context.Background(), "Hanoi"))
	s.Wait()

	snap := s.Snapshot()
	require.Len(t, snap.State.WeatherByIndex, 3)
	w, ok := snap.State.WeatherByIndex[1]
	assert.True(t, ok)
	assert.Nil(t, w)
	assert.NotNil(t, snap.State.WeatherByIndex[0])
	assert.Empty(t, snap.Map.Markers[1].Label.IconURL)
	assert.Empty(t, snap.State.ErrorMessage)
}

func TestRefreshAnnotations_StaleGenerationDropped(t *testing.T) {
	h := newHarness(t)
	release := make(chan struct{})
	h.weather.gates = map[geo.Point]chan struct{}{hoanKiem.Point: release}
	s := h.mount(t)

	require.NoError(t, s.SubmitSearch(context.Background(), "Hanoi"))
	firstGen := s.Snapshot().State.Generation

	// The second search replaces the POIs while Hoan Kiem's fetch is pending.
	require.NoError(t, s.SubmitSearch(context.Background(), "Saigon"))
	close(release)
	s.Wait()

	snap := s.Snapshot()
	assert.Greater(t, snap.State.Generation, firstGen)
	assert.Equal(t, []geo.PointOfInterest{benThanh}, snap.State.POIs)
	require.Len(t, snap.State.WeatherByIndex, 1)
	assert.Equal(t, 33.0, snap.State.WeatherByIndex[0].TemperatureC)
	assert.Equal(t, 32.0, snap.State.FocalWeather.TemperatureC)
}

func TestSubmitSearch_LastWriteWins(t *testing.T) {
	h := newHarness(t)
	release := make(chan struct{})
	h.locations.gates = map[string]chan struct{}{"Hanoi": release}
	h.locations.started = make(chan string, 2)
	s := h.mount(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, s.SubmitSearch(context.Background(), "Hanoi"))
	}()
	require.Equal(t, "Hanoi", <-h.locations.started)

	require.NoError(t, s.SubmitSearch(context.Background(), "Saigon"))
	<-h.locations.started
	close(release)
	<-done
	s.Wait()

	snap := s.Snapshot()
	assert.Equal(t, saigon, snap.State.FocalPoint)
	assert.Equal(t, []geo.PointOfInterest{benThanh}, snap.State.POIs)
	assert.False(t, snap.State.Loading)
	assert.Equal(t, uint64(2), snap.State.SearchSeq)
	assert.Equal(t, uint64(1), snap.Map.FlyTo.Seq)
}

func TestSubmitSearch_Idempotent(t *testing.T) {
	h := newHarness(t)
	s := h.mount(t)

	require.NoError(t, s.SubmitSearch(context.Background(), "Hanoi"))
	s.Wait()
	first := s.Snapshot()

	require.NoError(t, s.SubmitSearch(context.Background(), "Hanoi"))
	s.Wait()
	second := s.Snapshot()

	assert.Equal(t, first.State.FocalPoint, second.State.FocalPoint)
	assert.Equal(t, first.State.POIs, second.State.POIs)
	assert.Equal(t, first.State.WeatherByIndex, second.State.WeatherByIndex)
	assert.Equal(t, first.State.FocalWeather, second.State.FocalWeather)
	assert.Equal(t, first.Map.Markers, second.Map.Markers)
}

func TestSubmitChatMessage_ImplicitSearch(t *testing.T) {
	h := newHarness(t)
	focal := geo.Point{Lat: 10.77, Lng: 106.70}
	lat, lng := focal.Lat, focal.Lng
	h.assistant.reply = &assistant.Reply{
		Message:       "Mình đã tìm thấy 1 địa điểm trong bán kính 2.0km!",
		Entities:      assistant.Entities{Lat: &lat, Lng: &lng},
		SearchResults: []geo.PointOfInterest{benThanh},
	}
	h.weather.temps[focal] = 31
	s := h.mount(t)

	require.NoError(t, s.SubmitSearch(context.Background(), ""))
	require.NoError(t, s.SubmitChatMessage(context.Background(), "tìm chợ trong 2km"))
	s.Wait()

	req := h.assistant.lastRequest()
	assert.Equal(t, "tìm chợ trong 2km", req.Message)
	require.Len(t, req.History, 1)
	assert.Equal(t, MessageGreeting, req.History[0].Content)
	require.NotNil(t, req.Current)
	assert.Equal(t, geo.Hanoi, *req.Current)

	snap := s.Snapshot()
	assert.Equal(t, focal, snap.State.FocalPoint)
	assert.Equal(t, []geo.PointOfInterest{benThanh}, snap.State.POIs)
	assert.Empty(t, snap.State.ErrorMessage)
	require.NotNil(t, snap.State.FocalWeather)
	assert.Equal(t, 31.0, snap.State.FocalWeather.TemperatureC)
	assert.Equal(t, 33.0, snap.State.WeatherByIndex[0].TemperatureC)
	assert.Equal(t, focal, snap.Map.Camera.Center)

	require.Len(t, snap.Chat, 3)
	assert.Equal(t, assistant.RoleUser, snap.Chat[1].Role)
	assert.Equal(t, h.assistant.reply.Message, snap.Chat[2].Content)
	assert.False(t, snap.ChatLoading)
}

func TestSubmitChatMessage_ClarificationLeavesMap(t *testing.T) {
	h := newHarness(t)
	h.assistant.reply = &assistant.Reply{Message: "Bạn muốn tìm trong bán kính bao nhiêu km?", NeedsClarification: true}
	s := h.mount(t)

	require.NoError(t, s.SubmitSearch(context.Background(), "Hanoi"))
	s.Wait()
	before := s.Snapshot()

	require.NoError(t, s.SubmitChatMessage(context.Background(), "tìm cafe"))
	after := s.Snapshot()

	assert.Equal(t, before.State, after.State)
	assert.Equal(t, before.Map.FlyTo, after.Map.FlyTo)
	assert.Len(t, after.Chat, 3)
}

func TestSubmitChatMessage_UsesDeviceLocation(t *testing.T) {
	h := newHarness(t)
	h.assistant.reply = &assistant.Reply{Message: "ok"}
	s := h.mount(t)

	device := geo.Point{Lat: 10.7626, Lng: 106.6822}
	require.NoError(t, s.SetDeviceLocation(device))
	require.NoError(t, s.SubmitChatMessage(context.Background(), "quán cafe gần đây"))
	assert.Equal(t, device, *h.assistant.lastRequest().Current)

	require.NoError(t, s.ClearDeviceLocation())
	require.NoError(t, s.SubmitChatMessage(context.Background(), "còn gì nữa"))
	assert.Equal(t, geo.Hanoi, *h.assistant.lastRequest().Current)

	// History excludes the message being sent.
	assert.Len(t, h.assistant.lastRequest().History, 3)
}

func TestSetDeviceLocation_Invalid(t *testing.T) {
	h := newHarness(t)
	s := h.mount(t)

	err := s.SetDeviceLocation(geo.Point{Lat: 120, Lng: 0})
	assert.ErrorIs(t, err, geo.ErrInvalidCoordinates)
	assert.Nil(t, s.Snapshot().DeviceLocation)
}

func TestSubmitChatMessage_Failure(t *testing.T) {
	h := newHarness(t)
	h.assistant.err = failure.FromStatus("placeapi", 500, "")
	s := h.mount(t)

	require.NoError(t, s.SubmitChatMessage(context.Background(), "xin chào"))

	snap := s.Snapshot()
	require.Len(t, snap.Chat, 3)
	assert.Equal(t, MessageChatFailed, snap.Chat[2].Content)
	assert.Equal(t, assistant.RoleAssistant, snap.Chat[2].Role)
	assert.False(t, snap.ChatLoading)
}

func TestSubmitChatMessage_Rejections(t *testing.T) {
	h := newHarness(t)
	release := make(chan struct{})
	h.assistant.gate = release
	h.assistant.reply = &assistant.Reply{Message: "ok"}
	s := h.mount(t)

	assert.ErrorIs(t, s.SubmitChatMessage(context.Background(), "  "), ErrEmptyMessage)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, s.SubmitChatMessage(context.Background(), "first"))
	}()
	require.Eventually(t, func() bool { return s.Snapshot().ChatLoading }, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, s.SubmitChatMessage(context.Background(), "second"), ErrChatBusy)

	close(release)
	wg.Wait()

	snap := s.Snapshot()
	require.Len(t, snap.Chat, 3)
	assert.Equal(t, "first", snap.Chat[1].Content)
}

func TestPopups(t *testing.T) {
	h := newHarness(t)
	s := h.mount(t)

	require.NoError(t, s.SubmitSearch(context.Background(), "Hanoi"))
	s.Wait()

	require.NoError(t, s.OpenPopup(1))
	require.NoError(t, s.OpenPopup(2))
	assert.ErrorIs(t, s.OpenPopup(9), mapview.ErrNoSuchMarker)

	snap := s.Snapshot()
	require.Len(t, snap.Map.Popups, 2)
	assert.Equal(t, "Temple of Literature", snap.Map.Popups[0].Name)
	assert.Equal(t, "21.0276, 105.8355", snap.Map.Popups[0].Coordinates)

	require.NoError(t, s.ClosePopup(1))
	assert.Len(t, s.Snapshot().Map.Popups, 1)

	// Recentering closes every popup.
	require.NoError(t, s.SubmitSearch(context.Background(), "Saigon"))
	s.Wait()
	assert.Empty(t, s.Snapshot().Map.Popups)
}

func TestScreen_PublishesSnapshots(t *testing.T) {
	h := newHarness(t)
	s := h.mount(t)

	var (
		mu   sync.Mutex
		last Snapshot
		n    int
	)
	_, err := h.bus.Subscribe(events.ScreenSubject(s.ID()), func(data []byte) {
		var snap Snapshot
		if assert.NoError(t, json.Unmarshal(data, &snap)) {
			mu.Lock()
			defer mu.Unlock()
			n++
			if snap.Version > last.Version {
				last = snap
			}
		}
	})
	require.NoError(t, err)

	require.NoError(t, s.SubmitSearch(context.Background(), "Hanoi"))
	s.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.GreaterOrEqual(t, n, 4)
	assert.Equal(t, s.Snapshot().Version, last.Version)
	assert.Len(t, last.State.POIs, 3)
}

func TestService_OwnershipAndUnmount(t *testing.T) {
	h := newHarness(t)
	s := h.mount(t)

	got, err := h.service.Screen(s.ID(), "user-1")
	require.NoError(t, err)
	assert.Same(t, s, got)

	_, err = h.service.Screen(s.ID(), "someone-else")
	assert.ErrorIs(t, err, ErrScreenNotFound)
	assert.ErrorIs(t, h.service.Unmount(s.ID(), "someone-else"), ErrScreenNotFound)

	require.NoError(t, h.service.Unmount(s.ID(), "user-1"))
	_, err = h.service.Screen(s.ID(), "user-1")
	assert.ErrorIs(t, err, ErrScreenNotFound)
	assert.ErrorIs(t, s.SubmitSearch(context.Background(), "Hanoi"), ErrScreenClosed)
	assert.Zero(t, h.service.ActiveScreens())
}

type fakeProfiles struct {
	profile *user.Profile
	err     error
}

func (f fakeProfiles) GetProfile(context.Context, string) (*user.Profile, error) {
	return f.profile, f.err
}

func TestService_MountLoadsProfile(t *testing.T) {
	profile := &user.Profile{UserID: "user-1", Username: "lan", FullName: "Nguyen Thi Lan"}
	svc := NewService(Config{
		Locations: &fakeLocations{},
		POIs:      &fakePOIs{},
		Assistant: &fakeAssistant{},
		Weather:   &fakeWeather{},
		Profiles:  fakeProfiles{profile: profile},
		Logger:    zerolog.Nop(),
	})
	defer svc.Close()

	s, err := svc.Mount(context.Background(), "user-1")
	require.NoError(t, err)
	require.NotNil(t, s.Snapshot().Profile)
	assert.Equal(t, "lan", s.Snapshot().Profile.Username)

	// A profile failure does not prevent mounting.
	svc.cfg.Profiles = fakeProfiles{err: errors.New("db down")}
	s, err = svc.Mount(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Nil(t, s.Snapshot().Profile)
}

func TestScreen_RecordsMetrics(t *testing.T) {
	h := newHarness(t)
	h.weather.errs = map[geo.Point]error{dongXuan.Point: errors.New("rate limited")}
	s := h.mount(t)
	ctx := context.Background()

	require.NoError(t, s.SubmitSearch(ctx, "Hanoi"))
	s.Wait()
	require.NoError(t, s.SubmitSearch(ctx, "Zzzqq123"))
	require.NoError(t, s.SubmitSearch(ctx, "  "))

	h.assistant.err = errors.New("assistant down")
	require.NoError(t, s.SubmitChatMessage(ctx, "tìm quán cà phê"))

	h.assistant.err = nil
	h.assistant.reply = &assistant.Reply{Message: "Bạn muốn tìm ở đâu?"}
	require.NoError(t, s.SubmitChatMessage(ctx, "tìm quán cà phê"))
	s.Wait()

	searches, chatTurns, annotations, failed := h.metrics.snapshot()
	assert.Equal(t, []string{"ok", "failed:geocode", "empty"}, searches)
	assert.Equal(t, []string{"failed", "reply"}, chatTurns)
	assert.Equal(t, 3, annotations)
	assert.Equal(t, 1, failed)
}
