package explore

import (
	"context"
	"sync"

	"github.com/vietnamexplorer/explorer/internal/assistant"
	"github.com/vietnamexplorer/explorer/internal/geo"
	"github.com/vietnamexplorer/explorer/internal/weather"
)

type fakeLocations struct {
	mu      sync.Mutex
	results map[string]*geo.Location
	errs    map[string]error
	gates   map[string]chan struct{}
	started chan string
	calls   int
}

func (f *fakeLocations) Geocode(ctx context.Context, placeName string) (*geo.Location, error) {
	f.mu.Lock()
	f.calls++
	gate := f.gates[placeName]
	loc, err := f.results[placeName], f.errs[placeName]
	f.mu.Unlock()

	if f.started != nil {
		f.started <- placeName
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return loc, nil
}

func (f *fakeLocations) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakePOIs struct {
	mu       sync.Mutex
	byCenter map[geo.Point][]geo.PointOfInterest
	err      error
	radii    []int
}

func (f *fakePOIs) PointsOfInterest(_ context.Context, center geo.Point, radiusMeters int) ([]geo.PointOfInterest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.radii = append(f.radii, radiusMeters)
	if f.err != nil {
		return nil, f.err
	}
	return f.byCenter[center], nil
}

type fakeWeather struct {
	mu    sync.Mutex
	temps map[geo.Point]float64
	errs  map[geo.Point]error
	gates map[geo.Point]chan struct{}
	calls int
}

func (f *fakeWeather) Name() string { return "fake" }

func (f *fakeWeather) CurrentWeather(ctx context.Context, p geo.Point) (*weather.Snapshot, error) {
	f.mu.Lock()
	f.calls++
	gate := f.gates[p]
	temp, err := f.temps[p], f.errs[p]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &weather.Snapshot{Condition: "Clouds", Description: "broken clouds", TemperatureC: temp, IconCode: "04d"}, nil
}

type fakeAssistant struct {
	mu       sync.Mutex
	reply    *assistant.Reply
	err      error
	gate     chan struct{}
	requests []assistant.ChatRequest
}

func (f *fakeAssistant) Chat(ctx context.Context, req assistant.ChatRequest) (*assistant.Reply, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.reply, nil
}

func (f *fakeAssistant) lastRequest() assistant.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

type fakeRecorder struct {
	mu          sync.Mutex
	searches    []string
	chatTurns   []string
	annotations int
	failedNotes int
}

func (f *fakeRecorder) SearchFinished(_ context.Context, outcome, step string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if step != "" {
		outcome += ":" + step
	}
	f.searches = append(f.searches, outcome)
}

func (f *fakeRecorder) ChatTurn(_ context.Context, failed, implicitSearch bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case failed:
		f.chatTurns = append(f.chatTurns, "failed")
	case implicitSearch:
		f.chatTurns = append(f.chatTurns, "search")
	default:
		f.chatTurns = append(f.chatTurns, "reply")
	}
}

func (f *fakeRecorder) Annotation(_ context.Context, failed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.annotations++
	if failed {
		f.failedNotes++
	}
}

func (f *fakeRecorder) snapshot() (searches, chatTurns []string, annotations, failed int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.searches...), append([]string(nil), f.chatTurns...), f.annotations, f.failedNotes
}
