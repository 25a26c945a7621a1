package explore

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vietnamexplorer/explorer/internal/assistant"
	"github.com/vietnamexplorer/explorer/internal/events"
	"github.com/vietnamexplorer/explorer/internal/geo"
	"github.com/vietnamexplorer/explorer/internal/mapview"
	"github.com/vietnamexplorer/explorer/internal/telemetry"
	"github.com/vietnamexplorer/explorer/internal/user"
	"github.com/vietnamexplorer/explorer/internal/weather"
)

// Screen errors.
var (
	ErrScreenNotFound = errors.New("screen not found")
	ErrScreenClosed   = errors.New("screen closed")
	ErrChatBusy       = errors.New("a chat message is already being answered")
	ErrEmptyMessage   = errors.New("chat message is empty")
)

// Screen is one mounted map screen. All mutations go through the screen's
// lock; network calls are made without holding it.
type Screen struct {
	id      string
	ownerID string
	cfg     *Config
	logger  zerolog.Logger

	// ctx lives as long as the screen and bounds background fetches.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	closed      bool
	version     uint64
	state       ViewState
	chat        []assistant.Message
	chatLoading bool
	device      *geo.Point
	profile     *user.Profile
	view        *mapview.Model
}

func newScreen(id, ownerID string, cfg *Config, profile *user.Profile) *Screen {
	ctx, cancel := context.WithCancel(context.Background())
	return &Screen{
		id:      id,
		ownerID: ownerID,
		cfg:     cfg,
		logger:  cfg.Logger.With().Str("screen_id", id).Logger(),
		ctx:     ctx,
		cancel:  cancel,
		state: ViewState{
			FocalPoint:     geo.Hanoi,
			POIs:           []geo.PointOfInterest{},
			WeatherByIndex: make(map[int]*weather.Snapshot),
		},
		chat:    []assistant.Message{{Role: assistant.RoleAssistant, Content: MessageGreeting}},
		profile: profile,
		view:    mapview.New(geo.Hanoi),
	}
}

// ID returns the screen id.
func (s *Screen) ID() string { return s.id }

// OwnerID returns the id of the user that mounted the screen.
func (s *Screen) OwnerID() string { return s.ownerID }

// SubmitSearch runs the manual search chain: geocode, POIs around the
// result, then weather at the result. Failures end up in the state's
// ErrorMessage; the only error returned is ErrScreenClosed.
func (s *Screen) SubmitSearch(ctx context.Context, placeName string) error {
	if strings.TrimSpace(placeName) == "" {
		if !s.apply(func() bool {
			s.state.ErrorMessage = MessageEmptySearch
			return true
		}) {
			return ErrScreenClosed
		}
		s.cfg.Metrics.SearchFinished(ctx, telemetry.OutcomeEmpty, "")
		return nil
	}

	var seq uint64
	if !s.apply(func() bool {
		seq = s.beginSearchLocked()
		s.state.Loading = true
		s.state.ErrorMessage = ""
		s.state.FocalWeather = nil
		s.replacePOIsLocked(nil)
		return true
	}) {
		return ErrScreenClosed
	}

	log := s.logger.With().Uint64("search_seq", seq).Logger()
	log.Debug().Str("place_name", placeName).Msg("search started")

	loc, err := s.cfg.Locations.Geocode(ctx, placeName)
	if err != nil {
		s.failSearch(ctx, seq, stepGeocode, err, placeName)
		return nil
	}
	focal := loc.Point
	if !s.applyCurrent(seq, func() {
		s.state.FocalPoint = focal
		s.view.Recenter(focal)
	}) {
		s.cfg.Metrics.SearchFinished(ctx, telemetry.OutcomeSuperseded, "")
		return nil
	}

	pois, err := s.cfg.POIs.PointsOfInterest(ctx, focal, s.cfg.SearchRadiusMeters)
	if err != nil {
		s.failSearch(ctx, seq, stepPOI, err, placeName)
		return nil
	}
	var gen uint64
	if !s.applyCurrent(seq, func() { gen = s.replacePOIsLocked(pois) }) {
		s.cfg.Metrics.SearchFinished(ctx, telemetry.OutcomeSuperseded, "")
		return nil
	}
	s.refreshAnnotations(gen, pois)

	w, err := s.cfg.Weather.CurrentWeather(ctx, focal)
	if err != nil {
		s.failSearch(ctx, seq, stepWeather, err, placeName)
		return nil
	}
	outcome := telemetry.OutcomeOK
	if !s.applyCurrent(seq, func() {
		s.state.FocalWeather = w
		s.state.Loading = false
	}) {
		outcome = telemetry.OutcomeSuperseded
	}
	s.cfg.Metrics.SearchFinished(ctx, outcome, "")

	log.Debug().Int("pois", len(pois)).Str("outcome", outcome).Msg("search finished")
	return nil
}

func (s *Screen) failSearch(ctx context.Context, seq uint64, st step, err error, input string) {
	if errors.Is(ctx.Err(), context.Canceled) {
		s.abandonSearch(seq, st)
		return
	}

	msg := searchErrorMessage(st, err, input)
	applied := s.applyCurrent(seq, func() {
		s.state.ErrorMessage = msg
		s.state.Loading = false
	})
	s.cfg.Metrics.SearchFinished(ctx, telemetry.OutcomeFailed, st.String())
	s.logger.Warn().Err(err).
		Uint64("search_seq", seq).
		Stringer("step", st).
		Bool("superseded", !applied).
		Msg("search failed")
}

// abandonSearch ends a search whose caller went away. The failure says
// nothing about the upstream, so no error message is shown.
func (s *Screen) abandonSearch(seq uint64, st step) {
	s.applyCurrent(seq, func() { s.state.Loading = false })
	s.cfg.Metrics.SearchFinished(context.Background(), telemetry.OutcomeCanceled, st.String())
	s.logger.Debug().Uint64("search_seq", seq).Stringer("step", st).Msg("search abandoned by caller")
}

// SubmitChatMessage sends one message to the assistant. The reply, or an
// apology when the call fails, is appended to the chat. A reply carrying
// search results and a coordinate replaces the POIs and recenters the map.
func (s *Screen) SubmitChatMessage(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}

	var (
		req  assistant.ChatRequest
		busy bool
	)
	if !s.apply(func() bool {
		if s.chatLoading {
			busy = true
			return false
		}
		history := append([]assistant.Message{}, s.chat...)
		s.chat = append(s.chat, assistant.Message{Role: assistant.RoleUser, Content: text})
		s.chatLoading = true

		current := s.state.FocalPoint
		if s.device != nil {
			current = *s.device
		}
		req = assistant.ChatRequest{Message: text, History: history, Current: &current}
		return true
	}) {
		if busy {
			return ErrChatBusy
		}
		return ErrScreenClosed
	}

	reply, err := s.cfg.Assistant.Chat(ctx, req)
	if err != nil {
		s.logger.Warn().Err(err).Msg("chat failed")
		s.cfg.Metrics.ChatTurn(ctx, true, false)
		s.apply(func() bool {
			s.chatLoading = false
			s.chat = append(s.chat, assistant.Message{Role: assistant.RoleAssistant, Content: MessageChatFailed})
			return true
		})
		return nil
	}

	focal, hasFocal := reply.Entities.Point()
	implicit := len(reply.SearchResults) > 0 && hasFocal
	s.cfg.Metrics.ChatTurn(ctx, false, implicit)

	var seq, gen uint64
	s.apply(func() bool {
		s.chatLoading = false
		s.chat = append(s.chat, assistant.Message{Role: assistant.RoleAssistant, Content: reply.Message})
		if implicit {
			seq = s.beginSearchLocked()
			s.state.Loading = false
			s.state.ErrorMessage = ""
			s.state.FocalWeather = nil
			s.state.FocalPoint = focal
			s.view.Recenter(focal)
			gen = s.replacePOIsLocked(reply.SearchResults)
		}
		return true
	})

	if implicit {
		s.refreshAnnotations(gen, reply.SearchResults)
		s.fetchFocalWeather(seq, focal)
	}
	return nil
}

// fetchFocalWeather loads weather for an assistant-driven focal point in the
// background. Failures are only logged.
func (s *Screen) fetchFocalWeather(seq uint64, focal geo.Point) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		w, err := s.cfg.Weather.CurrentWeather(s.ctx, focal)
		if err != nil {
			s.logger.Warn().Err(err).Uint64("search_seq", seq).Msg("focal weather failed")
			return
		}
		s.applyCurrent(seq, func() { s.state.FocalWeather = w })
	}()
}

// refreshAnnotations fetches weather for each POI on a bounded pool. Results
// are written only while gen is still the current generation.
func (s *Screen) refreshAnnotations(gen uint64, pois []geo.PointOfInterest) {
	if len(pois) == 0 {
		return
	}
	pois = append([]geo.PointOfInterest(nil), pois...)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		var g errgroup.Group
		g.SetLimit(s.cfg.AnnotationWorkers)
		for i, poi := range pois {
			if s.ctx.Err() != nil || !s.isGeneration(gen) {
				break
			}
			g.Go(func() error {
				s.annotate(gen, i, poi)
				return nil
			})
		}
		_ = g.Wait()
	}()
}

func (s *Screen) annotate(gen uint64, index int, poi geo.PointOfInterest) {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.AnnotationTimeout)
	defer cancel()

	w, err := s.cfg.Weather.CurrentWeather(ctx, poi.Point)
	if err != nil {
		s.logger.Warn().Err(err).
			Int("index", index).
			Str("poi", poi.Name).
			Msg("poi weather failed")
		w = nil
	}
	s.cfg.Metrics.Annotation(ctx, err != nil)

	s.apply(func() bool {
		if s.state.Generation != gen {
			return false
		}
		s.state.WeatherByIndex[index] = w
		s.view.SetWeather(index, w)
		return true
	})
}

func (s *Screen) isGeneration(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Generation == gen
}

// SetDeviceLocation records a device geolocation grant. Later chat messages
// use it as the current position.
func (s *Screen) SetDeviceLocation(p geo.Point) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if !s.apply(func() bool {
		s.device = &p
		return true
	}) {
		return ErrScreenClosed
	}
	return nil
}

// ClearDeviceLocation forgets the device location; chat falls back to the
// focal point.
func (s *Screen) ClearDeviceLocation() error {
	if !s.apply(func() bool {
		changed := s.device != nil
		s.device = nil
		return changed
	}) && s.isClosed() {
		return ErrScreenClosed
	}
	return nil
}

// OpenPopup opens the detail popup of the POI at index.
func (s *Screen) OpenPopup(index int) error {
	var err error
	if !s.apply(func() bool {
		err = s.view.OpenPopup(index)
		return err == nil
	}) && err == nil {
		return ErrScreenClosed
	}
	return err
}

// ClosePopup closes the detail popup of the POI at index, if open.
func (s *Screen) ClosePopup(index int) error {
	if !s.apply(func() bool {
		s.view.ClosePopup(index)
		return true
	}) {
		return ErrScreenClosed
	}
	return nil
}

// Snapshot returns a consistent copy of the screen.
func (s *Screen) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Wait blocks until every background fetch started so far has finished.
func (s *Screen) Wait() {
	s.wg.Wait()
}

func (s *Screen) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
}

func (s *Screen) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// apply runs fn under the screen lock. When fn reports a change, the version
// is bumped and the new snapshot published. It returns false when the screen
// is closed or fn made no change.
func (s *Screen) apply(fn func() bool) bool {
	s.mu.Lock()
	if s.closed || !fn() {
		s.mu.Unlock()
		return false
	}
	s.version++
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(snap)
	return true
}

// applyCurrent is apply for a step of search seq; it does nothing once a
// newer search has started.
func (s *Screen) applyCurrent(seq uint64, fn func()) bool {
	return s.apply(func() bool {
		if s.state.SearchSeq != seq {
			return false
		}
		fn()
		return true
	})
}

func (s *Screen) beginSearchLocked() uint64 {
	s.state.SearchSeq++
	return s.state.SearchSeq
}

// replacePOIsLocked swaps in a new POI list and returns its generation.
// Weather for the previous list is discarded first.
func (s *Screen) replacePOIsLocked(pois []geo.PointOfInterest) uint64 {
	s.state.WeatherByIndex = make(map[int]*weather.Snapshot)
	s.state.POIs = append([]geo.PointOfInterest{}, pois...)
	s.state.Generation++
	s.view.SetPOIs(pois)
	return s.state.Generation
}

func (s *Screen) snapshotLocked() Snapshot {
	snap := Snapshot{
		ScreenID:    s.id,
		Version:     s.version,
		State:       s.state.clone(),
		Chat:        append([]assistant.Message{}, s.chat...),
		ChatLoading: s.chatLoading,
		Map:         s.view.Render(),
	}
	if s.device != nil {
		p := *s.device
		snap.DeviceLocation = &p
	}
	if s.profile != nil {
		p := *s.profile
		snap.Profile = &p
	}
	return snap
}

func (s *Screen) publish(snap Snapshot) {
	if s.cfg.Events == nil {
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		s.logger.Error().Err(err).Msg("encoding screen snapshot")
		return
	}
	if err := s.cfg.Events.Publish(s.ctx, events.ScreenSubject(s.id), data); err != nil {
		s.logger.Debug().Err(err).Msg("publishing screen snapshot")
	}
}
