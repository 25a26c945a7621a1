package assistant

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/vietnamexplorer/explorer/internal/failure"
	"github.com/vietnamexplorer/explorer/internal/geo"
	"github.com/vietnamexplorer/explorer/internal/place"
)

// Reply and clarification messages.
const (
	MessageNothingFound         = "Xin lỗi, mình không tìm thấy địa điểm nào phù hợp với yêu cầu của bạn."
	MessageAskLocation          = "Bạn có muốn gần chỗ nào không hay là địa chỉ hiện tại của bạn? Vui lòng cho Mình biết tên địa điểm (ví dụ: HCMUS, Quận 5, TP.HCM)"
	MessageAskCurrentLocation   = "Mình cần biết vị trí hiện tại của bạn. Bạn có thể cho mình biết tên địa điểm không?"
	MessageAskRadius            = "Bạn muốn tìm trong bán kính bao nhiêu? (ví dụ: 5km hoặc 500m)"
	MessageAskQuery             = "Bạn có yêu cầu gì về địa điểm không hay cái nào cũng được?"
	MessageAnythingAcknowledged = "Bạn không có yêu cầu cụ thể về loại địa điểm thì mình sẽ tìm tất cả các điểm đáng chú ý trong khu vực."
	CurrentLocationName         = "vị trí hiện tại"
)

// PlaceFinder is the subset of the place service the assistant searches with.
type PlaceFinder interface {
	Geocode(ctx context.Context, placeName string) (*geo.Location, error)
	FindPointsOfInterest(ctx context.Context, q place.POIQuery) ([]geo.PointOfInterest, error)
}

// ServiceConfig holds configuration for the assistant service.
type ServiceConfig struct {
	Extractor Extractor
	Places    PlaceFinder
	Logger    zerolog.Logger
}

// Service answers chat turns.
type Service struct {
	extractor Extractor
	places    PlaceFinder
	logger    zerolog.Logger
}

// NewService creates an assistant service. A nil extractor disables entity extraction.
func NewService(cfg ServiceConfig) *Service {
	extractor := cfg.Extractor
	if extractor == nil {
		extractor = NopExtractor{}
	}
	return &Service{extractor: extractor, places: cfg.Places, logger: cfg.Logger}
}

// Chat answers one turn. Fields missing from the message are taken from earlier
// user messages, newest first. With a coordinate and a radius the assistant
// searches; otherwise it asks for what is missing.
func (s *Service) Chat(ctx context.Context, req ChatRequest) (*Reply, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, failure.Validation("assistant", "message is required")
	}

	entities, err := s.extractor.Extract(ctx, message)
	if err != nil {
		s.logger.Warn().Err(err).Msg("entity extraction failed, continuing with rules only")
		entities = nil
	}

	parsed := Parse(message, entities)
	fillFromHistory(&parsed, req.History)

	s.logger.Debug().
		Str("location", parsed.LocationName).
		Float64("radius_km", parsed.RadiusKm).
		Str("query", parsed.Query).
		Msg("parsed chat message")

	var (
		missing []string
		point   *geo.Point
	)

	switch {
	case parsed.LocationName != "":
		loc, err := s.places.Geocode(ctx, parsed.LocationName)
		switch {
		case err == nil:
			point = &loc.Point
		case req.Current != nil:
			point = req.Current
		default:
			missing = append(missing, MissingLocation)
		}
	case MentionsCurrentLocation(message):
		if req.Current != nil {
			point = req.Current
			parsed.LocationName = CurrentLocationName
		} else {
			missing = append(missing, MissingCurrentLocation)
		}
	case req.Current != nil:
		point = req.Current
		parsed.LocationName = CurrentLocationName
	default:
		missing = append(missing, MissingLocation)
	}

	if parsed.RadiusKm == 0 {
		missing = append(missing, MissingRadius)
	}

	extracted := toEntities(parsed, point, missing)

	if point != nil && parsed.RadiusKm != 0 {
		return s.search(ctx, parsed, *point, extracted)
	}

	return &Reply{
		Message:            clarification(parsed, missing, message),
		Entities:           extracted,
		NeedsClarification: true,
	}, nil
}

func (s *Service) search(ctx context.Context, parsed Parsed, point geo.Point, extracted Entities) (*Reply, error) {
	pois, err := s.places.FindPointsOfInterest(ctx, place.POIQuery{
		Center:       point,
		RadiusMeters: int(parsed.RadiusKm * 1000),
		Query:        parsed.Query,
	})
	if errors.Is(err, failure.ErrNotFound) || (err == nil && len(pois) == 0) {
		return &Reply{
			Message:       MessageNothingFound,
			Entities:      extracted,
			SearchResults: []geo.PointOfInterest{},
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("searching points of interest: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Mình đã tìm thấy %d địa điểm", len(pois))
	if parsed.Query != "" {
		fmt.Fprintf(&b, " về '%s'", parsed.Query)
	}
	if parsed.LocationName != "" {
		fmt.Fprintf(&b, " gần %s", parsed.LocationName)
	}
	fmt.Fprintf(&b, " trong bán kính %skm!", formatKm(parsed.RadiusKm))

	return &Reply{
		Message:       b.String(),
		Entities:      extracted,
		SearchResults: pois,
	}, nil
}

func clarification(parsed Parsed, missing []string, message string) string {
	has := func(field string) bool {
		for _, m := range missing {
			if m == field {
				return true
			}
		}
		return false
	}

	switch {
	case has(MissingLocation):
		return MessageAskLocation
	case has(MissingCurrentLocation):
		return MessageAskCurrentLocation
	case has(MissingRadius):
		if parsed.Query != "" {
			return MessageAskRadius + " để tìm " + parsed.Query
		}
		return MessageAskRadius
	case parsed.Query == "" && AcceptsAnything(message):
		return MessageAnythingAcknowledged
	case parsed.Query == "":
		return MessageAskQuery
	}
	return ""
}

// fillFromHistory fills each missing field independently from the newest
// earlier user message that has it.
func fillFromHistory(parsed *Parsed, history []Message) {
	for i := len(history) - 1; i >= 0; i-- {
		if parsed.RadiusKm != 0 && parsed.Query != "" && parsed.LocationName != "" {
			return
		}
		msg := history[i]
		if !msg.Role.IsUser() {
			continue
		}
		prev := Parse(msg.Content, nil)
		if parsed.RadiusKm == 0 {
			parsed.RadiusKm = prev.RadiusKm
		}
		if parsed.Query == "" {
			parsed.Query = prev.Query
		}
		if parsed.LocationName == "" {
			parsed.LocationName = prev.LocationName
		}
	}
}

func toEntities(parsed Parsed, point *geo.Point, missing []string) Entities {
	e := Entities{MissingFields: missing}
	if e.MissingFields == nil {
		e.MissingFields = []string{}
	}
	if parsed.LocationName != "" {
		name := parsed.LocationName
		e.LocationName = &name
	}
	if point != nil {
		lat, lng := point.Lat, point.Lng
		e.Lat, e.Lng = &lat, &lng
	}
	if parsed.RadiusKm != 0 {
		r := parsed.RadiusKm
		e.RadiusKm = &r
	}
	if parsed.Query != "" {
		q := parsed.Query
		e.Query = &q
	}
	return e
}

// formatKm renders whole numbers with one decimal ("10.0") as chat replies always have.
func formatKm(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
