// Package place resolves place names and finds points of interest for the place backend.
package place

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/vietnamexplorer/explorer/internal/failure"
	"github.com/vietnamexplorer/explorer/internal/geo"
)

// Messages returned to API consumers.
const (
	MessageNoGeocodeResult = "Không tìm thấy kết quả"
	MessageNoPOIs          = "No points of interest found in this area"
)

// DefaultAmenities are queried in this order and merged in this order.
var DefaultAmenities = []string{
	"bank", "restaurant", "cafe", "hotel", "museum", "park",
	"library", "hospital", "pharmacy", "supermarket", "shop",
	"cinema", "temple", "church", "school",
}

const (
	// DefaultRadiusMeters is the POI search radius when the caller sends none.
	DefaultRadiusMeters = 10000

	// DefaultMaxResults caps the POI list.
	DefaultMaxResults = 5

	// duplicateTolerance is the per-axis distance in degrees under which two
	// elements count as the same place.
	duplicateTolerance = 0.001
)

// Geocoder resolves free text to the best matching coordinate in Vietnam.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (geo.Point, error)
}

// Element is one raw map feature returned by an amenity query.
type Element struct {
	Tags map[string]string
	// Point is nil when the feature carries no usable coordinate.
	Point *geo.Point
}

// AmenitySource lists map features of one amenity type around a point.
type AmenitySource interface {
	Amenities(ctx context.Context, center geo.Point, radiusMeters int, amenity string) ([]Element, error)
}

// POIQuery describes a points-of-interest search.
type POIQuery struct {
	Center       geo.Point
	RadiusMeters int
	// Query optionally filters by case-insensitive substring of name or description.
	Query string
}

// ServiceConfig holds configuration for the place service.
type ServiceConfig struct {
	Geocoder    Geocoder
	Source      AmenitySource
	Amenities   []string
	MaxResults  int
	Concurrency int
	Logger      zerolog.Logger
}

// Service implements geocoding and POI discovery.
type Service struct {
	geocoder    Geocoder
	source      AmenitySource
	amenities   []string
	maxResults  int
	concurrency int
	logger      zerolog.Logger
}

// NewService creates a place service.
func NewService(cfg ServiceConfig) *Service {
	amenities := cfg.Amenities
	if len(amenities) == 0 {
		amenities = DefaultAmenities
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	return &Service{
		geocoder:    cfg.Geocoder,
		source:      cfg.Source,
		amenities:   amenities,
		maxResults:  maxResults,
		concurrency: concurrency,
		logger:      cfg.Logger,
	}
}

// Geocode resolves a place name. The returned location echoes the requested name.
func (s *Service) Geocode(ctx context.Context, placeName string) (*geo.Location, error) {
	name := strings.TrimSpace(placeName)
	if name == "" {
		return nil, failure.Validation("place", "place_name is required")
	}

	p, err := s.geocoder.Geocode(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("geocoding %q: %w", name, err)
	}

	s.logger.Debug().Str("query", name).Str("point", p.String()).Msg("geocoded place")
	return &geo.Location{Name: placeName, Point: p}, nil
}

// FindPointsOfInterest queries every amenity type concurrently and merges the
// results in amenity order. A failing amenity query is skipped.
func (s *Service) FindPointsOfInterest(ctx context.Context, q POIQuery) ([]geo.PointOfInterest, error) {
	if err := q.Center.Validate(); err != nil {
		return nil, failure.Validation("place", err.Error())
	}
	if q.RadiusMeters <= 0 {
		q.RadiusMeters = DefaultRadiusMeters
	}

	results := make([][]Element, len(s.amenities))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, amenity := range s.amenities {
		g.Go(func() error {
			elements, err := s.source.Amenities(gctx, q.Center, q.RadiusMeters, amenity)
			if err != nil {
				s.logger.Warn().Err(err).Str("amenity", amenity).Msg("amenity query failed")
				return nil
			}
			results[i] = elements
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, failure.FromTransport("place", err)
	}

	var pois []geo.PointOfInterest
	for i, amenity := range s.amenities {
		for _, el := range results[i] {
			poi, ok := s.toPOI(el, amenity)
			if !ok || isDuplicate(pois, poi.Point) {
				continue
			}
			pois = append(pois, poi)
		}
	}

	if q.Query != "" {
		pois = s.filter(pois, q.Query)
	}

	if len(pois) == 0 {
		return nil, failure.NotFound("place", MessageNoPOIs)
	}
	if len(pois) > s.maxResults {
		pois = pois[:s.maxResults]
	}

	s.logger.Debug().Int("count", len(pois)).Str("center", q.Center.String()).Msg("found points of interest")
	return pois, nil
}

func (s *Service) toPOI(el Element, amenity string) (geo.PointOfInterest, bool) {
	if el.Point == nil {
		return geo.PointOfInterest{}, false
	}

	name := firstTag(el.Tags, "name", "operator", "brand", "amenity")
	if name == "" {
		name = amenity
	}
	// A feature that only repeats its amenity type is not worth showing.
	if name == amenity {
		return geo.PointOfInterest{}, false
	}

	description := firstTag(el.Tags, "addr:full", "addr:street", "addr:housename", "description", "website", "phone")
	if description == "" {
		description = "A " + amenity + " in the area"
	}

	return geo.PointOfInterest{
		Name:        name,
		Type:        cases.Title(language.English).String(amenity),
		Description: description,
		Point:       *el.Point,
	}, true
}

func (s *Service) filter(pois []geo.PointOfInterest, query string) []geo.PointOfInterest {
	// Casers are stateful, one per call.
	fold := cases.Fold()
	normalize := func(v string) string { return fold.String(norm.NFC.String(v)) }

	needle := normalize(query)
	out := pois[:0]
	for _, poi := range pois {
		if strings.Contains(normalize(poi.Name), needle) || strings.Contains(normalize(poi.Description), needle) {
			out = append(out, poi)
		}
	}
	return out
}

func isDuplicate(pois []geo.PointOfInterest, p geo.Point) bool {
	for _, existing := range pois {
		if existing.Within(p, duplicateTolerance) {
			return true
		}
	}
	return false
}

func firstTag(tags map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := tags[k]; v != "" {
			return v
		}
	}
	return ""
}
