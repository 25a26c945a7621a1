// Package explore hosts the map screen: manual search, the assistant chat and
// the per-POI weather annotations, reconciled into one state per screen.
package explore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vietnamexplorer/explorer/internal/assistant"
	"github.com/vietnamexplorer/explorer/internal/events"
	"github.com/vietnamexplorer/explorer/internal/geo"
	"github.com/vietnamexplorer/explorer/internal/user"
	"github.com/vietnamexplorer/explorer/internal/weather"
)

// Defaults.
const (
	DefaultSearchRadiusMeters = 500
	DefaultAnnotationWorkers  = 4
	DefaultAnnotationTimeout  = 10 * time.Second
	DefaultIdleTTL            = 30 * time.Minute
)

// LocationLookup resolves a place name.
type LocationLookup interface {
	Geocode(ctx context.Context, placeName string) (*geo.Location, error)
}

// POILookup lists points of interest around a point.
type POILookup interface {
	PointsOfInterest(ctx context.Context, center geo.Point, radiusMeters int) ([]geo.PointOfInterest, error)
}

// Assistant answers one chat turn.
type Assistant interface {
	Chat(ctx context.Context, req assistant.ChatRequest) (*assistant.Reply, error)
}

// ProfileLoader loads the profile shown on a screen. A nil profile is valid.
type ProfileLoader interface {
	GetProfile(ctx context.Context, userID string) (*user.Profile, error)
}

// Recorder receives screen activity for metrics. telemetry.ExploreMetrics
// implements it.
type Recorder interface {
	SearchFinished(ctx context.Context, outcome, step string)
	ChatTurn(ctx context.Context, failed, implicitSearch bool)
	Annotation(ctx context.Context, failed bool)
}

type nopRecorder struct{}

func (nopRecorder) SearchFinished(context.Context, string, string) {}
func (nopRecorder) ChatTurn(context.Context, bool, bool)           {}
func (nopRecorder) Annotation(context.Context, bool)               {}

// Config holds the collaborators and limits of the explore service.
type Config struct {
	Locations LocationLookup
	POIs      POILookup
	Assistant Assistant
	Weather   weather.Provider

	// Profiles is optional; without it screens carry no profile.
	Profiles ProfileLoader
	// Events is optional; without it state changes are not pushed.
	Events events.Publisher
	// Metrics is optional.
	Metrics Recorder

	SearchRadiusMeters int
	AnnotationWorkers  int
	AnnotationTimeout  time.Duration
	IdleTTL            time.Duration

	Logger zerolog.Logger
}

// Service mounts and looks up map screens.
type Service struct {
	cfg    *Config
	store  *Store
	logger zerolog.Logger
}

// NewService creates an explore service.
func NewService(cfg Config) *Service {
	if cfg.SearchRadiusMeters <= 0 {
		cfg.SearchRadiusMeters = DefaultSearchRadiusMeters
	}
	if cfg.AnnotationWorkers <= 0 {
		cfg.AnnotationWorkers = DefaultAnnotationWorkers
	}
	if cfg.AnnotationTimeout <= 0 {
		cfg.AnnotationTimeout = DefaultAnnotationTimeout
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultIdleTTL
	}
	if cfg.Metrics == nil {
		cfg.Metrics = nopRecorder{}
	}

	return &Service{
		cfg:    &cfg,
		store:  NewStore(cfg.IdleTTL),
		logger: cfg.Logger,
	}
}

// Mount creates a screen for ownerID, focused on Hanoi with the greeting as
// the only chat message. The owner's profile is loaded once here.
func (s *Service) Mount(ctx context.Context, ownerID string) (*Screen, error) {
	var profile *user.Profile
	if s.cfg.Profiles != nil {
		p, err := s.cfg.Profiles.GetProfile(ctx, ownerID)
		if err != nil {
			// The screen works without a profile.
			s.logger.Warn().Err(err).Str("user_id", ownerID).Msg("loading profile")
		} else {
			profile = p
		}
	}

	screen := newScreen(uuid.NewString(), ownerID, s.cfg, profile)
	s.store.Add(screen)

	s.logger.Info().
		Str("screen_id", screen.id).
		Str("user_id", ownerID).
		Msg("screen mounted")
	return screen, nil
}

// Screen returns a mounted screen owned by ownerID.
func (s *Service) Screen(screenID, ownerID string) (*Screen, error) {
	return s.store.Get(screenID, ownerID)
}

// Unmount discards a screen. Background fetches are cancelled and their
// results dropped.
func (s *Service) Unmount(screenID, ownerID string) error {
	if err := s.store.Remove(screenID, ownerID); err != nil {
		return err
	}
	s.logger.Info().Str("screen_id", screenID).Msg("screen unmounted")
	return nil
}

// ActiveScreens returns the number of mounted screens.
func (s *Service) ActiveScreens() int {
	return s.store.Len()
}

// Close discards every screen.
func (s *Service) Close() {
	s.store.Close()
}
