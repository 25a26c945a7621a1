package placeapi

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/vietnamexplorer/explorer/internal/api/middleware"
)

// RouterConfig holds configuration for the place backend router.
type RouterConfig struct {
	Logger         zerolog.Logger
	ServiceName    string
	Metrics        *middleware.Metrics
	Places         Places
	Assistant      Assistant
	AllowedOrigins []string
}

// NewRouter creates the place backend router.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "explorer-placeapi"
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	h := NewHandler(cfg.Places, cfg.Assistant, cfg.Logger)

	r.Get("/healthz", h.Health)

	// Geocoding is paced upstream; POI and chat fan out to many queries.
	r.Route("/place", func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(middleware.StandardRateLimit))
		r.Post("/geocode", h.Geocode)
		r.With(middleware.RateLimitByIP(middleware.UpstreamRateLimit)).Post("/poi", h.PointsOfInterest)
	})
	r.With(middleware.RateLimitByIP(middleware.ScreenActionRateLimit)).Post("/ai/chat", h.Chat)

	return r
}
