// Package api provides the HTTP API for the Vietnam Explorer map.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/vietnamexplorer/explorer/internal/api/handler"
	"github.com/vietnamexplorer/explorer/internal/api/middleware"
	"github.com/vietnamexplorer/explorer/internal/auth"
	"github.com/vietnamexplorer/explorer/internal/events"
	"github.com/vietnamexplorer/explorer/internal/explore"
	"github.com/vietnamexplorer/explorer/internal/provider/resilience"
	"github.com/vietnamexplorer/explorer/internal/routing"
	"github.com/vietnamexplorer/explorer/internal/translate"
	"github.com/vietnamexplorer/explorer/internal/user"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version          string
	BuildTime        string
	Logger           zerolog.Logger
	ServiceName      string
	Metrics          *middleware.Metrics
	AuthService      *auth.Service
	UserService      *user.Service
	ExploreService   *explore.Service
	TranslateService *translate.Service
	RouteProvider    routing.Provider
	Registry         *resilience.Registry
	Events           events.Bus
	AllowedOrigins   []string
	RequireTLS       bool
	Dependencies     []handler.Dependency
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "explorer-api"
	}
	bus := cfg.Events
	if bus == nil {
		bus = events.NewMemoryBus()
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))       // Structured logging
	r.Use(middleware.Recovery(cfg.Logger))     // Panic recovery
	r.Use(chimiddleware.RealIP)                // Real IP extraction
	r.Use(middleware.CORS(cfg.AllowedOrigins)) // Browser origins
	r.Use(middleware.SecurityHeaders)          // nosniff, CSP, no-store; HSTS behind TLS
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.ContentTypeJSON)
	r.Use(middleware.RequireJSON)

	// Initialize handlers
	var screens handler.ScreenCounter
	if cfg.ExploreService != nil {
		screens = cfg.ExploreService
	}
	streamer := handler.NewEventStreamer(bus, cfg.AllowedOrigins, cfg.Logger)
	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Registry, screens, cfg.Dependencies...)
	authHandler := handler.NewAuthHandler(cfg.AuthService, cfg.Logger)
	sessionHandler := handler.NewSessionHandler(cfg.AuthService, cfg.UserService, streamer, cfg.Logger)
	screenHandler := handler.NewScreenHandler(cfg.ExploreService, streamer, cfg.Logger)
	translateHandler := handler.NewTranslateHandler(cfg.TranslateService)
	routeHandler := handler.NewRouteHandler(cfg.RouteProvider)

	// Create auth middleware
	authMiddleware := middleware.Auth(cfg.AuthService)
	optionalAuth := middleware.OptionalAuth(cfg.AuthService)

	authRateLimit := middleware.RateLimitByIP(middleware.AuthRateLimit)
	actionRateLimit := middleware.RateLimitByUser(middleware.ScreenActionRateLimit)
	upstreamRateLimit := middleware.RateLimitByUser(middleware.UpstreamRateLimit)
	standardRateLimit := middleware.RateLimitByUser(middleware.StandardRateLimit)

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		// Auth endpoints - strict rate limiting
		r.Route("/auth", func(r chi.Router) {
			r.Use(authRateLimit)
			r.Post("/sign-up", authHandler.SignUp)
			r.Post("/sign-in", authHandler.SignIn)
			r.Post("/google", authHandler.SignInWithGoogle)
			r.Post("/refresh", authHandler.RefreshToken)

			r.Group(func(r chi.Router) {
				r.Use(authMiddleware)
				r.Post("/logout", authHandler.Logout)
				r.Post("/verification-email", authHandler.ResendVerification)
				r.Post("/verification-refresh", authHandler.RefreshVerification)
			})
		})

		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			// Status endpoint requires authentication
			r.With(authMiddleware).Get("/status", opsHandler.SystemStatus)
		})

		// Session endpoints
		r.Route("/session", func(r chi.Router) {
			r.With(optionalAuth).Get("/gate", sessionHandler.Gate)
			r.With(authMiddleware).Get("/events", sessionHandler.Events)
		})

		r.With(authMiddleware, standardRateLimit).Get("/me", sessionHandler.GetMe)

		// Everything below requires a verified email
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(middleware.RequireVerified)

			r.Route("/screens", func(r chi.Router) {
				r.Use(standardRateLimit)
				r.Post("/", screenHandler.Mount)
				r.Route("/{screenId}", func(r chi.Router) {
					r.Get("/", screenHandler.Get)
					r.Delete("/", screenHandler.Unmount)
					r.With(actionRateLimit).Post("/search", screenHandler.Search)
					r.With(actionRateLimit).Post("/chat", screenHandler.Chat)
					r.Put("/device-location", screenHandler.SetDeviceLocation)
					r.Delete("/device-location", screenHandler.ClearDeviceLocation)
					r.Post("/popups", screenHandler.OpenPopup)
					r.Delete("/popups/{index}", screenHandler.ClosePopup)
					r.Get("/events", screenHandler.Events)
				})
			})

			// Translation and routing call third-party providers
			r.With(upstreamRateLimit).Post("/translate", translateHandler.Translate)
			r.With(upstreamRateLimit).Get("/route", routeHandler.GetRoute)
		})
	})

	return r
}
