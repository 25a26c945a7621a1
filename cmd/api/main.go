// Package main provides the entrypoint for the Vietnam Explorer API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/vietnamexplorer/explorer/internal/api"
	"github.com/vietnamexplorer/explorer/internal/api/handler"
	"github.com/vietnamexplorer/explorer/internal/api/middleware"
	"github.com/vietnamexplorer/explorer/internal/auth"
	"github.com/vietnamexplorer/explorer/internal/backend"
	"github.com/vietnamexplorer/explorer/internal/config"
	"github.com/vietnamexplorer/explorer/internal/database"
	"github.com/vietnamexplorer/explorer/internal/events"
	"github.com/vietnamexplorer/explorer/internal/explore"
	"github.com/vietnamexplorer/explorer/internal/provider/resilience"
	"github.com/vietnamexplorer/explorer/internal/routing/osrm"
	"github.com/vietnamexplorer/explorer/internal/telemetry"
	"github.com/vietnamexplorer/explorer/internal/translate"
	"github.com/vietnamexplorer/explorer/internal/translate/mymemory"
	"github.com/vietnamexplorer/explorer/internal/user"
	"github.com/vietnamexplorer/explorer/internal/weather/openweathermap"
	"github.com/vietnamexplorer/explorer/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "explorer-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting Vietnam Explorer API")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	// Initialize OpenTelemetry
	ctx := context.Background()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.TelemetryEnabled,
		SampleRatio:    cfg.TraceSampleRatio,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.TelemetryEnabled {
		log.Info().
			Str("otlp_endpoint", cfg.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics(tp.Meter)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	exploreMetrics, err := telemetry.NewExploreMetrics(tp.Meter)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize explore metrics")
	}

	registry := resilience.NewRegistry()
	var deps []handler.Dependency

	// Storage: Postgres when configured, process memory otherwise.
	var (
		profileRepo user.Repository        = user.NewInMemoryRepository()
		sessionRepo auth.SessionRepository = auth.NewInMemorySessionRepository()
	)
	if database.Enabled() {
		dbConfig, err := database.ConfigFromEnv()
		if err != nil {
			log.Fatal().Err(err).Msg("invalid database configuration")
		}
		if dbConfig.ApplicationName == "" {
			dbConfig.ApplicationName = serviceName
		}
		if cfg.MigrateOnStart {
			if err := database.RunMigrations(dbConfig, log); err != nil {
				log.Fatal().Err(err).Msg("failed to migrate database")
			}
		}
		pool, err := database.Connect(ctx, dbConfig)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		log.Info().
			Str("host", dbConfig.Host).
			Int("port", dbConfig.Port).
			Str("database", dbConfig.Database).
			Msg("database connected")

		profileRepo = user.NewPostgresRepository(pool)
		sessionRepo = auth.NewPostgresSessionRepository(pool)
		deps = append(deps, handler.Dependency{Name: "database", Ping: pool.Ping})
	} else {
		log.Warn().Msg("DB_HOST not set - profiles and sessions are kept in memory")
	}

	// Event bus
	var bus events.Bus = events.NewMemoryBus()
	if cfg.NATSURL != "" {
		natsConfig := events.DefaultNATSConfig()
		natsConfig.URL = cfg.NATSURL
		natsConfig.Name = serviceName
		natsConfig.Logger = log
		natsBus, err := events.ConnectNATS(natsConfig)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to nats")
		}
		bus = natsBus
		deps = append(deps, handler.Dependency{Name: "nats", Ping: natsBus.Ping})
		log.Info().Str("url", cfg.NATSURL).Msg("nats event bus connected")
	}
	defer bus.Close()

	userService := user.NewService(profileRepo, log)

	// Profile writes go through the worker when Pub/Sub is configured.
	var provisioner auth.ProfileProvisioner = auth.DirectProvisioner{Profiles: userService}
	if cfg.PubSubProjectID != "" {
		topic, err := worker.NewTopicPublisher(ctx, cfg.PubSubProjectID, cfg.ProfileTopic)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub publisher")
		}
		defer topic.Close()
		provisioner = worker.NewProfileQueue(topic, log)
		log.Info().Str("topic", cfg.ProfileTopic).Msg("profile provisioning queued through pubsub")
	}

	// Identity provider
	var identity auth.IdentityProvider
	if cfg.FirebaseAPIKey != "" {
		identity = auth.NewFirebaseClient(auth.FirebaseConfig{
			APIKey:   cfg.FirebaseAPIKey,
			Registry: registry,
			Logger:   log,
		})
		log.Info().Msg("firebase identity provider initialized")
	} else {
		if cfg.IsProduction() {
			log.Fatal().Msg("FIREBASE_API_KEY is required in production")
		}
		identity = auth.NewInMemoryIdentityProvider()
		log.Warn().Msg("FIREBASE_API_KEY not set - using in-memory accounts, verification emails are not sent")
	}

	jwtSigningKey := cfg.JWTSigningKey
	if jwtSigningKey == "" {
		jwtSigningKey = "local-dev-signing-key-change-in-production"
		log.Warn().Msg("using default JWT signing key - not secure for production")
	}

	tokenSigner := auth.NewTokenSigner(auth.TokenConfig{
		SigningKey: jwtSigningKey,
		Issuer:     cfg.JWTIssuer,
		Audience:   cfg.JWTAudience,
	})

	authService := auth.NewService(auth.ServiceConfig{
		Identity: identity,
		Tokens:   tokenSigner,
		Sessions: sessionRepo,
		Profiles: provisioner,
		Events:   bus,
		Logger:   log,
	})
	log.Info().Msg("auth service initialized")

	// Upstreams. User-facing calls are single-shot; failures surface as state.
	places := backend.NewClient(backend.ClientConfig{
		BaseURL:  cfg.PlaceAPIURL,
		Registry: registry,
		Logger:   log,
	})
	deps = append(deps, handler.Dependency{Name: backend.ProviderName, Ping: places.Ping})

	weatherClient := openweathermap.NewClient(openweathermap.ClientConfig{
		APIKey:     cfg.OpenWeatherAPIKey,
		BaseURL:    cfg.OpenWeatherURL,
		Language:   cfg.OpenWeatherLang,
		HTTPClient: singleShot(openweathermap.ProviderName, cfg.UserAgent, registry),
		Logger:     log,
	})
	if cfg.OpenWeatherAPIKey == "" {
		log.Warn().Msg("OPENWEATHER_API_KEY not set - weather requests will fail")
	}

	translateService := translate.NewService(mymemory.NewClient(mymemory.ClientConfig{
		BaseURL:    cfg.TranslateURL,
		HTTPClient: singleShot(mymemory.ProviderName, cfg.UserAgent, registry),
		Logger:     log,
	}))

	routeProvider := osrm.NewClient(osrm.ClientConfig{
		BaseURL:  cfg.RoutingURL,
		Profile:  cfg.RoutingProfile,
		Registry: registry,
		Logger:   log,
	})

	exploreService := explore.NewService(explore.Config{
		Locations:          places,
		POIs:               places,
		Assistant:          places,
		Weather:            weatherClient,
		Profiles:           userService,
		Events:             bus,
		Metrics:            exploreMetrics,
		SearchRadiusMeters: cfg.SearchRadiusMeters,
		IdleTTL:            cfg.ScreenIdleTTL,
		Logger:             log,
	})
	defer exploreService.Close()
	if err := exploreMetrics.ObserveScreens(exploreService.ActiveScreens); err != nil {
		log.Error().Err(err).Msg("failed to observe active screens")
	}
	log.Info().
		Int("search_radius_m", cfg.SearchRadiusMeters).
		Dur("idle_ttl", cfg.ScreenIdleTTL).
		Msg("explore service initialized")

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:          Version,
		BuildTime:        BuildTime,
		Logger:           log,
		ServiceName:      serviceName,
		Metrics:          metrics,
		AuthService:      authService,
		UserService:      userService,
		ExploreService:   exploreService,
		TranslateService: translateService,
		RouteProvider:    routeProvider,
		Registry:         registry,
		Events:           bus,
		AllowedOrigins:   cfg.AllowedOrigins,
		RequireTLS:       cfg.RequireTLS,
		Dependencies:     deps,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		return
	}

	log.Info().Msg("server stopped")
}

// singleShot builds a registered client that never retries.
func singleShot(name, userAgent string, registry *resilience.Registry) *resilience.Client {
	cfg := resilience.SingleShotClientConfig(name)
	cfg.UserAgent = userAgent
	cfg.Registry = registry
	return resilience.NewClient(cfg)
}
