// Package main provides the entrypoint for the place backend: geocoding,
// points of interest and the chat assistant.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/vietnamexplorer/explorer/internal/api/middleware"
	"github.com/vietnamexplorer/explorer/internal/assistant"
	"github.com/vietnamexplorer/explorer/internal/assistant/gemini"
	"github.com/vietnamexplorer/explorer/internal/assistant/gliner"
	"github.com/vietnamexplorer/explorer/internal/config"
	"github.com/vietnamexplorer/explorer/internal/place"
	"github.com/vietnamexplorer/explorer/internal/place/nominatim"
	"github.com/vietnamexplorer/explorer/internal/place/overpass"
	"github.com/vietnamexplorer/explorer/internal/placeapi"
	"github.com/vietnamexplorer/explorer/internal/provider/resilience"
	"github.com/vietnamexplorer/explorer/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "explorer-placeapi"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting place backend")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

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

	metrics, err := middleware.NewMetrics(tp.Meter)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	registry := resilience.NewRegistry()

	geocoder := nominatim.NewClient(nominatim.ClientConfig{
		BaseURL:   cfg.NominatimURL,
		UserAgent: cfg.UserAgent,
		Registry:  registry,
		Logger:    log,
	})
	amenities := overpass.NewClient(overpass.ClientConfig{
		Endpoint:  cfg.OverpassURL,
		UserAgent: cfg.UserAgent,
		Registry:  registry,
		Logger:    log,
	})

	places := place.NewService(place.ServiceConfig{
		Geocoder: geocoder,
		Source:   amenities,
		Logger:   log,
	})

	var extractor assistant.Extractor
	switch cfg.AssistantExtractor {
	case config.ExtractorGemini:
		g, err := gemini.New(ctx, gemini.Config{
			APIKey: cfg.GeminiAPIKey,
			Model:  cfg.GeminiModel,
			Logger: log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize gemini extractor")
		}
		extractor = g
	case config.ExtractorGLiNER:
		if cfg.GLiNERToken == "" {
			log.Warn().Msg("GLINER_TOKEN not set - the inference router will reject requests, chat falls back to rules")
		}
		extractor = gliner.NewClient(gliner.ClientConfig{
			URL:      cfg.GLiNERURL,
			Token:    cfg.GLiNERToken,
			Registry: registry,
			Logger:   log,
		})
	}
	log.Info().Str("extractor", cfg.AssistantExtractor).Msg("assistant initialized")

	chat := assistant.NewService(assistant.ServiceConfig{
		Extractor: extractor,
		Places:    places,
		Logger:    log,
	})

	router := placeapi.NewRouter(placeapi.RouterConfig{
		Logger:         log,
		ServiceName:    serviceName,
		Metrics:        metrics,
		Places:         places,
		Assistant:      chat,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	// Overpass fan-out can take a while; the write timeout covers it.
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		return
	}

	log.Info().Msg("server stopped")
}
