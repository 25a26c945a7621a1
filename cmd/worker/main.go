// Package main provides the entrypoint for the explorer worker: profile
// provisioning jobs from Pub/Sub and periodic upstream probes.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vietnamexplorer/explorer/internal/backend"
	"github.com/vietnamexplorer/explorer/internal/config"
	"github.com/vietnamexplorer/explorer/internal/database"
	"github.com/vietnamexplorer/explorer/internal/provider/resilience"
	"github.com/vietnamexplorer/explorer/internal/telemetry"
	"github.com/vietnamexplorer/explorer/internal/user"
	"github.com/vietnamexplorer/explorer/internal/weather/openweathermap"
	"github.com/vietnamexplorer/explorer/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "explorer-worker"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting explorer worker")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	// Create context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

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
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	registry := resilience.NewRegistry()

	// Probes go through the same clients the API uses, with retries, so a
	// transient blip does not trip a breaker on its own.
	weatherHTTP := resilience.DefaultClientConfig(openweathermap.ProviderName)
	weatherHTTP.UserAgent = cfg.UserAgent
	weatherHTTP.Registry = registry
	weatherClient := openweathermap.NewClient(openweathermap.ClientConfig{
		APIKey:     cfg.OpenWeatherAPIKey,
		BaseURL:    cfg.OpenWeatherURL,
		Language:   cfg.OpenWeatherLang,
		HTTPClient: resilience.NewClient(weatherHTTP),
		Logger:     log,
	})
	places := backend.NewClient(backend.ClientConfig{
		BaseURL:  cfg.PlaceAPIURL,
		Registry: registry,
		Logger:   log,
	})

	probe := worker.NewProbeJob(worker.ProbeJobConfig{
		Config:       worker.DefaultProbeConfig(),
		Logger:       log,
		Weather:      weatherClient,
		Geocoder:     places,
		GeocoderName: backend.ProviderName,
	})

	var profileRepo user.Repository = user.NewInMemoryRepository()
	if database.Enabled() {
		dbConfig, err := database.ConfigFromEnv()
		if err != nil {
			log.Fatal().Err(err).Msg("invalid database configuration")
		}
		if dbConfig.ApplicationName == "" {
			dbConfig.ApplicationName = serviceName
		}
		pool, err := database.Connect(ctx, dbConfig)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		profileRepo = user.NewPostgresRepository(pool)
		log.Info().Str("database", dbConfig.Database).Msg("database connected")
	}
	processor := worker.NewProcessor(user.NewService(profileRepo, log), probe, log)

	health := worker.NewHealthRouter(worker.HealthConfig{
		Version:  Version,
		Probe:    probe,
		Registry: registry,
		Logger:   log,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      health,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	// Health check server for Cloud Run
	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return worker.ScheduleProbes(gctx, probe, cfg.ProbeInterval, log)
	})

	if cfg.PubSubProjectID != "" {
		subscriber, err := worker.NewSubscriber(ctx, worker.SubscriberConfig{
			ProjectID:    cfg.PubSubProjectID,
			Subscription: cfg.ProfileSubscription,
			Processor:    processor,
			Logger:       log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub subscriber")
		}
		defer subscriber.Close()

		g.Go(func() error {
			return subscriber.Run(gctx)
		})
	} else {
		log.Warn().Msg("PUBSUB_PROJECT_ID not set - only upstream probes will run")
	}

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("worker stopped with error")
		return
	}

	log.Info().Msg("worker stopped")
}
