// Package config loads the environment shared by the explorer binaries.
// A .env file in the working directory is read first when present; real
// environment variables always win.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Entity extractors accepted by ASSISTANT_EXTRACTOR.
const (
	ExtractorGLiNER = "gliner"
	ExtractorGemini = "gemini"
	ExtractorNone   = "none"
)

// Config holds every setting read from the environment. Each binary uses
// the subset it needs; empty upstream settings fall back to the clients'
// public defaults.
type Config struct {
	Env              string
	Port             string
	OTLPEndpoint     string
	TelemetryEnabled bool
	TraceSampleRatio float64
	AllowedOrigins   []string

	// RequireTLS rejects requests a proxy reports as plain HTTP.
	RequireTLS bool

	// Sessions
	JWTSigningKey  string
	JWTIssuer      string
	JWTAudience    string
	FirebaseAPIKey string

	// Upstreams
	PlaceAPIURL       string
	OpenWeatherAPIKey string
	OpenWeatherURL    string
	OpenWeatherLang   string
	TranslateURL      string
	RoutingURL        string
	RoutingProfile    string
	NominatimURL      string
	OverpassURL       string
	UserAgent         string
	GLiNERURL         string
	GLiNERToken       string
	GeminiAPIKey      string
	GeminiModel       string

	// AssistantExtractor selects entity extraction: gliner, gemini or none.
	AssistantExtractor string

	// Screens
	SearchRadiusMeters int
	ScreenIdleTTL      time.Duration

	// Messaging
	NATSURL             string
	PubSubProjectID     string
	ProfileTopic        string
	ProfileSubscription string

	// Worker
	ProbeInterval time.Duration

	// MigrateOnStart applies database migrations before serving.
	MigrateOnStart bool
}

// Load reads the configuration. Missing values take defaults; malformed
// values are errors.
func Load() (*Config, error) {
	// A missing .env file is the normal case outside local development.
	_ = godotenv.Load()

	cfg := &Config{
		Env:              getEnvOrDefault("APP_ENV", "development"),
		Port:             getEnvOrDefault("APP_PORT", "8080"),
		OTLPEndpoint:     getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		TelemetryEnabled: os.Getenv("OTEL_ENABLED") == "true",
		AllowedOrigins:   splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		RequireTLS:       os.Getenv("REQUIRE_TLS") == "true",

		JWTSigningKey:  os.Getenv("JWT_SIGNING_KEY"),
		JWTIssuer:      getEnvOrDefault("JWT_ISSUER", "https://api.vietnam-explorer.app"),
		JWTAudience:    getEnvOrDefault("JWT_AUDIENCE", "vietnam-explorer-api"),
		FirebaseAPIKey: os.Getenv("FIREBASE_API_KEY"),

		PlaceAPIURL:       os.Getenv("PLACE_API_URL"),
		OpenWeatherAPIKey: os.Getenv("OPENWEATHER_API_KEY"),
		OpenWeatherURL:    os.Getenv("OPENWEATHER_URL"),
		OpenWeatherLang:   os.Getenv("OPENWEATHER_LANG"),
		TranslateURL:      os.Getenv("TRANSLATE_URL"),
		RoutingURL:        os.Getenv("ROUTING_URL"),
		RoutingProfile:    os.Getenv("ROUTING_PROFILE"),
		NominatimURL:      os.Getenv("NOMINATIM_URL"),
		OverpassURL:       os.Getenv("OVERPASS_URL"),
		UserAgent:         getEnvOrDefault("UPSTREAM_USER_AGENT", "Vietnam-Explorer/1.0 (contact: ops@vietnam-explorer.app)"),
		GLiNERURL:         os.Getenv("GLINER_URL"),
		GLiNERToken:       os.Getenv("GLINER_TOKEN"),
		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
		GeminiModel:       os.Getenv("GEMINI_MODEL"),

		AssistantExtractor: getEnvOrDefault("ASSISTANT_EXTRACTOR", ExtractorGLiNER),

		NATSURL:             os.Getenv("NATS_URL"),
		PubSubProjectID:     os.Getenv("PUBSUB_PROJECT_ID"),
		ProfileTopic:        getEnvOrDefault("PUBSUB_PROFILE_TOPIC", "explorer-jobs"),
		ProfileSubscription: getEnvOrDefault("PUBSUB_SUBSCRIPTION", "explorer-worker"),

		MigrateOnStart: os.Getenv("DB_MIGRATE") == "true",
	}

	switch cfg.AssistantExtractor {
	case ExtractorGLiNER, ExtractorGemini, ExtractorNone:
	default:
		return nil, fmt.Errorf("invalid ASSISTANT_EXTRACTOR %q", cfg.AssistantExtractor)
	}

	var err error
	if cfg.SearchRadiusMeters, err = getEnvInt("SEARCH_RADIUS_METERS", 500); err != nil {
		return nil, err
	}
	if cfg.SearchRadiusMeters <= 0 {
		return nil, fmt.Errorf("invalid SEARCH_RADIUS_METERS: must be positive")
	}
	if cfg.ScreenIdleTTL, err = getEnvDuration("SCREEN_IDLE_TTL", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.ProbeInterval, err = getEnvDuration("PROBE_INTERVAL", 10*time.Minute); err != nil {
		return nil, err
	}
	if v := os.Getenv("OTEL_TRACES_SAMPLER_ARG"); v != "" {
		if cfg.TraceSampleRatio, err = strconv.ParseFloat(v, 64); err != nil {
			return nil, fmt.Errorf("invalid OTEL_TRACES_SAMPLER_ARG: %w", err)
		}
	}

	return cfg, nil
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
