package worker

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/vietnamexplorer/explorer/internal/api/middleware"
	"github.com/vietnamexplorer/explorer/internal/api/response"
	"github.com/vietnamexplorer/explorer/internal/provider/resilience"
)

// HealthConfig holds what the worker's health endpoints report on.
type HealthConfig struct {
	Version  string
	Probe    *ProbeJob
	Registry *resilience.Registry
	Logger   zerolog.Logger
}

// NewHealthRouter serves /health for the platform and /metrics with the
// probe counters and upstream health.
func NewHealthRouter(cfg HealthConfig) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(cfg.Logger))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{
			"status":  "healthy",
			"version": cfg.Version,
		})
	})

	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{}
		if cfg.Probe != nil {
			body["probe"] = cfg.Probe.MetricsSnapshot()
		}
		if cfg.Registry != nil {
			upstreams := map[string]string{}
			for _, h := range cfg.Registry.Snapshot() {
				upstreams[h.Name] = string(h.Level())
			}
			body["upstreams"] = upstreams
			body["upstreams_worst"] = cfg.Registry.Worst()
		}
		response.JSON(w, r, http.StatusOK, body)
	})

	return r
}
