// Package handler provides HTTP handlers for the explorer API.
package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/vietnamexplorer/explorer/internal/api/models"
	"github.com/vietnamexplorer/explorer/internal/api/response"
	"github.com/vietnamexplorer/explorer/internal/provider/resilience"
)

// Dependency is a subsystem the API needs before it can serve traffic.
type Dependency struct {
	Name string
	Ping func(ctx context.Context) error
}

// ScreenCounter reports the number of mounted explore screens.
type ScreenCounter interface {
	ActiveScreens() int
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version      string
	buildTime    string
	registry     *resilience.Registry
	screens      ScreenCounter
	dependencies []Dependency
}

// NewOpsHandler creates a new OpsHandler. registry and screens may be nil.
func NewOpsHandler(version, buildTime string, registry *resilience.Registry, screens ScreenCounter, deps ...Dependency) *OpsHandler {
	return &OpsHandler{
		version:      version,
		buildTime:    buildTime,
		registry:     registry,
		screens:      screens,
		dependencies: deps,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status:    models.HealthStatusOK,
		Time:      models.Timestamp(time.Now()),
		Version:   h.version,
		BuildTime: h.buildTime,
	})
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check. Only the
// dependencies count; a degraded upstream does not take the API out of
// rotation.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	subsystems := h.checkDependencies(r.Context())

	health := models.Health{
		Status:  models.HealthStatusOK,
		Time:    models.Timestamp(time.Now()),
		Version: h.version,
	}
	if len(subsystems) > 0 {
		health.Checks = make(map[string]models.HealthStatus, len(subsystems))
	}
	for _, s := range subsystems {
		health.Checks[s.Name] = s.Status
		health.Status = health.Status.Worse(s.Status)
	}

	code := http.StatusOK
	if health.Status == models.HealthStatusFail {
		code = http.StatusServiceUnavailable
	}
	response.JSON(w, r, code, health)
}

// SystemStatus handles GET /v1/ops/status - provider and subsystem status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       models.Timestamp(time.Now()),
		Subsystems: h.checkDependencies(r.Context()),
		Providers:  h.providerStatuses(),
	}
	if h.screens != nil {
		status.ActiveScreens = h.screens.ActiveScreens()
		detail := strconv.Itoa(status.ActiveScreens) + " active screens"
		status.Subsystems = append(status.Subsystems, models.SubsystemStatus{
			Name:   "explore",
			Status: models.HealthStatusOK,
			Detail: &detail,
		})
	}

	for _, s := range status.Subsystems {
		status.Status = status.Status.Worse(s.Status)
	}
	for _, p := range status.Providers {
		if p.Status == models.HealthStatusOK {
			continue
		}
		// An upstream outage degrades the explorer; it never fails it.
		status.Status = status.Status.Worse(models.HealthStatusDegraded)
		status.DegradedProviders = append(status.DegradedProviders, p.Provider)
	}
	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) checkDependencies(ctx context.Context) []models.SubsystemStatus {
	subsystems := make([]models.SubsystemStatus, 0, len(h.dependencies))
	for _, dep := range h.dependencies {
		checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := dep.Ping(checkCtx)
		cancel()

		s := models.SubsystemStatus{Name: dep.Name, Status: models.HealthStatusOK}
		if err != nil {
			msg := err.Error()
			s.Status = models.HealthStatusFail
			s.Detail = &msg
		}
		subsystems = append(subsystems, s)
	}
	return subsystems
}

func (h *OpsHandler) providerStatuses() []models.ProviderStatus {
	if h.registry == nil {
		return []models.ProviderStatus{}
	}

	all := h.registry.Snapshot()
	providers := make([]models.ProviderStatus, 0, len(all))
	for _, ph := range all {
		p := models.ProviderStatus{
			Provider:      ph.Name,
			Trips:         ph.Trips,
			LastSuccessAt: models.NewTimestamp(ph.LastSuccessAt),
			LastFailureAt: models.NewTimestamp(ph.LastFailureAt),
		}
		switch ph.Level() {
		case resilience.LevelUp:
			p.Status = models.HealthStatusOK
		case resilience.LevelDegraded:
			p.Status = models.HealthStatusDegraded
		default:
			p.Status = models.HealthStatusFail
		}
		if ph.LastError != "" {
			msg := ph.LastError
			p.Message = &msg
		}
		providers = append(providers, p)
	}
	return providers
}
