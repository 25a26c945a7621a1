package models

// Health is the body of the liveness and readiness probes.
type Health struct {
	Status    HealthStatus `json:"status"`
	Time      Timestamp    `json:"time"`
	Version   string       `json:"version,omitempty"`
	BuildTime string       `json:"buildTime,omitempty"`

	// Checks maps each dependency to its status on readiness probes.
	Checks map[string]HealthStatus `json:"checks,omitempty"`
}

// SystemStatus is the body of GET /v1/ops/status.
type SystemStatus struct {
	Status        HealthStatus      `json:"status"`
	Time          Timestamp         `json:"time"`
	ActiveScreens int               `json:"activeScreens"`
	Subsystems    []SubsystemStatus `json:"subsystems"`
	Providers     []ProviderStatus  `json:"providers"`

	// DegradedProviders names every upstream that is not OK. Screens relying
	// on them show their error message instead of results.
	DegradedProviders []string `json:"degradedProviders,omitempty"`
}

// SubsystemStatus is the result of pinging one dependency.
type SubsystemStatus struct {
	Name   string       `json:"name"`
	Status HealthStatus `json:"status"`
	Detail *string      `json:"detail,omitempty"`
}

// ProviderStatus is the breaker view of one upstream.
type ProviderStatus struct {
	Provider      string       `json:"provider"`
	Status        HealthStatus `json:"status"`
	Trips         int          `json:"trips"`
	LastSuccessAt *Timestamp   `json:"lastSuccessAt,omitempty"`
	LastFailureAt *Timestamp   `json:"lastFailureAt,omitempty"`
	Message       *string      `json:"message,omitempty"`
}
