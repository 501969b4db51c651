package types

import (
	"time"
)

// HealthStatus represents the health state of a provider
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusDegraded  HealthStatus = "degraded"
	StatusUnhealthy HealthStatus = "unhealthy"
	StatusUnknown   HealthStatus = "unknown"
)

// ProbeResult is the outcome of a single health probe against a provider.
// A provider is usable for selection only when both fields are true.
type ProbeResult struct {
	Available     bool `json:"available"`
	Authenticated bool `json:"authenticated"`
}

// ProviderHealthInfo is a point-in-time health record for one provider
type ProviderHealthInfo struct {
	// Provider name as first reported (original casing preserved)
	Name string `json:"name"`

	Status HealthStatus `json:"status"`

	// When this record was last updated
	LastCheck time.Time `json:"last_check"`

	// Last observed response time, zero if never measured
	ResponseTime time.Duration `json:"response_time"`

	// Run length of failures since the last success
	ConsecutiveFailures int `json:"consecutive_failures"`

	// Mean of recent observed outcomes, in [0,1]
	SuccessRate float64 `json:"success_rate"`

	ErrorMessage string `json:"error_message,omitempty"`

	LastSuccess *time.Time `json:"last_success,omitempty"`
	LastFailure *time.Time `json:"last_failure,omitempty"`

	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// ProviderInfo describes a registered provider
type ProviderInfo struct {
	Name         string   `json:"name" yaml:"name"`
	DefaultModel string   `json:"default_model" yaml:"default_model"`
	Models       []string `json:"models,omitempty" yaml:"models"`
}
