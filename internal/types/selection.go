package types

import (
	"time"
)

// SelectionPath identifies which stage of the selection protocol produced
// the final decision
type SelectionPath string

const (
	PathUserPreference SelectionPath = "user_preference"
	PathSystemDefaults SelectionPath = "system_defaults"
	PathHardFallback   SelectionPath = "hard_fallback"
	PathDegradedMode   SelectionPath = "degraded_mode"
)

// Preferences carries the caller's provider/model request, both optional
type Preferences struct {
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
}

// SelectionResult is the auditable record of one selection run.
// Provider and Model are empty when the run ended in degraded mode.
// Immutable once returned.
type SelectionResult struct {
	// Unique decision ID for log correlation
	ID string `json:"id"`

	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`

	SelectionPath SelectionPath `json:"selection_path"`

	// Human-readable reason for the final decision
	Rationale string `json:"rationale"`

	// Number of candidates that failed their health check across all stages
	FallbackAttempts int `json:"fallback_attempts"`

	// Ordered audit trail, one line per attempt
	SelectionLog []string `json:"selection_log"`

	HealthChecksPerformed int `json:"health_checks_performed"`

	// End-to-end selection latency
	TotalSelectionTime time.Duration `json:"total_selection_time"`
}

// Degraded reports whether selection exhausted every candidate
func (r *SelectionResult) Degraded() bool {
	return r.SelectionPath == PathDegradedMode
}
