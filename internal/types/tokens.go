package types

import (
	"time"
)

// TokenValidation is the cached outcome of validating one credential.
// Failures are cached too, with a shorter TTL, so repeated probes with a
// bad token do not re-run the full validation.
type TokenValidation struct {
	Valid     bool                   `json:"valid"`
	Subject   string                 `json:"subject,omitempty"`
	Claims    map[string]interface{} `json:"claims,omitempty"`
	Error     string                 `json:"error,omitempty"`
	ExpiresAt *time.Time             `json:"expires_at,omitempty"`
}
