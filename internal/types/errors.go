package types

// ErrorCategory classifies a provider failure for user-facing reporting
type ErrorCategory string

const (
	CategoryAPIKeyMissing    ErrorCategory = "api_key_missing"
	CategoryAPIKeyInvalid    ErrorCategory = "api_key_invalid"
	CategoryAuthentication   ErrorCategory = "authentication"
	CategoryRateLimit        ErrorCategory = "rate_limit"
	CategoryNetwork          ErrorCategory = "network"
	CategoryModelUnavailable ErrorCategory = "model_unavailable"
	CategoryUnknown          ErrorCategory = "unknown"
)

// ErrorResponse is a formatted, user-facing explanation of a failure
type ErrorResponse struct {
	Title     string        `json:"title"`
	Summary   string        `json:"summary"`
	Category  ErrorCategory `json:"category"`
	Provider  string        `json:"provider,omitempty"`
	NextSteps []string      `json:"next_steps,omitempty"`

	// Alternative providers worth trying, from the health monitor
	Alternatives []string `json:"alternatives,omitempty"`
}
