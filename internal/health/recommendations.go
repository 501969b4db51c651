package health

import (
	"fmt"
	"time"

	"github.com/tributary-ai/llm-resilience/internal/types"
)

// Recommendations is the bundle surfaced to callers after a provider failure
type Recommendations struct {
	FailedProvider string   `json:"failed_provider"`
	Alternatives   []string `json:"alternatives"`
	Suggestions    []string `json:"suggestions"`
	HealthSummary  Summary  `json:"health_summary"`
}

// Summary aggregates the monitor's current view across all providers
type Summary struct {
	TotalProviders      int           `json:"total_providers"`
	HealthyCount        int           `json:"healthy_count"`
	DegradedCount       int           `json:"degraded_count"`
	UnhealthyCount      int           `json:"unhealthy_count"`
	UnknownCount        int           `json:"unknown_count"`
	CacheAgeSeconds     float64       `json:"cache_age_seconds"`
	AverageResponseTime time.Duration `json:"average_response_time"`
}

// GetProviderRecommendations builds alternatives and next steps for a failed
// provider, for upstream error-reporting code to surface to the caller.
func (m *Monitor) GetProviderRecommendations(failedProvider string) Recommendations {
	alternatives := m.GetAlternativeProviders(failedProvider)
	summary := m.GetCacheStats()

	var suggestions []string
	if len(alternatives) > 0 {
		best := m.GetProviderHealth(alternatives[0])
		suggestions = append(suggestions, fmt.Sprintf(
			"Try %s (recent success rate %.0f%%)", best.Name, best.SuccessRate*100))
	}
	failed := m.GetProviderHealth(failedProvider)
	if failed.ConsecutiveFailures >= unhealthyThreshold {
		suggestions = append(suggestions, fmt.Sprintf(
			"%s has failed %d times in a row; check its configuration and credentials",
			failed.Name, failed.ConsecutiveFailures))
	}
	suggestions = append(suggestions, "Retry once the provider recovers")

	return Recommendations{
		FailedProvider: failedProvider,
		Alternatives:   alternatives,
		Suggestions:    suggestions,
		HealthSummary:  summary,
	}
}

// GetCacheStats returns aggregate counts across all known providers, with
// the read TTL applied so expired records count as unknown
func (m *Monitor) GetCacheStats() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	summary := Summary{TotalProviders: len(m.records)}

	var totalResponse time.Duration
	var measured int
	for key, rec := range m.records {
		switch m.snapshotLocked(key, now).Status {
		case types.StatusHealthy:
			summary.HealthyCount++
		case types.StatusDegraded:
			summary.DegradedCount++
		case types.StatusUnhealthy:
			summary.UnhealthyCount++
		default:
			summary.UnknownCount++
		}
		if rec.info.ResponseTime > 0 {
			totalResponse += rec.info.ResponseTime
			measured++
		}
	}

	if measured > 0 {
		summary.AverageResponseTime = totalResponse / time.Duration(measured)
	}
	if !m.lastUpdate.IsZero() {
		summary.CacheAgeSeconds = now.Sub(m.lastUpdate).Seconds()
	}
	return summary
}
