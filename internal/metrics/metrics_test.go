package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_IndependentRegistries(t *testing.T) {
	// Two recorders must register without colliding
	a := NewRecorder()
	b := NewRecorder()

	a.RecordSelection("openai", "user_preference", 10*time.Millisecond)
	b.RecordSelection("llamacpp", "hard_fallback", 10*time.Millisecond)

	assert.NotNil(t, a.Handler())
	assert.NotNil(t, b.Handler())
}

func TestRecorder_HandlerExposesMetrics(t *testing.T) {
	r := NewRecorder()

	r.RecordSelection("openai", "user_preference", 10*time.Millisecond)
	r.RecordSelection("", "degraded_mode", time.Second)
	r.RecordHealthReport("openai", false)
	r.RecordHealthTransition("openai", "healthy", "degraded")
	r.RecordCacheOperation("token_validation", "hit")
	r.RecordDedup(true)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "resilience_selection_decisions_total")
	assert.Contains(t, body, "resilience_health_reports_total")
	assert.Contains(t, body, "resilience_health_transitions_total")
	assert.Contains(t, body, "resilience_cache_operations_total")
	assert.Contains(t, body, "resilience_dedup_requests_total")
	// The empty provider label is normalized
	assert.Contains(t, body, `provider="none"`)
}
