package cache

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tributary-ai/llm-resilience/internal/metrics"
	"github.com/tributary-ai/llm-resilience/internal/types"
)

// entryTTL reads the stored TTL for key directly from the cache internals
func entryTTL(t *testing.T, c *MemoryCache, key string) time.Duration {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	require.True(t, ok, "entry %q should be present", key)
	return e.ttl
}

func TestTokenValidationCache_RoundTrip(t *testing.T) {
	c := NewTokenValidationCache(0, 0, newTestLogger(), nil)

	result := &types.TokenValidation{Valid: true, Subject: "user-1"}
	c.CacheValidation("my-raw-token", result)

	got, ok := c.GetValidation("my-raw-token")
	require.True(t, ok)
	assert.Equal(t, "user-1", got.Subject)

	_, ok = c.GetValidation("other-token")
	assert.False(t, ok)
}

func TestTokenValidationCache_RawTokenNeverAKey(t *testing.T) {
	c := NewTokenValidationCache(0, 0, newTestLogger(), nil)

	token := "super-secret-credential"
	c.CacheValidation(token, &types.TokenValidation{Valid: true})

	// The key must be the hash, not the credential itself
	c.cache.mu.Lock()
	defer c.cache.mu.Unlock()
	for key := range c.cache.entries {
		assert.NotEqual(t, token, key)
		assert.NotContains(t, key, token)
		assert.Len(t, key, 32)
	}
}

func TestTokenValidationCache_ExplicitTTLOverride(t *testing.T) {
	c := NewTokenValidationCache(0, 0, newTestLogger(), nil)

	c.CacheValidation("tok", &types.TokenValidation{Valid: true}, 20*time.Millisecond)

	_, ok := c.GetValidation("tok")
	require.True(t, ok)

	time.Sleep(40 * time.Millisecond)

	_, ok = c.GetValidation("tok")
	assert.False(t, ok)
}

func TestTokenValidationCache_Invalidate(t *testing.T) {
	c := NewTokenValidationCache(0, 0, newTestLogger(), nil)

	c.CacheValidation("tok", &types.TokenValidation{Valid: true})
	assert.True(t, c.Invalidate("tok"))
	assert.False(t, c.Invalidate("tok"))

	_, ok := c.GetValidation("tok")
	assert.False(t, ok)
}

func TestTokenValidationCache_FailedValidationGetsShortTTL(t *testing.T) {
	c := NewTokenValidationCache(0, 0, newTestLogger(), nil)

	c.CacheValidation("good", &types.TokenValidation{Valid: true})
	c.CacheValidation("bad", &types.TokenValidation{Valid: false})

	assert.Equal(t, defaultTokenTTL, entryTTL(t, c.cache, hashToken("good")))
	assert.Equal(t, tokenFailureTTL, entryTTL(t, c.cache, hashToken("bad")))

	// An explicit TTL wins even for a failure
	c.CacheValidation("bad-pinned", &types.TokenValidation{Valid: false}, 2*time.Hour)
	assert.Equal(t, 2*time.Hour, entryTTL(t, c.cache, hashToken("bad-pinned")))
}

func TestProviderHealthCache_UnhealthySnapshotGetsShortTTL(t *testing.T) {
	c := NewProviderHealthCache(0, 0, newTestLogger(), nil)

	c.CacheHealth("openai", &types.ProviderHealthInfo{Name: "openai", Status: types.StatusHealthy})
	c.CacheHealth("anthropic", &types.ProviderHealthInfo{Name: "anthropic", Status: types.StatusUnhealthy})
	c.CacheHealth("gemini", &types.ProviderHealthInfo{Name: "gemini", Status: types.StatusDegraded})

	assert.Equal(t, defaultHealthTTL, entryTTL(t, c.cache, "openai"))
	assert.Equal(t, unhealthySnapshotTTL, entryTTL(t, c.cache, "anthropic"))
	assert.Equal(t, defaultHealthTTL, entryTTL(t, c.cache, "gemini"))
}

func TestIntelligentResponseCache_StableCategoryGetsLongTTL(t *testing.T) {
	c := NewIntelligentResponseCache(0, 0, newTestLogger(), nil)

	c.CacheResponse("api key not found", "", "openai",
		&types.ErrorResponse{Category: types.CategoryAPIKeyMissing})
	c.CacheResponse("429 too many requests", "", "openai",
		&types.ErrorResponse{Category: types.CategoryRateLimit})

	assert.Equal(t, stableCategoryTTL,
		entryTTL(t, c.cache, responseKey("api key not found", "", "openai")))
	assert.Equal(t, defaultResponseTTL,
		entryTTL(t, c.cache, responseKey("429 too many requests", "", "openai")))
}

func TestProviderHealthCache_CaseInsensitiveKeys(t *testing.T) {
	c := NewProviderHealthCache(0, 0, newTestLogger(), nil)

	info := &types.ProviderHealthInfo{Name: "OpenAI", Status: types.StatusHealthy}
	c.CacheHealth("OpenAI", info)

	got, ok := c.GetHealth("openai")
	require.True(t, ok)
	assert.Equal(t, types.StatusHealthy, got.Status)

	got, ok = c.GetHealth("OPENAI")
	require.True(t, ok)
	assert.Equal(t, "OpenAI", got.Name)

	assert.True(t, c.Invalidate("OpEnAi"))
}

func TestIntelligentResponseCache_RoundTrip(t *testing.T) {
	c := NewIntelligentResponseCache(0, 0, newTestLogger(), nil)

	resp := &types.ErrorResponse{
		Title:    "Rate Limit Exceeded",
		Category: types.CategoryRateLimit,
		Provider: "openai",
	}
	c.CacheResponse("429 too many requests", "APIError", "openai", resp)

	got, ok := c.GetResponse("429 too many requests", "APIError", "openai")
	require.True(t, ok)
	assert.Equal(t, types.CategoryRateLimit, got.Category)

	// Provider casing does not fragment the cache
	_, ok = c.GetResponse("429 too many requests", "APIError", "OpenAI")
	assert.True(t, ok)

	// A different message is a different entry
	_, ok = c.GetResponse("500 internal error", "APIError", "openai")
	assert.False(t, ok)
}

func TestIntelligentResponseCache_ExplicitTTLOverride(t *testing.T) {
	c := NewIntelligentResponseCache(0, 0, newTestLogger(), nil)

	resp := &types.ErrorResponse{Category: types.CategoryNetwork}
	c.CacheResponse("connection refused", "", "llamacpp", resp, 20*time.Millisecond)

	_, ok := c.GetResponse("connection refused", "", "llamacpp")
	require.True(t, ok)

	time.Sleep(40 * time.Millisecond)

	_, ok = c.GetResponse("connection refused", "", "llamacpp")
	assert.False(t, ok)
}

func TestTokenValidationCache_PublishesOperationMetrics(t *testing.T) {
	rec := metrics.NewRecorder()
	c := NewTokenValidationCache(1, 0, newTestLogger(), rec)

	c.GetValidation("absent")
	c.CacheValidation("tok-a", &types.TokenValidation{Valid: true})
	c.GetValidation("tok-a")
	// Capacity is one, so storing a second token evicts the first
	c.CacheValidation("tok-b", &types.TokenValidation{Valid: true})

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	rec.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `resilience_cache_operations_total{cache="token_validation",result="miss"} 1`)
	assert.Contains(t, body, `resilience_cache_operations_total{cache="token_validation",result="hit"} 1`)
	assert.Contains(t, body, `resilience_cache_operations_total{cache="token_validation",result="eviction"} 1`)
}
