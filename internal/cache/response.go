package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/llm-resilience/internal/metrics"
	"github.com/tributary-ai/llm-resilience/internal/types"
)

const (
	// Stable categories describe misconfiguration that does not fix itself;
	// their formatted responses can live longer
	stableCategoryTTL = 10 * time.Minute

	defaultResponseTTL     = 5 * time.Minute
	defaultResponseEntries = 500
)

var stableCategories = map[types.ErrorCategory]bool{
	types.CategoryAPIKeyMissing:  true,
	types.CategoryAPIKeyInvalid:  true,
	types.CategoryAuthentication: true,
}

// IntelligentResponseCache memoizes formatted error responses keyed by the
// (message, type, provider) tuple that produced them.
type IntelligentResponseCache struct {
	cache *MemoryCache
}

// NewIntelligentResponseCache creates a response cache. Zero values select
// the package defaults; recorder may be nil.
func NewIntelligentResponseCache(maxSize int, defaultTTL time.Duration, logger *logrus.Logger, recorder *metrics.Recorder) *IntelligentResponseCache {
	if maxSize <= 0 {
		maxSize = defaultResponseEntries
	}
	if defaultTTL <= 0 {
		defaultTTL = defaultResponseTTL
	}
	c := New(maxSize, defaultTTL, logger)
	c.name = "error_response"
	c.metrics = recorder
	return &IntelligentResponseCache{cache: c}
}

// CacheResponse stores a formatted response for the given error context.
// Stable categories get the long TTL unless the caller overrides it.
func (c *IntelligentResponseCache) CacheResponse(errMsg, errType, provider string, resp *types.ErrorResponse, ttl ...time.Duration) {
	key := responseKey(errMsg, errType, provider)

	switch {
	case len(ttl) > 0 && ttl[0] > 0:
		c.cache.SetWithTTL(key, resp, ttl[0])
	case stableCategories[resp.Category]:
		c.cache.SetWithTTL(key, resp, stableCategoryTTL)
	default:
		c.cache.Set(key, resp)
	}
}

// GetResponse returns the cached response for the given error context, if any
func (c *IntelligentResponseCache) GetResponse(errMsg, errType, provider string) (*types.ErrorResponse, bool) {
	v, ok := c.cache.Get(responseKey(errMsg, errType, provider))
	if !ok {
		return nil, false
	}
	return v.(*types.ErrorResponse), true
}

// Stats returns the underlying cache counters
func (c *IntelligentResponseCache) Stats() Stats {
	return c.cache.Stats()
}

// responseKey derives a fixed-length key from the error context tuple
func responseKey(errMsg, errType, provider string) string {
	sum := sha256.Sum256([]byte(errMsg + "|" + errType + "|" + strings.ToLower(provider)))
	return hex.EncodeToString(sum[:])[:32]
}
