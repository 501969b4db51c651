package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/llm-resilience/internal/metrics"
	"github.com/tributary-ai/llm-resilience/internal/types"
)

const (
	// TTL for cached validation failures; bad tokens are re-checked sooner
	// so a fixed credential starts working without a long wait
	tokenFailureTTL = 60 * time.Second

	defaultTokenTTL     = 5 * time.Minute
	defaultTokenEntries = 2000
)

// TokenValidationCache memoizes credential validation results. Keys are a
// truncated SHA-256 of the raw token, so the token itself never appears in
// cache state or logs.
type TokenValidationCache struct {
	cache *MemoryCache
}

// NewTokenValidationCache creates a token cache with the given default TTL
// for successful validations. Zero values select the package defaults;
// recorder may be nil.
func NewTokenValidationCache(maxSize int, defaultTTL time.Duration, logger *logrus.Logger, recorder *metrics.Recorder) *TokenValidationCache {
	if maxSize <= 0 {
		maxSize = defaultTokenEntries
	}
	if defaultTTL <= 0 {
		defaultTTL = defaultTokenTTL
	}
	c := New(maxSize, defaultTTL, logger)
	c.name = "token_validation"
	c.metrics = recorder
	return &TokenValidationCache{cache: c}
}

// CacheValidation stores a validation result for token. Failed validations
// get the short failure TTL unless the caller overrides it.
func (c *TokenValidationCache) CacheValidation(token string, result *types.TokenValidation, ttl ...time.Duration) {
	key := hashToken(token)

	switch {
	case len(ttl) > 0 && ttl[0] > 0:
		c.cache.SetWithTTL(key, result, ttl[0])
	case !result.Valid:
		c.cache.SetWithTTL(key, result, tokenFailureTTL)
	default:
		c.cache.Set(key, result)
	}
}

// GetValidation returns the cached validation result for token, if any
func (c *TokenValidationCache) GetValidation(token string) (*types.TokenValidation, bool) {
	v, ok := c.cache.Get(hashToken(token))
	if !ok {
		return nil, false
	}
	return v.(*types.TokenValidation), true
}

// Invalidate drops the cached result for token, reporting whether one existed
func (c *TokenValidationCache) Invalidate(token string) bool {
	return c.cache.Delete(hashToken(token))
}

// Stats returns the underlying cache counters
func (c *TokenValidationCache) Stats() Stats {
	return c.cache.Stats()
}

// hashToken derives the cache key for a raw credential
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])[:32]
}
