package cache

import (
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/llm-resilience/internal/metrics"
	"github.com/tributary-ai/llm-resilience/internal/types"
)

const (
	// Unhealthy snapshots go stale faster so recovery is noticed promptly
	unhealthySnapshotTTL = 60 * time.Second

	defaultHealthTTL     = 3 * time.Minute
	defaultHealthEntries = 100
)

// ProviderHealthCache is a light read-through cache for provider health
// snapshots, keyed by lower-cased provider name. It is independent of the
// health monitor's own state; callers use it where a cheap possibly-stale
// read is preferable to consulting the monitor.
type ProviderHealthCache struct {
	cache *MemoryCache
}

// NewProviderHealthCache creates a provider health cache. Zero values
// select the package defaults; recorder may be nil.
func NewProviderHealthCache(maxSize int, defaultTTL time.Duration, logger *logrus.Logger, recorder *metrics.Recorder) *ProviderHealthCache {
	if maxSize <= 0 {
		maxSize = defaultHealthEntries
	}
	if defaultTTL <= 0 {
		defaultTTL = defaultHealthTTL
	}
	c := New(maxSize, defaultTTL, logger)
	c.name = "provider_health"
	c.metrics = recorder
	return &ProviderHealthCache{cache: c}
}

// CacheHealth stores a health snapshot for provider. Unhealthy snapshots
// use the shorter TTL.
func (c *ProviderHealthCache) CacheHealth(provider string, info *types.ProviderHealthInfo) {
	key := strings.ToLower(provider)
	if info.Status == types.StatusUnhealthy {
		c.cache.SetWithTTL(key, info, unhealthySnapshotTTL)
		return
	}
	c.cache.Set(key, info)
}

// GetHealth returns the cached snapshot for provider, if any
func (c *ProviderHealthCache) GetHealth(provider string) (*types.ProviderHealthInfo, bool) {
	v, ok := c.cache.Get(strings.ToLower(provider))
	if !ok {
		return nil, false
	}
	return v.(*types.ProviderHealthInfo), true
}

// Invalidate drops the cached snapshot for provider
func (c *ProviderHealthCache) Invalidate(provider string) bool {
	return c.cache.Delete(strings.ToLower(provider))
}

// Stats returns the underlying cache counters
func (c *ProviderHealthCache) Stats() Stats {
	return c.cache.Stats()
}
