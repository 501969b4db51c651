package cache

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/llm-resilience/internal/metrics"
)

// Stats holds process-lifetime counters for one cache instance
type Stats struct {
	Hits            int64 `json:"hits"`
	Misses          int64 `json:"misses"`
	Evictions       int64 `json:"evictions"`
	ExpiredRemovals int64 `json:"expired_removals"`
	Size            int   `json:"size"`
	MaxSize         int   `json:"max_size"`
}

// entry is a single cached value. Owned exclusively by the cache holding it.
type entry struct {
	value       interface{}
	createdAt   time.Time
	ttl         time.Duration
	accessCount int64
	lastAccess  time.Time
}

func (e *entry) expired(now time.Time) bool {
	return now.Sub(e.createdAt) > e.ttl
}

// MemoryCache is a bounded key/value store with per-entry TTL and strict
// LRU-by-access eviction at capacity. All operations are serialized behind
// a single mutex; none is observable as partially applied.
type MemoryCache struct {
	mu         sync.Mutex
	entries    map[string]*entry
	maxSize    int
	defaultTTL time.Duration
	stats      Stats
	logger     *logrus.Logger

	// Prometheus label for this cache; metrics may be nil
	name    string
	metrics *metrics.Recorder
}

// New creates a bounded cache. maxSize must be positive; defaultTTL applies
// when Set is used without an explicit TTL.
func New(maxSize int, defaultTTL time.Duration, logger *logrus.Logger) *MemoryCache {
	if logger == nil {
		logger = logrus.New()
	}
	return &MemoryCache{
		entries:    make(map[string]*entry),
		maxSize:    maxSize,
		defaultTTL: defaultTTL,
		logger:     logger,
		name:       "memory",
	}
}

// record publishes one cache operation outcome when a recorder is attached
func (c *MemoryCache) record(result string) {
	if c.metrics != nil {
		c.metrics.RecordCacheOperation(c.name, result)
	}
}

// Get returns the cached value for key. A present-but-expired entry is
// removed and counted as both a miss and an expired removal.
func (c *MemoryCache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		c.record("miss")
		return nil, false
	}

	now := time.Now()
	if e.expired(now) {
		delete(c.entries, key)
		c.stats.Misses++
		c.stats.ExpiredRemovals++
		c.record("expired")
		return nil, false
	}

	e.accessCount++
	e.lastAccess = now
	c.stats.Hits++
	c.record("hit")
	return e.value, true
}

// Set stores value under key with the cache's default TTL
func (c *MemoryCache) Set(key string, value interface{}) {
	c.SetWithTTL(key, value, c.defaultTTL)
}

// SetWithTTL stores value under key with an explicit TTL. When the cache is
// at capacity and key is not already present, the least recently used entry
// is evicted first.
func (c *MemoryCache) SetWithTTL(key string, value interface{}, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok && len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	now := time.Now()
	c.entries[key] = &entry{
		value:      value,
		createdAt:  now,
		ttl:        ttl,
		lastAccess: now,
	}
}

// evictOldest removes the entry with the oldest last access time. Linear
// scan; the cache is sized for at most a few thousand entries.
// Caller must hold the mutex.
func (c *MemoryCache) evictOldest() {
	var oldestKey string
	var oldest time.Time
	found := false

	for key, e := range c.entries {
		if !found || e.lastAccess.Before(oldest) {
			oldestKey = key
			oldest = e.lastAccess
			found = true
		}
	}

	if found {
		delete(c.entries, oldestKey)
		c.stats.Evictions++
		c.record("eviction")
		c.logger.WithField("key", oldestKey).Debug("Cache entry evicted")
	}
}

// Delete removes key, reporting whether it was present
func (c *MemoryCache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok {
		return false
	}
	delete(c.entries, key)
	return true
}

// Clear removes every entry. Stats counters are preserved.
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*entry)
}

// CleanupExpired removes all expired entries and returns how many were removed
func (c *MemoryCache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for key, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, key)
			c.stats.ExpiredRemovals++
			c.record("expired")
			removed++
		}
	}

	if removed > 0 {
		c.logger.WithField("removed", removed).Debug("Expired cache entries removed")
	}
	return removed
}

// Stats returns a snapshot of the cache counters
func (c *MemoryCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats
	s.Size = len(c.entries)
	s.MaxSize = c.maxSize
	return s
}
