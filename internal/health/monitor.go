package health

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/llm-resilience/internal/metrics"
	"github.com/tributary-ai/llm-resilience/internal/types"
)

const (
	// Failure run lengths at which status escalates. Short blips are
	// tolerated as healthy; sustained runs degrade, then go unhealthy.
	degradedThreshold  = 3
	unhealthyThreshold = 6

	// Bounded outcome history per provider for the success rate
	historyLimit = 200

	defaultReadTTL = 5 * time.Minute
)

// record is the monitor's per-provider state. history is a ring buffer of
// recent outcomes; successRate is recomputed from it on every update.
type record struct {
	info types.ProviderHealthInfo

	history [historyLimit]bool
	pos     int
	count   int
}

// Monitor tracks provider health from success/failure reports and escalates
// status on consecutive failures. Reads older than the configured TTL come
// back as Unknown rather than as stale data. Lookups are case-insensitive.
type Monitor struct {
	mu      sync.Mutex
	records map[string]*record

	readTTL    time.Duration
	lastUpdate time.Time

	logger  *logrus.Logger
	metrics *metrics.Recorder
}

// NewMonitor creates a Monitor. readTTL bounds how old a record may be
// before reads report Unknown; zero selects the 5 minute default.
// recorder may be nil.
func NewMonitor(readTTL time.Duration, logger *logrus.Logger, recorder *metrics.Recorder) *Monitor {
	if readTTL <= 0 {
		readTTL = defaultReadTTL
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Monitor{
		records: make(map[string]*record),
		readTTL: readTTL,
		logger:  logger,
		metrics: recorder,
	}
}

// Update records one real interaction outcome for a provider. responseTime
// may be zero when not measured; errMsg is only meaningful for failures.
func (m *Monitor) Update(name string, healthy bool, responseTime time.Duration, errMsg string) {
	key := strings.ToLower(name)
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[key]
	if !ok {
		rec = &record{
			info: types.ProviderHealthInfo{
				Name:   name,
				Status: types.StatusHealthy,
			},
		}
		m.records[key] = rec
	}

	rec.history[rec.pos] = healthy
	rec.pos = (rec.pos + 1) % historyLimit
	if rec.count < historyLimit {
		rec.count++
	}
	successes := 0
	for i := 0; i < rec.count; i++ {
		if rec.history[i] {
			successes++
		}
	}
	rec.info.SuccessRate = float64(successes) / float64(rec.count)

	rec.info.LastCheck = now
	if responseTime > 0 {
		rec.info.ResponseTime = responseTime
	}

	if healthy {
		rec.info.ConsecutiveFailures = 0
		rec.info.ErrorMessage = ""
		t := now
		rec.info.LastSuccess = &t
	} else {
		rec.info.ConsecutiveFailures++
		rec.info.ErrorMessage = errMsg
		t := now
		rec.info.LastFailure = &t
	}

	prev := rec.info.Status
	rec.info.Status = statusForFailures(rec.info.ConsecutiveFailures)
	m.lastUpdate = now

	if m.metrics != nil {
		m.metrics.RecordHealthReport(key, healthy)
		if prev != rec.info.Status {
			m.metrics.RecordHealthTransition(key, string(prev), string(rec.info.Status))
		}
	}

	if prev != rec.info.Status {
		m.logger.WithFields(logrus.Fields{
			"provider":             rec.info.Name,
			"from":                 prev,
			"to":                   rec.info.Status,
			"consecutive_failures": rec.info.ConsecutiveFailures,
		}).Warn("Provider health status changed")
	}
}

// statusForFailures maps a failure run length to a status
func statusForFailures(consecutive int) types.HealthStatus {
	switch {
	case consecutive >= unhealthyThreshold:
		return types.StatusUnhealthy
	case consecutive >= degradedThreshold:
		return types.StatusDegraded
	default:
		return types.StatusHealthy
	}
}

// GetProviderHealth returns a copy of the provider's health record. Unknown
// providers and records older than the read TTL come back as Unknown with a
// cache_miss metadata marker, since health data that old is not trustworthy.
func (m *Monitor) GetProviderHealth(name string) types.ProviderHealthInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.snapshotLocked(name, time.Now())
}

// snapshotLocked copies the record for name, applying the read TTL.
// Caller must hold the mutex.
func (m *Monitor) snapshotLocked(name string, now time.Time) types.ProviderHealthInfo {
	rec, ok := m.records[strings.ToLower(name)]
	if !ok || now.Sub(rec.info.LastCheck) > m.readTTL {
		displayName := name
		if ok {
			displayName = rec.info.Name
		}
		return types.ProviderHealthInfo{
			Name:     displayName,
			Status:   types.StatusUnknown,
			Metadata: map[string]interface{}{"cache_miss": true},
		}
	}

	info := rec.info
	if rec.info.LastSuccess != nil {
		t := *rec.info.LastSuccess
		info.LastSuccess = &t
	}
	if rec.info.LastFailure != nil {
		t := *rec.info.LastFailure
		info.LastFailure = &t
	}
	return info
}

// GetHealthyProviders returns every known provider currently healthy,
// after the read TTL check, sorted by name
func (m *Monitor) GetHealthyProviders() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	var healthy []string
	for key := range m.records {
		info := m.snapshotLocked(key, now)
		if info.Status == types.StatusHealthy {
			healthy = append(healthy, info.Name)
		}
	}
	sort.Strings(healthy)
	return healthy
}

// GetAlternativeProviders returns every known provider except exclude,
// best first: descending success rate, ties broken by ascending last
// recorded response time. The excluded provider is dropped regardless of
// its status.
func (m *Monitor) GetAlternativeProviders(exclude string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	excludeKey := strings.ToLower(exclude)

	type candidate struct {
		name         string
		successRate  float64
		responseTime time.Duration
	}

	var candidates []candidate
	for key, rec := range m.records {
		if key == excludeKey {
			continue
		}
		candidates = append(candidates, candidate{
			name:         rec.info.Name,
			successRate:  rec.info.SuccessRate,
			responseTime: rec.info.ResponseTime,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].successRate != candidates[j].successRate {
			return candidates[i].successRate > candidates[j].successRate
		}
		return candidates[i].responseTime < candidates[j].responseTime
	})

	names := make([]string, len(candidates))
	for i, c := range candidates {
		names[i] = c.name
	}
	return names
}
