package registry

import (
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/llm-resilience/internal/types"
)

// Registry is a config-driven provider catalog. It answers default-model
// lookups for the selection algorithm. Lookups are case-insensitive.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]*types.ProviderInfo
	logger    *logrus.Logger
}

// New creates an empty registry
func New(logger *logrus.Logger) *Registry {
	if logger == nil {
		logger = logrus.New()
	}
	return &Registry{
		providers: make(map[string]*types.ProviderInfo),
		logger:    logger,
	}
}

// Register adds or replaces a provider entry
func (r *Registry) Register(info types.ProviderInfo) {
	key := strings.ToLower(strings.TrimSpace(info.Name))
	if key == "" {
		return
	}

	r.mu.Lock()
	r.providers[key] = &info
	r.mu.Unlock()

	r.logger.WithFields(logrus.Fields{
		"provider":      info.Name,
		"default_model": info.DefaultModel,
	}).Info("Provider registered")
}

// GetProviderInfo returns a copy of the provider's registration
func (r *Registry) GetProviderInfo(name string) (*types.ProviderInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.providers[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, false
	}
	copied := *info
	copied.Models = append([]string(nil), info.Models...)
	return &copied, true
}

// ListProviders returns all registered provider names, sorted
func (r *Registry) ListProviders() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for _, info := range r.providers {
		names = append(names, info.Name)
	}
	sort.Strings(names)
	return names
}
