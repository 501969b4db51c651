package probe

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/tributary-ai/llm-resilience/internal/types"
)

// Prober checks one specific provider backend
type Prober interface {
	Probe(ctx context.Context) (types.ProbeResult, error)
}

// MultiProbe dispatches health checks to the prober registered for each
// provider name. It implements selection.HealthChecker.
type MultiProbe struct {
	mu      sync.RWMutex
	probers map[string]Prober
}

// NewMultiProbe creates an empty MultiProbe
func NewMultiProbe() *MultiProbe {
	return &MultiProbe{probers: make(map[string]Prober)}
}

// Register binds a prober to a provider name
func (m *MultiProbe) Register(provider string, p Prober) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probers[strings.ToLower(provider)] = p
}

// Check probes the named provider. Unknown providers are an error, which
// the selector treats as a failed candidate.
func (m *MultiProbe) Check(ctx context.Context, provider string) (types.ProbeResult, error) {
	m.mu.RLock()
	p, ok := m.probers[strings.ToLower(provider)]
	m.mu.RUnlock()

	if !ok {
		return types.ProbeResult{}, fmt.Errorf("no health probe registered for provider %q", provider)
	}
	return p.Probe(ctx)
}
