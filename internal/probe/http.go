package probe

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/llm-resilience/internal/types"
)

// HTTPProbe checks local or self-hosted providers (llamacpp, transformers
// servers, etc.) by hitting a health URL.
type HTTPProbe struct {
	url    string
	client *http.Client
	logger *logrus.Logger
}

// NewHTTPProbe creates a probe against the given health URL
func NewHTTPProbe(url string, timeout time.Duration, logger *logrus.Logger) *HTTPProbe {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPProbe{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Probe issues a GET against the health URL. 2xx means fully healthy; an
// auth rejection means reachable but not authenticated.
func (p *HTTPProbe) Probe(ctx context.Context) (types.ProbeResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return types.ProbeResult{}, fmt.Errorf("failed to build probe request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.WithError(err).WithField("url", p.url).Debug("HTTP probe failed")
		return types.ProbeResult{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return types.ProbeResult{Available: true, Authenticated: true}, nil
	case isAuthStatus(resp.StatusCode):
		return types.ProbeResult{Available: true, Authenticated: false}, nil
	default:
		return types.ProbeResult{}, fmt.Errorf("health endpoint returned status %d", resp.StatusCode)
	}
}
