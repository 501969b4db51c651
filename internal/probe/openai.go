package probe

import (
	"context"
	"errors"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/llm-resilience/internal/types"
)

// OpenAIProbe checks OpenAI-compatible backends via the models endpoint
type OpenAIProbe struct {
	client *openai.Client
	logger *logrus.Logger
}

// NewOpenAIProbe creates a probe for an OpenAI-compatible endpoint.
// baseURL may be empty for the public API.
func NewOpenAIProbe(apiKey, baseURL string, logger *logrus.Logger) *OpenAIProbe {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAIProbe{
		client: openai.NewClientWithConfig(config),
		logger: logger,
	}
}

// Probe lists models. An authentication rejection means the service is up
// but the credential is bad, which selection must treat as a failure.
func (p *OpenAIProbe) Probe(ctx context.Context) (types.ProbeResult, error) {
	_, err := p.client.ListModels(ctx)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && isAuthStatus(apiErr.HTTPStatusCode) {
			p.logger.WithError(err).Warn("OpenAI probe rejected credentials")
			return types.ProbeResult{Available: true, Authenticated: false}, nil
		}
		p.logger.WithError(err).Debug("OpenAI probe failed")
		return types.ProbeResult{}, err
	}

	return types.ProbeResult{Available: true, Authenticated: true}, nil
}

func isAuthStatus(code int) bool {
	return code == 401 || code == 403
}
