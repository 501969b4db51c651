package probe

import (
	"context"
	"errors"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/llm-resilience/internal/types"
)

// AnthropicProbe checks the Anthropic API with a minimal one-token message
type AnthropicProbe struct {
	client *anthropic.Client
	model  anthropic.Model
	logger *logrus.Logger
}

// NewAnthropicProbe creates a probe for the Anthropic API. baseURL may be
// empty for the public API.
func NewAnthropicProbe(apiKey, baseURL string, logger *logrus.Logger) *AnthropicProbe {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := anthropic.NewClient(opts...)
	return &AnthropicProbe{
		client: &client,
		// Cheapest model keeps the probe inexpensive
		model:  anthropic.Model("claude-3-haiku-20240307"),
		logger: logger,
	}
}

// Probe sends a minimal message. An authentication rejection means the
// service is up but the credential is bad.
func (p *AnthropicProbe) Probe(ctx context.Context) (types.ProbeResult, error) {
	_, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model: p.model,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("ping")),
		},
		MaxTokens: 1,
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) && isAuthStatus(apiErr.StatusCode) {
			p.logger.WithError(err).Warn("Anthropic probe rejected credentials")
			return types.ProbeResult{Available: true, Authenticated: false}, nil
		}
		p.logger.WithError(err).Debug("Anthropic probe failed")
		return types.ProbeResult{}, err
	}

	return types.ProbeResult{Available: true, Authenticated: true}, nil
}
