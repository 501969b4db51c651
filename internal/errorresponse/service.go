package errorresponse

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/llm-resilience/internal/cache"
	"github.com/tributary-ai/llm-resilience/internal/dedup"
	"github.com/tributary-ai/llm-resilience/internal/health"
	"github.com/tributary-ai/llm-resilience/internal/types"
)

// rule maps error-text fragments to a category and a response template
type rule struct {
	category  types.ErrorCategory
	fragments []string
	title     string
	summary   string
	nextSteps []string
}

// Classification rules are checked in order; first match wins. Fragments
// are matched case-insensitively against the raw error message.
var rules = []rule{
	{
		category:  types.CategoryAPIKeyMissing,
		fragments: []string{"api key not found", "api key is missing", "no api key", "missing api key"},
		title:     "API Key Missing",
		summary:   "No API key is configured for %s.",
		nextSteps: []string{"Add the provider API key to your configuration", "Restart the service after updating credentials"},
	},
	{
		category:  types.CategoryAPIKeyInvalid,
		fragments: []string{"invalid api key", "incorrect api key", "api key invalid"},
		title:     "API Key Invalid",
		summary:   "The configured API key for %s was rejected.",
		nextSteps: []string{"Verify the API key has not been revoked or rotated", "Check for whitespace or truncation in the configured key"},
	},
	{
		category:  types.CategoryAuthentication,
		fragments: []string{"401", "403", "unauthorized", "authentication failed", "forbidden"},
		title:     "Authentication Failed",
		summary:   "%s rejected the request credentials.",
		nextSteps: []string{"Confirm the account has access to the requested model", "Re-authenticate and retry"},
	},
	{
		category:  types.CategoryRateLimit,
		fragments: []string{"rate limit", "429", "too many requests", "quota exceeded"},
		title:     "Rate Limit Exceeded",
		summary:   "%s is throttling requests.",
		nextSteps: []string{"Retry after a short backoff", "Consider a different provider for burst traffic"},
	},
	{
		category:  types.CategoryModelUnavailable,
		fragments: []string{"model not found", "model unavailable", "no such model", "model is not available"},
		title:     "Model Unavailable",
		summary:   "The requested model is not available on %s.",
		nextSteps: []string{"Check the model name against the provider registry", "Fall back to the provider's default model"},
	},
	{
		category:  types.CategoryNetwork,
		fragments: []string{"connection refused", "timeout", "timed out", "dns", "network", "unreachable"},
		title:     "Provider Unreachable",
		summary:   "Could not reach %s.",
		nextSteps: []string{"Check network connectivity and provider status", "Retry; transient network failures usually clear quickly"},
	},
}

// Service turns raw provider errors into formatted, user-facing responses.
// Formatting is memoized in the response cache and deduplicated, so a storm
// of identical failures does the classification work once.
type Service struct {
	cache        *cache.IntelligentResponseCache
	deduplicator *dedup.Deduplicator
	monitor      *health.Monitor
	logger       *logrus.Logger
}

// NewService creates a Service. monitor may be nil; without it responses
// carry no alternative-provider suggestions.
func NewService(respCache *cache.IntelligentResponseCache, deduplicator *dedup.Deduplicator, monitor *health.Monitor, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.New()
	}
	if respCache == nil {
		respCache = cache.NewIntelligentResponseCache(0, 0, logger, nil)
	}
	if deduplicator == nil {
		deduplicator = dedup.New(logger, nil)
	}
	return &Service{
		cache:        respCache,
		deduplicator: deduplicator,
		monitor:      monitor,
		logger:       logger,
	}
}

// Classify returns the category for an error message
func (s *Service) Classify(errMsg, errType string) types.ErrorCategory {
	haystack := strings.ToLower(errMsg + " " + errType)
	for _, r := range rules {
		for _, fragment := range r.fragments {
			if strings.Contains(haystack, fragment) {
				return r.category
			}
		}
	}
	return types.CategoryUnknown
}

// Analyze produces the formatted response for a provider error, from cache
// when possible
func (s *Service) Analyze(ctx context.Context, errMsg, errType, provider string) (*types.ErrorResponse, error) {
	if resp, ok := s.cache.GetResponse(errMsg, errType, provider); ok {
		return resp, nil
	}

	v, err := s.deduplicator.Do(ctx, func(ctx context.Context) (interface{}, error) {
		resp := s.format(errMsg, errType, provider)
		s.cache.CacheResponse(errMsg, errType, provider, resp)
		return resp, nil
	}, "error_response", errMsg, errType, provider)
	if err != nil {
		return nil, fmt.Errorf("error analysis failed: %w", err)
	}
	return v.(*types.ErrorResponse), nil
}

// format builds the response for an error, merging in alternatives from the
// health monitor when a provider is implicated
func (s *Service) format(errMsg, errType, provider string) *types.ErrorResponse {
	haystack := strings.ToLower(errMsg + " " + errType)
	subject := provider
	if subject == "" {
		subject = "the provider"
	}

	resp := &types.ErrorResponse{
		Title:    "Unexpected Error",
		Summary:  fmt.Sprintf("An unexpected error occurred while talking to %s.", subject),
		Category: types.CategoryUnknown,
		Provider: provider,
		NextSteps: []string{
			"Retry the request",
			"Check the service logs for details",
		},
	}

	for _, r := range rules {
		if matchesRule(r, haystack) {
			resp.Title = r.title
			resp.Summary = fmt.Sprintf(r.summary, subject)
			resp.Category = r.category
			resp.NextSteps = append([]string(nil), r.nextSteps...)
			break
		}
	}

	if provider != "" && s.monitor != nil {
		recs := s.monitor.GetProviderRecommendations(provider)
		resp.Alternatives = recs.Alternatives
		if len(recs.Alternatives) > 0 {
			resp.NextSteps = append(resp.NextSteps,
				fmt.Sprintf("Switch to an alternative provider (e.g. %s)", recs.Alternatives[0]))
		}
	}

	s.logger.WithFields(logrus.Fields{
		"category": resp.Category,
		"provider": provider,
	}).Debug("Error response formatted")
	return resp
}

func matchesRule(r rule, haystack string) bool {
	for _, fragment := range r.fragments {
		if strings.Contains(haystack, fragment) {
			return true
		}
	}
	return false
}
