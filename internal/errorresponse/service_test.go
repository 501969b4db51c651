package errorresponse

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tributary-ai/llm-resilience/internal/health"
	"github.com/tributary-ai/llm-resilience/internal/types"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func newTestService() *Service {
	return NewService(nil, nil, nil, newTestLogger())
}

func TestClassify(t *testing.T) {
	s := newTestService()

	tests := []struct {
		name   string
		errMsg string
		want   types.ErrorCategory
	}{
		{"missing key", "OPENAI_API_KEY not found in environment: no api key", types.CategoryAPIKeyMissing},
		{"invalid key", "Error: invalid API key provided", types.CategoryAPIKeyInvalid},
		{"401", "server returned 401 Unauthorized", types.CategoryAuthentication},
		{"forbidden", "request forbidden", types.CategoryAuthentication},
		{"rate limit", "Rate limit reached for gpt-4o-mini", types.CategoryRateLimit},
		{"429", "HTTP 429: too many requests", types.CategoryRateLimit},
		{"model missing", "The model is not available in this region", types.CategoryModelUnavailable},
		{"network", "dial tcp: connection refused", types.CategoryNetwork},
		{"timeout", "request timed out after 30s", types.CategoryNetwork},
		{"unknown", "something weird happened", types.CategoryUnknown},
		{"empty", "", types.CategoryUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Classify(tt.errMsg, ""))
		})
	}
}

func TestClassify_UsesErrorType(t *testing.T) {
	s := newTestService()

	// The message alone is unclassifiable, but the error type is not
	assert.Equal(t, types.CategoryRateLimit, s.Classify("request rejected", "RateLimitError: 429"))
}

func TestAnalyze_FormatsResponse(t *testing.T) {
	s := newTestService()

	resp, err := s.Analyze(context.Background(), "invalid api key", "AuthError", "openai")
	require.NoError(t, err)

	assert.Equal(t, "API Key Invalid", resp.Title)
	assert.Equal(t, types.CategoryAPIKeyInvalid, resp.Category)
	assert.Equal(t, "openai", resp.Provider)
	assert.Contains(t, resp.Summary, "openai")
	assert.NotEmpty(t, resp.NextSteps)
}

func TestAnalyze_UnknownError(t *testing.T) {
	s := newTestService()

	resp, err := s.Analyze(context.Background(), "mystery failure", "", "")
	require.NoError(t, err)

	assert.Equal(t, "Unexpected Error", resp.Title)
	assert.Equal(t, types.CategoryUnknown, resp.Category)
	assert.Contains(t, resp.Summary, "the provider")
}

func TestAnalyze_SecondCallHitsCache(t *testing.T) {
	s := newTestService()

	first, err := s.Analyze(context.Background(), "429 rate limit", "", "gemini")
	require.NoError(t, err)

	second, err := s.Analyze(context.Background(), "429 rate limit", "", "gemini")
	require.NoError(t, err)

	assert.Same(t, first, second, "identical error context should return the cached response")
	assert.Equal(t, int64(1), s.cache.Stats().Hits)
}

func TestAnalyze_MergesMonitorAlternatives(t *testing.T) {
	monitor := health.NewMonitor(time.Minute, newTestLogger(), nil)
	monitor.Update("llamacpp", true, 10*time.Millisecond, "")
	monitor.Update("openai", false, 10*time.Millisecond, "invalid api key")

	s := NewService(nil, nil, monitor, newTestLogger())

	resp, err := s.Analyze(context.Background(), "invalid api key", "", "openai")
	require.NoError(t, err)

	assert.Contains(t, resp.Alternatives, "llamacpp")

	found := false
	for _, step := range resp.NextSteps {
		if strings.Contains(step, "llamacpp") {
			found = true
		}
	}
	assert.True(t, found, "next steps should suggest the best alternative")
}
