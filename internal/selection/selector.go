package selection

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/llm-resilience/internal/metrics"
	"github.com/tributary-ai/llm-resilience/internal/types"
)

// HealthChecker probes a provider. Implementations may hit the network;
// the selector time-boxes every call and treats errors, timeouts, and
// partial health all as a failed candidate.
type HealthChecker interface {
	Check(ctx context.Context, provider string) (types.ProbeResult, error)
}

// ProviderRegistry resolves provider metadata, in particular default models
type ProviderRegistry interface {
	GetProviderInfo(name string) (*types.ProviderInfo, bool)
}

// HardFallback is the single last-resort candidate before degraded mode
type HardFallback struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

// Config controls the selection protocol
type Config struct {
	// Ordered system default hierarchy, tried after the user preference
	Hierarchy []string `yaml:"hierarchy"`

	HardFallback HardFallback `yaml:"hard_fallback"`

	// Deadline for each individual health check
	CheckTimeout time.Duration `yaml:"check_timeout"`
}

// DefaultConfig returns the stock hierarchy and timeouts
func DefaultConfig() *Config {
	return &Config{
		Hierarchy: []string{"llamacpp", "transformers", "openai", "gemini", "deepseek", "huggingface"},
		HardFallback: HardFallback{
			Provider: "llamacpp",
			Model:    "tinyllama-1.1b-chat",
		},
		CheckTimeout: 5 * time.Second,
	}
}

// Fallback models for providers the registry does not know
var builtinDefaultModels = map[string]string{
	"llamacpp":     "tinyllama-1.1b-chat",
	"transformers": "distilgpt2",
	"openai":       "gpt-4o-mini",
	"anthropic":    "claude-3-haiku-20240307",
	"gemini":       "gemini-1.5-flash",
	"deepseek":     "deepseek-chat",
	"huggingface":  "distilgpt2",
}

// Selector executes the four-stage, fail-fast provider selection protocol:
// user preference, system defaults, hard fallback, degraded mode. Each
// candidate gets exactly one time-boxed health check; on failure the next
// candidate is tried immediately. Callers always receive a SelectionResult,
// never an error — degraded mode is a documented outcome.
type Selector struct {
	checker  HealthChecker
	registry ProviderRegistry
	config   *Config
	logger   *logrus.Logger
	metrics  *metrics.Recorder
}

// NewSelector creates a Selector. registry and recorder may be nil.
func NewSelector(checker HealthChecker, registry ProviderRegistry, config *Config, logger *logrus.Logger, recorder *metrics.Recorder) *Selector {
	if config == nil {
		config = DefaultConfig()
	}
	if config.CheckTimeout <= 0 {
		config.CheckTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Selector{
		checker:  checker,
		registry: registry,
		config:   config,
		logger:   logger,
		metrics:  recorder,
	}
}

// SelectProviderAndModel runs the selection protocol for one request.
// Every candidate attempt, pass or fail, is appended to the result's
// SelectionLog; failed candidates increment FallbackAttempts. A candidate
// already probed in an earlier stage is not probed again.
func (s *Selector) SelectProviderAndModel(ctx context.Context, prefs types.Preferences) *types.SelectionResult {
	start := time.Now()
	result := &types.SelectionResult{
		ID:           uuid.NewString(),
		SelectionLog: []string{},
	}
	probed := make(map[string]bool)

	// Stage 1: user preference
	if preferred := normalize(prefs.Provider); preferred != "" {
		probed[preferred] = true
		if s.checkCandidate(ctx, result, "user preference", preferred) {
			return s.finish(result, start, preferred, s.resolveModel(preferred, prefs.Model),
				types.PathUserPreference,
				fmt.Sprintf("user preferred provider %q passed health check", preferred))
		}
	} else {
		result.SelectionLog = append(result.SelectionLog, "no user preference supplied")
	}

	// Stage 2: system default hierarchy, in declared order
	for _, name := range s.config.Hierarchy {
		candidate := normalize(name)
		if candidate == "" || probed[candidate] {
			continue
		}
		probed[candidate] = true
		if s.checkCandidate(ctx, result, "system defaults", candidate) {
			return s.finish(result, start, candidate, s.resolveModel(candidate, ""),
				types.PathSystemDefaults,
				fmt.Sprintf("system default provider %q passed health check", candidate))
		}
	}

	// Stage 3: hard final fallback
	if last := normalize(s.config.HardFallback.Provider); last != "" && !probed[last] {
		probed[last] = true
		if s.checkCandidate(ctx, result, "hard fallback", last) {
			model := s.config.HardFallback.Model
			if model == "" {
				model = s.resolveModel(last, "")
			}
			return s.finish(result, start, last, model,
				types.PathHardFallback,
				fmt.Sprintf("hard fallback provider %q passed health check", last))
		}
	}

	// Stage 4: degraded mode
	result.SelectionLog = append(result.SelectionLog, "all candidates exhausted, entering degraded mode")
	return s.finish(result, start, "", "",
		types.PathDegradedMode, "all providers failed health checks")
}

// checkCandidate runs one time-boxed health check, recording the attempt
// in the result. Returns true when the candidate is healthy.
func (s *Selector) checkCandidate(ctx context.Context, result *types.SelectionResult, stage, provider string) bool {
	result.HealthChecksPerformed++

	ok, reason := s.probe(ctx, provider)
	if ok {
		result.SelectionLog = append(result.SelectionLog,
			fmt.Sprintf("%s: provider %q passed health check", stage, provider))
		return true
	}

	result.FallbackAttempts++
	result.SelectionLog = append(result.SelectionLog,
		fmt.Sprintf("%s: provider %q failed health check: %s", stage, provider, reason))

	s.logger.WithFields(logrus.Fields{
		"selection_id": result.ID,
		"stage":        stage,
		"provider":     provider,
		"reason":       reason,
	}).Debug("Selection candidate failed")
	return false
}

// probe runs the health checker under the configured deadline. The deadline
// always returns control to the caller: a probe that never resolves is
// abandoned to its goroutine and counted as a timeout.
func (s *Selector) probe(ctx context.Context, provider string) (bool, string) {
	cctx, cancel := context.WithTimeout(ctx, s.config.CheckTimeout)
	defer cancel()

	type outcome struct {
		res types.ProbeResult
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		res, err := s.checker.Check(cctx, provider)
		ch <- outcome{res: res, err: err}
	}()

	select {
	case out := <-ch:
		switch {
		case out.err != nil:
			return false, fmt.Sprintf("health check error: %v", out.err)
		case !out.res.Available:
			return false, "provider unavailable"
		case !out.res.Authenticated:
			return false, "authentication failed"
		default:
			return true, ""
		}
	case <-cctx.Done():
		return false, fmt.Sprintf("health check timeout (%.0fs)", s.config.CheckTimeout.Seconds())
	}
}

// resolveModel picks the model for a selected provider: the caller's
// request, then the registry default, then the built-in map, then empty
// (caller must handle a provider with no known model).
func (s *Selector) resolveModel(provider, requested string) string {
	if requested != "" {
		return requested
	}
	if s.registry != nil {
		if info, ok := s.registry.GetProviderInfo(provider); ok && info.DefaultModel != "" {
			return info.DefaultModel
		}
	}
	return builtinDefaultModels[provider]
}

// finish stamps the terminal fields onto the result and records metrics
func (s *Selector) finish(result *types.SelectionResult, start time.Time, provider, model string, path types.SelectionPath, rationale string) *types.SelectionResult {
	result.Provider = provider
	result.Model = model
	result.SelectionPath = path
	result.Rationale = rationale
	result.TotalSelectionTime = time.Since(start)

	if s.metrics != nil {
		s.metrics.RecordSelection(provider, string(path), result.TotalSelectionTime)
	}

	s.logger.WithFields(logrus.Fields{
		"selection_id":   result.ID,
		"provider":       provider,
		"model":          model,
		"path":           path,
		"attempts":       result.FallbackAttempts,
		"health_checks":  result.HealthChecksPerformed,
		"duration_ms":    result.TotalSelectionTime.Milliseconds(),
	}).Info("Provider selection completed")

	return result
}

// normalize lower-cases and trims a provider name
func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
