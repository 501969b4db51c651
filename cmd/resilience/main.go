package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/llm-resilience/internal/auth"
	"github.com/tributary-ai/llm-resilience/internal/cache"
	"github.com/tributary-ai/llm-resilience/internal/config"
	"github.com/tributary-ai/llm-resilience/internal/dedup"
	"github.com/tributary-ai/llm-resilience/internal/errorresponse"
	"github.com/tributary-ai/llm-resilience/internal/health"
	"github.com/tributary-ai/llm-resilience/internal/metrics"
	"github.com/tributary-ai/llm-resilience/internal/probe"
	"github.com/tributary-ai/llm-resilience/internal/registry"
	"github.com/tributary-ai/llm-resilience/internal/selection"
	"github.com/tributary-ai/llm-resilience/internal/server"
	"github.com/tributary-ai/llm-resilience/internal/types"
)

// Application represents the main application
type Application struct {
	config *config.Config
	server *server.Server
	logger *logrus.Logger
}

// NewApplication creates a new application instance
func NewApplication(configPath string) (*Application, error) {
	// Load configuration
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	// Setup logger
	logger := logrus.New()
	if err := setupLogger(logger, cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to setup logger: %w", err)
	}

	// Metrics, caches, and deduplication
	recorder := metrics.NewRecorder()
	deduplicator := dedup.New(logger, recorder)
	tokenCache := cache.NewTokenValidationCache(cfg.Caches.Token.MaxSize, cfg.Caches.Token.DefaultTTL, logger, recorder)
	healthCache := cache.NewProviderHealthCache(cfg.Caches.Provider.MaxSize, cfg.Caches.Provider.DefaultTTL, logger, recorder)
	responseCache := cache.NewIntelligentResponseCache(cfg.Caches.Response.MaxSize, cfg.Caches.Response.DefaultTTL, logger, recorder)

	// Health monitor
	monitor := health.NewMonitor(cfg.Health.ReadTTL, logger, recorder)

	// Provider registry and probes
	reg := registry.New(logger)
	multi := probe.NewMultiProbe()
	if err := registerProviders(reg, multi, cfg, logger); err != nil {
		return nil, fmt.Errorf("failed to register providers: %w", err)
	}

	// Selector probes feed the monitor and the health snapshot cache
	checker := &monitoredChecker{
		inner:   multi,
		monitor: monitor,
		cache:   healthCache,
	}

	selector := selection.NewSelector(checker, reg, cfg.ToSelectionConfig(), logger, recorder)

	// Error analysis
	errorService := errorresponse.NewService(responseCache, deduplicator, monitor, logger)

	// Token authentication, if enabled
	var tokenService *auth.TokenService
	if cfg.Auth.Enabled {
		tokenService = auth.NewTokenService(cfg.Auth.JWTSecret, tokenCache, deduplicator, logger)
		logger.Info("Token authentication enabled")
	}

	// HTTP server
	serverInstance, err := server.NewServer(server.Deps{
		Selector: selector,
		Monitor:  monitor,
		Registry: reg,
		Errors:   errorService,
		Tokens:   tokenService,
		Recorder: recorder,
		Caches: server.CacheSet{
			Token:    tokenCache,
			Provider: healthCache,
			Response: responseCache,
		},
		Dedup: deduplicator,
	}, &server.ServerConfig{
		Port:           cfg.Server.Port,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create server: %w", err)
	}

	return &Application{
		config: cfg,
		server: serverInstance,
		logger: logger,
	}, nil
}

// Run starts the application
func (app *Application) Run() error {
	app.logger.Info("Starting LLM resilience service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		app.logger.WithField("address", ":"+app.config.Server.Port).Info("HTTP server starting")
		if err := app.server.Start(); err != nil {
			serverErrors <- fmt.Errorf("server failed to start: %w", err)
		}
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		app.logger.WithField("signal", sig.String()).Info("Shutdown signal received")
	}

	app.logger.Info("Starting graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
	defer shutdownCancel()

	if err := app.server.Stop(shutdownCtx); err != nil {
		app.logger.WithError(err).Error("Server shutdown error")
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	app.logger.Info("Graceful shutdown completed")
	return nil
}

// monitoredChecker runs probes and records every outcome with the health
// monitor, so selection traffic continuously refreshes health state. The
// latest snapshot is also pushed to the provider health cache for cheap
// reads by other services.
type monitoredChecker struct {
	inner   *probe.MultiProbe
	monitor *health.Monitor
	cache   *cache.ProviderHealthCache
}

func (c *monitoredChecker) Check(ctx context.Context, provider string) (types.ProbeResult, error) {
	start := time.Now()
	res, err := c.inner.Check(ctx, provider)
	elapsed := time.Since(start)

	healthy := err == nil && res.Available && res.Authenticated
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	} else if !healthy {
		errMsg = "provider failed health check"
	}
	c.monitor.Update(provider, healthy, elapsed, errMsg)

	info := c.monitor.GetProviderHealth(provider)
	c.cache.CacheHealth(provider, &info)

	return res, err
}

// setupLogger configures the logger based on configuration
func setupLogger(logger *logrus.Logger, config config.LoggingConfig) error {
	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		return fmt.Errorf("invalid log level %s: %w", config.Level, err)
	}
	logger.SetLevel(level)

	switch config.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	default:
		return fmt.Errorf("invalid log format: %s", config.Format)
	}

	switch config.Output {
	case "stdout":
		logger.SetOutput(os.Stdout)
	case "stderr":
		logger.SetOutput(os.Stderr)
	default:
		// Assume it's a file path
		file, err := os.OpenFile(config.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", config.Output, err)
		}
		logger.SetOutput(file)
	}

	return nil
}

// registerProviders wires each configured provider into the registry and
// attaches the matching probe implementation
func registerProviders(reg *registry.Registry, multi *probe.MultiProbe, cfg *config.Config, logger *logrus.Logger) error {
	registered := 0

	for name, p := range cfg.Providers {
		// Remote providers without credentials stay unregistered; selection
		// then never probes them.
		if p.Type != "http" && p.APIKey == "" {
			logger.WithField("provider", name).Debug("Skipping provider without API key")
			continue
		}

		var prober probe.Prober
		switch p.Type {
		case "openai":
			prober = probe.NewOpenAIProbe(p.APIKey, p.BaseURL, logger)
		case "anthropic":
			prober = probe.NewAnthropicProbe(p.APIKey, p.BaseURL, logger)
		case "http":
			prober = probe.NewHTTPProbe(p.HealthURL, 5*time.Second, logger)
		default:
			return fmt.Errorf("provider %s has unknown type %s", name, p.Type)
		}

		multi.Register(name, prober)
		reg.Register(types.ProviderInfo{
			Name:         name,
			DefaultModel: p.DefaultModel,
			Models:       p.Models,
		})

		logger.WithFields(logrus.Fields{
			"provider": name,
			"type":     p.Type,
		}).Info("Provider registered")
		registered++
	}

	if registered == 0 {
		return fmt.Errorf("no providers were registered - check your configuration and API keys")
	}

	logger.WithField("count", registered).Info("Provider registration completed")
	return nil
}

// printUsage prints application usage information
func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "\nOptions:\n")
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
	fmt.Fprintf(os.Stderr, "  OPENAI_API_KEY           OpenAI API key\n")
	fmt.Fprintf(os.Stderr, "  ANTHROPIC_API_KEY        Anthropic API key\n")
	fmt.Fprintf(os.Stderr, "  GEMINI_API_KEY           Gemini API key\n")
	fmt.Fprintf(os.Stderr, "  DEEPSEEK_API_KEY         DeepSeek API key\n")
	fmt.Fprintf(os.Stderr, "  HF_API_KEY               HuggingFace API key\n")
	fmt.Fprintf(os.Stderr, "  RESILIENCE_PORT          Server port (default: 8080)\n")
	fmt.Fprintf(os.Stderr, "  RESILIENCE_LOG_LEVEL     Log level (debug,info,warn,error,fatal)\n")
	fmt.Fprintf(os.Stderr, "  RESILIENCE_LOG_FORMAT    Log format (json,text)\n")
	fmt.Fprintf(os.Stderr, "  RESILIENCE_JWT_SECRET    Enables token auth with this secret\n")
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  %s --config configs/config.yaml\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  OPENAI_API_KEY=sk-xxx %s\n", os.Args[0])
}

func main() {
	var (
		configPath = flag.String("config", "", "Path to configuration file")
		showHelp   = flag.Bool("help", false, "Show help message")
		version    = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showHelp {
		printUsage()
		os.Exit(0)
	}

	if *version {
		fmt.Printf("LLM Resilience Service v1.0.0\n")
		os.Exit(0)
	}

	app, err := NewApplication(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create application: %v\n", err)
		os.Exit(1)
	}

	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Application error: %v\n", err)
		os.Exit(1)
	}
}
