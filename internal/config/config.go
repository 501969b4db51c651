package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tributary-ai/llm-resilience/internal/selection"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig              `yaml:"server"`
	Selection SelectionConfig           `yaml:"selection"`
	Health    HealthConfig              `yaml:"health"`
	Caches    CachesConfig              `yaml:"caches"`
	Providers map[string]ProviderConfig `yaml:"providers"`
	Auth      AuthConfig                `yaml:"auth"`
	Logging   LoggingConfig             `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           string        `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	MaxHeaderBytes int           `yaml:"max_header_bytes"`
}

// SelectionConfig holds provider selection configuration
type SelectionConfig struct {
	Hierarchy            []string      `yaml:"hierarchy"`
	HardFallbackProvider string        `yaml:"hard_fallback_provider"`
	HardFallbackModel    string        `yaml:"hard_fallback_model"`
	CheckTimeout         time.Duration `yaml:"check_timeout"`
}

// HealthConfig holds health monitor configuration
type HealthConfig struct {
	ReadTTL time.Duration `yaml:"read_ttl"`
}

// CachesConfig holds sizing and TTL settings for all caches
type CachesConfig struct {
	Token    CacheConfig `yaml:"token"`
	Provider CacheConfig `yaml:"provider"`
	Response CacheConfig `yaml:"response"`
}

// CacheConfig holds settings for a single cache
type CacheConfig struct {
	MaxSize    int           `yaml:"max_size"`
	DefaultTTL time.Duration `yaml:"default_ttl"`
}

// ProviderConfig holds configuration for a single provider backend
type ProviderConfig struct {
	Type         string   `yaml:"type"` // "openai", "anthropic", or "http"
	APIKey       string   `yaml:"api_key"`
	BaseURL      string   `yaml:"base_url"`
	HealthURL    string   `yaml:"health_url"`
	DefaultModel string   `yaml:"default_model"`
	Models       []string `yaml:"models"`
}

// AuthConfig holds token authentication configuration
type AuthConfig struct {
	Enabled   bool          `yaml:"enabled"`
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "text"
	Output string `yaml:"output"` // "stdout", "stderr", or file path
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	// Set defaults
	config.setDefaults()

	// Load from file if provided
	if configPath != "" {
		if err := config.loadFromFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Override with environment variables
	config.loadFromEnv()

	// Validate configuration
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// setDefaults sets default configuration values
func (c *Config) setDefaults() {
	c.Server = ServerConfig{
		Port:           "8080",
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	defaults := selection.DefaultConfig()
	c.Selection = SelectionConfig{
		Hierarchy:            defaults.Hierarchy,
		HardFallbackProvider: defaults.HardFallback.Provider,
		HardFallbackModel:    defaults.HardFallback.Model,
		CheckTimeout:         defaults.CheckTimeout,
	}

	c.Health = HealthConfig{
		ReadTTL: 5 * time.Minute,
	}

	c.Caches = CachesConfig{
		Token:    CacheConfig{MaxSize: 2000, DefaultTTL: 5 * time.Minute},
		Provider: CacheConfig{MaxSize: 500, DefaultTTL: 3 * time.Minute},
		Response: CacheConfig{MaxSize: 1000, DefaultTTL: 5 * time.Minute},
	}

	c.Auth = AuthConfig{
		Enabled:  false,
		TokenTTL: time.Hour,
	}

	c.Logging = LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}

	// Local-first provider set; remote providers activate once an API key
	// arrives from the environment.
	c.Providers = map[string]ProviderConfig{
		"llamacpp": {
			Type:         "http",
			HealthURL:    "http://localhost:8000/health",
			DefaultModel: "tinyllama-1.1b-chat",
			Models:       []string{"tinyllama-1.1b-chat"},
		},
		"transformers": {
			Type:         "http",
			HealthURL:    "http://localhost:8001/health",
			DefaultModel: "distilgpt2",
			Models:       []string{"distilgpt2"},
		},
	}
}

// loadFromFile loads configuration from YAML file
func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}

	return nil
}

// loadFromEnv loads configuration from environment variables
func (c *Config) loadFromEnv() {
	if port := os.Getenv("RESILIENCE_PORT"); port != "" {
		c.Server.Port = port
	}

	if level := os.Getenv("RESILIENCE_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}

	if format := os.Getenv("RESILIENCE_LOG_FORMAT"); format != "" {
		c.Logging.Format = format
	}

	if secret := os.Getenv("RESILIENCE_JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
		c.Auth.Enabled = true
	}

	// Provider API keys enable the matching remote provider
	c.applyProviderKey("openai", "OPENAI_API_KEY", "gpt-4o-mini")
	c.applyProviderKey("anthropic", "ANTHROPIC_API_KEY", "claude-3-haiku-20240307")
	c.applyProviderKey("gemini", "GEMINI_API_KEY", "gemini-1.5-flash")
	c.applyProviderKey("deepseek", "DEEPSEEK_API_KEY", "deepseek-chat")
	c.applyProviderKey("huggingface", "HF_API_KEY", "distilgpt2")
}

// applyProviderKey injects an API key from the environment, registering the
// provider if the file config did not mention it
func (c *Config) applyProviderKey(name, envVar, defaultModel string) {
	key := os.Getenv(envVar)
	if key == "" {
		return
	}
	p, ok := c.Providers[name]
	if !ok {
		p = ProviderConfig{Type: providerTypeFor(name), DefaultModel: defaultModel}
	}
	p.APIKey = key
	c.Providers[name] = p
}

// providerTypeFor maps well-known provider names to probe types. Everything
// OpenAI-compatible (deepseek, gemini's OpenAI endpoint, huggingface TGI)
// uses the openai probe.
func providerTypeFor(name string) string {
	if strings.EqualFold(name, "anthropic") {
		return "anthropic"
	}
	return "openai"
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port cannot be empty")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"fatal": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if len(c.Selection.Hierarchy) == 0 {
		return fmt.Errorf("selection hierarchy cannot be empty")
	}
	if c.Selection.HardFallbackProvider == "" {
		return fmt.Errorf("hard fallback provider cannot be empty")
	}
	if c.Selection.CheckTimeout <= 0 {
		return fmt.Errorf("selection check timeout must be positive")
	}

	for name, p := range c.Providers {
		switch p.Type {
		case "openai", "anthropic", "http":
		default:
			return fmt.Errorf("provider %s has invalid type: %s", name, p.Type)
		}
		if p.Type == "http" && p.HealthURL == "" {
			return fmt.Errorf("provider %s requires a health_url", name)
		}
	}

	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth is enabled but no JWT secret is configured")
	}

	return nil
}

// ToSelectionConfig converts to selection.Config
func (c *Config) ToSelectionConfig() *selection.Config {
	return &selection.Config{
		Hierarchy: c.Selection.Hierarchy,
		HardFallback: selection.HardFallback{
			Provider: c.Selection.HardFallbackProvider,
			Model:    c.Selection.HardFallbackModel,
		},
		CheckTimeout: c.Selection.CheckTimeout,
	}
}

// SaveToFile saves the current configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// EnabledProviders returns the names of providers that are usable: remote
// providers need an API key, local ones just a health URL
func (c *Config) EnabledProviders() []string {
	var names []string
	for name, p := range c.Providers {
		if p.Type == "http" || p.APIKey != "" {
			names = append(names, name)
		}
	}
	return names
}
