package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Expected default port '8080', got %s", cfg.Server.Port)
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("Expected default log level 'info', got %s", cfg.Logging.Level)
	}

	if cfg.Server.ReadTimeout != 30*time.Second {
		t.Errorf("Expected default read timeout 30s, got %v", cfg.Server.ReadTimeout)
	}

	if cfg.Selection.CheckTimeout != 5*time.Second {
		t.Errorf("Expected default check timeout 5s, got %v", cfg.Selection.CheckTimeout)
	}

	if len(cfg.Selection.Hierarchy) == 0 || cfg.Selection.Hierarchy[0] != "llamacpp" {
		t.Errorf("Expected hierarchy starting with 'llamacpp', got %v", cfg.Selection.Hierarchy)
	}

	if cfg.Selection.HardFallbackProvider != "llamacpp" {
		t.Errorf("Expected hard fallback 'llamacpp', got %s", cfg.Selection.HardFallbackProvider)
	}

	// The local providers are always present
	if _, ok := cfg.Providers["llamacpp"]; !ok {
		t.Error("Expected default llamacpp provider")
	}
	if _, ok := cfg.Providers["transformers"]; !ok {
		t.Error("Expected default transformers provider")
	}

	if cfg.Auth.Enabled {
		t.Error("Auth should be disabled by default")
	}
}

func TestLoadConfig_EnvironmentOverride(t *testing.T) {
	os.Setenv("RESILIENCE_PORT", "9090")
	os.Setenv("RESILIENCE_LOG_LEVEL", "debug")
	os.Setenv("RESILIENCE_LOG_FORMAT", "text")
	os.Setenv("OPENAI_API_KEY", "test-openai-key")
	os.Setenv("RESILIENCE_JWT_SECRET", "test-secret")

	defer func() {
		os.Unsetenv("RESILIENCE_PORT")
		os.Unsetenv("RESILIENCE_LOG_LEVEL")
		os.Unsetenv("RESILIENCE_LOG_FORMAT")
		os.Unsetenv("OPENAI_API_KEY")
		os.Unsetenv("RESILIENCE_JWT_SECRET")
	}()

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Expected port '9090', got %s", cfg.Server.Port)
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected log level 'debug', got %s", cfg.Logging.Level)
	}

	if cfg.Logging.Format != "text" {
		t.Errorf("Expected log format 'text', got %s", cfg.Logging.Format)
	}

	// The API key registers the openai provider
	openai, ok := cfg.Providers["openai"]
	if !ok {
		t.Fatal("Expected openai provider to be registered from environment")
	}
	if openai.APIKey != "test-openai-key" {
		t.Errorf("Expected API key from environment, got %s", openai.APIKey)
	}
	if openai.Type != "openai" {
		t.Errorf("Expected openai probe type, got %s", openai.Type)
	}

	if !cfg.Auth.Enabled {
		t.Error("JWT secret in environment should enable auth")
	}
	if cfg.Auth.JWTSecret != "test-secret" {
		t.Errorf("Expected JWT secret from environment, got %s", cfg.Auth.JWTSecret)
	}
}

func TestLoadConfig_FromFile(t *testing.T) {
	content := `
server:
  port: "7070"
selection:
  hierarchy: ["transformers", "llamacpp"]
  hard_fallback_provider: "transformers"
  hard_fallback_model: "distilgpt2"
  check_timeout: 2s
providers:
  llamacpp:
    type: http
    health_url: http://localhost:9000/health
    default_model: tinyllama-1.1b-chat
logging:
  level: warn
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.Port != "7070" {
		t.Errorf("Expected port '7070', got %s", cfg.Server.Port)
	}

	if cfg.Selection.HardFallbackProvider != "transformers" {
		t.Errorf("Expected hard fallback 'transformers', got %s", cfg.Selection.HardFallbackProvider)
	}

	if cfg.Selection.CheckTimeout != 2*time.Second {
		t.Errorf("Expected check timeout 2s, got %v", cfg.Selection.CheckTimeout)
	}

	if cfg.Logging.Level != "warn" {
		t.Errorf("Expected log level 'warn', got %s", cfg.Logging.Level)
	}

	if cfg.Providers["llamacpp"].HealthURL != "http://localhost:9000/health" {
		t.Errorf("Expected health URL from file, got %s", cfg.Providers["llamacpp"].HealthURL)
	}
}

func TestLoadConfig_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "invalid log level",
			content: `
logging:
  level: loud
`,
		},
		{
			name: "empty port",
			content: `
server:
  port: ""
`,
		},
		{
			name: "empty hierarchy",
			content: `
selection:
  hierarchy: []
`,
		},
		{
			name: "invalid provider type",
			content: `
providers:
  custom:
    type: grpc
`,
		},
		{
			name: "http provider without health url",
			content: `
providers:
  local:
    type: http
`,
		},
		{
			name: "auth enabled without secret",
			content: `
auth:
  enabled: true
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatalf("Failed to write config file: %v", err)
			}

			if _, err := LoadConfig(path); err == nil {
				t.Error("Expected validation error, got nil")
			}
		})
	}
}

func TestToSelectionConfig(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	sel := cfg.ToSelectionConfig()
	if sel.HardFallback.Provider != cfg.Selection.HardFallbackProvider {
		t.Errorf("Hard fallback provider mismatch: %s", sel.HardFallback.Provider)
	}
	if len(sel.Hierarchy) != len(cfg.Selection.Hierarchy) {
		t.Errorf("Hierarchy length mismatch: %d", len(sel.Hierarchy))
	}
}

func TestEnabledProviders(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	enabled := cfg.EnabledProviders()
	found := map[string]bool{}
	for _, name := range enabled {
		found[name] = true
	}
	if !found["llamacpp"] || !found["transformers"] {
		t.Errorf("Expected local providers enabled without keys, got %v", enabled)
	}
}

func TestSaveToFile(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	cfg.Server.Port = "7171"
	cfg.Selection.HardFallbackModel = "distilgpt2"
	cfg.Logging.Level = "warn"

	path := filepath.Join(t.TempDir(), "saved.yaml")
	if err := cfg.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile failed: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig on saved file failed: %v", err)
	}

	if loaded.Server.Port != "7171" {
		t.Errorf("Expected saved port '7171', got %s", loaded.Server.Port)
	}
	if loaded.Selection.HardFallbackModel != "distilgpt2" {
		t.Errorf("Expected saved hard fallback model 'distilgpt2', got %s", loaded.Selection.HardFallbackModel)
	}
	if loaded.Logging.Level != "warn" {
		t.Errorf("Expected saved log level 'warn', got %s", loaded.Logging.Level)
	}
	if loaded.Selection.CheckTimeout != cfg.Selection.CheckTimeout {
		t.Errorf("Check timeout did not round-trip: %v", loaded.Selection.CheckTimeout)
	}
	if len(loaded.Providers) != len(cfg.Providers) {
		t.Errorf("Providers did not round-trip: %v", loaded.Providers)
	}
}
