package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvConfigFile, EnvProvider, EnvModel, EnvTemperature, EnvMaxCalls, EnvWindow} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadBuiltInDefaults(t *testing.T) {
	clearEnv(t)
	d, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if d.Provider != "openai" {
		t.Errorf("Provider = %q, want openai", d.Provider)
	}
	if d.Temperature != 0 {
		t.Errorf("Temperature = %v, want 0", d.Temperature)
	}
	if d.RateLimit.MaxCalls != 0 {
		t.Errorf("MaxCalls = %d, want 0", d.RateLimit.MaxCalls)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "llmparse.yaml")
	content := `provider: anthropic
model: claude-sonnet-4-5
temperature: 0.2
rate_limit:
  max_calls: 10
  window: 1m
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(EnvConfigFile, path)

	d, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if d.Provider != "anthropic" || d.Model != "claude-sonnet-4-5" {
		t.Errorf("got provider=%q model=%q", d.Provider, d.Model)
	}
	if d.Temperature != 0.2 {
		t.Errorf("Temperature = %v, want 0.2", d.Temperature)
	}
	if d.RateLimit.MaxCalls != 10 || d.RateLimit.Window != time.Minute {
		t.Errorf("rate limit = %+v", d.RateLimit)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "llmparse.yaml")
	if err := os.WriteFile(path, []byte("provider: anthropic\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(EnvConfigFile, path)
	t.Setenv(EnvProvider, "OpenAI")
	t.Setenv(EnvTemperature, "0.7")
	t.Setenv(EnvMaxCalls, "3")
	t.Setenv(EnvWindow, "30s")

	d, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if d.Provider != "openai" {
		t.Errorf("Provider = %q, want openai", d.Provider)
	}
	if d.Temperature != 0.7 {
		t.Errorf("Temperature = %v, want 0.7", d.Temperature)
	}
	if d.RateLimit.MaxCalls != 3 || d.RateLimit.Window != 30*time.Second {
		t.Errorf("rate limit = %+v", d.RateLimit)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvTemperature, "warm")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for bad temperature")
	}

	clearEnv(t)
	t.Setenv(EnvConfigFile, filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
