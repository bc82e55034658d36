// Package config resolves library defaults from a YAML file and the
// environment. Precedence, lowest to highest: built-in defaults, the file
// named by LLMPARSE_CONFIG, then LLMPARSE_* environment variables. A .env
// file in the working directory is loaded first without overriding the
// existing environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	EnvConfigFile  = "LLMPARSE_CONFIG"
	EnvProvider    = "LLMPARSE_PROVIDER"
	EnvModel       = "LLMPARSE_MODEL"
	EnvTemperature = "LLMPARSE_TEMPERATURE"
	EnvMaxCalls    = "LLMPARSE_MAX_CALLS"
	EnvWindow      = "LLMPARSE_WINDOW"
)

// RateLimit caps invocations per sliding window. Zero MaxCalls means
// unlimited.
type RateLimit struct {
	MaxCalls int           `yaml:"max_calls"`
	Window   time.Duration `yaml:"window"`
}

// Defaults are the settings applied when a factory call does not override
// them.
type Defaults struct {
	Provider    string    `yaml:"provider"`
	Model       string    `yaml:"model"`
	Temperature float64   `yaml:"temperature"`
	UsageLog    string    `yaml:"usage_log"`
	RateLimit   RateLimit `yaml:"rate_limit"`
}

// Load resolves defaults. A missing config file named by LLMPARSE_CONFIG is
// an error; an absent .env file is not.
func Load() (Defaults, error) {
	_ = godotenv.Load()

	d := Defaults{
		Provider:    "openai",
		Temperature: 0,
	}

	if path := os.Getenv(EnvConfigFile); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Defaults{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &d); err != nil {
			return Defaults{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if v := os.Getenv(EnvProvider); v != "" {
		d.Provider = strings.ToLower(v)
	}
	if v := os.Getenv(EnvModel); v != "" {
		d.Model = v
	}
	if v := os.Getenv(EnvTemperature); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Defaults{}, fmt.Errorf("parse %s: %w", EnvTemperature, err)
		}
		d.Temperature = f
	}
	if v := os.Getenv(EnvMaxCalls); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Defaults{}, fmt.Errorf("parse %s: %w", EnvMaxCalls, err)
		}
		d.RateLimit.MaxCalls = n
	}
	if v := os.Getenv(EnvWindow); v != "" {
		w, err := time.ParseDuration(v)
		if err != nil {
			return Defaults{}, fmt.Errorf("parse %s: %w", EnvWindow, err)
		}
		d.RateLimit.Window = w
	}

	return d, nil
}

// ConfigureLogging sets the global slog logger based on LOG_LEVEL.
func ConfigureLogging() {
	logLevel := slog.LevelInfo
	if levelStr := os.Getenv("LOG_LEVEL"); levelStr != "" {
		switch strings.ToLower(levelStr) {
		case "debug":
			logLevel = slog.LevelDebug
		case "info":
			logLevel = slog.LevelInfo
		case "warn":
			logLevel = slog.LevelWarn
		case "error":
			logLevel = slog.LevelError
		}
	}

	opts := &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: false,
	}

	jsonHandler := slog.NewJSONHandler(os.Stdout, opts)
	logger := slog.New(jsonHandler)
	slog.SetDefault(logger)
}
