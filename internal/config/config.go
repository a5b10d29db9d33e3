// Package config holds user preferences for widgetsmith.
// Config lives in a project-local .widgetsmith directory, falling back to
// ~/.widgetsmith. API keys are resolved from the environment, never persisted.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Latest pinned model IDs per provider. Shortcut names ("anthropic",
// "google") resolve to these.
const (
	LatestAnthropicModel = "claude-sonnet-4-5"
	LatestGeminiModel    = "gemini-3-flash-preview"
)

// Config holds user preferences
type Config struct {
	Model             string        `json:"model"`               // model ID or provider shortcut
	Theme             string        `json:"theme"`               // default theme description for widgets
	MaxRepairAttempts int           `json:"max_repair_attempts"` // repair budget per generation
	SampleRows        int           `json:"sample_rows"`         // dataset rows included in prompts
	Logging           LoggingConfig `json:"logging"`             // debug logging under .widgetsmith/logs/
}

// LoggingConfig controls the category-based debug logging. The logging
// package reads this block from config.json directly at startup.
type LoggingConfig struct {
	DebugMode  bool            `json:"debug_mode"`           // master switch; off means no log files at all
	Categories map[string]bool `json:"categories,omitempty"` // per-category overrides, all on when absent
	Level      string          `json:"level,omitempty"`      // debug, info, warn, error (default info)
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Model:             "anthropic",
		MaxRepairAttempts: 3,
		SampleRows:        3,
	}
}

// ConfigDir returns the directory where config is stored
func ConfigDir() (string, error) {
	// Prefer project-local .widgetsmith directory if present or creatable
	if cwd, err := os.Getwd(); err == nil {
		localDir := filepath.Join(cwd, ".widgetsmith")
		if stat, err := os.Stat(localDir); (err == nil && stat.IsDir()) || os.IsNotExist(err) {
			return localDir, nil
		}
	}

	// Fallback to home-level config
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".widgetsmith"), nil
}

// ConfigFile returns the full path to the config file
func ConfigFile() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the configuration from disk
func Load() (Config, error) {
	path, err := ConfigFile()
	if err != nil {
		return DefaultConfig(), err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return DefaultConfig(), err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), err
	}

	return cfg, nil
}

// Save writes the configuration to disk
func Save(cfg Config) error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	path, err := ConfigFile()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// ResolveModel expands provider shortcuts to pinned model IDs.
// Full model IDs pass through unchanged.
func ResolveModel(model string) string {
	switch strings.ToLower(strings.TrimSpace(model)) {
	case "", "anthropic", "claude":
		return LatestAnthropicModel
	case "google", "gemini":
		return LatestGeminiModel
	default:
		return model
	}
}

// ProviderFor returns the provider name for a model ID.
func ProviderFor(model string) string {
	m := strings.ToLower(ResolveModel(model))
	switch {
	case strings.HasPrefix(m, "claude"):
		return "anthropic"
	case strings.HasPrefix(m, "gemini"):
		return "google"
	default:
		return ""
	}
}

// APIKeyFor resolves the API key for a model from the environment.
func APIKeyFor(model string) (string, error) {
	switch ProviderFor(model) {
	case "anthropic":
		if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
			return key, nil
		}
		return "", fmt.Errorf("ANTHROPIC_API_KEY not set (required for model %q)", model)
	case "google":
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			return key, nil
		}
		if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
			return key, nil
		}
		return "", fmt.Errorf("GEMINI_API_KEY or GOOGLE_API_KEY not set (required for model %q)", model)
	default:
		return "", fmt.Errorf("unknown provider for model %q (expected a claude-* or gemini-* model)", model)
	}
}
