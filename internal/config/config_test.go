package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestResolveModel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", LatestAnthropicModel},
		{"anthropic", LatestAnthropicModel},
		{"claude", LatestAnthropicModel},
		{"Claude", LatestAnthropicModel},
		{"google", LatestGeminiModel},
		{"gemini", LatestGeminiModel},
		{"claude-opus-4-1", "claude-opus-4-1"},
		{"gemini-2.5-pro", "gemini-2.5-pro"},
	}

	for _, tt := range tests {
		if got := ResolveModel(tt.in); got != tt.want {
			t.Errorf("ResolveModel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestProviderFor(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"claude-sonnet-4-5", "anthropic"},
		{"gemini-3-flash-preview", "google"},
		{"anthropic", "anthropic"},
		{"llama-99", ""},
	}

	for _, tt := range tests {
		if got := ProviderFor(tt.in); got != tt.want {
			t.Errorf("ProviderFor(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAPIKeyFor(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "g-test")

	key, err := APIKeyFor("claude")
	if err != nil || key != "sk-test" {
		t.Errorf("anthropic key = %q, %v", key, err)
	}

	// Falls back to GOOGLE_API_KEY when GEMINI_API_KEY is unset
	key, err = APIKeyFor("gemini")
	if err != nil || key != "g-test" {
		t.Errorf("google key = %q, %v", key, err)
	}

	if _, err := APIKeyFor("llama-99"); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestAPIKeyForMissing(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	if _, err := APIKeyFor("claude"); err == nil {
		t.Error("expected error when key is unset")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg := DefaultConfig()
	cfg.Model = "gemini"
	cfg.Theme = "dark minimal"
	cfg.MaxRepairAttempts = 5

	if err := Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got, cfg) {
		t.Errorf("round trip = %+v, want %+v", got, cfg)
	}
}

func TestSaveLoadPreservesLoggingBlock(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg := DefaultConfig()
	cfg.Logging = LoggingConfig{
		DebugMode:  true,
		Categories: map[string]bool{"store": false, "api": true},
		Level:      "debug",
	}

	if err := Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got.Logging, cfg.Logging) {
		t.Errorf("logging block = %+v, want %+v", got.Logging, cfg.Logging)
	}

	// The on-disk keys are what the logging package parses at startup.
	data, err := os.ReadFile(filepath.Join(".widgetsmith", "config.json"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	for _, key := range []string{`"logging"`, `"debug_mode"`, `"categories"`, `"level"`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("config.json missing %s:\n%s", key, data)
		}
	}
}

func TestLoadDefaultsWhenAbsent(t *testing.T) {
	t.Chdir(t.TempDir())

	got, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got, DefaultConfig()) {
		t.Errorf("got %+v, want defaults", got)
	}
}
