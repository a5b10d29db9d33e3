package logging

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, ws, body string) {
	t.Helper()
	dir := filepath.Join(ws, ".widgetsmith")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestInitializeReadsLoggingBlock(t *testing.T) {
	ws := t.TempDir()
	writeConfig(t, ws, `{
  "model": "anthropic",
  "logging": {
    "debug_mode": true,
    "categories": {"store": false},
    "level": "debug"
  }
}`)

	if err := Initialize(ws); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(CloseAll)

	if !IsDebugMode() {
		t.Error("debug_mode not picked up from config.json")
	}
	if logLevel != LevelDebug {
		t.Errorf("logLevel = %d, want %d", logLevel, LevelDebug)
	}
	if IsCategoryEnabled(CategoryStore) {
		t.Error("store category disabled in config but reported enabled")
	}
	if !IsCategoryEnabled(CategoryAudit) {
		t.Error("unlisted categories should default to enabled")
	}

	entries, err := os.ReadDir(filepath.Join(ws, ".widgetsmith", "logs"))
	if err != nil {
		t.Fatalf("logs dir: %v", err)
	}
	if len(entries) == 0 {
		t.Error("debug mode should produce at least the boot log")
	}
}

func TestInitializeWithoutConfigIsSilent(t *testing.T) {
	ws := t.TempDir()

	if err := Initialize(ws); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(CloseAll)

	if IsDebugMode() {
		t.Error("missing config must mean production mode")
	}
	if _, err := os.Stat(filepath.Join(ws, ".widgetsmith", "logs")); !os.IsNotExist(err) {
		t.Error("logs directory created without debug_mode")
	}
}
