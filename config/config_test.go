package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "relic.yml", `
version: "1"
daemon:
  root: /repo
  debounce_ms: 25
  ignore:
    - "**/dist"
cache:
  url: https://cache.example.com
  team_id: team_1
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Version != "1" {
		t.Errorf("Expected version '1', got '%s'", cfg.Version)
	}
	if cfg.Daemon.Root != "/repo" {
		t.Errorf("Expected root '/repo', got '%s'", cfg.Daemon.Root)
	}
	if cfg.Daemon.DebounceMs != 25 {
		t.Errorf("Expected debounce 25, got %d", cfg.Daemon.DebounceMs)
	}
	if len(cfg.Daemon.Ignore) != 1 || cfg.Daemon.Ignore[0] != "**/dist" {
		t.Errorf("Unexpected ignore list: %v", cfg.Daemon.Ignore)
	}
	if cfg.Cache.URL != "https://cache.example.com" {
		t.Errorf("Unexpected cache url: %s", cfg.Cache.URL)
	}
	if cfg.Path() != path {
		t.Errorf("Expected path %s, got %s", path, cfg.Path())
	}
}

func TestLoadTOML(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "relic.toml", `
version = "1"

[daemon]
root = "/repo"
debounce_ms = 50
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Daemon.DebounceMs != 50 {
		t.Errorf("Expected debounce 50, got %d", cfg.Daemon.DebounceMs)
	}
}

func TestEnvVarExpansion(t *testing.T) {
	t.Setenv("RELIC_TEST_TOKEN", "secret-token")

	dir := t.TempDir()
	path := writeConfig(t, dir, "relic.yml", `
version: "1"
cache:
  token: ${RELIC_TEST_TOKEN}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Cache.Token != "secret-token" {
		t.Errorf("Expected expanded token, got '%s'", cfg.Cache.Token)
	}
}

func TestFindConfigFileWalksUp(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "relic.yml", `version: "1"`)

	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatalf("Failed to create nested dir: %v", err)
	}

	found, err := FindConfigFile(nested)
	if err != nil {
		t.Fatalf("Failed to find config: %v", err)
	}
	if found != filepath.Join(root, "relic.yml") {
		t.Errorf("Unexpected config path: %s", found)
	}
}

func TestFindConfigFileMissing(t *testing.T) {
	_, err := FindConfigFile(t.TempDir())
	if err == nil {
		t.Fatal("Expected error for missing config")
	}
}

func TestOverrideTakesPrecedence(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "relic.yml", `
version: "1"
daemon:
  debounce_ms: 10
cache:
  url: https://cache.example.com
`)
	writeConfig(t, dir, "relic.override.yml", `
daemon:
  debounce_ms: 99
`)

	cfg, err := LoadFrom(dir)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Daemon.DebounceMs != 99 {
		t.Errorf("Expected override debounce 99, got %d", cfg.Daemon.DebounceMs)
	}
	if cfg.Cache.URL != "https://cache.example.com" {
		t.Errorf("Base value should survive override, got '%s'", cfg.Cache.URL)
	}
}

func TestApplyDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "relic.yml", `version: "1"`)

	cfg, err := LoadFrom(dir)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Daemon.Root != dir {
		t.Errorf("Expected root to default to config dir %s, got %s", dir, cfg.Daemon.Root)
	}
	if cfg.Daemon.DebounceMs != 10 {
		t.Errorf("Expected default debounce 10, got %d", cfg.Daemon.DebounceMs)
	}
	if cfg.Daemon.Socket == "" {
		t.Error("Expected socket default to be set")
	}
}

// TestExtensions verifies that custom extensions in relic.yml are properly loaded
func TestExtensions(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "relic.yml", `
version: "1"

# Extension fields owned by the logging subsystem
logging:
  level: debug
  file:
    enabled: true

# Extension fields from another hypothetical tool
monitoring:
  enabled: true
  interval: 30
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Extensions == nil {
		t.Fatal("Extensions map should not be nil")
	}
	if _, ok := cfg.Extensions["logging"]; !ok {
		t.Fatal("Expected 'logging' extension to be present")
	}

	type MonitoringConfig struct {
		Enabled  bool `yaml:"enabled"`
		Interval int  `yaml:"interval"`
	}

	var monCfg MonitoringConfig
	if err := cfg.UnmarshalExtension("monitoring", &monCfg); err != nil {
		t.Fatalf("Failed to unmarshal monitoring extension: %v", err)
	}
	if !monCfg.Enabled {
		t.Error("Expected monitoring to be enabled")
	}
	if monCfg.Interval != 30 {
		t.Errorf("Expected interval 30, got %d", monCfg.Interval)
	}
}

func TestUnmarshalExtensionMissingKey(t *testing.T) {
	cfg := &Config{}

	var target struct {
		Level string `yaml:"level"`
	}
	if err := cfg.UnmarshalExtension("absent", &target); err != nil {
		t.Fatalf("Missing extension should not error: %v", err)
	}
	if target.Level != "" {
		t.Errorf("Target should stay zero-valued, got '%s'", target.Level)
	}
}
