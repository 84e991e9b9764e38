package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"forgesync/internal/config"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaultsForMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.toml")
	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if exists {
		t.Fatal("expected missing config file")
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if cfg.Backend.BaseURL != "http://127.0.0.1:5000" {
		t.Fatalf("unexpected default base URL: %q", cfg.Backend.BaseURL)
	}
	if cfg.Backend.HealthInterval != 5 || cfg.Backend.HealthTimeout != 3 {
		t.Fatalf("unexpected health defaults: %d/%d", cfg.Backend.HealthInterval, cfg.Backend.HealthTimeout)
	}
	if cfg.Socket.MaxReconnectAttempts != 5 {
		t.Fatalf("unexpected reconnect attempts: %d", cfg.Socket.MaxReconnectAttempts)
	}
}

func TestLoadParsesFileValues(t *testing.T) {
	path := writeConfig(t, `
[backend]
base_url = "https://forge.example.com/"
health_interval = 11

[socket]
token = "abc123"
max_reconnect_attempts = 9

[logging]
level = "debug"
`)
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if cfg.Backend.BaseURL != "https://forge.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Backend.BaseURL)
	}
	if cfg.Backend.HealthInterval != 11 {
		t.Fatalf("unexpected health interval: %d", cfg.Backend.HealthInterval)
	}
	if cfg.Socket.Token != "abc123" {
		t.Fatalf("unexpected token: %q", cfg.Socket.Token)
	}
	if cfg.Socket.MaxReconnectAttempts != 9 {
		t.Fatalf("unexpected reconnect attempts: %d", cfg.Socket.MaxReconnectAttempts)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected log level: %q", cfg.Logging.Level)
	}
}

func TestEnvironmentOverridesWinOverFile(t *testing.T) {
	path := writeConfig(t, `
[backend]
base_url = "http://file-value:5000"

[socket]
token = "file-token"
`)
	t.Setenv("FORGE_BACKEND_URL", "http://env-value:5000")
	t.Setenv("FORGE_SOCKET_TOKEN", "env-token")

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Backend.BaseURL != "http://env-value:5000" {
		t.Fatalf("expected env override, got %q", cfg.Backend.BaseURL)
	}
	if cfg.Socket.Token != "env-token" {
		t.Fatalf("expected env token, got %q", cfg.Socket.Token)
	}
}

func TestLoadRejectsInvalidBaseURL(t *testing.T) {
	path := writeConfig(t, `
[backend]
base_url = "ftp://forge.example.com"
`)
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected error for non-http base URL")
	}
}

func TestLoadRejectsInvalidLogLevel(t *testing.T) {
	path := writeConfig(t, `
[logging]
level = "verbose"
`)
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected error for unsupported log level")
	}
}

func TestNormalizeClampsSocketPolicy(t *testing.T) {
	path := writeConfig(t, `
[socket]
reconnect_delay = 2.0
reconnect_delay_max = 1.0
randomization_factor = 1.5
`)
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Socket.ReconnectDelayMax < cfg.Socket.ReconnectDelay {
		t.Fatalf("expected delay ceiling >= floor, got %f < %f", cfg.Socket.ReconnectDelayMax, cfg.Socket.ReconnectDelay)
	}
	if cfg.Socket.RandomizationFactor < 0 || cfg.Socket.RandomizationFactor >= 1 {
		t.Fatalf("expected randomization factor in [0,1), got %f", cfg.Socket.RandomizationFactor)
	}
}

func TestCreateSampleWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[backend]") {
		t.Fatal("expected sample to contain backend section")
	}
}

func TestPathHelpers(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.DataDir = t.TempDir()
	if got := cfg.QueueDBPath(); filepath.Dir(got) != cfg.Paths.DataDir {
		t.Fatalf("queue db path outside data dir: %q", got)
	}
	if got := cfg.TokenFilePath(); filepath.Dir(got) != cfg.Paths.DataDir {
		t.Fatalf("token file path outside data dir: %q", got)
	}
}
