package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration for daemon state.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Backend contains connection settings for the Forge pipeline backend.
type Backend struct {
	BaseURL        string `toml:"base_url"`
	RequestTimeout int    `toml:"request_timeout"`
	HealthInterval int    `toml:"health_interval"`
	HealthTimeout  int    `toml:"health_timeout"`
}

// Socket contains settings for the real-time event channel.
type Socket struct {
	Token                string  `toml:"token"`
	TokenFile            string  `toml:"token_file"`
	MaxReconnectAttempts int     `toml:"max_reconnect_attempts"`
	ReconnectDelay       float64 `toml:"reconnect_delay"`
	ReconnectDelayMax    float64 `toml:"reconnect_delay_max"`
	RandomizationFactor  float64 `toml:"randomization_factor"`
	HandshakeTimeout     int     `toml:"handshake_timeout"`
}

// Submit contains validation rules applied before job submission.
type Submit struct {
	RequirePassphrase bool `toml:"require_passphrase"`
}

// LinkMonitor contains settings for kernel network-link event monitoring.
type LinkMonitor struct {
	Enabled   bool   `toml:"enabled"`
	Interface string `toml:"interface"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Mode           bool   `toml:"mode"`
	Sync           bool   `toml:"sync"`
	Jobs           bool   `toml:"jobs"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for forgesync.
//
// Configuration sections by subsystem:
//   - Paths: queue database, token file, and log locations
//   - Backend: HTTP base URL plus health probe cadence and timeout
//   - Socket: event channel auth token and reconnect policy
//   - Submit: validation applied before enqueue or direct submission
//   - LinkMonitor: kernel net-subsystem uevent monitoring
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Backend       Backend       `toml:"backend"`
	Socket        Socket        `toml:"socket"`
	Submit        Submit        `toml:"submit"`
	LinkMonitor   LinkMonitor   `toml:"link_monitor"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// envOverrides maps deployment environment variables onto config fields.
// These always win over file values so containerized installs can run
// without a config file at all.
type envOverrides struct {
	BackendURL     string `env:"FORGE_BACKEND_URL"`
	SocketToken    string `env:"FORGE_SOCKET_TOKEN"`
	NtfyTopic      string `env:"FORGE_NTFY_TOPIC"`
	HealthInterval int    `env:"FORGE_HEALTH_INTERVAL" envDefault:"0"`
	HealthTimeout  int    `env:"FORGE_HEALTH_TIMEOUT" envDefault:"0"`
	LogLevel       string `env:"FORGE_LOG_LEVEL"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/forgesync/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and environment overrides applied.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func (c *Config) applyEnvOverrides() error {
	var overrides envOverrides
	if err := env.Parse(&overrides); err != nil {
		return fmt.Errorf("parse environment overrides: %w", err)
	}
	if v := strings.TrimSpace(overrides.BackendURL); v != "" {
		c.Backend.BaseURL = v
	}
	if v := strings.TrimSpace(overrides.SocketToken); v != "" {
		c.Socket.Token = v
	}
	if v := strings.TrimSpace(overrides.NtfyTopic); v != "" {
		c.Notifications.NtfyTopic = v
	}
	if overrides.HealthInterval > 0 {
		c.Backend.HealthInterval = overrides.HealthInterval
	}
	if overrides.HealthTimeout > 0 {
		c.Backend.HealthTimeout = overrides.HealthTimeout
	}
	if v := strings.TrimSpace(overrides.LogLevel); v != "" {
		c.Logging.Level = v
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("forgesync.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// QueueDBPath returns the path of the offline queue database.
func (c *Config) QueueDBPath() string {
	return filepath.Join(c.Paths.DataDir, "queue.db")
}

// TokenFilePath returns the path of the persisted socket token file.
func (c *Config) TokenFilePath() string {
	if strings.TrimSpace(c.Socket.TokenFile) != "" {
		return c.Socket.TokenFile
	}
	return filepath.Join(c.Paths.DataDir, "socket_token")
}

// SocketPath returns the IPC socket path used by the CLI to reach the daemon.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.DataDir, "forgesyncd.sock")
}

// LockFilePath returns the daemon single-instance lock file path.
func (c *Config) LockFilePath() string {
	return filepath.Join(c.Paths.DataDir, "forgesyncd.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
