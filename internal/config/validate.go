package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateBackend(); err != nil {
		return err
	}
	if err := c.validateSocket(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateBackend() error {
	parsed, err := url.Parse(c.Backend.BaseURL)
	if err != nil {
		return fmt.Errorf("backend.base_url is not a valid URL: %w", err)
	}
	switch parsed.Scheme {
	case "http", "https":
	default:
		return fmt.Errorf("backend.base_url must use http or https, got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return errors.New("backend.base_url must include a host")
	}
	if c.Backend.HealthTimeout >= c.Backend.HealthInterval*10 {
		return errors.New("backend.health_timeout is implausibly large relative to backend.health_interval")
	}
	return nil
}

func (c *Config) validateSocket() error {
	if c.Socket.MaxReconnectAttempts > 100 {
		return errors.New("socket.max_reconnect_attempts must be 100 or fewer")
	}
	if c.Socket.ReconnectDelay > c.Socket.ReconnectDelayMax {
		return errors.New("socket.reconnect_delay must not exceed socket.reconnect_delay_max")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}
