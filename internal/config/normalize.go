package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeBackend()
	c.normalizeSocket()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Socket.TokenFile) != "" {
		if c.Socket.TokenFile, err = expandPath(c.Socket.TokenFile); err != nil {
			return fmt.Errorf("socket.token_file: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeBackend() {
	c.Backend.BaseURL = strings.TrimRight(strings.TrimSpace(c.Backend.BaseURL), "/")
	if c.Backend.BaseURL == "" {
		c.Backend.BaseURL = defaultBackendBaseURL
	}
	if c.Backend.RequestTimeout <= 0 {
		c.Backend.RequestTimeout = defaultRequestTimeout
	}
	if c.Backend.HealthInterval <= 0 {
		c.Backend.HealthInterval = defaultHealthInterval
	}
	if c.Backend.HealthTimeout <= 0 {
		c.Backend.HealthTimeout = defaultHealthTimeout
	}
}

func (c *Config) normalizeSocket() {
	c.Socket.Token = strings.TrimSpace(c.Socket.Token)
	if c.Socket.MaxReconnectAttempts <= 0 {
		c.Socket.MaxReconnectAttempts = defaultMaxReconnects
	}
	if c.Socket.ReconnectDelay <= 0 {
		c.Socket.ReconnectDelay = defaultReconnectDelay
	}
	if c.Socket.ReconnectDelayMax < c.Socket.ReconnectDelay {
		c.Socket.ReconnectDelayMax = defaultReconnectDelayMax
		if c.Socket.ReconnectDelayMax < c.Socket.ReconnectDelay {
			c.Socket.ReconnectDelayMax = c.Socket.ReconnectDelay
		}
	}
	if c.Socket.RandomizationFactor < 0 || c.Socket.RandomizationFactor >= 1 {
		c.Socket.RandomizationFactor = defaultRandomizationFactor
	}
	if c.Socket.HandshakeTimeout <= 0 {
		c.Socket.HandshakeTimeout = defaultHandshakeTimeout
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
