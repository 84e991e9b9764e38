package config

const (
	defaultDataDir             = "~/.local/share/forgesync"
	defaultLogDir              = "~/.local/share/forgesync/logs"
	defaultBackendBaseURL      = "http://127.0.0.1:5000"
	defaultRequestTimeout      = 120
	defaultHealthInterval      = 5
	defaultHealthTimeout       = 3
	defaultMaxReconnects       = 5
	defaultReconnectDelay      = 1.0
	defaultReconnectDelayMax   = 5.0
	defaultRandomizationFactor = 0.5
	defaultHandshakeTimeout    = 10
	defaultNotifyTimeout       = 10
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Backend: Backend{
			BaseURL:        defaultBackendBaseURL,
			RequestTimeout: defaultRequestTimeout,
			HealthInterval: defaultHealthInterval,
			HealthTimeout:  defaultHealthTimeout,
		},
		Socket: Socket{
			MaxReconnectAttempts: defaultMaxReconnects,
			ReconnectDelay:       defaultReconnectDelay,
			ReconnectDelayMax:    defaultReconnectDelayMax,
			RandomizationFactor:  defaultRandomizationFactor,
			HandshakeTimeout:     defaultHandshakeTimeout,
		},
		Submit: Submit{
			RequirePassphrase: false,
		},
		LinkMonitor: LinkMonitor{
			Enabled: true,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Mode:           true,
			Sync:           true,
			Jobs:           true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
