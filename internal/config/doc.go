// Package config loads and validates forgesync configuration.
//
// Configuration comes from a TOML file (default
// ~/.config/forgesync/config.toml) with environment variable overrides
// applied on top for deployment-sensitive values such as the backend URL
// and the socket auth token.
package config
