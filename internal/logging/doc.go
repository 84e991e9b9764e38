// Package logging assembles the structured slog loggers used across
// forgesync components.
//
// It owns the configurable console/JSON handlers, centralizes level and
// output plumbing, and exposes attr helpers plus standardized field keys so
// the daemon, event channel, and synchronizer emit log lines with the same
// shape. A no-op logger is provided for tests and wiring code that cannot
// fail.
package logging
