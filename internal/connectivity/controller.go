// Package connectivity owns the system mode, combining backend reachability
// with explicit user intent so a deliberate offline choice never flaps.
package connectivity

import (
	"log/slog"
	"sync"

	"forgesync/internal/logging"
)

// Mode is the system's belief about whether to talk to the backend now.
type Mode string

const (
	ModeOnline  Mode = "online"
	ModeOffline Mode = "offline"
)

// State pairs the mode with the autoOffline flag. autoOffline distinguishes
// connectivity-forced offline from a user choosing offline; only the former
// auto-recovers when the backend comes back.
type State struct {
	Mode        Mode
	AutoOffline bool
}

// ChangeFunc observes mode transitions.
type ChangeFunc func(State)

// SyncTrigger is fired asynchronously on the offline-to-online auto-recovery
// path.
type SyncTrigger func()

// Controller is the single writer of the system mode.
type Controller struct {
	logger *slog.Logger

	mu       sync.Mutex
	state    State
	changeCB ChangeFunc
	sync     SyncTrigger
}

// New starts in online with autoOffline false.
func New(logger *slog.Logger) *Controller {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Controller{
		logger: logger.With(logging.String(logging.FieldComponent, "connectivity")),
		state:  State{Mode: ModeOnline},
	}
}

// OnChange registers the mode observer.
func (c *Controller) OnChange(fn ChangeFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.changeCB = fn
}

// OnSyncNeeded registers the queue drain trigger fired on auto-recovery.
func (c *Controller) OnSyncNeeded(fn SyncTrigger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sync = fn
}

// State returns the current mode pair.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetMode applies a user toggle. A manual choice always clears autoOffline:
// the user's stated intent overrides whatever automatic reasoning forced the
// previous state.
func (c *Controller) SetMode(mode Mode) State {
	c.mu.Lock()
	previous := c.state
	c.state = State{Mode: mode, AutoOffline: false}
	next := c.state
	fn := c.changeCB
	c.mu.Unlock()

	if next != previous {
		c.logger.Info("mode set by user",
			logging.String(logging.FieldMode, string(next.Mode)),
			logging.Bool("auto_offline", next.AutoOffline))
		if fn != nil {
			fn(next)
		}
	}
	return next
}

// HandleReachability applies a reachability verdict from the health monitor.
// Reachability loss while online forces offline with autoOffline set.
// Reachability return reverts only a forced offline; a user-chosen offline
// mode stays until the user toggles back.
func (c *Controller) HandleReachability(reachable bool) State {
	c.mu.Lock()
	previous := c.state
	var trigger SyncTrigger

	switch {
	case !reachable && c.state.Mode == ModeOnline:
		c.state = State{Mode: ModeOffline, AutoOffline: true}
	case reachable && c.state.AutoOffline:
		c.state = State{Mode: ModeOnline, AutoOffline: false}
		trigger = c.sync
	}

	next := c.state
	fn := c.changeCB
	c.mu.Unlock()

	if next != previous {
		c.logger.Info("mode changed by reachability",
			logging.String(logging.FieldMode, string(next.Mode)),
			logging.Bool("auto_offline", next.AutoOffline),
			logging.Bool("reachable", reachable))
		if fn != nil {
			fn(next)
		}
	}
	if trigger != nil {
		go trigger()
	}
	return next
}
