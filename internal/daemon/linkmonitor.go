package daemon

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"forgesync/internal/config"
	"forgesync/internal/health"
	"forgesync/internal/logging"
)

// linkMonitor listens for kernel net-subsystem uevents so link flaps reach
// the health monitor immediately instead of waiting for the next probe
// interval: a link-down marks the backend unreachable, a link-up fires an
// out-of-cycle probe.
type linkMonitor struct {
	logger  *slog.Logger
	monitor *health.Monitor
	iface   string

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

func newLinkMonitor(cfg *config.Config, logger *slog.Logger, monitor *health.Monitor) *linkMonitor {
	if cfg == nil || monitor == nil {
		return nil
	}
	return &linkMonitor{
		logger:  logging.NewComponentLogger(logger, "link-monitor"),
		monitor: monitor,
		iface:   strings.TrimSpace(cfg.LinkMonitor.Interface),
	}
}

// Start begins listening for kernel uevents.
func (m *linkMonitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		m.logger.Warn("failed to connect to netlink socket; reachability relies on interval probes only",
			logging.Error(err),
			logging.String(logging.FieldEventType, "netlink_connect_failed"),
			logging.String(logging.FieldErrorHint, "ensure the daemon has permission to access netlink sockets"),
			logging.String(logging.FieldImpact, "offline transitions may lag by one probe interval"),
		)
		return nil // Non-fatal - the interval probe still detects outages
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	quit := m.quit
	go m.monitorLoop(ctx, quit)

	m.logger.Info("link monitor started",
		logging.String(logging.FieldEventType, "link_monitor_started"),
		logging.String("interface", m.iface),
	)
	return nil
}

// Stop shuts down the link monitor.
func (m *linkMonitor) Stop() {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	if m.quit != nil {
		close(m.quit)
		m.quit = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.running = false

	m.logger.Info("link monitor stopped",
		logging.String(logging.FieldEventType, "link_monitor_stopped"),
	)
}

// Running reports whether the link monitor is active.
func (m *linkMonitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *linkMonitor) monitorLoop(ctx context.Context, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)

	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return
	}

	monitorQuit := conn.Monitor(queue, errs, m.buildMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			m.handleEvent(uevent)
		case err := <-errs:
			m.logger.Warn("link monitor error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "link_monitor_error"),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
				logging.String(logging.FieldImpact, "reactive reachability signals may be lost"),
			)
		}
	}
}

// buildMatcher matches interface move/add/remove events on the net subsystem.
func (m *linkMonitor) buildMatcher() netlink.Matcher {
	action := "add|remove|move|change"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "net",
		},
	})
	return rules
}

func (m *linkMonitor) handleEvent(uevent netlink.UEvent) {
	iface := uevent.Env["INTERFACE"]
	if iface == "" {
		return
	}
	if m.iface != "" && iface != m.iface {
		m.logger.Debug("ignoring event for non-configured interface",
			logging.String("interface", iface),
			logging.String("configured_interface", m.iface),
		)
		return
	}

	switch uevent.Action {
	case netlink.REMOVE:
		m.logger.Info("link down via netlink",
			logging.String(logging.FieldEventType, "link_down"),
			logging.String("interface", iface),
		)
		m.monitor.MarkUnreachable()
	case netlink.ADD, netlink.MOVE, netlink.CHANGE:
		m.logger.Info("link event via netlink; probing now",
			logging.String(logging.FieldEventType, "link_up"),
			logging.String("interface", iface),
			logging.String("action", string(uevent.Action)),
		)
		m.monitor.ProbeNow()
	}
}
