// Package health probes backend reachability on a fixed interval and lets
// link-state events short-circuit the wait.
package health

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"forgesync/internal/backend"
	"forgesync/internal/config"
	"forgesync/internal/logging"
)

// Prober performs one liveness check. *backend.Client satisfies this.
type Prober interface {
	Health(ctx context.Context) (*backend.HealthStatus, error)
}

// ChangeFunc observes reachability transitions.
type ChangeFunc func(reachable bool)

// Monitor periodically probes the backend. Overlapping probes are permitted;
// results carry sequence numbers so a slow stale probe can never overwrite a
// fresher verdict.
type Monitor struct {
	prober   Prober
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger

	seq atomic.Uint64

	mu          sync.Mutex
	reachable   bool
	known       bool
	lastApplied uint64
	changeCB    ChangeFunc

	runMu   sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// New builds a monitor from configuration. Defaults: 5s interval, 3s probe
// timeout.
func New(cfg *config.Config, prober Prober, logger *slog.Logger) *Monitor {
	interval := time.Duration(cfg.Backend.HealthInterval) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}
	timeout := time.Duration(cfg.Backend.HealthTimeout) * time.Second
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Monitor{
		prober:   prober,
		interval: interval,
		timeout:  timeout,
		logger:   logger.With(logging.String(logging.FieldComponent, "health")),
	}
}

// OnChange registers the reachability observer. Must be set before Start.
func (m *Monitor) OnChange(fn ChangeFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changeCB = fn
}

// Reachable reports the last settled verdict. False until the first probe
// completes.
func (m *Monitor) Reachable() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.known && m.reachable
}

// Start launches the probe loop with an immediate first probe.
func (m *Monitor) Start() {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if m.started {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	m.started = true

	go m.run(ctx)
}

// Stop halts the probe loop. In-flight probe results are discarded.
func (m *Monitor) Stop() {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if !m.started {
		return
	}
	m.cancel()
	<-m.done
	m.started = false
}

// MarkUnreachable short-circuits to unreachable without waiting for a probe,
// for reactive signals like a link-down event. It also invalidates every
// probe already in flight.
func (m *Monitor) MarkUnreachable() {
	seq := m.seq.Add(1)
	m.apply(seq, false)
}

// ProbeNow runs one out-of-cycle probe, for reactive signals like a link-up
// event. It does not reset the interval timer.
func (m *Monitor) ProbeNow() {
	go m.probe(context.Background())
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)

	m.probe(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.probe(ctx)
		}
	}
}

func (m *Monitor) probe(ctx context.Context) {
	seq := m.seq.Add(1)

	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	started := time.Now()
	_, err := m.prober.Health(probeCtx)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		m.logger.Debug("probe failed",
			logging.Duration(logging.FieldElapsed, time.Since(started)),
			logging.Error(err))
	}
	m.apply(seq, err == nil)
}

// apply settles a verdict. The reachability write is the final step of probe
// handling; anything with a lower sequence than the last applied verdict is
// stale and discarded.
func (m *Monitor) apply(seq uint64, reachable bool) {
	m.mu.Lock()
	if seq < m.lastApplied {
		m.mu.Unlock()
		return
	}
	m.lastApplied = seq
	changed := !m.known || m.reachable != reachable
	m.known = true
	m.reachable = reachable
	fn := m.changeCB
	m.mu.Unlock()

	if changed {
		m.logger.Info("reachability changed", logging.Bool("reachable", reachable))
		if fn != nil {
			fn(reachable)
		}
	}
}
