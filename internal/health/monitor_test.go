package health

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"forgesync/internal/backend"
	"forgesync/internal/config"
)

type fakeProber struct {
	mu      sync.Mutex
	err     error
	block   chan struct{}
	probes  int
	blockMu sync.Mutex
}

func (p *fakeProber) Health(ctx context.Context) (*backend.HealthStatus, error) {
	p.blockMu.Lock()
	block := p.block
	p.blockMu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.probes++
	if p.err != nil {
		return nil, p.err
	}
	return &backend.HealthStatus{Status: "online"}, nil
}

func (p *fakeProber) setErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func newTestMonitor(t *testing.T, prober Prober, intervalSeconds int) *Monitor {
	t.Helper()
	cfg := config.Default()
	cfg.Backend.HealthInterval = intervalSeconds
	cfg.Backend.HealthTimeout = 1
	monitor := New(&cfg, prober, nil)
	t.Cleanup(monitor.Stop)
	return monitor
}

func waitForReachability(t *testing.T, changes <-chan bool, want bool) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case got := <-changes:
			if got == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for reachable=%v", want)
		}
	}
}

func TestStartProbesImmediately(t *testing.T) {
	prober := &fakeProber{}
	monitor := newTestMonitor(t, prober, 60)

	changes := make(chan bool, 8)
	monitor.OnChange(func(reachable bool) { changes <- reachable })

	monitor.Start()
	waitForReachability(t, changes, true)

	if !monitor.Reachable() {
		t.Error("expected reachable after successful probe")
	}
}

func TestProbeFailureFlipsReachability(t *testing.T) {
	prober := &fakeProber{}
	monitor := newTestMonitor(t, prober, 60)

	changes := make(chan bool, 8)
	monitor.OnChange(func(reachable bool) { changes <- reachable })

	monitor.Start()
	waitForReachability(t, changes, true)

	prober.setErr(errors.New("connection refused"))
	monitor.ProbeNow()
	waitForReachability(t, changes, false)

	if monitor.Reachable() {
		t.Error("expected unreachable after failed probe")
	}
}

func TestMarkUnreachableShortCircuits(t *testing.T) {
	prober := &fakeProber{}
	monitor := newTestMonitor(t, prober, 60)

	changes := make(chan bool, 8)
	monitor.OnChange(func(reachable bool) { changes <- reachable })

	monitor.Start()
	waitForReachability(t, changes, true)

	monitor.MarkUnreachable()
	waitForReachability(t, changes, false)
}

func TestStaleProbeResultIsDiscarded(t *testing.T) {
	monitor := newTestMonitor(t, &fakeProber{}, 60)

	// A slow probe that started before a fresher verdict settles must not
	// overwrite it.
	slowSeq := monitor.seq.Add(1)
	monitor.MarkUnreachable()
	monitor.apply(slowSeq, true)

	if monitor.Reachable() {
		t.Error("stale probe result overwrote fresher verdict")
	}
}

func TestChangeCallbackFiresOnlyOnTransitions(t *testing.T) {
	monitor := newTestMonitor(t, &fakeProber{}, 60)

	var calls int
	monitor.OnChange(func(bool) { calls++ })

	monitor.apply(monitor.seq.Add(1), true)
	monitor.apply(monitor.seq.Add(1), true)
	monitor.apply(monitor.seq.Add(1), false)
	monitor.apply(monitor.seq.Add(1), false)

	if calls != 2 {
		t.Errorf("change callback fired %d times, want 2", calls)
	}
}

func TestProbeTimeoutCountsAsUnreachable(t *testing.T) {
	prober := &fakeProber{}
	prober.blockMu.Lock()
	prober.block = make(chan struct{})
	prober.blockMu.Unlock()

	monitor := newTestMonitor(t, prober, 60)

	changes := make(chan bool, 8)
	monitor.OnChange(func(reachable bool) { changes <- reachable })

	monitor.Start()
	waitForReachability(t, changes, false)
}
