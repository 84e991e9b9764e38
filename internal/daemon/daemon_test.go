package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"forgesync/internal/backend"
	"forgesync/internal/connectivity"
	"forgesync/internal/logging"
	"forgesync/internal/submit"
	"forgesync/internal/testsupport"
)

// fakeBackend serves the liveness and encapsulation endpoints so the real
// client, monitor, and syncer can run against it.
type fakeBackend struct {
	mu      sync.Mutex
	submits int
}

func (b *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":"healthy","service":"forge"}`)
	})
	mux.HandleFunc("/api/encapsulate", func(w http.ResponseWriter, _ *http.Request) {
		b.mu.Lock()
		b.submits++
		n := b.submits
		b.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"jobId":"job-%d","status":"queued"}`, n)
	})
	return mux
}

func (b *fakeBackend) submitCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.submits
}

type ntfyCapture struct {
	mu       sync.Mutex
	messages []string
}

func (n *ntfyCapture) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		n.mu.Lock()
		n.messages = append(n.messages, string(body))
		n.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
}

func (n *ntfyCapture) contains(want string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, message := range n.messages {
		if strings.Contains(message, want) {
			return true
		}
	}
	return false
}

func newTestDaemon(t *testing.T, backendURL, ntfyURL string) *Daemon {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	cfg.Backend.BaseURL = backendURL
	cfg.Notifications.NtfyTopic = ntfyURL
	cfg.LinkMonitor.Enabled = false

	d, err := New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		if err := d.Close(); err != nil {
			t.Errorf("close daemon: %v", err)
		}
	})
	return d
}

func submitRequest(t *testing.T, name string) submit.Request {
	t.Helper()
	options, err := backend.ParseOptions(json.RawMessage(`{"passphrase":"hunter2"}`))
	if err != nil {
		t.Fatalf("parse options: %v", err)
	}
	return submit.Request{
		Targets: []backend.File{{Name: name, MIME: "text/plain", Data: []byte("payload for " + name)}},
		Carrier: backend.File{Name: "carrier.png", MIME: "image/png", Data: []byte{0x89, 0x50, 0x4e, 0x47}},
		Options: options,
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		if cond() {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// Losing the backend queues submissions, and the recovery signal drains the
// whole queue and confirms the synced count, without any manual sync call.
func TestRecoveryDrainsQueueEndToEnd(t *testing.T) {
	fake := &fakeBackend{}
	backendSrv := httptest.NewServer(fake.handler())
	t.Cleanup(backendSrv.Close)

	ntfy := &ntfyCapture{}
	ntfySrv := httptest.NewServer(ntfy.handler())
	t.Cleanup(ntfySrv.Close)

	d := newTestDaemon(t, backendSrv.URL, ntfySrv.URL)
	ctx := context.Background()

	d.monitor.MarkUnreachable()
	state := d.modes.State()
	if state.Mode != connectivity.ModeOffline || !state.AutoOffline {
		t.Fatalf("state after losing backend = %+v, want automatic offline", state)
	}

	for _, name := range []string{"first.txt", "second.txt"} {
		result, err := d.Submit(ctx, submitRequest(t, name))
		if err != nil {
			t.Fatalf("submit %s: %v", name, err)
		}
		if !result.Queued {
			t.Fatalf("submission %s should have been queued", name)
		}
	}
	if count, err := d.store.Count(ctx); err != nil || count != 2 {
		t.Fatalf("queue count = %d (err %v), want 2", count, err)
	}
	if fake.submitCount() != 0 {
		t.Fatalf("backend received %d submissions while offline", fake.submitCount())
	}

	d.monitor.ProbeNow()

	waitFor(t, "queue to drain", func() bool {
		count, err := d.store.Count(ctx)
		return err == nil && count == 0
	})
	waitFor(t, "mode to recover", func() bool {
		state := d.modes.State()
		return state.Mode == connectivity.ModeOnline && !state.AutoOffline
	})
	waitFor(t, "synced confirmation", func() bool {
		return ntfy.contains("2 jobs synced")
	})

	if fake.submitCount() != 2 {
		t.Fatalf("backend received %d submissions, want 2", fake.submitCount())
	}
}

// A user-selected offline mode survives recovery; only the automatic
// transition is reverted and only that reversion triggers a sync.
func TestRecoveryLeavesUserOfflineAlone(t *testing.T) {
	fake := &fakeBackend{}
	backendSrv := httptest.NewServer(fake.handler())
	t.Cleanup(backendSrv.Close)

	ntfy := &ntfyCapture{}
	ntfySrv := httptest.NewServer(ntfy.handler())
	t.Cleanup(ntfySrv.Close)

	d := newTestDaemon(t, backendSrv.URL, ntfySrv.URL)
	ctx := context.Background()

	if _, err := d.SetMode("offline"); err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	if _, err := d.Submit(ctx, submitRequest(t, "held.txt")); err != nil {
		t.Fatalf("submit: %v", err)
	}

	d.monitor.ProbeNow()
	waitFor(t, "probe to settle", d.monitor.Reachable)
	time.Sleep(50 * time.Millisecond)

	state := d.modes.State()
	if state.Mode != connectivity.ModeOffline {
		t.Fatalf("mode = %q, user offline must be sticky", state.Mode)
	}
	if count, err := d.store.Count(ctx); err != nil || count != 1 {
		t.Fatalf("queue count = %d (err %v), want 1 retained record", count, err)
	}
	if fake.submitCount() != 0 {
		t.Fatalf("backend received %d submissions, want 0", fake.submitCount())
	}
}
