package notifications

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"forgesync/internal/config"
)

type captured struct {
	title    string
	tags     string
	priority string
	body     string
}

func newCapturingService(t *testing.T, enableAll bool) (Service, *[]captured) {
	t.Helper()

	var requests []captured
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		requests = append(requests, captured{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		})
	}))
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Mode = enableAll
	cfg.Notifications.Sync = enableAll
	cfg.Notifications.Jobs = enableAll
	cfg.Notifications.Errors = enableAll
	return NewService(&cfg), &requests
}

func TestNoopWhenTopicUnset(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	service := NewService(&cfg)

	if _, ok := service.(noopService); !ok {
		t.Fatalf("expected noop service, got %T", service)
	}
	if err := service.NotifyOnline(context.Background()); err != nil {
		t.Errorf("noop returned error: %v", err)
	}
}

func TestQueueSyncedMessageCarriesCount(t *testing.T) {
	service, requests := newCapturingService(t, true)

	if err := service.NotifyQueueSynced(context.Background(), 2); err != nil {
		t.Fatalf("notify: %v", err)
	}

	if len(*requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(*requests))
	}
	got := (*requests)[0]
	if got.body != "2 jobs synced" {
		t.Errorf("body = %q", got.body)
	}
	if got.title != "ForgeSync - Queue Synced" {
		t.Errorf("title = %q", got.title)
	}
}

func TestDisabledCategoriesSendNothing(t *testing.T) {
	service, requests := newCapturingService(t, false)
	ctx := context.Background()

	_ = service.NotifyOffline(ctx, true)
	_ = service.NotifyOnline(ctx)
	_ = service.NotifyQueueSynced(ctx, 1)
	_ = service.NotifyJobQueued(ctx, "queued-1")
	_ = service.NotifyError(ctx, errors.New("boom"), "sync")

	if len(*requests) != 0 {
		t.Errorf("disabled categories sent %d requests", len(*requests))
	}
}

func TestErrorNotificationIsHighPriority(t *testing.T) {
	service, requests := newCapturingService(t, true)

	if err := service.NotifyError(context.Background(), errors.New("connection refused"), "queue sync"); err != nil {
		t.Fatalf("notify: %v", err)
	}

	got := (*requests)[0]
	if got.priority != "high" {
		t.Errorf("priority = %q, want high", got.priority)
	}
	if got.body != "Error with queue sync: connection refused" {
		t.Errorf("body = %q", got.body)
	}
}
