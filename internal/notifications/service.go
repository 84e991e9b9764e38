// Package notifications pushes connectivity and sync events to ntfy.
package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"forgesync/internal/config"
)

const userAgent = "forgesync/0.1.0"

// Service defines the notification surface exposed to the daemon.
type Service interface {
	NotifyOffline(ctx context.Context, auto bool) error
	NotifyOnline(ctx context.Context) error
	NotifyQueueSynced(ctx context.Context, synced int) error
	NotifyJobQueued(ctx context.Context, recordID string) error
	NotifyJobCompleted(ctx context.Context, jobID string) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:   topic,
		client:     &http.Client{Timeout: timeout},
		modeEvents: cfg.Notifications.Mode,
		syncEvents: cfg.Notifications.Sync,
		jobEvents:  cfg.Notifications.Jobs,
		errEvents:  cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint   string
	client     *http.Client
	modeEvents bool
	syncEvents bool
	jobEvents  bool
	errEvents  bool
}

func (n *ntfyService) NotifyOffline(ctx context.Context, auto bool) error {
	if !n.modeEvents {
		return nil
	}
	message := "Working offline; new jobs will be queued locally"
	if auto {
		message = "Backend unreachable; switched to offline mode, new jobs will be queued locally"
	}
	data := payload{
		title:   "ForgeSync - Offline",
		message: message,
		tags:    []string{"forgesync", "mode", "offline"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyOnline(ctx context.Context) error {
	if !n.modeEvents {
		return nil
	}
	data := payload{
		title:   "ForgeSync - Online",
		message: "Backend reachable; direct submission restored",
		tags:    []string{"forgesync", "mode", "online"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyQueueSynced(ctx context.Context, synced int) error {
	if !n.syncEvents {
		return nil
	}
	noun := "jobs"
	if synced == 1 {
		noun = "job"
	}
	data := payload{
		title:   "ForgeSync - Queue Synced",
		message: fmt.Sprintf("%d %s synced", synced, noun),
		tags:    []string{"forgesync", "sync", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyJobQueued(ctx context.Context, recordID string) error {
	if !n.jobEvents {
		return nil
	}
	data := payload{
		title:   "ForgeSync - Job Queued",
		message: fmt.Sprintf("Queued for later submission: %s", strings.TrimSpace(recordID)),
		tags:    []string{"forgesync", "job", "queued"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyJobCompleted(ctx context.Context, jobID string) error {
	if !n.jobEvents {
		return nil
	}
	data := payload{
		title:    "ForgeSync - Job Complete",
		message:  fmt.Sprintf("Job finished: %s", strings.TrimSpace(jobID)),
		tags:     []string{"forgesync", "job", "completed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errEvents {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "ForgeSync - Error",
		message:  builder.String(),
		tags:     []string{"forgesync", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "ForgeSync - Test",
		message:  "Notification system test",
		tags:     []string{"forgesync", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyOffline(context.Context, bool) error          { return nil }
func (noopService) NotifyOnline(context.Context) error                 { return nil }
func (noopService) NotifyQueueSynced(context.Context, int) error       { return nil }
func (noopService) NotifyJobQueued(context.Context, string) error      { return nil }
func (noopService) NotifyJobCompleted(context.Context, string) error   { return nil }
func (noopService) NotifyError(context.Context, error, string) error   { return nil }
func (noopService) TestNotification(context.Context) error             { return nil }
