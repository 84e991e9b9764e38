// Package daemon wires the connectivity engine together and enforces
// single-instance execution.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"forgesync/internal/backend"
	"forgesync/internal/config"
	"forgesync/internal/connectivity"
	"forgesync/internal/events"
	"forgesync/internal/health"
	"forgesync/internal/logging"
	"forgesync/internal/notifications"
	"forgesync/internal/offline"
	"forgesync/internal/submit"
	"forgesync/internal/syncer"
)

// Daemon owns the long-running services: the offline queue, the event
// channel, the health monitor, the mode controller, and the synchronizer.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *offline.Store
	client   *backend.Client
	channel  *events.Channel
	monitor  *health.Monitor
	modes    *connectivity.Controller
	facade   *submit.Facade
	sync     *syncer.Synchronizer
	notifier notifications.Service
	links    *linkMonitor
	logPath  string

	storageDetail string

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running          bool
	PID              int
	Mode             connectivity.State
	Reachable        bool
	Channel          events.Snapshot
	QueueCount       int
	QueueDBPath      string
	LockFilePath     string
	StorageAvailable bool
	StorageDetail    string
	LinkMonitor      bool
}

// New constructs a daemon with initialized dependencies. A failed queue open
// degrades to direct-submission-only operation instead of failing startup.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		client:   backend.New(cfg, logger),
		logPath:  filepath.Join(cfg.Paths.LogDir, "forgesync.log"),
		lockPath: cfg.LockFilePath(),
		lock:     flock.New(cfg.LockFilePath()),
	}

	store, err := offline.Open(cfg)
	if err != nil {
		if !errors.Is(err, offline.ErrStorageUnavailable) {
			return nil, fmt.Errorf("open offline queue: %w", err)
		}
		d.storageDetail = err.Error()
		logger.Warn("offline queue unavailable; direct submission only",
			logging.String(logging.FieldComponent, "daemon"),
			logging.Error(err),
			logging.String(logging.FieldImpact, "jobs cannot be queued while offline"))
	} else {
		d.store = store
	}

	token, err := events.ResolveToken(cfg, "")
	if err != nil {
		return nil, fmt.Errorf("resolve socket token: %w", err)
	}
	channel, err := events.New(cfg, token, nil, logger)
	if err != nil {
		return nil, fmt.Errorf("build event channel: %w", err)
	}
	d.channel = channel

	d.monitor = health.New(cfg, d.client, logger)
	d.modes = connectivity.New(logger)
	d.notifier = notifications.NewService(cfg)

	var queue submit.Queue
	if d.store != nil {
		queue = d.store
	}
	d.facade = submit.New(d.client, queue, d.channel, d.modes, cfg.Submit.RequirePassphrase, logger)

	if d.store != nil {
		d.sync = syncer.New(d.store, d.facade, d.notifySynced, logger)
	}

	d.monitor.OnChange(func(reachable bool) {
		d.modes.HandleReachability(reachable)
	})
	d.modes.OnSyncNeeded(func() {
		if d.sync != nil {
			d.sync.Trigger()
		}
	})
	d.modes.OnChange(d.notifyModeChange)

	if cfg.LinkMonitor.Enabled {
		d.links = newLinkMonitor(cfg, logger, d.monitor)
	}

	return d, nil
}

// Start acquires the daemon lock and launches the background services.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another forgesync daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	d.channel.Start()
	d.monitor.Start()
	if d.links != nil {
		if err := d.links.Start(runCtx); err != nil {
			d.logger.Warn("link monitor failed to start",
				logging.String(logging.FieldComponent, "daemon"),
				logging.Error(err))
		}
	}

	d.running.Store(true)
	d.logger.Info("forgesync daemon started",
		logging.String(logging.FieldComponent, "daemon"),
		logging.String("lock", d.lockPath))
	return nil
}

// Stop halts background services and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.links != nil {
		d.links.Stop()
	}
	d.monitor.Stop()
	_ = d.channel.Close()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock",
			logging.String(logging.FieldComponent, "daemon"),
			logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("forgesync daemon stopped", logging.String(logging.FieldComponent, "daemon"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:          d.running.Load(),
		PID:              os.Getpid(),
		Mode:             d.modes.State(),
		Reachable:        d.monitor.Reachable(),
		Channel:          d.channel.Snapshot(),
		QueueDBPath:      d.cfg.QueueDBPath(),
		LockFilePath:     d.lockPath,
		StorageAvailable: d.store != nil,
		StorageDetail:    d.storageDetail,
		LinkMonitor:      d.links.Running(),
	}
	if d.store != nil {
		if count, err := d.store.Count(ctx); err == nil {
			status.QueueCount = count
		}
	}
	return status
}

// SetMode applies a user mode toggle.
func (d *Daemon) SetMode(mode string) (connectivity.State, error) {
	switch connectivity.Mode(mode) {
	case connectivity.ModeOnline:
		return d.modes.SetMode(connectivity.ModeOnline), nil
	case connectivity.ModeOffline:
		return d.modes.SetMode(connectivity.ModeOffline), nil
	default:
		return d.modes.State(), fmt.Errorf("unknown mode %q", mode)
	}
}

// Submit routes one submission through the façade.
func (d *Daemon) Submit(ctx context.Context, req submit.Request) (*submit.Result, error) {
	result, err := d.facade.Submit(ctx, req)
	if err != nil {
		return nil, err
	}
	if result.Queued {
		go func() {
			notifyCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := d.notifier.NotifyJobQueued(notifyCtx, result.JobID); err != nil {
				d.logger.Warn("job queued notification failed",
					logging.String(logging.FieldComponent, "daemon"),
					logging.Error(err))
			}
		}()
	}
	return result, nil
}

// ListQueue returns all queued records.
func (d *Daemon) ListQueue(ctx context.Context) ([]*offline.Record, error) {
	if d.store == nil {
		return nil, offline.ErrStorageUnavailable
	}
	return d.store.List(ctx)
}

// RemoveQueued deletes one queued record by id.
func (d *Daemon) RemoveQueued(ctx context.Context, id string) (bool, error) {
	if d.store == nil {
		return false, offline.ErrStorageUnavailable
	}
	return d.store.Remove(ctx, id)
}

// ClearQueue removes all queued records.
func (d *Daemon) ClearQueue(ctx context.Context) (int, error) {
	if d.store == nil {
		return 0, offline.ErrStorageUnavailable
	}
	return d.store.Clear(ctx)
}

// SyncNow runs a blocking sync pass and returns the synced count.
func (d *Daemon) SyncNow(ctx context.Context) (int, error) {
	if d.sync == nil {
		return 0, offline.ErrStorageUnavailable
	}
	return d.sync.Sync(ctx)
}

// Jobs lists recent backend jobs.
func (d *Daemon) Jobs(ctx context.Context, limit int, status string) ([]backend.Job, error) {
	return d.client.Jobs(ctx, limit, status)
}

// Job polls one backend job by id.
func (d *Daemon) Job(ctx context.Context, id string) (*backend.Job, error) {
	return d.client.Job(ctx, id)
}

// DatabaseHealth returns queue database diagnostics.
func (d *Daemon) DatabaseHealth(ctx context.Context) (offline.DatabaseHealth, error) {
	if d.store == nil {
		return offline.DatabaseHealth{DBPath: d.cfg.QueueDBPath(), Error: d.storageDetail}, offline.ErrStorageUnavailable
	}
	return d.store.CheckHealth(ctx)
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

func (d *Daemon) notifySynced(synced int) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := d.notifier.NotifyQueueSynced(ctx, synced); err != nil {
		d.logger.Warn("queue synced notification failed",
			logging.String(logging.FieldComponent, "daemon"),
			logging.Error(err))
	}
}

func (d *Daemon) notifyModeChange(state connectivity.State) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		var err error
		if state.Mode == connectivity.ModeOffline {
			err = d.notifier.NotifyOffline(ctx, state.AutoOffline)
		} else {
			err = d.notifier.NotifyOnline(ctx)
		}
		if err != nil {
			d.logger.Warn("mode change notification failed",
				logging.String(logging.FieldComponent, "daemon"),
				logging.String(logging.FieldMode, string(state.Mode)),
				logging.Error(err))
		}
	}()
}
