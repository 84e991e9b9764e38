// Package syncer drains the offline queue against the live backend with
// single-flight passes and per-record failure isolation.
package syncer

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"forgesync/internal/backend"
	"forgesync/internal/logging"
	"forgesync/internal/offline"
	"forgesync/internal/submit"
)

// Store is the queue surface the synchronizer drains.
type Store interface {
	List(ctx context.Context) ([]*offline.Record, error)
	Remove(ctx context.Context, id string) (bool, error)
	Materialize(record *offline.Record) ([]offline.Payload, offline.Payload, error)
}

// Submitter replays one record against the backend. *submit.Facade satisfies
// this via SubmitDirect.
type Submitter interface {
	SubmitDirect(ctx context.Context, req submit.Request) (*submit.Result, error)
}

// NotifyFunc receives the synced count after a fire-and-forget pass that
// moved at least one record.
type NotifyFunc func(synced int)

// Synchronizer runs drain passes. At most one pass is in flight; a request
// arriving during a pass is a no-op, since the next trigger will pick up
// whatever remains.
type Synchronizer struct {
	store    Store
	facade   Submitter
	notify   NotifyFunc
	logger   *slog.Logger
	inFlight atomic.Bool
}

// New builds a synchronizer. notify may be nil.
func New(store Store, facade Submitter, notify NotifyFunc, logger *slog.Logger) *Synchronizer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Synchronizer{
		store:  store,
		facade: facade,
		notify: notify,
		logger: logger.With(logging.String(logging.FieldComponent, "syncer")),
	}
}

// Running reports whether a pass is currently in flight.
func (s *Synchronizer) Running() bool {
	return s.inFlight.Load()
}

// Trigger starts a pass in the background. Used by the auto-recovery path;
// callers that need the count use Sync.
func (s *Synchronizer) Trigger() {
	go func() {
		synced, err := s.Sync(context.Background())
		if err != nil {
			s.logger.Error("sync pass failed", logging.Error(err))
			return
		}
		if synced > 0 && s.notify != nil {
			s.notify(synced)
		}
	}()
}

// Sync runs one drain pass and returns the number of records synchronized.
// A pass already in flight makes this call a no-op returning zero. Records
// enqueued during the pass may be missed and wait for the next trigger.
func (s *Synchronizer) Sync(ctx context.Context) (int, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.logger.Debug("sync already in flight; skipping")
		return 0, nil
	}
	defer s.inFlight.Store(false)

	records, err := s.store.List(ctx)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	s.logger.Info("starting sync pass", logging.Int("queued", len(records)))

	synced := 0
	for _, record := range records {
		if ctx.Err() != nil {
			return synced, ctx.Err()
		}
		if s.syncRecord(ctx, record) {
			synced++
		}
	}

	s.logger.Info("sync pass finished",
		logging.Int("synced", synced),
		logging.Int("remaining", len(records)-synced))
	return synced, nil
}

// syncRecord replays one record. Every failure is isolated: the record stays
// queued for the next pass (or, for corrupt records, operator inspection) and
// the rest of the batch proceeds.
func (s *Synchronizer) syncRecord(ctx context.Context, record *offline.Record) bool {
	targets, carrier, err := s.store.Materialize(record)
	if err != nil {
		if errors.Is(err, offline.ErrCorruptRecord) {
			s.logger.Error("corrupt record left in queue for inspection",
				logging.String(logging.FieldRecordID, record.ID),
				logging.Error(err))
			return false
		}
		s.logger.Error("materialize failed",
			logging.String(logging.FieldRecordID, record.ID),
			logging.Error(err))
		return false
	}

	options, err := backend.ParseOptions(record.Options)
	if err != nil {
		s.logger.Error("stored options unreadable; record left in queue",
			logging.String(logging.FieldRecordID, record.ID),
			logging.Error(err))
		return false
	}

	req := submit.Request{
		Targets: make([]backend.File, len(targets)),
		Carrier: backend.File{Name: carrier.Name, MIME: carrier.MIME, Data: carrier.Data},
		Options: options,
	}
	for i, target := range targets {
		req.Targets[i] = backend.File{Name: target.Name, MIME: target.MIME, Data: target.Data}
	}

	result, err := s.facade.SubmitDirect(ctx, req)
	if err != nil {
		s.logger.Warn("record submission failed; will retry on next pass",
			logging.String(logging.FieldRecordID, record.ID),
			logging.Error(err))
		return false
	}

	if _, err := s.store.Remove(ctx, record.ID); err != nil {
		s.logger.Error("record submitted but removal failed",
			logging.String(logging.FieldRecordID, record.ID),
			logging.String(logging.FieldJobID, result.JobID),
			logging.Error(err))
		return false
	}

	s.logger.Info("record synchronized",
		logging.String(logging.FieldRecordID, record.ID),
		logging.String(logging.FieldJobID, result.JobID))
	return true
}
