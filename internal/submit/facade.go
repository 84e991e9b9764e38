// Package submit is the single entry point for creating jobs: it validates,
// then routes to direct backend submission or the durable offline queue
// depending on the current mode.
package submit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"forgesync/internal/backend"
	"forgesync/internal/connectivity"
	"forgesync/internal/events"
	"forgesync/internal/logging"
	"forgesync/internal/offline"
)

// ValidationError is a rejected submission. It is raised before any network
// or storage I/O.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid submission: " + e.Reason
}

// Submitter is the direct backend path. *backend.Client satisfies this.
type Submitter interface {
	Encapsulate(ctx context.Context, targets []backend.File, carrier backend.File, options json.RawMessage) (*backend.SubmitResult, error)
}

// Queue is the offline path. *offline.Store satisfies this.
type Queue interface {
	Enqueue(ctx context.Context, targets []offline.Payload, carrier offline.Payload, options json.RawMessage) (*offline.Record, error)
}

// Subscriber registers job progress interest. *events.Channel satisfies this.
type Subscriber interface {
	SubscribeToJob(jobID string, fn events.UpdateFunc) func()
}

// ModeSource reports the current system mode.
type ModeSource interface {
	State() connectivity.State
}

// Request is one job submission.
type Request struct {
	Targets []backend.File
	Carrier backend.File
	Options backend.Options
}

// Result identifies the created job. Queued ids carry the queued prefix and
// do not resolve via the live job-status endpoint until synchronized.
type Result struct {
	JobID  string
	Queued bool
}

// Facade routes validated submissions.
type Facade struct {
	submitter         Submitter
	queue             Queue
	subscriber        Subscriber
	modes             ModeSource
	requirePassphrase bool
	logger            *slog.Logger
}

// New builds the façade. The queue and subscriber may be nil: a nil queue
// degrades offline submission to a StorageUnavailable error, and a nil
// subscriber skips progress subscriptions.
func New(submitter Submitter, queue Queue, subscriber Subscriber, modes ModeSource, requirePassphrase bool, logger *slog.Logger) *Facade {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Facade{
		submitter:         submitter,
		queue:             queue,
		subscriber:        subscriber,
		modes:             modes,
		requirePassphrase: requirePassphrase,
		logger:            logger.With(logging.String(logging.FieldComponent, "submit")),
	}
}

// Submit validates and routes one submission by the current mode.
func (f *Facade) Submit(ctx context.Context, req Request) (*Result, error) {
	if err := f.validate(req); err != nil {
		return nil, err
	}

	if f.modes != nil && f.modes.State().Mode == connectivity.ModeOffline {
		return f.enqueue(ctx, req)
	}
	return f.submitDirect(ctx, req, true)
}

// SubmitDirect bypasses the mode check and always talks to the backend. The
// synchronizer uses this to replay queued records; no progress subscription
// is registered for replayed jobs.
func (f *Facade) SubmitDirect(ctx context.Context, req Request) (*Result, error) {
	if err := f.validate(req); err != nil {
		return nil, err
	}
	return f.submitDirect(ctx, req, false)
}

func (f *Facade) validate(req Request) error {
	if len(req.Targets) == 0 {
		return &ValidationError{Reason: "no target files"}
	}
	for _, target := range req.Targets {
		if len(target.Data) == 0 {
			return &ValidationError{Reason: fmt.Sprintf("target %q is empty", target.Name)}
		}
	}
	if len(req.Carrier.Data) == 0 {
		return &ValidationError{Reason: "no carrier image"}
	}

	options := req.Options.Normalized()
	if f.requirePassphrase || options.RequiresPassphrase() {
		if strings.TrimSpace(options.Passphrase) == "" {
			return &ValidationError{Reason: "passphrase required for encrypted submission"}
		}
	}
	return nil
}

func (f *Facade) submitDirect(ctx context.Context, req Request, subscribe bool) (*Result, error) {
	options, err := req.Options.EncodeJSON()
	if err != nil {
		return nil, fmt.Errorf("encode options: %w", err)
	}

	result, err := f.submitter.Encapsulate(ctx, req.Targets, req.Carrier, options)
	if err != nil {
		return nil, fmt.Errorf("submit job: %w", err)
	}

	if subscribe && f.subscriber != nil {
		jobID := result.JobID
		f.subscriber.SubscribeToJob(jobID, func(update json.RawMessage) {
			f.logger.Debug("job update",
				logging.String(logging.FieldJobID, jobID),
				logging.String("update", string(update)))
		})
	}
	return &Result{JobID: result.JobID}, nil
}

func (f *Facade) enqueue(ctx context.Context, req Request) (*Result, error) {
	if f.queue == nil {
		return nil, fmt.Errorf("enqueue submission: %w", offline.ErrStorageUnavailable)
	}

	options, err := req.Options.EncodeJSON()
	if err != nil {
		return nil, fmt.Errorf("encode options: %w", err)
	}

	targets := make([]offline.Payload, len(req.Targets))
	for i, target := range req.Targets {
		targets[i] = offline.Payload{Name: target.Name, MIME: target.MIME, Size: int64(len(target.Data)), Data: target.Data}
	}
	carrier := offline.Payload{
		Name: req.Carrier.Name,
		MIME: req.Carrier.MIME,
		Size: int64(len(req.Carrier.Data)),
		Data: req.Carrier.Data,
	}

	record, err := f.queue.Enqueue(ctx, targets, carrier, options)
	if err != nil {
		return nil, fmt.Errorf("enqueue submission: %w", err)
	}

	f.logger.Info("job queued for later synchronization",
		logging.String(logging.FieldRecordID, record.ID))
	return &Result{JobID: record.ID, Queued: true}, nil
}
