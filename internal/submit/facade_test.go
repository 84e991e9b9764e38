package submit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"forgesync/internal/backend"
	"forgesync/internal/connectivity"
	"forgesync/internal/events"
	"forgesync/internal/offline"
)

type fakeSubmitter struct {
	calls   int
	lastOpt json.RawMessage
	err     error
}

func (s *fakeSubmitter) Encapsulate(_ context.Context, _ []backend.File, _ backend.File, options json.RawMessage) (*backend.SubmitResult, error) {
	s.calls++
	s.lastOpt = options
	if s.err != nil {
		return nil, s.err
	}
	return &backend.SubmitResult{JobID: "job-abc", Status: "queued"}, nil
}

type fakeQueue struct {
	calls int
	err   error
}

func (q *fakeQueue) Enqueue(_ context.Context, targets []offline.Payload, carrier offline.Payload, options json.RawMessage) (*offline.Record, error) {
	q.calls++
	if q.err != nil {
		return nil, q.err
	}
	carrierCopy := carrier
	return &offline.Record{ID: "queued-rec", Targets: targets, Carrier: &carrierCopy, Options: options}, nil
}

type fakeSubscriber struct {
	jobIDs []string
}

func (s *fakeSubscriber) SubscribeToJob(jobID string, _ events.UpdateFunc) func() {
	s.jobIDs = append(s.jobIDs, jobID)
	return func() {}
}

type staticModes struct {
	state connectivity.State
}

func (m *staticModes) State() connectivity.State { return m.state }

func validRequest() Request {
	return Request{
		Targets: []backend.File{{Name: "doc.pdf", Data: []byte("doc")}},
		Carrier: backend.File{Name: "cover.png", Data: []byte{0x89}},
		Options: backend.Options{Encryption: "none"},
	}
}

func TestOnlineSubmissionGoesDirectAndSubscribes(t *testing.T) {
	submitter := &fakeSubmitter{}
	queue := &fakeQueue{}
	subscriber := &fakeSubscriber{}
	facade := New(submitter, queue, subscriber, &staticModes{state: connectivity.State{Mode: connectivity.ModeOnline}}, false, nil)

	result, err := facade.Submit(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Queued {
		t.Error("online submission flagged as queued")
	}
	if result.JobID != "job-abc" {
		t.Errorf("job id = %q", result.JobID)
	}
	if queue.calls != 0 {
		t.Error("queue touched during online submission")
	}
	if len(subscriber.jobIDs) != 1 || subscriber.jobIDs[0] != "job-abc" {
		t.Errorf("subscriptions = %v", subscriber.jobIDs)
	}
}

func TestOfflineSubmissionEnqueues(t *testing.T) {
	submitter := &fakeSubmitter{}
	queue := &fakeQueue{}
	subscriber := &fakeSubscriber{}
	facade := New(submitter, queue, subscriber, &staticModes{state: connectivity.State{Mode: connectivity.ModeOffline, AutoOffline: true}}, false, nil)

	result, err := facade.Submit(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !result.Queued {
		t.Error("offline submission not flagged as queued")
	}
	if !strings.HasPrefix(result.JobID, "queued-") {
		t.Errorf("queued id %q missing prefix", result.JobID)
	}
	if submitter.calls != 0 {
		t.Error("backend touched during offline submission")
	}
	if len(subscriber.jobIDs) != 0 {
		t.Error("subscription registered for queued record")
	}
}

func TestValidationRejectsBeforeAnyIO(t *testing.T) {
	submitter := &fakeSubmitter{}
	queue := &fakeQueue{}
	facade := New(submitter, queue, nil, &staticModes{state: connectivity.State{Mode: connectivity.ModeOnline}}, false, nil)

	cases := []struct {
		name string
		req  Request
	}{
		{
			name: "no targets",
			req: Request{
				Carrier: backend.File{Name: "c.png", Data: []byte{1}},
				Options: backend.Options{Encryption: "none"},
			},
		},
		{
			name: "empty target",
			req: Request{
				Targets: []backend.File{{Name: "empty.bin"}},
				Carrier: backend.File{Name: "c.png", Data: []byte{1}},
				Options: backend.Options{Encryption: "none"},
			},
		},
		{
			name: "no carrier",
			req: Request{
				Targets: []backend.File{{Name: "doc.pdf", Data: []byte{1}}},
				Options: backend.Options{Encryption: "none"},
			},
		},
		{
			name: "encryption without passphrase",
			req: Request{
				Targets: []backend.File{{Name: "doc.pdf", Data: []byte{1}}},
				Carrier: backend.File{Name: "c.png", Data: []byte{1}},
				Options: backend.Options{Encryption: "aes-256-gcm"},
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := facade.Submit(context.Background(), tc.req)
			var validationErr *ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
		})
	}
	if submitter.calls != 0 || queue.calls != 0 {
		t.Error("validation failures reached I/O")
	}
}

func TestPassphraseAcceptedWhenEncryptionRequested(t *testing.T) {
	submitter := &fakeSubmitter{}
	facade := New(submitter, nil, nil, &staticModes{state: connectivity.State{Mode: connectivity.ModeOnline}}, false, nil)

	req := validRequest()
	req.Options = backend.Options{Encryption: "aes-256-gcm", Passphrase: "hunter2"}
	if _, err := facade.Submit(context.Background(), req); err != nil {
		t.Fatalf("submit: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(submitter.lastOpt, &decoded); err != nil {
		t.Fatalf("decode forwarded options: %v", err)
	}
	if decoded["passphrase"] != "hunter2" {
		t.Errorf("passphrase not forwarded: %v", decoded)
	}
}

func TestStorageUnavailablePropagates(t *testing.T) {
	queue := &fakeQueue{err: offline.ErrStorageUnavailable}
	facade := New(&fakeSubmitter{}, queue, nil, &staticModes{state: connectivity.State{Mode: connectivity.ModeOffline}}, false, nil)

	_, err := facade.Submit(context.Background(), validRequest())
	if !errors.Is(err, offline.ErrStorageUnavailable) {
		t.Fatalf("err = %v, want ErrStorageUnavailable", err)
	}
}

func TestSubmitDirectBypassesOfflineMode(t *testing.T) {
	submitter := &fakeSubmitter{}
	subscriber := &fakeSubscriber{}
	facade := New(submitter, &fakeQueue{}, subscriber, &staticModes{state: connectivity.State{Mode: connectivity.ModeOffline}}, false, nil)

	result, err := facade.SubmitDirect(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("submit direct: %v", err)
	}
	if result.Queued {
		t.Error("direct submission flagged as queued")
	}
	if submitter.calls != 1 {
		t.Errorf("backend calls = %d, want 1", submitter.calls)
	}
	if len(subscriber.jobIDs) != 0 {
		t.Error("direct replay registered a subscription")
	}
}
