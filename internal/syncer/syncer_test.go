package syncer_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"forgesync/internal/offline"
	"forgesync/internal/submit"
	"forgesync/internal/syncer"
	"forgesync/internal/testsupport"
)

type scriptedFacade struct {
	mu      sync.Mutex
	failOn  map[string]bool
	block   chan struct{}
	submits []string
}

func (f *scriptedFacade) SubmitDirect(ctx context.Context, req submit.Request) (*submit.Result, error) {
	f.mu.Lock()
	block := f.block
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	name := req.Targets[0].Name
	f.mu.Lock()
	f.submits = append(f.submits, name)
	fail := f.failOn[name]
	f.mu.Unlock()

	if fail {
		return nil, errors.New("simulated network error")
	}
	return &submit.Result{JobID: "job-" + name}, nil
}

func enqueueNamed(t *testing.T, store *offline.Store, name string) *offline.Record {
	t.Helper()
	record, err := store.Enqueue(
		context.Background(),
		[]offline.Payload{testsupport.TargetPayload(t, name, []byte(name))},
		testsupport.CarrierPayload(t, "cover.png", []byte{0x89, 0x50}),
		nil,
	)
	if err != nil {
		t.Fatalf("enqueue %s: %v", name, err)
	}
	return record
}

func TestFailedRecordIsIsolatedAndRetained(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	enqueueNamed(t, store, "first")
	failing := enqueueNamed(t, store, "second")
	enqueueNamed(t, store, "third")

	facade := &scriptedFacade{failOn: map[string]bool{"second": true}}
	s := syncer.New(store, facade, nil, nil)

	synced, err := s.Sync(ctx)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if synced != 2 {
		t.Errorf("synced = %d, want 2", synced)
	}
	if len(facade.submits) != 3 {
		t.Errorf("submission attempts = %d, want 3", len(facade.submits))
	}

	remaining, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != failing.ID {
		t.Fatalf("queue should retain only the failed record, got %d records", len(remaining))
	}
}

func TestSuccessfulPassDrainsQueue(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	enqueueNamed(t, store, "a")
	enqueueNamed(t, store, "b")

	facade := &scriptedFacade{}
	s := syncer.New(store, facade, nil, nil)

	synced, err := s.Sync(ctx)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if synced != 2 {
		t.Errorf("synced = %d, want 2", synced)
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Errorf("queue count = %d, want 0", count)
	}
}

func TestSyncIsSingleFlight(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	enqueueNamed(t, store, "blocked")

	facade := &scriptedFacade{block: make(chan struct{})}
	s := syncer.New(store, facade, nil, nil)

	firstDone := make(chan int, 1)
	go func() {
		synced, _ := s.Sync(ctx)
		firstDone <- synced
	}()

	deadline := time.After(2 * time.Second)
	for !s.Running() {
		select {
		case <-deadline:
			t.Fatal("first pass never started")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	// The overlapping request is a no-op.
	synced, err := s.Sync(ctx)
	if err != nil {
		t.Fatalf("overlapping sync: %v", err)
	}
	if synced != 0 {
		t.Errorf("overlapping sync returned %d, want 0", synced)
	}

	close(facade.block)
	select {
	case synced := <-firstDone:
		if synced != 1 {
			t.Errorf("first pass synced = %d, want 1", synced)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first pass never finished")
	}
}

func TestTriggerNotifiesWithSyncedCount(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	enqueueNamed(t, store, "x")
	enqueueNamed(t, store, "y")

	notified := make(chan int, 1)
	s := syncer.New(store, &scriptedFacade{}, func(synced int) { notified <- synced }, nil)

	s.Trigger()

	select {
	case synced := <-notified:
		if synced != 2 {
			t.Errorf("notified synced = %d, want 2", synced)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("trigger never notified")
	}
}

func TestCorruptRecordLeftForInspection(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	enqueueNamed(t, store, "good")

	facade := &scriptedFacade{}
	s := syncer.New(&corruptingStore{Store: store, corruptName: "good"}, facade, nil, nil)

	synced, err := s.Sync(ctx)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if synced != 0 {
		t.Errorf("synced = %d, want 0", synced)
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("corrupt record was removed; count = %d, want 1", count)
	}
}

// corruptingStore simulates a record whose carrier bytes were lost.
type corruptingStore struct {
	*offline.Store
	corruptName string
}

func (s *corruptingStore) Materialize(record *offline.Record) ([]offline.Payload, offline.Payload, error) {
	if len(record.Targets) > 0 && record.Targets[0].Name == s.corruptName {
		stripped := *record
		stripped.Carrier = nil
		return s.Store.Materialize(&stripped)
	}
	return s.Store.Materialize(record)
}
