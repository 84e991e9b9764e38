package connectivity

import (
	"testing"
	"time"
)

func TestInitialStateIsOnline(t *testing.T) {
	controller := New(nil)
	state := controller.State()
	if state.Mode != ModeOnline || state.AutoOffline {
		t.Fatalf("initial state = %+v, want online/false", state)
	}
}

func TestReachabilityLossForcesOfflineAndRecovers(t *testing.T) {
	controller := New(nil)

	state := controller.HandleReachability(false)
	if state.Mode != ModeOffline || !state.AutoOffline {
		t.Fatalf("after loss: %+v, want offline/autoOffline", state)
	}

	state = controller.HandleReachability(true)
	if state.Mode != ModeOnline || state.AutoOffline {
		t.Fatalf("after recovery: %+v, want online/false", state)
	}
}

func TestUserOfflineIsNotAutoReverted(t *testing.T) {
	controller := New(nil)

	state := controller.SetMode(ModeOffline)
	if state.Mode != ModeOffline || state.AutoOffline {
		t.Fatalf("after user toggle: %+v, want offline/false", state)
	}

	state = controller.HandleReachability(true)
	if state.Mode != ModeOffline {
		t.Fatalf("reachability reverted a user-chosen offline mode: %+v", state)
	}
	if state.AutoOffline {
		t.Fatalf("autoOffline set unexpectedly: %+v", state)
	}
}

func TestUserToggleClearsAutoOffline(t *testing.T) {
	controller := New(nil)

	controller.HandleReachability(false)
	state := controller.SetMode(ModeOnline)
	if state.Mode != ModeOnline || state.AutoOffline {
		t.Fatalf("after manual online: %+v, want online/false", state)
	}

	// A later reachability-true signal has nothing to revert.
	state = controller.HandleReachability(true)
	if state.Mode != ModeOnline || state.AutoOffline {
		t.Fatalf("steady state disturbed: %+v", state)
	}
}

func TestAutoRecoveryFiresSyncTrigger(t *testing.T) {
	controller := New(nil)

	triggered := make(chan struct{}, 1)
	controller.OnSyncNeeded(func() { triggered <- struct{}{} })

	controller.HandleReachability(false)
	controller.HandleReachability(true)

	select {
	case <-triggered:
	case <-time.After(2 * time.Second):
		t.Fatal("sync trigger did not fire on auto-recovery")
	}

	// A user toggle back online must not fire the trigger.
	controller.SetMode(ModeOffline)
	controller.SetMode(ModeOnline)
	select {
	case <-triggered:
		t.Fatal("sync trigger fired on manual toggle")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestChangeCallbackFiresOnlyOnTransitions(t *testing.T) {
	controller := New(nil)

	var calls int
	controller.OnChange(func(State) { calls++ })

	controller.HandleReachability(true)  // online already; no-op
	controller.HandleReachability(false) // online -> offline(auto)
	controller.HandleReachability(false) // already offline; no-op
	controller.HandleReachability(true)  // offline(auto) -> online

	if calls != 2 {
		t.Errorf("change callback fired %d times, want 2", calls)
	}
}
