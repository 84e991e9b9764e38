package events

import (
	"math/rand"
	"testing"
	"time"
)

func TestDelayForAttemptIsNonDecreasingAndCapped(t *testing.T) {
	policy := reconnectPolicy{
		maxAttempts:   5,
		baseDelay:     time.Second,
		maxDelay:      5 * time.Second,
		randomization: 0.5,
	}

	previous := time.Duration(0)
	for attempt := 1; attempt <= 10; attempt++ {
		delay := policy.delayForAttempt(attempt)
		if delay < previous {
			t.Errorf("attempt %d delay %v below previous %v", attempt, delay, previous)
		}
		if delay > policy.maxDelay {
			t.Errorf("attempt %d delay %v exceeds ceiling %v", attempt, delay, policy.maxDelay)
		}
		previous = delay
	}

	if got := policy.delayForAttempt(1); got != time.Second {
		t.Errorf("attempt 1 delay = %v, want 1s", got)
	}
	if got := policy.delayForAttempt(3); got != 4*time.Second {
		t.Errorf("attempt 3 delay = %v, want 4s", got)
	}
	if got := policy.delayForAttempt(4); got != 5*time.Second {
		t.Errorf("attempt 4 delay = %v, want ceiling", got)
	}
}

func TestJitteredDelayStaysWithinBounds(t *testing.T) {
	policy := reconnectPolicy{
		baseDelay:     time.Second,
		maxDelay:      5 * time.Second,
		randomization: 0.5,
	}
	rnd := rand.New(rand.NewSource(42))

	for attempt := 1; attempt <= 8; attempt++ {
		base := policy.delayForAttempt(attempt)
		for range 50 {
			delay := policy.jitteredDelay(attempt, rnd)
			if delay < base {
				t.Fatalf("attempt %d jittered delay %v below base %v", attempt, delay, base)
			}
			if delay > policy.maxDelay {
				t.Fatalf("attempt %d jittered delay %v exceeds ceiling", attempt, delay)
			}
		}
	}
}

func TestJitteredSequenceIsNonDecreasing(t *testing.T) {
	policy := reconnectPolicy{
		baseDelay:     time.Second,
		maxDelay:      5 * time.Second,
		randomization: 0.5,
	}
	rnd := rand.New(rand.NewSource(7))

	// With doubling steps and a factor at most 1, the worst jittered delay
	// for attempt N stays at or below the best for attempt N+1.
	for trial := 0; trial < 25; trial++ {
		previous := time.Duration(0)
		for attempt := 1; attempt <= 6; attempt++ {
			delay := policy.jitteredDelay(attempt, rnd)
			if delay < previous {
				t.Fatalf("trial %d: attempt %d delay %v below previous %v", trial, attempt, delay, previous)
			}
			previous = delay
		}
	}
}
