package events

import (
	"math/rand"
	"time"
)

// reconnectPolicy bounds the dial retry loop.
type reconnectPolicy struct {
	maxAttempts   int
	baseDelay     time.Duration
	maxDelay      time.Duration
	randomization float64
}

// delayForAttempt returns the deterministic exponential delay for a 1-based
// attempt number, capped at the ceiling.
func (p reconnectPolicy) delayForAttempt(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := p.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= p.maxDelay {
			return p.maxDelay
		}
	}
	if delay > p.maxDelay {
		return p.maxDelay
	}
	return delay
}

// jitteredDelay adds non-negative jitter so concurrent clients spread out.
// Jitter never pushes the delay past the ceiling, and with a randomization
// factor at or below 1 the jittered sequence stays non-decreasing because
// each deterministic step doubles.
func (p reconnectPolicy) jitteredDelay(attempt int, rnd *rand.Rand) time.Duration {
	delay := p.delayForAttempt(attempt)
	if p.randomization <= 0 || rnd == nil {
		return delay
	}
	jitter := time.Duration(rnd.Float64() * p.randomization * float64(delay))
	if delay+jitter > p.maxDelay {
		return p.maxDelay
	}
	return delay + jitter
}
