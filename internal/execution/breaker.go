package execution

import (
	"sync"
	"time"
)

// BreakerStatus is the serialisable view of the circuit breaker.
type BreakerStatus struct {
	Status    string     `json:"status"`
	Failures  int        `json:"failures"`
	OpenUntil *time.Time `json:"open_until,omitempty"`
}

// circuitBreaker gates execution after consecutive final failures.
// Once failures reach the threshold the breaker opens for the cooldown
// window; the first admission attempted after the window resets it.
// There is no half-open probing.
type circuitBreaker struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration
	failures  int
	openUntil time.Time
	now       func() time.Time
}

func newCircuitBreaker(threshold int, cooldown time.Duration, now func() time.Time) *circuitBreaker {
	if now == nil {
		now = time.Now
	}
	return &circuitBreaker{threshold: threshold, cooldown: cooldown, now: now}
}

// Admit reports whether an execution may proceed. An open breaker whose
// cooldown has elapsed is reset as a side effect of admission.
func (b *circuitBreaker) Admit() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.openUntil.IsZero() {
		return true
	}
	if b.now().Before(b.openUntil) {
		return false
	}
	b.failures = 0
	b.openUntil = time.Time{}
	return true
}

// RecordFailure counts a final execution failure and reports whether it
// tripped the breaker open.
func (b *circuitBreaker) RecordFailure() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	if b.failures >= b.threshold && b.openUntil.IsZero() {
		b.openUntil = b.now().Add(b.cooldown)
		return true
	}
	return false
}

// RecordSuccess clears the consecutive-failure counter.
func (b *circuitBreaker) RecordSuccess() {
	b.mu.Lock()
	b.failures = 0
	b.mu.Unlock()
}

// Snapshot returns the breaker's current state.
func (b *circuitBreaker) Snapshot() BreakerStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := BreakerStatus{Status: "closed", Failures: b.failures}
	if !b.openUntil.IsZero() && b.now().Before(b.openUntil) {
		s.Status = "open"
		until := b.openUntil
		s.OpenUntil = &until
	}
	return s
}
