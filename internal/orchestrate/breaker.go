package orchestrate

import (
	"sync"
	"time"
)

// Breaker defaults.
const (
	breakerThreshold = 3
	breakerWindow    = 5 * time.Minute
	breakerCooldown  = 5 * time.Minute
)

type breakerState struct {
	failures      int
	lastFailureAt time.Time
	open          bool
	openedAt      time.Time
	probing       bool
}

// CircuitBreaker tracks per-domain failures inside a rolling window. It
// opens after three failures within the window and lets one probe through
// once the cooldown has elapsed. State is process-wide and shared by all
// workers.
type CircuitBreaker struct {
	mu        sync.Mutex
	states    map[string]*breakerState
	threshold int
	window    time.Duration
	cooldown  time.Duration
	now       func() time.Time
}

// NewCircuitBreaker creates a breaker with the default threshold, window,
// and cooldown.
func NewCircuitBreaker() *CircuitBreaker {
	return &CircuitBreaker{
		states:    make(map[string]*breakerState),
		threshold: breakerThreshold,
		window:    breakerWindow,
		cooldown:  breakerCooldown,
		now:       time.Now,
	}
}

// Allow reports whether the domain may be attempted. An open breaker whose
// cooldown has elapsed admits a single probe; further callers are refused
// until that probe's outcome is recorded.
func (b *CircuitBreaker) Allow(domain string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	st, ok := b.states[domain]
	if !ok || !st.open {
		return true
	}
	if st.probing || b.now().Sub(st.openedAt) < b.cooldown {
		return false
	}
	st.probing = true
	return true
}

// RecordFailure counts one failure and opens the breaker when the threshold
// is reached within the window. Failures older than the window restart the
// count; a failed half-open probe reopens with a fresh cooldown.
func (b *CircuitBreaker) RecordFailure(domain string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	st, ok := b.states[domain]
	if !ok {
		st = &breakerState{}
		b.states[domain] = st
	}
	if !st.open && st.failures > 0 && now.Sub(st.lastFailureAt) > b.window {
		st.failures = 0
	}
	st.failures++
	st.lastFailureAt = now
	if st.open || st.failures >= b.threshold {
		st.open = true
		st.openedAt = now
		st.probing = false
	}
}

// RecordSuccess resets the domain's state entirely.
func (b *CircuitBreaker) RecordSuccess(domain string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.states, domain)
}
