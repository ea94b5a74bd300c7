// SPDX-License-Identifier: Apache-2.0
// Package breaker implements a per-service circuit breaker registry.
// The router consults it before every adapter call and reports every
// outcome back into it.
package breaker

import (
	"sync"
	"time"

	"github.com/pulsewatch/airouter/pkg/core"
)

// State represents the state of one service's circuit breaker.
type State string

const (
	// StateClosed means calls flow normally.
	StateClosed State = "closed"

	// StateOpen means calls are being skipped.
	StateOpen State = "open"

	// StateHalfOpen means one trial call is allowed to probe recovery.
	StateHalfOpen State = "half-open"
)

// Config controls breaker thresholds shared by all services.
type Config struct {
	// FailureThreshold is the number of consecutive failures before
	// the circuit opens.
	FailureThreshold int

	// ResetTimeout is how long an open circuit waits before allowing
	// a half-open trial call.
	ResetTimeout time.Duration
}

// DefaultConfig returns the default breaker thresholds.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 3,
		ResetTimeout:     60 * time.Second,
	}
}

type entry struct {
	state         State
	failures      int
	successes     int
	lastFailureAt time.Time
	// probeArmed is set when transitioning to half-open and consumed
	// by the single allowed trial call.
	probeArmed bool
}

// Snapshot is a read-only view of one service's breaker for diagnostics.
type Snapshot struct {
	ServiceID     core.ServiceID `json:"service_id"`
	State         State          `json:"state"`
	FailureCount  int            `json:"failure_count"`
	SuccessCount  int            `json:"success_count"`
	LastFailureAt time.Time      `json:"last_failure_at,omitzero"`
}

// Registry tracks one circuit breaker per ServiceID. Entries are created
// lazily on first use and never removed. Safe for concurrent use by all
// in-flight routing calls.
type Registry struct {
	mu      sync.Mutex
	cfg     Config
	entries map[core.ServiceID]*entry
}

// NewRegistry creates an empty registry with the given thresholds.
func NewRegistry(cfg Config) *Registry {
	if cfg.FailureThreshold < 1 {
		cfg.FailureThreshold = DefaultConfig().FailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = DefaultConfig().ResetTimeout
	}
	return &Registry{
		cfg:     cfg,
		entries: make(map[core.ServiceID]*entry),
	}
}

// IsAvailable reports whether a call to the service may proceed. An open
// circuit whose reset timeout has elapsed transitions to half-open and
// admits exactly one trial call; further calls are rejected until the
// trial's outcome is recorded.
func (r *Registry) IsAvailable(id core.ServiceID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.entry(id)
	switch e.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(e.lastFailureAt) >= r.cfg.ResetTimeout {
			e.state = StateHalfOpen
			e.probeArmed = true
			return true
		}
		return false
	case StateHalfOpen:
		if !e.probeArmed {
			e.probeArmed = true
			return true
		}
		return false
	}
	return false
}

// RecordSuccess notes a successful call. A half-open circuit closes and
// resets its failure count.
func (r *Registry) RecordSuccess(id core.ServiceID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.entry(id)
	e.successes++
	switch e.state {
	case StateHalfOpen:
		e.state = StateClosed
		e.failures = 0
		e.probeArmed = false
	case StateClosed:
		// Threshold counts consecutive failures only.
		e.failures = 0
	}
}

// RecordFailure notes a failed call. The circuit opens after
// FailureThreshold consecutive failures, and a half-open trial failure
// reopens it immediately.
func (r *Registry) RecordFailure(id core.ServiceID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.entry(id)
	e.failures++
	e.lastFailureAt = time.Now()

	switch e.state {
	case StateClosed:
		if e.failures >= r.cfg.FailureThreshold {
			e.state = StateOpen
		}
	case StateHalfOpen:
		e.state = StateOpen
		e.probeArmed = false
	}
}

// State returns the current state for a service.
func (r *Registry) State(id core.ServiceID) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entry(id).state
}

// Reset forces a service's breaker back to closed.
func (r *Registry) Reset(id core.ServiceID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.entry(id)
	e.state = StateClosed
	e.failures = 0
	e.successes = 0
	e.probeArmed = false
}

// Snapshots returns a point-in-time view of every known breaker.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Snapshot, 0, len(r.entries))
	for id, e := range r.entries {
		out = append(out, Snapshot{
			ServiceID:     id,
			State:         e.state,
			FailureCount:  e.failures,
			SuccessCount:  e.successes,
			LastFailureAt: e.lastFailureAt,
		})
	}
	return out
}

// entry returns the breaker for id, creating it closed on first use.
// Must be called under lock.
func (r *Registry) entry(id core.ServiceID) *entry {
	e, ok := r.entries[id]
	if !ok {
		e = &entry{state: StateClosed}
		r.entries[id] = e
	}
	return e
}
