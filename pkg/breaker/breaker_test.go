// SPDX-License-Identifier: Apache-2.0

package breaker

import (
	"testing"
	"time"

	"github.com/pulsewatch/airouter/pkg/core"
)

const testService = core.ServiceID("nlp-function-a")

func TestRegistryStartsClosed(t *testing.T) {
	r := NewRegistry(DefaultConfig())

	if !r.IsAvailable(testService) {
		t.Errorf("expected new service to be available")
	}
	if got := r.State(testService); got != StateClosed {
		t.Errorf("expected closed, got %s", got)
	}
}

func TestOpensAfterConsecutiveFailures(t *testing.T) {
	r := NewRegistry(Config{FailureThreshold: 3, ResetTimeout: time.Minute})

	for i := 0; i < 2; i++ {
		r.RecordFailure(testService)
	}
	if got := r.State(testService); got != StateClosed {
		t.Fatalf("expected closed below threshold, got %s", got)
	}

	r.RecordFailure(testService)
	if got := r.State(testService); got != StateOpen {
		t.Fatalf("expected open at threshold, got %s", got)
	}
	if r.IsAvailable(testService) {
		t.Errorf("expected open circuit to reject calls")
	}
}

func TestSuccessResetsConsecutiveCount(t *testing.T) {
	r := NewRegistry(Config{FailureThreshold: 3, ResetTimeout: time.Minute})

	r.RecordFailure(testService)
	r.RecordFailure(testService)
	r.RecordSuccess(testService)
	r.RecordFailure(testService)
	r.RecordFailure(testService)

	if got := r.State(testService); got != StateClosed {
		t.Errorf("expected closed after non-consecutive failures, got %s", got)
	}
}

func TestHalfOpenAllowsSingleProbe(t *testing.T) {
	r := NewRegistry(Config{FailureThreshold: 1, ResetTimeout: 30 * time.Millisecond})

	r.RecordFailure(testService)
	if r.IsAvailable(testService) {
		t.Fatalf("expected open circuit")
	}

	time.Sleep(40 * time.Millisecond)

	if !r.IsAvailable(testService) {
		t.Fatalf("expected half-open trial after reset timeout")
	}
	if got := r.State(testService); got != StateHalfOpen {
		t.Fatalf("expected half-open, got %s", got)
	}
	if r.IsAvailable(testService) {
		t.Errorf("expected only one trial call in half-open")
	}
}

func TestHalfOpenClosesOnSuccess(t *testing.T) {
	r := NewRegistry(Config{FailureThreshold: 1, ResetTimeout: 10 * time.Millisecond})

	r.RecordFailure(testService)
	time.Sleep(20 * time.Millisecond)
	if !r.IsAvailable(testService) {
		t.Fatalf("expected half-open trial")
	}

	r.RecordSuccess(testService)
	if got := r.State(testService); got != StateClosed {
		t.Errorf("expected closed after trial success, got %s", got)
	}
	if !r.IsAvailable(testService) {
		t.Errorf("expected closed circuit to accept calls")
	}
}

func TestHalfOpenReopensOnFailure(t *testing.T) {
	r := NewRegistry(Config{FailureThreshold: 1, ResetTimeout: 10 * time.Millisecond})

	r.RecordFailure(testService)
	time.Sleep(20 * time.Millisecond)
	if !r.IsAvailable(testService) {
		t.Fatalf("expected half-open trial")
	}

	r.RecordFailure(testService)
	if got := r.State(testService); got != StateOpen {
		t.Errorf("expected reopen after trial failure, got %s", got)
	}
	if r.IsAvailable(testService) {
		t.Errorf("expected reopened circuit to reject calls")
	}
}

func TestReset(t *testing.T) {
	r := NewRegistry(Config{FailureThreshold: 1, ResetTimeout: time.Minute})

	r.RecordFailure(testService)
	r.Reset(testService)

	if got := r.State(testService); got != StateClosed {
		t.Errorf("expected closed after reset, got %s", got)
	}
}

func TestSnapshots(t *testing.T) {
	r := NewRegistry(Config{FailureThreshold: 2, ResetTimeout: time.Minute})

	r.RecordFailure("vector-search")
	r.RecordSuccess("nlp-function-a")

	snaps := r.Snapshots()
	if len(snaps) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(snaps))
	}
	for _, s := range snaps {
		switch s.ServiceID {
		case "vector-search":
			if s.FailureCount != 1 {
				t.Errorf("expected 1 failure, got %d", s.FailureCount)
			}
		case "nlp-function-a":
			if s.SuccessCount != 1 {
				t.Errorf("expected 1 success, got %d", s.SuccessCount)
			}
		default:
			t.Errorf("unexpected service %s", s.ServiceID)
		}
	}
}

func TestEntriesAreIndependent(t *testing.T) {
	r := NewRegistry(Config{FailureThreshold: 1, ResetTimeout: time.Minute})

	r.RecordFailure("vector-search")

	if r.IsAvailable("vector-search") {
		t.Errorf("expected vector-search circuit open")
	}
	if !r.IsAvailable("nlp-function-a") {
		t.Errorf("expected unrelated service unaffected")
	}
}
