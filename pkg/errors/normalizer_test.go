// SPDX-License-Identifier: Apache-2.0

package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"
	"time"
)

const testService = "nlp-function-a"

func TestNormalizeStatusCodes(t *testing.T) {
	tests := []struct {
		status int
		code   ErrorCode
	}{
		{400, CodeBadRequest},
		{401, CodeUnauthorized},
		{403, CodeForbidden},
		{408, CodeNetworkTimeout},
		{429, CodeRateLimit},
		{503, CodeServiceUnavailable},
		{500, CodeInternal},
		{502, CodeInternal},
	}
	for _, tt := range tests {
		n := NewNormalizer()
		re := n.Normalize(&StatusError{Status: tt.status, Message: "raw"}, testService)
		if re.Code != tt.code {
			t.Errorf("status %d: expected %s, got %s", tt.status, tt.code, re.Code)
		}
		if re.Service != testService {
			t.Errorf("status %d: expected service tag", tt.status)
		}
	}
}

func TestNormalizeMessageSubstrings(t *testing.T) {
	tests := []struct {
		msg  string
		code ErrorCode
	}{
		{"operation timeout after 3s", CodeNetworkTimeout},
		{"context deadline exceeded", CodeNetworkTimeout},
		{"network unreachable", CodeNetworkError},
		{"dial tcp: connection refused", CodeNetworkError},
		{"host not found", CodeNetworkError},
		{"fetch failed", CodeNetworkError},
		{"something exploded", CodeInternal},
	}
	for _, tt := range tests {
		n := NewNormalizer()
		re := n.Normalize(stderrors.New(tt.msg), testService)
		if re.Code != tt.code {
			t.Errorf("%q: expected %s, got %s", tt.msg, tt.code, re.Code)
		}
	}
}

func TestNormalizeContextDeadline(t *testing.T) {
	n := NewNormalizer()
	re := n.Normalize(fmt.Errorf("call: %w", context.DeadlineExceeded), testService)
	if re.Code != CodeNetworkTimeout {
		t.Errorf("expected NETWORK_TIMEOUT, got %s", re.Code)
	}
	if !re.Recoverable {
		t.Errorf("expected deadline errors recoverable")
	}
}

func TestNormalizePassesThroughRouteError(t *testing.T) {
	n := NewNormalizer()
	orig := New(CodeCircuitOpen, "skipped", nil)
	re := n.Normalize(orig, testService)
	if re.Code != CodeCircuitOpen {
		t.Errorf("expected code preserved, got %s", re.Code)
	}
}

func TestNormalizeWrappedRouteErrorKeepsCode(t *testing.T) {
	n := NewNormalizer()
	orig := New(CodeRateLimit, "throttled", nil)
	re := n.Normalize(fmt.Errorf("call backend: %w", orig), testService)
	if re.Code != CodeRateLimit {
		t.Errorf("expected code preserved through wrapping, got %s", re.Code)
	}
}

func TestNormalizeDoesNotMutateSentinel(t *testing.T) {
	n := NewNormalizer()
	sentinel := New(CodeServiceUnavailable, "maintenance window", nil)

	a := n.Normalize(sentinel, testService)
	b := n.Normalize(sentinel, "vector-search")

	if sentinel.Service != "" || sentinel.RetryAfter != 0 {
		t.Errorf("sentinel mutated: service=%q retry=%v",
			sentinel.Service, sentinel.RetryAfter)
	}
	if a == sentinel || b == sentinel || a == b {
		t.Errorf("expected distinct copies per normalization")
	}
	if a.Service != testService || b.Service != "vector-search" {
		t.Errorf("unexpected service tags: %q / %q", a.Service, b.Service)
	}
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	n := NewNormalizer()

	expected := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		32 * time.Second,
		60 * time.Second,
		60 * time.Second,
	}
	for i, want := range expected {
		re := n.Normalize(stderrors.New("timeout"), testService)
		if re.RetryAfter != want {
			t.Errorf("failure %d: expected retry after %v, got %v", i, want, re.RetryAfter)
		}
	}
}

func TestBackoffIsPerServiceAndCode(t *testing.T) {
	n := NewNormalizer()

	n.Normalize(stderrors.New("timeout"), testService)
	n.Normalize(stderrors.New("timeout"), testService)

	// A different code for the same service starts fresh.
	re := n.Normalize(stderrors.New("connection refused"), testService)
	if re.RetryAfter != 1*time.Second {
		t.Errorf("expected independent counter per code, got %v", re.RetryAfter)
	}

	// The same code for a different service starts fresh.
	re = n.Normalize(stderrors.New("timeout"), "vector-search")
	if re.RetryAfter != 1*time.Second {
		t.Errorf("expected independent counter per service, got %v", re.RetryAfter)
	}
}

func TestRecordSuccessResetsBackoff(t *testing.T) {
	n := NewNormalizer()

	n.Normalize(stderrors.New("timeout"), testService)
	n.Normalize(stderrors.New("timeout"), testService)
	n.RecordSuccess(testService)

	re := n.Normalize(stderrors.New("timeout"), testService)
	if re.RetryAfter != 1*time.Second {
		t.Errorf("expected backoff reset after success, got %v", re.RetryAfter)
	}
}

func TestUnrecoverableGetsNoRetryAfter(t *testing.T) {
	n := NewNormalizer()
	re := n.Normalize(&StatusError{Status: 401, Message: "no"}, testService)
	if re.RetryAfter != 0 {
		t.Errorf("expected no retry hint for unrecoverable error, got %v", re.RetryAfter)
	}
}

func TestHistoryBounded(t *testing.T) {
	n := NewNormalizer()

	for i := 0; i < 15; i++ {
		n.Normalize(fmt.Errorf("failure %d: timeout", i), testService)
	}

	hist := n.History(testService)
	if len(hist) != 10 {
		t.Fatalf("expected history capped at 10, got %d", len(hist))
	}
	// Oldest retained entry is failure 5.
	if got := hist[0].Err.Error(); got != "failure 5: timeout" {
		t.Errorf("expected oldest entry dropped, head is %q", got)
	}
	if len(n.History("vector-search")) != 0 {
		t.Errorf("expected empty history for untouched service")
	}
}
