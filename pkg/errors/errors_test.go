// SPDX-License-Identifier: Apache-2.0

package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestErrorString(t *testing.T) {
	err := New(CodeNetworkTimeout, "call timed out", stderrors.New("dial tcp: timeout"))
	got := err.Error()
	if !strings.Contains(got, "NETWORK_TIMEOUT") || !strings.Contains(got, "call timed out") {
		t.Errorf("unexpected error string: %s", got)
	}
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("underlying")
	err := New(CodeInternal, "wrapped", cause)
	if !stderrors.Is(err, cause) {
		t.Errorf("expected errors.Is to find the cause")
	}
}

func TestDefaultRecoverability(t *testing.T) {
	tests := []struct {
		code        ErrorCode
		recoverable bool
	}{
		{CodeNetworkTimeout, true},
		{CodeNetworkError, true},
		{CodeServiceUnavailable, true},
		{CodeRateLimit, true},
		{CodeUnauthorized, false},
		{CodeForbidden, false},
		{CodeBadRequest, false},
		{CodeCircuitOpen, false},
		{CodeInternal, false},
	}
	for _, tt := range tests {
		if got := New(tt.code, "msg", nil).Recoverable; got != tt.recoverable {
			t.Errorf("%s: expected recoverable=%v, got %v", tt.code, tt.recoverable, got)
		}
	}
}

func TestStatusCodes(t *testing.T) {
	tests := []struct {
		code   ErrorCode
		status int
	}{
		{CodeBadRequest, 400},
		{CodeUnauthorized, 401},
		{CodeForbidden, 403},
		{CodeNetworkTimeout, 408},
		{CodeRateLimit, 429},
		{CodeServiceUnavailable, 503},
		{CodeCircuitOpen, 503},
		{CodeInternal, 500},
	}
	for _, tt := range tests {
		if got := New(tt.code, "msg", nil).StatusCode; got != tt.status {
			t.Errorf("%s: expected status %d, got %d", tt.code, tt.status, got)
		}
	}
}

func TestChaining(t *testing.T) {
	err := New(CodeRateLimit, "throttled", nil).
		WithService("nlp-function-a").
		WithContext("attempt", 2).
		WithRetryAfter(4 * time.Second)

	if err.Service != "nlp-function-a" {
		t.Errorf("expected service tag, got %q", err.Service)
	}
	if err.Context["attempt"] != 2 {
		t.Errorf("expected context value, got %v", err.Context["attempt"])
	}
	if err.RetryAfter != 4*time.Second {
		t.Errorf("expected retry after 4s, got %v", err.RetryAfter)
	}
}

func TestMarshalJSON(t *testing.T) {
	err := New(CodeServiceUnavailable, "backend down", nil).
		WithService("vector-search").
		WithRetryAfter(2 * time.Second)

	raw, jerr := json.Marshal(err)
	if jerr != nil {
		t.Fatalf("marshal failed: %v", jerr)
	}

	var decoded map[string]any
	if jerr := json.Unmarshal(raw, &decoded); jerr != nil {
		t.Fatalf("unmarshal failed: %v", jerr)
	}
	if decoded["code"] != "SERVICE_UNAVAILABLE" {
		t.Errorf("expected code in JSON, got %v", decoded["code"])
	}
	if decoded["recoverable"] != true {
		t.Errorf("expected recoverable=true in JSON")
	}
	if decoded["retry_after_seconds"] != 2.0 {
		t.Errorf("expected retry_after_seconds=2, got %v", decoded["retry_after_seconds"])
	}
}

func TestAsRouteError(t *testing.T) {
	re := New(CodeInternal, "boom", nil)
	if AsRouteError(re) != re {
		t.Errorf("expected identity for RouteError")
	}
	if AsRouteError(stderrors.New("plain")) != nil {
		t.Errorf("expected nil for plain error")
	}
	if AsRouteError(nil) != nil {
		t.Errorf("expected nil for nil error")
	}
}

func TestAsRouteErrorUnwrapsChain(t *testing.T) {
	re := New(CodeRateLimit, "throttled", nil)
	wrapped := fmt.Errorf("call backend: %w", re)
	if got := AsRouteError(wrapped); got != re {
		t.Errorf("expected wrapped RouteError found, got %v", got)
	}
}
