// SPDX-License-Identifier: Apache-2.0
// Package errors provides the typed error taxonomy shared by the router,
// the circuit breaker and the adapters. Every failure that crosses the
// router boundary is represented as a *RouteError.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorCode classifies routing errors. The set is closed: adapters and
// the normalizer never invent codes outside it.
type ErrorCode string

const (
	// CodeNetworkTimeout indicates a call exceeded its deadline.
	CodeNetworkTimeout ErrorCode = "NETWORK_TIMEOUT"

	// CodeNetworkError indicates a transport-level failure.
	CodeNetworkError ErrorCode = "NETWORK_ERROR"

	// CodeServiceUnavailable indicates the backend reported itself down.
	CodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"

	// CodeUnauthorized indicates authentication failed.
	CodeUnauthorized ErrorCode = "UNAUTHORIZED"

	// CodeForbidden indicates the caller lacks permission.
	CodeForbidden ErrorCode = "FORBIDDEN"

	// CodeBadRequest indicates the backend rejected the input.
	CodeBadRequest ErrorCode = "BAD_REQUEST"

	// CodeRateLimit indicates the backend throttled the call.
	CodeRateLimit ErrorCode = "RATE_LIMIT_EXCEEDED"

	// CodeCircuitOpen indicates the call was skipped by an open breaker.
	CodeCircuitOpen ErrorCode = "CIRCUIT_OPEN"

	// CodeInternal indicates an unclassified internal failure.
	CodeInternal ErrorCode = "INTERNAL_ERROR"
)

// RouteError is a typed error with rich context for observability.
// It implements the error interface and can be unwrapped with errors.As().
type RouteError struct {
	Code        ErrorCode
	Message     string
	Service     string
	Err         error
	Context     map[string]any
	Recoverable bool
	RetryAfter  time.Duration
	StatusCode  int
}

// Error implements the error interface.
func (e *RouteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *RouteError) Unwrap() error {
	return e.Err
}

// MarshalJSON implements json.Marshaler for structured logging and for
// embedding in service responses.
func (e *RouteError) MarshalJSON() ([]byte, error) {
	out := struct {
		Code              string         `json:"code"`
		Message           string         `json:"message"`
		Service           string         `json:"service_id,omitempty"`
		Recoverable       bool           `json:"recoverable"`
		RetryAfterSeconds float64        `json:"retry_after_seconds,omitempty"`
		Details           map[string]any `json:"details,omitempty"`
	}{
		Code:        string(e.Code),
		Message:     e.Message,
		Service:     e.Service,
		Recoverable: e.Recoverable,
		Details:     e.Context,
	}
	if e.RetryAfter > 0 {
		out.RetryAfterSeconds = e.RetryAfter.Seconds()
	}
	return json.Marshal(out)
}

// New creates a RouteError with the given code, message, and cause. The
// recoverability flag and status code are derived from the code and can
// be overridden with WithRecoverable.
func New(code ErrorCode, msg string, cause error) *RouteError {
	return &RouteError{
		Code:        code,
		Message:     msg,
		Err:         cause,
		Recoverable: codeRecoverable(code),
		StatusCode:  codeToStatusCode(code),
	}
}

// WithService tags the error with the service it originated from.
// Returns the error for method chaining.
func (e *RouteError) WithService(service string) *RouteError {
	e.Service = service
	return e
}

// WithContext adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *RouteError) WithContext(key string, value any) *RouteError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// WithRecoverable sets whether the error can be recovered from.
// Returns the error for method chaining.
func (e *RouteError) WithRecoverable(recoverable bool) *RouteError {
	e.Recoverable = recoverable
	return e
}

// WithRetryAfter sets the suggested retry delay.
// Returns the error for method chaining.
func (e *RouteError) WithRetryAfter(d time.Duration) *RouteError {
	e.RetryAfter = d
	return e
}

// AsRouteError returns the *RouteError in err's chain, or nil. Wrapped
// RouteErrors keep their code instead of being reclassified.
func AsRouteError(err error) *RouteError {
	var re *RouteError
	if stderrors.As(err, &re) {
		return re
	}
	return nil
}

// RecoverableString returns "true" or "false" for observability attributes.
func (e *RouteError) RecoverableString() string {
	if e.Recoverable {
		return "true"
	}
	return "false"
}

// codeRecoverable is the default recoverability per code. Recoverable
// errors feed the breaker and remain eligible for the fallback chain.
func codeRecoverable(code ErrorCode) bool {
	switch code {
	case CodeNetworkTimeout, CodeNetworkError, CodeServiceUnavailable, CodeRateLimit:
		return true
	}
	return false
}

// codeToStatusCode maps error codes to HTTP status codes for the
// serving surface.
func codeToStatusCode(code ErrorCode) int {
	switch code {
	case CodeBadRequest:
		return 400
	case CodeUnauthorized:
		return 401
	case CodeForbidden:
		return 403
	case CodeNetworkTimeout:
		return 408
	case CodeRateLimit:
		return 429
	case CodeServiceUnavailable, CodeCircuitOpen:
		return 503
	default:
		return 500
	}
}
