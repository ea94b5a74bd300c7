// SPDX-License-Identifier: Apache-2.0

package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// StatusCoder is implemented by errors that carry a transport status
// code. Adapters wrapping HTTP or gRPC backends return these so the
// normalizer can map the code directly instead of matching message text.
type StatusCoder interface {
	error
	StatusCode() int
}

// StatusError is a minimal StatusCoder for adapters that have nothing
// better than a raw transport status.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Status, e.Message)
}

// StatusCode implements StatusCoder.
func (e *StatusError) StatusCode() int { return e.Status }

const (
	historyLimit = 10

	defaultBaseDelay = 1 * time.Second
	defaultMaxDelay  = 60 * time.Second
)

// Normalizer maps arbitrary adapter failures into the closed RouteError
// taxonomy. It keeps a small failure counter per {service, code} purely
// to drive exponential retry-after hints, separate from the circuit
// breaker's own counters, plus a bounded rolling error history per
// service for diagnostics.
type Normalizer struct {
	mu        sync.Mutex
	failures  map[string]int
	history   map[string][]*RouteError
	baseDelay time.Duration
	maxDelay  time.Duration
}

// NewNormalizer creates a Normalizer with default backoff bounds
// (base 1s, cap 60s).
func NewNormalizer() *Normalizer {
	return &Normalizer{
		failures:  make(map[string]int),
		history:   make(map[string][]*RouteError),
		baseDelay: defaultBaseDelay,
		maxDelay:  defaultMaxDelay,
	}
}

// Normalize converts a raw adapter failure into a *RouteError tagged
// with the service. Typed errors pass through with their code intact;
// status-coded errors map by transport status; anything else falls back
// to message substring matching and finally to CodeInternal.
func (n *Normalizer) Normalize(raw error, service string) *RouteError {
	re := n.classify(raw, service)
	re.Service = service

	n.mu.Lock()
	if re.Recoverable {
		key := service + "|" + string(re.Code)
		re.RetryAfter = n.backoff(n.failures[key])
		n.failures[key]++
	}
	hist := append(n.history[service], re)
	if len(hist) > historyLimit {
		hist = hist[len(hist)-historyLimit:]
	}
	n.history[service] = hist
	n.mu.Unlock()

	return re
}

// RecordSuccess resets the backoff counters for a service after it
// answers successfully.
func (n *Normalizer) RecordSuccess(service string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	prefix := service + "|"
	for key := range n.failures {
		if strings.HasPrefix(key, prefix) {
			delete(n.failures, key)
		}
	}
}

// History returns a copy of the rolling error history for a service,
// oldest first.
func (n *Normalizer) History(service string) []*RouteError {
	n.mu.Lock()
	defer n.mu.Unlock()
	hist := n.history[service]
	out := make([]*RouteError, len(hist))
	copy(out, hist)
	return out
}

func (n *Normalizer) classify(raw error, service string) *RouteError {
	if raw == nil {
		return New(CodeInternal, "unknown failure", nil)
	}

	// Already normalized: keep the code. Copied before tagging so a
	// shared sentinel error is never mutated or aliased in the history.
	if re := AsRouteError(raw); re != nil {
		clone := *re
		return &clone
	}

	if stderrors.Is(raw, context.DeadlineExceeded) {
		return New(CodeNetworkTimeout, "call exceeded deadline", raw)
	}

	var sc StatusCoder
	if stderrors.As(raw, &sc) {
		return fromStatus(sc.StatusCode(), raw)
	}

	return fromMessage(raw)
}

// fromStatus maps HTTP-style transport codes into the taxonomy.
func fromStatus(status int, cause error) *RouteError {
	switch {
	case status == 400:
		return New(CodeBadRequest, "backend rejected request", cause)
	case status == 401:
		return New(CodeUnauthorized, "backend authentication failed", cause)
	case status == 403:
		return New(CodeForbidden, "backend denied access", cause)
	case status == 408:
		return New(CodeNetworkTimeout, "backend timed out", cause)
	case status == 429:
		return New(CodeRateLimit, "backend rate limit exceeded", cause)
	case status == 503:
		return New(CodeServiceUnavailable, "backend unavailable", cause)
	case status >= 500:
		return New(CodeInternal, "backend internal error", cause)
	default:
		return New(CodeInternal, fmt.Sprintf("unexpected backend status %d", status), cause)
	}
}

// fromMessage is the fallback path for third-party adapters that only
// surface free-text errors.
func fromMessage(cause error) *RouteError {
	msg := strings.ToLower(cause.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return New(CodeNetworkTimeout, "call timed out", cause)
	case strings.Contains(msg, "network"),
		strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "not found"),
		strings.Contains(msg, "fetch failed"):
		return New(CodeNetworkError, "network failure", cause)
	default:
		return New(CodeInternal, "unclassified failure", cause)
	}
}

// backoff computes min(base * 2^priorFailures, max).
func (n *Normalizer) backoff(priorFailures int) time.Duration {
	delay := n.baseDelay
	for i := 0; i < priorFailures; i++ {
		delay *= 2
		if delay >= n.maxDelay {
			return n.maxDelay
		}
	}
	if delay > n.maxDelay {
		return n.maxDelay
	}
	return delay
}
