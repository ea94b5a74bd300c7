// SPDX-License-Identifier: Apache-2.0

// Package health aggregates per-component health checks for the serve
// surface. Checks are cheap snapshots of in-process state, not probes of
// remote backends.
package health

import (
	"context"
	"sync"
	"time"
)

// Status is the health state of a component.
type Status string

const (
	// StatusHealthy indicates the component is fully operational.
	StatusHealthy Status = "healthy"

	// StatusDegraded indicates reduced capacity, for example a circuit
	// probing a recovering backend.
	StatusDegraded Status = "degraded"

	// StatusUnhealthy indicates the component is not operational.
	StatusUnhealthy Status = "unhealthy"
)

// Result is one component's health at check time.
type Result struct {
	Component string    `json:"component"`
	Status    Status    `json:"status"`
	Message   string    `json:"message,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Checker reports the current health of one component.
type Checker interface {
	Check(ctx context.Context) Result
}

// CheckerFunc adapts a function to the Checker interface.
type CheckerFunc func(ctx context.Context) Result

func (f CheckerFunc) Check(ctx context.Context) Result { return f(ctx) }

// Registry holds named checkers and rolls their results up into one
// overall status. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	checkers map[string]Checker
}

func NewRegistry() *Registry {
	return &Registry{checkers: make(map[string]Checker)}
}

// Register adds a checker under a component name, replacing any
// previous registration.
func (r *Registry) Register(name string, c Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkers[name] = c
}

// CheckAll runs every registered checker. The overall status is the
// worst individual one: any unhealthy component makes the whole process
// unhealthy, any degraded one makes it degraded.
func (r *Registry) CheckAll(ctx context.Context) ([]Result, Status) {
	r.mu.RLock()
	checkers := make(map[string]Checker, len(r.checkers))
	for name, c := range r.checkers {
		checkers[name] = c
	}
	r.mu.RUnlock()

	results := make([]Result, 0, len(checkers))
	overall := StatusHealthy
	for name, c := range checkers {
		res := c.Check(ctx)
		res.Component = name
		if res.CheckedAt.IsZero() {
			res.CheckedAt = time.Now()
		}
		results = append(results, res)

		switch res.Status {
		case StatusUnhealthy:
			overall = StatusUnhealthy
		case StatusDegraded:
			if overall == StatusHealthy {
				overall = StatusDegraded
			}
		}
	}
	return results, overall
}
