package router

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/pulsewatch/airouter/pkg/adapter"
	"github.com/pulsewatch/airouter/pkg/breaker"
	"github.com/pulsewatch/airouter/pkg/core"
	"github.com/pulsewatch/airouter/pkg/errors"
)

// routeState accumulates the outcome of one routing call. All mutation
// goes through its mutex so parallel dispatch can share it.
type routeState struct {
	mu           sync.Mutex
	responses    []*core.ServiceResponse
	attempted    map[core.ServiceID]bool
	path         []string
	fallbackUsed bool
}

func newRouteState(req *core.Request) *routeState {
	return &routeState{
		attempted: make(map[core.ServiceID]bool, len(req.TargetServices)),
		path:      make([]string, 0, len(req.TargetServices)),
	}
}

// begin marks a service attempted and appends it to the routing path.
// Returns false if the service was already attempted in this request.
func (st *routeState) begin(id core.ServiceID) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.attempted[id] {
		return false
	}
	st.attempted[id] = true
	st.path = append(st.path, string(id))
	return true
}

func (st *routeState) record(resp *core.ServiceResponse) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.responses = append(st.responses, resp)
}

func (st *routeState) anySuccess() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	for _, r := range st.responses {
		if r.Success && !r.Payload.Empty() {
			return true
		}
	}
	return false
}

// timings summarizes every processed service for the formatter.
func (st *routeState) timings() []core.ServiceTiming {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]core.ServiceTiming, 0, len(st.responses))
	for _, r := range st.responses {
		status := "failed"
		switch {
		case r.Success:
			status = "success"
		case r.Error != nil && r.Error.Code == errors.CodeCircuitOpen:
			status = "skipped"
		}
		out = append(out, core.ServiceTiming{
			ServiceID: r.ServiceID,
			TimeMs:    r.Metadata.ProcessingTimeMs,
			Status:    status,
		})
	}
	return out
}

// dispatchSequential calls services one at a time in the given order,
// stopping at the first successful non-empty response.
func (r *Router) dispatchSequential(ctx context.Context, req *core.Request, targets []core.ServiceID, st *routeState) {
	for _, id := range targets {
		if !st.begin(id) {
			continue
		}
		resp := r.callService(ctx, req, id)
		st.record(resp)
		if resp.Success && !resp.Payload.Empty() {
			return
		}
	}
}

// dispatchParallel launches one call per service, bounded by
// MaxConcurrency, and waits for all to settle. It does not short-circuit
// on first success so the formatter can aggregate multiple sources.
func (r *Router) dispatchParallel(ctx context.Context, req *core.Request, targets []core.ServiceID, st *routeState) {
	sem := make(chan struct{}, r.cfg.MaxConcurrency)
	var wg sync.WaitGroup

	for _, id := range targets {
		if !st.begin(id) {
			continue
		}
		wg.Add(1)
		go func(id core.ServiceID) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			r.metrics.AddInFlight(ctx, 1)
			defer r.metrics.AddInFlight(ctx, -1)

			st.record(r.callService(ctx, req, id))
		}(id)
	}
	wg.Wait()
}

// dispatchFallback runs the fallback chain sequentially, skipping
// services already attempted. Returns true if any fallback service was
// dispatched.
func (r *Router) dispatchFallback(ctx context.Context, req *core.Request, st *routeState) bool {
	before := len(st.path)
	r.dispatchSequential(ctx, req, req.FallbackChain, st)
	return len(st.path) > before
}

// callService performs one adapter call: breaker check, hard timeout,
// error normalization and breaker bookkeeping.
func (r *Router) callService(ctx context.Context, req *core.Request, id core.ServiceID) *core.ServiceResponse {
	resp := core.NewServiceResponse(req.ID, id)
	callStart := time.Now()

	ctx, span := r.tracer.Start(ctx, "router.call",
		trace.WithAttributes(attribute.String("service.id", string(id))))
	defer span.End()
	defer func() {
		resp.Metadata.ProcessingTimeMs = time.Since(callStart).Milliseconds()
	}()

	a, ok := r.adapters[id]
	if !ok {
		resp.Error = errors.New(errors.CodeInternal,
			"no adapter registered", nil).WithService(string(id))
		return resp
	}

	if !r.breakers.IsAvailable(id) {
		// Synthesized without contacting the adapter; does not feed
		// the breaker's failure counter.
		resp.Error = errors.New(errors.CodeCircuitOpen,
			"circuit breaker open, call skipped", nil).
			WithService(string(id)).
			WithRecoverable(false)
		r.metrics.RecordServiceError(ctx, string(id), resp.Error)
		return resp
	}

	timeout := r.timeoutFor(id, a)
	step := resp.AddStep(fmt.Sprintf("query %s", id))

	payload, err := r.callWithTimeout(ctx, a, adapter.CallRequest{
		ID:      req.ID,
		Query:   req.Query,
		Context: req.Context,
		Timeout: timeout,
	}, timeout)

	if err != nil {
		re := r.norm.Normalize(err, string(id))
		resp.Error = re
		step.Fail(re.Message)
		// A half-open trial must report any failure, or the consumed
		// probe would block the service until process restart. Outside
		// half-open, unrecoverable errors stay out of the consecutive
		// failure count.
		if re.Recoverable || r.breakers.State(id) == breaker.StateHalfOpen {
			r.breakers.RecordFailure(id)
		}
		r.metrics.RecordServiceError(ctx, string(id), re)
		span.SetAttributes(attribute.String("error.code", string(re.Code)))
		return resp
	}

	step.Complete()
	resp.Success = true
	resp.Payload = payload
	r.breakers.RecordSuccess(id)
	r.norm.RecordSuccess(string(id))
	return resp
}

// callWithTimeout enforces the router's hard per-call deadline. The
// adapter receives the timed context, so exceeding the deadline cancels
// upstream work instead of merely abandoning the wait.
func (r *Router) callWithTimeout(ctx context.Context, a adapter.Adapter, req adapter.CallRequest, timeout time.Duration) (*core.Payload, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		payload *core.Payload
		err     error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- result{nil, errors.New(errors.CodeInternal,
					fmt.Sprintf("adapter panic: %v", rec), nil)}
			}
		}()
		payload, err := a.Call(ctx, req)
		done <- result{payload, err}
	}()

	select {
	case <-ctx.Done():
		return nil, errors.New(errors.CodeNetworkTimeout,
			"call exceeded timeout", ctx.Err()).
			WithContext("timeout", timeout.String())
	case res := <-done:
		return res.payload, res.err
	}
}
