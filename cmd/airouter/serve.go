package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/pulsewatch/airouter/pkg/breaker"
	"github.com/pulsewatch/airouter/pkg/core"
	"github.com/pulsewatch/airouter/pkg/errors"
	"github.com/pulsewatch/airouter/pkg/health"
)

func runServe(ctx context.Context, configPath string) error {
	a, err := buildApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.close(shutdownCtx)
	}()

	go a.reportBreakerStates(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/query", a.handleQuery)
	mux.HandleFunc("GET /v1/services", a.handleServices)
	mux.HandleFunc("GET /healthz", a.handleHealthz)

	srv := &http.Server{
		Addr:    a.cfg.Server.Addr,
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// queryBody is the caller-facing request shape. Services and fallback
// default to the configured sets when omitted.
type queryBody struct {
	Query     string         `json:"query"`
	Services  []string       `json:"services,omitempty"`
	Fallback  []string       `json:"fallback,omitempty"`
	Parallel  bool           `json:"parallel"`
	Context   map[string]any `json:"context,omitempty"`
	TimeoutMs int64          `json:"timeout_ms,omitempty"`
}

func (a *app) handleQuery(w http.ResponseWriter, r *http.Request) {
	var body queryBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.Query == "" {
		httpError(w, http.StatusBadRequest, "query is required")
		return
	}

	req := core.NewRequest(body.Query, a.resolveServices(body.Services, a.targets)...)
	req.FallbackChain = a.resolveServices(body.Fallback, a.fallback)
	req.Parallel = body.Parallel
	req.Context = body.Context
	if body.TimeoutMs > 0 {
		req.Deadline = time.Now().Add(time.Duration(body.TimeoutMs) * time.Millisecond)
	}

	resp := a.router.Route(r.Context(), req)
	writeJSON(w, http.StatusOK, resp)
}

func (a *app) resolveServices(requested []string, defaults []core.ServiceID) []core.ServiceID {
	if len(requested) == 0 {
		return defaults
	}
	out := make([]core.ServiceID, len(requested))
	for i, id := range requested {
		out[i] = core.ServiceID(id)
	}
	return out
}

// serviceStatus is the diagnostics view for one service.
type serviceStatus struct {
	ServiceID    core.ServiceID      `json:"service_id"`
	State        breaker.State       `json:"state"`
	FailureCount int                 `json:"failure_count"`
	SuccessCount int                 `json:"success_count"`
	RecentErrors []*errors.RouteError `json:"recent_errors,omitempty"`
}

func (a *app) handleServices(w http.ResponseWriter, r *http.Request) {
	snaps := a.router.Breakers().Snapshots()
	out := make([]serviceStatus, len(snaps))
	for i, s := range snaps {
		out[i] = serviceStatus{
			ServiceID:    s.ServiceID,
			State:        s.State,
			FailureCount: s.FailureCount,
			SuccessCount: s.SuccessCount,
			RecentErrors: a.router.Normalizer().History(string(s.ServiceID)),
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *app) handleHealthz(w http.ResponseWriter, r *http.Request) {
	results, overall := a.health.CheckAll(r.Context())
	status := http.StatusOK
	if overall == health.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"status":     overall,
		"components": results,
	})
}

// reportBreakerStates feeds the breaker state gauge on a fixed cadence.
func (a *app) reportBreakerStates(ctx context.Context) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, s := range a.router.Breakers().Snapshots() {
				a.metrics.RecordBreakerState(ctx, string(s.ServiceID), breakerStateValue(s.State))
			}
		}
	}
}

func breakerStateValue(s breaker.State) int64 {
	switch s {
	case breaker.StateOpen:
		return 0
	case breaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response failed", "error", err)
	}
}

func httpError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
