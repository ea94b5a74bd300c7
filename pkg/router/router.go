// Package router implements the distributed AI request router: it fans
// one query out to heterogeneous backend services under bounded
// concurrency, applies per-service circuit breaking, timeouts, caching
// and fallback chains, and returns one unified response.
package router

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/pulsewatch/airouter/pkg/adapter"
	"github.com/pulsewatch/airouter/pkg/breaker"
	"github.com/pulsewatch/airouter/pkg/cache"
	"github.com/pulsewatch/airouter/pkg/core"
	"github.com/pulsewatch/airouter/pkg/errors"
	"github.com/pulsewatch/airouter/pkg/format"
	"github.com/pulsewatch/airouter/pkg/telemetry"
)

// Config controls routing behavior.
type Config struct {
	// MaxConcurrency bounds in-flight adapter calls in parallel mode.
	MaxConcurrency int

	// CacheTTL is how long a routing result stays cached.
	CacheTTL time.Duration

	// VectorTimeout is the per-call timeout for vector-kind services.
	VectorTimeout time.Duration

	// FunctionTimeout is the per-call timeout for function-kind services.
	FunctionTimeout time.Duration

	// ServiceTimeouts overrides the kind default per service.
	ServiceTimeouts map[core.ServiceID]time.Duration
}

// DefaultConfig returns the default routing knobs.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency:  3,
		CacheTTL:        5 * time.Minute,
		VectorTimeout:   3 * time.Second,
		FunctionTimeout: 5 * time.Second,
	}
}

// Deps are the collaborators a Router needs. All shared mutable state
// (breakers, cache) is constructed once at process start and injected
// here; the router holds no global singletons.
type Deps struct {
	// Breakers is the per-service circuit breaker registry. Defaults
	// to a fresh registry with default thresholds.
	Breakers *breaker.Registry

	// Cache is the edge cache backing store. Nil disables caching.
	Cache cache.Store

	// Normalizer maps raw adapter failures into the error taxonomy.
	// Defaults to a fresh normalizer.
	Normalizer *errors.Normalizer

	// Formatter merges per-service responses. Defaults to the default
	// priority order.
	Formatter *format.Formatter

	// Metrics is optional; nil disables metric recording.
	Metrics *telemetry.RouterMetrics
}

// Router dispatches requests to registered adapters. Safe for
// concurrent use; Register must complete before Route is called.
type Router struct {
	cfg       Config
	adapters  map[core.ServiceID]adapter.Adapter
	breakers  *breaker.Registry
	store     cache.Store
	norm      *errors.Normalizer
	formatter *format.Formatter
	metrics   *telemetry.RouterMetrics
	tracer    trace.Tracer
}

// New creates a Router, filling zero config values and missing deps
// with defaults.
func New(cfg Config, deps Deps) *Router {
	def := DefaultConfig()
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = def.MaxConcurrency
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = def.CacheTTL
	}
	if cfg.VectorTimeout <= 0 {
		cfg.VectorTimeout = def.VectorTimeout
	}
	if cfg.FunctionTimeout <= 0 {
		cfg.FunctionTimeout = def.FunctionTimeout
	}
	if deps.Breakers == nil {
		deps.Breakers = breaker.NewRegistry(breaker.DefaultConfig())
	}
	if deps.Normalizer == nil {
		deps.Normalizer = errors.NewNormalizer()
	}
	if deps.Formatter == nil {
		deps.Formatter = format.New(format.Config{})
	}

	return &Router{
		cfg:       cfg,
		adapters:  make(map[core.ServiceID]adapter.Adapter),
		breakers:  deps.Breakers,
		store:     deps.Cache,
		norm:      deps.Normalizer,
		formatter: deps.Formatter,
		metrics:   deps.Metrics,
		tracer:    otel.Tracer("airouter/router"),
	}
}

// Register adds an adapter under its ServiceID, replacing any previous
// registration.
func (r *Router) Register(a adapter.Adapter) {
	r.adapters[a.ID()] = a
}

// Breakers exposes the breaker registry for diagnostics.
func (r *Router) Breakers() *breaker.Registry { return r.breakers }

// Normalizer exposes the error normalizer for diagnostics.
func (r *Router) Normalizer() *errors.Normalizer { return r.norm }

// Route answers one request. It never returns an error: every failure
// is captured in the response's per-service entries, and a routing-level
// panic degrades to a generic failed response.
func (r *Router) Route(ctx context.Context, req *core.Request) (out *core.UnifiedResponse) {
	start := time.Now()
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	defer func() {
		if rec := recover(); rec != nil {
			slog.ErrorContext(ctx, "routing panic recovered",
				"request_id", req.ID, "panic", rec)
			out = failedResponse(req, start)
		}
		r.metrics.RecordRoute(ctx, out.Success, out.Metadata.CacheHit,
			out.Metadata.FallbackUsed, time.Since(start))
	}()

	ctx, span := r.tracer.Start(ctx, "router.route",
		trace.WithAttributes(
			attribute.String("request.id", req.ID),
			attribute.Int("request.targets", len(req.TargetServices)),
			attribute.Bool("request.parallel", req.Parallel),
		))
	defer span.End()

	if !req.Deadline.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, req.Deadline)
		defer cancel()
	}

	key := cache.Key(req.Query, req.TargetServices)
	if cached := r.cacheLookup(ctx, key, req, start); cached != nil {
		return cached
	}

	st := newRouteState(req)
	if req.Parallel {
		r.dispatchParallel(ctx, req, req.TargetServices, st)
	} else {
		r.dispatchSequential(ctx, req, req.TargetServices, st)
	}

	if !st.anySuccess() && len(req.FallbackChain) > 0 {
		slog.InfoContext(ctx, "primary services exhausted, trying fallback chain",
			"request_id", req.ID, "chain_len", len(req.FallbackChain))
		st.fallbackUsed = r.dispatchFallback(ctx, req, st)
	}

	out = r.formatter.Format(req, st.responses, format.Meta{
		Start:        start,
		Path:         st.path,
		PerService:   st.timings(),
		FallbackUsed: st.fallbackUsed,
		Kinds:        r.kinds(),
	})

	if out.Success && r.store != nil {
		r.cacheStore(ctx, key, out)
	}
	return out
}

// cacheLookup replays a cached unified response, skipping all adapter
// calls on a hit.
func (r *Router) cacheLookup(ctx context.Context, key string, req *core.Request, start time.Time) *core.UnifiedResponse {
	if r.store == nil {
		return nil
	}
	raw, err := r.store.Get(ctx, key)
	if err != nil {
		if err != cache.ErrMiss {
			slog.WarnContext(ctx, "cache lookup failed", "error", err)
		}
		return nil
	}

	var cached core.UnifiedResponse
	if err := json.Unmarshal(raw, &cached); err != nil {
		slog.WarnContext(ctx, "dropping undecodable cache entry", "key", key, "error", err)
		_ = r.store.Delete(ctx, key)
		return nil
	}

	cached.RequestID = req.ID
	cached.Metadata.CacheHit = true
	cached.Processing.TotalTimeMs = time.Since(start).Milliseconds()
	cached.Processing.RoutingPath = []string{core.RoutingPathCacheHit}
	cached.Processing.PerService = nil
	cached.Processing.ThinkingSteps = nil
	r.metrics.RecordCacheHit(ctx)
	return &cached
}

func (r *Router) cacheStore(ctx context.Context, key string, out *core.UnifiedResponse) {
	raw, err := json.Marshal(out)
	if err != nil {
		slog.WarnContext(ctx, "cannot serialize response for cache", "error", err)
		return
	}
	if err := r.store.Set(ctx, key, raw, r.cfg.CacheTTL); err != nil {
		slog.WarnContext(ctx, "cache store failed", "error", err)
	}
}

// kinds maps each registered service to its family for the formatter.
func (r *Router) kinds() map[core.ServiceID]core.Kind {
	out := make(map[core.ServiceID]core.Kind, len(r.adapters))
	for id, a := range r.adapters {
		out[id] = a.Kind()
	}
	return out
}

// timeoutFor returns the hard per-call timeout for a service.
func (r *Router) timeoutFor(id core.ServiceID, a adapter.Adapter) time.Duration {
	if d, ok := r.cfg.ServiceTimeouts[id]; ok && d > 0 {
		return d
	}
	if a != nil && a.Kind() == core.KindVector {
		return r.cfg.VectorTimeout
	}
	return r.cfg.FunctionTimeout
}

// failedResponse is the terminal degradation path for routing-level
// failures.
func failedResponse(req *core.Request, start time.Time) *core.UnifiedResponse {
	return &core.UnifiedResponse{
		RequestID: req.ID,
		Answer:    "The request could not be routed. Please try again later.",
		Processing: core.ProcessingInfo{
			TotalTimeMs: time.Since(start).Milliseconds(),
			RoutingPath: []string{},
		},
		Metadata: core.UnifiedMeta{Mode: core.ModeRemote},
	}
}
