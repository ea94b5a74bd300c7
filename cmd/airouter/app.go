package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/pulsewatch/airouter/pkg/adapter"
	"github.com/pulsewatch/airouter/pkg/adapter/httpfn"
	"github.com/pulsewatch/airouter/pkg/adapter/vectorsearch"
	"github.com/pulsewatch/airouter/pkg/breaker"
	"github.com/pulsewatch/airouter/pkg/cache"
	"github.com/pulsewatch/airouter/pkg/cache/sqlitestore"
	"github.com/pulsewatch/airouter/pkg/config"
	"github.com/pulsewatch/airouter/pkg/core"
	"github.com/pulsewatch/airouter/pkg/errors"
	"github.com/pulsewatch/airouter/pkg/format"
	"github.com/pulsewatch/airouter/pkg/health"
	"github.com/pulsewatch/airouter/pkg/router"
	"github.com/pulsewatch/airouter/pkg/telemetry"
)

// app holds the wired process: one router, one breaker registry, one
// cache, constructed once at startup and shared by every request.
type app struct {
	cfg      *config.Config
	router   *router.Router
	metrics  *telemetry.RouterMetrics
	health   *health.Registry
	targets  []core.ServiceID
	fallback []core.ServiceID
	shutdown []func(context.Context) error
}

func buildApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	telemetry.ConfigureSlog(os.Stderr, cfg.Log.Level, cfg.Log.Format)

	a := &app{cfg: cfg}

	otelShutdown, err := telemetry.Init("airouter", version, telemetry.Config{
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
	})
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	a.shutdown = append(a.shutdown, otelShutdown)

	metrics, err := telemetry.NewRouterMetrics()
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	a.metrics = metrics

	store, err := a.buildCache(ctx)
	if err != nil {
		return nil, err
	}

	priority := make([]core.ServiceID, len(cfg.Format.Priority))
	for i, id := range cfg.Format.Priority {
		priority[i] = core.ServiceID(id)
	}

	rtr := router.New(
		router.Config{
			MaxConcurrency:  cfg.Router.MaxConcurrency,
			CacheTTL:        time.Duration(cfg.Router.CacheTTLSeconds) * time.Second,
			VectorTimeout:   time.Duration(cfg.Router.VectorTimeoutMs) * time.Millisecond,
			FunctionTimeout: time.Duration(cfg.Router.FunctionTimeoutMs) * time.Millisecond,
			ServiceTimeouts: serviceTimeouts(cfg.Services),
		},
		router.Deps{
			Breakers: breaker.NewRegistry(breaker.Config{
				FailureThreshold: cfg.Breaker.FailureThreshold,
				ResetTimeout:     time.Duration(cfg.Breaker.ResetTimeoutSecond) * time.Second,
			}),
			Cache:      store,
			Normalizer: errors.NewNormalizer(),
			Formatter: format.New(format.Config{
				Priority:          priority,
				DefaultConfidence: cfg.Format.DefaultConfidence,
			}),
			Metrics: metrics,
		},
	)
	a.router = rtr

	if err := a.registerServices(rtr); err != nil {
		return nil, err
	}

	a.health = health.NewRegistry()
	for name := range cfg.Services {
		a.health.Register(name, health.Breaker(rtr.Breakers(), core.ServiceID(name)))
	}
	if c, ok := store.(*cache.Cache); ok {
		a.health.Register("cache", health.Cache(func() (int, int64) {
			st := c.Stats()
			return st.Items, st.Bytes
		}))
	}

	slog.Info("router ready",
		"services", len(cfg.Services),
		"cache_enabled", cfg.Cache.Enabled,
		"max_concurrency", cfg.Router.MaxConcurrency)
	return a, nil
}

func (a *app) buildCache(ctx context.Context) (cache.Store, error) {
	if !a.cfg.Cache.Enabled {
		return nil, nil
	}
	switch a.cfg.Cache.Backend {
	case "", "memory":
		c := cache.New(cache.Config{
			MaxItems:      a.cfg.Cache.MaxItems,
			MaxBytes:      a.cfg.Cache.MaxBytes,
			DefaultTTL:    time.Duration(a.cfg.Router.CacheTTLSeconds) * time.Second,
			SweepInterval: time.Duration(a.cfg.Cache.SweepSeconds) * time.Second,
		})
		c.StartSweeper(ctx)
		return c, nil
	case "sqlite":
		store, err := sqlitestore.Open(a.cfg.Cache.Path)
		if err != nil {
			return nil, fmt.Errorf("open cache store: %w", err)
		}
		a.shutdown = append(a.shutdown, func(context.Context) error {
			return store.Close()
		})
		return store, nil
	default:
		return nil, fmt.Errorf("unknown cache backend: %s", a.cfg.Cache.Backend)
	}
}

// registerServices builds one adapter per configured service and splits
// the set into default targets and the fallback chain.
func (a *app) registerServices(rtr *router.Router) error {
	for name, svc := range a.cfg.Services {
		id := core.ServiceID(name)
		var (
			ad  adapter.Adapter
			err error
		)
		switch svc.Kind {
		case "vector":
			ad, err = vectorsearch.New(id, vectorsearch.Config{
				Addr:       svc.Endpoint,
				Collection: svc.Collection,
			}, vectorsearch.NewOllamaEmbedder(svc.EmbedderBaseURL, svc.EmbedderModel))
		case "", "function":
			ad = httpfn.New(id, httpfn.Config{
				Endpoint: svc.Endpoint,
				APIKey:   svc.APIKey,
			})
		default:
			err = fmt.Errorf("unknown service kind: %s", svc.Kind)
		}
		if err != nil {
			return fmt.Errorf("service %s: %w", name, err)
		}
		rtr.Register(ad)
		if svc.Fallback {
			a.fallback = append(a.fallback, id)
		} else {
			a.targets = append(a.targets, id)
		}
	}
	// Map iteration order is random; dispatch order follows the
	// configured priority list.
	a.sortByPriority(a.targets)
	a.sortByPriority(a.fallback)
	return nil
}

func (a *app) sortByPriority(ids []core.ServiceID) {
	rank := func(id core.ServiceID) int {
		for i, p := range a.cfg.Format.Priority {
			if p == string(id) {
				return i
			}
		}
		return len(a.cfg.Format.Priority)
	}
	sort.SliceStable(ids, func(i, j int) bool {
		ri, rj := rank(ids[i]), rank(ids[j])
		if ri != rj {
			return ri < rj
		}
		return ids[i] < ids[j]
	})
}

func (a *app) close(ctx context.Context) {
	for i := len(a.shutdown) - 1; i >= 0; i-- {
		if err := a.shutdown[i](ctx); err != nil {
			slog.Warn("shutdown step failed", "error", err)
		}
	}
}

func serviceTimeouts(services map[string]config.ServiceConfig) map[core.ServiceID]time.Duration {
	out := make(map[core.ServiceID]time.Duration, len(services))
	for name, svc := range services {
		if svc.TimeoutMs > 0 {
			out[core.ServiceID(name)] = time.Duration(svc.TimeoutMs) * time.Millisecond
		}
	}
	return out
}
