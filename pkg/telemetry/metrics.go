// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/pulsewatch/airouter/pkg/errors"
)

// RouterMetrics tracks routing throughput, cache effectiveness, service
// failures and breaker state for production monitoring. A nil
// *RouterMetrics is valid and records nothing, so callers never guard.
type RouterMetrics struct {
	// routeCounter tracks routing calls by outcome
	routeCounter metric.Int64Counter

	// routeLatency tracks end-to-end routing duration
	routeLatency metric.Float64Histogram

	// cacheHitCounter tracks requests served from the edge cache
	cacheHitCounter metric.Int64Counter

	// serviceErrorCounter tracks normalized failures by service and code
	serviceErrorCounter metric.Int64Counter

	// breakerStateGauge tracks breaker state per service
	// (0=open, 1=half-open, 2=closed)
	breakerStateGauge metric.Int64Gauge

	// inFlightGauge tracks concurrent adapter calls
	inFlightGauge metric.Int64UpDownCounter
}

// NewRouterMetrics creates the routing meters.
func NewRouterMetrics() (*RouterMetrics, error) {
	meter := otel.Meter("airouter/router")

	routeCounter, err := meter.Int64Counter(
		"airouter.routes.total",
		metric.WithDescription("Routing calls by outcome"),
	)
	if err != nil {
		return nil, err
	}

	routeLatency, err := meter.Float64Histogram(
		"airouter.routes.duration",
		metric.WithDescription("End-to-end routing duration"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	cacheHitCounter, err := meter.Int64Counter(
		"airouter.cache.hits",
		metric.WithDescription("Requests served from the edge cache"),
	)
	if err != nil {
		return nil, err
	}

	serviceErrorCounter, err := meter.Int64Counter(
		"airouter.services.errors",
		metric.WithDescription("Normalized service failures by code"),
	)
	if err != nil {
		return nil, err
	}

	breakerStateGauge, err := meter.Int64Gauge(
		"airouter.breaker.state",
		metric.WithDescription("Circuit breaker state per service (0=open, 1=half-open, 2=closed)"),
	)
	if err != nil {
		return nil, err
	}

	inFlightGauge, err := meter.Int64UpDownCounter(
		"airouter.calls.in_flight",
		metric.WithDescription("Concurrent adapter calls"),
	)
	if err != nil {
		return nil, err
	}

	return &RouterMetrics{
		routeCounter:        routeCounter,
		routeLatency:        routeLatency,
		cacheHitCounter:     cacheHitCounter,
		serviceErrorCounter: serviceErrorCounter,
		breakerStateGauge:   breakerStateGauge,
		inFlightGauge:       inFlightGauge,
	}, nil
}

// RecordRoute records one finished routing call.
func (rm *RouterMetrics) RecordRoute(ctx context.Context, success, cacheHit, fallback bool, d time.Duration) {
	if rm == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.Bool("success", success),
		attribute.Bool("cache_hit", cacheHit),
		attribute.Bool("fallback_used", fallback),
	)
	rm.routeCounter.Add(ctx, 1, attrs)
	rm.routeLatency.Record(ctx, float64(d.Milliseconds()), attrs)
}

// RecordCacheHit records one cache-served request.
func (rm *RouterMetrics) RecordCacheHit(ctx context.Context) {
	if rm == nil {
		return
	}
	rm.cacheHitCounter.Add(ctx, 1)
}

// RecordServiceError records one normalized service failure.
func (rm *RouterMetrics) RecordServiceError(ctx context.Context, service string, re *errors.RouteError) {
	if rm == nil || re == nil {
		return
	}
	rm.serviceErrorCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("service.id", service),
			attribute.String("error.code", string(re.Code)),
			attribute.String("recoverable", re.RecoverableString()),
		),
	)
}

// RecordBreakerState records a breaker state observation for a service.
func (rm *RouterMetrics) RecordBreakerState(ctx context.Context, service string, state int64) {
	if rm == nil {
		return
	}
	rm.breakerStateGauge.Record(ctx, state,
		metric.WithAttributes(attribute.String("service.id", service)),
	)
}

// AddInFlight adjusts the concurrent adapter call gauge.
func (rm *RouterMetrics) AddInFlight(ctx context.Context, delta int64) {
	if rm == nil {
		return
	}
	rm.inFlightGauge.Add(ctx, delta)
}
