// SPDX-License-Identifier: Apache-2.0

package health

import (
	"context"
	"fmt"

	"github.com/pulsewatch/airouter/pkg/breaker"
	"github.com/pulsewatch/airouter/pkg/core"
)

// Breaker derives a service's health from its circuit state: closed is
// healthy, half-open is degraded, open is unhealthy.
func Breaker(reg *breaker.Registry, id core.ServiceID) Checker {
	return CheckerFunc(func(ctx context.Context) Result {
		res := Result{Status: StatusHealthy}
		switch reg.State(id) {
		case breaker.StateOpen:
			res.Status = StatusUnhealthy
			res.Message = "circuit open"
		case breaker.StateHalfOpen:
			res.Status = StatusDegraded
			res.Message = "circuit half-open, probing"
		}
		return res
	})
}

// Cache reports a cache store's item and byte usage. Always healthy;
// the message is informational.
func Cache(stats func() (items int, bytes int64)) Checker {
	return CheckerFunc(func(ctx context.Context) Result {
		items, bytes := stats()
		return Result{
			Status:  StatusHealthy,
			Message: fmt.Sprintf("%d items, %d bytes", items, bytes),
		}
	})
}
