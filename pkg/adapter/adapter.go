// Package adapter defines the uniform call contract implemented by each
// backend AI service, plus testing doubles.
package adapter

import (
	"context"
	"time"

	"github.com/pulsewatch/airouter/pkg/core"
)

// CallRequest is the input handed to one adapter call. The timeout is a
// hint for the backend; the router enforces its own hard deadline on the
// context regardless.
type CallRequest struct {
	ID      string         `json:"id"`
	Query   string         `json:"query"`
	Context map[string]any `json:"context,omitempty"`
	Timeout time.Duration  `json:"-"`
}

// Adapter is implemented once per backend service. Implementations must
// return an error on any failure rather than an empty success, honor
// context cancellation, and decode the backend's payload into the typed
// variant matching their Kind.
type Adapter interface {
	// ID returns the service identifier the adapter is registered under.
	ID() core.ServiceID

	// Kind returns the service family, driving timeouts and response mode.
	Kind() core.Kind

	// Call performs one backend request.
	Call(ctx context.Context, req CallRequest) (*core.Payload, error)
}
