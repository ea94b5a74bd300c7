// Package httpfn adapts a remote function-style NLP or analytics
// service speaking JSON over HTTP to the router's adapter contract.
package httpfn

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pulsewatch/airouter/pkg/adapter"
	"github.com/pulsewatch/airouter/pkg/core"
	"github.com/pulsewatch/airouter/pkg/errors"
)

// Config locates the function endpoint.
type Config struct {
	Endpoint string
	APIKey   string
}

// Adapter is a generic remote-function service adapter.
type Adapter struct {
	service core.ServiceID
	cfg     Config
	client  *http.Client
}

// New returns an adapter calling the configured endpoint under the
// given ServiceID.
func New(service core.ServiceID, cfg Config) *Adapter {
	return &Adapter{
		service: service,
		cfg:     cfg,
		client:  &http.Client{},
	}
}

func (a *Adapter) ID() core.ServiceID { return a.service }

func (a *Adapter) Kind() core.Kind { return core.KindFunction }

type callBody struct {
	ID        string         `json:"id"`
	Query     string         `json:"query"`
	Context   map[string]any `json:"context,omitempty"`
	TimeoutMs int64          `json:"timeout_ms,omitempty"`
}

type callResult struct {
	Answer     string         `json:"answer"`
	Confidence float64        `json:"confidence"`
	Data       map[string]any `json:"data,omitempty"`
}

// Call implements adapter.Adapter. Non-2xx statuses surface as
// StatusCoder errors so the normalizer can map them without guessing
// from message text.
func (a *Adapter) Call(ctx context.Context, req adapter.CallRequest) (*core.Payload, error) {
	body, err := json.Marshal(callBody{
		ID:        req.ID,
		Query:     req.Query,
		Context:   req.Context,
		TimeoutMs: durationMs(req.Timeout),
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if a.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call function backend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &errors.StatusError{
			Status:  resp.StatusCode,
			Message: string(msg),
		}
	}

	var result callResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &core.Payload{
		Kind: core.KindFunction,
		Function: &core.FunctionResult{
			Answer:     result.Answer,
			Confidence: result.Confidence,
			Data:       result.Data,
		},
	}, nil
}

func durationMs(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return d.Milliseconds()
}
