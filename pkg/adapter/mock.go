package adapter

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pulsewatch/airouter/pkg/core"
)

// Mock is a testing implementation of Adapter.
type Mock struct {
	Service  core.ServiceID
	Family   core.Kind
	Payload  *core.Payload
	Err      error
	Delay    time.Duration
	CallFunc func(ctx context.Context, req CallRequest) (*core.Payload, error)

	calls atomic.Int64
}

func (m *Mock) ID() core.ServiceID { return m.Service }

func (m *Mock) Kind() core.Kind {
	if m.Family == "" {
		return core.KindFunction
	}
	return m.Family
}

func (m *Mock) Call(ctx context.Context, req CallRequest) (*core.Payload, error) {
	m.calls.Add(1)
	if m.CallFunc != nil {
		return m.CallFunc(ctx, req)
	}
	if m.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.Delay):
		}
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Payload != nil {
		return m.Payload, nil
	}
	return &core.Payload{
		Kind:     m.Kind(),
		Function: &core.FunctionResult{Answer: "mock answer", Confidence: 0.9},
	}, nil
}

// Calls returns how many times Call was invoked.
func (m *Mock) Calls() int64 { return m.calls.Load() }

// FailingMock always fails.
type FailingMock struct {
	Service core.ServiceID
	Family  core.Kind
	Err     error

	calls atomic.Int64
}

func (f *FailingMock) ID() core.ServiceID { return f.Service }

func (f *FailingMock) Kind() core.Kind {
	if f.Family == "" {
		return core.KindFunction
	}
	return f.Family
}

func (f *FailingMock) Call(ctx context.Context, req CallRequest) (*core.Payload, error) {
	f.calls.Add(1)
	if f.Err == nil {
		return nil, fmt.Errorf("mock error")
	}
	return nil, f.Err
}

// Calls returns how many times Call was invoked.
func (f *FailingMock) Calls() int64 { return f.calls.Load() }

// VectorPayload builds a vector payload from (content, similarity) pairs
// for tests.
func VectorPayload(matches ...core.VectorMatch) *core.Payload {
	return &core.Payload{
		Kind: core.KindVector,
		Vector: &core.VectorResult{
			Results:      matches,
			TotalResults: len(matches),
		},
	}
}

// FunctionPayload builds a function payload for tests.
func FunctionPayload(answer string, confidence float64) *core.Payload {
	return &core.Payload{
		Kind:     core.KindFunction,
		Function: &core.FunctionResult{Answer: answer, Confidence: confidence},
	}
}
