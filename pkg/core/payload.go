package core

import (
	"strings"
	"time"

	"github.com/pulsewatch/airouter/pkg/errors"
)

// Payload is the service-specific result of one adapter call, modeled as
// a tagged union: exactly one variant is set, matching the adapter's Kind.
// Variants are decoded at the adapter boundary so the router never
// carries untyped blobs.
type Payload struct {
	Kind     Kind            `json:"kind"`
	Vector   *VectorResult   `json:"vector,omitempty"`
	Function *FunctionResult `json:"function,omitempty"`
}

// VectorResult is the payload shape for similarity-search services.
type VectorResult struct {
	Results      []VectorMatch `json:"results"`
	TotalResults int           `json:"total_results"`
}

// VectorMatch is one scored document from a vector search.
type VectorMatch struct {
	ID         string         `json:"id"`
	Content    string         `json:"content"`
	Similarity float64        `json:"similarity"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// FunctionResult is the payload shape for remote function-style services.
type FunctionResult struct {
	Answer     string         `json:"answer"`
	Confidence float64        `json:"confidence,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
}

// Empty reports whether the payload carries no usable answer. Sequential
// dispatch treats an empty success as a miss and keeps trying.
func (p *Payload) Empty() bool {
	if p == nil {
		return true
	}
	switch p.Kind {
	case KindVector:
		return p.Vector == nil || len(p.Vector.Results) == 0
	case KindFunction:
		return p.Function == nil || strings.TrimSpace(p.Function.Answer) == ""
	}
	return true
}

// ServiceResponse is the outcome of one adapter call. Produced once per
// call, immutable afterwards, owned by the router for the duration of one
// request and handed to the formatter.
type ServiceResponse struct {
	RequestID     string             `json:"request_id"`
	ServiceID     ServiceID          `json:"service_id"`
	Success       bool               `json:"success"`
	Payload       *Payload           `json:"payload,omitempty"`
	Error         *errors.RouteError `json:"error,omitempty"`
	Metadata      ResponseMeta       `json:"metadata"`
	ThinkingSteps []*ThinkingStep    `json:"thinking_steps,omitempty"`
}

// NewServiceResponse starts a response for one adapter call.
func NewServiceResponse(requestID string, service ServiceID) *ServiceResponse {
	return &ServiceResponse{
		RequestID: requestID,
		ServiceID: service,
		Metadata:  ResponseMeta{Timestamp: time.Now()},
	}
}

// AddStep appends a thinking step and returns it for completion.
func (r *ServiceResponse) AddStep(label string) *ThinkingStep {
	step := NewThinkingStep(r.ServiceID, label)
	r.ThinkingSteps = append(r.ThinkingSteps, step)
	return step
}
