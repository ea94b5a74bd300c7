// Package core defines the shared data model for the request router:
// requests, per-service responses, thinking steps and the unified
// response returned to callers.
package core

import (
	"time"

	"github.com/google/uuid"
)

// ServiceID identifies a backend AI service. New services are added by
// registering an adapter under a new ServiceID, never by subclassing.
type ServiceID string

const (
	ServiceVectorSearch       ServiceID = "vector-search"
	ServiceNLPFunctionA       ServiceID = "nlp-function-a"
	ServiceAnalyticsFunctionB ServiceID = "analytics-function-b"
)

// RoutingPathCacheHit marks a cache-served request in the routing path.
const RoutingPathCacheHit = "cache_hit"

// Kind classifies a service family. It drives default timeouts and the
// unified response's mode derivation.
type Kind string

const (
	// KindVector is a similarity-search style service (local-ish, fast).
	KindVector Kind = "vector"
	// KindFunction is a remote function-call style service (NLP, analytics).
	KindFunction Kind = "function"
)

// Request is one routing call. Immutable once created; one Request
// produces exactly one UnifiedResponse.
type Request struct {
	ID             string         `json:"id"`
	Query          string         `json:"query"`
	TargetServices []ServiceID    `json:"target_services"`
	FallbackChain  []ServiceID    `json:"fallback_chain,omitempty"`
	Parallel       bool           `json:"parallel"`
	Context        map[string]any `json:"context,omitempty"`
	Deadline       time.Time      `json:"deadline,omitzero"`
}

// NewRequest creates a Request with a generated ID targeting the given
// services in order.
func NewRequest(query string, targets ...ServiceID) *Request {
	return &Request{
		ID:             uuid.NewString(),
		Query:          query,
		TargetServices: targets,
	}
}

// StepStatus is the lifecycle state of a ThinkingStep.
type StepStatus string

const (
	StepProcessing StepStatus = "processing"
	StepCompleted  StepStatus = "completed"
	StepFailed     StepStatus = "failed"
)

// ThinkingStep is a timestamped diagnostic marker for one stage of a
// service's processing. Append-only per ServiceResponse; the formatter
// merges and time-orders steps across services.
type ThinkingStep struct {
	ID          string     `json:"id"`
	Label       string     `json:"label"`
	Description string     `json:"description,omitempty"`
	Status      StepStatus `json:"status"`
	ServiceID   ServiceID  `json:"service_id,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	Duration    int64      `json:"duration_ms,omitempty"`
}

// NewThinkingStep starts a step in the processing state.
func NewThinkingStep(service ServiceID, label string) *ThinkingStep {
	return &ThinkingStep{
		ID:        uuid.NewString(),
		Label:     label,
		Status:    StepProcessing,
		ServiceID: service,
		StartedAt: time.Now(),
	}
}

// Complete marks the step finished and records its duration.
func (s *ThinkingStep) Complete() {
	s.Status = StepCompleted
	s.Duration = time.Since(s.StartedAt).Milliseconds()
}

// Fail marks the step failed and records its duration.
func (s *ThinkingStep) Fail(desc string) {
	s.Status = StepFailed
	s.Description = desc
	s.Duration = time.Since(s.StartedAt).Milliseconds()
}

// ResponseMeta carries per-call bookkeeping for a ServiceResponse.
type ResponseMeta struct {
	ProcessingTimeMs int64     `json:"processing_time_ms"`
	CacheHit         bool      `json:"cache_hit"`
	Timestamp        time.Time `json:"timestamp"`
}

// Source is one piece of evidence contributing to the final answer.
type Source struct {
	Type      string  `json:"type"` // document, cache, function
	Content   string  `json:"content"`
	Relevance float64 `json:"relevance"`
}

// ServiceTiming records how one attempted service fared.
type ServiceTiming struct {
	ServiceID ServiceID `json:"service_id"`
	TimeMs    int64     `json:"time_ms"`
	Status    string    `json:"status"` // success, failed, skipped
}

// ProcessingInfo is the diagnostic section of a UnifiedResponse.
type ProcessingInfo struct {
	TotalTimeMs   int64           `json:"total_time_ms"`
	PerService    []ServiceTiming `json:"per_service"`
	ThinkingSteps []*ThinkingStep `json:"thinking_steps,omitempty"`
	RoutingPath   []string        `json:"routing_path"`
}

// ResponseMode tells the caller which kinds of services contributed.
type ResponseMode string

const (
	ModeLocal  ResponseMode = "local"
	ModeRemote ResponseMode = "remote"
	ModeHybrid ResponseMode = "hybrid"
)

// UnifiedMeta is the metadata section of a UnifiedResponse.
type UnifiedMeta struct {
	CacheHit     bool         `json:"cache_hit"`
	FallbackUsed bool         `json:"fallback_used"`
	Mode         ResponseMode `json:"mode"`
}

// UnifiedResponse is the terminal artifact of one routing call. The
// caller always receives one of these, never a raw error.
type UnifiedResponse struct {
	RequestID  string         `json:"request_id"`
	Success    bool           `json:"success"`
	Answer     string         `json:"answer"`
	Confidence float64        `json:"confidence"`
	Sources    []Source       `json:"sources,omitempty"`
	Processing ProcessingInfo `json:"processing"`
	Metadata   UnifiedMeta    `json:"metadata"`
}
