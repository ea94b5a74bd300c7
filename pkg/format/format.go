// Package format merges the per-service responses collected during one
// routing call into a single ranked, confidence-scored answer.
package format

import (
	"fmt"
	"sort"
	"time"

	"github.com/pulsewatch/airouter/pkg/core"
)

// vectorWeights weight the top similarity scores when scoring a vector
// response, best match first.
var vectorWeights = []float64{0.5, 0.3, 0.2}

const defaultFunctionConfidence = 0.75

// Config controls answer selection and scoring.
type Config struct {
	// Priority is the service order used to pick the main answer when
	// several services succeed. Services not listed rank after listed
	// ones in response order.
	Priority []core.ServiceID

	// DefaultConfidence applies to function responses whose adapter
	// supplied no confidence.
	DefaultConfidence float64
}

// DefaultConfig prefers vector search over the function services.
func DefaultConfig() Config {
	return Config{
		Priority: []core.ServiceID{
			core.ServiceVectorSearch,
			core.ServiceNLPFunctionA,
			core.ServiceAnalyticsFunctionB,
		},
		DefaultConfidence: defaultFunctionConfidence,
	}
}

// Meta carries the routing bookkeeping the formatter folds into the
// unified response.
type Meta struct {
	Start        time.Time
	Path         []string
	PerService   []core.ServiceTiming
	FallbackUsed bool
	Kinds        map[core.ServiceID]core.Kind
}

// Formatter builds UnifiedResponses. Stateless and safe for concurrent
// use.
type Formatter struct {
	cfg Config
}

// New creates a Formatter, falling back to defaults for zero config
// values.
func New(cfg Config) *Formatter {
	if len(cfg.Priority) == 0 {
		cfg.Priority = DefaultConfig().Priority
	}
	if cfg.DefaultConfidence <= 0 {
		cfg.DefaultConfidence = defaultFunctionConfidence
	}
	return &Formatter{cfg: cfg}
}

// Format merges all responses from one routing call. It never fails:
// when no service succeeded it synthesizes a generic failure answer with
// success=false.
func (f *Formatter) Format(req *core.Request, responses []*core.ServiceResponse, meta Meta) *core.UnifiedResponse {
	main := f.pickMain(responses)

	out := &core.UnifiedResponse{
		RequestID: req.ID,
		Processing: core.ProcessingInfo{
			TotalTimeMs:   time.Since(meta.Start).Milliseconds(),
			PerService:    meta.PerService,
			ThinkingSteps: mergeSteps(responses),
			RoutingPath:   meta.Path,
		},
		Metadata: core.UnifiedMeta{
			FallbackUsed: meta.FallbackUsed,
			Mode:         f.mode(responses, meta.Kinds),
		},
	}

	if main == nil {
		out.Answer = fmt.Sprintf("All services failed to answer %q. Please try again later.", req.Query)
		return out
	}

	out.Success = true
	out.Answer = answerOf(main)
	out.Confidence = f.overallConfidence(responses)
	out.Sources = f.sources(responses)
	return out
}

// pickMain selects the primary response: the first successful non-empty
// response in priority order, then the first successful one in attempt
// order, then nil.
func (f *Formatter) pickMain(responses []*core.ServiceResponse) *core.ServiceResponse {
	byID := make(map[core.ServiceID]*core.ServiceResponse, len(responses))
	for _, r := range responses {
		if r.Success && !r.Payload.Empty() {
			byID[r.ServiceID] = r
		}
	}
	for _, id := range f.cfg.Priority {
		if r, ok := byID[id]; ok {
			return r
		}
	}
	for _, r := range responses {
		if r.Success && !r.Payload.Empty() {
			return r
		}
	}
	return nil
}

func answerOf(r *core.ServiceResponse) string {
	switch r.Payload.Kind {
	case core.KindVector:
		return r.Payload.Vector.Results[0].Content
	case core.KindFunction:
		return r.Payload.Function.Answer
	}
	return ""
}

// serviceConfidence scores one successful response. Vector responses use
// a weighted average of the top similarity scores; function responses
// use the adapter-supplied confidence or the configured default.
func (f *Formatter) serviceConfidence(r *core.ServiceResponse) float64 {
	switch r.Payload.Kind {
	case core.KindVector:
		results := r.Payload.Vector.Results
		var sum, weight float64
		for i, match := range results {
			if i >= len(vectorWeights) {
				break
			}
			sum += vectorWeights[i] * match.Similarity
			weight += vectorWeights[i]
		}
		if weight == 0 {
			return 0
		}
		return clamp01(sum / weight)
	case core.KindFunction:
		if c := r.Payload.Function.Confidence; c > 0 {
			return clamp01(c)
		}
		return f.cfg.DefaultConfidence
	}
	return 0
}

// overallConfidence is the arithmetic mean across contributing services.
func (f *Formatter) overallConfidence(responses []*core.ServiceResponse) float64 {
	var sum float64
	var n int
	for _, r := range responses {
		if r.Success && !r.Payload.Empty() {
			sum += f.serviceConfidence(r)
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return clamp01(sum / float64(n))
}

// sources aggregates evidence from every successful response.
func (f *Formatter) sources(responses []*core.ServiceResponse) []core.Source {
	var out []core.Source
	for _, r := range responses {
		if !r.Success || r.Payload.Empty() {
			continue
		}
		switch r.Payload.Kind {
		case core.KindVector:
			for _, match := range r.Payload.Vector.Results {
				out = append(out, core.Source{
					Type:      "document",
					Content:   match.Content,
					Relevance: clamp01(match.Similarity),
				})
			}
		case core.KindFunction:
			out = append(out, core.Source{
				Type:      "function",
				Content:   r.Payload.Function.Answer,
				Relevance: f.serviceConfidence(r),
			})
		}
	}
	return out
}

// mergeSteps concatenates thinking steps across services, sorted
// ascending by start time.
func mergeSteps(responses []*core.ServiceResponse) []*core.ThinkingStep {
	var steps []*core.ThinkingStep
	for _, r := range responses {
		steps = append(steps, r.ThinkingSteps...)
	}
	sort.SliceStable(steps, func(i, j int) bool {
		return steps[i].StartedAt.Before(steps[j].StartedAt)
	})
	return steps
}

// mode derives the response mode from the kinds of services that
// contributed a successful answer, falling back to the kinds attempted.
func (f *Formatter) mode(responses []*core.ServiceResponse, kinds map[core.ServiceID]core.Kind) core.ResponseMode {
	var vector, function bool
	mark := func(r *core.ServiceResponse) {
		switch kinds[r.ServiceID] {
		case core.KindVector:
			vector = true
		case core.KindFunction:
			function = true
		}
	}
	for _, r := range responses {
		if r.Success && !r.Payload.Empty() {
			mark(r)
		}
	}
	if !vector && !function {
		for _, r := range responses {
			mark(r)
		}
	}
	switch {
	case vector && function:
		return core.ModeHybrid
	case vector:
		return core.ModeLocal
	default:
		return core.ModeRemote
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
