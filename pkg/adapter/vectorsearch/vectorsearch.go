// Package vectorsearch adapts a Qdrant collection to the router's
// adapter contract: the query is embedded, searched, and the scored
// matches are decoded into the vector payload variant.
package vectorsearch

import (
	"context"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/pulsewatch/airouter/pkg/adapter"
	"github.com/pulsewatch/airouter/pkg/core"
)

// Embedder converts query text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EmbedderFunc wraps a function as an Embedder.
type EmbedderFunc func(ctx context.Context, text string) ([]float32, error)

func (f EmbedderFunc) Embed(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}

// Config locates the backing collection and bounds the search.
type Config struct {
	Addr           string
	Collection     string
	Limit          int
	ScoreThreshold float32
}

// Adapter is the vector-search service adapter.
type Adapter struct {
	service  core.ServiceID
	client   pb.PointsClient
	cfg      Config
	embedder Embedder
}

// New connects to Qdrant and returns an adapter registered under the
// given ServiceID.
func New(service core.ServiceID, cfg Config, embedder Embedder) (*Adapter, error) {
	if cfg.Limit <= 0 {
		cfg.Limit = 5
	}
	conn, err := grpc.NewClient(cfg.Addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("connect qdrant: %w", err)
	}
	return &Adapter{
		service:  service,
		client:   pb.NewPointsClient(conn),
		cfg:      cfg,
		embedder: embedder,
	}, nil
}

func (a *Adapter) ID() core.ServiceID { return a.service }

func (a *Adapter) Kind() core.Kind { return core.KindVector }

// Call implements adapter.Adapter.
func (a *Adapter) Call(ctx context.Context, req adapter.CallRequest) (*core.Payload, error) {
	vector, err := a.embedder.Embed(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var threshold *float32
	if a.cfg.ScoreThreshold > 0 {
		threshold = &a.cfg.ScoreThreshold
	}
	resp, err := a.client.Search(ctx, &pb.SearchPoints{
		CollectionName: a.cfg.Collection,
		Vector:         vector,
		Limit:          uint64(a.cfg.Limit),
		ScoreThreshold: threshold,
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("search points: %w", err)
	}

	matches := make([]core.VectorMatch, len(resp.Result))
	for i, r := range resp.Result {
		matches[i] = decodeMatch(r)
	}
	return &core.Payload{
		Kind: core.KindVector,
		Vector: &core.VectorResult{
			Results:      matches,
			TotalResults: len(matches),
		},
	}, nil
}

// decodeMatch flattens one scored point into the payload shape. The
// "content" payload field becomes the match content; everything else is
// kept as metadata.
func decodeMatch(r *pb.ScoredPoint) core.VectorMatch {
	match := core.VectorMatch{
		Similarity: float64(r.Score),
	}
	if r.Id.GetUuid() != "" {
		match.ID = r.Id.GetUuid()
	} else {
		match.ID = fmt.Sprintf("%d", r.Id.GetNum())
	}

	meta := make(map[string]any)
	for key, v := range r.Payload {
		var val any
		switch kind := v.GetKind().(type) {
		case *pb.Value_StringValue:
			val = kind.StringValue
		case *pb.Value_IntegerValue:
			val = kind.IntegerValue
		case *pb.Value_DoubleValue:
			val = kind.DoubleValue
		case *pb.Value_BoolValue:
			val = kind.BoolValue
		default:
			continue
		}
		if key == "content" {
			if s, ok := val.(string); ok {
				match.Content = s
				continue
			}
		}
		meta[key] = val
	}
	if len(meta) > 0 {
		match.Metadata = meta
	}
	return match
}
