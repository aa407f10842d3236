// Package qdrant implements vector.Repository on Qdrant's gRPC API.
package qdrant

import (
	"context"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/efebarandurmaz/hybridrag/internal/vector"
)

// Payload keys written with every point.
const (
	payloadContent = "content"
	payloadDocID   = "doc_id"
	payloadSeq     = "ingest_seq"
)

// Config holds connection parameters.
type Config struct {
	Host       string
	Port       int
	Collection string
}

// Repository implements vector.Repository using Qdrant.
type Repository struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	health      pb.QdrantClient
	collection  string
}

// New creates a Qdrant-backed repository. The connection is established
// lazily on first use.
func New(cfg Config) (*Repository, error) {
	if cfg.Collection == "" {
		return nil, fmt.Errorf("qdrant: collection name is required")
	}
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect: %w", err)
	}
	return newWithConn(conn, cfg.Collection), nil
}

func newWithConn(conn *grpc.ClientConn, collection string) *Repository {
	return &Repository{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		health:      pb.NewQdrantClient(conn),
		collection:  collection,
	}
}

// EnsureCollection creates a cosine collection of dim-sized vectors when it
// does not exist, and checks the size of an existing one.
func (r *Repository) EnsureCollection(ctx context.Context, dim int) error {
	exists, err := r.collections.CollectionExists(ctx, &pb.CollectionExistsRequest{CollectionName: r.collection})
	if err != nil {
		return fmt.Errorf("qdrant collection exists: %w", err)
	}

	if exists.GetResult().GetExists() {
		info, err := r.collections.Get(ctx, &pb.GetCollectionInfoRequest{CollectionName: r.collection})
		if err != nil {
			return fmt.Errorf("qdrant collection info: %w", err)
		}
		size := info.GetResult().GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
		if size != 0 && int(size) != dim {
			return fmt.Errorf("qdrant collection %q has dimension %d, embeddings have %d", r.collection, size, dim)
		}
		return nil
	}

	_, err = r.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: r.collection,
		VectorsConfig: &pb.VectorsConfig{Config: &pb.VectorsConfig_Params{
			Params: &pb.VectorParams{Size: uint64(dim), Distance: pb.Distance_Cosine},
		}},
	})
	if err != nil {
		return fmt.Errorf("qdrant create collection: %w", err)
	}
	return nil
}

func (r *Repository) Upsert(ctx context.Context, entries []vector.Entry) error {
	points := make([]*pb.PointStruct, len(entries))
	for i, e := range entries {
		payload := map[string]*pb.Value{
			payloadContent: {Kind: &pb.Value_StringValue{StringValue: e.Content}},
			payloadDocID:   {Kind: &pb.Value_StringValue{StringValue: e.ID}},
			payloadSeq:     {Kind: &pb.Value_IntegerValue{IntegerValue: e.Seq}},
		}
		for k, v := range e.Metadata {
			if _, reserved := payload[k]; reserved {
				continue
			}
			payload[k] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: v}}
		}
		points[i] = &pb.PointStruct{
			Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: vector.PointID(e.ID)}},
			Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: e.Vector}}},
			Payload: payload,
		}
	}

	wait := true
	_, err := r.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: r.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert: %w", err)
	}
	return nil
}

func (r *Repository) Search(ctx context.Context, vec []float32, topK int) ([]vector.SearchResult, error) {
	resp, err := r.points.Search(ctx, &pb.SearchPoints{
		CollectionName: r.collection,
		Vector:         vec,
		Limit:          uint64(topK),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant search: %w", err)
	}
	return toResults(resp.GetResult()), nil
}

func toResults(points []*pb.ScoredPoint) []vector.SearchResult {
	results := make([]vector.SearchResult, len(points))
	for i, pt := range points {
		res := vector.SearchResult{
			ID:       pt.GetId().GetUuid(),
			Score:    pt.GetScore(),
			Metadata: make(map[string]string),
		}
		for k, v := range pt.GetPayload() {
			switch k {
			case payloadContent:
				res.Content = v.GetStringValue()
			case payloadDocID:
				res.ID = v.GetStringValue()
			case payloadSeq:
				res.Seq = v.GetIntegerValue()
			default:
				res.Metadata[k] = v.GetStringValue()
			}
		}
		results[i] = res
	}
	return results
}

// Ping runs Qdrant's health check RPC.
func (r *Repository) Ping(ctx context.Context) error {
	if _, err := r.health.HealthCheck(ctx, &pb.HealthCheckRequest{}); err != nil {
		return fmt.Errorf("qdrant health: %w", err)
	}
	return nil
}

func (r *Repository) Close() error {
	return r.conn.Close()
}

var _ vector.Repository = (*Repository)(nil)
