package index

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/qdrant/go-client/qdrant"

	"github.com/adal-ai/adal-go/internal/rag"
)

// QdrantConfig holds connection parameters for a Qdrant-backed index.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use.
	Collection string

	// VectorSize is the dimensionality of the embeddings stored in this
	// collection. Only needed when creating the collection.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

func (cfg *QdrantConfig) applyDefaults() {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
}

// QdrantIndex implements rag.VectorIndex backed by a Qdrant collection.
// Queries are embedded with the configured embedder before being sent to the
// server; the embedder's scheme must match the scheme the collection was
// built with.
type QdrantIndex struct {
	client   *qdrant.Client
	embedder rag.Embedder
	cfg      *QdrantConfig

	// count caches the collection size observed at open time. The serving
	// path treats the collection as static; ingest updates it on upsert.
	count atomic.Int64
}

// OpenQdrant connects to Qdrant for read-only serving. The collection must
// already exist; a missing collection or unreachable server fails with
// rag.ErrIndexLoad.
func OpenQdrant(ctx context.Context, cfg *QdrantConfig, embedder rag.Embedder) (*QdrantIndex, error) {
	cfg.applyDefaults()

	client, err := newQdrantClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: creating qdrant client: %v", rag.ErrIndexLoad, err)
	}

	exists, err := client.CollectionExists(ctx, cfg.Collection)
	if err != nil {
		return nil, fmt.Errorf("%w: checking collection %q: %v", rag.ErrIndexLoad, cfg.Collection, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: collection %q does not exist", rag.ErrIndexLoad, cfg.Collection)
	}

	x := &QdrantIndex{client: client, embedder: embedder, cfg: cfg}
	n, err := client.Count(ctx, &qdrant.CountPoints{CollectionName: cfg.Collection})
	if err != nil {
		return nil, fmt.Errorf("%w: counting collection %q: %v", rag.ErrIndexLoad, cfg.Collection, err)
	}
	x.count.Store(int64(n))

	return x, nil
}

// CreateQdrant connects to Qdrant for ingestion, creating the collection
// with the configured vector size when absent.
func CreateQdrant(ctx context.Context, cfg *QdrantConfig, embedder rag.Embedder) (*QdrantIndex, error) {
	cfg.applyDefaults()

	client, err := newQdrantClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("index: creating qdrant client: %w", err)
	}

	x := &QdrantIndex{client: client, embedder: embedder, cfg: cfg}
	if err := x.ensureCollection(ctx); err != nil {
		return nil, err
	}

	n, err := client.Count(ctx, &qdrant.CountPoints{CollectionName: cfg.Collection})
	if err != nil {
		return nil, fmt.Errorf("index: counting collection %q: %w", cfg.Collection, err)
	}
	x.count.Store(int64(n))

	return x, nil
}

func newQdrantClient(cfg *QdrantConfig) (*qdrant.Client, error) {
	return qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
}

// ensureCollection creates the Qdrant collection if it does not already exist.
func (x *QdrantIndex) ensureCollection(ctx context.Context) error {
	exists, err := x.client.CollectionExists(ctx, x.cfg.Collection)
	if err != nil {
		return fmt.Errorf("index: checking collection existence: %w", err)
	}
	if exists {
		return nil
	}

	if x.cfg.VectorSize == 0 {
		return fmt.Errorf("index: vector size is required to create collection %q", x.cfg.Collection)
	}
	err = x.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: x.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     x.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("index: creating collection %q: %w", x.cfg.Collection, err)
	}
	return nil
}

// Probe verifies the embedder's vectors are comparable with the collection
// by running one tiny query. A dimension mismatch surfaces here instead of
// on the first user request.
func (x *QdrantIndex) Probe(ctx context.Context) error {
	if x.Count() == 0 {
		return nil
	}
	if _, err := x.SearchWithScores(ctx, "probe", 1); err != nil {
		return fmt.Errorf("%w: %v", rag.ErrSchemeMismatch, err)
	}
	return nil
}

// Search returns the k nearest documents for the query text.
func (x *QdrantIndex) Search(ctx context.Context, query string, k int) ([]rag.Document, error) {
	scored, err := x.SearchWithScores(ctx, query, k)
	if err != nil {
		return nil, err
	}
	docs := make([]rag.Document, 0, len(scored))
	for _, sd := range scored {
		docs = append(docs, sd.Document)
	}
	return docs, nil
}

// SearchWithScores embeds the query and returns the k nearest documents
// with distances attached.
func (x *QdrantIndex) SearchWithScores(ctx context.Context, query string, k int) ([]rag.ScoredDocument, error) {
	if k <= 0 {
		return nil, fmt.Errorf("index: k must be positive, got %d", k)
	}
	if n := x.Count(); k > n {
		k = n
	}
	if k == 0 {
		return nil, nil
	}

	vecs, err := x.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("index: embedding query: %w", err)
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("index: embedder returned no vector")
	}

	limit := uint64(k)
	results, err := x.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: x.cfg.Collection,
		Query:          qdrant.NewQuery(vecs[0]...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("index: qdrant query failed: %w", err)
	}

	scored := make([]rag.ScoredDocument, 0, len(results))
	for _, r := range results {
		meta := make(map[string]string, len(r.Payload))
		var content string
		for key, val := range r.Payload {
			if key == "content" {
				content = val.GetStringValue()
				continue
			}
			meta[key] = val.GetStringValue()
		}
		scored = append(scored, rag.ScoredDocument{
			Document: documentFromStored(r.Id.GetUuid(), content, meta),
			// Qdrant reports cosine similarity (higher = better); the
			// retrieval core works in distances (lower = better).
			Distance: 1 - r.Score,
		})
	}
	return scored, nil
}

// Upsert embeds and stores a batch of document chunks. Point IDs must be
// UUID strings. Only the ingest pipeline writes.
func (x *QdrantIndex) Upsert(ctx context.Context, docs []rag.Document) error {
	if len(docs) == 0 {
		return nil
	}

	texts := make([]string, 0, len(docs))
	for _, d := range docs {
		texts = append(texts, d.Content)
	}
	vecs, err := x.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("index: embedding batch: %w", err)
	}
	if len(vecs) != len(docs) {
		return fmt.Errorf("index: expected %d embeddings, got %d", len(docs), len(vecs))
	}

	points := make([]*qdrant.PointStruct, 0, len(docs))
	for i, d := range docs {
		payload := map[string]interface{}{"content": d.Content}
		for k, v := range storedMetadata(d) {
			payload[k] = v
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(d.ID),
			Vectors: qdrant.NewVectors(vecs[i]...),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	if _, err := x.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: x.cfg.Collection,
		Points:         points,
	}); err != nil {
		return fmt.Errorf("index: qdrant upsert failed: %w", err)
	}

	x.count.Add(int64(len(docs)))
	return nil
}

// Reset drops and recreates the collection, discarding all indexed chunks.
func (x *QdrantIndex) Reset(ctx context.Context) error {
	if err := x.client.DeleteCollection(ctx, x.cfg.Collection); err != nil {
		return fmt.Errorf("index: dropping collection %q: %w", x.cfg.Collection, err)
	}
	if err := x.ensureCollection(ctx); err != nil {
		return err
	}
	x.count.Store(0)
	return nil
}

// Count reports the collection size observed at open time, adjusted for
// upserts made through this index.
func (x *QdrantIndex) Count() int {
	return int(x.count.Load())
}

// Client exposes the underlying Qdrant client for health probes.
func (x *QdrantIndex) Client() *qdrant.Client {
	return x.client
}

// Close closes the underlying Qdrant gRPC connection.
func (x *QdrantIndex) Close() error {
	return x.client.Close()
}
