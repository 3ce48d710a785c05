package index

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/philippgille/chromem-go"

	"github.com/adal-ai/adal-go/internal/rag"
)

// DefaultDir is the on-disk index location when INDEX_DIR is not set.
const DefaultDir = "index"

// DefaultCollection is the collection name when INDEX_COLLECTION is not set.
const DefaultCollection = "thesis_docs"

// ChromemConfig holds settings for the embedded chromem backend.
type ChromemConfig struct {
	// Dir is the persistent index directory.
	Dir string

	// Collection is the collection name inside the index.
	Collection string
}

func (cfg *ChromemConfig) applyDefaults() {
	if cfg.Dir == "" {
		cfg.Dir = DefaultDir
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
}

// ChromemIndex implements rag.VectorIndex over an embedded chromem store.
// The store is loaded fully into memory at open time; queries afterwards are
// pure in-process computation.
type ChromemIndex struct {
	db      *chromem.DB
	coll    *chromem.Collection
	name    string
	embedFn chromem.EmbeddingFunc
}

// OpenChromem opens an existing persisted index for read-only serving.
// The collection must already exist; a missing directory or collection fails
// with rag.ErrIndexLoad, which is unrecoverable without re-ingesting.
func OpenChromem(cfg *ChromemConfig, embedder rag.Embedder) (*ChromemIndex, error) {
	cfg.applyDefaults()

	// NewPersistentDB creates missing directories, which would turn a wrong
	// path into a silently empty index. Require the directory up front.
	if _, err := os.Stat(cfg.Dir); err != nil {
		return nil, fmt.Errorf("%w: index directory %q: %v", rag.ErrIndexLoad, cfg.Dir, err)
	}

	db, err := chromem.NewPersistentDB(cfg.Dir, true)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %q: %v", rag.ErrIndexLoad, cfg.Dir, err)
	}

	embedFn := embedFunc(embedder)
	coll := db.GetCollection(cfg.Collection, embedFn)
	if coll == nil {
		return nil, fmt.Errorf("%w: collection %q not found in %q", rag.ErrIndexLoad, cfg.Collection, cfg.Dir)
	}

	return &ChromemIndex{db: db, coll: coll, name: cfg.Collection, embedFn: embedFn}, nil
}

// CreateChromem opens the index directory for ingestion, creating the
// directory and collection when absent.
func CreateChromem(cfg *ChromemConfig, embedder rag.Embedder) (*ChromemIndex, error) {
	cfg.applyDefaults()

	db, err := chromem.NewPersistentDB(cfg.Dir, true)
	if err != nil {
		return nil, fmt.Errorf("index: opening %q for ingest: %w", cfg.Dir, err)
	}

	embedFn := embedFunc(embedder)
	coll, err := db.GetOrCreateCollection(cfg.Collection, nil, embedFn)
	if err != nil {
		return nil, fmt.Errorf("index: creating collection %q: %w", cfg.Collection, err)
	}

	return &ChromemIndex{db: db, coll: coll, name: cfg.Collection, embedFn: embedFn}, nil
}

// embedFunc adapts a batch rag.Embedder to chromem's single-text callback.
func embedFunc(embedder rag.Embedder) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		vecs, err := embedder.Embed(ctx, []string{text})
		if err != nil {
			return nil, err
		}
		if len(vecs) == 0 {
			return nil, fmt.Errorf("index: embedder returned no vector")
		}
		return vecs[0], nil
	}
}

// Probe verifies that the configured embedder produces vectors comparable
// with the stored ones. chromem only surfaces a dimension mismatch at query
// time, so the resolver runs one tiny query right after opening.
func (x *ChromemIndex) Probe(ctx context.Context) error {
	if x.coll.Count() == 0 {
		return nil
	}
	if _, err := x.coll.Query(ctx, "probe", 1, nil, nil); err != nil {
		return fmt.Errorf("%w: %v", rag.ErrSchemeMismatch, err)
	}
	return nil
}

// Search returns the k nearest documents for the query text.
func (x *ChromemIndex) Search(ctx context.Context, query string, k int) ([]rag.Document, error) {
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

// SearchWithScores returns the k nearest documents with distances attached.
// k is clamped to the collection size; chromem rejects oversized result
// requests instead of truncating them.
func (x *ChromemIndex) SearchWithScores(ctx context.Context, query string, k int) ([]rag.ScoredDocument, error) {
	if k <= 0 {
		return nil, fmt.Errorf("index: k must be positive, got %d", k)
	}
	if n := x.coll.Count(); k > n {
		k = n
	}
	if k == 0 {
		return nil, nil
	}

	results, err := x.coll.Query(ctx, query, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("index: query failed: %w", err)
	}

	scored := make([]rag.ScoredDocument, 0, len(results))
	for _, res := range results {
		scored = append(scored, rag.ScoredDocument{
			Document: documentFromStored(res.ID, res.Content, res.Metadata),
			// chromem reports cosine similarity (higher = better); the
			// retrieval core works in distances (lower = better).
			Distance: 1 - res.Similarity,
		})
	}
	return scored, nil
}

// Upsert adds or replaces document chunks. Only the ingest pipeline writes;
// the serving path never calls this.
func (x *ChromemIndex) Upsert(ctx context.Context, docs []rag.Document) error {
	cdocs := make([]chromem.Document, 0, len(docs))
	for _, d := range docs {
		cdocs = append(cdocs, chromem.Document{
			ID:       d.ID,
			Content:  d.Content,
			Metadata: storedMetadata(d),
		})
	}
	if err := x.coll.AddDocuments(ctx, cdocs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("index: upsert failed: %w", err)
	}
	return nil
}

// Reset drops and recreates the collection, discarding all indexed chunks.
// Used by ingest --reset before a full rebuild.
func (x *ChromemIndex) Reset(ctx context.Context) error {
	if err := x.db.DeleteCollection(x.name); err != nil {
		return fmt.Errorf("index: dropping collection %q: %w", x.name, err)
	}
	coll, err := x.db.GetOrCreateCollection(x.name, nil, x.embedFn)
	if err != nil {
		return fmt.Errorf("index: recreating collection %q: %w", x.name, err)
	}
	x.coll = coll
	return nil
}

// Count reports the number of indexed document chunks.
func (x *ChromemIndex) Count() int {
	return x.coll.Count()
}

// Close releases the index. The chromem store persists on every write, so
// there is nothing to flush.
func (x *ChromemIndex) Close() error {
	return nil
}
