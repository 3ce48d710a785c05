// Package rag implements the retrieval core of the thesis assistant:
// query classification, adaptive retrieval, follow-up reconstruction, and
// context formatting. Concrete index backends (chromem, Qdrant) satisfy the
// VectorIndex interface so the chat layer never depends on a specific store.
package rag

import (
	"context"
)

// VectorIndex is the read-only interface over a pre-built similarity index.
// The index is loaded eagerly at construction time and shared across requests
// as immutable state; implementations must be safe for concurrent readers.
type VectorIndex interface {
	// Search returns the k nearest documents for the query text, most
	// relevant first. k is clamped to the number of indexed documents.
	Search(ctx context.Context, query string, k int) ([]Document, error)

	// SearchWithScores is Search with per-document distances attached.
	SearchWithScores(ctx context.Context, query string, k int) ([]ScoredDocument, error)

	// Count reports the number of indexed document chunks.
	Count() int

	// Close releases resources held by the index.
	Close() error
}

// Embedder is the interface for converting text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
