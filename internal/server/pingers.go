package server

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/qdrant/go-client/qdrant"

	"github.com/adal-ai/adal-go/internal/rag"
	"github.com/adal-ai/adal-go/internal/store"
)

// LLMPinger probes an LLM backend by sending a minimal single-message
// generate request. The call consumes a handful of tokens, which is why
// /api/ready is the only caller and probes carry a short timeout.
type LLMPinger struct {
	// model is the chat model to probe.
	model model.BaseChatModel
	// name identifies the backend in readiness responses (e.g. "gemini").
	name string
}

// NewLLMPinger constructs an LLMPinger for the given model and backend name.
func NewLLMPinger(m model.BaseChatModel, name string) *LLMPinger {
	return &LLMPinger{model: m, name: name}
}

// Name returns the backend label used in readiness responses.
func (p *LLMPinger) Name() string { return p.name }

// Ping sends a one-word generate request to the backend.
// Returns nil if the backend produced any response, an error otherwise.
func (p *LLMPinger) Ping(ctx context.Context) error {
	resp, err := p.model.Generate(ctx, []*schema.Message{schema.UserMessage("ping")})
	if err != nil {
		return fmt.Errorf("generate failed: %w", err)
	}
	if resp == nil {
		return fmt.Errorf("generate returned nil response")
	}
	return nil
}

// QdrantPinger probes a Qdrant instance using its native HealthCheck RPC.
// Wired only when the index backend is qdrant.
type QdrantPinger struct {
	// client is the Qdrant gRPC client to probe.
	client *qdrant.Client
}

// NewQdrantPinger constructs a QdrantPinger for the given Qdrant client.
func NewQdrantPinger(client *qdrant.Client) *QdrantPinger {
	return &QdrantPinger{client: client}
}

// Name returns the dependency label used in readiness responses.
func (p *QdrantPinger) Name() string { return "qdrant" }

// Ping calls the Qdrant HealthCheck RPC.
// Returns nil if Qdrant is reachable, or a descriptive error otherwise.
func (p *QdrantPinger) Ping(ctx context.Context) error {
	if _, err := p.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// IndexPinger reports the vector index's readiness. The index is loaded
// eagerly at startup, so the probe checks that it exists and holds at least
// one document chunk; an empty index cannot answer any question.
type IndexPinger struct {
	// index is the vector index to inspect; nil when loading failed.
	index rag.VectorIndex
}

// NewIndexPinger constructs an IndexPinger for the given index. A nil index
// is valid and reports unready.
func NewIndexPinger(index rag.VectorIndex) *IndexPinger {
	return &IndexPinger{index: index}
}

// Name returns the dependency label used in readiness responses.
func (p *IndexPinger) Name() string { return "index" }

// Ping reports an error when the index failed to load or is empty.
func (p *IndexPinger) Ping(ctx context.Context) error {
	if p.index == nil {
		return fmt.Errorf("index not loaded")
	}
	if p.index.Count() == 0 {
		return fmt.Errorf("index is empty, run `adal ingest` first")
	}
	return nil
}

// StorePinger probes the conversation history database. It holds the raw
// store rather than the breaker wrapper so the probe reports actual
// database state even while the serving path's breaker is open.
type StorePinger struct {
	// store is the SQLite store to probe.
	store *store.SQLiteStore
}

// NewStorePinger constructs a StorePinger for the given store.
func NewStorePinger(st *store.SQLiteStore) *StorePinger {
	return &StorePinger{store: st}
}

// Name returns the dependency label used in readiness responses.
func (p *StorePinger) Name() string { return "history" }

// Ping verifies the database connection is alive.
func (p *StorePinger) Ping(ctx context.Context) error {
	return p.store.Ping(ctx)
}
