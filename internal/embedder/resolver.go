package embedder

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/adal-ai/adal-go/internal/index"
	"github.com/adal-ai/adal-go/internal/logging"
	"github.com/adal-ai/adal-go/internal/rag"
)

// ResolveConfig names the persisted index to open and the backend that
// holds it.
type ResolveConfig struct {
	// Dir is the chromem index directory. Ignored for the qdrant backend.
	Dir string

	// Backend selects the index store: "chromem" (default) or "qdrant".
	Backend string

	// Collection is the collection name inside the store.
	Collection string

	// Qdrant carries connection settings for the qdrant backend.
	Qdrant *index.QdrantConfig
}

// ConfigFromEnv builds a ResolveConfig from the INDEX_* and QDRANT_*
// environment variables.
func ConfigFromEnv() ResolveConfig {
	cfg := ResolveConfig{
		Dir:        getEnvOrDefault("INDEX_DIR", index.DefaultDir),
		Backend:    os.Getenv("INDEX_BACKEND"),
		Collection: getEnvOrDefault("INDEX_COLLECTION", index.DefaultCollection),
	}
	if cfg.Backend == index.BackendQdrant {
		// QDRANT_COLLECTION overrides the shared INDEX_COLLECTION name so
		// one Qdrant cluster can host several assistants.
		cfg.Collection = getEnvOrDefault("QDRANT_COLLECTION", cfg.Collection)
		cfg.Qdrant = &index.QdrantConfig{
			Host:       getEnvOrDefault("QDRANT_HOST", "localhost"),
			Port:       getEnvInt("QDRANT_PORT", 6334),
			Collection: cfg.Collection,
			APIKey:     os.Getenv("QDRANT_API_KEY"),
			UseTLS:     os.Getenv("QDRANT_USE_TLS") == "true",
		}
	}
	return cfg
}

// probeableIndex is what Resolve needs from a backend: the serving interface
// plus a cheap scheme-compatibility check.
type probeableIndex interface {
	rag.VectorIndex
	Probe(ctx context.Context) error
}

// Resolve opens the persisted index under the embedding scheme it was built
// with and returns it together with the scheme that actually worked.
//
// The scheme to try first comes from the index's marker file (chromem) or
// from EMBEDDING_PROVIDER (qdrant, which has no local directory to carry a
// marker). When that scheme fails to construct, open, or probe — a missing
// API key, an unreachable embedding server, a dimension mismatch — the other
// scheme is tried exactly once. If both fail the error wraps
// rag.ErrIndexUnavailable and reports each scheme's failure; callers keep
// serving in degraded mode rather than crash.
func Resolve(ctx context.Context, cfg ResolveConfig) (rag.VectorIndex, rag.EmbeddingScheme, error) {
	switch cfg.Backend {
	case "", index.BackendChromem, index.BackendQdrant:
	default:
		return nil, "", fmt.Errorf("embedder: unknown index backend %q — set INDEX_BACKEND to chromem or qdrant", cfg.Backend)
	}

	log := logging.FromContext(ctx)
	declared := declaredScheme(cfg)

	idx, declaredErr := openAndProbe(ctx, cfg, declared)
	if declaredErr == nil {
		log.Info("embedder: index resolved",
			slog.String("scheme", string(declared)),
			slog.Int("documents", idx.Count()),
		)
		return idx, declared, nil
	}

	fallback := declared.Other()
	log.Warn("embedder: declared scheme failed, trying the other scheme",
		slog.String("declared", string(declared)),
		slog.String("fallback", string(fallback)),
		slog.String("error", declaredErr.Error()),
	)

	idx, err := openAndProbe(ctx, cfg, fallback)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s scheme: %v; %s scheme: %v",
			rag.ErrIndexUnavailable, declared, declaredErr, fallback, err)
	}

	log.Warn("embedder: serving under fallback scheme — re-run ingest to fix the recorded scheme",
		slog.String("scheme", string(fallback)),
		slog.Int("documents", idx.Count()),
	)
	return idx, fallback, nil
}

// declaredScheme picks the scheme to try first. A chromem index carries a
// marker file recording the scheme it was built with; qdrant collections
// have no local directory, so the configured provider decides.
func declaredScheme(cfg ResolveConfig) rag.EmbeddingScheme {
	if cfg.Backend == index.BackendQdrant {
		return SchemeFromEnv()
	}
	dir := cfg.Dir
	if dir == "" {
		dir = index.DefaultDir
	}
	return index.ReadMarker(dir)
}

// openAndProbe constructs the scheme's embedder, opens the backend with it,
// and probes once to confirm the vectors are comparable. The index is closed
// again on probe failure so a fallback attempt starts clean.
func openAndProbe(ctx context.Context, cfg ResolveConfig, scheme rag.EmbeddingScheme) (probeableIndex, error) {
	emb, err := New(ctx, scheme)
	if err != nil {
		return nil, err
	}

	var idx probeableIndex
	switch cfg.Backend {
	case index.BackendQdrant:
		qcfg := index.QdrantConfig{Collection: cfg.Collection}
		if cfg.Qdrant != nil {
			qcfg = *cfg.Qdrant
		}
		idx, err = index.OpenQdrant(ctx, &qcfg, emb)
	default:
		idx, err = index.OpenChromem(&index.ChromemConfig{Dir: cfg.Dir, Collection: cfg.Collection}, emb)
	}
	if err != nil {
		return nil, err
	}

	if err := idx.Probe(ctx); err != nil {
		_ = idx.Close()
		return nil, err
	}
	return idx, nil
}
