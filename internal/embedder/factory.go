// Package embedder provides the embedding functions behind the thesis index
// and the resolver that matches a persisted index with the scheme that built
// it. The local scheme runs against an Ollama server; the remote scheme
// calls the Gemini embedding API.
package embedder

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/adal-ai/adal-go/internal/rag"
)

// Default embedding models per scheme.
const (
	defaultLocalModel  = "all-minilm"
	defaultRemoteModel = "text-embedding-004"

	// defaultLocalDimensions is the output dimension of all-minilm.
	// Other Ollama models may differ — override with EMBEDDING_DIMENSIONS.
	defaultLocalDimensions = 384
	// defaultRemoteDimensions is the output dimension of text-embedding-004.
	defaultRemoteDimensions = 768
)

// DefaultDimensions returns the embedding vector size for the given scheme.
// Callers that pre-configure a vector store (e.g. Qdrant collection
// creation) should use this rather than hardcoding a value.
// EMBEDDING_DIMENSIONS always takes precedence when set.
func DefaultDimensions(scheme rag.EmbeddingScheme) int {
	if v := getEnvInt("EMBEDDING_DIMENSIONS", 0); v > 0 {
		return v
	}
	if scheme == rag.SchemeRemote {
		return defaultRemoteDimensions
	}
	return defaultLocalDimensions
}

// SchemeFromEnv resolves the scheme the ingest pipeline builds new indexes
// with: EMBEDDING_PROVIDER=gemini selects the remote scheme, anything else
// the local one. The serving path never calls this — there the scheme comes
// from the marker file recorded alongside the index.
func SchemeFromEnv() rag.EmbeddingScheme {
	if os.Getenv("EMBEDDING_PROVIDER") == "gemini" {
		return rag.SchemeRemote
	}
	return rag.SchemeLocal
}

// New constructs the embedder for the given scheme.
//
// Env overrides:
//
//	local:  EMBEDDING_ENDPOINT (falls back to OLLAMA_HOST) for the server,
//	        EMBEDDING_MODEL for the model (default: all-minilm)
//	remote: EMBEDDING_API_KEY (falls back to GOOGLE_API_KEY, GEMINI_API_KEY),
//	        EMBEDDING_MODEL for the model (default: text-embedding-004)
func New(ctx context.Context, scheme rag.EmbeddingScheme) (rag.Embedder, error) {
	switch scheme {
	case rag.SchemeLocal:
		host := getEnv("EMBEDDING_ENDPOINT")
		if host == "" {
			host = getEnvOrDefault("OLLAMA_HOST", "http://localhost:11434")
		}
		return NewOllamaEmbedder(&OllamaConfig{
			Host:  host,
			Model: getEnvOrDefault("EMBEDDING_MODEL", defaultLocalModel),
		}), nil

	case rag.SchemeRemote:
		apiKey := getEnv("EMBEDDING_API_KEY")
		if apiKey == "" {
			apiKey = getEnv("GOOGLE_API_KEY")
		}
		if apiKey == "" {
			apiKey = getEnv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("embedder: remote scheme requires GOOGLE_API_KEY, GEMINI_API_KEY, or EMBEDDING_API_KEY")
		}
		return NewGeminiEmbedder(ctx, &GeminiConfig{
			APIKey:     apiKey,
			Model:      getEnvOrDefault("EMBEDDING_MODEL", defaultRemoteModel),
			Dimensions: getEnvInt("EMBEDDING_DIMENSIONS", 0),
		})

	default:
		return nil, fmt.Errorf("embedder: unknown scheme %q", scheme)
	}
}

// getEnv returns the value of the named environment variable, or empty string.
func getEnv(key string) string {
	return os.Getenv(key)
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
