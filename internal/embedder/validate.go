package embedder

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/adal-ai/adal-go/internal/index"
)

// knownChatModelPrefixes contains name fragments that identify chat/completion
// models which are NOT suitable for embedding. If EMBEDDING_MODEL matches any
// of these, a warning is emitted so the operator knows they may have
// misconfigured the pipeline.
var knownChatModelPrefixes = []string{
	"gpt-4",
	"gpt-3.5",
	"gpt-35",
	"o1",
	"o3",
	"llama3",
	"llama2",
	"llama-3",
	"llama-2",
	"mistral",
	"mixtral",
	"gemma",
	"phi-",
	"phi3",
	"claude",
	"command-r",
	"deepseek",
	"qwen",
	"solar",
	"vicuna",
	"falcon",
	"yi-",
}

// looksLikeChatModel returns true when the model name resembles a known
// chat/completion model rather than a dedicated embedding model.
func looksLikeChatModel(model string) bool {
	lower := strings.ToLower(model)
	for _, prefix := range knownChatModelPrefixes {
		if strings.Contains(lower, prefix) {
			return true
		}
	}
	return false
}

// Validate checks the embedding configuration before ingest or serving. It
// returns an error if the configuration is clearly broken (an unknown
// provider, or the gemini provider with no API key), and logs warnings for
// configurations that work but probably don't do what the operator intended.
//
// This is a pre-flight check — call it before constructing an embedder so
// operators get a clear error at startup rather than a cryptic failure during
// the first embed call. indexDir may be empty when no on-disk index is in
// play (e.g. the qdrant backend).
func Validate(log *slog.Logger, indexDir string) error {
	provider := os.Getenv("EMBEDDING_PROVIDER")
	switch provider {
	case "", "ollama", "gemini":
	default:
		return fmt.Errorf("embedder: unknown EMBEDDING_PROVIDER %q — set it to ollama or gemini", provider)
	}

	if provider == "gemini" {
		apiKey := getEnv("EMBEDDING_API_KEY")
		if apiKey == "" {
			apiKey = getEnv("GOOGLE_API_KEY")
		}
		if apiKey == "" {
			apiKey = getEnv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			return fmt.Errorf("embedder: EMBEDDING_PROVIDER=gemini but no API key found — set GOOGLE_API_KEY, GEMINI_API_KEY, or EMBEDDING_API_KEY")
		}
	}

	// An existing index always serves under the scheme recorded in its
	// marker file, regardless of EMBEDDING_PROVIDER. Warn when the two
	// disagree so the operator knows a re-ingest is needed to switch.
	if indexDir != "" {
		if _, err := os.Stat(filepath.Join(indexDir, index.MarkerFile)); err == nil {
			indexed := index.ReadMarker(indexDir)
			if declared := SchemeFromEnv(); indexed != declared {
				log.Warn("embedder: EMBEDDING_PROVIDER disagrees with the scheme the index was built with — "+
					"serving will keep the indexed scheme",
					slog.String("indexed", string(indexed)),
					slog.String("declared", string(declared)),
					slog.String("hint", "re-run ingest to rebuild the index under the new scheme"),
				)
			}
		}
	}

	// Warn if EMBEDDING_MODEL looks like a chat model.
	model := os.Getenv("EMBEDDING_MODEL")
	if model != "" && looksLikeChatModel(model) {
		log.Warn("embedder: EMBEDDING_MODEL looks like a chat model, not an embedding model — "+
			"this will likely produce poor or broken embeddings",
			slog.String("model", model),
			slog.String("hint", "use a dedicated embedding model e.g. all-minilm, text-embedding-004"),
		)
	}

	return nil
}
