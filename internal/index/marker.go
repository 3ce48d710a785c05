package index

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adal-ai/adal-go/internal/rag"
)

// MarkerFile is the one-line text file co-located with a persisted index
// that names the embedding scheme the index was built with.
const MarkerFile = "embedding_model.txt"

// ReadMarker returns the embedding scheme declared for the index in dir.
// A missing or unreadable marker defaults to the local scheme, matching the
// indexes built before the marker existed.
func ReadMarker(dir string) rag.EmbeddingScheme {
	data, err := os.ReadFile(filepath.Join(dir, MarkerFile))
	if err != nil {
		return rag.SchemeLocal
	}
	return ParseScheme(string(data))
}

// ParseScheme maps marker contents to an embedding scheme. Markers written
// by earlier indexers named the model family ("huggingface", "gemini")
// instead of the scheme, so both vocabularies are accepted.
func ParseScheme(s string) rag.EmbeddingScheme {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "remote", "gemini", "google":
		return rag.SchemeRemote
	default:
		// "local", "huggingface", and anything unrecognized.
		return rag.SchemeLocal
	}
}

// WriteMarker records the embedding scheme used to build the index in dir.
// The ingest pipeline calls this after a successful build so later opens
// resolve the right scheme without probing.
func WriteMarker(dir string, scheme rag.EmbeddingScheme) error {
	path := filepath.Join(dir, MarkerFile)
	if err := os.WriteFile(path, []byte(string(scheme)+"\n"), 0o644); err != nil {
		return fmt.Errorf("index: writing scheme marker: %w", err)
	}
	return nil
}
