package rag

// EmbeddingScheme identifies which embedding family produced an index's
// vectors. Vectors from different schemes live in incomparable spaces: a
// query must be embedded with the same scheme the index was built with, and
// a mismatch must be detected and recovered, never silently searched.
type EmbeddingScheme string

const (
	// SchemeLocal embeds with a locally served MiniLM model (384 dimensions).
	SchemeLocal EmbeddingScheme = "local"

	// SchemeRemote embeds with the Gemini embedding API (768 dimensions).
	SchemeRemote EmbeddingScheme = "remote"
)

// Other returns the alternative scheme. The embedding resolver uses it for
// its single fallback probe when the declared scheme fails to load.
func (s EmbeddingScheme) Other() EmbeddingScheme {
	if s == SchemeLocal {
		return SchemeRemote
	}
	return SchemeLocal
}
