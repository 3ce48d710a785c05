package rag

// Content type tags recorded in document metadata at indexing time.
const (
	// ContentTypeAbstract marks an excerpt holding a thesis abstract.
	ContentTypeAbstract = "abstract"
	// ContentTypeContent marks any other thesis excerpt.
	ContentTypeContent = "content"
)

// Metadata holds the typed document attributes recorded at indexing time.
// Zero values mean the attribute was not recorded.
type Metadata struct {
	// Page is the 1-based page number within the source document.
	Page int

	// ContentType tags the excerpt kind: "abstract" or "content".
	ContentType string

	// Chapter is the chapter number within the source document.
	Chapter int
}

// Document is an immutable unit of retrieved thesis content.
// Documents are produced by a VectorIndex and never mutated after retrieval.
type Document struct {
	// ID is the unique identifier for this document chunk.
	ID string

	// Content is the raw text content of the chunk.
	Content string

	// Source is the origin file path of the thesis document.
	Source string

	// Metadata holds the attributes recorded when the chunk was indexed.
	Metadata Metadata
}

// ScoredDocument pairs a Document with its distance from the query vector.
// Lower distance means more similar. Distances produced under different
// embedding schemes are not comparable with each other.
type ScoredDocument struct {
	Document

	// Distance is the dissimilarity between the query and this document.
	Distance float32
}

// Turn is one prior conversation message, oldest first in a history slice.
// The core only ever reads a bounded suffix of the history; ownership of the
// full transcript stays with the persistence layer.
type Turn struct {
	// Role is "user" or "assistant".
	Role string

	// Content is the message text.
	Content string
}
