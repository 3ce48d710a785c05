// Package index provides the vector index backends for thesis retrieval:
// an embedded chromem store persisted on local disk (the default) and a
// remote Qdrant collection. Both satisfy rag.VectorIndex and are loaded
// eagerly at construction, then shared read-only across requests. Writes
// happen only through the offline ingest pipeline.
package index

import (
	"strconv"

	"github.com/adal-ai/adal-go/internal/rag"
)

// Backend names accepted in configuration (INDEX_BACKEND).
const (
	BackendChromem = "chromem"
	BackendQdrant  = "qdrant"
)

// Metadata keys used in the persisted stores. Both backends record document
// attributes under the same keys so an index can be inspected uniformly.
const (
	metaSource      = "source"
	metaPage        = "page"
	metaContentType = "content_type"
	metaChapter     = "chapter"
)

// documentFromStored rebuilds a rag.Document from a stored record's string
// metadata. Unparseable numeric fields are left at their zero value.
func documentFromStored(id, content string, meta map[string]string) rag.Document {
	d := rag.Document{
		ID:      id,
		Content: content,
		Source:  meta[metaSource],
	}
	d.Metadata.ContentType = meta[metaContentType]
	if p, err := strconv.Atoi(meta[metaPage]); err == nil {
		d.Metadata.Page = p
	}
	if c, err := strconv.Atoi(meta[metaChapter]); err == nil {
		d.Metadata.Chapter = c
	}
	return d
}

// storedMetadata flattens a document's attributes into the string metadata
// shape both backends persist. Zero-valued optional fields are omitted.
func storedMetadata(d rag.Document) map[string]string {
	m := map[string]string{metaSource: d.Source}
	if d.Metadata.Page > 0 {
		m[metaPage] = strconv.Itoa(d.Metadata.Page)
	}
	if d.Metadata.ContentType != "" {
		m[metaContentType] = d.Metadata.ContentType
	}
	if d.Metadata.Chapter > 0 {
		m[metaChapter] = strconv.Itoa(d.Metadata.Chapter)
	}
	return m
}
