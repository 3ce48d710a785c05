// Package ingestion implements the offline corpus ingestion pipeline.
// It loads thesis text files from a source directory, chunks the content,
// and upserts the chunks into the vector index, which embeds them with the
// configured scheme. This pipeline is invoked by the `adal ingest` CLI
// command; the serving path never runs it.
package ingestion

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/adal-ai/adal-go/internal/rag"
)

// Index is the write-side subset of the vector index the pipeline drives.
// Both embedded-index backends satisfy it; embedding happens inside the
// index adapter, so the pipeline hands over plain documents.
type Index interface {
	Upsert(ctx context.Context, docs []rag.Document) error
}

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// ChunkSize is the maximum number of characters per document chunk.
	// Defaults to 1000 if zero.
	ChunkSize int

	// ChunkOverlap is the number of characters to overlap between
	// consecutive chunks. Defaults to 100 if zero.
	ChunkOverlap int
}

// Result summarises a completed ingestion run.
type Result struct {
	// Files is the number of source files ingested.
	Files int

	// Chunks is the total number of chunks written to the index.
	Chunks int
}

// Pipeline orchestrates the load → chunk → upsert flow for a set of
// corpus files.
type Pipeline struct {
	// index receives the chunked documents and embeds them on write.
	index Index

	// cfg holds the resolved pipeline configuration.
	cfg *Config
}

// NewPipeline constructs a Pipeline from the provided index and config.
func NewPipeline(index Index, cfg *Config) (*Pipeline, error) {
	if index == nil {
		return nil, fmt.Errorf("ingestion: index must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1000
	}
	if cfg.ChunkOverlap <= 0 {
		cfg.ChunkOverlap = 100
	}
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = cfg.ChunkSize / 10
	}

	return &Pipeline{
		index: index,
		cfg:   cfg,
	}, nil
}

// Ingest chunks and stores all provided files. It processes files
// sequentially and returns the first error encountered, together with the
// counts accumulated up to that point. Progress is reported via the
// optional progress callback.
func (p *Pipeline) Ingest(ctx context.Context, files []SourceFile, progress func(msg string)) (Result, error) {
	if progress == nil {
		progress = func(string) {}
	}

	var res Result
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		chunks := p.chunk(f.Content)
		if len(chunks) == 0 {
			continue
		}
		progress(fmt.Sprintf("chunked %s into %d chunks", f.Path, len(chunks)))

		docs := make([]rag.Document, 0, len(chunks))
		for i, chunk := range chunks {
			docs = append(docs, rag.Document{
				ID:      chunkID(f.Path, i),
				Content: chunk,
				Source:  f.Path,
				Metadata: rag.Metadata{
					ContentType: f.ContentType,
				},
			})
		}

		if err := p.index.Upsert(ctx, docs); err != nil {
			return res, fmt.Errorf("ingestion: upsert failed for %s: %w", f.Path, err)
		}

		res.Files++
		res.Chunks += len(docs)
		progress(fmt.Sprintf("ingested %d chunks from %s", len(docs), f.Path))
	}

	return res, nil
}

// chunk splits text into overlapping chunks of cfg.ChunkSize characters.
func (p *Pipeline) chunk(text string) []string {
	if len(text) == 0 {
		return nil
	}

	var chunks []string
	size := p.cfg.ChunkSize
	overlap := p.cfg.ChunkOverlap

	for start := 0; start < len(text); start += size - overlap {
		end := start + size
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, text[start:end])
		if end == len(text) {
			break
		}
	}

	return chunks
}

// chunkID derives a deterministic ID for a document chunk from its source
// path and chunk index, so re-ingesting a file replaces its chunks instead
// of duplicating them. The ID is a v5 UUID because the Qdrant backend only
// accepts UUID point IDs.
func chunkID(source string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("adal:%s#%d", source, index))).String()
}
