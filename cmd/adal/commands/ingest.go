package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/adal-ai/adal-go/internal/embedder"
	"github.com/adal-ai/adal-go/internal/index"
	"github.com/adal-ai/adal-go/internal/ingestion"
	"github.com/adal-ai/adal-go/internal/logging"
)

// writableIndex is what ingest needs from a backend: the pipeline's write
// interface plus reset and inspection. Both index backends satisfy it.
type writableIndex interface {
	ingestion.Index
	Reset(ctx context.Context) error
	Count() int
	Close() error
}

// NewIngestCmd constructs the `adal ingest` command, which builds the
// thesis index from a directory of extracted thesis text.
func NewIngestCmd() *cobra.Command {
	var source string
	var reset bool
	var chunkSize int
	var chunkOverlap int

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Build the thesis index from a directory of extracted text",
		Long: `Chunk and index thesis text files so the assistant can retrieve them.

The source directory is scanned recursively for .txt and .md files. Files
named <name>.abstract.txt (or .md) are tagged as thesis abstracts; all
other files are tagged as body content. Each file is split into
overlapping chunks, embedded with the configured scheme, and upserted
into the index.

The embedding scheme comes from EMBEDDING_PROVIDER (ollama or gemini);
for the on-disk backend the scheme is recorded in embedding_model.txt so
serving opens the index with matching vectors.

Environment variables:
  EMBEDDING_PROVIDER   Embedding backend: ollama, gemini (default: ollama)
  INDEX_BACKEND        Index store: chromem, qdrant (default: chromem)
  INDEX_DIR            On-disk index directory (default: index)
  INDEX_COLLECTION     Collection name (default: thesis_docs)
  QDRANT_*             Connection settings for the qdrant backend

Examples:
  adal ingest --source ./corpus
  adal ingest --source ./corpus --reset
  EMBEDDING_PROVIDER=gemini adal ingest --source ./corpus`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if source == "" {
				return fmt.Errorf("ingest: --source is required")
			}

			rcfg := embedder.ConfigFromEnv()

			indexDir := rcfg.Dir
			if rcfg.Backend == index.BackendQdrant {
				indexDir = ""
			}
			if err := embedder.Validate(log, indexDir); err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			scheme := embedder.SchemeFromEnv()
			emb, err := embedder.New(ctx, scheme)
			if err != nil {
				return fmt.Errorf("ingest: failed to initialise embedder: %w", err)
			}
			log.Info("embedder initialised", slog.String("scheme", string(scheme)))

			var idx writableIndex
			switch rcfg.Backend {
			case index.BackendQdrant:
				// Creating a missing collection needs the vector size up
				// front; qdrant cannot infer it from the first upsert.
				rcfg.Qdrant.VectorSize = uint64(embedder.DefaultDimensions(scheme))
				idx, err = index.CreateQdrant(ctx, rcfg.Qdrant, emb)
			default:
				idx, err = index.CreateChromem(&index.ChromemConfig{
					Dir:        rcfg.Dir,
					Collection: rcfg.Collection,
				}, emb)
			}
			if err != nil {
				return fmt.Errorf("ingest: failed to open index: %w", err)
			}
			defer func() { _ = idx.Close() }()

			if reset {
				if err := idx.Reset(ctx); err != nil {
					return fmt.Errorf("ingest: failed to reset index: %w", err)
				}
				log.Info("index reset", slog.String("collection", rcfg.Collection))
			}

			files, err := ingestion.LoadDir(source)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			if len(files) == 0 {
				return fmt.Errorf("ingest: no .txt or .md files found under %q", source)
			}
			log.Info("corpus loaded", slog.String("source", source), slog.Int("files", len(files)))

			pipeline, err := ingestion.NewPipeline(idx, &ingestion.Config{
				ChunkSize:    chunkSize,
				ChunkOverlap: chunkOverlap,
			})
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			res, err := pipeline.Ingest(ctx, files, func(msg string) {
				log.Info(msg)
			})
			if err != nil {
				return fmt.Errorf("ingest: pipeline failed: %w", err)
			}

			// Record the scheme next to the on-disk index so serving opens
			// it with matching vectors. The qdrant backend has no local
			// directory; its scheme is declared via EMBEDDING_PROVIDER.
			if rcfg.Backend != index.BackendQdrant {
				if err := index.WriteMarker(rcfg.Dir, scheme); err != nil {
					return fmt.Errorf("ingest: %w", err)
				}
			}

			log.Info("ingestion complete",
				slog.Int("files", res.Files),
				slog.Int("chunks", res.Chunks),
				slog.Int("indexed_total", idx.Count()),
			)
			return nil
		},
	}

	cmd.Flags().StringVarP(&source, "source", "s", "", "Directory of extracted thesis text files (required)")
	cmd.Flags().BoolVar(&reset, "reset", false, "Drop the existing collection before ingesting")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "Maximum characters per chunk (default 1000)")
	cmd.Flags().IntVar(&chunkOverlap, "chunk-overlap", 0, "Characters of overlap between chunks (default 100)")

	return cmd
}
