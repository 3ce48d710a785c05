package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/adal-ai/adal-go/internal/config"
	"github.com/adal-ai/adal-go/internal/embedder"
	"github.com/adal-ai/adal-go/internal/index"
	"github.com/adal-ai/adal-go/internal/logging"
	"github.com/adal-ai/adal-go/internal/provider"
	"github.com/adal-ai/adal-go/internal/rag"
	"github.com/adal-ai/adal-go/internal/server"
)

// probeTimeout bounds each network probe so a dead backend cannot hang the
// whole report.
const probeTimeout = 10 * time.Second

// NewDiagnoseCmd constructs the `adal diagnose` command, which checks the
// deployment end to end and prints a health report.
func NewDiagnoseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diagnose",
		Short: "Check configuration, providers, and the thesis index",
		Long: `Run connectivity and index health checks and print a report.

The report covers configuration problems, model provider reachability,
the embedding scheme and its vector dimension, and the state of the
thesis index (directory, recorded scheme, collection, document count).

Examples:
  adal diagnose
  INDEX_DIR=/var/lib/adal/index adal diagnose`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := logging.WithLogger(cmd.Context(), logging.New())
			out := cmd.OutOrStdout()

			failures := 0
			failures += diagnoseConfig(out)
			failures += diagnoseProvider(ctx, out)

			emb := diagnoseEmbedding(ctx, out)
			failures += diagnoseIndex(ctx, out, emb)
			if emb == nil {
				failures++
			}

			if failures > 0 {
				return fmt.Errorf("diagnose: %d check(s) failed", failures)
			}
			fmt.Fprintln(out, "\nall checks passed")
			return nil
		},
	}

	return cmd
}

// diagnoseConfig reports configuration problems. Returns 1 when any exist.
func diagnoseConfig(out io.Writer) int {
	fmt.Fprintln(out, "configuration:")
	problems := config.Problems()
	if len(problems) == 0 {
		fmt.Fprintln(out, "  ok")
		return 0
	}
	for _, p := range problems {
		fmt.Fprintf(out, "  FAILED: %s\n", p)
	}
	return 1
}

// diagnoseProvider constructs the chat model and sends one probe request.
func diagnoseProvider(ctx context.Context, out io.Writer) int {
	cfg := provider.ConfigFromEnv()
	fmt.Fprintf(out, "\nmodel provider (%s):\n", cfg.Backend)

	m, err := provider.New(ctx, cfg)
	if err != nil {
		fmt.Fprintf(out, "  FAILED: %v\n", err)
		return 1
	}

	pctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if err := server.NewLLMPinger(m, string(cfg.Backend)).Ping(pctx); err != nil {
		fmt.Fprintf(out, "  FAILED: %v\n", err)
		return 1
	}
	fmt.Fprintln(out, "  reachable")
	return 0
}

// diagnoseEmbedding constructs the configured embedder and probes its
// vector dimension. Returns the embedder for the index checks, or nil when
// it could not be built or reached.
func diagnoseEmbedding(ctx context.Context, out io.Writer) rag.Embedder {
	scheme := embedder.SchemeFromEnv()
	fmt.Fprintf(out, "\nembedding (%s scheme):\n", scheme)

	emb, err := embedder.New(ctx, scheme)
	if err != nil {
		fmt.Fprintf(out, "  FAILED: %v\n", err)
		return nil
	}

	pctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	vecs, err := emb.Embed(pctx, []string{"dimension probe"})
	if err != nil {
		fmt.Fprintf(out, "  FAILED: embed probe: %v\n", err)
		return nil
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		fmt.Fprintln(out, "  FAILED: embed probe returned no vector")
		return nil
	}

	dim := len(vecs[0])
	fmt.Fprintf(out, "  dimension: %d (%s)\n", dim, dimensionHint(dim))
	return emb
}

// diagnoseIndex reports the index state for the configured backend.
// Opening the collection needs a working embedder; when emb is nil only
// the on-disk facts are reported.
func diagnoseIndex(ctx context.Context, out io.Writer, emb rag.Embedder) int {
	rcfg := embedder.ConfigFromEnv()
	backend := rcfg.Backend
	if backend == "" {
		backend = index.BackendChromem
	}
	fmt.Fprintf(out, "\nindex (%s backend):\n", backend)

	if backend == index.BackendChromem {
		info, err := os.Stat(rcfg.Dir)
		if err != nil || !info.IsDir() {
			fmt.Fprintf(out, "  FAILED: directory %q does not exist — run `adal ingest` first\n", rcfg.Dir)
			return 1
		}
		fmt.Fprintf(out, "  directory: %s\n", rcfg.Dir)

		marker, err := os.ReadFile(filepath.Join(rcfg.Dir, index.MarkerFile))
		if err != nil {
			fmt.Fprintf(out, "  marker: missing (%s) — local scheme assumed\n", index.MarkerFile)
		} else {
			raw := strings.TrimSpace(string(marker))
			fmt.Fprintf(out, "  marker: %q (%s scheme)\n", raw, index.ParseScheme(raw))
		}
	}

	if emb == nil {
		fmt.Fprintln(out, "  skipped: collection check needs a working embedder")
		return 0
	}

	var idx interface {
		Count() int
		Close() error
	}
	var err error
	switch backend {
	case index.BackendQdrant:
		idx, err = index.OpenQdrant(ctx, rcfg.Qdrant, emb)
	default:
		idx, err = index.OpenChromem(&index.ChromemConfig{Dir: rcfg.Dir, Collection: rcfg.Collection}, emb)
	}
	if err != nil {
		fmt.Fprintf(out, "  FAILED: open collection %q: %v\n", rcfg.Collection, err)
		return 1
	}
	defer func() { _ = idx.Close() }()

	count := idx.Count()
	fmt.Fprintf(out, "  collection: %s\n", rcfg.Collection)
	fmt.Fprintf(out, "  documents: %d\n", count)
	if count == 0 {
		fmt.Fprintln(out, "  FAILED: index is empty — run `adal ingest` first")
		return 1
	}
	return 0
}

// dimensionHint names the embedding model a vector dimension usually
// implies, so a mismatched index is recognisable from the report alone.
func dimensionHint(dim int) string {
	switch dim {
	case 384:
		return "MiniLM-class local model"
	case 768:
		return "Gemini text-embedding-004"
	case 1536:
		return "OpenAI text-embedding-3-small"
	default:
		return "no common model known for this dimension"
	}
}
