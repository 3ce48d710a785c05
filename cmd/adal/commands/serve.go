package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/adal-ai/adal-go/internal/chat"
	"github.com/adal-ai/adal-go/internal/config"
	"github.com/adal-ai/adal-go/internal/embedder"
	"github.com/adal-ai/adal-go/internal/index"
	"github.com/adal-ai/adal-go/internal/logging"
	"github.com/adal-ai/adal-go/internal/provider"
	"github.com/adal-ai/adal-go/internal/rag"
	"github.com/adal-ai/adal-go/internal/server"
	"github.com/adal-ai/adal-go/internal/store"
	"github.com/adal-ai/adal-go/internal/tracing"
)

// NewServeCmd constructs the `adal serve` command, which starts the HTTP
// server behind the thesis assistant frontend.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Adal HTTP server",
		Long: `Start the Adal HTTP server.

The server exposes the REST/SSE API the web frontend talks to: streaming
chat, retrieval-only search, session history, health and readiness probes,
and Prometheus metrics.

A failed index load does not prevent startup: chat degrades to a fixed
unavailability answer and /api/search returns 503 until the index is
rebuilt with 'adal ingest'.

Examples:
  adal serve
  adal serve --port 9090
  MODEL_PROVIDER=ollama adal serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			// Config problems are fatal here and only here: a broken env
			// would come up as a server that cannot answer anything.
			if problems := config.Problems(); len(problems) > 0 {
				return fmt.Errorf("serve: configuration problems:\n  - %s", strings.Join(problems, "\n  - "))
			}

			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			// Langfuse tracing — opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			providerCfg := provider.ConfigFromEnv()
			chatModel, err := provider.New(ctx, providerCfg)
			if err != nil {
				return fmt.Errorf("serve: failed to initialise model provider: %w", err)
			}
			log.Info("provider initialised", slog.String("provider", string(providerCfg.Backend)))

			// Resolve the index under the scheme it was built with. Failure
			// degrades retrieval instead of refusing to start: operators
			// fix the index with `adal ingest` while chat keeps answering
			// with the fallback message.
			idx, scheme, err := embedder.Resolve(ctx, embedder.ConfigFromEnv())
			if err != nil {
				log.Warn("serve: index unavailable, serving degraded",
					slog.Any("error", err),
				)
				idx = nil
			} else {
				defer func() { _ = idx.Close() }()
				log.Info("serve: index ready",
					slog.String("scheme", string(scheme)),
					slog.Int("documents", idx.Count()),
				)
			}

			retriever, err := buildRetriever(idx)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			// Conversation history: raw store for the readiness probe,
			// breaker-wrapped store for every serving-path caller.
			var history store.HistoryStore
			var recorder *store.Recorder
			rawStore := openHistory(log)
			if rawStore != nil {
				defer func() { _ = rawStore.Close() }()
				breaker := store.NewBreakerStore(rawStore, log)
				history = breaker
				recorder = store.NewRecorder(breaker, log,
					store.NewRecorderMetrics(prometheus.DefaultRegisterer),
					store.RecorderConfig{},
				)
				defer recorder.Close()
			}

			chatCfg := &chat.Config{
				Model:         chatModel,
				Reconstructor: rag.NewReconstructor(chatModel),
			}
			if retriever != nil {
				chatCfg.Retriever = retriever
			}
			if history != nil {
				chatCfg.History = history
				chatCfg.Recorder = recorder
			}
			chatSvc, err := chat.New(chatCfg)
			if err != nil {
				return fmt.Errorf("serve: failed to initialise chat service: %w", err)
			}

			// Readiness probes, ordered model → index → history.
			pingers := []server.Pinger{
				server.NewLLMPinger(chatModel, string(providerCfg.Backend)),
				server.NewIndexPinger(idx),
			}
			if q, ok := idx.(*index.QdrantIndex); ok {
				pingers = append(pingers, server.NewQdrantPinger(q.Client()))
			}
			if rawStore != nil {
				pingers = append(pingers, server.NewStorePinger(rawStore))
			}

			if !cmd.Flags().Changed("host") {
				host = envOrDefault("SERVER_HOST", host)
			}
			if !cmd.Flags().Changed("port") {
				port = envInt("SERVER_PORT", port)
			}

			srv, err := server.New(
				server.Deps{
					Chat:    chatSvc,
					Index:   idx,
					History: history,
				},
				&server.Config{
					Host:       host,
					Port:       port,
					Logger:     log,
					Pingers:    pingers,
					APIKey:     os.Getenv("ADAL_API_KEY"),
					SearchTopK: envInt("RETRIEVAL_TOP_K", 0),
				},
			)
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
