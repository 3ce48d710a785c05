package commands

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/adal-ai/adal-go/internal/chat"
	"github.com/adal-ai/adal-go/internal/embedder"
	"github.com/adal-ai/adal-go/internal/logging"
	"github.com/adal-ai/adal-go/internal/moderation"
	"github.com/adal-ai/adal-go/internal/provider"
	"github.com/adal-ai/adal-go/internal/rag"
)

// NewChatCmd constructs the `adal chat` command, which sends a single
// question through the full retrieval pipeline and streams the answer to
// stdout.
func NewChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat [question]",
		Short: "Ask the thesis assistant a one-shot question",
		Long: `Ask the thesis assistant a single question from the terminal.

The question goes through the same pipeline as the HTTP API: retrieval
over the thesis index, prompt assembly, and streaming generation. The
answer streams to stdout as it is generated.

Examples:
  adal chat "what theses cover flood monitoring?"
  adal chat "list thesis titles about machine learning"
  LOG_FORMAT=text adal chat "who wrote the enrollment system study?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			chatModel, err := provider.NewFromEnv(ctx)
			if err != nil {
				return fmt.Errorf("chat: failed to initialise model provider: %w", err)
			}

			idx, scheme, err := embedder.Resolve(ctx, embedder.ConfigFromEnv())
			if err != nil {
				log.Warn("chat: index unavailable, answering without retrieval",
					slog.Any("error", err),
				)
				idx = nil
			} else {
				defer func() { _ = idx.Close() }()
				log.Debug("chat: index ready",
					slog.String("scheme", string(scheme)),
					slog.Int("documents", idx.Count()),
				)
			}

			retriever, err := buildRetriever(idx)
			if err != nil {
				return fmt.Errorf("chat: %w", err)
			}

			cfg := &chat.Config{
				Model:         chatModel,
				Reconstructor: rag.NewReconstructor(chatModel),
			}
			if retriever != nil {
				cfg.Retriever = retriever
			}
			svc, err := chat.New(cfg)
			if err != nil {
				return fmt.Errorf("chat: failed to initialise chat service: %w", err)
			}

			stream, err := svc.Ask(ctx, chat.Request{Question: args[0]})
			if err != nil {
				if errors.Is(err, chat.ErrBlocked) {
					fmt.Println(moderation.BlockedMessage)
					return nil
				}
				return fmt.Errorf("chat: %w", err)
			}
			defer stream.Close()

			for {
				fragment, err := stream.Recv()
				if errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					fmt.Println()
					return fmt.Errorf("chat: %w", err)
				}
				fmt.Print(fragment)
			}
			fmt.Println()

			if w := stream.Stats().Warning; w != "" {
				fmt.Fprintf(os.Stderr, "warning: answer ended early (%s)\n", w)
			}
			return nil
		},
	}

	return cmd
}
