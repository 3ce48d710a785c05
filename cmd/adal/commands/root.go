// Package commands defines all Cobra CLI commands for the adal binary.
package commands

import (
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/adal-ai/adal-go/internal/audit"
	"github.com/adal-ai/adal-go/internal/config"
	"github.com/adal-ai/adal-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "adal",
		Short: "Adal — the CSPC thesis assistant powered by retrieval-augmented LLMs",
		Long: `Adal is a retrieval-augmented chat assistant over the CSPC thesis archive.

It answers questions about indexed thesis documents, lists titles and
abstracts, and serves a streaming chat API for the campus web frontend.

Model provider is selected via the MODEL_PROVIDER environment variable
or a YAML config file (~/.adal/config.yaml).
See 'adal --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// .env is loaded before anything reads the environment. A
			// missing file is the normal case outside development.
			_ = godotenv.Load()

			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Surface every configuration problem, not just the first.
			// Non-serve commands keep running so `adal diagnose` can
			// report a broken setup instead of refusing to look at it.
			for _, p := range config.Problems() {
				log.Warn("config: problem detected", slog.String("problem", p))
			}

			// Redacted env audit, visible under LOG_LEVEL=debug.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.adal/config.yaml)")

	root.AddCommand(
		NewServeCmd(),
		NewChatCmd(),
		NewIngestCmd(),
		NewDiagnoseCmd(),
		NewVersionCmd(),
	)

	return root
}
