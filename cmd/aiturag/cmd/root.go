// Package cmd provides the CLI commands for aiturag.
package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/aitu-rag/aiturag/internal/config"
	"github.com/aitu-rag/aiturag/internal/embed"
	"github.com/aitu-rag/aiturag/internal/logging"
	"github.com/aitu-rag/aiturag/internal/retrieve"
	"github.com/aitu-rag/aiturag/internal/store"
	"github.com/aitu-rag/aiturag/pkg/version"
)

var (
	configPath     string
	logLevel       string
	loggingCleanup func()
)

// NewRootCmd creates the root command for the aiturag CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aiturag",
		Short: "Retrieval-augmented QA bot for Astana IT University",
		Long: `aiturag ingests university web pages, builds a local vector index
over their text, and answers admissions questions grounded in the
indexed content via a local Ollama model.

Typical flow:

  aiturag ingest            # fetch pages into the corpus
  aiturag build             # embed chunks and build the index
  aiturag ask "..."         # answer one question
  aiturag serve             # run the HTTP API`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("aiturag version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (default aiturag.yaml)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	cmd.PersistentPreRunE = setupLogging
	cmd.PersistentPostRun = func(_ *cobra.Command, _ []string) {
		if loggingCleanup != nil {
			loggingCleanup()
			loggingCleanup = nil
		}
	}

	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newBuildCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newAskCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newHistoryCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// setupLogging wires slog before any command logic runs.
func setupLogging(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		// Fall back to default logging so the config error itself is
		// reported through the normal path.
		cfg = config.Default()
	}

	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}

	cleanup, err := logging.SetupDefault(logging.Config{
		Level:         level,
		FilePath:      cfg.Logging.File,
		WriteToStderr: true,
	})
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	loggingCleanup = cleanup
	return nil
}

// Execute runs the root command.
func Execute() error {
	err := NewRootCmd().Execute()
	if err != nil {
		slog.Error("command failed", slog.String("error", err.Error()))
		fmt.Println("Error:", err)
	}
	return err
}

// loadConfig loads and validates the configuration for a command run.
func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

// newEmbedder builds the configured Ollama embedder wrapped in the LRU
// query cache.
func newEmbedder(ctx context.Context, cfg *config.Config) (embed.Embedder, error) {
	base, err := embed.NewOllamaEmbedder(ctx, embed.OllamaConfig{
		Host:       cfg.Embed.OllamaHost,
		Model:      cfg.Embed.Model,
		Dimensions: cfg.Embed.Dimensions,
		BatchSize:  cfg.Embed.BatchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	if cfg.Embed.CacheSize <= 0 {
		return base, nil
	}
	return embed.NewCachedEmbedder(base, cfg.Embed.CacheSize), nil
}

// newRetriever opens the persisted index and wires the retrieval service.
func newRetriever(ctx context.Context, cfg *config.Config) (*retrieve.Service, *store.Store, error) {
	st, err := store.Open(cfg.Data.IndexDir)
	if err != nil {
		return nil, nil, err
	}

	embedder, err := newEmbedder(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	var reranker retrieve.Reranker
	if cfg.Retrieve.RerankerEndpoint != "" {
		reranker, err = retrieve.NewHTTPReranker(ctx, retrieve.HTTPRerankerConfig{
			Endpoint: cfg.Retrieve.RerankerEndpoint,
			Model:    cfg.Retrieve.RerankerModel,
		})
		if err != nil {
			slog.Warn("reranker unavailable, using vector order",
				slog.String("endpoint", cfg.Retrieve.RerankerEndpoint),
				slog.String("error", err.Error()))
			reranker = nil
		}
	}

	svc, err := retrieve.NewService(embedder, st, reranker, retrieve.Config{
		TopK:    cfg.Retrieve.TopK,
		RerankK: cfg.Retrieve.RerankK,
		Timeout: cfg.RetrieveTimeout(),
	})
	if err != nil {
		return nil, nil, err
	}
	return svc, st, nil
}
