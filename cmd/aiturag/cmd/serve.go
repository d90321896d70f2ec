package cmd

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aitu-rag/aiturag/internal/history"
	"github.com/aitu-rag/aiturag/internal/llm"
	"github.com/aitu-rag/aiturag/internal/rag"
	"github.com/aitu-rag/aiturag/internal/server"
)

// newServeCmd creates the serve command.
func newServeCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP question-answering API",
		Long: `Serve loads the persisted index and exposes the pipeline over HTTP:

  GET  /ping     liveness probe
  POST /ask      {"question": "..."} -> grounded answer with sources
  POST /search   {"query": "..."}   -> ranked chunks without generation

The server refuses to start when the index pair is missing or corrupt.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if port > 0 {
				cfg.Server.Port = port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			retriever, st, err := newRetriever(ctx, cfg)
			if err != nil {
				return fmt.Errorf("load index: %w", err)
			}
			defer func() { _ = retriever.Close() }()

			generator := llm.NewOllamaGenerator(llm.OllamaConfig{
				Host:        cfg.LLM.Host,
				Model:       cfg.LLM.Model,
				Temperature: cfg.LLM.Temperature,
				Timeout:     cfg.LLMTimeout(),
			})
			defer func() { _ = generator.Close() }()

			var hist *history.Store
			if cfg.Data.HistoryPath != "" {
				hist, err = history.Open(cfg.Data.HistoryPath)
				if err != nil {
					slog.Warn("history unavailable", slog.String("error", err.Error()))
				} else {
					defer func() { _ = hist.Close() }()
				}
			}

			engine := rag.NewEngine(retriever, generator, hist)
			srv := server.New(engine, retriever, server.Config{
				Host: cfg.Server.Host,
				Port: cfg.Server.Port,
			})

			manifest := st.Manifest()
			slog.Info("serving",
				slog.Int("chunks", manifest.Count),
				slog.String("model", manifest.Model),
				slog.String("factory", manifest.Factory))

			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Listen port (overrides config)")
	return cmd
}
