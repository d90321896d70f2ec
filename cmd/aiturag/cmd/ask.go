package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aitu-rag/aiturag/internal/history"
	"github.com/aitu-rag/aiturag/internal/llm"
	"github.com/aitu-rag/aiturag/internal/rag"
)

// newAskCmd creates the ask command.
func newAskCmd() *cobra.Command {
	var showSources bool

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question from the indexed knowledge base",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			question := strings.Join(args, " ")

			retriever, _, err := newRetriever(cmd.Context(), cfg)
			if err != nil {
				return err
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
			ans, err := engine.Ask(cmd.Context(), question)
			if err != nil {
				return err
			}

			fmt.Println(ans.Text)
			if showSources && len(ans.Sources) > 0 {
				fmt.Println("\nSources:")
				for i, s := range ans.Sources {
					fmt.Printf("  [%d] %s\n", i+1, s.PageURL)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showSources, "sources", false, "Print source URLs after the answer")
	return cmd
}
