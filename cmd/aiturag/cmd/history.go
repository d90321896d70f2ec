package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aitu-rag/aiturag/internal/history"
)

// newHistoryCmd creates the history command.
func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent question/answer interactions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Data.HistoryPath == "" {
				return fmt.Errorf("history is disabled: data.history_path is empty")
			}

			hist, err := history.Open(cfg.Data.HistoryPath)
			if err != nil {
				return err
			}
			defer func() { _ = hist.Close() }()

			interactions, err := hist.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(interactions) == 0 {
				fmt.Println("No interactions recorded yet.")
				return nil
			}

			for _, it := range interactions {
				fmt.Printf("[%s] grounded=%v sources=%d %dms\n",
					it.CreatedAt.Format("2006-01-02 15:04:05"), it.Grounded, it.SourceCount, it.DurationMS)
				fmt.Printf("Q: %s\n", it.Question)
				fmt.Printf("A: %s\n\n", it.Answer)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of interactions to show")
	return cmd
}
