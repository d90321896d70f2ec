package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// newSearchCmd creates the search command.
func newSearchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Retrieve the most relevant indexed chunks for a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			query := strings.Join(args, " ")

			retriever, _, err := newRetriever(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = retriever.Close() }()

			results, err := retriever.Retrieve(cmd.Context(), query)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Println("No results.")
				return nil
			}
			if limit > 0 && limit < len(results) {
				results = results[:limit]
			}

			for i, r := range results {
				fmt.Printf("%d. [%.3f] %s (%s, chunk %d)\n", i+1, r.Score, r.PageTitle, r.PageLang, r.ChunkID)
				fmt.Printf("   %s\n", r.PageURL)
				fmt.Printf("   %s\n\n", snippet(r.Text, 200))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show at most this many results")
	return cmd
}

// snippet trims text for terminal display.
func snippet(text string, maxLen int) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) <= maxLen {
		return text
	}
	return text[:maxLen] + "..."
}
