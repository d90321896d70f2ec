package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aitu-rag/aiturag/internal/chunk"
	"github.com/aitu-rag/aiturag/internal/ingest"
)

// newIngestCmd creates the ingest command.
func newIngestCmd() *cobra.Command {
	var urls []string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Fetch configured pages into the local corpus",
		Long: `Ingest downloads the configured university pages, extracts their
text, chunks it into token windows and writes one JSON record per page
into the corpus directory. Failed pages are skipped, not fatal.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			pages := cfg.URLs
			if len(urls) > 0 {
				pages = urls
			}
			if len(pages) == 0 {
				return fmt.Errorf("no URLs configured: set urls in %s or pass --url", configPath)
			}

			chunker, err := chunk.NewChunker(chunk.NewWordTokenizer(), cfg.Ingest.ChunkWindow, cfg.Ingest.ChunkOverlap)
			if err != nil {
				return err
			}

			fetcher := ingest.NewFetcher(chunker, ingest.FetcherConfig{
				MaxWorkers:     cfg.Ingest.MaxFetchWorkers,
				RequestTimeout: cfg.FetchTimeout(),
			})
			defer fetcher.Close()

			summary, err := fetcher.FetchAll(cmd.Context(), pages, cfg.Data.CorpusDir)
			if err != nil {
				return err
			}

			fmt.Printf("Ingested %d pages (%d chunks), %d failed\n",
				summary.Fetched, summary.Chunks, summary.Failed)
			if summary.Fetched == 0 {
				return fmt.Errorf("no pages ingested")
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&urls, "url", nil, "Ingest these URLs instead of the configured list")
	return cmd
}
