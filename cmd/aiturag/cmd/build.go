package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/aitu-rag/aiturag/internal/ingest"
	"github.com/aitu-rag/aiturag/internal/store"
)

// newBuildCmd creates the build command.
func newBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Embed the corpus and build the vector index",
		Long: `Build reads every corpus record, embeds all chunks with the
configured model, trains the index structure if it needs training, and
writes the index and metadata pair atomically to the index directory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			docs, err := ingest.LoadCorpus(cfg.Data.CorpusDir)
			if err != nil {
				return fmt.Errorf("load corpus (run 'aiturag ingest' first): %w", err)
			}
			if len(docs) == 0 {
				return fmt.Errorf("corpus is empty: run 'aiturag ingest' first")
			}

			var (
				texts   []string
				entries []store.Entry
			)
			for _, doc := range docs {
				for _, c := range doc.Chunks {
					texts = append(texts, c.Text)
					entries = append(entries, store.Entry{
						PageURL:   doc.URL,
						PageTitle: doc.Title,
						PageLang:  doc.Lang,
						ChunkID:   c.ChunkID,
						Text:      c.Text,
					})
				}
			}
			if len(texts) == 0 {
				return fmt.Errorf("corpus has no chunks")
			}

			embedder, err := newEmbedder(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = embedder.Close() }()

			fmt.Printf("Embedding %d chunks from %d pages with %s...\n",
				len(texts), len(docs), cfg.Embed.Model)
			start := time.Now()
			vectors, err := embedder.EmbedBatch(ctx, texts)
			if err != nil {
				return fmt.Errorf("embed corpus: %w", err)
			}

			st, err := store.NewStore(cfg.Index.Factory, embedder.Dimensions(),
				cfg.Index.Metric, embedder.ModelName(), cfg.Index.NProbe)
			if err != nil {
				return err
			}

			if st.NeedsTraining() {
				fmt.Printf("Training %s index on %d vectors...\n", cfg.Index.Factory, len(vectors))
				if err := st.Train(vectors); err != nil {
					return fmt.Errorf("train index: %w", err)
				}
			}
			if err := st.Add(vectors, entries); err != nil {
				return fmt.Errorf("add vectors: %w", err)
			}
			if err := st.Save(cfg.Data.IndexDir); err != nil {
				return fmt.Errorf("save index: %w", err)
			}

			fmt.Printf("Index built: %d chunks, %s, metric=%s, saved to %s (%.1fs)\n",
				st.Len(), cfg.Index.Factory, cfg.Index.Metric,
				cfg.Data.IndexDir, time.Since(start).Seconds())
			return nil
		},
	}
	return cmd
}
