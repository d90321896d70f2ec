package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aitu-rag/aiturag/internal/chunk"
	aituerr "github.com/aitu-rag/aiturag/internal/errors"
)

// Fetch defaults.
const (
	DefaultMaxWorkers     = 4
	DefaultRequestTimeout = 30 * time.Second
	maxResponseBytes      = 10 << 20 // 10 MiB per page
	userAgent             = "aiturag/1.0 (+https://github.com/aitu-rag/aiturag)"
)

// FetcherConfig holds ingestion parameters.
type FetcherConfig struct {
	// MaxWorkers bounds concurrent page fetches.
	MaxWorkers int

	// RequestTimeout is the per-page fetch timeout.
	RequestTimeout time.Duration
}

// Fetcher downloads pages concurrently, extracts and chunks their text,
// and writes corpus records. One bad page never aborts the crawl; its
// failure is logged and counted.
type Fetcher struct {
	client  *http.Client
	chunker *chunk.Chunker
	cfg     FetcherConfig
}

// Summary reports the outcome of one ingestion run.
type Summary struct {
	Fetched int
	Failed  int
	Chunks  int
}

// NewFetcher creates an ingestion fetcher using the given chunker.
func NewFetcher(chunker *chunk.Chunker, cfg FetcherConfig) *Fetcher {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = DefaultMaxWorkers
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	return &Fetcher{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        cfg.MaxWorkers * 2,
				MaxIdleConnsPerHost: cfg.MaxWorkers,
				IdleConnTimeout:     30 * time.Second,
			},
		},
		chunker: chunker,
		cfg:     cfg,
	}
}

// FetchAll downloads every URL with a bounded worker pool and writes one
// corpus record per page into corpusDir. Page failures are isolated;
// FetchAll only returns an error when the context is canceled.
func (f *Fetcher) FetchAll(ctx context.Context, urls []string, corpusDir string) (*Summary, error) {
	var (
		mu      sync.Mutex
		summary Summary
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(f.cfg.MaxWorkers)

	for _, pageURL := range urls {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			doc, err := f.fetchOne(ctx, pageURL)
			if err != nil {
				slog.Warn("page ingestion failed",
					slog.String("url", pageURL),
					slog.String("error", err.Error()))
				mu.Lock()
				summary.Failed++
				mu.Unlock()
				return nil
			}

			if err := doc.Save(corpusDir); err != nil {
				slog.Warn("corpus record write failed",
					slog.String("url", pageURL),
					slog.String("error", err.Error()))
				mu.Lock()
				summary.Failed++
				mu.Unlock()
				return nil
			}

			mu.Lock()
			summary.Fetched++
			summary.Chunks += len(doc.Chunks)
			mu.Unlock()

			slog.Info("page ingested",
				slog.String("url", pageURL),
				slog.String("title", doc.Title),
				slog.Int("chunks", len(doc.Chunks)))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return &summary, err
	}
	return &summary, nil
}

// fetchOne downloads and extracts a single page.
func (f *Fetcher) fetchOne(ctx context.Context, pageURL string) (*Document, error) {
	reqCtx, cancel := context.WithTimeout(ctx, f.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, aituerr.New(aituerr.ErrCodeFetchFailed, "build request", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, aituerr.New(aituerr.ErrCodeFetchFailed, "fetch page", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, aituerr.New(aituerr.ErrCodeFetchFailed,
			fmt.Sprintf("unexpected status %d", resp.StatusCode), nil).
			WithDetail("url", pageURL)
	}

	body := io.LimitReader(resp.Body, maxResponseBytes)
	page, err := ExtractPage(body)
	if err != nil {
		return nil, aituerr.New(aituerr.ErrCodeExtractFailed, "extract page text", err)
	}

	chunks := f.chunker.Chunk(page.Text)

	return &Document{
		URL:    pageURL,
		Title:  page.Title,
		Lang:   page.Lang,
		Text:   page.Text,
		Chunks: chunks,
	}, nil
}

// Close releases idle connections.
func (f *Fetcher) Close() {
	if transport, ok := f.client.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}
