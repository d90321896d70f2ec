package retrieve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/aitu-rag/aiturag/internal/embed"
	"github.com/aitu-rag/aiturag/internal/store"
)

// Config holds the retrieval pipeline parameters.
type Config struct {
	// TopK is the vector-search candidate pool size.
	TopK int

	// RerankK is the number of results kept after reranking.
	RerankK int

	// Timeout bounds one full Retrieve call.
	Timeout time.Duration
}

// Service runs the two-stage pipeline: embed the query, pull TopK
// candidates from the vector index, rerank them with the cross-encoder
// and keep the best RerankK. A nil reranker skips the second stage and
// the candidates keep their vector-similarity scores.
type Service struct {
	embedder embed.Embedder
	store    *store.Store
	reranker Reranker
	cfg      Config
}

// NewService wires the pipeline together. It refuses to serve when the
// query embedder differs from the model the index was built with, since
// distances across models are meaningless.
func NewService(embedder embed.Embedder, st *store.Store, reranker Reranker, cfg Config) (*Service, error) {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.RerankK <= 0 {
		cfg.RerankK = DefaultRerankK
	}
	if cfg.RerankK > cfg.TopK {
		cfg.RerankK = cfg.TopK
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	manifest := st.Manifest()
	if manifest.Model != "" && manifest.Model != embedder.ModelName() {
		return nil, &store.ModelMismatchError{
			IndexModel: manifest.Model,
			QueryModel: embedder.ModelName(),
		}
	}
	if manifest.Dims != 0 && manifest.Dims != embedder.Dimensions() {
		return nil, fmt.Errorf("index dimensions %d do not match embedder dimensions %d",
			manifest.Dims, embedder.Dimensions())
	}

	return &Service{
		embedder: embedder,
		store:    st,
		reranker: reranker,
		cfg:      cfg,
	}, nil
}

// Retrieve returns the RerankK chunks most relevant to the query. An
// empty index yields an empty result, not an error.
func (s *Service) Retrieve(ctx context.Context, query string) ([]Result, error) {
	if s.store.Len() == 0 {
		return []Result{}, nil
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &TimeoutError{Stage: "embed", Elapsed: time.Since(start), Cause: err}
		}
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := s.store.Search(queryVec, s.cfg.TopK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	if len(hits) == 0 {
		return []Result{}, nil
	}

	candidates := make([]Result, len(hits))
	documents := make([]string, len(hits))
	for i, hit := range hits {
		entry, err := s.store.Entry(hit.Row)
		if err != nil {
			return nil, fmt.Errorf("resolve row %d: %w", hit.Row, err)
		}
		candidates[i] = Result{
			Text:      entry.Text,
			PageURL:   entry.PageURL,
			PageTitle: entry.PageTitle,
			PageLang:  entry.PageLang,
			ChunkID:   entry.ChunkID,
			Score:     float64(hit.Score),
		}
		documents[i] = entry.Text
	}

	if s.reranker == nil {
		if s.cfg.RerankK < len(candidates) {
			candidates = candidates[:s.cfg.RerankK]
		}
		return candidates, nil
	}

	reranked, err := s.reranker.Rerank(ctx, query, documents, s.cfg.RerankK)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &TimeoutError{Stage: "rerank", Elapsed: time.Since(start), Cause: err}
		}
		// Degrade to vector order rather than failing the query.
		slog.Warn("rerank failed, falling back to vector order",
			slog.String("error", err.Error()))
		if s.cfg.RerankK < len(candidates) {
			candidates = candidates[:s.cfg.RerankK]
		}
		return candidates, nil
	}

	ranked := make([]RerankResult, 0, len(reranked))
	for _, rr := range reranked {
		if rr.Index < 0 || rr.Index >= len(candidates) {
			continue
		}
		ranked = append(ranked, rr)
	}
	// The reranker's output order is not trusted; sort by score here,
	// breaking ties by the stage-1 rank.
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Index < ranked[j].Index
	})

	results := make([]Result, 0, len(ranked))
	for _, rr := range ranked {
		res := candidates[rr.Index]
		res.Score = rr.Score
		results = append(results, res)
	}
	if s.cfg.RerankK < len(results) {
		results = results[:s.cfg.RerankK]
	}

	slog.Debug("retrieval completed",
		slog.Int("candidates", len(candidates)),
		slog.Int("results", len(results)),
		slog.Duration("elapsed", time.Since(start)))

	return results, nil
}

// Close releases the pipeline's resources.
func (s *Service) Close() error {
	var firstErr error
	if s.reranker != nil {
		if err := s.reranker.Close(); err != nil {
			firstErr = err
		}
	}
	if err := s.embedder.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
