package retrieve

import (
	"context"
)

// RerankResult is a single cross-encoder score for one candidate document.
type RerankResult struct {
	// Index is the candidate's position in the input documents slice.
	Index int
	// Score is the relevance score; higher is more relevant.
	Score float64
}

// Reranker scores query-document pairs with a cross-encoder. Joint
// encoding is more accurate than the bi-encoder distances from the vector
// index, at higher per-pair cost, so it only runs over the candidate pool.
// A nil Reranker in the retrieval service disables the second stage.
type Reranker interface {
	// Rerank scores documents against the query, truncated to topK when
	// topK > 0. The caller re-sorts by score, so output order is free.
	Rerank(ctx context.Context, query string, documents []string, topK int) ([]RerankResult, error)

	// Available reports whether the reranker service is reachable.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}
