// Package retrieve implements the two-stage retrieval pipeline: a broad
// vector search over the index followed by cross-encoder reranking of the
// candidate pool.
package retrieve

import (
	"fmt"
	"time"
)

// Default retrieval parameters.
const (
	DefaultTopK    = 25
	DefaultRerankK = 10
	DefaultTimeout = 30 * time.Second
)

// Result is one retrieved chunk with its metadata and relevance score.
type Result struct {
	Text      string  `json:"text"`
	PageURL   string  `json:"page_url"`
	PageTitle string  `json:"page_title"`
	PageLang  string  `json:"page_lang"`
	ChunkID   int     `json:"chunk_id"`
	Score     float64 `json:"score"`
}

// TimeoutError indicates the retrieval pipeline exceeded its deadline.
type TimeoutError struct {
	Stage   string
	Elapsed time.Duration
	Cause   error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("retrieval timed out in %s stage after %s: %v", e.Stage, e.Elapsed, e.Cause)
}

func (e *TimeoutError) Unwrap() error {
	return e.Cause
}
