// Package embed generates dense vector embeddings for text.
//
// One model identity per index: the model name used at build time is
// recorded in the index manifest and verified at query time, because
// vectors from different models live in incompatible spaces.
package embed

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Common embedding constants.
const (
	// DefaultBatchSize is the default batch size for embedding requests.
	DefaultBatchSize = 32

	// MaxBatchSize is the maximum allowed batch size (prevents memory exhaustion).
	MaxBatchSize = 256

	// DefaultTimeout is the per-request timeout for embedding calls.
	DefaultTimeout = 60 * time.Second

	// DefaultMaxRetries is the default number of retry attempts.
	DefaultMaxRetries = 3

	// DefaultOllamaHost is the default Ollama API endpoint.
	DefaultOllamaHost = "http://localhost:11434"

	// DefaultDimensions is the embedding dimension for all-minilm.
	DefaultDimensions = 384
)

// Embedder generates vector embeddings for text.
// Implementations must preserve input order and must not let batching
// change output values: embedding i corresponds to text i.
type Embedder interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	// The whole batch either succeeds or fails; there is no partial success.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension.
	Dimensions() int

	// ModelName returns the model identifier recorded with built indexes.
	ModelName() string

	// Available checks if the embedder is ready.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// EmbeddingError indicates the model could not be loaded or an input could
// not be embedded. It is fatal to the current build batch.
type EmbeddingError struct {
	Model string
	Cause error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding with model %q failed: %v", e.Model, e.Cause)
}

func (e *EmbeddingError) Unwrap() error {
	return e.Cause
}

// normalizeVector normalizes a vector to unit length.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v // zero vector stays as-is
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}
