// Package store persists the vector index and its row-aligned metadata.
//
// The row id — the 0-based insertion sequence number of a vector — is the
// permanent join key between the numeric index and the metadata entries.
// Both artifacts are written together and validated against each other on
// load; a pair whose row counts disagree is corrupt, not recoverable.
package store

import (
	"errors"
	"fmt"
	"io"
	"math"
)

// Supported distance metrics. The metric is fixed for the lifetime of one
// index and recorded in its manifest.
const (
	MetricCosine = "cos"
	MetricL2     = "l2"
)

// Entry is the metadata for one indexed chunk, stored at the position
// matching its vector's row id.
type Entry struct {
	PageURL   string
	PageTitle string
	PageLang  string
	ChunkID   int
	Text      string
}

// Hit is a single nearest-neighbor search result.
type Hit struct {
	// Row is the vector's insertion sequence number (0-based).
	Row int
	// Distance is the raw metric distance; lower is more similar.
	Distance float32
	// Score is the normalized similarity (0-1); higher is more similar.
	Score float32
}

// VectorIndex is the nearest-neighbor structure contract. Implementations
// assign row ids sequentially in Add order and return Search results
// ordered by ascending distance, ties broken by ascending row id.
type VectorIndex interface {
	// NeedsTraining reports whether Train must be called before Add.
	NeedsTraining() bool

	// Trained reports whether the index is ready to accept vectors.
	// Always true for structures that need no training.
	Trained() bool

	// Train fits the index structure on a representative vector sample.
	Train(vectors [][]float32) error

	// Add appends vectors in input order. Fails with ErrNotTrained if the
	// structure requires training and Train has not been called.
	Add(vectors [][]float32) error

	// Search returns up to k nearest neighbors of query.
	Search(query []float32, k int) ([]Hit, error)

	// Len returns the number of stored vectors.
	Len() int

	// Dims returns the vector dimensionality.
	Dims() int

	// Metric returns the distance metric ("cos" or "l2").
	Metric() string

	// WriteTo serializes the index structure.
	WriteTo(w io.Writer) error

	// ReadFrom restores the index structure.
	ReadFrom(r io.Reader) error
}

// ErrNotTrained is returned when Add is called on an index structure that
// requires training before any vectors can be inserted.
var ErrNotTrained = errors.New("index not trained: Train must complete before Add")

// ErrDimensionMismatch indicates vector dimension mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}

// LoadError indicates the persisted artifact pair could not be opened:
// a file is missing or unreadable, or the vector structure and metadata
// sequence disagree. Fatal at startup; serving must not begin.
type LoadError struct {
	Path   string
	Reason string
	Cause  error
}

func (e *LoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("load index %s: %s: %v", e.Path, e.Reason, e.Cause)
	}
	return fmt.Sprintf("load index %s: %s", e.Path, e.Reason)
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

// ModelMismatchError indicates the embedding model recorded with a
// persisted index differs from the model configured at query time.
// Distances between vectors from different models are meaningless.
type ModelMismatchError struct {
	IndexModel string
	QueryModel string
}

func (e *ModelMismatchError) Error() string {
	return fmt.Sprintf("index built with embedding model %q but query embedder is %q",
		e.IndexModel, e.QueryModel)
}

// validMetric reports whether m is a supported metric name.
func validMetric(m string) bool {
	return m == MetricCosine || m == MetricL2
}

// distance computes the metric distance between two equal-length vectors.
// Cosine distance assumes unit-normalized inputs: d = 1 - dot, range 0-2.
func distance(metric string, a, b []float32) float32 {
	switch metric {
	case MetricL2:
		var sum float64
		for i := range a {
			d := float64(a[i]) - float64(b[i])
			sum += d * d
		}
		return float32(math.Sqrt(sum))
	default:
		var dot float64
		for i := range a {
			dot += float64(a[i]) * float64(b[i])
		}
		return float32(1 - dot)
	}
}

// distanceToScore converts a distance value to a similarity score in [0,1].
func distanceToScore(metric string, d float32) float32 {
	switch metric {
	case MetricL2:
		return 1.0 / (1.0 + d)
	default:
		// Cosine distance ranges 0 (identical) to 2 (opposite).
		return 1.0 - d/2.0
	}
}

// normalizeVectorInPlace normalizes a vector to unit length in place.
func normalizeVectorInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	invMagnitude := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= invMagnitude
	}
}

// copyForMetric copies a vector, normalizing when the metric is cosine.
// The embedder normalizes already; doing it again here keeps the index
// correct even for vectors that arrive through another path.
func copyForMetric(metric string, v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	if metric == MetricCosine {
		normalizeVectorInPlace(out)
	}
	return out
}
