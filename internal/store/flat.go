package store

import (
	"encoding/gob"
	"fmt"
	"io"
	"sort"
	"sync"
)

// FlatIndex is an exact brute-force index: every search scans all rows.
// It is the default structure and the reference for the other backends'
// recall. Needs no training.
type FlatIndex struct {
	mu      sync.RWMutex
	dims    int
	metric  string
	vectors [][]float32
}

// flatState is the gob-serialized form of a FlatIndex.
type flatState struct {
	Dims    int
	Metric  string
	Vectors [][]float32
}

// Verify interface implementation at compile time.
var _ VectorIndex = (*FlatIndex)(nil)

// NewFlatIndex creates an exact scan index.
func NewFlatIndex(dims int, metric string) (*FlatIndex, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", dims)
	}
	if !validMetric(metric) {
		return nil, fmt.Errorf("unsupported metric %q", metric)
	}
	return &FlatIndex{dims: dims, metric: metric}, nil
}

// NeedsTraining always returns false for a flat index.
func (f *FlatIndex) NeedsTraining() bool { return false }

// Trained always returns true for a flat index.
func (f *FlatIndex) Trained() bool { return true }

// Train is a no-op for a flat index.
func (f *FlatIndex) Train(vectors [][]float32) error { return nil }

// Add appends vectors; row ids follow insertion order.
func (f *FlatIndex) Add(vectors [][]float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, v := range vectors {
		if len(v) != f.dims {
			return ErrDimensionMismatch{Expected: f.dims, Got: len(v)}
		}
	}
	for _, v := range vectors {
		f.vectors = append(f.vectors, copyForMetric(f.metric, v))
	}
	return nil
}

// Search scans every row and returns the k nearest, ascending by distance,
// ties broken by ascending row id.
func (f *FlatIndex) Search(query []float32, k int) ([]Hit, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if len(query) != f.dims {
		return nil, ErrDimensionMismatch{Expected: f.dims, Got: len(query)}
	}
	if k <= 0 || len(f.vectors) == 0 {
		return []Hit{}, nil
	}

	q := copyForMetric(f.metric, query)

	hits := make([]Hit, len(f.vectors))
	for row, v := range f.vectors {
		d := distance(f.metric, q, v)
		hits[row] = Hit{Row: row, Distance: d, Score: distanceToScore(f.metric, d)}
	}

	sortHits(hits)
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

// Len returns the number of stored vectors.
func (f *FlatIndex) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.vectors)
}

// Dims returns the vector dimensionality.
func (f *FlatIndex) Dims() int { return f.dims }

// Metric returns the distance metric.
func (f *FlatIndex) Metric() string { return f.metric }

// WriteTo serializes the index with gob.
func (f *FlatIndex) WriteTo(w io.Writer) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return gob.NewEncoder(w).Encode(flatState{
		Dims:    f.dims,
		Metric:  f.metric,
		Vectors: f.vectors,
	})
}

// ReadFrom restores the index from its gob form.
func (f *FlatIndex) ReadFrom(r io.Reader) error {
	var state flatState
	if err := gob.NewDecoder(r).Decode(&state); err != nil {
		return fmt.Errorf("decode flat index: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.dims = state.Dims
	f.metric = state.Metric
	f.vectors = state.Vectors
	return nil
}

// sortHits orders hits by ascending distance, ties by ascending row id.
func sortHits(hits []Hit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].Row < hits[j].Row
	})
}
