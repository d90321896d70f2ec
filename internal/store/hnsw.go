package store

import (
	"bufio"
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
	"sync"

	"github.com/coder/hnsw"
)

// Default HNSW parameters.
const (
	defaultHNSWM        = 16
	defaultHNSWEfSearch = 40
)

// HNSWIndex is an approximate nearest-neighbor index backed by the
// coder/hnsw graph. Graph nodes are keyed directly by row id, so no
// separate id mapping is needed. Needs no training.
type HNSWIndex struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[uint64]
	dims   int
	metric string
	m      int
	count  int
}

// hnswState is the gob-serialized form of an HNSWIndex. The graph itself
// uses its own binary export format, carried as an opaque byte slice.
type hnswState struct {
	Dims   int
	Metric string
	M      int
	Count  int
	Graph  []byte
}

// Verify interface implementation at compile time.
var _ VectorIndex = (*HNSWIndex)(nil)

// NewHNSWIndex creates an HNSW graph index with the given neighbor count m.
func NewHNSWIndex(dims int, metric string, m int) (*HNSWIndex, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", dims)
	}
	if !validMetric(metric) {
		return nil, fmt.Errorf("unsupported metric %q", metric)
	}
	if m <= 0 {
		m = defaultHNSWM
	}

	ix := &HNSWIndex{dims: dims, metric: metric, m: m}
	ix.graph = ix.newGraph()
	return ix, nil
}

func (ix *HNSWIndex) newGraph() *hnsw.Graph[uint64] {
	graph := hnsw.NewGraph[uint64]()
	switch ix.metric {
	case MetricL2:
		graph.Distance = hnsw.EuclideanDistance
	default:
		graph.Distance = hnsw.CosineDistance
	}
	graph.M = ix.m
	graph.EfSearch = defaultHNSWEfSearch
	graph.Ml = 0.25
	return graph
}

// NeedsTraining always returns false for an HNSW index.
func (ix *HNSWIndex) NeedsTraining() bool { return false }

// Trained always returns true for an HNSW index.
func (ix *HNSWIndex) Trained() bool { return true }

// Train is a no-op for an HNSW index.
func (ix *HNSWIndex) Train(vectors [][]float32) error { return nil }

// Add inserts vectors into the graph; row ids follow insertion order.
func (ix *HNSWIndex) Add(vectors [][]float32) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	for _, v := range vectors {
		if len(v) != ix.dims {
			return ErrDimensionMismatch{Expected: ix.dims, Got: len(v)}
		}
	}
	for _, v := range vectors {
		vec := copyForMetric(ix.metric, v)
		ix.graph.Add(hnsw.MakeNode(uint64(ix.count), vec))
		ix.count++
	}
	return nil
}

// Search returns up to k approximate nearest neighbors, ascending by
// distance, ties by ascending row id.
func (ix *HNSWIndex) Search(query []float32, k int) ([]Hit, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if len(query) != ix.dims {
		return nil, ErrDimensionMismatch{Expected: ix.dims, Got: len(query)}
	}
	if k <= 0 || ix.count == 0 {
		return []Hit{}, nil
	}

	q := copyForMetric(ix.metric, query)

	nodes := ix.graph.Search(q, k)
	hits := make([]Hit, 0, len(nodes))
	for _, node := range nodes {
		d := ix.graph.Distance(q, node.Value)
		hits = append(hits, Hit{
			Row:      int(node.Key),
			Distance: d,
			Score:    distanceToScore(ix.metric, d),
		})
	}

	sortHits(hits)
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

// Len returns the number of stored vectors.
func (ix *HNSWIndex) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.count
}

// Dims returns the vector dimensionality.
func (ix *HNSWIndex) Dims() int { return ix.dims }

// Metric returns the distance metric.
func (ix *HNSWIndex) Metric() string { return ix.metric }

// WriteTo serializes the index: graph parameters plus the graph's own
// binary export, wrapped in a single gob message.
func (ix *HNSWIndex) WriteTo(w io.Writer) error {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var graphBuf bytes.Buffer
	if err := ix.graph.Export(&graphBuf); err != nil {
		return fmt.Errorf("export hnsw graph: %w", err)
	}

	return gob.NewEncoder(w).Encode(hnswState{
		Dims:   ix.dims,
		Metric: ix.metric,
		M:      ix.m,
		Count:  ix.count,
		Graph:  graphBuf.Bytes(),
	})
}

// ReadFrom restores the index from its serialized form.
func (ix *HNSWIndex) ReadFrom(r io.Reader) error {
	var state hnswState
	if err := gob.NewDecoder(r).Decode(&state); err != nil {
		return fmt.Errorf("decode hnsw index: %w", err)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.dims = state.Dims
	ix.metric = state.Metric
	ix.m = state.M
	ix.count = state.Count
	ix.graph = ix.newGraph()

	// Import requires an io.ByteReader.
	reader := bufio.NewReader(bytes.NewReader(state.Graph))
	if err := ix.graph.Import(reader); err != nil {
		return fmt.Errorf("import hnsw graph: %w", err)
	}
	return nil
}
