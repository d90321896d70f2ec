package store

import (
	"encoding/gob"
	"fmt"
	"io"
	"sort"
	"sync"
)

// kmeansIterations bounds the training loop; assignments typically
// stabilize much earlier on text-embedding workloads.
const kmeansIterations = 25

// IVFIndex partitions the vector space into nlist cells via k-means and
// scans only the nprobe nearest cells at query time. Training must finish
// before any vector is added; Add on an untrained IVF index fails with
// ErrNotTrained.
type IVFIndex struct {
	mu        sync.RWMutex
	dims      int
	metric    string
	nlist     int
	nprobe    int
	trained   bool
	centroids [][]float32
	lists     [][]int32   // row ids per cell
	vectors   [][]float32 // all vectors, indexed by row id
}

// ivfState is the gob-serialized form of an IVFIndex.
type ivfState struct {
	Dims      int
	Metric    string
	NList     int
	NProbe    int
	Trained   bool
	Centroids [][]float32
	Lists     [][]int32
	Vectors   [][]float32
}

// Verify interface implementation at compile time.
var _ VectorIndex = (*IVFIndex)(nil)

// NewIVFIndex creates an inverted-file index with nlist cells, scanning
// nprobe cells per query.
func NewIVFIndex(dims int, metric string, nlist, nprobe int) (*IVFIndex, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", dims)
	}
	if !validMetric(metric) {
		return nil, fmt.Errorf("unsupported metric %q", metric)
	}
	if nlist <= 0 {
		return nil, fmt.Errorf("nlist must be positive, got %d", nlist)
	}
	if nprobe <= 0 {
		nprobe = 1
	}
	if nprobe > nlist {
		nprobe = nlist
	}
	return &IVFIndex{dims: dims, metric: metric, nlist: nlist, nprobe: nprobe}, nil
}

// NeedsTraining always returns true for an IVF index.
func (ix *IVFIndex) NeedsTraining() bool { return true }

// Trained reports whether k-means training has completed.
func (ix *IVFIndex) Trained() bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.trained
}

// Train runs k-means over a representative sample to place the cell
// centroids. Initialization picks evenly spaced sample vectors, keeping
// training deterministic for a fixed input.
func (ix *IVFIndex) Train(vectors [][]float32) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.trained {
		return fmt.Errorf("index already trained")
	}
	if len(vectors) < ix.nlist {
		return fmt.Errorf("training requires at least nlist=%d vectors, got %d", ix.nlist, len(vectors))
	}
	for _, v := range vectors {
		if len(v) != ix.dims {
			return ErrDimensionMismatch{Expected: ix.dims, Got: len(v)}
		}
	}

	sample := make([][]float32, len(vectors))
	for i, v := range vectors {
		sample[i] = copyForMetric(ix.metric, v)
	}

	centroids := make([][]float32, ix.nlist)
	step := len(sample) / ix.nlist
	for i := range centroids {
		centroids[i] = append([]float32(nil), sample[i*step]...)
	}

	assign := make([]int, len(sample))
	for iter := 0; iter < kmeansIterations; iter++ {
		changed := false
		for i, v := range sample {
			best := nearestCentroid(ix.metric, centroids, v)
			if best != assign[i] {
				assign[i] = best
				changed = true
			}
		}
		if iter > 0 && !changed {
			break
		}

		// Recompute centroids as member means; empty cells keep their
		// previous centroid.
		sums := make([][]float64, ix.nlist)
		counts := make([]int, ix.nlist)
		for i := range sums {
			sums[i] = make([]float64, ix.dims)
		}
		for i, v := range sample {
			c := assign[i]
			counts[c]++
			for j, x := range v {
				sums[c][j] += float64(x)
			}
		}
		for c := range centroids {
			if counts[c] == 0 {
				continue
			}
			for j := range centroids[c] {
				centroids[c][j] = float32(sums[c][j] / float64(counts[c]))
			}
			if ix.metric == MetricCosine {
				normalizeVectorInPlace(centroids[c])
			}
		}
	}

	ix.centroids = centroids
	ix.lists = make([][]int32, ix.nlist)
	ix.trained = true
	return nil
}

// Add appends vectors to their nearest cells; row ids follow insertion order.
func (ix *IVFIndex) Add(vectors [][]float32) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if !ix.trained {
		return ErrNotTrained
	}
	for _, v := range vectors {
		if len(v) != ix.dims {
			return ErrDimensionMismatch{Expected: ix.dims, Got: len(v)}
		}
	}

	for _, v := range vectors {
		vec := copyForMetric(ix.metric, v)
		row := int32(len(ix.vectors))
		cell := nearestCentroid(ix.metric, ix.centroids, vec)
		ix.vectors = append(ix.vectors, vec)
		ix.lists[cell] = append(ix.lists[cell], row)
	}
	return nil
}

// Search scans the nprobe cells nearest to the query and returns the k
// best rows, ascending by distance, ties by ascending row id.
func (ix *IVFIndex) Search(query []float32, k int) ([]Hit, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if !ix.trained {
		return nil, ErrNotTrained
	}
	if len(query) != ix.dims {
		return nil, ErrDimensionMismatch{Expected: ix.dims, Got: len(query)}
	}
	if k <= 0 || len(ix.vectors) == 0 {
		return []Hit{}, nil
	}

	q := copyForMetric(ix.metric, query)

	// Rank cells by centroid distance, scan the closest nprobe.
	type cellDist struct {
		cell int
		dist float32
	}
	cells := make([]cellDist, len(ix.centroids))
	for c, centroid := range ix.centroids {
		cells[c] = cellDist{cell: c, dist: distance(ix.metric, q, centroid)}
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].dist != cells[j].dist {
			return cells[i].dist < cells[j].dist
		}
		return cells[i].cell < cells[j].cell
	})

	var hits []Hit
	for _, cd := range cells[:ix.nprobe] {
		for _, row := range ix.lists[cd.cell] {
			d := distance(ix.metric, q, ix.vectors[row])
			hits = append(hits, Hit{
				Row:      int(row),
				Distance: d,
				Score:    distanceToScore(ix.metric, d),
			})
		}
	}

	sortHits(hits)
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

// Len returns the number of stored vectors.
func (ix *IVFIndex) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.vectors)
}

// Dims returns the vector dimensionality.
func (ix *IVFIndex) Dims() int { return ix.dims }

// Metric returns the distance metric.
func (ix *IVFIndex) Metric() string { return ix.metric }

// WriteTo serializes the index with gob.
func (ix *IVFIndex) WriteTo(w io.Writer) error {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	return gob.NewEncoder(w).Encode(ivfState{
		Dims:      ix.dims,
		Metric:    ix.metric,
		NList:     ix.nlist,
		NProbe:    ix.nprobe,
		Trained:   ix.trained,
		Centroids: ix.centroids,
		Lists:     ix.lists,
		Vectors:   ix.vectors,
	})
}

// ReadFrom restores the index from its gob form.
func (ix *IVFIndex) ReadFrom(r io.Reader) error {
	var state ivfState
	if err := gob.NewDecoder(r).Decode(&state); err != nil {
		return fmt.Errorf("decode ivf index: %w", err)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.dims = state.Dims
	ix.metric = state.Metric
	ix.nlist = state.NList
	ix.nprobe = state.NProbe
	ix.trained = state.Trained
	ix.centroids = state.Centroids
	ix.lists = state.Lists
	ix.vectors = state.Vectors
	return nil
}

// nearestCentroid returns the index of the centroid closest to v,
// ties broken by the lower centroid index.
func nearestCentroid(metric string, centroids [][]float32, v []float32) int {
	best := 0
	bestDist := distance(metric, v, centroids[0])
	for c := 1; c < len(centroids); c++ {
		if d := distance(metric, v, centroids[c]); d < bestDist {
			best = c
			bestDist = d
		}
	}
	return best
}
