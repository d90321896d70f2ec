package store

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// axisVectors returns n orthogonal-ish unit vectors in dims dimensions,
// cycling through the axes with a small row-dependent offset so every
// vector is distinct.
func axisVectors(n, dims int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		v := make([]float32, dims)
		v[i%dims] = 1
		v[(i+1)%dims] = float32(i) * 0.01
		out[i] = v
	}
	return out
}

func TestFlatIndex_TopOneIsSelf(t *testing.T) {
	ix, err := NewFlatIndex(4, MetricCosine)
	require.NoError(t, err)

	vecs := axisVectors(8, 4)
	require.NoError(t, ix.Add(vecs))
	require.Equal(t, 8, ix.Len())

	// Searching with an indexed vector must return its own row first.
	for row, v := range vecs {
		hits, err := ix.Search(v, 1)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, row, hits[0].Row, "query for row %d", row)
		assert.InDelta(t, 0, hits[0].Distance, 1e-5)
	}
}

func TestFlatIndex_TiesBrokenByRow(t *testing.T) {
	ix, err := NewFlatIndex(3, MetricL2)
	require.NoError(t, err)

	// Rows 1 and 3 are identical, equidistant from any query.
	require.NoError(t, ix.Add([][]float32{
		{5, 5, 5},
		{1, 0, 0},
		{9, 9, 9},
		{1, 0, 0},
	}))

	hits, err := ix.Search([]float32{1, 0, 0}, 4)
	require.NoError(t, err)
	require.Len(t, hits, 4)
	assert.Equal(t, 1, hits[0].Row)
	assert.Equal(t, 3, hits[1].Row)
	assert.Equal(t, hits[0].Distance, hits[1].Distance)
}

func TestFlatIndex_EmptyAndZeroK(t *testing.T) {
	ix, err := NewFlatIndex(2, MetricCosine)
	require.NoError(t, err)

	hits, err := ix.Search([]float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)

	require.NoError(t, ix.Add([][]float32{{1, 0}}))
	hits, err = ix.Search([]float32{1, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestFlatIndex_KLargerThanCorpus(t *testing.T) {
	ix, err := NewFlatIndex(2, MetricCosine)
	require.NoError(t, err)
	require.NoError(t, ix.Add([][]float32{{1, 0}, {0, 1}}))

	hits, err := ix.Search([]float32{1, 0}, 100)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestFlatIndex_DimensionMismatch(t *testing.T) {
	ix, err := NewFlatIndex(3, MetricCosine)
	require.NoError(t, err)

	err = ix.Add([][]float32{{1, 0}})
	var dimErr ErrDimensionMismatch
	require.ErrorAs(t, err, &dimErr)
	assert.Equal(t, 3, dimErr.Expected)
	assert.Equal(t, 2, dimErr.Got)

	_, err = ix.Search([]float32{1, 0, 0, 0}, 1)
	assert.ErrorAs(t, err, &dimErr)
}

func TestFlatIndex_GobRoundTrip(t *testing.T) {
	ix, err := NewFlatIndex(4, MetricCosine)
	require.NoError(t, err)
	vecs := axisVectors(6, 4)
	require.NoError(t, ix.Add(vecs))

	var buf bytes.Buffer
	require.NoError(t, ix.WriteTo(&buf))

	restored := &FlatIndex{}
	require.NoError(t, restored.ReadFrom(&buf))
	require.Equal(t, ix.Len(), restored.Len())

	want, err := ix.Search(vecs[2], 3)
	require.NoError(t, err)
	got, err := restored.Search(vecs[2], 3)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestIVFIndex_AddBeforeTrainFails(t *testing.T) {
	ix, err := NewIVFIndex(4, MetricCosine, 2, 1)
	require.NoError(t, err)

	assert.True(t, ix.NeedsTraining())
	assert.False(t, ix.Trained())

	err = ix.Add(axisVectors(3, 4))
	require.ErrorIs(t, err, ErrNotTrained)

	_, err = ix.Search([]float32{1, 0, 0, 0}, 1)
	assert.ErrorIs(t, err, ErrNotTrained)
}

func TestIVFIndex_TrainThenSearch(t *testing.T) {
	ix, err := NewIVFIndex(3, MetricL2, 2, 2)
	require.NoError(t, err)

	// Two well-separated clusters.
	cluster := [][]float32{
		{0, 0, 0}, {0.1, 0, 0}, {0, 0.1, 0},
		{10, 10, 10}, {10.1, 10, 10}, {10, 10.1, 10},
	}
	require.NoError(t, ix.Train(cluster))
	assert.True(t, ix.Trained())
	require.NoError(t, ix.Add(cluster))
	require.Equal(t, 6, ix.Len())

	// With nprobe == nlist the search is exhaustive: top hit is exact.
	hits, err := ix.Search([]float32{10.05, 10, 10}, 2)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Contains(t, []int{3, 4}, hits[0].Row)
}

func TestIVFIndex_TrainRequiresEnoughVectors(t *testing.T) {
	ix, err := NewIVFIndex(3, MetricL2, 8, 1)
	require.NoError(t, err)

	err = ix.Train(axisVectors(4, 3))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nlist")
}

func TestIVFIndex_GobRoundTrip(t *testing.T) {
	ix, err := NewIVFIndex(4, MetricCosine, 2, 2)
	require.NoError(t, err)
	vecs := axisVectors(8, 4)
	require.NoError(t, ix.Train(vecs))
	require.NoError(t, ix.Add(vecs))

	var buf bytes.Buffer
	require.NoError(t, ix.WriteTo(&buf))

	restored := &IVFIndex{}
	require.NoError(t, restored.ReadFrom(&buf))
	assert.True(t, restored.Trained())
	require.Equal(t, 8, restored.Len())

	want, err := ix.Search(vecs[5], 3)
	require.NoError(t, err)
	got, err := restored.Search(vecs[5], 3)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestHNSWIndex_TopOneIsSelf(t *testing.T) {
	ix, err := NewHNSWIndex(4, MetricCosine, 8)
	require.NoError(t, err)

	assert.False(t, ix.NeedsTraining())
	assert.True(t, ix.Trained())

	vecs := axisVectors(10, 4)
	require.NoError(t, ix.Add(vecs))
	require.Equal(t, 10, ix.Len())

	hits, err := ix.Search(vecs[7], 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, 7, hits[0].Row)
}

func TestHNSWIndex_EmptySearch(t *testing.T) {
	ix, err := NewHNSWIndex(4, MetricCosine, 8)
	require.NoError(t, err)

	hits, err := ix.Search([]float32{1, 0, 0, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestHNSWIndex_RoundTrip(t *testing.T) {
	ix, err := NewHNSWIndex(4, MetricL2, 8)
	require.NoError(t, err)
	vecs := axisVectors(10, 4)
	require.NoError(t, ix.Add(vecs))

	var buf bytes.Buffer
	require.NoError(t, ix.WriteTo(&buf))

	restored := &HNSWIndex{}
	require.NoError(t, restored.ReadFrom(&buf))
	require.Equal(t, 10, restored.Len())
	assert.Equal(t, MetricL2, restored.Metric())

	hits, err := restored.Search(vecs[3], 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, 3, hits[0].Row)
}

func TestParseFactory(t *testing.T) {
	tests := []struct {
		factory string
		want    FactorySpec
		wantErr bool
	}{
		{factory: "Flat", want: FactorySpec{Kind: "Flat"}},
		{factory: "IVF256,Flat", want: FactorySpec{Kind: "IVF", NList: 256}},
		{factory: "IVF4,Flat", want: FactorySpec{Kind: "IVF", NList: 4}},
		{factory: "HNSW32", want: FactorySpec{Kind: "HNSW", M: 32}},
		{factory: "flat", wantErr: true},
		{factory: "IVF,Flat", wantErr: true},
		{factory: "IVF256", wantErr: true},
		{factory: "HNSW", wantErr: true},
		{factory: "PQ8", wantErr: true},
		{factory: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.factory, func(t *testing.T) {
			got, err := ParseFactory(tt.factory)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDistanceToScore(t *testing.T) {
	// Identical unit vectors: cosine distance 0, score 1.
	assert.InDelta(t, 1.0, distanceToScore(MetricCosine, 0), 1e-6)
	// Opposite unit vectors: cosine distance 2, score 0.
	assert.InDelta(t, 0.0, distanceToScore(MetricCosine, 2), 1e-6)
	// L2 distance 0 maps to score 1, grows toward 0.
	assert.InDelta(t, 1.0, distanceToScore(MetricL2, 0), 1e-6)
	assert.InDelta(t, 0.5, distanceToScore(MetricL2, 1), 1e-6)
}
