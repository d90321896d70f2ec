package retrieve

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aitu-rag/aiturag/internal/store"
)

// fakeEmbedder maps known texts to fixed 3-dimensional vectors so the
// nearest neighbor of each query is predictable.
type fakeEmbedder struct {
	model   string
	vectors map[string][]float32
	block   bool
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 1}, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int                { return 3 }
func (f *fakeEmbedder) ModelName() string              { return f.model }
func (f *fakeEmbedder) Available(context.Context) bool { return true }
func (f *fakeEmbedder) Close() error                   { return nil }

// reversingReranker gives later candidates higher scores, making rerank
// reordering observable.
type reversingReranker struct{}

func (r *reversingReranker) Rerank(_ context.Context, _ string, docs []string, topK int) ([]RerankResult, error) {
	results := make([]RerankResult, len(docs))
	for i := range docs {
		results[i] = RerankResult{Index: i, Score: float64(i + 1)}
	}
	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

func (r *reversingReranker) Available(context.Context) bool { return true }
func (r *reversingReranker) Close() error                   { return nil }

// scrambledReranker returns fixed scores in an arbitrary order, so the
// service has to sort by score itself.
type scrambledReranker struct{ results []RerankResult }

func (r *scrambledReranker) Rerank(context.Context, string, []string, int) ([]RerankResult, error) {
	return r.results, nil
}
func (r *scrambledReranker) Available(context.Context) bool { return true }
func (r *scrambledReranker) Close() error                   { return nil }

// failingReranker always errors.
type failingReranker struct{ err error }

func (r *failingReranker) Rerank(context.Context, string, []string, int) ([]RerankResult, error) {
	return nil, r.err
}
func (r *failingReranker) Available(context.Context) bool { return false }
func (r *failingReranker) Close() error                   { return nil }

func testStoreAndEmbedder(t *testing.T) (*store.Store, *fakeEmbedder) {
	t.Helper()

	st, err := store.NewStore("Flat", 3, store.MetricCosine, "fake-model", 0)
	require.NoError(t, err)

	chunks := []struct {
		text string
		vec  []float32
	}{
		{"Admission requires the entrance exam.", []float32{1, 0, 0}},
		{"Tuition is paid per semester.", []float32{0, 1, 0}},
		{"The dormitory is next to campus.", []float32{0.7, 0.7, 0}},
	}

	vecs := make([][]float32, len(chunks))
	entries := make([]store.Entry, len(chunks))
	queryVecs := make(map[string][]float32, len(chunks))
	for i, c := range chunks {
		vecs[i] = c.vec
		entries[i] = store.Entry{
			PageURL:   "https://astanait.edu.kz/en/page",
			PageTitle: "Admissions",
			PageLang:  "en",
			ChunkID:   i,
			Text:      c.text,
		}
		queryVecs[c.text] = c.vec
	}
	require.NoError(t, st.Add(vecs, entries))

	return st, &fakeEmbedder{model: "fake-model", vectors: queryVecs}
}

func TestService_RerankOrderWins(t *testing.T) {
	st, emb := testStoreAndEmbedder(t)

	svc, err := NewService(emb, st, &reversingReranker{}, Config{TopK: 3, RerankK: 3})
	require.NoError(t, err)

	// Vector order for this query starts with the exam chunk; the
	// reversing reranker must flip that ordering.
	results, err := svc.Retrieve(context.Background(), "Admission requires the entrance exam.")
	require.NoError(t, err)
	require.Len(t, results, 3)

	vectorOnly, err := NewService(emb, st, nil, Config{TopK: 3, RerankK: 3})
	require.NoError(t, err)
	vectorOrder, err := vectorOnly.Retrieve(context.Background(), "Admission requires the entrance exam.")
	require.NoError(t, err)

	assert.Equal(t, vectorOrder[0].ChunkID, results[len(results)-1].ChunkID)
	assert.Equal(t, vectorOrder[len(vectorOrder)-1].ChunkID, results[0].ChunkID)
}

func TestService_RerankScoresOverwriteVectorScores(t *testing.T) {
	st, emb := testStoreAndEmbedder(t)

	svc, err := NewService(emb, st, &reversingReranker{}, Config{TopK: 3, RerankK: 3})
	require.NoError(t, err)

	results, err := svc.Retrieve(context.Background(), "Tuition is paid per semester.")
	require.NoError(t, err)
	require.Len(t, results, 3)

	// The reversing reranker assigns scores 1, 2, 3; the service orders
	// results by those scores, not the vector similarities.
	assert.Equal(t, float64(3), results[0].Score)
	assert.Equal(t, float64(1), results[2].Score)
}

func TestService_NoRerankerKeepsVectorScores(t *testing.T) {
	st, emb := testStoreAndEmbedder(t)

	svc, err := NewService(emb, st, nil, Config{TopK: 3, RerankK: 2})
	require.NoError(t, err)

	query := "Admission requires the entrance exam."
	results, err := svc.Retrieve(context.Background(), query)
	require.NoError(t, err)
	require.Len(t, results, 2)

	qv, err := emb.Embed(context.Background(), query)
	require.NoError(t, err)
	hits, err := st.Search(qv, 3)
	require.NoError(t, err)

	for i, res := range results {
		entry, err := st.Entry(hits[i].Row)
		require.NoError(t, err)
		assert.Equal(t, entry.ChunkID, res.ChunkID)
		assert.Equal(t, float64(hits[i].Score), res.Score)
	}
}

func TestService_UnsortedRerankScoresResorted(t *testing.T) {
	st, emb := testStoreAndEmbedder(t)

	// Candidate order for this query is chunk 0, chunk 2, chunk 1. The
	// reranker answers out of order, with a tie between the first two
	// candidates that must resolve in stage-1 order.
	reranker := &scrambledReranker{results: []RerankResult{
		{Index: 2, Score: 0.9},
		{Index: 0, Score: 0.5},
		{Index: 1, Score: 0.5},
	}}
	svc, err := NewService(emb, st, reranker, Config{TopK: 3, RerankK: 3})
	require.NoError(t, err)

	results, err := svc.Retrieve(context.Background(), "Admission requires the entrance exam.")
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, []float64{0.9, 0.5, 0.5}, []float64{results[0].Score, results[1].Score, results[2].Score})
	assert.Equal(t, 1, results[0].ChunkID)
	assert.Equal(t, 0, results[1].ChunkID)
	assert.Equal(t, 2, results[2].ChunkID)
}

func TestService_RerankKTruncates(t *testing.T) {
	st, emb := testStoreAndEmbedder(t)

	svc, err := NewService(emb, st, nil, Config{TopK: 3, RerankK: 2})
	require.NoError(t, err)

	results, err := svc.Retrieve(context.Background(), "The dormitory is next to campus.")
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestService_MetadataPreserved(t *testing.T) {
	st, emb := testStoreAndEmbedder(t)

	svc, err := NewService(emb, st, nil, Config{TopK: 3, RerankK: 3})
	require.NoError(t, err)

	results, err := svc.Retrieve(context.Background(), "Admission requires the entrance exam.")
	require.NoError(t, err)
	require.NotEmpty(t, results)

	top := results[0]
	assert.Equal(t, "Admission requires the entrance exam.", top.Text)
	assert.Equal(t, "https://astanait.edu.kz/en/page", top.PageURL)
	assert.Equal(t, "Admissions", top.PageTitle)
	assert.Equal(t, "en", top.PageLang)
	assert.Equal(t, 0, top.ChunkID)
}

func TestService_RerankFailureFallsBackToVectorOrder(t *testing.T) {
	st, emb := testStoreAndEmbedder(t)

	svc, err := NewService(emb, st, &failingReranker{err: errors.New("connection refused")}, Config{TopK: 3, RerankK: 2})
	require.NoError(t, err)

	results, err := svc.Retrieve(context.Background(), "Admission requires the entrance exam.")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 0, results[0].ChunkID)
}

func TestService_EmptyIndexReturnsEmpty(t *testing.T) {
	st, err := store.NewStore("Flat", 3, store.MetricCosine, "fake-model", 0)
	require.NoError(t, err)
	emb := &fakeEmbedder{model: "fake-model"}

	svc, err := NewService(emb, st, nil, Config{})
	require.NoError(t, err)

	results, err := svc.Retrieve(context.Background(), "anything")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestService_ModelMismatchRefused(t *testing.T) {
	st, _ := testStoreAndEmbedder(t)
	wrong := &fakeEmbedder{model: "other-model"}

	_, err := NewService(wrong, st, nil, Config{})
	var mismatch *store.ModelMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "fake-model", mismatch.IndexModel)
	assert.Equal(t, "other-model", mismatch.QueryModel)
}

func TestService_TimeoutSurfacesTypedError(t *testing.T) {
	st, emb := testStoreAndEmbedder(t)
	emb.block = true

	svc, err := NewService(emb, st, nil, Config{
		TopK:    3,
		RerankK: 3,
		Timeout: 20 * time.Millisecond,
	})
	require.NoError(t, err)

	_, err = svc.Retrieve(context.Background(), "slow query")
	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, "embed", timeoutErr.Stage)
}
