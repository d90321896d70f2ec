package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTestStore(t *testing.T, factory string) *Store {
	t.Helper()

	s, err := NewStore(factory, 4, MetricCosine, "all-minilm", 2)
	require.NoError(t, err)

	vecs := axisVectors(8, 4)
	entries := make([]Entry, len(vecs))
	for i := range entries {
		entries[i] = Entry{
			PageURL:   "https://astanait.edu.kz/en/admissions",
			PageTitle: "Admissions",
			PageLang:  "en",
			ChunkID:   i,
			Text:      "chunk text",
		}
	}

	if s.NeedsTraining() {
		require.NoError(t, s.Train(vecs))
	}
	require.NoError(t, s.Add(vecs, entries))
	return s
}

func TestStore_SaveOpenRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := buildTestStore(t, "Flat")
	require.NoError(t, s.Save(dir))

	loaded, err := Open(dir)
	require.NoError(t, err)

	assert.Equal(t, 8, loaded.Len())
	m := loaded.Manifest()
	assert.Equal(t, "all-minilm", m.Model)
	assert.Equal(t, "Flat", m.Factory)
	assert.Equal(t, MetricCosine, m.Metric)
	assert.Equal(t, 4, m.Dims)
	assert.Equal(t, 8, m.Count)
	assert.False(t, m.BuiltAt.IsZero())

	// Same query gives the same top hit before and after persistence.
	query := axisVectors(8, 4)[3]
	want, err := s.Search(query, 1)
	require.NoError(t, err)
	got, err := loaded.Search(query, 1)
	require.NoError(t, err)
	assert.Equal(t, want[0].Row, got[0].Row)
}

func TestStore_RowAlignmentSurvivesRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := buildTestStore(t, "Flat")
	require.NoError(t, s.Save(dir))

	loaded, err := Open(dir)
	require.NoError(t, err)

	for row := 0; row < loaded.Len(); row++ {
		entry, err := loaded.Entry(row)
		require.NoError(t, err)
		assert.Equal(t, row, entry.ChunkID, "entry at row %d", row)
	}
}

func TestStore_SaveOpenIVF(t *testing.T) {
	dir := t.TempDir()
	s := buildTestStore(t, "IVF2,Flat")
	require.NoError(t, s.Save(dir))

	loaded, err := Open(dir)
	require.NoError(t, err)
	assert.Equal(t, 8, loaded.Len())

	hits, err := loaded.Search(axisVectors(8, 4)[0], 3)
	require.NoError(t, err)
	assert.NotEmpty(t, hits)
}

func TestStore_SaveOpenHNSW(t *testing.T) {
	dir := t.TempDir()
	s := buildTestStore(t, "HNSW16")
	require.NoError(t, s.Save(dir))

	loaded, err := Open(dir)
	require.NoError(t, err)
	assert.Equal(t, 8, loaded.Len())

	hits, err := loaded.Search(axisVectors(8, 4)[5], 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, 5, hits[0].Row)
}

func TestStore_AddLengthMismatch(t *testing.T) {
	s, err := NewStore("Flat", 4, MetricCosine, "all-minilm", 0)
	require.NoError(t, err)

	err = s.Add(axisVectors(2, 4), []Entry{{ChunkID: 0}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "length mismatch")
}

func TestStore_OpenMissingDirectory(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "does-not-exist"))
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
}

func TestStore_OpenMissingIndexArtifact(t *testing.T) {
	dir := t.TempDir()
	s := buildTestStore(t, "Flat")
	require.NoError(t, s.Save(dir))
	require.NoError(t, os.Remove(filepath.Join(dir, IndexFileName)))

	_, err := Open(dir)
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Contains(t, loadErr.Path, IndexFileName)
}

func TestStore_OpenCorruptMetadata(t *testing.T) {
	dir := t.TempDir()
	s := buildTestStore(t, "Flat")
	require.NoError(t, s.Save(dir))
	require.NoError(t, os.WriteFile(filepath.Join(dir, MetadataFileName), []byte("not gob"), 0o644))

	_, err := Open(dir)
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
}

func TestStore_OpenCountMismatch(t *testing.T) {
	dir := t.TempDir()
	s := buildTestStore(t, "Flat")
	require.NoError(t, s.Save(dir))

	// Overwrite the index artifact with one holding fewer vectors than
	// the metadata describes. The pair is now corrupt.
	smaller, err := NewFlatIndex(4, MetricCosine)
	require.NoError(t, err)
	require.NoError(t, smaller.Add(axisVectors(3, 4)))
	f, err := os.Create(filepath.Join(dir, IndexFileName))
	require.NoError(t, err)
	require.NoError(t, smaller.WriteTo(f))
	require.NoError(t, f.Close())

	_, err = Open(dir)
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Contains(t, loadErr.Reason, "vectors")
}

func TestStore_OpenedStoreIsReadOnly(t *testing.T) {
	dir := t.TempDir()
	s := buildTestStore(t, "Flat")
	require.NoError(t, s.Save(dir))

	loaded, err := Open(dir)
	require.NoError(t, err)

	err = loaded.Add(axisVectors(1, 4), []Entry{{ChunkID: 99}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read-only")
}

func TestStore_EntryOutOfRange(t *testing.T) {
	s := buildTestStore(t, "Flat")

	_, err := s.Entry(-1)
	require.Error(t, err)
	_, err = s.Entry(s.Len())
	require.Error(t, err)
}

func TestStore_SaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s := buildTestStore(t, "Flat")
	require.NoError(t, s.Save(dir))

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name())
	}
	assert.ElementsMatch(t, []string{IndexFileName, MetadataFileName}, names)
}
