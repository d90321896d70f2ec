package store

import (
	"encoding/gob"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Artifact file names inside an index directory.
const (
	IndexFileName    = "vectors.index"
	MetadataFileName = "metadata.gob"
)

// Manifest records the build parameters of a persisted index. Opening an
// index validates the live configuration against it.
type Manifest struct {
	Model   string
	Metric  string
	Factory string
	Dims    int
	Count   int
	NProbe  int
	BuiltAt time.Time
}

// storeMetadata is the gob-serialized metadata artifact: the manifest plus
// the entries slice, ordered by row id.
type storeMetadata struct {
	Manifest Manifest
	Entries  []Entry
}

// Store couples a vector index with its row-aligned metadata entries.
// Vector i and entries[i] always describe the same chunk; the pair is
// saved and loaded together and validated for agreement.
type Store struct {
	mu       sync.RWMutex
	index    VectorIndex
	entries  []Entry
	manifest Manifest
	readonly bool
}

// NewStore creates an empty store for building a new index.
func NewStore(factory string, dims int, metric, model string, nprobe int) (*Store, error) {
	index, err := NewIndex(factory, dims, metric, nprobe)
	if err != nil {
		return nil, err
	}
	return &Store{
		index: index,
		manifest: Manifest{
			Model:   model,
			Metric:  metric,
			Factory: factory,
			Dims:    dims,
			NProbe:  nprobe,
		},
	}, nil
}

// NeedsTraining reports whether the underlying index requires Train.
func (s *Store) NeedsTraining() bool {
	return s.index.NeedsTraining()
}

// Train fits the underlying index structure on the given vectors.
func (s *Store) Train(vectors [][]float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.readonly {
		return fmt.Errorf("store is read-only")
	}
	return s.index.Train(vectors)
}

// Add appends vectors with their metadata entries. The two slices must be
// the same length and aligned: vectors[i] was embedded from entries[i].Text.
func (s *Store) Add(vectors [][]float32, entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.readonly {
		return fmt.Errorf("store is read-only")
	}
	if len(vectors) != len(entries) {
		return fmt.Errorf("vectors and entries length mismatch: %d vs %d", len(vectors), len(entries))
	}
	if err := s.index.Add(vectors); err != nil {
		return err
	}
	s.entries = append(s.entries, entries...)
	s.manifest.Count = len(s.entries)
	return nil
}

// Search returns up to k nearest rows for the query vector.
func (s *Store) Search(query []float32, k int) ([]Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Search(query, k)
}

// Entry returns the metadata for a row id produced by Search.
func (s *Store) Entry(row int) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if row < 0 || row >= len(s.entries) {
		return Entry{}, fmt.Errorf("row %d out of range [0,%d)", row, len(s.entries))
	}
	return s.entries[row], nil
}

// Len returns the number of indexed chunks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Manifest returns a copy of the store's manifest.
func (s *Store) Manifest() Manifest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.manifest
}

// Save persists both artifacts to dir atomically: each file is written to
// a temp path and renamed. The metadata rename happens last and is the
// commit point; a crash before it leaves the previous pair intact.
func (s *Store) Save(dir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}

	s.manifest.Count = len(s.entries)
	s.manifest.BuiltAt = time.Now().UTC()

	indexPath := filepath.Join(dir, IndexFileName)
	if err := writeFileAtomic(indexPath, func(f *os.File) error {
		return s.index.WriteTo(f)
	}); err != nil {
		return fmt.Errorf("write index artifact: %w", err)
	}

	metaPath := filepath.Join(dir, MetadataFileName)
	meta := storeMetadata{Manifest: s.manifest, Entries: s.entries}
	err := writeFileAtomic(metaPath, func(f *os.File) error {
		return gob.NewEncoder(f).Encode(meta)
	})
	if err != nil {
		return fmt.Errorf("write metadata artifact: %w", err)
	}

	slog.Debug("index saved",
		slog.String("dir", dir),
		slog.Int("count", s.manifest.Count),
		slog.String("factory", s.manifest.Factory))
	return nil
}

// writeFileAtomic writes via a temp file in the same directory, fsyncs,
// and renames into place.
func writeFileAtomic(path string, write func(*os.File) error) error {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	if err := write(f); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// Open loads a persisted index pair from dir. The returned store is
// read-only. Any missing, unreadable or mutually inconsistent artifact
// yields a *LoadError; callers must treat it as fatal and not serve.
func Open(dir string) (*Store, error) {
	metaPath := filepath.Join(dir, MetadataFileName)
	metaFile, err := os.Open(metaPath)
	if err != nil {
		return nil, &LoadError{Path: metaPath, Reason: "open metadata artifact", Cause: err}
	}
	defer func() {
		if err := metaFile.Close(); err != nil {
			slog.Warn("close metadata file", slog.String("error", err.Error()))
		}
	}()

	var meta storeMetadata
	if err := gob.NewDecoder(metaFile).Decode(&meta); err != nil {
		return nil, &LoadError{Path: metaPath, Reason: "decode metadata artifact", Cause: err}
	}

	index, err := NewIndex(meta.Manifest.Factory, meta.Manifest.Dims, meta.Manifest.Metric, meta.Manifest.NProbe)
	if err != nil {
		return nil, &LoadError{Path: metaPath, Reason: "rebuild index from manifest", Cause: err}
	}

	indexPath := filepath.Join(dir, IndexFileName)
	indexFile, err := os.Open(indexPath)
	if err != nil {
		return nil, &LoadError{Path: indexPath, Reason: "open index artifact", Cause: err}
	}
	defer func() {
		if err := indexFile.Close(); err != nil {
			slog.Warn("close index file", slog.String("error", err.Error()))
		}
	}()

	if err := index.ReadFrom(indexFile); err != nil {
		return nil, &LoadError{Path: indexPath, Reason: "read index artifact", Cause: err}
	}

	// The two artifacts must agree with each other and with the manifest.
	if index.Len() != len(meta.Entries) {
		return nil, &LoadError{
			Path:   dir,
			Reason: fmt.Sprintf("index has %d vectors but metadata has %d entries", index.Len(), len(meta.Entries)),
		}
	}
	if meta.Manifest.Count != len(meta.Entries) {
		return nil, &LoadError{
			Path:   dir,
			Reason: fmt.Sprintf("manifest count %d disagrees with %d entries", meta.Manifest.Count, len(meta.Entries)),
		}
	}
	if index.Dims() != meta.Manifest.Dims {
		return nil, &LoadError{
			Path:   dir,
			Reason: fmt.Sprintf("index dimensions %d disagree with manifest %d", index.Dims(), meta.Manifest.Dims),
		}
	}

	slog.Info("index loaded",
		slog.String("dir", dir),
		slog.Int("count", meta.Manifest.Count),
		slog.String("model", meta.Manifest.Model),
		slog.String("factory", meta.Manifest.Factory))

	return &Store{
		index:    index,
		entries:  meta.Entries,
		manifest: meta.Manifest,
		readonly: true,
	}, nil
}
