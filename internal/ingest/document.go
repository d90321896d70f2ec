// Package ingest fetches university pages, extracts their text and writes
// per-page corpus records ready for chunking and embedding.
package ingest

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/aitu-rag/aiturag/internal/chunk"
)

// Document is one fetched and extracted page with its chunks.
type Document struct {
	URL    string        `json:"url"`
	Title  string        `json:"title"`
	Lang   string        `json:"lang"`
	Text   string        `json:"text"`
	Chunks []chunk.Chunk `json:"chunks"`
}

// corpusFileName derives a stable filesystem name for a page URL.
func corpusFileName(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return sanitizeName(pageURL) + ".json"
	}
	name := u.Host + u.Path
	if u.RawQuery != "" {
		name += "_" + u.RawQuery
	}
	return sanitizeName(name) + ".json"
}

func sanitizeName(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-' || r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	name := strings.Trim(b.String(), "_")
	if name == "" {
		name = "page"
	}
	if len(name) > 120 {
		name = name[:120]
	}
	return name
}

// Save writes the document as a JSON record under dir.
func (d *Document) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create corpus directory: %w", err)
	}

	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	path := filepath.Join(dir, corpusFileName(d.URL))
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename document: %w", err)
	}
	return nil
}

// LoadCorpus reads every document record from dir, sorted by file name so
// corpus order is stable across runs.
func LoadCorpus(dir string) ([]*Document, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read corpus directory: %w", err)
	}

	var docs []*Document
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, f.Name()))
		if err != nil {
			return nil, fmt.Errorf("read corpus record %s: %w", f.Name(), err)
		}
		var doc Document
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode corpus record %s: %w", f.Name(), err)
		}
		docs = append(docs, &doc)
	}
	return docs, nil
}
