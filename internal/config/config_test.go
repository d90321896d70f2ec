package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 256, cfg.Ingest.ChunkWindow)
	assert.Equal(t, "Flat", cfg.Index.Factory)
	assert.Equal(t, "cos", cfg.Index.Metric)
	assert.Equal(t, 25, cfg.Retrieve.TopK)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aiturag.yaml")
	content := `
urls:
  - https://astanait.edu.kz/en/admission
ingest:
  chunk_window: 128
  chunk_overlap: 16
index:
  factory: HNSW16
retrieve:
  top_k: 50
  rerank_k: 5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"https://astanait.edu.kz/en/admission"}, cfg.URLs)
	assert.Equal(t, 128, cfg.Ingest.ChunkWindow)
	assert.Equal(t, 16, cfg.Ingest.ChunkOverlap)
	assert.Equal(t, "HNSW16", cfg.Index.Factory)
	assert.Equal(t, 50, cfg.Retrieve.TopK)
	assert.Equal(t, 5, cfg.Retrieve.RerankK)
	// Untouched sections keep defaults.
	assert.Equal(t, "all-minilm", cfg.Embed.Model)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "http://gpu-box:11434")
	t.Setenv("AITURAG_EMBED_MODEL", "nomic-embed-text")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "http://gpu-box:11434", cfg.Embed.OllamaHost)
	assert.Equal(t, "http://gpu-box:11434", cfg.LLM.Host)
	assert.Equal(t, "nomic-embed-text", cfg.Embed.Model)
}

func TestValidate_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"overlap >= window", func(c *Config) { c.Ingest.ChunkOverlap = c.Ingest.ChunkWindow }},
		{"zero window", func(c *Config) { c.Ingest.ChunkWindow = 0 }},
		{"empty model", func(c *Config) { c.Embed.Model = "" }},
		{"bad factory", func(c *Config) { c.Index.Factory = "LSH" }},
		{"bad metric", func(c *Config) { c.Index.Metric = "dot" }},
		{"rerank_k > top_k", func(c *Config) { c.Retrieve.RerankK = c.Retrieve.TopK + 1 }},
		{"bad timeout", func(c *Config) { c.Retrieve.Timeout = "soon" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_AcceptsFactoryVariants(t *testing.T) {
	for _, factory := range []string{"Flat", "IVF64,Flat", "HNSW32"} {
		cfg := Default()
		cfg.Index.Factory = factory
		assert.NoError(t, cfg.Validate(), factory)
	}
}

func TestDurationAccessors(t *testing.T) {
	cfg := Default()
	cfg.Retrieve.Timeout = "2s"

	assert.Equal(t, 2*time.Second, cfg.RetrieveTimeout())
	assert.Equal(t, 30*time.Second, cfg.FetchTimeout())
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := Default()
	cfg.URLs = []string{"https://astanait.edu.kz"}
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.URLs, loaded.URLs)
	assert.Equal(t, cfg.Index.Factory, loaded.Index.Factory)
}
