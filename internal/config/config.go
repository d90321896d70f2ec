// Package config loads and validates the aiturag configuration.
//
// Configuration is a single YAML file (aiturag.yaml by default) with
// environment overrides. A .env file in the working directory is loaded
// first, so OLLAMA_HOST and friends can live there during development.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is the config file looked up when --config is not given.
const DefaultConfigPath = "aiturag.yaml"

// Config represents the complete aiturag configuration.
type Config struct {
	URLs     []string       `yaml:"urls"`
	Data     DataConfig     `yaml:"data"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Embed    EmbedConfig    `yaml:"embed"`
	Index    IndexConfig    `yaml:"index"`
	Retrieve RetrieveConfig `yaml:"retrieve"`
	LLM      LLMConfig      `yaml:"llm"`
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DataConfig configures on-disk artifact locations.
type DataConfig struct {
	// CorpusDir holds per-document JSON records produced by ingestion.
	CorpusDir string `yaml:"corpus_dir"`
	// IndexDir holds the persisted vector index and metadata pair.
	IndexDir string `yaml:"index_dir"`
	// HistoryPath is the SQLite interaction log database.
	HistoryPath string `yaml:"history_path"`
}

// IngestConfig configures the page fetch and chunking stage.
type IngestConfig struct {
	// MaxFetchWorkers bounds concurrent outstanding page fetches.
	MaxFetchWorkers int `yaml:"max_fetch_workers"`
	// RequestTimeout is the per-request fetch timeout (e.g. "30s").
	RequestTimeout string `yaml:"request_timeout"`
	// ChunkWindow is the maximum token count per chunk.
	ChunkWindow int `yaml:"chunk_window"`
	// ChunkOverlap is the token overlap between consecutive chunks.
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// EmbedConfig configures the embedding provider.
// One model identity per index: the model name is recorded in the index
// manifest and verified again at query time.
type EmbedConfig struct {
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	BatchSize  int    `yaml:"batch_size"`
	OllamaHost string `yaml:"ollama_host"`
	CacheSize  int    `yaml:"cache_size"`
}

// IndexConfig configures the vector index structure.
type IndexConfig struct {
	// Factory is the index spec string: "Flat", "IVF<nlist>,Flat", "HNSW<M>".
	Factory string `yaml:"factory"`
	// Metric is the distance metric: "cos" or "l2".
	Metric string `yaml:"metric"`
	// NProbe is the number of inverted lists scanned for IVF indexes.
	NProbe int `yaml:"nprobe"`
}

// RetrieveConfig configures two-stage retrieval.
type RetrieveConfig struct {
	// TopK is the coarse vector-search candidate count.
	TopK int `yaml:"top_k"`
	// RerankK is the final result count after reranking (<= TopK).
	RerankK int `yaml:"rerank_k"`
	// RerankerEndpoint is the cross-encoder service URL. Empty disables
	// the rerank stage.
	RerankerEndpoint string `yaml:"reranker_endpoint"`
	// RerankerModel is the cross-encoder model alias.
	RerankerModel string `yaml:"reranker_model"`
	// Timeout is the per-query budget for embed + search (e.g. "10s").
	Timeout string `yaml:"timeout"`
}

// LLMConfig configures the answer-generation model.
type LLMConfig struct {
	Host        string  `yaml:"host"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	Timeout     string  `yaml:"timeout"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// factoryRe matches the supported index factory strings.
var factoryRe = regexp.MustCompile(`^(Flat|IVF\d+,Flat|HNSW\d+)$`)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Data: DataConfig{
			CorpusDir:   "data/corpus",
			IndexDir:    "data/index",
			HistoryPath: "data/history.db",
		},
		Ingest: IngestConfig{
			MaxFetchWorkers: 8,
			RequestTimeout:  "30s",
			ChunkWindow:     256,
			ChunkOverlap:    32,
		},
		Embed: EmbedConfig{
			Model:      "all-minilm",
			Dimensions: 384,
			BatchSize:  32,
			OllamaHost: "http://localhost:11434",
			CacheSize:  1000,
		},
		Index: IndexConfig{
			Factory: "Flat",
			Metric:  "cos",
			NProbe:  8,
		},
		Retrieve: RetrieveConfig{
			TopK:    25,
			RerankK: 10,
			Timeout: "10s",
		},
		LLM: LLMConfig{
			Host:        "http://localhost:11434",
			Model:       "mistral",
			Temperature: 0.1,
			Timeout:     "60s",
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the config file at path, applies defaults, environment
// overrides, and validates the result. A missing file yields defaults.
func Load(path string) (*Config, error) {
	// Best-effort: a .env file is optional.
	_ = godotenv.Load()

	cfg := Default()

	if path == "" {
		path = DefaultConfigPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnv applies environment variable overrides.
// Env vars take priority over both defaults and the config file.
func (c *Config) applyEnv() {
	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		c.Embed.OllamaHost = v
		c.LLM.Host = v
	}
	if v := os.Getenv("OLLAMA_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("AITURAG_EMBED_MODEL"); v != "" {
		c.Embed.Model = v
	}
	if v := os.Getenv("AITURAG_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("AITURAG_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
}

// Validate checks the configuration for invariant violations.
func (c *Config) Validate() error {
	if c.Ingest.ChunkWindow <= 0 {
		return fmt.Errorf("ingest.chunk_window must be positive, got %d", c.Ingest.ChunkWindow)
	}
	if c.Ingest.ChunkOverlap < 0 || c.Ingest.ChunkOverlap >= c.Ingest.ChunkWindow {
		return fmt.Errorf("ingest.chunk_overlap must be in [0, chunk_window), got %d", c.Ingest.ChunkOverlap)
	}
	if c.Ingest.MaxFetchWorkers <= 0 {
		return fmt.Errorf("ingest.max_fetch_workers must be positive, got %d", c.Ingest.MaxFetchWorkers)
	}
	if c.Embed.Model == "" {
		return fmt.Errorf("embed.model must not be empty")
	}
	if c.Embed.BatchSize <= 0 {
		return fmt.Errorf("embed.batch_size must be positive, got %d", c.Embed.BatchSize)
	}
	if !factoryRe.MatchString(c.Index.Factory) {
		return fmt.Errorf("index.factory %q not recognized (want Flat, IVF<nlist>,Flat or HNSW<M>)", c.Index.Factory)
	}
	if c.Index.Metric != "cos" && c.Index.Metric != "l2" {
		return fmt.Errorf("index.metric must be cos or l2, got %q", c.Index.Metric)
	}
	if c.Retrieve.TopK <= 0 {
		return fmt.Errorf("retrieve.top_k must be positive, got %d", c.Retrieve.TopK)
	}
	if c.Retrieve.RerankK <= 0 || c.Retrieve.RerankK > c.Retrieve.TopK {
		return fmt.Errorf("retrieve.rerank_k must be in [1, top_k], got %d", c.Retrieve.RerankK)
	}
	for _, field := range []struct {
		name, value string
	}{
		{"ingest.request_timeout", c.Ingest.RequestTimeout},
		{"retrieve.timeout", c.Retrieve.Timeout},
		{"llm.timeout", c.LLM.Timeout},
	} {
		if _, err := time.ParseDuration(field.value); err != nil {
			return fmt.Errorf("%s: invalid duration %q", field.name, field.value)
		}
	}
	return nil
}

// FetchTimeout returns the parsed per-request ingest timeout.
func (c *Config) FetchTimeout() time.Duration {
	return mustDuration(c.Ingest.RequestTimeout, 30*time.Second)
}

// RetrieveTimeout returns the parsed per-query retrieval budget.
func (c *Config) RetrieveTimeout() time.Duration {
	return mustDuration(c.Retrieve.Timeout, 10*time.Second)
}

// LLMTimeout returns the parsed generation timeout.
func (c *Config) LLMTimeout() time.Duration {
	return mustDuration(c.LLM.Timeout, 60*time.Second)
}

// mustDuration parses a duration string, falling back on parse failure.
// Validate has already rejected unparseable values for loaded configs.
func mustDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// Save writes the configuration as YAML to path.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
