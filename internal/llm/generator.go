// Package llm generates answers from retrieved context via a local
// Ollama model.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	aituerr "github.com/aitu-rag/aiturag/internal/errors"
)

// Generation defaults.
const (
	DefaultHost        = "http://localhost:11434"
	DefaultModel       = "llama3.1"
	DefaultTemperature = 0.2
	DefaultTimeout     = 120 * time.Second
)

// Generator produces a completion for a prompt.
type Generator interface {
	// Generate returns the full completion text for the prompt.
	Generate(ctx context.Context, prompt string) (string, error)

	// Available reports whether the generation backend is reachable.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// OllamaConfig holds generation parameters.
type OllamaConfig struct {
	// Host is the Ollama server URL.
	Host string

	// Model is the generation model name.
	Model string

	// Temperature controls sampling randomness.
	Temperature float64

	// Timeout bounds one full generation.
	Timeout time.Duration
}

// OllamaGenerator streams completions from Ollama's /api/generate
// endpoint and concatenates the streamed fragments.
type OllamaGenerator struct {
	client *http.Client
	config OllamaConfig
	host   string

	mu     sync.RWMutex
	closed bool
}

// Verify interface implementation at compile time.
var _ Generator = (*OllamaGenerator)(nil)

// NewOllamaGenerator creates a generation client.
func NewOllamaGenerator(cfg OllamaConfig) *OllamaGenerator {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &OllamaGenerator{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        4,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     60 * time.Second,
			},
		},
		config: cfg,
		host:   strings.TrimRight(cfg.Host, "/"),
	}
}

// generateRequest is the JSON request to /api/generate.
type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

// generateChunk is one NDJSON line of the streamed response.
type generateChunk struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error"`
}

// Generate streams the completion and returns the concatenated text.
func (g *OllamaGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.mu.RLock()
	if g.closed {
		g.mu.RUnlock()
		return "", fmt.Errorf("generator is closed")
	}
	g.mu.RUnlock()

	reqBody := generateRequest{
		Model:  g.config.Model,
		Prompt: prompt,
		Stream: true,
		Options: map[string]any{
			"temperature": g.config.Temperature,
		},
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", aituerr.New(aituerr.ErrCodeGenerateFailed, "marshal generate request", err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodPost, g.host+"/api/generate", bytes.NewReader(jsonData))
	if err != nil {
		return "", aituerr.New(aituerr.ErrCodeGenerateFailed, "create generate request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		return "", aituerr.New(aituerr.ErrCodeGenerateFailed, "generate request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", aituerr.New(aituerr.ErrCodeGenerateFailed,
			fmt.Sprintf("generate failed (status %d): %s", resp.StatusCode, string(body)), nil)
	}

	var sb strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var chunk generateChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			return "", aituerr.New(aituerr.ErrCodeGenerateFailed, "decode stream chunk", err)
		}
		if chunk.Error != "" {
			return "", aituerr.New(aituerr.ErrCodeGenerateFailed, chunk.Error, nil)
		}
		sb.WriteString(chunk.Response)
		if chunk.Done {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return "", aituerr.New(aituerr.ErrCodeGenerateFailed, "read generate stream", err)
	}

	slog.Debug("generation completed",
		slog.String("model", g.config.Model),
		slog.Int("answer_chars", sb.Len()),
		slog.Duration("elapsed", time.Since(start)))

	return strings.TrimSpace(sb.String()), nil
}

// Available reports whether the Ollama server responds.
func (g *OllamaGenerator) Available(ctx context.Context) bool {
	g.mu.RLock()
	if g.closed {
		g.mu.RUnlock()
		return false
	}
	g.mu.RUnlock()

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, g.host+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Close releases idle connections.
func (g *OllamaGenerator) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil
	}
	g.closed = true

	if transport, ok := g.client.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
	return nil
}
