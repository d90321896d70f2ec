// Package chunk splits document text into bounded, overlapping token windows.
// Chunks are the atomic unit of retrieval: each one is embedded and indexed
// independently, carrying its token range for provenance.
package chunk

import (
	"fmt"
)

// Chunk is one bounded window of a document's token stream.
// Chunk numbering restarts at 0 for every document.
type Chunk struct {
	// ChunkID is the sequence number within the document, starting at 0.
	ChunkID int `json:"chunk_id"`
	// Text is the chunk content, sliced from the source document.
	Text string `json:"text"`
	// StartToken is the index of the first token (inclusive).
	StartToken int `json:"start_token"`
	// EndToken is the index one past the last token (exclusive).
	EndToken int `json:"end_token"`
}

// Chunker walks a token sequence with a stride of window-overlap,
// emitting one chunk per window.
type Chunker struct {
	tokenizer Tokenizer
	window    int
	overlap   int
}

// NewChunker creates a chunker. overlap must be smaller than window,
// otherwise the walk would never advance.
func NewChunker(tokenizer Tokenizer, window, overlap int) (*Chunker, error) {
	if window <= 0 {
		return nil, fmt.Errorf("chunk window must be positive, got %d", window)
	}
	if overlap < 0 || overlap >= window {
		return nil, fmt.Errorf("chunk overlap must be in [0, window), got %d", overlap)
	}
	return &Chunker{tokenizer: tokenizer, window: window, overlap: overlap}, nil
}

// Window returns the maximum token count per chunk.
func (c *Chunker) Window() int { return c.window }

// Overlap returns the token overlap between consecutive chunks.
func (c *Chunker) Overlap() int { return c.overlap }

// Chunk splits text into overlapping token windows. Empty or
// whitespace-only input yields zero chunks; any other input yields at
// least one chunk, the last of which may be shorter than the window.
func (c *Chunker) Chunk(text string) []Chunk {
	tokens := c.tokenizer.Encode(text)
	if len(tokens) == 0 {
		return nil
	}

	stride := c.window - c.overlap
	var chunks []Chunk

	for start := 0; start < len(tokens); start += stride {
		end := start + c.window
		if end > len(tokens) {
			end = len(tokens)
		}

		chunks = append(chunks, Chunk{
			ChunkID:    len(chunks),
			Text:       text[tokens[start].Start:tokens[end-1].End],
			StartToken: start,
			EndToken:   end,
		})

		if end == len(tokens) {
			break
		}
	}

	return chunks
}
