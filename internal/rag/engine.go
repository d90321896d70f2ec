package rag

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	aituerr "github.com/aitu-rag/aiturag/internal/errors"
	"github.com/aitu-rag/aiturag/internal/history"
	"github.com/aitu-rag/aiturag/internal/llm"
	"github.com/aitu-rag/aiturag/internal/retrieve"
)

// Answer is the engine's response to one question.
type Answer struct {
	// Text is the generated answer.
	Text string `json:"answer"`

	// Sources are the context chunks the answer was grounded on, in
	// prompt order, so [N] citations can be resolved.
	Sources []retrieve.Result `json:"sources"`

	// Grounded is false when no relevant context was found and the
	// fallback answer was returned without calling the model.
	Grounded bool `json:"grounded"`
}

// Engine ties retrieval, prompting and generation together.
type Engine struct {
	retriever *retrieve.Service
	generator llm.Generator
	history   *history.Store
}

// NewEngine creates an answer engine. The history store may be nil, in
// which case interactions are not recorded.
func NewEngine(retriever *retrieve.Service, generator llm.Generator, hist *history.Store) *Engine {
	return &Engine{
		retriever: retriever,
		generator: generator,
		history:   hist,
	}
}

// Ask answers one question from the indexed knowledge base. Retrieval
// failures surface as errors; an empty retrieval is not a failure and
// yields the fallback answer with Grounded=false.
func (e *Engine) Ask(ctx context.Context, question string) (*Answer, error) {
	start := time.Now()

	results, err := e.retriever.Retrieve(ctx, question)
	if err != nil {
		return nil, aituerr.New(aituerr.ErrCodeRetrievalFailed, "retrieve context", err)
	}

	if len(results) == 0 {
		ans := &Answer{Text: FallbackAnswer, Sources: []retrieve.Result{}, Grounded: false}
		e.record(ctx, question, ans, time.Since(start))
		return ans, nil
	}

	prompt := BuildPrompt(results, question)
	text, err := e.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	ans := &Answer{Text: text, Sources: results, Grounded: true}
	e.record(ctx, question, ans, time.Since(start))

	slog.Info("question answered",
		slog.Int("sources", len(results)),
		slog.Bool("grounded", ans.Grounded),
		slog.Duration("elapsed", time.Since(start)))

	return ans, nil
}

// record logs the interaction; recording failures never fail the answer.
func (e *Engine) record(ctx context.Context, question string, ans *Answer, elapsed time.Duration) {
	if e.history == nil {
		return
	}
	_, err := e.history.Record(ctx, history.Interaction{
		Question:    question,
		Answer:      ans.Text,
		Grounded:    ans.Grounded,
		SourceCount: len(ans.Sources),
		DurationMS:  elapsed.Milliseconds(),
	})
	if err != nil {
		slog.Warn("interaction record failed", slog.String("error", err.Error()))
	}
}
