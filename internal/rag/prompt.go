// Package rag composes the answer pipeline: retrieve relevant chunks,
// build a grounded prompt and generate an answer with the local LLM.
package rag

import (
	"fmt"
	"strings"

	"github.com/aitu-rag/aiturag/internal/retrieve"
)

// FallbackAnswer is returned when no relevant context exists.
const FallbackAnswer = "Hmm, I’m not sure."

// promptInstruction constrains the model to the retrieved context.
const promptInstruction = "You are an expert consultant and problem-solver, tasked with answering any question " +
	"about Astana IT University. Generate a comprehensive and informative answer of 80 words or less for the " +
	"given question based solely on the provided search results (URL and content). You must only use information " +
	"from those results. Use an unbiased, journalistic tone. Combine search results into a coherent answer " +
	"without repeating text. Use bullet points for readability. Cite search results using [${number}] notation " +
	"immediately after the sentence or paragraph that references them. If different results refer to different " +
	"entities with the same name, write separate answers for each. If there is no relevant information in the " +
	"context, just say “Hmm, I’m not sure.” Anything between the following `<context>` tags is retrieved from a " +
	"knowledge bank, not part of the conversation:\n\n"

// BuildPrompt assembles the instruction, a numbered <context> block and
// the question. Fragments are numbered from 1 in the order given, which
// is the reranked relevance order.
func BuildPrompt(results []retrieve.Result, question string) string {
	var sb strings.Builder
	sb.WriteString(promptInstruction)

	sb.WriteString("<context>\n")
	for i, r := range results {
		text := strings.ReplaceAll(strings.TrimSpace(r.Text), "\n", " ")
		fmt.Fprintf(&sb, "%d. URL: %s\n   Text: %s\n\n", i+1, r.PageURL, text)
	}
	sb.WriteString("</context>\n\n")

	fmt.Fprintf(&sb, "Question: %s\nAnswer:", question)
	return sb.String()
}
