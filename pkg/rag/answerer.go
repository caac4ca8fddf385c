package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/chopralab/sciborg/pkg/llms"
)

// Citation points back at the source a statement in an answer came from.
type Citation struct {
	Title  string
	Source string
	Page   int
	Score  float32
}

// Answer is the result of a retrieval-augmented question.
type Answer struct {
	Text      string
	Citations []Citation
}

// Answerer runs question answering over a document store: retrieve,
// assemble context, generate.
type Answerer struct {
	store *DocumentStore
	llm   llms.Provider
	topK  int
}

func NewAnswerer(store *DocumentStore, llm llms.Provider) *Answerer {
	return &Answerer{store: store, llm: llm}
}

const answerSystemPrompt = `You are a research assistant. Answer the question using only the provided context passages. Cite passages by their number, like [1]. If the context does not contain the answer, say so.`

// Answer retrieves relevant chunks and asks the model to answer the
// question against them.
func (a *Answerer) Answer(ctx context.Context, question string) (*Answer, error) {
	results, err := a.store.Search(ctx, question, a.topK)
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}
	if len(results) == 0 {
		return &Answer{Text: "No relevant documents were found for this question."}, nil
	}

	var contextBlock strings.Builder
	citations := make([]Citation, 0, len(results))
	for i, result := range results {
		fmt.Fprintf(&contextBlock, "[%d] %s", i+1, result.Title)
		if result.Page > 0 {
			fmt.Fprintf(&contextBlock, " (page %d)", result.Page)
		}
		fmt.Fprintf(&contextBlock, "\n%s\n\n", result.Content)

		citations = append(citations, Citation{
			Title:  result.Title,
			Source: result.Source,
			Page:   result.Page,
			Score:  result.Score,
		})
	}

	messages := []llms.Message{
		llms.SystemMessage(answerSystemPrompt),
		llms.UserMessage(fmt.Sprintf("Context:\n\n%sQuestion: %s", contextBlock.String(), question)),
	}

	response, err := a.llm.Generate(ctx, messages, nil)
	if err != nil {
		return nil, fmt.Errorf("generation failed: %w", err)
	}

	return &Answer{Text: response.Text, Citations: citations}, nil
}
