package ai

import (
	"context"
	"errors"
)

var (
	// ErrRateLimited is returned when the local token budget or the provider quota is exhausted.
	ErrRateLimited = errors.New("llm rate limit exceeded")
	// ErrCircuitOpen is returned while the provider circuit breaker is open.
	ErrCircuitOpen = errors.New("llm circuit breaker open")
	// ErrEmptyResponse is returned when the provider answers without usable content.
	ErrEmptyResponse = errors.New("llm returned an empty response")
)

// CompletionRequest is a single chat-completion call.
type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float32
}

// Completion is the text answer plus accounting.
type Completion struct {
	Text       string
	Model      string
	TokensUsed int
}

// Completer generates text from a system and user prompt.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
	Model() string
}

// Embedder turns texts into vectors, one per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// EstimateTokens approximates token usage at four characters per token.
func EstimateTokens(text string) int {
	n := 0
	for range text {
		n++
	}
	return (n + 3) / 4
}
