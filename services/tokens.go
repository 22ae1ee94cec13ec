package services

import "document-summarizer/internal/ai"

// TokenCounter estimates LLM input size for strategy selection. Not billing-accurate.
type TokenCounter struct{}

func (TokenCounter) Count(text string) int {
	return ai.EstimateTokens(text)
}

// UseDirect reports whether text fits the single-call summarization path.
func (tc TokenCounter) UseDirect(text string, threshold int) bool {
	return tc.Count(text) <= threshold
}
