package ai

import (
	"context"
	"fmt"

	"document-summarizer/internal/config"
	"document-summarizer/internal/telemetry"
)

// NewCompleter builds the completion client for the configured provider.
func NewCompleter(ctx context.Context, cfg *config.Config, metrics *telemetry.Metrics) (Completer, error) {
	switch cfg.LLMProvider {
	case "gemini", "":
		client, err := NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.LLMModel, cfg.LLMTier, metrics)
		if err != nil {
			return nil, err
		}
		return client, nil
	case "groq":
		return NewOpenAIClient(OpenAIOptions{
			Provider: "groq",
			BaseURL:  cfg.GroqBaseURL,
			APIKey:   cfg.GroqAPIKey,
			Model:    cfg.LLMModel,
			Tier:     cfg.LLMTier,
		}, metrics), nil
	case "openai":
		return NewOpenAIClient(OpenAIOptions{
			Provider: "openai",
			APIKey:   cfg.OpenAIAPIKey,
			Model:    cfg.LLMModel,
			Tier:     cfg.LLMTier,
		}, metrics), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", cfg.LLMProvider)
	}
}

// NewEmbedder builds the embedding client. Default provider is Google (text-embedding-004).
func NewEmbedder(ctx context.Context, cfg *config.Config, metrics *telemetry.Metrics) (Embedder, error) {
	switch cfg.EmbeddingsProvider {
	case "google", "":
		embedder, err := NewGeminiEmbedder(ctx, cfg.GeminiAPIKey, cfg.GoogleEmbeddingsModel, cfg.LLMTier, cfg.EmbeddingBatchSize, metrics)
		if err != nil {
			return nil, err
		}
		return embedder, nil
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("missing OPENAI_API_KEY for embeddings")
		}
		client := NewOpenAIClient(OpenAIOptions{
			Provider:       "openai",
			APIKey:         cfg.OpenAIAPIKey,
			EmbeddingModel: cfg.OpenAIEmbeddingsModel,
			Tier:           cfg.LLMTier,
			BatchSize:      cfg.EmbeddingBatchSize,
		}, metrics)
		return openAIEmbedder{client}, nil
	default:
		return nil, fmt.Errorf("unknown embeddings provider: %s", cfg.EmbeddingsProvider)
	}
}

type openAIEmbedder struct {
	*OpenAIClient
}

func (e openAIEmbedder) Model() string {
	return e.embeddingModel
}
