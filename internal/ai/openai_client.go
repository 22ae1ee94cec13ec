package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"document-summarizer/internal/telemetry"
)

// OpenAIClient talks to any OpenAI-compatible endpoint (OpenAI, Groq).
type OpenAIClient struct {
	client         *openai.Client
	guard          *guard
	provider       string
	model          string
	embeddingModel string
	batchSize      int
	metrics        *telemetry.Metrics
}

type OpenAIOptions struct {
	Provider       string
	BaseURL        string
	APIKey         string
	Model          string
	EmbeddingModel string
	Tier           string
	BatchSize      int
}

func NewOpenAIClient(opts OpenAIOptions, metrics *telemetry.Metrics) *OpenAIClient {
	config := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		config.BaseURL = opts.BaseURL
	}
	if opts.Provider == "" {
		opts.Provider = "openai"
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 64
	}

	return &OpenAIClient{
		client:         openai.NewClientWithConfig(config),
		guard:          newGuard(opts.Provider+"API", opts.Tier, metrics),
		provider:       opts.Provider,
		model:          opts.Model,
		embeddingModel: opts.EmbeddingModel,
		batchSize:      opts.BatchSize,
		metrics:        metrics,
	}
}

func (c *OpenAIClient) Model() string {
	return c.model
}

func (c *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	ctx, span := otel.Tracer("openai-client").Start(ctx, "openai.chat_completion")
	defer span.End()

	estimatedTokens := EstimateTokens(req.SystemPrompt) + EstimateTokens(req.UserPrompt) + req.MaxTokens
	span.SetAttributes(
		attribute.String("llm.provider", c.provider),
		attribute.String("llm.model", c.model),
		attribute.Int("llm.estimated_tokens", estimatedTokens),
	)

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.UserPrompt,
	})

	var text string
	var used int
	err := c.guard.do(ctx, estimatedTokens, func() (int, error) {
		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       c.model,
			Messages:    messages,
			MaxTokens:   req.MaxTokens,
			Temperature: req.Temperature,
		})
		if err != nil {
			return 0, classifyOpenAIError(err)
		}
		if len(resp.Choices) > 0 {
			text = resp.Choices[0].Message.Content
		}
		used = resp.Usage.TotalTokens
		return used, nil
	})

	c.metrics.RecordLLMCall(ctx, c.provider, c.model, "complete", int64(used), err == nil)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%s chat completion: %w", c.provider, err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyResponse
	}

	return &Completion{Text: text, Model: c.model, TokensUsed: used}, nil
}

// Embed implements Embedder against the embeddings endpoint.
func (c *OpenAIClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	ctx, span := otel.Tracer("openai-client").Start(ctx, "openai.embeddings")
	defer span.End()

	out := make([][]float32, 0, len(texts))
	for _, batch := range batches(texts, c.batchSize) {
		estimated := 0
		for _, t := range batch {
			estimated += EstimateTokens(t)
		}

		vectors := make([][]float32, len(batch))
		err := c.guard.do(ctx, estimated, func() (int, error) {
			resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
				Input: batch,
				Model: openai.EmbeddingModel(c.embeddingModel),
			})
			if err != nil {
				return 0, classifyOpenAIError(err)
			}
			if len(resp.Data) != len(batch) {
				return 0, fmt.Errorf("got %d vectors for %d texts: %w", len(resp.Data), len(batch), ErrEmptyResponse)
			}
			for i, d := range resp.Data {
				idx := d.Index
				if idx < 0 || idx >= len(batch) {
					idx = i
				}
				vectors[idx] = d.Embedding
			}
			return resp.Usage.TotalTokens, nil
		})
		c.metrics.RecordLLMCall(ctx, c.provider, c.embeddingModel, "embed", int64(estimated), err == nil)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("%s embeddings: %w", c.provider, err)
		}
		out = append(out, vectors...)
	}

	return out, nil
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	}
	return err
}
