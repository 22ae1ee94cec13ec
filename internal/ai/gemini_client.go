package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	genai "github.com/google/generative-ai-go/genai"

	"document-summarizer/internal/telemetry"
)

type GeminiClient struct {
	client  *genai.Client
	guard   *guard
	model   string
	metrics *telemetry.Metrics
}

func NewGeminiClient(ctx context.Context, apiKey, model, tier string, metrics *telemetry.Metrics) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	return &GeminiClient{
		client:  client,
		guard:   newGuard("GeminiAPI", tier, metrics),
		model:   model,
		metrics: metrics,
	}, nil
}

func (gc *GeminiClient) Model() string {
	return gc.model
}

func (gc *GeminiClient) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	tracer := otel.Tracer("gemini-client")
	ctx, span := tracer.Start(ctx, "gemini.generate_content")
	defer span.End()

	estimatedTokens := EstimateTokens(req.SystemPrompt) + EstimateTokens(req.UserPrompt) + req.MaxTokens
	span.SetAttributes(
		attribute.Int("gemini.estimated_tokens", estimatedTokens),
		attribute.Int("gemini.max_tokens", req.MaxTokens),
		attribute.String("gemini.model", gc.model),
	)

	var text string
	var used int
	err := gc.guard.do(ctx, estimatedTokens, func() (int, error) {
		model := gc.client.GenerativeModel(gc.model)
		model.SetTemperature(req.Temperature)
		if req.MaxTokens > 0 {
			model.SetMaxOutputTokens(int32(req.MaxTokens))
		}
		if req.SystemPrompt != "" {
			model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.SystemPrompt)}}
		}

		resp, err := model.GenerateContent(ctx, genai.Text(req.UserPrompt))
		if err != nil {
			return 0, classifyGeminiError(err)
		}

		text = responseText(resp)
		used = extractTokenUsage(resp, text)
		return used, nil
	})

	gc.metrics.RecordLLMCall(ctx, "gemini", gc.model, "complete", int64(used), err == nil)
	if err != nil {
		span.SetAttributes(
			attribute.Bool("gemini.error", true),
			attribute.Bool("gemini.rate_limited", errors.Is(err, ErrRateLimited)),
			attribute.Bool("gemini.circuit_breaker_open", errors.Is(err, ErrCircuitOpen)),
		)
		span.RecordError(err)
		return nil, fmt.Errorf("gemini generate content: %w", err)
	}

	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyResponse
	}

	span.SetAttributes(attribute.Int("gemini.actual_tokens", used))
	return &Completion{Text: text, Model: gc.model, TokensUsed: used}, nil
}

// Close the client
func (gc *GeminiClient) Close() error {
	if gc.client != nil {
		return gc.client.Close()
	}
	return nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var sb strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
		// First candidate only
		break
	}
	return sb.String()
}

// Extract token usage from Gemini response
func extractTokenUsage(resp *genai.GenerateContentResponse, text string) int {
	if resp != nil && resp.UsageMetadata != nil {
		return int(resp.UsageMetadata.TotalTokenCount)
	}

	estimated := EstimateTokens(text)
	if estimated < 1 {
		estimated = 1 // Minimum 1 token
	}
	return estimated
}

func classifyGeminiError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	}
	return err
}
