package ai

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/api/option"

	"document-summarizer/internal/telemetry"
)

// GeminiEmbedder batches texts through the Google embedding model.
type GeminiEmbedder struct {
	client    *genai.Client
	guard     *guard
	modelName string
	batchSize int
	metrics   *telemetry.Metrics
}

func NewGeminiEmbedder(ctx context.Context, apiKey, modelName, tier string, batchSize int, metrics *telemetry.Metrics) (*GeminiEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY for embeddings")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = "text-embedding-004"
	}
	if batchSize <= 0 {
		batchSize = 64
	}
	return &GeminiEmbedder{
		client:    cl,
		guard:     newGuard("GeminiEmbeddings", tier, metrics),
		modelName: modelName,
		batchSize: batchSize,
		metrics:   metrics,
	}, nil
}

func (g *GeminiEmbedder) Model() string {
	return g.modelName
}

func (g *GeminiEmbedder) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// Embed sends the texts in batches and keeps input order.
func (g *GeminiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	ctx, span := otel.Tracer("gemini-client").Start(ctx, "gemini.batch_embed")
	defer span.End()
	span.SetAttributes(
		attribute.Int("gemini.texts", len(texts)),
		attribute.String("gemini.model", g.modelName),
	)

	em := g.client.EmbeddingModel(g.modelName)
	out := make([][]float32, 0, len(texts))

	for _, batchTexts := range batches(texts, g.batchSize) {
		estimated := 0
		for _, t := range batchTexts {
			estimated += EstimateTokens(t)
		}

		var vectors [][]float32
		err := g.guard.do(ctx, estimated, func() (int, error) {
			batch := em.NewBatch()
			for _, t := range batchTexts {
				batch.AddContent(genai.Text(t))
			}

			resp, err := em.BatchEmbedContents(ctx, batch)
			if err != nil {
				return 0, classifyGeminiError(err)
			}
			for _, e := range resp.Embeddings {
				vectors = append(vectors, e.Values)
			}
			return estimated, nil
		})
		g.metrics.RecordLLMCall(ctx, "gemini", g.modelName, "embed", int64(estimated), err == nil)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("gemini batch embed: %w", err)
		}
		if len(vectors) != len(batchTexts) {
			return nil, fmt.Errorf("gemini batch embed: got %d vectors for %d texts: %w", len(vectors), len(batchTexts), ErrEmptyResponse)
		}
		out = append(out, vectors...)
	}

	return out, nil
}

func batches(texts []string, size int) [][]string {
	var out [][]string
	for start := 0; start < len(texts); start += size {
		end := start + size
		if end > len(texts) {
			end = len(texts)
		}
		out = append(out, texts[start:end])
	}
	return out
}
