package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"document-summarizer/internal/ai"
	"document-summarizer/models"
)

// EmbeddingService chunks document text by words and embeds every chunk.
type EmbeddingService struct {
	embedder ai.Embedder
	chunker  *WordChunker
}

func NewEmbeddingService(embedder ai.Embedder, chunker *WordChunker) *EmbeddingService {
	if chunker == nil {
		chunker = NewWordChunker(1000, 100)
	}
	return &EmbeddingService{embedder: embedder, chunker: chunker}
}

func (s *EmbeddingService) Model() string {
	return s.embedder.Model()
}

func (s *EmbeddingService) ChunkSize() int {
	return s.chunker.ChunkSize
}

// Embed returns one vector per text, in order.
func (s *EmbeddingService) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, &EmbeddingError{Err: err}
	}
	if len(vectors) != len(texts) {
		return nil, &EmbeddingError{Err: fmt.Errorf("got %d vectors for %d texts", len(vectors), len(texts))}
	}
	return vectors, nil
}

// EmbedDocument chunks text and returns embedding chunks ready to persist.
// Page numbers are best-effort: the page holding the chunk's first words.
func (s *EmbeddingService) EmbedDocument(ctx context.Context, documentID, text string, pageTexts map[int]string) ([]models.EmbeddingChunk, error) {
	ctx, span := otel.Tracer("embedding-service").Start(ctx, "embeddings.embed_document")
	defer span.End()

	chunks := s.chunker.Split(text)
	if len(chunks) == 1 && chunks[0].WordCount == 0 {
		return nil, &EmbeddingError{Err: ErrNoText}
	}
	span.SetAttributes(attribute.Int("embeddings.chunks", len(chunks)))

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := s.Embed(ctx, texts)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	out := make([]models.EmbeddingChunk, len(chunks))
	for i, c := range chunks {
		out[i] = models.EmbeddingChunk{
			DocumentID: documentID,
			ChunkText:  c.Text,
			ChunkIndex: c.ChunkIndex,
			PageNumber: locatePage(c.Text, pageTexts),
			StartWord:  c.StartWord,
			EndWord:    c.EndWord,
			WordCount:  c.WordCount,
			TokenCount: ai.EstimateTokens(c.Text),
			Embedding:  vectors[i],
		}
	}
	return out, nil
}

// Index embeds text and replaces the document's stored chunks. The returned
// metadata is filled in even on failure, with EmbeddingsGenerated false.
func (s *EmbeddingService) Index(ctx context.Context, store EmbeddingStore, documentID, text string, pageTexts map[int]string) (*models.EmbeddingMetadata, error) {
	meta := &models.EmbeddingMetadata{
		Model:     s.Model(),
		ChunkSize: s.ChunkSize(),
	}

	chunks, err := s.EmbedDocument(ctx, documentID, text, pageTexts)
	if err != nil {
		return meta, err
	}

	now := time.Now().UTC()
	for i := range chunks {
		chunks[i].ID = uuid.NewString()
		chunks[i].CreatedAt = now
	}
	if err := store.ReplaceEmbeddingChunks(ctx, documentID, chunks); err != nil {
		return meta, &EmbeddingError{Err: fmt.Errorf("store chunks: %w", err)}
	}

	meta.Chunks = len(chunks)
	meta.EmbeddingsGenerated = true
	return meta, nil
}

// locatePage finds the page containing the first few words of a chunk.
func locatePage(chunk string, pageTexts map[int]string) *int {
	words := strings.Fields(chunk)
	if len(words) == 0 || len(pageTexts) == 0 {
		return nil
	}
	if len(words) > 8 {
		words = words[:8]
	}
	needle := strings.Join(words, " ")

	best := 0
	for page, text := range pageTexts {
		if strings.Contains(strings.Join(strings.Fields(text), " "), needle) && (best == 0 || page < best) {
			best = page
		}
	}
	if best == 0 {
		return nil
	}
	return &best
}
