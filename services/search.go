package services

import (
	"context"
	"fmt"
	"strings"

	"document-summarizer/models"
)

const (
	defaultTopK       = 5
	maxTextMatches    = 10
	matchContextChars = 100
)

type searchStore interface {
	DocumentStore
	EmbeddingStore
}

// SearchService answers queries against one document's text and embeddings.
type SearchService struct {
	store      searchStore
	embeddings *EmbeddingService
}

func NewSearchService(store searchStore, embeddings *EmbeddingService) *SearchService {
	return &SearchService{store: store, embeddings: embeddings}
}

// IndexDocument (re)builds the embedding chunks of a document and records the
// embedding metadata. Errors are EmbeddingError.
func (s *SearchService) IndexDocument(ctx context.Context, documentID string) (*models.EmbeddingMetadata, error) {
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.Text() == "" {
		return nil, &EmbeddingError{Err: ErrNoText}
	}

	meta, indexErr := s.embeddings.Index(ctx, s.store, documentID, doc.Text(), nil)
	if err := s.store.UpdateDocument(ctx, documentID, models.DocumentUpdate{EmbeddingMetadata: meta}); err != nil && indexErr == nil {
		return nil, fmt.Errorf("record embedding metadata: %w", err)
	}
	if indexErr != nil {
		return nil, indexErr
	}
	return meta, nil
}

// Search embeds the query and ranks the stored chunks by cosine similarity.
func (s *SearchService) Search(ctx context.Context, documentID, query string, topK int) ([]models.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty query: %w", ErrValidation)
	}
	if topK <= 0 {
		topK = defaultTopK
	}

	chunks, err := s.store.ListEmbeddingChunks(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return []models.SearchResult{}, nil
	}

	vectors, err := s.embeddings.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}

	corpus := make([]Candidate[models.EmbeddingChunk], len(chunks))
	for i, c := range chunks {
		corpus[i] = Candidate[models.EmbeddingChunk]{Item: c, Embedding: c.Embedding}
	}

	ranked := Rank(vectors[0], corpus, topK)
	results := make([]models.SearchResult, len(ranked))
	for i, r := range ranked {
		results[i] = models.SearchResult{
			ChunkIndex:      r.Item.ChunkIndex,
			Text:            r.Item.ChunkText,
			PageNumber:      r.Item.PageNumber,
			SimilarityScore: r.Similarity,
		}
	}
	return results, nil
}

// FindInDocument returns up to ten case-insensitive literal matches with
// surrounding context. Positions are in characters.
func (s *SearchService) FindInDocument(ctx context.Context, documentID, query string) ([]models.TextMatch, error) {
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return FindMatches(doc.Text(), query, maxTextMatches), nil
}

func FindMatches(text, query string, limit int) []models.TextMatch {
	matches := []models.TextMatch{}
	if query == "" || text == "" {
		return matches
	}

	runes := []rune(text)
	lower := []rune(strings.ToLower(text))
	needle := []rune(strings.ToLower(query))
	if len(lower) != len(runes) {
		// Lowercasing changed rune count; fall back to exact-case matching
		lower = runes
		needle = []rune(query)
	}

	for i := 0; i+len(needle) <= len(lower) && len(matches) < limit; {
		if !hasRunePrefix(lower[i:], needle) {
			i++
			continue
		}
		start := max(0, i-matchContextChars)
		end := min(len(runes), i+len(needle)+matchContextChars)
		matches = append(matches, models.TextMatch{
			Position:       i,
			Context:        string(runes[start:end]),
			RelevanceScore: 1.0,
		})
		i += len(needle)
	}
	return matches
}

func hasRunePrefix(s, prefix []rune) bool {
	for i, r := range prefix {
		if s[i] != r {
			return false
		}
	}
	return true
}
