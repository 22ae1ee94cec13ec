package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"document-summarizer/models"
)

func TestFindMatches(t *testing.T) {
	text := "The Fox ran. A fox hid. Foxes everywhere."

	matches := FindMatches(text, "fox", 10)
	wantPositions := []int{4, 15, 24}
	if len(matches) != len(wantPositions) {
		t.Fatalf("got %d matches, want %d", len(matches), len(wantPositions))
	}
	for i, m := range matches {
		if m.Position != wantPositions[i] {
			t.Errorf("match %d at %d, want %d", i, m.Position, wantPositions[i])
		}
		if m.Context != text || m.RelevanceScore != 1.0 {
			t.Errorf("match %d context %q score %v", i, m.Context, m.RelevanceScore)
		}
	}

	if got := FindMatches(text, "fox", 2); len(got) != 2 {
		t.Errorf("limit ignored: %d matches", len(got))
	}
	if got := FindMatches(text, "", 10); got == nil || len(got) != 0 {
		t.Error("empty query should give an empty list")
	}
	if got := FindMatches("", "fox", 10); len(got) != 0 {
		t.Error("empty text should give no matches")
	}
	if got := FindMatches("aaaa", "aa", 10); len(got) != 2 {
		t.Errorf("matches should not overlap, got %d", len(got))
	}
}

func TestFindMatchesContextWindow(t *testing.T) {
	text := strings.Repeat("a", 150) + "needle" + strings.Repeat("b", 150)
	matches := FindMatches(text, "NEEDLE", 10)
	if len(matches) != 1 {
		t.Fatalf("got %d matches", len(matches))
	}
	want := strings.Repeat("a", 100) + "needle" + strings.Repeat("b", 100)
	if matches[0].Position != 150 || matches[0].Context != want {
		t.Errorf("position %d context length %d", matches[0].Position, len(matches[0].Context))
	}

	// Positions count characters, not bytes
	if m := FindMatches("héllo wörld", "wörld", 10); len(m) != 1 || m[0].Position != 6 {
		t.Errorf("unexpected matches %+v", m)
	}
}

func TestSearch(t *testing.T) {
	text := "alpha text. beta text."
	store := newMemStore(&models.Document{ID: "doc-1", TextContent: &text})
	store.chunks["doc-1"] = []models.EmbeddingChunk{
		{ChunkIndex: 0, ChunkText: "about alpha", Embedding: []float32{1, 0}},
		{ChunkIndex: 1, ChunkText: "about beta", Embedding: []float32{0, 1}},
		{ChunkIndex: 2, ChunkText: "about both", Embedding: []float32{1, 1}},
	}
	embedder := &fakeEmbedder{vectors: map[string][]float32{"beta?": {0, 1}}}
	search := NewSearchService(store, NewEmbeddingService(embedder, nil))

	results, err := search.Search(context.Background(), "doc-1", "beta?", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 || results[0].ChunkIndex != 1 || results[1].ChunkIndex != 2 {
		t.Fatalf("unexpected ranking %+v", results)
	}
	if math.Abs(results[0].SimilarityScore-1) > 1e-9 || results[0].Text != "about beta" {
		t.Errorf("top result %+v", results[0])
	}

	all, _ := search.Search(context.Background(), "doc-1", "beta?", 0)
	if len(all) != 3 {
		t.Errorf("default topK returned %d results", len(all))
	}

	if _, err := search.Search(context.Background(), "doc-1", "  ", 5); !errors.Is(err, ErrValidation) {
		t.Errorf("empty query err = %v", err)
	}
}

func TestSearchWithoutChunks(t *testing.T) {
	embedder := &fakeEmbedder{}
	search := NewSearchService(newMemStore(), NewEmbeddingService(embedder, nil))

	results, err := search.Search(context.Background(), "doc-1", "anything", 5)
	if err != nil || results == nil || len(results) != 0 {
		t.Fatalf("Search = %v, %v", results, err)
	}
	if embedder.calls != 0 {
		t.Error("query should not be embedded when nothing is indexed")
	}
}

func TestIndexDocument(t *testing.T) {
	text := words(25)
	store := newMemStore(&models.Document{ID: "doc-1", TextContent: &text}, &models.Document{ID: "empty"})
	search := NewSearchService(store, NewEmbeddingService(&fakeEmbedder{}, NewWordChunker(10, 2)))

	meta, err := search.IndexDocument(context.Background(), "doc-1")
	if err != nil || meta.Chunks != 3 {
		t.Fatalf("IndexDocument = %+v, %v", meta, err)
	}
	if doc := store.doc("doc-1"); doc.EmbeddingMetadata == nil || !doc.EmbeddingMetadata.EmbeddingsGenerated {
		t.Error("embedding metadata not recorded on the document")
	}

	if _, err := search.IndexDocument(context.Background(), "empty"); !errors.Is(err, ErrNoText) {
		t.Errorf("err = %v, want ErrNoText", err)
	}
	if _, err := search.IndexDocument(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}

	matches, err := search.FindInDocument(context.Background(), "doc-1", "w1")
	if err != nil || len(matches) == 0 {
		t.Errorf("FindInDocument = %v, %v", matches, err)
	}
}
