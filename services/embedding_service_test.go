package services

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestEmbedDocument(t *testing.T) {
	svc := NewEmbeddingService(&fakeEmbedder{}, NewWordChunker(10, 2))
	text := words(25)
	pages := map[int]string{1: words(12), 2: "trailing " + strings.Join(strings.Fields(text)[12:], " ")}

	chunks, err := svc.EmbedDocument(context.Background(), "doc-1", text, pages)
	if err != nil {
		t.Fatalf("EmbedDocument: %v", err)
	}
	// ceil((25-2)/(10-2)) = 3
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	for i, c := range chunks {
		if c.ChunkIndex != i || c.DocumentID != "doc-1" || len(c.Embedding) == 0 {
			t.Errorf("chunk %d malformed: %+v", i, c)
		}
		if c.TokenCount == 0 {
			t.Errorf("chunk %d has no token estimate", i)
		}
	}
	if chunks[0].PageNumber == nil || *chunks[0].PageNumber != 1 {
		t.Errorf("first chunk page = %v, want 1", chunks[0].PageNumber)
	}
	if chunks[2].PageNumber == nil || *chunks[2].PageNumber != 2 {
		t.Errorf("last chunk page = %v, want 2", chunks[2].PageNumber)
	}
}

func TestEmbedDocumentErrors(t *testing.T) {
	tests := []struct {
		name     string
		embedder *fakeEmbedder
		text     string
		wantIs   error
	}{
		{"no text", &fakeEmbedder{}, "   ", ErrNoText},
		{"model error", &fakeEmbedder{err: errors.New("boom")}, "some text", nil},
		{"vector count mismatch", &fakeEmbedder{short: true}, "some text", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewEmbeddingService(tt.embedder, nil)
			_, err := svc.EmbedDocument(context.Background(), "doc-1", tt.text, nil)
			var embErr *EmbeddingError
			if !errors.As(err, &embErr) {
				t.Fatalf("expected EmbeddingError, got %v", err)
			}
			if tt.wantIs != nil && !errors.Is(err, tt.wantIs) {
				t.Errorf("err = %v, want %v", err, tt.wantIs)
			}
		})
	}
}

func TestIndexRecordsMetadata(t *testing.T) {
	store := newMemStore()
	svc := NewEmbeddingService(&fakeEmbedder{}, NewWordChunker(10, 2))

	meta, err := svc.Index(context.Background(), store, "doc-1", words(25), nil)
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if !meta.EmbeddingsGenerated || meta.Chunks != 3 || meta.Model != "fake-embedding" || meta.ChunkSize != 10 {
		t.Errorf("unexpected metadata %+v", meta)
	}
	stored, _ := store.ListEmbeddingChunks(context.Background(), "doc-1")
	if len(stored) != 3 || stored[0].ID == "" {
		t.Errorf("stored %d chunks", len(stored))
	}

	failing := NewEmbeddingService(&fakeEmbedder{err: errors.New("boom")}, nil)
	meta, err = failing.Index(context.Background(), store, "doc-2", "text", nil)
	if err == nil || meta == nil || meta.EmbeddingsGenerated || meta.Model == "" {
		t.Errorf("failed index should still describe the attempt: %+v, %v", meta, err)
	}
}
