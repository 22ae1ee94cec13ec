package services

import (
	"context"
	"time"

	"document-summarizer/internal/storage"
	"document-summarizer/models"
)

// DocumentStore reads and patches documents. Missing records yield ErrNotFound.
type DocumentStore interface {
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	UpdateDocument(ctx context.Context, id string, update models.DocumentUpdate) error
}

type SummaryStore interface {
	GetSummaryByDocumentID(ctx context.Context, documentID string) (*models.Summary, error)
	// CreateSummary inserts s, or returns the summary already stored for its document.
	CreateSummary(ctx context.Context, s *models.Summary) (*models.Summary, error)
}

type HighlightStore interface {
	ReplaceHighlights(ctx context.Context, documentID string, highlights []models.Highlight) error
	ListHighlights(ctx context.Context, documentID string) ([]models.Highlight, error)
}

type EmbeddingStore interface {
	ReplaceEmbeddingChunks(ctx context.Context, documentID string, chunks []models.EmbeddingChunk) error
	// ListEmbeddingChunks returns chunks ordered by chunk_index.
	ListEmbeddingChunks(ctx context.Context, documentID string) ([]models.EmbeddingChunk, error)
}

type JobStore interface {
	CreateJob(ctx context.Context, job *models.ProcessingJob) error
	GetJob(ctx context.Context, id string) (*models.ProcessingJob, error)
	UpdateJob(ctx context.Context, id string, update models.JobUpdate) error
	ListJobs(ctx context.Context, documentID string) ([]models.ProcessingJob, error)
}

// PipelineStore is everything a pipeline run writes.
type PipelineStore interface {
	DocumentStore
	SummaryStore
	HighlightStore
	EmbeddingStore
	JobStore
}

// Store adds the maintenance operations used outside the pipeline.
type Store interface {
	PipelineStore
	CreateDocument(ctx context.Context, doc *models.Document) error
	ListDocuments(ctx context.Context, skip, limit int64) ([]models.Document, error)
	// DeleteDocument removes the document and its summary, highlights, chunks and jobs.
	DeleteDocument(ctx context.Context, id string) error
	ListDocumentsByStatusBefore(ctx context.Context, status string, before time.Time) ([]models.Document, error)
	CountDocumentsByStatus(ctx context.Context) (map[string]int64, error)
}

// ObjectStorage is the remote file mirror; see storage.NoopStorage for the
// credential-less behavior.
type ObjectStorage = storage.ObjectStorage

// RunLock serializes pipeline runs per document across workers.
type RunLock interface {
	Acquire(ctx context.Context, documentID string) (token string, ok bool, err error)
	Release(ctx context.Context, documentID, token string) error
}
