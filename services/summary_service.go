package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"document-summarizer/internal/logger"
	"document-summarizer/models"
)

// SummaryService creates the single summary of a document.
type SummaryService struct {
	store      PipelineStore
	summarizer *Summarizer
	now        func() time.Time
}

func NewSummaryService(store PipelineStore, summarizer *Summarizer) *SummaryService {
	return &SummaryService{store: store, summarizer: summarizer, now: time.Now}
}

// Generate returns the stored summary if there is one; otherwise it
// summarizes the document text and stores the result. created is false when
// an existing summary was returned.
func (s *SummaryService) Generate(ctx context.Context, doc *models.Document) (summary *models.Summary, created bool, err error) {
	existing, err := s.store.GetSummaryByDocumentID(ctx, doc.ID)
	if err == nil {
		logger.FromContext(ctx).Info("Summary already exists", "document_id", doc.ID, "summary_id", existing.ID)
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, fmt.Errorf("load summary: %w", err)
	}

	text := doc.Text()
	if text == "" {
		return nil, false, ErrNoText
	}

	result, err := s.summarizer.Summarize(ctx, text, doc.Title(), 0)
	if err != nil {
		return nil, false, err
	}

	now := s.now().UTC()
	id := uuid.NewString()
	stored, err := s.store.CreateSummary(ctx, &models.Summary{
		ID:             id,
		DocumentID:     doc.ID,
		Content:        result.Summary,
		KeyPoints:      result.KeyPoints,
		ProcessingTime: result.ProcessingTime.Seconds(),
		ModelUsed:      result.Model,
		Method:         result.Method,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		return nil, false, fmt.Errorf("store summary: %w", err)
	}
	// A concurrent run may have won the insert
	return stored, stored.ID == id, nil
}

// Get returns the summary of a document or ErrNotFound.
func (s *SummaryService) Get(ctx context.Context, documentID string) (*models.Summary, error) {
	return s.store.GetSummaryByDocumentID(ctx, documentID)
}

// GenerateByID loads the document and generates its summary. The document
// must already have extracted text.
func (s *SummaryService) GenerateByID(ctx context.Context, documentID string) (*models.Summary, bool, error) {
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, false, err
	}
	return s.Generate(ctx, doc)
}
