package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"document-summarizer/internal/logger"
	"document-summarizer/models"
)

type DocumentOptions struct {
	UploadDir     string
	MaxFileSize   int64
	AllowedTypes  []string
	PresignExpiry time.Duration
}

// DocumentService covers the document operations outside a pipeline run.
type DocumentService struct {
	store   Store
	storage ObjectStorage
	opts    DocumentOptions
	now     func() time.Time
}

func NewDocumentService(store Store, storage ObjectStorage, opts DocumentOptions) *DocumentService {
	if opts.PresignExpiry <= 0 {
		opts.PresignExpiry = time.Hour
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = 50 << 20
	}
	if len(opts.AllowedTypes) == 0 {
		opts.AllowedTypes = []string{"application/pdf"}
	}
	if opts.UploadDir == "" {
		opts.UploadDir = "uploads"
	}
	return &DocumentService{store: store, storage: storage, opts: opts, now: time.Now}
}

// Upload describes an incoming file
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.ReadSeeker
}

// Create validates and saves an uploaded PDF and records it in status
// uploading. Unsupported type or size is ErrValidation.
func (s *DocumentService) Create(ctx context.Context, up Upload) (*models.Document, error) {
	if err := s.validateUpload(up); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	if err := os.MkdirAll(s.opts.UploadDir, 0755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	filename := id + ".pdf"
	path := filepath.Join(s.opts.UploadDir, filename)

	dst, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, fmt.Errorf("open destination: %w", err)
	}
	written, err := io.Copy(dst, io.LimitReader(up.Body, s.opts.MaxFileSize+1))
	closeErr := dst.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && written > s.opts.MaxFileSize {
		err = fmt.Errorf("file exceeds %d bytes: %w", s.opts.MaxFileSize, ErrValidation)
	}
	if err != nil {
		os.Remove(path)
		return nil, err
	}

	now := s.now().UTC()
	doc := &models.Document{
		ID:           id,
		Filename:     filename,
		OriginalName: filepath.Base(up.Filename),
		FileSize:     written,
		FilePath:     path,
		Status:       models.StatusUploading,
		UploadedAt:   now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateDocument(ctx, doc); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("create document: %w", err)
	}

	logger.FromContext(ctx).Info("Document uploaded", "document_id", id, "filename", doc.OriginalName, "size", written)
	return doc, nil
}

func (s *DocumentService) validateUpload(up Upload) error {
	if up.Body == nil {
		return fmt.Errorf("no file provided: %w", ErrValidation)
	}
	if up.Size > s.opts.MaxFileSize {
		return fmt.Errorf("file exceeds %d bytes: %w", s.opts.MaxFileSize, ErrValidation)
	}

	allowed := strings.HasSuffix(strings.ToLower(up.Filename), ".pdf")
	for _, t := range s.opts.AllowedTypes {
		if up.ContentType != "" && strings.EqualFold(strings.TrimSpace(t), up.ContentType) {
			allowed = true
		}
	}
	if !allowed {
		return fmt.Errorf("unsupported file type %q: %w", up.ContentType, ErrValidation)
	}

	header := make([]byte, 4)
	if _, err := io.ReadFull(up.Body, header); err != nil || string(header) != "%PDF" {
		return fmt.Errorf("file is not a PDF: %w", ErrValidation)
	}
	if _, err := up.Body.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind upload: %w", err)
	}
	return nil
}

// List returns documents newest first, without their text.
func (s *DocumentService) List(ctx context.Context, skip, limit int64) ([]models.Document, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if skip < 0 {
		skip = 0
	}
	return s.store.ListDocuments(ctx, skip, limit)
}

// Jobs lists the processing jobs of a document.
func (s *DocumentService) Jobs(ctx context.Context, id string) ([]models.ProcessingJob, error) {
	if _, err := s.store.GetDocument(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListJobs(ctx, id)
}

// Highlights lists the highlights of a document.
func (s *DocumentService) Highlights(ctx context.Context, id string) ([]models.Highlight, error) {
	if _, err := s.store.GetDocument(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListHighlights(ctx, id)
}

func (s *DocumentService) Get(ctx context.Context, id string) (*models.Document, error) {
	return s.store.GetDocument(ctx, id)
}

// Status reports stage, progress and the error message verbatim.
func (s *DocumentService) Status(ctx context.Context, id string) (*models.ProcessingStatusResponse, error) {
	doc, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.ProcessingStatusResponse{
		DocumentID:   doc.ID,
		Status:       doc.Status,
		Stage:        doc.ProcessingStage,
		Progress:     doc.ProcessingProgress,
		ErrorMessage: doc.ErrorMessage,
	}, nil
}

// DownloadURL returns a presigned URL, or "" when the file is not mirrored.
func (s *DocumentService) DownloadURL(ctx context.Context, id string) (string, error) {
	doc, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return "", err
	}
	if doc.S3Key == "" || s.storage == nil {
		return "", nil
	}
	return s.storage.PresignedURL(ctx, doc.S3Key, s.opts.PresignExpiry)
}

// Delete removes the local file, the mirrored object and every stored record.
// File and object removal failures are logged, not returned.
func (s *DocumentService) Delete(ctx context.Context, id string) error {
	doc, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	log := logger.FromContext(ctx).With("document_id", id)

	if doc.FilePath != "" {
		if err := os.Remove(doc.FilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn("Failed to remove local file", "path", doc.FilePath, "error", err)
		}
	}
	if doc.S3Key != "" && s.storage != nil {
		if _, err := s.storage.Delete(ctx, doc.S3Key); err != nil {
			log.Warn("Failed to remove stored object", "error", &StorageError{Op: "delete", Key: doc.S3Key, Err: err})
		}
	}

	if err := s.store.DeleteDocument(ctx, id); err != nil {
		return err
	}
	log.Info("Document deleted")
	return nil
}

// Stats counts documents per status.
func (s *DocumentService) Stats(ctx context.Context) (*models.ProcessingStats, error) {
	counts, err := s.store.CountDocumentsByStatus(ctx)
	if err != nil {
		return nil, err
	}
	return statsFromCounts(counts), nil
}

func statsFromCounts(counts map[string]int64) *models.ProcessingStats {
	stats := &models.ProcessingStats{
		Completed:  counts[models.StatusCompleted],
		Processing: counts[models.StatusProcessing],
		Error:      counts[models.StatusError],
	}
	for _, n := range counts {
		stats.Total += n
	}
	if stats.Total > 0 {
		stats.CompletionRate = float64(stats.Completed) / float64(stats.Total) * 100
	}
	return stats
}

// CleanupFailed deletes documents that have stayed in error longer than
// retention. It returns how many were removed.
func (s *DocumentService) CleanupFailed(ctx context.Context, retention time.Duration) (int, error) {
	cutoff := s.now().UTC().Add(-retention)
	docs, err := s.store.ListDocumentsByStatusBefore(ctx, models.StatusError, cutoff)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, doc := range docs {
		if err := s.Delete(ctx, doc.ID); err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			logger.FromContext(ctx).Error("Failed to clean up document", "document_id", doc.ID, "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}
