package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"document-summarizer/internal/logger"
	"document-summarizer/internal/storage"
	"document-summarizer/internal/telemetry"
	"document-summarizer/models"
)

// Stage progress checkpoints
const (
	progressExtraction = 10
	progressProcessing = 40
	progressSummary    = 55
	progressHighlights = 65
	progressEmbeddings = 70
	progressCompleted  = 100
)

// Pipeline runs one document through extraction, summarization, highlighting
// and embedding, persisting status at every stage boundary.
type Pipeline struct {
	store       PipelineStore
	extractor   Extractor
	storage     ObjectStorage
	summaries   *SummaryService
	highlighter *Highlighter
	embeddings  *EmbeddingService
	lock        RunLock
	metrics     *telemetry.Metrics
	tempDir     string
	now         func() time.Time
}

type PipelineDeps struct {
	Store       PipelineStore
	Extractor   Extractor
	Storage     ObjectStorage
	Summaries   *SummaryService
	Highlighter *Highlighter
	Embeddings  *EmbeddingService
	Lock        RunLock
	Metrics     *telemetry.Metrics
	TempDir     string
}

func NewPipeline(deps PipelineDeps) *Pipeline {
	if deps.Storage == nil {
		deps.Storage = storage.NoopStorage{}
	}
	return &Pipeline{
		store:       deps.Store,
		extractor:   deps.Extractor,
		storage:     deps.Storage,
		summaries:   deps.Summaries,
		highlighter: deps.Highlighter,
		embeddings:  deps.Embeddings,
		lock:        deps.Lock,
		metrics:     deps.Metrics,
		tempDir:     deps.TempDir,
		now:         time.Now,
	}
}

type runOptions struct {
	jobID string
}

type RunOption func(*runOptions)

// WithJobID mirrors stage and progress onto a ProcessingJob.
func WithJobID(id string) RunOption {
	return func(o *runOptions) { o.jobID = id }
}

// run carries the per-invocation state between stages.
type run struct {
	doc        *models.Document
	jobID      string
	sourceRef  string
	localPath  string
	downloaded bool
	extraction *ExtractionResult
	progress   int
}

// Run processes one document. A completed document returns its outcome
// without doing any work; a failed one is processed again from scratch.
// On failure the document is left in status error and the error returned.
func (p *Pipeline) Run(ctx context.Context, documentID, sourceRef string, opts ...RunOption) (*models.ProcessingOutcome, error) {
	var o runOptions
	for _, opt := range opts {
		opt(&o)
	}

	ctx, span := otel.Tracer("pipeline").Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("document.id", documentID),
	))
	defer span.End()

	log := logger.FromContext(ctx).With("document_id", documentID)
	if o.jobID != "" {
		log = log.With("job_id", o.jobID)
	}
	ctx = logger.WithContext(ctx, log)

	if p.lock != nil {
		token, ok, err := p.lock.Acquire(ctx, documentID)
		if err != nil {
			return nil, fmt.Errorf("acquire run lock: %w", err)
		}
		if !ok {
			if doc, err := p.store.GetDocument(ctx, documentID); err == nil && doc.Status == models.StatusCompleted {
				log.Info("Document already processed")
				return outcomeFor(doc), nil
			}
			log.Info("Another worker is processing this document")
			return nil, ErrRunInProgress
		}
		defer func() {
			if err := p.lock.Release(context.WithoutCancel(ctx), documentID, token); err != nil {
				log.Warn("Failed to release run lock", "error", err)
			}
		}()
	}

	doc, err := p.store.GetDocument(ctx, documentID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("load document %s: %w", documentID, err)
	}

	if doc.Status == models.StatusCompleted {
		log.Info("Document already processed")
		span.SetAttributes(attribute.Bool("pipeline.skipped", true))
		return outcomeFor(doc), nil
	}
	if doc.Status == models.StatusError {
		log.Info("Retrying failed document", "previous_error", deref(doc.ErrorMessage))
	}

	r := &run{doc: doc, jobID: o.jobID, sourceRef: sourceRef}
	defer r.cleanup()

	stages := []struct {
		name     string
		progress int
		fn       func(context.Context, *run) error
	}{
		{models.StageTextExtraction, progressExtraction, p.extract},
		{models.StageTextProcessing, progressProcessing, p.mirrorToStorage},
		{models.StageSummarization, progressSummary, p.summarize},
		{models.StageHighlighting, progressHighlights, p.highlight},
		{models.StageGeneratingEmbeddings, progressEmbeddings, p.embed},
	}

	for _, stage := range stages {
		if err := p.runStage(ctx, r, stage.name, stage.progress, stage.fn); err != nil {
			p.fail(ctx, r, stage.name, err)
			span.RecordError(err)
			return nil, err
		}
	}

	if err := p.complete(ctx, r); err != nil {
		p.fail(ctx, r, models.StageCompleted, err)
		span.RecordError(err)
		return nil, err
	}

	p.metrics.RecordDocument(ctx, models.StatusCompleted)
	log.Info("Document processing completed", "pages", r.extraction.PageCount, "words", r.extraction.WordCount)

	return &models.ProcessingOutcome{
		Status:     models.StatusCompleted,
		DocumentID: documentID,
		TextLength: r.extraction.CharacterCount,
		PageCount:  r.extraction.PageCount,
		WordCount:  r.extraction.WordCount,
	}, nil
}

// runStage writes the checkpoint before doing the stage's work.
func (p *Pipeline) runStage(ctx context.Context, r *run, stage string, progress int, fn func(context.Context, *run) error) error {
	ctx, span := otel.Tracer("pipeline").Start(ctx, "pipeline."+stage)
	defer span.End()

	update := models.StatusUpdate(models.StatusProcessing, stage, progress)
	if stage == models.StageTextExtraction {
		update.ClearErrorMessage = true
	}
	if stage == models.StageTextProcessing && r.extraction != nil {
		// Extraction output lands together with the post-extraction checkpoint
		text := r.extraction.Text
		pages := r.extraction.PageCount
		update.TextContent = &text
		update.PageCount = &pages
		update.Metadata = r.extraction.Metadata
	}
	if err := p.checkpoint(ctx, r, update, stage, progress); err != nil {
		return err
	}

	logger.FromContext(ctx).Info("Stage started", "stage", stage, "progress", progress)
	start := time.Now()
	err := fn(ctx, r)
	p.metrics.RecordStage(ctx, stage, time.Since(start).Seconds(), err == nil)
	if err != nil {
		span.RecordError(err)
	}
	return err
}

func (p *Pipeline) checkpoint(ctx context.Context, r *run, update models.DocumentUpdate, stage string, progress int) error {
	if progress < r.progress {
		return fmt.Errorf("progress regression from %d to %d at %s", r.progress, progress, stage)
	}
	if err := p.store.UpdateDocument(ctx, r.doc.ID, update); err != nil {
		return fmt.Errorf("checkpoint %s: %w", stage, err)
	}
	r.progress = progress
	update.Apply(r.doc)
	p.updateJob(ctx, r, models.JobUpdate{Stage: &stage, Progress: &progress})
	return nil
}

func (p *Pipeline) extract(ctx context.Context, r *run) error {
	path, err := p.resolveSource(ctx, r)
	if err != nil {
		return err
	}
	r.localPath = path

	result, err := p.extractor.Extract(ctx, path)
	if err != nil {
		var extractionErr *ExtractionError
		if errors.As(err, &extractionErr) {
			return err
		}
		return &ExtractionError{Path: path, Err: err}
	}
	r.extraction = result
	return nil
}

// resolveSource finds a readable local copy of the PDF, downloading it from
// object storage when the local file is gone.
func (p *Pipeline) resolveSource(ctx context.Context, r *run) (string, error) {
	ref := r.sourceRef
	if ref == "" {
		ref = r.doc.FilePath
	}

	key := r.doc.S3Key
	if strings.HasPrefix(ref, "s3://") {
		key = s3KeyFromRef(ref)
	} else if ref != "" {
		if _, err := os.Stat(ref); err == nil {
			return ref, nil
		}
	}

	if !p.storage.Enabled() {
		return "", &ExtractionError{Path: ref, Err: os.ErrNotExist}
	}
	if key == "" {
		key = DocumentKey(r.doc.ID)
	}

	if p.tempDir != "" {
		if err := os.MkdirAll(p.tempDir, 0700); err != nil {
			return "", &ExtractionError{Path: key, Err: err}
		}
	}
	f, err := os.CreateTemp(p.tempDir, "document-*.pdf")
	if err != nil {
		return "", &ExtractionError{Path: key, Err: err}
	}
	tmp := f.Name()
	f.Close()

	ok, err := p.storage.Download(ctx, key, tmp)
	if err != nil || !ok {
		os.Remove(tmp)
		if err == nil {
			err = os.ErrNotExist
		}
		return "", &ExtractionError{Path: key, Err: &StorageError{Op: "download", Key: key, Err: err}}
	}

	r.downloaded = true
	logger.FromContext(ctx).Info("Downloaded source from object storage", "key", key)
	return tmp, nil
}

// mirrorToStorage uploads the local file. Failures are logged and skipped.
func (p *Pipeline) mirrorToStorage(ctx context.Context, r *run) error {
	if r.downloaded || !p.storage.Enabled() {
		return nil
	}

	key := DocumentKey(r.doc.ID)
	ok, err := p.storage.Upload(ctx, r.localPath, key, "application/pdf")
	if err != nil || !ok {
		logger.FromContext(ctx).Warn("Object storage upload skipped",
			"error", &StorageError{Op: "upload", Key: key, Err: err})
		return nil
	}

	if err := p.store.UpdateDocument(ctx, r.doc.ID, models.DocumentUpdate{S3Key: &key}); err != nil {
		logger.FromContext(ctx).Warn("Failed to record storage key", "key", key, "error", err)
		return nil
	}
	r.doc.S3Key = key
	return nil
}

func (p *Pipeline) summarize(ctx context.Context, r *run) error {
	summary, created, err := p.summaries.Generate(ctx, r.doc)
	if err != nil {
		var summaryErr *SummarizationError
		if errors.As(err, &summaryErr) {
			return err
		}
		return &SummarizationError{Step: "generate", Err: err}
	}
	logger.FromContext(ctx).Info("Summary ready", "summary_id", summary.ID, "created", created, "key_points", len(summary.KeyPoints))
	return nil
}

// highlight is best effort; any failure is logged and the run continues.
func (p *Pipeline) highlight(ctx context.Context, r *run) error {
	if p.highlighter == nil {
		return nil
	}
	log := logger.FromContext(ctx)

	summary, err := p.store.GetSummaryByDocumentID(ctx, r.doc.ID)
	if err != nil {
		log.Warn("Highlights skipped, summary unavailable", "error", err)
		return nil
	}

	candidates, err := p.highlighter.ExtractHighlights(ctx, r.extraction.Text, summary.Content)
	if err != nil {
		log.Warn("Highlight extraction failed", "error", err)
		return nil
	}

	highlights := PlaceHighlights(r.doc.ID, candidates, r.extraction.PageTexts)
	now := p.now().UTC()
	for i := range highlights {
		highlights[i].ID = uuid.NewString()
		highlights[i].CreatedAt = now
	}
	if err := p.store.ReplaceHighlights(ctx, r.doc.ID, highlights); err != nil {
		log.Warn("Failed to store highlights", "error", err)
		return nil
	}
	log.Info("Highlights stored", "count", len(highlights))
	return nil
}

// embed stores embedding chunks. Failures are logged and recorded in the
// document's embedding metadata.
func (p *Pipeline) embed(ctx context.Context, r *run) error {
	if p.embeddings == nil {
		return nil
	}
	log := logger.FromContext(ctx)

	meta, err := p.embeddings.Index(ctx, p.store, r.doc.ID, r.extraction.Text, r.extraction.PageTexts)
	if err != nil {
		log.Warn("Embedding generation failed", "error", err)
	} else {
		log.Info("Embeddings stored", "chunks", meta.Chunks)
	}

	if err := p.store.UpdateDocument(ctx, r.doc.ID, models.DocumentUpdate{EmbeddingMetadata: meta}); err != nil {
		log.Warn("Failed to record embedding metadata", "error", err)
	}
	return nil
}

func (p *Pipeline) complete(ctx context.Context, r *run) error {
	update := models.StatusUpdate(models.StatusCompleted, models.StageCompleted, progressCompleted)
	now := p.now().UTC()
	update.ProcessedAt = &now
	return p.checkpoint(ctx, r, update, models.StageCompleted, progressCompleted)
}

// fail moves the document to error. The original error is what the caller sees.
func (p *Pipeline) fail(ctx context.Context, r *run, stage string, cause error) {
	log := logger.FromContext(ctx)
	log.Error("Document processing failed", "stage", stage, "error", cause)

	msg := cause.Error()
	update := models.StatusUpdate(models.StatusError, models.StageError, 0)
	update.ErrorMessage = &msg

	// The caller's context may be the reason we failed
	writeCtx := context.WithoutCancel(ctx)
	if err := p.store.UpdateDocument(writeCtx, r.doc.ID, update); err != nil {
		log.Error("Failed to record processing error", "error", err)
	}
	stageLabel := models.StageError
	p.updateJob(writeCtx, r, models.JobUpdate{Stage: &stageLabel, ErrorMessage: &msg})
	p.metrics.RecordDocument(ctx, models.StatusError)
}

func (p *Pipeline) updateJob(ctx context.Context, r *run, update models.JobUpdate) {
	if r.jobID == "" {
		return
	}
	if err := p.store.UpdateJob(ctx, r.jobID, update); err != nil {
		logger.FromContext(ctx).Warn("Failed to update job", "error", err)
	}
}

func (r *run) cleanup() {
	if r.downloaded && r.localPath != "" {
		os.Remove(r.localPath)
	}
}

func outcomeFor(doc *models.Document) *models.ProcessingOutcome {
	text := doc.Text()
	return &models.ProcessingOutcome{
		Status:     doc.Status,
		DocumentID: doc.ID,
		TextLength: len([]rune(text)),
		PageCount:  doc.PageCount,
		WordCount:  len(strings.Fields(text)),
	}
}

// DocumentKey is the object storage key of a document's PDF.
func DocumentKey(documentID string) string {
	return "documents/" + documentID + ".pdf"
}

// s3KeyFromRef turns s3://bucket/some/key into some/key.
func s3KeyFromRef(ref string) string {
	rest := strings.TrimPrefix(ref, "s3://")
	if i := strings.Index(rest, "/"); i >= 0 {
		return rest[i+1:]
	}
	return filepath.Base(rest)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
