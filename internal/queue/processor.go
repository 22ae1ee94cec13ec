package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"document-summarizer/internal/logger"
	"document-summarizer/models"
	"document-summarizer/services"
)

// LockRetryDelay spaces out deliveries that find the document locked by
// another worker. The lock outlives a crashed worker by at most its TTL.
const LockRetryDelay = 30 * time.Second

// IsFailure reports whether err counts against the task's retry budget.
// A held run lock does not, so the task keeps retrying until the lock is
// released or expires.
func IsFailure(err error) bool {
	return err != nil && !errors.Is(err, services.ErrRunInProgress)
}

// RetryDelay waits LockRetryDelay for a held run lock and backs off as
// asynq does by default otherwise.
func RetryDelay(n int, err error, t *asynq.Task) time.Duration {
	if errors.Is(err, services.ErrRunInProgress) {
		return LockRetryDelay
	}
	return asynq.DefaultRetryDelayFunc(n, err, t)
}

// Runner is the pipeline entry point
type Runner interface {
	Run(ctx context.Context, documentID, sourceRef string, opts ...services.RunOption) (*models.ProcessingOutcome, error)
}

type summaryGenerator interface {
	GenerateByID(ctx context.Context, documentID string) (*models.Summary, bool, error)
}

type documentIndexer interface {
	IndexDocument(ctx context.Context, documentID string) (*models.EmbeddingMetadata, error)
}

// TaskProcessor handles the document tasks and keeps their job rows current
type TaskProcessor struct {
	pipeline  Runner
	summaries summaryGenerator
	search    documentIndexer
	jobs      JobStore
	now       func() time.Time
}

func NewTaskProcessor(pipeline Runner, summaries summaryGenerator, search documentIndexer, jobs JobStore) *TaskProcessor {
	return &TaskProcessor{
		pipeline:  pipeline,
		summaries: summaries,
		search:    search,
		jobs:      jobs,
		now:       time.Now,
	}
}

// Register adds every handler to mux
func (p *TaskProcessor) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskProcessDocument, p.ProcessDocument)
	mux.HandleFunc(TaskGenerateSummary, p.GenerateSummary)
	mux.HandleFunc(TaskGenerateEmbeddings, p.GenerateEmbeddings)
}

func (p *TaskProcessor) ProcessDocument(ctx context.Context, t *asynq.Task) error {
	return p.handle(ctx, t, func(ctx context.Context, payload DocumentPayload) (string, error) {
		outcome, err := p.pipeline.Run(ctx, payload.DocumentID, payload.FilePath, services.WithJobID(payload.JobID))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("processed %d pages, %d words", outcome.PageCount, outcome.WordCount), nil
	})
}

func (p *TaskProcessor) GenerateSummary(ctx context.Context, t *asynq.Task) error {
	return p.handle(ctx, t, func(ctx context.Context, payload DocumentPayload) (string, error) {
		summary, created, err := p.summaries.GenerateByID(ctx, payload.DocumentID)
		if err != nil {
			return "", err
		}
		if !created {
			return "summary already exists: " + summary.ID, nil
		}
		return "summary generated: " + summary.ID, nil
	})
}

func (p *TaskProcessor) GenerateEmbeddings(ctx context.Context, t *asynq.Task) error {
	return p.handle(ctx, t, func(ctx context.Context, payload DocumentPayload) (string, error) {
		meta, err := p.search.IndexDocument(ctx, payload.DocumentID)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("embedded %d chunks with %s", meta.Chunks, meta.Model), nil
	})
}

func (p *TaskProcessor) handle(ctx context.Context, t *asynq.Task, work func(context.Context, DocumentPayload) (string, error)) error {
	var payload DocumentPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}
	if payload.DocumentID == "" {
		return fmt.Errorf("missing document_id: %w", asynq.SkipRetry)
	}

	log := logger.FromContext(ctx).With("task_type", t.Type(), "document_id", payload.DocumentID)
	if id, ok := asynq.GetTaskID(ctx); ok {
		log = log.With("task_id", id)
	}
	ctx = logger.WithContext(ctx, log)

	retry, _ := asynq.GetRetryCount(ctx)
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	if !ok {
		maxRetry = models.DefaultMaxRetries
	}

	started := p.now().UTC()
	running := models.JobRunning
	p.updateJob(ctx, payload.JobID, models.JobUpdate{
		Status:     &running,
		StartedAt:  &started,
		RetryCount: &retry,
		MaxRetries: &maxRetry,
	})

	log.Info("Task started", "retry", retry, "max_retry", maxRetry)
	message, err := work(ctx, payload)
	if err != nil {
		return p.failed(ctx, payload.JobID, err, retry >= maxRetry)
	}

	completed := models.JobCompleted
	progress := 100
	finished := p.now().UTC()
	p.updateJob(ctx, payload.JobID, models.JobUpdate{
		Status:      &completed,
		Progress:    &progress,
		Message:     &message,
		CompletedAt: &finished,
	})
	log.Info("Task completed", "message", message, "duration", finished.Sub(started).String())
	return nil
}

func (p *TaskProcessor) failed(ctx context.Context, jobID string, err error, exhausted bool) error {
	log := logger.FromContext(ctx)
	msg := err.Error()
	if errors.Is(err, services.ErrNotFound) {
		p.finishFailed(ctx, jobID, msg)
		log.Error("Task target missing", "error", err)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	if exhausted {
		p.finishFailed(ctx, jobID, msg)
		log.Error("Task failed, retries exhausted", "error", err)
		return err
	}

	pending := models.JobPending
	p.updateJob(ctx, jobID, models.JobUpdate{Status: &pending, ErrorMessage: &msg})
	if errors.Is(err, services.ErrRunInProgress) {
		log.Info("Document locked by another worker, will retry", "delay", LockRetryDelay.String())
		return err
	}
	log.Warn("Task failed, will retry", "error", err)
	return err
}

func (p *TaskProcessor) finishFailed(ctx context.Context, jobID, msg string) {
	failed := models.JobFailed
	at := p.now().UTC()
	p.updateJob(ctx, jobID, models.JobUpdate{Status: &failed, ErrorMessage: &msg, CompletedAt: &at})
}

func (p *TaskProcessor) updateJob(ctx context.Context, jobID string, update models.JobUpdate) {
	if jobID == "" || p.jobs == nil {
		return
	}
	if err := p.jobs.UpdateJob(context.WithoutCancel(ctx), jobID, update); err != nil {
		logger.FromContext(ctx).Warn("Failed to update job", "job_id", jobID, "error", err)
	}
}
