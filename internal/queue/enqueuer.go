package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"document-summarizer/internal/logger"
	"document-summarizer/models"
)

type taskClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// JobStore persists ProcessingJob rows
type JobStore interface {
	CreateJob(ctx context.Context, job *models.ProcessingJob) error
	UpdateJob(ctx context.Context, id string, update models.JobUpdate) error
}

// Enqueuer records a pending ProcessingJob and hands the task to asynq
type Enqueuer struct {
	client taskClient
	jobs   JobStore
	opts   TaskOptions
	now    func() time.Time
}

func NewEnqueuer(client taskClient, jobs JobStore, opts TaskOptions) *Enqueuer {
	return &Enqueuer{client: client, jobs: jobs, opts: opts, now: time.Now}
}

// EnqueueProcessDocument schedules a full pipeline run
func (e *Enqueuer) EnqueueProcessDocument(ctx context.Context, documentID, filePath string) (*models.ProcessingJob, error) {
	return e.enqueue(ctx, TaskProcessDocument, DocumentPayload{DocumentID: documentID, FilePath: filePath})
}

// EnqueueGenerateSummary schedules summary generation for a document with text
func (e *Enqueuer) EnqueueGenerateSummary(ctx context.Context, documentID string) (*models.ProcessingJob, error) {
	return e.enqueue(ctx, TaskGenerateSummary, DocumentPayload{DocumentID: documentID})
}

// EnqueueGenerateEmbeddings schedules embedding generation for a document with text
func (e *Enqueuer) EnqueueGenerateEmbeddings(ctx context.Context, documentID string) (*models.ProcessingJob, error) {
	return e.enqueue(ctx, TaskGenerateEmbeddings, DocumentPayload{DocumentID: documentID})
}

func (e *Enqueuer) enqueue(ctx context.Context, taskType string, payload DocumentPayload) (*models.ProcessingJob, error) {
	route := taskRoutes[taskType]
	now := e.now().UTC()
	maxRetry := e.opts.MaxRetry
	if maxRetry <= 0 {
		maxRetry = DefaultTaskOptions.MaxRetry
	}

	job := &models.ProcessingJob{
		ID:         uuid.NewString(),
		DocumentID: payload.DocumentID,
		JobType:    route.jobType,
		Status:     models.JobPending,
		Queue:      route.queue,
		MaxRetries: maxRetry,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	payload.JobID = job.ID
	job.TaskID = job.ID

	task, err := newDocumentTask(taskType, payload, e.opts)
	if err != nil {
		return nil, fmt.Errorf("build %s task: %w", taskType, err)
	}

	if err := e.jobs.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	info, err := e.client.EnqueueContext(ctx, task)
	if err != nil {
		failed := models.JobFailed
		msg := err.Error()
		if uerr := e.jobs.UpdateJob(context.WithoutCancel(ctx), job.ID, models.JobUpdate{Status: &failed, ErrorMessage: &msg}); uerr != nil {
			logger.FromContext(ctx).Error("Failed to mark job failed", "job_id", job.ID, "error", uerr)
		}
		return nil, fmt.Errorf("enqueue %s: %w", taskType, err)
	}

	logger.FromContext(ctx).Info("Task enqueued",
		"task_type", taskType,
		"task_id", info.ID,
		"queue", info.Queue,
		"document_id", payload.DocumentID,
	)
	return job, nil
}
