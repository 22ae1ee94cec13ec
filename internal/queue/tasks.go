package queue

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"document-summarizer/models"
)

const (
	TaskProcessDocument    = "document:process"
	TaskGenerateSummary    = "document:summarize"
	TaskGenerateEmbeddings = "document:embed"
)

// Queue names, weighted by the worker
const (
	QueueDocumentProcessing = "document_processing"
	QueueAIProcessing       = "ai_processing"
)

// DocumentPayload is the payload of every document task
type DocumentPayload struct {
	DocumentID string `json:"document_id"`
	FilePath   string `json:"file_path,omitempty"`
	JobID      string `json:"job_id"`
}

// TaskOptions holds the retry budget and timeout applied to new tasks
type TaskOptions struct {
	MaxRetry int
	Timeout  time.Duration
}

// DefaultTaskOptions matches the worker defaults
var DefaultTaskOptions = TaskOptions{MaxRetry: models.DefaultMaxRetries, Timeout: 10 * time.Minute}

// taskRoute ties a task type to its queue and job type
type taskRoute struct {
	queue   string
	jobType string
}

var taskRoutes = map[string]taskRoute{
	TaskProcessDocument:    {queue: QueueDocumentProcessing, jobType: models.JobTypeTextExtraction},
	TaskGenerateSummary:    {queue: QueueAIProcessing, jobType: models.JobTypeSummarization},
	TaskGenerateEmbeddings: {queue: QueueAIProcessing, jobType: models.JobTypeEmbedding},
}

// Task creators
func NewProcessDocumentTask(payload DocumentPayload, opts TaskOptions) (*asynq.Task, error) {
	return newDocumentTask(TaskProcessDocument, payload, opts)
}

func NewGenerateSummaryTask(payload DocumentPayload, opts TaskOptions) (*asynq.Task, error) {
	return newDocumentTask(TaskGenerateSummary, payload, opts)
}

func NewGenerateEmbeddingsTask(payload DocumentPayload, opts TaskOptions) (*asynq.Task, error) {
	return newDocumentTask(TaskGenerateEmbeddings, payload, opts)
}

func newDocumentTask(taskType string, payload DocumentPayload, opts TaskOptions) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	if opts.MaxRetry <= 0 {
		opts.MaxRetry = DefaultTaskOptions.MaxRetry
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTaskOptions.Timeout
	}

	taskOpts := []asynq.Option{
		asynq.MaxRetry(opts.MaxRetry),
		asynq.Timeout(opts.Timeout),
		asynq.Queue(taskRoutes[taskType].queue),
	}
	// The job ID doubles as the task ID so a job is never enqueued twice
	if payload.JobID != "" {
		taskOpts = append(taskOpts, asynq.TaskID(payload.JobID))
	}

	return asynq.NewTask(taskType, data, taskOpts...), nil
}

// QueueWeights is the asynq Queues config for the worker
func QueueWeights() map[string]int {
	return map[string]int{
		QueueDocumentProcessing: 6,
		QueueAIProcessing:       4,
	}
}
