package models

import "time"

// Job types
const (
	JobTypeTextExtraction = "text_extraction"
	JobTypeSummarization  = "summarization"
	JobTypeEmbedding      = "embedding"
)

// Job status values
const (
	JobPending   = "pending"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// DefaultMaxRetries is the retry budget of a job
const DefaultMaxRetries = 3

// ProcessingJob tracks one queued execution of a document task
type ProcessingJob struct {
	ID           string     `bson:"_id" json:"id"`
	DocumentID   string     `bson:"document_id" json:"document_id"`
	JobType      string     `bson:"job_type" json:"job_type"`
	Status       string     `bson:"status" json:"status"`
	Progress     int        `bson:"progress" json:"progress"`
	Stage        string     `bson:"stage,omitempty" json:"stage,omitempty"`
	Message      string     `bson:"message,omitempty" json:"message,omitempty"`
	TaskID       string     `bson:"task_id,omitempty" json:"task_id,omitempty"`
	Queue        string     `bson:"queue,omitempty" json:"queue,omitempty"`
	ErrorMessage string     `bson:"error_message,omitempty" json:"error_message,omitempty"`
	RetryCount   int        `bson:"retry_count" json:"retry_count"`
	MaxRetries   int        `bson:"max_retries" json:"max_retries"`
	CreatedAt    time.Time  `bson:"created_at" json:"created_at"`
	StartedAt    *time.Time `bson:"started_at,omitempty" json:"started_at,omitempty"`
	CompletedAt  *time.Time `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
	UpdatedAt    time.Time  `bson:"updated_at" json:"updated_at"`
}

// JobUpdate is a partial update of a ProcessingJob
type JobUpdate struct {
	Status       *string
	Progress     *int
	Stage        *string
	Message      *string
	ErrorMessage *string
	RetryCount   *int
	MaxRetries   *int
	StartedAt    *time.Time
	CompletedAt  *time.Time
}

// Terminal reports whether the job reached a final state
func (j *ProcessingJob) Terminal() bool {
	return j.Status == JobCompleted || j.Status == JobFailed
}
