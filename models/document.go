package models

import (
	"time"
)

// Document is an uploaded PDF and its processing state
type Document struct {
	ID                 string             `bson:"_id" json:"id"`
	Filename           string             `bson:"filename" json:"filename"`
	OriginalName       string             `bson:"original_name" json:"original_name"`
	FileSize           int64              `bson:"file_size" json:"file_size"`
	FilePath           string             `bson:"file_path" json:"file_path"`
	S3Key              string             `bson:"s3_key,omitempty" json:"s3_key,omitempty"`
	Status             string             `bson:"status" json:"status"`
	ProcessingStage    string             `bson:"processing_stage,omitempty" json:"processing_stage,omitempty"`
	ProcessingProgress int                `bson:"processing_progress" json:"processing_progress"`
	ErrorMessage       *string            `bson:"error_message,omitempty" json:"error_message,omitempty"`
	PageCount          int                `bson:"page_count" json:"page_count"`
	TextContent        *string            `bson:"text_content,omitempty" json:"-"`
	Metadata           map[string]string  `bson:"metadata,omitempty" json:"metadata,omitempty"`
	EmbeddingMetadata  *EmbeddingMetadata `bson:"embedding_metadata,omitempty" json:"embedding_metadata,omitempty"`
	UploadedAt         time.Time          `bson:"uploaded_at" json:"uploaded_at"`
	ProcessedAt        *time.Time         `bson:"processed_at,omitempty" json:"processed_at,omitempty"`
	UpdatedAt          time.Time          `bson:"updated_at" json:"updated_at"`
}

// EmbeddingMetadata describes the embeddings generated for a document
type EmbeddingMetadata struct {
	Chunks              int    `bson:"chunks" json:"chunks"`
	EmbeddingsGenerated bool   `bson:"embeddings_generated" json:"embeddings_generated"`
	Model               string `bson:"model" json:"model"`
	ChunkSize           int    `bson:"chunk_size" json:"chunk_size"`
}

// Document status values
const (
	StatusUploading  = "uploading"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

// Processing stage labels, in pipeline order
const (
	StageTextExtraction       = "text_extraction"
	StageTextProcessing       = "text_processing"
	StageSummarization        = "summarization"
	StageHighlighting         = "highlighting"
	StageGeneratingEmbeddings = "generating_embeddings"
	StageCompleted            = "completed"
	StageError                = "error"
)

// DocumentUpdate is a partial update; only non-nil fields are written.
type DocumentUpdate struct {
	Status             *string
	ProcessingStage    *string
	ProcessingProgress *int
	ErrorMessage       *string
	ClearErrorMessage  bool
	PageCount          *int
	TextContent        *string
	Metadata           map[string]string
	S3Key              *string
	EmbeddingMetadata  *EmbeddingMetadata
	ProcessedAt        *time.Time
}

// IsEmpty reports whether the update carries no field at all
func (u DocumentUpdate) IsEmpty() bool {
	return u.Status == nil && u.ProcessingStage == nil && u.ProcessingProgress == nil &&
		u.ErrorMessage == nil && !u.ClearErrorMessage && u.PageCount == nil &&
		u.TextContent == nil && u.Metadata == nil && u.S3Key == nil &&
		u.EmbeddingMetadata == nil && u.ProcessedAt == nil
}

// Apply copies the present fields onto doc. Stores that load-modify-save use it.
func (u DocumentUpdate) Apply(doc *Document) {
	if u.Status != nil {
		doc.Status = *u.Status
	}
	if u.ProcessingStage != nil {
		doc.ProcessingStage = *u.ProcessingStage
	}
	if u.ProcessingProgress != nil {
		doc.ProcessingProgress = *u.ProcessingProgress
	}
	if u.ClearErrorMessage {
		doc.ErrorMessage = nil
	}
	if u.ErrorMessage != nil {
		msg := *u.ErrorMessage
		doc.ErrorMessage = &msg
	}
	if u.PageCount != nil {
		doc.PageCount = *u.PageCount
	}
	if u.TextContent != nil {
		text := *u.TextContent
		doc.TextContent = &text
	}
	if u.Metadata != nil {
		doc.Metadata = u.Metadata
	}
	if u.S3Key != nil {
		doc.S3Key = *u.S3Key
	}
	if u.EmbeddingMetadata != nil {
		meta := *u.EmbeddingMetadata
		doc.EmbeddingMetadata = &meta
	}
	if u.ProcessedAt != nil {
		at := *u.ProcessedAt
		doc.ProcessedAt = &at
	}
}

// StatusUpdate builds the update written at every stage boundary.
func StatusUpdate(status, stage string, progress int) DocumentUpdate {
	return DocumentUpdate{
		Status:             &status,
		ProcessingStage:    &stage,
		ProcessingProgress: &progress,
	}
}

// Text returns the extracted text or an empty string
func (d *Document) Text() string {
	if d.TextContent == nil {
		return ""
	}
	return *d.TextContent
}

// Title is the name shown to the summarizer
func (d *Document) Title() string {
	if d.OriginalName != "" {
		return d.OriginalName
	}
	return d.Filename
}
