package services

import (
	"errors"
	"fmt"

	"document-summarizer/models"
)

var (
	// ErrNotFound is returned when a referenced document or summary is missing.
	ErrNotFound = models.ErrNotFound
	// ErrValidation is returned for unsupported input such as file type or size.
	ErrValidation = errors.New("validation failed")
	// ErrNoText is returned when an operation needs extracted text that is not there yet.
	ErrNoText = errors.New("document has no extracted text")
	// ErrRunInProgress is returned when another worker holds the document's run lock.
	ErrRunInProgress = errors.New("pipeline run already in progress")
)

// ExtractionError means the source file could not be read or parsed.
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("text extraction failed for %s: %v", e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// SummarizationError wraps any LLM failure during summary or key-point generation.
type SummarizationError struct {
	Step string
	Err  error
}

func (e *SummarizationError) Error() string {
	return fmt.Sprintf("summarization failed (%s): %v", e.Step, e.Err)
}

func (e *SummarizationError) Unwrap() error { return e.Err }

// EmbeddingError wraps embedding model or persistence failures.
type EmbeddingError struct {
	Err error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding generation failed: %v", e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// StorageError wraps object storage failures. Never fatal to a pipeline run.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("object storage %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
