package models

import "time"

// Summary is the AI summary of a document. A document has at most one.
type Summary struct {
	ID             string    `bson:"_id" json:"id"`
	DocumentID     string    `bson:"document_id" json:"document_id"`
	Content        string    `bson:"content" json:"content"`
	KeyPoints      []string  `bson:"key_points" json:"key_points"`
	ProcessingTime float64   `bson:"processing_time" json:"processing_time"` // seconds
	ModelUsed      string    `bson:"model_used" json:"model_used"`
	Method         string    `bson:"method,omitempty" json:"method,omitempty"`
	CreatedAt      time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time `bson:"updated_at" json:"updated_at"`
}

// Highlight types
const (
	HighlightKeyPoint   = "key-point"
	HighlightImportant  = "important"
	HighlightDefinition = "definition"
)

// Highlight is a classified passage of a document
type Highlight struct {
	ID            string    `bson:"_id" json:"id"`
	DocumentID    string    `bson:"document_id" json:"document_id"`
	PageNumber    int       `bson:"page_number" json:"page_number"`
	X             float64   `bson:"x" json:"x"`
	Y             float64   `bson:"y" json:"y"`
	Width         float64   `bson:"width" json:"width"`
	Height        float64   `bson:"height" json:"height"`
	Text          string    `bson:"text" json:"text"`
	HighlightType string    `bson:"highlight_type" json:"highlight_type"`
	Confidence    float64   `bson:"confidence" json:"confidence"`
	CreatedAt     time.Time `bson:"created_at" json:"created_at"`
}

// EmbeddingChunk is one embedded slice of document text. Adjacent chunks overlap.
type EmbeddingChunk struct {
	ID         string    `bson:"_id" json:"id"`
	DocumentID string    `bson:"document_id" json:"document_id"`
	ChunkText  string    `bson:"chunk_text" json:"chunk_text"`
	ChunkIndex int       `bson:"chunk_index" json:"chunk_index"`
	PageNumber *int      `bson:"page_number,omitempty" json:"page_number,omitempty"`
	StartWord  int       `bson:"start_word" json:"start_word"`
	EndWord    int       `bson:"end_word" json:"end_word"`
	WordCount  int       `bson:"word_count" json:"word_count"`
	TokenCount int       `bson:"token_count" json:"token_count"`
	Embedding  []float32 `bson:"embedding" json:"-"`
	CreatedAt  time.Time `bson:"created_at" json:"created_at"`
}
