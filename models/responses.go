package models

// ProcessingOutcome is returned by a successful pipeline run
type ProcessingOutcome struct {
	Status     string `json:"status"`
	DocumentID string `json:"document_id"`
	TextLength int    `json:"text_length"`
	PageCount  int    `json:"page_count"`
	WordCount  int    `json:"word_count"`
}

// ProcessingStatusResponse is the status view exposed by the API
type ProcessingStatusResponse struct {
	DocumentID   string  `json:"document_id"`
	Status       string  `json:"status"`
	Stage        string  `json:"stage,omitempty"`
	Progress     int     `json:"progress"`
	ErrorMessage *string `json:"error_message,omitempty"`
}

// SearchResult is a ranked embedding chunk
type SearchResult struct {
	ChunkIndex      int     `json:"chunk_index"`
	Text            string  `json:"text"`
	PageNumber      *int    `json:"page_number,omitempty"`
	SimilarityScore float64 `json:"similarity_score"`
}

// TextMatch is a literal match inside a document
type TextMatch struct {
	Position       int     `json:"position"`
	Context        string  `json:"context"`
	RelevanceScore float64 `json:"relevance_score"`
}

// ProcessingStats counts documents per status
type ProcessingStats struct {
	Total          int64   `json:"total"`
	Completed      int64   `json:"completed"`
	Processing     int64   `json:"processing"`
	Error          int64   `json:"error"`
	CompletionRate float64 `json:"completion_rate"`
}
