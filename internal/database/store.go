package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"document-summarizer/internal/config"
	"document-summarizer/models"
)

// Store persists documents and everything derived from them in MongoDB.
type Store struct {
	documents  *mongo.Collection
	summaries  *mongo.Collection
	highlights *mongo.Collection
	chunks     *mongo.Collection
	jobs       *mongo.Collection
	now        func() time.Time
}

func NewStore(db *mongo.Database) *Store {
	return &Store{
		documents:  db.Collection(config.DocumentsCollection),
		summaries:  db.Collection(config.SummariesCollection),
		highlights: db.Collection(config.HighlightsCollection),
		chunks:     db.Collection(config.EmbeddingChunksCollection),
		jobs:       db.Collection(config.ProcessingJobsCollection),
		now:        time.Now,
	}
}

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.ErrNotFound
	}
	return err
}

// Documents

func (s *Store) CreateDocument(ctx context.Context, doc *models.Document) error {
	now := s.now().UTC()
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = now
	}
	doc.UpdatedAt = now
	_, err := s.documents.InsertOne(ctx, doc)
	return err
}

func (s *Store) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document
	if err := s.documents.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, notFound(err)
	}
	return &doc, nil
}

// ListDocuments returns documents newest first, without their text.
func (s *Store) ListDocuments(ctx context.Context, skip, limit int64) ([]models.Document, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "uploaded_at", Value: -1}}).
		SetSkip(skip).
		SetLimit(limit).
		SetProjection(bson.M{"text_content": 0})

	cursor, err := s.documents.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	docs := []models.Document{}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// UpdateDocument writes only the fields present in update (last write wins).
func (s *Store) UpdateDocument(ctx context.Context, id string, update models.DocumentUpdate) error {
	if update.IsEmpty() {
		return nil
	}
	res, err := s.documents.UpdateByID(ctx, id, documentUpdateDoc(update, s.now().UTC()))
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

func documentUpdateDoc(u models.DocumentUpdate, now time.Time) bson.M {
	set := bson.M{"updated_at": now}
	if u.Status != nil {
		set["status"] = *u.Status
	}
	if u.ProcessingStage != nil {
		set["processing_stage"] = *u.ProcessingStage
	}
	if u.ProcessingProgress != nil {
		set["processing_progress"] = *u.ProcessingProgress
	}
	if u.ErrorMessage != nil {
		set["error_message"] = *u.ErrorMessage
	}
	if u.PageCount != nil {
		set["page_count"] = *u.PageCount
	}
	if u.TextContent != nil {
		set["text_content"] = *u.TextContent
	}
	if u.Metadata != nil {
		set["metadata"] = u.Metadata
	}
	if u.S3Key != nil {
		set["s3_key"] = *u.S3Key
	}
	if u.EmbeddingMetadata != nil {
		set["embedding_metadata"] = u.EmbeddingMetadata
	}
	if u.ProcessedAt != nil {
		set["processed_at"] = *u.ProcessedAt
	}

	doc := bson.M{"$set": set}
	if u.ClearErrorMessage && u.ErrorMessage == nil {
		doc["$unset"] = bson.M{"error_message": ""}
	}
	return doc
}

// DeleteDocument removes dependents first so a partial failure never leaves orphans.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	filter := bson.M{"document_id": id}
	for _, col := range []*mongo.Collection{s.summaries, s.highlights, s.chunks, s.jobs} {
		if _, err := col.DeleteMany(ctx, filter); err != nil {
			return fmt.Errorf("delete %s: %w", col.Name(), err)
		}
	}

	res, err := s.documents.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (s *Store) ListDocumentsByStatusBefore(ctx context.Context, status string, before time.Time) ([]models.Document, error) {
	cursor, err := s.documents.Find(ctx, bson.M{
		"status":     status,
		"updated_at": bson.M{"$lt": before},
	}, options.Find().SetProjection(bson.M{"text_content": 0}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	docs := []models.Document{}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (s *Store) CountDocumentsByStatus(ctx context.Context) (map[string]int64, error) {
	cursor, err := s.documents.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Status string `bson:"_id"`
		Count  int64  `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// Summaries

func (s *Store) GetSummaryByDocumentID(ctx context.Context, documentID string) (*models.Summary, error) {
	var summary models.Summary
	if err := s.summaries.FindOne(ctx, bson.M{"document_id": documentID}).Decode(&summary); err != nil {
		return nil, notFound(err)
	}
	return &summary, nil
}

// CreateSummary relies on the unique document_id index: a losing insert
// returns the winner.
func (s *Store) CreateSummary(ctx context.Context, summary *models.Summary) (*models.Summary, error) {
	_, err := s.summaries.InsertOne(ctx, summary)
	if err == nil {
		return summary, nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return s.GetSummaryByDocumentID(ctx, summary.DocumentID)
	}
	return nil, err
}

// Highlights

func (s *Store) ReplaceHighlights(ctx context.Context, documentID string, highlights []models.Highlight) error {
	if _, err := s.highlights.DeleteMany(ctx, bson.M{"document_id": documentID}); err != nil {
		return err
	}
	if len(highlights) == 0 {
		return nil
	}

	docs := make([]interface{}, len(highlights))
	for i := range highlights {
		docs[i] = highlights[i]
	}
	_, err := s.highlights.InsertMany(ctx, docs)
	return err
}

func (s *Store) ListHighlights(ctx context.Context, documentID string) ([]models.Highlight, error) {
	cursor, err := s.highlights.Find(ctx, bson.M{"document_id": documentID},
		options.Find().SetSort(bson.D{{Key: "page_number", Value: 1}, {Key: "confidence", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	highlights := []models.Highlight{}
	if err := cursor.All(ctx, &highlights); err != nil {
		return nil, err
	}
	return highlights, nil
}

// Embedding chunks

func (s *Store) ReplaceEmbeddingChunks(ctx context.Context, documentID string, chunks []models.EmbeddingChunk) error {
	if _, err := s.chunks.DeleteMany(ctx, bson.M{"document_id": documentID}); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	docs := make([]interface{}, len(chunks))
	for i := range chunks {
		docs[i] = chunks[i]
	}
	_, err := s.chunks.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true))
	return err
}

func (s *Store) ListEmbeddingChunks(ctx context.Context, documentID string) ([]models.EmbeddingChunk, error) {
	cursor, err := s.chunks.Find(ctx, bson.M{"document_id": documentID},
		options.Find().SetSort(bson.D{{Key: "chunk_index", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	chunks := []models.EmbeddingChunk{}
	if err := cursor.All(ctx, &chunks); err != nil {
		return nil, err
	}
	return chunks, nil
}

// Processing jobs

func (s *Store) CreateJob(ctx context.Context, job *models.ProcessingJob) error {
	now := s.now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now
	_, err := s.jobs.InsertOne(ctx, job)
	return err
}

func (s *Store) GetJob(ctx context.Context, id string) (*models.ProcessingJob, error) {
	var job models.ProcessingJob
	if err := s.jobs.FindOne(ctx, bson.M{"_id": id}).Decode(&job); err != nil {
		return nil, notFound(err)
	}
	return &job, nil
}

func (s *Store) UpdateJob(ctx context.Context, id string, update models.JobUpdate) error {
	res, err := s.jobs.UpdateByID(ctx, id, bson.M{"$set": jobUpdateSet(update, s.now().UTC())})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

func jobUpdateSet(u models.JobUpdate, now time.Time) bson.M {
	set := bson.M{"updated_at": now}
	if u.Status != nil {
		set["status"] = *u.Status
	}
	if u.Progress != nil {
		set["progress"] = *u.Progress
	}
	if u.Stage != nil {
		set["stage"] = *u.Stage
	}
	if u.Message != nil {
		set["message"] = *u.Message
	}
	if u.ErrorMessage != nil {
		set["error_message"] = *u.ErrorMessage
	}
	if u.RetryCount != nil {
		set["retry_count"] = *u.RetryCount
	}
	if u.MaxRetries != nil {
		set["max_retries"] = *u.MaxRetries
	}
	if u.StartedAt != nil {
		set["started_at"] = *u.StartedAt
	}
	if u.CompletedAt != nil {
		set["completed_at"] = *u.CompletedAt
	}
	return set
}

func (s *Store) ListJobs(ctx context.Context, documentID string) ([]models.ProcessingJob, error) {
	cursor, err := s.jobs.Find(ctx, bson.M{"document_id": documentID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	jobs := []models.ProcessingJob{}
	if err := cursor.All(ctx, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}
