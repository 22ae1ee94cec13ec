package config

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names
const (
	DocumentsCollection       = "documents"
	SummariesCollection       = "summaries"
	HighlightsCollection      = "highlights"
	EmbeddingChunksCollection = "embedding_chunks"
	ProcessingJobsCollection  = "processing_jobs"
)

func ConnectMongoDB(cfg *Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %v", err)
	}

	// Test connection
	err = client.Ping(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %v", err)
	}

	err = createIndexes(ctx, client.Database(cfg.DBName))
	if err != nil {
		return nil, fmt.Errorf("failed to create indexes: %v", err)
	}

	return client, nil
}

func createIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		DocumentsCollection: {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "updated_at", Value: 1}}},
			{Keys: bson.D{{Key: "uploaded_at", Value: -1}}},
		},
		// One summary per document
		SummariesCollection: {
			{
				Keys:    bson.D{{Key: "document_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		HighlightsCollection: {
			{Keys: bson.D{{Key: "document_id", Value: 1}, {Key: "page_number", Value: 1}}},
		},
		EmbeddingChunksCollection: {
			{
				Keys:    bson.D{{Key: "document_id", Value: 1}, {Key: "chunk_index", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		ProcessingJobsCollection: {
			{Keys: bson.D{{Key: "document_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "task_id", Value: 1}}},
		},
	}

	for name, models := range indexes {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	return nil
}
