package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"document-summarizer/internal/ai"
	"document-summarizer/internal/cache"
	"document-summarizer/internal/config"
	"document-summarizer/internal/database"
	"document-summarizer/internal/logger"
	"document-summarizer/internal/storage"
	"document-summarizer/internal/telemetry"
	"document-summarizer/services"
)

// Container holds the process-wide clients and services shared by the API
// server and the worker.
type Container struct {
	Config  *config.Config
	Mongo   *mongo.Client
	Redis   *redis.Client
	Store   *database.Store
	Storage storage.ObjectStorage
	Metrics *telemetry.Metrics

	Documents  *services.DocumentService
	Summaries  *services.SummaryService
	Search     *services.SearchService
	Embeddings *services.EmbeddingService
	Pipeline   *services.Pipeline

	closers []io.Closer
}

// New connects every backing service and builds the service graph.
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	c := &Container{Config: cfg}

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		logger.Warn("Metrics disabled", "error", err)
	}
	c.Metrics = metrics

	c.Mongo, err = config.ConnectMongoDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	c.Store = database.NewStore(c.Mongo.Database(cfg.DBName))

	c.Redis, err = config.NewRedisClient(cfg)
	if err != nil {
		c.Close(ctx)
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	c.Storage, err = storage.New(ctx, cfg)
	if err != nil {
		c.Close(ctx)
		return nil, fmt.Errorf("object storage: %w", err)
	}
	if !c.Storage.Enabled() {
		logger.Info("Object storage not configured, files stay local")
	}

	completer, err := ai.NewCompleter(ctx, cfg, metrics)
	if err != nil {
		c.Close(ctx)
		return nil, fmt.Errorf("llm client: %w", err)
	}
	c.track(completer)

	embedder, err := ai.NewEmbedder(ctx, cfg, metrics)
	if err != nil {
		c.Close(ctx)
		return nil, fmt.Errorf("embedding client: %w", err)
	}
	c.track(embedder)

	summarizer := services.NewSummarizer(completer, services.NewTextSplitter(cfg.LLMChunkSize, cfg.LLMChunkOverlap), services.SummarizerOptions{
		MaxWords:             cfg.MaxSummaryWords,
		DirectTokenThreshold: cfg.DirectTokenThreshold,
		MaxKeyPoints:         cfg.MaxKeyPoints,
		Concurrency:          cfg.SummaryConcurrency,
	})

	c.Embeddings = services.NewEmbeddingService(embedder, services.NewWordChunker(cfg.WordChunkSize, cfg.WordChunkOverlap))
	c.Summaries = services.NewSummaryService(c.Store, summarizer)
	c.Search = services.NewSearchService(c.Store, c.Embeddings)
	c.Documents = services.NewDocumentService(c.Store, c.Storage, services.DocumentOptions{
		UploadDir:     cfg.UploadDir,
		MaxFileSize:   cfg.MaxFileSize,
		AllowedTypes:  cfg.AllowedTypes,
		PresignExpiry: cfg.PresignExpiry,
	})
	c.Pipeline = services.NewPipeline(services.PipelineDeps{
		Store:       c.Store,
		Extractor:   services.NewPDFExtractor(cfg.MaxFileSize),
		Storage:     c.Storage,
		Summaries:   c.Summaries,
		Highlighter: services.NewHighlighter(completer, cfg.HighlightContextChars),
		Embeddings:  c.Embeddings,
		Lock:        cache.NewRunLock(c.Redis, cfg.RunLockTTL),
		Metrics:     metrics,
		TempDir:     filepath.Join(os.TempDir(), "document-summarizer"),
	})

	return c, nil
}

func (c *Container) track(v any) {
	if closer, ok := v.(io.Closer); ok {
		c.closers = append(c.closers, closer)
	}
}

// Close releases clients in reverse order of creation.
func (c *Container) Close(ctx context.Context) {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].Close(); err != nil {
			logger.Warn("Failed to close client", "error", err)
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			logger.Warn("Failed to close redis", "error", err)
		}
	}
	if c.Mongo != nil {
		if err := c.Mongo.Disconnect(ctx); err != nil {
			logger.Warn("Failed to disconnect mongodb", "error", err)
		}
	}
}
