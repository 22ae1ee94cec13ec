package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI     string
	DBName       string
	Port         string
	GinMode      string
	CORSOrigins  []string
	MaxFileSize  int64
	AllowedTypes []string
	UploadDir    string

	// Rate limiting
	RateLimitReqs   int
	RateLimitWindow time.Duration

	// Redis Configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// LLM Configuration
	LLMProvider  string // "gemini" (default), "groq", "openai"
	LLMModel     string
	GeminiAPIKey string
	GroqAPIKey   string
	GroqBaseURL  string
	OpenAIAPIKey string
	LLMTier      string
	LLMTimeout   time.Duration

	// Embeddings configuration
	EmbeddingsProvider    string // "google" (default), "openai"
	GoogleEmbeddingsModel string
	OpenAIEmbeddingsModel string
	EmbeddingBatchSize    int

	// Chunking and summarization
	WordChunkSize         int
	WordChunkOverlap      int
	LLMChunkSize          int
	LLMChunkOverlap       int
	DirectTokenThreshold  int
	MaxSummaryWords       int
	MaxKeyPoints          int
	HighlightContextChars int
	SummaryConcurrency    int

	// AWS S3
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSRegion          string
	S3BucketName       string
	S3Endpoint         string
	PresignExpiry      time.Duration

	// Worker Configuration
	WorkerConcurrency int
	MaxRetries        int
	TaskTimeout       time.Duration
	RunLockTTL        time.Duration
	ErrorRetention    time.Duration
	CleanupInterval   time.Duration
	StatsInterval     time.Duration
	SchedulerEnabled  bool

	// Telemetry
	TracingEnabled bool
	OTLPEndpoint   string
	TraceRatio     float64
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		MongoURI:     getEnv("MONGO_URI", "mongodb://localhost:27017/document_summarizer"),
		DBName:       getEnv("DB_NAME", "document_summarizer"),
		Port:         getEnv("PORT", "8080"),
		GinMode:      getEnv("GIN_MODE", "debug"),
		CORSOrigins:  strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080"), ","),
		MaxFileSize:  getEnvInt64("MAX_FILE_SIZE", 52428800), // 50MB
		AllowedTypes: strings.Split(getEnv("ALLOWED_FILE_TYPES", "application/pdf"), ","),
		UploadDir:    getEnv("UPLOAD_DIR", "uploads"),

		// Rate limiting
		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow: getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),

		// Redis Configuration
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		// LLM Configuration
		LLMProvider:  strings.ToLower(getEnv("LLM_PROVIDER", "gemini")),
		LLMModel:     getEnv("LLM_MODEL", ""),
		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GroqAPIKey:   getEnv("GROQ_API_KEY", ""),
		GroqBaseURL:  getEnv("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		LLMTier:      getEnv("LLM_TIER", "free"),
		LLMTimeout:   getEnvDuration("LLM_TIMEOUT", 2*time.Minute),

		// Embeddings
		EmbeddingsProvider:    getEnv("EMBEDDINGS_PROVIDER", "google"),
		GoogleEmbeddingsModel: getEnv("GOOGLE_EMBEDDINGS_MODEL", "text-embedding-004"),
		OpenAIEmbeddingsModel: getEnv("OPENAI_EMBEDDINGS_MODEL", "text-embedding-3-small"),
		EmbeddingBatchSize:    getEnvInt("EMBEDDING_BATCH_SIZE", 64),

		// Chunking and summarization
		WordChunkSize:         getEnvInt("WORD_CHUNK_SIZE", 1000),
		WordChunkOverlap:      getEnvInt("WORD_CHUNK_OVERLAP", 100),
		LLMChunkSize:          getEnvInt("LLM_CHUNK_SIZE", 4000),
		LLMChunkOverlap:       getEnvInt("LLM_CHUNK_OVERLAP", 200),
		DirectTokenThreshold:  getEnvInt("DIRECT_TOKEN_THRESHOLD", 3000),
		MaxSummaryWords:       getEnvInt("MAX_SUMMARY_WORDS", 500),
		MaxKeyPoints:          getEnvInt("MAX_KEY_POINTS", 8),
		HighlightContextChars: getEnvInt("HIGHLIGHT_CONTEXT_CHARS", 2000),
		SummaryConcurrency:    getEnvInt("SUMMARY_CONCURRENCY", 4),

		// AWS S3
		AWSAccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSRegion:          getEnv("AWS_REGION", "us-east-1"),
		S3BucketName:       getEnv("S3_BUCKET_NAME", ""),
		S3Endpoint:         getEnv("S3_ENDPOINT", ""),
		PresignExpiry:      getEnvDuration("S3_PRESIGN_EXPIRY", time.Hour),

		// Worker Configuration
		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 10),
		MaxRetries:        getEnvInt("TASK_MAX_RETRIES", 3),
		TaskTimeout:       getEnvDuration("TASK_TIMEOUT", 10*time.Minute),
		RunLockTTL:        getEnvDuration("RUN_LOCK_TTL", 15*time.Minute),
		ErrorRetention:    getEnvDuration("ERROR_RETENTION", time.Hour),
		CleanupInterval:   getEnvDuration("CLEANUP_INTERVAL", 15*time.Minute),
		StatsInterval:     getEnvDuration("STATS_INTERVAL", 5*time.Minute),
		SchedulerEnabled:  getEnvBool("SCHEDULER_ENABLED", true),

		// Telemetry
		TracingEnabled: getEnvBool("OTEL_TRACING_ENABLED", false),
		OTLPEndpoint:   getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		TraceRatio:     getEnvFloat64("OTEL_TRACE_RATIO", 0.1),
	}

	if cfg.LLMModel == "" {
		cfg.LLMModel = defaultModel(cfg.LLMProvider)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks required fields and chunking parameters
func (c *Config) Validate() error {
	switch c.LLMProvider {
	case "gemini":
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required when LLM_PROVIDER=gemini - set it in .env file")
		}
	case "groq":
		if c.GroqAPIKey == "" {
			return fmt.Errorf("GROQ_API_KEY is required when LLM_PROVIDER=groq - set it in .env file")
		}
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when LLM_PROVIDER=openai - set it in .env file")
		}
	default:
		return fmt.Errorf("unknown LLM_PROVIDER: %s", c.LLMProvider)
	}

	if c.WordChunkOverlap >= c.WordChunkSize {
		return fmt.Errorf("WORD_CHUNK_OVERLAP (%d) must be smaller than WORD_CHUNK_SIZE (%d)", c.WordChunkOverlap, c.WordChunkSize)
	}
	if c.LLMChunkOverlap >= c.LLMChunkSize {
		return fmt.Errorf("LLM_CHUNK_OVERLAP (%d) must be smaller than LLM_CHUNK_SIZE (%d)", c.LLMChunkOverlap, c.LLMChunkSize)
	}
	// A live worker must never lose the run lock before asynq cancels its task
	if c.RunLockTTL < c.TaskTimeout {
		return fmt.Errorf("RUN_LOCK_TTL (%s) must not be shorter than TASK_TIMEOUT (%s)", c.RunLockTTL, c.TaskTimeout)
	}

	return nil
}

// StorageEnabled reports whether S3 credentials and bucket are configured
func (c *Config) StorageEnabled() bool {
	return c.AWSAccessKeyID != "" && c.AWSSecretAccessKey != "" && c.S3BucketName != ""
}

func defaultModel(provider string) string {
	switch provider {
	case "groq":
		return "llama-3.3-70b-versatile"
	case "openai":
		return "gpt-4o-mini"
	default:
		return "gemini-2.0-flash"
	}
}
