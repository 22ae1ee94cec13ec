package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"document-summarizer/internal/app"
	"document-summarizer/internal/config"
	"document-summarizer/internal/logger"
	"document-summarizer/internal/queue"
	"document-summarizer/internal/telemetry"
	"document-summarizer/middleware"
	"document-summarizer/routes"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	ctx := context.Background()

	if cfg.TracingEnabled {
		shutdown, err := telemetry.InitTracer("document-summarizer-api", cfg.OTLPEndpoint, cfg.TraceRatio)
		if err != nil {
			logger.Warn("Tracing disabled", "error", err)
		} else {
			defer shutdown(ctx)
		}
	}

	container, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to initialize services:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		container.Close(ctx)
	}()

	redisOpt, err := config.RedisOptions(cfg)
	if err != nil {
		log.Fatal("Invalid Redis configuration:", err)
	}
	queueClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:      redisOpt.Addr,
		Username:  redisOpt.Username,
		Password:  redisOpt.Password,
		DB:        redisOpt.DB,
		TLSConfig: redisOpt.TLSConfig,
	})
	defer queueClient.Close()

	enqueuer := queue.NewEnqueuer(queueClient, container.Store, queue.TaskOptions{
		MaxRetry: cfg.MaxRetries,
		Timeout:  cfg.TaskTimeout,
	})

	// Initialize Gin router
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.TracingMiddleware("document-summarizer-api"))
	router.Use(middleware.EnrichTrace())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORSMiddlewareWithOrigins(cfg.CORSOrigins))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})

	handler := routes.NewDocumentHandler(container.Documents, container.Summaries, container.Search, enqueuer)
	routes.SetupDocumentRoutes(router, handler,
		middleware.RateLimitMiddleware(container.Redis, cfg.RateLimitReqs, cfg.RateLimitWindow),
		middleware.RequestSizeLimit(cfg.MaxFileSize+(1<<20)),
	)

	// Create HTTP server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server starting", "port", cfg.Port, "storage_enabled", container.Storage.Enabled())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}
