package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"document-summarizer/internal/app"
	"document-summarizer/internal/config"
	"document-summarizer/internal/logger"
	"document-summarizer/internal/queue"
	"document-summarizer/internal/scheduler"
	"document-summarizer/internal/telemetry"
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
		shutdown, err := telemetry.InitTracer("document-summarizer-worker", cfg.OTLPEndpoint, cfg.TraceRatio)
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
	defer container.Close(ctx)

	redisOpt, err := config.RedisOptions(cfg)
	if err != nil {
		log.Fatal("Invalid Redis configuration:", err)
	}

	// Create Asynq server
	server := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:      redisOpt.Addr,
			Username:  redisOpt.Username,
			Password:  redisOpt.Password,
			DB:        redisOpt.DB,
			TLSConfig: redisOpt.TLSConfig,
		},
		asynq.Config{
			Concurrency:    cfg.WorkerConcurrency,
			Queues:         queue.QueueWeights(),
			IsFailure:      queue.IsFailure,
			RetryDelayFunc: queue.RetryDelay,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				retried, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				logger.Error("Task failed",
					"task_type", task.Type(),
					"retry", retried,
					"max_retry", maxRetry,
					"error", err,
				)
			}),
			Logger:   newAsynqLogger(),
			LogLevel: asynq.InfoLevel,
		},
	)

	// Create task processor
	processor := queue.NewTaskProcessor(container.Pipeline, container.Summaries, container.Search, container.Store)

	mux := asynq.NewServeMux()
	processor.Register(mux)

	// Periodic maintenance runs on replicas with SCHEDULER_ENABLED only
	if cfg.SchedulerEnabled {
		sched := scheduler.NewScheduler(cfg.TaskTimeout)
		err = scheduler.RegisterMaintenance(sched, container.Documents, container.Metrics, scheduler.MaintenanceConfig{
			ErrorRetention:  cfg.ErrorRetention,
			CleanupInterval: cfg.CleanupInterval,
			StatsInterval:   cfg.StatsInterval,
		})
		if err != nil {
			log.Fatal("Failed to schedule maintenance jobs:", err)
		}
		sched.Start()
		defer sched.Stop()
	}

	logger.Info("Starting worker",
		"concurrency", cfg.WorkerConcurrency,
		"scheduler", cfg.SchedulerEnabled,
		"queues", queue.QueueWeights(),
		"redis", redisOpt.Addr,
		"llm_provider", cfg.LLMProvider,
		"llm_model", cfg.LLMModel,
	)

	if err := server.Start(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker...")
	server.Shutdown()
	logger.Info("Worker exited")
}
