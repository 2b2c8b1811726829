package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/genmedia/backend/internal/api/websocket"
	"github.com/genmedia/backend/internal/modules/jobs"
	"github.com/genmedia/backend/internal/modules/pipeline"
	"github.com/genmedia/backend/internal/shared/config"
	"github.com/genmedia/backend/internal/shared/database"
	"github.com/genmedia/backend/internal/shared/logging"
	"github.com/genmedia/backend/internal/shared/metrics"
	"github.com/genmedia/backend/internal/shared/storage"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting GenMedia Worker",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("environment", cfg.Environment),
	)

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()

	storageService, err := storage.NewService(cfg.Storage)
	if err != nil {
		logger.Fatal("Failed to initialize storage", zap.Error(err))
	}

	m := metrics.New()

	// The worker has no browser clients; the hub only fans progress out
	// to sockets held by the API process, so broadcasts here are no-ops
	// unless a hub peer is added later. Job state still flows through
	// Postgres and Redis.
	wsHub := websocket.NewHub(m, logger)
	go wsHub.Run()

	httpClient := &http.Client{Timeout: time.Duration(cfg.DownloadTimeout) * time.Second}
	pipelineSvc := pipeline.NewService(pipeline.ServiceConfig{
		FFmpegPath:      cfg.FFmpegPath,
		FFprobePath:     cfg.FFprobePath,
		MaxMergeClips:   cfg.MergeMaxClips,
		MaxConcurrent:   int64(cfg.PipelineParallel),
		DownloadTimeout: time.Duration(cfg.DownloadTimeout) * time.Second,
		MergeTimeout:    time.Duration(cfg.MergeTimeout) * time.Second,
	}, httpClient, m, logger)

	jobQueue := jobs.NewQueueClient(cfg.RedisURL, logger)
	defer jobQueue.Close()

	jobsModule := jobs.NewModule(db, redisClient, jobQueue, wsHub, m, logger)

	jobHandler := jobs.NewHandler(jobs.HandlerConfig{
		Jobs:     jobsModule,
		Pipeline: pipelineSvc,
		Storage:  storageService,
		Metrics:  m,
		Logger:   logger,
	})

	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.RedisURL},
		asynq.Config{
			Concurrency: cfg.WorkerConcurrency,
			Queues: map[string]int{
				"default": 3,
				"low":     1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task failed",
					zap.String("type", task.Type()),
					zap.Error(err),
				)
			}),
		},
	)

	mux := asynq.NewServeMux()
	jobHandler.Register(mux)

	// Periodic zone sweeps run from the worker.
	go func() {
		if err := jobQueue.ScheduleCleanup(); err != nil {
			logger.Error("Cleanup scheduler failed", zap.Error(err))
		}
	}()

	go func() {
		logger.Info("Worker started", zap.Int("concurrency", cfg.WorkerConcurrency))
		if err := srv.Run(mux); err != nil {
			logger.Fatal("Worker failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker...")
	srv.Shutdown()
	logger.Info("Worker stopped")
}
