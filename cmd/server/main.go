package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/genmedia/backend/internal/api"
	"github.com/genmedia/backend/internal/api/websocket"
	"github.com/genmedia/backend/internal/modules/jobs"
	"github.com/genmedia/backend/internal/modules/library"
	"github.com/genmedia/backend/internal/modules/pipeline"
	"github.com/genmedia/backend/internal/modules/workflow"
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

	logger.Info("Starting GenMedia API Server",
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
	libraryService := library.NewService(db, storageService, logger)
	workflowService := workflow.NewService(db, logger)

	server := api.NewServer(api.ServerConfig{
		Config:    cfg,
		Logger:    logger,
		DB:        db,
		Redis:     redisClient,
		Storage:   storageService,
		Metrics:   m,
		WSHub:     wsHub,
		Pipeline:  pipelineSvc,
		Jobs:      jobsModule,
		Library:   libraryService,
		Workflows: workflowService,
	})

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: server.Router(),
		// Processing requests hold the connection for the whole engine
		// run, so the write timeout tracks the merge budget.
		ReadTimeout:  2 * time.Minute,
		WriteTimeout: time.Duration(cfg.MergeTimeout)*time.Second + time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("API server listening", zap.Int("port", cfg.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server stopped")
}
