package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/genmedia/backend/internal/api/handlers"
	"github.com/genmedia/backend/internal/api/middleware"
	"github.com/genmedia/backend/internal/api/websocket"
	"github.com/genmedia/backend/internal/modules/jobs"
	"github.com/genmedia/backend/internal/modules/library"
	"github.com/genmedia/backend/internal/modules/pipeline"
	"github.com/genmedia/backend/internal/modules/workflow"
	"github.com/genmedia/backend/internal/shared/config"
	"github.com/genmedia/backend/internal/shared/database"
	"github.com/genmedia/backend/internal/shared/metrics"
	"github.com/genmedia/backend/internal/shared/storage"
)

// ServerConfig holds dependencies for the API server
type ServerConfig struct {
	Config    *config.Config
	Logger    *zap.Logger
	DB        *database.Postgres
	Redis     *database.Redis
	Storage   *storage.Service
	Metrics   *metrics.Metrics
	WSHub     *websocket.Hub
	Pipeline  *pipeline.Service
	Jobs      *jobs.Module
	Library   *library.Service
	Workflows *workflow.Service
}

// Server represents the API server
type Server struct {
	config    *config.Config
	logger    *zap.Logger
	db        *database.Postgres
	redis     *database.Redis
	storage   *storage.Service
	metrics   *metrics.Metrics
	wsHub     *websocket.Hub
	pipeline  *pipeline.Service
	jobs      *jobs.Module
	library   *library.Service
	workflows *workflow.Service
}

// NewServer creates a new API server
func NewServer(cfg ServerConfig) *Server {
	return &Server{
		config:    cfg.Config,
		logger:    cfg.Logger,
		db:        cfg.DB,
		redis:     cfg.Redis,
		storage:   cfg.Storage,
		metrics:   cfg.Metrics,
		wsHub:     cfg.WSHub,
		pipeline:  cfg.Pipeline,
		jobs:      cfg.Jobs,
		library:   cfg.Library,
		workflows: cfg.Workflows,
	}
}

// Router returns the configured HTTP router
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.SecurityHeaders)
	if s.metrics != nil {
		r.Use(middleware.Metrics(s.metrics))
	}
	r.Use(chimiddleware.RequestSize(s.config.MaxRequestBody))

	// With AllowCredentials=true go-chi/cors reflects the request Origin
	// back instead of sending a literal "*", which browsers require for
	// the anonymous cookie.
	origins := s.config.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "HEAD"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Content-Length", "Content-Disposition", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	rateLimiter := middleware.NewRateLimiter(s.redis.Client, s.logger)
	r.Use(rateLimiter.Limit(middleware.GlobalRateLimit))

	isSecure := s.config.Environment == "production"
	clerkAuth := middleware.NewClerkAuthMiddleware(s.config.ClerkSecretKey, s.config.AllowedEmails, isSecure)

	healthHandler := handlers.NewHealthHandler(s.db, s.redis)
	videoHandler := handlers.NewVideoHandler(s.pipeline, s.logger)
	jobHandler := handlers.NewJobHandler(s.jobs, s.storage, s.logger)
	assetHandler := handlers.NewAssetHandler(s.library, s.logger)
	workflowHandler := handlers.NewWorkflowHandler(s.workflows, s.config.AllowedEmails, s.logger)
	wsHandler := handlers.NewWebSocketHandler(s.wsHub, s.logger)

	// Prometheus scrape endpoint (outside /api, not CORS-exposed)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Health checks (public)
		r.Get("/health", healthHandler.Health)
		r.Get("/ready", healthHandler.Ready)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(clerkAuth.Handler)

			// Synchronous video processing
			r.Route("/video", func(r chi.Router) {
				r.Use(
					rateLimiter.Limit(middleware.ProcessingRateLimit),
					rateLimiter.Limit(middleware.AnonProcessingRateLimit),
					middleware.NoCache,
				)
				r.Post("/merge", videoHandler.Merge)
				r.Post("/apply-filters", videoHandler.ApplyFilters)
				r.Post("/add-music", videoHandler.AddMusic)
				r.Post("/add-watermark", videoHandler.AddWatermark)
				r.Post("/segment-replace", videoHandler.SegmentReplace)
				r.Post("/probe", videoHandler.Probe)
			})

			// Async jobs
			r.Route("/jobs", func(r chi.Router) {
				r.With(
					rateLimiter.Limit(middleware.JobCreationRateLimit),
					rateLimiter.Limit(middleware.AnonJobCreationRateLimit),
				).Post("/", jobHandler.CreateJob)
				r.Get("/", jobHandler.ListJobs)
				r.Get("/{id}", jobHandler.GetJob)
				r.Get("/{id}/download", jobHandler.DownloadOutput)
				r.Post("/{id}/cancel", jobHandler.CancelJob)
				r.Post("/{id}/retry", jobHandler.RetryJob)
				r.Delete("/{id}", jobHandler.DeleteJob)
			})

			// Asset library (authenticated users only)
			r.Route("/library", func(r chi.Router) {
				r.Use(clerkAuth.RequireAuth)
				r.With(rateLimiter.Limit(middleware.AssetUploadRateLimit)).
					Post("/", assetHandler.CreateAsset)
				r.With(
					rateLimiter.Limit(middleware.AssetUploadRateLimit),
					middleware.ValidateFileUpload(middleware.AssetUploadValidation),
				).Post("/upload", assetHandler.UploadAsset)
				r.Get("/", assetHandler.ListAssets)
				r.Get("/{id}", assetHandler.GetAsset)
				r.Get("/{id}/download", assetHandler.DownloadAsset)
				r.Delete("/{id}", assetHandler.DeleteAsset)
			})

			// Workflow persistence (authenticated users only)
			r.Route("/workflows", func(r chi.Router) {
				r.Use(clerkAuth.RequireAuth)
				r.Post("/", workflowHandler.CreateWorkflow)
				r.Get("/", workflowHandler.ListWorkflows)
				r.Get("/{id}", workflowHandler.GetWorkflow)
				r.Put("/{id}", workflowHandler.UpdateWorkflow)
				r.Delete("/{id}", workflowHandler.DeleteWorkflow)
			})

			// Job progress stream
			r.Get("/ws", wsHandler.HandleConnection)
		})
	})

	return r
}
