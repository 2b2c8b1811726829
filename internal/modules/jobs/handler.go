package jobs

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/genmedia/backend/internal/modules/pipeline"
	"github.com/genmedia/backend/internal/shared/metrics"
	"github.com/genmedia/backend/internal/shared/storage"
)

// HandlerConfig contains dependencies for the job handler
type HandlerConfig struct {
	Jobs     *Module
	Pipeline *pipeline.Service
	Storage  *storage.Service
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

// Handler executes queued pipeline tasks on the worker
type Handler struct {
	jobs     *Module
	pipeline *pipeline.Service
	storage  *storage.Service
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewHandler creates a new job handler
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		jobs:     cfg.Jobs,
		pipeline: cfg.Pipeline,
		storage:  cfg.Storage,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
	}
}

// Register wires the handler's task types into an asynq mux
func (h *Handler) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypePipelineProcess, h.HandlePipelineProcess)
	mux.HandleFunc(TypeCleanupFiles, h.HandleCleanupFiles)
}

// HandlePipelineProcess runs one pipeline operation and stores the result
// in the output zone.
func (h *Handler) HandlePipelineProcess(ctx context.Context, task *asynq.Task) error {
	var payload PipelineProcessPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", asynq.SkipRetry)
	}

	started, err := h.jobs.MarkProcessing(ctx, payload.JobID)
	if err != nil {
		return err
	}
	if !started {
		// Cancelled or already handled; drop the task.
		h.logger.Info("Skipping job not in queued state", zap.String("job_id", payload.JobID))
		return nil
	}

	if h.metrics != nil {
		h.metrics.ActiveJobs.Inc()
		defer h.metrics.ActiveJobs.Dec()
	}

	start := time.Now()
	h.logger.Info("Processing pipeline job",
		zap.String("job_id", payload.JobID),
		zap.String("operation", payload.Operation),
	)

	h.jobs.UpdateProgress(ctx, payload.JobID, 10, "processing")

	result, err := h.runOperation(ctx, payload)
	if err != nil {
		h.recordJob(payload.Operation, "failed", start)
		retryable := isRetryable(err)
		h.jobs.FailJob(ctx, payload.JobID, errorCode(err), err, retryable)
		h.logger.Error("Pipeline job failed",
			zap.String("job_id", payload.JobID),
			zap.String("operation", payload.Operation),
			zap.Error(err),
		)
		if !retryable {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}

	// Discard output if the job was cancelled while processing.
	if job, err := h.jobs.GetJob(ctx, payload.JobID); err == nil && job.Status == StatusCancelled {
		h.logger.Info("Discarding output of cancelled job", zap.String("job_id", payload.JobID))
		return nil
	}

	h.jobs.UpdateProgress(ctx, payload.JobID, 90, "storing output")

	data, err := base64.StdEncoding.DecodeString(result.Base64)
	if err != nil {
		h.recordJob(payload.Operation, "failed", start)
		h.jobs.FailJob(ctx, payload.JobID, "OUTPUT_DECODE", err, false)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	name := payload.JobID + extForMime(result.MimeType)
	info, err := h.storage.Store(ctx, storage.ZoneOutput, name, bytes.NewReader(data))
	if err != nil {
		h.recordJob(payload.Operation, "failed", start)
		h.jobs.FailJob(ctx, payload.JobID, "STORE_FAILED", err, true)
		return err
	}

	if err := h.jobs.CompleteJob(ctx, payload.JobID, info.Path); err != nil {
		return err
	}

	h.recordJob(payload.Operation, "completed", start)
	h.logger.Info("Pipeline job completed",
		zap.String("job_id", payload.JobID),
		zap.String("operation", payload.Operation),
		zap.String("output", info.Path),
		zap.Duration("duration", time.Since(start)),
	)

	return nil
}

func (h *Handler) runOperation(ctx context.Context, payload PipelineProcessPayload) (pipeline.EncodedPayload, error) {
	switch payload.Operation {
	case OpMerge:
		var req pipeline.MergeRequest
		if err := json.Unmarshal(payload.Request, &req); err != nil {
			return pipeline.EncodedPayload{}, pipeline.NewInputError("invalid merge request: %v", err)
		}
		return h.pipeline.Merge(ctx, req)

	case OpApplyFilters:
		var req pipeline.ApplyFiltersRequest
		if err := json.Unmarshal(payload.Request, &req); err != nil {
			return pipeline.EncodedPayload{}, pipeline.NewInputError("invalid filter request: %v", err)
		}
		return h.pipeline.ApplyFilters(ctx, req)

	case OpAddMusic:
		var req pipeline.AddMusicRequest
		if err := json.Unmarshal(payload.Request, &req); err != nil {
			return pipeline.EncodedPayload{}, pipeline.NewInputError("invalid music request: %v", err)
		}
		return h.pipeline.AddMusic(ctx, req)

	case OpAddWatermark:
		var req pipeline.AddWatermarkRequest
		if err := json.Unmarshal(payload.Request, &req); err != nil {
			return pipeline.EncodedPayload{}, pipeline.NewInputError("invalid watermark request: %v", err)
		}
		return h.pipeline.AddWatermark(ctx, req)

	case OpSegmentReplace:
		var req pipeline.SegmentReplaceRequest
		if err := json.Unmarshal(payload.Request, &req); err != nil {
			return pipeline.EncodedPayload{}, pipeline.NewInputError("invalid segment request: %v", err)
		}
		result, err := h.pipeline.SegmentReplace(ctx, req)
		return result.Payload, err

	default:
		return pipeline.EncodedPayload{}, pipeline.NewInputError("unknown operation %q", payload.Operation)
	}
}

// HandleCleanupFiles sweeps expired files out of a storage zone
func (h *Handler) HandleCleanupFiles(ctx context.Context, task *asynq.Task) error {
	var payload CleanupPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", asynq.SkipRetry)
	}

	cutoff := time.Now().Add(-time.Duration(payload.OlderThan) * time.Second)

	paths, err := h.storage.List(ctx, storage.Zone(payload.Zone))
	if err != nil {
		return fmt.Errorf("failed to list zone %s: %w", payload.Zone, err)
	}

	removed := 0
	for _, path := range paths {
		modTime, err := h.storage.ModTime(ctx, path)
		if err != nil {
			h.logger.Warn("Failed to stat file during cleanup", zap.String("path", path), zap.Error(err))
			continue
		}
		if modTime.Before(cutoff) {
			if err := h.storage.Delete(ctx, path); err != nil {
				h.logger.Warn("Failed to delete expired file", zap.String("path", path), zap.Error(err))
				continue
			}
			removed++
		}
	}

	h.logger.Info("Cleanup sweep finished",
		zap.String("zone", payload.Zone),
		zap.Int("scanned", len(paths)),
		zap.Int("removed", removed),
	)

	return nil
}

func (h *Handler) recordJob(operation, status string, start time.Time) {
	if h.metrics == nil {
		return
	}
	h.metrics.JobsTotal.WithLabelValues(operation, status).Inc()
	h.metrics.JobDuration.WithLabelValues(operation, status).Observe(time.Since(start).Seconds())
}

// isRetryable reports whether a retry could plausibly succeed. Bad input
// stays bad; timeouts and engine failures may be transient load.
func isRetryable(err error) bool {
	var inputErr *pipeline.InputError
	var decodeErr *pipeline.DecodeError
	if errors.As(err, &inputErr) || errors.As(err, &decodeErr) {
		return false
	}
	return true
}

func errorCode(err error) string {
	var inputErr *pipeline.InputError
	var decodeErr *pipeline.DecodeError
	var downloadErr *pipeline.DownloadError
	var timeoutErr *pipeline.TimeoutError
	var execErr *pipeline.ExecutionError

	switch {
	case errors.As(err, &inputErr):
		return "INVALID_INPUT"
	case errors.As(err, &decodeErr):
		return "DECODE_FAILED"
	case errors.As(err, &downloadErr):
		return "DOWNLOAD_FAILED"
	case errors.As(err, &timeoutErr):
		return "TIMEOUT"
	case errors.As(err, &execErr):
		return "PROCESSING_ERROR"
	default:
		return "INTERNAL_ERROR"
	}
}

func extForMime(mime string) string {
	switch mime {
	case "video/mp4":
		return ".mp4"
	case "video/webm":
		return ".webm"
	default:
		return ".mp4"
	}
}
