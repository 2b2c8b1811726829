package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/genmedia/backend/internal/api/middleware"
	"github.com/genmedia/backend/internal/modules/jobs"
	"github.com/genmedia/backend/internal/shared/storage"
)

// JobHandler handles async job endpoints
type JobHandler struct {
	module  *jobs.Module
	storage *storage.Service
	logger  *zap.Logger
}

// NewJobHandler creates a new job handler
func NewJobHandler(module *jobs.Module, st *storage.Service, logger *zap.Logger) *JobHandler {
	return &JobHandler{
		module:  module,
		storage: st,
		logger:  logger,
	}
}

// CreateJobRequest submits a pipeline operation for async processing.
// The request document uses the same wire format as the synchronous
// endpoint for that operation.
type CreateJobRequest struct {
	Operation string          `json:"operation"`
	Request   json.RawMessage `json:"request"`
}

// CreateJob creates a new async pipeline job
func (h *JobHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid request body")
		return
	}

	pipelineReq, err := mapJobRequest(req.Operation, req.Request)
	if err != nil {
		writePipelineError(w, h.logger, req.Operation, err)
		return
	}

	job, err := h.module.CreateJob(r.Context(), jobs.CreateJobParams{
		UserID:    userID(r),
		Operation: req.Operation,
		Request:   pipelineReq,
	})
	if err != nil {
		h.logger.Error("Failed to create job", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to create job")
		return
	}

	writeJSON(w, http.StatusCreated, job)
}

// mapJobRequest validates the wire document for an operation and returns
// the pipeline-shaped request the worker will execute.
func mapJobRequest(operation string, raw json.RawMessage) (json.RawMessage, error) {
	switch operation {
	case jobs.OpMerge:
		var wire MergeVideosRequest
		if err := json.Unmarshal(raw, &wire); err != nil {
			return nil, errors.New("invalid request document")
		}
		preq, err := wire.ToPipeline()
		if err != nil {
			return nil, err
		}
		return json.Marshal(preq)

	case jobs.OpApplyFilters:
		var wire ApplyFiltersRequest
		if err := json.Unmarshal(raw, &wire); err != nil {
			return nil, errors.New("invalid request document")
		}
		preq, err := wire.ToPipeline()
		if err != nil {
			return nil, err
		}
		return json.Marshal(preq)

	case jobs.OpAddMusic:
		var wire AddMusicRequest
		if err := json.Unmarshal(raw, &wire); err != nil {
			return nil, errors.New("invalid request document")
		}
		preq, err := wire.ToPipeline()
		if err != nil {
			return nil, err
		}
		return json.Marshal(preq)

	case jobs.OpAddWatermark:
		var wire AddWatermarkRequest
		if err := json.Unmarshal(raw, &wire); err != nil {
			return nil, errors.New("invalid request document")
		}
		preq, err := wire.ToPipeline()
		if err != nil {
			return nil, err
		}
		return json.Marshal(preq)

	case jobs.OpSegmentReplace:
		var wire SegmentReplaceRequest
		if err := json.Unmarshal(raw, &wire); err != nil {
			return nil, errors.New("invalid request document")
		}
		preq, err := wire.ToPipeline()
		if err != nil {
			return nil, err
		}
		return json.Marshal(preq)

	default:
		return nil, errors.New("unknown operation")
	}
}

// ListJobs returns the user's jobs
func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")

	jobsList, err := h.module.ListJobs(r.Context(), userID(r), status)
	if err != nil {
		h.logger.Error("Failed to list jobs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to list jobs")
		return
	}

	if jobsList == nil {
		jobsList = []*jobs.Job{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": jobsList})
}

// GetJob returns a single job
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	job, err := h.module.GetJob(r.Context(), jobID)
	if errors.Is(err, jobs.ErrNotFound) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "job not found")
		return
	}
	if err != nil {
		h.logger.Error("Failed to get job", zap.String("job_id", jobID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to get job")
		return
	}

	if !h.ownsJob(r, job) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "job not found")
		return
	}

	writeJSON(w, http.StatusOK, job)
}

// DownloadOutput streams a completed job's output file
func (h *JobHandler) DownloadOutput(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	job, err := h.module.GetJob(r.Context(), jobID)
	if errors.Is(err, jobs.ErrNotFound) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "job not found")
		return
	}
	if err != nil {
		h.logger.Error("Failed to get job", zap.String("job_id", jobID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to get job")
		return
	}

	if !h.ownsJob(r, job) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "job not found")
		return
	}
	if job.Status != jobs.StatusCompleted || job.OutputPath == "" {
		writeError(w, http.StatusConflict, "NOT_READY", "job output is not available")
		return
	}

	reader, err := h.storage.Retrieve(r.Context(), job.OutputPath)
	if err != nil {
		h.logger.Error("Failed to open job output", zap.String("job_id", jobID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to open output")
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Disposition", `attachment; filename="`+jobID+`.mp4"`)
	if _, err := io.Copy(w, reader); err != nil {
		h.logger.Warn("Job output download interrupted", zap.String("job_id", jobID), zap.Error(err))
	}
}

// CancelJob cancels a queued or processing job
func (h *JobHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	if err := h.module.CancelJob(r.Context(), jobID); err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "job not found")
			return
		}
		writeError(w, http.StatusConflict, "INVALID_STATE", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "job cancelled"})
}

// RetryJob re-submits a failed job
func (h *JobHandler) RetryJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	job, err := h.module.RetryJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "job not found")
			return
		}
		writeError(w, http.StatusConflict, "INVALID_STATE", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, job)
}

// DeleteJob removes a job record
func (h *JobHandler) DeleteJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	if err := h.module.DeleteJob(r.Context(), jobID); err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "job not found")
			return
		}
		h.logger.Error("Failed to delete job", zap.String("job_id", jobID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to delete job")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "job deleted"})
}

func (h *JobHandler) ownsJob(r *http.Request, job *jobs.Job) bool {
	return job.UserID == "" || job.UserID == userID(r)
}

func userID(r *http.Request) string {
	if user := middleware.GetUser(r.Context()); user != nil {
		return user.ID
	}
	return ""
}
