package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/genmedia/backend/internal/api/websocket"
	"github.com/genmedia/backend/internal/shared/database"
	"github.com/genmedia/backend/internal/shared/metrics"
)

// Job statuses
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusCancelled  = "cancelled"
)

// Pipeline operations runnable as async jobs
const (
	OpMerge          = "merge"
	OpApplyFilters   = "apply_filters"
	OpAddMusic       = "add_music"
	OpAddWatermark   = "add_watermark"
	OpSegmentReplace = "segment_replace"
)

// ErrNotFound is returned when a job does not exist.
var ErrNotFound = errors.New("job not found")

// Job represents an async pipeline processing job
type Job struct {
	ID          string          `json:"id"`
	UserID      string          `json:"userId,omitempty"`
	Status      string          `json:"status"`
	Operation   string          `json:"operation"`
	Request     json.RawMessage `json:"request,omitempty"`
	OutputPath  string          `json:"outputPath,omitempty"`
	Progress    Progress        `json:"progress"`
	Error       *JobError       `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	StartedAt   *time.Time      `json:"startedAt,omitempty"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
}

// Progress represents job progress
type Progress struct {
	Percent          int    `json:"percent"`
	CurrentOperation string `json:"currentOperation,omitempty"`
}

// JobError represents a job error
type JobError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// CreateJobParams contains parameters for creating a job
type CreateJobParams struct {
	UserID    string
	Operation string
	Request   json.RawMessage
}

// Module handles job lifecycle: creation, queueing, status tracking and
// progress fan-out over WebSocket. The same module runs in both the API
// server and the worker; only the worker executes tasks.
type Module struct {
	db      *database.Postgres
	redis   *database.Redis
	queue   *QueueClient
	wsHub   *websocket.Hub
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewModule creates a new jobs module
func NewModule(db *database.Postgres, redis *database.Redis, queue *QueueClient, wsHub *websocket.Hub, m *metrics.Metrics, logger *zap.Logger) *Module {
	return &Module{
		db:      db,
		redis:   redis,
		queue:   queue,
		wsHub:   wsHub,
		metrics: m,
		logger:  logger,
	}
}

func validOperation(op string) bool {
	switch op {
	case OpMerge, OpApplyFilters, OpAddMusic, OpAddWatermark, OpSegmentReplace:
		return true
	}
	return false
}

// CreateJob persists a new job and enqueues it for processing
func (m *Module) CreateJob(ctx context.Context, params CreateJobParams) (*Job, error) {
	if !validOperation(params.Operation) {
		return nil, fmt.Errorf("unknown operation %q", params.Operation)
	}
	if len(params.Request) == 0 {
		return nil, fmt.Errorf("request document is required")
	}

	jobID := uuid.New().String()
	now := time.Now()

	job := &Job{
		ID:        jobID,
		UserID:    params.UserID,
		Status:    StatusQueued,
		Operation: params.Operation,
		Request:   params.Request,
		Progress:  Progress{Percent: 0},
		CreatedAt: now,
	}

	progressJSON, _ := json.Marshal(job.Progress)

	_, err := m.db.Pool.Exec(ctx, `
		INSERT INTO jobs (id, user_id, status, operation, request, progress, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, jobID, nullString(params.UserID), job.Status, job.Operation, []byte(params.Request), progressJSON, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert job: %w", err)
	}

	_, err = m.queue.EnqueuePipelineProcess(PipelineProcessPayload{
		JobID:     jobID,
		UserID:    params.UserID,
		Operation: params.Operation,
		Request:   params.Request,
	})
	if err != nil {
		m.db.Pool.Exec(ctx, "UPDATE jobs SET status = $1 WHERE id = $2", StatusFailed, jobID)
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}

	m.logger.Info("Job created and queued",
		zap.String("job_id", job.ID),
		zap.String("user_id", job.UserID),
		zap.String("operation", job.Operation),
	)

	return job, nil
}

// GetJob retrieves a job by ID. Progress is overlaid from Redis when the
// worker has published a fresher snapshot than the last database write.
func (m *Module) GetJob(ctx context.Context, jobID string) (*Job, error) {
	job, err := m.getJobFromDB(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if job.Status == StatusProcessing {
		if raw, err := m.redis.Get(ctx, progressKey(jobID)); err == nil && raw != "" {
			var p Progress
			if json.Unmarshal([]byte(raw), &p) == nil {
				job.Progress = p
			}
		}
	}

	return job, nil
}

// ListJobs returns recent jobs for a user, optionally filtered by status
func (m *Module) ListJobs(ctx context.Context, userID, status string) ([]*Job, error) {
	rows, err := m.db.Pool.Query(ctx, `
		SELECT id, user_id, status, operation, output_path, progress, error, created_at, started_at, completed_at
		FROM jobs
		WHERE ($1 = '' OR user_id = $1)
		  AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT 50
	`, userID, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := m.scanJob(rows)
		if err != nil {
			m.logger.Error("Failed to scan job row", zap.Error(err))
			continue
		}
		jobs = append(jobs, job)
	}

	return jobs, rows.Err()
}

// CancelJob cancels a queued or processing job. The worker checks the
// status before and after execution, so a processing job finishes its
// current engine invocation but its output is discarded.
func (m *Module) CancelJob(ctx context.Context, jobID string) error {
	job, err := m.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	if job.Status == StatusCompleted || job.Status == StatusCancelled {
		return fmt.Errorf("job cannot be cancelled: status is %s", job.Status)
	}

	now := time.Now()
	_, err = m.db.Pool.Exec(ctx, `
		UPDATE jobs SET status = $1, completed_at = $2 WHERE id = $3
	`, StatusCancelled, now, jobID)
	if err != nil {
		return err
	}

	if m.wsHub != nil {
		m.wsHub.BroadcastJobFailed(jobID, "Job cancelled by user")
	}

	return nil
}

// DeleteJob removes a job record
func (m *Module) DeleteJob(ctx context.Context, jobID string) error {
	result, err := m.db.Pool.Exec(ctx, `DELETE FROM jobs WHERE id = $1`, jobID)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	m.redis.Delete(ctx, progressKey(jobID))

	return nil
}

// RetryJob re-submits a failed job with the same request document
func (m *Module) RetryJob(ctx context.Context, jobID string) (*Job, error) {
	var userID *string
	var operation string
	var request []byte
	var status string

	err := m.db.Pool.QueryRow(ctx, `
		SELECT user_id, operation, request, status FROM jobs WHERE id = $1
	`, jobID).Scan(&userID, &operation, &request, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if status != StatusFailed {
		return nil, fmt.Errorf("only failed jobs can be retried")
	}

	return m.CreateJob(ctx, CreateJobParams{
		UserID:    derefString(userID),
		Operation: operation,
		Request:   request,
	})
}

// MarkProcessing transitions a job to processing and records the start time.
// Returns false if the job was cancelled in the meantime.
func (m *Module) MarkProcessing(ctx context.Context, jobID string) (bool, error) {
	result, err := m.db.Pool.Exec(ctx, `
		UPDATE jobs SET status = $1, started_at = COALESCE(started_at, NOW())
		WHERE id = $2 AND status = $3
	`, StatusProcessing, jobID, StatusQueued)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() == 1, nil
}

// UpdateProgress publishes job progress. The snapshot goes to Redis with a
// short TTL and out over WebSocket; the database row is only touched on
// status transitions to keep write load off the jobs table.
func (m *Module) UpdateProgress(ctx context.Context, jobID string, percent int, operation string) {
	progress := Progress{Percent: percent, CurrentOperation: operation}
	progressJSON, _ := json.Marshal(progress)

	if err := m.redis.Set(ctx, progressKey(jobID), string(progressJSON), time.Hour); err != nil {
		m.logger.Warn("Failed to publish job progress", zap.String("job_id", jobID), zap.Error(err))
	}

	if m.wsHub != nil {
		m.wsHub.BroadcastJobProgress(jobID, percent, operation)
	}
}

// CompleteJob marks a job as completed with its stored output path
func (m *Module) CompleteJob(ctx context.Context, jobID, outputPath string) error {
	now := time.Now()
	progressJSON, _ := json.Marshal(Progress{Percent: 100})

	_, err := m.db.Pool.Exec(ctx, `
		UPDATE jobs SET status = $1, output_path = $2, progress = $3, completed_at = $4 WHERE id = $5
	`, StatusCompleted, outputPath, progressJSON, now, jobID)
	if err != nil {
		return err
	}

	m.redis.Delete(ctx, progressKey(jobID))

	if m.wsHub != nil {
		m.wsHub.BroadcastJobCompleted(jobID, outputPath)
	}

	return nil
}

// FailJob marks a job as failed
func (m *Module) FailJob(ctx context.Context, jobID, code string, jobErr error, retryable bool) error {
	now := time.Now()
	jobError := JobError{
		Code:      code,
		Message:   jobErr.Error(),
		Retryable: retryable,
	}
	errorJSON, _ := json.Marshal(jobError)

	_, dbErr := m.db.Pool.Exec(ctx, `
		UPDATE jobs SET status = $1, error = $2, completed_at = $3 WHERE id = $4
	`, StatusFailed, errorJSON, now, jobID)
	if dbErr != nil {
		return dbErr
	}

	m.redis.Delete(ctx, progressKey(jobID))

	if m.wsHub != nil {
		m.wsHub.BroadcastJobFailed(jobID, jobErr.Error())
	}

	return nil
}

func (m *Module) getJobFromDB(ctx context.Context, jobID string) (*Job, error) {
	row := m.db.Pool.QueryRow(ctx, `
		SELECT id, user_id, status, operation, output_path, progress, error, created_at, started_at, completed_at
		FROM jobs WHERE id = $1
	`, jobID)

	job, err := m.scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return job, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (m *Module) scanJob(row rowScanner) (*Job, error) {
	var job Job
	var userID, outputPath *string
	var progressJSON, errorJSON []byte
	var startedAt, completedAt *time.Time

	err := row.Scan(
		&job.ID, &userID, &job.Status, &job.Operation, &outputPath,
		&progressJSON, &errorJSON, &job.CreatedAt, &startedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	job.UserID = derefString(userID)
	job.OutputPath = derefString(outputPath)
	job.StartedAt = startedAt
	job.CompletedAt = completedAt

	json.Unmarshal(progressJSON, &job.Progress)
	if errorJSON != nil {
		json.Unmarshal(errorJSON, &job.Error)
	}

	return &job, nil
}

func progressKey(jobID string) string {
	return "job:progress:" + jobID
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
