package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Task types
const (
	TypePipelineProcess = "pipeline:process"
	TypeCleanupFiles    = "storage:cleanup"
)

// QueueClient handles job queue operations
type QueueClient struct {
	client    *asynq.Client
	redisAddr string
	logger    *zap.Logger
}

// NewQueueClient creates a new queue client
func NewQueueClient(redisAddr string, logger *zap.Logger) *QueueClient {
	client := asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})
	return &QueueClient{
		client:    client,
		redisAddr: redisAddr,
		logger:    logger,
	}
}

// Close closes the queue client
func (q *QueueClient) Close() error {
	return q.client.Close()
}

// PipelineProcessPayload contains a pipeline processing task. Request holds
// the operation-specific request document, decoded by the worker.
type PipelineProcessPayload struct {
	JobID     string          `json:"jobId"`
	UserID    string          `json:"userId,omitempty"`
	Operation string          `json:"operation"`
	Request   json.RawMessage `json:"request"`
}

// CleanupPayload contains file cleanup task data
type CleanupPayload struct {
	Zone      string `json:"zone"`
	OlderThan int64  `json:"olderThan"` // age in seconds
}

// EnqueuePipelineProcess queues a pipeline processing task
func (q *QueueClient) EnqueuePipelineProcess(payload PipelineProcessPayload) (*asynq.TaskInfo, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	task := asynq.NewTask(TypePipelineProcess, data)

	info, err := q.client.Enqueue(task,
		asynq.MaxRetry(2),
		asynq.Timeout(30*time.Minute),
		asynq.Queue("default"),
	)
	if err != nil {
		q.logger.Error("Failed to enqueue pipeline task", zap.Error(err))
		return nil, err
	}

	q.logger.Info("Pipeline task enqueued",
		zap.String("task_id", info.ID),
		zap.String("job_id", payload.JobID),
		zap.String("operation", payload.Operation),
	)

	return info, nil
}

// ScheduleCleanup starts a scheduler that periodically sweeps expired files
// out of the working and output zones.
func (q *QueueClient) ScheduleCleanup() error {
	scheduler := asynq.NewScheduler(
		asynq.RedisClientOpt{Addr: q.redisAddr},
		nil,
	)

	workingPayload, _ := json.Marshal(CleanupPayload{
		Zone:      "working",
		OlderThan: int64((4 * time.Hour).Seconds()),
	})
	if _, err := scheduler.Register("@every 30m", asynq.NewTask(TypeCleanupFiles, workingPayload)); err != nil {
		return err
	}

	outputPayload, _ := json.Marshal(CleanupPayload{
		Zone:      "output",
		OlderThan: int64((7 * 24 * time.Hour).Seconds()),
	})
	if _, err := scheduler.Register("@daily", asynq.NewTask(TypeCleanupFiles, outputPayload)); err != nil {
		return err
	}

	return scheduler.Start()
}
