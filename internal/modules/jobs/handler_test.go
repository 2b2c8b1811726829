package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/genmedia/backend/internal/modules/pipeline"
	"github.com/genmedia/backend/internal/shared/config"
	"github.com/genmedia/backend/internal/shared/storage"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"input error", &pipeline.InputError{Msg: "missing field"}, false},
		{"decode error", &pipeline.DecodeError{Length: 12, Prefix: "abc"}, false},
		{"download error", &pipeline.DownloadError{URL: "https://example.com/a.mp4", Status: 503}, true},
		{"timeout", &pipeline.TimeoutError{Op: "merge", Seconds: 300}, true},
		{"execution error", &pipeline.ExecutionError{Op: "merge", Diagnostic: "boom"}, true},
		{"plain error", errors.New("db down"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryable(tt.err))
		})
	}
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"input error", &pipeline.InputError{Msg: "missing field"}, "INVALID_INPUT"},
		{"decode error", &pipeline.DecodeError{Length: 12}, "DECODE_FAILED"},
		{"download error", &pipeline.DownloadError{URL: "u", Status: 404}, "DOWNLOAD_FAILED"},
		{"timeout", &pipeline.TimeoutError{Op: "merge", Seconds: 300}, "TIMEOUT"},
		{"execution error", &pipeline.ExecutionError{Op: "merge"}, "PROCESSING_ERROR"},
		{"plain error", errors.New("db down"), "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errorCode(tt.err))
		})
	}
}

func TestHandleCleanupFiles(t *testing.T) {
	svc, err := storage.NewService(config.StorageConfig{
		Backend:  "local",
		BasePath: t.TempDir(),
	})
	assert.NoError(t, err)

	h := NewHandler(HandlerConfig{Storage: svc, Logger: zap.NewNop()})
	ctx := context.Background()

	expired, err := svc.Store(ctx, storage.ZoneWorking, "old.mp4", bytes.NewReader([]byte("old")))
	assert.NoError(t, err)
	fresh, err := svc.Store(ctx, storage.ZoneWorking, "new.mp4", bytes.NewReader([]byte("new")))
	assert.NoError(t, err)
	output, err := svc.Store(ctx, storage.ZoneOutput, "out.mp4", bytes.NewReader([]byte("out")))
	assert.NoError(t, err)

	stale := time.Now().Add(-5 * time.Hour)
	assert.NoError(t, os.Chtimes(expired.Path, stale, stale))
	assert.NoError(t, os.Chtimes(output.Path, stale, stale))

	payload, err := json.Marshal(CleanupPayload{
		Zone:      "working",
		OlderThan: int64((4 * time.Hour).Seconds()),
	})
	assert.NoError(t, err)

	err = h.HandleCleanupFiles(ctx, asynq.NewTask(TypeCleanupFiles, payload))
	assert.NoError(t, err)

	exists, err := svc.Exists(ctx, expired.Path)
	assert.NoError(t, err)
	assert.False(t, exists)

	exists, err = svc.Exists(ctx, fresh.Path)
	assert.NoError(t, err)
	assert.True(t, exists)

	// The sweep is scoped to its zone; stale files elsewhere are untouched.
	exists, err = svc.Exists(ctx, output.Path)
	assert.NoError(t, err)
	assert.True(t, exists)
}

func TestExtForMime(t *testing.T) {
	assert.Equal(t, ".mp4", extForMime("video/mp4"))
	assert.Equal(t, ".webm", extForMime("video/webm"))
	assert.Equal(t, ".mp4", extForMime("application/octet-stream"))
}
