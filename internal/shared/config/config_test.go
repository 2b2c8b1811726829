package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	assert.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "ffmpeg", cfg.FFmpegPath)
	assert.Equal(t, "ffprobe", cfg.FFprobePath)
	assert.Equal(t, 300, cfg.MergeTimeout)
	assert.Equal(t, 25, cfg.MergeMaxClips)
	assert.Equal(t, 2, cfg.PipelineParallel)
	assert.Equal(t, "local", cfg.Storage.Backend)
	assert.Equal(t, int64(200*1024*1024), cfg.MaxRequestBody)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("MERGE_MAX_CLIPS", "10")
	t.Setenv("ALLOWED_EMAILS", "a@example.com, b@example.com")
	t.Setenv("STORAGE_BACKEND", "s3")
	t.Setenv("S3_BUCKET", "genmedia")

	cfg, err := Load()
	assert.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, 10, cfg.MergeMaxClips)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, cfg.AllowedEmails)
	assert.Equal(t, "s3", cfg.Storage.Backend)
	assert.Equal(t, "genmedia", cfg.Storage.S3Bucket)
}

func TestLoadIgnoresMalformedInt(t *testing.T) {
	t.Setenv("PORT", "not-a-number")

	cfg, err := Load()
	assert.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  []string
	}{
		{"empty", "", nil},
		{"single", "a@example.com", []string{"a@example.com"}},
		{"trims whitespace", " a@example.com , b@example.com ", []string{"a@example.com", "b@example.com"}},
		{"drops empty entries", "a@example.com,,b@example.com,", []string{"a@example.com", "b@example.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, splitList(tt.value))
		})
	}
}
