package library

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveTypeMeta(t *testing.T) {
	tests := []struct {
		name      string
		assetType string
		mimeType  string
		wantExt   string
		wantMime  string
	}{
		{"image defaults to png", TypeImage, "", ".png", "image/png"},
		{"explicit png mime", TypeImage, "image/png", ".png", "image/png"},
		{"jpeg gets jpg extension", TypeImage, "image/jpeg", ".jpg", "image/jpeg"},
		{"video defaults to mp4", TypeVideo, "", ".mp4", "video/mp4"},
		{"video keeps explicit mime", TypeVideo, "video/webm", ".mp4", "video/webm"},
		{"audio defaults to mpeg", TypeAudio, "", ".mp3", "audio/mpeg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ext, mime, err := resolveTypeMeta(tt.assetType, tt.mimeType)
			assert.NoError(t, err)
			assert.Equal(t, tt.wantExt, ext)
			assert.Equal(t, tt.wantMime, mime)
		})
	}

	t.Run("unknown type rejected", func(t *testing.T) {
		_, _, err := resolveTypeMeta("document", "")
		var invalidType *InvalidTypeError
		assert.True(t, errors.As(err, &invalidType))
		assert.Equal(t, "document", invalidType.Type)
	})
}

func TestNullIfEmpty(t *testing.T) {
	assert.Nil(t, nullIfEmpty(""))

	v := nullIfEmpty("a sunset over the ocean")
	assert.NotNil(t, v)
	assert.Equal(t, "a sunset over the ocean", *v)
}
