package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestWorkdir(t *testing.T) {
	wd, err := NewWorkdir(zap.NewNop())
	assert.NoError(t, err)

	path, err := wd.WriteFile("input.mp4", []byte("fake media"))
	assert.NoError(t, err)
	assert.Equal(t, wd.Path("input.mp4"), path)

	data, err := os.ReadFile(path)
	assert.NoError(t, err)
	assert.Equal(t, []byte("fake media"), data)

	wd.Cleanup()
	_, err = os.Stat(filepath.Dir(path))
	assert.True(t, os.IsNotExist(err))
}

func TestResolutionForAspect(t *testing.T) {
	tests := []struct {
		aspect string
		wantW  int
		wantH  int
	}{
		{"16:9", 1920, 1080},
		{"9:16", 1080, 1920},
		{"1:1", 1080, 1080},
		{"4:3", 1440, 1080},
		{"4:5", 1080, 1350},
		{"", 1920, 1080},
		{"21:9", 1920, 1080},
	}

	for _, tt := range tests {
		t.Run(tt.aspect, func(t *testing.T) {
			w, h := ResolutionForAspect(tt.aspect)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
		})
	}
}

func TestFilterGraphPlan(t *testing.T) {
	plan := FilterGraphPlan{
		Segments: []string{"[0:v]scale=100:100[v0]", "[v0]fps=30[outv]"},
		Outputs:  []string{"[outv]", "[outa]"},
	}

	assert.Equal(t, "[0:v]scale=100:100[v0];[v0]fps=30[outv]", plan.FilterComplex())
	assert.Equal(t, []string{"-map", "[outv]", "-map", "[outa]"}, plan.MapArgs())
}
