package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractDiagnostic(t *testing.T) {
	tests := []struct {
		name   string
		stderr string
		want   string
	}{
		{
			name:   "single error line",
			stderr: "frame=10 fps=30\nError opening input file missing.mp4",
			want:   "Error opening input file missing.mp4",
		},
		{
			name: "last three keyword lines joined",
			stderr: `Invalid data found when processing input
something failed here
Unable to find a suitable output format
Cannot allocate memory
No such file or directory`,
			want: "Unable to find a suitable output format; Cannot allocate memory; No such file or directory",
		},
		{
			name:   "keyword match is case-insensitive",
			stderr: "frame=10\nINVALID ARGUMENT in filter graph",
			want:   "INVALID ARGUMENT in filter graph",
		},
		{
			name:   "no keywords falls back to non-indented lines",
			stderr: "ffmpeg version 6.0\n  built with gcc\n  configuration: --enable-gpl\nStream mapping:",
			want:   "ffmpeg version 6.0; Stream mapping:",
		},
		{
			name:   "empty stream",
			stderr: "",
			want:   "unknown engine error",
		},
		{
			name:   "whitespace only",
			stderr: "   \n  \n",
			want:   "unknown engine error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractDiagnostic(tt.stderr))
		})
	}
}

func TestLastN(t *testing.T) {
	assert.Equal(t, []string{"b", "c", "d"}, lastN([]string{"a", "b", "c", "d"}, 3))
	assert.Equal(t, []string{"a", "b"}, lastN([]string{"a", "b"}, 3))
	assert.Empty(t, lastN(nil, 3))
}
