package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSilenceWindows(t *testing.T) {
	t.Run("matched pairs", func(t *testing.T) {
		diag := `[silencedetect @ 0x55] silence_start: 1.5
[silencedetect @ 0x55] silence_end: 2.75 | silence_duration: 1.25
[silencedetect @ 0x55] silence_start: 8.0
[silencedetect @ 0x55] silence_end: 9.9 | silence_duration: 1.9`

		windows := ParseSilenceWindows(diag)
		assert.Len(t, windows, 2)
		assert.Equal(t, SilenceWindow{Start: 1.5, End: 2.75}, windows[0])
		assert.Equal(t, SilenceWindow{Start: 8.0, End: 9.9}, windows[1])
	})

	t.Run("trailing start without end is open-ended", func(t *testing.T) {
		diag := `[silencedetect @ 0x55] silence_start: 1.0
[silencedetect @ 0x55] silence_end: 2.0 | silence_duration: 1.0
[silencedetect @ 0x55] silence_start: 9.25`

		windows := ParseSilenceWindows(diag)
		assert.Len(t, windows, 2)
		assert.True(t, windows[1].OpenEnded())
		assert.Equal(t, 9.25, windows[1].Start)
	})

	t.Run("no markers", func(t *testing.T) {
		assert.Empty(t, ParseSilenceWindows("frame=100 fps=30 time=00:00:03.33"))
	})

	t.Run("markers survive a late engine error", func(t *testing.T) {
		diag := `[silencedetect @ 0x55] silence_start: 7.5
[silencedetect @ 0x55] silence_end: 9.9 | silence_duration: 2.4
[mp3 @ 0x60] Error while decoding stream #0:1: Invalid data found when processing input`

		windows := ParseSilenceWindows(diag)
		assert.Len(t, windows, 1)

		point, ok := TrailingTrimPoint(windows, 10)
		assert.True(t, ok)
		assert.Equal(t, 7.5, point)
	})
}

func TestTrailingTrimPoint(t *testing.T) {
	tests := []struct {
		name      string
		windows   []SilenceWindow
		duration  float64
		wantPoint float64
		wantOK    bool
	}{
		{
			name:   "no windows",
			wantOK: false,
		},
		{
			name:      "open-ended last window trims at its start",
			windows:   []SilenceWindow{{Start: 9.25, End: -1}},
			duration:  12,
			wantPoint: 9.25,
			wantOK:    true,
		},
		{
			name:      "closed window ending near duration trims",
			windows:   []SilenceWindow{{Start: 8, End: 9.8}},
			duration:  10,
			wantPoint: 8,
			wantOK:    true,
		},
		{
			name:     "closed window ending mid-media does not trim",
			windows:  []SilenceWindow{{Start: 2, End: 4}},
			duration: 10,
			wantOK:   false,
		},
		{
			name:      "only the last window matters",
			windows:   []SilenceWindow{{Start: 1, End: 2}, {Start: 8.5, End: 9.9}},
			duration:  10,
			wantPoint: 8.5,
			wantOK:    true,
		},
		{
			name:     "earlier trailing window masked by a later mid-media one",
			windows:  []SilenceWindow{{Start: 8.5, End: 9.9}, {Start: 3, End: 4}},
			duration: 10,
			wantOK:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			point, ok := TrailingTrimPoint(tt.windows, tt.duration)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantPoint, point)
			}
		})
	}
}
