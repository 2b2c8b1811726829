package pipeline

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildConcat(t *testing.T) {
	t.Run("rejects fewer than two inputs", func(t *testing.T) {
		_, err := BuildConcat([]StreamInfo{{HasAudio: true}}, 1920, 1080)
		assert.True(t, errors.Is(err, ErrGraphBuild))
	})

	t.Run("all inputs have audio", func(t *testing.T) {
		infos := []StreamInfo{{HasAudio: true}, {HasAudio: true}}
		plan, err := BuildConcat(infos, 1920, 1080)
		assert.NoError(t, err)

		// Two video chains, two audio chains, one concat node.
		assert.Len(t, plan.Segments, 5)
		assert.Equal(t, []string{"[outv]", "[outa]"}, plan.Outputs)

		graph := plan.FilterComplex()
		assert.Contains(t, graph, "concat=n=2:v=1:a=1[outv][outa]")
		assert.Contains(t, graph, "scale=1920:1080:force_original_aspect_ratio=decrease")
		assert.Contains(t, graph, "pad=1920:1080:(ow-iw)/2:(oh-ih)/2:black")
		assert.Contains(t, graph, "[0:a]aformat=sample_fmts=fltp:sample_rates=44100:channel_layouts=stereo[a0]")
		assert.NotContains(t, graph, "anullsrc")
	})

	t.Run("no input has audio", func(t *testing.T) {
		infos := []StreamInfo{{}, {}, {}}
		plan, err := BuildConcat(infos, 1080, 1920)
		assert.NoError(t, err)

		// Three video chains plus the concat node, no audio at all.
		assert.Len(t, plan.Segments, 4)
		assert.Equal(t, []string{"[outv]"}, plan.Outputs)

		graph := plan.FilterComplex()
		assert.Contains(t, graph, "concat=n=3:v=1:a=0[outv]")
		assert.NotContains(t, graph, "[outa]")
		assert.NotContains(t, graph, "anullsrc")
	})

	t.Run("mixed audio synthesizes silence", func(t *testing.T) {
		infos := []StreamInfo{{}, {HasAudio: true}, {}}
		plan, err := BuildConcat(infos, 1920, 1080)
		assert.NoError(t, err)
		assert.Equal(t, []string{"[outv]", "[outa]"}, plan.Outputs)

		graph := plan.FilterComplex()
		assert.Contains(t, graph, "anullsrc=r=44100:cl=stereo[a0]")
		assert.Contains(t, graph, "[1:a]aformat=sample_fmts=fltp:sample_rates=44100:channel_layouts=stereo[a1]")
		assert.Contains(t, graph, "anullsrc=r=44100:cl=stereo[a2]")
		assert.Contains(t, graph, "concat=n=3:v=1:a=1[outv][outa]")
	})

	t.Run("video labels feed concat in order", func(t *testing.T) {
		infos := []StreamInfo{{HasAudio: true}, {HasAudio: true}}
		plan, err := BuildConcat(infos, 1920, 1080)
		assert.NoError(t, err)

		last := plan.Segments[len(plan.Segments)-1]
		assert.True(t, strings.HasPrefix(last, "[v0][a0][v1][a1]concat="))
	})
}

func TestWatermarkWidth(t *testing.T) {
	tests := []struct {
		name       string
		videoWidth int
		scale      float64
		want       int
	}{
		{"even result unchanged", 1280, 0.1, 128},
		{"odd result rounded up", 1270, 0.05, 64},
		{"default scale on 1080p", 1920, 0.15, 288},
		{"floor at 10px", 40, 0.1, 10},
		{"zero scale floors", 1920, 0, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WatermarkWidth(tt.videoWidth, tt.scale))
		})
	}
}

func TestWatermarkPosition(t *testing.T) {
	tests := []struct {
		position string
		want     string
	}{
		{"top-left", "20:20"},
		{"top-right", "W-w-20:20"},
		{"bottom-left", "20:H-h-20"},
		{"bottom-right", "W-w-20:H-h-20"},
		{"center", "(W-w)/2:(H-h)/2"},
		{"garbage", "W-w-20:H-h-20"},
	}

	for _, tt := range tests {
		t.Run(tt.position, func(t *testing.T) {
			assert.Equal(t, tt.want, watermarkPosition(tt.position, 20))
		})
	}
}

func TestBuildOverlay(t *testing.T) {
	t.Run("overlay mode letterboxes to full frame", func(t *testing.T) {
		plan := BuildOverlay(WatermarkModeOverlay, 1920, 1080, 0.15, 0.8, 20, "bottom-right")
		graph := plan.FilterComplex()

		assert.Contains(t, graph, "scale=1920:1080:force_original_aspect_ratio=decrease")
		assert.Contains(t, graph, "pad=1920:1080:(ow-iw)/2:(oh-ih)/2:color=black@0.0")
		assert.Contains(t, graph, "colorchannelmixer=aa=0.8")
		assert.Contains(t, graph, "overlay=0:0:format=auto")
		assert.Equal(t, []string{"[vout]"}, plan.Outputs)
	})

	t.Run("watermark mode scales and anchors", func(t *testing.T) {
		plan := BuildOverlay(WatermarkModeWatermark, 1920, 1080, 0.15, 0.5, 20, "top-left")
		graph := plan.FilterComplex()

		assert.Contains(t, graph, "scale=288:-2")
		assert.Contains(t, graph, "colorchannelmixer=aa=0.5")
		assert.Contains(t, graph, "overlay=20:20:format=auto")
		assert.Equal(t, []string{"[vout]"}, plan.Outputs)
	})
}

func TestReplacementFitFilter(t *testing.T) {
	tests := []struct {
		name           string
		fitMode        string
		replacementDur float64
		segmentDur     float64
		want           string
	}{
		{"stretch slows a short clip", FitModeStretch, 2, 4, "setpts=2*PTS"},
		{"stretch speeds a long clip", FitModeStretch, 10, 5, "setpts=0.5*PTS"},
		{"loop repeats a short clip", FitModeLoop, 2, 5, "loop=loop=3:size=999999,trim=duration=5,setpts=PTS-STARTPTS"},
		{"loop trims a long clip", FitModeLoop, 6, 5, "trim=duration=5,setpts=PTS-STARTPTS"},
		{"trim cuts a long clip", FitModeTrim, 8, 5, "trim=duration=5,setpts=PTS-STARTPTS"},
		{"trim keeps a short clip", FitModeTrim, 3, 5, "setpts=PTS-STARTPTS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, replacementFitFilter(tt.fitMode, tt.replacementDur, tt.segmentDur))
		})
	}
}

func TestBuildSegmentReplace(t *testing.T) {
	t.Run("middle segment produces three pieces", func(t *testing.T) {
		plan := BuildSegmentReplace(2, 5, 10, 3, FitModeTrim, AudioModeKeepBase)
		graph := plan.FilterComplex()

		assert.Contains(t, graph, "[0:v]trim=0:2,setpts=PTS-STARTPTS[v_before]")
		assert.Contains(t, graph, "[v_replace]")
		assert.Contains(t, graph, "[0:v]trim=5:10,setpts=PTS-STARTPTS[v_after]")
		assert.Contains(t, graph, "[v_before][v_replace][v_after]concat=n=3:v=1:a=0[outv]")
		assert.Contains(t, graph, "[0:a]acopy[outa]")
		assert.Equal(t, []string{"[outv]", "[outa]"}, plan.Outputs)
	})

	t.Run("segment at start omits before piece", func(t *testing.T) {
		plan := BuildSegmentReplace(0, 5, 10, 3, FitModeTrim, AudioModeKeepBase)
		graph := plan.FilterComplex()

		assert.NotContains(t, graph, "[v_before]")
		assert.Contains(t, graph, "concat=n=2:v=1:a=0[outv]")
	})

	t.Run("segment at end omits after piece", func(t *testing.T) {
		plan := BuildSegmentReplace(2, 10, 10, 3, FitModeTrim, AudioModeKeepBase)
		graph := plan.FilterComplex()

		assert.NotContains(t, graph, "[v_after]")
		assert.Contains(t, graph, "concat=n=2:v=1:a=0[outv]")
	})

	t.Run("keep replacement audio", func(t *testing.T) {
		plan := BuildSegmentReplace(2, 5, 10, 3, FitModeTrim, AudioModeKeepReplacement)
		assert.Contains(t, plan.FilterComplex(), "[1:a]asetpts=PTS-STARTPTS[outa]")
	})

	t.Run("mix weights toward longer base", func(t *testing.T) {
		plan := BuildSegmentReplace(2, 5, 10, 3, FitModeTrim, AudioModeMix)
		assert.Contains(t, plan.FilterComplex(), "amix=inputs=2:duration=longest:weights=2 1[outa]")
	})

	t.Run("mix weights toward longer replacement", func(t *testing.T) {
		plan := BuildSegmentReplace(2, 5, 10, 20, FitModeTrim, AudioModeMix)
		assert.Contains(t, plan.FilterComplex(), "amix=inputs=2:duration=longest:weights=1 2[outa]")
	})
}
