package handlers

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/genmedia/backend/internal/modules/pipeline"
)

func TestMergeVideosRequestToPipeline(t *testing.T) {
	t.Run("urls preferred over base64", func(t *testing.T) {
		req := MergeVideosRequest{
			VideosBase64: []string{"aaa", "bbb"},
			VideoURLs:    []string{"https://cdn.example.com/a.mp4", "https://cdn.example.com/b.mp4"},
		}

		preq, err := req.ToPipeline()
		assert.NoError(t, err)
		assert.Len(t, preq.Inputs, 2)
		assert.Equal(t, "https://cdn.example.com/a.mp4", preq.Inputs[0].URL)
		assert.Empty(t, preq.Inputs[0].Base64)
	})

	t.Run("base64 when no urls", func(t *testing.T) {
		req := MergeVideosRequest{VideosBase64: []string{"aaa", "bbb"}, TrimSilence: true}

		preq, err := req.ToPipeline()
		assert.NoError(t, err)
		assert.Len(t, preq.Inputs, 2)
		assert.Equal(t, "aaa", preq.Inputs[0].Base64)
		assert.True(t, preq.TrimSilence)
	})

	t.Run("aspect ratio defaults to 16:9", func(t *testing.T) {
		req := MergeVideosRequest{VideosBase64: []string{"aaa", "bbb"}}
		preq, err := req.ToPipeline()
		assert.NoError(t, err)
		assert.Equal(t, "16:9", preq.AspectRatio)
	})

	t.Run("explicit aspect ratio kept", func(t *testing.T) {
		req := MergeVideosRequest{VideosBase64: []string{"aaa", "bbb"}, AspectRatio: "9:16"}
		preq, err := req.ToPipeline()
		assert.NoError(t, err)
		assert.Equal(t, "9:16", preq.AspectRatio)
	})

	t.Run("no inputs rejected", func(t *testing.T) {
		req := MergeVideosRequest{}
		_, err := req.ToPipeline()
		var inputErr *pipeline.InputError
		assert.True(t, errors.As(err, &inputErr))
	})
}

func TestApplyFiltersRequestToPipeline(t *testing.T) {
	req := ApplyFiltersRequest{
		VideoBase64: "aaa",
		Filters: []FilterConfig{
			{Type: "brightness", Params: map[string]interface{}{"brightness": 0.2}},
			{Type: "blur", Params: map[string]interface{}{"strength": 3.0}},
		},
	}

	preq, err := req.ToPipeline()
	assert.NoError(t, err)
	assert.Equal(t, "aaa", preq.Input.Base64)
	assert.Len(t, preq.Filters, 2)
	assert.Equal(t, "brightness", preq.Filters[0].Type)
	assert.Equal(t, 0.2, preq.Filters[0].Params["brightness"])
}

func TestAddMusicRequestToPipeline(t *testing.T) {
	t.Run("volume defaults", func(t *testing.T) {
		req := AddMusicRequest{VideoBase64: "vvv", AudioURL: "https://cdn.example.com/track.mp3"}

		preq, err := req.ToPipeline()
		assert.NoError(t, err)
		assert.Equal(t, 50, preq.MusicVolume)
		assert.Equal(t, 100, preq.OriginalVolume)
		assert.Equal(t, "https://cdn.example.com/track.mp3", preq.Audio.URL)
	})

	t.Run("explicit zero volume is honored", func(t *testing.T) {
		zero := 0
		req := AddMusicRequest{VideoBase64: "vvv", AudioBase64: "mmm", OriginalVolume: &zero}

		preq, err := req.ToPipeline()
		assert.NoError(t, err)
		assert.Equal(t, 0, preq.OriginalVolume)
		assert.Equal(t, 50, preq.MusicVolume)
	})

	t.Run("missing audio rejected", func(t *testing.T) {
		req := AddMusicRequest{VideoBase64: "vvv"}
		_, err := req.ToPipeline()
		var inputErr *pipeline.InputError
		assert.True(t, errors.As(err, &inputErr))
	})
}

func TestAddWatermarkRequestToPipeline(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		req := AddWatermarkRequest{VideoBase64: "vvv", WatermarkBase64: "www"}

		preq, err := req.ToPipeline()
		assert.NoError(t, err)
		assert.Equal(t, "bottom-right", preq.Position)
		assert.Equal(t, 1.0, preq.Opacity)
		assert.Equal(t, 0.15, preq.Scale)
		assert.Equal(t, 20, preq.Margin)
		assert.Equal(t, pipeline.WatermarkModeWatermark, preq.Mode)
	})

	t.Run("explicit values kept", func(t *testing.T) {
		opacity := 0.4
		scale := 0.3
		margin := 0
		req := AddWatermarkRequest{
			VideoBase64:     "vvv",
			WatermarkBase64: "www",
			Position:        "center",
			Opacity:         &opacity,
			Scale:           &scale,
			Margin:          &margin,
			Mode:            pipeline.WatermarkModeOverlay,
		}

		preq, err := req.ToPipeline()
		assert.NoError(t, err)
		assert.Equal(t, "center", preq.Position)
		assert.Equal(t, 0.4, preq.Opacity)
		assert.Equal(t, 0.3, preq.Scale)
		assert.Equal(t, 0, preq.Margin)
		assert.Equal(t, pipeline.WatermarkModeOverlay, preq.Mode)
	})
}

func TestSegmentReplaceRequestToPipeline(t *testing.T) {
	t.Run("mode defaults", func(t *testing.T) {
		req := SegmentReplaceRequest{
			BaseVideoBase64:        "bbb",
			ReplacementVideoBase64: "rrr",
			StartTime:              2,
			EndTime:                5,
		}

		preq, err := req.ToPipeline()
		assert.NoError(t, err)
		assert.Equal(t, pipeline.AudioModeKeepBase, preq.AudioMode)
		assert.Equal(t, pipeline.FitModeTrim, preq.FitMode)
		assert.Equal(t, 2.0, preq.Start)
		assert.Equal(t, 5.0, preq.End)
	})

	t.Run("missing replacement rejected", func(t *testing.T) {
		req := SegmentReplaceRequest{BaseVideoBase64: "bbb", StartTime: 0, EndTime: 5}
		_, err := req.ToPipeline()
		var inputErr *pipeline.InputError
		assert.True(t, errors.As(err, &inputErr))
	})
}

func TestSegmentReplaceRequestWireNames(t *testing.T) {
	raw := `{
		"base_video_url": "https://cdn.example.com/base.mp4",
		"replacement_video_url": "https://cdn.example.com/new.mp4",
		"start_time": 1.5,
		"end_time": 4.25,
		"audio_mode": "mix",
		"fit_mode": "loop"
	}`

	var req SegmentReplaceRequest
	assert.NoError(t, json.Unmarshal([]byte(raw), &req))

	preq, err := req.ToPipeline()
	assert.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/base.mp4", preq.Base.URL)
	assert.Equal(t, 1.5, preq.Start)
	assert.Equal(t, 4.25, preq.End)
	assert.Equal(t, pipeline.AudioModeMix, preq.AudioMode)
	assert.Equal(t, pipeline.FitModeLoop, preq.FitMode)
}
