package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/genmedia/backend/internal/api/middleware"
	"github.com/genmedia/backend/internal/modules/pipeline"
)

// VideoHandler handles synchronous video processing endpoints
type VideoHandler struct {
	pipeline *pipeline.Service
	logger   *zap.Logger
}

// NewVideoHandler creates a new video handler
func NewVideoHandler(svc *pipeline.Service, logger *zap.Logger) *VideoHandler {
	return &VideoHandler{
		pipeline: svc,
		logger:   logger,
	}
}

// MergeVideosRequest merges an ordered list of clips. URLs are preferred
// for large files; base64 is used when URLs are absent.
type MergeVideosRequest struct {
	VideosBase64 []string `json:"videos_base64,omitempty"`
	VideoURLs    []string `json:"video_urls,omitempty"`
	AspectRatio  string   `json:"aspect_ratio,omitempty"`
	TrimSilence  bool     `json:"trim_silence,omitempty"`
}

// ToPipeline converts the wire request into a pipeline request
func (r *MergeVideosRequest) ToPipeline() (pipeline.MergeRequest, error) {
	var inputs []pipeline.MediaInput
	switch {
	case len(r.VideoURLs) > 0:
		for _, url := range r.VideoURLs {
			inputs = append(inputs, pipeline.MediaInput{URL: url})
		}
	case len(r.VideosBase64) > 0:
		for _, b64 := range r.VideosBase64 {
			inputs = append(inputs, pipeline.MediaInput{Base64: b64})
		}
	default:
		return pipeline.MergeRequest{}, pipeline.NewInputError("either videos_base64 or video_urls must be provided")
	}

	aspect := r.AspectRatio
	if aspect == "" {
		aspect = "16:9"
	}

	return pipeline.MergeRequest{
		Inputs:      inputs,
		AspectRatio: aspect,
		TrimSilence: r.TrimSilence,
	}, nil
}

// VideoResponse carries a processed video back inline
type VideoResponse struct {
	VideoBase64 string `json:"video_base64"`
	MimeType    string `json:"mime_type"`
}

// Merge concatenates videos into a single clip
func (h *VideoHandler) Merge(w http.ResponseWriter, r *http.Request) {
	var req MergeVideosRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid request body")
		return
	}

	preq, err := req.ToPipeline()
	if err != nil {
		writePipelineError(w, h.logger, "merge", err)
		return
	}

	h.logUser(r, "Merge videos request",
		zap.Int("count", len(preq.Inputs)),
		zap.Bool("trim_silence", preq.TrimSilence),
	)

	payload, err := h.pipeline.Merge(r.Context(), preq)
	if err != nil {
		writePipelineError(w, h.logger, "merge", err)
		return
	}

	writeJSON(w, http.StatusOK, VideoResponse{
		VideoBase64: payload.Base64,
		MimeType:    payload.MimeType,
	})
}

// FilterConfig is one filter in an apply-filters chain
type FilterConfig struct {
	Type   string                 `json:"type"`
	Params map[string]interface{} `json:"params"`
}

// ApplyFiltersRequest applies a filter chain to a video
type ApplyFiltersRequest struct {
	VideoBase64 string         `json:"video_base64,omitempty"`
	VideoURL    string         `json:"video_url,omitempty"`
	Filters     []FilterConfig `json:"filters"`
}

// ToPipeline converts the wire request into a pipeline request
func (r *ApplyFiltersRequest) ToPipeline() (pipeline.ApplyFiltersRequest, error) {
	input, err := singleInput(r.VideoBase64, r.VideoURL, "video_base64 or video_url")
	if err != nil {
		return pipeline.ApplyFiltersRequest{}, err
	}

	filters := make([]pipeline.FilterSpec, len(r.Filters))
	for i, f := range r.Filters {
		filters[i] = pipeline.FilterSpec{Type: f.Type, Params: f.Params}
	}

	return pipeline.ApplyFiltersRequest{
		Input:   input,
		Filters: filters,
	}, nil
}

// ApplyFilters runs a filter chain over a video
func (h *VideoHandler) ApplyFilters(w http.ResponseWriter, r *http.Request) {
	var req ApplyFiltersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid request body")
		return
	}

	preq, err := req.ToPipeline()
	if err != nil {
		writePipelineError(w, h.logger, "apply_filters", err)
		return
	}

	h.logUser(r, "Apply filters request", zap.Int("filters", len(preq.Filters)))

	payload, err := h.pipeline.ApplyFilters(r.Context(), preq)
	if err != nil {
		writePipelineError(w, h.logger, "apply_filters", err)
		return
	}

	writeJSON(w, http.StatusOK, VideoResponse{
		VideoBase64: payload.Base64,
		MimeType:    payload.MimeType,
	})
}

// AddMusicRequest mixes a music track into a video
type AddMusicRequest struct {
	VideoBase64    string `json:"video_base64,omitempty"`
	VideoURL       string `json:"video_url,omitempty"`
	AudioBase64    string `json:"audio_base64,omitempty"`
	AudioURL       string `json:"audio_url,omitempty"`
	MusicVolume    *int   `json:"music_volume,omitempty"`    // 0-100, default 50
	OriginalVolume *int   `json:"original_volume,omitempty"` // 0-100, default 100
}

// ToPipeline converts the wire request into a pipeline request
func (r *AddMusicRequest) ToPipeline() (pipeline.AddMusicRequest, error) {
	video, err := singleInput(r.VideoBase64, r.VideoURL, "video_base64 or video_url")
	if err != nil {
		return pipeline.AddMusicRequest{}, err
	}
	audio, err := singleInput(r.AudioBase64, r.AudioURL, "audio_base64 or audio_url")
	if err != nil {
		return pipeline.AddMusicRequest{}, err
	}

	return pipeline.AddMusicRequest{
		Video:          video,
		Audio:          audio,
		MusicVolume:    intOrDefault(r.MusicVolume, 50),
		OriginalVolume: intOrDefault(r.OriginalVolume, 100),
	}, nil
}

// AddMusic mixes or substitutes the audio track of a video
func (h *VideoHandler) AddMusic(w http.ResponseWriter, r *http.Request) {
	var req AddMusicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid request body")
		return
	}

	preq, err := req.ToPipeline()
	if err != nil {
		writePipelineError(w, h.logger, "add_music", err)
		return
	}

	h.logUser(r, "Add music request",
		zap.Int("music_volume", preq.MusicVolume),
		zap.Int("original_volume", preq.OriginalVolume),
	)

	payload, err := h.pipeline.AddMusic(r.Context(), preq)
	if err != nil {
		writePipelineError(w, h.logger, "add_music", err)
		return
	}

	writeJSON(w, http.StatusOK, VideoResponse{
		VideoBase64: payload.Base64,
		MimeType:    payload.MimeType,
	})
}

// AddWatermarkRequest composites an image over a video
type AddWatermarkRequest struct {
	VideoBase64     string   `json:"video_base64,omitempty"`
	VideoURL        string   `json:"video_url,omitempty"`
	WatermarkBase64 string   `json:"watermark_base64,omitempty"`
	WatermarkURL    string   `json:"watermark_url,omitempty"`
	Position        string   `json:"position,omitempty"` // default bottom-right
	Opacity         *float64 `json:"opacity,omitempty"`  // 0.0-1.0, default 1.0
	Scale           *float64 `json:"scale,omitempty"`    // fraction of video width, default 0.15
	Margin          *int     `json:"margin,omitempty"`   // pixels, default 20
	Mode            string   `json:"mode,omitempty"`     // watermark or overlay
}

// ToPipeline converts the wire request into a pipeline request
func (r *AddWatermarkRequest) ToPipeline() (pipeline.AddWatermarkRequest, error) {
	video, err := singleInput(r.VideoBase64, r.VideoURL, "video_base64 or video_url")
	if err != nil {
		return pipeline.AddWatermarkRequest{}, err
	}
	image, err := singleInput(r.WatermarkBase64, r.WatermarkURL, "watermark_base64 or watermark_url")
	if err != nil {
		return pipeline.AddWatermarkRequest{}, err
	}

	position := r.Position
	if position == "" {
		position = "bottom-right"
	}
	mode := r.Mode
	if mode == "" {
		mode = pipeline.WatermarkModeWatermark
	}

	return pipeline.AddWatermarkRequest{
		Video:    video,
		Image:    image,
		Position: position,
		Opacity:  floatOrDefault(r.Opacity, 1.0),
		Scale:    floatOrDefault(r.Scale, 0.15),
		Margin:   intOrDefault(r.Margin, 20),
		Mode:     mode,
	}, nil
}

// AddWatermark composites a logo or full-frame overlay onto a video
func (h *VideoHandler) AddWatermark(w http.ResponseWriter, r *http.Request) {
	var req AddWatermarkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid request body")
		return
	}

	preq, err := req.ToPipeline()
	if err != nil {
		writePipelineError(w, h.logger, "add_watermark", err)
		return
	}

	h.logUser(r, "Add watermark request",
		zap.String("position", preq.Position),
		zap.Float64("opacity", preq.Opacity),
		zap.String("mode", preq.Mode),
	)

	payload, err := h.pipeline.AddWatermark(r.Context(), preq)
	if err != nil {
		writePipelineError(w, h.logger, "add_watermark", err)
		return
	}

	writeJSON(w, http.StatusOK, VideoResponse{
		VideoBase64: payload.Base64,
		MimeType:    payload.MimeType,
	})
}

// SegmentReplaceRequest swaps a time range of a base video for another clip
type SegmentReplaceRequest struct {
	BaseVideoBase64        string  `json:"base_video_base64,omitempty"`
	BaseVideoURL           string  `json:"base_video_url,omitempty"`
	ReplacementVideoBase64 string  `json:"replacement_video_base64,omitempty"`
	ReplacementVideoURL    string  `json:"replacement_video_url,omitempty"`
	StartTime              float64 `json:"start_time"`
	EndTime                float64 `json:"end_time"`
	AudioMode              string  `json:"audio_mode,omitempty"` // keep_base, keep_replacement, mix
	FitMode                string  `json:"fit_mode,omitempty"`   // stretch, trim, loop
}

// ToPipeline converts the wire request into a pipeline request
func (r *SegmentReplaceRequest) ToPipeline() (pipeline.SegmentReplaceRequest, error) {
	base, err := singleInput(r.BaseVideoBase64, r.BaseVideoURL, "base_video_base64 or base_video_url")
	if err != nil {
		return pipeline.SegmentReplaceRequest{}, err
	}
	replacement, err := singleInput(r.ReplacementVideoBase64, r.ReplacementVideoURL, "replacement_video_base64 or replacement_video_url")
	if err != nil {
		return pipeline.SegmentReplaceRequest{}, err
	}

	audioMode := r.AudioMode
	if audioMode == "" {
		audioMode = pipeline.AudioModeKeepBase
	}
	fitMode := r.FitMode
	if fitMode == "" {
		fitMode = pipeline.FitModeTrim
	}

	return pipeline.SegmentReplaceRequest{
		Base:        base,
		Replacement: replacement,
		Start:       r.StartTime,
		End:         r.EndTime,
		AudioMode:   audioMode,
		FitMode:     fitMode,
	}, nil
}

// SegmentReplaceResponse carries the spliced video and its new duration
type SegmentReplaceResponse struct {
	VideoBase64 string  `json:"video_base64"`
	MimeType    string  `json:"mime_type"`
	Duration    float64 `json:"duration"`
}

// SegmentReplace splices a replacement clip into a base video
func (h *VideoHandler) SegmentReplace(w http.ResponseWriter, r *http.Request) {
	var req SegmentReplaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid request body")
		return
	}

	preq, err := req.ToPipeline()
	if err != nil {
		writePipelineError(w, h.logger, "segment_replace", err)
		return
	}

	h.logUser(r, "Segment replace request",
		zap.Float64("start", preq.Start),
		zap.Float64("end", preq.End),
		zap.String("audio_mode", preq.AudioMode),
	)

	result, err := h.pipeline.SegmentReplace(r.Context(), preq)
	if err != nil {
		writePipelineError(w, h.logger, "segment_replace", err)
		return
	}

	writeJSON(w, http.StatusOK, SegmentReplaceResponse{
		VideoBase64: result.Payload.Base64,
		MimeType:    result.Payload.MimeType,
		Duration:    result.Duration,
	})
}

// ProbeRequest inspects a video without processing it
type ProbeRequest struct {
	VideoBase64 string `json:"video_base64,omitempty"`
	VideoURL    string `json:"video_url,omitempty"`
}

// ProbeResponse summarizes the streams of a media file
type ProbeResponse struct {
	Duration  float64 `json:"duration"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	HasAudio  bool    `json:"has_audio"`
	CodecName string  `json:"codec_name,omitempty"`
}

// Probe returns stream information for a video
func (h *VideoHandler) Probe(w http.ResponseWriter, r *http.Request) {
	var req ProbeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid request body")
		return
	}

	input, err := singleInput(req.VideoBase64, req.VideoURL, "video_base64 or video_url")
	if err != nil {
		writePipelineError(w, h.logger, "probe", err)
		return
	}

	info, err := h.pipeline.ProbeInput(r.Context(), input, pipeline.KindVideo)
	if err != nil {
		writePipelineError(w, h.logger, "probe", err)
		return
	}

	writeJSON(w, http.StatusOK, ProbeResponse{
		Duration:  info.Duration,
		Width:     info.Width,
		Height:    info.Height,
		HasAudio:  info.HasAudio,
		CodecName: info.CodecName,
	})
}

func (h *VideoHandler) logUser(r *http.Request, msg string, fields ...zap.Field) {
	if user := middleware.GetUser(r.Context()); user != nil {
		fields = append(fields, zap.String("user_id", user.ID))
	}
	h.logger.Info(msg, fields...)
}

func singleInput(b64, url, what string) (pipeline.MediaInput, error) {
	switch {
	case url != "":
		return pipeline.MediaInput{URL: url}, nil
	case b64 != "":
		return pipeline.MediaInput{Base64: b64}, nil
	default:
		return pipeline.MediaInput{}, pipeline.NewInputError("either %s must be provided", what)
	}
}

func intOrDefault(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func floatOrDefault(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}
