package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/genmedia/backend/internal/shared/metrics"
	"go.uber.org/zap"
)

// Service composes the pipeline stages into the five post-processing
// operations. Each request gets a private workdir; steps within one request
// are strictly sequential, requests share nothing but the pooled HTTP
// client and the runner's concurrency budget.
type Service struct {
	resolver *Resolver
	prober   *Prober
	silence  *SilenceDetector
	runner   *Runner
	metrics  *metrics.Metrics
	logger   *zap.Logger

	maxMergeClips int
	mergeTimeout  time.Duration
}

// ServiceConfig configures pipeline behavior.
type ServiceConfig struct {
	FFmpegPath      string
	FFprobePath     string
	MaxMergeClips   int           // default 25
	MaxConcurrent   int64         // simultaneous engine processes, default 2
	DownloadTimeout time.Duration // default 120s
	MergeTimeout    time.Duration // default 300s, merges scale with input count
}

// NewService wires the pipeline stages. The HTTP client is long-lived and
// pooled; metrics may be nil (worker tests).
func NewService(cfg ServiceConfig, client *http.Client, m *metrics.Metrics, logger *zap.Logger) *Service {
	if cfg.MaxMergeClips <= 0 {
		cfg.MaxMergeClips = 25
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 2
	}
	if cfg.MergeTimeout <= 0 {
		cfg.MergeTimeout = 300 * time.Second
	}

	prober := NewProber(cfg.FFprobePath, logger)
	return &Service{
		resolver:      NewResolver(client, cfg.DownloadTimeout, logger),
		prober:        prober,
		silence:       NewSilenceDetector(cfg.FFmpegPath, prober, logger),
		runner:        NewRunner(cfg.FFmpegPath, cfg.MaxConcurrent, m, logger),
		metrics:       m,
		logger:        logger,
		maxMergeClips: cfg.MaxMergeClips,
		mergeTimeout:  cfg.MergeTimeout,
	}
}

// observe records one operation outcome when metrics are wired.
func (s *Service) observe(op string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	s.metrics.PipelineOperationsTotal.WithLabelValues(op, status).Inc()
	s.metrics.PipelineProcessingTime.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// MergeRequest concatenates 2..N clips into one continuous output.
type MergeRequest struct {
	Inputs      []MediaInput
	AspectRatio string
	TrimSilence bool
}

// Merge resolves and probes every clip, optionally trims trailing silence,
// builds the concat graph and executes it.
func (s *Service) Merge(ctx context.Context, req MergeRequest) (payload EncodedPayload, err error) {
	start := time.Now()
	defer func() { s.observe("merge", start, err) }()

	if len(req.Inputs) < 2 {
		return EncodedPayload{}, NewInputError("at least 2 videos required")
	}
	if len(req.Inputs) > s.maxMergeClips {
		return EncodedPayload{}, NewInputError("maximum %d videos allowed", s.maxMergeClips)
	}

	wd, err := NewWorkdir(s.logger)
	if err != nil {
		return EncodedPayload{}, err
	}
	defer wd.Cleanup()

	files := make([]*LocalMediaFile, len(req.Inputs))
	infos := make([]StreamInfo, len(req.Inputs))
	for i, in := range req.Inputs {
		files[i], err = s.resolver.Resolve(ctx, in, KindVideo, wd, fmt.Sprintf("input_%d", i))
		if err != nil {
			return EncodedPayload{}, err
		}
		infos[i] = s.prober.Probe(ctx, files[i])
	}

	if req.TrimSilence {
		s.trimTrailingSilence(ctx, wd, files, infos)
	}

	targetW, targetH := ResolutionForAspect(req.AspectRatio)
	plan, err := BuildConcat(infos, targetW, targetH)
	if err != nil {
		return EncodedPayload{}, err
	}

	outputPath := wd.Path("output.mp4")
	args := []string{"-y"}
	for _, f := range files {
		args = append(args, "-i", f.Path)
	}
	args = append(args, "-filter_complex", plan.FilterComplex())
	args = append(args, plan.MapArgs()...)
	args = append(args,
		"-c:v", "libx264", "-preset", "fast", "-crf", "23",
		"-c:a", "aac", "-b:a", "128k",
		"-movflags", "+faststart",
		outputPath,
	)

	s.logger.Info("Merging clips",
		zap.Int("count", len(files)),
		zap.String("aspect_ratio", req.AspectRatio),
		zap.Bool("trim_silence", req.TrimSilence),
	)

	if err = s.runner.RunWithFallbacks(ctx, "merge", []Command{{Args: args, Timeout: s.mergeTimeout}}); err != nil {
		return EncodedPayload{}, err
	}

	return Finalize(outputPath, "video/mp4")
}

// trimTrailingSilence replaces each clip having detectable trailing silence
// with a stream-copied trim. Trim points at or under 0.5s are treated as
// false positives. Any failure falls back to the original clip.
func (s *Service) trimTrailingSilence(ctx context.Context, wd *Workdir, files []*LocalMediaFile, infos []StreamInfo) {
	for i, f := range files {
		point, ok := s.silence.DetectTrailing(ctx, f, infos[i])
		if !ok || point <= 0.5 {
			continue
		}

		trimmedPath := wd.Path(fmt.Sprintf("trimmed_%d.mp4", i))
		args := []string{
			"-y", "-i", f.Path,
			"-t", fmt.Sprintf("%g", point),
			"-c:v", "copy", "-c:a", "copy",
			trimmedPath,
		}
		res, err := s.runner.Run(ctx, "trim-silence", Command{Args: args})
		if err != nil || !res.Success {
			s.logger.Warn("Silence trim failed, keeping original", zap.Int("clip", i))
			continue
		}

		s.logger.Info("Trimmed trailing silence", zap.Int("clip", i), zap.Float64("trim_point", point))
		trimmed := &LocalMediaFile{Path: trimmedPath}
		files[i] = trimmed
		infos[i] = s.prober.Probe(ctx, trimmed)
	}
}

// ApplyFiltersRequest applies an ordered visual filter chain to one clip.
type ApplyFiltersRequest struct {
	Input   MediaInput
	Filters []FilterSpec
}

// ApplyFilters maps each filter to an engine expression and re-encodes the
// video through the chain. If no filter maps to anything the original
// bytes are returned unchanged.
func (s *Service) ApplyFilters(ctx context.Context, req ApplyFiltersRequest) (payload EncodedPayload, err error) {
	start := time.Now()
	defer func() { s.observe("apply_filters", start, err) }()

	if len(req.Filters) == 0 {
		return EncodedPayload{}, NewInputError("no filters provided")
	}

	wd, err := NewWorkdir(s.logger)
	if err != nil {
		return EncodedPayload{}, err
	}
	defer wd.Cleanup()

	file, err := s.resolver.Resolve(ctx, req.Input, KindVideo, wd, "input")
	if err != nil {
		return EncodedPayload{}, err
	}

	chain := BuildFilterChain(req.Filters, s.logger)
	if chain == "" {
		s.logger.Info("No applicable filters, returning original")
		return Finalize(file.Path, "video/mp4")
	}

	outputPath := wd.Path("output.mp4")
	args := []string{
		"-y", "-i", file.Path,
		"-vf", chain,
		"-c:v", "libx264", "-preset", "fast", "-crf", "23",
		"-c:a", "copy",
		"-movflags", "+faststart",
		outputPath,
	}

	s.logger.Info("Applying filter chain", zap.String("chain", chain))
	if err = s.runner.RunWithFallbacks(ctx, "apply-filters", []Command{{Args: args}}); err != nil {
		return EncodedPayload{}, err
	}

	return Finalize(outputPath, "video/mp4")
}

// AddMusicRequest mixes a music track into a video.
type AddMusicRequest struct {
	Video          MediaInput
	Audio          MediaInput
	MusicVolume    int // 0-100
	OriginalVolume int // 0-100
}

// AddMusic mixes or substitutes the audio track. Mixing is the least
// reliable step across heterogeneous encodings, so it carries the full
// fallback ladder: weighted merge-then-repan, weighted sum mixdown,
// wholesale substitution with stream copy, substitution with re-encode.
func (s *Service) AddMusic(ctx context.Context, req AddMusicRequest) (payload EncodedPayload, err error) {
	start := time.Now()
	defer func() { s.observe("add_music", start, err) }()

	wd, err := NewWorkdir(s.logger)
	if err != nil {
		return EncodedPayload{}, err
	}
	defer wd.Cleanup()

	video, err := s.resolver.Resolve(ctx, req.Video, KindVideo, wd, "input")
	if err != nil {
		return EncodedPayload{}, err
	}
	music, err := s.resolver.Resolve(ctx, req.Audio, KindAudio, wd, "music")
	if err != nil {
		return EncodedPayload{}, err
	}

	info := s.prober.Probe(ctx, video)
	musicVol := float64(req.MusicVolume) / 100.0
	origVol := float64(req.OriginalVolume) / 100.0
	outputPath := wd.Path("output.mp4")

	s.logger.Info("Adding music",
		zap.Bool("video_has_audio", info.HasAudio),
		zap.Float64("music_volume", musicVol),
		zap.Float64("original_volume", origVol),
	)

	var tiers []Command
	substitute := substituteAudioTiers(video.Path, music.Path, outputPath)

	if info.HasAudio && origVol > 0 {
		// Primary: amerge treats the two streams as four channels and
		// repans to stereo, preserving relative loudness.
		merge := fmt.Sprintf(
			"[0:a]volume=%g[orig];[1:a]volume=%g[music];"+
				"[orig][music]amerge=inputs=2,pan=stereo|c0<c0+c2|c1<c1+c3[aout]",
			origVol, musicVol,
		)
		amix := fmt.Sprintf(
			"[0:a]volume=%g[orig];[1:a]volume=%g[music];"+
				"[orig][music]amix=inputs=2:duration=first:dropout_transition=2[aout]",
			origVol, musicVol,
		)
		tiers = []Command{
			{Args: mixArgs(video.Path, music.Path, merge, outputPath)},
			{Args: mixArgs(video.Path, music.Path, amix, outputPath)},
			substitute[0],
			substitute[1],
		}
	} else {
		// No original audio, or it is muted: add the music track directly.
		direct := []string{
			"-y", "-i", video.Path, "-i", music.Path,
			"-map", "0:v", "-map", "1:a",
			"-c:v", "copy", "-c:a", "aac", "-b:a", "192k",
			"-shortest", outputPath,
		}
		if musicVol != 1.0 {
			direct = mixArgs(video.Path, music.Path, fmt.Sprintf("[1:a]volume=%g[aout]", musicVol), outputPath)
		}
		tiers = []Command{{Args: direct}, substitute[0], substitute[1]}
	}

	if err = s.runner.RunWithFallbacks(ctx, "add-music", tiers); err != nil {
		return EncodedPayload{}, err
	}

	return Finalize(outputPath, "video/mp4")
}

// mixArgs builds the common mix command around a filter_complex producing
// [aout].
func mixArgs(videoPath, musicPath, filterComplex, outputPath string) []string {
	return []string{
		"-y", "-i", videoPath, "-i", musicPath,
		"-filter_complex", filterComplex,
		"-map", "0:v", "-map", "[aout]",
		"-c:v", "copy", "-c:a", "aac", "-b:a", "192k",
		"-shortest", outputPath,
	}
}

// substituteAudioTiers drops mixing entirely: copy video, substitute the
// secondary track wholesale. The first tier stream-copies the audio; the
// second re-encodes it, since stream copy fails across incompatible
// containers.
func substituteAudioTiers(videoPath, musicPath, outputPath string) []Command {
	return []Command{
		{Args: []string{
			"-y", "-i", videoPath, "-i", musicPath,
			"-map", "0:v", "-map", "1:a",
			"-c:v", "copy", "-c:a", "copy",
			"-shortest", outputPath,
		}},
		{Args: []string{
			"-y", "-i", videoPath, "-i", musicPath,
			"-map", "0:v", "-map", "1:a",
			"-c:v", "copy", "-c:a", "aac",
			"-shortest", outputPath,
		}},
	}
}

// AddWatermarkRequest composites an image over a video.
type AddWatermarkRequest struct {
	Video    MediaInput
	Image    MediaInput
	Position string
	Opacity  float64
	Scale    float64
	Margin   int
	Mode     string // watermark or overlay
}

// AddWatermark scales and composites the image per mode and position.
func (s *Service) AddWatermark(ctx context.Context, req AddWatermarkRequest) (payload EncodedPayload, err error) {
	start := time.Now()
	defer func() { s.observe("add_watermark", start, err) }()

	wd, err := NewWorkdir(s.logger)
	if err != nil {
		return EncodedPayload{}, err
	}
	defer wd.Cleanup()

	video, err := s.resolver.Resolve(ctx, req.Video, KindVideo, wd, "input")
	if err != nil {
		return EncodedPayload{}, err
	}
	image, err := s.resolver.Resolve(ctx, req.Image, KindImage, wd, "watermark")
	if err != nil {
		return EncodedPayload{}, err
	}

	info := s.prober.Probe(ctx, video)
	plan := BuildOverlay(req.Mode, info.Width, info.Height, req.Scale, req.Opacity, req.Margin, req.Position)

	outputPath := wd.Path("output.mp4")
	args := []string{
		"-y", "-i", video.Path, "-i", image.Path,
		"-filter_complex", plan.FilterComplex(),
		"-map", "[vout]", "-map", "0:a?",
		"-c:v", "libx264", "-preset", "ultrafast", "-crf", "23",
		"-c:a", "copy",
		"-movflags", "+faststart",
		outputPath,
	}

	s.logger.Info("Adding watermark",
		zap.String("mode", req.Mode),
		zap.String("position", req.Position),
		zap.Float64("opacity", req.Opacity),
		zap.Int("video_width", info.Width),
		zap.Int("video_height", info.Height),
	)

	if err = s.runner.RunWithFallbacks(ctx, "add-watermark", []Command{{Args: args}}); err != nil {
		return EncodedPayload{}, err
	}

	return Finalize(outputPath, "video/mp4")
}

// SegmentReplaceRequest swaps [Start,End] of the base video for the
// replacement clip.
type SegmentReplaceRequest struct {
	Base        MediaInput
	Replacement MediaInput
	Start       float64
	End         float64
	AudioMode   string
	FitMode     string
}

// SegmentReplaceResult pairs the output with its probed duration.
type SegmentReplaceResult struct {
	Payload  EncodedPayload
	Duration float64
}

// SegmentReplace splices the replacement into the base. End is clamped to
// the base duration; the replacement is fitted per FitMode and audio is
// selected per AudioMode.
func (s *Service) SegmentReplace(ctx context.Context, req SegmentReplaceRequest) (result SegmentReplaceResult, err error) {
	start := time.Now()
	defer func() { s.observe("segment_replace", start, err) }()

	if req.Start < 0 {
		return SegmentReplaceResult{}, NewInputError("start_time must be >= 0")
	}
	if req.End <= req.Start {
		return SegmentReplaceResult{}, NewInputError("end_time must be greater than start_time")
	}

	wd, err := NewWorkdir(s.logger)
	if err != nil {
		return SegmentReplaceResult{}, err
	}
	defer wd.Cleanup()

	base, err := s.resolver.Resolve(ctx, req.Base, KindVideo, wd, "base")
	if err != nil {
		return SegmentReplaceResult{}, err
	}
	replacement, err := s.resolver.Resolve(ctx, req.Replacement, KindVideo, wd, "replacement")
	if err != nil {
		return SegmentReplaceResult{}, err
	}

	baseInfo := s.prober.Probe(ctx, base)
	replacementInfo := s.prober.Probe(ctx, replacement)

	end := req.End
	if baseInfo.Duration > 0 && end > baseInfo.Duration {
		s.logger.Warn("end_time clamped to base duration", zap.Float64("base_duration", baseInfo.Duration))
		end = baseInfo.Duration
	}

	plan := BuildSegmentReplace(req.Start, end, baseInfo.Duration, replacementInfo.Duration, req.FitMode, req.AudioMode)

	outputPath := wd.Path("output.mp4")
	args := []string{
		"-y", "-i", base.Path, "-i", replacement.Path,
		"-filter_complex", plan.FilterComplex(),
	}
	args = append(args, plan.MapArgs()...)
	args = append(args,
		"-c:v", "libx264", "-preset", "fast", "-crf", "23",
		"-c:a", "aac", "-b:a", "128k",
		"-movflags", "+faststart",
		outputPath,
	)

	s.logger.Info("Replacing segment",
		zap.Float64("start", req.Start),
		zap.Float64("end", end),
		zap.String("fit_mode", req.FitMode),
		zap.String("audio_mode", req.AudioMode),
	)

	if err = s.runner.RunWithFallbacks(ctx, "segment-replace", []Command{{Args: args}}); err != nil {
		return SegmentReplaceResult{}, err
	}

	payload, err := Finalize(outputPath, "video/mp4")
	if err != nil {
		return SegmentReplaceResult{}, err
	}

	outInfo := s.prober.Probe(ctx, &LocalMediaFile{Path: outputPath})
	return SegmentReplaceResult{Payload: payload, Duration: outInfo.Duration}, nil
}

// ProbeInput resolves one media input and returns its stream metadata.
func (s *Service) ProbeInput(ctx context.Context, in MediaInput, kind MediaKind) (StreamInfo, error) {
	wd, err := NewWorkdir(s.logger)
	if err != nil {
		return StreamInfo{}, err
	}
	defer wd.Cleanup()

	file, err := s.resolver.Resolve(ctx, in, kind, wd, "probe")
	if err != nil {
		return StreamInfo{}, err
	}
	return s.prober.Probe(ctx, file), nil
}
