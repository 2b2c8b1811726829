package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os/exec"
	"regexp"
	"strconv"

	"go.uber.org/zap"
)

// Trailing-silence detection. A detection pass runs the engine's
// silencedetect filter over the audio stream and parses the event markers
// it writes to the diagnostic stream.

var (
	silenceStartRe = regexp.MustCompile(`silence_start:\s*([\d.]+)`)
	silenceEndRe   = regexp.MustCompile(`silence_end:\s*([\d.]+)`)
)

// trailingTolerance is how close (seconds) a silence_end must be to the
// media's total duration to still count as trailing.
const trailingTolerance = 0.5

// ParseSilenceWindows extracts silence windows from engine diagnostic text.
// A start without a matching end produces an open-ended window (End < 0).
func ParseSilenceWindows(diagnostic string) []SilenceWindow {
	starts := silenceStartRe.FindAllStringSubmatch(diagnostic, -1)
	ends := silenceEndRe.FindAllStringSubmatch(diagnostic, -1)

	windows := make([]SilenceWindow, 0, len(starts))
	for i, m := range starts {
		start, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		w := SilenceWindow{Start: start, End: -1}
		if i < len(ends) {
			if end, err := strconv.ParseFloat(ends[i][1], 64); err == nil {
				w.End = end
			}
		}
		windows = append(windows, w)
	}
	return windows
}

// TrailingTrimPoint decides whether the last detected window is trailing
// silence and returns the trim point. Only the last window matters: either
// it is open-ended (silence runs to end-of-media) or its end lands within
// tolerance of the total duration.
func TrailingTrimPoint(windows []SilenceWindow, duration float64) (float64, bool) {
	if len(windows) == 0 {
		return 0, false
	}
	last := windows[len(windows)-1]
	if last.OpenEnded() {
		return last.Start, true
	}
	if math.Abs(last.End-duration) < trailingTolerance {
		return last.Start, true
	}
	return 0, false
}

// SilenceDetector runs detection passes against local media files.
type SilenceDetector struct {
	ffmpegPath string
	prober     *Prober
	logger     *zap.Logger
}

// NewSilenceDetector creates a detector. An empty path defaults to "ffmpeg".
func NewSilenceDetector(ffmpegPath string, prober *Prober, logger *zap.Logger) *SilenceDetector {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &SilenceDetector{ffmpegPath: ffmpegPath, prober: prober, logger: logger}
}

// Detect runs one silencedetect pass at the given noise floor and minimum
// silence duration, returning the trailing trim point if one exists.
// Files without an audio track or an unknown duration report no silence.
func (d *SilenceDetector) Detect(ctx context.Context, file *LocalMediaFile, info StreamInfo, noiseDB float64, minDuration float64) (float64, bool) {
	if !info.HasAudio || info.Duration <= 0 {
		return 0, false
	}

	args := []string{
		"-i", file.Path,
		"-af", fmt.Sprintf("silencedetect=noise=%gdB:d=%g", noiseDB, minDuration),
		"-f", "null", "-",
	}

	cmd := exec.CommandContext(ctx, d.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()
	if ctx.Err() != nil {
		return 0, false
	}
	if err != nil {
		// Event markers already written to the diagnostic stream are still
		// valid even when the engine exits non-zero late in the pass.
		d.logger.Warn("Silence detection pass exited with error", zap.Float64("noise_db", noiseDB), zap.Error(err))
	}

	windows := ParseSilenceWindows(stderr.String())
	d.logger.Debug("Silence detection pass",
		zap.Float64("noise_db", noiseDB),
		zap.Int("windows", len(windows)),
		zap.Float64("duration", info.Duration),
	)

	return TrailingTrimPoint(windows, info.Duration)
}

// silenceThresholds are tried in order, strict to lenient: -30dB catches
// only very quiet silence, -50dB catches most trailing ambience. All use a
// 0.1s minimum silence duration.
var silenceThresholds = []float64{-30, -40, -50}

// DetectTrailing tries the threshold ladder and returns the first trim
// point found.
func (d *SilenceDetector) DetectTrailing(ctx context.Context, file *LocalMediaFile, info StreamInfo) (float64, bool) {
	for _, noiseDB := range silenceThresholds {
		if point, ok := d.Detect(ctx, file, info, noiseDB, 0.1); ok {
			return point, true
		}
	}
	return 0, false
}
