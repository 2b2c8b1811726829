package pipeline

import (
	"context"
	"encoding/json"
	"os/exec"
	"strconv"

	"go.uber.org/zap"
)

// Prober extracts stream metadata via the engine's introspection mode.
// It fails soft: any exec or parse failure degrades to defaultStreamInfo
// (no audio, 1280x720) so a probing hiccup never blocks a best-effort
// transform downstream.
type Prober struct {
	ffprobePath string
	logger      *zap.Logger
}

// NewProber creates a prober. An empty path defaults to "ffprobe" on PATH.
func NewProber(ffprobePath string, logger *zap.Logger) *Prober {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Prober{ffprobePath: ffprobePath, logger: logger}
}

// ffprobe JSON output shape; only the fields the pipeline branches on.
type probeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
		Duration  string `json:"duration"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe returns StreamInfo for a local file.
func (p *Prober) Probe(ctx context.Context, file *LocalMediaFile) StreamInfo {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		file.Path,
	}

	out, err := exec.CommandContext(ctx, p.ffprobePath, args...).Output()
	if err != nil {
		p.logger.Warn("Probe failed, using defaults", zap.String("path", file.Path), zap.Error(err))
		return defaultStreamInfo()
	}

	var parsed probeOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		p.logger.Warn("Probe output unparseable, using defaults", zap.String("path", file.Path), zap.Error(err))
		return defaultStreamInfo()
	}

	info := defaultStreamInfo()
	for _, s := range parsed.Streams {
		switch s.CodecType {
		case "video":
			if s.Width > 0 {
				info.Width = s.Width
			}
			if s.Height > 0 {
				info.Height = s.Height
			}
			if info.CodecName == "" {
				info.CodecName = s.CodecName
			}
		case "audio":
			info.HasAudio = true
		}
	}

	if d, err := strconv.ParseFloat(parsed.Format.Duration, 64); err == nil {
		info.Duration = d
	}

	return info
}
