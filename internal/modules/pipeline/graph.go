package pipeline

import (
	"fmt"
	"strings"
)

// Filter graph builders. Each returns a FilterGraphPlan whose segments are
// ordered so that every consumed label is either a raw input index or was
// produced by an earlier segment.

// BuildConcat constructs the concat graph for n inputs. Every video stream
// is scaled to fit within (targetW, targetH) preserving aspect ratio, padded
// with centered black to exact dimensions, and normalized to SAR 1 / 30fps.
//
// Audio has three branches:
//   - all inputs have audio: normalize each to fltp/44100/stereo
//   - some have audio: normalize the real ones, synthesize silence for the rest
//   - none: the concat node carries zero audio streams
//
// Video is always produced; audio only if at least one input has it.
func BuildConcat(infos []StreamInfo, targetW, targetH int) (FilterGraphPlan, error) {
	n := len(infos)
	if n < 2 {
		return FilterGraphPlan{}, fmt.Errorf("%w: concat requires at least 2 inputs, got %d", ErrGraphBuild, n)
	}

	allHaveAudio := true
	anyHasAudio := false
	for _, info := range infos {
		if info.HasAudio {
			anyHasAudio = true
		} else {
			allHaveAudio = false
		}
	}

	var plan FilterGraphPlan
	var concatInputs strings.Builder

	for i := 0; i < n; i++ {
		plan.Segments = append(plan.Segments, fmt.Sprintf(
			"[%d:v]scale=%d:%d:force_original_aspect_ratio=decrease,"+
				"pad=%d:%d:(ow-iw)/2:(oh-ih)/2:black,"+
				"setsar=1,fps=30[v%d]",
			i, targetW, targetH, targetW, targetH, i,
		))
		concatInputs.WriteString(fmt.Sprintf("[v%d]", i))

		switch {
		case allHaveAudio:
			plan.Segments = append(plan.Segments, audioNormalizeSegment(i))
			concatInputs.WriteString(fmt.Sprintf("[a%d]", i))
		case anyHasAudio:
			if infos[i].HasAudio {
				plan.Segments = append(plan.Segments, audioNormalizeSegment(i))
			} else {
				// Silence-pad inputs lacking audio so partial-audio sets
				// never crash the concat.
				plan.Segments = append(plan.Segments, fmt.Sprintf("anullsrc=r=44100:cl=stereo[a%d]", i))
			}
			concatInputs.WriteString(fmt.Sprintf("[a%d]", i))
		}
	}

	if anyHasAudio {
		plan.Segments = append(plan.Segments, fmt.Sprintf("%sconcat=n=%d:v=1:a=1[outv][outa]", concatInputs.String(), n))
		plan.Outputs = []string{"[outv]", "[outa]"}
	} else {
		plan.Segments = append(plan.Segments, fmt.Sprintf("%sconcat=n=%d:v=1:a=0[outv]", concatInputs.String(), n))
		plan.Outputs = []string{"[outv]"}
	}

	return plan, nil
}

func audioNormalizeSegment(i int) string {
	return fmt.Sprintf("[%d:a]aformat=sample_fmts=fltp:sample_rates=44100:channel_layouts=stereo[a%d]", i, i)
}

// WatermarkWidth computes the overlay pixel width for watermark mode:
// a fraction of the video width, rounded up to even for encoder
// compatibility, with a 10px floor.
func WatermarkWidth(videoWidth int, scale float64) int {
	w := int(float64(videoWidth) * scale)
	w += w % 2
	if w < 10 {
		w = 10
	}
	return w
}

// watermarkPositions maps position names to overlay coordinate expressions
// relative to frame (W,H) and overlay (w,h) dimensions.
func watermarkPosition(position string, margin int) string {
	positions := map[string]string{
		"top-left":     fmt.Sprintf("%d:%d", margin, margin),
		"top-right":    fmt.Sprintf("W-w-%d:%d", margin, margin),
		"bottom-left":  fmt.Sprintf("%d:H-h-%d", margin, margin),
		"bottom-right": fmt.Sprintf("W-w-%d:H-h-%d", margin, margin),
		"center":       "(W-w)/2:(H-h)/2",
	}
	if p, ok := positions[position]; ok {
		return p
	}
	return positions["bottom-right"]
}

// BuildOverlay constructs the watermark/overlay graph. Input 0 is the video,
// input 1 the image.
//
// Overlay mode letterboxes the image to the full frame with transparent
// padding and composites at the origin. Watermark mode scales the image to
// a fraction of the video width and anchors it at one of five named
// positions with a margin inset. Both apply opacity via alpha remapping.
func BuildOverlay(mode string, videoW, videoH int, scale, opacity float64, margin int, position string) FilterGraphPlan {
	var plan FilterGraphPlan

	if mode == WatermarkModeOverlay {
		plan.Segments = append(plan.Segments,
			fmt.Sprintf(
				"[1:v]scale=%d:%d:force_original_aspect_ratio=decrease,"+
					"pad=%d:%d:(ow-iw)/2:(oh-ih)/2:color=black@0.0,"+
					"format=rgba,colorchannelmixer=aa=%g[overlay]",
				videoW, videoH, videoW, videoH, opacity,
			),
			"[0:v][overlay]overlay=0:0:format=auto,format=yuv420p[vout]",
		)
	} else {
		width := WatermarkWidth(videoW, scale)
		plan.Segments = append(plan.Segments,
			fmt.Sprintf("[1:v]scale=%d:-2,format=rgba,colorchannelmixer=aa=%g[watermark]", width, opacity),
			fmt.Sprintf("[0:v][watermark]overlay=%s:format=auto,format=yuv420p[vout]", watermarkPosition(position, margin)),
		)
	}

	plan.Outputs = []string{"[vout]"}
	return plan
}

// replacementFitFilter computes the video filter that reconciles the
// replacement clip's natural duration against the target segment duration.
func replacementFitFilter(fitMode string, replacementDur, segmentDur float64) string {
	switch fitMode {
	case FitModeStretch:
		// Retime via playback-speed factor.
		speed := 1.0
		if segmentDur > 0 && replacementDur > 0 {
			speed = replacementDur / segmentDur
		}
		return fmt.Sprintf("setpts=%g*PTS", 1/speed)
	case FitModeLoop:
		if replacementDur < segmentDur {
			loops := int(segmentDur/replacementDur) + 1
			return fmt.Sprintf("loop=loop=%d:size=999999,trim=duration=%g,setpts=PTS-STARTPTS", loops, segmentDur)
		}
		return fmt.Sprintf("trim=duration=%g,setpts=PTS-STARTPTS", segmentDur)
	default: // trim
		if replacementDur > segmentDur {
			return fmt.Sprintf("trim=duration=%g,setpts=PTS-STARTPTS", segmentDur)
		}
		return "setpts=PTS-STARTPTS"
	}
}

// BuildSegmentReplace splits the base media (input 0) into before/after
// pieces around [start,end], fits the replacement clip (input 1) to the
// segment duration under fitMode, concatenates the video pieces in order
// and selects audio per audioMode. The mix mode weights toward the
// longer-duration input.
func BuildSegmentReplace(start, end, baseDur, replacementDur float64, fitMode, audioMode string) FilterGraphPlan {
	var plan FilterGraphPlan
	var concatInputs []string

	if start > 0 {
		plan.Segments = append(plan.Segments, fmt.Sprintf("[0:v]trim=0:%g,setpts=PTS-STARTPTS[v_before]", start))
		concatInputs = append(concatInputs, "[v_before]")
	}

	plan.Segments = append(plan.Segments,
		fmt.Sprintf("[1:v]%s[v_replace]", replacementFitFilter(fitMode, replacementDur, end-start)))
	concatInputs = append(concatInputs, "[v_replace]")

	if end < baseDur {
		plan.Segments = append(plan.Segments, fmt.Sprintf("[0:v]trim=%g:%g,setpts=PTS-STARTPTS[v_after]", end, baseDur))
		concatInputs = append(concatInputs, "[v_after]")
	}

	plan.Segments = append(plan.Segments,
		fmt.Sprintf("%sconcat=n=%d:v=1:a=0[outv]", strings.Join(concatInputs, ""), len(concatInputs)))

	switch audioMode {
	case AudioModeKeepReplacement:
		plan.Segments = append(plan.Segments, "[1:a]asetpts=PTS-STARTPTS[outa]")
	case AudioModeMix:
		weights := "2 1"
		if replacementDur > baseDur {
			weights = "1 2"
		}
		plan.Segments = append(plan.Segments,
			fmt.Sprintf("[0:a][1:a]amix=inputs=2:duration=longest:weights=%s[outa]", weights))
	default: // keep_base
		plan.Segments = append(plan.Segments, "[0:a]acopy[outa]")
	}

	plan.Outputs = []string{"[outv]", "[outa]"}
	return plan
}
