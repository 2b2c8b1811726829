package pipeline

// MediaKind tells the resolver what the bytes are expected to contain.
type MediaKind string

const (
	KindVideo MediaKind = "video"
	KindAudio MediaKind = "audio"
	KindImage MediaKind = "image"
)

// MediaInput is a tagged union: exactly one of Base64 or URL is set.
// Constructed from the request, resolved to a LocalMediaFile once, and
// discarded after execution.
type MediaInput struct {
	Base64 string
	URL    string
}

// IsZero reports whether neither form is populated.
func (in MediaInput) IsZero() bool {
	return in.Base64 == "" && in.URL == ""
}

// LocalMediaFile is a resolved input materialized inside a request's workdir.
type LocalMediaFile struct {
	Path string
	Size int64
	// Ext is the sniffed container extension (audio only), e.g. "mp3", "wav".
	Ext string
}

// StreamInfo holds per-media metadata derived once by the prober.
// Immutable after creation.
type StreamInfo struct {
	Duration  float64 `json:"duration"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	HasAudio  bool    `json:"hasAudio"`
	CodecName string  `json:"codecName"`
}

// defaultStreamInfo is what probe failures degrade to: unknown duration,
// assume no audio, 1280x720.
func defaultStreamInfo() StreamInfo {
	return StreamInfo{Width: 1280, Height: 720}
}

// FilterSpec is one user-requested effect. Order is significant: filters
// chain left to right. Unknown types are skipped with a warning.
type FilterSpec struct {
	Type   string                 `json:"type"`
	Params map[string]interface{} `json:"params"`
}

// FilterGraphPlan is an ordered list of filter-graph segments plus the
// labeled outputs that become the command's -map targets. Every label a
// segment consumes must be a raw input index or produced by an earlier
// segment.
type FilterGraphPlan struct {
	Segments []string
	// Outputs are final labels in map order, e.g. ["[outv]", "[outa]"].
	Outputs []string
}

// FilterComplex joins the graph segments into the -filter_complex argument.
func (p FilterGraphPlan) FilterComplex() string {
	s := ""
	for i, seg := range p.Segments {
		if i > 0 {
			s += ";"
		}
		s += seg
	}
	return s
}

// MapArgs expands the plan's outputs into -map argument pairs.
func (p FilterGraphPlan) MapArgs() []string {
	args := make([]string, 0, len(p.Outputs)*2)
	for _, out := range p.Outputs {
		args = append(args, "-map", out)
	}
	return args
}

// SilenceWindow is one detected silence period. End < 0 means the silence
// extends to end-of-media (no matching end marker).
type SilenceWindow struct {
	Start float64
	End   float64
}

// OpenEnded reports whether the window has no end marker.
func (w SilenceWindow) OpenEnded() bool {
	return w.End < 0
}

// ExecutionResult is the outcome of one attempted engine command. A full
// operation may produce several (one per fallback tier); only the last is
// surfaced to the caller.
type ExecutionResult struct {
	Success    bool
	Diagnostic string
}

// EncodedPayload is the response-side mirror of MediaInput's inline form.
type EncodedPayload struct {
	Base64   string
	MimeType string
}

// AspectRatio enumerates the supported merge output shapes.
var aspectResolutions = map[string][2]int{
	"16:9": {1920, 1080},
	"9:16": {1080, 1920},
	"1:1":  {1080, 1080},
	"4:3":  {1440, 1080},
	"4:5":  {1080, 1350},
}

// ResolutionForAspect maps an aspect-ratio tag to pixel dimensions,
// defaulting to 16:9.
func ResolutionForAspect(aspect string) (w, h int) {
	if res, ok := aspectResolutions[aspect]; ok {
		return res[0], res[1]
	}
	return 1920, 1080
}

// Watermark placement modes.
const (
	WatermarkModeWatermark = "watermark" // scaled corner logo
	WatermarkModeOverlay   = "overlay"   // full-frame graphic
)

// Segment-replace audio modes.
const (
	AudioModeKeepBase        = "keep_base"
	AudioModeKeepReplacement = "keep_replacement"
	AudioModeMix             = "mix"
)

// Segment-replace fit modes.
const (
	FitModeStretch = "stretch"
	FitModeTrim    = "trim"
	FitModeLoop    = "loop"
)
