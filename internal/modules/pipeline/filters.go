package pipeline

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Parameter mapper: translates UI-domain filter parameters into engine
// filter expressions. Pure and deterministic: the same FilterSpec always
// yields the same fragment. Clamp bounds here are contracts relied on for
// visual parity, not incidental behavior.

// filterMapper turns a FilterSpec's params into one filter expression.
// A false return means the filter is a no-op at these params and is
// omitted from the chain.
type filterMapper func(params map[string]interface{}) (string, bool)

// filterMappers is the registered lookup table keyed by FilterSpec.Type.
// Adding a filter type means adding an entry here; unknown types are
// skipped with a warning at build time, never an error.
var filterMappers = map[string]filterMapper{
	"brightness":    mapBrightnessContrast,
	"blur":          mapBlur,
	"hueSaturation": mapHueSaturation,
	"filmGrain":     mapFilmGrain,
	"sharpen":       mapSharpen,
	"vignette":      mapVignette,
}

// mapBrightnessContrast maps UI brightness [-1,1] directly and re-centers
// UI contrast [-1,1] into the engine's [0,2] range around 1.0 neutral.
func mapBrightnessContrast(params map[string]interface{}) (string, bool) {
	brightness := floatParam(params, "brightness", 0)
	contrast := 1.0 + floatParam(params, "contrast", 0)
	return fmt.Sprintf("eq=brightness=%g:contrast=%g", brightness, contrast), true
}

// mapBlur maps UI strength linearly onto the Gaussian sigma domain,
// clamped to [0.01, 1024]. Zero strength means no filter.
func mapBlur(params map[string]interface{}) (string, bool) {
	strength := floatParam(params, "strength", 0)
	if strength <= 0 {
		return "", false
	}
	sigma := clamp(strength/2.0, 0.01, 1024)
	return fmt.Sprintf("gblur=sigma=%g", sigma), true
}

// mapHueSaturation passes hue degrees through and re-centers UI saturation
// [-1,1] into [0,2] around 1.0 neutral, same scheme as contrast.
func mapHueSaturation(params map[string]interface{}) (string, bool) {
	hue := floatParam(params, "hue", 0)
	saturation := 1.0 + floatParam(params, "saturation", 0)
	return fmt.Sprintf("hue=h=%g:s=%g", hue, saturation), true
}

// mapFilmGrain maps intensity onto additive temporal noise, clamped to
// [0,100]. Zero intensity means no filter.
func mapFilmGrain(params map[string]interface{}) (string, bool) {
	intensity := floatParam(params, "intensity", 0)
	if intensity <= 0 {
		return "", false
	}
	strength := clamp(intensity, 0, 100)
	return fmt.Sprintf("noise=alls=%g:allf=t", strength), true
}

// mapSharpen maps amount onto an unsharp mask, clamped to [0,5]. Amount
// 1.0 is the UI neutral and omits the filter entirely.
func mapSharpen(params map[string]interface{}) (string, bool) {
	amount := clamp(floatParam(params, "gamma", 1.0), 0, 5)
	if amount == 1.0 {
		return "", false
	}
	return fmt.Sprintf("unsharp=5:5:%g:5:5:%g", amount, amount), true
}

// mapVignette parameterizes the vignette angle inversely proportional to
// intensity.
func mapVignette(params map[string]interface{}) (string, bool) {
	intensity := floatParam(params, "intensity", 0.5)
	if intensity <= 0 {
		return "", false
	}
	return fmt.Sprintf("vignette=angle=PI/%g", 5.0/intensity), true
}

// BuildFilterChain maps an ordered FilterSpec list to the -vf chain string.
// Unknown filter types never abort the chain: they are logged and skipped.
// An empty return means no applicable filters.
func BuildFilterChain(filters []FilterSpec, logger *zap.Logger) string {
	var parts []string
	for _, f := range filters {
		mapper, ok := filterMappers[f.Type]
		if !ok {
			logger.Warn("Unknown filter type, skipping", zap.String("type", f.Type))
			continue
		}
		if expr, include := mapper(f.Params); include {
			parts = append(parts, expr)
		}
	}
	return strings.Join(parts, ",")
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// floatParam reads a numeric param tolerating JSON's float64, plain ints
// and numeric strings, matching how request payloads arrive.
func floatParam(params map[string]interface{}, key string, defaultVal float64) float64 {
	v, ok := params[key]
	if !ok {
		return defaultVal
	}
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		var f float64
		if _, err := fmt.Sscanf(val, "%g", &f); err == nil {
			return f
		}
	}
	return defaultVal
}
