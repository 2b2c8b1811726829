package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestBuildFilterChain(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name    string
		filters []FilterSpec
		want    string
	}{
		{
			name:    "brightness and contrast re-centered",
			filters: []FilterSpec{{Type: "brightness", Params: map[string]interface{}{"brightness": 0.2, "contrast": 0.5}}},
			want:    "eq=brightness=0.2:contrast=1.5",
		},
		{
			name:    "neutral brightness still emits",
			filters: []FilterSpec{{Type: "brightness", Params: map[string]interface{}{}}},
			want:    "eq=brightness=0:contrast=1",
		},
		{
			name:    "blur strength maps to half sigma",
			filters: []FilterSpec{{Type: "blur", Params: map[string]interface{}{"strength": 4.0}}},
			want:    "gblur=sigma=2",
		},
		{
			name:    "blur sigma clamped high",
			filters: []FilterSpec{{Type: "blur", Params: map[string]interface{}{"strength": 5000.0}}},
			want:    "gblur=sigma=1024",
		},
		{
			name:    "zero blur omitted",
			filters: []FilterSpec{{Type: "blur", Params: map[string]interface{}{"strength": 0.0}}},
			want:    "",
		},
		{
			name:    "hue and saturation",
			filters: []FilterSpec{{Type: "hueSaturation", Params: map[string]interface{}{"hue": 90.0, "saturation": 0.5}}},
			want:    "hue=h=90:s=1.5",
		},
		{
			name:    "film grain clamped to 100",
			filters: []FilterSpec{{Type: "filmGrain", Params: map[string]interface{}{"intensity": 150.0}}},
			want:    "noise=alls=100:allf=t",
		},
		{
			name:    "sharpen at neutral omitted",
			filters: []FilterSpec{{Type: "sharpen", Params: map[string]interface{}{"gamma": 1.0}}},
			want:    "",
		},
		{
			name:    "sharpen amount clamped to 5",
			filters: []FilterSpec{{Type: "sharpen", Params: map[string]interface{}{"gamma": 9.0}}},
			want:    "unsharp=5:5:5:5:5:5",
		},
		{
			name:    "vignette angle inverse to intensity",
			filters: []FilterSpec{{Type: "vignette", Params: map[string]interface{}{"intensity": 0.5}}},
			want:    "vignette=angle=PI/10",
		},
		{
			name:    "unknown type skipped",
			filters: []FilterSpec{{Type: "glitch", Params: map[string]interface{}{"amount": 1.0}}},
			want:    "",
		},
		{
			name: "chain preserves order and skips no-ops",
			filters: []FilterSpec{
				{Type: "brightness", Params: map[string]interface{}{"brightness": 0.1}},
				{Type: "blur", Params: map[string]interface{}{"strength": 0.0}},
				{Type: "vignette", Params: map[string]interface{}{"intensity": 1.0}},
			},
			want: "eq=brightness=0.1:contrast=1,vignette=angle=PI/5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildFilterChain(tt.filters, logger))
		})
	}
}

func TestFloatParam(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]interface{}
		want   float64
	}{
		{"float64 value", map[string]interface{}{"v": 2.5}, 2.5},
		{"int value", map[string]interface{}{"v": 3}, 3},
		{"numeric string", map[string]interface{}{"v": "1.25"}, 1.25},
		{"bad string falls back", map[string]interface{}{"v": "abc"}, 7},
		{"missing key falls back", map[string]interface{}{}, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, floatParam(tt.params, "v", 7))
		})
	}
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.01, clamp(-5, 0.01, 1024))
	assert.Equal(t, 1024.0, clamp(9000, 0.01, 1024))
	assert.Equal(t, 3.0, clamp(3, 0.01, 1024))
}
