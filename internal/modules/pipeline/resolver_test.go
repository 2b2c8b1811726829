package pipeline

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanBase64(t *testing.T) {
	payload := []byte("hello pipeline")
	encoded := base64.StdEncoding.EncodeToString(payload)

	t.Run("plain standard encoding", func(t *testing.T) {
		data, err := CleanBase64(encoded)
		assert.NoError(t, err)
		assert.Equal(t, payload, data)
	})

	t.Run("strips data URI prefix", func(t *testing.T) {
		data, err := CleanBase64("data:video/mp4;base64," + encoded)
		assert.NoError(t, err)
		assert.Equal(t, payload, data)
	})

	t.Run("removes embedded whitespace", func(t *testing.T) {
		broken := encoded[:4] + "\n" + encoded[4:8] + " " + encoded[8:12] + "\r\n" + encoded[12:]
		data, err := CleanBase64(broken)
		assert.NoError(t, err)
		assert.Equal(t, payload, data)
	})

	t.Run("accepts URL-safe alphabet", func(t *testing.T) {
		raw := []byte{0xfb, 0xef, 0xff, 0x01, 0x02}
		urlSafe := base64.URLEncoding.EncodeToString(raw)
		assert.True(t, strings.ContainsAny(urlSafe, "-_"), "fixture must exercise the URL-safe alphabet")

		data, err := CleanBase64(urlSafe)
		assert.NoError(t, err)
		assert.Equal(t, raw, data)
	})

	t.Run("repairs missing padding", func(t *testing.T) {
		data, err := CleanBase64(strings.TrimRight(encoded, "="))
		assert.NoError(t, err)
		assert.Equal(t, payload, data)
	})

	t.Run("empty input", func(t *testing.T) {
		_, err := CleanBase64("")
		var inputErr *InputError
		assert.True(t, errors.As(err, &inputErr))
	})

	t.Run("invalid input reports length and prefix", func(t *testing.T) {
		_, err := CleanBase64("!!!not base64 at all!!!")
		var decodeErr *DecodeError
		assert.True(t, errors.As(err, &decodeErr))
		assert.Greater(t, decodeErr.Length, 0)
		assert.NotEmpty(t, decodeErr.Prefix)
	})

	t.Run("prefix is truncated to 50 chars", func(t *testing.T) {
		_, err := CleanBase64("!" + strings.Repeat("a", 200))
		var decodeErr *DecodeError
		assert.True(t, errors.As(err, &decodeErr))
		assert.LessOrEqual(t, len(decodeErr.Prefix), 50)
	})
}

func TestDetectAudioExt(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"wav riff header", []byte("RIFF\x24\x08\x00\x00WAVE"), "wav"},
		{"mp3 id3 tag", []byte("ID3\x04\x00\x00\x00\x00"), "mp3"},
		{"mp3 frame sync fb", []byte{0xFF, 0xFB, 0x90, 0x00}, "mp3"},
		{"mp3 frame sync fa", []byte{0xFF, 0xFA, 0x90, 0x00}, "mp3"},
		{"flac marker", []byte("fLaC\x00\x00\x00\x22"), "flac"},
		{"ogg marker", []byte("OggS\x00\x02\x00\x00"), "ogg"},
		{"m4a ftyp box", []byte("\x00\x00\x00\x20ftypM4A "), "m4a"},
		{"unknown defaults to mp3", []byte("\x01\x02\x03\x04\x05"), "mp3"},
		{"too short defaults to mp3", []byte{0x01}, "mp3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectAudioExt(tt.data))
		})
	}
}

func TestTruncateURL(t *testing.T) {
	assert.Equal(t, "https://example.com/clip.mp4", truncateURL("https://example.com/clip.mp4"))

	long := "https://example.com/" + strings.Repeat("x", 200)
	assert.Len(t, truncateURL(long), 80)
}
