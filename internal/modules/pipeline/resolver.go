package pipeline

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultDownloadTimeout bounds remote media fetches.
const DefaultDownloadTimeout = 120 * time.Second

// Resolver normalizes heterogeneous media input (inline base64 or remote
// URL) into local files inside a request's workdir. The HTTP client is
// shared and pooled; it is constructed once at process start and injected
// so tests can substitute a fake transport.
type Resolver struct {
	client  *http.Client
	timeout time.Duration
	logger  *zap.Logger
}

// NewResolver creates a resolver around a shared HTTP client. A zero
// timeout means DefaultDownloadTimeout.
func NewResolver(client *http.Client, timeout time.Duration, logger *zap.Logger) *Resolver {
	if client == nil {
		client = &http.Client{}
	}
	if timeout <= 0 {
		timeout = DefaultDownloadTimeout
	}
	return &Resolver{client: client, timeout: timeout, logger: logger}
}

// CleanBase64 strips a data-URI prefix, removes whitespace, translates the
// URL-safe alphabet to standard, fixes padding and decodes. Decode failures
// report length and a 50-char prefix, never the payload.
func CleanBase64(s string) ([]byte, error) {
	if s == "" {
		return nil, &InputError{Msg: "empty base64 string provided"}
	}

	if strings.HasPrefix(s, "data:") {
		if idx := strings.Index(s, ","); idx != -1 {
			s = s[idx+1:]
		}
	}

	s = strings.TrimSpace(s)
	s = strings.NewReplacer("\n", "", "\r", "", " ", "").Replace(s)
	s = strings.NewReplacer("-", "+", "_", "/").Replace(s)

	if pad := len(s) % 4; pad != 0 {
		s += strings.Repeat("=", 4-pad)
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		prefix := s
		if len(prefix) > 50 {
			prefix = prefix[:50]
		}
		return nil, &DecodeError{Length: len(s), Prefix: prefix, Err: err}
	}
	return data, nil
}

// truncateURL bounds URLs embedded in errors and logs to 80 chars.
func truncateURL(url string) string {
	if len(url) > 80 {
		return url[:80]
	}
	return url
}

// Download fetches remote media with a bounded timeout, following
// redirects. A single attempt: no retry policy at this layer.
func (r *Resolver) Download(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &DownloadError{URL: truncateURL(url), Err: err}
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, &DownloadError{URL: truncateURL(url), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &DownloadError{URL: truncateURL(url), Status: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &DownloadError{URL: truncateURL(url), Err: err}
	}
	return data, nil
}

// DetectAudioExt sniffs the container format from leading magic bytes
// rather than trusting any declared extension. Defaults to mp3.
func DetectAudioExt(data []byte) string {
	if len(data) < 4 {
		return "mp3"
	}
	switch {
	case string(data[:4]) == "RIFF":
		return "wav"
	case string(data[:3]) == "ID3",
		len(data) >= 2 && data[0] == 0xFF && data[1] == 0xFB,
		len(data) >= 2 && data[0] == 0xFF && data[1] == 0xFA:
		return "mp3"
	case string(data[:4]) == "fLaC":
		return "flac"
	case string(data[:4]) == "OggS":
		return "ogg"
	case len(data) >= 8 && string(data[4:8]) == "ftyp":
		return "m4a"
	}
	return "mp3"
}

// Resolve materializes a MediaInput as a file named inside the workdir.
// Audio inputs get a sniffed extension so the engine picks the right
// demuxer; video and image inputs use fixed extensions.
func (r *Resolver) Resolve(ctx context.Context, in MediaInput, kind MediaKind, wd *Workdir, name string) (*LocalMediaFile, error) {
	var data []byte
	var err error

	switch {
	case in.URL != "":
		r.logger.Info("Downloading media", zap.String("url", truncateURL(in.URL)), zap.String("kind", string(kind)))
		data, err = r.Download(ctx, in.URL)
	case in.Base64 != "":
		data, err = CleanBase64(in.Base64)
	default:
		return nil, &InputError{Msg: "either base64 data or a url must be provided"}
	}
	if err != nil {
		return nil, err
	}

	ext := ""
	switch kind {
	case KindAudio:
		ext = DetectAudioExt(data)
	case KindImage:
		ext = "png"
	default:
		ext = "mp4"
	}

	path, err := wd.WriteFile(fmt.Sprintf("%s.%s", name, ext), data)
	if err != nil {
		return nil, fmt.Errorf("failed to stage %s: %w", name, err)
	}

	r.logger.Info("Resolved media input",
		zap.String("name", name),
		zap.String("ext", ext),
		zap.Int("bytes", len(data)),
	)

	return &LocalMediaFile{Path: path, Size: int64(len(data)), Ext: ext}, nil
}

// Finalize reads the engine's output file back into the encoded-payload
// representation used for input, for symmetry with Resolve.
func Finalize(path, mimeType string) (EncodedPayload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return EncodedPayload{}, fmt.Errorf("failed to read output: %w", err)
	}
	return EncodedPayload{
		Base64:   base64.StdEncoding.EncodeToString(data),
		MimeType: mimeType,
	}, nil
}
