package pipeline

import (
	"errors"
	"fmt"
)

// Error taxonomy. Handlers inspect these with errors.As to pick the HTTP
// status; the pipeline itself only ever wraps, never swallows, except the
// prober which degrades to defaults on purpose.

// InputError is a client-caused problem: missing field, out-of-range count,
// malformed payload. The operation is not attempted.
type InputError struct {
	Msg string
}

func (e *InputError) Error() string { return e.Msg }

// NewInputError builds an InputError with a formatted message.
func NewInputError(format string, args ...interface{}) *InputError {
	return &InputError{Msg: fmt.Sprintf(format, args...)}
}

// DecodeError means an inline payload could not be base64-decoded. The
// message carries length and a 50-char prefix for diagnosis, never the full
// payload.
type DecodeError struct {
	Length int
	Prefix string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("invalid base64 data (length=%d, first 50 chars: %q): %v", e.Length, e.Prefix, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// DownloadError means a remote fetch failed or timed out. URL is truncated
// to 80 chars. Single attempt, no retry at this layer.
type DownloadError struct {
	URL    string
	Status int
	Err    error
}

func (e *DownloadError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("download failed (%d): %s", e.Status, e.URL)
	}
	return fmt.Sprintf("download failed: %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// ExecutionError means every fallback tier was exhausted. Diagnostic holds
// the last tier's extracted stderr excerpt, already bounded.
type ExecutionError struct {
	Op         string
	Diagnostic string
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Op, e.Diagnostic)
}

// TimeoutError means the subprocess exceeded its bound and was killed.
// Surfaced distinctly so callers can tell retryable timeouts from
// definitive failures.
type TimeoutError struct {
	Op      string
	Seconds int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %ds", e.Op, e.Seconds)
}

// ErrGraphBuild marks an internal filter-graph inconsistency. This is a
// programming error, not a user-facing condition.
var ErrGraphBuild = errors.New("filter graph build error")
