package pipeline

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/genmedia/backend/internal/shared/metrics"
)

// DefaultExecTimeout bounds one engine invocation. Multi-input operations
// (merge) pass a longer per-command timeout.
const DefaultExecTimeout = 120 * time.Second

// Command is one fully-argued engine invocation.
type Command struct {
	Args    []string
	Timeout time.Duration
}

// Runner executes engine commands with bounded concurrency. Invocations
// are synchronous and multi-second, so a weighted semaphore keeps them
// from starving concurrent request handling.
type Runner struct {
	ffmpegPath string
	sem        *semaphore.Weighted
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// NewRunner creates a runner allowing maxConcurrent simultaneous engine
// processes (minimum 1). An empty path defaults to "ffmpeg"; metrics may
// be nil.
func NewRunner(ffmpegPath string, maxConcurrent int64, m *metrics.Metrics, logger *zap.Logger) *Runner {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Runner{
		ffmpegPath: ffmpegPath,
		sem:        semaphore.NewWeighted(maxConcurrent),
		metrics:    m,
		logger:     logger,
	}
}

// Run executes one command. On timeout the process is killed and a
// TimeoutError is returned; other non-zero exits return an
// ExecutionResult with the full diagnostic text for the caller to extract
// from.
func (r *Runner) Run(ctx context.Context, op string, cmd Command) (ExecutionResult, error) {
	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = DefaultExecTimeout
	}

	if err := r.sem.Acquire(ctx, 1); err != nil {
		return ExecutionResult{}, err
	}
	defer r.sem.Release(1)

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	proc := exec.CommandContext(runCtx, r.ffmpegPath, cmd.Args...)
	var stderr bytes.Buffer
	proc.Stderr = &stderr

	r.logger.Debug("Executing engine command", zap.String("op", op), zap.Strings("args", cmd.Args))

	err := proc.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		return ExecutionResult{}, &TimeoutError{Op: op, Seconds: int(timeout.Seconds())}
	}
	if err != nil {
		return ExecutionResult{Diagnostic: stderr.String()}, nil
	}
	return ExecutionResult{Success: true, Diagnostic: stderr.String()}, nil
}

// RunWithFallbacks tries commands in order until one succeeds. Each tier's
// diagnostic is logged before the next attempt; only the final tier's
// failure is surfaced. Timeouts and cancellation abort the ladder
// immediately.
func (r *Runner) RunWithFallbacks(ctx context.Context, op string, tiers []Command) error {
	var lastDiag string
	for i, cmd := range tiers {
		if i > 0 && r.metrics != nil {
			r.metrics.PipelineFallbackTiers.WithLabelValues(op).Inc()
		}
		res, err := r.Run(ctx, op, cmd)
		if err != nil {
			return err
		}
		if res.Success {
			if i > 0 {
				r.logger.Info("Fallback tier succeeded", zap.String("op", op), zap.Int("tier", i))
			}
			return nil
		}
		lastDiag = res.Diagnostic
		r.logger.Warn("Engine command failed",
			zap.String("op", op),
			zap.Int("tier", i),
			zap.Int("remaining", len(tiers)-i-1),
			zap.String("diagnostic", ExtractDiagnostic(lastDiag)),
		)
	}
	return &ExecutionError{Op: op, Diagnostic: ExtractDiagnostic(lastDiag)}
}

// failure-indicating keywords scanned for in diagnostic lines.
var diagnosticKeywords = []string{"error", "invalid", "failed", "no such", "unable", "cannot"}

// ExtractDiagnostic pulls a bounded, relevant excerpt from the engine's
// diagnostic stream: the last three lines containing failure keywords, or
// the last three non-indented lines as fallback. Never the full stream.
func ExtractDiagnostic(stderr string) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")

	var errorLines []string
	for _, line := range lines {
		lower := strings.ToLower(line)
		for _, kw := range diagnosticKeywords {
			if strings.Contains(lower, kw) {
				errorLines = append(errorLines, strings.TrimSpace(line))
				break
			}
		}
	}
	if len(errorLines) > 0 {
		return strings.Join(lastN(errorLines, 3), "; ")
	}

	var nonEmpty []string
	for _, line := range lines {
		if strings.TrimSpace(line) != "" && !strings.HasPrefix(line, "  ") {
			nonEmpty = append(nonEmpty, strings.TrimSpace(line))
		}
	}
	if len(nonEmpty) > 0 {
		return strings.Join(lastN(nonEmpty, 3), "; ")
	}
	return "unknown engine error"
}

func lastN(s []string, n int) []string {
	if len(s) > n {
		return s[len(s)-n:]
	}
	return s
}
