package pipeline

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Workdir is a per-request staging directory. Every file the pipeline
// materializes for one operation lives here, and Cleanup removes the whole
// tree on every exit path. Never shared across requests.
type Workdir struct {
	root   string
	logger *zap.Logger
}

// NewWorkdir creates a scoped temporary directory.
func NewWorkdir(logger *zap.Logger) (*Workdir, error) {
	root, err := os.MkdirTemp("", "pipeline-*")
	if err != nil {
		return nil, err
	}
	return &Workdir{root: root, logger: logger}, nil
}

// Path joins name onto the workdir root.
func (w *Workdir) Path(name string) string {
	return filepath.Join(w.root, name)
}

// WriteFile materializes bytes under the workdir and returns the full path.
func (w *Workdir) WriteFile(name string, data []byte) (string, error) {
	path := w.Path(name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}

// Cleanup removes the staging directory. Safe to defer immediately after
// NewWorkdir; errors are logged, not returned.
func (w *Workdir) Cleanup() {
	if err := os.RemoveAll(w.root); err != nil {
		w.logger.Warn("Failed to remove workdir", zap.String("dir", w.root), zap.Error(err))
	}
}
