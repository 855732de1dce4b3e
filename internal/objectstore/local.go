package objectstore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/hoony8355/searcap/internal/models"
)

// LocalDir writes capture images to a local directory using the same key
// layout as the bucket store. Used by -dry-run.
type LocalDir struct {
	dir    string
	logger *slog.Logger
}

func NewLocalDir(dir string) (*LocalDir, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir %q: %w", dir, err)
	}
	return &LocalDir{
		dir:    dir,
		logger: slog.Default().With("component", "localsink"),
	}, nil
}

func (l *LocalDir) PutCapture(_ context.Context, rec *models.CaptureRecord, data []byte) (string, string, error) {
	key := ObjectKey(rec)
	path := filepath.Join(l.dir, filepath.FromSlash(key))

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", "", fmt.Errorf("failed to create capture dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", "", fmt.Errorf("failed to write capture file: %w", err)
	}

	l.logger.Info("capture written", "path", path, "bytes", len(data))
	return key, "file://" + path, nil
}
