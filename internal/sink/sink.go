// Package sink stores report files in a local directory or a GCS bucket.
package sink

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/labcert-validator/internal/common"
)

// Sink stores named report files.
type Sink interface {
	Put(ctx context.Context, name string, data []byte, contentType string) error
	// Location returns where name is (or would be) stored, for display.
	Location(name string) string
}

// Local writes files under Dir, creating it on first use.
type Local struct {
	Dir    string
	logger *slog.Logger
}

func NewLocal(dir string, logger *slog.Logger) *Local {
	if logger == nil {
		logger = slog.Default()
	}
	if dir == "" {
		dir = "."
	}
	return &Local{Dir: dir, logger: logger}
}

func (l *Local) Location(name string) string {
	return filepath.Join(l.Dir, name)
}

// Put writes data to a temp file and renames it into place so readers never
// see a partial report.
func (l *Local) Put(ctx context.Context, name string, data []byte, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkName(name); err != nil {
		return err
	}
	dst := l.Location(name)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return common.NewAppError(common.CodeStorage, "create output dir", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(name)+".*")
	if err != nil {
		return common.NewAppError(common.CodeStorage, "create temp file", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return common.NewAppError(common.CodeStorage, "write "+name, err)
	}
	if err := tmp.Close(); err != nil {
		return common.NewAppError(common.CodeStorage, "close "+name, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return common.NewAppError(common.CodeStorage, "rename "+name, err)
	}
	l.logger.Debug("sink.local.put", "path", dst, "bytes", len(data))
	return nil
}

func checkName(name string) error {
	clean := filepath.ToSlash(filepath.Clean(name))
	if name == "" || filepath.IsAbs(name) || clean == ".." || strings.HasPrefix(clean, "../") {
		return common.InvalidInputf("invalid output name %q", name)
	}
	return nil
}

// New returns a GCS sink when cfg names a bucket and a local sink otherwise.
// dir overrides cfg.Dir when set.
func New(ctx context.Context, cfg common.OutputConfig, dir string, logger *slog.Logger) (Sink, func() error, error) {
	if cfg.GCSBucket != "" {
		g, err := NewGCS(ctx, cfg.GCSBucket, cfg.GCSPrefix, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("gcs sink: %w", err)
		}
		return g, g.Close, nil
	}
	if dir == "" {
		dir = cfg.Dir
	}
	return NewLocal(dir, logger), func() error { return nil }, nil
}
