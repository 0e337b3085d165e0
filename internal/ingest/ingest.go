// Package ingest discovers lab report PDFs on the local filesystem.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/labcert-validator/constants"
	"github.com/joseph-ayodele/labcert-validator/internal/common"
)

// Candidate is one discovered PDF. Err is set when the file could not be
// read or hashed; such candidates are reported but never processed.
type Candidate struct {
	Path    string
	Size    int64
	HashHex string
	Err     string
}

// DirStats summarizes a directory scan and, once the batch finishes, its
// processing outcome.
type DirStats struct {
	Scanned   uint32
	Matched   uint32
	Succeeded uint32
	Skipped   uint32
	Failed    uint32
}

// AllowedExt reports whether ext is an accepted document extension.
func AllowedExt(ext string) bool {
	_, ok := constants.AllowedExtensions[constants.NormalizeExt(ext)]
	return ok
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") && base != "." && base != ".."
}

// HashFile returns the hex sha256 and size of the file at path.
func HashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// Scan walks root, skips hidden entries when asked, and returns one
// candidate per PDF in walk (lexical) order.
func Scan(ctx context.Context, root string, skipHidden bool, logger *slog.Logger) ([]Candidate, DirStats, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, common.InvalidInputf("root directory is required")
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, DirStats{}, common.NewAppError(common.CodeInvalidInput, "stat "+root, fmt.Errorf("%w: %w", common.ErrInvalidInput, err))
	}
	if !info.IsDir() {
		return nil, DirStats{}, common.InvalidInputf("%s is not a directory", root)
	}

	var out []Candidate
	var stats DirStats
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			stats.Scanned++
			stats.Failed++
			out = append(out, Candidate{Path: path, Err: walkErr.Error()})
			return nil
		}
		if path != root && skipHidden && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		stats.Scanned++
		if !AllowedExt(filepath.Ext(path)) {
			return nil
		}
		stats.Matched++

		sum, size, err := HashFile(path)
		if err != nil {
			logger.Warn("ingest.hash.failed", "path", path, "err", err)
			stats.Failed++
			out = append(out, Candidate{Path: path, Err: err.Error()})
			return nil
		}
		out = append(out, Candidate{Path: path, Size: size, HashHex: sum})
		return nil
	})
	if err != nil {
		return out, stats, fmt.Errorf("walk: %w", err)
	}
	logger.Info("ingest.scan.ok", "root", root, "scanned", stats.Scanned, "matched", stats.Matched, "failed", stats.Failed)
	return out, stats, nil
}
