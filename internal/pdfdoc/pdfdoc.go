// Package pdfdoc loads and validates input PDFs.
package pdfdoc

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/joseph-ayodele/labcert-validator/constants"
	"github.com/joseph-ayodele/labcert-validator/internal/common"
	"github.com/joseph-ayodele/labcert-validator/internal/entity"
)

// Open reads a PDF from disk. maxBytes <= 0 disables the size check.
func Open(path string, maxBytes int64) (*entity.Document, error) {
	if ext := constants.NormalizeExt(filepath.Ext(path)); ext != "" {
		if _, ok := constants.AllowedExtensions[ext]; !ok {
			return nil, common.InvalidInputf("unsupported file extension %q", ext)
		}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, common.NewAppError(common.CodeInvalidInput, "file not found: "+path, common.ErrNotFound)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, common.InvalidInputf("%s is a directory", path)
	}
	if maxBytes > 0 && info.Size() > maxBytes {
		return nil, common.InvalidInputf("%s is %d bytes, limit is %d", path, info.Size(), maxBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Load(path, data, maxBytes)
}

// Load validates an in-memory PDF and returns a document with its content
// hash and page count set. Empty, non-PDF, unparseable and zero-page inputs
// are rejected with common.ErrInvalidInput.
func Load(path string, data []byte, maxBytes int64) (*entity.Document, error) {
	if len(data) == 0 {
		return nil, common.InvalidInputf("%s is empty", displayName(path))
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, common.InvalidInputf("%s is %d bytes, limit is %d", displayName(path), len(data), maxBytes)
	}
	if !bytes.HasPrefix(bytes.TrimLeft(data[:min(len(data), 1024)], "\x00\t\r\n "), []byte(constants.PDFMagic)) {
		return nil, common.InvalidInputf("%s is not a PDF", displayName(path))
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if err := api.Validate(bytes.NewReader(data), conf); err != nil {
		return nil, common.NewAppError(common.CodeInvalidInput, "malformed PDF "+displayName(path), fmt.Errorf("%w: %w", common.ErrInvalidInput, err))
	}
	n, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return nil, common.NewAppError(common.CodeInvalidInput, "count pages of "+displayName(path), fmt.Errorf("%w: %w", common.ErrInvalidInput, err))
	}
	if n == 0 {
		return nil, common.InvalidInputf("%s has no pages", displayName(path))
	}

	sum := sha256.Sum256(data)
	return &entity.Document{
		Path:        path,
		Data:        data,
		ContentHash: sum[:],
		PageCount:   n,
	}, nil
}

func displayName(path string) string {
	if path == "" {
		return "document"
	}
	return filepath.Base(path)
}
