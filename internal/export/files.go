package export

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/labcert-validator/constants"
	"github.com/joseph-ayodele/labcert-validator/internal/common"
	"github.com/joseph-ayodele/labcert-validator/internal/entity"
	"github.com/joseph-ayodele/labcert-validator/internal/sink"
)

const (
	ContentTypeJSON = "application/json"
	ContentTypeText = "text/plain; charset=utf-8"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Stem returns the input file name without directory or extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// MarshalRecord renders the validated record as indented JSON.
func MarshalRecord(rec *entity.Record) ([]byte, error) {
	return json.MarshalIndent(rec, "", "  ")
}

// MarshalDetection renders a detection result as indented JSON.
func MarshalDetection(det *entity.SignatureDetection) ([]byte, error) {
	return json.MarshalIndent(det, "", "  ")
}

// ParseRecord reads a record previously written by MarshalRecord.
func ParseRecord(data []byte) (*entity.Record, error) {
	var rec entity.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, common.NewAppError(common.CodeInvalidInput, "parse entities json", fmt.Errorf("%w: %w", common.ErrInvalidInput, err))
	}
	return &rec, nil
}

// DocumentOutputs selects which files WriteDocument produces.
type DocumentOutputs struct {
	Source    string
	Text      string
	Record    *entity.Record
	Detection *entity.SignatureDetection
	Excel     bool
}

// WriteDocument stores the per-document files for one processed PDF and
// returns their locations in write order.
func (s *Service) WriteDocument(ctx context.Context, out sink.Sink, doc DocumentOutputs) ([]string, error) {
	stem := Stem(doc.Source)
	var written []string
	put := func(suffix string, data []byte, contentType string) error {
		name := stem + suffix
		if err := out.Put(ctx, name, data, contentType); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		written = append(written, out.Location(name))
		return nil
	}

	if err := put(constants.SuffixExtractedText, []byte(doc.Text), ContentTypeText); err != nil {
		return written, err
	}
	recJSON, err := MarshalRecord(doc.Record)
	if err != nil {
		return written, fmt.Errorf("marshal record: %w", err)
	}
	if err := put(constants.SuffixEntities, recJSON, ContentTypeJSON); err != nil {
		return written, err
	}
	if doc.Detection != nil {
		detJSON, err := MarshalDetection(doc.Detection)
		if err != nil {
			return written, fmt.Errorf("marshal detection: %w", err)
		}
		if err := put(constants.SuffixSignatures, detJSON, ContentTypeJSON); err != nil {
			return written, err
		}
	}
	if doc.Excel {
		xlsx, err := s.RecordXLSX(doc.Record, filepath.Base(doc.Source))
		if err != nil {
			return written, err
		}
		if err := put(constants.SuffixReport, xlsx, ContentTypeXLSX); err != nil {
			return written, err
		}
	}
	return written, nil
}
