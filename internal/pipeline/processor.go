// Package pipeline runs one document through text extraction, entity
// extraction, signature detection and validation.
package pipeline

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/labcert-validator/constants"
	"github.com/joseph-ayodele/labcert-validator/internal/common"
	"github.com/joseph-ayodele/labcert-validator/internal/entity"
	"github.com/joseph-ayodele/labcert-validator/internal/pdfdoc"
)

// TextProvider is Stage 1: document -> page text.
type TextProvider interface {
	Name() string
	ExtractPages(ctx context.Context, doc *entity.Document) ([]entity.Page, error)
}

// Detector is Stage 3: document -> classified signature candidates.
type Detector interface {
	Detect(ctx context.Context, doc *entity.Document) (*entity.SignatureDetection, error)
}

// Validator is Stage 4: record + detection -> validated record.
type Validator interface {
	Validate(rec *entity.Record, det *entity.SignatureDetection) (*entity.Record, []string)
}

// RunStore records one row per processed document. Optional.
type RunStore interface {
	Start(ctx context.Context, run *entity.Run) error
	Finish(ctx context.Context, run *entity.Run) error
}

// Request is one document to process. Data, when set, is used instead of
// reading Path.
type Request struct {
	Path             string
	Data             []byte
	DetectSignatures bool
}

// Result is the complete outcome for one document. The pipeline never
// returns partial results.
type Result struct {
	RunID     uuid.UUID
	Document  *entity.Document
	Text      string
	Record    *entity.Record
	Detection *entity.SignatureDetection
	Notes     []string
	Duration  time.Duration
}

type Config struct {
	MaxDocBytes int64
	ModelName   string
}

type Processor struct {
	Logger    *slog.Logger
	Cfg       Config
	Text      *TextStage
	Extract   *ExtractStage
	Detector  Detector
	Validator Validator
	Runs      RunStore
}

func NewProcessor(logger *slog.Logger, cfg Config, text *TextStage, ext *ExtractStage, det Detector, val Validator, runs RunStore) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{Logger: logger, Cfg: cfg, Text: text, Extract: ext, Detector: det, Validator: val, Runs: runs}
}

// Process validates the input, runs every stage in order and returns the
// validated record. Invalid input, permanent collaborator failures and
// cancellation are returned as errors; transient failures degrade.
func (p *Processor) Process(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	runID := uuid.New()
	ctx = common.WithRunID(ctx, runID.String())
	logger := common.LoggerFrom(ctx, p.Logger)

	doc, err := p.load(req)
	if err != nil {
		logger.Error("processor.load.failed", "path", req.Path, "err", err)
		return nil, err
	}

	run := &entity.Run{
		ID:          runID,
		SourcePath:  doc.Path,
		ContentHash: hex.EncodeToString(doc.ContentHash),
		StartedAt:   start.UTC(),
		Status:      string(constants.RunStatusRunning),
	}
	if p.Cfg.ModelName != "" {
		run.ModelName = &p.Cfg.ModelName
	}
	if p.Runs != nil {
		if err := p.Runs.Start(ctx, run); err != nil {
			return nil, fmt.Errorf("start run: %w", err)
		}
	}

	res, err := p.process(ctx, logger, doc, req.DetectSignatures)
	if err != nil {
		logger.Error("processor.failed", "path", doc.Path, "err", err)
		p.finish(ctx, run, nil, err)
		return nil, err
	}
	res.RunID = runID
	res.Duration = time.Since(start)
	p.finish(ctx, run, res.Record, nil)

	logger.Info("processor.ok",
		"path", doc.Path,
		"expected_signatures", res.Record.ExpectedSignatures,
		"actual_signatures", res.Record.ActualSignatures,
		"results_comply", res.Record.ResultsComply,
		"elapsed_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

func (p *Processor) load(req Request) (*entity.Document, error) {
	if req.Data != nil {
		return pdfdoc.Load(req.Path, req.Data, p.Cfg.MaxDocBytes)
	}
	if req.Path == "" {
		return nil, common.InvalidInputf("a path or document bytes are required")
	}
	return pdfdoc.Open(req.Path, p.Cfg.MaxDocBytes)
}

func (p *Processor) process(ctx context.Context, logger *slog.Logger, doc *entity.Document, detect bool) (*Result, error) {
	// 1) Text
	pages, notes, err := p.Text.Run(ctx, doc)
	if err != nil {
		return nil, err
	}
	doc.Pages = pages
	logger.Info("processor.text.ok", "path", doc.Path, "pages", len(pages), "provider", p.Text.Name())

	// 2) Entities
	rec, err := p.Extract.Run(ctx, pages)
	if err != nil {
		return nil, err
	}
	rec.ExtractionNotes = append(notes, rec.ExtractionNotes...)
	logger.Info("processor.extract.ok",
		"path", doc.Path,
		"extractor", p.Extract.Name(),
		"pairs", len(rec.NamesAndDesignations),
		"test_rows", len(rec.TestResults),
	)

	// 3) Signatures
	var det *entity.SignatureDetection
	if detect {
		if p.Detector == nil {
			return nil, common.NewAppError(common.CodeConfig, "signature detection requested but no detector is configured", common.ErrInvalidInput)
		}
		det, err = p.Detector.Detect(ctx, doc)
		if err != nil {
			return nil, fmt.Errorf("detect signatures: %w", err)
		}
		logger.Info("processor.signatures.ok",
			"path", doc.Path,
			"images", det.TotalImagesDetected,
			"signatures", det.SignaturesFound,
			"errors", len(det.ProcessingErrors),
		)
	}

	// 4) Validation
	validated, vnotes := p.Validator.Validate(rec, det)
	logger.Info("processor.validate.ok",
		"path", doc.Path,
		"expected", validated.ExpectedSignatures,
		"actual", validated.ActualSignatures,
		"results_comply", validated.ResultsComply,
	)

	return &Result{
		Document:  doc,
		Text:      entity.PagesText(pages),
		Record:    validated,
		Detection: det,
		Notes:     append(append([]string(nil), validated.ExtractionNotes...), vnotes...),
	}, nil
}

// finish records the outcome. Persistence failures are logged, never
// returned: the document result is already complete.
func (p *Processor) finish(ctx context.Context, run *entity.Run, rec *entity.Record, procErr error) {
	if p.Runs == nil {
		return
	}
	now := time.Now().UTC()
	run.FinishedAt = &now
	if procErr != nil {
		run.Status = string(constants.RunStatusFailed)
		msg := procErr.Error()
		run.ErrorMessage = &msg
	} else {
		run.Status = string(constants.RunStatusOK)
		run.ExpectedSignatures = rec.ExpectedSignatures
		run.ActualSignatures = rec.ActualSignatures
		run.ResultsComply = rec.ResultsComply
		if b, err := json.Marshal(rec); err == nil {
			run.RecordJSON = b
		}
	}
	// Cancellation must not prevent recording the failure.
	if errors.Is(ctx.Err(), context.Canceled) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
	}
	if err := p.Runs.Finish(ctx, run); err != nil {
		p.Logger.Warn("processor.run.finish_failed", "run_id", run.ID, "err", err)
	}
}
