// Package batch runs every PDF under a directory through the pipeline on a
// bounded worker queue and writes per-document outputs plus a summary.
package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/labcert-validator/constants"
	"github.com/joseph-ayodele/labcert-validator/internal/async"
	"github.com/joseph-ayodele/labcert-validator/internal/common"
	"github.com/joseph-ayodele/labcert-validator/internal/entity"
	"github.com/joseph-ayodele/labcert-validator/internal/export"
	"github.com/joseph-ayodele/labcert-validator/internal/ingest"
	"github.com/joseph-ayodele/labcert-validator/internal/pipeline"
	"github.com/joseph-ayodele/labcert-validator/internal/sink"
)

// SummaryName is the batch summary workbook written to the sink.
const SummaryName = "summary.xlsx"

// Processor is the single-document pipeline.
type Processor interface {
	Process(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// RunLookup finds an earlier successful run for identical content. Optional.
type RunLookup interface {
	FindSuccessfulByHash(ctx context.Context, contentHash string) (*entity.Run, error)
}

// Request selects the directory and outputs for one batch.
type Request struct {
	Dir        string
	Force      bool
	Excel      bool
	Signatures bool
}

// DocumentResult is the outcome for one discovered PDF.
type DocumentResult struct {
	Path     string
	HashHex  string
	Status   constants.RunStatus
	Record   *entity.Record
	Outputs  []string
	Err      error
	Duration time.Duration
}

// Report is the outcome of a whole batch. Documents are sorted by path.
type Report struct {
	Stats       ingest.DirStats
	Documents   []DocumentResult
	SummaryPath string
}

type Service struct {
	proc     Processor
	runs     RunLookup
	exporter *export.Service
	out      sink.Sink
	cfg      common.BatchConfig
	logger   *slog.Logger
}

func NewService(proc Processor, runs RunLookup, exporter *export.Service, out sink.Sink, cfg common.BatchConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if exporter == nil {
		exporter = export.NewService(logger)
	}
	return &Service{proc: proc, runs: runs, exporter: exporter, out: out, cfg: cfg, logger: logger}
}

type collector struct {
	mu   sync.Mutex
	docs []DocumentResult
}

func (c *collector) add(r DocumentResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs = append(c.docs, r)
}

func (s *Service) newQueue(ctx context.Context, req Request, col *collector) *async.ProcessorQueue {
	h := async.HandlerFunc(func(ctx context.Context, job async.Job) error {
		r := s.processOne(ctx, req, job)
		col.add(r)
		return r.Err
	})
	return async.NewProcessorQueue(h, s.logger,
		async.WithWorkers(s.cfg.Workers),
		async.WithQueueSize(s.cfg.QueueSize),
		async.WithProcessTimeout(s.cfg.DocTimeout),
		async.WithBaseContext(ctx),
	)
}

// Run processes every PDF under req.Dir and writes the summary workbook.
// Per-document failures are reported in the Report, never returned.
func (s *Service) Run(ctx context.Context, req Request) (*Report, error) {
	start := time.Now()
	cands, stats, err := ingest.Scan(ctx, req.Dir, true, s.logger)
	if err != nil {
		return nil, err
	}
	s.logger.Info("batch.start", "dir", req.Dir, "documents", len(cands), "force", req.Force)

	col := &collector{}
	q := s.newQueue(ctx, req, col)
	for _, c := range cands {
		if c.Err != "" {
			col.add(DocumentResult{Path: c.Path, Status: constants.RunStatusFailed, Err: errors.New(c.Err)})
			continue
		}
		if prior := s.priorRun(ctx, req, c.HashHex); prior != nil {
			col.add(skipped(c, prior))
			continue
		}
		job := async.Job{Path: c.Path, ContentHash: c.HashHex, Force: req.Force, TraceID: uuid.NewString()}
		if err := q.Enqueue(ctx, job); err != nil {
			col.add(DocumentResult{Path: c.Path, HashHex: c.HashHex, Status: constants.RunStatusFailed, Err: err})
		}
	}
	q.Shutdown(context.WithoutCancel(ctx))

	docs := col.docs
	sort.Slice(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })
	stats.Succeeded, stats.Skipped, stats.Failed = 0, 0, 0
	for _, d := range docs {
		switch d.Status {
		case constants.RunStatusOK:
			stats.Succeeded++
		case constants.RunStatusSkipped:
			stats.Skipped++
		default:
			stats.Failed++
		}
	}
	report := &Report{Stats: stats, Documents: docs}

	if err := ctx.Err(); err != nil {
		return report, err
	}
	if s.out != nil {
		path, err := s.writeSummary(ctx, docs)
		if err != nil {
			return report, err
		}
		report.SummaryPath = path
	}
	s.logger.Info("batch.done",
		"dir", req.Dir,
		"matched", stats.Matched,
		"succeeded", stats.Succeeded,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return report, nil
}

// Watch processes PDFs already under req.Dir and then every PDF that
// appears, until ctx is cancelled. Results are logged, not summarized.
func (s *Service) Watch(ctx context.Context, req Request, debounce time.Duration) error {
	events, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       []string{req.Dir},
		InitialScan: true,
		SkipHidden:  true,
		Debounce:    debounce,
	}, s.logger)
	if err != nil {
		return err
	}
	col := &collector{}
	q := s.newQueue(ctx, req, col)
	defer q.Shutdown(context.WithoutCancel(ctx))

	s.logger.Info("batch.watch.start", "dir", req.Dir)
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			s.logger.Warn("batch.watch.error", "err", err)
		case path, ok := <-events:
			if !ok {
				return nil
			}
			sum, _, err := ingest.HashFile(path)
			if err != nil {
				s.logger.Warn("batch.watch.hash_failed", "path", path, "err", err)
				continue
			}
			if prior := s.priorRun(ctx, req, sum); prior != nil {
				s.logger.Info("batch.document.skipped", "path", path, "prior_run_id", prior.ID)
				continue
			}
			job := async.Job{Path: path, ContentHash: sum, Force: req.Force, TraceID: uuid.NewString()}
			if err := q.Enqueue(ctx, job); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error("batch.watch.enqueue_failed", "path", path, "err", err)
			}
		}
	}
}

// priorRun returns the earlier successful run for hash, or nil when the
// document must be processed.
func (s *Service) priorRun(ctx context.Context, req Request, hash string) *entity.Run {
	if req.Force || s.runs == nil {
		return nil
	}
	run, err := s.runs.FindSuccessfulByHash(ctx, hash)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			s.logger.Warn("batch.lookup.failed", "hash", hash, "err", err)
		}
		return nil
	}
	return run
}

func skipped(c ingest.Candidate, prior *entity.Run) DocumentResult {
	r := DocumentResult{Path: c.Path, HashHex: c.HashHex, Status: constants.RunStatusSkipped}
	if len(prior.RecordJSON) > 0 {
		var rec entity.Record
		if json.Unmarshal(prior.RecordJSON, &rec) == nil {
			r.Record = &rec
		}
	}
	return r
}

func (s *Service) processOne(ctx context.Context, req Request, job async.Job) DocumentResult {
	start := time.Now()
	logger := common.LoggerFrom(ctx, s.logger)
	r := DocumentResult{Path: job.Path, HashHex: job.ContentHash, Status: constants.RunStatusFailed}

	res, err := s.proc.Process(ctx, pipeline.Request{Path: job.Path, DetectSignatures: req.Signatures})
	if err != nil {
		r.Err = err
		r.Duration = time.Since(start)
		return r
	}
	r.Record = res.Record
	if s.out != nil {
		outputs, err := s.exporter.WriteDocument(ctx, s.out, export.DocumentOutputs{
			Source:    job.Path,
			Text:      res.Text,
			Record:    res.Record,
			Detection: res.Detection,
			Excel:     req.Excel,
		})
		r.Outputs = outputs
		if err != nil {
			r.Err = err
			r.Duration = time.Since(start)
			return r
		}
	}
	r.Status = constants.RunStatusOK
	r.Duration = time.Since(start)
	logger.Info("batch.document.ok", "path", job.Path, "outputs", len(r.Outputs), "elapsed_ms", r.Duration.Milliseconds())
	return r
}

func (s *Service) writeSummary(ctx context.Context, docs []DocumentResult) (string, error) {
	rows := make([]export.SummaryRow, 0, len(docs))
	for _, d := range docs {
		row := export.SummaryRow{Path: d.Path, Status: string(d.Status), Record: d.Record}
		if d.Err != nil {
			row.Error = d.Err.Error()
		}
		rows = append(rows, row)
	}
	data, err := s.exporter.SummaryXLSX(rows)
	if err != nil {
		return "", err
	}
	if err := s.out.Put(ctx, SummaryName, data, export.ContentTypeXLSX); err != nil {
		return "", fmt.Errorf("write %s: %w", SummaryName, err)
	}
	return s.out.Location(SummaryName), nil
}
