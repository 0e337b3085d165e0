package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/labcert-validator/internal/common"
	"github.com/joseph-ayodele/labcert-validator/internal/entity"
	"github.com/joseph-ayodele/labcert-validator/internal/llm"
	"github.com/joseph-ayodele/labcert-validator/internal/textnorm"
)

// LLMExtractor asks a model for the entity record and falls back to rules
// when the model is unavailable or answers off-contract. Permanent failures
// (credentials, quota) are returned.
type LLMExtractor struct {
	model    llm.FieldExtractor
	fallback *RuleExtractor
	filename string
	logger   *slog.Logger
}

func NewLLMExtractor(model llm.FieldExtractor, logger *slog.Logger) *LLMExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMExtractor{model: model, fallback: NewRuleExtractor(logger), logger: logger}
}

// WithFilename returns a copy that sends name as a hint to the model.
func (e *LLMExtractor) WithFilename(name string) *LLMExtractor {
	cp := *e
	cp.filename = name
	return &cp
}

func (e *LLMExtractor) Name() string { return "llm" }

func (e *LLMExtractor) Extract(ctx context.Context, pages []entity.Page) (*entity.Record, error) {
	text := entity.PagesText(pages)
	rules := extractRules(pages)
	if strings.TrimSpace(text) == "" {
		Finalize(rules)
		return rules, nil
	}

	start := time.Now()
	fields, _, err := e.model.ExtractEntities(ctx, llm.ExtractRequest{
		Text:      text,
		Filename:  e.filename,
		PageCount: len(pages),
	})
	if err != nil {
		if common.IsPermanent(err) {
			return nil, fmt.Errorf("llm extract: %w", err)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		e.logger.Warn("extract.llm.fallback", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		rules.ExtractionNotes = append(rules.ExtractionNotes, "entity extraction fell back to rules: "+err.Error())
		Finalize(rules)
		return rules, nil
	}

	rec := fromFields(fields)
	fillGaps(rec, rules)
	Finalize(rec)
	e.logger.Info("extract.llm.ok",
		"pairs", len(rec.NamesAndDesignations),
		"test_rows", len(rec.TestResults),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return rec, nil
}

func fromFields(f llm.EntityFields) *entity.Record {
	rec := &entity.Record{
		OurRef:                f.OurRef,
		CompanyName:           f.CompanyName,
		LabReportCreationDate: f.LabReportCreationDate,
		Subject:               f.Subject,
		SampleReference:       f.SampleReference,
	}
	for _, p := range f.NamesAndDesignations {
		rec.NamesAndDesignations = append(rec.NamesAndDesignations, entity.SignatoryPair{Name: p.Name, Designation: p.Designation})
	}
	for _, t := range f.TestResults {
		rec.TestResults = append(rec.TestResults, entity.TestResult{
			Parameter:     t.Parameter,
			Unit:          t.Unit,
			TestMethod:    t.TestMethod,
			Result:        t.Result,
			Specification: t.Specification,
			PassFail:      t.PassFail,
		})
	}
	return rec
}

// fillGaps copies header fields the model missed from the rule pass and
// carries over designation hints that no model pair explains.
func fillGaps(rec, rules *entity.Record) {
	fill := func(dst *string, src, label string) {
		if textnorm.IsNotFound(*dst) && !textnorm.IsNotFound(src) {
			*dst = src
			rec.ExtractionNotes = append(rec.ExtractionNotes, label+" taken from rule extraction")
		}
	}
	fill(&rec.OurRef, rules.OurRef, "our_ref")
	fill(&rec.CompanyName, rules.CompanyName, "company_name")
	fill(&rec.LabReportCreationDate, rules.LabReportCreationDate, "lab_report_creation_date")
	fill(&rec.Subject, rules.Subject, "subject")
	fill(&rec.SampleReference, rules.SampleReference, "sample_reference")
	if rec.SamplingDateTime == "" {
		rec.SamplingDateTime = rules.SamplingDateTime
	}

	if len(rec.TestResults) == 0 && len(rules.TestResults) > 0 {
		rec.TestResults = rules.TestResults
		rec.ExtractionNotes = append(rec.ExtractionNotes, "test_results taken from rule extraction")
	}

	for _, d := range rules.UnpairedDesignations {
		explained := false
		for _, p := range rec.NamesAndDesignations {
			if textnorm.ContainsFold(p.Designation, d) {
				explained = true
				break
			}
		}
		if !explained {
			rec.UnpairedDesignations = append(rec.UnpairedDesignations, d)
		}
	}
}
