package extract

import (
	"context"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/labcert-validator/constants"
	"github.com/joseph-ayodele/labcert-validator/internal/entity"
	"github.com/joseph-ayodele/labcert-validator/internal/textnorm"
)

// RuleExtractor reads entities with labelled-field patterns and layout
// heuristics. It is deterministic and never fails on poor text.
type RuleExtractor struct {
	logger *slog.Logger
}

func NewRuleExtractor(logger *slog.Logger) *RuleExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &RuleExtractor{logger: logger}
}

func (e *RuleExtractor) Name() string { return "rules" }

func (e *RuleExtractor) Extract(ctx context.Context, pages []entity.Page) (*entity.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec := extractRules(pages)
	Finalize(rec)
	e.logger.Debug("extract.rules.ok",
		"pairs", len(rec.NamesAndDesignations),
		"unpaired", len(rec.UnpairedDesignations),
		"test_rows", len(rec.TestResults),
	)
	return rec, nil
}

func allLines(pages []entity.Page) []string {
	var lines []string
	for _, p := range pages {
		lines = append(lines, p.Lines()...)
	}
	return lines
}

func extractRules(pages []entity.Page) *entity.Record {
	lines := allLines(pages)
	pairs, unpaired := signatories(lines)
	rec := &entity.Record{
		OurRef:                labelled(lines, reOurRef),
		CompanyName:           extractCompany(lines),
		LabReportCreationDate: extractDate(lines),
		Subject:               labelled(lines, reSubject),
		SampleReference:       labelled(lines, reSample),
		SamplingDateTime:      extractSampled(lines),
		NamesAndDesignations:  pairs,
		TestResults:           testResults(lines),
		UnpairedDesignations:  unpaired,
	}
	if strings.TrimSpace(entity.PagesText(pages)) == "" {
		rec.ExtractionNotes = append(rec.ExtractionNotes, "no text could be extracted from the document")
	}
	return rec
}

// Finalize enforces the record invariants shared by every extractor:
// sentinels for missing fields, DD/MM/YYYY dates, folded-name dedup,
// normalized verdicts and expected_signatures = number of pairs.
func Finalize(rec *entity.Record) {
	rec.OurRef = textnorm.OrNotFound(rec.OurRef)
	rec.CompanyName = textnorm.OrNotFound(rec.CompanyName)
	rec.Subject = textnorm.OrNotFound(rec.Subject)
	rec.SampleReference = textnorm.OrNotFound(rec.SampleReference)

	rec.LabReportCreationDate = textnorm.OrNotFound(rec.LabReportCreationDate)
	if !textnorm.IsNotFound(rec.LabReportCreationDate) {
		if d, ok := textnorm.NormalizeDate(rec.LabReportCreationDate); ok {
			rec.LabReportCreationDate = d
		} else {
			rec.ExtractionNotes = append(rec.ExtractionNotes, "unrecognized report date "+rec.LabReportCreationDate)
			rec.LabReportCreationDate = constants.NotFound
		}
	}

	pairs := make([]entity.SignatoryPair, 0, len(rec.NamesAndDesignations))
	seen := map[string]bool{}
	for _, p := range rec.NamesAndDesignations {
		name := strings.Join(strings.Fields(p.Name), " ")
		if textnorm.IsNotFound(name) || len([]rune(name)) < 2 {
			continue
		}
		key := textnorm.Fold(name)
		if seen[key] {
			continue
		}
		seen[key] = true
		p.Name = name
		p.Designation = textnorm.OrNotFound(strings.Join(strings.Fields(p.Designation), " "))
		pairs = append(pairs, p)
	}
	rec.NamesAndDesignations = pairs

	if rec.TestResults == nil {
		rec.TestResults = []entity.TestResult{}
	}
	for i := range rec.TestResults {
		rec.TestResults[i].PassFail = deriveVerdict(rec.TestResults[i])
	}

	rec.ExpectedSignatures = len(rec.NamesAndDesignations)
	if rec.IsThereSignature == "" {
		rec.IsThereSignature = constants.No
	}
	if rec.ResultsComply == "" {
		rec.ResultsComply = constants.No
	}
}
