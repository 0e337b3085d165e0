package export

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/labcert-validator/constants"
	"github.com/joseph-ayodele/labcert-validator/internal/entity"
)

const (
	ReportSheet  = "Lab Test Report"
	SummarySheet = "Summary"
	lastCol      = "F"
	generatedBy  = "labcert-validator"
)

// Service renders validated records as XLSX workbooks.
type Service struct {
	logger *slog.Logger
	now    func() time.Time
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger, now: time.Now}
}

type styles struct {
	title, section, label, header, cell, fail int
}

func newStyles(f *excelize.File) (styles, error) {
	var st styles
	border := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}
	centered := &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true}
	defs := []struct {
		dst   *int
		style *excelize.Style
	}{
		{&st.title, &excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}, Alignment: centered}},
		{&st.section, &excelize.Style{
			Font:      &excelize.Font{Bold: true},
			Alignment: centered,
			Fill:      excelize.Fill{Type: "pattern", Color: []string{"E6E6E6"}, Pattern: 1},
		}},
		{&st.label, &excelize.Style{Font: &excelize.Font{Bold: true}, Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "center"}}},
		{&st.header, &excelize.Style{Font: &excelize.Font{Bold: true}, Alignment: centered, Border: border}},
		{&st.cell, &excelize.Style{Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "center", WrapText: true}, Border: border}},
		{&st.fail, &excelize.Style{Font: &excelize.Font{Bold: true, Color: "C00000"}, Alignment: centered, Border: border}},
	}
	for _, d := range defs {
		id, err := f.NewStyle(d.style)
		if err != nil {
			return st, fmt.Errorf("xlsx style: %w", err)
		}
		*d.dst = id
	}
	return st, nil
}

// sheetWriter appends rows top to bottom. The first error sticks and turns
// every later call into a no-op.
type sheetWriter struct {
	f     *excelize.File
	sheet string
	row   int
	st    styles
	err   error
}

func (w *sheetWriter) cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

func (w *sheetWriter) set(col int, v any, style int) {
	if w.err != nil {
		return
	}
	c := w.cell(col, w.row)
	if w.err = w.f.SetCellValue(w.sheet, c, v); w.err != nil {
		return
	}
	if style != 0 {
		w.err = w.f.SetCellStyle(w.sheet, c, c, style)
	}
}

func (w *sheetWriter) merge(fromCol int) {
	if w.err != nil {
		return
	}
	w.err = w.f.MergeCell(w.sheet, w.cell(fromCol, w.row), lastCol+fmt.Sprint(w.row))
}

func (w *sheetWriter) section(title string) {
	w.set(1, title, w.st.section)
	w.merge(1)
	if w.err == nil {
		w.err = w.f.SetCellStyle(w.sheet, w.cell(1, w.row), lastCol+fmt.Sprint(w.row), w.st.section)
	}
	w.row++
}

func (w *sheetWriter) field(label string, v any) {
	w.set(1, label, w.st.label)
	w.set(2, v, 0)
	w.merge(2)
	w.row++
}

func (w *sheetWriter) tableRow(values []any, style int) {
	for i, v := range values {
		w.set(i+1, v, style)
	}
	w.row++
}

// RecordXLSX returns the single-sheet report workbook for one validated
// record. source names the PDF the record came from and may be empty.
func (s *Service) RecordXLSX(rec *entity.Record, source string) ([]byte, error) {
	start := time.Now()
	if rec == nil {
		return nil, fmt.Errorf("xlsx: nil record")
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName("Sheet1", ReportSheet); err != nil {
		return nil, fmt.Errorf("xlsx sheet: %w", err)
	}
	st, err := newStyles(f)
	if err != nil {
		return nil, err
	}
	w := &sheetWriter{f: f, sheet: ReportSheet, row: 1, st: st}

	w.set(1, "Laboratory Test Report", st.title)
	w.merge(1)
	w.row = 3

	w.section("SAMPLE INFORMATION")
	w.field("Our Reference:", rec.OurRef)
	w.field("Company Name:", rec.CompanyName)
	w.field("Report Date:", rec.LabReportCreationDate)
	w.field("Subject:", rec.Subject)
	w.field("Sample Reference:", rec.SampleReference)
	if rec.SamplingDateTime != "" {
		w.field("Sampling Date & Time:", rec.SamplingDateTime)
	}
	if source != "" {
		w.field("Source File:", source)
	}
	w.row++

	w.section("TEST RESULTS")
	w.tableRow([]any{"Parameter", "Unit", "Method", "Result", "Specification", "Pass/Fail"}, st.header)
	if len(rec.TestResults) == 0 {
		w.field("No test results found", "")
	}
	for _, t := range rec.TestResults {
		verdict := st.cell
		if t.PassFail == constants.VerdictFail {
			verdict = st.fail
		}
		for i, v := range []string{t.Parameter, t.Unit, t.TestMethod, t.Result, t.Specification} {
			w.set(i+1, v, st.cell)
		}
		w.set(6, t.PassFail, verdict)
		w.row++
	}
	w.row++

	w.section("SIGNATORIES")
	w.tableRow([]any{"Name", "Designation", "Source"}, st.header)
	for _, p := range rec.NamesAndDesignations {
		src := "document"
		if p.Inferred {
			src = "inferred from signature"
		}
		w.tableRow([]any{p.Name, p.Designation, src}, st.cell)
	}
	w.row++

	w.section("SIGNATURE DETECTION")
	if det := rec.SignatureDetection; det == nil {
		w.field("Detection:", "Not requested")
	} else {
		w.field("Images Analyzed:", det.TotalImagesDetected)
		w.field("Signatures Found:", det.SignaturesFound)
		w.field("Duplicates Skipped:", det.DuplicatesSkipped)
		w.field("Method:", det.DetectionMethod)
		w.tableRow([]any{"Signature ID", "Page", "Type", "Confidence", "Image Source", "Error"}, st.header)
		for _, d := range det.SignatureDetails {
			w.tableRow([]any{d.SignatureID, d.PageNumber, string(d.Type), fmt.Sprintf("%.2f", d.Confidence), string(d.ImageSource), d.Error}, st.cell)
		}
	}
	w.row++

	w.section("VALIDATION")
	w.field("Expected Signatures:", rec.ExpectedSignatures)
	w.field("Actual Signatures:", rec.ActualSignatures)
	w.field("Is There Signature?:", rec.IsThereSignature)
	w.field("Results Comply?:", rec.ResultsComply)
	if d := rec.SignatureValidationDetails; d != nil {
		w.field("Validation Note:", d.ValidationNote)
		if len(d.Notes) > 0 {
			w.field("Notes:", strings.Join(d.Notes, "; "))
		}
	}
	w.row += 2

	w.set(1, "Generated by:", st.label)
	w.set(2, generatedBy, 0)
	w.row++
	w.set(1, "Date:", st.label)
	w.set(2, s.now().Format("02/01/2006 03:04:05 PM"), 0)

	for _, cw := range []struct {
		col   string
		width float64
	}{{"A", 25}, {"B", 15}, {"C", 30}, {"D", 15}, {"E", 25}, {"F", 12}} {
		if w.err == nil {
			w.err = f.SetColWidth(ReportSheet, cw.col, cw.col, cw.width)
		}
	}
	if w.err != nil {
		return nil, fmt.Errorf("xlsx write: %w", w.err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	s.logger.Info("export.xlsx.ok",
		"kind", "report",
		"source", source,
		"test_rows", len(rec.TestResults),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// SummaryRow is one document in a batch summary.
type SummaryRow struct {
	Path   string
	Status string
	Record *entity.Record
	Error  string
}

// SummaryXLSX returns a one-row-per-document workbook for a batch run.
func (s *Service) SummaryXLSX(rows []SummaryRow) ([]byte, error) {
	start := time.Now()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return nil, fmt.Errorf("xlsx sheet: %w", err)
	}
	st, err := newStyles(f)
	if err != nil {
		return nil, err
	}
	w := &sheetWriter{f: f, sheet: SummarySheet, row: 1, st: st}

	w.tableRow([]any{
		"File", "Status", "Our Ref", "Company Name", "Report Date",
		"Expected Signatures", "Actual Signatures", "Is There Signature?", "Results Comply?", "Error",
	}, st.header)
	for _, r := range rows {
		vals := []any{r.Path, r.Status, "", "", "", "", "", "", "", truncate(r.Error, 200)}
		if rec := r.Record; rec != nil {
			vals[2], vals[3], vals[4] = rec.OurRef, rec.CompanyName, rec.LabReportCreationDate
			vals[5], vals[6] = rec.ExpectedSignatures, rec.ActualSignatures
			vals[7], vals[8] = rec.IsThereSignature, rec.ResultsComply
		}
		w.tableRow(vals, st.cell)
	}

	widths := []float64{40, 10, 20, 30, 14, 10, 10, 10, 10, 48}
	for i, width := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if w.err == nil {
			w.err = f.SetColWidth(SummarySheet, col, col, width)
		}
	}
	if w.err != nil {
		return nil, fmt.Errorf("xlsx write: %w", w.err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	s.logger.Info("export.xlsx.ok",
		"kind", "summary",
		"rows", len(rows),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
