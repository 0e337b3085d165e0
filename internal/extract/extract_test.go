package extract

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/joseph-ayodele/labcert-validator/constants"
	"github.com/joseph-ayodele/labcert-validator/internal/common"
	"github.com/joseph-ayodele/labcert-validator/internal/entity"
	"github.com/joseph-ayodele/labcert-validator/internal/llm"
)

var tableWidths = []int{22, 10, 19, 10, 17, 10}

func tableRow(cells ...string) string {
	var b strings.Builder
	for i, c := range cells {
		b.WriteString(fmt.Sprintf("%-*s", tableWidths[i], c))
	}
	return strings.TrimRight(b.String(), " ")
}

func certificate() []entity.Page {
	page1 := strings.Join([]string{
		"ACME ANALYTICAL LABORATORIES SDN BHD",
		"No. 5, Jalan Industri, 40000 Shah Alam",
		"",
		"CERTIFICATE OF ANALYSIS",
		"",
		"Our Ref: AAL/COA/2023/117          Date: 12/12/07, 1510 hrs",
		"Subject: Palm Olein",
		"Sample Reference: Batch No. PO-7781",
		"Customer: Example Foods Pte Ltd",
		"",
		tableRow("Parameter", "Unit", "Test Method", "Result", "Specification", "Pass/Fail"),
		tableRow("Free Fatty Acid", "%", "AOCS Ca 5a-40", "0.08", "Max 0.1", "Pass"),
		tableRow("Moisture", "%", "AOCS Ca 2c-25", "0.12", "NMT 0.1"),
		tableRow("Iodine Value", "g/100g", "AOCS Cd 1d-92", "57.2", "56 - 61"),
		tableRow("Colour", "-", "Lovibond", "Clear", "Clear"),
	}, "\n")
	page2 := strings.Join([]string{
		"",
		"",
		"QA APPROVED                  QC PASSED",
		"Jun Wy",
		"Certified by: Dr. Aminah Binti Yusof",
	}, "\n")
	return []entity.Page{{Number: 1, Text: page1}, {Number: 2, Text: page2}}
}

func TestRuleExtractorCertificate(t *testing.T) {
	rec, err := NewRuleExtractor(nil).Extract(context.Background(), certificate())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	fields := []struct{ name, got, want string }{
		{"our_ref", rec.OurRef, "AAL/COA/2023/117"},
		{"company", rec.CompanyName, "ACME ANALYTICAL LABORATORIES SDN BHD"},
		{"date", rec.LabReportCreationDate, "12/12/2007"},
		{"subject", rec.Subject, "Palm Olein"},
		{"sample", rec.SampleReference, "Batch No. PO-7781"},
	}
	for _, f := range fields {
		if f.got != f.want {
			t.Errorf("%s = %q, want %q", f.name, f.got, f.want)
		}
	}

	wantPairs := []entity.SignatoryPair{
		{Name: "Jun Wy", Designation: "QA APPROVED"},
		{Name: "Aminah Binti Yusof", Designation: "Certified by"},
	}
	if len(rec.NamesAndDesignations) != len(wantPairs) {
		t.Fatalf("pairs = %+v, want %+v", rec.NamesAndDesignations, wantPairs)
	}
	for i, p := range wantPairs {
		if rec.NamesAndDesignations[i] != p {
			t.Errorf("pair %d = %+v, want %+v", i, rec.NamesAndDesignations[i], p)
		}
	}
	if rec.ExpectedSignatures != 2 {
		t.Errorf("expected_signatures = %d, want 2", rec.ExpectedSignatures)
	}
	if len(rec.UnpairedDesignations) != 1 || rec.UnpairedDesignations[0] != "QC PASSED" {
		t.Errorf("unpaired = %v, want [QC PASSED]", rec.UnpairedDesignations)
	}

	wantRows := []struct{ param, result, verdict string }{
		{"Free Fatty Acid", "0.08", constants.VerdictPass},
		{"Moisture", "0.12", constants.VerdictFail},
		{"Iodine Value", "57.2", constants.VerdictPass},
		{"Colour", "Clear", constants.VerdictUnknown},
	}
	if len(rec.TestResults) != len(wantRows) {
		t.Fatalf("rows = %+v", rec.TestResults)
	}
	for i, w := range wantRows {
		r := rec.TestResults[i]
		if r.Parameter != w.param || r.Result != w.result || r.PassFail != w.verdict {
			t.Errorf("row %d = %+v, want %s/%s/%s", i, r, w.param, w.result, w.verdict)
		}
	}
	if rec.TestResults[0].TestMethod != "AOCS Ca 5a-40" || rec.TestResults[0].Unit != "%" {
		t.Errorf("row 0 columns = %+v", rec.TestResults[0])
	}
}

func TestRuleExtractorEmptyText(t *testing.T) {
	rec, err := NewRuleExtractor(nil).Extract(context.Background(), []entity.Page{{Number: 1}})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if rec.OurRef != constants.NotFound || rec.CompanyName != constants.NotFound || rec.LabReportCreationDate != constants.NotFound {
		t.Errorf("header fields should be sentinels: %+v", rec)
	}
	if rec.NamesAndDesignations == nil || len(rec.NamesAndDesignations) != 0 || rec.TestResults == nil {
		t.Errorf("lists should be empty, not nil")
	}
	if len(rec.ExtractionNotes) == 0 {
		t.Error("expected a note for empty text")
	}
}

func TestRuleExtractorIsDeterministic(t *testing.T) {
	ext := NewRuleExtractor(nil)
	inputs := map[string][]entity.Page{
		"certificate": certificate(),
		"garbled":     {{Number: 1, Text: "@@ ~~ 12 ##\n\x00\x01"}},
		"empty":       nil,
	}
	for name, pages := range inputs {
		t.Run(name, func(t *testing.T) {
			first, err := ext.Extract(context.Background(), pages)
			if err != nil {
				t.Fatalf("first Extract: %v", err)
			}
			second, err := ext.Extract(context.Background(), pages)
			if err != nil {
				t.Fatalf("second Extract: %v", err)
			}
			if !reflect.DeepEqual(first, second) {
				t.Errorf("records differ:\n%+v\n%+v", first, second)
			}
		})
	}
}

func TestSignatoryForms(t *testing.T) {
	tests := []struct {
		name     string
		lines    []string
		want     []entity.SignatoryPair
		unpaired int
	}{
		{
			name:  "name then title on same line",
			lines: []string{"Siti Rahman, Chemist"},
			want:  []entity.SignatoryPair{{Name: "Siti Rahman", Designation: "Chemist"}},
		},
		{
			name:  "issued by colon",
			lines: []string{"Issued by: Lee Chong Wei"},
			want:  []entity.SignatoryPair{{Name: "Lee Chong Wei", Designation: "Issued by"}},
		},
		{
			name:  "names above titles in columns",
			lines: []string{"Ahmad Faiz              Tan Mei Ling", "Laboratory Manager      Analyst"},
			want: []entity.SignatoryPair{
				{Name: "Ahmad Faiz", Designation: "Laboratory Manager"},
				{Name: "Tan Mei Ling", Designation: "Analyst"},
			},
		},
		{
			name:     "title alone is a hint",
			lines:    []string{"QC PASSED", "O *"},
			unpaired: 1,
		},
		{
			name:  "name between verb and title",
			lines: []string{"Certified by: John Smith, Chemist"},
			want:  []entity.SignatoryPair{{Name: "John Smith", Designation: "Chemist"}},
		},
		{
			name:  "title in parentheses",
			lines: []string{"Approved by: Jane Doe (Laboratory Manager)"},
			want:  []entity.SignatoryPair{{Name: "Jane Doe", Designation: "Laboratory Manager"}},
		},
		{
			name:  "two people on one line",
			lines: []string{"John Smith, Chemist Mary Jones, Analyst"},
			want: []entity.SignatoryPair{
				{Name: "John Smith", Designation: "Chemist"},
				{Name: "Mary Jones", Designation: "Analyst"},
			},
		},
		{
			name:  "head of department",
			lines: []string{"Head of Quality Control: Lim Wei Ming"},
			want:  []entity.SignatoryPair{{Name: "Lim Wei Ming", Designation: "Head of Quality Control"}},
		},
		{
			name:  "name and designation labels",
			lines: []string{"Name: Grace Tan", "Designation: Senior Chemist"},
			want:  []entity.SignatoryPair{{Name: "Grace Tan", Designation: "Senior Chemist"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &entity.Record{}
			rec.NamesAndDesignations, rec.UnpairedDesignations = signatories(tt.lines)
			Finalize(rec)
			if len(rec.NamesAndDesignations) != len(tt.want) {
				t.Fatalf("pairs = %+v, want %+v", rec.NamesAndDesignations, tt.want)
			}
			for i := range tt.want {
				if rec.NamesAndDesignations[i] != tt.want[i] {
					t.Errorf("pair %d = %+v, want %+v", i, rec.NamesAndDesignations[i], tt.want[i])
				}
			}
			if len(rec.UnpairedDesignations) != tt.unpaired {
				t.Errorf("unpaired = %v, want %d", rec.UnpairedDesignations, tt.unpaired)
			}
		})
	}
}

func TestLooksLikeName(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"Jun Wy", true},
		{"Mary-Jane O'Neil", true},
		{"Many", false},
		{"O *", false},
		{"Name Signature", false},
		{"Batch 12", false},
		{"QA APPROVED", false},
		{"A B", false},
	}
	for _, tt := range tests {
		if got := LooksLikeName(tt.in); got != tt.want {
			t.Errorf("LooksLikeName(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestVerdictFromSpec(t *testing.T) {
	tests := []struct {
		result, spec, want string
	}{
		{"0.08", "Max 0.1", constants.VerdictPass},
		{"0.12", "NMT 0.1", constants.VerdictFail},
		{"5", "≤ 5", constants.VerdictPass},
		{"5", "< 5", constants.VerdictFail},
		{"99.2", "min 99", constants.VerdictPass},
		{"98", "NLT 99", constants.VerdictFail},
		{"12", "> 10", constants.VerdictPass},
		{"57.2", "56 - 61", constants.VerdictPass},
		{"62", "56 to 61", constants.VerdictFail},
		{"ND", "Max 10", constants.VerdictPass},
		{"Clear", "Clear", constants.VerdictUnknown},
		{"0,5", "max 1", constants.VerdictPass},
		{"", "max 1", constants.VerdictUnknown},
	}
	for _, tt := range tests {
		if got := VerdictFromSpec(tt.result, tt.spec); got != tt.want {
			t.Errorf("VerdictFromSpec(%q, %q) = %q, want %q", tt.result, tt.spec, got, tt.want)
		}
	}
}

func TestFinalize(t *testing.T) {
	rec := &entity.Record{
		LabReportCreationDate: "2007-12-12",
		NamesAndDesignations: []entity.SignatoryPair{
			{Name: "Jun  Wy", Designation: "QA APPROVED"},
			{Name: "JUN WY", Designation: "QC PASSED"},
			{Name: "X", Designation: "Chemist"},
			{Name: "Not found", Designation: "Chemist"},
		},
		TestResults: []entity.TestResult{{Result: "1", Specification: "max 2", PassFail: "complies"}},
	}
	Finalize(rec)
	if rec.LabReportCreationDate != "12/12/2007" {
		t.Errorf("date = %q", rec.LabReportCreationDate)
	}
	if len(rec.NamesAndDesignations) != 1 || rec.NamesAndDesignations[0].Name != "Jun Wy" {
		t.Errorf("pairs = %+v", rec.NamesAndDesignations)
	}
	if rec.ExpectedSignatures != 1 {
		t.Errorf("expected = %d", rec.ExpectedSignatures)
	}
	if rec.TestResults[0].PassFail != constants.VerdictPass {
		t.Errorf("verdict = %q", rec.TestResults[0].PassFail)
	}
	if rec.Subject != constants.NotFound || rec.IsThereSignature != constants.No {
		t.Errorf("defaults not applied: %+v", rec)
	}
}

type stubFieldExtractor struct {
	fields llm.EntityFields
	err    error
}

func (s stubFieldExtractor) ExtractEntities(context.Context, llm.ExtractRequest) (llm.EntityFields, []byte, error) {
	return s.fields, nil, s.err
}

func TestLLMExtractor(t *testing.T) {
	pages := certificate()

	t.Run("model answer wins and gaps are filled", func(t *testing.T) {
		model := stubFieldExtractor{fields: llm.EntityFields{
			OurRef:                "AAL/COA/2023/117",
			CompanyName:           "Acme Analytical Laboratories",
			LabReportCreationDate: "12/12/2007",
			Subject:               constants.NotFound,
			SampleReference:       "PO-7781",
			NamesAndDesignations:  []llm.NamedRole{{Name: "Jun Wy", Designation: "QA APPROVED"}},
			TestResults:           []llm.TestResultRow{{Parameter: "Moisture", Result: "0.12", Specification: "NMT 0.1"}},
		}}
		rec, err := NewLLMExtractor(model, nil).Extract(context.Background(), pages)
		if err != nil {
			t.Fatalf("Extract: %v", err)
		}
		if rec.CompanyName != "Acme Analytical Laboratories" {
			t.Errorf("company = %q", rec.CompanyName)
		}
		if rec.Subject != "Palm Olein" {
			t.Errorf("subject should come from rules, got %q", rec.Subject)
		}
		if rec.TestResults[0].PassFail != constants.VerdictFail {
			t.Errorf("verdict = %q", rec.TestResults[0].PassFail)
		}
		if len(rec.UnpairedDesignations) != 1 || rec.UnpairedDesignations[0] != "QC PASSED" {
			t.Errorf("hints = %v", rec.UnpairedDesignations)
		}
	})

	t.Run("transient error falls back to rules", func(t *testing.T) {
		model := stubFieldExtractor{err: fmt.Errorf("boom: %w", common.ErrTransient)}
		rec, err := NewLLMExtractor(model, nil).Extract(context.Background(), pages)
		if err != nil {
			t.Fatalf("Extract: %v", err)
		}
		if rec.ExpectedSignatures != 2 || len(rec.ExtractionNotes) == 0 {
			t.Errorf("fallback record = %+v", rec)
		}
	})

	t.Run("permanent error is returned", func(t *testing.T) {
		model := stubFieldExtractor{err: fmt.Errorf("401: %w", common.ErrPermanent)}
		_, err := NewLLMExtractor(model, nil).Extract(context.Background(), pages)
		if !errors.Is(err, common.ErrPermanent) {
			t.Errorf("err = %v, want permanent", err)
		}
	})
}

func TestExtractSampled(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{"Sampling Date & Time: 12/12/07, 1510 hrs", "12/12/2007 15:10"},
		{"Date/Time of Sampling: 03/04/2024 09:30", "03/04/2024 09:30"},
		{"Sampling Date: 5 March 2024", "05/03/2024"},
		{"Sampling Date: on request", "on request"},
		{"Date: 12/12/2007", ""},
	}
	for _, tt := range tests {
		if got := extractSampled([]string{tt.line}); got != tt.want {
			t.Errorf("extractSampled(%q) = %q, want %q", tt.line, got, tt.want)
		}
	}
}
