package export

import (
	"strings"
	"testing"

	"github.com/joseph-ayodele/labcert-validator/internal/entity"
)

func TestCountVerdicts(t *testing.T) {
	rec := sampleRecord()
	rec.TestResults = append(rec.TestResults,
		entity.TestResult{Parameter: "Colour", PassFail: "pass"},
		entity.TestResult{Parameter: "Odour", PassFail: "unknown"},
	)
	got := CountVerdicts(rec)
	want := Verdicts{Total: 4, Passed: 2, Failed: 1}
	if got != want {
		t.Errorf("CountVerdicts = %+v, want %+v", got, want)
	}
}

func TestWriteSummary(t *testing.T) {
	var b strings.Builder
	if err := WriteSummary(&b, sampleRecord(), "coa"); err != nil {
		t.Fatalf("WriteSummary: %v", err)
	}
	out := b.String()
	for _, want := range []string{
		"LABORATORY TEST REPORT SUMMARY - coa",
		"Reference: AAL/COA/2023/117",
		"Free Fatty Acid",
		"Jun Wy - QA APPROVED",
		"SIGNATORY (inferred)",
		"Signatures: 2 expected, 2 found (is_there_signature=Yes)",
		"Tests: 2 total, 1 passed, 1 failed",
		"Results comply: No",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestWriteSummaryEmpty(t *testing.T) {
	var b strings.Builder
	if err := WriteSummary(&b, &entity.Record{}, "empty"); err != nil {
		t.Fatalf("WriteSummary: %v", err)
	}
	if !strings.Contains(b.String(), "No test results found") || !strings.Contains(b.String(), "None found") {
		t.Errorf("unexpected summary:\n%s", b.String())
	}
}
