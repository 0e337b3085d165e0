package export

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/joseph-ayodele/labcert-validator/constants"
	"github.com/joseph-ayodele/labcert-validator/internal/entity"
)

// Verdicts counts test rows by pass/fail. Rows with any other verdict are
// in neither count.
type Verdicts struct {
	Total  int
	Passed int
	Failed int
}

func CountVerdicts(rec *entity.Record) Verdicts {
	v := Verdicts{Total: len(rec.TestResults)}
	for _, tr := range rec.TestResults {
		switch {
		case strings.EqualFold(tr.PassFail, constants.VerdictPass):
			v.Passed++
		case strings.EqualFold(tr.PassFail, constants.VerdictFail):
			v.Failed++
		}
	}
	return v
}

// WriteSummary prints a plain-text report of rec for terminal use.
func WriteSummary(w io.Writer, rec *entity.Record, title string) error {
	rule := strings.Repeat("=", 80)
	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\nLABORATORY TEST REPORT SUMMARY - %s\n%s\n", rule, title, rule)
	fmt.Fprintf(&b, "\nReference: %s\n", rec.OurRef)
	fmt.Fprintf(&b, "Company:   %s\n", rec.CompanyName)
	fmt.Fprintf(&b, "Date:      %s\n", rec.LabReportCreationDate)
	fmt.Fprintf(&b, "\nSubject: %s\n", rec.Subject)
	fmt.Fprintf(&b, "\nSAMPLE INFORMATION:\n  Sample Reference: %s\n", rec.SampleReference)
	if rec.SamplingDateTime != "" {
		fmt.Fprintf(&b, "  Sampling Date/Time: %s\n", rec.SamplingDateTime)
	}

	b.WriteString("\nTEST RESULTS:\n")
	if len(rec.TestResults) == 0 {
		b.WriteString("  No test results found\n")
	} else {
		tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "  Parameter\tUnit\tTest Method\tResult\tSpecification\tPass/Fail")
		fmt.Fprintln(tw, "  ---------\t----\t-----------\t------\t-------------\t---------")
		for _, tr := range rec.TestResults {
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\t%s\n", tr.Parameter, tr.Unit, tr.TestMethod, tr.Result, tr.Specification, tr.PassFail)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	b.WriteString("\nSIGNATORIES:\n")
	if len(rec.NamesAndDesignations) == 0 {
		b.WriteString("  None found\n")
	}
	for _, p := range rec.NamesAndDesignations {
		suffix := ""
		if p.Inferred {
			suffix = " (inferred)"
		}
		fmt.Fprintf(&b, "  %s - %s%s\n", p.Name, p.Designation, suffix)
	}

	v := CountVerdicts(rec)
	fmt.Fprintf(&b, "\nSignatures: %d expected, %d found (is_there_signature=%s)\n",
		rec.ExpectedSignatures, rec.ActualSignatures, rec.IsThereSignature)
	fmt.Fprintf(&b, "Tests: %d total, %d passed, %d failed\n", v.Total, v.Passed, v.Failed)
	fmt.Fprintf(&b, "Results comply: %s\n", rec.ResultsComply)
	for _, n := range rec.ExtractionNotes {
		fmt.Fprintf(&b, "  note: %s\n", n)
	}
	b.WriteString("\n" + rule + "\n")

	_, err := io.WriteString(w, b.String())
	return err
}
