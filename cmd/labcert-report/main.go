package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/labcert-validator/constants"
	"github.com/joseph-ayodele/labcert-validator/internal/app"
	"github.com/joseph-ayodele/labcert-validator/internal/export"
	"github.com/joseph-ayodele/labcert-validator/internal/sink"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

// defaultOutput maps output/coa_entities.json to output/coa_report.xlsx.
func defaultOutput(entitiesPath string) string {
	base := strings.TrimSuffix(filepath.Base(entitiesPath), constants.SuffixEntities)
	if base == filepath.Base(entitiesPath) {
		base = export.Stem(entitiesPath)
	}
	return filepath.Join(filepath.Dir(entitiesPath), base+constants.SuffixReport)
}

func main() {
	var (
		out      = flag.String("out", "", "output workbook path (default <stem>_report.xlsx next to the input)")
		printAll = flag.Bool("print", false, "print the full entity summary")
	)
	flag.Usage = func() {
		printError("usage: labcert-report [-out report.xlsx] [-print] <entities.json>\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	in := flag.Arg(0)
	if *out == "" {
		*out = defaultOutput(in)
	}

	logger := app.NewLogger(os.Stderr, os.Getenv("LOG_LEVEL"))

	data, err := os.ReadFile(in)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
	rec, err := export.ParseRecord(data)
	if err != nil {
		printError("Error: %s: %v\n", in, err)
		os.Exit(1)
	}

	fmt.Printf("Loading entities from: %s\n", in)
	xlsx, err := export.NewService(logger).RecordXLSX(rec, filepath.Base(in))
	if err != nil {
		printError("Error generating Excel report: %v\n", err)
		os.Exit(1)
	}
	dst := sink.NewLocal(filepath.Dir(*out), logger)
	if err := dst.Put(context.Background(), filepath.Base(*out), xlsx, export.ContentTypeXLSX); err != nil {
		printError("Error writing %s: %v\n", *out, err)
		os.Exit(1)
	}
	fmt.Printf("Excel report generated: %s\n", dst.Location(filepath.Base(*out)))

	if *printAll {
		if err := export.WriteSummary(os.Stdout, rec, export.Stem(in)); err != nil {
			printError("Error printing summary: %v\n", err)
		}
		return
	}
	v := export.CountVerdicts(rec)
	fmt.Printf("\nReport Summary:\n")
	fmt.Printf("   Company: %s\n", rec.CompanyName)
	fmt.Printf("   Sample: %s\n", rec.Subject)
	fmt.Printf("   Total Tests: %d\n", v.Total)
	fmt.Printf("   Tests Passed: %d\n", v.Passed)
	fmt.Printf("   Tests Failed: %d\n", v.Failed)
	fmt.Printf("   Signatures Found: %d\n", rec.ActualSignatures)
	fmt.Printf("   Results Comply: %s\n", rec.ResultsComply)
}
