package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joseph-ayodele/labcert-validator/internal/app"
	"github.com/joseph-ayodele/labcert-validator/internal/common"
	"github.com/joseph-ayodele/labcert-validator/internal/export"
	"github.com/joseph-ayodele/labcert-validator/internal/pipeline"
	"github.com/joseph-ayodele/labcert-validator/internal/sink"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	os.Exit(run())
}

func run() int {
	var (
		excel      = flag.Bool("excel", false, "also write <stem>_report.xlsx")
		signatures = flag.Bool("signatures", false, "run signature detection")
		outDir     = flag.String("out", "", "output directory (default $OUTPUT_DIR)")
		quiet      = flag.Bool("quiet", false, "do not print the entity summary")
	)
	flag.Usage = func() {
		printError("usage: labcert [-excel] [-signatures] [-out dir] <file.pdf>\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		return 2
	}
	path := flag.Arg(0)

	logger := app.NewLogger(os.Stderr, os.Getenv("LOG_LEVEL"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := common.LoadConfig()
	a, err := app.New(ctx, cfg, logger, app.Options{Signatures: *signatures, Persist: true})
	if err != nil {
		printError("Error: %v\n", err)
		return 1
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			logger.Warn("app.close.failed", "err", cerr)
		}
	}()

	out, closeOut, err := sink.New(ctx, cfg.Output, *outDir, logger)
	if err != nil {
		printError("Error: %v\n", err)
		return 1
	}
	defer func() {
		if cerr := closeOut(); cerr != nil {
			logger.Warn("sink.close.failed", "err", cerr)
		}
	}()

	res, err := a.Processor.Process(ctx, pipeline.Request{Path: path, DetectSignatures: *signatures})
	if err != nil {
		printError("Error processing %s: %v\n", path, err)
		return 1
	}

	written, err := export.NewService(logger).WriteDocument(ctx, out, export.DocumentOutputs{
		Source:    path,
		Text:      res.Text,
		Record:    res.Record,
		Detection: res.Detection,
		Excel:     *excel,
	})
	if err != nil {
		printError("Error writing outputs: %v\n", err)
		return 1
	}

	if !*quiet {
		if err := export.WriteSummary(os.Stdout, res.Record, export.Stem(path)); err != nil {
			printError("Error printing summary: %v\n", err)
		}
	}
	fmt.Printf("Run %s finished in %s\n", res.RunID, res.Duration.Round(time.Millisecond))
	for _, loc := range written {
		fmt.Printf("- %s\n", loc)
	}
	return 0
}
