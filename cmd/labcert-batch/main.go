package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joseph-ayodele/labcert-validator/internal/app"
	"github.com/joseph-ayodele/labcert-validator/internal/common"
	"github.com/joseph-ayodele/labcert-validator/internal/export"
	"github.com/joseph-ayodele/labcert-validator/internal/services/batch"
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
		dir        = flag.String("dir", "", "directory to process lab certificates from (required)")
		outDir     = flag.String("out", "", "output directory (default $OUTPUT_DIR)")
		force      = flag.Bool("force", false, "reprocess documents that already have a successful run")
		excel      = flag.Bool("excel", false, "write a report workbook per document")
		signatures = flag.Bool("signatures", false, "run signature detection")
		watch      = flag.Bool("watch", false, "keep running and process new PDFs as they appear")
		debounce   = flag.Duration("debounce", 2*time.Second, "quiet period before a new file is processed in -watch mode")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		return 2
	}

	logger := app.NewLogger(nil, os.Getenv("LOG_LEVEL"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := common.LoadConfig()
	a, err := app.New(ctx, cfg, logger, app.Options{Signatures: *signatures, Persist: true})
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		return 1
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			logger.Warn("app.close.failed", "err", cerr)
		}
	}()

	out, closeOut, err := sink.New(ctx, cfg.Output, *outDir, logger)
	if err != nil {
		logger.Error("failed to open output sink", "error", err)
		return 1
	}
	defer func() {
		if cerr := closeOut(); cerr != nil {
			logger.Warn("sink.close.failed", "err", cerr)
		}
	}()

	svc := batch.NewService(a.Processor, a.Runs, export.NewService(logger), out, cfg.Batch, logger)
	req := batch.Request{Dir: *dir, Force: *force, Excel: *excel, Signatures: *signatures}

	if *watch {
		if err := svc.Watch(ctx, req, *debounce); err != nil {
			logger.Error("watch failed", "error", err)
			return 1
		}
		return 0
	}

	report, err := svc.Run(ctx, req)
	if err != nil && report == nil {
		logger.Error("batch failed", "error", err)
		return 1
	}

	fmt.Printf("Batch processing complete!\n")
	fmt.Printf("- Documents found: %d\n", report.Stats.Matched)
	fmt.Printf("- Processed: %d\n", report.Stats.Succeeded)
	fmt.Printf("- Skipped (already processed): %d\n", report.Stats.Skipped)
	fmt.Printf("- Failures: %d\n", report.Stats.Failed)
	for _, d := range report.Documents {
		if d.Err != nil {
			fmt.Printf("  ! %s: %v\n", d.Path, d.Err)
		}
	}
	if report.SummaryPath != "" {
		fmt.Printf("- Summary: %s\n", report.SummaryPath)
	}

	switch {
	case errors.Is(err, context.Canceled):
		printError("Interrupted\n")
		return 130
	case err != nil:
		logger.Error("batch failed", "error", err)
		return 1
	case report.Stats.Failed > 0:
		return 3
	}
	return 0
}
