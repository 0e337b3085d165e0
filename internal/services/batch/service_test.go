package batch

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/labcert-validator/constants"
	"github.com/joseph-ayodele/labcert-validator/internal/common"
	"github.com/joseph-ayodele/labcert-validator/internal/entity"
	"github.com/joseph-ayodele/labcert-validator/internal/ingest"
	"github.com/joseph-ayodele/labcert-validator/internal/pipeline"
	"github.com/joseph-ayodele/labcert-validator/internal/sink"
)

type stubProcessor struct {
	mu    sync.Mutex
	calls []pipeline.Request
}

func (p *stubProcessor) Process(_ context.Context, req pipeline.Request) (*pipeline.Result, error) {
	p.mu.Lock()
	p.calls = append(p.calls, req)
	p.mu.Unlock()
	if strings.Contains(req.Path, "broken") {
		return nil, common.InvalidInputf("%s is not a PDF", req.Path)
	}
	return &pipeline.Result{
		Text:   "text of " + filepath.Base(req.Path),
		Record: &entity.Record{OurRef: filepath.Base(req.Path), ResultsComply: constants.Yes, IsThereSignature: constants.Yes},
	}, nil
}

type stubLookup map[string]*entity.Run

func (l stubLookup) FindSuccessfulByHash(_ context.Context, hash string) (*entity.Run, error) {
	if r, ok := l[hash]; ok {
		return r, nil
	}
	return nil, common.ErrNotFound
}

func writePDFs(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("%PDF-1.4 "+n), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestRun(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	writePDFs(t, in, "a.pdf", "b.pdf", "broken.pdf", "seen.pdf")

	seenHash, _, err := ingest.HashFile(filepath.Join(in, "seen.pdf"))
	if err != nil {
		t.Fatal(err)
	}
	prior, _ := json.Marshal(entity.Record{OurRef: "FROM-PRIOR-RUN"})
	lookup := stubLookup{seenHash: {ID: uuid.New(), Status: "OK", RecordJSON: prior}}

	proc := &stubProcessor{}
	svc := NewService(proc, lookup, nil, sink.NewLocal(out, nil), common.BatchConfig{Workers: 2, QueueSize: 2}, nil)
	report, err := svc.Run(context.Background(), Request{Dir: in, Excel: true, Signatures: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(report.Documents) != 4 {
		t.Fatalf("documents = %+v", report.Documents)
	}
	want := map[string]constants.RunStatus{
		"a.pdf":      constants.RunStatusOK,
		"b.pdf":      constants.RunStatusOK,
		"broken.pdf": constants.RunStatusFailed,
		"seen.pdf":   constants.RunStatusSkipped,
	}
	for i, d := range report.Documents {
		name := filepath.Base(d.Path)
		if d.Status != want[name] {
			t.Errorf("%s status = %s, want %s", name, d.Status, want[name])
		}
		if i > 0 && report.Documents[i-1].Path > d.Path {
			t.Error("documents not sorted by path")
		}
	}
	if s := report.Stats; s.Succeeded != 2 || s.Skipped != 1 || s.Failed != 1 || s.Matched != 4 {
		t.Errorf("stats = %+v", s)
	}
	if rec := report.Documents[3].Record; rec == nil || rec.OurRef != "FROM-PRIOR-RUN" {
		t.Errorf("skipped record = %+v", rec)
	}
	if !errors.Is(report.Documents[2].Err, common.ErrInvalidInput) {
		t.Errorf("broken err = %v", report.Documents[2].Err)
	}
	if len(proc.calls) != 3 || !proc.calls[0].DetectSignatures {
		t.Errorf("processor calls = %+v", proc.calls)
	}

	for _, name := range []string{"a_entities.json", "a_report.xlsx", "b_extracted_text.txt", SummaryName} {
		if _, err := os.Stat(filepath.Join(out, name)); err != nil {
			t.Errorf("missing output %s: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(out, "seen_entities.json")); err == nil {
		t.Error("skipped document should not be re-exported")
	}
	if report.SummaryPath != filepath.Join(out, SummaryName) {
		t.Errorf("summary = %s", report.SummaryPath)
	}
}

func TestRunForceIgnoresPriorRuns(t *testing.T) {
	in := t.TempDir()
	writePDFs(t, in, "seen.pdf")
	hash, _, _ := ingest.HashFile(filepath.Join(in, "seen.pdf"))

	proc := &stubProcessor{}
	svc := NewService(proc, stubLookup{hash: {ID: uuid.New()}}, nil, nil, common.BatchConfig{Workers: 1}, nil)
	report, err := svc.Run(context.Background(), Request{Dir: in, Force: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(proc.calls) != 1 || report.Stats.Succeeded != 1 || report.SummaryPath != "" {
		t.Errorf("calls = %d, report = %+v", len(proc.calls), report)
	}
}

func TestRunRejectsMissingDir(t *testing.T) {
	svc := NewService(&stubProcessor{}, nil, nil, nil, common.BatchConfig{}, nil)
	if _, err := svc.Run(context.Background(), Request{Dir: filepath.Join(t.TempDir(), "nope")}); !errors.Is(err, common.ErrInvalidInput) {
		t.Errorf("err = %v", err)
	}
}
