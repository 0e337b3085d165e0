package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/joseph-ayodele/labcert-validator/constants"
	"github.com/joseph-ayodele/labcert-validator/internal/common"
	"github.com/joseph-ayodele/labcert-validator/internal/entity"
	"github.com/joseph-ayodele/labcert-validator/internal/extract"
	"github.com/joseph-ayodele/labcert-validator/internal/signature"
	"github.com/joseph-ayodele/labcert-validator/internal/testutil"
)

type stubText struct {
	pages []entity.Page
	err   error
}

func (s stubText) Name() string { return "stub" }

func (s stubText) ExtractPages(context.Context, *entity.Document) ([]entity.Page, error) {
	return s.pages, s.err
}

type stubDetector struct {
	det *entity.SignatureDetection
	err error
}

func (s stubDetector) Detect(context.Context, *entity.Document) (*entity.SignatureDetection, error) {
	return s.det, s.err
}

type memRuns struct {
	mu       sync.Mutex
	started  []entity.Run
	finished []entity.Run
}

func (m *memRuns) Start(_ context.Context, run *entity.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = append(m.started, *run)
	return nil
}

func (m *memRuns) Finish(_ context.Context, run *entity.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished = append(m.finished, *run)
	return nil
}

const certText = "Our Ref: COA-42\nDate: 03/04/2024\n\nQA APPROVED\nJun Wy"

func fullSigs(n int) *entity.SignatureDetection {
	det := &entity.SignatureDetection{TypeCounts: map[constants.SignatureType]int{}}
	for i := 0; i < n; i++ {
		det.SignatureDetails = append(det.SignatureDetails, entity.SignatureInstance{
			SignatureID: fmt.Sprintf("sig_%d", i+1),
			PageNumber:  1,
			Type:        constants.FullSignature,
			Confidence:  0.9,
		})
		det.SignaturesFound++
	}
	return det
}

func newProcessor(text TextProvider, det Detector, runs RunStore) *Processor {
	return NewProcessor(nil, Config{ModelName: "stub"},
		NewTextStage(text, nil),
		NewExtractStage(extract.NewRuleExtractor(nil), nil),
		det,
		signature.NewValidator(common.ValidationConfig{}, nil),
		runs,
	)
}

func TestProcessHappyPath(t *testing.T) {
	runs := &memRuns{}
	text := stubText{pages: []entity.Page{{Number: 1, Text: certText}}}
	p := newProcessor(text, stubDetector{det: fullSigs(1)}, runs)

	res, err := p.Process(context.Background(), Request{Path: "cert.pdf", Data: testutil.MinimalPDF(2, false), DetectSignatures: true})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	rec := res.Record
	if rec.OurRef != "COA-42" || rec.LabReportCreationDate != "03/04/2024" {
		t.Errorf("header = %q %q", rec.OurRef, rec.LabReportCreationDate)
	}
	if rec.ExpectedSignatures != 1 || rec.ActualSignatures != 1 || rec.ResultsComply != constants.Yes {
		t.Errorf("record = %+v", rec)
	}
	if len(res.Document.Pages) != 2 {
		t.Errorf("pages = %d, want 2 (padded to page count)", len(res.Document.Pages))
	}
	if res.Detection == nil || rec.SignatureDetection == nil {
		t.Error("detection should be returned and attached")
	}
	if len(runs.started) != 1 || len(runs.finished) != 1 || runs.finished[0].Status != string(constants.RunStatusOK) {
		t.Fatalf("runs = %+v / %+v", runs.started, runs.finished)
	}
	if runs.finished[0].ID != res.RunID || len(runs.finished[0].RecordJSON) == 0 {
		t.Errorf("finished run = %+v", runs.finished[0])
	}
}

func TestProcessTextFailureDegrades(t *testing.T) {
	p := newProcessor(stubText{err: fmt.Errorf("pdftotext: %w", common.ErrTransient)}, nil, nil)
	res, err := p.Process(context.Background(), Request{Path: "cert.pdf", Data: testutil.MinimalPDF(1, false)})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Record.OurRef != constants.NotFound || res.Record.IsThereSignature != constants.No {
		t.Errorf("record = %+v", res.Record)
	}
	if !strings.Contains(strings.Join(res.Record.ExtractionNotes, ";"), "text extraction failed") {
		t.Errorf("notes = %v", res.Record.ExtractionNotes)
	}
}

func TestProcessFailures(t *testing.T) {
	tests := []struct {
		name    string
		text    TextProvider
		det     Detector
		req     Request
		want    error
		started int
	}{
		{
			name: "not a pdf",
			text: stubText{},
			req:  Request{Path: "x.pdf", Data: []byte("hello")},
			want: common.ErrInvalidInput,
		},
		{
			name:    "permanent text error",
			text:    stubText{err: fmt.Errorf("401: %w", common.ErrPermanent)},
			req:     Request{Path: "x.pdf", Data: testutil.MinimalPDF(1, false)},
			want:    common.ErrPermanent,
			started: 1,
		},
		{
			name:    "permanent classifier error",
			text:    stubText{pages: []entity.Page{{Number: 1, Text: certText}}},
			det:     stubDetector{err: fmt.Errorf("quota: %w", common.ErrPermanent)},
			req:     Request{Path: "x.pdf", Data: testutil.MinimalPDF(1, false), DetectSignatures: true},
			want:    common.ErrPermanent,
			started: 1,
		},
		{
			name:    "detection without detector",
			text:    stubText{},
			req:     Request{Path: "x.pdf", Data: testutil.MinimalPDF(1, false), DetectSignatures: true},
			want:    common.ErrInvalidInput,
			started: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs := &memRuns{}
			_, err := newProcessor(tt.text, tt.det, runs).Process(context.Background(), tt.req)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if len(runs.started) != tt.started {
				t.Errorf("started = %d, want %d", len(runs.started), tt.started)
			}
			if tt.started > 0 && (len(runs.finished) != 1 || runs.finished[0].Status != string(constants.RunStatusFailed)) {
				t.Errorf("finished = %+v", runs.finished)
			}
		})
	}
}
