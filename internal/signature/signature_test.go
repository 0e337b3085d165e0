package signature

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joseph-ayodele/labcert-validator/constants"
	"github.com/joseph-ayodele/labcert-validator/internal/common"
	"github.com/joseph-ayodele/labcert-validator/internal/entity"
	"github.com/joseph-ayodele/labcert-validator/internal/llm"
)

type stubProvider struct {
	ch   constants.ImageSource
	imgs []entity.Image
	err  error
	hits int
}

func (p *stubProvider) Channel() constants.ImageSource { return p.ch }

func (p *stubProvider) ExtractImages(context.Context, *entity.Document) ([]entity.Image, error) {
	p.hits++
	return p.imgs, p.err
}

// stubClassifier answers by image payload.
type stubClassifier struct {
	answers map[string]llm.Classification
	errs    map[string]error
	delay   time.Duration

	mu       sync.Mutex
	inFlight int
	peak     int
	calls    atomic.Int32
}

func (c *stubClassifier) Name() string { return "stub" }

func (c *stubClassifier) ClassifyImage(ctx context.Context, req llm.ClassifyRequest) (llm.Classification, []byte, error) {
	c.calls.Add(1)
	c.mu.Lock()
	c.inFlight++
	if c.inFlight > c.peak {
		c.peak = c.inFlight
	}
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.inFlight--
		c.mu.Unlock()
	}()
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return llm.Classification{}, nil, ctx.Err()
		}
	}
	key := string(req.Image)
	if err := c.errs[key]; err != nil {
		return llm.Classification{}, nil, err
	}
	if a, ok := c.answers[key]; ok {
		return a, nil, nil
	}
	return llm.Classification{IsSignature: false, Type: constants.NotSignature, Confidence: 0.9, Reasoning: "printed text"}, nil, nil
}

func full(conf float64, marks ...llm.Mark) llm.Classification {
	return llm.Classification{IsSignature: true, Type: constants.FullSignature, Confidence: conf, Reasoning: "cursive handwriting", Marks: marks}
}

func img(page int, data string) entity.Image {
	return entity.Image{PageNumber: page, Data: []byte(data), MIMEType: "image/png"}
}

func testConfig() common.SignatureConfig {
	return common.SignatureConfig{
		Channels:         common.ChannelsBoth,
		Concurrency:      2,
		ClassifyTimeout:  time.Second,
		MinConfidence:    0.5,
		Dedup:            true,
		DedupMaxDistance: 6,
	}
}

var doc = &entity.Document{Path: "cert.pdf", PageCount: 2}

func TestDetectClassifierErrorIsLocal(t *testing.T) {
	emb := &stubProvider{ch: constants.SourceEmbedded, imgs: []entity.Image{img(1, "a"), img(1, "b"), img(2, "c")}}
	cls := &stubClassifier{
		answers: map[string]llm.Classification{
			"a": full(0.92),
			"c": full(0.88),
		},
		errs: map[string]error{"b": fmt.Errorf("upstream 503: %w", common.ErrTransient)},
	}
	det, err := NewDetector(testConfig(), cls, nil, emb).Detect(context.Background(), doc)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if det.SignaturesFound != 2 || det.TotalImagesDetected != 3 {
		t.Errorf("found=%d total=%d", det.SignaturesFound, det.TotalImagesDetected)
	}
	if len(det.ProcessingErrors) != 1 || !strings.Contains(det.ProcessingErrors[0], "image 2") {
		t.Errorf("processing_errors = %v", det.ProcessingErrors)
	}
	if len(det.SignatureDetails) != 3 {
		t.Fatalf("details = %+v", det.SignatureDetails)
	}
	failed := det.SignatureDetails[1]
	if failed.Type != constants.NotSignature || failed.Confidence != 0 || failed.Error == "" {
		t.Errorf("failed instance = %+v", failed)
	}
	for i, s := range det.SignatureDetails {
		if want := fmt.Sprintf("sig_%d", i+1); s.SignatureID != want {
			t.Errorf("id %d = %s, want %s", i, s.SignatureID, want)
		}
	}
	if det.TypeCounts[constants.FullSignature] != 2 || det.TypeCounts[constants.NotSignature] != 1 {
		t.Errorf("type_counts = %v", det.TypeCounts)
	}
}

func TestDetectNormalization(t *testing.T) {
	tests := []struct {
		name      string
		answer    llm.Classification
		wantTypes []constants.SignatureType
	}{
		{"single full", full(0.9), []constants.SignatureType{constants.FullSignature}},
		{"two full in one image", full(0.9,
			llm.Mark{Type: "full_signature", Position: "bottom left", Description: "name 'Jun Wy'"},
			llm.Mark{Type: "initials", Position: "middle"},
			llm.Mark{Type: "full_signature", Position: "bottom right"},
		), []constants.SignatureType{constants.FullSignature, constants.FullSignature}},
		{"counted without marks", llm.Classification{IsSignature: true, Type: constants.FullSignature, Confidence: 0.8, FullSignatureCount: 3},
			[]constants.SignatureType{constants.FullSignature, constants.FullSignature, constants.FullSignature}},
		{"inflated count capped", llm.Classification{IsSignature: true, Type: constants.FullSignature, Confidence: 0.8, FullSignatureCount: 500},
			repeatType(constants.FullSignature, maxSignaturesPerImage)},
		{"count bounded by total", llm.Classification{IsSignature: true, Type: constants.FullSignature, Confidence: 0.8, FullSignatureCount: 4, SignatureCount: 2},
			repeatType(constants.FullSignature, 2)},
		{"low confidence demoted", full(0.42), []constants.SignatureType{constants.NotSignature}},
		{"initials only", llm.Classification{IsSignature: true, Type: constants.Initials, Confidence: 0.9},
			[]constants.SignatureType{constants.Initials}},
		{"stamp marks under full label", full(0.9, llm.Mark{Type: "stamp"}), []constants.SignatureType{constants.Stamp}},
		{"not a signature", llm.Classification{Type: constants.NotSignature, Confidence: 0.99, AlternativeClassification: "logo"},
			[]constants.SignatureType{constants.NotSignature}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			emb := &stubProvider{ch: constants.SourceEmbedded, imgs: []entity.Image{img(1, "x")}}
			cls := &stubClassifier{answers: map[string]llm.Classification{"x": tt.answer}}
			det, err := NewDetector(testConfig(), cls, nil, emb).Detect(context.Background(), doc)
			if err != nil {
				t.Fatalf("Detect: %v", err)
			}
			if len(det.SignatureDetails) != len(tt.wantTypes) {
				t.Fatalf("details = %+v", det.SignatureDetails)
			}
			fulls := 0
			for i, w := range tt.wantTypes {
				if det.SignatureDetails[i].Type != w {
					t.Errorf("instance %d type = %s, want %s", i, det.SignatureDetails[i].Type, w)
				}
				if w == constants.FullSignature {
					fulls++
				}
			}
			if det.SignaturesFound != fulls {
				t.Errorf("signatures_found = %d, want %d", det.SignaturesFound, fulls)
			}
		})
	}
}

func repeatType(t constants.SignatureType, n int) []constants.SignatureType {
	out := make([]constants.SignatureType, n)
	for i := range out {
		out[i] = t
	}
	return out
}

func TestDetectCappedCountIsNoted(t *testing.T) {
	emb := &stubProvider{ch: constants.SourceEmbedded, imgs: []entity.Image{img(1, "x")}}
	answer := llm.Classification{IsSignature: true, Type: constants.FullSignature, Confidence: 0.9, Reasoning: "several signatures", FullSignatureCount: 500}
	cls := &stubClassifier{answers: map[string]llm.Classification{"x": answer}}
	det, err := NewDetector(testConfig(), cls, nil, emb).Detect(context.Background(), doc)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if det.SignaturesFound != maxSignaturesPerImage {
		t.Fatalf("signatures_found = %d, want %d", det.SignaturesFound, maxSignaturesPerImage)
	}
	if r := det.SignatureDetails[0].Reasoning; !strings.Contains(r, "capped at") || !strings.HasPrefix(r, "several signatures") {
		t.Errorf("reasoning = %q", r)
	}
}

func TestDetectMixedDocument(t *testing.T) {
	imgs := []entity.Image{
		img(1, "full-a"), img(1, "full-b"), img(2, "full-c"),
		img(1, "ini-a"), img(2, "ini-b"), img(2, "stamp"),
	}
	initials := llm.Classification{IsSignature: true, Type: constants.Initials, Confidence: 0.9}
	stamp := llm.Classification{IsSignature: true, Type: constants.Stamp, Confidence: 0.9}
	cls := &stubClassifier{answers: map[string]llm.Classification{
		"full-a": full(0.9), "full-b": full(0.85), "full-c": full(0.8),
		"ini-a": initials, "ini-b": initials, "stamp": stamp,
	}}
	emb := &stubProvider{ch: constants.SourceEmbedded, imgs: imgs}
	det, err := NewDetector(testConfig(), cls, nil, emb).Detect(context.Background(), doc)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if det.SignaturesFound != 3 || det.TotalImagesDetected != 6 {
		t.Errorf("found/total = %d/%d, want 3/6", det.SignaturesFound, det.TotalImagesDetected)
	}
	want := map[constants.SignatureType]int{constants.FullSignature: 3, constants.Initials: 2, constants.Stamp: 1}
	for typ, n := range want {
		if det.TypeCounts[typ] != n {
			t.Errorf("type_counts[%s] = %d, want %d", typ, det.TypeCounts[typ], n)
		}
	}
	if len(det.SignatureDetails) != 6 || det.SignatureDetails[5].SignatureID != "sig_6" {
		t.Errorf("details = %+v", det.SignatureDetails)
	}
}

func TestDetectLowConfidenceReasoning(t *testing.T) {
	emb := &stubProvider{ch: constants.SourceEmbedded, imgs: []entity.Image{img(1, "x")}}
	cls := &stubClassifier{answers: map[string]llm.Classification{"x": full(0.3)}}
	det, _ := NewDetector(testConfig(), cls, nil, emb).Detect(context.Background(), doc)
	if !strings.HasPrefix(det.SignatureDetails[0].Reasoning, "below confidence threshold") {
		t.Errorf("reasoning = %q", det.SignatureDetails[0].Reasoning)
	}
}

func TestDetectPermanentErrorAborts(t *testing.T) {
	emb := &stubProvider{ch: constants.SourceEmbedded, imgs: []entity.Image{img(1, "a"), img(1, "b")}}
	cls := &stubClassifier{errs: map[string]error{"b": fmt.Errorf("401: %w", common.ErrPermanent)}}
	_, err := NewDetector(testConfig(), cls, nil, emb).Detect(context.Background(), doc)
	if !common.IsPermanent(err) {
		t.Errorf("err = %v, want permanent", err)
	}
}

func TestDetectEdgeCases(t *testing.T) {
	cls := &stubClassifier{}

	_, err := NewDetector(testConfig(), cls, nil).Detect(context.Background(), &entity.Document{Path: "empty.pdf"})
	if !errors.Is(err, common.ErrInvalidInput) {
		t.Errorf("zero pages: err = %v", err)
	}

	det, err := NewDetector(testConfig(), cls, nil, &stubProvider{ch: constants.SourceEmbedded}).Detect(context.Background(), doc)
	if err != nil {
		t.Fatalf("zero images: %v", err)
	}
	if det.TotalImagesDetected != 0 || det.SignaturesFound != 0 || det.SignatureDetails == nil || det.ProcessingErrors == nil {
		t.Errorf("zero images detection = %+v", det)
	}
}

func TestDetectChannels(t *testing.T) {
	t.Run("one channel failing is recorded", func(t *testing.T) {
		emb := &stubProvider{ch: constants.SourceEmbedded, imgs: []entity.Image{img(1, "a")}}
		lay := &stubProvider{ch: constants.SourceLayout, err: errors.New("service unavailable")}
		cls := &stubClassifier{answers: map[string]llm.Classification{"a": full(0.9)}}
		det, err := NewDetector(testConfig(), cls, nil, lay, emb).Detect(context.Background(), doc)
		if err != nil {
			t.Fatalf("Detect: %v", err)
		}
		if det.SignaturesFound != 1 || len(det.ProcessingErrors) != 1 {
			t.Errorf("det = %+v", det)
		}
		if det.EmbeddedImagesFound != 1 || det.LayoutFiguresFound != 0 {
			t.Errorf("channel counts = %d/%d", det.EmbeddedImagesFound, det.LayoutFiguresFound)
		}
	})

	t.Run("every channel failing fails the document", func(t *testing.T) {
		emb := &stubProvider{ch: constants.SourceEmbedded, err: errors.New("bad xref")}
		lay := &stubProvider{ch: constants.SourceLayout, err: errors.New("service unavailable")}
		_, err := NewDetector(testConfig(), &stubClassifier{}, nil, emb, lay).Detect(context.Background(), doc)
		if err == nil {
			t.Error("expected error")
		}
	})

	t.Run("embedded_first skips figures when images exist", func(t *testing.T) {
		cfg := testConfig()
		cfg.Channels = common.ChannelsEmbeddedFirst
		emb := &stubProvider{ch: constants.SourceEmbedded, imgs: []entity.Image{img(1, "a")}}
		lay := &stubProvider{ch: constants.SourceLayout, imgs: []entity.Image{img(1, "b")}}
		det, err := NewDetector(cfg, &stubClassifier{}, nil, lay, emb).Detect(context.Background(), doc)
		if err != nil {
			t.Fatalf("Detect: %v", err)
		}
		if lay.hits != 0 || det.TotalImagesDetected != 1 {
			t.Errorf("layout hits = %d, total = %d", lay.hits, det.TotalImagesDetected)
		}
	})

	t.Run("both channels with exact duplicates", func(t *testing.T) {
		emb := &stubProvider{ch: constants.SourceEmbedded, imgs: []entity.Image{img(1, "same"), img(2, "other")}}
		lay := &stubProvider{ch: constants.SourceLayout, imgs: []entity.Image{img(1, "same")}}
		cls := &stubClassifier{answers: map[string]llm.Classification{"same": full(0.9)}}
		det, err := NewDetector(testConfig(), cls, nil, emb, lay).Detect(context.Background(), doc)
		if err != nil {
			t.Fatalf("Detect: %v", err)
		}
		if det.DuplicatesSkipped != 1 || det.TotalImagesDetected != 2 || det.SignaturesFound != 1 {
			t.Errorf("dup=%d total=%d found=%d", det.DuplicatesSkipped, det.TotalImagesDetected, det.SignaturesFound)
		}
		if det.EmbeddedImagesFound != 2 || det.LayoutFiguresFound != 1 {
			t.Errorf("channel counts = %d/%d", det.EmbeddedImagesFound, det.LayoutFiguresFound)
		}
		if got := cls.calls.Load(); got != 2 {
			t.Errorf("classifier calls = %d, want 2", got)
		}
	})

	t.Run("same signature image on two pages counts twice", func(t *testing.T) {
		emb := &stubProvider{ch: constants.SourceEmbedded, imgs: []entity.Image{img(1, "sig"), img(2, "sig")}}
		cls := &stubClassifier{answers: map[string]llm.Classification{"sig": full(0.9)}}
		det, err := NewDetector(testConfig(), cls, nil, emb).Detect(context.Background(), doc)
		if err != nil {
			t.Fatalf("Detect: %v", err)
		}
		if det.SignaturesFound != 2 || det.DuplicatesSkipped != 0 {
			t.Errorf("found=%d dup=%d", det.SignaturesFound, det.DuplicatesSkipped)
		}
	})

	t.Run("dedup disabled classifies every candidate", func(t *testing.T) {
		cfg := testConfig()
		cfg.Dedup = false
		emb := &stubProvider{ch: constants.SourceEmbedded, imgs: []entity.Image{img(1, "same")}}
		lay := &stubProvider{ch: constants.SourceLayout, imgs: []entity.Image{img(1, "same")}}
		cls := &stubClassifier{answers: map[string]llm.Classification{"same": full(0.9)}}
		det, _ := NewDetector(cfg, cls, nil, emb, lay).Detect(context.Background(), doc)
		if det.SignaturesFound != 2 || det.DuplicatesSkipped != 0 {
			t.Errorf("found=%d dup=%d", det.SignaturesFound, det.DuplicatesSkipped)
		}
	})
}

func TestDetectBoundedConcurrencyAndTimeout(t *testing.T) {
	var imgs []entity.Image
	for i := 0; i < 6; i++ {
		imgs = append(imgs, img(1, fmt.Sprintf("img-%d", i)))
	}
	cfg := testConfig()
	cfg.ClassifyTimeout = 20 * time.Millisecond
	cls := &stubClassifier{delay: 200 * time.Millisecond}
	det, err := NewDetector(cfg, cls, nil, &stubProvider{ch: constants.SourceEmbedded, imgs: imgs}).Detect(context.Background(), doc)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if cls.peak > cfg.Concurrency {
		t.Errorf("peak concurrency = %d, limit %d", cls.peak, cfg.Concurrency)
	}
	if len(det.ProcessingErrors) != 6 || det.SignaturesFound != 0 {
		t.Errorf("timeouts should be local failures: errors=%d", len(det.ProcessingErrors))
	}
}
