// Package signature detects signatures in a document and reconciles them
// with the signatories found in its text.
package signature

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/labcert-validator/constants"
	"github.com/joseph-ayodele/labcert-validator/internal/common"
	"github.com/joseph-ayodele/labcert-validator/internal/entity"
	"github.com/joseph-ayodele/labcert-validator/internal/images"
	"github.com/joseph-ayodele/labcert-validator/internal/llm"
)

// ImageProvider yields candidate images from one channel.
type ImageProvider interface {
	Channel() constants.ImageSource
	ExtractImages(ctx context.Context, doc *entity.Document) ([]entity.Image, error)
}

var channelLabels = map[constants.ImageSource]string{
	constants.SourceEmbedded: "PDF embedded images",
	constants.SourceLayout:   "Azure Document Intelligence figures",
}

type Detector struct {
	cfg        common.SignatureConfig
	classifier llm.ImageClassifier
	providers  []ImageProvider
	logger     *slog.Logger
}

// NewDetector wires the classifier and channels. Embedded images are always
// collected before layout figures.
func NewDetector(cfg common.SignatureConfig, classifier llm.ImageClassifier, logger *slog.Logger, providers ...ImageProvider) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.ClassifyTimeout <= 0 {
		cfg.ClassifyTimeout = 60 * time.Second
	}
	if cfg.Channels == "" {
		cfg.Channels = common.ChannelsBoth
	}
	ordered := append([]ImageProvider(nil), providers...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Channel() == constants.SourceEmbedded && ordered[j].Channel() != constants.SourceEmbedded
	})
	return &Detector{cfg: cfg, classifier: classifier, providers: ordered, logger: logger}
}

func (d *Detector) Detect(ctx context.Context, doc *entity.Document) (*entity.SignatureDetection, error) {
	if doc == nil || (doc.PageCount == 0 && len(doc.Pages) == 0) {
		return nil, common.InvalidInputf("document has no pages")
	}
	logger := common.LoggerFrom(ctx, d.logger)
	start := time.Now()

	det := &entity.SignatureDetection{
		PDFPath:          doc.Path,
		TypeCounts:       map[constants.SignatureType]int{},
		SignatureDetails: []entity.SignatureInstance{},
		ProcessingErrors: []string{},
		DetectionMethod:  d.method(),
	}
	for _, t := range constants.SignatureTypes() {
		det.TypeCounts[constants.SignatureType(t)] = 0
	}

	candidates, err := d.collect(ctx, doc, det)
	if err != nil {
		return nil, err
	}
	if d.cfg.Dedup {
		candidates, det.DuplicatesSkipped = images.Dedup(candidates, d.cfg.DedupMaxDistance)
	}
	det.TotalImagesDetected = len(candidates)

	perImage := make([][]entity.SignatureInstance, len(candidates))
	perError := make([]string, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Concurrency)
	for i, img := range candidates {
		g.Go(func() error {
			insts, msg, err := d.classify(gctx, i, img)
			if err != nil {
				return err
			}
			perImage[i] = insts
			perError[i] = msg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i := range candidates {
		if perError[i] != "" {
			det.ProcessingErrors = append(det.ProcessingErrors, perError[i])
		}
		for _, inst := range perImage[i] {
			inst.SignatureID = fmt.Sprintf("sig_%d", len(det.SignatureDetails)+1)
			det.SignatureDetails = append(det.SignatureDetails, inst)
			det.TypeCounts[inst.Type]++
			if inst.Type == constants.FullSignature {
				det.SignaturesFound++
			}
		}
	}

	logger.Info("signature.detect.ok",
		"path", doc.Path,
		"candidates", det.TotalImagesDetected,
		"duplicates", det.DuplicatesSkipped,
		"signatures", det.SignaturesFound,
		"errors", len(det.ProcessingErrors),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return det, nil
}

// collect runs every channel in order. A failing channel is recorded; the
// document fails only when every channel that ran failed.
func (d *Detector) collect(ctx context.Context, doc *entity.Document, det *entity.SignatureDetection) ([]entity.Image, error) {
	var (
		all     []entity.Image
		failed  []error
		ran     int
		counted = map[constants.ImageSource]int{}
	)
	for _, p := range d.providers {
		ch := p.Channel()
		if d.cfg.Channels == common.ChannelsEmbeddedFirst && ch != constants.SourceEmbedded && counted[constants.SourceEmbedded] > 0 {
			d.logger.Debug("signature.channel.skipped", "path", doc.Path, "channel", ch)
			continue
		}
		ran++
		imgs, err := p.ExtractImages(ctx, doc)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			d.logger.Warn("signature.channel.failed", "path", doc.Path, "channel", ch, "error", err)
			det.ProcessingErrors = append(det.ProcessingErrors, fmt.Sprintf("%s channel failed: %v", ch, err))
			failed = append(failed, err)
			continue
		}
		for i := range imgs {
			imgs[i].Source = ch
		}
		counted[ch] += len(imgs)
		all = append(all, imgs...)
	}
	if ran > 0 && len(failed) == ran {
		return nil, fmt.Errorf("every image channel failed: %w", errors.Join(failed...))
	}
	det.EmbeddedImagesFound = counted[constants.SourceEmbedded]
	det.LayoutFiguresFound = counted[constants.SourceLayout]
	return all, nil
}

// classify returns the instances for one image, or a per-image error message.
// Only permanent failures and cancellation of the document are returned as
// errors.
func (d *Detector) classify(ctx context.Context, idx int, img entity.Image) ([]entity.SignatureInstance, string, error) {
	base := entity.SignatureInstance{
		PageNumber:     img.PageNumber,
		ImageSource:    img.Source,
		ImageIndex:     idx + 1,
		ImageSizeBytes: len(img.Data),
	}

	prepared, err := images.Prepare(img, d.cfg.MaxImageDim)
	if err != nil {
		d.logger.Debug("signature.prepare.skipped", "page", img.PageNumber, "ref", img.Ref, "error", err)
	}

	cctx, cancel := context.WithTimeout(ctx, d.cfg.ClassifyTimeout)
	defer cancel()
	c, _, err := d.classifier.ClassifyImage(cctx, llm.ClassifyRequest{
		Image:      prepared.Data,
		MIMEType:   prepared.MIMEType,
		PageNumber: img.PageNumber,
		Source:     img.Source,
		Index:      idx + 1,
	})
	if err != nil {
		if common.IsPermanent(err) {
			return nil, "", fmt.Errorf("classify image %d: %w", idx+1, err)
		}
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		msg := fmt.Sprintf("image %d (page %d, %s): %v", idx+1, img.PageNumber, img.Source, err)
		d.logger.Warn("signature.classify.failed", "page", img.PageNumber, "source", img.Source, "ref", img.Ref, "error", err)
		inst := base
		inst.Type = constants.NotSignature
		inst.Reasoning = "classification failed"
		inst.Error = err.Error()
		return []entity.SignatureInstance{inst}, msg, nil
	}
	return d.instances(base, c), "", nil
}

// instances turns one classification into instances: one per full signature
// the image holds, or a single instance of its other type.
func (d *Detector) instances(base entity.SignatureInstance, c llm.Classification) []entity.SignatureInstance {
	inst := base
	inst.Confidence = c.Confidence
	inst.Reasoning = c.Reasoning

	if !c.IsSignature {
		inst.Type = constants.NotSignature
		if c.AlternativeClassification != "" && !strings.Contains(inst.Reasoning, c.AlternativeClassification) {
			inst.Reasoning = strings.TrimSpace(inst.Reasoning + " (" + c.AlternativeClassification + ")")
		}
		return []entity.SignatureInstance{inst}
	}
	if c.Confidence < d.cfg.MinConfidence {
		inst.Type = constants.NotSignature
		inst.Reasoning = fmt.Sprintf("below confidence threshold (%.2f < %.2f): %s", c.Confidence, d.cfg.MinConfidence, c.Reasoning)
		return []entity.SignatureInstance{inst}
	}

	fulls := c.FullMarks()
	if len(fulls) > 0 {
		n, note := capSignatures(len(fulls), c.SignatureCount)
		out := make([]entity.SignatureInstance, n)
		for k, m := range fulls[:n] {
			out[k] = inst
			out[k].Type = constants.FullSignature
			out[k].Position = m.Position
			out[k].Description = m.Description
			out[k].Reasoning = strings.TrimSpace(inst.Reasoning + note)
		}
		return out
	}
	if len(c.Marks) == 0 && c.Type == constants.FullSignature {
		n, note := capSignatures(max(c.FullSignatureCount, 1), c.SignatureCount)
		out := make([]entity.SignatureInstance, n)
		for k := range out {
			out[k] = inst
			out[k].Type = constants.FullSignature
			out[k].Reasoning = strings.TrimSpace(inst.Reasoning + note)
		}
		return out
	}

	inst.Type = c.Type
	if inst.Type == constants.FullSignature {
		// Marks were listed but none is a full signature.
		inst.Type, _ = constants.ParseSignatureType(c.Marks[0].Type)
	}
	if len(c.Marks) > 0 {
		inst.Position = c.Marks[0].Position
		inst.Description = c.Marks[0].Description
	}
	return []entity.SignatureInstance{inst}
}

// maxSignaturesPerImage bounds how many full signatures one image may
// contribute, whatever count the model reports.
const maxSignaturesPerImage = 6

// capSignatures limits a reported full-signature count by the model's
// total signature_count (when given) and by maxSignaturesPerImage. The note
// is empty when nothing was cut.
func capSignatures(n, total int) (int, string) {
	limit := maxSignaturesPerImage
	if total > 0 && total < limit {
		limit = total
	}
	if n <= limit {
		return n, ""
	}
	return limit, fmt.Sprintf(" [full signature count %d capped at %d]", n, limit)
}

func (d *Detector) method() string {
	var parts []string
	for _, p := range d.providers {
		if l, ok := channelLabels[p.Channel()]; ok {
			parts = append(parts, l)
		} else {
			parts = append(parts, string(p.Channel()))
		}
	}
	name := "no classifier"
	if d.classifier != nil {
		name = d.classifier.Name()
	}
	return strings.Join(parts, " + ") + " / " + name
}
