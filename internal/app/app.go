// Package app assembles the document processor and its collaborators from
// configuration. Binaries build one App and Close it on exit.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/labcert-validator/internal/azure/docintel"
	"github.com/joseph-ayodele/labcert-validator/internal/common"
	"github.com/joseph-ayodele/labcert-validator/internal/extract"
	"github.com/joseph-ayodele/labcert-validator/internal/images"
	"github.com/joseph-ayodele/labcert-validator/internal/llm"
	"github.com/joseph-ayodele/labcert-validator/internal/llm/gemini"
	"github.com/joseph-ayodele/labcert-validator/internal/llm/openai"
	"github.com/joseph-ayodele/labcert-validator/internal/llm/vertex"
	"github.com/joseph-ayodele/labcert-validator/internal/ocr"
	"github.com/joseph-ayodele/labcert-validator/internal/pipeline"
	"github.com/joseph-ayodele/labcert-validator/internal/repository"
	"github.com/joseph-ayodele/labcert-validator/internal/signature"
)

// Model is implemented by every LLM backend.
type Model interface {
	llm.ImageClassifier
	llm.FieldExtractor
}

// Options selects the optional parts of the pipeline.
type Options struct {
	Signatures bool // build the signature detector and its vision model
	Persist    bool // open the configured run store
}

type App struct {
	Cfg       *common.Config
	Logger    *slog.Logger
	Processor *pipeline.Processor
	// Runs is nil when no run store is configured or Persist is false.
	Runs  repository.RunRepository
	Model Model

	ping    func(ctx context.Context) error
	closers []func() error
}

// New validates cfg and builds every collaborator the options need. On error
// anything already opened is closed.
func New(ctx context.Context, cfg *common.Config, logger *slog.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &App{Cfg: cfg, Logger: logger}
	if err := a.build(ctx, opts); err != nil {
		if cerr := a.Close(); cerr != nil {
			logger.Warn("app.close.failed", "err", cerr)
		}
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context, opts Options) error {
	cfg := a.Cfg

	var di *docintel.Client
	if cfg.DocIntel.Enabled() {
		c, err := docintel.NewClient(cfg.DocIntel, nil, a.Logger)
		if err != nil {
			return err
		}
		di = c
	}

	text, err := newTextProvider(cfg, di, a.Logger)
	if err != nil {
		return err
	}

	if opts.Signatures || cfg.LLM.ExtractEntities {
		if err := cfg.ValidateLLM(); err != nil {
			return err
		}
		m, err := a.newModel(ctx)
		if err != nil {
			return err
		}
		a.Model = m
	}

	var ext extract.Extractor = extract.NewRuleExtractor(a.Logger)
	if cfg.LLM.ExtractEntities {
		ext = extract.NewLLMExtractor(a.Model, a.Logger)
	}

	var det pipeline.Detector
	if opts.Signatures {
		providers := []signature.ImageProvider{images.NewEmbeddedProvider(cfg.Signature.MinImageBytes, a.Logger)}
		if di != nil {
			providers = append(providers, docintel.NewFigureProvider(di))
		} else {
			a.Logger.Warn("app.docintel.disabled", "reason", "no endpoint or key; figure channel off")
		}
		det = signature.NewDetector(cfg.Signature, a.Model, a.Logger, providers...)
	}

	var runs pipeline.RunStore
	if opts.Persist {
		if err := a.openRunStore(ctx); err != nil {
			return err
		}
		if a.Runs != nil {
			runs = a.Runs
		}
	}

	pcfg := pipeline.Config{MaxDocBytes: cfg.Batch.MaxDocBytes}
	if a.Model != nil {
		pcfg.ModelName = a.Model.Name()
	}
	a.Processor = pipeline.NewProcessor(a.Logger, pcfg,
		pipeline.NewTextStage(text, a.Logger),
		pipeline.NewExtractStage(ext, a.Logger),
		det,
		signature.NewValidator(cfg.Validation, a.Logger),
		runs,
	)
	a.Logger.Info("app.ready",
		"text_provider", text.Name(),
		"extractor", ext.Name(),
		"signatures", opts.Signatures,
		"run_store", a.storeName(opts.Persist))
	return nil
}

func newTextProvider(cfg *common.Config, di *docintel.Client, logger *slog.Logger) (pipeline.TextProvider, error) {
	local := ocr.NewExtractor(ocr.Config{
		TesseractLang: cfg.OCR.Lang,
		DPI:           cfg.OCR.DPI,
		MaxPages:      cfg.OCR.MaxPages,
		TessdataDir:   cfg.OCR.TessdataDir,
	}, logger)

	switch cfg.OCR.Provider {
	case common.TextProviderAzure:
		if di == nil {
			return nil, common.NewAppError(common.CodeConfig, "TEXT_PROVIDER=azure needs document intelligence credentials", common.ErrInvalidInput)
		}
		return docintel.NewTextProvider(di), nil
	case common.TextProviderPdftotext:
		return local, nil
	case common.TextProviderTabula:
		return ocr.NewTabulaProvider(logger), nil
	}

	var chain []ocr.PageProvider
	if di != nil {
		chain = append(chain, docintel.NewTextProvider(di))
	}
	chain = append(chain, local, ocr.NewTabulaProvider(logger))
	return ocr.NewChain(logger, chain...), nil
}

func (a *App) newModel(ctx context.Context) (Model, error) {
	cfg := a.Cfg.LLM
	switch cfg.Provider {
	case common.LLMProviderAzure:
		return openai.NewClient(openai.Config{
			APIKey:          cfg.AzureAPIKey,
			Model:           cfg.AzureDeployment,
			AzureEndpoint:   cfg.AzureEndpoint,
			AzureAPIVersion: cfg.AzureAPIVersion,
			Temperature:     cfg.Temperature,
			MaxTokens:       cfg.MaxTokens,
			Timeout:         cfg.Timeout,
		}, a.Logger), nil
	case common.LLMProviderGemini:
		return gemini.NewClient(gemini.Config{
			APIKey:      cfg.GeminiAPIKey,
			Model:       cfg.GeminiModel,
			Temperature: cfg.Temperature,
			MaxTokens:   int32(cfg.MaxTokens),
		}, a.Logger), nil
	case common.LLMProviderVertex:
		c, err := vertex.NewClient(ctx, vertex.Config{
			ProjectID:   a.Cfg.GCP.ProjectID,
			Region:      a.Cfg.GCP.Region,
			Model:       a.Cfg.GCP.VertexModel,
			Temperature: cfg.Temperature,
			MaxTokens:   int32(cfg.MaxTokens),
		}, a.Logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, c.Close)
		return c, nil
	default:
		return openai.NewClient(openai.Config{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     cfg.Timeout,
		}, a.Logger), nil
	}
}

func (a *App) openRunStore(ctx context.Context) error {
	switch a.Cfg.Database.RunStore() {
	case common.RunStoreSQL:
		db, err := repository.Open(ctx, a.Cfg.Database, a.Logger)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() error {
			db.Close(a.Logger)
			return nil
		})
		if err := repository.Migrate(ctx, db); err != nil {
			return err
		}
		a.Runs = repository.NewRunRepository(db, a.Logger)
		a.ping = func(ctx context.Context) error {
			return db.HealthCheck(ctx, 2*time.Second, a.Logger)
		}
	case common.RunStoreFirestore:
		fs, err := repository.NewFirestoreRuns(ctx, a.Cfg.GCP.ProjectID, a.Cfg.GCP.FirestoreCollection, a.Logger)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, fs.Close)
		a.Runs = fs
		a.ping = fs.Ping
	}
	return nil
}

func (a *App) storeName(persist bool) string {
	if !persist || a.Runs == nil {
		return common.RunStoreNone
	}
	return a.Cfg.Database.RunStore()
}

// Ping checks the run store. It fails when none is open.
func (a *App) Ping(ctx context.Context) error {
	if a.ping == nil {
		return common.NewAppError(common.CodeConfig, "no run store configured (set RUN_STORE or DB_URL)", common.ErrInvalidInput)
	}
	if err := a.ping(ctx); err != nil {
		return common.NewAppError(common.CodeStorage, "run store ping", err)
	}
	return nil
}

// Close releases clients in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if len(errs) > 0 {
		return fmt.Errorf("close: %w", errors.Join(errs...))
	}
	return nil
}
