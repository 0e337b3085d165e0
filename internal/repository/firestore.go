package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/joseph-ayodele/labcert-validator/constants"
	"github.com/joseph-ayodele/labcert-validator/internal/common"
	"github.com/joseph-ayodele/labcert-validator/internal/entity"
)

// runDoc is the Firestore shape of a run. Ids and the record travel as
// strings so documents stay readable in the console.
type runDoc struct {
	ID                 string     `firestore:"id"`
	SourcePath         string     `firestore:"source_path"`
	ContentHash        string     `firestore:"content_hash"`
	StartedAt          time.Time  `firestore:"started_at"`
	FinishedAt         *time.Time `firestore:"finished_at,omitempty"`
	Status             string     `firestore:"status"`
	ErrorMessage       string     `firestore:"error_message,omitempty"`
	ExpectedSignatures int        `firestore:"expected_signatures"`
	ActualSignatures   int        `firestore:"actual_signatures"`
	ResultsComply      string     `firestore:"results_comply,omitempty"`
	ModelName          string     `firestore:"model_name,omitempty"`
	RecordJSON         string     `firestore:"record_json,omitempty"`
}

func toDoc(run *entity.Run) runDoc {
	return runDoc{
		ID:                 run.ID.String(),
		SourcePath:         run.SourcePath,
		ContentHash:        run.ContentHash,
		StartedAt:          run.StartedAt,
		FinishedAt:         run.FinishedAt,
		Status:             run.Status,
		ErrorMessage:       deref(run.ErrorMessage),
		ExpectedSignatures: run.ExpectedSignatures,
		ActualSignatures:   run.ActualSignatures,
		ResultsComply:      run.ResultsComply,
		ModelName:          deref(run.ModelName),
		RecordJSON:         string(run.RecordJSON),
	}
}

func (d runDoc) toRun() (*entity.Run, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("run id %q: %w", d.ID, err)
	}
	run := &entity.Run{
		ID:                 id,
		SourcePath:         d.SourcePath,
		ContentHash:        d.ContentHash,
		StartedAt:          d.StartedAt,
		FinishedAt:         d.FinishedAt,
		Status:             d.Status,
		ExpectedSignatures: d.ExpectedSignatures,
		ActualSignatures:   d.ActualSignatures,
		ResultsComply:      d.ResultsComply,
	}
	if d.ErrorMessage != "" {
		run.ErrorMessage = &d.ErrorMessage
	}
	if d.ModelName != "" {
		run.ModelName = &d.ModelName
	}
	if d.RecordJSON != "" {
		run.RecordJSON = []byte(d.RecordJSON)
	}
	return run, nil
}

// FirestoreRuns stores runs as documents keyed by run id.
type FirestoreRuns struct {
	client     *firestore.Client
	collection string
	logger     *slog.Logger
}

// NewFirestoreRuns creates a Firestore client for projectID.
func NewFirestoreRuns(ctx context.Context, projectID, collection string, logger *slog.Logger, opts ...option.ClientOption) (*FirestoreRuns, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if projectID == "" {
		return nil, common.NewAppError(common.CodeConfig, "projectID must be provided to create a firestore client", common.ErrInvalidInput)
	}
	if collection == "" {
		collection = "validation_runs"
	}
	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}
	return &FirestoreRuns{client: client, collection: collection, logger: logger}, nil
}

func (f *FirestoreRuns) Close() error {
	return f.client.Close()
}

func (f *FirestoreRuns) Start(ctx context.Context, run *entity.Run) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if _, err := f.client.Collection(f.collection).Doc(run.ID.String()).Create(ctx, toDoc(run)); err != nil {
		f.logger.Error("validation_run start failed", "run_id", run.ID, "err", err)
		return fmt.Errorf("%w: create run: %w", common.ErrDatabase, err)
	}
	f.logger.Info("validation_run started", "run_id", run.ID, "path", run.SourcePath)
	return nil
}

func (f *FirestoreRuns) Finish(ctx context.Context, run *entity.Run) error {
	if run.FinishedAt == nil {
		now := time.Now().UTC()
		run.FinishedAt = &now
	}
	if _, err := f.client.Collection(f.collection).Doc(run.ID.String()).Set(ctx, toDoc(run)); err != nil {
		f.logger.Error("validation_run finish failed", "run_id", run.ID, "err", err)
		return fmt.Errorf("%w: set run: %w", common.ErrDatabase, err)
	}
	f.logger.Info("validation_run finished", "run_id", run.ID, "status", run.Status)
	return nil
}

func (f *FirestoreRuns) FindSuccessfulByHash(ctx context.Context, contentHash string) (*entity.Run, error) {
	it := f.client.Collection(f.collection).
		Where("content_hash", "==", contentHash).
		Where("status", "==", string(constants.RunStatusOK)).
		Limit(1).
		Documents(ctx)
	defer it.Stop()

	snap, err := it.Next()
	if errors.Is(err, iterator.Done) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: query runs: %w", common.ErrDatabase, err)
	}
	var doc runDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", snap.Ref.ID, err)
	}
	return doc.toRun()
}

// Ping reads one document to prove credentials and project are usable.
func (f *FirestoreRuns) Ping(ctx context.Context) error {
	it := f.client.Collection(f.collection).Limit(1).Documents(ctx)
	defer it.Stop()
	if _, err := it.Next(); err != nil && !errors.Is(err, iterator.Done) {
		return fmt.Errorf("%w: %w", common.ErrDatabase, err)
	}
	return nil
}
