package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/labcert-validator/constants"
	"github.com/joseph-ayodele/labcert-validator/internal/common"
	"github.com/joseph-ayodele/labcert-validator/internal/entity"
)

// RunRepository persists one row per processed document.
type RunRepository interface {
	Start(ctx context.Context, run *entity.Run) error
	Finish(ctx context.Context, run *entity.Run) error
	// FindSuccessfulByHash returns the latest OK run for a content hash, or
	// common.ErrNotFound.
	FindSuccessfulByHash(ctx context.Context, contentHash string) (*entity.Run, error)
}

const (
	runTable = "validation_run"
	// fixed width so lexical order is chronological
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

var runColumns = []string{
	"id", "source_path", "content_hash", "started_at", "finished_at", "status",
	"error_message", "expected_signatures", "actual_signatures", "results_comply",
	"model_name", "record_json",
}

type runRepo struct {
	db     *sql.DB
	sb     *entsql.DialectBuilder
	logger *slog.Logger
}

func NewRunRepository(db *DB, logger *slog.Logger) RunRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &runRepo{db: db.SQL, sb: entsql.Dialect(db.Dialect), logger: logger}
}

// Schema is plain DDL that both sqlite and postgres accept. The ent builders
// only cover DML.
const (
	createRunTable = `CREATE TABLE IF NOT EXISTS validation_run (
	id                  TEXT PRIMARY KEY,
	source_path         TEXT NOT NULL,
	content_hash        TEXT NOT NULL,
	started_at          TEXT NOT NULL,
	finished_at         TEXT,
	status              TEXT NOT NULL,
	error_message       TEXT,
	expected_signatures INTEGER NOT NULL DEFAULT 0,
	actual_signatures   INTEGER NOT NULL DEFAULT 0,
	results_comply      TEXT,
	model_name          TEXT,
	record_json         TEXT
)`
	createRunIndex = `CREATE INDEX IF NOT EXISTS validation_run_hash_status ON validation_run (content_hash, status)`
)

// Migrate creates the run table and its lookup index when missing. It is
// safe to call on every start.
func Migrate(ctx context.Context, db *DB) error {
	for _, stmt := range []string{createRunTable, createRunIndex} {
		if _, err := db.SQL.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%w: migrate %s: %w", common.ErrDatabase, runTable, err)
		}
	}
	return nil
}

func (r *runRepo) Start(ctx context.Context, run *entity.Run) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.Status == "" {
		run.Status = string(constants.RunStatusRunning)
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	query, args := r.sb.Insert(runTable).
		Columns(runColumns...).
		Values(runValues(run)...).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("validation_run start failed", "run_id", run.ID, "err", err)
		return fmt.Errorf("%w: insert run: %w", common.ErrDatabase, err)
	}
	r.logger.Info("validation_run started", "run_id", run.ID, "path", run.SourcePath)
	return nil
}

func (r *runRepo) Finish(ctx context.Context, run *entity.Run) error {
	if run.FinishedAt == nil {
		now := time.Now().UTC()
		run.FinishedAt = &now
	}
	vals := runValues(run)
	upd := r.sb.Update(runTable)
	for i, col := range runColumns {
		if col == "id" || col == "started_at" {
			continue
		}
		upd.Set(col, vals[i])
	}
	query, args := upd.Where(entsql.EQ("id", run.ID.String())).Query()
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("validation_run finish failed", "run_id", run.ID, "err", err)
		return fmt.Errorf("%w: update run: %w", common.ErrDatabase, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.NewAppError(common.CodeStorage, "run "+run.ID.String(), common.ErrNotFound)
	}
	if run.Status == string(constants.RunStatusFailed) {
		r.logger.Warn("validation_run finished (FAILED)", "run_id", run.ID, "error", deref(run.ErrorMessage))
	} else {
		r.logger.Info("validation_run finished", "run_id", run.ID, "status", run.Status)
	}
	return nil
}

func (r *runRepo) FindSuccessfulByHash(ctx context.Context, contentHash string) (*entity.Run, error) {
	query, args := r.sb.Select(runColumns...).
		From(entsql.Table(runTable)).
		Where(entsql.And(
			entsql.EQ("content_hash", contentHash),
			entsql.EQ("status", string(constants.RunStatusOK)),
		)).
		OrderBy(entsql.Desc("started_at")).
		Limit(1).
		Query()
	row := r.db.QueryRowContext(ctx, query, args...)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: query run: %w", common.ErrDatabase, err)
	}
	return run, nil
}

func runValues(run *entity.Run) []any {
	var finished, record any
	if run.FinishedAt != nil {
		finished = run.FinishedAt.UTC().Format(timeLayout)
	}
	if len(run.RecordJSON) > 0 {
		record = string(run.RecordJSON)
	}
	return []any{
		run.ID.String(),
		run.SourcePath,
		run.ContentHash,
		run.StartedAt.UTC().Format(timeLayout),
		finished,
		run.Status,
		nullable(run.ErrorMessage),
		run.ExpectedSignatures,
		run.ActualSignatures,
		run.ResultsComply,
		nullable(run.ModelName),
		record,
	}
}

func scanRun(row *sql.Row) (*entity.Run, error) {
	var id, started string
	var finished, errMsg, model, record, comply sql.NullString
	var run entity.Run
	err := row.Scan(&id, &run.SourcePath, &run.ContentHash, &started, &finished, &run.Status,
		&errMsg, &run.ExpectedSignatures, &run.ActualSignatures, &comply, &model, &record)
	if err != nil {
		return nil, err
	}
	if run.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("run id %q: %w", id, err)
	}
	if run.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return nil, fmt.Errorf("started_at %q: %w", started, err)
	}
	if finished.Valid {
		t, err := time.Parse(timeLayout, finished.String)
		if err != nil {
			return nil, fmt.Errorf("finished_at %q: %w", finished.String, err)
		}
		run.FinishedAt = &t
	}
	if errMsg.Valid {
		run.ErrorMessage = &errMsg.String
	}
	if model.Valid {
		run.ModelName = &model.String
	}
	run.ResultsComply = comply.String
	if record.Valid {
		run.RecordJSON = []byte(record.String)
	}
	return &run, nil
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
