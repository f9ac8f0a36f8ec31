package runrepo

import (
	"context"
	"database/sql"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yanqian/ai-notesum/internal/domain/summarizer"
)

// Schema creates the history table.
const Schema = `
CREATE TABLE IF NOT EXISTS summary_runs (
	id          BIGSERIAL PRIMARY KEY,
	run_id      BIGINT NOT NULL,
	document_id TEXT,
	model       TEXT NOT NULL,
	placement   TEXT NOT NULL,
	chunks      INT NOT NULL,
	state       TEXT NOT NULL,
	summary     TEXT NOT NULL DEFAULT '',
	error       TEXT,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL
)`

// PostgresRepository implements summarizer.HistoryRepository using pgx.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository constructs the repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Migrate creates the table when missing.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, Schema)
	return err
}

// Record inserts one run.
func (r *PostgresRepository) Record(ctx context.Context, rec summarizer.RunRecord) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO summary_runs (run_id, document_id, model, placement, chunks, state, summary, error, started_at, finished_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, NULLIF($8, ''), $9, $10)
	`, int64(rec.RunID), rec.DocumentID, rec.Model, string(rec.Placement), rec.Chunks, string(rec.State), rec.Summary, rec.Error, rec.StartedAt, rec.FinishedAt)
	return err
}

// List returns up to limit runs, newest first.
func (r *PostgresRepository) List(ctx context.Context, limit int) ([]summarizer.RunRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT run_id, document_id, model, placement, chunks, state, summary, error, started_at, finished_at
		FROM summary_runs
		ORDER BY finished_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []summarizer.RunRecord
	for rows.Next() {
		rec, err := scanRunRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanRunRecord(row pgx.Row) (summarizer.RunRecord, error) {
	var (
		rec        summarizer.RunRecord
		runID      int64
		documentID sql.NullString
		placement  string
		state      string
		errText    sql.NullString
	)
	if err := row.Scan(&runID, &documentID, &rec.Model, &placement, &rec.Chunks, &state, &rec.Summary, &errText, &rec.StartedAt, &rec.FinishedAt); err != nil {
		return summarizer.RunRecord{}, err
	}
	rec.RunID = uint64(runID)
	rec.DocumentID = documentID.String
	rec.Placement = summarizer.Placement(placement)
	rec.State = summarizer.State(state)
	rec.Error = errText.String
	return rec, nil
}

var _ summarizer.HistoryRepository = (*PostgresRepository)(nil)
