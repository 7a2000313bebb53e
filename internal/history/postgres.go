// Package history persists completed run results to Postgres.
package history

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/your-org/mediascribe/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS run_results (
	id           BIGSERIAL PRIMARY KEY,
	run_id       UUID NOT NULL,
	position     INT NOT NULL,
	operation    TEXT NOT NULL,
	source_name  TEXT NOT NULL,
	text         TEXT NOT NULL,
	format_label TEXT NOT NULL,
	sentiment    TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS run_results_run_id_idx ON run_results (run_id);
`

const insertResult = `
	INSERT INTO run_results (run_id, position, operation, source_name, text, format_label, sentiment)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
`

// DB is the subset of *pgxpool.Pool the repository needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type Repository struct {
	db DB
}

func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

// Open connects to url and returns the pool; the caller closes it.
func Open(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("create pg pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// Migrate creates the results table if it is missing.
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate run_results: %w", err)
	}
	return nil
}

// Save writes every result of a run in one batch.
func (r *Repository) Save(ctx context.Context, runID string, op domain.Operation, results []domain.ProcessingResult) error {
	if len(results) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i, res := range results {
		batch.Queue(insertResult, runID, i, string(op), res.SourceName, res.Text, res.FormatLabel, string(res.Sentiment))
	}

	br := r.db.SendBatch(ctx, batch)
	for range results {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("insert run result: %w", err)
		}
	}
	return br.Close()
}
