package store

import (
	"context"
	"fmt"

	"github.com/datallboy/autodl/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore keeps history in a shared database, for several
// instances reporting to one place.
type PostgresStore struct {
	pool    *pgxpool.Pool
	version uint
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	version, err := migratePostgres(db)
	db.Close()
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("could not migrate database: %w", err)
	}

	return &PostgresStore{pool: pool, version: version}, nil
}

func (s *PostgresStore) SaveRecord(ctx context.Context, rec *domain.HistoryRecord) error {
	query := `INSERT INTO job_history (id, batch_id, url, outcome, attempts, error, started_at, finished_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
              ON CONFLICT (id) DO UPDATE SET
                  outcome = EXCLUDED.outcome,
                  attempts = EXCLUDED.attempts,
                  error = EXCLUDED.error,
                  finished_at = EXCLUDED.finished_at`

	_, err := s.pool.Exec(ctx, query,
		rec.ID,
		rec.BatchID,
		rec.URL,
		string(rec.Outcome),
		rec.Attempts,
		rec.Error,
		rec.StartedAt,
		rec.FinishedAt,
	)
	return err
}

func (s *PostgresStore) ListRecords(ctx context.Context, limit int) ([]*domain.HistoryRecord, error) {
	query := `
			SELECT id, batch_id, url, outcome, attempts, error, started_at, finished_at
			FROM job_history
			ORDER BY finished_at DESC, id DESC
			LIMIT $1`

	rows, err := s.pool.Query(ctx, query, listLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]*domain.HistoryRecord, 0)
	for rows.Next() {
		rec := &domain.HistoryRecord{}
		var outcome string

		err := rows.Scan(&rec.ID, &rec.BatchID, &rec.URL, &outcome, &rec.Attempts, &rec.Error, &rec.StartedAt, &rec.FinishedAt)
		if err != nil {
			return nil, err
		}

		rec.Outcome = domain.JobOutcome(outcome)
		records = append(records, rec)
	}

	return records, rows.Err()
}

func (s *PostgresStore) SchemaVersion() uint {
	return s.version
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
