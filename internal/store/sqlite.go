package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/datallboy/autodl/internal/domain"
	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	db      *sql.DB
	version uint
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {

	// Ensure the database directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// Ping makes sure the file is actually accessible and the DSN is valid
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to sqlite: %w", err)
	}

	version, err := migrateSQLite(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not migrate database: %w", err)
	}

	return &SQLiteStore{db: db, version: version}, nil
}

func (s *SQLiteStore) SaveRecord(ctx context.Context, rec *domain.HistoryRecord) error {
	query := `INSERT OR REPLACE INTO job_history (id, batch_id, url, outcome, attempts, error, started_at, finished_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		rec.ID,
		rec.BatchID,
		rec.URL,
		string(rec.Outcome),
		rec.Attempts,
		rec.Error,
		rec.StartedAt.UnixMilli(),
		rec.FinishedAt.UnixMilli(),
	)
	return err
}

// ListRecords returns the newest records first
func (s *SQLiteStore) ListRecords(ctx context.Context, limit int) ([]*domain.HistoryRecord, error) {
	query := `
			SELECT id, batch_id, url, outcome, attempts, error, started_at, finished_at
			FROM job_history
			ORDER BY finished_at DESC, id DESC
			LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, listLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]*domain.HistoryRecord, 0)
	for rows.Next() {
		rec := &domain.HistoryRecord{}
		var started, finished int64

		err := rows.Scan(&rec.ID, &rec.BatchID, &rec.URL, &rec.Outcome, &rec.Attempts, &rec.Error, &started, &finished)
		if err != nil {
			return nil, err
		}

		rec.StartedAt = time.UnixMilli(started)
		rec.FinishedAt = time.UnixMilli(finished)
		records = append(records, rec)
	}

	return records, rows.Err()
}

// SchemaVersion is the migration version the database is at
func (s *SQLiteStore) SchemaVersion() uint {
	return s.version
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
