package domain

import (
	"context"
	"time"
)

type JobOutcome string

const (
	OutcomeCompleted JobOutcome = "completed"
	OutcomeFailed    JobOutcome = "failed"
	OutcomeAborted   JobOutcome = "aborted"
)

// HistoryRecord describes one finished job
type HistoryRecord struct {
	ID         string     `json:"id"`
	BatchID    string     `json:"batch_id"`
	URL        string     `json:"url"`
	Outcome    JobOutcome `json:"outcome"`
	Attempts   int        `json:"attempts"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
}

// HistoryStore persists finished jobs. Implementations must be safe for concurrent use
type HistoryStore interface {
	SaveRecord(ctx context.Context, rec *HistoryRecord) error
	ListRecords(ctx context.Context, limit int) ([]*HistoryRecord, error)
	Close() error
}
