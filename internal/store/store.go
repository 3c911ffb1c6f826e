package store

import (
	"context"
	"fmt"

	"github.com/datallboy/autodl/internal/domain"
	"github.com/datallboy/autodl/internal/infra/config"
)

// defaultListLimit caps ListRecords when the caller passes no limit
const defaultListLimit = 100

// New opens the history store selected by cfg.Driver. On error the
// returned store is a nil interface.
func New(ctx context.Context, cfg config.StoreConfig) (domain.HistoryStore, error) {
	switch cfg.Driver {
	case "", "sqlite":
		s, err := NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres":
		s, err := NewPostgresStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "none":
		return NopStore{}, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// NopStore discards history. Used when persistence is disabled.
type NopStore struct{}

func (NopStore) SaveRecord(context.Context, *domain.HistoryRecord) error { return nil }

func (NopStore) ListRecords(context.Context, int) ([]*domain.HistoryRecord, error) {
	return []*domain.HistoryRecord{}, nil
}

func (NopStore) Close() error { return nil }

func listLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return limit
}
