// Package backend opens the configured crm.Store.
package backend

import (
	"context"
	"fmt"

	"estatecrm/internal/log"
	"estatecrm/internal/memory"
	"estatecrm/internal/seed"
	"estatecrm/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) *DefaultFactory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

// CreateBackend opens the store and, when asked, seeds it.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var res *Result
	switch config.Type {
	case SQLiteBackend:
		store, err := storage.NewSQLiteStore(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
		}
		f.logger.InfoContext(ctx, "Initialized SQLite backend", "db_path", config.SQLiteDBPath)
		res = &Result{Store: store, Cleanup: store.Close}
	case MemoryBackend:
		store := memory.New()
		f.logger.InfoContext(ctx, "Initialized memory backend")
		res = &Result{Store: store, Cleanup: store.Close}
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}

	if config.SeedDemoData {
		if err := f.seed(ctx, res); err != nil {
			_ = res.Cleanup()
			return nil, err
		}
	}
	return res, nil
}

func (f *DefaultFactory) seed(ctx context.Context, res *Result) error {
	n, err := res.Store.Clients().Count(ctx)
	if err != nil {
		return fmt.Errorf("count clients: %w", err)
	}
	if n > 0 {
		f.logger.InfoContext(ctx, "Store already has data, skipping demo seed", "clients", n)
		return nil
	}
	counts, err := seed.Generate(ctx, res.Store, seed.DefaultOptions())
	if err != nil {
		return fmt.Errorf("seed demo data: %w", err)
	}
	f.logger.InfoContext(ctx, "Seeded demo data",
		"projects", counts.Projects,
		"properties", counts.Properties,
		"clients", counts.Clients,
		"loans", counts.Loans,
		"investments", counts.Investments,
		"transactions", counts.Transactions)
	return nil
}
