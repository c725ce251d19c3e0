package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"liquidityLedger/internal/config"
	"liquidityLedger/internal/processor"
	"liquidityLedger/internal/store"
	"liquidityLedger/internal/store/postgres"
)

// openedStore is the entity store of a command plus the backend handle that
// commits batches: the postgres store or the journal.
type openedStore struct {
	store.Store
	pg      *postgres.Store
	journal *store.JournalStore
}

func (o *openedStore) Close() {
	if o.pg != nil {
		o.pg.Close()
	}
}

func openStore(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (*openedStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Kind {
	case config.StorePostgres:
		pg, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		logger.Info("store open", zap.String("store", cfg.Kind), zap.String("pg_dsn", redactDSN(cfg.PGDSN)))
		return &openedStore{Store: pg, pg: pg}, nil
	default:
		journal, n, err := store.OpenJournal(cfg.Journal)
		if err != nil {
			return nil, err
		}
		logger.Info("store open",
			zap.String("store", cfg.Kind),
			zap.String("journal", cfg.Journal),
			zap.Int("replayed", n),
		)
		return &openedStore{Store: journal, journal: journal}, nil
	}
}

// checkpointer commits entity batches together with the cursor stored under name.
func (o *openedStore) checkpointer(name string) processor.Checkpointer {
	if o.pg != nil {
		return &processor.DBCheckpointer{Store: o.pg, Name: name}
	}
	return &processor.JournalCheckpointer{Journal: o.journal, Name: name}
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
