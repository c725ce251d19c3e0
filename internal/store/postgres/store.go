package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"liquidityLedger/internal/store"
)

// Store persists entities as JSONB rows keyed by (entity_type, id).
type Store struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Load reads an entity by type and id.
func (s *Store) Load(ctx context.Context, entity store.Entity) (bool, error) {
	if entity == nil || entity.EntityType() == "" || entity.EntityID() == "" {
		return false, store.ErrInvalidEntity
	}

	var data []byte
	row := s.pool.QueryRow(ctx, `SELECT data FROM entities WHERE entity_type=$1 AND id=$2`,
		entity.EntityType(), entity.EntityID())
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("load %s %s: %w", entity.EntityType(), entity.EntityID(), err)
	}

	if err := json.Unmarshal(data, entity); err != nil {
		return false, fmt.Errorf("decode %s %s: %w", entity.EntityType(), entity.EntityID(), err)
	}
	return true, nil
}

const upsertEntitySQL = `
	INSERT INTO entities (entity_type, id, data, created_at, updated_at)
	VALUES ($1, $2, $3, now(), now())
	ON CONFLICT (entity_type, id)
	DO UPDATE SET data = EXCLUDED.data, updated_at = now()
`

const upsertStateSQL = `
	INSERT INTO indexer_state (name, last_block, last_log_index, updated_at)
	VALUES ($1, $2, $3, now())
	ON CONFLICT (name) DO UPDATE
	SET last_block = EXCLUDED.last_block, last_log_index = EXCLUDED.last_log_index, updated_at = now()
`

// execer is satisfied by both the pool and an open transaction.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Save inserts or replaces an entity.
func (s *Store) Save(ctx context.Context, entity store.Entity) error {
	return saveEntity(ctx, s.pool, entity)
}

func saveEntity(ctx context.Context, db execer, entity store.Entity) error {
	if entity == nil || entity.EntityType() == "" || entity.EntityID() == "" {
		return store.ErrInvalidEntity
	}

	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", entity.EntityType(), entity.EntityID(), err)
	}

	if _, err := db.Exec(ctx, upsertEntitySQL, entity.EntityType(), entity.EntityID(), data); err != nil {
		return fmt.Errorf("save %s %s: %w", entity.EntityType(), entity.EntityID(), err)
	}
	return nil
}

// Commit writes entities and, when cp is set, the cursor stored under name in
// a single transaction.
func (s *Store) Commit(ctx context.Context, entities []store.Entity, name string, cp *store.Checkpoint) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin commit: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, entity := range entities {
		if err := saveEntity(ctx, tx, entity); err != nil {
			return err
		}
	}
	if cp != nil {
		if _, err := tx.Exec(ctx, upsertStateSQL, name, int64(cp.Block), int64(cp.LogIndex)); err != nil {
			return fmt.Errorf("save state %s: %w", name, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// IDs lists ids for an entity type in ascending order.
func (s *Store) IDs(ctx context.Context, entityType string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM entities WHERE entity_type=$1 ORDER BY id`, entityType)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", entityType, err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan %s ids: %w", entityType, err)
	}
	return ids, nil
}

// LoadState returns the processing cursor stored under name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, uint64, bool, error) {
	if name == "" {
		return 0, 0, false, fmt.Errorf("state name required")
	}
	var block, logIndex int64
	row := s.pool.QueryRow(ctx, `SELECT last_block, last_log_index FROM indexer_state WHERE name=$1`, name)
	if err := row.Scan(&block, &logIndex); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, false, nil
		}
		return 0, 0, false, err
	}
	return uint64(block), uint64(logIndex), true, nil
}

// SaveState upserts the processing cursor for name.
func (s *Store) SaveState(ctx context.Context, name string, block, logIndex uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, upsertStateSQL, name, int64(block), int64(logIndex))
	return err
}
