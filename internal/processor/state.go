package processor

import (
	"context"
	"fmt"

	"liquidityLedger/internal/store"
	"liquidityLedger/internal/store/postgres"
)

// Cursor is the position of an event in the chain-ordered stream.
type Cursor struct {
	Block    uint64 `json:"block_number"`
	LogIndex uint64 `json:"log_index"`
}

// After reports whether c comes strictly after other.
func (c Cursor) After(other Cursor) bool {
	if c.Block != other.Block {
		return c.Block > other.Block
	}
	return c.LogIndex > other.LogIndex
}

func (c Cursor) String() string {
	return fmt.Sprintf("%d:%d", c.Block, c.LogIndex)
}

func (c *Cursor) checkpoint() *store.Checkpoint {
	if c == nil {
		return nil
	}
	return &store.Checkpoint{Block: c.Block, LogIndex: c.LogIndex}
}

// Checkpointer makes entity writes durable together with the cursor of the
// last event they belong to. A nil cursor commits entities only.
type Checkpointer interface {
	Load(ctx context.Context) (Cursor, bool, error)
	Commit(ctx context.Context, entities []store.Entity, cursor *Cursor) error
}

// JournalCheckpointer commits through an entity journal, closing each batch
// with a named checkpoint line.
type JournalCheckpointer struct {
	Journal *store.JournalStore
	Name    string
}

func (c *JournalCheckpointer) Load(ctx context.Context) (Cursor, bool, error) {
	cp, ok := c.Journal.Checkpoint(c.Name)
	return Cursor{Block: cp.Block, LogIndex: cp.LogIndex}, ok, nil
}

func (c *JournalCheckpointer) Commit(ctx context.Context, entities []store.Entity, cursor *Cursor) error {
	return c.Journal.Commit(ctx, entities, c.Name, cursor.checkpoint())
}

// DBCheckpointer commits entities and the indexer_state row in one transaction.
type DBCheckpointer struct {
	Store *postgres.Store
	Name  string
}

func (c *DBCheckpointer) Load(ctx context.Context) (Cursor, bool, error) {
	block, logIndex, ok, err := c.Store.LoadState(ctx, c.Name)
	if err != nil || !ok {
		return Cursor{}, ok, err
	}
	return Cursor{Block: block, LogIndex: logIndex}, true, nil
}

func (c *DBCheckpointer) Commit(ctx context.Context, entities []store.Entity, cursor *Cursor) error {
	return c.Store.Commit(ctx, entities, c.Name, cursor.checkpoint())
}
