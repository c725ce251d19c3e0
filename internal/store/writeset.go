package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Checkpoint is the stream position committed together with entity writes.
type Checkpoint struct {
	Block    uint64 `json:"block_number"`
	LogIndex uint64 `json:"log_index"`
}

// WriteSet buffers saves over a base store. Loads see buffered values first.
// Nothing reaches the base until the buffered entities are taken and applied.
type WriteSet struct {
	base Store

	mu      sync.RWMutex
	order   []entityKey
	pending map[entityKey]json.RawMessage
}

type entityKey struct {
	entityType string
	id         string
}

// pendingEntity is a buffered entity in its encoded form.
type pendingEntity struct {
	key  entityKey
	data json.RawMessage
}

func (p pendingEntity) EntityType() string           { return p.key.entityType }
func (p pendingEntity) EntityID() string             { return p.key.id }
func (p pendingEntity) MarshalJSON() ([]byte, error) { return p.data, nil }

func NewWriteSet(base Store) *WriteSet {
	return &WriteSet{base: base, pending: make(map[entityKey]json.RawMessage)}
}

var _ Store = (*WriteSet)(nil)

func (w *WriteSet) Load(ctx context.Context, entity Entity) (bool, error) {
	if err := validate(entity); err != nil {
		return false, err
	}

	w.mu.RLock()
	raw, ok := w.pending[entityKey{entity.EntityType(), entity.EntityID()}]
	w.mu.RUnlock()
	if !ok {
		return w.base.Load(ctx, entity)
	}

	if err := json.Unmarshal(raw, entity); err != nil {
		return false, fmt.Errorf("decode %s %s: %w", entity.EntityType(), entity.EntityID(), err)
	}
	return true, nil
}

func (w *WriteSet) Save(_ context.Context, entity Entity) error {
	if err := validate(entity); err != nil {
		return err
	}

	raw, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", entity.EntityType(), entity.EntityID(), err)
	}

	key := entityKey{entity.EntityType(), entity.EntityID()}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.pending[key]; !ok {
		w.order = append(w.order, key)
	}
	w.pending[key] = raw
	return nil
}

func (w *WriteSet) IDs(ctx context.Context, entityType string) ([]string, error) {
	ids, err := w.base.IDs(ctx, entityType)
	if err != nil {
		return nil, err
	}

	w.mu.RLock()
	defer w.mu.RUnlock()

	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		seen[id] = true
	}
	for _, key := range w.order {
		if key.entityType == entityType && !seen[key.id] {
			ids = append(ids, key.id)
			seen[key.id] = true
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Len returns the number of buffered entities.
func (w *WriteSet) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.order)
}

// Take returns the buffered entities in first-save order and empties the set.
func (w *WriteSet) Take() []Entity {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]Entity, 0, len(w.order))
	for _, key := range w.order {
		out = append(out, pendingEntity{key: key, data: w.pending[key]})
	}
	w.order = nil
	w.pending = make(map[entityKey]json.RawMessage)
	return out
}

// Discard drops every buffered entity.
func (w *WriteSet) Discard() {
	w.Take()
}

// Flush saves the buffered entities into the base store and empties the set.
func (w *WriteSet) Flush(ctx context.Context) error {
	for _, entity := range w.Take() {
		if err := w.base.Save(ctx, entity); err != nil {
			return err
		}
	}
	return nil
}
