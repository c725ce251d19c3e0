package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore keeps JSON-encoded entities in memory.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]map[string][]byte)}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) Load(_ context.Context, entity Entity) (bool, error) {
	if err := validate(entity); err != nil {
		return false, err
	}

	s.mu.RLock()
	raw, ok := s.data[entity.EntityType()][entity.EntityID()]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}

	if err := json.Unmarshal(raw, entity); err != nil {
		return false, fmt.Errorf("decode %s %s: %w", entity.EntityType(), entity.EntityID(), err)
	}
	return true, nil
}

func (s *MemoryStore) Save(_ context.Context, entity Entity) error {
	if err := validate(entity); err != nil {
		return err
	}

	raw, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", entity.EntityType(), entity.EntityID(), err)
	}

	s.put(entity.EntityType(), entity.EntityID(), raw)
	return nil
}

func (s *MemoryStore) put(entityType, id string, raw []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID, ok := s.data[entityType]
	if !ok {
		byID = make(map[string][]byte)
		s.data[entityType] = byID
	}
	byID[id] = append([]byte(nil), raw...)
}

func (s *MemoryStore) IDs(_ context.Context, entityType string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.data[entityType]))
	for id := range s.data[entityType] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Count returns the number of stored entities of a type.
func (s *MemoryStore) Count(entityType string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data[entityType])
}
