package store

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// checkpointType marks the journal line that closes a committed batch.
const checkpointType = "_checkpoint"

// JournalStore appends every saved entity to a JSONL file and then applies it
// to the wrapped store. Commit writes a batch of entities and a named
// checkpoint as one group; replay ignores a group whose checkpoint line is missing.
type JournalStore struct {
	Store
	path string

	mu          sync.Mutex
	checkpoints map[string]Checkpoint
}

type journalRecord struct {
	Type       string      `json:"type"`
	ID         string      `json:"id"`
	SavedAt    string      `json:"saved_at"`
	Batch      bool        `json:"batch,omitempty"`
	Entity     Entity      `json:"entity,omitempty"`
	Checkpoint *Checkpoint `json:"checkpoint,omitempty"`
}

func NewJournalStore(inner Store, path string) *JournalStore {
	return &JournalStore{Store: inner, path: path, checkpoints: make(map[string]Checkpoint)}
}

// OpenJournal rebuilds a memory store from the journal at path and returns a
// journal store over it, with the number of replayed entity writes.
func OpenJournal(path string) (*JournalStore, int, error) {
	mem := NewMemoryStore()
	n, checkpoints, err := ReplayJournal(path, mem)
	if err != nil {
		return nil, 0, err
	}
	s := NewJournalStore(mem, path)
	for name, cp := range checkpoints {
		s.checkpoints[name] = cp
	}
	return s, n, nil
}

func (s *JournalStore) Save(ctx context.Context, entity Entity) error {
	if err := validate(entity); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.append([]journalRecord{entityRecord(entity, false)}); err != nil {
		return err
	}
	return s.Store.Save(ctx, entity)
}

// Commit journals entities together with the checkpoint stored under name,
// then applies them to the wrapped store.
func (s *JournalStore) Commit(ctx context.Context, entities []Entity, name string, cp *Checkpoint) error {
	if name == "" {
		return fmt.Errorf("checkpoint name required")
	}
	records := make([]journalRecord, 0, len(entities)+1)
	for _, entity := range entities {
		if err := validate(entity); err != nil {
			return err
		}
		records = append(records, entityRecord(entity, true))
	}
	closing := journalRecord{
		Type:    checkpointType,
		ID:      name,
		SavedAt: time.Now().UTC().Format(time.RFC3339Nano),
		Batch:   true,
	}
	if cp != nil {
		c := *cp
		closing.Checkpoint = &c
	}
	records = append(records, closing)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.append(records); err != nil {
		return err
	}
	for _, entity := range entities {
		if err := s.Store.Save(ctx, entity); err != nil {
			return err
		}
	}
	if cp != nil {
		s.checkpoints[name] = *cp
	}
	return nil
}

// Checkpoint returns the last committed checkpoint stored under name.
func (s *JournalStore) Checkpoint(name string) (Checkpoint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp, ok := s.checkpoints[name]
	return cp, ok
}

func entityRecord(entity Entity, batch bool) journalRecord {
	return journalRecord{
		Type:    entity.EntityType(),
		ID:      entity.EntityID(),
		SavedAt: time.Now().UTC().Format(time.RFC3339Nano),
		Batch:   batch,
		Entity:  entity,
	}
}

func (s *JournalStore) append(records []journalRecord) error {
	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create journal dir: %w", err)
		}
	}

	var buf bytes.Buffer
	for _, record := range records {
		line, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal journal record: %w", err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	if _, err := writer.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write journal records: %w", err)
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush journal: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("sync journal: %w", err)
	}
	return nil
}

type replayRecord struct {
	Type       string          `json:"type"`
	ID         string          `json:"id"`
	Batch      bool            `json:"batch"`
	Entity     json.RawMessage `json:"entity"`
	Checkpoint *Checkpoint     `json:"checkpoint"`
}

// ReplayJournal loads the latest version of every journaled entity into target
// and returns the number of applied entity writes and the last checkpoints.
// Batch lines apply only once their checkpoint line is read; a trailing batch
// without one, or a torn last line, is dropped. A missing journal replays nothing.
func ReplayJournal(path string, target *MemoryStore) (int, map[string]Checkpoint, error) {
	checkpoints := make(map[string]Checkpoint)
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, checkpoints, nil
		}
		return 0, nil, fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	var (
		n       int
		lineNo  int
		pending []replayRecord
		corrupt error
	)
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if corrupt != nil {
			// only the last line may be torn
			return n, nil, corrupt
		}
		var record replayRecord
		if err := json.Unmarshal(line, &record); err != nil {
			corrupt = fmt.Errorf("journal line %d: %w", lineNo, err)
			continue
		}
		if record.Type == "" || record.ID == "" {
			return n, nil, fmt.Errorf("journal line %d: %w", lineNo, ErrInvalidEntity)
		}

		switch {
		case record.Type == checkpointType:
			for _, p := range pending {
				target.put(p.Type, p.ID, p.Entity)
				n++
			}
			pending = pending[:0]
			if record.Checkpoint != nil {
				checkpoints[record.ID] = *record.Checkpoint
			}
		case len(record.Entity) == 0:
			return n, nil, fmt.Errorf("journal line %d: %w", lineNo, ErrInvalidEntity)
		case record.Batch:
			pending = append(pending, record)
		default:
			target.put(record.Type, record.ID, record.Entity)
			n++
		}
	}
	if err := scanner.Err(); err != nil {
		return n, nil, fmt.Errorf("scan journal: %w", err)
	}
	return n, checkpoints, nil
}
