package processor

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"liquidityLedger/internal/model"
	"liquidityLedger/internal/store"
)

// ErrOutOfOrder is returned when the input goes back in (block, log index) order.
var ErrOutOfOrder = errors.New("event out of order")

// EventHandler applies one decoded event and reports whether it was relevant.
type EventHandler interface {
	Handle(ctx context.Context, record model.TypedEventRecord) (bool, error)
}

// ExceptionRecorder stores audit records for failed transactions.
type ExceptionRecorder interface {
	CreateException(ctx context.Context, addrs, txHash []byte, message string) error
}

// Config controls processing behavior.
//
// Handlers write into Events, whose base is Batch. A handled event's writes
// move into Batch; a failed event's writes are dropped. Batch is committed
// through Checkpointer with the cursor of the last applied event, so entity
// writes and the cursor become durable together.
type Config struct {
	CheckpointEvery int
	Checkpointer    Checkpointer
	Events          *store.WriteSet
	Batch           *store.WriteSet
}

// Stats summarises one run.
type Stats struct {
	Total      int
	Handled    int
	Ignored    int
	Skipped    int
	Duplicates int
	Failed     int
	Commits    int
}

// Processor feeds a typed-event stream through the mappings in order.
type Processor struct {
	cfg        Config
	handler    EventHandler
	exceptions ExceptionRecorder
	logger     *zap.Logger
}

func NewProcessor(cfg Config, handler EventHandler, exceptions ExceptionRecorder, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CheckpointEvery <= 0 {
		cfg.CheckpointEvery = 1000
	}
	return &Processor{
		cfg:        cfg,
		handler:    handler,
		exceptions: exceptions,
		logger:     logger,
	}
}

// progress is the cursor of the last applied event and whether it or any
// buffered write is not committed yet.
type progress struct {
	cursor Cursor
	ok     bool
	dirty  bool
}

func (p progress) last() *Cursor {
	if !p.ok {
		return nil
	}
	c := p.cursor
	return &c
}

// Run processes a typed events JSONL file, resuming after the committed cursor.
func (p *Processor) Run(ctx context.Context, inputPath string) (Stats, error) {
	var stats Stats
	if p.handler == nil {
		return stats, fmt.Errorf("handler is nil")
	}

	resume, hasResume, err := p.loadState(ctx)
	if err != nil {
		return stats, err
	}
	if hasResume {
		p.logger.Info("resuming", zap.String("cursor", resume.String()))
	}

	file, err := os.Open(inputPath)
	if err != nil {
		return stats, fmt.Errorf("open input: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	var (
		seen      Cursor
		hasSeen   bool
		sinceSave int
		state     = progress{cursor: resume, ok: hasResume}
	)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return stats, p.abort(ctx, &stats, state, err)
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		stats.Total++

		var record model.TypedEventRecord
		if err := json.Unmarshal(line, &record); err != nil {
			stats.Failed++
			p.logger.Warn("decode typed event", zap.Error(err))
			continue
		}

		cursor := Cursor{Block: record.BlockNumber, LogIndex: record.LogIndex}
		if hasSeen && !cursor.After(seen) {
			if cursor == seen {
				stats.Duplicates++
				p.logger.Warn("duplicate event skipped",
					zap.String("cursor", cursor.String()),
					zap.String("tx_hash", record.TxHash),
				)
				continue
			}
			err := fmt.Errorf("%w: %s after %s", ErrOutOfOrder, cursor, seen)
			return stats, p.abort(ctx, &stats, state, err)
		}
		seen, hasSeen = cursor, true

		if hasResume && !cursor.After(resume) {
			stats.Skipped++
			continue
		}

		handled, err := p.handler.Handle(ctx, record)
		if err != nil {
			p.discardEvent()
			p.recordException(ctx, record, err)
			if flushErr := p.flushEvent(ctx); flushErr != nil {
				p.logger.Warn("exception not recorded", zap.String("tx_hash", record.TxHash), zap.Error(flushErr))
				p.discardEvent()
			}
			state.dirty = true
			err = fmt.Errorf("handle %s at %s: %w", record.EventName, cursor, err)
			return stats, p.abort(ctx, &stats, state, err)
		}
		if err := p.flushEvent(ctx); err != nil {
			p.discardEvent()
			return stats, p.abort(ctx, &stats, state, fmt.Errorf("buffer %s at %s: %w", record.EventName, cursor, err))
		}
		state = progress{cursor: cursor, ok: true, dirty: true}
		if !handled {
			stats.Ignored++
			continue
		}
		stats.Handled++

		sinceSave++
		if sinceSave >= p.cfg.CheckpointEvery {
			if err := p.commit(ctx, &stats, state.last()); err != nil {
				return stats, err
			}
			sinceSave = 0
			state.dirty = false
		}
	}

	if err := scanner.Err(); err != nil {
		return stats, p.abort(ctx, &stats, state, fmt.Errorf("scan input: %w", err))
	}

	if state.dirty {
		if err := p.commit(ctx, &stats, state.last()); err != nil {
			return stats, err
		}
	}

	p.logger.Info("process complete",
		zap.Int("total", stats.Total),
		zap.Int("handled", stats.Handled),
		zap.Int("ignored", stats.Ignored),
		zap.Int("skipped", stats.Skipped),
		zap.Int("duplicates", stats.Duplicates),
		zap.Int("failed", stats.Failed),
		zap.Int("commits", stats.Commits),
		zap.String("cursor", state.cursor.String()),
	)
	return stats, nil
}

// abort commits everything applied before the failing event and returns cause.
func (p *Processor) abort(ctx context.Context, stats *Stats, state progress, cause error) error {
	if !state.dirty {
		return cause
	}
	if err := p.commit(context.WithoutCancel(ctx), stats, state.last()); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

func (p *Processor) flushEvent(ctx context.Context) error {
	if p.cfg.Events == nil {
		return nil
	}
	return p.cfg.Events.Flush(ctx)
}

func (p *Processor) discardEvent() {
	if p.cfg.Events != nil {
		p.cfg.Events.Discard()
	}
}

func (p *Processor) commit(ctx context.Context, stats *Stats, cursor *Cursor) error {
	if p.cfg.Checkpointer == nil {
		if p.cfg.Batch == nil {
			return nil
		}
		if err := p.cfg.Batch.Flush(ctx); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		stats.Commits++
		return nil
	}

	var entities []store.Entity
	if p.cfg.Batch != nil {
		entities = p.cfg.Batch.Take()
	}
	if err := p.cfg.Checkpointer.Commit(ctx, entities, cursor); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	stats.Commits++
	fields := []zap.Field{zap.Int("entities", len(entities))}
	if cursor != nil {
		fields = append(fields, zap.String("cursor", cursor.String()))
	}
	p.logger.Debug("committed", fields...)
	return nil
}

func (p *Processor) recordException(ctx context.Context, record model.TypedEventRecord, cause error) {
	p.logger.Error("event failed",
		zap.String("tx_hash", record.TxHash),
		zap.String("address", record.Address),
		zap.String("event", record.EventName),
		zap.Error(cause),
	)
	if p.exceptions == nil {
		return
	}
	var addrs []byte
	if common.IsHexAddress(record.Address) {
		addrs = common.HexToAddress(record.Address).Bytes()
	}
	txHash, err := hexutil.Decode(record.TxHash)
	if err != nil {
		p.logger.Warn("exception not recorded", zap.String("tx_hash", record.TxHash), zap.Error(err))
		return
	}
	if err := p.exceptions.CreateException(ctx, addrs, txHash, cause.Error()); err != nil {
		p.logger.Warn("exception not recorded", zap.String("tx_hash", record.TxHash), zap.Error(err))
	}
}

func (p *Processor) loadState(ctx context.Context) (Cursor, bool, error) {
	if p.cfg.Checkpointer == nil {
		return Cursor{}, false, nil
	}
	cursor, ok, err := p.cfg.Checkpointer.Load(ctx)
	if err != nil {
		return Cursor{}, false, fmt.Errorf("load state: %w", err)
	}
	return cursor, ok, nil
}
