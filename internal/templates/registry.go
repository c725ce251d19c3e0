package templates

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityLedger/internal/model"
	"liquidityLedger/internal/store"
)

// ErrKindConflict is returned when an address is registered under two templates.
var ErrKindConflict = errors.New("address already registered with another template")

// Source is a contract watched through a template.
type Source struct {
	Kind           Kind
	Address        common.Address
	Context        model.DataSourceContext
	CreatedAtBlock uint64
}

// Registry tracks data sources created from templates and persists them.
type Registry struct {
	store  store.Store
	logger *zap.Logger

	mu      sync.RWMutex
	sources map[common.Address]Source
}

func NewRegistry(s store.Store, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		store:   s,
		logger:  logger,
		sources: make(map[common.Address]Source),
	}
}

// Create starts watching address with the given template.
func (r *Registry) Create(ctx context.Context, kind Kind, address common.Address, block uint64) error {
	return r.CreateWithContext(ctx, kind, address, block, nil)
}

// CreateWithContext starts watching address and attaches a context payload.
// Registering an address again with the same kind keeps the first context.
func (r *Registry) CreateWithContext(ctx context.Context, kind Kind, address common.Address, block uint64, dsContext model.DataSourceContext) error {
	if !kind.Valid() {
		return fmt.Errorf("create data source %s: unknown template %s", address.Hex(), kind)
	}
	if err := dsContext.Validate(); err != nil {
		return fmt.Errorf("create data source %s: %w", address.Hex(), err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.sources[address]; ok {
		if existing.Kind != kind {
			return fmt.Errorf("%w: %s is %s, not %s", ErrKindConflict, address.Hex(), existing.Kind, kind)
		}
		r.logger.Debug("data source already registered",
			zap.String("template", kind.String()),
			zap.String("address", address.Hex()),
		)
		return nil
	}

	dsContext = copyContext(dsContext)
	entity := &model.DataSource{
		ID:             model.AddressID(address),
		Template:       kind.String(),
		Address:        model.AddressID(address),
		Context:        dsContext,
		CreatedAtBlock: block,
	}
	if err := r.store.Save(ctx, entity); err != nil {
		return fmt.Errorf("save data source %s: %w", entity.ID, err)
	}

	r.sources[address] = Source{Kind: kind, Address: address, Context: dsContext, CreatedAtBlock: block}
	r.logger.Info("data source created",
		zap.String("template", kind.String()),
		zap.String("address", address.Hex()),
		zap.Uint64("block_number", block),
	)
	return nil
}

func copyContext(in model.DataSourceContext) model.DataSourceContext {
	if len(in) == 0 {
		return nil
	}
	out := make(model.DataSourceContext, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

// Restore reloads persisted data sources and returns how many were loaded.
func (r *Registry) Restore(ctx context.Context) (int, error) {
	ids, err := r.store.IDs(ctx, model.DataSourceType)
	if err != nil {
		return 0, fmt.Errorf("list data sources: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range ids {
		entity := &model.DataSource{ID: id}
		found, err := r.store.Load(ctx, entity)
		if err != nil {
			return 0, fmt.Errorf("load data source %s: %w", id, err)
		}
		if !found {
			continue
		}
		kind, err := ParseKind(entity.Template)
		if err != nil {
			return 0, fmt.Errorf("data source %s: %w", id, err)
		}
		if !common.IsHexAddress(entity.Address) {
			return 0, fmt.Errorf("data source %s: invalid address %q", id, entity.Address)
		}
		address := common.HexToAddress(entity.Address)
		r.sources[address] = Source{
			Kind:           kind,
			Address:        address,
			Context:        entity.Context,
			CreatedAtBlock: entity.CreatedAtBlock,
		}
	}
	return len(ids), nil
}

// Lookup returns the data source watching address.
func (r *Registry) Lookup(address common.Address) (Source, bool) {
	r.mu.RLock()
	source, ok := r.sources[address]
	r.mu.RUnlock()
	source.Context = copyContext(source.Context)
	return source, ok
}

// Addresses returns every watched address in byte order.
func (r *Registry) Addresses() []common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]common.Address, 0, len(r.sources))
	for address := range r.sources {
		out = append(out, address)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Bytes(), out[j].Bytes()) < 0
	})
	return out
}
