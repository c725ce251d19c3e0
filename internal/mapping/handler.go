package mapping

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityLedger/internal/chain"
	"liquidityLedger/internal/ledger"
	"liquidityLedger/internal/model"
	"liquidityLedger/internal/numeric"
	"liquidityLedger/internal/templates"
)

// FactoryResolver resolves which template a factory contract spawns.
type FactoryResolver interface {
	FactoryKind(address common.Address) (templates.Kind, bool)
}

// Handler routes decoded events to the ledger and the template registry.
type Handler struct {
	factories FactoryResolver
	registry  *templates.Registry
	ledger    *ledger.Ledger
	logger    *zap.Logger
}

func NewHandler(factories FactoryResolver, registry *templates.Registry, l *ledger.Ledger, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		factories: factories,
		registry:  registry,
		ledger:    l,
		logger:    logger,
	}
}

// Handle processes one event and reports whether any mapping applied to it.
func (h *Handler) Handle(ctx context.Context, record model.TypedEventRecord) (bool, error) {
	switch record.EventName {
	case model.EventPairCreated:
		emitter, err := chain.ParseAddress(record.Address)
		if err != nil {
			return false, err
		}
		kind, ok := h.factories.FactoryKind(emitter)
		if !ok {
			return false, nil
		}
		return true, h.handlePairCreated(ctx, kind, emitter, record)
	case model.EventTransfer:
		emitter, err := chain.ParseAddress(record.Address)
		if err != nil {
			return false, err
		}
		source, ok := h.registry.Lookup(emitter)
		if !ok {
			return false, nil
		}
		return true, h.handleTransfer(ctx, source, record)
	default:
		return false, nil
	}
}

func (h *Handler) handlePairCreated(ctx context.Context, kind templates.Kind, factory common.Address, record model.TypedEventRecord) error {
	var data model.PairCreatedEventData
	if err := json.Unmarshal(record.Decoded, &data); err != nil {
		return fmt.Errorf("decode pair created: %w", err)
	}
	addrs, err := chain.ParseAddresses([]string{data.Pair, data.Token0, data.Token1})
	if err != nil {
		return fmt.Errorf("pair created: %w", err)
	}
	if len(addrs) != 3 {
		return fmt.Errorf("pair created: pair, token0 and token1 are required")
	}

	dsContext := model.DataSourceContext{
		"factory": factory,
		"token0":  addrs[1],
		"token1":  addrs[2],
	}
	return h.registry.CreateWithContext(ctx, kind, addrs[0], record.BlockNumber, dsContext)
}

func (h *Handler) handleTransfer(ctx context.Context, source templates.Source, record model.TypedEventRecord) error {
	var data model.TransferEventData
	if err := json.Unmarshal(record.Decoded, &data); err != nil {
		return fmt.Errorf("decode transfer: %w", err)
	}
	from, err := chain.ParseAddress(data.From)
	if err != nil {
		return fmt.Errorf("transfer from: %w", err)
	}
	to, err := chain.ParseAddress(data.To)
	if err != nil {
		return fmt.Errorf("transfer to: %w", err)
	}
	value, err := numeric.ParseBigInt(data.Value)
	if err != nil {
		return fmt.Errorf("transfer value: %w", err)
	}
	if value.Sign() < 0 {
		return fmt.Errorf("transfer value is negative: %s", value)
	}

	for _, change := range transferChanges(source.Address, from, to, value) {
		if err := h.apply(ctx, source, record, change); err != nil {
			return err
		}
	}
	return nil
}

type balanceChange struct {
	user  common.Address
	delta *big.Int
}

// transferChanges maps an LP token transfer to per-user mint/burn deltas.
func transferChanges(pair, from, to common.Address, value *big.Int) []balanceChange {
	zero := common.Address{}
	switch {
	case from == zero && to == zero:
		return nil
	case from == zero:
		return []balanceChange{{user: to, delta: new(big.Int).Set(value)}}
	case to == zero && from == pair:
		// pair burning liquidity it already received
		return nil
	case to == pair || to == zero:
		return []balanceChange{{user: from, delta: new(big.Int).Neg(value)}}
	}

	var changes []balanceChange
	if from != pair {
		changes = append(changes, balanceChange{user: from, delta: new(big.Int)})
	}
	if to != pair {
		changes = append(changes, balanceChange{user: to, delta: new(big.Int)})
	}
	return changes
}

func (h *Handler) apply(ctx context.Context, source templates.Source, record model.TypedEventRecord, change balanceChange) error {
	position, err := h.ledger.CreateOrUpdate(ctx, ledger.PositionUpdate{
		ProviderName:  source.Kind.ProviderName(),
		Pool:          source.Address,
		User:          change.user,
		MintBurnDelta: change.delta,
		BlockNumber:   record.BlockNumber,
	})
	if err != nil {
		return err
	}
	if _, err := h.ledger.UpdateDayData(ctx, position, change.user, record.Timestamp); err != nil {
		return err
	}

	h.logger.Debug("position updated",
		zap.String("position", position.ID),
		zap.String("delta", change.delta.String()),
		zap.String("balance", position.Balance.String()),
		zap.Uint64("block_number", record.BlockNumber),
	)
	return nil
}
