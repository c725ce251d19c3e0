package ledger

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityLedger/internal/store"
)

// BalanceQuerier reads a fungible-token balance, pinned to a block when blockNumber > 0.
type BalanceQuerier interface {
	BalanceOf(ctx context.Context, token, account common.Address, blockNumber uint64) (*big.Int, error)
}

// Ledger folds mint/burn/transfer activity into users, positions and daily snapshots.
type Ledger struct {
	store    store.Store
	balances BalanceQuerier
	logger   *zap.Logger
}

func NewLedger(s store.Store, balances BalanceQuerier, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		store:    s,
		balances: balances,
		logger:   logger,
	}
}
