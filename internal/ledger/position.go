package ledger

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"liquidityLedger/internal/model"
	"liquidityLedger/internal/numeric"
	"liquidityLedger/internal/store"
)

// PositionUpdate describes one change to a user's position in a pool.
type PositionUpdate struct {
	ProviderName  string
	Pool          common.Address
	User          common.Address
	MintBurnDelta *big.Int
	// BlockNumber pins the balance query; 0 queries the latest state.
	BlockNumber uint64
}

// CreateOrUpdate upserts the user and the (pool, user) position, adds the
// mint/burn delta to the running ledger and refreshes the on-chain balance.
func (l *Ledger) CreateOrUpdate(ctx context.Context, update PositionUpdate) (*model.LiquidityPosition, error) {
	if err := l.ensureUser(ctx, update.User); err != nil {
		return nil, err
	}

	position := &model.LiquidityPosition{ID: model.PositionID(update.Pool, update.User)}
	created, err := store.LoadOrCreate(ctx, l.store, position, func(p *model.LiquidityPosition) {
		p.PoolAddress = model.AddressID(update.Pool)
		p.User = model.AddressID(update.User)
		p.PoolProviderName = update.ProviderName
		p.BalanceFromMintBurn = decimal.Zero
		p.Balance = decimal.Zero
	})
	if err != nil {
		return nil, fmt.Errorf("load position %s: %w", position.ID, err)
	}
	if created {
		l.logger.Warn("liquidity position not found, creating new one",
			zap.String("id", position.ID),
			zap.String("provider", update.ProviderName),
		)
	}

	delta := numeric.ConvertTokenToDecimal(update.MintBurnDelta, numeric.LPTokenDecimals)
	position.BalanceFromMintBurn = position.BalanceFromMintBurn.Add(delta)

	raw, err := l.balances.BalanceOf(ctx, update.Pool, update.User, update.BlockNumber)
	if err != nil {
		return nil, fmt.Errorf("balanceOf %s for %s: %w", position.PoolAddress, position.User, err)
	}
	position.Balance = numeric.ConvertTokenToDecimal(raw, numeric.LPTokenDecimals)

	if err := l.store.Save(ctx, position); err != nil {
		return nil, fmt.Errorf("save position %s: %w", position.ID, err)
	}
	return position, nil
}

func (l *Ledger) ensureUser(ctx context.Context, addr common.Address) error {
	user := &model.User{ID: model.AddressID(addr)}
	created, err := store.LoadOrCreate(ctx, l.store, user, nil)
	if err != nil {
		return fmt.Errorf("load user %s: %w", user.ID, err)
	}
	if !created {
		return nil
	}
	if err := l.store.Save(ctx, user); err != nil {
		return fmt.Errorf("save user %s: %w", user.ID, err)
	}
	return nil
}
