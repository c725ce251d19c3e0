package ledger

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"liquidityLedger/internal/model"
	"liquidityLedger/internal/store"
)

const secondsPerDay = 86400

// DayIndex returns the UTC day bucket of a unix timestamp.
func DayIndex(timestamp uint64) int64 {
	return int64(timestamp / secondsPerDay)
}

// UpdateDayData records the position's current balances in its snapshot for
// the day of timestamp. Identity fields are set only when the snapshot is created.
func (l *Ledger) UpdateDayData(ctx context.Context, position *model.LiquidityPosition, user common.Address, timestamp uint64) (*model.UserLiquidityPositionDayData, error) {
	if position == nil {
		return nil, fmt.Errorf("position is nil")
	}
	dayIndex := DayIndex(timestamp)

	dayData := &model.UserLiquidityPositionDayData{ID: model.DayDataID(position.ID, dayIndex)}
	_, err := store.LoadOrCreate(ctx, l.store, dayData, func(d *model.UserLiquidityPositionDayData) {
		d.Date = dayIndex * secondsPerDay
		d.PoolProviderName = position.PoolProviderName
		d.PoolAddress = position.PoolAddress
		d.UserAddress = model.AddressID(user)
	})
	if err != nil {
		return nil, fmt.Errorf("load day data %s: %w", dayData.ID, err)
	}

	dayData.Balance = position.Balance
	dayData.BalanceFromMintBurn = position.BalanceFromMintBurn

	if err := l.store.Save(ctx, dayData); err != nil {
		return nil, fmt.Errorf("save day data %s: %w", dayData.ID, err)
	}
	return dayData, nil
}
