package chain

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// BalanceQuerier mirrors the ledger's balance collaborator.
type BalanceQuerier interface {
	BalanceOf(ctx context.Context, token, account common.Address, blockNumber uint64) (*big.Int, error)
}

// RetryingBalances retries failed balance queries with exponential backoff.
type RetryingBalances struct {
	inner      BalanceQuerier
	maxRetries int
	backoff    time.Duration
	logger     *zap.Logger
}

func NewRetryingBalances(inner BalanceQuerier, maxRetries int, backoff time.Duration, logger *zap.Logger) *RetryingBalances {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryingBalances{inner: inner, maxRetries: maxRetries, backoff: backoff, logger: logger}
}

func (r *RetryingBalances) BalanceOf(ctx context.Context, token, account common.Address, blockNumber uint64) (*big.Int, error) {
	var balance *big.Int
	err := withRetry(ctx, r.maxRetries, r.backoff, func(ctx context.Context) error {
		var err error
		balance, err = r.inner.BalanceOf(ctx, token, account, blockNumber)
		if err != nil {
			r.logger.Warn("balanceOf failed",
				zap.Error(err),
				zap.String("token", token.Hex()),
				zap.String("account", account.Hex()),
				zap.Uint64("block_number", blockNumber),
			)
		}
		return err
	})
	return balance, err
}

func withRetry(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func(context.Context) error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}

	delay := baseDelay
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= maxRetries {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
	}
}
