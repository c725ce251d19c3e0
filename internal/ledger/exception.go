package ledger

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"liquidityLedger/internal/model"
)

// CreateException stores an audit record keyed by the transaction hash.
// A second record for the same hash overwrites the first.
func (l *Ledger) CreateException(ctx context.Context, addrs, txHash []byte, message string) error {
	if len(txHash) == 0 {
		return fmt.Errorf("exception requires a transaction hash")
	}
	exception := &model.Exception{
		ID:      hexutil.Encode(txHash),
		Addrs:   append(hexutil.Bytes(nil), addrs...),
		TxHash:  append(hexutil.Bytes(nil), txHash...),
		Message: message,
	}
	if err := l.store.Save(ctx, exception); err != nil {
		return fmt.Errorf("save exception %s: %w", exception.ID, err)
	}
	return nil
}
