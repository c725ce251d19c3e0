package ledger

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"go.uber.org/zap/zapcore"

	"liquidityLedger/internal/model"
	"liquidityLedger/internal/store"
)

var (
	poolAddr = common.HexToAddress("0x00000000000000000000000000000000000000AA")
	userAddr = common.HexToAddress("0x0000000000000000000000000000000000000ABC")
	errRPC   = errors.New("execution reverted")
)

type stubBalances struct {
	balance *big.Int
	err     error
	blocks  []uint64
}

func (s *stubBalances) BalanceOf(ctx context.Context, token, account common.Address, blockNumber uint64) (*big.Int, error) {
	s.blocks = append(s.blocks, blockNumber)
	if s.err != nil {
		return nil, s.err
	}
	return new(big.Int).Set(s.balance), nil
}

// failingStore fails saves of one entity type.
type failingStore struct {
	store.Store
	failType string
}

func (f *failingStore) Save(ctx context.Context, entity store.Entity) error {
	if entity.EntityType() == f.failType {
		return errors.New("disk full")
	}
	return f.Store.Save(ctx, entity)
}

func wei(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad integer " + s)
	}
	return v
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "want %s, got %s", want, got.String())
}

func update(delta string) PositionUpdate {
	return PositionUpdate{
		ProviderName:  "quickswap",
		Pool:          poolAddr,
		User:          userAddr,
		MintBurnDelta: wei(delta),
		BlockNumber:   100,
	}
}

func TestCreateOrUpdateEndToEnd(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	l := NewLedger(mem, &stubBalances{balance: wei("1000000000000000000")}, nil)

	position, err := l.CreateOrUpdate(ctx, update("1000000000000000000"))
	require.NoError(t, err)

	user := &model.User{ID: "0x0000000000000000000000000000000000000abc"}
	found, err := mem.Load(ctx, user)
	require.NoError(t, err)
	assert.True(t, found)

	assert.Equal(t, "0x00000000000000000000000000000000000000aa-0x0000000000000000000000000000000000000abc", position.ID)
	assert.Equal(t, "0x00000000000000000000000000000000000000aa", position.PoolAddress)
	assert.Equal(t, user.ID, position.User)
	assert.Equal(t, "quickswap", position.PoolProviderName)
	assertDecimal(t, "1", position.BalanceFromMintBurn)
	assertDecimal(t, "1", position.Balance)

	dayData, err := l.UpdateDayData(ctx, position, userAddr, 50000)
	require.NoError(t, err)
	assert.Equal(t, position.ID+"-0", dayData.ID)
	assert.Equal(t, int64(0), dayData.Date)
	assertDecimal(t, "1", dayData.Balance)
	assertDecimal(t, "1", dayData.BalanceFromMintBurn)

	stored := &model.UserLiquidityPositionDayData{ID: dayData.ID}
	found, err = mem.Load(ctx, stored)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "quickswap", stored.PoolProviderName)
	assert.Equal(t, user.ID, stored.UserAddress)
}

func TestCreateOrUpdateZeroDeltaRefreshesBalance(t *testing.T) {
	ctx := context.Background()
	balances := &stubBalances{balance: wei("2000000000000000000")}
	l := NewLedger(store.NewMemoryStore(), balances, nil)

	_, err := l.CreateOrUpdate(ctx, update("2000000000000000000"))
	require.NoError(t, err)

	balances.balance = wei("500000000000000000")
	position, err := l.CreateOrUpdate(ctx, update("0"))
	require.NoError(t, err)
	assertDecimal(t, "2", position.BalanceFromMintBurn)
	assertDecimal(t, "0.5", position.Balance)
}

func TestCreateOrUpdateAccumulates(t *testing.T) {
	ctx := context.Background()
	balances := &stubBalances{balance: wei("0")}
	l := NewLedger(store.NewMemoryStore(), balances, nil)

	_, err := l.CreateOrUpdate(ctx, update("1500000000000000000"))
	require.NoError(t, err)

	balances.balance = wei("999")
	position, err := l.CreateOrUpdate(ctx, update("-250000000000000001"))
	require.NoError(t, err)
	assertDecimal(t, "1.249999999999999999", position.BalanceFromMintBurn)
	assertDecimal(t, "0.000000000000000999", position.Balance)
	assert.Equal(t, []uint64{100, 100}, balances.blocks)
}

func TestCreateOrUpdateWarnsOnMissingPosition(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zapcore.WarnLevel)
	l := NewLedger(store.NewMemoryStore(), &stubBalances{balance: wei("0")}, zap.New(core))

	position, err := l.CreateOrUpdate(ctx, update("0"))
	require.NoError(t, err)
	assertDecimal(t, "0", position.BalanceFromMintBurn)
	assert.Equal(t, "quickswap", position.PoolProviderName)

	warnings := logs.FilterMessage("liquidity position not found, creating new one").All()
	require.Len(t, warnings, 1)
	assert.Equal(t, position.ID, warnings[0].ContextMap()["id"])

	_, err = l.CreateOrUpdate(ctx, update("0"))
	require.NoError(t, err)
	assert.Equal(t, 1, logs.Len())
}

func TestCreateOrUpdateBalanceFailure(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	l := NewLedger(mem, &stubBalances{err: errRPC}, nil)

	_, err := l.CreateOrUpdate(ctx, update("1000000000000000000"))
	require.ErrorIs(t, err, errRPC)

	found, err := mem.Load(ctx, &model.LiquidityPosition{ID: model.PositionID(poolAddr, userAddr)})
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCreateOrUpdateSaveFailure(t *testing.T) {
	s := &failingStore{Store: store.NewMemoryStore(), failType: model.LiquidityPositionType}
	l := NewLedger(s, &stubBalances{balance: wei("1")}, nil)

	_, err := l.CreateOrUpdate(context.Background(), update("1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save position")
}

func TestUpdateDayDataBuckets(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(store.NewMemoryStore(), &stubBalances{balance: wei("1")}, nil)
	position, err := l.CreateOrUpdate(ctx, update("1"))
	require.NoError(t, err)

	first, err := l.UpdateDayData(ctx, position, userAddr, 100)
	require.NoError(t, err)
	second, err := l.UpdateDayData(ctx, position, userAddr, 86399)
	require.NoError(t, err)
	third, err := l.UpdateDayData(ctx, position, userAddr, 86400)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(0), first.Date)
	assert.Equal(t, int64(0), second.Date)
	assert.NotEqual(t, first.ID, third.ID)
	assert.Equal(t, position.ID+"-1", third.ID)
	assert.Equal(t, int64(86400), third.Date)
}

func TestUpdateDayDataOverwritesBalancesOnly(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	l := NewLedger(mem, &stubBalances{balance: wei("1")}, nil)

	position := &model.LiquidityPosition{
		ID:                  model.PositionID(poolAddr, userAddr),
		PoolAddress:         model.AddressID(poolAddr),
		User:                model.AddressID(userAddr),
		PoolProviderName:    "sushiswap",
		BalanceFromMintBurn: dec("1"),
		Balance:             dec("1"),
	}
	_, err := l.UpdateDayData(ctx, position, userAddr, 1000)
	require.NoError(t, err)

	position.PoolProviderName = "cometh"
	position.BalanceFromMintBurn = dec("3")
	position.Balance = dec("2.5")
	snapshot, err := l.UpdateDayData(ctx, position, userAddr, 2000)
	require.NoError(t, err)

	assert.Equal(t, "sushiswap", snapshot.PoolProviderName)
	assert.Equal(t, int64(0), snapshot.Date)
	assert.Equal(t, model.AddressID(poolAddr), snapshot.PoolAddress)
	assertDecimal(t, "3", snapshot.BalanceFromMintBurn)
	assertDecimal(t, "2.5", snapshot.Balance)
	assert.Equal(t, 1, mem.Count(model.UserLiquidityPositionDayDataType))
}

func TestCreateException(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	l := NewLedger(mem, nil, nil)

	txHash := common.HexToHash("0x01").Bytes()
	require.NoError(t, l.CreateException(ctx, poolAddr.Bytes(), txHash, "first"))
	require.NoError(t, l.CreateException(ctx, poolAddr.Bytes(), txHash, "second"))

	exception := &model.Exception{ID: common.HexToHash("0x01").Hex()}
	found, err := mem.Load(ctx, exception)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "second", exception.Message)
	assert.Equal(t, poolAddr.Bytes(), []byte(exception.Addrs))
	assert.Equal(t, 1, mem.Count(model.ExceptionType))

	require.Error(t, l.CreateException(ctx, nil, nil, "no hash"))
}
