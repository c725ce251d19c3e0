package mapping

import (
	"context"
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquidityLedger/internal/ledger"
	"liquidityLedger/internal/model"
	"liquidityLedger/internal/store"
	"liquidityLedger/internal/templates"
)

var (
	factoryAddr = common.HexToAddress("0x00000000000000000000000000000000000000F0")
	pairAddr    = common.HexToAddress("0x00000000000000000000000000000000000000AA")
	token0      = common.HexToAddress("0x0000000000000000000000000000000000000010")
	token1      = common.HexToAddress("0x0000000000000000000000000000000000000011")
	alice       = common.HexToAddress("0x0000000000000000000000000000000000000A11")
	bob         = common.HexToAddress("0x0000000000000000000000000000000000000B0B")
)

type staticFactories map[common.Address]templates.Kind

func (f staticFactories) FactoryKind(address common.Address) (templates.Kind, bool) {
	kind, ok := f[address]
	return kind, ok
}

// mapBalances answers balanceOf from a per-account table.
type mapBalances map[common.Address]*big.Int

func (m mapBalances) BalanceOf(ctx context.Context, token, account common.Address, blockNumber uint64) (*big.Int, error) {
	if bal, ok := m[account]; ok {
		return bal, nil
	}
	return new(big.Int), nil
}

type fixture struct {
	store    *store.MemoryStore
	registry *templates.Registry
	balances mapBalances
	handler  *Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := store.NewMemoryStore()
	registry := templates.NewRegistry(mem, nil)
	balances := mapBalances{}
	l := ledger.NewLedger(mem, balances, nil)
	return &fixture{
		store:    mem,
		registry: registry,
		balances: balances,
		handler:  NewHandler(staticFactories{factoryAddr: templates.SushiswapPair}, registry, l, nil),
	}
}

func record(t *testing.T, emitter common.Address, name string, block, ts uint64, data interface{}) model.TypedEventRecord {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return model.TypedEventRecord{
		ChainID:     137,
		BlockNumber: block,
		TxHash:      "0x01",
		Address:     emitter.Hex(),
		EventName:   name,
		Timestamp:   ts,
		Decoded:     raw,
	}
}

func pairCreated(t *testing.T) model.TypedEventRecord {
	return record(t, factoryAddr, model.EventPairCreated, 1, 10, model.PairCreatedEventData{
		Token0: token0.Hex(),
		Token1: token1.Hex(),
		Pair:   pairAddr.Hex(),
	})
}

func transfer(t *testing.T, from, to common.Address, value string, ts uint64) model.TypedEventRecord {
	return record(t, pairAddr, model.EventTransfer, 2, ts, model.TransferEventData{
		From:  from.Hex(),
		To:    to.Hex(),
		Value: value,
	})
}

func (f *fixture) position(t *testing.T, user common.Address) *model.LiquidityPosition {
	t.Helper()
	p := &model.LiquidityPosition{ID: model.PositionID(pairAddr, user)}
	found, err := f.store.Load(context.Background(), p)
	require.NoError(t, err)
	require.True(t, found, "position %s", p.ID)
	return p
}

func TestPairCreatedRegistersTemplate(t *testing.T) {
	f := newFixture(t)

	handled, err := f.handler.Handle(context.Background(), pairCreated(t))
	require.NoError(t, err)
	assert.True(t, handled)

	source, ok := f.registry.Lookup(pairAddr)
	require.True(t, ok)
	assert.Equal(t, templates.SushiswapPair, source.Kind)
	assert.Equal(t, factoryAddr, source.Context["factory"])
	assert.Equal(t, token0, source.Context["token0"])
	assert.Equal(t, token1, source.Context["token1"])
}

func TestPairCreatedFromUnknownFactoryIsSkipped(t *testing.T) {
	f := newFixture(t)
	rec := pairCreated(t)
	rec.Address = bob.Hex()

	handled, err := f.handler.Handle(context.Background(), rec)
	require.NoError(t, err)
	assert.False(t, handled)
	assert.Empty(t, f.registry.Addresses())
}

func TestUnknownEventWithBadAddressIsSkipped(t *testing.T) {
	f := newFixture(t)

	for _, address := range []string{"", "not-an-address"} {
		rec := record(t, pairAddr, "Sync", 3, 30, map[string]string{})
		rec.Address = address

		handled, err := f.handler.Handle(context.Background(), rec)
		require.NoError(t, err, "address %q", address)
		assert.False(t, handled)
	}

	rec := transfer(t, common.Address{}, alice, "1", 100)
	rec.Address = "not-an-address"
	_, err := f.handler.Handle(context.Background(), rec)
	require.Error(t, err)
}

func TestTransferFromUnwatchedPairIsSkipped(t *testing.T) {
	f := newFixture(t)

	handled, err := f.handler.Handle(context.Background(), transfer(t, common.Address{}, alice, "1", 100))
	require.NoError(t, err)
	assert.False(t, handled)
	assert.Equal(t, 0, f.store.Count(model.LiquidityPositionType))
}

func TestMintBurnAndTransfer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.handler.Handle(ctx, pairCreated(t))
	require.NoError(t, err)

	f.balances[alice] = big.NewInt(0).Mul(big.NewInt(2), big.NewInt(1e18))
	handled, err := f.handler.Handle(ctx, transfer(t, common.Address{}, alice, "2000000000000000000", 100))
	require.NoError(t, err)
	assert.True(t, handled)

	p := f.position(t, alice)
	assert.Equal(t, "sushiswap", p.PoolProviderName)
	assert.True(t, decimal.NewFromInt(2).Equal(p.BalanceFromMintBurn))
	assert.True(t, decimal.NewFromInt(2).Equal(p.Balance))

	// alice returns half to the pair, which then burns it
	f.balances[alice] = big.NewInt(1e18)
	_, err = f.handler.Handle(ctx, transfer(t, alice, pairAddr, "1000000000000000000", 200))
	require.NoError(t, err)
	_, err = f.handler.Handle(ctx, transfer(t, pairAddr, common.Address{}, "1000000000000000000", 200))
	require.NoError(t, err)

	p = f.position(t, alice)
	assert.True(t, decimal.NewFromInt(1).Equal(p.BalanceFromMintBurn))
	assert.True(t, decimal.NewFromInt(1).Equal(p.Balance))

	// plain transfer refreshes both sides without touching the ledger
	f.balances[alice] = big.NewInt(0)
	f.balances[bob] = big.NewInt(1e18)
	_, err = f.handler.Handle(ctx, transfer(t, alice, bob, "1000000000000000000", 86400+5))
	require.NoError(t, err)

	p = f.position(t, alice)
	assert.True(t, decimal.NewFromInt(1).Equal(p.BalanceFromMintBurn))
	assert.True(t, p.Balance.IsZero())

	b := f.position(t, bob)
	assert.True(t, b.BalanceFromMintBurn.IsZero())
	assert.True(t, decimal.NewFromInt(1).Equal(b.Balance))

	ids, err := f.store.IDs(ctx, model.UserLiquidityPositionDayDataType)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		model.DayDataID(model.PositionID(pairAddr, alice), 0),
		model.DayDataID(model.PositionID(pairAddr, alice), 1),
		model.DayDataID(model.PositionID(pairAddr, bob), 1),
	}, ids)
	assert.Equal(t, 2, f.store.Count(model.UserType))
}

func TestTransferChanges(t *testing.T) {
	zero := common.Address{}
	v := big.NewInt(5)

	assert.Empty(t, transferChanges(pairAddr, zero, zero, v))
	assert.Empty(t, transferChanges(pairAddr, pairAddr, zero, v))

	mint := transferChanges(pairAddr, zero, alice, v)
	require.Len(t, mint, 1)
	assert.Equal(t, alice, mint[0].user)
	assert.Equal(t, int64(5), mint[0].delta.Int64())

	burn := transferChanges(pairAddr, alice, zero, v)
	require.Len(t, burn, 1)
	assert.Equal(t, int64(-5), burn[0].delta.Int64())

	returned := transferChanges(pairAddr, alice, pairAddr, v)
	require.Len(t, returned, 1)
	assert.Equal(t, int64(-5), returned[0].delta.Int64())

	plain := transferChanges(pairAddr, alice, bob, v)
	require.Len(t, plain, 2)
	assert.Zero(t, plain[0].delta.Sign())
	assert.Zero(t, plain[1].delta.Sign())

	fromPair := transferChanges(pairAddr, pairAddr, bob, v)
	require.Len(t, fromPair, 1)
	assert.Equal(t, bob, fromPair[0].user)
}

func TestTransferRejectsBadPayload(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.handler.Handle(ctx, pairCreated(t))
	require.NoError(t, err)

	_, err = f.handler.Handle(ctx, transfer(t, alice, bob, "-1", 1))
	require.Error(t, err)

	_, err = f.handler.Handle(ctx, transfer(t, alice, bob, "abc", 1))
	require.Error(t, err)

	rec := transfer(t, alice, bob, "1", 1)
	rec.Decoded = json.RawMessage(`{"from":"nope","to":"0x00","value":"1"}`)
	_, err = f.handler.Handle(ctx, rec)
	require.Error(t, err)
}
