package model

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustAddress(t *testing.T, hex string) common.Address {
	t.Helper()
	require.True(t, common.IsHexAddress(hex), "invalid address %s", hex)
	return common.HexToAddress(hex)
}

func TestDataSourceContextKeepsTypes(t *testing.T) {
	token := mustAddress(t, "0x3333333333333333333333333333333333333333")
	supply, _ := new(big.Int).SetString("340282366920938463463374607431768211455", 10)

	ds := DataSource{
		ID:       "0x1111111111111111111111111111111111111111",
		Template: "QuickswapPair",
		Address:  "0x1111111111111111111111111111111111111111",
		Context: DataSourceContext{
			"name":    "WMATIC-USDC",
			"stable":  false,
			"fee":     30,
			"supply":  supply,
			"weight":  decimal.RequireFromString("0.25"),
			"salt":    []byte{0xde, 0xad},
			"token0":  token,
			"version": int64(2),
		},
		CreatedAtBlock: 4931780,
	}

	data, err := json.Marshal(&ds)
	require.NoError(t, err)

	var decoded DataSource
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "WMATIC-USDC", decoded.Context["name"])
	assert.Equal(t, false, decoded.Context["stable"])
	assert.Equal(t, int64(30), decoded.Context["fee"])
	assert.Equal(t, int64(2), decoded.Context["version"])
	assert.Equal(t, 0, supply.Cmp(decoded.Context["supply"].(*big.Int)))
	assert.True(t, decoded.Context["weight"].(decimal.Decimal).Equal(decimal.RequireFromString("0.25")))
	assert.Equal(t, []byte{0xde, 0xad}, decoded.Context["salt"])
	assert.Equal(t, token, decoded.Context["token0"])
	assert.Equal(t, uint64(4931780), decoded.CreatedAtBlock)
}

func TestDataSourceContextRejectsComposite(t *testing.T) {
	ctx := DataSourceContext{
		"ok":     "fine",
		"nested": map[string]string{"a": "b"},
	}
	err := ctx.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"nested"`)

	_, err = json.Marshal(ctx)
	require.Error(t, err)
}

func TestDataSourceContextUnknownTag(t *testing.T) {
	var ctx DataSourceContext
	err := json.Unmarshal([]byte(`{"x":{"type":"float","value":"1.5"}}`), &ctx)
	require.Error(t, err)
}

func TestParseContextValue(t *testing.T) {
	addr, err := ParseContextValue("address:0x00000000000000000000000000000000000000AA")
	if err != nil {
		t.Fatalf("parse address: %v", err)
	}
	if addr != mustAddress(t, "0x00000000000000000000000000000000000000aa") {
		t.Fatalf("unexpected address %v", addr)
	}

	n, err := ParseContextValue("int:42")
	if err != nil || n != int64(42) {
		t.Fatalf("parse int: %v %v", n, err)
	}

	s, err := ParseContextValue("https://example.org")
	if err != nil || s != "https://example.org" {
		t.Fatalf("parse url: %v %v", s, err)
	}

	if _, err := ParseContextValue("bool:maybe"); err == nil {
		t.Fatalf("expected bool parse error")
	}
}
