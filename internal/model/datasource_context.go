package model

import (
	"encoding/json"
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
)

const (
	contextString  = "string"
	contextBool    = "bool"
	contextInt     = "int"
	contextBigInt  = "bigint"
	contextDecimal = "decimal"
	contextBytes   = "bytes"
	contextAddress = "address"
)

// DataSourceContext carries primitive values handed to a templated data source.
// Values decode back to string, bool, int64, *big.Int, decimal.Decimal, []byte
// or common.Address.
type DataSourceContext map[string]interface{}

type contextValue struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Validate reports the first key holding a non-primitive value.
func (c DataSourceContext) Validate() error {
	for _, key := range c.keys() {
		if _, err := encodeContextValue(c[key]); err != nil {
			return fmt.Errorf("context key %q: %w", key, err)
		}
	}
	return nil
}

func (c DataSourceContext) keys() []string {
	keys := make([]string, 0, len(c))
	for key := range c {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// MarshalJSON encodes each value with an explicit type tag.
func (c DataSourceContext) MarshalJSON() ([]byte, error) {
	out := make(map[string]contextValue, len(c))
	for key, value := range c {
		encoded, err := encodeContextValue(value)
		if err != nil {
			return nil, fmt.Errorf("context key %q: %w", key, err)
		}
		out[key] = encoded
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a type-tagged context.
func (c *DataSourceContext) UnmarshalJSON(data []byte) error {
	var raw map[string]contextValue
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(DataSourceContext, len(raw))
	for key, encoded := range raw {
		value, err := decodeContextValue(encoded)
		if err != nil {
			return fmt.Errorf("context key %q: %w", key, err)
		}
		out[key] = value
	}
	*c = out
	return nil
}

func encodeContextValue(value interface{}) (contextValue, error) {
	switch v := value.(type) {
	case string:
		return contextValue{Type: contextString, Value: v}, nil
	case bool:
		return contextValue{Type: contextBool, Value: strconv.FormatBool(v)}, nil
	case int:
		return contextValue{Type: contextInt, Value: strconv.FormatInt(int64(v), 10)}, nil
	case int32:
		return contextValue{Type: contextInt, Value: strconv.FormatInt(int64(v), 10)}, nil
	case int64:
		return contextValue{Type: contextInt, Value: strconv.FormatInt(v, 10)}, nil
	case *big.Int:
		if v == nil {
			return contextValue{}, fmt.Errorf("nil big int")
		}
		return contextValue{Type: contextBigInt, Value: v.String()}, nil
	case decimal.Decimal:
		return contextValue{Type: contextDecimal, Value: v.String()}, nil
	case []byte:
		return contextValue{Type: contextBytes, Value: hexutil.Encode(v)}, nil
	case hexutil.Bytes:
		return contextValue{Type: contextBytes, Value: hexutil.Encode(v)}, nil
	case common.Address:
		return contextValue{Type: contextAddress, Value: AddressID(v)}, nil
	default:
		return contextValue{}, fmt.Errorf("unsupported context value type %T", value)
	}
}

func decodeContextValue(encoded contextValue) (interface{}, error) {
	switch encoded.Type {
	case contextString:
		return encoded.Value, nil
	case contextBool:
		return strconv.ParseBool(encoded.Value)
	case contextInt:
		return strconv.ParseInt(encoded.Value, 10, 64)
	case contextBigInt:
		v, ok := new(big.Int).SetString(encoded.Value, 10)
		if !ok {
			return nil, fmt.Errorf("invalid big int: %s", encoded.Value)
		}
		return v, nil
	case contextDecimal:
		return decimal.NewFromString(encoded.Value)
	case contextBytes:
		return hexutil.Decode(encoded.Value)
	case contextAddress:
		if !common.IsHexAddress(encoded.Value) {
			return nil, fmt.Errorf("invalid address: %s", encoded.Value)
		}
		return common.HexToAddress(encoded.Value), nil
	default:
		return nil, fmt.Errorf("unknown context value type %q", encoded.Type)
	}
}

// ParseContextValue parses "type:value" (for example "address:0xabc" or
// "int:3"). Input without a known type prefix is a string.
func ParseContextValue(input string) (interface{}, error) {
	typ, value, ok := strings.Cut(input, ":")
	if !ok {
		return input, nil
	}
	switch typ {
	case contextString, contextBool, contextInt, contextBigInt, contextDecimal, contextBytes, contextAddress:
		return decodeContextValue(contextValue{Type: typ, Value: value})
	default:
		return input, nil
	}
}
