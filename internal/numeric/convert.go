package numeric

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// LPTokenDecimals is the fixed decimal count of pool share tokens.
const LPTokenDecimals uint8 = 18

var ten = decimal.NewFromInt(10)

// ExponentToBigDecimal returns 10^decimals as an exact decimal.
func ExponentToBigDecimal(decimals uint8) decimal.Decimal {
	bd := decimal.NewFromInt(1)
	for i := uint8(0); i < decimals; i++ {
		bd = bd.Mul(ten)
	}
	return bd
}

// ConvertTokenToDecimal scales a raw integer token amount down by 10^decimals.
func ConvertTokenToDecimal(amount *big.Int, decimals uint8) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	value := decimal.NewFromBigInt(amount, 0)
	if decimals == 0 {
		return value
	}
	// Div rounds at DivisionPrecision; a power-of-ten divisor needs exactly
	// `decimals` places.
	return value.DivRound(ExponentToBigDecimal(decimals), int32(decimals))
}

// ParseBigInt parses a base-10 integer string. An empty string is zero.
func ParseBigInt(value string) (*big.Int, error) {
	if value == "" {
		return big.NewInt(0), nil
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, &InvalidIntError{Value: value}
	}
	return parsed, nil
}

// InvalidIntError reports a malformed integer amount.
type InvalidIntError struct {
	Value string
}

func (e *InvalidIntError) Error() string {
	return "invalid int: " + e.Value
}
