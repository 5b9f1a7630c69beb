package numbers

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrDivisionByZero = errors.New("division by zero")

// Q96 is 2^96, the fixed point scale of concentrated-liquidity sqrt prices.
var Q96 = new(big.Int).Lsh(big.NewInt(1), 96)

func Zero() *big.Int {
	return big.NewInt(0)
}

// Clone returns a copy of x; a nil x yields zero.
func Clone(x *big.Int) *big.Int {
	if x == nil {
		return Zero()
	}
	return new(big.Int).Set(x)
}

func Add(a, b *big.Int) *big.Int {
	return new(big.Int).Add(Clone(a), Clone(b))
}

func Sub(a, b *big.Int) *big.Int {
	return new(big.Int).Sub(Clone(a), Clone(b))
}

func IsZero(x *big.Int) bool {
	return x == nil || x.Sign() == 0
}

// MulDivFloor returns floor(a * b / denominator) for non-negative operands.
func MulDivFloor(a, b, denominator *big.Int) (*big.Int, error) {
	if IsZero(denominator) {
		return nil, ErrDivisionByZero
	}
	product := new(big.Int).Mul(Clone(a), Clone(b))
	// Div is euclidean division, which floors for a positive denominator.
	return product.Div(product, denominator), nil
}

// ParseBig converts a decoded event value into a big.Int. Strings may be base 10 or
// 0x-prefixed hex; floats are only accepted when they hold an integral value.
func ParseBig(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case nil:
		return nil, errors.New("value is nil")
	case *big.Int:
		return Clone(v), nil
	case big.Int:
		return Clone(&v), nil
	case json.Number:
		return parseBigString(v.String())
	case string:
		return parseBigString(v)
	case float64:
		d := decimal.NewFromFloat(v)
		if !d.IsInteger() {
			return nil, fmt.Errorf("value %v is not an integer", v)
		}
		return d.BigInt(), nil
	case int:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case uint8:
		return big.NewInt(int64(v)), nil
	case uint16:
		return big.NewInt(int64(v)), nil
	case uint32:
		return big.NewInt(int64(v)), nil
	case int8:
		return big.NewInt(int64(v)), nil
	case int16:
		return big.NewInt(int64(v)), nil
	case int32:
		return big.NewInt(int64(v)), nil
	default:
		return nil, fmt.Errorf("unsupported numeric type %T", value)
	}
}

func parseBigString(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		n, ok := new(big.Int).SetString(s[2:], 16)
		if !ok {
			return nil, fmt.Errorf("invalid hex number %q", s)
		}
		return n, nil
	}
	if n, ok := new(big.Int).SetString(s, 10); ok {
		return n, nil
	}
	// scientific notation from float encoders, e.g. 1e+21
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsInteger() {
		return nil, fmt.Errorf("invalid integer %q", s)
	}
	return d.BigInt(), nil
}

// SqrtPriceX96ToPrice converts a Q64.96 sqrt price into the raw token1/token0 price.
func SqrtPriceX96ToPrice(sqrtPriceX96 *big.Int) decimal.Decimal {
	if IsZero(sqrtPriceX96) {
		return decimal.Zero
	}
	sqrtPrice := decimal.NewFromBigInt(sqrtPriceX96, 0).Div(decimal.NewFromBigInt(Q96, 0))
	return sqrtPrice.Mul(sqrtPrice)
}

// FormatTokenAmount scales a raw token amount by its decimals.
func FormatTokenAmount(amount *big.Int, decimals int32) string {
	return decimal.NewFromBigInt(Clone(amount), -decimals).String()
}
