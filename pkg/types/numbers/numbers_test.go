package numbers

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_numbers(t *testing.T) {
	t.Run("MulDivFloor truncates towards zero for positive operands", func(t *testing.T) {
		res, err := MulDivFloor(big.NewInt(500), big.NewInt(400), big.NewInt(1000))
		assert.Nil(t, err)
		assert.Equal(t, "200", res.String())

		res, err = MulDivFloor(big.NewInt(10), big.NewInt(1), big.NewInt(3))
		assert.Nil(t, err)
		assert.Equal(t, "3", res.String())

		res, err = MulDivFloor(big.NewInt(2), big.NewInt(2), big.NewInt(3))
		assert.Nil(t, err)
		assert.Equal(t, "1", res.String())
	})
	t.Run("MulDivFloor does not lose precision on uint256 sized values", func(t *testing.T) {
		a, _ := new(big.Int).SetString("115792089237316195423570985008687907853269984665640564039457584007913129639935", 10)
		res, err := MulDivFloor(a, a, a)
		assert.Nil(t, err)
		assert.Equal(t, a.String(), res.String())
	})
	t.Run("MulDivFloor rejects a zero denominator", func(t *testing.T) {
		res, err := MulDivFloor(big.NewInt(1), big.NewInt(1), big.NewInt(0))
		assert.Nil(t, res)
		assert.ErrorIs(t, err, ErrDivisionByZero)

		_, err = MulDivFloor(big.NewInt(1), big.NewInt(1), nil)
		assert.ErrorIs(t, err, ErrDivisionByZero)
	})
	t.Run("ParseBig handles the shapes produced by log decoding", func(t *testing.T) {
		cases := []struct {
			in       interface{}
			expected string
		}{
			{in: json.Number("1000"), expected: "1000"},
			{in: "13389173346000000000000000", expected: "13389173346000000000000000"},
			{in: "0xff", expected: "255"},
			{in: float64(42), expected: "42"},
			{in: uint16(7), expected: "7"},
			{in: "1e+21", expected: "1000000000000000000000"},
		}
		for _, c := range cases {
			n, err := ParseBig(c.in)
			assert.Nil(t, err)
			assert.Equal(t, c.expected, n.String())
		}
	})
	t.Run("ParseBig rejects non-integers", func(t *testing.T) {
		_, err := ParseBig(1.5)
		assert.NotNil(t, err)
		_, err = ParseBig("abc")
		assert.NotNil(t, err)
		_, err = ParseBig(nil)
		assert.NotNil(t, err)
	})
	t.Run("Clone and arithmetic helpers treat nil as zero", func(t *testing.T) {
		assert.Equal(t, "0", Clone(nil).String())
		assert.Equal(t, "5", Add(nil, big.NewInt(5)).String())
		assert.Equal(t, "-5", Sub(nil, big.NewInt(5)).String())
		assert.True(t, IsZero(nil))
	})
	t.Run("SqrtPriceX96ToPrice of 2^96 is one", func(t *testing.T) {
		assert.Equal(t, "1", SqrtPriceX96ToPrice(Q96).String())
		assert.Equal(t, "4", SqrtPriceX96ToPrice(new(big.Int).Mul(Q96, big.NewInt(2))).String())
		assert.True(t, SqrtPriceX96ToPrice(nil).IsZero())
	})
	t.Run("FormatTokenAmount", func(t *testing.T) {
		assert.Equal(t, "1.5", FormatTokenAmount(big.NewInt(1500000), 6))
	})
}
