package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Ids(t *testing.T) {
	vault := "0xAbC0000000000000000000000000000000000001"
	user := "0x00000000000000000000000000000000000000Fe"

	t.Run("UserVaultBalanceId concatenates vault and user bytes", func(t *testing.T) {
		assert.Equal(t,
			"0xabc000000000000000000000000000000000000100000000000000000000000000000000000000fe",
			UserVaultBalanceId(vault, user),
		)
	})
	t.Run("MintBurnId appends an even length timestamp", func(t *testing.T) {
		id := MintBurnId(vault, user, 0x65a)
		assert.Equal(t, UserVaultBalanceId(vault, user)+"065a", id)
	})
	t.Run("SwapId is vault scoped", func(t *testing.T) {
		assert.Equal(t, "0xabc000000000000000000000000000000000000110", SwapId(vault, 16))
	})
	t.Run("Counter based ids use unprefixed hex", func(t *testing.T) {
		assert.Equal(t, "0xabc0000000000000000000000000000000000001#1", PositionId(vault, 1))
		assert.Equal(t, "0xabc0000000000000000000000000000000000001#1f", CounterRecordId(vault, 31))
	})
	t.Run("Bucket ids use the decimal period index", func(t *testing.T) {
		assert.Equal(t, "0xabc0000000000000000000000000000000000001-19737", BucketId(vault, 19737))
	})
	t.Run("Null address detection", func(t *testing.T) {
		assert.True(t, IsNullAddress(NullEthereumAddressHex))
		assert.True(t, IsNullAddress(NullEthereumAddress))
		assert.True(t, IsNullAddress(""))
		assert.False(t, IsNullAddress(user))
	})
	t.Run("NormalizeAddress", func(t *testing.T) {
		assert.Equal(t, "0xabc0000000000000000000000000000000000001", NormalizeAddress(vault))
		assert.Equal(t, "0xff", NormalizeAddress("FF"))
	})
}
