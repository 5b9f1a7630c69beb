package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// ConcatHex joins hex byte strings into a single 0x-prefixed byte string.
func ConcatHex(parts ...string) string {
	var sb strings.Builder
	sb.WriteString("0x")
	for _, p := range parts {
		sb.WriteString(strings.ToLower(StripHexPrefix(p)))
	}
	return sb.String()
}

// Uint64ToEvenHex encodes n as a minimal, even-length hex byte string without prefix.
func Uint64ToEvenHex(n uint64) string {
	h := strconv.FormatUint(n, 16)
	if len(h)%2 == 1 {
		h = "0" + h
	}
	return h
}

func UserVaultBalanceId(vault, user string) string {
	return ConcatHex(vault, user)
}

func MintBurnId(vault, receiver string, timestamp uint64) string {
	return ConcatHex(vault, receiver, Uint64ToEvenHex(timestamp))
}

// SwapId keys a swap by vault and timestamp. The vault prefix is deliberate: two
// vaults swapping in the same block get distinct records instead of a collision suffix.
func SwapId(vault string, timestamp uint64) string {
	return ConcatHex(vault, Uint64ToEvenHex(timestamp))
}

// CounterRecordId builds ids for records numbered by a per-vault counter, e.g. "0xabc#1f".
func CounterRecordId(vault string, count uint64) string {
	return fmt.Sprintf("%s#%x", NormalizeAddress(vault), count)
}

func PositionId(vault string, positionCount uint64) string {
	return CounterRecordId(vault, positionCount)
}

func BucketId(vault string, index uint64) string {
	return fmt.Sprintf("%s-%d", NormalizeAddress(vault), index)
}

func CollisionSuffix(blockNumber uint64, logIndex uint64) string {
	return fmt.Sprintf("-%x-%x", blockNumber, logIndex)
}

func ProcessedEventId(transactionHash string, logIndex uint64) string {
	return fmt.Sprintf("%s-%d", strings.ToLower(transactionHash), logIndex)
}

func StateRootId(vault string, blockNumber uint64) string {
	return fmt.Sprintf("%s-%d", NormalizeAddress(vault), blockNumber)
}
